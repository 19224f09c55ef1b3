package player

import (
	"context"
	"math/rand"
	"testing"
	"time"
)

func mkTrack(id string) Track {
	return Track{
		ID:        id,
		Title:     "Track " + id,
		Artist:    "Artist",
		StreamRef: id + ".mp3",
		Duration:  300,
	}
}

func newTestStore(t *testing.T, opts ...Option) *Store {
	t.Helper()
	opts = append([]Option{WithRand(rand.New(rand.NewSource(42)))}, opts...)
	return NewStore(opts...)
}

func setQueueABC(s *Store) {
	s.SetQueue([]Track{mkTrack("a"), mkTrack("b"), mkTrack("c")}, 0, SourceUser)
}

func TestSetQueue_StartsAtIndex(t *testing.T) {
	s := newTestStore(t)
	setQueueABC(s)

	st := s.Status()
	if st.Track == nil || st.Track.ID != "a" {
		t.Fatalf("current track = %v, want a", st.Track)
	}
	if !st.IsPlaying {
		t.Error("expected playback to start")
	}
	if q := s.Queue(); q.CurrentIndex != 0 {
		t.Errorf("CurrentIndex = %d, want 0", q.CurrentIndex)
	}
}

func TestNext_SequentialStopsAtEnd(t *testing.T) {
	s := newTestStore(t)
	setQueueABC(s)

	s.Next(false)
	if q := s.Queue(); q.CurrentIndex != 1 {
		t.Fatalf("after first next: index = %d, want 1", q.CurrentIndex)
	}
	if st := s.Status(); st.Track.ID != "b" {
		t.Fatalf("after first next: track = %s, want b", st.Track.ID)
	}

	s.Next(false)
	if q := s.Queue(); q.CurrentIndex != 2 {
		t.Fatalf("after second next: index = %d, want 2", q.CurrentIndex)
	}

	// End of queue with repeat off: stop, keep the last track.
	s.Next(false)
	st := s.Status()
	if st.IsPlaying {
		t.Error("expected playback stopped at end of queue")
	}
	if q := s.Queue(); q.CurrentIndex != 2 {
		t.Errorf("index after stop = %d, want 2", q.CurrentIndex)
	}
	if st.Track == nil || st.Track.ID != "c" {
		t.Errorf("track after stop = %v, want c", st.Track)
	}
}

func TestNext_RepeatAllWraps(t *testing.T) {
	s := newTestStore(t)
	setQueueABC(s)
	s.SetRepeat(RepeatAll)

	s.Next(false)
	s.Next(false)
	s.Next(false)

	if q := s.Queue(); q.CurrentIndex != 0 {
		t.Errorf("index after wrap = %d, want 0", q.CurrentIndex)
	}
	if st := s.Status(); !st.IsPlaying {
		t.Error("expected playback to continue after wrap")
	}
}

func TestPrevious_RepeatAllWrapsToEnd(t *testing.T) {
	s := newTestStore(t)
	setQueueABC(s)
	s.SetRepeat(RepeatAll)

	s.Previous(true)
	if q := s.Queue(); q.CurrentIndex != 2 {
		t.Errorf("index = %d, want 2", q.CurrentIndex)
	}
}

func TestNext_RepeatOneRestartsTrack(t *testing.T) {
	s := newTestStore(t)
	setQueueABC(s)
	s.SetRepeat(RepeatOne)
	s.SetProgress(120, 300, 50)

	s.Next(false)

	st := s.Status()
	if st.Track.ID != "a" {
		t.Errorf("track = %s, want a", st.Track.ID)
	}
	if st.CurrentTime != 0 {
		t.Errorf("currentTime = %v, want 0", st.CurrentTime)
	}
	if q := s.Queue(); q.CurrentIndex != 0 {
		t.Errorf("index = %d, want 0", q.CurrentIndex)
	}
}

func TestNext_ManualOverridesRepeatOne(t *testing.T) {
	s := newTestStore(t)
	setQueueABC(s)
	s.SetRepeat(RepeatOne)

	s.Next(true)

	if st := s.Status(); st.Track.ID != "b" {
		t.Errorf("track = %s, want b", st.Track.ID)
	}
}

func TestNext_UpNextHasPriority(t *testing.T) {
	s := newTestStore(t)
	setQueueABC(s)
	s.AddUpNext(mkTrack("x"), SourceUser)

	s.Next(false)

	st := s.Status()
	if st.Track.ID != "x" {
		t.Fatalf("track = %s, want x", st.Track.ID)
	}
	if q := s.Queue(); len(q.UpNext) != 0 {
		t.Error("upNext should be consumed")
	}

	// UpNext wins even over repeat-one.
	s.SetRepeat(RepeatOne)
	s.AddUpNext(mkTrack("y"), SourceUser)
	s.Next(false)
	if st := s.Status(); st.Track.ID != "y" {
		t.Errorf("track = %s, want y", st.Track.ID)
	}
}

func TestNext_AutoplayAppendsSimilar(t *testing.T) {
	s := newTestStore(t)
	s.SetQueue([]Track{mkTrack("a")}, 0, SourceUser)
	s.PrimeSimilar("a", []Track{mkTrack("sim1"), mkTrack("sim2")})

	s.Next(false)

	st := s.Status()
	if st.Track == nil || (st.Track.ID != "sim1" && st.Track.ID != "sim2") {
		t.Fatalf("track = %v, want a similar track", st.Track)
	}
	q := s.Queue()
	if len(q.Items) != 2 {
		t.Fatalf("queue length = %d, want 2", len(q.Items))
	}
	if q.Items[1].Source != SourceAutoplay {
		t.Errorf("appended item source = %s, want autoplay", q.Items[1].Source)
	}
	if !st.IsPlaying {
		t.Error("expected playback to continue via autoplay")
	}
}

func TestNext_AutoplayDisabledStops(t *testing.T) {
	s := newTestStore(t)
	off := false
	s.UpdateSettings(SettingsPatch{Autoplay: &off})
	s.SetQueue([]Track{mkTrack("a")}, 0, SourceUser)
	s.PrimeSimilar("a", []Track{mkTrack("sim1")})

	s.Next(false)

	if st := s.Status(); st.IsPlaying {
		t.Error("expected stop when autoplay disabled")
	}
}

func TestPrevious_RestartsAfterThreshold(t *testing.T) {
	s := newTestStore(t)
	setQueueABC(s)
	s.Next(false) // at b
	s.SetProgress(45, 300, 0)

	s.Previous(false)

	st := s.Status()
	if st.Track.ID != "b" {
		t.Errorf("track = %s, want b (restart)", st.Track.ID)
	}
	if st.CurrentTime != 0 {
		t.Errorf("currentTime = %v, want 0", st.CurrentTime)
	}
}

func TestPrevious_ManualGoesBack(t *testing.T) {
	s := newTestStore(t)
	setQueueABC(s)
	s.Next(false) // at b
	s.SetProgress(45, 300, 0)

	s.Previous(true)

	if st := s.Status(); st.Track.ID != "a" {
		t.Errorf("track = %s, want a", st.Track.ID)
	}
}

func TestToggleShuffle_AlwaysResetsHistory(t *testing.T) {
	s := newTestStore(t)
	setQueueABC(s)
	s.ToggleShuffle()
	s.Next(false)
	s.Next(false)

	s.ToggleShuffle()
	s.ToggleShuffle()

	// After toggling, previous under shuffle has no history to pop, so it
	// restarts rather than stepping back.
	before := s.Status().Track.ID
	s.Previous(true)
	if after := s.Status().Track.ID; after != before {
		t.Errorf("track changed from %s to %s, want restart in place", before, after)
	}
}

func TestShuffle_VisitsAllBeforeStopping(t *testing.T) {
	s := newTestStore(t)
	setQueueABC(s)
	s.ToggleShuffle()

	seen := map[string]bool{s.Status().Track.ID: true}
	s.Next(false)
	seen[s.Status().Track.ID] = true
	s.Next(false)
	seen[s.Status().Track.ID] = true

	if len(seen) != 3 {
		t.Errorf("visited %d distinct tracks, want 3", len(seen))
	}

	// Pool exhausted, repeat off, no similar cache: stop.
	s.Next(false)
	if st := s.Status(); st.IsPlaying {
		t.Error("expected stop after exhausting shuffle pool")
	}
}

func TestShuffle_RepeatAllStartsNewCycle(t *testing.T) {
	s := newTestStore(t)
	setQueueABC(s)
	s.SetRepeat(RepeatAll)
	s.ToggleShuffle()

	// Walk well past the queue length; playback must never stop.
	for i := 0; i < 10; i++ {
		s.Next(false)
		if st := s.Status(); !st.IsPlaying {
			t.Fatalf("playback stopped at step %d under repeat all", i)
		}
	}
}

func TestShuffle_PreviousPopsHistory(t *testing.T) {
	s := newTestStore(t)
	setQueueABC(s)
	s.ToggleShuffle()

	first := s.Status().Track.ID
	s.Next(false)

	s.Previous(true)
	if got := s.Status().Track.ID; got != first {
		t.Errorf("previous under shuffle = %s, want %s", got, first)
	}
}

func TestSetVolume_Clamps(t *testing.T) {
	tests := []struct {
		in   float64
		want float64
	}{
		{0.5, 0.5},
		{-0.2, 0},
		{1.7, 1},
		{0, 0},
		{1, 1},
	}

	for _, tt := range tests {
		s := newTestStore(t)
		s.SetVolume(tt.in)
		if got := s.Audio().Volume; got != tt.want {
			t.Errorf("SetVolume(%v): volume = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestToggleMute_PreservesVolume(t *testing.T) {
	s := newTestStore(t)
	s.SetVolume(0.7)

	s.ToggleMute()
	if a := s.Audio(); !a.Muted {
		t.Error("expected muted")
	}

	s.ToggleMute()
	a := s.Audio()
	if a.Muted {
		t.Error("expected unmuted")
	}
	if a.Volume != 0.7 {
		t.Errorf("volume after unmute = %v, want 0.7", a.Volume)
	}
}

func TestSeek_Clamps(t *testing.T) {
	s := newTestStore(t)
	setQueueABC(s)
	s.SetProgress(0, 300, 0)

	s.Seek(500)
	if st := s.Status(); st.CurrentTime != 300 {
		t.Errorf("seek past end: currentTime = %v, want 300", st.CurrentTime)
	}

	s.Seek(-10)
	if st := s.Status(); st.CurrentTime != 0 {
		t.Errorf("seek before start: currentTime = %v, want 0", st.CurrentTime)
	}
}

func TestResumePosition_Threshold(t *testing.T) {
	s := newTestStore(t)

	s.SaveResumePosition("a", 5)
	if _, ok := s.ResumePosition("a"); ok {
		t.Error("5s play should not create a resume entry")
	}

	s.SaveResumePosition("a", 15)
	if pos, ok := s.ResumePosition("a"); !ok || pos != 15 {
		t.Errorf("resume = %v,%v, want 15,true", pos, ok)
	}
}

func TestSetCurrentTrack_SavesOutgoingResume(t *testing.T) {
	s := newTestStore(t)
	setQueueABC(s)
	s.SetProgress(42, 300, 0)

	tr := mkTrack("b")
	s.SetCurrentTrack(&tr, true)

	if pos, ok := s.ResumePosition("a"); !ok || pos != 42 {
		t.Errorf("outgoing resume = %v,%v, want 42,true", pos, ok)
	}
}

func TestSetCurrentTrack_RestoresResume(t *testing.T) {
	s := newTestStore(t)
	s.SaveResumePosition("a", 120)

	tr := mkTrack("a")
	s.SetCurrentTrack(&tr, true)

	if st := s.Status(); st.CurrentTime != 120 {
		t.Errorf("currentTime = %v, want 120", st.CurrentTime)
	}
}

func TestSetCurrentTrack_ShortPlayNoResume(t *testing.T) {
	s := newTestStore(t)
	setQueueABC(s)
	s.SetProgress(5, 300, 0)

	tr := mkTrack("b")
	s.SetCurrentTrack(&tr, true)

	if _, ok := s.ResumePosition("a"); ok {
		t.Error("5s partial play should not create a resume entry")
	}
}

func TestAddToHistory_Bounded(t *testing.T) {
	s := newTestStore(t)
	for i := 0; i < 60; i++ {
		s.AddToHistory(HistoryEntry{Track: mkTrack("t"), PlayedAt: time.Now()})
	}
	if got := len(s.History()); got != historyLimit {
		t.Errorf("history length = %d, want %d", got, historyLimit)
	}
}

func TestUpdateSettings_ClampsCrossfade(t *testing.T) {
	s := newTestStore(t)

	d := 20.0
	s.UpdateSettings(SettingsPatch{CrossfadeDuration: &d})
	if got := s.Controls().Settings.Crossfade.Duration; got != MaxCrossfadeDuration {
		t.Errorf("crossfade duration = %v, want %v", got, MaxCrossfadeDuration)
	}

	neg := -4.0
	s.UpdateSettings(SettingsPatch{CrossfadeDuration: &neg})
	if got := s.Controls().Settings.Crossfade.Duration; got != 0 {
		t.Errorf("crossfade duration = %v, want 0", got)
	}
}

func TestUpdateSettings_MergesPartially(t *testing.T) {
	s := newTestStore(t)
	enabled := true
	s.UpdateSettings(SettingsPatch{CrossfadeEnabled: &enabled})

	cfg := s.Controls().Settings
	if !cfg.Crossfade.Enabled {
		t.Error("crossfade should be enabled")
	}
	if !cfg.Gapless {
		t.Error("gapless default should be untouched by a partial update")
	}
}

func TestOfflineState(t *testing.T) {
	s := newTestStore(t)

	s.MarkCached("a")
	if !s.IsCached("a") {
		t.Error("a should be cached")
	}
	if s.IsCached("b") {
		t.Error("b should not be cached")
	}

	s.SetOffline(true)
	if !s.IsOffline() {
		t.Error("expected offline")
	}

	s.UnmarkCached("a")
	if s.IsCached("a") {
		t.Error("a should be evicted")
	}
}

type stubSimilar struct {
	tracks []Track
}

func (f *stubSimilar) SimilarTracks(_ context.Context, _ Track, _ int) ([]Track, error) {
	return f.tracks, nil
}

func TestSimilarProvider_PopulatesCache(t *testing.T) {
	provider := &stubSimilar{tracks: []Track{mkTrack("sim1")}}
	s := newTestStore(t, WithSimilarProvider(provider))

	tr := mkTrack("a")
	s.SetCurrentTrack(&tr, true)

	// The lookup is fire-and-forget; wait for it to land.
	deadline := time.After(2 * time.Second)
	for {
		if len(s.SimilarFor("a")) == 1 {
			return
		}
		select {
		case <-deadline:
			t.Fatal("similar cache never populated")
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestSubscribe_DeliversEvents(t *testing.T) {
	s := newTestStore(t)
	events, unsubscribe := s.Subscribe(16)
	defer unsubscribe()

	setQueueABC(s)

	deadline := time.After(time.Second)
	for {
		select {
		case ev := <-events:
			if ev.Kind == EventTrackChanged && ev.Track != nil && ev.Track.ID == "a" {
				return
			}
		case <-deadline:
			t.Fatal("no track change event received")
		}
	}
}

func TestSubscribe_UnsubscribeDuringEmitDoesNotPanic(t *testing.T) {
	s := newTestStore(t)
	setQueueABC(s)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 2000; i++ {
			s.SetVolume(float64(i%10) / 10)
		}
	}()

	// Subscribers churn while mutations emit; a close landing between
	// the subscriber snapshot and the send would panic here.
	for i := 0; i < 2000; i++ {
		events, unsubscribe := s.Subscribe(1)
		select {
		case <-events:
		default:
		}
		unsubscribe()
	}
	<-done
}
