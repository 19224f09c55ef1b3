package player

import (
	"testing"
)

func TestGetNextTrack_Sequential(t *testing.T) {
	s := newTestStore(t)
	setQueueABC(s)

	if next := s.GetNextTrack(); next == nil || next.ID != "b" {
		t.Errorf("preview = %v, want b", next)
	}

	// Preview must agree with the mutator.
	s.Next(false)
	if st := s.Status(); st.Track.ID != "b" {
		t.Errorf("mutator diverged from preview: got %s", st.Track.ID)
	}
}

func TestGetNextTrack_EndOfQueue(t *testing.T) {
	s := newTestStore(t)
	setQueueABC(s)
	s.Next(false)
	s.Next(false) // at c, last

	if next := s.GetNextTrack(); next != nil {
		t.Errorf("preview at end of queue = %v, want nil", next)
	}
	if s.CanPlayNext() {
		t.Error("CanPlayNext should be false at end of queue")
	}
}

func TestGetNextTrack_RepeatAllWraps(t *testing.T) {
	s := newTestStore(t)
	setQueueABC(s)
	s.SetRepeat(RepeatAll)
	s.Next(false)
	s.Next(false) // at c

	if next := s.GetNextTrack(); next == nil || next.ID != "a" {
		t.Errorf("preview = %v, want a", next)
	}
}

func TestGetNextTrack_UpNextFirst(t *testing.T) {
	s := newTestStore(t)
	setQueueABC(s)
	s.AddUpNext(mkTrack("x"), SourceUser)

	if next := s.GetNextTrack(); next == nil || next.ID != "x" {
		t.Errorf("preview = %v, want x", next)
	}
}

func TestGetNextTrack_RepeatOne(t *testing.T) {
	s := newTestStore(t)
	setQueueABC(s)
	s.SetRepeat(RepeatOne)

	if next := s.GetNextTrack(); next == nil || next.ID != "a" {
		t.Errorf("preview = %v, want a (repeat one)", next)
	}
}

func TestGetNextTrack_ShuffleDeterministicPreview(t *testing.T) {
	s := newTestStore(t)
	setQueueABC(s)
	s.ToggleShuffle()

	// The shuffle preview is stable: repeated calls return the same track.
	first := s.GetNextTrack()
	if first == nil {
		t.Fatal("preview = nil, want a track")
	}
	for i := 0; i < 5; i++ {
		if got := s.GetNextTrack(); got == nil || got.ID != first.ID {
			t.Fatalf("unstable shuffle preview: %v then %v", first, got)
		}
	}
}

func TestGetNextTrack_AutoplayPreview(t *testing.T) {
	s := newTestStore(t)
	s.SetQueue([]Track{mkTrack("a")}, 0, SourceUser)
	s.PrimeSimilar("a", []Track{mkTrack("sim1"), mkTrack("sim2")})

	if next := s.GetNextTrack(); next == nil || next.ID != "sim1" {
		t.Errorf("preview = %v, want sim1 (first cached similar)", next)
	}
}

func TestGetPreviousTrack(t *testing.T) {
	s := newTestStore(t)
	setQueueABC(s)

	if prev := s.GetPreviousTrack(); prev != nil {
		t.Errorf("preview at start = %v, want nil", prev)
	}
	if s.CanPlayPrevious() {
		t.Error("CanPlayPrevious should be false at queue start")
	}

	s.Next(false)
	if prev := s.GetPreviousTrack(); prev == nil || prev.ID != "a" {
		t.Errorf("preview = %v, want a", prev)
	}
}

func TestGetPreviousTrack_RepeatAllWraps(t *testing.T) {
	s := newTestStore(t)
	setQueueABC(s)
	s.SetRepeat(RepeatAll)

	if prev := s.GetPreviousTrack(); prev == nil || prev.ID != "c" {
		t.Errorf("preview = %v, want c", prev)
	}
}

func TestGetTimeRemaining(t *testing.T) {
	s := newTestStore(t)
	setQueueABC(s)
	s.SetProgress(100, 300, 0)

	if got := s.GetTimeRemaining(); got != 200 {
		t.Errorf("remaining = %v, want 200", got)
	}

	s.SetProgress(300, 300, 0)
	if got := s.GetTimeRemaining(); got != 0 {
		t.Errorf("remaining at end = %v, want 0", got)
	}
}

func TestStatus_CopiesTrack(t *testing.T) {
	s := newTestStore(t)
	setQueueABC(s)

	st := s.Status()
	st.Track.Title = "mutated"

	if got := s.Status().Track.Title; got == "mutated" {
		t.Error("Status must return a copy, not a live pointer")
	}
}

func TestPersisted_RoundTrip(t *testing.T) {
	s := newTestStore(t)
	s.SetVolume(0.4)
	s.ToggleMute()
	s.SetRepeat(RepeatAll)
	s.ToggleShuffle()
	s.SaveResumePosition("a", 87)
	s.MarkCached("a")
	enabled := true
	s.UpdateSettings(SettingsPatch{CrossfadeEnabled: &enabled})
	for i := 0; i < 30; i++ {
		s.AddToHistory(HistoryEntry{Track: mkTrack("t"), Completed: true})
	}

	snap := s.ExportPersisted()
	if len(snap.History) != persistedHistoryLimit {
		t.Errorf("persisted history = %d entries, want %d", len(snap.History), persistedHistoryLimit)
	}

	restored := newTestStore(t)
	restored.ApplyPersisted(snap)

	if a := restored.Audio(); !a.Muted {
		t.Error("muted flag lost")
	}
	c := restored.Controls()
	if c.Repeat != RepeatAll {
		t.Errorf("repeat = %v, want all", c.Repeat)
	}
	if !c.Shuffle {
		t.Error("shuffle flag lost")
	}
	if !c.Settings.Crossfade.Enabled {
		t.Error("crossfade setting lost")
	}
	if pos, ok := restored.ResumePosition("a"); !ok || pos != 87 {
		t.Errorf("resume = %v,%v, want 87,true", pos, ok)
	}
	if !restored.IsCached("a") {
		t.Error("cached track set lost")
	}
}

func TestApplyPersisted_MergesWithoutResettingRuntime(t *testing.T) {
	s := newTestStore(t)
	setQueueABC(s)
	s.SetProgress(42, 300, 10)

	s.ApplyPersisted(PersistedState{
		Volume: 0.5,
		Repeat: RepeatAll,
	})

	// Runtime-only state must survive the merge.
	if q := s.Queue(); len(q.Items) != 3 || q.CurrentIndex != 0 {
		t.Error("queue state must not be reset by ApplyPersisted")
	}
	if st := s.Status(); st.CurrentTime != 42 {
		t.Errorf("currentTime = %v, want 42", st.CurrentTime)
	}
	if a := s.Audio(); a.Volume != 0.5 {
		t.Errorf("volume = %v, want 0.5", a.Volume)
	}
}
