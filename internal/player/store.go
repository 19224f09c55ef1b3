package player

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	// historyLimit bounds the in-memory playback history
	historyLimit = 50
	// resumeSaveThreshold is the minimum accumulated play time, in seconds,
	// before a resume position is recorded
	resumeSaveThreshold = 10.0
	// restartThreshold is the play time after which previous() restarts the
	// current track instead of moving backward
	restartThreshold = 3.0
	// similarCacheLimit caps similar-track lookups per request
	similarCacheLimit = 10
)

// SimilarProvider supplies similar tracks for autoplay continuation
type SimilarProvider interface {
	SimilarTracks(ctx context.Context, track Track, limit int) ([]Track, error)
}

// Store is the single source of truth for playback intent. All mutations
// are synchronous and in-memory; the Store performs no audio I/O.
type Store struct {
	mu     sync.RWMutex
	logger *zap.Logger
	rng    *rand.Rand

	similar SimilarProvider

	queue        []QueueItem
	currentIndex int
	current      *Track
	upNext       []QueueItem

	isPlaying   bool
	volume      float64
	muted       bool
	preMuteVol  float64
	currentTime float64
	duration    float64
	buffered    float64

	repeat         RepeatMode
	shuffle        bool
	shuffleHistory []int

	history         []HistoryEntry
	resumePositions map[string]float64
	similarCache    map[string][]Track
	settings        Settings
	offline         OfflineState
	lastError       string

	subscribers map[int]chan Event
	nextSubID   int
}

// Option configures a Store
type Option func(*Store)

// WithLogger sets the store logger
func WithLogger(logger *zap.Logger) Option {
	return func(s *Store) { s.logger = logger }
}

// WithSimilarProvider sets the autoplay similar-tracks provider
func WithSimilarProvider(p SimilarProvider) Option {
	return func(s *Store) { s.similar = p }
}

// WithRand sets the random source used for shuffle and autoplay picks
func WithRand(r *rand.Rand) Option {
	return func(s *Store) { s.rng = r }
}

// NewStore creates a playback store with default settings
func NewStore(opts ...Option) *Store {
	s := &Store{
		logger:          zap.NewNop(),
		rng:             rand.New(rand.NewSource(time.Now().UnixNano())),
		currentIndex:    -1,
		volume:          1.0,
		preMuteVol:      1.0,
		repeat:          RepeatNone,
		resumePositions: make(map[string]float64),
		similarCache:    make(map[string][]Track),
		settings:        DefaultSettings(),
		offline: OfflineState{
			CachedTracks: make(map[string]struct{}),
			LastOnlineAt: time.Now(),
		},
		subscribers: make(map[int]chan Event),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetCurrentTrack makes the given track current. A nil track clears
// playback. The outgoing track's resume position is saved first when it has
// accrued enough play time.
func (s *Store) SetCurrentTrack(track *Track, startPlaying bool) {
	s.mu.Lock()
	s.saveResumeLocked()

	// Keep currentIndex consistent with the queue. A track not present in
	// the queue plays out-of-band, like an upNext item.
	s.currentIndex = -1
	if track != nil {
		for i, item := range s.queue {
			if item.Track.ID == track.ID {
				s.currentIndex = i
				break
			}
		}
	}

	events := s.setCurrentTrackLocked(track, startPlaying)
	s.mu.Unlock()

	s.emit(events...)
}

// setCurrentTrackLocked switches the current track and returns the events
// to emit. Caller holds s.mu.
func (s *Store) setCurrentTrackLocked(track *Track, startPlaying bool) []Event {
	if track == nil {
		s.current = nil
		s.currentTime = 0
		s.duration = 0
		s.buffered = 0
		s.isPlaying = false
		return []Event{{Kind: EventTrackChanged}}
	}

	t := *track
	s.current = &t
	s.currentTime = s.resumePositions[t.ID]
	s.duration = t.Duration
	s.buffered = 0
	s.isPlaying = startPlaying
	s.lastError = ""

	if s.settings.Autoplay && s.similar != nil {
		if _, ok := s.similarCache[t.ID]; !ok {
			go s.loadSimilar(t)
		}
	}

	return []Event{{
		Kind:         EventTrackChanged,
		Track:        &t,
		StartPlaying: startPlaying,
		ResumeAt:     s.resumePositions[t.ID],
	}}
}

// loadSimilar fills the similar-tracks cache for autoplay continuation.
// Failures are logged, never surfaced.
func (s *Store) loadSimilar(track Track) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	tracks, err := s.similar.SimilarTracks(ctx, track, similarCacheLimit)
	if err != nil {
		s.logger.Warn("similar tracks lookup failed",
			zap.String("track_id", track.ID),
			zap.Error(err))
		return
	}

	s.mu.Lock()
	s.similarCache[track.ID] = tracks
	s.mu.Unlock()
}

// PrimeSimilar seeds the similar-tracks cache for a track, bypassing the
// provider lookup
func (s *Store) PrimeSimilar(trackID string, tracks []Track) {
	s.mu.Lock()
	s.similarCache[trackID] = tracks
	s.mu.Unlock()
}

// saveResumeLocked records the current track's position when it has played
// long enough. Caller holds s.mu.
func (s *Store) saveResumeLocked() {
	if s.current == nil {
		return
	}
	if s.currentTime > resumeSaveThreshold {
		s.resumePositions[s.current.ID] = s.currentTime
	}
}

// Next advances playback. Resolution order: upNext head, repeat-one
// restart, shuffle or sequential queue advance, autoplay continuation,
// then stop.
func (s *Store) Next(manual bool) {
	s.mu.Lock()
	events := s.nextLocked(manual)
	s.mu.Unlock()
	s.emit(events...)
}

func (s *Store) nextLocked(manual bool) []Event {
	// UpNext is consumed before everything else, unconditionally.
	if len(s.upNext) > 0 {
		item := s.upNext[0]
		s.upNext = s.upNext[1:]
		s.saveResumeLocked()
		return s.setCurrentTrackLocked(&item.Track, true)
	}

	if s.repeat == RepeatOne && !manual {
		s.currentTime = 0
		s.isPlaying = true
		return []Event{{Kind: EventSeek, Position: 0}}
	}

	next, wrapped := s.nextIndexLocked()
	if next >= 0 {
		prev := s.currentIndex
		if s.shuffle {
			if wrapped {
				s.shuffleHistory = nil
			}
			if prev >= 0 {
				s.shuffleHistory = append(s.shuffleHistory, prev)
			}
		}
		s.saveResumeLocked()
		s.currentIndex = next
		return s.setCurrentTrackLocked(&s.queue[next].Track, true)
	}

	// Nothing left in the queue: try autoplay continuation.
	if s.settings.Autoplay && s.current != nil {
		if pool := s.similarCache[s.current.ID]; len(pool) > 0 {
			pick := pool[s.rng.Intn(len(pool))]
			s.queue = append(s.queue, NewQueueItem(pick, SourceAutoplay))
			return append([]Event{{Kind: EventQueue}}, s.nextLocked(manual)...)
		}
	}

	// End of the road: stop, leave the current track in place.
	s.isPlaying = false
	return []Event{{Kind: EventPlayState, Playing: false}}
}

// nextIndexLocked computes the next queue index, or -1 when none exists.
// wrapped reports that the shuffle pool was exhausted and restarted.
func (s *Store) nextIndexLocked() (next int, wrapped bool) {
	if len(s.queue) == 0 {
		return -1, false
	}

	if s.shuffle {
		candidates := s.unvisitedIndicesLocked()
		if len(candidates) > 0 {
			return candidates[s.rng.Intn(len(candidates))], false
		}
		if s.repeat == RepeatAll {
			// Every index visited: start a fresh shuffle cycle.
			if len(s.queue) == 1 {
				return 0, true
			}
			for {
				idx := s.rng.Intn(len(s.queue))
				if idx != s.currentIndex {
					return idx, true
				}
			}
		}
		return -1, false
	}

	if s.currentIndex+1 < len(s.queue) {
		return s.currentIndex + 1, false
	}
	if s.repeat == RepeatAll {
		return 0, false
	}
	return -1, false
}

// unvisitedIndicesLocked returns queue indices not yet visited in the
// current shuffle cycle, excluding the current index.
func (s *Store) unvisitedIndicesLocked() []int {
	visited := make(map[int]struct{}, len(s.shuffleHistory)+1)
	for _, idx := range s.shuffleHistory {
		visited[idx] = struct{}{}
	}
	if s.currentIndex >= 0 {
		visited[s.currentIndex] = struct{}{}
	}

	var out []int
	for i := range s.queue {
		if _, ok := visited[i]; !ok {
			out = append(out, i)
		}
	}
	return out
}

// Previous moves backward. A non-manual call restarts the current track
// when more than a few seconds have elapsed.
func (s *Store) Previous(manual bool) {
	s.mu.Lock()
	events := s.previousLocked(manual)
	s.mu.Unlock()
	s.emit(events...)
}

func (s *Store) previousLocked(manual bool) []Event {
	if s.currentTime > restartThreshold && !manual {
		s.currentTime = 0
		return []Event{{Kind: EventSeek, Position: 0}}
	}

	if s.shuffle {
		if n := len(s.shuffleHistory); n > 0 {
			prev := s.shuffleHistory[n-1]
			s.shuffleHistory = s.shuffleHistory[:n-1]
			if prev >= 0 && prev < len(s.queue) {
				s.saveResumeLocked()
				s.currentIndex = prev
				return s.setCurrentTrackLocked(&s.queue[prev].Track, true)
			}
		}
		s.currentTime = 0
		return []Event{{Kind: EventSeek, Position: 0}}
	}

	if s.currentIndex > 0 {
		s.saveResumeLocked()
		s.currentIndex--
		return s.setCurrentTrackLocked(&s.queue[s.currentIndex].Track, true)
	}
	if s.repeat == RepeatAll && len(s.queue) > 0 {
		s.saveResumeLocked()
		s.currentIndex = len(s.queue) - 1
		return s.setCurrentTrackLocked(&s.queue[s.currentIndex].Track, true)
	}

	s.currentTime = 0
	return []Event{{Kind: EventSeek, Position: 0}}
}

// Seek moves the playhead, clamped to [0, duration]
func (s *Store) Seek(position float64) {
	s.mu.Lock()
	if position < 0 {
		position = 0
	}
	if s.duration > 0 && position > s.duration {
		position = s.duration
	}
	s.currentTime = position
	s.mu.Unlock()

	s.emit(Event{Kind: EventSeek, Position: position})
}

// SetIsPlaying sets the play/pause intent
func (s *Store) SetIsPlaying(playing bool) {
	s.mu.Lock()
	if s.current == nil {
		playing = false
	}
	s.isPlaying = playing
	if playing {
		s.lastError = ""
	}
	s.mu.Unlock()

	s.emit(Event{Kind: EventPlayState, Playing: playing})
}

// TogglePlay flips the play/pause intent
func (s *Store) TogglePlay() {
	s.mu.Lock()
	playing := !s.isPlaying
	if s.current == nil {
		playing = false
	}
	s.isPlaying = playing
	s.mu.Unlock()

	s.emit(Event{Kind: EventPlayState, Playing: playing})
}

// SetVolume sets the output volume, clamped to [0, 1]
func (s *Store) SetVolume(v float64) {
	s.mu.Lock()
	s.volume = clampVolume(v)
	if s.volume > 0 {
		s.preMuteVol = s.volume
	}
	vol, muted := s.volume, s.muted
	s.mu.Unlock()

	s.emit(Event{Kind: EventVolume, Volume: vol, Muted: muted})
}

// ToggleMute mutes or unmutes, preserving the pre-mute volume
func (s *Store) ToggleMute() {
	s.mu.Lock()
	if s.muted {
		s.muted = false
		s.volume = s.preMuteVol
	} else {
		s.preMuteVol = s.volume
		s.muted = true
	}
	vol, muted := s.volume, s.muted
	s.mu.Unlock()

	s.emit(Event{Kind: EventVolume, Volume: vol, Muted: muted})
}

// SetRepeat sets the repeat mode
func (s *Store) SetRepeat(mode RepeatMode) {
	s.mu.Lock()
	s.repeat = mode
	s.mu.Unlock()
	s.emit(Event{Kind: EventSettings})
}

// ToggleShuffle flips shuffle mode and always resets the shuffle history
func (s *Store) ToggleShuffle() {
	s.mu.Lock()
	s.shuffle = !s.shuffle
	s.shuffleHistory = nil
	s.mu.Unlock()
	s.emit(Event{Kind: EventSettings})
}

// UpdateSettings applies a partial settings update. Crossfade duration is
// clamped before use.
func (s *Store) UpdateSettings(patch SettingsPatch) {
	s.mu.Lock()
	if patch.CrossfadeEnabled != nil {
		s.settings.Crossfade.Enabled = *patch.CrossfadeEnabled
	}
	if patch.CrossfadeDuration != nil {
		s.settings.Crossfade.Duration = clampCrossfadeDuration(*patch.CrossfadeDuration)
	}
	if patch.Gapless != nil {
		s.settings.Gapless = *patch.Gapless
	}
	if patch.Autoplay != nil {
		s.settings.Autoplay = *patch.Autoplay
	}
	if patch.NormalizeVolume != nil {
		s.settings.NormalizeVolume = *patch.NormalizeVolume
	}
	if patch.ReplayGain != nil {
		s.settings.ReplayGain = *patch.ReplayGain
	}
	s.mu.Unlock()
	s.emit(Event{Kind: EventSettings})
}

// SetProgress records time, duration and buffered percentage as measured
// by the engine
func (s *Store) SetProgress(currentTime, duration, buffered float64) {
	s.mu.Lock()
	s.currentTime = currentTime
	if duration > 0 {
		s.duration = duration
	}
	s.buffered = buffered
	s.mu.Unlock()
}

// SetError records an engine-reported error for UI display
func (s *Store) SetError(msg string) {
	s.mu.Lock()
	s.lastError = msg
	s.mu.Unlock()
}

// ClearError clears the error state
func (s *Store) ClearError() {
	s.mu.Lock()
	s.lastError = ""
	s.mu.Unlock()
}

// AddToHistory appends a playback record, keeping the history bounded
func (s *Store) AddToHistory(entry HistoryEntry) {
	s.mu.Lock()
	s.history = append(s.history, entry)
	if len(s.history) > historyLimit {
		s.history = s.history[len(s.history)-historyLimit:]
	}
	s.mu.Unlock()
}

// SaveResumePosition records a resume position for a track. Positions at
// or below the save threshold are ignored.
func (s *Store) SaveResumePosition(trackID string, position float64) {
	if trackID == "" || position <= resumeSaveThreshold {
		return
	}
	s.mu.Lock()
	s.resumePositions[trackID] = position
	s.mu.Unlock()
}

// ClearResumePosition drops the resume position for a track, typically
// after it played to completion
func (s *Store) ClearResumePosition(trackID string) {
	s.mu.Lock()
	delete(s.resumePositions, trackID)
	s.mu.Unlock()
}

// SetOffline flips the offline state. Returning online refreshes the
// last-online timestamp. No event fires unless the state actually
// changed.
func (s *Store) SetOffline(offline bool) {
	s.mu.Lock()
	changed := s.offline.IsOffline != offline
	s.offline.IsOffline = offline
	if !offline {
		s.offline.LastOnlineAt = time.Now()
	}
	s.mu.Unlock()

	if changed {
		s.emit(Event{Kind: EventOffline, Offline: offline})
	}
}

// MarkCached records that a track is available offline
func (s *Store) MarkCached(trackID string) {
	s.mu.Lock()
	s.offline.CachedTracks[trackID] = struct{}{}
	s.mu.Unlock()
}

// UnmarkCached removes a track from the offline index
func (s *Store) UnmarkCached(trackID string) {
	s.mu.Lock()
	delete(s.offline.CachedTracks, trackID)
	s.mu.Unlock()
}

// IsCached reports whether a track is available offline
func (s *Store) IsCached(trackID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.offline.CachedTracks[trackID]
	return ok
}

// IsOffline reports the current connectivity state
func (s *Store) IsOffline() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.offline.IsOffline
}
