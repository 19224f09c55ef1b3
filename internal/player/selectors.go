package player

// PlaybackStatus is a narrow read-only projection of playback state
type PlaybackStatus struct {
	Track       *Track
	IsPlaying   bool
	CurrentTime float64
	Duration    float64
	Buffered    float64
	Error       string
}

// QueueState is a read-only projection of queue contents
type QueueState struct {
	Items        []QueueItem
	UpNext       []QueueItem
	CurrentIndex int
}

// AudioControls is a read-only projection of volume state
type AudioControls struct {
	Volume float64
	Muted  bool
}

// PlaybackControls is a read-only projection of playback mode state
type PlaybackControls struct {
	Repeat   RepeatMode
	Shuffle  bool
	Settings Settings
}

// Status returns the current playback status
func (s *Store) Status() PlaybackStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var track *Track
	if s.current != nil {
		t := *s.current
		track = &t
	}
	return PlaybackStatus{
		Track:       track,
		IsPlaying:   s.isPlaying,
		CurrentTime: s.currentTime,
		Duration:    s.duration,
		Buffered:    s.buffered,
		Error:       s.lastError,
	}
}

// Queue returns a copy of the queue contents
func (s *Store) Queue() QueueState {
	s.mu.RLock()
	defer s.mu.RUnlock()

	items := make([]QueueItem, len(s.queue))
	copy(items, s.queue)
	upNext := make([]QueueItem, len(s.upNext))
	copy(upNext, s.upNext)

	return QueueState{
		Items:        items,
		UpNext:       upNext,
		CurrentIndex: s.currentIndex,
	}
}

// Audio returns the current volume state
func (s *Store) Audio() AudioControls {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return AudioControls{Volume: s.volume, Muted: s.muted}
}

// Controls returns the current playback mode state
func (s *Store) Controls() PlaybackControls {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return PlaybackControls{
		Repeat:   s.repeat,
		Shuffle:  s.shuffle,
		Settings: s.settings,
	}
}

// History returns a copy of the playback history, most recent last
func (s *Store) History() []HistoryEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]HistoryEntry, len(s.history))
	copy(out, s.history)
	return out
}

// ResumePosition returns the saved resume position for a track
func (s *Store) ResumePosition(trackID string) (float64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	pos, ok := s.resumePositions[trackID]
	return pos, ok
}

// GetNextTrack previews what Next would play without mutating state.
// Under shuffle the preview is deterministic: it returns the first index
// not yet visited in the shuffle cycle, while Next itself picks randomly
// among them. Queue preview UIs want a stable answer.
func (s *Store) GetNextTrack() *Track {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.upNext) > 0 {
		t := s.upNext[0].Track
		return &t
	}

	if s.repeat == RepeatOne && s.current != nil {
		t := *s.current
		return &t
	}

	if len(s.queue) == 0 {
		return s.previewAutoplayLocked()
	}

	if s.shuffle {
		if candidates := s.unvisitedIndicesLocked(); len(candidates) > 0 {
			t := s.queue[candidates[0]].Track
			return &t
		}
		if s.repeat == RepeatAll {
			for i := range s.queue {
				if i != s.currentIndex || len(s.queue) == 1 {
					t := s.queue[i].Track
					return &t
				}
			}
		}
		return s.previewAutoplayLocked()
	}

	if s.currentIndex+1 < len(s.queue) {
		t := s.queue[s.currentIndex+1].Track
		return &t
	}
	if s.repeat == RepeatAll {
		t := s.queue[0].Track
		return &t
	}
	return s.previewAutoplayLocked()
}

// previewAutoplayLocked previews the autoplay continuation pick.
// Deterministic: first cached similar track. Caller holds s.mu.
func (s *Store) previewAutoplayLocked() *Track {
	if !s.settings.Autoplay || s.current == nil {
		return nil
	}
	if pool := s.similarCache[s.current.ID]; len(pool) > 0 {
		t := pool[0]
		return &t
	}
	return nil
}

// GetPreviousTrack previews what Previous(manual=true) would play without
// mutating state
func (s *Store) GetPreviousTrack() *Track {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.shuffle {
		if n := len(s.shuffleHistory); n > 0 {
			prev := s.shuffleHistory[n-1]
			if prev >= 0 && prev < len(s.queue) {
				t := s.queue[prev].Track
				return &t
			}
		}
		return nil
	}

	if s.currentIndex > 0 {
		t := s.queue[s.currentIndex-1].Track
		return &t
	}
	if s.repeat == RepeatAll && len(s.queue) > 0 {
		t := s.queue[len(s.queue)-1].Track
		return &t
	}
	return nil
}

// CanPlayNext reports whether Next would start a different or restarted
// track rather than stopping
func (s *Store) CanPlayNext() bool {
	return s.GetNextTrack() != nil
}

// CanPlayPrevious reports whether Previous(manual=true) would move to
// another track
func (s *Store) CanPlayPrevious() bool {
	return s.GetPreviousTrack() != nil
}

// GetTimeRemaining returns seconds left on the current track
func (s *Store) GetTimeRemaining() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.duration <= 0 {
		return 0
	}
	remaining := s.duration - s.currentTime
	if remaining < 0 {
		return 0
	}
	return remaining
}

// SimilarFor returns the cached similar tracks for a track ID
func (s *Store) SimilarFor(trackID string) []Track {
	s.mu.RLock()
	defer s.mu.RUnlock()
	pool := s.similarCache[trackID]
	out := make([]Track, len(pool))
	copy(out, pool)
	return out
}
