package player

import (
	"time"
)

// persistedHistoryLimit bounds the history subset written to storage
const persistedHistoryLimit = 20

// PersistedState is the restricted subset of store state that survives
// process restarts, serialized as a single keyed record.
type PersistedState struct {
	Volume          float64            `json:"volume"`
	Muted           bool               `json:"muted"`
	Repeat          RepeatMode         `json:"repeat"`
	Shuffle         bool               `json:"shuffle"`
	Settings        Settings           `json:"settings"`
	ResumePositions map[string]float64 `json:"resume_positions"`
	History         []HistoryEntry     `json:"history"`
	IsOffline       bool               `json:"is_offline"`
	CachedTracks    []string           `json:"cached_tracks"`
	LastOnlineAt    time.Time          `json:"last_online_at"`
}

// ExportPersisted snapshots the persisted subset of the current state
func (s *Store) ExportPersisted() PersistedState {
	s.mu.RLock()
	defer s.mu.RUnlock()

	resume := make(map[string]float64, len(s.resumePositions))
	for id, pos := range s.resumePositions {
		resume[id] = pos
	}

	history := s.history
	if len(history) > persistedHistoryLimit {
		history = history[len(history)-persistedHistoryLimit:]
	}
	historyCopy := make([]HistoryEntry, len(history))
	copy(historyCopy, history)

	cached := make([]string, 0, len(s.offline.CachedTracks))
	for id := range s.offline.CachedTracks {
		cached = append(cached, id)
	}

	return PersistedState{
		Volume:          s.volume,
		Muted:           s.muted,
		Repeat:          s.repeat,
		Shuffle:         s.shuffle,
		Settings:        s.settings,
		ResumePositions: resume,
		History:         historyCopy,
		IsOffline:       s.offline.IsOffline,
		CachedTracks:    cached,
		LastOnlineAt:    s.offline.LastOnlineAt,
	}
}

// ApplyPersisted merges a previously persisted snapshot into the store.
// The persisted subset is narrower than runtime state, so this merges
// field by field and never resets queue or playback progress.
func (s *Store) ApplyPersisted(p PersistedState) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.volume = clampVolume(p.Volume)
	if s.volume > 0 {
		s.preMuteVol = s.volume
	}
	s.muted = p.Muted

	switch p.Repeat {
	case RepeatNone, RepeatOne, RepeatAll:
		s.repeat = p.Repeat
	}
	s.shuffle = p.Shuffle
	s.shuffleHistory = nil

	s.settings = p.Settings
	s.settings.Crossfade.Duration = clampCrossfadeDuration(s.settings.Crossfade.Duration)

	for id, pos := range p.ResumePositions {
		s.resumePositions[id] = pos
	}

	if len(p.History) > 0 {
		s.history = append(s.history, p.History...)
		if len(s.history) > historyLimit {
			s.history = s.history[len(s.history)-historyLimit:]
		}
	}

	s.offline.IsOffline = p.IsOffline
	for _, id := range p.CachedTracks {
		s.offline.CachedTracks[id] = struct{}{}
	}
	if !p.LastOnlineAt.IsZero() {
		s.offline.LastOnlineAt = p.LastOnlineAt
	}
}
