package player

import (
	"fmt"
	"sync/atomic"
	"time"
)

// Track represents a playable track
type Track struct {
	ID         string  `json:"id"`
	Title      string  `json:"title"`
	Artist     string  `json:"artist"`
	Album      string  `json:"album"`
	StreamRef  string  `json:"stream_ref"` // storage reference or absolute URL
	ArtworkURL string  `json:"artwork_url,omitempty"`
	Duration   float64 `json:"duration"` // nominal duration in seconds
}

// TrackSource describes how a queue item was added
type TrackSource string

const (
	SourceUser     TrackSource = "user"
	SourceAutoplay TrackSource = "autoplay"
	SourceRadio    TrackSource = "radio"
	SourcePlaylist TrackSource = "playlist"
)

// QueueItem is a track plus queue-slot metadata. The slot ID is distinct
// from track identity: the same track may occupy multiple slots.
type QueueItem struct {
	QueueID string      `json:"queue_id"`
	Track   Track       `json:"track"`
	AddedAt time.Time   `json:"added_at"`
	Source  TrackSource `json:"source"`
}

// RepeatMode controls queue repetition
type RepeatMode string

const (
	RepeatNone RepeatMode = "none"
	RepeatOne  RepeatMode = "one"
	RepeatAll  RepeatMode = "all"
)

// HistoryEntry is an immutable record of a finished play
type HistoryEntry struct {
	Track        Track     `json:"track"`
	PlayedAt     time.Time `json:"played_at"`
	PlayDuration float64   `json:"play_duration"` // seconds actually played
	Completed    bool      `json:"completed"`     // played past 80% of nominal duration
}

// CrossfadeSettings controls the crossfade transition
type CrossfadeSettings struct {
	Enabled  bool    `json:"enabled"`
	Duration float64 `json:"duration"` // seconds, clamped to [0, MaxCrossfadeDuration]
}

// MaxCrossfadeDuration is the upper bound for crossfade duration in seconds
const MaxCrossfadeDuration = 12.0

// Settings holds user-facing playback settings
type Settings struct {
	Crossfade       CrossfadeSettings `json:"crossfade"`
	Gapless         bool              `json:"gapless"`
	Autoplay        bool              `json:"autoplay"`
	NormalizeVolume bool              `json:"normalize_volume"`
	ReplayGain      bool              `json:"replay_gain"`
}

// DefaultSettings returns the default playback settings
func DefaultSettings() Settings {
	return Settings{
		Crossfade: CrossfadeSettings{Enabled: false, Duration: 3},
		Gapless:   true,
		Autoplay:  true,
	}
}

// SettingsPatch is a partial settings update; nil fields are left unchanged
type SettingsPatch struct {
	CrossfadeEnabled  *bool
	CrossfadeDuration *float64
	Gapless           *bool
	Autoplay          *bool
	NormalizeVolume   *bool
	ReplayGain        *bool
}

// OfflineState tracks connectivity and the offline cache index
type OfflineState struct {
	IsOffline    bool                `json:"is_offline"`
	CachedTracks map[string]struct{} `json:"-"`
	LastOnlineAt time.Time           `json:"last_online_at"`
}

var queueSlotSeq uint64

// newQueueID returns a process-unique queue slot identifier
func newQueueID() string {
	n := atomic.AddUint64(&queueSlotSeq, 1)
	return fmt.Sprintf("q-%d-%d", time.Now().UnixNano(), n)
}

// NewQueueItem wraps a track in a fresh queue slot
func NewQueueItem(track Track, source TrackSource) QueueItem {
	return QueueItem{
		QueueID: newQueueID(),
		Track:   track,
		AddedAt: time.Now(),
		Source:  source,
	}
}

func clampCrossfadeDuration(d float64) float64 {
	if d < 0 {
		return 0
	}
	if d > MaxCrossfadeDuration {
		return MaxCrossfadeDuration
	}
	return d
}

func clampVolume(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
