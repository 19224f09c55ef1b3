package player

// EventKind identifies a state-change notification
type EventKind string

const (
	// EventTrackChanged fires when the current track changes
	EventTrackChanged EventKind = "track_changed"
	// EventPlayState fires when playback is started or paused
	EventPlayState EventKind = "play_state"
	// EventSeek fires when a seek is requested
	EventSeek EventKind = "seek"
	// EventVolume fires when volume or mute changes
	EventVolume EventKind = "volume"
	// EventSettings fires when playback settings change
	EventSettings EventKind = "settings"
	// EventQueue fires when the queue contents change
	EventQueue EventKind = "queue"
	// EventOffline fires when connectivity changes
	EventOffline EventKind = "offline"
)

// Event is a state-change notification delivered to subscribers
type Event struct {
	Kind EventKind

	// Track is set for EventTrackChanged
	Track *Track
	// StartPlaying is set for EventTrackChanged
	StartPlaying bool
	// ResumeAt is the saved resume position for EventTrackChanged
	ResumeAt float64

	// Playing is set for EventPlayState
	Playing bool

	// Position is set for EventSeek
	Position float64

	// Volume and Muted are set for EventVolume
	Volume float64
	Muted  bool

	// Offline is set for EventOffline
	Offline bool
}

// Subscribe registers an event channel. Events that cannot be delivered
// without blocking are dropped. The returned function unsubscribes.
func (s *Store) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = 16
	}
	ch := make(chan Event, buffer)

	s.mu.Lock()
	id := s.nextSubID
	s.nextSubID++
	s.subscribers[id] = ch
	s.mu.Unlock()

	unsubscribe := func() {
		s.mu.Lock()
		if _, ok := s.subscribers[id]; ok {
			delete(s.subscribers, id)
			close(ch)
		}
		s.mu.Unlock()
	}
	return ch, unsubscribe
}

// emit delivers events to all subscribers without blocking.
// Must be called without holding s.mu. The read lock is held across
// the sends so an unsubscribe cannot close a channel mid-delivery;
// the sends never block, so the lock is held only briefly.
func (s *Store) emit(events ...Event) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, ch := range s.subscribers {
		for _, ev := range events {
			select {
			case ch <- ev:
			default:
				// Slow subscriber, drop
			}
		}
	}
}
