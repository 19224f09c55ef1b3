package player

// QueuePosition selects where AddToQueue inserts
type QueuePosition string

const (
	// PositionNext inserts directly after the current track
	PositionNext QueuePosition = "next"
	// PositionEnd appends to the end of the queue
	PositionEnd QueuePosition = "end"
)

// SetQueue replaces the queue contents. The track at startIndex becomes
// current; pass -1 to clear the current track. Shuffle history is
// invalidated by any queue replacement.
func (s *Store) SetQueue(tracks []Track, startIndex int, source TrackSource) {
	s.mu.Lock()
	s.saveResumeLocked()

	s.queue = make([]QueueItem, 0, len(tracks))
	for _, t := range tracks {
		s.queue = append(s.queue, NewQueueItem(t, source))
	}
	s.shuffleHistory = nil

	var events []Event
	if startIndex >= 0 && startIndex < len(s.queue) {
		s.currentIndex = startIndex
		events = s.setCurrentTrackLocked(&s.queue[startIndex].Track, true)
	} else {
		s.currentIndex = -1
		events = s.setCurrentTrackLocked(nil, false)
	}
	events = append(events, Event{Kind: EventQueue})
	s.mu.Unlock()

	s.emit(events...)
}

// AddToQueue inserts a track. PositionNext places it directly after the
// current index without changing which track is current.
func (s *Store) AddToQueue(track Track, position QueuePosition, source TrackSource) {
	s.mu.Lock()
	item := NewQueueItem(track, source)

	if position == PositionNext && s.currentIndex >= 0 && s.currentIndex < len(s.queue) {
		at := s.currentIndex + 1
		s.queue = append(s.queue, QueueItem{})
		copy(s.queue[at+1:], s.queue[at:])
		s.queue[at] = item

		// Keep shuffle history pointing at the same items.
		for i, idx := range s.shuffleHistory {
			if idx >= at {
				s.shuffleHistory[i] = idx + 1
			}
		}
	} else {
		s.queue = append(s.queue, item)
	}
	s.mu.Unlock()

	s.emit(Event{Kind: EventQueue})
}

// AddUpNext pushes a track onto the priority side-queue, consumed before
// the main queue
func (s *Store) AddUpNext(track Track, source TrackSource) {
	s.mu.Lock()
	s.upNext = append(s.upNext, NewQueueItem(track, source))
	s.mu.Unlock()

	s.emit(Event{Kind: EventQueue})
}

// RemoveFromQueue removes the slot with the given queue ID. Removing the
// currently playing slot falls back to the item now at the same index,
// the last item if the index overflowed, or clears playback entirely.
func (s *Store) RemoveFromQueue(queueID string) {
	s.mu.Lock()
	at := -1
	for i, item := range s.queue {
		if item.QueueID == queueID {
			at = i
			break
		}
	}
	if at < 0 {
		s.mu.Unlock()
		return
	}

	s.queue = append(s.queue[:at], s.queue[at+1:]...)

	// Drop the removed index from shuffle history and shift the rest.
	filtered := s.shuffleHistory[:0]
	for _, idx := range s.shuffleHistory {
		switch {
		case idx == at:
			// removed
		case idx > at:
			filtered = append(filtered, idx-1)
		default:
			filtered = append(filtered, idx)
		}
	}
	s.shuffleHistory = filtered

	var events []Event
	switch {
	case at < s.currentIndex:
		s.currentIndex--
	case at == s.currentIndex:
		if len(s.queue) == 0 {
			s.currentIndex = -1
			events = s.setCurrentTrackLocked(nil, false)
		} else {
			if s.currentIndex >= len(s.queue) {
				s.currentIndex = len(s.queue) - 1
			}
			events = s.setCurrentTrackLocked(&s.queue[s.currentIndex].Track, s.isPlaying)
		}
	}
	events = append(events, Event{Kind: EventQueue})
	s.mu.Unlock()

	s.emit(events...)
}

// ReorderQueue moves the slot at from to position to. The current index
// shifts by exactly the displacement caused by the move.
func (s *Store) ReorderQueue(from, to int) {
	s.mu.Lock()
	if from < 0 || from >= len(s.queue) || to < 0 || to >= len(s.queue) || from == to {
		s.mu.Unlock()
		return
	}

	item := s.queue[from]
	s.queue = append(s.queue[:from], s.queue[from+1:]...)
	s.queue = append(s.queue[:to], append([]QueueItem{item}, s.queue[to:]...)...)

	switch {
	case from == s.currentIndex:
		s.currentIndex = to
	case from < s.currentIndex && to >= s.currentIndex:
		s.currentIndex--
	case from > s.currentIndex && to <= s.currentIndex:
		s.currentIndex++
	}

	// Index positions are no longer meaningful to the shuffle cycle.
	s.shuffleHistory = nil
	s.mu.Unlock()

	s.emit(Event{Kind: EventQueue})
}

// ClearQueue empties the queue and the up-next side-queue and stops
// playback
func (s *Store) ClearQueue() {
	s.mu.Lock()
	s.saveResumeLocked()
	s.queue = nil
	s.upNext = nil
	s.shuffleHistory = nil
	s.currentIndex = -1
	events := s.setCurrentTrackLocked(nil, false)
	events = append(events, Event{Kind: EventQueue})
	s.mu.Unlock()

	s.emit(events...)
}
