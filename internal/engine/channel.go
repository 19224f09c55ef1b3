package engine

import (
	"sync"

	"github.com/resona/resona-go/internal/player"
)

// channelState tracks what a playback channel is doing
type channelState int

const (
	channelIdle channelState = iota
	channelLoading
	channelReady
	channelPlaying
	channelPaused
	channelFailed
)

// channel pairs an audio output with the track it carries.
// generation stamps each load request; a retry whose generation no
// longer matches the engine's counter belongs to an abandoned load
// and must not touch the output.
type channel struct {
	out Output

	mu         sync.Mutex
	state      channelState
	generation uint64
	track      *player.Track
	source     string
}

func (c *channel) setLoading(gen uint64, track player.Track) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = channelLoading
	c.generation = gen
	t := track
	c.track = &t
	c.source = ""
}

func (c *channel) setReady(gen uint64, source string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.generation != gen {
		return false
	}
	c.state = channelReady
	c.source = source
	return true
}

func (c *channel) setFailed(gen uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.generation != gen {
		return false
	}
	c.state = channelFailed
	return true
}

func (c *channel) gen() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generation
}

func (c *channel) setState(s channelState) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

func (c *channel) snapshot() (channelState, uint64, *player.Track) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state, c.generation, c.track
}

// holds reports whether the channel carries the given track in a
// usable state
func (c *channel) holds(trackID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.track == nil || c.track.ID != trackID {
		return false
	}
	return c.state == channelReady || c.state == channelPlaying || c.state == channelPaused || c.state == channelLoading
}

// trackState returns the channel state for the given track, or false
// if the channel carries a different track. Callers that need to act
// on the state must use this single locked read rather than pairing
// holds with snapshot.
func (c *channel) trackState(trackID string) (channelState, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.track == nil || c.track.ID != trackID {
		return channelIdle, false
	}
	return c.state, true
}

func (c *channel) reset() {
	c.mu.Lock()
	c.state = channelIdle
	c.track = nil
	c.source = ""
	c.mu.Unlock()
	c.out.Stop()
}
