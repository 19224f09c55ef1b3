//go:build !((linux && cgo) || windows || darwin)

package engine

import "context"

// AudioAvailable indicates whether audio playback is supported in this build.
// Audio requires cgo for the native sound libraries on this platform.
const AudioAvailable = false

// BeepOutput is a no-op audio output for builds without sound support.
// The playback state machine still runs; nothing is audible.
type BeepOutput struct{}

// NewBeepOutput creates a no-op audio output
func NewBeepOutput() (Output, error) {
	return &BeepOutput{}, nil
}

func (o *BeepOutput) Load(ctx context.Context, source string, startAt float64) error { return nil }
func (o *BeepOutput) Play()                {}
func (o *BeepOutput) Pause()               {}
func (o *BeepOutput) Stop()                {}
func (o *BeepOutput) Seek(pos float64) error { return nil }
func (o *BeepOutput) SetGain(gain float64) {}
func (o *BeepOutput) Gain() float64        { return 1.0 }
func (o *BeepOutput) Position() float64    { return 0 }
func (o *BeepOutput) Duration() float64    { return 0 }
func (o *BeepOutput) Buffered() float64    { return 0 }
func (o *BeepOutput) Ended() bool          { return false }
func (o *BeepOutput) Close() error         { return nil }
