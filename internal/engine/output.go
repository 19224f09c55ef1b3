package engine

import "context"

// Output is one audio playback sink. Implementations decode a source
// (local file path or HTTP URL) and play it; the engine drives two of
// them so one can preload or fade in while the other plays.
type Output interface {
	// Load prepares the source for playback, positioned at startAt
	// seconds. It replaces whatever was loaded before.
	Load(ctx context.Context, source string, startAt float64) error

	Play()
	Pause()
	// Stop halts playback and discards the loaded source
	Stop()

	// Seek repositions playback within the loaded source
	Seek(pos float64) error

	// SetGain scales output amplitude in [0, 1]
	SetGain(gain float64)
	Gain() float64

	// Position returns the playback position in seconds
	Position() float64
	// Duration returns the loaded source length in seconds, 0 if unknown
	Duration() float64
	// Buffered returns the seconds of audio buffered ahead of Position
	Buffered() float64
	// Ended reports whether the loaded source played to its end
	Ended() bool

	Close() error
}

// OutputFactory builds playback sinks. Injectable so tests and
// headless builds can run without an audio device.
type OutputFactory func() (Output, error)
