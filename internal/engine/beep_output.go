//go:build (linux && cgo) || windows || darwin

package engine

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"math"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/effects"
	"github.com/gopxl/beep/v2/flac"
	"github.com/gopxl/beep/v2/mp3"
	"github.com/gopxl/beep/v2/speaker"
	"github.com/gopxl/beep/v2/wav"

	"github.com/resona/resona-go/internal/stream"
)

// AudioAvailable indicates whether audio playback is supported in this build.
const AudioAvailable = true

// speakerRate is the mixer sample rate; decoded audio is resampled to it
const speakerRate = beep.SampleRate(44100)

var (
	speakerOnce sync.Once
	speakerErr  error
)

// initSpeaker opens the audio device once for the whole process. Both
// engine channels play into the same mixer, which is what lets a
// crossfade overlap them.
func initSpeaker() error {
	speakerOnce.Do(func() {
		speakerErr = speaker.Init(speakerRate, speakerRate.N(time.Second/10))
	})
	return speakerErr
}

// BeepOutput plays audio through the beep speaker.
// Sources are fetched fully into memory before decoding; seeking and
// crossfading need a seekable stream and track files are small.
type BeepOutput struct {
	mu sync.Mutex

	httpClient *http.Client
	streamer   beep.StreamSeekCloser
	format     beep.Format
	ctrl       *beep.Ctrl
	volume     *effects.Volume
	gain       float64
	source     string
	ended      bool
	playing    bool
}

// NewBeepOutput creates a speaker-backed audio output
func NewBeepOutput() (Output, error) {
	return &BeepOutput{
		httpClient: stream.GetAudioClient(0),
		gain:       1.0,
	}, nil
}

// fetch reads the full source into memory
func (o *BeepOutput) fetch(ctx context.Context, source string) ([]byte, error) {
	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, source, nil)
		if err != nil {
			return nil, err
		}
		resp, err := o.httpClient.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("audio fetch returned status %d", resp.StatusCode)
		}
		return io.ReadAll(resp.Body)
	}
	return os.ReadFile(source)
}

// decode picks a decoder from the source extension
func decode(source string, data []byte) (beep.StreamSeekCloser, beep.Format, error) {
	ext := strings.ToLower(filepath.Ext(strippedQuery(source)))
	reader := nopCloser{bytes.NewReader(data)}
	switch ext {
	case ".flac":
		return flac.Decode(reader)
	case ".wav":
		return wav.Decode(reader)
	default:
		return mp3.Decode(reader)
	}
}

func strippedQuery(source string) string {
	if i := strings.IndexByte(source, '?'); i >= 0 {
		return source[:i]
	}
	return source
}

// Load fetches, decodes and stages the source paused at startAt
func (o *BeepOutput) Load(ctx context.Context, source string, startAt float64) error {
	if err := initSpeaker(); err != nil {
		return err
	}

	data, err := o.fetch(ctx, source)
	if err != nil {
		return err
	}

	streamer, format, err := decode(source, data)
	if err != nil {
		return err
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	o.stopLocked()

	o.streamer = streamer
	o.format = format
	o.source = source
	o.ended = false
	o.playing = false

	if startAt > 0 {
		if err := streamer.Seek(format.SampleRate.N(time.Duration(startAt * float64(time.Second)))); err != nil {
			streamer.Close()
			o.streamer = nil
			return err
		}
	}

	resampled := beep.Resample(4, format.SampleRate, speakerRate, streamer)
	o.ctrl = &beep.Ctrl{Streamer: resampled, Paused: true}
	o.volume = &effects.Volume{
		Streamer: o.ctrl,
		Base:     2,
		Volume:   gainToVolume(o.gain),
		Silent:   o.gain <= 0,
	}

	speaker.Play(beep.Seq(o.volume, beep.Callback(func() {
		o.mu.Lock()
		o.ended = true
		o.playing = false
		o.mu.Unlock()
	})))

	return nil
}

// gainToVolume maps a linear [0,1] gain onto beep's exponential scale
func gainToVolume(gain float64) float64 {
	if gain <= 0 {
		return 0
	}
	return math.Log2(gain)
}

func (o *BeepOutput) Play() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.ctrl == nil {
		return
	}
	speaker.Lock()
	o.ctrl.Paused = false
	speaker.Unlock()
	o.playing = true
}

func (o *BeepOutput) Pause() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.ctrl == nil {
		return
	}
	speaker.Lock()
	o.ctrl.Paused = true
	speaker.Unlock()
	o.playing = false
}

func (o *BeepOutput) Stop() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.stopLocked()
}

func (o *BeepOutput) stopLocked() {
	if o.ctrl != nil {
		speaker.Lock()
		o.ctrl.Paused = true
		speaker.Unlock()
	}
	if o.streamer != nil {
		o.streamer.Close()
		o.streamer = nil
	}
	o.ctrl = nil
	o.volume = nil
	o.source = ""
	o.playing = false
	o.ended = false
}

func (o *BeepOutput) Seek(pos float64) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.streamer == nil {
		return nil
	}
	speaker.Lock()
	defer speaker.Unlock()
	o.ended = false
	return o.streamer.Seek(o.format.SampleRate.N(time.Duration(pos * float64(time.Second))))
}

func (o *BeepOutput) SetGain(gain float64) {
	if gain < 0 {
		gain = 0
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	o.gain = gain
	if o.volume == nil {
		return
	}
	speaker.Lock()
	o.volume.Volume = gainToVolume(gain)
	o.volume.Silent = gain <= 0
	speaker.Unlock()
}

func (o *BeepOutput) Gain() float64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.gain
}

func (o *BeepOutput) Position() float64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.streamer == nil {
		return 0
	}
	speaker.Lock()
	pos := o.streamer.Position()
	speaker.Unlock()
	return o.format.SampleRate.D(pos).Seconds()
}

func (o *BeepOutput) Duration() float64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.streamer == nil {
		return 0
	}
	return o.format.SampleRate.D(o.streamer.Len()).Seconds()
}

// Buffered reports fully buffered: the whole file is in memory
func (o *BeepOutput) Buffered() float64 {
	return o.Duration()
}

func (o *BeepOutput) Ended() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.ended
}

func (o *BeepOutput) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.stopLocked()
	return nil
}

// nopCloser wraps a bytes.Reader to implement io.ReadCloser
type nopCloser struct {
	*bytes.Reader
}

func (nopCloser) Close() error { return nil }
