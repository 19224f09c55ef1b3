package engine

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/resona/resona-go/internal/config"
	"github.com/resona/resona-go/internal/monitoring"
	"github.com/resona/resona-go/internal/notify"
	"github.com/resona/resona-go/internal/player"
)

// completionThreshold marks a play as completed once this share of the
// track has been heard
const completionThreshold = 0.8

// Resolver turns a track into a playable URL
type Resolver interface {
	Resolve(ctx context.Context, track player.Track) (string, error)
}

// AudioCache answers for locally stored audio
type AudioCache interface {
	Resolve(trackID string) (string, bool)
	Download(ctx context.Context, track player.Track, url string) error
}

// Engine drives audio playback for the state store. It owns two
// playback channels: the active one carries the audible track, the
// other preloads the upcoming track for gapless starts and carries the
// incoming side of a crossfade.
type Engine struct {
	store    *player.Store
	resolver Resolver
	cache    AudioCache
	notifier notify.Notifier
	logger   *zap.Logger
	cfg      config.PlaybackConfig

	channels [2]*channel
	mu       sync.Mutex // guards active
	active   int

	gen           atomic.Uint64
	transitioning atomic.Bool
	cacheOnPlay   bool
	retryBackoff  time.Duration

	// outgoing-track bookkeeping for history entries
	histMu    sync.Mutex
	lastTrack *player.Track
	lastPos   float64
	lastDur   float64

	events <-chan player.Event
	unsub  func()
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// EngineOption configures an Engine
type EngineOption func(*Engine)

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) EngineOption {
	return func(e *Engine) { e.logger = logger }
}

// WithNotifier sets the notice sink
func WithNotifier(n notify.Notifier) EngineOption {
	return func(e *Engine) { e.notifier = n }
}

// WithCache wires the offline audio cache
func WithCache(c AudioCache) EngineOption {
	return func(e *Engine) { e.cache = c }
}

// WithCacheOnPlay enables best-effort caching of streamed tracks
func WithCacheOnPlay(enabled bool) EngineOption {
	return func(e *Engine) { e.cacheOnPlay = enabled }
}

// New creates a playback engine. The factory is called twice, once per
// channel.
func New(store *player.Store, resolver Resolver, factory OutputFactory, cfg config.PlaybackConfig, opts ...EngineOption) (*Engine, error) {
	e := &Engine{
		store:        store,
		resolver:     resolver,
		notifier:     notify.NopNotifier{},
		logger:       zap.NewNop(),
		cfg:          cfg,
		retryBackoff: 500 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(e)
	}

	for i := range e.channels {
		out, err := factory()
		if err != nil {
			for j := 0; j < i; j++ {
				e.channels[j].out.Close()
			}
			return nil, err
		}
		e.channels[i] = &channel{out: out}
	}
	return e, nil
}

// Start subscribes to the store and begins the playback loop
func (e *Engine) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	e.cancel = cancel
	e.events, e.unsub = e.store.Subscribe(64)

	e.wg.Add(1)
	go e.run(ctx)
}

// Stop halts the engine and releases both outputs
func (e *Engine) Stop() {
	if e.cancel != nil {
		e.cancel()
	}
	if e.unsub != nil {
		e.unsub()
	}
	e.wg.Wait()
	for _, ch := range e.channels {
		ch.out.Close()
	}
}

func (e *Engine) run(ctx context.Context) {
	defer e.wg.Done()

	tickMs := e.cfg.ProgressTickMs
	if tickMs <= 0 {
		tickMs = 250
	}
	ticker := time.NewTicker(time.Duration(tickMs) * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-e.events:
			if !ok {
				return
			}
			e.handleEvent(ctx, ev)
		case <-ticker.C:
			e.tick(ctx)
		}
	}
}

func (e *Engine) handleEvent(ctx context.Context, ev player.Event) {
	switch ev.Kind {
	case player.EventTrackChanged:
		e.handleTrackChanged(ctx, ev)
	case player.EventPlayState:
		e.handlePlayState(ev.Playing)
	case player.EventSeek:
		if err := e.activeChannel().out.Seek(ev.Position); err != nil {
			e.logger.Warn("Seek failed", zap.Float64("position", ev.Position), zap.Error(err))
		}
	case player.EventVolume:
		if !e.transitioning.Load() {
			gain := ev.Volume
			if ev.Muted {
				gain = 0
			}
			out := e.activeChannel().out
			if e.store.Controls().Settings.NormalizeVolume {
				e.rampGain(ctx, out, gain)
			} else {
				out.SetGain(gain)
			}
		}
	case player.EventOffline:
		e.handleConnectivity(ctx, ev.Offline)
	}
}

// handleConnectivity reacts to network transitions. Going offline is a
// degraded mode, not a stop: cached playback continues. Coming back
// online retries the current track if its load had failed.
func (e *Engine) handleConnectivity(ctx context.Context, offline bool) {
	if offline {
		e.notifier.Notify(notify.Warning("You're offline. Downloaded tracks are still available.", ""))
		return
	}

	e.notifier.Notify(notify.Info("Back online", ""))

	act := e.activeChannel()
	st, _, _ := act.snapshot()
	if st != channelFailed {
		return
	}
	status := e.store.Status()
	if status.Track == nil {
		return
	}
	e.logger.Info("Connectivity restored, retrying failed track",
		zap.String("track_id", status.Track.ID))
	e.loadAndPlay(ctx, act, *status.Track, status.CurrentTime, status.IsPlaying)
}

// rampGain steps the output gain toward target instead of jumping, to
// avoid an audible click when volume normalization is on
func (e *Engine) rampGain(ctx context.Context, out Output, target float64) {
	rampMs := e.cfg.VolumeRampMs
	if rampMs <= 0 {
		out.SetGain(target)
		return
	}

	const steps = 8
	from := out.Gain()
	interval := time.Duration(rampMs) * time.Millisecond / steps

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		for i := 1; i <= steps; i++ {
			out.SetGain(from + (target-from)*float64(i)/steps)
			if i == steps {
				return
			}
			select {
			case <-ctx.Done():
				return
			case <-time.After(interval):
			}
		}
	}()
}

func (e *Engine) handleTrackChanged(ctx context.Context, ev player.Event) {
	e.recordOutgoing()

	if ev.Track == nil {
		if !e.transitioning.Load() {
			for _, ch := range e.channels {
				ch.reset()
			}
		}
		return
	}

	e.setLast(*ev.Track)

	// During a crossfade the transition goroutine owns both channels;
	// it fired this change itself via Next.
	if e.transitioning.Load() {
		return
	}

	act := e.activeChannel()
	other := e.otherChannel()

	if st, ok := act.trackState(ev.Track.ID); ok {
		switch st {
		case channelLoading:
			// An in-flight load already targets this track
			return
		case channelReady, channelPlaying, channelPaused:
			// Same track restarting (repeat one)
			if err := act.out.Seek(0); err == nil {
				if ev.StartPlaying {
					act.out.Play()
					act.setState(channelPlaying)
				}
				return
			}
		}
	}

	if st, ok := other.trackState(ev.Track.ID); ok {
		switch st {
		case channelReady, channelPaused:
			// The inactive channel preloaded this track: gapless switch
			act.reset()
			e.swapActive()
			other.out.SetGain(e.effectiveGain())
			if ev.ResumeAt > 0 {
				other.out.Seek(ev.ResumeAt)
			}
			if ev.StartPlaying {
				other.out.Play()
				other.setState(channelPlaying)
			}
			return
		case channelLoading:
			// The preload is still resolving, so the channel cannot be
			// played yet. Load afresh: the generation bump supersedes
			// the in-flight preload, whose result is then discarded.
			act.reset()
			e.swapActive()
			e.loadAndPlay(ctx, other, *ev.Track, ev.ResumeAt, ev.StartPlaying)
			return
		}
	}

	act.out.Stop()
	e.loadAndPlay(ctx, act, *ev.Track, ev.ResumeAt, ev.StartPlaying)
}

func (e *Engine) handlePlayState(playing bool) {
	if e.transitioning.Load() {
		return
	}
	act := e.activeChannel()
	st, _, track := act.snapshot()
	if track == nil {
		return
	}
	if playing {
		if st == channelReady || st == channelPaused {
			act.out.SetGain(e.effectiveGain())
			act.out.Play()
			act.setState(channelPlaying)
		}
	} else if st == channelPlaying {
		act.out.Pause()
		act.setState(channelPaused)
	}
}

// tick reports progress and drives end-of-track transitions
func (e *Engine) tick(ctx context.Context) {
	ch := e.currentTrackChannel()
	if ch == nil {
		return
	}
	st, _, track := ch.snapshot()
	if track == nil || (st != channelPlaying && st != channelPaused) {
		return
	}

	pos := ch.out.Position()
	dur := ch.out.Duration()
	e.store.SetProgress(pos, dur, ch.out.Buffered())
	e.histMu.Lock()
	e.lastPos, e.lastDur = pos, dur
	e.histMu.Unlock()

	if st != channelPlaying || e.transitioning.Load() {
		return
	}

	if ch.out.Ended() {
		e.onTrackEnd(*track, pos, dur)
		return
	}

	if dur <= 0 {
		return
	}
	remaining := dur - pos
	settings := e.store.Controls().Settings
	next := e.store.GetNextTrack()
	if next == nil {
		return
	}

	if settings.Crossfade.Enabled && settings.Crossfade.Duration > 0 &&
		remaining > 0 && remaining <= settings.Crossfade.Duration {
		e.startCrossfade(ctx, *next)
		return
	}

	preloadWindow := e.cfg.PreloadSeconds
	if preloadWindow <= 0 {
		preloadWindow = 20
	}
	if settings.Gapless && remaining <= preloadWindow {
		e.preload(ctx, *next)
	}
}

// onTrackEnd advances playback after a track finished naturally
func (e *Engine) onTrackEnd(track player.Track, pos, dur float64) {
	completed := dur > 0 && pos/dur > completionThreshold
	e.recordOutgoing()

	e.store.Next(false)
	if completed {
		// A finished listen starts over next time, not at the last
		// few seconds.
		e.store.ClearResumePosition(track.ID)
	}
}

// recordOutgoing appends a history entry for the track being left
func (e *Engine) recordOutgoing() {
	e.histMu.Lock()
	track := e.lastTrack
	pos, dur := e.lastPos, e.lastDur
	e.lastTrack = nil
	e.histMu.Unlock()

	if track == nil {
		return
	}

	completed := dur > 0 && pos/dur > completionThreshold
	e.store.AddToHistory(player.HistoryEntry{
		Track:        *track,
		PlayedAt:     time.Now(),
		PlayDuration: pos,
		Completed:    completed,
	})
	monitoring.RecordTrackPlayed(completed, "queue")
}

func (e *Engine) setLast(track player.Track) {
	e.histMu.Lock()
	t := track
	e.lastTrack = &t
	e.lastPos, e.lastDur = 0, track.Duration
	e.histMu.Unlock()
}

func (e *Engine) activeChannel() *channel {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.channels[e.active]
}

func (e *Engine) otherChannel() *channel {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.channels[1-e.active]
}

func (e *Engine) swapActive() {
	e.mu.Lock()
	e.active = 1 - e.active
	e.mu.Unlock()
}

// currentTrackChannel returns the channel carrying the store's current
// track, which during a crossfade is not yet the active one
func (e *Engine) currentTrackChannel() *channel {
	status := e.store.Status()
	if status.Track == nil {
		return nil
	}
	for _, ch := range e.channels {
		if ch.holds(status.Track.ID) {
			return ch
		}
	}
	return nil
}

func (e *Engine) effectiveGain() float64 {
	a := e.store.Audio()
	if a.Muted {
		return 0
	}
	return a.Volume
}
