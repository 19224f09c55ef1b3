package engine

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	apperrors "github.com/resona/resona-go/internal/errors"
	"github.com/resona/resona-go/internal/monitoring"
	"github.com/resona/resona-go/internal/notify"
	"github.com/resona/resona-go/internal/player"
)

// resolveSource finds a playable source for the track. Cached audio
// wins even when online; offline with no cached copy fails immediately
// without touching the network.
func (e *Engine) resolveSource(ctx context.Context, track player.Track) (string, error) {
	if e.cache != nil {
		if path, ok := e.cache.Resolve(track.ID); ok {
			return path, nil
		}
	}
	if e.store.IsOffline() {
		return "", apperrors.NewOfflineError(track.ID)
	}
	return e.resolver.Resolve(ctx, track)
}

// loadAndPlay resolves and loads a track into the channel, then starts
// it. Runs asynchronously; a later load on the same channel supersedes
// this one through the generation stamp.
func (e *Engine) loadAndPlay(ctx context.Context, ch *channel, track player.Track, startAt float64, startPlaying bool) {
	gen := e.gen.Add(1)
	ch.setLoading(gen, track)

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()

		source, err := e.resolveSource(ctx, track)
		if err == nil {
			err = e.loadWithRetry(ctx, ch, gen, source, startAt)
		}
		if err != nil {
			if !ch.setFailed(gen) {
				return // superseded, a newer load owns the channel
			}
			e.failTrack(track, err)
			return
		}
		if !ch.setReady(gen, source) {
			return
		}

		ch.out.SetGain(e.effectiveGain())
		if startPlaying {
			ch.out.Play()
			ch.setState(channelPlaying)
		}

		e.maybeCacheAsync(ctx, track, source)
	}()
}

// loadWithRetry calls Output.Load with exponential backoff. Attempts
// stop as soon as the channel's generation moves on.
func (e *Engine) loadWithRetry(ctx context.Context, ch *channel, gen uint64, source string, startAt float64) error {
	retries := e.cfg.LoadRetries
	if retries <= 0 {
		retries = 3
	}
	timeout := time.Duration(e.cfg.LoadTimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	retryCfg := apperrors.RetryConfig{
		MaxRetries:      retries,
		InitialBackoff:  e.retryBackoff,
		MaxBackoff:      5 * time.Second,
		Multiplier:      2.0,
		RetryableErrors: apperrors.IsRetryable,
	}

	start := time.Now()
	err := apperrors.RetryWithBackoff(ctx, retryCfg, func() error {
		if ch.gen() != gen {
			return apperrors.NewValidationError("load superseded")
		}

		lctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		if err := ch.out.Load(lctx, source, startAt); err != nil {
			monitoring.RecordLoadRetry()
			return apperrors.NewLoadError("audio load failed", err)
		}
		return nil
	})
	if err == nil {
		monitoring.RecordTrackLoad(time.Since(start))
	}
	return err
}

// failTrack surfaces a load failure and skips ahead
func (e *Engine) failTrack(track player.Track, err error) {
	e.logger.Warn("Track load failed",
		zap.String("track_id", track.ID),
		zap.String("title", track.Title),
		zap.Error(err))

	monitoring.RecordError(string(apperrors.GetErrorType(err)))
	e.store.SetError(err.Error())

	if apperrors.IsOfflineError(err) {
		e.notifier.Notify(notify.Warning(
			track.Title+" is not available offline", track.ID))
	} else {
		e.notifier.Notify(notify.Warning("Skipping to next track", track.ID))
	}

	e.store.Next(false)
}

// preload loads the upcoming track into the inactive channel so the
// switch at track end is gapless
func (e *Engine) preload(ctx context.Context, next player.Track) {
	other := e.otherChannel()
	if other.holds(next.ID) {
		return // already preloaded or in flight
	}

	gen := e.gen.Add(1)
	other.setLoading(gen, next)

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()

		source, err := e.resolveSource(ctx, next)
		if err == nil {
			err = e.loadWithRetry(ctx, other, gen, source, 0)
		}
		if err != nil {
			// Preload is opportunistic; the track change handler will
			// load on demand if this track actually comes up.
			if other.setFailed(gen) {
				other.reset()
				e.logger.Debug("Preload failed",
					zap.String("track_id", next.ID),
					zap.Error(err))
			}
			return
		}
		if !other.setReady(gen, source) {
			return
		}
		other.out.SetGain(0)
		e.maybeCacheAsync(ctx, next, source)
	}()
}

// maybeCacheAsync stores a streamed track for offline use, best effort
func (e *Engine) maybeCacheAsync(ctx context.Context, track player.Track, source string) {
	if !e.cacheOnPlay || e.cache == nil {
		return
	}
	if !strings.HasPrefix(source, "http://") && !strings.HasPrefix(source, "https://") {
		return // already local
	}
	if _, ok := e.cache.Resolve(track.ID); ok {
		return
	}

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		if err := e.cache.Download(ctx, track, source); err != nil {
			e.logger.Debug("Background cache fill failed",
				zap.String("track_id", track.ID),
				zap.Error(err))
			return
		}
		e.store.MarkCached(track.ID)
	}()
}
