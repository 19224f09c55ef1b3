package engine

import (
	"context"
	"time"

	"go.uber.org/zap"

	apperrors "github.com/resona/resona-go/internal/errors"
	"github.com/resona/resona-go/internal/monitoring"
	"github.com/resona/resona-go/internal/player"
)

// startCrossfade begins fading from the active channel into the next
// track. Only one transition runs at a time; tick calls this every
// interval while inside the fade window and the guard drops the extras.
func (e *Engine) startCrossfade(ctx context.Context, next player.Track) {
	if !e.transitioning.CompareAndSwap(false, true) {
		return
	}

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		defer e.transitioning.Store(false)
		e.runCrossfade(ctx, next)
	}()
}

func (e *Engine) runCrossfade(ctx context.Context, next player.Track) {
	out := e.activeChannel()
	in := e.otherChannel()

	if err := e.ensureLoaded(ctx, in, next); err != nil {
		// Fall back to a hard switch at track end
		e.logger.Warn("Crossfade aborted",
			zap.String("track_id", next.ID),
			zap.Error(apperrors.NewCrossfadeError("incoming track not ready", err)))
		return
	}

	settings := e.store.Controls().Settings
	duration := settings.Crossfade.Duration
	target := e.effectiveGain()

	in.out.SetGain(0)
	in.out.Play()
	in.setState(channelPlaying)

	// The store advances now: history, resume positions and the queue
	// index all flip at fade start, while audio overlaps below.
	e.store.Next(false)

	stepMs := e.cfg.VolumeRampMs
	if stepMs <= 0 {
		stepMs = 50
	}
	step := time.Duration(stepMs) * time.Millisecond
	steps := int(duration * 1000 / float64(stepMs))
	if steps < 1 {
		steps = 1
	}

	for i := 1; i <= steps; i++ {
		select {
		case <-ctx.Done():
			return
		case <-time.After(step):
		}
		f := float64(i) / float64(steps)
		out.out.SetGain(target * (1 - f))
		in.out.SetGain(target * f)
	}

	// Rewind the outgoing channel so a repeated track starts clean
	out.out.Pause()
	out.out.Seek(0)
	out.setState(channelPaused)
	out.out.SetGain(target)

	e.swapActive()
	monitoring.RecordCrossfade()
	e.logger.Debug("Crossfade complete", zap.String("track_id", next.ID))
}

// ensureLoaded makes sure the channel carries the track ready to play.
// A preload already in flight is awaited; otherwise the track is
// loaded synchronously.
func (e *Engine) ensureLoaded(ctx context.Context, ch *channel, track player.Track) error {
	st, _, held := ch.snapshot()
	if held != nil && held.ID == track.ID {
		switch st {
		case channelReady, channelPaused:
			return nil
		case channelLoading:
			return e.awaitReady(ctx, ch, track.ID)
		}
	}

	source, err := e.resolveSource(ctx, track)
	if err != nil {
		return err
	}
	gen := e.gen.Add(1)
	ch.setLoading(gen, track)
	if err := e.loadWithRetry(ctx, ch, gen, source, 0); err != nil {
		ch.setFailed(gen)
		return err
	}
	if !ch.setReady(gen, source) {
		return apperrors.NewCrossfadeError("load superseded during crossfade", nil)
	}
	return nil
}

// awaitReady polls a loading channel until it settles
func (e *Engine) awaitReady(ctx context.Context, ch *channel, trackID string) error {
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(25 * time.Millisecond):
		}
		st, _, held := ch.snapshot()
		if held == nil || held.ID != trackID {
			return apperrors.NewCrossfadeError("preload superseded", nil)
		}
		switch st {
		case channelReady, channelPaused:
			return nil
		case channelFailed, channelIdle:
			return apperrors.NewCrossfadeError("preload failed", nil)
		}
	}
	return apperrors.NewCrossfadeError("preload timed out", nil)
}
