package netwatch

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

func TestCheckNow_Transitions(t *testing.T) {
	var online atomic.Bool
	online.Store(true)

	w := New("http://unused", WithProbe(func(ctx context.Context) bool {
		return online.Load()
	}))

	if got := w.State(); got != StateUnknown {
		t.Errorf("initial state = %v, want unknown", got)
	}

	if got := w.CheckNow(context.Background()); got != StateOnline {
		t.Errorf("state = %v, want online", got)
	}
	if !w.IsOnline() {
		t.Error("IsOnline should be true")
	}

	online.Store(false)
	if got := w.CheckNow(context.Background()); got != StateOffline {
		t.Errorf("state = %v, want offline", got)
	}
}

func TestSubscribe_FiresOnChangeOnly(t *testing.T) {
	var online atomic.Bool
	online.Store(true)

	w := New("http://unused", WithProbe(func(ctx context.Context) bool {
		return online.Load()
	}))

	var calls int32
	var lastSeen atomic.Bool
	unsub := w.Subscribe(func(isOnline bool) {
		atomic.AddInt32(&calls, 1)
		lastSeen.Store(isOnline)
	})
	defer unsub()

	w.CheckNow(context.Background()) // unknown -> online: fires
	w.CheckNow(context.Background()) // online -> online: no fire
	online.Store(false)
	w.CheckNow(context.Background()) // online -> offline: fires

	if got := atomic.LoadInt32(&calls); got != 2 {
		t.Errorf("callback fired %d times, want 2", got)
	}
	if lastSeen.Load() {
		t.Error("last transition should report offline")
	}
}

func TestSubscribe_UnsubscribeStopsDelivery(t *testing.T) {
	var online atomic.Bool
	w := New("http://unused", WithProbe(func(ctx context.Context) bool {
		return online.Load()
	}))

	var calls int32
	unsub := w.Subscribe(func(bool) { atomic.AddInt32(&calls, 1) })

	online.Store(true)
	w.CheckNow(context.Background())
	unsub()
	online.Store(false)
	w.CheckNow(context.Background())

	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("callback fired %d times after unsubscribe, want 1", got)
	}
}

func TestStartStop(t *testing.T) {
	var probes atomic.Int32
	w := New("http://unused",
		WithProbe(func(ctx context.Context) bool {
			probes.Add(1)
			return true
		}),
		WithInterval(10*time.Millisecond))

	w.Start(context.Background())
	time.Sleep(50 * time.Millisecond)
	w.Stop()

	if probes.Load() < 2 {
		t.Errorf("expected repeated probes, got %d", probes.Load())
	}
	after := probes.Load()
	time.Sleep(30 * time.Millisecond)
	if probes.Load() != after {
		t.Error("probing continued after Stop")
	}
}

func TestEmptyProbeURLAssumesOnline(t *testing.T) {
	w := New("")
	if got := w.CheckNow(context.Background()); got != StateOnline {
		t.Errorf("state = %s with no probe URL, want online", got)
	}
}
