package notify

import (
	"sync"
	"testing"
	"time"
)

func TestCallbackNotifier_DeliversNotice(t *testing.T) {
	cn := NewCallbackNotifier()

	var mu sync.Mutex
	var gotKind, gotMsg, gotTrack string
	done := make(chan struct{})
	cn.SetCallback(func(kind, message, trackID string) {
		mu.Lock()
		gotKind, gotMsg, gotTrack = kind, message, trackID
		mu.Unlock()
		close(done)
	})

	cn.Notify(Warning("Skipping to next track", "trk-1"))

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("callback was not invoked")
	}

	mu.Lock()
	defer mu.Unlock()
	if gotKind != "warning" || gotMsg != "Skipping to next track" || gotTrack != "trk-1" {
		t.Errorf("got (%s, %s, %s)", gotKind, gotMsg, gotTrack)
	}
}

func TestCallbackNotifier_NoCallbackSet(t *testing.T) {
	cn := NewCallbackNotifier()
	// Must not panic or block.
	cn.Notify(Info("network restored", ""))
}

func TestCallbackNotifier_PanicInCallbackRecovered(t *testing.T) {
	cn := NewCallbackNotifier()
	done := make(chan struct{})
	cn.SetCallback(func(kind, message, trackID string) {
		close(done)
		panic("boom")
	})

	cn.Notify(Error("load failed", "trk-2"))

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("callback was not invoked")
	}
	// Give the recover a moment; the test passes if the process survives.
	time.Sleep(50 * time.Millisecond)
}
