package netwatch

import (
	"context"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
)

// State represents the observed connectivity state
type State string

const (
	StateOnline  State = "online"
	StateOffline State = "offline"
	StateUnknown State = "unknown"
)

// ProbeFunc reports whether the network is reachable right now
type ProbeFunc func(ctx context.Context) bool

// Watcher monitors network connectivity and reports transitions.
// Subscribers are invoked on every state change.
type Watcher struct {
	probe    ProbeFunc
	interval time.Duration
	logger   *zap.Logger

	mu        sync.RWMutex
	state     State
	lastCheck time.Time
	subs      map[int]func(online bool)
	nextSubID int

	cancel context.CancelFunc
	done   chan struct{}
}

// Option configures a Watcher
type Option func(*Watcher)

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) Option {
	return func(w *Watcher) { w.logger = logger }
}

// WithProbe replaces the default HTTP probe
func WithProbe(probe ProbeFunc) Option {
	return func(w *Watcher) { w.probe = probe }
}

// WithInterval sets the probe interval
func WithInterval(d time.Duration) Option {
	return func(w *Watcher) { w.interval = d }
}

// New creates a connectivity watcher probing the given URL.
// A HEAD request completing with any response counts as online;
// reachability is the question, not the status code.
func New(probeURL string, opts ...Option) *Watcher {
	w := &Watcher{
		probe:    httpProbe(probeURL),
		interval: 30 * time.Second,
		logger:   zap.NewNop(),
		state:    StateUnknown,
		subs:     make(map[int]func(online bool)),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

func httpProbe(url string) ProbeFunc {
	if url == "" {
		// No probe configured: assume online rather than trapping the
		// app in offline mode.
		return func(ctx context.Context) bool { return true }
	}

	client := &http.Client{Timeout: 5 * time.Second}
	return func(ctx context.Context) bool {
		req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
		if err != nil {
			return false
		}
		resp, err := client.Do(req)
		if err != nil {
			return false
		}
		resp.Body.Close()
		return true
	}
}

// Start begins periodic probing. The first probe runs immediately.
func (w *Watcher) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.done = make(chan struct{})

	go func() {
		defer close(w.done)
		w.CheckNow(ctx)

		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				w.CheckNow(ctx)
			}
		}
	}()
}

// Stop halts probing and waits for the loop to exit
func (w *Watcher) Stop() {
	if w.cancel != nil {
		w.cancel()
		<-w.done
	}
}

// CheckNow runs a probe immediately and fires subscribers on a transition
func (w *Watcher) CheckNow(ctx context.Context) State {
	online := w.probe(ctx)

	newState := StateOffline
	if online {
		newState = StateOnline
	}

	w.mu.Lock()
	prev := w.state
	w.state = newState
	w.lastCheck = time.Now()
	var subs []func(online bool)
	if prev != newState {
		for _, fn := range w.subs {
			subs = append(subs, fn)
		}
	}
	w.mu.Unlock()

	if prev != newState {
		w.logger.Info("Connectivity changed",
			zap.String("from", string(prev)),
			zap.String("to", string(newState)))
		for _, fn := range subs {
			fn(online)
		}
	}
	return newState
}

// State returns the last observed connectivity state
func (w *Watcher) State() State {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.state
}

// IsOnline reports whether the last probe succeeded
func (w *Watcher) IsOnline() bool {
	return w.State() == StateOnline
}

// Subscribe registers a callback for connectivity transitions.
// The returned function removes the subscription.
func (w *Watcher) Subscribe(fn func(online bool)) func() {
	w.mu.Lock()
	id := w.nextSubID
	w.nextSubID++
	w.subs[id] = fn
	w.mu.Unlock()

	return func() {
		w.mu.Lock()
		delete(w.subs, id)
		w.mu.Unlock()
	}
}
