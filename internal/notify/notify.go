package notify

import (
	"fmt"
	"sync"
	"time"
)

// Kind classifies user-facing playback notices.
type Kind string

const (
	KindInfo    Kind = "info"
	KindWarning Kind = "warning"
	KindError   Kind = "error"
)

// Notice is a user-facing message about playback.
type Notice struct {
	Kind      Kind      `json:"kind"`
	Message   string    `json:"message"`
	TrackID   string    `json:"track_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Notifier delivers playback notices to the hosting application
type Notifier interface {
	Notify(n Notice)
}

// NopNotifier discards all notices
type NopNotifier struct{}

func (NopNotifier) Notify(Notice) {}

// CallbackNotifier delivers notices through a registered callback.
// This is the integration point for the frontend shell.
type CallbackNotifier struct {
	mu       sync.RWMutex
	callback func(kind string, message string, trackID string)
}

// NewCallbackNotifier creates a new callback-based notifier
func NewCallbackNotifier() *CallbackNotifier {
	return &CallbackNotifier{}
}

// SetCallback sets the callback function for notices
func (cn *CallbackNotifier) SetCallback(callback func(kind string, message string, trackID string)) {
	cn.mu.Lock()
	defer cn.mu.Unlock()
	cn.callback = callback
}

// Notify invokes the callback if one is set
func (cn *CallbackNotifier) Notify(n Notice) {
	cn.mu.RLock()
	callback := cn.callback
	cn.mu.RUnlock()

	if callback == nil {
		return
	}

	// Call in a goroutine to avoid blocking playback
	go func() {
		defer func() {
			if r := recover(); r != nil {
				fmt.Printf("Notice callback panicked: %v\n", r)
			}
		}()
		callback(string(n.Kind), n.Message, n.TrackID)
	}()
}

// Info builds an informational notice
func Info(message, trackID string) Notice {
	return Notice{Kind: KindInfo, Message: message, TrackID: trackID, Timestamp: time.Now()}
}

// Warning builds a warning notice
func Warning(message, trackID string) Notice {
	return Notice{Kind: KindWarning, Message: message, TrackID: trackID, Timestamp: time.Now()}
}

// Error builds an error notice
func Error(message, trackID string) Notice {
	return Notice{Kind: KindError, Message: message, TrackID: trackID, Timestamp: time.Now()}
}
