// Package notify carries user-facing messages from the core to whichever
// page is rendering the session: toasts plus an optional delayed navigation.
package notify

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Type mirrors the toast styles of the storefront.
type Type string

const (
	TypeSuccess Type = "success"
	TypeError   Type = "error"
	TypeWarning Type = "warning"
	TypeInfo    Type = "info"
)

const maxPending = 50

// Notification is one message for a session.
type Notification struct {
	ID              string    `json:"id"`
	Type            Type      `json:"type"`
	Title           string    `json:"title,omitempty"`
	Message         string    `json:"message"`
	Redirect        string    `json:"redirect,omitempty"`
	RedirectAfterMs int64     `json:"redirect_after_ms,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

// Notifier is what domain services depend on.
type Notifier interface {
	Notify(sessionID string, n Notification)
}

// Feed buffers notifications per session and fans them out to live subscribers.
type Feed struct {
	log logrus.FieldLogger

	mu          sync.Mutex
	pending     map[string][]Notification
	subscribers map[string]map[chan Notification]struct{}
}

// NewFeed creates an empty feed.
func NewFeed(log logrus.FieldLogger) *Feed {
	return &Feed{
		log:         log.WithField("component", "notify"),
		pending:     make(map[string][]Notification),
		subscribers: make(map[string]map[chan Notification]struct{}),
	}
}

// Notify queues n for the session and pushes it to subscribers.
func (f *Feed) Notify(sessionID string, n Notification) {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}

	f.log.WithFields(logrus.Fields{
		"session_id": sessionID,
		"type":       n.Type,
		"redirect":   n.Redirect,
	}).Info(n.Message)

	f.mu.Lock()
	defer f.mu.Unlock()

	queue := append(f.pending[sessionID], n)
	if len(queue) > maxPending {
		queue = queue[len(queue)-maxPending:]
	}
	f.pending[sessionID] = queue

	for ch := range f.subscribers[sessionID] {
		select {
		case ch <- n:
		default:
			// slow reader; it still gets the message from Drain
		}
	}
}

// Drain returns and forgets the session's queued notifications.
func (f *Feed) Drain(sessionID string) []Notification {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := f.pending[sessionID]
	delete(f.pending, sessionID)
	if out == nil {
		out = []Notification{}
	}
	return out
}

// Subscribe returns a channel receiving new notifications for the session
// and a function that must be called to release it.
func (f *Feed) Subscribe(sessionID string) (<-chan Notification, func()) {
	ch := make(chan Notification, 16)

	f.mu.Lock()
	if f.subscribers[sessionID] == nil {
		f.subscribers[sessionID] = make(map[chan Notification]struct{})
	}
	f.subscribers[sessionID][ch] = struct{}{}
	f.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			f.mu.Lock()
			delete(f.subscribers[sessionID], ch)
			if len(f.subscribers[sessionID]) == 0 {
				delete(f.subscribers, sessionID)
			}
			f.mu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}

// Success is shorthand for a success toast.
func Success(message string) Notification {
	return Notification{Type: TypeSuccess, Message: message}
}

// Error is shorthand for an error toast.
func Error(message string) Notification {
	return Notification{Type: TypeError, Message: message}
}

// Info is shorthand for an info toast.
func Info(message string) Notification {
	return Notification{Type: TypeInfo, Message: message}
}

// WithRedirect schedules navigation to target after delay.
func (n Notification) WithRedirect(target string, delay time.Duration) Notification {
	n.Redirect = target
	n.RedirectAfterMs = delay.Milliseconds()
	return n
}
