// Package feedback shows one short-lived notice at a time. A new notice
// replaces the current one and every notice dismisses itself after a fixed
// delay unless it is dismissed first.
package feedback

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/clinicboard/clinicboard/internal/platform/websocket"
)

// DefaultDismissAfter is how long a notice stays visible.
const DefaultDismissAfter = 3 * time.Second

type Severity string

const (
	SeverityInfo    Severity = "info"
	SeveritySuccess Severity = "success"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

type Notice struct {
	ID        string    `json:"id"`
	Message   string    `json:"message"`
	Severity  Severity  `json:"severity"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Sink is the notifier surface used by the rest of the app.
type Sink interface {
	Notify(message string, severity Severity) Notice
}

// EventKind says whether a notice appeared or went away.
type EventKind string

const (
	EventShown     EventKind = "notice.shown"
	EventDismissed EventKind = "notice.dismissed"
)

// Listener is told about every shown and dismissed notice. It is called
// without the notifier lock held.
type Listener func(kind EventKind, n Notice)

type stopper interface {
	Stop() bool
}

type Notifier struct {
	mu        sync.Mutex
	current   *Notice
	timer     stopper
	delay     time.Duration
	listeners []Listener
	logger    zerolog.Logger

	now       func() time.Time
	afterFunc func(d time.Duration, f func()) stopper
}

type Option func(*Notifier)

func WithListener(l Listener) Option {
	return func(n *Notifier) { n.listeners = append(n.listeners, l) }
}

func WithLogger(logger zerolog.Logger) Option {
	return func(n *Notifier) { n.logger = logger }
}

func New(delay time.Duration, opts ...Option) *Notifier {
	if delay <= 0 {
		delay = DefaultDismissAfter
	}
	n := &Notifier{
		delay:  delay,
		logger: zerolog.Nop(),
		now:    time.Now,
		afterFunc: func(d time.Duration, f func()) stopper {
			return time.AfterFunc(d, f)
		},
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Notify shows message, replacing whatever notice is visible.
func (n *Notifier) Notify(message string, severity Severity) Notice {
	now := n.now().UTC()
	notice := Notice{
		ID:        uuid.NewString(),
		Message:   message,
		Severity:  severity,
		CreatedAt: now,
		ExpiresAt: now.Add(n.delay),
	}

	n.mu.Lock()
	replaced := n.current
	if n.timer != nil {
		n.timer.Stop()
	}
	n.current = &notice
	id := notice.ID
	n.timer = n.afterFunc(n.delay, func() { n.Dismiss(id) })
	n.mu.Unlock()

	n.logger.Debug().Str("notice_id", notice.ID).Str("severity", string(severity)).Msg(message)
	if replaced != nil {
		n.emit(EventDismissed, *replaced)
	}
	n.emit(EventShown, notice)
	return notice
}

// Dismiss hides the notice with the given id. It reports false when that
// notice is no longer the visible one.
func (n *Notifier) Dismiss(id string) bool {
	n.mu.Lock()
	if n.current == nil || n.current.ID != id {
		n.mu.Unlock()
		return false
	}
	gone := *n.current
	n.current = nil
	if n.timer != nil {
		n.timer.Stop()
		n.timer = nil
	}
	n.mu.Unlock()

	n.emit(EventDismissed, gone)
	return true
}

// Current returns the visible notice, if any.
func (n *Notifier) Current() (Notice, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.current == nil {
		return Notice{}, false
	}
	return *n.current, true
}

func (n *Notifier) emit(kind EventKind, notice Notice) {
	for _, l := range n.listeners {
		l(kind, notice)
	}
}

// Broadcast forwards notices to websocket subscribers of the feedback topic.
func Broadcast(hub *websocket.Hub, logger zerolog.Logger) Listener {
	return func(kind EventKind, notice Notice) {
		ev := websocket.NewEvent(websocket.TopicFeedback, string(kind), notice)
		if err := hub.Publish(context.Background(), ev); err != nil {
			logger.Warn().Err(err).Str("notice_id", notice.ID).Msg("publish feedback event")
		}
	}
}
