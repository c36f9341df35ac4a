package patient

import (
	"context"
	"sync"

	"github.com/clinicboard/clinicboard/internal/platform/feedback"
	"github.com/clinicboard/clinicboard/internal/platform/websocket"
)

type recordingSink struct {
	mu      sync.Mutex
	notices []feedback.Notice
}

func (s *recordingSink) Notify(msg string, sev feedback.Severity) feedback.Notice {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := feedback.Notice{Message: msg, Severity: sev}
	s.notices = append(s.notices, n)
	return n
}

func (s *recordingSink) last() (feedback.Notice, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.notices) == 0 {
		return feedback.Notice{}, false
	}
	return s.notices[len(s.notices)-1], true
}

type stubConfirmer struct {
	answer  bool
	err     error
	prompts []string
}

func (c *stubConfirmer) Confirm(_ context.Context, prompt string) (bool, error) {
	c.prompts = append(c.prompts, prompt)
	return c.answer, c.err
}

// hookConfirmer runs before while the prompt is open, then accepts.
type hookConfirmer struct {
	before func(ctx context.Context)
}

func (c *hookConfirmer) Confirm(ctx context.Context, _ string) (bool, error) {
	c.before(ctx)
	return true, nil
}

type recordingNavigator struct {
	routes []string
}

func (n *recordingNavigator) Navigate(route string) { n.routes = append(n.routes, route) }

func (n *recordingNavigator) current() string {
	if len(n.routes) == 0 {
		return ""
	}
	return n.routes[len(n.routes)-1]
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []websocket.Event
}

func (p *recordingPublisher) Publish(_ context.Context, ev websocket.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}
