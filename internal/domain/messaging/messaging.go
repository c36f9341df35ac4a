// Package messaging is the dashboard's communications area: a contact list
// and per-contact message threads held in process memory for each user.
package messaging

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/clinicboard/clinicboard/internal/platform/listview"
)

var (
	ErrContactNotFound = errors.New("contact not found")
	ErrEmptyMessage    = errors.New("message text is empty")
)

// SenderSelf marks messages written by the signed-in user.
const SenderSelf = "You"

type Contact struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	LastMessage   string    `json:"last_message"`
	LastMessageAt time.Time `json:"last_message_at"`
}

type Message struct {
	ID        string    `json:"id"`
	ContactID string    `json:"contact_id"`
	Sender    string    `json:"sender"`
	Text      string    `json:"text"`
	Type      string    `json:"type"`
	SentAt    time.Time `json:"sent_at"`
}

type seedContact struct {
	name string
	ago  time.Duration
}

var demoContacts = []seedContact{
	{"Shelby Goode", 24 * time.Hour},
	{"Robert Bacinis", 5 * 24 * time.Hour},
	{"John Carlo", 15 * time.Minute},
}

const demoPreview = "Lorem ipsum is simply dummy text"

type book struct {
	contacts []*Contact
	threads  map[string][]Message
}

func (b *book) contact(id string) (*Contact, bool) {
	for _, c := range b.contacts {
		if c.ID == id {
			return c, true
		}
	}
	return nil, false
}

// Service keeps one contact book per user. Nothing survives a restart.
type Service struct {
	mu    sync.Mutex
	books map[string]*book
	now   func() time.Time
}

func NewService() *Service {
	return &Service{books: make(map[string]*book), now: time.Now}
}

func (s *Service) bookFor(userID string) *book {
	b, ok := s.books[userID]
	if ok {
		return b
	}
	now := s.now().UTC()
	b = &book{threads: make(map[string][]Message)}
	for i, seed := range demoContacts {
		b.contacts = append(b.contacts, &Contact{
			ID:            strconv.Itoa(i + 1),
			Name:          seed.name,
			LastMessage:   demoPreview,
			LastMessageAt: now.Add(-seed.ago),
		})
	}
	s.books[userID] = b
	return b
}

// SearchContacts returns the user's contacts whose name contains query,
// ignoring case, in their original order.
func (s *Service) SearchContacts(_ context.Context, userID, query string) []Contact {
	s.mu.Lock()
	defer s.mu.Unlock()

	matched := listview.Filter(s.bookFor(userID).contacts, query, func(c *Contact) string { return c.Name })
	out := make([]Contact, 0, len(matched))
	for _, c := range matched {
		out = append(out, *c)
	}
	return out
}

func (s *Service) Thread(_ context.Context, userID, contactID string) ([]Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b := s.bookFor(userID)
	if _, ok := b.contact(contactID); !ok {
		return nil, ErrContactNotFound
	}
	out := make([]Message, len(b.threads[contactID]))
	copy(out, b.threads[contactID])
	return out, nil
}

// Send appends a message from the user to the contact's thread.
func (s *Service) Send(_ context.Context, userID, contactID, text string) (*Message, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyMessage
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	b := s.bookFor(userID)
	c, ok := b.contact(contactID)
	if !ok {
		return nil, ErrContactNotFound
	}
	m := Message{
		ID:        uuid.NewString(),
		ContactID: contactID,
		Sender:    SenderSelf,
		Text:      text,
		Type:      "text",
		SentAt:    s.now().UTC(),
	}
	b.threads[contactID] = append(b.threads[contactID], m)
	c.LastMessage = text
	c.LastMessageAt = m.SentAt
	return &m, nil
}
