package auth

import (
	"sync"
	"time"
)

// RevocationStore remembers signed-out tokens by jti until they would have
// expired anyway, plus a per-user cutoff: tokens issued before it are
// rejected. Everything is in memory, so a restart forgets revocations.
type RevocationStore struct {
	mu      sync.RWMutex
	tokens  map[string]RevokedToken
	cutoffs map[string]time.Time
	now     func() time.Time
	done    chan struct{}
	once    sync.Once
}

// RevokedToken describes one revoked session.
type RevokedToken struct {
	JTI       string    `json:"jti"`
	UserID    string    `json:"user_id,omitempty"`
	ExpiresAt time.Time `json:"expires_at"`
}

// NewRevocationStore starts a sweeper that drops expired entries every
// sweepEvery; zero disables it.
func NewRevocationStore(sweepEvery time.Duration) *RevocationStore {
	s := &RevocationStore{
		tokens:  make(map[string]RevokedToken),
		cutoffs: make(map[string]time.Time),
		now:     time.Now,
		done:    make(chan struct{}),
	}
	if sweepEvery > 0 {
		go s.sweepLoop(sweepEvery)
	}
	return s
}

func (s *RevocationStore) Revoke(jti, userID string, expiresAt time.Time) {
	if jti == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens[jti] = RevokedToken{JTI: jti, UserID: userID, ExpiresAt: expiresAt}
}

// RevokeUser rejects every token of userID issued before the current
// second. Token iat has whole-second precision, so a session started in the
// same second as the revocation stays valid.
func (s *RevocationStore) RevokeUser(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cutoffs[userID] = s.now().Truncate(time.Second)
}

// IsRevoked reports whether the token was signed out, or belongs to a user
// whose sessions were revoked after it was issued.
func (s *RevocationStore) IsRevoked(jti, userID string, issuedAt time.Time) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.tokens[jti]; ok && jti != "" {
		return true
	}
	cutoff, ok := s.cutoffs[userID]
	return ok && issuedAt.Before(cutoff)
}

func (s *RevocationStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tokens)
}

// Entries is a snapshot of the revoked tokens.
func (s *RevocationStore) Entries() []RevokedToken {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]RevokedToken, 0, len(s.tokens))
	for _, t := range s.tokens {
		out = append(out, t)
	}
	return out
}

// Close stops the sweeper. Safe to call more than once.
func (s *RevocationStore) Close() {
	s.once.Do(func() { close(s.done) })
}

func (s *RevocationStore) sweepLoop(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.sweep()
		}
	}
}

func (s *RevocationStore) sweep() {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	for jti, t := range s.tokens {
		if now.After(t.ExpiresAt) {
			delete(s.tokens, jti)
		}
	}
}
