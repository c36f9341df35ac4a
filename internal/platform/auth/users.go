package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/clinicboard/clinicboard/internal/platform/keystore"
)

var (
	ErrUserNotFound = errors.New("user not found")
	ErrEmailTaken   = errors.New("email already in use")
)

// bcryptCost matches bcrypt.DefaultCost; tests lower it.
var bcryptCost = bcrypt.DefaultCost

type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	Role         string    `json:"role"`
	PasswordHash string    `json:"password_hash"`
	TOTPSecret   string    `json:"totp_secret,omitempty"`
	PendingTOTP  string    `json:"pending_totp,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Profile is the public view of a User.
type Profile struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	Name        string `json:"name"`
	Role        string `json:"role"`
	TOTPEnabled bool   `json:"totp_enabled"`
}

func (u *User) Profile() Profile {
	return Profile{ID: u.ID, Email: u.Email, Name: u.Name, Role: u.Role, TOTPEnabled: u.TOTPSecret != ""}
}

func HashPassword(password string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(b), nil
}

func CheckPassword(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// UserStore keeps every account as one JSON array under keystore.KeyUsers.
type UserStore struct {
	mu sync.Mutex
	kv keystore.Store
}

func NewUserStore(kv keystore.Store) *UserStore {
	return &UserStore{kv: kv}
}

func (s *UserStore) load(ctx context.Context) ([]*User, error) {
	raw, err := s.kv.Get(ctx, keystore.KeyUsers)
	if errors.Is(err, keystore.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load users: %w", err)
	}
	var users []*User
	if err := json.Unmarshal(raw, &users); err != nil {
		return nil, fmt.Errorf("decode users: %w", err)
	}
	return users, nil
}

func (s *UserStore) save(ctx context.Context, users []*User) error {
	raw, err := json.Marshal(users)
	if err != nil {
		return fmt.Errorf("encode users: %w", err)
	}
	if err := s.kv.Put(ctx, keystore.KeyUsers, raw); err != nil {
		return fmt.Errorf("save users: %w", err)
	}
	return nil
}

func (s *UserStore) ByEmail(ctx context.Context, email string) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	users, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	email = normalizeEmail(email)
	for _, u := range users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, ErrUserNotFound
}

func (s *UserStore) ByID(ctx context.Context, id string) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	users, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	for _, u := range users {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, ErrUserNotFound
}

func (s *UserStore) Create(ctx context.Context, u *User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	users, err := s.load(ctx)
	if err != nil {
		return err
	}
	u.Email = normalizeEmail(u.Email)
	for _, existing := range users {
		if existing.Email == u.Email {
			return ErrEmailTaken
		}
	}
	return s.save(ctx, append(users, u))
}

// Update applies fn to the stored user and writes the result back.
func (s *UserStore) Update(ctx context.Context, id string, fn func(u *User) error) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	users, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	var target *User
	for _, u := range users {
		if u.ID == id {
			target = u
			break
		}
	}
	if target == nil {
		return nil, ErrUserNotFound
	}

	if err := fn(target); err != nil {
		return nil, err
	}
	target.Email = normalizeEmail(target.Email)
	for _, u := range users {
		if u != target && u.Email == target.Email {
			return nil, ErrEmailTaken
		}
	}
	if err := s.save(ctx, users); err != nil {
		return nil, err
	}
	return target, nil
}
