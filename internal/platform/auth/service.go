package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/pquerna/otp/totp"
	"github.com/rs/zerolog"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrTOTPRequired       = errors.New("one-time code required")
	ErrInvalidTOTP        = errors.New("invalid one-time code")
	ErrNoPendingTOTP      = errors.New("no pending one-time code enrolment")
	ErrWeakPassword       = errors.New("password must be at least 8 characters")
)

// Issuer is the JWT iss claim and the TOTP issuer label.
const Issuer = "clinicboard"

const minPasswordLen = 8

// Session is what a successful login hands back to the client.
type Session struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	User      Profile   `json:"user"`
}

// ProfileUpdate changes only the non-empty fields. A new password needs the
// current one.
type ProfileUpdate struct {
	Name            string `json:"name,omitempty"`
	Email           string `json:"email,omitempty"`
	Password        string `json:"password,omitempty"`
	CurrentPassword string `json:"current_password,omitempty"`
}

// TOTPEnrolment is returned when a second factor is requested.
type TOTPEnrolment struct {
	Secret string `json:"secret"`
	URL    string `json:"url"`
}

type Service struct {
	users       *UserStore
	revocations *RevocationStore
	secret      []byte
	ttl         time.Duration
	now         func() time.Time
	logger      zerolog.Logger
}

func NewService(users *UserStore, revocations *RevocationStore, secret []byte, ttl time.Duration, logger zerolog.Logger) *Service {
	return &Service{
		users:       users,
		revocations: revocations,
		secret:      secret,
		ttl:         ttl,
		now:         time.Now,
		logger:      logger,
	}
}

// JWTConfig is the middleware configuration matching tokens this service
// issues.
func (s *Service) JWTConfig() JWTConfig {
	return JWTConfig{Issuer: Issuer, SigningKey: s.secret, Revocations: s.revocations}
}

// SeedAdmin creates the admin account when no account uses email yet.
func (s *Service) SeedAdmin(ctx context.Context, email, password string) error {
	if email == "" {
		return nil
	}
	if _, err := s.users.ByEmail(ctx, email); err == nil {
		return nil
	} else if !errors.Is(err, ErrUserNotFound) {
		return err
	}
	hash, err := HashPassword(password)
	if err != nil {
		return err
	}
	now := s.now().UTC()
	u := &User{
		ID:           uuid.NewString(),
		Email:        email,
		Name:         "Administrator",
		Role:         RoleAdmin,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.users.Create(ctx, u); err != nil {
		return err
	}
	s.logger.Info().Str("email", u.Email).Msg("seeded admin account")
	return nil
}

// Login checks the password and, when enrolled, the one-time code.
func (s *Service) Login(ctx context.Context, email, password, code string) (*Session, error) {
	u, err := s.users.ByEmail(ctx, email)
	if errors.Is(err, ErrUserNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if !CheckPassword(password, u.PasswordHash) {
		return nil, ErrInvalidCredentials
	}
	if u.TOTPSecret != "" {
		if strings.TrimSpace(code) == "" {
			return nil, ErrTOTPRequired
		}
		if !totp.Validate(strings.TrimSpace(code), u.TOTPSecret) {
			return nil, ErrInvalidTOTP
		}
	}

	token, exp, err := s.issue(u)
	if err != nil {
		return nil, err
	}
	s.logger.Info().Str("user_id", u.ID).Msg("login")
	return &Session{Token: token, ExpiresAt: exp, User: u.Profile()}, nil
}

func (s *Service) issue(u *User) (string, time.Time, error) {
	now := s.now()
	exp := now.Add(s.ttl)
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   u.ID,
			Issuer:    Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
		Email: u.Email,
		Roles: []string{u.Role},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, exp, nil
}

// Logout revokes the token the claims came from.
func (s *Service) Logout(_ context.Context, claims *Claims) {
	if claims == nil || claims.ID == "" {
		return
	}
	exp := s.now().Add(s.ttl)
	if claims.ExpiresAt != nil {
		exp = claims.ExpiresAt.Time
	}
	s.revocations.Revoke(claims.ID, claims.Subject, exp)
	s.logger.Info().Str("user_id", claims.Subject).Msg("logout")
}

func (s *Service) Profile(ctx context.Context, userID string) (*Profile, error) {
	u, err := s.users.ByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	p := u.Profile()
	return &p, nil
}

// UpdateProfile applies upd. Changing the password signs out every other
// session of the user.
func (s *Service) UpdateProfile(ctx context.Context, userID string, upd ProfileUpdate) (*Profile, error) {
	passwordChanged := false
	u, err := s.users.Update(ctx, userID, func(u *User) error {
		if name := strings.TrimSpace(upd.Name); name != "" {
			u.Name = name
		}
		if email := strings.TrimSpace(upd.Email); email != "" {
			u.Email = email
		}
		if upd.Password != "" {
			if !CheckPassword(upd.CurrentPassword, u.PasswordHash) {
				return ErrInvalidCredentials
			}
			if len(upd.Password) < minPasswordLen {
				return ErrWeakPassword
			}
			hash, err := HashPassword(upd.Password)
			if err != nil {
				return err
			}
			u.PasswordHash = hash
			passwordChanged = true
		}
		u.UpdatedAt = s.now().UTC()
		return nil
	})
	if err != nil {
		return nil, err
	}
	if passwordChanged {
		s.revocations.RevokeUser(userID)
	}
	p := u.Profile()
	return &p, nil
}

// EnrollTOTP generates a pending secret. It only takes effect after
// ConfirmTOTP sees a valid code for it.
func (s *Service) EnrollTOTP(ctx context.Context, userID string) (*TOTPEnrolment, error) {
	u, err := s.users.ByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	key, err := totp.Generate(totp.GenerateOpts{Issuer: Issuer, AccountName: u.Email})
	if err != nil {
		return nil, fmt.Errorf("generate totp key: %w", err)
	}
	if _, err := s.users.Update(ctx, userID, func(u *User) error {
		u.PendingTOTP = key.Secret()
		return nil
	}); err != nil {
		return nil, err
	}
	return &TOTPEnrolment{Secret: key.Secret(), URL: key.URL()}, nil
}

func (s *Service) ConfirmTOTP(ctx context.Context, userID, code string) (*Profile, error) {
	u, err := s.users.Update(ctx, userID, func(u *User) error {
		if u.PendingTOTP == "" {
			return ErrNoPendingTOTP
		}
		if !totp.Validate(strings.TrimSpace(code), u.PendingTOTP) {
			return ErrInvalidTOTP
		}
		u.TOTPSecret = u.PendingTOTP
		u.PendingTOTP = ""
		return nil
	})
	if err != nil {
		return nil, err
	}
	p := u.Profile()
	return &p, nil
}
