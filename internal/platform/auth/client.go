package auth

import (
	"context"
	"errors"
	"net/http"

	"github.com/clinicboard/clinicboard/internal/platform/httpclient"
	"github.com/clinicboard/clinicboard/internal/platform/keystore"
)

// TokenStore keeps the signed-in user's bearer token under keystore.KeyToken.
// It is the httpclient.TokenSource of the command-line client.
type TokenStore struct {
	kv keystore.Store
}

func NewTokenStore(kv keystore.Store) *TokenStore {
	return &TokenStore{kv: kv}
}

// Token returns "" when nobody is signed in.
func (t *TokenStore) Token(ctx context.Context) (string, error) {
	raw, err := t.kv.Get(ctx, keystore.KeyToken)
	if errors.Is(err, keystore.ErrKeyNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

func (t *TokenStore) Save(ctx context.Context, token string) error {
	return t.kv.Put(ctx, keystore.KeyToken, []byte(token))
}

func (t *TokenStore) Clear(ctx context.Context) error {
	err := t.kv.Delete(ctx, keystore.KeyToken)
	if errors.Is(err, keystore.ErrKeyNotFound) {
		return nil
	}
	return err
}

// API is the part of httpclient.Client the auth client needs.
type API interface {
	Do(ctx context.Context, method, path string, in, out any) error
}

// Client signs in against the API and keeps the token in a TokenStore.
type Client struct {
	api    API
	tokens *TokenStore
}

func NewClient(api API, tokens *TokenStore) *Client {
	return &Client{api: api, tokens: tokens}
}

// Login stores the issued token. A *httpclient.StatusError with code 401
// and message ErrTOTPRequired means the account needs a one-time code.
func (c *Client) Login(ctx context.Context, email, password, code string) (*Session, error) {
	var sess Session
	req := loginRequest{Email: email, Password: password, Code: code}
	if err := c.api.Do(ctx, http.MethodPost, "login", req, &sess); err != nil {
		return nil, err
	}
	if err := c.tokens.Save(ctx, sess.Token); err != nil {
		return nil, err
	}
	return &sess, nil
}

// Logout revokes the token server-side and forgets it locally. An already
// expired or revoked token still counts as signed out.
func (c *Client) Logout(ctx context.Context) error {
	tok, err := c.tokens.Token(ctx)
	if err != nil {
		return err
	}
	if tok != "" {
		err = c.api.Do(ctx, http.MethodPost, "logout", nil, nil)
		if err != nil && !errors.Is(err, httpclient.ErrUnauthorized) {
			return err
		}
	}
	return c.tokens.Clear(ctx)
}

func (c *Client) GetProfile(ctx context.Context) (*Profile, error) {
	var p Profile
	if err := c.api.Do(ctx, http.MethodGet, "me", nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (c *Client) UpdateProfile(ctx context.Context, upd ProfileUpdate) (*Profile, error) {
	var p Profile
	if err := c.api.Do(ctx, http.MethodPatch, "me", upd, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// EnrollTOTP starts two-step sign-in; the code from the returned secret is
// then passed to ConfirmTOTP.
func (c *Client) EnrollTOTP(ctx context.Context) (*TOTPEnrolment, error) {
	var enr TOTPEnrolment
	if err := c.api.Do(ctx, http.MethodPost, "me/totp", nil, &enr); err != nil {
		return nil, err
	}
	return &enr, nil
}

func (c *Client) ConfirmTOTP(ctx context.Context, code string) (*Profile, error) {
	var p Profile
	if err := c.api.Do(ctx, http.MethodPost, "me/totp/confirm", confirmRequest{Code: code}, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// NeedsTOTP reports whether a login failed only for want of a one-time code.
func NeedsTOTP(err error) bool {
	var serr *httpclient.StatusError
	return errors.As(err, &serr) && serr.Code == http.StatusUnauthorized && serr.Message == ErrTOTPRequired.Error()
}

var _ httpclient.TokenSource = (*TokenStore)(nil)
