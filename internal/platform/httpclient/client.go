// Package httpclient talks JSON to the clinicboard API and attaches the
// bearer token of the signed-in user.
package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

var ErrUnauthorized = errors.New("not signed in or session expired")

// TokenSource supplies the current bearer token; "" sends no header.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// StatusError is a non-2xx answer from the API.
type StatusError struct {
	Code    int
	Message string
	Fields  []string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api: %d %s", e.Code, http.StatusText(e.Code))
	}
	return fmt.Sprintf("api: %d %s", e.Code, e.Message)
}

func (e *StatusError) Is(target error) bool {
	return target == ErrUnauthorized && e.Code == http.StatusUnauthorized
}

// TransportError wraps failures to reach the API at all.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string { return "api unreachable: " + e.Err.Error() }
func (e *TransportError) Unwrap() error { return e.Err }

type Client struct {
	base   *url.URL
	http   *http.Client
	tokens TokenSource
	logger zerolog.Logger
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

func WithLogger(logger zerolog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

func New(baseURL string, tokens TokenSource, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse api url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("api url must be http or https, got %q", baseURL)
	}
	c := &Client{
		base:   u,
		http:   &http.Client{Timeout: 30 * time.Second},
		tokens: tokens,
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Client) url(path string) string {
	return c.base.String() + "/" + strings.TrimLeft(path, "/")
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.url(path), body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if c.tokens != nil {
		tok, err := c.tokens.Token(ctx)
		if err != nil {
			return nil, err
		}
		if tok != "" {
			req.Header.Set("Authorization", "Bearer "+tok)
		}
	}
	return req, nil
}

func (c *Client) send(req *http.Request) (*http.Response, error) {
	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &TransportError{Err: err}
	}
	c.logger.Debug().
		Str("method", req.Method).
		Str("url", req.URL.String()).
		Int("status", resp.StatusCode).
		Dur("latency", time.Since(start)).
		Msg("api call")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		return nil, decodeError(resp)
	}
	return resp, nil
}

func decodeError(resp *http.Response) error {
	serr := &StatusError{Code: resp.StatusCode}
	var body struct {
		Message any      `json:"message"`
		Fields  []string `json:"fields"`
	}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if json.Unmarshal(raw, &body) == nil {
		if s, ok := body.Message.(string); ok {
			serr.Message = s
		}
		serr.Fields = body.Fields
	}
	return serr
}

// Do sends in as JSON (when non-nil) and decodes the response into out
// (when non-nil).
func (c *Client) Do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := c.newRequest(ctx, method, path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.send(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// Upload posts a multipart form with one file part plus extra text fields.
func (c *Client) Upload(ctx context.Context, path, fileField, fileName, contentType string, content io.Reader, fields map[string]string, out any) error {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			return err
		}
	}

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, fileField, fileName))
	h.Set("Content-Type", contentType)
	part, err := mw.CreatePart(h)
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, content); err != nil {
		return fmt.Errorf("read upload: %w", err)
	}
	if err := mw.Close(); err != nil {
		return err
	}

	req, err := c.newRequest(ctx, http.MethodPost, path, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.send(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// Download returns the raw response body; the caller closes it.
func (c *Client) Download(ctx context.Context, path string) (io.ReadCloser, string, error) {
	req, err := c.newRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, "", err
	}
	req.Header.Set("Accept", "*/*")
	resp, err := c.send(req)
	if err != nil {
		return nil, "", err
	}
	return resp.Body, resp.Header.Get("Content-Type"), nil
}
