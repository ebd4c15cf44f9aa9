// Package api is the single point of egress to the backend. Every call goes
// through one configured client that attaches the bearer token and handles
// 401 and 403 responses centrally.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jwulff/krishi/internal/logger"
	"github.com/jwulff/krishi/internal/route"
	"github.com/sirupsen/logrus"
)

// DefaultTimeout bounds every request.
const DefaultTimeout = 60 * time.Second

// Session is the part of the session store the client needs.
type Session interface {
	CurrentToken() (string, bool)
	Logout() error
}

// Navigator moves the UI between views.
type Navigator interface {
	Current() route.View
	Navigate(v route.View) route.View
}

// Config configures the client.
type Config struct {
	BaseURL string
	Timeout time.Duration
}

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client. Its Timeout is
// overridden by Config.Timeout.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithLogger sets the logger.
func WithLogger(log logrus.FieldLogger) Option {
	return func(c *Client) {
		if log != nil {
			c.log = log
		}
	}
}

// WithForbiddenHandler registers the permission-denied signal raised on
// every 403, before the call site sees the error.
func WithForbiddenHandler(fn func()) Option {
	return func(c *Client) { c.onForbidden = fn }
}

// Client is the configured backend client.
type Client struct {
	base        *url.URL
	http        *http.Client
	session     Session
	nav         Navigator
	log         logrus.FieldLogger
	onForbidden func()
}

// New builds a Client. The base URL must be absolute.
func New(cfg Config, sess Session, nav Navigator, opts ...Option) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("base url %q is not absolute", cfg.BaseURL)
	}

	c := &Client{
		base:    base,
		http:    &http.Client{},
		session: sess,
		nav:     nav,
		log:     logger.Discard(),
	}
	for _, opt := range opts {
		opt(c)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	c.http.Timeout = timeout
	c.log = c.log.WithField("component", "api")

	return c, nil
}

// Do sends a JSON request and decodes a JSON response into out (when out is
// non-nil). Non-2xx responses come back as *Error after the status
// interceptor has run.
func (c *Client) Do(ctx context.Context, method, path string, in, out any) error {
	op := method + " " + path

	req, err := c.newRequest(ctx, method, path, in)
	if err != nil {
		return &Error{Op: op, Err: err}
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.log.WithError(err).WithField("op", op).Warn("request failed")
		return &Error{Op: op, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return &Error{Op: op, Err: fmt.Errorf("read response: %w", err)}
	}

	c.log.WithFields(logrus.Fields{
		"op":      op,
		"status":  resp.StatusCode,
		"elapsed": time.Since(start).String(),
		"request": req.Header.Get("X-Request-ID"),
	}).Debug("response")

	if resp.StatusCode >= 400 {
		c.intercept(resp.StatusCode)
		return &Error{Op: op, Status: resp.StatusCode, Detail: detailFrom(body)}
	}

	if out == nil || len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return &Error{Op: op, Status: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

// newRequest is the request interceptor: JSON body, request id and the
// bearer token when the session has one.
func (c *Client) newRequest(ctx context.Context, method, path string, in any) (*http.Request, error) {
	u := c.base.JoinPath(path)

	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())

	if c.session != nil {
		if token, ok := c.session.CurrentToken(); ok {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}
	return req, nil
}

// intercept is the response interceptor for failed statuses. It runs once
// per response, before the caller's own error handling.
func (c *Client) intercept(status int) {
	switch status {
	case http.StatusUnauthorized:
		c.log.Warn("401 - session expired")
		if c.session != nil {
			if err := c.session.Logout(); err != nil {
				c.log.WithError(err).Error("clear session after 401")
			}
		}
		if c.nav != nil && c.nav.Current() != route.ViewLogin {
			c.nav.Navigate(route.ViewLogin)
		}

	case http.StatusForbidden:
		c.log.Warn("403 - permission denied")
		if c.onForbidden != nil {
			c.onForbidden()
		}
		if c.nav != nil && c.nav.Current() != route.ViewDashboard {
			c.nav.Navigate(route.ViewDashboard)
		}
	}
}

// detailFrom pulls the human readable message out of an error payload.
// FastAPI puts it in "detail", other handlers in "message".
func detailFrom(body []byte) string {
	var payload struct {
		Detail  json.RawMessage `json:"detail"`
		Message string          `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return ""
	}
	var detail string
	if len(payload.Detail) > 0 && json.Unmarshal(payload.Detail, &detail) == nil && detail != "" {
		return detail
	}
	// validation errors arrive as a list of {msg: ...}
	var list []struct {
		Msg string `json:"msg"`
	}
	if len(payload.Detail) > 0 && json.Unmarshal(payload.Detail, &list) == nil && len(list) > 0 && list[0].Msg != "" {
		return list[0].Msg
	}
	return payload.Message
}
