// Package gateway is the credentialed HTTP client for the Kvitt backend.
//
// Every operation issues exactly one request. Credentials travel in the
// HttpOnly cookie the backend sets on login; the client keeps it in its own
// cookie jar, so one Client must be used per authenticated user.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	pathLogin        = "/api/v1/kvittUser/login"
	pathRegister     = "/api/v1/kvittUser/create"
	pathLogout       = "/api/v1/kvittUser/logout"
	pathTotalIncome  = "/api/v1/event/getTotalIncome"
	pathTotalExpense = "/api/v1/event/getTotalExpense"
	pathKvittStatus  = "/api/v1/event/getKvittStatus"
	pathAllEvents    = "/api/v1/event/getAllEvents"
	pathCreateEvent  = "/api/v1/event/create"
	pathEditEvent    = "/api/v1/event/edit"
	pathDeleteEvent  = "/api/v1/event/delete"

	// maxResponseBytes bounds how much of a response body is read.
	maxResponseBytes = 4 << 20
)

// ErrDecode is returned when a 2xx response body is not the expected JSON.
var ErrDecode = errors.New("decode response")

// Config configures a Client.
type Config struct {
	// BaseURL is the backend origin, e.g. http://localhost:8080.
	BaseURL string
	// Timeout bounds a single request. Zero leaves timing to the transport.
	Timeout time.Duration
	// Transport is shared between clients so sessions reuse connections.
	Transport http.RoundTripper
	UserAgent string
}

// Client talks to one backend on behalf of one user.
type Client struct {
	base      *url.URL
	http      *http.Client
	jar       *resettableJar
	userAgent string
}

// New creates a client with an empty cookie jar.
func New(cfg Config) (*Client, error) {
	raw := strings.TrimSpace(cfg.BaseURL)
	if raw == "" {
		return nil, errors.New("gateway: empty base URL")
	}
	base, err := url.Parse(strings.TrimRight(raw, "/"))
	if err != nil {
		return nil, fmt.Errorf("gateway: parse base URL: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("gateway: unsupported scheme %q", base.Scheme)
	}
	jar, err := newResettableJar()
	if err != nil {
		return nil, fmt.Errorf("gateway: cookie jar: %w", err)
	}
	transport := cfg.Transport
	if transport == nil {
		transport = http.DefaultTransport
	}
	return &Client{
		base: base,
		http: &http.Client{
			Transport: transport,
			Jar:       jar,
			Timeout:   cfg.Timeout,
		},
		jar:       jar,
		userAgent: cfg.UserAgent,
	}, nil
}

// BaseURL returns the backend origin this client talks to.
func (c *Client) BaseURL() string {
	return c.base.String()
}

// StatusError is returned for non-2xx responses.
type StatusError struct {
	Method  string
	Path    string
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s %s: status %d", e.Method, e.Path, e.Code)
	}
	return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.Path, e.Code, e.Message)
}

// IsStatus reports whether err is a StatusError with the given code.
func IsStatus(err error, code int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Code == code
}

// Message returns the backend-provided message of a StatusError, if any.
func Message(err error) string {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Message
	}
	return ""
}

func (c *Client) endpoint(path string, query url.Values) *url.URL {
	u := c.base.JoinPath(path)
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	return u
}

// do performs one request. A nil out discards the body.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s %s: encode body: %w", method, path, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.endpoint(path, query).String(), reader)
	if err != nil {
		return fmt.Errorf("%s %s: build request: %w", method, path, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("%s %s: read body: %w", method, path, err)
	}

	slog.DebugContext(ctx, "Backend call completed",
		"method", method,
		"path", path,
		"status_code", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds())

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &StatusError{Method: method, Path: path, Code: resp.StatusCode, Message: extractMessage(data)}
	}
	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%s %s: %w: %v", method, path, ErrDecode, err)
	}
	return nil
}

// extractMessage pulls a human readable message out of an error body.
func extractMessage(body []byte) string {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return ""
	}
	if body[0] == '{' {
		var payload struct {
			Message string `json:"message"`
			Error   string `json:"error"`
		}
		if err := json.Unmarshal(body, &payload); err == nil {
			if payload.Message != "" {
				return payload.Message
			}
			return payload.Error
		}
	}
	msg := string(body)
	if len(msg) > 200 {
		msg = msg[:200]
	}
	return msg
}
