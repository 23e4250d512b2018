// Package transport is the HTTP plumbing shared by the backend API client and
// the push channel transports.
package transport

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

	"github.com/agentstation/tally/pkg/constants"
	"github.com/agentstation/tally/pkg/errors"
)

// DefaultHTTPTimeout is the default timeout for HTTP requests.
var DefaultHTTPTimeout = constants.DefaultHTTPTimeout

// Client performs requests against one backend base URL.
type Client struct {
	http      *http.Client
	base      *url.URL
	userAgent string
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout sets the overall request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		c.userAgent = ua
	}
}

// New creates a client for baseURL, which must be an absolute http(s) URL.
func New(baseURL string, opts ...Option) (*Client, error) {
	base, err := ParseBaseURL(baseURL)
	if err != nil {
		return nil, err
	}
	c := &Client{
		http:      &http.Client{Timeout: DefaultHTTPTimeout},
		base:      base,
		userAgent: "tally",
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// ParseBaseURL validates a backend base URL and strips a trailing slash.
func ParseBaseURL(raw string) (*url.URL, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, errors.NewConfigError("backend", "backend URL is required", nil)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, errors.NewConfigError("backend", "invalid backend URL", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, errors.NewConfigError("backend", "backend URL must use http or https: "+raw, nil)
	}
	if u.Host == "" {
		return nil, errors.NewConfigError("backend", "backend URL has no host: "+raw, nil)
	}
	u.Path = strings.TrimRight(u.Path, "/")
	return u, nil
}

// BaseURL returns the backend base URL.
func (c *Client) BaseURL() *url.URL {
	u := *c.base
	return &u
}

// URL resolves path against the base URL.
func (c *Client) URL(path string) string {
	u := c.BaseURL()
	u.Path = u.Path + "/" + strings.TrimLeft(path, "/")
	return u.String()
}

// HTTP returns the underlying HTTP client.
func (c *Client) HTTP() *http.Client {
	return c.http
}

// Do performs a request with the common headers set.
func (c *Client) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	req = req.WithContext(ctx)
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", "application/json")
	}
	if req.Method == http.MethodPost || req.Method == http.MethodPut || req.Method == http.MethodPatch {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errors.WrapAPI(req.URL.Path, 0, classify(ctx, err))
	}
	return resp, nil
}

// Get performs a GET request on path.
func (c *Client) Get(ctx context.Context, path string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.URL(path), nil)
	if err != nil {
		return nil, errors.WrapAPI(path, 0, err)
	}
	return c.Do(ctx, req)
}

// PostJSON performs a POST on path with body encoded as JSON. A nil body
// sends an empty object.
func (c *Client) PostJSON(ctx context.Context, path string, body any) (*http.Response, error) {
	if body == nil {
		body = struct{}{}
	}
	data, err := json.Marshal(body)
	if err != nil {
		return nil, errors.WrapParse("json", path, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL(path), bytes.NewReader(data))
	if err != nil {
		return nil, errors.WrapAPI(path, 0, err)
	}
	return c.Do(ctx, req)
}

// classify maps context failures onto the package sentinels.
func classify(ctx context.Context, err error) error {
	switch ctx.Err() {
	case context.Canceled:
		return fmt.Errorf("%w: %w", errors.ErrCanceled, err)
	case context.DeadlineExceeded:
		return fmt.Errorf("%w: %w", errors.ErrTimeout, err)
	}
	var netErr interface{ Timeout() bool }
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %w", errors.ErrTimeout, err)
	}
	return fmt.Errorf("%w: %w", errors.ErrUnavailable, err)
}

// drain discards the rest of a body so the connection can be reused.
func drain(r io.Reader) {
	_, _ = io.Copy(io.Discard, io.LimitReader(r, constants.MaxResponseSize))
}
