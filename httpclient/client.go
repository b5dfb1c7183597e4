// Package httpclient provides the best-effort HTTP collaborator used by
// nodes for external services. Calls carry an explicit timeout and network
// failures come back as descriptive errors that nodes surface as node
// failures.
package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

type (
	// Option configures the HTTP client.
	Option func(*Client)

	// Client wraps *http.Client with JSON encode/decode and static headers.
	Client struct {
		http    *http.Client
		headers http.Header
	}
)

// defaultTimeout bounds requests when the caller does not override it.
const defaultTimeout = 30 * time.Second

// WithHTTPClient overrides the underlying *http.Client used for requests.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		cl.http = c
	}
}

// WithTimeout sets the default request timeout.
func WithTimeout(d time.Duration) Option {
	return func(cl *Client) {
		cl.http.Timeout = d
	}
}

// WithHeader adds a static header to all outgoing requests.
func WithHeader(name, value string) Option {
	return func(cl *Client) {
		if cl.headers == nil {
			cl.headers = make(http.Header)
		}
		cl.headers.Add(name, value)
	}
}

// WithBearerToken configures the client to send an Authorization Bearer token.
func WithBearerToken(token string) Option {
	return WithHeader("Authorization", "Bearer "+token)
}

// New constructs a client with the default timeout and the given options.
func New(opts ...Option) *Client {
	c := &Client{http: &http.Client{Timeout: defaultTimeout}}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// PostJSON sends body as JSON to url and decodes the JSON response into out
// (skipped when out is nil). A non-2xx status is an error carrying the
// status and a response excerpt.
func (c *Client) PostJSON(ctx context.Context, url string, body, out any) error {
	var payload io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}
		payload = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, payload)
	if err != nil {
		return fmt.Errorf("build POST %s: %w", url, err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

// GetJSON fetches url and decodes the JSON response into out (skipped when
// out is nil).
func (c *Client) GetJSON(ctx context.Context, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("build GET %s: %w", url, err)
	}
	return c.do(req, out)
}

// Do sends an arbitrary request built by the caller and decodes the JSON
// response into out. Used by nodes that need full control over method and
// body.
func (c *Client) Do(req *http.Request, out any) error {
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	for name, values := range c.headers {
		for _, v := range values {
			req.Header.Add(name, v)
		}
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", req.Method, req.URL, err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read %s response: %w", req.URL, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%s %s: status %d: %s", req.Method, req.URL, resp.StatusCode, excerpt(raw))
	}
	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode %s response: %w", req.URL, err)
	}
	return nil
}

func excerpt(raw []byte) string {
	const max = 256
	if len(raw) > max {
		return string(raw[:max]) + "..."
	}
	return string(raw)
}
