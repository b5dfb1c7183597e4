package rng

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"

	"github.com/ohnodev/obelisk-core/httpclient"
)

type (
	// ClientOption configures the HTTP-backed source.
	ClientOption func(*Client)

	// Client implements Source against a remote QRNG service exposing a JSON
	// POST endpoint. Requests are rate-limited so graph re-executions cannot
	// hammer the external device queue.
	Client struct {
		endpoint string
		http     *httpclient.Client
		limiter  *rate.Limiter
	}

	randomRequest struct {
		Qubits int `json:"num_qubits"`
		Shots  int `json:"shots"`
	}
)

// WithHTTPClient overrides the underlying httpclient.Client.
func WithHTTPClient(c *httpclient.Client) ClientOption {
	return func(cl *Client) {
		cl.http = c
	}
}

// WithRateLimit caps outgoing requests at r per second with the given burst.
func WithRateLimit(r rate.Limit, burst int) ClientOption {
	return func(cl *Client) {
		cl.limiter = rate.NewLimiter(r, burst)
	}
}

// NewClient constructs an HTTP-backed source for the given endpoint. The
// default limit of one request per second matches the duty cycle public QRNG
// services tolerate.
func NewClient(endpoint string, opts ...ClientOption) (*Client, error) {
	if endpoint == "" {
		return nil, fmt.Errorf("rng endpoint is required")
	}
	c := &Client{
		endpoint: endpoint,
		http:     httpclient.New(),
		limiter:  rate.NewLimiter(rate.Limit(1), 1),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// QuantumRandom requests one sample from the remote service.
func (c *Client) QuantumRandom(ctx context.Context, qubits, shots int) (*Sample, error) {
	if qubits <= 0 {
		return nil, fmt.Errorf("num_qubits must be positive, got %d", qubits)
	}
	if shots <= 0 {
		return nil, fmt.Errorf("shots must be positive, got %d", shots)
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rng rate limit: %w", err)
	}
	var sample Sample
	if err := c.http.PostJSON(ctx, c.endpoint, randomRequest{Qubits: qubits, Shots: shots}, &sample); err != nil {
		return nil, fmt.Errorf("quantum random: %w", err)
	}
	if sample.Value < 0 || sample.Value > 1 {
		return nil, fmt.Errorf("quantum random: value %v out of [0, 1]", sample.Value)
	}
	return &sample, nil
}
