package rng

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

func qrngServer(t *testing.T, value float64, calls *atomic.Int64) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls != nil {
			calls.Add(1)
		}
		var req map[string]int
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		json.NewEncoder(w).Encode(Sample{
			Value:   value,
			Qubits:  req["num_qubits"],
			Shots:   req["shots"],
			Backend: "simulator",
			Source:  "test",
		})
	}))
}

func TestQuantumRandom(t *testing.T) {
	srv := qrngServer(t, 0.42, nil)
	defer srv.Close()

	c, err := NewClient(srv.URL, WithRateLimit(rate.Inf, 1))
	require.NoError(t, err)
	sample, err := c.QuantumRandom(context.Background(), 8, 1024)
	require.NoError(t, err)
	require.Equal(t, 0.42, sample.Value)
	require.Equal(t, 8, sample.Qubits)
	require.Equal(t, 1024, sample.Shots)
	require.Equal(t, "simulator", sample.Backend)
}

func TestQuantumRandomValidation(t *testing.T) {
	c, err := NewClient("http://qrng.invalid")
	require.NoError(t, err)

	_, err = c.QuantumRandom(context.Background(), 0, 100)
	require.Error(t, err)
	_, err = c.QuantumRandom(context.Background(), 4, -1)
	require.Error(t, err)

	_, err = NewClient("")
	require.Error(t, err, "endpoint is required")
}

func TestQuantumRandomRejectsOutOfRangeValue(t *testing.T) {
	srv := qrngServer(t, 1.5, nil)
	defer srv.Close()

	c, err := NewClient(srv.URL, WithRateLimit(rate.Inf, 1))
	require.NoError(t, err)
	_, err = c.QuantumRandom(context.Background(), 4, 100)
	require.Error(t, err)
	require.Contains(t, err.Error(), "out of [0, 1]")
}

func TestRateLimitHonorsContext(t *testing.T) {
	srv := qrngServer(t, 0.5, nil)
	defer srv.Close()

	// Burst 1 at a tiny rate: the second call must wait, and a cancelled
	// context aborts the wait.
	c, err := NewClient(srv.URL, WithRateLimit(rate.Limit(0.001), 1))
	require.NoError(t, err)
	_, err = c.QuantumRandom(context.Background(), 4, 100)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = c.QuantumRandom(ctx, 4, 100)
	require.Error(t, err)
	require.Contains(t, err.Error(), "rate limit")
}
