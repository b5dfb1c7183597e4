package inference

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ohnodev/obelisk-core/model"
)

// slowGenerator records concurrency and the requests it actually served.
type slowGenerator struct {
	delay    time.Duration
	inFlight atomic.Int32
	overlap  atomic.Bool
	fail     bool

	mu     sync.Mutex
	served []model.Request
}

func (g *slowGenerator) Generate(ctx context.Context, req model.Request) (*model.Response, error) {
	if g.inFlight.Add(1) > 1 {
		g.overlap.Store(true)
	}
	defer g.inFlight.Add(-1)
	time.Sleep(g.delay)
	g.mu.Lock()
	g.served = append(g.served, req)
	g.mu.Unlock()
	if g.fail {
		return nil, fmt.Errorf("backend is on fire")
	}
	return &model.Response{Response: "echo: " + req.Query, Source: "test"}, nil
}

func (g *slowGenerator) servedQueries() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]string, len(g.served))
	for i, r := range g.served {
		out[i] = r.Query
	}
	return out
}

func TestSubmitSerializesConcurrentCallers(t *testing.T) {
	gen := &slowGenerator{delay: 5 * time.Millisecond}
	q := NewQueue(gen, WithCapacity(32))
	q.Start()
	defer q.Stop()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			resp, err := q.Submit(context.Background(), model.Request{Query: fmt.Sprintf("q%d", i)}, time.Second)
			require.NoError(t, err)
			require.Contains(t, resp.Response, fmt.Sprintf("q%d", i))
		}(i)
	}
	wg.Wait()

	require.False(t, gen.overlap.Load(), "model saw overlapping generations")
	require.Len(t, gen.servedQueries(), 8)
	require.Zero(t, q.PendingCount())
}

func TestSubmitRejectsWhenFull(t *testing.T) {
	gen := &slowGenerator{delay: 200 * time.Millisecond}
	q := NewQueue(gen, WithCapacity(1))
	q.Start()
	defer q.Stop()

	// First request occupies the worker, second fills the channel.
	go q.Submit(context.Background(), model.Request{Query: "busy"}, time.Second)
	time.Sleep(20 * time.Millisecond)
	go q.Submit(context.Background(), model.Request{Query: "queued"}, time.Second)
	time.Sleep(20 * time.Millisecond)

	_, err := q.Submit(context.Background(), model.Request{Query: "rejected"}, time.Second)
	require.ErrorIs(t, err, ErrQueueFull, "admission is non-blocking")
}

func TestSubmitTimesOutAndWorkerSkips(t *testing.T) {
	gen := &slowGenerator{delay: 100 * time.Millisecond}
	q := NewQueue(gen)
	q.Start()
	defer q.Stop()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		q.Submit(context.Background(), model.Request{Query: "slow"}, time.Second)
	}()
	time.Sleep(10 * time.Millisecond)

	_, err := q.Submit(context.Background(), model.Request{Query: "impatient"}, 5*time.Millisecond)
	require.ErrorIs(t, err, ErrTimeout)
	wg.Wait()

	// Give the worker a moment to reach the abandoned request.
	time.Sleep(50 * time.Millisecond)
	require.NotContains(t, gen.servedQueries(), "impatient", "cancelled request never reached the model")
}

func TestSubmitBeforeStart(t *testing.T) {
	q := NewQueue(&slowGenerator{})
	_, err := q.Submit(context.Background(), model.Request{Query: "x"}, time.Second)
	require.ErrorIs(t, err, ErrNotStarted)
}

func TestGenerationErrorIsPerRequest(t *testing.T) {
	gen := &slowGenerator{fail: true}
	q := NewQueue(gen)
	q.Start()
	defer q.Stop()

	_, err := q.Submit(context.Background(), model.Request{Query: "doomed"}, time.Second)
	require.Error(t, err)
	require.Contains(t, err.Error(), "on fire")

	// The queue keeps serving after a failed generation.
	gen.fail = false
	resp, err := q.Submit(context.Background(), model.Request{Query: "next"}, time.Second)
	require.NoError(t, err)
	require.Equal(t, "echo: next", resp.Response)
}

func TestSubmitClampsSamplingParameters(t *testing.T) {
	gen := &slowGenerator{}
	q := NewQueue(gen, WithContextMax(2048))
	q.Start()
	defer q.Stop()

	_, err := q.Submit(context.Background(), model.Request{
		Query:             "clamped",
		Temperature:       99,
		TopP:              2,
		TopK:              100000,
		RepetitionPenalty: 0.1,
		MaxTokens:         1 << 20,
	}, time.Second)
	require.NoError(t, err)

	gen.mu.Lock()
	served := gen.served[0]
	gen.mu.Unlock()
	require.Equal(t, maxTemperature, served.Temperature)
	require.Equal(t, maxTopP, served.TopP)
	require.Equal(t, maxTopK, served.TopK)
	require.Equal(t, minRepetition, served.RepetitionPenalty)
	require.Equal(t, 2048, served.MaxTokens)
}

func TestZeroParametersPassThrough(t *testing.T) {
	req := clampRequest(model.Request{Query: "defaults"}, 0)
	require.Zero(t, req.Temperature)
	require.Zero(t, req.TopP)
	require.Zero(t, req.TopK)
	require.Zero(t, req.RepetitionPenalty)
	require.Zero(t, req.MaxTokens)
}

func TestStopResolvesQueuedRequests(t *testing.T) {
	gen := &slowGenerator{delay: 100 * time.Millisecond}
	q := NewQueue(gen, WithCapacity(4))
	q.Start()

	errs := make(chan error, 3)
	for i := 0; i < 3; i++ {
		go func(i int) {
			_, err := q.Submit(context.Background(), model.Request{Query: fmt.Sprintf("q%d", i)}, 5*time.Second)
			errs <- err
		}(i)
	}
	time.Sleep(20 * time.Millisecond)
	q.Stop()

	for i := 0; i < 3; i++ {
		select {
		case err := <-errs:
			if err != nil {
				require.ErrorIs(t, err, ErrNotStarted)
			}
		case <-time.After(2 * time.Second):
			require.Fail(t, "submitter still waiting after Stop")
		}
	}
}
