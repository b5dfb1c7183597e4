// Package inference serializes generation requests to a single shared model.
// Concurrent workflows submit requests into a bounded queue; one worker
// goroutine drains it in FIFO order so the model only ever sees one
// generation at a time. Admission is non-blocking: a full queue rejects
// immediately instead of stalling a graph pass.
package inference

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/ohnodev/obelisk-core/model"
	"github.com/ohnodev/obelisk-core/telemetry"
)

type (
	// Option configures a Queue.
	Option func(*Queue)

	// Queue serializes Generate calls to one model.Generator. Safe for
	// concurrent use.
	Queue struct {
		gen        model.Generator
		log        telemetry.Logger
		capacity   int
		contextMax int
		timeout    time.Duration

		requests chan *request
		stop     chan struct{}
		done     chan struct{}

		mu      sync.Mutex
		started bool

		processing atomic.Bool
		pending    atomic.Int64
	}

	// request is one queued generation with its single-shot result future.
	request struct {
		id  string
		req model.Request
		// finish resolves the future exactly once; later calls are dropped.
		finish chan outcome
		once   sync.Once
		// cancelled is set when the submitter gave up; the worker skips the
		// request instead of spending model time on it.
		cancelled atomic.Bool
	}

	outcome struct {
		resp *model.Response
		err  error
	}
)

var (
	// ErrQueueFull rejects a submission because the queue is at capacity.
	ErrQueueFull = errors.New("inference queue is full")
	// ErrTimeout reports that a request waited longer than its deadline.
	ErrTimeout = errors.New("inference request timed out")
	// ErrNotStarted reports a submission against a queue whose worker is not
	// running.
	ErrNotStarted = errors.New("inference queue is not started")
)

const (
	// defaultCapacity bounds queued requests.
	defaultCapacity = 100
	// defaultTimeout is the per-request wait deadline when the caller passes
	// zero.
	defaultTimeout = 2 * time.Minute
)

// WithCapacity overrides the queue capacity (default 100).
func WithCapacity(n int) Option {
	return func(q *Queue) {
		if n > 0 {
			q.capacity = n
		}
	}
}

// WithContextMax sets the model context size used to bound max_tokens.
func WithContextMax(n int) Option {
	return func(q *Queue) { q.contextMax = n }
}

// WithDefaultTimeout overrides the per-request deadline applied when Submit
// receives a zero timeout.
func WithDefaultTimeout(d time.Duration) Option {
	return func(q *Queue) {
		if d > 0 {
			q.timeout = d
		}
	}
}

// WithLogger sets the structured logger.
func WithLogger(l telemetry.Logger) Option {
	return func(q *Queue) { q.log = l }
}

// NewQueue constructs a queue over the given generator. Call Start before
// submitting.
func NewQueue(gen model.Generator, opts ...Option) *Queue {
	q := &Queue{
		gen:      gen,
		log:      telemetry.NewNoopLogger(),
		capacity: defaultCapacity,
		timeout:  defaultTimeout,
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Start launches the worker goroutine. Starting a started queue is a no-op.
func (q *Queue) Start() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.started {
		return
	}
	q.requests = make(chan *request, q.capacity)
	q.stop = make(chan struct{})
	q.done = make(chan struct{})
	q.started = true
	go q.work(q.requests, q.stop, q.done)
}

// Stop shuts the worker down after it finishes any in-flight generation.
// Requests still queued are resolved with ErrNotStarted.
func (q *Queue) Stop() {
	q.mu.Lock()
	if !q.started {
		q.mu.Unlock()
		return
	}
	q.started = false
	close(q.stop)
	done := q.done
	q.mu.Unlock()
	<-done
}

// Submit enqueues one generation request and blocks until it resolves, the
// timeout elapses, or ctx is cancelled. A zero timeout uses the queue
// default. On timeout or cancellation the request is marked cancelled so the
// worker skips it when it reaches the front.
func (q *Queue) Submit(ctx context.Context, req model.Request, timeout time.Duration) (*model.Response, error) {
	if req.Query == "" {
		return nil, fmt.Errorf("inference: query is required")
	}
	if timeout <= 0 {
		timeout = q.timeout
	}

	q.mu.Lock()
	if !q.started {
		q.mu.Unlock()
		return nil, ErrNotStarted
	}
	requests := q.requests
	q.mu.Unlock()

	r := &request{
		id:     uuid.NewString(),
		req:    clampRequest(req, q.contextMax),
		finish: make(chan outcome, 1),
	}
	select {
	case requests <- r:
		q.pending.Add(1)
	default:
		return nil, ErrQueueFull
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case out := <-r.finish:
		if out.err != nil {
			return nil, out.err
		}
		return out.resp, nil
	case <-timer.C:
		r.cancelled.Store(true)
		return nil, fmt.Errorf("%w after %s (request %s)", ErrTimeout, timeout, r.id)
	case <-ctx.Done():
		r.cancelled.Store(true)
		return nil, ctx.Err()
	}
}

// PendingCount reports how many requests are queued but not yet resolved.
func (q *Queue) PendingCount() int {
	return int(q.pending.Load())
}

// IsProcessing reports whether the worker is inside a model generation.
func (q *Queue) IsProcessing() bool {
	return q.processing.Load()
}

func (q *Queue) work(requests chan *request, stop, done chan struct{}) {
	defer close(done)
	ctx := context.Background()
	for {
		select {
		case <-stop:
			q.drain(requests)
			return
		case r := <-requests:
			q.serve(ctx, r)
		}
	}
}

// serve runs one request through the model and resolves its future exactly
// once.
func (q *Queue) serve(ctx context.Context, r *request) {
	defer q.pending.Add(-1)
	if r.cancelled.Load() {
		r.resolve(outcome{err: fmt.Errorf("inference request %s cancelled before processing", r.id)})
		return
	}
	if q.gen == nil {
		r.resolve(outcome{err: model.ErrModelNotLoaded})
		return
	}

	q.processing.Store(true)
	start := time.Now()
	resp, err := q.gen.Generate(ctx, r.req)
	q.processing.Store(false)

	if err != nil {
		q.log.Warn(ctx, "generation failed", "request_id", r.id, "error", err.Error())
		r.resolve(outcome{err: err})
		return
	}
	q.log.Debug(ctx, "generation complete", "request_id", r.id, "duration", time.Since(start).String())
	r.resolve(outcome{resp: resp})
}

// drain resolves queued requests after Stop so no submitter waits out its
// full timeout against a dead worker.
func (q *Queue) drain(requests chan *request) {
	for {
		select {
		case r := <-requests:
			q.pending.Add(-1)
			r.resolve(outcome{err: ErrNotStarted})
		default:
			return
		}
	}
}

func (r *request) resolve(out outcome) {
	r.once.Do(func() { r.finish <- out })
}
