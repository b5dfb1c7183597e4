// Package jobqueue runs workflow executions as durable FIFO jobs. Every
// enqueue, pickup, and completion is persisted to a single JSON file with a
// write-then-rename so a crash never leaves a half-written state file; on
// restart, jobs that were mid-execution are re-queued at the front of the
// line. Execution itself is delegated to an injected executor, keeping the
// queue free of engine wiring.
package jobqueue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ohnodev/obelisk-core/engine"
	"github.com/ohnodev/obelisk-core/telemetry"
	"github.com/ohnodev/obelisk-core/workflow"
)

type (
	// Executor runs one workflow to completion. *engine.Engine satisfies it.
	Executor interface {
		Execute(ctx context.Context, g *workflow.Graph, vars map[string]any) *engine.GraphResult
	}

	// ExecutorFactory builds the executor used for one job.
	ExecutorFactory func() Executor

	// Option configures a Queue.
	Option func(*Queue)

	// Queue is the durable job queue. Safe for concurrent use; jobs execute
	// serially on one worker goroutine in enqueue order.
	Queue struct {
		factory      ExecutorFactory
		log          telemetry.Logger
		path         string
		maxQueued    int
		maxPerCaller int
		maxCompleted int
		jobTimeout   time.Duration

		mu   sync.Mutex
		jobs map[string]*Job
		fifo []string

		wake chan struct{}
		stop chan struct{}
		done chan struct{}

		started bool
	}

	// persistedState is the on-disk document shape. SavedAt is a unix
	// timestamp.
	persistedState struct {
		Jobs    []*Job `json:"jobs"`
		SavedAt int64  `json:"saved_at"`
	}
)

var (
	// ErrJobNotFound reports an unknown job id.
	ErrJobNotFound = errors.New("job not found")
	// ErrNotCancellable reports a cancel attempt on a job that already left
	// the queued state.
	ErrNotCancellable = errors.New("job is not cancellable")
	// ErrQueueFull rejects an enqueue because the queued-job cap is reached.
	ErrQueueFull = errors.New("job queue is full")
	// ErrCallerLimit rejects an enqueue because the caller already has the
	// maximum number of active (queued or running) jobs.
	ErrCallerLimit = errors.New("per-caller job limit reached")
	// ErrNotRunning reports an enqueue against a stopped queue.
	ErrNotRunning = errors.New("job queue is not running")
)

const (
	// defaultMaxCompleted is how many terminal jobs are retained for result
	// retrieval before the oldest are dropped.
	defaultMaxCompleted = 100
	// defaultJobTimeout bounds a single job execution.
	defaultJobTimeout = 10 * time.Minute
)

// WithPersistence persists queue state to the given file. Empty disables
// persistence; the queue then only lives in memory.
func WithPersistence(path string) Option {
	return func(q *Queue) { q.path = path }
}

// WithMaxQueued caps the number of jobs waiting in line. Zero means
// unlimited.
func WithMaxQueued(n int) Option {
	return func(q *Queue) { q.maxQueued = n }
}

// WithMaxPerCaller caps queued-plus-running jobs per caller (keyed by user
// id, falling back to client id). Zero means unlimited.
func WithMaxPerCaller(n int) Option {
	return func(q *Queue) { q.maxPerCaller = n }
}

// WithMaxCompleted overrides how many terminal jobs are retained (default
// 100).
func WithMaxCompleted(n int) Option {
	return func(q *Queue) {
		if n > 0 {
			q.maxCompleted = n
		}
	}
}

// WithJobTimeout bounds a single job execution (default 10m).
func WithJobTimeout(d time.Duration) Option {
	return func(q *Queue) {
		if d > 0 {
			q.jobTimeout = d
		}
	}
}

// WithLogger sets the structured logger.
func WithLogger(l telemetry.Logger) Option {
	return func(q *Queue) { q.log = l }
}

// New constructs a queue around the given executor factory and, when
// persistence is configured, recovers previously saved jobs: queued jobs
// keep their order, jobs caught mid-execution by a crash go back to the
// front of the line, and terminal jobs stay available for result retrieval.
func New(factory ExecutorFactory, opts ...Option) (*Queue, error) {
	q := &Queue{
		factory:      factory,
		log:          telemetry.NewNoopLogger(),
		maxCompleted: defaultMaxCompleted,
		jobTimeout:   defaultJobTimeout,
		jobs:         make(map[string]*Job),
		wake:         make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(q)
	}
	if q.path != "" {
		if err := q.recover(); err != nil {
			return nil, err
		}
	}
	return q, nil
}

// Start launches the worker goroutine. Starting a started queue is a no-op.
func (q *Queue) Start() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.started {
		return
	}
	q.stop = make(chan struct{})
	q.done = make(chan struct{})
	q.started = true
	go q.work(q.stop, q.done)
	if len(q.fifo) > 0 {
		q.signal()
	}
}

// Stop shuts the worker down after any in-flight job finishes. Queued jobs
// stay queued (and persisted) for the next Start.
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

// Enqueue adds a workflow execution job and returns its id. The job is
// persisted before the call returns.
func (q *Queue) Enqueue(g *workflow.Graph, opts Options) (string, error) {
	if g == nil || len(g.Nodes) == 0 {
		return "", fmt.Errorf("jobqueue: workflow with at least one node is required")
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.maxQueued > 0 && len(q.fifo) >= q.maxQueued {
		return "", fmt.Errorf("%w: limit %d, %d jobs queued", ErrQueueFull, q.maxQueued, len(q.fifo))
	}
	if q.maxPerCaller > 0 {
		caller := opts.callerID()
		active := 0
		for _, j := range q.jobs {
			if j.Options.callerID() == caller && (j.Status == StatusQueued || j.Status == StatusRunning) {
				active++
			}
		}
		if active >= q.maxPerCaller {
			return "", fmt.Errorf("%w: caller %s limit %d, %d active", ErrCallerLimit, caller, q.maxPerCaller, active)
		}
	}
	job := &Job{
		ID:        uuid.NewString(),
		Workflow:  g,
		Options:   opts,
		Status:    StatusQueued,
		CreatedAt: time.Now().UTC(),
	}
	q.jobs[job.ID] = job
	q.fifo = append(q.fifo, job.ID)
	q.recomputePositions()
	q.persistLocked()
	q.signal()
	q.log.Info(context.Background(), "job enqueued", "job_id", job.ID, "caller", opts.callerID(), "position", job.Position)
	return job.ID, nil
}

// Cancel cancels a job that is still waiting in line. Running and terminal
// jobs are not cancellable.
func (q *Queue) Cancel(id string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	job, ok := q.jobs[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}
	if job.Status != StatusQueued {
		return fmt.Errorf("%w: %s is %s", ErrNotCancellable, id, job.Status)
	}
	job.Status = StatusCancelled
	job.Error = "cancelled by caller"
	now := time.Now().UTC()
	job.CompletedAt = &now
	job.Position = -1
	q.removeFromLine(id)
	q.recomputePositions()
	q.pruneTerminal()
	q.persistLocked()
	return nil
}

// GetJob returns a copy of the job record.
func (q *Queue) GetJob(id string) (*Job, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	job, ok := q.jobs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}
	return job.clone(), nil
}

// Result returns the execution result of a terminal job. Queued and running
// jobs return an error naming their current state.
func (q *Queue) Result(id string) (*engine.GraphResult, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	job, ok := q.jobs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}
	if !job.Status.terminal() {
		return nil, fmt.Errorf("job %s is still %s", id, job.Status)
	}
	return job.Result, nil
}

// List returns copies of all retained jobs, newest first.
func (q *Queue) List() []*Job {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]*Job, 0, len(q.jobs))
	for _, job := range q.jobs {
		out = append(out, job.clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

// QueuedCount reports how many jobs are waiting in line.
func (q *Queue) QueuedCount() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.fifo)
}

func (q *Queue) work(stop, done chan struct{}) {
	defer close(done)
	for {
		select {
		case <-stop:
			return
		case <-q.wake:
		}
		for {
			job := q.takeNext()
			if job == nil {
				break
			}
			q.execute(job)
			select {
			case <-stop:
				return
			default:
			}
		}
	}
}

// takeNext pops the front of the line and marks it running.
func (q *Queue) takeNext() *Job {
	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.fifo) > 0 {
		id := q.fifo[0]
		q.fifo = q.fifo[1:]
		job, ok := q.jobs[id]
		if !ok || job.Status != StatusQueued {
			continue
		}
		now := time.Now().UTC()
		job.Status = StatusRunning
		job.StartedAt = &now
		job.Position = -1
		q.recomputePositions()
		q.persistLocked()
		return job
	}
	return nil
}

// execute runs one job through a fresh executor and records the terminal
// state.
func (q *Queue) execute(job *Job) {
	ctx, cancel := context.WithTimeout(context.Background(), q.jobTimeout)
	defer cancel()

	res := q.factory().Execute(ctx, job.Workflow, job.Options.contextVariables())

	q.mu.Lock()
	defer q.mu.Unlock()
	now := time.Now().UTC()
	job.CompletedAt = &now
	job.Result = res
	if res != nil && res.Success {
		job.Status = StatusCompleted
	} else {
		job.Status = StatusFailed
		if res != nil {
			job.Error = res.Error
		} else {
			job.Error = "executor returned no result"
		}
	}
	q.pruneTerminal()
	q.persistLocked()
	q.log.Info(ctx, "job finished", "job_id", job.ID, "status", string(job.Status))
}

func (q *Queue) signal() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

func (q *Queue) removeFromLine(id string) {
	for i, queued := range q.fifo {
		if queued == id {
			q.fifo = append(q.fifo[:i], q.fifo[i+1:]...)
			return
		}
	}
}

// recomputePositions renumbers queued jobs densely from 0, front of the
// line first.
func (q *Queue) recomputePositions() {
	for i, id := range q.fifo {
		if job, ok := q.jobs[id]; ok {
			job.Position = i
		}
	}
}

// pruneTerminal drops the oldest terminal jobs beyond the retention cap.
func (q *Queue) pruneTerminal() {
	var terminal []*Job
	for _, job := range q.jobs {
		if job.Status.terminal() {
			terminal = append(terminal, job)
		}
	}
	if len(terminal) <= q.maxCompleted {
		return
	}
	sort.Slice(terminal, func(i, j int) bool {
		return terminal[i].CreatedAt.Before(terminal[j].CreatedAt)
	})
	for _, job := range terminal[:len(terminal)-q.maxCompleted] {
		delete(q.jobs, job.ID)
	}
}

// persistLocked writes the full queue state to disk via a temp file, fsync,
// and rename. Persistence failures are logged, never fatal: the in-memory
// queue keeps serving.
func (q *Queue) persistLocked() {
	if q.path == "" {
		return
	}
	state := persistedState{
		Jobs:    make([]*Job, 0, len(q.jobs)),
		SavedAt: time.Now().Unix(),
	}
	for _, job := range q.jobs {
		state.Jobs = append(state.Jobs, job)
	}
	sort.Slice(state.Jobs, func(i, j int) bool {
		if state.Jobs[i].CreatedAt.Equal(state.Jobs[j].CreatedAt) {
			return state.Jobs[i].ID < state.Jobs[j].ID
		}
		return state.Jobs[i].CreatedAt.Before(state.Jobs[j].CreatedAt)
	})

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		q.log.Error(context.Background(), err, "persist job queue: marshal")
		return
	}
	tmp := q.path + ".tmp"
	if err := writeAndSync(tmp, data); err != nil {
		q.log.Error(context.Background(), err, "persist job queue: write", "path", tmp)
		return
	}
	if err := os.Rename(tmp, q.path); err != nil {
		q.log.Error(context.Background(), err, "persist job queue: rename", "path", q.path)
	}
}

func writeAndSync(path string, data []byte) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// recover loads persisted state. Jobs found running were interrupted by a
// crash; they go back to the front of the line, oldest first, ahead of jobs
// that never started.
func (q *Queue) recover() error {
	data, err := os.ReadFile(q.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("jobqueue: read state %s: %w", q.path, err)
	}
	var state persistedState
	if err := json.Unmarshal(data, &state); err != nil {
		return fmt.Errorf("jobqueue: decode state %s: %w", q.path, err)
	}

	var interrupted, queued []*Job
	for _, job := range state.Jobs {
		q.jobs[job.ID] = job
		switch job.Status {
		case StatusRunning:
			job.Status = StatusQueued
			job.StartedAt = nil
			interrupted = append(interrupted, job)
		case StatusQueued:
			queued = append(queued, job)
		}
	}
	byCreation := func(jobs []*Job) {
		sort.Slice(jobs, func(i, j int) bool {
			if jobs[i].CreatedAt.Equal(jobs[j].CreatedAt) {
				return jobs[i].ID < jobs[j].ID
			}
			return jobs[i].CreatedAt.Before(jobs[j].CreatedAt)
		})
	}
	byCreation(interrupted)
	sort.Slice(queued, func(i, j int) bool {
		if queued[i].Position != queued[j].Position {
			return queued[i].Position < queued[j].Position
		}
		return queued[i].CreatedAt.Before(queued[j].CreatedAt)
	})
	for _, job := range interrupted {
		q.fifo = append(q.fifo, job.ID)
	}
	for _, job := range queued {
		q.fifo = append(q.fifo, job.ID)
	}
	q.recomputePositions()
	if len(q.fifo) > 0 {
		q.log.Info(context.Background(), "job queue recovered", "queued", len(q.fifo), "interrupted", len(interrupted))
	}
	return nil
}
