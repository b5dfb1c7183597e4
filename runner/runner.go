// Package runner keeps continuous workflows alive. It owns a single tick
// goroutine per runner instance; each tick it polls the autonomous nodes of
// every running workflow, computes the sub-graph a firing node can affect
// (downstream closure plus the non-autonomous dependency closure), and
// delegates execution of that slice to the engine against the workflow's
// long-lived execution context. Results are surfaced as versioned
// TickResults so external pollers can detect changes.
//
// Graphs without autonomous nodes take a shortcut: the runner executes them
// exactly once, invokes the completion callback, and never registers a
// running workflow.
package runner

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ohnodev/obelisk-core/engine"
	"github.com/ohnodev/obelisk-core/node"
	"github.com/ohnodev/obelisk-core/telemetry"
	"github.com/ohnodev/obelisk-core/workflow"
)

type (
	// State is the lifecycle state of a running workflow.
	State string

	// Option configures a Runner.
	Option func(*Runner)

	// StartOption configures a single workflow start.
	StartOption func(*startConfig)

	// TickResult is the versioned result surface of one successful pass.
	// Results hold sanitized (JSON-safe) per-node outputs keyed by node id.
	TickResult struct {
		// WorkflowID names the workflow that produced the result.
		WorkflowID string `json:"workflow_id"`
		// Tick is the tick counter value at execution time. Zero for the
		// one-shot shortcut path.
		Tick uint64 `json:"tick"`
		// Success reports whether the pass succeeded.
		Success bool `json:"success"`
		// ExecutedNodes lists executed node ids in order.
		ExecutedNodes []string `json:"executed_nodes"`
		// Results maps node id to sanitized outputs.
		Results map[string]any `json:"results"`
		// Error is the failure reason when Success is false.
		Error string `json:"error,omitempty"`
		// Version is the strictly monotonic per-workflow result version.
		Version uint64 `json:"version"`
	}

	// Status is a point-in-time snapshot of a running workflow.
	Status struct {
		// WorkflowID names the workflow.
		WorkflowID string `json:"workflow_id"`
		// State is the lifecycle state.
		State State `json:"state"`
		// TickCount is the number of ticks processed so far.
		TickCount uint64 `json:"tick_count"`
		// LastTick is when the most recent tick started.
		LastTick time.Time `json:"last_tick"`
		// ResultsVersion is the version of Latest; it only moves forward.
		ResultsVersion uint64 `json:"results_version"`
		// Latest is the most recent successful tick result, nil before the
		// first one.
		Latest *TickResult `json:"latest,omitempty"`
	}

	// LimitError reports a rejected start because an admission cap was hit.
	LimitError struct {
		// Scope is "total" or "caller".
		Scope string
		// Limit is the configured cap.
		Limit int
		// Current is the running count at rejection time.
		Current int
	}

	// Runner drives continuous workflows. Safe for concurrent use; all tick
	// processing happens serially on the single tick goroutine.
	Runner struct {
		eng       *engine.Engine
		container *node.Container
		log       telemetry.Logger
		tracer    telemetry.Tracer

		tickInterval time.Duration
		maxRunning   int
		maxPerCaller int
		failLimit    int

		mu        sync.Mutex
		workflows map[string]*running
		loopDone  chan struct{}
		kick      chan struct{}
	}

	// running is the runner-owned record of one continuous workflow. Fields
	// other than state are mutated only by the tick goroutine; state flips
	// under the runner mutex.
	running struct {
		id         string
		caller     string
		graph      *workflow.Graph
		state      State
		tickCount  uint64
		lastTick   time.Time
		nodes      map[string]node.Node
		autonomous []string
		ec         *node.Context
		latest     *TickResult
		version    uint64
		onComplete func(*TickResult)
		onError    func(error)
		failStreak int
	}

	startConfig struct {
		onComplete func(*TickResult)
		onError    func(error)
	}
)

const (
	// StateRunning workflows are ticked.
	StateRunning State = "running"
	// StateStopped workflows are removed from the registry.
	StateStopped State = "stopped"
	// StatePaused workflows stay registered but are skipped by the tick
	// loop.
	StatePaused State = "paused"
)

const (
	// defaultTickInterval is the base tick cadence.
	defaultTickInterval = 100 * time.Millisecond
	// defaultFailLimit stops a workflow after this many consecutive failed
	// ticks so a wedged autonomous node cannot spin forever.
	defaultFailLimit = 10
)

// Error implements the error interface.
func (e *LimitError) Error() string {
	return fmt.Sprintf("workflow limit exceeded: %s cap %d reached (%d running)", e.Scope, e.Limit, e.Current)
}

// WithContainer sets the collaborator container seeded into workflow
// contexts.
func WithContainer(c *node.Container) Option {
	return func(r *Runner) { r.container = c }
}

// WithTickInterval overrides the base tick interval (default 100ms).
func WithTickInterval(d time.Duration) Option {
	return func(r *Runner) {
		if d > 0 {
			r.tickInterval = d
		}
	}
}

// WithMaxRunning caps the total number of registered continuous workflows.
// Zero means unlimited.
func WithMaxRunning(n int) Option {
	return func(r *Runner) { r.maxRunning = n }
}

// WithMaxCallerRunning caps continuous workflows per caller, keyed by the
// "user_id" (fallback "client_id") variable. Zero means unlimited.
func WithMaxCallerRunning(n int) Option {
	return func(r *Runner) { r.maxPerCaller = n }
}

// WithFailureLimit overrides the consecutive-failed-tick threshold that
// stops a workflow (default 10).
func WithFailureLimit(n int) Option {
	return func(r *Runner) {
		if n > 0 {
			r.failLimit = n
		}
	}
}

// WithLogger sets the structured logger.
func WithLogger(l telemetry.Logger) Option {
	return func(r *Runner) { r.log = l }
}

// WithTracer sets the tracer.
func WithTracer(t telemetry.Tracer) Option {
	return func(r *Runner) { r.tracer = t }
}

// WithOnTickComplete registers a callback invoked with every successful
// versioned result (and with the single result on the one-shot shortcut).
func WithOnTickComplete(fn func(*TickResult)) StartOption {
	return func(c *startConfig) { c.onComplete = fn }
}

// WithOnError registers a callback invoked on tick-local failures. The
// workflow stays running until the failure limit is reached or the caller
// stops it.
func WithOnError(fn func(error)) StartOption {
	return func(c *startConfig) { c.onError = fn }
}

// New constructs a runner over the given engine.
func New(eng *engine.Engine, opts ...Option) *Runner {
	r := &Runner{
		eng:          eng,
		log:          telemetry.NewNoopLogger(),
		tracer:       telemetry.NewNoopTracer(),
		tickInterval: defaultTickInterval,
		failLimit:    defaultFailLimit,
		workflows:    make(map[string]*running),
		kick:         make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// StartWorkflow activates a workflow. Graphs with no autonomous node execute
// once, synchronously, and are not registered; the completion callback
// receives the single result. Graphs with autonomous nodes are registered in
// StateRunning and ticked until stopped. The returned id is the graph's
// declared id (generated when empty) in both cases.
func (r *Runner) StartWorkflow(ctx context.Context, g *workflow.Graph, vars map[string]any, opts ...StartOption) (string, error) {
	var cfg startConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	if g.ID == "" {
		g.ID = uuid.NewString()
	}

	nodes, gerr := r.eng.BuildNodes(g)
	if gerr != nil {
		return "", gerr
	}
	var autonomous []string
	for _, def := range g.Nodes {
		if nodes[def.ID].NodeBase().Mode() == node.ModeContinuous {
			autonomous = append(autonomous, def.ID)
		}
	}

	ec := node.NewContext(r.container, vars)
	if len(autonomous) == 0 {
		// One-shot shortcut. No continuous nodes means ExecuteSubgraph is a
		// plain full pass over the prebuilt instances.
		res := r.eng.ExecuteSubgraph(ctx, g, nodes, ec)
		if cfg.onComplete != nil {
			cfg.onComplete(resultFromPass(g.ID, 0, 1, res))
		}
		return g.ID, nil
	}

	caller := callerKey(vars)
	r.mu.Lock()
	if r.maxRunning > 0 && len(r.workflows) >= r.maxRunning {
		current := len(r.workflows)
		r.mu.Unlock()
		return "", &LimitError{Scope: "total", Limit: r.maxRunning, Current: current}
	}
	if r.maxPerCaller > 0 {
		count := 0
		for _, w := range r.workflows {
			if w.caller == caller {
				count++
			}
		}
		if count >= r.maxPerCaller {
			r.mu.Unlock()
			return "", &LimitError{Scope: "caller", Limit: r.maxPerCaller, Current: count}
		}
	}
	if _, dup := r.workflows[g.ID]; dup {
		r.mu.Unlock()
		return "", fmt.Errorf("workflow %q is already running", g.ID)
	}
	r.workflows[g.ID] = &running{
		id:         g.ID,
		caller:     caller,
		graph:      g,
		state:      StateRunning,
		nodes:      nodes,
		autonomous: autonomous,
		ec:         ec,
		onComplete: cfg.onComplete,
		onError:    cfg.onError,
	}
	if r.loopDone == nil {
		r.loopDone = make(chan struct{})
		go r.loop(r.loopDone)
	}
	r.mu.Unlock()

	r.log.Info(ctx, "workflow started", "workflow_id", g.ID, "autonomous_nodes", len(autonomous))
	return g.ID, nil
}

// StopWorkflow stops and removes a workflow. Returns false for unknown ids;
// calling it twice returns true then false. An in-flight tick for the
// workflow completes naturally.
func (r *Runner) StopWorkflow(id string) bool {
	r.mu.Lock()
	w, ok := r.workflows[id]
	if !ok {
		r.mu.Unlock()
		return false
	}
	w.state = StateStopped
	delete(r.workflows, id)
	r.mu.Unlock()

	// Wake the tick loop so it can notice an empty registry and exit.
	select {
	case r.kick <- struct{}{}:
	default:
	}
	r.log.Info(context.Background(), "workflow stopped", "workflow_id", id)
	return true
}

// StopAll stops every registered workflow and joins the tick goroutine,
// best-effort with a short timeout.
func (r *Runner) StopAll() {
	r.mu.Lock()
	done := r.loopDone
	ids := make([]string, 0, len(r.workflows))
	for id := range r.workflows {
		ids = append(ids, id)
	}
	r.mu.Unlock()

	for _, id := range ids {
		r.StopWorkflow(id)
	}
	if done != nil {
		select {
		case <-done:
		case <-time.After(time.Second):
		}
	}
}

// GetStatus returns a snapshot of the workflow, or false for unknown ids.
func (r *Runner) GetStatus(id string) (*Status, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.workflows[id]
	if !ok {
		return nil, false
	}
	return &Status{
		WorkflowID:     w.id,
		State:          w.state,
		TickCount:      w.tickCount,
		LastTick:       w.lastTick,
		ResultsVersion: w.version,
		Latest:         w.latest,
	}, true
}

// ListRunning returns the registered workflow ids in sorted order.
func (r *Runner) ListRunning() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]string, 0, len(r.workflows))
	for id := range r.workflows {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// loop is the tick goroutine. It exits when the registry drains.
func (r *Runner) loop(done chan struct{}) {
	defer close(done)
	ctx := context.Background()
	for {
		r.mu.Lock()
		if len(r.workflows) == 0 {
			r.loopDone = nil
			r.mu.Unlock()
			return
		}
		snapshot := make([]*running, 0, len(r.workflows))
		for _, w := range r.workflows {
			if w.state == StateRunning {
				snapshot = append(snapshot, w)
			}
		}
		r.mu.Unlock()
		sort.Slice(snapshot, func(i, j int) bool { return snapshot[i].id < snapshot[j].id })

		start := time.Now()
		for _, w := range snapshot {
			r.processTick(ctx, w)
		}

		delay := r.tickInterval - time.Since(start)
		if delay < 0 {
			delay = 0
		}
		select {
		case <-r.kick:
		case <-time.After(delay):
		}
	}
}

// processTick advances one workflow by one tick: poll autonomous nodes,
// record fired outputs in the context, and re-execute the affected
// sub-graph. Failures are tick-local; the workflow survives until the
// consecutive-failure limit trips.
func (r *Runner) processTick(ctx context.Context, w *running) {
	r.mu.Lock()
	if w.state != StateRunning {
		r.mu.Unlock()
		return
	}
	w.tickCount++
	w.lastTick = time.Now()
	tick := w.tickCount
	r.mu.Unlock()

	var triggered []string
	for _, id := range w.autonomous {
		t, ok := w.nodes[id].(node.Ticker)
		if !ok {
			continue
		}
		outputs, fired, err := t.OnTick(ctx, w.ec)
		if err != nil {
			r.tickFailed(w, fmt.Errorf("tick %d: node %s on_tick: %w", tick, id, err))
			return
		}
		if fired {
			triggered = append(triggered, id)
			w.ec.SetOutputs(id, outputs)
		}
	}
	if len(triggered) == 0 {
		return
	}

	ctx, span := r.tracer.Start(ctx, "runner.tick", "workflow_id", w.id, "tick", int64(tick), "triggered", len(triggered))
	defer span.End()

	sub := affectedSubgraph(w.graph, w.nodes, triggered)
	res := r.eng.ExecuteSubgraph(ctx, sub, w.nodes, w.ec)
	if !res.Success {
		span.RecordError(fmt.Errorf("%s", res.Error))
		r.tickFailed(w, fmt.Errorf("tick %d: sub-graph execution: %s", tick, res.Error))
		return
	}

	r.mu.Lock()
	w.failStreak = 0
	w.version++
	latest := resultFromPass(w.id, tick, w.version, res)
	w.latest = latest
	r.mu.Unlock()

	if w.onComplete != nil {
		w.onComplete(latest)
	}
}

// tickFailed reports a tick-local failure and stops the workflow once the
// consecutive-failure limit is reached.
func (r *Runner) tickFailed(w *running, err error) {
	r.log.Warn(context.Background(), "tick failed", "workflow_id", w.id, "error", err.Error())
	if w.onError != nil {
		w.onError(err)
	}
	w.failStreak++
	if w.failStreak >= r.failLimit {
		r.log.Error(context.Background(), err, "workflow stopped after repeated tick failures",
			"workflow_id", w.id, "consecutive_failures", w.failStreak)
		r.StopWorkflow(w.id)
	}
}

// affectedSubgraph computes the minimal slice that must re-run after the
// given autonomous nodes fired: the downstream closure of the triggered set,
// plus every transitive non-autonomous predecessor of the downstream
// members. Autonomous predecessors are excluded from the dependency
// recursion; they participate only through their current tick outputs,
// which already live in the context.
func affectedSubgraph(g *workflow.Graph, nodes map[string]node.Node, triggered []string) *workflow.Graph {
	keep := make(map[string]bool, len(triggered))
	queue := append([]string(nil), triggered...)
	for _, id := range triggered {
		keep[id] = true
	}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		for _, c := range g.Outgoing(id) {
			if !keep[c.TargetNode] {
				keep[c.TargetNode] = true
				queue = append(queue, c.TargetNode)
			}
		}
	}

	var stack []string
	for _, def := range g.Nodes {
		if keep[def.ID] && nodes[def.ID].NodeBase().Mode() != node.ModeContinuous {
			stack = append(stack, def.ID)
		}
	}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, c := range g.Incoming(id) {
			src := c.SourceNode
			if keep[src] {
				continue
			}
			if n, ok := nodes[src]; ok && n.NodeBase().Mode() == node.ModeContinuous {
				continue
			}
			keep[src] = true
			stack = append(stack, src)
		}
	}
	return g.Subgraph(keep)
}

// resultFromPass converts an engine result into the sanitized tick surface.
func resultFromPass(workflowID string, tick, version uint64, res *engine.GraphResult) *TickResult {
	results := make(map[string]any, len(res.NodeResults))
	for _, nr := range res.NodeResults {
		if nr.Success {
			results[nr.NodeID] = Sanitize(nr.Outputs)
		}
	}
	return &TickResult{
		WorkflowID:    workflowID,
		Tick:          tick,
		Success:       res.Success,
		ExecutedNodes: res.ExecutionOrder,
		Results:       results,
		Error:         res.Error,
		Version:       version,
	}
}

// callerKey derives the admission key from the caller-seeded variables.
func callerKey(vars map[string]any) string {
	if v, ok := vars["user_id"].(string); ok && v != "" {
		return v
	}
	if v, ok := vars["client_id"].(string); ok && v != "" {
		return v
	}
	return "anonymous"
}
