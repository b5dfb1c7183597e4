// Package engine executes workflow graphs: it validates the graph, builds
// node instances through the registry, orders them topologically with Kahn's
// algorithm, resolves per-node inputs from connections and template
// variables, runs nodes in order, and collects per-node results plus the
// final output projection.
//
// The engine is deliberately simple: single-threaded within a call, no
// retries, no intra-graph parallelism, one pass per invocation. Continuous
// semantics (ticks, sub-graph recomputation) live in the runner package,
// which drives the engine with prebuilt node instances and a long-lived
// execution context.
package engine

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/ohnodev/obelisk-core/node"
	"github.com/ohnodev/obelisk-core/telemetry"
	"github.com/ohnodev/obelisk-core/workflow"
)

type (
	// Option configures an Engine.
	Option func(*Engine)

	// Engine executes graphs against a node registry and a collaborator
	// container. Safe for concurrent use: all per-execution state lives in
	// the execution context.
	Engine struct {
		registry   *node.Registry
		container  *node.Container
		log        telemetry.Logger
		tracer     telemetry.Tracer
		outputType string
	}
)

// defaultOutputType is the node-type tag that marks terminal output nodes.
const defaultOutputType = "output"

// templateRE matches inputs of the exact form "{{identifier}}". A string is
// a template only when it matches start to end; literals that merely contain
// braces pass through untouched.
var templateRE = regexp.MustCompile(`^\{\{([A-Za-z_][A-Za-z0-9_]*)\}\}$`)

// WithContainer sets the collaborator container handed to nodes.
func WithContainer(c *node.Container) Option {
	return func(e *Engine) { e.container = c }
}

// WithLogger sets the structured logger.
func WithLogger(l telemetry.Logger) Option {
	return func(e *Engine) { e.log = l }
}

// WithTracer sets the tracer used for graph and node spans.
func WithTracer(t telemetry.Tracer) Option {
	return func(e *Engine) { e.tracer = t }
}

// WithOutputNodeType overrides the node-type tag that marks terminal output
// nodes (default "output").
func WithOutputNodeType(tag string) Option {
	return func(e *Engine) { e.outputType = tag }
}

// New constructs an engine over the given registry.
func New(registry *node.Registry, opts ...Option) *Engine {
	e := &Engine{
		registry:   registry,
		log:        telemetry.NewNoopLogger(),
		tracer:     telemetry.NewNoopTracer(),
		outputType: defaultOutputType,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute runs a one-shot pass over the graph: validate, build, order,
// execute, collect. Failures are reported in the result, never panicked or
// retried; the returned result is never nil.
func (e *Engine) Execute(ctx context.Context, g *workflow.Graph, vars map[string]any) *GraphResult {
	ctx, span := e.tracer.Start(ctx, "engine.execute", "graph_id", g.ID, "nodes", len(g.Nodes))
	defer span.End()
	start := time.Now()

	nodes, gerr := e.BuildNodes(g)
	if gerr != nil {
		e.log.Warn(ctx, "graph rejected", "graph_id", g.ID, "kind", string(gerr.Kind), "reason", gerr.Message)
		span.RecordError(gerr)
		return failedResult(g.ID, gerr, time.Since(start))
	}

	ec := node.NewContext(e.container, vars)
	return e.run(ctx, g, nodes, ec, start, false)
}

// ExecuteSubgraph runs one pass over a derived sub-graph using node
// instances built earlier for the parent graph. The shared execution context
// carries upstream and tick outputs across passes; autonomous nodes are
// ordered but not executed, since their outputs for the current tick were
// produced by OnTick and already live in the context.
func (e *Engine) ExecuteSubgraph(ctx context.Context, g *workflow.Graph, nodes map[string]node.Node, ec *node.Context) *GraphResult {
	ctx, span := e.tracer.Start(ctx, "engine.execute_subgraph", "graph_id", g.ID, "nodes", len(g.Nodes))
	defer span.End()
	return e.run(ctx, g, nodes, ec, time.Now(), true)
}

// BuildNodes validates the graph and constructs one node instance per
// definition, then runs every Initialize hook. The runner uses this directly
// so continuous workflows construct each node exactly once per activation.
func (e *Engine) BuildNodes(g *workflow.Graph) (map[string]node.Node, *GraphError) {
	if gerr := e.validate(g); gerr != nil {
		return nil, gerr
	}
	nodes := make(map[string]node.Node, len(g.Nodes))
	for _, def := range g.Nodes {
		ctor, _ := e.registry.Lookup(def.Type)
		n, err := ctor(def)
		if err != nil {
			return nil, &GraphError{
				Kind:    KindValidation,
				NodeID:  def.ID,
				Message: fmt.Sprintf("build node %s (%s): %v", def.ID, def.Type, err),
			}
		}
		nodes[def.ID] = n
	}
	for _, def := range g.Nodes {
		init, ok := nodes[def.ID].(node.Initializer)
		if !ok {
			continue
		}
		if err := init.Initialize(g, nodes); err != nil {
			return nil, &GraphError{
				Kind:    KindValidation,
				NodeID:  def.ID,
				Message: fmt.Sprintf("initialize node %s: %v", def.ID, err),
			}
		}
	}
	return nodes, nil
}

func (e *Engine) validate(g *workflow.Graph) *GraphError {
	if len(g.Nodes) == 0 {
		return &GraphError{Kind: KindValidation, Message: "workflow has no nodes"}
	}
	seen := make(map[string]bool, len(g.Nodes))
	for _, def := range g.Nodes {
		if seen[def.ID] {
			return &GraphError{Kind: KindValidation, NodeID: def.ID, Message: fmt.Sprintf("duplicate node id %q", def.ID)}
		}
		seen[def.ID] = true
		if _, ok := e.registry.Lookup(def.Type); !ok {
			return &GraphError{
				Kind:    KindUnknownNodeType,
				NodeID:  def.ID,
				Message: fmt.Sprintf("node %s has unregistered type %q", def.ID, def.Type),
			}
		}
	}
	for _, c := range g.Connections {
		if !seen[c.SourceNode] {
			return &GraphError{
				Kind:    KindBadConnection,
				Message: fmt.Sprintf("connection %s references missing source node %q", c.ID, c.SourceNode),
			}
		}
		if !seen[c.TargetNode] {
			return &GraphError{
				Kind:    KindBadConnection,
				Message: fmt.Sprintf("connection %s references missing target node %q", c.ID, c.TargetNode),
			}
		}
	}
	return nil
}

// run executes prebuilt nodes in topological order against the given
// context. subgraphPass skips Execute for autonomous nodes.
func (e *Engine) run(ctx context.Context, g *workflow.Graph, nodes map[string]node.Node, ec *node.Context, start time.Time, subgraphPass bool) *GraphResult {
	order, unreached := topoOrder(g, nodes)
	if len(unreached) > 0 {
		gerr := &GraphError{
			Kind:    KindCycle,
			Message: fmt.Sprintf("workflow contains a cycle; unreachable nodes: %s", strings.Join(unreached, ", ")),
		}
		e.log.Warn(ctx, "graph rejected", "graph_id", g.ID, "kind", string(KindCycle), "reason", gerr.Message)
		return failedResult(g.ID, gerr, time.Since(start))
	}

	result := &GraphResult{
		GraphID:      g.ID,
		Success:      true,
		FinalOutputs: make(map[string]any),
	}
	for _, id := range order {
		n := nodes[id]
		if subgraphPass && n.NodeBase().Mode() == node.ModeContinuous {
			// Tick outputs are already in the context.
			continue
		}
		restore := resolveInputs(n, g, ec)
		nodeStart := time.Now()
		nctx, span := e.tracer.Start(ctx, "engine.node", "node_id", id, "node_type", n.NodeBase().NodeType)
		outputs, err := n.Execute(nctx, ec)
		span.End()
		elapsed := time.Since(nodeStart)
		restore()

		if err != nil {
			e.log.Warn(ctx, "node failed", "graph_id", g.ID, "node_id", id, "error", err.Error())
			result.NodeResults = append(result.NodeResults, NodeResult{
				NodeID:        id,
				Success:       false,
				Error:         err.Error(),
				ExecutionTime: elapsed,
			})
			result.ExecutionOrder = append(result.ExecutionOrder, id)
			result.Success = false
			result.Error = err.Error()
			result.ErrorKind = KindNodeFailure
			result.TotalExecutionTime = time.Since(start)
			return result
		}

		ec.SetOutputs(id, outputs)
		result.NodeResults = append(result.NodeResults, NodeResult{
			NodeID:        id,
			Success:       true,
			Outputs:       outputs,
			ExecutionTime: elapsed,
		})
		result.ExecutionOrder = append(result.ExecutionOrder, id)
	}

	for _, id := range result.ExecutionOrder {
		if nodes[id].NodeBase().NodeType != e.outputType {
			continue
		}
		for k, v := range ec.NodeOutputs[id] {
			result.FinalOutputs[k] = v
		}
	}
	result.TotalExecutionTime = time.Since(start)
	e.log.Debug(ctx, "graph executed", "graph_id", g.ID, "nodes", len(result.ExecutionOrder), "duration", result.TotalExecutionTime.String())
	return result
}

// topoOrder produces a topological ordering with Kahn's algorithm. Edges
// whose source is an autonomous node do not constrain ordering or cycle
// detection: autonomous outputs come from ticks, not from the same pass.
// The ordering is deterministic: the queue is seeded in node declaration
// order and successors are appended in connection declaration order. When a
// cycle exists the unordered node ids are returned in declaration order.
func topoOrder(g *workflow.Graph, nodes map[string]node.Node) (order, unreached []string) {
	indegree := make(map[string]int, len(g.Nodes))
	successors := make(map[string][]string, len(g.Nodes))
	for _, def := range g.Nodes {
		indegree[def.ID] = 0
	}
	for _, c := range g.Connections {
		if src, ok := nodes[c.SourceNode]; ok && src.NodeBase().Mode() == node.ModeContinuous {
			continue
		}
		successors[c.SourceNode] = append(successors[c.SourceNode], c.TargetNode)
		indegree[c.TargetNode]++
	}

	var queue []string
	for _, def := range g.Nodes {
		if indegree[def.ID] == 0 {
			queue = append(queue, def.ID)
		}
	}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		order = append(order, id)
		for _, next := range successors[id] {
			indegree[next]--
			if indegree[next] == 0 {
				queue = append(queue, next)
			}
		}
	}
	if len(order) < len(g.Nodes) {
		ordered := make(map[string]bool, len(order))
		for _, id := range order {
			ordered[id] = true
		}
		for _, def := range g.Nodes {
			if !ordered[def.ID] {
				unreached = append(unreached, def.ID)
			}
		}
	}
	return order, unreached
}

// resolveInputs computes the node's effective inputs for this pass and swaps
// them in, returning a restore func that puts the base inputs back.
// Connection values win over templates; unconnected "{{name}}" strings
// resolve against context variables and stay verbatim when the variable is
// absent so the node's own default handling can apply.
func resolveInputs(n node.Node, g *workflow.Graph, ec *node.Context) (restore func()) {
	base := n.NodeBase()
	saved := base.InputValues

	resolved := make(map[string]any, len(saved))
	for k, v := range saved {
		resolved[k] = v
	}
	connected := make(map[string]bool)
	for _, c := range g.Incoming(base.NodeID) {
		if v, ok := ec.Output(c.SourceNode, c.SourceOutput); ok {
			resolved[c.TargetInput] = v
			connected[c.TargetInput] = true
		}
	}
	for k, v := range resolved {
		if connected[k] {
			continue
		}
		s, ok := v.(string)
		if !ok {
			continue
		}
		m := templateRE.FindStringSubmatch(s)
		if m == nil {
			continue
		}
		if val, ok := ec.Variables[m[1]]; ok {
			resolved[k] = val
		}
	}

	base.InputValues = resolved
	return func() { base.InputValues = saved }
}
