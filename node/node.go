// Package node defines the contract every workflow node implementation
// satisfies, the per-activation execution context nodes run against, and the
// process-wide registry mapping node-type tags to constructors.
//
// A node is constructed exactly once per workflow activation. One-shot
// executions build, run, and discard instances inside a single engine call;
// continuous workflows keep the same instances alive for the lifetime of the
// run and may execute them on every tick.
package node

import (
	"context"
	"time"

	"github.com/ohnodev/obelisk-core/httpclient"
	"github.com/ohnodev/obelisk-core/model"
	"github.com/ohnodev/obelisk-core/rng"
	"github.com/ohnodev/obelisk-core/storage"
	"github.com/ohnodev/obelisk-core/workflow"
)

type (
	// ExecutionMode declares how the runner treats a node.
	ExecutionMode string

	// Node is the base contract. Execute reads the instance inputs (already
	// resolved by the engine), the context variables, and upstream outputs,
	// and returns a mapping from output name to value. An error marks the
	// node failed and stops the current graph pass.
	Node interface {
		// NodeBase returns the shared per-instance state. The engine uses it
		// to swap resolved inputs in and out around Execute.
		NodeBase() *Base

		// Execute runs the node once and returns its outputs.
		Execute(ctx context.Context, ec *Context) (map[string]any, error)
	}

	// Ticker is implemented by autonomous nodes (ModeContinuous). The runner
	// calls OnTick once per tick; fired reports whether the node emitted an
	// event this tick, in which case outputs become the node's outputs for
	// the tick and downstream nodes re-execute.
	Ticker interface {
		OnTick(ctx context.Context, ec *Context) (outputs map[string]any, fired bool, err error)
	}

	// Initializer is an optional post-build hook invoked after every node
	// instance for the graph exists but before the first execution. Intended
	// for cross-node wiring, never for I/O.
	Initializer interface {
		Initialize(g *workflow.Graph, all map[string]Node) error
	}

	// Base holds the per-instance state shared by all node implementations.
	// Embed it in concrete nodes.
	Base struct {
		// NodeID is the node's graph-unique identifier.
		NodeID string
		// NodeType is the registered type tag the instance was built from.
		NodeType string
		// InputValues holds the node inputs. Deep-copied from the definition
		// at construction; the engine temporarily replaces it with resolved
		// inputs for the duration of a single Execute call.
		InputValues map[string]any
		// Metadata is the opaque configuration bag from the definition.
		Metadata map[string]any
		// ExecutionMode defaults to ModeOnce when empty.
		ExecutionMode ExecutionMode
	}

	// Context is the per-activation runtime state. One-shot runs produce and
	// discard a context; continuous runs keep one alive for the workflow's
	// lifetime. NodeOutputs is written only by the executing goroutine; nodes
	// must treat upstream entries as read-only.
	Context struct {
		// Container exposes external collaborators.
		Container *Container
		// Variables is the caller-seeded name/value mapping used for
		// "{{name}}" template resolution.
		Variables map[string]any
		// NodeOutputs maps node id to that node's latest output mapping.
		NodeOutputs map[string]map[string]any
	}

	// Container bundles the external collaborators nodes may use. Nil fields
	// mean the collaborator is unavailable; nodes fail with a descriptive
	// error rather than panic.
	Container struct {
		// Model is the shared generation model. Prefer Inference when set so
		// calls are serialized.
		Model model.Generator
		// Inference serializes generation requests to the shared model.
		Inference InferenceSubmitter
		// Store persists interactions, activity logs, and weight blobs.
		Store storage.Store
		// RNG provides quantum randomness.
		RNG rng.Source
		// HTTP performs best-effort external HTTP calls.
		HTTP *httpclient.Client
	}

	// InferenceSubmitter is satisfied by the inference request queue.
	InferenceSubmitter interface {
		Submit(ctx context.Context, req model.Request, timeout time.Duration) (*model.Response, error)
	}

	// Constructor builds a node instance from its graph definition.
	Constructor func(def workflow.NodeDef) (Node, error)
)

const (
	// ModeOnce nodes execute once per graph pass and never tick.
	ModeOnce ExecutionMode = "once"
	// ModeContinuous nodes are autonomous: the runner polls their OnTick and
	// re-executes the affected sub-graph when they fire.
	ModeContinuous ExecutionMode = "continuous"
	// ModeTriggered nodes execute only when upstream activity reaches them.
	ModeTriggered ExecutionMode = "triggered"
)

// NewBase constructs the shared state from a definition, deep-copying inputs
// so per-execution mutation cannot leak back into the graph.
func NewBase(def workflow.NodeDef, mode ExecutionMode) Base {
	return Base{
		NodeID:        def.ID,
		NodeType:      def.Type,
		InputValues:   workflow.DeepCopyMap(def.Inputs),
		Metadata:      workflow.DeepCopyMap(def.Metadata),
		ExecutionMode: mode,
	}
}

// NodeBase returns the shared state; it makes any struct embedding Base
// satisfy the accessor half of the Node interface.
func (b *Base) NodeBase() *Base { return b }

// ID returns the node's graph-unique identifier.
func (b *Base) ID() string { return b.NodeID }

// Mode returns the node's execution mode, defaulting to ModeOnce.
func (b *Base) Mode() ExecutionMode {
	if b.ExecutionMode == "" {
		return ModeOnce
	}
	return b.ExecutionMode
}

// Input returns the named input value.
func (b *Base) Input(name string) (any, bool) {
	v, ok := b.InputValues[name]
	return v, ok
}

// NewContext constructs an execution context seeded with the given variables.
func NewContext(c *Container, vars map[string]any) *Context {
	if vars == nil {
		vars = make(map[string]any)
	}
	return &Context{
		Container:   c,
		Variables:   vars,
		NodeOutputs: make(map[string]map[string]any),
	}
}

// Output returns a single upstream output value.
func (c *Context) Output(nodeID, name string) (any, bool) {
	outs, ok := c.NodeOutputs[nodeID]
	if !ok {
		return nil, false
	}
	v, ok := outs[name]
	return v, ok
}

// SetOutputs records a node's outputs for the current pass or tick.
func (c *Context) SetOutputs(nodeID string, outputs map[string]any) {
	if c.NodeOutputs == nil {
		c.NodeOutputs = make(map[string]map[string]any)
	}
	c.NodeOutputs[nodeID] = outputs
}
