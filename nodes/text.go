package nodes

import (
	"context"

	"github.com/ohnodev/obelisk-core/node"
	"github.com/ohnodev/obelisk-core/workflow"
)

type (
	// Text emits its "text" input unchanged. With template resolution this is
	// the standard way to feed caller variables into a graph.
	Text struct {
		node.Base
	}

	// Output is the terminal pass-through node. Its resolved inputs become
	// its outputs verbatim, and the engine merges the outputs of all output
	// nodes into the final result projection.
	Output struct {
		node.Base
	}
)

// NewText constructs a text node.
func NewText(def workflow.NodeDef) (node.Node, error) {
	return &Text{Base: node.NewBase(def, node.ModeOnce)}, nil
}

// Execute implements node.Node.
func (n *Text) Execute(ctx context.Context, ec *node.Context) (map[string]any, error) {
	return map[string]any{"text": stringInput(&n.Base, "text", "")}, nil
}

// NewOutput constructs an output node.
func NewOutput(def workflow.NodeDef) (node.Node, error) {
	return &Output{Base: node.NewBase(def, node.ModeOnce)}, nil
}

// Execute implements node.Node.
func (n *Output) Execute(ctx context.Context, ec *node.Context) (map[string]any, error) {
	out := make(map[string]any, len(n.InputValues))
	for k, v := range n.InputValues {
		out[k] = v
	}
	return out, nil
}
