// Package workflow defines the graph model shared by the execution engine,
// the workflow runner, and the job queue: nodes, typed connections, and the
// caller-facing JSON document shape with its translation to the engine shape.
//
// A graph is a set of typed nodes joined by directed connections. The graph
// itself carries no behavior; node semantics live behind the node package's
// constructor registry and the engine decides ordering and input resolution.
package workflow

import (
	"fmt"
	"time"
)

type (
	// Graph is the engine-facing workflow shape. Node ids must be unique and
	// every connection endpoint must name an existing node; the engine rejects
	// graphs that violate either rule before building any node.
	Graph struct {
		// ID identifies the workflow. Callers that omit it get a generated one.
		ID string `json:"id"`
		// Name is a human-readable label, never semantic.
		Name string `json:"name"`
		// Nodes lists the graph vertices. Order is preserved and used as the
		// deterministic tie-break for topological ordering.
		Nodes []NodeDef `json:"nodes"`
		// Connections lists the directed edges.
		Connections []Connection `json:"connections"`
	}

	// NodeDef describes a single graph vertex. It is pure data: the node
	// package's registry turns defs into executable node instances.
	NodeDef struct {
		// ID is the node identifier, unique within the graph.
		ID string `json:"id"`
		// Type is the registered node-type tag.
		Type string `json:"type"`
		// Inputs maps input names to literals or "{{var}}" template strings.
		Inputs map[string]any `json:"inputs,omitempty"`
		// Metadata is an opaque configuration bag consumed only by the node
		// implementation.
		Metadata map[string]any `json:"metadata,omitempty"`
		// Position is a layout hint for editors, never semantic.
		Position Position `json:"position"`
	}

	// Position is an opaque canvas coordinate.
	Position struct {
		X float64 `json:"x"`
		Y float64 `json:"y"`
	}

	// Connection is a directed edge carrying one named output into one named
	// input.
	Connection struct {
		// ID identifies the connection. Synthesized when translating from the
		// caller-facing document shape.
		ID string `json:"id"`
		// SourceNode and SourceOutput name the producing endpoint.
		SourceNode   string `json:"source_node"`
		SourceOutput string `json:"source_output"`
		// TargetNode and TargetInput name the consuming endpoint.
		TargetNode  string `json:"target_node"`
		TargetInput string `json:"target_input"`
		// DataType is the nominal payload type. Informational only.
		DataType string `json:"data_type,omitempty"`
	}
)

// Node returns the definition with the given id, or nil when absent.
func (g *Graph) Node(id string) *NodeDef {
	for i := range g.Nodes {
		if g.Nodes[i].ID == id {
			return &g.Nodes[i]
		}
	}
	return nil
}

// Incoming returns the connections targeting the given node, in declaration
// order.
func (g *Graph) Incoming(nodeID string) []Connection {
	var out []Connection
	for _, c := range g.Connections {
		if c.TargetNode == nodeID {
			out = append(out, c)
		}
	}
	return out
}

// Outgoing returns the connections originating at the given node, in
// declaration order.
func (g *Graph) Outgoing(nodeID string) []Connection {
	var out []Connection
	for _, c := range g.Connections {
		if c.SourceNode == nodeID {
			out = append(out, c)
		}
	}
	return out
}

// Subgraph returns a derived graph containing exactly the nodes in keep and
// the connections whose both endpoints are kept. Node and connection order
// follow the parent graph so derived execution stays deterministic.
func (g *Graph) Subgraph(keep map[string]bool) *Graph {
	sub := &Graph{
		ID:   fmt.Sprintf("%s/sub-%d", g.ID, time.Now().UnixNano()),
		Name: g.Name,
	}
	for _, n := range g.Nodes {
		if keep[n.ID] {
			sub.Nodes = append(sub.Nodes, n)
		}
	}
	for _, c := range g.Connections {
		if keep[c.SourceNode] && keep[c.TargetNode] {
			sub.Connections = append(sub.Connections, c)
		}
	}
	return sub
}

// DeepCopyMap returns a deep copy of a value bag. Maps and slices recurse;
// scalar values are copied as-is. Node construction uses this so per-execution
// input mutation cannot leak back into the graph definition.
func DeepCopyMap(src map[string]any) map[string]any {
	if src == nil {
		return nil
	}
	dst := make(map[string]any, len(src))
	for k, v := range src {
		dst[k] = deepCopyValue(v)
	}
	return dst
}

func deepCopyValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return DeepCopyMap(val)
	case []any:
		out := make([]any, len(val))
		for i, e := range val {
			out[i] = deepCopyValue(e)
		}
		return out
	default:
		return v
	}
}
