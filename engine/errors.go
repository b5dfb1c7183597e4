package engine

import "fmt"

type (
	// ErrorKind is the machine tag carried by graph errors so boundary
	// handlers can map failures without parsing messages. Validation, cycle,
	// and bad-connection errors map to 400; node failures to 500.
	ErrorKind string

	// GraphError describes why a graph was rejected or why execution
	// stopped. It carries both the machine tag and a human message.
	GraphError struct {
		// Kind is the machine tag.
		Kind ErrorKind
		// NodeID names the offending node when one is identifiable.
		NodeID string
		// Message is the human-readable explanation.
		Message string
	}
)

const (
	// KindValidation tags malformed graphs: empty node list, duplicate ids,
	// or a node that failed to build. No node ran.
	KindValidation ErrorKind = "validation"
	// KindCycle tags graphs whose non-autonomous edges form a cycle. No node
	// ran.
	KindCycle ErrorKind = "cycle"
	// KindUnknownNodeType tags graphs referencing an unregistered node type.
	KindUnknownNodeType ErrorKind = "unknown_node_type"
	// KindBadConnection tags connections whose endpoints do not resolve.
	KindBadConnection ErrorKind = "bad_connection"
	// KindNodeFailure tags an execution stopped by a node error.
	KindNodeFailure ErrorKind = "node_failure"
)

// Error implements the error interface.
func (e *GraphError) Error() string {
	if e.NodeID != "" {
		return fmt.Sprintf("%s: node %s: %s", e.Kind, e.NodeID, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}
