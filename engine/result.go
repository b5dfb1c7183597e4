package engine

import "time"

type (
	// NodeResult is the outcome of one node execution.
	NodeResult struct {
		// NodeID names the executed node.
		NodeID string `json:"node_id"`
		// Success reports whether Execute returned without error.
		Success bool `json:"success"`
		// Outputs maps output names to values. Nil on failure.
		Outputs map[string]any `json:"outputs,omitempty"`
		// Error is the node error message when Success is false.
		Error string `json:"error,omitempty"`
		// ExecutionTime is the wall-clock duration of Execute.
		ExecutionTime time.Duration `json:"execution_time"`
	}

	// GraphResult is the outcome of one graph (or sub-graph) pass.
	GraphResult struct {
		// GraphID echoes the executed graph's id.
		GraphID string `json:"graph_id"`
		// Success reports whether every executed node succeeded.
		Success bool `json:"success"`
		// NodeResults lists per-node outcomes in execution order. On failure
		// the failing node is last and unexecuted nodes are absent.
		NodeResults []NodeResult `json:"node_results"`
		// FinalOutputs merges the outputs of all terminal output nodes, in
		// execution order (later writers win on key conflict).
		FinalOutputs map[string]any `json:"final_outputs,omitempty"`
		// Error is the failure reason when Success is false.
		Error string `json:"error,omitempty"`
		// ErrorKind is the machine tag for Error, empty on success.
		ErrorKind ErrorKind `json:"error_kind,omitempty"`
		// TotalExecutionTime is the wall-clock duration of the pass.
		TotalExecutionTime time.Duration `json:"total_execution_time"`
		// ExecutionOrder lists executed node ids in order. Empty when
		// validation or cycle detection rejected the graph.
		ExecutionOrder []string `json:"execution_order"`
	}
)

// Result returns the per-node result for the given node id, or nil.
func (r *GraphResult) Result(nodeID string) *NodeResult {
	for i := range r.NodeResults {
		if r.NodeResults[i].NodeID == nodeID {
			return &r.NodeResults[i]
		}
	}
	return nil
}

func failedResult(graphID string, gerr *GraphError, elapsed time.Duration) *GraphResult {
	return &GraphResult{
		GraphID:            graphID,
		Success:            false,
		Error:              gerr.Message,
		ErrorKind:          gerr.Kind,
		TotalExecutionTime: elapsed,
		ExecutionOrder:     []string{},
	}
}
