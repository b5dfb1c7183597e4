package engine

import (
	"context"
	"fmt"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/ohnodev/obelisk-core/workflow"
)

// randomDAG builds a graph with n nodes and edges chosen by bits of mask.
// Edges only go from lower to higher declaration index, so the graph is
// acyclic by construction.
func randomDAG(n int, mask int64) *workflow.Graph {
	g := &workflow.Graph{ID: fmt.Sprintf("dag-%d-%d", n, mask)}
	for i := 0; i < n; i++ {
		g.Nodes = append(g.Nodes, workflow.NodeDef{
			ID:     fmt.Sprintf("n%d", i),
			Type:   "emit",
			Inputs: map[string]any{"text": fmt.Sprintf("v%d", i)},
		})
	}
	bit := 0
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			if mask&(1<<bit) != 0 {
				g.Connections = append(g.Connections, conn(
					fmt.Sprintf("c%d-%d", i, j),
					fmt.Sprintf("n%d", i), "text",
					fmt.Sprintf("n%d", j), fmt.Sprintf("in%d", i),
				))
			}
			bit++
		}
	}
	return g
}

func TestTopologicalOrderProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)
	eng := New(testRegistry(t))

	properties.Property("order respects every edge and covers every node", prop.ForAll(
		func(n int, mask int64) bool {
			g := randomDAG(n, mask)
			res := eng.Execute(context.Background(), g, nil)
			if !res.Success {
				return false
			}
			if len(res.ExecutionOrder) != len(g.Nodes) {
				return false
			}
			index := make(map[string]int, len(res.ExecutionOrder))
			for i, id := range res.ExecutionOrder {
				index[id] = i
			}
			for _, c := range g.Connections {
				if index[c.SourceNode] >= index[c.TargetNode] {
					return false
				}
			}
			return true
		},
		gen.IntRange(1, 8),
		gen.Int64Range(0, 1<<28),
	))

	properties.Property("repeated execution yields the identical order", prop.ForAll(
		func(n int, mask int64) bool {
			g := randomDAG(n, mask)
			first := eng.Execute(context.Background(), g, nil)
			second := eng.Execute(context.Background(), g, nil)
			if len(first.ExecutionOrder) != len(second.ExecutionOrder) {
				return false
			}
			for i := range first.ExecutionOrder {
				if first.ExecutionOrder[i] != second.ExecutionOrder[i] {
					return false
				}
			}
			return true
		},
		gen.IntRange(1, 8),
		gen.Int64Range(0, 1<<28),
	))

	properties.TestingRun(t)
}
