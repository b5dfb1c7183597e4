package nodes

import (
	"context"
	"fmt"

	"github.com/ohnodev/obelisk-core/node"
	"github.com/ohnodev/obelisk-core/workflow"
)

type (
	// QuantumRandom fetches one sample from the quantum randomness source.
	QuantumRandom struct {
		node.Base
	}
)

const (
	defaultQubits = 4
	defaultShots  = 1024
)

// NewQuantumRandom constructs a quantum randomness node.
func NewQuantumRandom(def workflow.NodeDef) (node.Node, error) {
	return &QuantumRandom{Base: node.NewBase(def, node.ModeOnce)}, nil
}

// Execute implements node.Node.
func (n *QuantumRandom) Execute(ctx context.Context, ec *node.Context) (map[string]any, error) {
	if ec.Container == nil || ec.Container.RNG == nil {
		return nil, fmt.Errorf("quantum_random node %s: randomness source is not configured", n.NodeID)
	}
	qubits := intInput(&n.Base, "num_qubits", defaultQubits)
	shots := intInput(&n.Base, "shots", defaultShots)

	sample, err := ec.Container.RNG.QuantumRandom(ctx, qubits, shots)
	if err != nil {
		return nil, fmt.Errorf("quantum_random node %s: %w", n.NodeID, err)
	}
	return map[string]any{
		"value":      sample.Value,
		"num_qubits": sample.Qubits,
		"shots":      sample.Shots,
		"backend":    sample.Backend,
		"source":     sample.Source,
	}, nil
}
