// Package rng defines the quantum randomness contract nodes depend on and an
// HTTP-backed client for a remote QRNG service. Backend failures propagate as
// errors so the node reports them as node failures.
package rng

import (
	"context"
)

type (
	// Sample is one randomness measurement normalized to [0, 1].
	Sample struct {
		// Value is the normalized random value in [0, 1].
		Value float64 `json:"value"`
		// Qubits is the circuit width used for the measurement.
		Qubits int `json:"num_qubits"`
		// Shots is the number of circuit executions.
		Shots int `json:"shots"`
		// Counts maps measured bitstrings to occurrence counts, when the
		// backend reports them.
		Counts map[string]int `json:"counts,omitempty"`
		// Backend names the device or simulator that produced the sample.
		Backend string `json:"backend,omitempty"`
		// Source identifies the provider.
		Source string `json:"source,omitempty"`
	}

	// Source produces quantum random samples.
	Source interface {
		// QuantumRandom measures a circuit of the given width for the given
		// number of shots and returns the normalized sample.
		QuantumRandom(ctx context.Context, qubits, shots int) (*Sample, error)
	}
)
