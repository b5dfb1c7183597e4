// Package nodes holds the built-in node library: constant text, terminal
// output, the autonomous scheduler, LLM generation, quantum randomness,
// external HTTP calls, and memory store/retrieve. RegisterAll binds every
// built-in type tag into a registry; hosts with custom nodes register those
// alongside.
package nodes

import "github.com/ohnodev/obelisk-core/node"

// Built-in node type tags.
const (
	TypeText           = "text"
	TypeOutput         = "output"
	TypeScheduler      = "scheduler"
	TypeLLM            = "llm"
	TypeQuantumRandom  = "quantum_random"
	TypeHTTPRequest    = "http_request"
	TypeMemoryStore    = "memory_store"
	TypeMemoryRetrieve = "memory_retrieve"
)

// RegisterAll binds all built-in node constructors into the registry.
func RegisterAll(r *node.Registry) error {
	for tag, ctor := range map[string]node.Constructor{
		TypeText:           NewText,
		TypeOutput:         NewOutput,
		TypeScheduler:      NewScheduler,
		TypeLLM:            NewLLM,
		TypeQuantumRandom:  NewQuantumRandom,
		TypeHTTPRequest:    NewHTTPRequest,
		TypeMemoryStore:    NewMemoryStore,
		TypeMemoryRetrieve: NewMemoryRetrieve,
	} {
		if err := r.Register(tag, ctor); err != nil {
			return err
		}
	}
	return nil
}
