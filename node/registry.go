package node

import (
	"fmt"
	"sort"
	"sync"
)

// Registry maps node-type tags to constructors. Registrations are expected to
// complete at startup, before the first graph is validated; the mutex exists
// so misuse fails safe rather than racing.
type Registry struct {
	mu    sync.RWMutex
	ctors map[string]Constructor
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{ctors: make(map[string]Constructor)}
}

// Register binds a constructor to a node-type tag, replacing any prior
// binding for the same tag.
func (r *Registry) Register(tag string, ctor Constructor) error {
	if tag == "" {
		return fmt.Errorf("node type tag is required")
	}
	if ctor == nil {
		return fmt.Errorf("constructor for node type %q is required", tag)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ctors[tag] = ctor
	return nil
}

// Lookup returns the constructor registered for tag, or false when none is.
func (r *Registry) Lookup(tag string) (Constructor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ctor, ok := r.ctors[tag]
	return ctor, ok
}

// Types returns the registered tags in sorted order.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tags := make([]string, 0, len(r.ctors))
	for tag := range r.ctors {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	return tags
}
