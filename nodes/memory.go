package nodes

import (
	"context"
	"fmt"
	"time"

	"github.com/ohnodev/obelisk-core/node"
	"github.com/ohnodev/obelisk-core/storage"
	"github.com/ohnodev/obelisk-core/workflow"
)

type (
	// MemoryStore persists one query/response pair for the calling user.
	MemoryStore struct {
		node.Base
	}

	// MemoryRetrieve loads the calling user's most recent interactions.
	MemoryRetrieve struct {
		node.Base
	}
)

// defaultRetrieveLimit bounds retrieval when no limit input is given.
const defaultRetrieveLimit = 10

// NewMemoryStore constructs a memory store node.
func NewMemoryStore(def workflow.NodeDef) (node.Node, error) {
	return &MemoryStore{Base: node.NewBase(def, node.ModeOnce)}, nil
}

// Execute implements node.Node.
func (n *MemoryStore) Execute(ctx context.Context, ec *node.Context) (map[string]any, error) {
	store := storeFrom(ec)
	if store == nil {
		return nil, fmt.Errorf("memory_store node %s: storage is not configured", n.NodeID)
	}
	query := stringInput(&n.Base, "query", "")
	response := stringInput(&n.Base, "response", "")
	if query == "" && response == "" {
		return nil, fmt.Errorf("memory_store node %s: query or response is required", n.NodeID)
	}
	userID := callerVariable(ec)
	it := storage.Interaction{
		UserID:    userID,
		Query:     query,
		Response:  response,
		CreatedAt: time.Now().UTC(),
	}
	if err := store.SaveInteraction(ctx, it); err != nil {
		return nil, fmt.Errorf("memory_store node %s: %w", n.NodeID, err)
	}
	return map[string]any{
		"stored":  true,
		"user_id": userID,
	}, nil
}

// NewMemoryRetrieve constructs a memory retrieval node.
func NewMemoryRetrieve(def workflow.NodeDef) (node.Node, error) {
	return &MemoryRetrieve{Base: node.NewBase(def, node.ModeOnce)}, nil
}

// Execute implements node.Node.
func (n *MemoryRetrieve) Execute(ctx context.Context, ec *node.Context) (map[string]any, error) {
	store := storeFrom(ec)
	if store == nil {
		return nil, fmt.Errorf("memory_retrieve node %s: storage is not configured", n.NodeID)
	}
	userID := callerVariable(ec)
	limit := intInput(&n.Base, "limit", defaultRetrieveLimit)

	items, err := store.ListInteractions(ctx, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("memory_retrieve node %s: %w", n.NodeID, err)
	}
	interactions := make([]any, len(items))
	for i, it := range items {
		interactions[i] = map[string]any{
			"query":      it.Query,
			"response":   it.Response,
			"created_at": it.CreatedAt.Format(time.RFC3339Nano),
		}
	}
	return map[string]any{
		"interactions": interactions,
		"count":        len(interactions),
		"user_id":      userID,
	}, nil
}

func storeFrom(ec *node.Context) storage.Store {
	if ec.Container == nil {
		return nil
	}
	return ec.Container.Store
}

// callerVariable resolves the owning user from the context variables.
func callerVariable(ec *node.Context) string {
	if v, ok := ec.Variables["user_id"].(string); ok && v != "" {
		return v
	}
	if v, ok := ec.Variables["client_id"].(string); ok && v != "" {
		return v
	}
	return "anonymous"
}
