// Package storage defines the key-addressable persistence contract nodes use
// for interactions, activity logs, and opaque model-weight blobs. Every call
// is synchronous from the node's perspective; backends surface their own
// durability semantics behind the interface.
package storage

import (
	"context"
	"errors"
	"time"
)

type (
	// Interaction is one user/model exchange.
	Interaction struct {
		// UserID identifies the caller the interaction belongs to.
		UserID string
		// Query is the user input.
		Query string
		// Response is the model output.
		Response string
		// CreatedAt records when the interaction happened.
		CreatedAt time.Time
		// Metadata carries implementation-specific annotations.
		Metadata map[string]any
	}

	// Activity is a generic activity-log entry (summaries, training events,
	// scheduler firings).
	Activity struct {
		// UserID identifies the caller the entry belongs to.
		UserID string
		// Kind groups entries ("summary", "training", ...).
		Kind string
		// Summary is the human-readable payload.
		Summary string
		// CreatedAt records when the entry was appended.
		CreatedAt time.Time
		// Data carries structured detail.
		Data map[string]any
	}

	// Store persists interactions, activity logs, and opaque weight blobs.
	//
	// Contract:
	// - List operations return newest-first and honor limit (<= 0 means all).
	// - GetWeights returns ErrNotFound for unknown keys.
	// - Failures surface to the node, which reports them as node errors.
	Store interface {
		// SaveInteraction appends one interaction.
		SaveInteraction(ctx context.Context, it Interaction) error
		// ListInteractions returns a user's interactions, newest first.
		ListInteractions(ctx context.Context, userID string, limit int) ([]Interaction, error)

		// AppendActivity appends one activity-log entry.
		AppendActivity(ctx context.Context, a Activity) error
		// ListActivities returns a user's activity entries, newest first.
		// Empty kind matches all kinds.
		ListActivities(ctx context.Context, userID, kind string, limit int) ([]Activity, error)

		// PutWeights stores an opaque weight blob under key.
		PutWeights(ctx context.Context, key string, blob []byte) error
		// GetWeights returns the blob stored under key.
		GetWeights(ctx context.Context, key string) ([]byte, error)
	}
)

var (
	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = errors.New("record not found")
)
