package inmem

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ohnodev/obelisk-core/storage"
)

func TestInteractionsNewestFirst(t *testing.T) {
	s := New()
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		require.NoError(t, s.SaveInteraction(ctx, storage.Interaction{
			UserID: "alice",
			Query:  fmt.Sprintf("q%d", i),
		}))
	}

	items, err := s.ListInteractions(ctx, "alice", 3)
	require.NoError(t, err)
	require.Len(t, items, 3)
	require.Equal(t, "q4", items[0].Query)
	require.Equal(t, "q2", items[2].Query)

	all, err := s.ListInteractions(ctx, "alice", 0)
	require.NoError(t, err)
	require.Len(t, all, 5, "non-positive limit returns everything")

	none, err := s.ListInteractions(ctx, "bob", 10)
	require.NoError(t, err)
	require.Empty(t, none)
}

func TestInteractionIsolation(t *testing.T) {
	s := New()
	ctx := context.Background()
	meta := map[string]any{"k": "v"}
	require.NoError(t, s.SaveInteraction(ctx, storage.Interaction{UserID: "alice", Query: "q", Metadata: meta}))
	meta["k"] = "mutated after save"

	items, err := s.ListInteractions(ctx, "alice", 0)
	require.NoError(t, err)
	require.Equal(t, "v", items[0].Metadata["k"], "store shares caller maps")

	items[0].Metadata["k"] = "mutated after read"
	again, err := s.ListInteractions(ctx, "alice", 0)
	require.NoError(t, err)
	require.Equal(t, "v", again[0].Metadata["k"])
}

func TestActivitiesFilterByKind(t *testing.T) {
	s := New()
	ctx := context.Background()
	require.NoError(t, s.AppendActivity(ctx, storage.Activity{UserID: "alice", Kind: "summary", Summary: "s1"}))
	require.NoError(t, s.AppendActivity(ctx, storage.Activity{UserID: "alice", Kind: "training", Summary: "t1"}))
	require.NoError(t, s.AppendActivity(ctx, storage.Activity{UserID: "alice", Kind: "summary", Summary: "s2"}))

	summaries, err := s.ListActivities(ctx, "alice", "summary", 0)
	require.NoError(t, err)
	require.Len(t, summaries, 2)
	require.Equal(t, "s2", summaries[0].Summary)

	all, err := s.ListActivities(ctx, "alice", "", 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
}

func TestWeights(t *testing.T) {
	s := New()
	ctx := context.Background()

	_, err := s.GetWeights(ctx, "missing")
	require.ErrorIs(t, err, storage.ErrNotFound)

	blob := []byte{1, 2, 3}
	require.NoError(t, s.PutWeights(ctx, "adapter", blob))
	blob[0] = 99

	got, err := s.GetWeights(ctx, "adapter")
	require.NoError(t, err)
	require.Equal(t, []byte{1, 2, 3}, got, "store shares caller slices")

	got[1] = 99
	again, err := s.GetWeights(ctx, "adapter")
	require.NoError(t, err)
	require.Equal(t, []byte{1, 2, 3}, again)
}

func TestReset(t *testing.T) {
	s := New()
	ctx := context.Background()
	require.NoError(t, s.SaveInteraction(ctx, storage.Interaction{UserID: "alice", Query: "q"}))
	s.Reset()
	items, err := s.ListInteractions(ctx, "alice", 0)
	require.NoError(t, err)
	require.Empty(t, items)
}
