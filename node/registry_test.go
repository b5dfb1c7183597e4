package node

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ohnodev/obelisk-core/workflow"
)

type stubNode struct {
	Base
	tag string
}

func (n *stubNode) Execute(ctx context.Context, ec *Context) (map[string]any, error) {
	return map[string]any{"tag": n.tag}, nil
}

func stubCtor(tag string) Constructor {
	return func(def workflow.NodeDef) (Node, error) {
		return &stubNode{Base: NewBase(def, ModeOnce), tag: tag}, nil
	}
}

func TestRegistryRegisterAndLookup(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register("text", stubCtor("text")))

	ctor, ok := r.Lookup("text")
	require.True(t, ok)
	n, err := ctor(workflow.NodeDef{ID: "n1", Type: "text"})
	require.NoError(t, err)
	require.Equal(t, "n1", n.NodeBase().ID())

	_, ok = r.Lookup("missing")
	require.False(t, ok)
}

func TestRegistryRejectsInvalidBindings(t *testing.T) {
	r := NewRegistry()
	require.Error(t, r.Register("", stubCtor("x")))
	require.Error(t, r.Register("x", nil))
}

func TestRegistryReplacesBinding(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register("text", stubCtor("first")))
	require.NoError(t, r.Register("text", stubCtor("second")))

	ctor, ok := r.Lookup("text")
	require.True(t, ok)
	n, err := ctor(workflow.NodeDef{ID: "n1", Type: "text"})
	require.NoError(t, err)
	out, err := n.Execute(context.Background(), NewContext(nil, nil))
	require.NoError(t, err)
	require.Equal(t, "second", out["tag"])
}

func TestRegistryTypesSorted(t *testing.T) {
	r := NewRegistry()
	for _, tag := range []string{"zeta", "alpha", "mid"} {
		require.NoError(t, r.Register(tag, stubCtor(tag)))
	}
	require.Equal(t, []string{"alpha", "mid", "zeta"}, r.Types())
}

func TestBaseDefaultsAndInputCopy(t *testing.T) {
	def := workflow.NodeDef{
		ID:     "n1",
		Type:   "text",
		Inputs: map[string]any{"nested": map[string]any{"k": "v"}},
	}
	b := NewBase(def, "")
	require.Equal(t, ModeOnce, b.Mode(), "empty mode defaults to once")

	nested := b.InputValues["nested"].(map[string]any)
	nested["k"] = "mutated"
	require.Equal(t, "v", def.Inputs["nested"].(map[string]any)["k"], "instance inputs mutated the definition")
}
