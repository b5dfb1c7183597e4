package workflow

import (
	"testing"

	"github.com/stretchr/testify/require"
)

const validDocument = `{
  "id": "wf-doc",
  "name": "demo",
  "nodes": [
    {"id": "src", "type": "text", "position": {"x": 10, "y": 20}, "inputs": {"text": "{{greeting}}"}},
    {"id": "sink", "type": "output"}
  ],
  "connections": [
    {"from": "src", "from_output": "text", "to": "sink", "to_input": "result"}
  ]
}`

func TestParseDocument(t *testing.T) {
	doc, err := ParseDocument([]byte(validDocument))
	require.NoError(t, err)
	require.Equal(t, "wf-doc", doc.ID)
	require.Len(t, doc.Nodes, 2)
	require.Equal(t, 10.0, doc.Nodes[0].Position.X)
	require.Len(t, doc.Connections, 1)
	require.Equal(t, "src", doc.Connections[0].From)
}

func TestParseDocumentRejections(t *testing.T) {
	cases := []struct {
		name string
		raw  string
	}{
		{"not json", `{"nodes": [`},
		{"missing nodes", `{"id": "wf"}`},
		{"empty nodes", `{"nodes": []}`},
		{"node without type", `{"nodes": [{"id": "a"}]}`},
		{"empty node id", `{"nodes": [{"id": "", "type": "text"}]}`},
		{"connection without endpoints", `{"nodes": [{"id": "a", "type": "text"}], "connections": [{"from": "a"}]}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseDocument([]byte(tc.raw))
			require.Error(t, err)
		})
	}
}

func TestToGraphSynthesizesIDs(t *testing.T) {
	doc, err := ParseDocument([]byte(validDocument))
	require.NoError(t, err)

	g := doc.ToGraph()
	require.Equal(t, "wf-doc", g.ID)
	require.Len(t, g.Connections, 1)
	require.NotEmpty(t, g.Connections[0].ID, "edge ids are synthesized")
	require.Equal(t, "src", g.Connections[0].SourceNode)
	require.Equal(t, "result", g.Connections[0].TargetInput)

	// A document without an id gets a generated one.
	doc.ID = ""
	g2 := doc.ToGraph()
	require.NotEmpty(t, g2.ID)
}

func TestToGraphCopiesInputs(t *testing.T) {
	doc, err := ParseDocument([]byte(validDocument))
	require.NoError(t, err)
	g := doc.ToGraph()
	g.Nodes[0].Inputs["text"] = "mutated"
	require.Equal(t, "{{greeting}}", doc.Nodes[0].Inputs["text"], "graph mutation leaked into the document")
}

func TestDocumentFromGraphRoundTrip(t *testing.T) {
	doc, err := ParseDocument([]byte(validDocument))
	require.NoError(t, err)
	g := doc.ToGraph()
	back := DocumentFromGraph(g)

	require.Equal(t, doc.ID, back.ID)
	require.Equal(t, doc.Name, back.Name)
	require.Len(t, back.Nodes, len(doc.Nodes))
	for i := range doc.Nodes {
		require.Equal(t, doc.Nodes[i].ID, back.Nodes[i].ID)
		require.Equal(t, doc.Nodes[i].Type, back.Nodes[i].Type)
	}
	require.Equal(t, doc.Connections, back.Connections)
}

func TestGraphSubgraph(t *testing.T) {
	g := &Graph{
		ID: "wf",
		Nodes: []NodeDef{
			{ID: "a", Type: "text"},
			{ID: "b", Type: "text"},
			{ID: "c", Type: "text"},
		},
		Connections: []Connection{
			{ID: "c1", SourceNode: "a", SourceOutput: "text", TargetNode: "b", TargetInput: "v"},
			{ID: "c2", SourceNode: "b", SourceOutput: "text", TargetNode: "c", TargetInput: "v"},
		},
	}
	sub := g.Subgraph(map[string]bool{"a": true, "b": true})
	require.NotEqual(t, g.ID, sub.ID, "derived graph gets its own id")
	require.Len(t, sub.Nodes, 2)
	require.Equal(t, "a", sub.Nodes[0].ID, "declaration order preserved")
	require.Len(t, sub.Connections, 1)
	require.Equal(t, "c1", sub.Connections[0].ID, "edges crossing the boundary are dropped")
}

func TestIncomingOutgoing(t *testing.T) {
	g := &Graph{
		Nodes: []NodeDef{{ID: "a", Type: "t"}, {ID: "b", Type: "t"}},
		Connections: []Connection{
			{ID: "c1", SourceNode: "a", TargetNode: "b"},
		},
	}
	require.Len(t, g.Outgoing("a"), 1)
	require.Empty(t, g.Outgoing("b"))
	require.Len(t, g.Incoming("b"), 1)
	require.Empty(t, g.Incoming("a"))
	require.NotNil(t, g.Node("a"))
	require.Nil(t, g.Node("ghost"))
}
