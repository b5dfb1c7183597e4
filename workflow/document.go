package workflow

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

type (
	// Document is the caller-facing workflow shape accepted at the boundary
	// (HTTP handlers, the job queue). It uses from/to edge naming and carries
	// no connection ids; ToGraph synthesizes them.
	Document struct {
		ID          string         `json:"id"`
		Name        string         `json:"name"`
		Nodes       []DocumentNode `json:"nodes"`
		Connections []DocumentEdge `json:"connections"`
	}

	// DocumentNode is the caller-facing node shape.
	DocumentNode struct {
		ID       string         `json:"id"`
		Type     string         `json:"type"`
		Position Position       `json:"position"`
		Inputs   map[string]any `json:"inputs,omitempty"`
		Metadata map[string]any `json:"metadata,omitempty"`
	}

	// DocumentEdge is the caller-facing connection shape.
	DocumentEdge struct {
		From       string `json:"from"`
		FromOutput string `json:"from_output"`
		To         string `json:"to"`
		ToInput    string `json:"to_input"`
		DataType   string `json:"data_type,omitempty"`
	}
)

// ParseDocument decodes and schema-validates a caller-facing workflow
// document. Schema violations are reported before decoding so error messages
// reference the document shape rather than Go types.
func ParseDocument(raw []byte) (*Document, error) {
	if err := ValidateDocument(raw); err != nil {
		return nil, err
	}
	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decode workflow document: %w", err)
	}
	return &doc, nil
}

// ToGraph translates the document into the engine-facing graph shape,
// synthesizing a connection id per edge. A missing workflow id gets a
// generated one so downstream results always carry a graph id.
func (d *Document) ToGraph() *Graph {
	g := &Graph{ID: d.ID, Name: d.Name}
	if g.ID == "" {
		g.ID = uuid.NewString()
	}
	for _, n := range d.Nodes {
		g.Nodes = append(g.Nodes, NodeDef{
			ID:       n.ID,
			Type:     n.Type,
			Inputs:   DeepCopyMap(n.Inputs),
			Metadata: DeepCopyMap(n.Metadata),
			Position: n.Position,
		})
	}
	for _, e := range d.Connections {
		g.Connections = append(g.Connections, Connection{
			ID:           uuid.NewString(),
			SourceNode:   e.From,
			SourceOutput: e.FromOutput,
			TargetNode:   e.To,
			TargetInput:  e.ToInput,
			DataType:     e.DataType,
		})
	}
	return g
}

// DocumentFromGraph translates an engine-facing graph back into the
// caller-facing shape, dropping connection ids.
func DocumentFromGraph(g *Graph) *Document {
	d := &Document{ID: g.ID, Name: g.Name}
	for _, n := range g.Nodes {
		d.Nodes = append(d.Nodes, DocumentNode{
			ID:       n.ID,
			Type:     n.Type,
			Position: n.Position,
			Inputs:   DeepCopyMap(n.Inputs),
			Metadata: DeepCopyMap(n.Metadata),
		})
	}
	for _, c := range g.Connections {
		d.Connections = append(d.Connections, DocumentEdge{
			From:       c.SourceNode,
			FromOutput: c.SourceOutput,
			To:         c.TargetNode,
			ToInput:    c.TargetInput,
			DataType:   c.DataType,
		})
	}
	return d
}
