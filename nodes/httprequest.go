package nodes

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/ohnodev/obelisk-core/node"
	"github.com/ohnodev/obelisk-core/workflow"
)

type (
	// HTTPRequest performs one JSON call to an external service through the
	// shared HTTP collaborator. GET and DELETE send no body; other methods
	// send the "body" input encoded as JSON.
	HTTPRequest struct {
		node.Base
	}
)

// NewHTTPRequest constructs an HTTP request node.
func NewHTTPRequest(def workflow.NodeDef) (node.Node, error) {
	n := &HTTPRequest{Base: node.NewBase(def, node.ModeOnce)}
	method := strings.ToUpper(stringInput(&n.Base, "method", http.MethodGet))
	switch method {
	case http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
	default:
		return nil, fmt.Errorf("http_request %s: unsupported method %q", def.ID, method)
	}
	return n, nil
}

// Execute implements node.Node.
func (n *HTTPRequest) Execute(ctx context.Context, ec *node.Context) (map[string]any, error) {
	if ec.Container == nil || ec.Container.HTTP == nil {
		return nil, fmt.Errorf("http_request node %s: http client is not configured", n.NodeID)
	}
	url := stringInput(&n.Base, "url", "")
	if url == "" {
		return nil, fmt.Errorf("http_request node %s: url is required", n.NodeID)
	}
	method := strings.ToUpper(stringInput(&n.Base, "method", http.MethodGet))

	var payload *bytes.Reader
	if method != http.MethodGet && method != http.MethodDelete {
		body, _ := n.Input("body")
		raw, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("http_request node %s: encode body: %w", n.NodeID, err)
		}
		payload = bytes.NewReader(raw)
	}

	var req *http.Request
	var err error
	if payload != nil {
		req, err = http.NewRequestWithContext(ctx, method, url, payload)
	} else {
		req, err = http.NewRequestWithContext(ctx, method, url, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("http_request node %s: %w", n.NodeID, err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	var decoded any
	if err := ec.Container.HTTP.Do(req, &decoded); err != nil {
		return nil, fmt.Errorf("http_request node %s: %w", n.NodeID, err)
	}
	return map[string]any{
		"response": decoded,
		"url":      url,
		"method":   method,
	}, nil
}
