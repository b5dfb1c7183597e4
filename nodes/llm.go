package nodes

import (
	"context"
	"fmt"
	"time"

	"github.com/ohnodev/obelisk-core/model"
	"github.com/ohnodev/obelisk-core/node"
	"github.com/ohnodev/obelisk-core/workflow"
)

type (
	// LLM runs one generation against the shared model. When the container
	// carries an inference queue the request goes through it so concurrent
	// workflows cannot overlap generations; otherwise the node calls the
	// generator directly.
	LLM struct {
		node.Base
	}
)

// defaultSubmitTimeout bounds the wait for a queued generation.
const defaultSubmitTimeout = 2 * time.Minute

// NewLLM constructs an LLM node.
func NewLLM(def workflow.NodeDef) (node.Node, error) {
	return &LLM{Base: node.NewBase(def, node.ModeOnce)}, nil
}

// Execute implements node.Node.
func (n *LLM) Execute(ctx context.Context, ec *node.Context) (map[string]any, error) {
	prompt := stringInput(&n.Base, "prompt", "")
	if prompt == "" {
		prompt = stringInput(&n.Base, "query", "")
	}
	if prompt == "" {
		return nil, fmt.Errorf("llm node %s: prompt is required", n.NodeID)
	}

	req := model.Request{
		Query:             prompt,
		SystemPrompt:      stringInput(&n.Base, "system_prompt", ""),
		EnableThinking:    boolInput(&n.Base, "enable_thinking", false),
		MaxTokens:         intInput(&n.Base, "max_tokens", 0),
		Temperature:       floatInput(&n.Base, "temperature", 0),
		TopP:              floatInput(&n.Base, "top_p", 0),
		TopK:              intInput(&n.Base, "top_k", 0),
		RepetitionPenalty: floatInput(&n.Base, "repetition_penalty", 0),
	}

	var (
		resp *model.Response
		err  error
	)
	switch {
	case ec.Container != nil && ec.Container.Inference != nil:
		timeout := time.Duration(floatInput(&n.Base, "timeout_seconds", 0) * float64(time.Second))
		if timeout <= 0 {
			timeout = defaultSubmitTimeout
		}
		resp, err = ec.Container.Inference.Submit(ctx, req, timeout)
	case ec.Container != nil && ec.Container.Model != nil:
		resp, err = ec.Container.Model.Generate(ctx, req)
	default:
		return nil, model.ErrModelNotLoaded
	}
	if err != nil {
		return nil, fmt.Errorf("llm node %s: %w", n.NodeID, err)
	}

	return map[string]any{
		"response":      resp.Response,
		"thinking":      resp.ThinkingContent,
		"model":         resp.Model,
		"input_tokens":  resp.InputTokens,
		"output_tokens": resp.OutputTokens,
	}, nil
}
