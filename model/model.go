// Package model defines the provider-agnostic generation contract shared by
// the inference queue and LLM nodes. Implementations wrap provider SDKs
// (Anthropic, OpenAI, local runtimes) and translate Request/Response to
// provider-specific formats. The inference queue serializes access to a
// single Generator; implementations do not need to be safe for concurrent
// generation unless used without the queue.
package model

import (
	"context"
	"errors"
)

type (
	// Generator produces a completion for a single request.
	Generator interface {
		// Generate runs one completion. Implementations should honor ctx
		// cancellation and return descriptive errors; the inference queue
		// records them per-request without affecting other pending requests.
		Generate(ctx context.Context, req Request) (*Response, error)
	}

	// Message is one turn of conversation history.
	Message struct {
		// Role is "user", "assistant", or "system".
		Role string `json:"role"`
		// Content is the message text.
		Content string `json:"content"`
	}

	// Request is the wire shape of a generation request. Zero-valued sampling
	// parameters mean "use the provider default"; the inference queue clamps
	// non-zero values into the supported ranges before the model sees them.
	Request struct {
		Query               string    `json:"query"`
		SystemPrompt        string    `json:"system_prompt"`
		ConversationHistory []Message `json:"conversation_history,omitempty"`
		EnableThinking      bool      `json:"enable_thinking,omitempty"`
		MaxTokens           int       `json:"max_tokens,omitempty"`
		Temperature         float64   `json:"temperature,omitempty"`
		TopP                float64   `json:"top_p,omitempty"`
		TopK                int       `json:"top_k,omitempty"`
		RepetitionPenalty   float64   `json:"repetition_penalty,omitempty"`
	}

	// Response is the wire shape of a generation result.
	Response struct {
		Response         string         `json:"response"`
		ThinkingContent  string         `json:"thinking_content"`
		Model            string         `json:"model"`
		InputTokens      int            `json:"input_tokens"`
		OutputTokens     int            `json:"output_tokens"`
		GenerationParams map[string]any `json:"generation_params,omitempty"`
		Source           string         `json:"source"`
		Error            string         `json:"error,omitempty"`
	}
)

var (
	// ErrModelNotLoaded indicates no model is available to serve requests.
	// Boundary handlers map it to 503.
	ErrModelNotLoaded = errors.New("model not loaded")
)
