// Package openai adapts OpenAI-compatible chat completion APIs to the
// model.Generator contract. It also serves self-hosted runtimes (vLLM,
// llama.cpp) that expose the same wire format, via WithBaseURL.
package openai

import (
	"context"
	"fmt"

	oai "github.com/sashabaranov/go-openai"

	"github.com/ohnodev/obelisk-core/model"
)

type (
	// Option configures a Client.
	Option func(*clientConfig)

	// Client implements model.Generator over the chat completions API.
	Client struct {
		api   *oai.Client
		model string
	}

	clientConfig struct {
		model   string
		baseURL string
	}
)

// defaultModel is used when no model is configured.
const defaultModel = oai.GPT4oMini

// WithModel overrides the model identifier.
func WithModel(m string) Option {
	return func(c *clientConfig) {
		if m != "" {
			c.model = m
		}
	}
}

// WithBaseURL points the client at an OpenAI-compatible endpoint.
func WithBaseURL(u string) Option {
	return func(c *clientConfig) { c.baseURL = u }
}

// New constructs a client for the given API key.
func New(apiKey string, opts ...Option) (*Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai: api key is required")
	}
	cfg := clientConfig{model: defaultModel}
	for _, opt := range opts {
		opt(&cfg)
	}
	apiCfg := oai.DefaultConfig(apiKey)
	if cfg.baseURL != "" {
		apiCfg.BaseURL = cfg.baseURL
	}
	return &Client{
		api:   oai.NewClientWithConfig(apiCfg),
		model: cfg.model,
	}, nil
}

// Generate implements model.Generator.
func (c *Client) Generate(ctx context.Context, req model.Request) (*model.Response, error) {
	msgs := make([]oai.ChatCompletionMessage, 0, len(req.ConversationHistory)+2)
	if req.SystemPrompt != "" {
		msgs = append(msgs, oai.ChatCompletionMessage{
			Role:    oai.ChatMessageRoleSystem,
			Content: req.SystemPrompt,
		})
	}
	for _, m := range req.ConversationHistory {
		role := oai.ChatMessageRoleUser
		switch m.Role {
		case "assistant":
			role = oai.ChatMessageRoleAssistant
		case "system":
			role = oai.ChatMessageRoleSystem
		}
		msgs = append(msgs, oai.ChatCompletionMessage{Role: role, Content: m.Content})
	}
	msgs = append(msgs, oai.ChatCompletionMessage{
		Role:    oai.ChatMessageRoleUser,
		Content: req.Query,
	})

	resp, err := c.api.CreateChatCompletion(ctx, oai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    msgs,
		Temperature: float32(req.Temperature),
		TopP:        float32(req.TopP),
		MaxTokens:   req.MaxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("openai generate: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("openai generate: empty choices")
	}
	return &model.Response{
		Response:     resp.Choices[0].Message.Content,
		Model:        resp.Model,
		InputTokens:  resp.Usage.PromptTokens,
		OutputTokens: resp.Usage.CompletionTokens,
		GenerationParams: map[string]any{
			"max_tokens":  req.MaxTokens,
			"temperature": req.Temperature,
			"top_p":       req.TopP,
		},
		Source: "openai",
	}, nil
}
