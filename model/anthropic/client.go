// Package anthropic adapts the Anthropic Messages API to the model.Generator
// contract.
package anthropic

import (
	"context"
	"fmt"
	"strings"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/ohnodev/obelisk-core/model"
)

type (
	// Option configures a Client.
	Option func(*Client)

	// Client implements model.Generator against the Anthropic Messages API.
	Client struct {
		messages *sdk.MessageService
		model    string
	}
)

const (
	// defaultModel is used when no model is configured.
	defaultModel = "claude-sonnet-4-20250514"
	// defaultMaxTokens applies when the request leaves max_tokens unset.
	defaultMaxTokens = 1024
	// minThinkingBudget is the smallest budget the API accepts for extended
	// thinking.
	minThinkingBudget = 1024
)

// WithModel overrides the model identifier.
func WithModel(m string) Option {
	return func(c *Client) {
		if m != "" {
			c.model = m
		}
	}
}

// New constructs a client for the given API key.
func New(apiKey string, opts ...Option) (*Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("anthropic: api key is required")
	}
	ac := sdk.NewClient(option.WithAPIKey(apiKey))
	c := &Client{
		messages: &ac.Messages,
		model:    defaultModel,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Generate implements model.Generator.
func (c *Client) Generate(ctx context.Context, req model.Request) (*model.Response, error) {
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	msgs := make([]sdk.MessageParam, 0, len(req.ConversationHistory)+1)
	for _, m := range req.ConversationHistory {
		switch m.Role {
		case "assistant":
			msgs = append(msgs, sdk.NewAssistantMessage(sdk.NewTextBlock(m.Content)))
		default:
			msgs = append(msgs, sdk.NewUserMessage(sdk.NewTextBlock(m.Content)))
		}
	}
	msgs = append(msgs, sdk.NewUserMessage(sdk.NewTextBlock(req.Query)))

	params := sdk.MessageNewParams{
		Model:     sdk.Model(c.model),
		MaxTokens: int64(maxTokens),
		Messages:  msgs,
	}
	if req.SystemPrompt != "" {
		params.System = []sdk.TextBlockParam{{Text: req.SystemPrompt}}
	}
	if req.Temperature != 0 {
		params.Temperature = sdk.Float(req.Temperature)
	}
	if req.TopP != 0 {
		params.TopP = sdk.Float(req.TopP)
	}
	if req.TopK != 0 {
		params.TopK = sdk.Int(int64(req.TopK))
	}
	if req.EnableThinking {
		// The thinking budget must stay below max_tokens.
		budget := int64(maxTokens / 2)
		if budget < minThinkingBudget {
			budget = minThinkingBudget
			params.MaxTokens = budget * 2
		}
		params.Thinking = sdk.ThinkingConfigParamOfEnabled(budget)
	}

	msg, err := c.messages.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("anthropic generate: %w", err)
	}

	var text, thinking strings.Builder
	for _, block := range msg.Content {
		switch block.Type {
		case "text":
			text.WriteString(block.Text)
		case "thinking":
			thinking.WriteString(block.Thinking)
		}
	}
	return &model.Response{
		Response:        text.String(),
		ThinkingContent: thinking.String(),
		Model:           string(msg.Model),
		InputTokens:     int(msg.Usage.InputTokens),
		OutputTokens:    int(msg.Usage.OutputTokens),
		GenerationParams: map[string]any{
			"max_tokens":      maxTokens,
			"temperature":     req.Temperature,
			"enable_thinking": req.EnableThinking,
		},
		Source: "anthropic",
	}, nil
}
