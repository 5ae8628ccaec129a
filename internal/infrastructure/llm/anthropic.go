package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"NewsPipeline/internal/config"
	"NewsPipeline/internal/ports"
)

// AnthropicClient implements ports.Completer with the Messages API.
type AnthropicClient struct {
	client       *anthropic.Client
	model        anthropic.Model
	maxTokens    int64
	systemPrompt string
	configured   bool
}

var _ ports.Completer = (*AnthropicClient)(nil)

// NewAnthropicClient builds a client from configuration. SDK-level retries are
// disabled so the summarizer's own policy decides.
func NewAnthropicClient(cfg config.SummarizationConfig) *AnthropicClient {
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithBaseURL(cfg.Endpoint))
	}
	client := anthropic.NewClient(opts...)

	model := anthropic.Model(cfg.Model)
	if cfg.Model == "" {
		model = anthropic.ModelClaudeHaiku4_5
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 1024
	}

	return &AnthropicClient{
		client:       &client,
		model:        model,
		maxTokens:    maxTokens,
		systemPrompt: safePrompt(cfg.SystemPrompt),
		configured:   cfg.APIKey != "",
	}
}

// Complete sends prompt as a single user message and joins the text blocks of the reply.
func (c *AnthropicClient) Complete(ctx context.Context, prompt string) (string, error) {
	if !c.configured {
		return "", fmt.Errorf("anthropic api key is not set: %w", ports.ErrProcessStart)
	}

	resp, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     c.model,
		MaxTokens: c.maxTokens,
		System: []anthropic.TextBlockParam{
			{Text: c.systemPrompt},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		var apiErr *anthropic.Error
		if errors.As(err, &apiErr) {
			return "", fmt.Errorf("anthropic API error %d: %w", apiErr.StatusCode, err)
		}
		return "", fmt.Errorf("anthropic API error: %w", err)
	}

	var parts []string
	for _, block := range resp.Content {
		if block.Type == "text" && block.Text != "" {
			parts = append(parts, block.Text)
		}
	}
	if len(parts) == 0 {
		return "", fmt.Errorf("no response from anthropic")
	}
	return strings.Join(parts, "\n"), nil
}
