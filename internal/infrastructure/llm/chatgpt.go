package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"NewsPipeline/internal/config"
	"NewsPipeline/internal/ports"
)

const defaultChatEndpoint = "https://api.openai.com/v1/chat/completions"

// ChatGPTClient implements ports.Completer backed by OpenAI-compatible APIs.
type ChatGPTClient struct {
	endpoint     string
	model        string
	apiKey       string
	systemPrompt string
	maxTokens    int64
	httpClient   *http.Client
}

var _ ports.Completer = (*ChatGPTClient)(nil)

// NewChatGPTClient builds a client from configuration. Per-call deadlines
// come from the caller's context.
func NewChatGPTClient(cfg config.SummarizationConfig) *ChatGPTClient {
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = defaultChatEndpoint
	}
	return &ChatGPTClient{
		endpoint:     endpoint,
		model:        cfg.Model,
		apiKey:       cfg.APIKey,
		systemPrompt: cfg.SystemPrompt,
		maxTokens:    cfg.MaxTokens,
		httpClient:   &http.Client{},
	}
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Complete posts the prompt as a user message and returns the first choice.
func (c *ChatGPTClient) Complete(ctx context.Context, prompt string) (string, error) {
	if c == nil {
		return "", fmt.Errorf("chatgpt client is nil")
	}
	if c.apiKey == "" || c.endpoint == "" || c.model == "" {
		return "", fmt.Errorf("chatgpt client misconfigured: %w", ports.ErrProcessStart)
	}

	payload := map[string]any{
		"model": c.model,
		"messages": []map[string]string{
			{"role": "system", "content": safePrompt(c.systemPrompt)},
			{"role": "user", "content": prompt},
		},
	}
	if c.maxTokens > 0 {
		payload["max_tokens"] = c.maxTokens
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal chatgpt payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("send prompt: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", fmt.Errorf("chatgpt error %s: %s", resp.Status, strings.TrimSpace(string(payload)))
	}

	var decoded chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", fmt.Errorf("decode chatgpt response: %w", err)
	}
	if len(decoded.Choices) == 0 {
		return "", fmt.Errorf("chatgpt returned no choices")
	}

	return decoded.Choices[0].Message.Content, nil
}

func safePrompt(prompt string) string {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return "You are a financial news analyst who replies with JSON only."
	}
	return prompt
}
