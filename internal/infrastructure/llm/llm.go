// Package llm holds the language-model backends used by the summarizer.
package llm

import (
	"fmt"

	"NewsPipeline/internal/config"
	"NewsPipeline/internal/ports"
)

// New selects the backend named by cfg.Provider.
func New(cfg config.SummarizationConfig) (ports.Completer, error) {
	switch cfg.Provider {
	case "anthropic", "":
		return NewAnthropicClient(cfg), nil
	case "openai":
		return NewChatGPTClient(cfg), nil
	case "command":
		return NewCommandCompleter(cfg.Command), nil
	default:
		return nil, fmt.Errorf("unknown summarization provider %q", cfg.Provider)
	}
}
