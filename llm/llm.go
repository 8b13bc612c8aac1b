// Package llm provides chat-completion clients for answer generation.
package llm

import (
	"context"
	"fmt"

	"github.com/pagequery/pagequery/config"
)

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type Message struct {
	Role    string
	Content string
}

// Client generates a completion for a conversation. Model, temperature, and
// token budget are fixed at construction so every call in a process uses the
// same generation parameters.
type Client interface {
	Generate(ctx context.Context, messages []Message) (string, error)
}

const defaultMaxTokens = 1000

// NewClient selects a provider from configuration.
func NewClient(cfg config.Config) (Client, error) {
	switch cfg.LLM.Provider {
	case config.ProviderOllama:
		return newOllamaClient(cfg.OllamaHost, cfg.LLM.Model, cfg.LLM.Temperature, cfg.LLM.Timeout), nil
	case config.ProviderOpenAI:
		if cfg.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("openai llm selected but OPENAI_API_KEY not set")
		}
		return newOpenAIClient(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.LLM.Model, cfg.LLM.Temperature, cfg.LLM.Timeout), nil
	default:
		return nil, fmt.Errorf("unknown llm provider: %s", cfg.LLM.Provider)
	}
}
