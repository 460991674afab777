package llmadapter

import (
	"fmt"

	"github.com/opsrelay/opsrelay/pkg/config"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/anthropic"
	"github.com/tmc/langchaingo/llms/openai"
)

// NewClient constructs a completion client for the configured provider.
// A missing API key is a configuration fault raised here, before any
// conversation begins.
func NewClient(cfg *config.LLMConfig) (Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("llm: %s API key is required", cfg.Provider)
	}
	model, err := createModel(cfg)
	if err != nil {
		return nil, fmt.Errorf("llm: create %s model: %w", cfg.Provider, err)
	}
	return NewLangChainAdapter(model), nil
}

func createModel(cfg *config.LLMConfig) (llms.Model, error) {
	switch cfg.Provider {
	case "anthropic":
		return anthropic.New(
			anthropic.WithModel(cfg.Model),
			anthropic.WithToken(cfg.APIKey),
		)
	case "openai":
		return openai.New(
			openai.WithModel(cfg.Model),
			openai.WithToken(cfg.APIKey),
		)
	default:
		return nil, fmt.Errorf("unsupported provider: %s", cfg.Provider)
	}
}
