package llm

import (
	"fmt"

	"github.com/manjuraavi/auto-responder/internal/config"
	"github.com/manjuraavi/auto-responder/internal/logging"
)

// NewClient creates a completion client from configuration.
func NewClient(cfg *config.Config) (Client, error) {
	logging.Boot("Creating completion client: provider=%s model=%s", cfg.LLM.Provider, cfg.LLM.Model)

	switch cfg.LLM.Provider {
	case "openai", "":
		return NewOpenAIClientWithConfig(OpenAIConfig{
			APIKey:  cfg.LLM.APIKey,
			BaseURL: cfg.LLM.BaseURL,
			Model:   cfg.LLM.Model,
			Timeout: cfg.GetLLMTimeout(),
		}), nil
	case "gemini":
		return NewGeminiClient(cfg.LLM.APIKey, cfg.LLM.Model)
	default:
		return nil, fmt.Errorf("unsupported llm provider: %s (use 'openai' or 'gemini')", cfg.LLM.Provider)
	}
}
