package agent

import (
	"context"
	"fmt"

	"github.com/nextlevelbuilder/gitchat/internal/config"
	"github.com/nextlevelbuilder/gitchat/internal/providers"
)

// NewProviderFactory returns the factory for the configured provider kind.
func NewProviderFactory(cfg config.AgentConfig) ProviderFactory {
	retry := providers.DefaultRetryConfig()
	if cfg.MaxRetries > 0 {
		retry.MaxRetries = cfg.MaxRetries
	}

	return func(ctx context.Context, credential string) (providers.Provider, error) {
		switch cfg.Provider {
		case "", "gemini":
			p, err := providers.NewGeminiProvider(ctx, credential, "", cfg.Model)
			if err != nil {
				return nil, err
			}
			return p.WithRetry(retry), nil
		case "openai":
			return providers.NewOpenAIProvider("openai", credential, cfg.APIBase, cfg.Model).WithRetry(retry), nil
		default:
			return nil, fmt.Errorf("unknown agent provider %q", cfg.Provider)
		}
	}
}

// ConfigFrom maps the agent section of the gateway configuration.
func ConfigFrom(cfg config.AgentConfig) Config {
	return Config{
		Model:         cfg.Model,
		MaxTokens:     cfg.MaxTokens,
		Temperature:   cfg.Temperature,
		MaxIterations: cfg.MaxToolIterations,
		HistoryLimit:  cfg.HistoryLimit,
	}
}
