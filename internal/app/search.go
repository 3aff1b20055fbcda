package app

import (
	"context"
	"fmt"

	"github.com/deusflow/newsqueue/internal/aisearch"
	"github.com/deusflow/newsqueue/internal/config"
	"github.com/deusflow/newsqueue/internal/gemini"
	"github.com/deusflow/newsqueue/internal/images"
)

// newSearcher builds the AI search backend. It returns a nil searcher and a
// notice when the tier cannot run.
func newSearcher(ctx context.Context, cfg config.AISearch) (images.Searcher, func(), string, error) {
	noop := func() {}
	if !cfg.Enabled() {
		return nil, noop, fmt.Sprintf("ai image search disabled: no API key for %s", cfg.Provider), nil
	}

	switch cfg.Provider {
	case "perplexity":
		return aisearch.NewPerplexity(aisearch.PerplexityConfig{
			APIKey:         cfg.APIKey,
			BaseURL:        cfg.BaseURL,
			Model:          cfg.Model,
			AllowedDomains: cfg.AllowedDomains,
			Recency:        cfg.Recency,
			Temperature:    cfg.Temperature,
			MaxTokens:      cfg.MaxTokens,
			Timeout:        cfg.Timeout,
		}), noop, "", nil
	case "openai":
		return aisearch.NewOpenAI(aisearch.OpenAIConfig{
			APIKey:         cfg.APIKey,
			BaseURL:        cfg.BaseURL,
			Model:          cfg.Model,
			AllowedDomains: cfg.AllowedDomains,
			Temperature:    cfg.Temperature,
			MaxTokens:      cfg.MaxTokens,
			Timeout:        cfg.Timeout,
		}), noop, "", nil
	case "gemini":
		client, err := gemini.NewClient(ctx, gemini.Config{
			APIKey:         cfg.APIKey,
			Model:          cfg.Model,
			AllowedDomains: cfg.AllowedDomains,
			Temperature:    cfg.Temperature,
			MaxTokens:      cfg.MaxTokens,
			Timeout:        cfg.Timeout,
		})
		if err != nil {
			return nil, noop, "", fmt.Errorf("gemini client: %w", err)
		}
		return client, client.Close, "", nil
	default:
		return nil, noop, fmt.Sprintf("ai image search disabled: unknown provider %q", cfg.Provider), nil
	}
}
