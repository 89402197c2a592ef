package similarity

import (
	"context"
	"fmt"
	"time"

	"aligncv/internal/config"
	aligncvErrors "aligncv/internal/errors"
)

const warmupTimeout = 30 * time.Second

// Load builds the configured embedding backend and embeds a test string once. Any
// failure is logged and a Semantic without a backend is returned, so the
// caller always gets a usable value.
func Load(ctx context.Context, cfg config.SimilarityConfig, logger *aligncvErrors.Logger) *Semantic {
	if logger == nil {
		logger = aligncvErrors.NewNopLogger()
	}

	provider := cfg.ResolvedProvider()
	embedder, err := newEmbedder(ctx, provider, cfg)
	if err != nil {
		logger.LogError(err, "Failed to create embedding backend, semantic similarity disabled",
			"provider", provider)
		return NewSemantic(nil, logger)
	}
	if embedder == nil {
		logger.Warn("Semantic similarity disabled, every match scores 0", "provider", provider)
		return NewSemantic(nil, logger)
	}

	warmupCtx, cancel := context.WithTimeout(ctx, warmupTimeout)
	defer cancel()
	if _, err := embedder.Embed(warmupCtx, []string{"warmup"}); err != nil {
		logger.LogError(err, "Embedding backend warmup failed, semantic similarity disabled",
			"provider", provider)
		return NewSemantic(nil, logger)
	}

	logger.Info("Embedding backend loaded", "provider", provider, "model", cfg.Model)
	return NewSemantic(embedder, logger)
}

func newEmbedder(ctx context.Context, provider string, cfg config.SimilarityConfig) (Embedder, error) {
	switch provider {
	case "none":
		return nil, nil
	case "gemini":
		return NewGeminiEmbedder(ctx, cfg.APIKey, cfg.Model, cfg.Endpoint)
	case "tei":
		if cfg.Endpoint == "" {
			return nil, fmt.Errorf("tei provider requires an endpoint")
		}
		return NewTEIEmbedder(cfg.Endpoint, cfg.Timeout), nil
	default:
		return nil, fmt.Errorf("unknown similarity provider: %s", provider)
	}
}
