package ai

import (
	"fmt"

	"aligncv/internal/config"
	"aligncv/internal/errors"
)

// NewRewriter builds the Rewriter for the configured provider. Missing
// credentials are a configuration error.
func NewRewriter(cfg *config.OperationAIConfig, logger *errors.Logger, opts ...RewriterOption) (*GeminiRewriter, error) {
	if logger != nil {
		logger.Debug("Initializing AI rewriter",
			"provider", cfg.Provider,
			"model", cfg.Model,
			"circuit_breaker", cfg.CircuitBreaker.Enabled)
	}

	switch cfg.Provider {
	case "gemini", "":
		return NewGeminiRewriter(cfg, logger, opts...)
	default:
		return nil, errors.NewConfigError(errors.ErrCodeInvalidConfig,
			fmt.Sprintf("Unsupported AI provider: %s", cfg.Provider), nil)
	}
}
