package ai

import (
	"context"
	"time"
)

// Rewriter sends a prompt to a generative model and returns its text.
type Rewriter interface {
	Rewrite(ctx context.Context, prompt string) (string, error)
}

// ModelChecker reports whether the configured model is reachable.
type ModelChecker interface {
	GetModelInfo(ctx context.Context) *ModelInfo
}

// UsageRecorder receives latency and token usage of every model call.
type UsageRecorder interface {
	RecordAIUsage(ctx context.Context, operation string, duration time.Duration, usage *TokenUsage, err error)
}

// BreakerStateRecorder is optionally implemented by a UsageRecorder that
// also tracks circuit breaker transitions.
type BreakerStateRecorder interface {
	RecordCircuitState(ctx context.Context, name, state string)
}

// TokenUsage represents token usage information from AI responses
type TokenUsage struct {
	InputTokens  int64
	OutputTokens int64
	TotalTokens  int64
}

// ModelInfo represents information about the AI model
type ModelInfo struct {
	Name        string `json:"name"`
	DisplayName string `json:"displayName,omitempty"`
	Version     string `json:"version,omitempty"`
	Available   bool   `json:"available"`
	Error       string `json:"error,omitempty"`
}
