package ai

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"aligncv/internal/config"
	aligncvErrors "aligncv/internal/errors"

	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"google.golang.org/api/googleapi"
	"google.golang.org/genai"
)

const modelCheckTimeout = 10 * time.Second

// GeminiRewriter implements Rewriter with a single Gemini generateContent
// call per request. Calls are never retried.
type GeminiRewriter struct {
	client         *genai.Client
	config         *config.OperationAIConfig
	systemPrompt   string
	circuitBreaker *AICircuitBreaker
	modelBreaker   *ModelCircuitBreaker
	recorder       UsageRecorder
	logger         *aligncvErrors.Logger
}

var (
	_ Rewriter     = (*GeminiRewriter)(nil)
	_ ModelChecker = (*GeminiRewriter)(nil)
)

// RewriterOption customizes a GeminiRewriter.
type RewriterOption func(*rewriterOptions)

type rewriterOptions struct {
	baseURL  string
	recorder UsageRecorder
}

// WithBaseURL points the client at a different API endpoint.
func WithBaseURL(url string) RewriterOption {
	return func(o *rewriterOptions) { o.baseURL = url }
}

func WithUsageRecorder(r UsageRecorder) RewriterOption {
	return func(o *rewriterOptions) { o.recorder = r }
}

// NewGeminiRewriter creates a Gemini-backed Rewriter for the optimize operation.
func NewGeminiRewriter(cfg *config.OperationAIConfig, logger *aligncvErrors.Logger, opts ...RewriterOption) (*GeminiRewriter, error) {
	if cfg.APIKey == "" {
		return nil, aligncvErrors.NewConfigError(aligncvErrors.ErrCodeMissingAPIKey,
			"AI optimization service is not configured (API Key missing).", nil)
	}
	if logger == nil {
		logger = aligncvErrors.NewNopLogger()
	}

	var o rewriterOptions
	for _, opt := range opts {
		opt(&o)
	}

	clientConfig := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if o.baseURL != "" {
		clientConfig.HTTPOptions = genai.HTTPOptions{BaseURL: o.baseURL}
	}

	client, err := genai.NewClient(context.Background(), clientConfig)
	if err != nil {
		return nil, aligncvErrors.NewAIError(aligncvErrors.ErrCodeAIServiceFailed,
			"Failed to create Gemini client", err)
	}

	loaded := config.GetPromptsForOperation("optimize")

	breaker := NewAICircuitBreaker("Optimize", cfg, logger)
	if states, ok := o.recorder.(BreakerStateRecorder); ok {
		breaker.OnStateChange(func(name, state string) {
			states.RecordCircuitState(context.Background(), name, state)
		})
	}

	return &GeminiRewriter{
		client:         client,
		config:         cfg,
		systemPrompt:   resolvePrompt(loaded.SystemPrompt, cfg.CustomPrompts.SystemPrompt, ""),
		circuitBreaker: breaker,
		modelBreaker:   NewModelCircuitBreaker("Optimize", cfg, logger),
		recorder:       o.recorder,
		logger:         logger,
	}, nil
}

// PromptTemplate returns the optimize prompt template in effect.
func (g *GeminiRewriter) PromptTemplate() string {
	return OptimizePromptTemplate(g.config)
}

// OptimizePromptTemplate resolves the optimize prompt template: a loaded
// prompt file, then configuration, then the built-in default.
func OptimizePromptTemplate(cfg *config.OperationAIConfig) string {
	loaded := config.GetPromptsForOperation("optimize")
	return resolvePrompt(loaded.OptimizeResume, cfg.CustomPrompts.OptimizeResume, DefaultOptimizeResumePrompt)
}

// Rewrite implements Rewriter.
func (g *GeminiRewriter) Rewrite(ctx context.Context, prompt string) (string, error) {
	ctx, span := otel.Tracer("aligncv.ai.gemini").Start(ctx, "gemini.rewrite")
	defer span.End()

	span.SetAttributes(
		attribute.String("ai.provider", "gemini"),
		attribute.String("ai.model", g.config.Model),
		attribute.Int("input.prompt_length", len(prompt)),
	)

	if g.config.Timeout != nil && *g.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, *g.config.Timeout)
		defer cancel()
	}

	start := time.Now()
	result, err := g.circuitBreaker.Execute(func() (*genai.GenerateContentResponse, error) {
		return g.client.Models.GenerateContent(ctx, g.config.Model, genai.Text(prompt), g.generateConfig())
	})

	var text string
	if err == nil {
		text = result.Text()
		if strings.TrimSpace(text) == "" {
			err = fmt.Errorf("model returned no text")
		}
	}

	usage := extractTokenUsage(result)
	if g.recorder != nil {
		g.recorder.RecordAIUsage(ctx, "optimize_resume", time.Since(start), usage, err)
	}

	if err != nil {
		span.RecordError(err)
		span.SetAttributes(attribute.Bool("success", false))
		g.logger.LogError(err, "Gemini rewrite failed", "model", g.config.Model)
		return "", g.classifyError(err)
	}

	if usage != nil {
		span.SetAttributes(
			attribute.Int64("ai.tokens.input", usage.InputTokens),
			attribute.Int64("ai.tokens.output", usage.OutputTokens),
			attribute.Int64("ai.tokens.total", usage.TotalTokens),
		)
	}
	span.SetAttributes(
		attribute.Bool("success", true),
		attribute.Int("output.length", len(text)),
	)
	return text, nil
}

func (g *GeminiRewriter) generateConfig() *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{CandidateCount: 1}
	if g.config.CandidateCount != nil && *g.config.CandidateCount > 0 {
		cfg.CandidateCount = *g.config.CandidateCount
	}
	if g.config.Temperature != nil {
		cfg.Temperature = g.config.Temperature
	}
	if g.config.TopP != nil && *g.config.TopP > 0 {
		cfg.TopP = g.config.TopP
	}
	if g.config.TopK != nil && *g.config.TopK > 0 {
		cfg.TopK = g.config.TopK
	}
	if g.systemPrompt != "" {
		cfg.SystemInstruction = genai.NewContentFromText(g.systemPrompt, genai.RoleUser)
	}
	return cfg
}

// classifyError maps a failed call onto the application error taxonomy.
func (g *GeminiRewriter) classifyError(err error) error {
	message := fmt.Sprintf("AI optimization failed: %v", err)

	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return aligncvErrors.NewAIError(aligncvErrors.ErrCodeCircuitOpen, message, err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return aligncvErrors.NewAIError(aligncvErrors.ErrCodeAITimeout, message, err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return aligncvErrors.NewAIError(aligncvErrors.ErrCodeAITimeout, message, err)
	}

	status := statusCode(err)
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return aligncvErrors.NewAIError(aligncvErrors.ErrCodeInvalidAPIKey, message, err).
			WithContext("status", status)
	case http.StatusTooManyRequests:
		return aligncvErrors.NewAIError(aligncvErrors.ErrCodeRateLimited, message, err).
			WithContext("status", status)
	case 0:
	default:
		return aligncvErrors.NewAIError(aligncvErrors.ErrCodeAIServiceFailed, message, err).
			WithContext("status", status)
	}

	return aligncvErrors.NewAIError(aligncvErrors.ErrCodeAIServiceFailed, message, err)
}

// statusCode extracts the HTTP status from an API error, or 0.
func statusCode(err error) int {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code
	}
	var genaiErr genai.APIError
	if errors.As(err, &genaiErr) {
		return genaiErr.Code
	}
	var genaiErrPtr *genai.APIError
	if errors.As(err, &genaiErrPtr) {
		return genaiErrPtr.Code
	}
	return 0
}

// GetModelInfo checks the readiness and availability of the configured model
func (g *GeminiRewriter) GetModelInfo(ctx context.Context) *ModelInfo {
	modelInfo := &ModelInfo{Name: g.config.Model}

	checkCtx, cancel := context.WithTimeout(ctx, modelCheckTimeout)
	defer cancel()

	model, err := g.modelBreaker.ExecuteModel(func() (*genai.Model, error) {
		return g.client.Models.Get(checkCtx, g.config.Model, &genai.GetModelConfig{})
	})
	if err != nil {
		modelInfo.Error = fmt.Sprintf("Failed to get model info: %v", err)
		g.logger.Warn("Model availability check failed",
			"model", g.config.Model,
			"error", err.Error())
		return modelInfo
	}

	modelInfo.Available = true
	modelInfo.DisplayName = model.DisplayName
	modelInfo.Version = model.Version
	return modelInfo
}

// GetCircuitBreakerStats returns circuit breaker statistics
func (g *GeminiRewriter) GetCircuitBreakerStats() map[string]any {
	return map[string]any{
		"ai_operations":    g.circuitBreaker.GetStats(),
		"model_operations": g.modelBreaker.GetModelStats(),
		"overall_healthy":  g.circuitBreaker.IsHealthy() && g.modelBreaker.IsModelHealthy(),
	}
}

// extractTokenUsage extracts token usage information from Gemini API response
func extractTokenUsage(result *genai.GenerateContentResponse) *TokenUsage {
	if result == nil || result.UsageMetadata == nil {
		return nil
	}

	usage := result.UsageMetadata
	return &TokenUsage{
		InputTokens:  int64(usage.PromptTokenCount),
		OutputTokens: int64(usage.CandidatesTokenCount),
		TotalTokens:  int64(usage.TotalTokenCount),
	}
}
