// Package optimize rewrites a resume for a job description through the AI
// service without sending PII to it.
package optimize

import (
	"context"
	"fmt"
	"sync/atomic"

	"aligncv/internal/ai"
	aligncvErrors "aligncv/internal/errors"
	"aligncv/internal/match"
	"aligncv/internal/privacy"
	"aligncv/internal/storage"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

// Request is one optimization. RequiredMatch is a fraction in [0,1].
type Request struct {
	Resume        string
	JD            string
	RequiredMatch float64
	FileName      string
}

// Result is the outcome of a successful optimization.
type Result struct {
	OriginalMatchPercentage float64  `json:"original_match_percentage"`
	OptimizedResumeText     string   `json:"optimized_resume_text"`
	MaskedEntities          int      `json:"masked_entities"`
	MaskingDegraded         bool     `json:"masking_degraded"`
	MissingPlaceholders     []string `json:"missing_placeholders"`
	OutputFile              string   `json:"output_file,omitempty"`
}

// Service runs the analyze, mask, rewrite, unmask and store steps.
type Service struct {
	analyzer         *match.Analyzer
	masker           *privacy.Masker
	rewriter         ai.Rewriter
	template         atomic.Pointer[string]
	store            storage.Store
	requireDetection bool
	logger           *aligncvErrors.Logger
}

type Option func(*Service)

// WithStore saves every optimized resume to store.
func WithStore(store storage.Store) Option {
	return func(s *Service) { s.store = store }
}

// WithPromptTemplate overrides the prompt template. It must contain two %s
// verbs: the masked resume, then the job description.
func WithPromptTemplate(template string) Option {
	return func(s *Service) { s.template.Store(&template) }
}

// WithRequireDetection refuses to call the AI service when PII detection
// is unavailable.
func WithRequireDetection(require bool) Option {
	return func(s *Service) { s.requireDetection = require }
}

func WithLogger(logger *aligncvErrors.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewService creates a Service. rewriter may be nil when AI credentials are
// absent; Optimize then fails with a configuration error.
func NewService(analyzer *match.Analyzer, masker *privacy.Masker, rewriter ai.Rewriter, opts ...Option) *Service {
	s := &Service{
		analyzer: analyzer,
		masker:   masker,
		rewriter: rewriter,
		logger:   aligncvErrors.NewNopLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetPromptTemplate replaces the prompt template for subsequent calls.
func (s *Service) SetPromptTemplate(template string) {
	s.template.Store(&template)
}

func (s *Service) promptTemplate() string {
	if t := s.template.Load(); t != nil {
		return *t
	}
	return ""
}

// Available reports whether a rewriter is configured.
func (s *Service) Available() bool {
	return s.rewriter != nil
}

// Optimize gates on the unmasked match percentage, then rewrites the masked
// resume and restores the original PII values in the output.
func (s *Service) Optimize(ctx context.Context, req Request) (*Result, error) {
	ctx, span := otel.Tracer("aligncv.optimize").Start(ctx, "optimize.run")
	defer span.End()

	if s.rewriter == nil {
		return nil, aligncvErrors.NewConfigError(aligncvErrors.ErrCodeMissingAPIKey,
			"AI optimization service is not configured (API Key missing).", nil)
	}

	report := s.analyzer.Analyze(ctx, req.Resume, req.JD, 0)
	span.SetAttributes(attribute.Float64("match.percentage", report.MatchPercentage))

	required := req.RequiredMatch * 100
	if report.MatchPercentage < required {
		return nil, aligncvErrors.NewPreconditionError(aligncvErrors.ErrCodeMatchBelowThreshold,
			fmt.Sprintf("Original match percentage (%.2f%%) is below the required %.2f%% for optimization. Please improve your resume first.",
				report.MatchPercentage, required), nil).
			WithContext("match_percentage", report.MatchPercentage)
	}

	masked := s.masker.Mask(ctx, req.Resume)
	if masked.Degraded {
		if s.requireDetection {
			return nil, aligncvErrors.NewConfigError(aligncvErrors.ErrCodeDetectionFailed,
				"PII detection is unavailable; refusing to send the resume to the AI service.", masked.Reason)
		}
		s.logger.Warn("Sending resume to AI service without PII masking",
			"file", req.FileName,
			"reason", fmt.Sprint(masked.Reason))
	} else if masked.Partial {
		if s.requireDetection {
			return nil, aligncvErrors.NewConfigError(aligncvErrors.ErrCodeDetectionFailed,
				"PII detection is only partially available; refusing to send the resume to the AI service.", masked.Reason)
		}
		s.logger.Warn("Sending resume to AI service with partial PII masking",
			"file", req.FileName,
			"reason", fmt.Sprint(masked.Reason))
	}
	s.logger.Info("Calling AI service with masked resume",
		"file", req.FileName,
		"masked_entities", masked.Map.Len())

	prompt := ai.BuildOptimizationPrompt(s.promptTemplate(), masked.Text, req.JD)
	rewritten, err := s.rewriter.Rewrite(ctx, prompt)
	if err != nil {
		span.RecordError(err)
		if _, ok := aligncvErrors.As(err); ok {
			return nil, err
		}
		return nil, aligncvErrors.NewAIError(aligncvErrors.ErrCodeAIServiceFailed,
			fmt.Sprintf("AI optimization failed: %v", err), err)
	}

	missing := privacy.MissingPlaceholders(rewritten, masked.Map)
	if len(missing) > 0 {
		s.logger.Warn("AI output dropped PII placeholders", "missing", missing)
	}

	result := &Result{
		OriginalMatchPercentage: report.MatchPercentage,
		OptimizedResumeText:     privacy.Unmask(rewritten, masked.Map),
		MaskedEntities:          masked.Map.Len(),
		MaskingDegraded:         masked.Degraded || masked.Partial,
		MissingPlaceholders:     missing,
	}

	if s.store != nil {
		name := storage.OptimizedResumeName()
		if err := s.store.Save(ctx, name, []byte(result.OptimizedResumeText), "text/plain; charset=utf-8"); err != nil {
			return nil, err
		}
		result.OutputFile = name
	}

	span.SetAttributes(
		attribute.Int("privacy.entities", result.MaskedEntities),
		attribute.Int("privacy.missing_placeholders", len(missing)),
	)
	return result, nil
}
