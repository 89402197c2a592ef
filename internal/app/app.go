// Package app assembles the analysis and optimization components from
// configuration. The CLI, the HTTP server and the worker share it.
package app

import (
	"context"

	"aligncv/internal/ai"
	"aligncv/internal/config"
	"aligncv/internal/errors"
	"aligncv/internal/match"
	"aligncv/internal/optimize"
	"aligncv/internal/privacy"
	"aligncv/internal/similarity"
	"aligncv/internal/storage"
)

// Recorder receives the metrics of every component.
type Recorder interface {
	match.Recorder
	privacy.Recorder
	ai.UsageRecorder
	ai.BreakerStateRecorder
}

// Components are built once per process and are safe for concurrent use.
type Components struct {
	Analyzer  *match.Analyzer
	Masker    *privacy.Masker
	Rewriter  *ai.GeminiRewriter // nil without AI credentials
	Optimizer *optimize.Service
	Store     storage.Store // nil when storage.backend is none
}

// Option adjusts how components are built.
type Option func(*options)

type options struct {
	recorder   Recorder
	semantic   *similarity.Semantic
	rewriterOp []ai.RewriterOption
}

// WithRecorder attaches metric recording to every component.
func WithRecorder(r Recorder) Option {
	return func(o *options) { o.recorder = r }
}

// WithSemantic skips loading the configured embedding backend.
func WithSemantic(s *similarity.Semantic) Option {
	return func(o *options) { o.semantic = s }
}

// WithRewriterOptions passes options through to the AI rewriter.
func WithRewriterOptions(opts ...ai.RewriterOption) Option {
	return func(o *options) { o.rewriterOp = append(o.rewriterOp, opts...) }
}

// Build creates the components described by cfg. A missing AI key leaves
// Rewriter nil; every other failure is returned.
func Build(ctx context.Context, cfg *config.Config, logger *errors.Logger, opts ...Option) (*Components, error) {
	if logger == nil {
		logger = errors.NewNopLogger()
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	semantic := o.semantic
	if semantic == nil {
		semantic = similarity.Load(ctx, cfg.Similarity, logger)
	}

	analyzerOpts := []match.Option{
		match.WithExperienceTolerance(cfg.Matching.ExperienceTolerance),
		match.WithRoleMismatchThreshold(cfg.Matching.RoleMismatchThreshold),
		match.WithVocabulary(VocabularyFromConfig(cfg.Matching)),
		match.WithLogger(logger),
	}
	maskerOpts := []privacy.MaskerOption{
		privacy.WithLanguage(cfg.Privacy.Language),
		privacy.WithMaskLogger(logger),
	}
	if o.recorder != nil {
		analyzerOpts = append(analyzerOpts, match.WithRecorder(o.recorder))
		maskerOpts = append(maskerOpts, privacy.WithMaskRecorder(o.recorder))
		o.rewriterOp = append(o.rewriterOp, ai.WithUsageRecorder(o.recorder))
	}
	analyzer := match.NewAnalyzer(semantic, analyzerOpts...)

	detector, err := privacy.NewDetector(cfg.Privacy)
	if err != nil {
		return nil, errors.NewConfigError(errors.ErrCodeInvalidConfig, "Failed to create PII detector", err)
	}
	for _, entity := range []string{"PERSON", "LOCATION"} {
		if !privacy.Covers(detector, entity) {
			logger.Warn("PII detector cannot find this entity type, it reaches the AI service unmasked",
				"detector", cfg.Privacy.Detector,
				"entity", entity)
		}
	}
	masker := privacy.NewMasker(detector, maskerOpts...)

	var gemini *ai.GeminiRewriter
	var rewriter ai.Rewriter
	if cfg.HasAICredentials() {
		opCfg := cfg.GetOptimizeConfig()
		gemini, err = ai.NewRewriter(&opCfg, logger, o.rewriterOp...)
		if err != nil {
			return nil, err
		}
		rewriter = gemini
	} else {
		logger.Warn("No AI API key configured, optimization is disabled")
	}

	store, err := storage.New(ctx, cfg.Storage)
	if err != nil {
		return nil, err
	}

	optimizerOpts := []optimize.Option{
		optimize.WithStore(store),
		optimize.WithRequireDetection(cfg.Privacy.RequireDetection),
		optimize.WithLogger(logger),
	}
	if gemini != nil {
		optimizerOpts = append(optimizerOpts, optimize.WithPromptTemplate(gemini.PromptTemplate()))
	}

	return &Components{
		Analyzer:  analyzer,
		Masker:    masker,
		Rewriter:  gemini,
		Optimizer: optimize.NewService(analyzer, masker, rewriter, optimizerOpts...),
		Store:     store,
	}, nil
}

// VocabularyFromConfig builds the match vocabulary from the matching section.
func VocabularyFromConfig(cfg config.MatchingConfig) *match.Vocabulary {
	return match.NewVocabulary(cfg.RoleKeywords, cfg.SuggestionBlocklist, cfg.SuggestionMinWeight, cfg.SuggestionCount)
}
