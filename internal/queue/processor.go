package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"aligncv/internal/errors"
	"aligncv/internal/extract"
	"aligncv/internal/match"
	"aligncv/internal/optimize"
	"aligncv/internal/storage"
)

// Processor executes jobs. It holds no per-job state and may be shared by
// all workers.
type Processor struct {
	store           storage.Store
	analyzer        *match.Analyzer
	optimizer       *optimize.Service
	defaultMin      float64
	defaultRequired float64
	logger          *errors.Logger
}

// NewProcessor creates a Processor. optimizer may be nil, in which case
// optimize requests are answered with an optimization error.
func NewProcessor(store storage.Store, analyzer *match.Analyzer, optimizer *optimize.Service, defaultMin, defaultRequired float64, logger *errors.Logger) *Processor {
	if logger == nil {
		logger = errors.NewNopLogger()
	}
	return &Processor{
		store:           store,
		analyzer:        analyzer,
		optimizer:       optimizer,
		defaultMin:      defaultMin,
		defaultRequired: defaultRequired,
		logger:          logger,
	}
}

// Process runs job and stores its result, returning the result object name.
// A rejected optimization is part of the result, not a job failure.
func (p *Processor) Process(ctx context.Context, job Job) (string, error) {
	if job.ID == "" || job.ResumeKey == "" || job.JDKey == "" {
		return "", errors.NewValidationError(errors.ErrCodeInvalidRequest,
			"job requires id, resume_key and jd_key", nil)
	}
	if p.store == nil {
		return "", errors.NewConfigError(errors.ErrCodeInvalidConfig,
			"the worker requires a storage backend", nil)
	}

	resume, err := p.loadText(ctx, job.ResumeKey)
	if err != nil {
		return "", err
	}
	jd, err := p.loadText(ctx, job.JDKey)
	if err != nil {
		return "", err
	}

	result := Result{
		JobID:    job.ID,
		Analysis: p.analyzer.Analyze(ctx, resume, jd, valueOr(job.MinMatch, p.defaultMin)),
	}

	if job.Optimize {
		if p.optimizer == nil {
			result.OptimizationError = "AI optimization service is not configured (API Key missing)."
		} else {
			optimized, err := p.optimizer.Optimize(ctx, optimize.Request{
				Resume:        resume,
				JD:            jd,
				RequiredMatch: valueOr(job.RequiredMatch, p.defaultRequired),
				FileName:      job.ResumeKey,
			})
			if err != nil {
				p.logger.LogError(err, "Job optimization failed", "job_id", job.ID)
				result.OptimizationError = message(err)
			}
			result.Optimization = optimized
		}
	}
	result.CompletedAt = time.Now().UTC()

	data, err := json.Marshal(result)
	if err != nil {
		return "", errors.NewInternalError("RESULT_ENCODE_FAILED", "Failed to encode job result", err)
	}
	key := storage.ResultName(job.ID)
	if err := p.store.Save(ctx, key, data, "application/json"); err != nil {
		return "", err
	}
	return key, nil
}

func (p *Processor) loadText(ctx context.Context, key string) (string, error) {
	data, err := p.store.Load(ctx, key)
	if err != nil {
		return "", fmt.Errorf("download %s: %w", key, err)
	}
	text, err := extract.Text(key, data)
	if err != nil {
		return "", fmt.Errorf("extract %s: %w", key, err)
	}
	if text == "" {
		return "", errors.NewValidationError(errors.ErrCodeEmptyContent,
			fmt.Sprintf("Could not read content from %s", key), nil)
	}
	return text, nil
}

func valueOr(v *float64, fallback float64) float64 {
	if v == nil {
		return fallback
	}
	return *v
}

// message returns the user facing message of err.
func message(err error) string {
	if appErr, ok := errors.As(err); ok {
		return appErr.Message
	}
	return err.Error()
}
