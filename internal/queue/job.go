// Package queue runs asynchronous analysis jobs delivered over RabbitMQ.
package queue

import (
	"time"

	"aligncv/internal/match"
	"aligncv/internal/optimize"
)

// Job statuses published on the updates exchange.
const (
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// Job asks for one resume to be analyzed, and optionally optimized, against
// a job description. Both keys name objects in the configured store.
type Job struct {
	ID            string   `json:"id"`
	ResumeKey     string   `json:"resume_key"`
	JDKey         string   `json:"jd_key"`
	MinMatch      *float64 `json:"min_match,omitempty"`
	Optimize      bool     `json:"optimize"`
	RequiredMatch *float64 `json:"required_match,omitempty"`
}

// Status is a progress update for one job.
type Status struct {
	JobID     string    `json:"job_id"`
	Status    string    `json:"status"`
	Message   string    `json:"message"`
	ResultKey string    `json:"result_key,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Result is written to storage when a job completes.
type Result struct {
	JobID             string           `json:"job_id"`
	Analysis          *match.Report    `json:"analysis"`
	Optimization      *optimize.Result `json:"optimization,omitempty"`
	OptimizationError string           `json:"optimization_error,omitempty"`
	CompletedAt       time.Time        `json:"completed_at"`
}

func routingKey(jobID string) string {
	return "job." + jobID
}
