package server

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"aligncv/internal/errors"
	"aligncv/internal/types"
)

const defaultHealthCheckTimeout = 10 * time.Second

// getHealthCheckTimeout returns the configured health check timeout
func (s *Server) getHealthCheckTimeout() time.Duration {
	if s.AppConfig != nil && s.AppConfig.Observability.HealthCheck.Timeout > 0 {
		return s.AppConfig.Observability.HealthCheck.Timeout
	}
	return defaultHealthCheckTimeout
}

// rootHandler greets API clients
func (s *Server) rootHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "Welcome to the aligncv resume matching API",
		"version": s.Version,
	})
}

// healthHandler reports component availability. Only an unreachable AI model
// marks the service degraded; similarity and detection degrade per request.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	response := map[string]any{
		"status":  "healthy",
		"service": "aligncv",
		"version": s.Version,
	}

	components := map[string]any{
		"semantic_similarity": map[string]any{
			"available": s.Components.Analyzer.SemanticAvailable(),
		},
		"storage": map[string]any{
			"enabled": s.Components.Store != nil,
		},
	}

	overallHealthy := true
	if rewriter := s.Components.Rewriter; rewriter != nil {
		ctx, cancel := context.WithTimeout(r.Context(), s.getHealthCheckTimeout())
		defer cancel()

		modelInfo := rewriter.GetModelInfo(ctx)
		components["ai_model"] = modelInfo
		response["circuit_breakers"] = rewriter.GetCircuitBreakerStats()
		overallHealthy = modelInfo.Available
	} else {
		components["ai_model"] = map[string]any{
			"available": false,
			"error":     "AI API key not configured, optimization disabled",
		}
	}
	response["components"] = components

	status := http.StatusOK
	if !overallHealthy {
		response["status"] = "degraded"
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, response)
}

// statsHandler provides server statistics including rate limiting info
func (s *Server) statsHandler(w http.ResponseWriter, r *http.Request) {
	response := map[string]any{
		"service": "aligncv",
		"version": s.Version,
		"server": map[string]any{
			"max_request_size_bytes": s.MaxRequestSize,
			"max_file_size_bytes":    s.MaxFileSize,
			"api_keys_configured":    s.apiKeyCount(),
			"cors_origins":           s.CORSOrigins,
		},
		"matching": map[string]any{
			"semantic_available": s.Components.Analyzer.SemanticAvailable(),
			"role_keywords":      len(s.Components.Analyzer.Vocabulary().Roles),
			"blocklist_terms":    len(s.Components.Analyzer.Vocabulary().Blocklist),
			"optimization":       s.Components.Optimizer.Available(),
		},
	}

	if s.RateLimiter != nil {
		response["rate_limiting"] = s.RateLimiter.GetStats()
	} else {
		response["rate_limiting"] = map[string]any{
			"enabled": false,
		}
	}

	if s.vocabularyWatcher != nil {
		response["vocabulary_watcher"] = map[string]any{
			"running": s.vocabularyWatcher.IsRunning(),
			"files":   s.vocabularyWatcher.GetWatchedFiles(),
		}
	}
	if s.promptWatcher != nil {
		response["prompt_watcher"] = map[string]any{
			"running": s.promptWatcher.IsRunning(),
			"files":   s.promptWatcher.GetWatchedFiles(),
		}
	}
	if s.vaultWatcher != nil {
		response["vault_watcher"] = s.vaultWatcher.Status()
	}

	writeJSON(w, http.StatusOK, response)
}

// writeJSON writes v as the JSON response body
func writeJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Failed to encode response: %v", err)
	}
}

// writeAppError writes err as a standardized error response. The status
// follows the error type; errors outside the taxonomy are 500s.
func writeAppError(w http.ResponseWriter, err error) {
	status := errors.HTTPStatus(err)
	response := types.ErrorResponse{
		Error:   http.StatusText(status),
		Message: err.Error(),
	}
	if appErr, ok := errors.As(err); ok {
		response.Message = appErr.Message
		response.Code = appErr.Code
	}
	writeJSON(w, status, response)
}
