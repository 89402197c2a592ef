package server

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strconv"
	"strings"

	"aligncv/internal/common"
	aligncvErrors "aligncv/internal/errors"
	"aligncv/internal/extract"
	"aligncv/internal/optimize"
	"aligncv/internal/types"
	"aligncv/internal/utils"

	"go.opentelemetry.io/otel/attribute"
	oteltrace "go.opentelemetry.io/otel/trace"
)

const (
	multipartMemory = 8 << 20
	tracerName      = "aligncv.api"
)

// upload is a text extracted from one multipart file field
type upload struct {
	name string
	text string
}

// analyzeHandler scores an uploaded resume against an uploaded job description
func (s *Server) analyzeHandler(w http.ResponseWriter, r *http.Request) {
	ctx, span := s.Observability.Tracer(tracerName).Start(r.Context(), "api.analyze")
	defer span.End()

	resume, jd, err := s.readDocumentPair(r)
	if err != nil {
		s.fail(w, span, err, "analyze")
		return
	}
	minMatch, err := formFraction(r, "min_match_percentage", s.AppConfig.Matching.DefaultMinMatch)
	if err != nil {
		s.fail(w, span, err, "analyze")
		return
	}

	span.SetAttributes(
		attribute.Int("request.resume_length", len(resume.text)),
		attribute.Int("request.job_length", len(jd.text)),
		attribute.Float64("request.min_match", minMatch),
	)

	report := s.Components.Analyzer.Analyze(ctx, resume.text, jd.text, minMatch)

	span.SetAttributes(
		attribute.Float64("match.percentage", report.MatchPercentage),
		attribute.Int("match.warnings", len(report.Warnings)),
	)

	var extracted *types.ExtractedText
	if includeText, _ := strconv.ParseBool(r.FormValue("include_text")); includeText {
		extracted = &types.ExtractedText{ResumeText: resume.text, JDText: jd.text}
	}
	writeJSON(w, http.StatusOK, types.NewAnalyzeOutput(report, extracted))
}

// optimizeHandler rewrites an uploaded resume for an uploaded job description
func (s *Server) optimizeHandler(w http.ResponseWriter, r *http.Request) {
	ctx, span := s.Observability.Tracer(tracerName).Start(r.Context(), "api.optimize")
	defer span.End()

	resume, jd, err := s.readDocumentPair(r)
	if err != nil {
		s.fail(w, span, err, "optimize")
		return
	}
	required, err := formFraction(r, "required_match_for_optimization", s.AppConfig.Matching.DefaultRequiredMatch)
	if err != nil {
		s.fail(w, span, err, "optimize")
		return
	}

	span.SetAttributes(
		attribute.Int("request.resume_length", len(resume.text)),
		attribute.Int("request.job_length", len(jd.text)),
		attribute.Float64("request.required_match", required),
	)

	result, err := s.Components.Optimizer.Optimize(ctx, optimize.Request{
		Resume:        resume.text,
		JD:            jd.text,
		RequiredMatch: required,
		FileName:      resume.name,
	})
	if err != nil {
		s.Observability.RecordBusinessMetric(ctx, "resume_optimized", false)
		s.fail(w, span, err, "optimize")
		return
	}

	s.Observability.RecordBusinessMetric(ctx, "resume_optimized", true,
		attribute.Bool("masking_degraded", result.MaskingDegraded))
	span.SetAttributes(
		attribute.Bool("success", true),
		attribute.Float64("match.percentage", result.OriginalMatchPercentage),
		attribute.Int("privacy.masked_entities", result.MaskedEntities),
		attribute.Int("response.optimized_length", len(result.OptimizedResumeText)),
	)

	downloadURL := ""
	if result.OutputFile != "" {
		downloadURL = "/download/" + result.OutputFile
	}
	writeJSON(w, http.StatusOK, types.NewOptimizeOutput(result, downloadURL))
}

// maskHandler returns the masked text of an uploaded document and its PII map
func (s *Server) maskHandler(w http.ResponseWriter, r *http.Request) {
	ctx, span := s.Observability.Tracer(tracerName).Start(r.Context(), "api.mask")
	defer span.End()

	if err := s.parseMultipart(r); err != nil {
		s.fail(w, span, err, "mask")
		return
	}
	doc, err := s.readUpload(r, "file")
	if err != nil {
		s.fail(w, span, err, "mask")
		return
	}

	result := s.Components.Masker.Mask(ctx, doc.text)

	s.Observability.RecordBusinessMetric(ctx, "document_masked", !result.Degraded)
	span.SetAttributes(
		attribute.Int("privacy.masked_entities", result.Map.Len()),
		attribute.Bool("privacy.degraded", result.Degraded),
	)
	writeJSON(w, http.StatusOK, types.NewMaskOutput(result))
}

// downloadHandler serves a stored optimized resume
func (s *Server) downloadHandler(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("filename")
	if s.Components.Store == nil {
		writeAppError(w, aligncvErrors.NewNotFoundError(aligncvErrors.ErrCodeFileNotFound,
			"File downloads are disabled: no storage backend configured", nil))
		return
	}
	if name == "" || path.Base(name) != name || strings.Contains(name, `\`) {
		writeAppError(w, aligncvErrors.NewValidationError(aligncvErrors.ErrCodeInvalidRequest,
			fmt.Sprintf("Invalid file name: %s", name), nil))
		return
	}

	data, err := s.Components.Store.Load(r.Context(), name)
	if err != nil {
		if !aligncvErrors.IsType(err, aligncvErrors.ErrorTypeNotFound) {
			s.Logger.LogError(err, "Failed to load stored file", "file", name)
		}
		writeAppError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		s.Logger.LogError(err, "Failed to write download response", "file", name)
	}
}

// readDocumentPair extracts the resume_file and jd_file uploads
func (s *Server) readDocumentPair(r *http.Request) (upload, upload, error) {
	if err := s.parseMultipart(r); err != nil {
		return upload{}, upload{}, err
	}
	resume, err := s.readUpload(r, "resume_file")
	if err != nil {
		return upload{}, upload{}, err
	}
	jd, err := s.readUpload(r, "jd_file")
	if err != nil {
		return upload{}, upload{}, err
	}
	return resume, jd, nil
}

func (s *Server) parseMultipart(r *http.Request) error {
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			return aligncvErrors.NewValidationError(aligncvErrors.ErrCodeInvalidRequest,
				fmt.Sprintf("Request body too large (limit is %s)", utils.FormatFileSize(maxBytesErr.Limit)), err)
		}
		return aligncvErrors.NewValidationError(aligncvErrors.ErrCodeInvalidRequest,
			"Request must be multipart/form-data", err)
	}
	return nil
}

// readUpload reads one file field and extracts its text
func (s *Server) readUpload(r *http.Request, field string) (upload, error) {
	file, header, err := r.FormFile(field)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return upload{}, aligncvErrors.NewValidationError(aligncvErrors.ErrCodeInvalidRequest,
				fmt.Sprintf("%s is required", field), nil)
		}
		return upload{}, aligncvErrors.NewValidationError(aligncvErrors.ErrCodeInvalidRequest,
			fmt.Sprintf("Failed to read %s", field), err)
	}
	defer func() {
		if err := file.Close(); err != nil {
			s.Logger.LogError(err, "Failed to close uploaded file", "field", field)
		}
	}()

	if err := utils.CheckSize(header.Filename, header.Size, s.MaxFileSize); err != nil {
		return upload{}, aligncvErrors.NewValidationError(aligncvErrors.ErrCodeInvalidRequest, err.Error(), nil)
	}

	data, err := io.ReadAll(file)
	if err != nil {
		return upload{}, aligncvErrors.NewIOError(aligncvErrors.ErrCodeFileNotReadable,
			fmt.Sprintf("Failed to read %s", header.Filename), err)
	}

	text, err := extract.Text(header.Filename, data)
	if err != nil {
		return upload{}, err
	}
	if strings.TrimSpace(text) == "" {
		return upload{}, aligncvErrors.NewValidationError(aligncvErrors.ErrCodeEmptyContent,
			fmt.Sprintf("No text could be extracted from %s", header.Filename), nil)
	}
	return upload{name: header.Filename, text: text}, nil
}

// formFraction reads an optional threshold in [0,1]
func formFraction(r *http.Request, field string, fallback float64) (float64, error) {
	raw := strings.TrimSpace(r.FormValue(field))
	if raw == "" {
		return fallback, nil
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, aligncvErrors.NewValidationError(aligncvErrors.ErrCodeInvalidRequest,
			fmt.Sprintf("%s must be a number, got %q", field, raw), err)
	}
	if err := common.ValidateFraction(field, value); err != nil {
		return 0, err
	}
	return value, nil
}

// fail records err on the span, logs server-side failures and writes the
// error response
func (s *Server) fail(w http.ResponseWriter, span oteltrace.Span, err error, operation string) {
	span.RecordError(err)
	errType := "internal"
	if appErr, ok := aligncvErrors.As(err); ok {
		errType = string(appErr.Type)
	}
	span.SetAttributes(attribute.String("error.type", errType))

	if status := aligncvErrors.HTTPStatus(err); status >= http.StatusInternalServerError {
		s.Logger.LogError(err, "Request failed", "operation", operation, "status", status)
	} else {
		s.Logger.Debug("Request rejected", "operation", operation, "status", status, "error", err.Error())
	}
	writeAppError(w, err)
}

func endpointAttr(r *http.Request) attribute.KeyValue {
	return attribute.String("endpoint", r.URL.Path)
}
