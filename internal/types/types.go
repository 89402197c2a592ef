package types

import (
	"aligncv/internal/match"
	"aligncv/internal/optimize"
	"aligncv/internal/privacy"
)

// ExtractedText echoes the text read from the uploaded files
type ExtractedText struct {
	ResumeText string `json:"resume_text"`
	JDText     string `json:"jd_text"`
}

// AnalyzeOutput represents the output of a match analysis
type AnalyzeOutput struct {
	Message string `json:"message"`
	match.Report
	ExtractedText *ExtractedText `json:"extracted_text_debug,omitempty"`
}

// OptimizeOutput represents the output of a resume optimization
type OptimizeOutput struct {
	Message            string `json:"message"`
	OptimizationStatus string `json:"optimization_status"`
	optimize.Result
	DownloadURL string `json:"download_url,omitempty"`
}

// MaskOutput represents the output of PII masking
type MaskOutput struct {
	Message    string          `json:"message"`
	MaskedText string          `json:"masked_text"`
	PIIMap     *privacy.PIIMap `json:"pii_map"`
	Entities   int             `json:"entities"`
	Degraded   bool            `json:"degraded"`
	Partial    bool            `json:"partial,omitempty"`
}

// NewAnalyzeOutput wraps a report. text may be nil.
func NewAnalyzeOutput(report *match.Report, text *ExtractedText) AnalyzeOutput {
	return AnalyzeOutput{
		Message:       "Files analyzed successfully!",
		Report:        *report,
		ExtractedText: text,
	}
}

// NewOptimizeOutput wraps an optimization result.
func NewOptimizeOutput(result *optimize.Result, downloadURL string) OptimizeOutput {
	return OptimizeOutput{
		Message:            "Resume optimized successfully.",
		OptimizationStatus: "success",
		Result:             *result,
		DownloadURL:        downloadURL,
	}
}

// NewMaskOutput wraps a mask result.
func NewMaskOutput(result privacy.MaskResult) MaskOutput {
	return MaskOutput{
		Message:    "PII masked successfully.",
		MaskedText: result.Text,
		PIIMap:     result.Map,
		Entities:   result.Map.Len(),
		Degraded:   result.Degraded,
		Partial:    result.Partial,
	}
}

// ErrorResponse is the JSON body of every API error
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}
