package formatters

import (
	"encoding/json"
	"fmt"
	"strings"

	"aligncv/internal/types"
)

// Formatter interface for different output formats
type Formatter interface {
	Format(data any) (string, error)
	SupportedType() string
}

// FormatterRegistry manages all available formatters
type FormatterRegistry struct {
	formatters map[string]map[string]Formatter // format -> type -> formatter
}

// NewFormatterRegistry creates a new formatter registry with default formatters
func NewFormatterRegistry() *FormatterRegistry {
	registry := &FormatterRegistry{
		formatters: make(map[string]map[string]Formatter),
	}

	registry.RegisterFormatter("json", "any", &JSONFormatter{})
	registry.RegisterFormatter("text", "AnalyzeOutput", &AnalyzeTextFormatter{})
	registry.RegisterFormatter("markdown", "AnalyzeOutput", &AnalyzeMarkdownFormatter{})
	registry.RegisterFormatter("text", "OptimizeOutput", &OptimizeTextFormatter{})
	registry.RegisterFormatter("markdown", "OptimizeOutput", &OptimizeMarkdownFormatter{})
	registry.RegisterFormatter("text", "MaskOutput", &MaskTextFormatter{})
	registry.RegisterFormatter("markdown", "MaskOutput", &MaskMarkdownFormatter{})

	return registry
}

// RegisterFormatter registers a new formatter for a specific format and data type
func (fr *FormatterRegistry) RegisterFormatter(format, dataType string, formatter Formatter) {
	if fr.formatters[format] == nil {
		fr.formatters[format] = make(map[string]Formatter)
	}
	fr.formatters[format][dataType] = formatter
}

// Format formats data using the appropriate formatter
func (fr *FormatterRegistry) Format(data any, format string) (string, error) {
	dataType := getDataType(data)

	if formatters, exists := fr.formatters[format]; exists {
		if formatter, exists := formatters[dataType]; exists {
			return formatter.Format(data)
		}
		if formatter, exists := formatters["any"]; exists {
			return formatter.Format(data)
		}
	}

	return "", fmt.Errorf("no formatter found for format '%s' and type '%s'", format, dataType)
}

// GetSupportedFormats returns all supported formats
func (fr *FormatterRegistry) GetSupportedFormats() []string {
	formats := make([]string, 0, len(fr.formatters))
	for format := range fr.formatters {
		formats = append(formats, format)
	}
	return formats
}

func getDataType(data any) string {
	switch data.(type) {
	case types.AnalyzeOutput:
		return "AnalyzeOutput"
	case types.OptimizeOutput:
		return "OptimizeOutput"
	case types.MaskOutput:
		return "MaskOutput"
	default:
		return "any"
	}
}

// JSONFormatter handles JSON formatting for any data type
type JSONFormatter struct{}

func (jf *JSONFormatter) Format(data any) (string, error) {
	jsonData, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return "", err
	}
	return string(jsonData), nil
}

func (jf *JSONFormatter) SupportedType() string {
	return "any"
}

func writeList(output *strings.Builder, items []string, bullet string) {
	for i, item := range items {
		if bullet == "" {
			fmt.Fprintf(output, "%d. %s\n", i+1, item)
		} else {
			fmt.Fprintf(output, "%s %s\n", bullet, item)
		}
	}
}

// AnalyzeTextFormatter handles text formatting for match reports
type AnalyzeTextFormatter struct{}

func (atf *AnalyzeTextFormatter) Format(data any) (string, error) {
	result, ok := data.(types.AnalyzeOutput)
	if !ok {
		return "", fmt.Errorf("expected AnalyzeOutput, got %T", data)
	}

	var output strings.Builder

	output.WriteString("=== MATCH ANALYSIS ===\n\n")
	fmt.Fprintf(&output, "Match: %.2f%%\n", result.MatchPercentage)
	fmt.Fprintf(&output, "Lexical similarity: %.4f\n", result.LexicalSimilarity)
	fmt.Fprintf(&output, "Experience: resume %d years, job %d years\n", result.ResumeExperienceYears, result.JobExperienceYears)
	fmt.Fprintf(&output, "Resume roles: %s\n", strings.Join(result.ResumeRoles, ", "))
	fmt.Fprintf(&output, "Job roles: %s\n\n", strings.Join(result.JobRoles, ", "))

	if len(result.Warnings) > 0 {
		output.WriteString("=== WARNINGS ===\n")
		writeList(&output, result.Warnings, "-")
		output.WriteString("\n")
	} else {
		output.WriteString("No warnings.\n\n")
	}

	if len(result.Suggestions) > 0 {
		output.WriteString("=== SUGGESTED KEYWORDS ===\n")
		writeList(&output, result.Suggestions, "-")
	}

	return output.String(), nil
}

func (atf *AnalyzeTextFormatter) SupportedType() string {
	return "AnalyzeOutput"
}

// AnalyzeMarkdownFormatter handles markdown formatting for match reports
type AnalyzeMarkdownFormatter struct{}

func (amf *AnalyzeMarkdownFormatter) Format(data any) (string, error) {
	result, ok := data.(types.AnalyzeOutput)
	if !ok {
		return "", fmt.Errorf("expected AnalyzeOutput, got %T", data)
	}

	var output strings.Builder

	output.WriteString("# Match Analysis\n\n")
	fmt.Fprintf(&output, "**Match:** %.2f%%\n\n", result.MatchPercentage)
	output.WriteString("| Signal | Resume | Job |\n|---|---|---|\n")
	fmt.Fprintf(&output, "| Experience (years) | %d | %d |\n", result.ResumeExperienceYears, result.JobExperienceYears)
	fmt.Fprintf(&output, "| Roles | %s | %s |\n\n", strings.Join(result.ResumeRoles, ", "), strings.Join(result.JobRoles, ", "))

	if len(result.Warnings) > 0 {
		output.WriteString("## Warnings\n\n")
		writeList(&output, result.Warnings, "-")
		output.WriteString("\n")
	}

	if len(result.Suggestions) > 0 {
		output.WriteString("## Suggested Keywords\n\n")
		for _, s := range result.Suggestions {
			fmt.Fprintf(&output, "- `%s`\n", s)
		}
	}

	return output.String(), nil
}

func (amf *AnalyzeMarkdownFormatter) SupportedType() string {
	return "AnalyzeOutput"
}

// OptimizeTextFormatter handles text formatting for optimized resumes
type OptimizeTextFormatter struct{}

func (otf *OptimizeTextFormatter) Format(data any) (string, error) {
	result, ok := data.(types.OptimizeOutput)
	if !ok {
		return "", fmt.Errorf("expected OptimizeOutput, got %T", data)
	}

	var output strings.Builder

	output.WriteString("=== OPTIMIZED RESUME ===\n\n")
	output.WriteString(result.OptimizedResumeText)
	output.WriteString("\n\n")

	output.WriteString("=== DETAILS ===\n")
	fmt.Fprintf(&output, "Original match: %.2f%%\n", result.OriginalMatchPercentage)
	fmt.Fprintf(&output, "Masked entities: %d\n", result.MaskedEntities)
	if result.MaskingDegraded {
		output.WriteString("Warning: PII detection was unavailable, the resume was sent unmasked.\n")
	}
	if len(result.MissingPlaceholders) > 0 {
		fmt.Fprintf(&output, "Placeholders dropped by the model: %s\n", strings.Join(result.MissingPlaceholders, ", "))
	}
	if result.OutputFile != "" {
		fmt.Fprintf(&output, "Saved as: %s\n", result.OutputFile)
	}

	return output.String(), nil
}

func (otf *OptimizeTextFormatter) SupportedType() string {
	return "OptimizeOutput"
}

// OptimizeMarkdownFormatter handles markdown formatting for optimized resumes
type OptimizeMarkdownFormatter struct{}

func (omf *OptimizeMarkdownFormatter) Format(data any) (string, error) {
	result, ok := data.(types.OptimizeOutput)
	if !ok {
		return "", fmt.Errorf("expected OptimizeOutput, got %T", data)
	}

	var output strings.Builder

	output.WriteString("# Optimized Resume\n\n")
	output.WriteString(result.OptimizedResumeText)
	output.WriteString("\n\n")

	output.WriteString("## Details\n\n")
	fmt.Fprintf(&output, "- **Original match:** %.2f%%\n", result.OriginalMatchPercentage)
	fmt.Fprintf(&output, "- **Masked entities:** %d\n", result.MaskedEntities)
	if result.MaskingDegraded {
		output.WriteString("- **Warning:** PII detection was unavailable, the resume was sent unmasked.\n")
	}
	if len(result.MissingPlaceholders) > 0 {
		fmt.Fprintf(&output, "- **Placeholders dropped by the model:** %s\n", strings.Join(result.MissingPlaceholders, ", "))
	}
	if result.OutputFile != "" {
		fmt.Fprintf(&output, "- **Saved as:** `%s`\n", result.OutputFile)
	}

	return output.String(), nil
}

func (omf *OptimizeMarkdownFormatter) SupportedType() string {
	return "OptimizeOutput"
}

// MaskTextFormatter handles text formatting for masked documents
type MaskTextFormatter struct{}

func (mtf *MaskTextFormatter) Format(data any) (string, error) {
	result, ok := data.(types.MaskOutput)
	if !ok {
		return "", fmt.Errorf("expected MaskOutput, got %T", data)
	}

	var output strings.Builder

	output.WriteString("=== MASKED TEXT ===\n\n")
	output.WriteString(result.MaskedText)
	output.WriteString("\n\n")

	if result.Degraded {
		output.WriteString("Warning: PII detection was unavailable, nothing was masked.\n")
		return output.String(), nil
	}

	if result.Partial {
		output.WriteString("Warning: some PII detectors were unavailable, masking may be incomplete.\n\n")
	}

	fmt.Fprintf(&output, "=== PII MAP (%d) ===\n", result.Entities)
	for _, e := range result.PIIMap.Entries() {
		fmt.Fprintf(&output, "%s = %s\n", e.Placeholder, e.Value)
	}

	return output.String(), nil
}

func (mtf *MaskTextFormatter) SupportedType() string {
	return "MaskOutput"
}

// MaskMarkdownFormatter handles markdown formatting for masked documents
type MaskMarkdownFormatter struct{}

func (mmf *MaskMarkdownFormatter) Format(data any) (string, error) {
	result, ok := data.(types.MaskOutput)
	if !ok {
		return "", fmt.Errorf("expected MaskOutput, got %T", data)
	}

	var output strings.Builder

	output.WriteString("# Masked Text\n\n```\n")
	output.WriteString(result.MaskedText)
	output.WriteString("\n```\n\n")

	if result.Degraded {
		output.WriteString("> PII detection was unavailable, nothing was masked.\n")
		return output.String(), nil
	}

	if result.Partial {
		output.WriteString("> Some PII detectors were unavailable, masking may be incomplete.\n\n")
	}

	output.WriteString("## PII Map\n\n| Placeholder | Value |\n|---|---|\n")
	for _, e := range result.PIIMap.Entries() {
		fmt.Fprintf(&output, "| `%s` | %s |\n", e.Placeholder, e.Value)
	}

	return output.String(), nil
}

func (mmf *MaskMarkdownFormatter) SupportedType() string {
	return "MaskOutput"
}

// Global formatter registry
var GlobalRegistry = NewFormatterRegistry()
