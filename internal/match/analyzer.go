// Package match scores a resume against a job description and explains the
// result with warnings and keyword suggestions.
package match

import (
	"context"
	"fmt"
	"math"
	"strings"
	"sync/atomic"

	aligncvErrors "aligncv/internal/errors"
	"aligncv/internal/signals"
	"aligncv/internal/similarity"
	"aligncv/internal/text"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

const (
	DefaultExperienceTolerance   = 5
	DefaultRoleMismatchThreshold = 2
	DefaultMinMatch              = 0.40
)

// Report is the outcome of one analysis. Warnings and Suggestions are never nil.
type Report struct {
	MatchPercentage       float64  `json:"match_percentage"`
	Warnings              []string `json:"warnings"`
	Suggestions           []string `json:"suggestions"`
	SemanticSimilarity    float64  `json:"semantic_similarity"`
	LexicalSimilarity     float64  `json:"lexical_similarity"`
	ResumeExperienceYears int      `json:"resume_experience_years"`
	JobExperienceYears    int      `json:"job_experience_years"`
	ResumeRoles           []string `json:"resume_roles"`
	JobRoles              []string `json:"job_roles"`
}

// Recorder receives the score of every analysis.
type Recorder interface {
	RecordMatch(ctx context.Context, matchPercentage float64, warnings int)
}

// Analyzer is safe for concurrent use.
type Analyzer struct {
	semantic              *similarity.Semantic
	vocabulary            atomic.Pointer[Vocabulary]
	experienceTolerance   int
	roleMismatchThreshold int
	recorder              Recorder
	logger                *aligncvErrors.Logger
}

// Option configures an Analyzer.
type Option func(*Analyzer)

func WithExperienceTolerance(years int) Option {
	return func(a *Analyzer) { a.experienceTolerance = years }
}

func WithRoleMismatchThreshold(n int) Option {
	return func(a *Analyzer) { a.roleMismatchThreshold = n }
}

func WithVocabulary(v *Vocabulary) Option {
	return func(a *Analyzer) {
		if v != nil {
			a.vocabulary.Store(v)
		}
	}
}

func WithRecorder(r Recorder) Option {
	return func(a *Analyzer) { a.recorder = r }
}

func WithLogger(logger *aligncvErrors.Logger) Option {
	return func(a *Analyzer) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// NewAnalyzer creates an Analyzer. semantic may be nil, in which case the
// match percentage is always 0.
func NewAnalyzer(semantic *similarity.Semantic, opts ...Option) *Analyzer {
	a := &Analyzer{
		semantic:              semantic,
		experienceTolerance:   DefaultExperienceTolerance,
		roleMismatchThreshold: DefaultRoleMismatchThreshold,
		logger:                aligncvErrors.NewNopLogger(),
	}
	a.vocabulary.Store(DefaultVocabulary())
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// SetVocabulary replaces the role vocabulary and suggestion blocklist for
// subsequent analyses.
func (a *Analyzer) SetVocabulary(v *Vocabulary) {
	if v == nil {
		return
	}
	a.vocabulary.Store(v)
	a.logger.Info("Match vocabulary updated", "roles", len(v.Roles), "blocklist", len(v.Blocklist))
}

// Vocabulary returns the vocabulary currently in use.
func (a *Analyzer) Vocabulary() *Vocabulary {
	return a.vocabulary.Load()
}

// SemanticAvailable reports whether semantic scoring is backed by a model.
func (a *Analyzer) SemanticAvailable() bool {
	return a.semantic.Available()
}

// Analyze scores resume against jd. minMatch is a fraction in [0,1]; a
// similarity below it adds a warning.
func (a *Analyzer) Analyze(ctx context.Context, resume, jd string, minMatch float64) *Report {
	ctx, span := otel.Tracer("aligncv.match").Start(ctx, "match.analyze")
	defer span.End()

	vocab := a.vocabulary.Load()
	warnings := make([]string, 0)

	similarityScore := a.semantic.Similarity(ctx, resume, jd)
	report := &Report{
		MatchPercentage:    math.Round(similarityScore*10000) / 100,
		SemanticSimilarity: similarityScore,
	}

	resumeFiltered := text.Normalize(resume, true)
	jdFiltered := text.Normalize(jd, true)
	report.LexicalSimilarity = similarity.Lexical(resumeFiltered, jdFiltered)

	// With either side blank there is nothing to compare: only the
	// threshold check runs.
	comparable := strings.TrimSpace(resume) != "" && strings.TrimSpace(jd) != ""

	report.ResumeExperienceYears = signals.ExperienceYears(resume)
	report.JobExperienceYears = signals.ExperienceYears(jd)
	if comparable {
		if w := a.experienceWarning(report.ResumeExperienceYears, report.JobExperienceYears); w != "" {
			warnings = append(warnings, w)
		}
	}

	report.ResumeRoles = signals.RoleKeywords(resume, vocab.Roles)
	report.JobRoles = signals.RoleKeywords(jd, vocab.Roles)
	if comparable && a.roleMismatch(report.ResumeRoles, report.JobRoles, resumeFiltered, jdFiltered) {
		warnings = append(warnings, fmt.Sprintf(
			"Potential role mismatch. Your resume mentions roles like %s, while the JD focuses on %s. ",
			strings.Join(report.ResumeRoles, ", "), strings.Join(report.JobRoles, ", ")))
	}

	if similarityScore < minMatch {
		warnings = append(warnings, fmt.Sprintf(
			"The overall match is below the %.1f%% threshold. Your resume might not be a good fit for this job description. ",
			minMatch*100))
	}

	report.Suggestions = make([]string, 0)
	if comparable {
		report.Suggestions = vocab.suggester.Suggest(resume, jd)
	}
	if len(report.Suggestions) > 0 {
		warnings = append(warnings, fmt.Sprintf(
			"Suggestions: Consider adding/emphasizing these keywords: %s.",
			strings.Join(report.Suggestions, ", ")))
	}
	report.Warnings = warnings

	span.SetAttributes(
		attribute.Float64("match.percentage", report.MatchPercentage),
		attribute.Float64("match.lexical", report.LexicalSimilarity),
		attribute.Int("match.warnings", len(warnings)),
		attribute.Bool("match.semantic_available", a.semantic.Available()),
	)
	if a.recorder != nil {
		a.recorder.RecordMatch(ctx, report.MatchPercentage, len(warnings))
	}
	a.logger.Debug("Match analysis completed",
		"match_percentage", report.MatchPercentage,
		"lexical_similarity", report.LexicalSimilarity,
		"warnings", len(warnings))

	return report
}

func (a *Analyzer) experienceWarning(resumeYears, jobYears int) string {
	switch {
	case resumeYears > 0 && jobYears > 0 && jobYears > resumeYears+a.experienceTolerance:
		return fmt.Sprintf("Job requires approx. %d years of experience, but resume indicates %d years. Significant experience gap detected.",
			jobYears, resumeYears)
	case resumeYears > 0 && jobYears > 0 && resumeYears > jobYears+a.experienceTolerance:
		return fmt.Sprintf("Your resume indicates %d years of experience, while the job requires approx. %d years. Consider tailoring to fit the advertised level.",
			resumeYears, jobYears)
	case jobYears > 0 && resumeYears == 0:
		return fmt.Sprintf("Job requires approx. %d years of experience, but no clear experience found in your resume.", jobYears)
	default:
		return ""
	}
}

// roleMismatch reports whether both sides name enough roles the other lacks
// and neither side's filtered text mentions any role of the other.
func (a *Analyzer) roleMismatch(resumeRoles, jobRoles, resumeTokens, jdTokens []string) bool {
	if len(resumeRoles) == 0 || len(jobRoles) == 0 {
		return false
	}
	missingInResume := difference(jobRoles, resumeRoles)
	missingInJD := difference(resumeRoles, jobRoles)
	if missingInResume < a.roleMismatchThreshold || missingInJD < a.roleMismatchThreshold {
		return false
	}

	resumeText := strings.Join(resumeTokens, " ")
	jdText := strings.Join(jdTokens, " ")
	return !containsAny(resumeText, jobRoles) && !containsAny(jdText, resumeRoles)
}

func difference(a, b []string) int {
	in := make(map[string]struct{}, len(b))
	for _, s := range b {
		in[s] = struct{}{}
	}
	n := 0
	for _, s := range a {
		if _, ok := in[s]; !ok {
			n++
		}
	}
	return n
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
