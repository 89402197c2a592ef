package match

import (
	"context"
	"strings"
	"sync"
	"testing"

	"aligncv/internal/keywords"
	"aligncv/internal/similarity"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fixedEmbedder maps the resume to (1,0) and everything else to (0.6,0.8),
// so any pair scores 0.6.
type fixedEmbedder struct{}

func (fixedEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		if i == 0 {
			out[i] = []float32{1, 0}
		} else {
			out[i] = []float32{0.6, 0.8}
		}
	}
	return out, nil
}

type recordingRecorder struct {
	mu     sync.Mutex
	scores []float64
}

func (r *recordingRecorder) RecordMatch(_ context.Context, pct float64, _ int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.scores = append(r.scores, pct)
}

func TestAnalyzeMatchPercentage(t *testing.T) {
	rec := &recordingRecorder{}
	a := NewAnalyzer(similarity.NewSemantic(fixedEmbedder{}, nil), WithRecorder(rec))

	report := a.Analyze(context.Background(), "Go developer", "Go developer wanted", DefaultMinMatch)
	assert.InDelta(t, 60.0, report.MatchPercentage, 1e-9)
	assert.InDelta(t, 0.6, report.SemanticSimilarity, 1e-6)
	assert.True(t, a.SemanticAvailable())
	for _, w := range report.Warnings {
		assert.NotContains(t, w, "below the")
	}
	assert.Equal(t, []float64{report.MatchPercentage}, rec.scores)
}

func TestAnalyzeExperienceWarnings(t *testing.T) {
	tests := []struct {
		name   string
		resume string
		jd     string
		want   string
	}{
		{
			name:   "job asks for much more",
			resume: "2 years of experience",
			jd:     "10 years of experience",
			want:   "Job requires approx. 10 years of experience, but resume indicates 2 years. Significant experience gap detected.",
		},
		{
			name:   "resume far above the job",
			resume: "12 years of experience",
			jd:     "3 years of experience",
			want:   "Your resume indicates 12 years of experience, while the job requires approx. 3 years. Consider tailoring to fit the advertised level.",
		},
		{
			name:   "no experience in resume",
			resume: "Go developer",
			jd:     "5 years of experience",
			want:   "Job requires approx. 5 years of experience, but no clear experience found in your resume.",
		},
		{name: "within tolerance", resume: "4 years of experience", jd: "8 years of experience"},
		{name: "tolerance boundary", resume: "3 years of experience", jd: "8 years of experience"},
		{name: "neither mentions years", resume: "Go developer", jd: "Go developer"},
		{name: "only resume mentions years", resume: "6 years of experience", jd: "Go developer"},
	}

	a := NewAnalyzer(nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			report := a.Analyze(context.Background(), tt.resume, tt.jd, 0)
			if tt.want == "" {
				for _, w := range report.Warnings {
					assert.False(t, isExperienceWarning(w), "unexpected warning %q", w)
				}
				return
			}
			require.NotEmpty(t, report.Warnings)
			assert.Equal(t, tt.want, report.Warnings[0])
		})
	}
}

func isExperienceWarning(w string) bool {
	return strings.HasPrefix(w, "Job requires") || strings.HasPrefix(w, "Your resume indicates")
}

func TestAnalyzeRoleMismatch(t *testing.T) {
	a := NewAnalyzer(nil)
	report := a.Analyze(context.Background(), "Data scientist and architect", "Embedded engineer, junior", 0)

	assert.Equal(t, []string{"architect", "data scientist"}, report.ResumeRoles)
	assert.Equal(t, []string{"embedded engineer", "engineer", "junior"}, report.JobRoles)
	require.NotEmpty(t, report.Warnings)
	assert.Equal(t,
		"Potential role mismatch. Your resume mentions roles like architect, data scientist, while the JD focuses on embedded engineer, engineer, junior. ",
		report.Warnings[0])
}

func TestAnalyzeNoRoleMismatch(t *testing.T) {
	tests := []struct {
		name      string
		resume    string
		jd        string
		threshold int
	}{
		{"shared roles", "Senior engineer", "Senior engineer, lead", DefaultRoleMismatchThreshold},
		{"resume without roles", "Loves hiking", "Embedded engineer, junior", DefaultRoleMismatchThreshold},
		{"threshold not reached", "Data scientist and architect", "Embedded engineer, junior", 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := NewAnalyzer(nil, WithRoleMismatchThreshold(tt.threshold))
			report := a.Analyze(context.Background(), tt.resume, tt.jd, 0)
			for _, w := range report.Warnings {
				assert.False(t, strings.HasPrefix(w, "Potential role mismatch"), "unexpected warning %q", w)
			}
		})
	}
}

func TestAnalyzeBelowThreshold(t *testing.T) {
	a := NewAnalyzer(nil)
	report := a.Analyze(context.Background(), "Go developer", "Go developer", 0.4)

	assert.Equal(t, 0.0, report.MatchPercentage)
	assert.Contains(t, report.Warnings,
		"The overall match is below the 40.0% threshold. Your resume might not be a good fit for this job description. ")
}

func TestAnalyzeSuggestionsAreAlsoWarnings(t *testing.T) {
	a := NewAnalyzer(nil)
	report := a.Analyze(context.Background(), "I know Terraform well",
		"Looking for Kubernetes and Terraform expertise. Kubernetes operators.", 0)

	require.NotEmpty(t, report.Suggestions)
	assert.Equal(t, "kubernetes", report.Suggestions[0])
	last := report.Warnings[len(report.Warnings)-1]
	assert.Equal(t, "Suggestions: Consider adding/emphasizing these keywords: "+strings.Join(report.Suggestions, ", ")+".", last)
}

func TestAnalyzeWarningOrder(t *testing.T) {
	a := NewAnalyzer(nil)
	report := a.Analyze(context.Background(),
		"Data scientist and architect with 1 year of experience",
		"Embedded engineer, junior, 9 years of experience with firmware", 0.5)

	require.Len(t, report.Warnings, 4)
	assert.True(t, strings.HasPrefix(report.Warnings[0], "Job requires approx. 9 years"))
	assert.True(t, strings.HasPrefix(report.Warnings[1], "Potential role mismatch"))
	assert.True(t, strings.HasPrefix(report.Warnings[2], "The overall match is below the 50.0%"))
	assert.True(t, strings.HasPrefix(report.Warnings[3], "Suggestions:"))
}

func TestAnalyzeEmptyInput(t *testing.T) {
	a := NewAnalyzer(similarity.NewSemantic(fixedEmbedder{}, nil))
	report := a.Analyze(context.Background(), "", "", 0)

	assert.Equal(t, 0.0, report.MatchPercentage)
	assert.NotNil(t, report.Warnings)
	assert.NotNil(t, report.Suggestions)
	assert.Empty(t, report.Warnings)
	assert.Empty(t, report.Suggestions)
}

func TestAnalyzeEmptyResume(t *testing.T) {
	a := NewAnalyzer(similarity.NewSemantic(fixedEmbedder{}, nil))
	jd := "Senior Java developer, 8 years of experience required with Kubernetes"

	for _, resume := range []string{"", "  \n\t"} {
		report := a.Analyze(context.Background(), resume, jd, 0.40)

		assert.Equal(t, 0.0, report.MatchPercentage)
		assert.Equal(t, 8, report.JobExperienceYears)
		assert.Equal(t, []string{
			"The overall match is below the 40.0% threshold. Your resume might not be a good fit for this job description. ",
		}, report.Warnings)
		assert.NotNil(t, report.Suggestions)
		assert.Empty(t, report.Suggestions)
	}
}

func TestSetVocabulary(t *testing.T) {
	a := NewAnalyzer(nil)
	resume := "Platform engineer and SRE"

	before := a.Analyze(context.Background(), resume, "", 0)
	assert.Equal(t, []string{"engineer"}, before.ResumeRoles)

	a.SetVocabulary(NewVocabulary([]string{"sre", "platform engineer"}, nil, keywords.DefaultMinWeight, keywords.DefaultTopN))
	after := a.Analyze(context.Background(), resume, "", 0)
	assert.Equal(t, []string{"platform engineer", "sre"}, after.ResumeRoles)
	assert.Equal(t, keywords.DefaultBlocklist, a.Vocabulary().Blocklist)

	a.SetVocabulary(nil)
	assert.Equal(t, []string{"sre", "platform engineer"}, a.Vocabulary().Roles)
}

func BenchmarkAnalyze(b *testing.B) {
	a := NewAnalyzer(nil)
	resume := "Senior Go developer with 7 years of experience building payment APIs on Kubernetes and Postgres."
	jd := "We are hiring a backend engineer with 5+ years of experience in Go, Kafka, gRPC and Kubernetes."
	ctx := context.Background()
	for b.Loop() {
		a.Analyze(ctx, resume, jd, DefaultMinMatch)
	}
}
