package text

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name            string
		input           string
		removeStopwords bool
		want            []string
	}{
		{"empty", "", true, []string{}},
		{"punctuation becomes space", "Go-lang, C++ & K8s!", false, []string{"go", "lang", "k8s"}},
		{"single characters dropped", "a b cd e", false, []string{"cd"}},
		{"stopwords kept", "The engineer and the team", false, []string{"the", "engineer", "and", "the", "team"}},
		{"stopwords removed", "The engineer and the team", true, []string{"engineer", "team"}},
		{"non ascii stripped", "Café résumé", false, []string{"caf", "sum"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.input, tt.removeStopwords))
		})
	}
}

func TestNGramSet(t *testing.T) {
	set := NGramSet([]string{"java", "developer", "spring"})
	for _, term := range []string{"java", "developer", "spring", "java developer", "developer spring"} {
		assert.Contains(t, set, term)
	}
	assert.Len(t, set, 5)
	assert.Nil(t, Bigrams([]string{"solo"}))
}

func TestVectorizerTerms(t *testing.T) {
	// "go", "with" and "the" are vectorizer stop words
	terms := Vectorizer{}.Terms("Senior Go developer with the Kubernetes skills")
	assert.Equal(t, []string{
		"senior", "developer", "kubernetes", "skills",
		"senior developer", "developer kubernetes", "kubernetes skills",
	}, terms)
}

func TestFitTransformSingleDocument(t *testing.T) {
	m := Vectorizer{}.FitTransform([]string{"java java rust"})
	require.Equal(t, []string{"java", "java java", "java rust", "rust"}, m.Features)

	// one document: idf is 1, so weights are counts over the l2 norm
	norm := math.Sqrt(4 + 1 + 1 + 1)
	want := []float64{2 / norm, 1 / norm, 1 / norm, 1 / norm}
	for i := range want {
		assert.InDelta(t, want[i], m.Rows[0][i], 1e-9)
	}
}

func TestFitTransformSmoothIDF(t *testing.T) {
	m := Vectorizer{MinN: 1, MaxN: 1}.FitTransform([]string{"python golang", "golang"})
	require.Equal(t, []string{"golang", "python"}, m.Features)

	idfPython := math.Log(3.0/2.0) + 1
	norm := math.Sqrt(1 + idfPython*idfPython)
	assert.InDelta(t, 1/norm, m.Rows[0][0], 1e-9)
	assert.InDelta(t, idfPython/norm, m.Rows[0][1], 1e-9)
	assert.InDelta(t, 1.0, m.Rows[1][0], 1e-9)
}

func TestFitTransformOnlyStopwords(t *testing.T) {
	m := Vectorizer{}.FitTransform([]string{"the and of", "it is"})
	assert.Empty(t, m.Features)
	assert.Equal(t, 0.0, Cosine(m.Rows[0], m.Rows[1]))
}

func TestCosine(t *testing.T) {
	assert.InDelta(t, 1.0, Cosine([]float64{1, 2}, []float64{2, 4}), 1e-9)
	assert.InDelta(t, 0.0, Cosine([]float64{1, 0}, []float64{0, 1}), 1e-9)
	assert.Equal(t, 0.0, Cosine([]float64{0, 0}, []float64{1, 1}))
	assert.Equal(t, 0.0, Cosine([]float64{1}, []float64{1, 1}))
}

func BenchmarkNormalize(b *testing.B) {
	doc := "Senior Software Engineer with 8+ years of experience building distributed systems in Go, Kubernetes and AWS."
	for b.Loop() {
		Normalize(doc, true)
	}
}
