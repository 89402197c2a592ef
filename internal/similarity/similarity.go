// Package similarity scores how close two texts are, semantically through a
// sentence-embedding backend and lexically through TF-IDF.
package similarity

import (
	"context"
	"fmt"
	"math"
	"strings"

	aligncvErrors "aligncv/internal/errors"
	"aligncv/internal/text"
)

// Embedder turns texts into dense vectors, one per input in order.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Semantic computes embedding cosine similarity. A Semantic without an
// embedder is valid and always scores 0.
type Semantic struct {
	embedder Embedder
	logger   *aligncvErrors.Logger
}

// NewSemantic wraps an embedder. embedder may be nil.
func NewSemantic(embedder Embedder, logger *aligncvErrors.Logger) *Semantic {
	if logger == nil {
		logger = aligncvErrors.NewNopLogger()
	}
	return &Semantic{embedder: embedder, logger: logger}
}

// Available reports whether an embedding backend is loaded.
func (s *Semantic) Available() bool {
	return s != nil && s.embedder != nil
}

// Similarity returns the cosine similarity of the embeddings of a and b,
// clamped to [0,1]. Blank input, a missing backend or a backend failure
// all yield 0.
func (s *Semantic) Similarity(ctx context.Context, a, b string) float64 {
	if strings.TrimSpace(a) == "" || strings.TrimSpace(b) == "" || !s.Available() {
		return 0
	}

	vectors, err := s.embedder.Embed(ctx, []string{a, b})
	if err == nil && len(vectors) != 2 {
		err = fmt.Errorf("expected 2 embeddings, got %d", len(vectors))
	}
	if err != nil {
		s.logger.Warn("Semantic similarity unavailable, scoring 0", "error", err.Error())
		return 0
	}

	return clamp01(cosine32(vectors[0], vectors[1]))
}

// Lexical returns the cosine similarity of the TF-IDF vectors of two token
// sequences, fitted on just those two documents.
func Lexical(tokensA, tokensB []string) float64 {
	if len(tokensA) == 0 || len(tokensB) == 0 {
		return 0
	}
	m := text.Vectorizer{}.FitTransform([]string{
		strings.Join(tokensA, " "),
		strings.Join(tokensB, " "),
	})
	if len(m.Features) == 0 {
		return 0
	}
	return clamp01(text.Cosine(m.Rows[0], m.Rows[1]))
}

func cosine32(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

func clamp01(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
