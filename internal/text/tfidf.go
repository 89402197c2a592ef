package text

import (
	"math"
	"regexp"
	"sort"
	"strings"
)

var termPattern = regexp.MustCompile(`\b\w\w+\b`)

// Vectorizer builds L2-normalised TF-IDF vectors over a small corpus using
// smooth idf, raw term counts and English stop word removal before n-grams
// are formed. A zero value Vectorizer extracts unigrams and bigrams.
type Vectorizer struct {
	MinN, MaxN int
}

// Matrix is a fitted TF-IDF space. Features are sorted alphabetically and
// Rows[i][j] is the weight of Features[j] in document i.
type Matrix struct {
	Features []string
	Rows     [][]float64
}

func (v Vectorizer) ngramRange() (int, int) {
	minN, maxN := v.MinN, v.MaxN
	if minN <= 0 {
		minN = 1
	}
	if maxN < minN {
		maxN = 2
		if maxN < minN {
			maxN = minN
		}
	}
	return minN, maxN
}

// Terms returns the n-grams of doc in document order.
func (v Vectorizer) Terms(doc string) []string {
	var words []string
	for _, w := range termPattern.FindAllString(strings.ToLower(doc), -1) {
		if !IsVectorizerStopword(w) {
			words = append(words, w)
		}
	}

	minN, maxN := v.ngramRange()
	var terms []string
	for n := minN; n <= maxN; n++ {
		for i := 0; i+n <= len(words); i++ {
			terms = append(terms, strings.Join(words[i:i+n], " "))
		}
	}
	return terms
}

// FitTransform fits the vocabulary on docs and returns their vectors. The
// matrix has no features when every document is empty after filtering.
func (v Vectorizer) FitTransform(docs []string) *Matrix {
	counts := make([]map[string]int, len(docs))
	df := make(map[string]int)
	for i, doc := range docs {
		counts[i] = make(map[string]int)
		for _, term := range v.Terms(doc) {
			counts[i][term]++
		}
		for term := range counts[i] {
			df[term]++
		}
	}

	features := make([]string, 0, len(df))
	for term := range df {
		features = append(features, term)
	}
	sort.Strings(features)

	n := float64(len(docs))
	idf := make([]float64, len(features))
	for j, term := range features {
		idf[j] = math.Log((1+n)/(1+float64(df[term]))) + 1
	}

	rows := make([][]float64, len(docs))
	for i := range docs {
		row := make([]float64, len(features))
		var norm float64
		for j, term := range features {
			w := float64(counts[i][term]) * idf[j]
			row[j] = w
			norm += w * w
		}
		if norm > 0 {
			norm = math.Sqrt(norm)
			for j := range row {
				row[j] /= norm
			}
		}
		rows[i] = row
	}

	return &Matrix{Features: features, Rows: rows}
}

// Cosine returns the cosine similarity of two vectors, 0 when either is zero.
func Cosine(a, b []float64) float64 {
	if len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
