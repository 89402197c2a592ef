// Package keywords finds heavily weighted job description terms that a
// resume never mentions.
package keywords

import (
	"sort"
	"strings"

	"aligncv/internal/text"
)

const (
	DefaultTopN      = 5
	DefaultMinWeight = 0.05
)

// DefaultBlocklist holds generic job-ad vocabulary that is never worth suggesting.
var DefaultBlocklist = []string{
	"experience", "responsibilities", "building", "looking", "engineer",
	"developer", "software", "engineer software", "software engineer",
	"engineer developer", "developer software", "years", "plus", "related",
	"field", "strong", "proficiency", "understanding", "knowledge",
	"excellent", "skills", "data", "science", "team", "solutions", "products",
	"systems", "design", "develop", "maintain", "corp", "company",
	"requirements", "implement", "optimize", "cutting", "edge", "involved",
}

// Suggester ranks job description terms by TF-IDF weight and keeps the ones
// missing from the resume.
type Suggester struct {
	blocklist map[string]struct{}
	minWeight float64
	topN      int
}

// NewSuggester builds a Suggester. A nil blocklist selects DefaultBlocklist,
// a non-positive topN selects DefaultTopN.
func NewSuggester(blocklist []string, minWeight float64, topN int) *Suggester {
	if blocklist == nil {
		blocklist = DefaultBlocklist
	}
	if topN <= 0 {
		topN = DefaultTopN
	}
	set := make(map[string]struct{}, len(blocklist))
	for _, term := range blocklist {
		set[strings.ToLower(strings.TrimSpace(term))] = struct{}{}
	}
	return &Suggester{blocklist: set, minWeight: minWeight, topN: topN}
}

// Suggest returns at most topN job description terms, highest weight first,
// that do not appear in the resume as a unigram or bigram.
func (s *Suggester) Suggest(resume, jd string) []string {
	suggestions := make([]string, 0, s.topN)

	jdTokens := text.Normalize(jd, false)
	if len(jdTokens) == 0 {
		return suggestions
	}

	m := text.Vectorizer{}.FitTransform([]string{strings.Join(jdTokens, " ")})
	if len(m.Features) == 0 {
		return suggestions
	}
	weights := m.Rows[0]

	order := make([]int, len(m.Features))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return weights[order[a]] > weights[order[b]]
	})

	present := text.NGramSet(text.Normalize(resume, true))

	for _, idx := range order {
		if len(suggestions) == s.topN {
			break
		}
		term := m.Features[idx]
		if weights[idx] <= s.minWeight {
			continue
		}
		if _, ok := present[term]; ok {
			continue
		}
		if _, ok := s.blocklist[term]; ok {
			continue
		}
		suggestions = append(suggestions, term)
	}
	return suggestions
}
