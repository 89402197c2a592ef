package match

import (
	"aligncv/internal/keywords"
	"aligncv/internal/signals"
)

// Vocabulary bundles the role titles and the keyword suggester built from
// the suggestion blocklist. It is immutable once built; reloads swap the
// whole value.
type Vocabulary struct {
	Roles     []string
	Blocklist []string
	suggester *keywords.Suggester
}

// NewVocabulary builds a Vocabulary. Empty lists fall back to the built-in
// role vocabulary and blocklist.
func NewVocabulary(roles, blocklist []string, minWeight float64, topN int) *Vocabulary {
	if len(roles) == 0 {
		roles = signals.DefaultRoleVocabulary
	}
	if len(blocklist) == 0 {
		blocklist = keywords.DefaultBlocklist
	}
	return &Vocabulary{
		Roles:     append([]string(nil), roles...),
		Blocklist: append([]string(nil), blocklist...),
		suggester: keywords.NewSuggester(blocklist, minWeight, topN),
	}
}

// DefaultVocabulary uses the built-in lists and suggestion defaults.
func DefaultVocabulary() *Vocabulary {
	return NewVocabulary(nil, nil, keywords.DefaultMinWeight, keywords.DefaultTopN)
}
