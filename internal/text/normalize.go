// Package text holds the tokenizer and term-weighting primitives shared by
// the similarity, signal and keyword packages.
package text

import (
	"regexp"
	"strings"
)

var nonAlphanumeric = regexp.MustCompile(`[^a-z0-9\s]`)

// Normalize lowercases s, replaces every character outside [a-z0-9] and
// whitespace with a space, splits it into tokens and drops tokens of one
// character. When removeStopwords is set, English stopwords are dropped too.
func Normalize(s string, removeStopwords bool) []string {
	cleaned := nonAlphanumeric.ReplaceAllString(strings.ToLower(s), " ")
	fields := strings.Fields(cleaned)

	tokens := make([]string, 0, len(fields))
	for _, tok := range fields {
		if len(tok) <= 1 {
			continue
		}
		if removeStopwords && IsStopword(tok) {
			continue
		}
		tokens = append(tokens, tok)
	}
	return tokens
}

// Bigrams returns the space-joined pairs of adjacent tokens.
func Bigrams(tokens []string) []string {
	if len(tokens) < 2 {
		return nil
	}
	out := make([]string, 0, len(tokens)-1)
	for i := 0; i+1 < len(tokens); i++ {
		out = append(out, tokens[i]+" "+tokens[i+1])
	}
	return out
}

// NGramSet collects the unigrams and adjacent bigrams of tokens.
func NGramSet(tokens []string) map[string]struct{} {
	set := make(map[string]struct{}, len(tokens)*2)
	for _, t := range tokens {
		set[t] = struct{}{}
	}
	for _, b := range Bigrams(tokens) {
		set[b] = struct{}{}
	}
	return set
}
