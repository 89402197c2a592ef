package config

import (
	"fmt"
	"log"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// VocabularyFile is the on-disk form of the matching vocabularies:
//
//	roleKeywords:
//	  - software engineer
//	  - data scientist
//	suggestionBlocklist:
//	  - experience
type VocabularyFile struct {
	RoleKeywords        []string `yaml:"roleKeywords"`
	SuggestionBlocklist []string `yaml:"suggestionBlocklist"`
}

// LoadVocabularyFile reads and normalizes a vocabulary file. Entries are
// lowercased and trimmed; blank entries are dropped.
func LoadVocabularyFile(path string) (*VocabularyFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read vocabulary file '%s': %w", path, err)
	}

	var vocab VocabularyFile
	if err := yaml.Unmarshal(data, &vocab); err != nil {
		return nil, fmt.Errorf("failed to parse vocabulary file '%s': %w", path, err)
	}

	vocab.RoleKeywords = normalizeTerms(vocab.RoleKeywords)
	vocab.SuggestionBlocklist = normalizeTerms(vocab.SuggestionBlocklist)
	if len(vocab.RoleKeywords) == 0 && len(vocab.SuggestionBlocklist) == 0 {
		return nil, fmt.Errorf("vocabulary file '%s' defines no terms", path)
	}
	return &vocab, nil
}

// applyVocabularyFile overrides the configured vocabularies with the
// contents of matching.vocabularyFile when one is set
func (c *Config) applyVocabularyFile() error {
	c.Matching.RoleKeywords = normalizeTerms(c.Matching.RoleKeywords)
	c.Matching.SuggestionBlocklist = normalizeTerms(c.Matching.SuggestionBlocklist)

	if c.Matching.VocabularyFile == "" {
		return nil
	}

	vocab, err := LoadVocabularyFile(c.Matching.VocabularyFile)
	if err != nil {
		return err
	}
	if len(vocab.RoleKeywords) > 0 {
		c.Matching.RoleKeywords = vocab.RoleKeywords
	}
	if len(vocab.SuggestionBlocklist) > 0 {
		c.Matching.SuggestionBlocklist = vocab.SuggestionBlocklist
	}
	log.Printf("[CONFIG] Loaded vocabulary file %s (%d role keywords, %d blocklisted terms)",
		c.Matching.VocabularyFile, len(vocab.RoleKeywords), len(vocab.SuggestionBlocklist))
	return nil
}

func normalizeTerms(terms []string) []string {
	out := make([]string, 0, len(terms))
	for _, t := range terms {
		if t = strings.ToLower(strings.TrimSpace(t)); t != "" {
			out = append(out, t)
		}
	}
	return out
}
