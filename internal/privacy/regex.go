package privacy

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
)

type pattern struct {
	entityType string
	re         *regexp.Regexp
	score      float64
}

// builtinPatterns cover structured PII. Scores follow the usual convention
// that highly specific formats score higher than broad numeric ones.
var builtinPatterns = []struct {
	entityType string
	expr       string
	score      float64
}{
	{"EMAIL_ADDRESS", `\b[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}\b`, 1.0},
	// Bare domains need a path unless the TLD rarely appears in skill names.
	{"URL", `(?i:\b(?:https?://|www\.)[^\s<>"'|]+)|\b(?:[a-z0-9\-]+\.)+(?:com|org|net|io|dev|ai|co|me|in)/[^\s<>"'|]*|\b(?:[a-z0-9\-]+\.)+(?:com|org|dev|me)\b`, 0.85},
	{"US_SSN", `\b\d{3}-\d{2}-\d{4}\b`, 0.85},
	{"CREDIT_CARD", `\b(?:\d{4}[\s\-]?){3}\d{4}\b`, 0.8},
	{"IP_ADDRESS", `\b(?:(?:25[0-5]|2[0-4]\d|1?\d?\d)\.){3}(?:25[0-5]|2[0-4]\d|1?\d?\d)\b`, 0.7},
	{"PHONE_NUMBER", `(?:\+\d{1,3}[\s.\-]?)?(?:\(\d{3}\)\s?|\b\d{3}[\s.\-]?)\d{3}[\s.\-]?\d{4}\b`, 0.6},
}

// BuiltinEntities lists the entity types RegexDetector knows by default.
func BuiltinEntities() []string {
	out := make([]string, len(builtinPatterns))
	for i, p := range builtinPatterns {
		out[i] = p.entityType
	}
	return out
}

// RegexDetector finds structured PII with regular expressions. It never
// reports itself unavailable.
type RegexDetector struct {
	patterns []pattern
}

var _ Detector = (*RegexDetector)(nil)

// NewRegexDetector compiles the built-in patterns named in entities (all of
// them when entities is empty) plus the custom entity type to expression
// pairs.
func NewRegexDetector(entities []string, custom map[string]string) (*RegexDetector, error) {
	enabled := make(map[string]bool, len(entities))
	for _, e := range entities {
		enabled[strings.ToUpper(strings.TrimSpace(e))] = true
	}

	d := &RegexDetector{}
	for _, p := range builtinPatterns {
		if len(enabled) > 0 && !enabled[p.entityType] {
			continue
		}
		d.patterns = append(d.patterns, pattern{
			entityType: p.entityType,
			re:         regexp.MustCompile(p.expr),
			score:      p.score,
		})
	}

	names := make([]string, 0, len(custom))
	for name := range custom {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		re, err := regexp.Compile(custom[name])
		if err != nil {
			return nil, fmt.Errorf("invalid pattern for entity %s: %w", name, err)
		}
		d.patterns = append(d.patterns, pattern{entityType: strings.ToUpper(name), re: re, score: 0.5})
	}

	if len(d.patterns) == 0 {
		return nil, fmt.Errorf("no pii patterns enabled")
	}
	return d, nil
}

func (d *RegexDetector) covers(entityType string) bool {
	for _, p := range d.patterns {
		if p.entityType == entityType {
			return true
		}
	}
	return false
}

// Detect implements Detector. language is ignored.
func (d *RegexDetector) Detect(ctx context.Context, text, _ string) Detection {
	var spans []Span
	for _, p := range d.patterns {
		if err := ctx.Err(); err != nil {
			return Unavailable(err)
		}
		for _, loc := range p.re.FindAllStringIndex(text, -1) {
			if loc[0] == loc[1] {
				continue
			}
			spans = append(spans, Span{EntityType: p.entityType, Start: loc[0], End: loc[1], Score: p.score})
		}
	}
	return Detected(spans)
}
