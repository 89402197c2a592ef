// Package signals extracts coarse facts from free text: the number of years
// of experience it mentions and the role titles it uses.
package signals

import (
	"errors"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// experiencePatterns are tried in order; the first one that matches wins.
var experiencePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(\d+)\s*(?:year|yr)s?\s*(?:of)?\s*(?:experience|exp|yoes?)`),
	regexp.MustCompile(`(?i)(\d+)\s*\+?\s*(?:plus)?\s*(?:year|yr)s?`),
	regexp.MustCompile(`(?i)(\d+)\s*(?:y|yr)\b`),
}

// DefaultRoleVocabulary lists the role titles looked for when none are configured.
var DefaultRoleVocabulary = []string{
	"software engineer",
	"engineer",
	"engineering manager",
	"embedded engineer",
	"data scientist",
	"developer",
	"architect",
	"lead",
	"senior",
	"junior",
}

// ExperienceYears returns the largest year count captured by the first
// pattern that matches text, or 0.
func ExperienceYears(text string) int {
	for _, re := range experiencePatterns {
		matches := re.FindAllStringSubmatch(text, -1)
		if len(matches) == 0 {
			continue
		}
		best := 0
		for _, m := range matches {
			n, err := strconv.Atoi(m[1])
			if errors.Is(err, strconv.ErrRange) {
				n = math.MaxInt
			} else if err != nil {
				continue
			}
			best = max(best, n)
		}
		return best
	}
	return 0
}

// RoleKeywords returns the vocabulary entries that occur as substrings of
// the lowercased text, sorted.
func RoleKeywords(text string, vocabulary []string) []string {
	lower := strings.ToLower(text)
	seen := make(map[string]struct{}, len(vocabulary))
	roles := make([]string, 0)
	for _, role := range vocabulary {
		role = strings.ToLower(role)
		if role == "" {
			continue
		}
		if _, dup := seen[role]; dup {
			continue
		}
		if strings.Contains(lower, role) {
			seen[role] = struct{}{}
			roles = append(roles, role)
		}
	}
	sort.Strings(roles)
	return roles
}
