package signals

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExperienceYears(t *testing.T) {
	tests := []struct {
		name string
		text string
		want int
	}{
		{"explicit experience", "I have 5 years of experience in Go", 5},
		{"maximum of first pattern", "3 years experience with Python and 7 yrs exp in Java", 7},
		{"first pattern wins over larger plain years", "4 years of experience. Company founded 20 years ago", 4},
		{"plus form", "Requires 8+ years in backend development", 8},
		{"plus word", "10 plus years working with databases", 10},
		{"short form", "Engineer, 6y at Acme", 6},
		{"case insensitive", "12 YEARS OF EXPERIENCE", 12},
		{"abbreviated", "2 yrs of exp", 2},
		{"nothing", "Passionate developer who loves clean code", 0},
		{"empty", "", 0},
		{"overflow clamps", "99999999999999999999 years", math.MaxInt},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExperienceYears(tt.text))
		})
	}
}

func TestRoleKeywords(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{
			name: "substring matches include generic titles",
			text: "Senior Software Engineer leading the payments team",
			want: []string{"engineer", "lead", "senior", "software engineer"},
		},
		{
			name: "data roles",
			text: "Data Scientist building models",
			want: []string{"data scientist"},
		},
		{
			name: "no roles",
			text: "Loves hiking",
			want: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, RoleKeywords(tt.text, DefaultRoleVocabulary))
		})
	}
}

func TestRoleKeywordsCustomVocabulary(t *testing.T) {
	vocab := []string{"SRE", "platform engineer", "sre", ""}
	assert.Equal(t, []string{"platform engineer", "sre"},
		RoleKeywords("Platform Engineer with SRE background", vocab))
}

func BenchmarkExperienceYears(b *testing.B) {
	text := "Backend developer with 7+ years building APIs, 3 years of experience leading teams."
	for b.Loop() {
		ExperienceYears(text)
	}
}
