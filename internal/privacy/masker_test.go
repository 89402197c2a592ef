package privacy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubDetector struct {
	spans []Span
	err   error
}

func (s stubDetector) Detect(context.Context, string, string) Detection {
	if s.err != nil {
		return Unavailable(s.err)
	}
	return Detected(s.spans)
}

type countingRecorder struct {
	entities, degraded int
}

func (c *countingRecorder) RecordMask(_ context.Context, entities int, degraded bool) {
	c.entities += entities
	if degraded {
		c.degraded++
	}
}

func newRegexMasker(t *testing.T) *Masker {
	t.Helper()
	d, err := NewRegexDetector(nil, nil)
	require.NoError(t, err)
	return NewMasker(d)
}

func TestMaskRegexDropsContainedURL(t *testing.T) {
	text := "Contact john.doe@example.com or 555-123-4567."
	result := newRegexMasker(t).Mask(context.Background(), text)

	assert.False(t, result.Degraded)
	assert.Equal(t, "Contact __EMAIL_ADDRESS_0__ or __PHONE_NUMBER_1__.", result.Text)
	assert.Equal(t, []Entry{
		{Placeholder: "__EMAIL_ADDRESS_0__", Value: "john.doe@example.com"},
		{Placeholder: "__PHONE_NUMBER_1__", Value: "555-123-4567"},
	}, result.Map.Entries())
	assert.Equal(t, text, Unmask(result.Text, result.Map))
}

func TestMaskResumeRoundTrip(t *testing.T) {
	resume := `John Doe
123-456-7890 | john.doe.email@example.com | San Francisco, CA | linkedin.com/in/johndoe

Summary:
A highly motivated software engineer.`

	result := newRegexMasker(t).Mask(context.Background(), resume)
	assert.NotContains(t, result.Text, "123-456-7890")
	assert.NotContains(t, result.Text, "john.doe.email@example.com")
	assert.NotContains(t, result.Text, "linkedin.com/in/johndoe")
	assert.Equal(t, 3, result.Map.Len())
	assert.Equal(t, resume, Unmask(result.Text, result.Map))
}

func TestMaskSpanSelection(t *testing.T) {
	text := "abcdefghij"
	tests := []struct {
		name     string
		spans    []Span
		wantText string
		wantMap  []Entry
	}{
		{
			name:     "no spans",
			wantText: "abcdefghij",
			wantMap:  []Entry{},
		},
		{
			name: "sorted by start",
			spans: []Span{
				{EntityType: "B", Start: 6, End: 8, Score: 1},
				{EntityType: "A", Start: 1, End: 3, Score: 1},
			},
			wantText: "a__A_0__def__B_1__ij",
			wantMap:  []Entry{{"__A_0__", "bc"}, {"__B_1__", "gh"}},
		},
		{
			name: "contained span dropped",
			spans: []Span{
				{EntityType: "URL", Start: 3, End: 5, Score: 1},
				{EntityType: "EMAIL_ADDRESS", Start: 2, End: 7, Score: 0.5},
			},
			wantText: "ab__EMAIL_ADDRESS_0__hij",
			wantMap:  []Entry{{"__EMAIL_ADDRESS_0__", "cdefg"}},
		},
		{
			name: "exact duplicates collapse to one",
			spans: []Span{
				{EntityType: "PERSON", Start: 0, End: 4, Score: 0.8},
				{EntityType: "PERSON", Start: 0, End: 4, Score: 0.8},
			},
			wantText: "__PERSON_0__efghij",
			wantMap:  []Entry{{"__PERSON_0__", "abcd"}},
		},
		{
			name: "same extent keeps the higher score",
			spans: []Span{
				{EntityType: "LOCATION", Start: 0, End: 4, Score: 0.4},
				{EntityType: "PERSON", Start: 0, End: 4, Score: 0.9},
			},
			wantText: "__PERSON_0__efghij",
			wantMap:  []Entry{{"__PERSON_0__", "abcd"}},
		},
		{
			name: "partial overlap is kept and copies nothing between",
			spans: []Span{
				{EntityType: "PERSON", Start: 0, End: 5, Score: 1},
				{EntityType: "LOCATION", Start: 3, End: 8, Score: 1},
			},
			wantText: "__PERSON_0____LOCATION_1__ij",
			wantMap:  []Entry{{"__PERSON_0__", "abcde"}, {"__LOCATION_1__", "defgh"}},
		},
		{
			name: "out of range spans discarded",
			spans: []Span{
				{EntityType: "X", Start: -1, End: 2},
				{EntityType: "X", Start: 8, End: 20},
				{EntityType: "X", Start: 4, End: 4},
				{EntityType: "Y", Start: 8, End: 10},
			},
			wantText: "abcdefgh__Y_0__",
			wantMap:  []Entry{{"__Y_0__", "ij"}},
		},
		{
			name:     "entity type with spaces",
			spans:    []Span{{EntityType: "US DRIVER LICENSE", Start: 0, End: 10}},
			wantText: "__US_DRIVER_LICENSE_0__",
			wantMap:  []Entry{{"__US_DRIVER_LICENSE_0__", "abcdefghij"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := NewMasker(stubDetector{spans: tt.spans}).Mask(context.Background(), text)
			assert.False(t, result.Degraded)
			assert.Equal(t, tt.wantText, result.Text)
			assert.Equal(t, tt.wantMap, result.Map.Entries())
		})
	}
}

func TestMaskPartialOverlapDoesNotRoundTrip(t *testing.T) {
	text := "abcdefghij"
	spans := []Span{
		{EntityType: "PERSON", Start: 0, End: 5},
		{EntityType: "LOCATION", Start: 3, End: 8},
	}
	result := NewMasker(stubDetector{spans: spans}).Mask(context.Background(), text)
	assert.Equal(t, "abcdedefghij", Unmask(result.Text, result.Map))
}

func TestMaskFailsOpen(t *testing.T) {
	rec := &countingRecorder{}
	cause := errors.New("sidecar down")
	m := NewMasker(stubDetector{err: cause}, WithMaskRecorder(rec))

	result := m.Mask(context.Background(), "Jane Roe, jane@example.com")
	assert.True(t, result.Degraded)
	assert.ErrorIs(t, result.Reason, cause)
	assert.Equal(t, "Jane Roe, jane@example.com", result.Text)
	assert.Equal(t, 0, result.Map.Len())
	assert.Equal(t, 1, rec.degraded)

	noDetector := NewMasker(nil).Mask(context.Background(), "text")
	assert.True(t, noDetector.Degraded)
	assert.Equal(t, "text", noDetector.Text)
}

func TestUnmask(t *testing.T) {
	assert.Equal(t, "no placeholders", Unmask("no placeholders", nil))
	assert.Equal(t, "__A_0__", Unmask("__A_0__", NewPIIMap()))

	m := NewPIIMap()
	m.set("__EMAIL_ADDRESS_1__", "a@b.io")
	m.set("__EMAIL_ADDRESS_10__", "c@d.io")
	assert.Equal(t, "a@b.io and c@d.io, again a@b.io",
		Unmask("__EMAIL_ADDRESS_1__ and __EMAIL_ADDRESS_10__, again __EMAIL_ADDRESS_1__", m))
}

func TestMissingPlaceholders(t *testing.T) {
	m := NewPIIMap()
	m.set("__PERSON_0__", "Jane")
	m.set("__EMAIL_ADDRESS_1__", "jane@example.com")

	assert.Equal(t, []string{"__EMAIL_ADDRESS_1__"}, MissingPlaceholders("Hi __PERSON_0__", m))
	assert.Empty(t, MissingPlaceholders("__PERSON_0__ __EMAIL_ADDRESS_1__", m))
}

func TestPIIMapJSON(t *testing.T) {
	m := NewPIIMap()
	m.set("__PHONE_NUMBER_0__", "555-123-4567")
	m.set("__EMAIL_ADDRESS_1__", `"quoted"@example.com`)

	data, err := json.Marshal(m)
	require.NoError(t, err)
	assert.Equal(t, `{"__PHONE_NUMBER_0__":"555-123-4567","__EMAIL_ADDRESS_1__":"\"quoted\"@example.com"}`, string(data))

	var decoded PIIMap
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, m.Entries(), decoded.Entries())

	assert.Error(t, json.Unmarshal([]byte(`["not","an","object"]`), &decoded))

	empty, err := json.Marshal(NewPIIMap())
	require.NoError(t, err)
	assert.Equal(t, `{}`, string(empty))
}

// TestMaskRoundTripRandomSpans checks exact reversibility for span sets made
// of disjoint spans and spans nested inside them.
func TestMaskRoundTripRandomSpans(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	alphabet := []rune("abc xyz 123 é-ü@.\n")

	for iter := range 200 {
		var b strings.Builder
		for range 20 + rng.IntN(60) {
			b.WriteRune(alphabet[rng.IntN(len(alphabet))])
		}
		text := b.String()

		var boundaries []int
		for i := range text {
			boundaries = append(boundaries, i)
		}
		boundaries = append(boundaries, len(text))

		var spans []Span
		pos := 0
		for pos < len(boundaries)-1 {
			start := pos + rng.IntN(3)
			end := start + 1 + rng.IntN(4)
			if end >= len(boundaries) {
				break
			}
			spans = append(spans, Span{EntityType: "T", Start: boundaries[start], End: boundaries[end], Score: rng.Float64()})
			if end-start > 1 && rng.IntN(2) == 0 {
				spans = append(spans, Span{EntityType: "INNER", Start: boundaries[start+1], End: boundaries[end], Score: 1})
			}
			pos = end
		}

		result := NewMasker(stubDetector{spans: spans}).Mask(context.Background(), text)
		restored := Unmask(result.Text, result.Map)
		require.Equal(t, text, restored, fmt.Sprintf("iteration %d: %q", iter, text))
		require.Equal(t, restored, Unmask(restored, result.Map), "unmask is idempotent")
	}
}

func BenchmarkMask(b *testing.B) {
	d, err := NewRegexDetector(nil, nil)
	require.NoError(b, err)
	m := NewMasker(d)
	text := strings.Repeat("Jane Roe | jane.roe@example.com | +1 555-123-4567 | github.com/janeroe\n", 20)
	ctx := context.Background()
	for b.Loop() {
		m.Mask(ctx, text)
	}
}
