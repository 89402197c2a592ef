package privacy

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"
)

// PresidioDetector calls a presidio-analyzer service over HTTP.
type PresidioDetector struct {
	url            string
	scoreThreshold float64
	entities       []string
	http           *http.Client
}

var _ Detector = (*PresidioDetector)(nil)

// NewPresidioDetector creates a detector for the analyzer at baseURL
// (e.g. "http://presidio-analyzer:3000").
func NewPresidioDetector(baseURL string, scoreThreshold float64, entities []string, timeout time.Duration) *PresidioDetector {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &PresidioDetector{
		url:            strings.TrimRight(baseURL, "/") + "/analyze",
		scoreThreshold: scoreThreshold,
		entities:       entities,
		http:           &http.Client{Timeout: timeout},
	}
}

type analyzeRequest struct {
	Text           string   `json:"text"`
	Language       string   `json:"language"`
	ScoreThreshold float64  `json:"score_threshold,omitempty"`
	Entities       []string `json:"entities,omitempty"`
}

type analyzeResult struct {
	EntityType string  `json:"entity_type"`
	Start      int     `json:"start"`
	End        int     `json:"end"`
	Score      float64 `json:"score"`
}

// covers assumes the analyzer's default recognizers when no entity list is
// set.
func (p *PresidioDetector) covers(entityType string) bool {
	if len(p.entities) == 0 {
		return true
	}
	for _, e := range p.entities {
		if strings.EqualFold(e, entityType) {
			return true
		}
	}
	return false
}

// Detect implements Detector. Any transport, status or decoding failure
// makes the detection unavailable.
func (p *PresidioDetector) Detect(ctx context.Context, text, language string) Detection {
	if language == "" {
		language = DefaultLanguage
	}
	body, err := json.Marshal(analyzeRequest{
		Text:           text,
		Language:       language,
		ScoreThreshold: p.scoreThreshold,
		Entities:       p.entities,
	})
	if err != nil {
		return Unavailable(fmt.Errorf("presidio: marshal: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(body))
	if err != nil {
		return Unavailable(fmt.Errorf("presidio: request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.http.Do(req)
	if err != nil {
		return Unavailable(fmt.Errorf("presidio: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return Unavailable(fmt.Errorf("presidio: unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg))))
	}

	var results []analyzeResult
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return Unavailable(fmt.Errorf("presidio: decode: %w", err))
	}

	offsets := runeOffsets(text)
	spans := make([]Span, 0, len(results))
	for _, r := range results {
		if r.Start < 0 || r.End > len(offsets)-1 || r.Start >= r.End {
			continue
		}
		spans = append(spans, Span{
			EntityType: r.EntityType,
			Start:      offsets[r.Start],
			End:        offsets[r.End],
			Score:      r.Score,
		})
	}
	return Detected(spans)
}

// runeOffsets maps each code point index of s, plus the end position, to
// its byte offset.
func runeOffsets(s string) []int {
	offsets := make([]int, 0, utf8.RuneCountInString(s)+1)
	for i := range s {
		offsets = append(offsets, i)
	}
	return append(offsets, len(s))
}
