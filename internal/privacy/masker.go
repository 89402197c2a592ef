package privacy

import (
	"context"
	"errors"
	"sort"
	"strings"

	aligncvErrors "aligncv/internal/errors"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

// DefaultLanguage is the detection language when none is configured.
const DefaultLanguage = "en"

var errNoDetector = errors.New("no pii detector configured")

// MaskResult is the output of Mask. When Degraded is set, detection did not
// run, Text is the input unchanged and Map is empty. Partial means some
// detectors failed and only the others' spans were masked; Reason then holds
// their error.
type MaskResult struct {
	Text     string  `json:"masked_text"`
	Map      *PIIMap `json:"pii_map"`
	Degraded bool    `json:"degraded"`
	Partial  bool    `json:"partial,omitempty"`
	Reason   error   `json:"-"`
}

// Recorder receives masking outcomes.
type Recorder interface {
	RecordMask(ctx context.Context, entities int, degraded bool)
}

// Masker replaces detected spans with placeholders. It is safe for
// concurrent use when its detector is.
type Masker struct {
	detector Detector
	language string
	recorder Recorder
	logger   *aligncvErrors.Logger
}

type MaskerOption func(*Masker)

func WithLanguage(language string) MaskerOption {
	return func(m *Masker) {
		if language != "" {
			m.language = language
		}
	}
}

func WithMaskLogger(logger *aligncvErrors.Logger) MaskerOption {
	return func(m *Masker) {
		if logger != nil {
			m.logger = logger
		}
	}
}

func WithMaskRecorder(r Recorder) MaskerOption {
	return func(m *Masker) { m.recorder = r }
}

// NewMasker creates a Masker around detector.
func NewMasker(detector Detector, opts ...MaskerOption) *Masker {
	m := &Masker{
		detector: detector,
		language: DefaultLanguage,
		logger:   aligncvErrors.NewNopLogger(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Mask detects PII in text and replaces every surviving span with a
// placeholder. Detection failures fail open.
func (m *Masker) Mask(ctx context.Context, text string) MaskResult {
	ctx, span := otel.Tracer("aligncv.privacy").Start(ctx, "privacy.mask")
	defer span.End()

	var detection Detection
	if m.detector == nil {
		detection = Unavailable(errNoDetector)
	} else {
		detection = m.detector.Detect(ctx, text, m.language)
	}

	if !detection.Available() {
		m.logger.Warn("PII detection unavailable, returning text unmasked",
			"error", detection.Err().Error())
		span.RecordError(detection.Err())
		span.SetAttributes(attribute.Bool("privacy.degraded", true))
		if m.recorder != nil {
			m.recorder.RecordMask(ctx, 0, true)
		}
		return MaskResult{Text: text, Map: NewPIIMap(), Degraded: true, Reason: detection.Err()}
	}

	partial := detection.Incomplete()
	if partial != nil {
		m.logger.Warn("PII detection partially unavailable, masking with the remaining detectors",
			"error", partial.Error())
		span.RecordError(partial)
	}

	spans := selectSpans(detection.Spans(), len(text))
	masked, piiMap := applySpans(text, spans)

	span.SetAttributes(
		attribute.Bool("privacy.degraded", false),
		attribute.Bool("privacy.partial", partial != nil),
		attribute.Int("privacy.entities", piiMap.Len()),
	)
	if m.recorder != nil {
		m.recorder.RecordMask(ctx, piiMap.Len(), false)
	}
	m.logger.Debug("Masked PII", "entities", piiMap.Len(), "candidates", len(detection.Spans()))

	return MaskResult{Text: masked, Map: piiMap, Partial: partial != nil, Reason: partial}
}

// selectSpans drops out-of-range spans and every span contained in another
// one, then orders the rest by start. Of several spans with the same extent
// only one survives: the highest score, then the earliest reported.
func selectSpans(candidates []Span, textLen int) []Span {
	inRange := make([]Span, 0, len(candidates))
	for _, s := range candidates {
		if s.within(textLen) {
			inRange = append(inRange, s)
		}
	}

	kept := make([]Span, 0, len(inRange))
	for i, a := range inRange {
		contained := false
		for j, b := range inRange {
			if i == j || !b.contains(a) {
				continue
			}
			if !b.sameExtent(a) || b.Score > a.Score || (b.Score == a.Score && j < i) {
				contained = true
				break
			}
		}
		if !contained {
			kept = append(kept, a)
		}
	}

	sort.SliceStable(kept, func(i, j int) bool { return kept[i].Start < kept[j].Start })
	return kept
}

// applySpans writes the masked text. Spans that overlap the previous one
// without being contained in it copy no text before their placeholder.
func applySpans(text string, spans []Span) (string, *PIIMap) {
	piiMap := NewPIIMap()
	var b strings.Builder
	b.Grow(len(text))

	cursor := 0
	for i, s := range spans {
		if s.Start > cursor {
			b.WriteString(text[cursor:s.Start])
		}
		placeholder := Placeholder(s.EntityType, i)
		b.WriteString(placeholder)
		piiMap.set(placeholder, text[s.Start:s.End])
		cursor = s.End
	}
	if cursor < len(text) {
		b.WriteString(text[cursor:])
	}
	return b.String(), piiMap
}

// Unmask restores the original values in masked. A nil or empty map returns
// masked unchanged.
func Unmask(masked string, m *PIIMap) string {
	if m.Len() == 0 {
		return masked
	}
	out := masked
	for _, e := range m.Entries() {
		out = strings.ReplaceAll(out, e.Placeholder, e.Value)
	}
	return out
}

// MissingPlaceholders lists the placeholders of m that do not occur in text.
func MissingPlaceholders(text string, m *PIIMap) []string {
	missing := make([]string, 0)
	for _, e := range m.Entries() {
		if !strings.Contains(text, e.Placeholder) {
			missing = append(missing, e.Placeholder)
		}
	}
	return missing
}
