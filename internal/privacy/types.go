// Package privacy replaces personally identifiable information in text with
// positional placeholders and restores it afterwards.
package privacy

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Span is a detected entity occupying the half-open byte range [Start, End).
type Span struct {
	EntityType string  `json:"entity_type"`
	Start      int     `json:"start"`
	End        int     `json:"end"`
	Score      float64 `json:"score"`
}

func (s Span) within(n int) bool {
	return s.Start >= 0 && s.Start < s.End && s.End <= n
}

func (s Span) contains(o Span) bool {
	return s.Start <= o.Start && s.End >= o.End
}

func (s Span) sameExtent(o Span) bool {
	return s.Start == o.Start && s.End == o.End
}

// Detector finds PII spans in text.
type Detector interface {
	Detect(ctx context.Context, text, language string) Detection
}

// ErrDetectorUnavailable is reported when detection could not run at all.
var ErrDetectorUnavailable = errors.New("pii detector unavailable")

// Detection is the outcome of one detector run: either a (possibly empty)
// set of spans or the reason detection was unavailable. A partial detection
// has spans and also records why some of the detection did not run.
type Detection struct {
	spans   []Span
	err     error
	partial error
}

// Detected wraps a successful detection.
func Detected(spans []Span) Detection {
	return Detection{spans: spans}
}

// Unavailable records that detection could not run.
func Unavailable(err error) Detection {
	if err == nil {
		err = ErrDetectorUnavailable
	}
	return Detection{err: err}
}

// Partial wraps spans found while part of the detection failed with err.
func Partial(spans []Span, err error) Detection {
	return Detection{spans: spans, partial: err}
}

func (d Detection) Available() bool { return d.err == nil }
func (d Detection) Spans() []Span   { return d.spans }
func (d Detection) Err() error      { return d.err }

// Incomplete returns why an available detection is partial, or nil.
func (d Detection) Incomplete() error { return d.partial }

// coverage is implemented by detectors that know which entity types they
// can report.
type coverage interface {
	covers(entityType string) bool
}

// Covers reports whether d can detect entityType. Detectors that do not
// describe their coverage are assumed to cover everything.
func Covers(d Detector, entityType string) bool {
	if d == nil {
		return false
	}
	c, ok := d.(coverage)
	if !ok {
		return true
	}
	return c.covers(strings.ToUpper(entityType))
}

// PIIMap maps placeholders to the original values they replaced, in the
// order the placeholders appear in the masked text.
type PIIMap struct {
	keys   []string
	values map[string]string
}

// Entry is one placeholder and the value it stands for.
type Entry struct {
	Placeholder string `json:"placeholder"`
	Value       string `json:"value"`
}

// NewPIIMap returns an empty map.
func NewPIIMap() *PIIMap {
	return &PIIMap{values: make(map[string]string)}
}

func (m *PIIMap) set(placeholder, value string) {
	if _, exists := m.values[placeholder]; !exists {
		m.keys = append(m.keys, placeholder)
	}
	m.values[placeholder] = value
}

func (m *PIIMap) Len() int {
	if m == nil {
		return 0
	}
	return len(m.keys)
}

func (m *PIIMap) Get(placeholder string) (string, bool) {
	if m == nil {
		return "", false
	}
	v, ok := m.values[placeholder]
	return v, ok
}

// Entries returns the pairs in insertion order.
func (m *PIIMap) Entries() []Entry {
	if m == nil {
		return nil
	}
	out := make([]Entry, len(m.keys))
	for i, k := range m.keys {
		out[i] = Entry{Placeholder: k, Value: m.values[k]}
	}
	return out
}

// MarshalJSON encodes the map as a JSON object with keys in insertion order.
func (m *PIIMap) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, e := range m.Entries() {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(e.Placeholder)
		if err != nil {
			return nil, err
		}
		value, err := json.Marshal(e.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes a JSON object, keeping its key order.
func (m *PIIMap) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("pii map: expected JSON object")
	}

	*m = PIIMap{values: make(map[string]string)}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("pii map: expected string key")
		}
		var value string
		if err := dec.Decode(&value); err != nil {
			return fmt.Errorf("pii map: value for %s: %w", key, err)
		}
		m.set(key, value)
	}
	_, err = dec.Token()
	return err
}

// Placeholder builds the token that stands in for the index-th masked span.
func Placeholder(entityType string, index int) string {
	return fmt.Sprintf("__%s_%d__", strings.ReplaceAll(entityType, " ", "_"), index)
}
