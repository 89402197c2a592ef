package privacy

import (
	"context"
	"errors"
	"sync"
)

// CompositeDetector runs several detectors concurrently and unions their
// spans. It is unavailable only when every child is, and partial when some
// child is.
type CompositeDetector struct {
	detectors []Detector
}

var _ Detector = (*CompositeDetector)(nil)

func NewCompositeDetector(detectors ...Detector) *CompositeDetector {
	return &CompositeDetector{detectors: detectors}
}

// Detect implements Detector.
func (c *CompositeDetector) Detect(ctx context.Context, text, language string) Detection {
	if len(c.detectors) == 0 {
		return Unavailable(errNoDetector)
	}

	results := make([]Detection, len(c.detectors))
	var wg sync.WaitGroup
	for i, d := range c.detectors {
		wg.Add(1)
		go func(i int, d Detector) {
			defer wg.Done()
			results[i] = d.Detect(ctx, text, language)
		}(i, d)
	}
	wg.Wait()

	var spans []Span
	var errs []error
	available := false
	for _, r := range results {
		if !r.Available() {
			errs = append(errs, r.Err())
			continue
		}
		available = true
		spans = append(spans, r.Spans()...)
	}
	if !available {
		return Unavailable(errors.Join(errs...))
	}
	if len(errs) > 0 {
		return Partial(spans, errors.Join(errs...))
	}
	return Detected(spans)
}

func (c *CompositeDetector) covers(entityType string) bool {
	for _, d := range c.detectors {
		if Covers(d, entityType) {
			return true
		}
	}
	return false
}
