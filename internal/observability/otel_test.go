package observability

import (
	"context"
	"errors"
	"testing"
	"time"

	"aligncv/internal/ai"
	"aligncv/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func newTestManager(t *testing.T, full *config.Config) (*ObservabilityManager, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	m, err := newMetrics(mp.Meter("test"))
	require.NoError(t, err)
	return &ObservabilityManager{metrics: m, fullConfig: full}, reader
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Aggregation {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	out := make(map[string]metricdata.Aggregation)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m.Data
		}
	}
	return out
}

func sumOf(t *testing.T, data metricdata.Aggregation) int64 {
	t.Helper()
	sum, ok := data.(metricdata.Sum[int64])
	require.True(t, ok, "expected int64 sum, got %T", data)
	var total int64
	for _, dp := range sum.DataPoints {
		total += dp.Value
	}
	return total
}

func TestRecordMatch(t *testing.T) {
	om, reader := newTestManager(t, nil)
	ctx := context.Background()

	om.RecordMatch(ctx, 72.5, 0)
	om.RecordMatch(ctx, 30, 2)

	got := collect(t, reader)
	assert.Equal(t, int64(2), sumOf(t, got["aligncv_resumes_analyzed_total"]))

	hist, ok := got["aligncv_match_percentage"].(metricdata.Histogram[float64])
	require.True(t, ok)
	require.Len(t, hist.DataPoints, 1)
	assert.Equal(t, uint64(2), hist.DataPoints[0].Count)
	assert.InDelta(t, 102.5, hist.DataPoints[0].Sum, 1e-9)
}

func TestRecordMask(t *testing.T) {
	om, reader := newTestManager(t, nil)
	ctx := context.Background()

	om.RecordMask(ctx, 3, false)
	om.RecordMask(ctx, 0, true)

	got := collect(t, reader)
	assert.Equal(t, int64(3), sumOf(t, got["aligncv_pii_entities_masked_total"]))
	assert.Equal(t, int64(1), sumOf(t, got["aligncv_pii_detection_degraded_total"]))
}

func TestRecordAIUsage(t *testing.T) {
	om, reader := newTestManager(t, nil)
	ctx := context.Background()

	om.RecordAIUsage(ctx, "optimize_resume", 250*time.Millisecond, &ai.TokenUsage{InputTokens: 10, OutputTokens: 5, TotalTokens: 15}, nil)
	om.RecordAIUsage(ctx, "optimize_resume", time.Second, nil, errors.New("boom"))

	got := collect(t, reader)
	assert.Equal(t, int64(2), sumOf(t, got["aligncv_ai_requests_total"]))
	assert.Equal(t, int64(1), sumOf(t, got["aligncv_ai_errors_total"]))

	tokens, ok := got["aligncv_ai_token_usage"].(metricdata.Histogram[int64])
	require.True(t, ok)
	var total int64
	for _, dp := range tokens.DataPoints {
		total += dp.Sum
	}
	assert.Equal(t, int64(30), total)
}

func TestRecordAIUsageDisabled(t *testing.T) {
	full := &config.Config{}
	om, reader := newTestManager(t, full)

	om.RecordAIUsage(context.Background(), "optimize_resume", time.Second, nil, nil)

	got := collect(t, reader)
	assert.NotContains(t, got, "aligncv_ai_requests_total")
}

func TestRecordCircuitState(t *testing.T) {
	om, reader := newTestManager(t, nil)

	om.RecordCircuitState(context.Background(), "AI-Optimize", "open")

	got := collect(t, reader)
	gauge, ok := got["aligncv_ai_circuit_open"].(metricdata.Gauge[int64])
	require.True(t, ok)
	require.Len(t, gauge.DataPoints, 1)
	assert.Equal(t, int64(1), gauge.DataPoints[0].Value)
}

func TestRecordBusinessMetric(t *testing.T) {
	om, reader := newTestManager(t, nil)
	ctx := context.Background()

	om.RecordBusinessMetric(ctx, "resume_optimized", true)
	om.RecordBusinessMetric(ctx, "document_masked", true)
	om.RecordBusinessMetric(ctx, "rate_limit_hit", false)
	om.RecordBusinessMetric(ctx, "unknown", true)

	got := collect(t, reader)
	assert.Equal(t, int64(1), sumOf(t, got["aligncv_resumes_optimized_total"]))
	assert.Equal(t, int64(1), sumOf(t, got["aligncv_documents_masked_total"]))
	assert.Equal(t, int64(1), sumOf(t, got["aligncv_rate_limit_hits_total"]))
}

func TestNilManagerIsSafe(t *testing.T) {
	var om *ObservabilityManager
	ctx := context.Background()

	assert.NotPanics(t, func() {
		om.RecordMatch(ctx, 50, 0)
		om.RecordMask(ctx, 1, false)
		om.RecordAIUsage(ctx, "op", time.Second, nil, nil)
		om.RecordCircuitState(ctx, "b", "open")
		om.RecordBusinessMetric(ctx, "resume_optimized", true)
		_ = om.Tracer("x")
		_ = om.HTTPMiddleware()
	})
	assert.NoError(t, om.Shutdown(ctx))
}

func TestDisabledManager(t *testing.T) {
	om, err := NewObservabilityManager(ObservabilityConfig{Enabled: false}, nil, nil)
	require.NoError(t, err)

	assert.NotPanics(t, func() { om.RecordMatch(context.Background(), 50, 0) })
	assert.NoError(t, om.Shutdown(context.Background()))
}

func TestGetObservabilityConfig(t *testing.T) {
	fallback := GetObservabilityConfig(nil, "1.2.3")
	assert.Equal(t, "aligncv", fallback.ServiceName)
	assert.Equal(t, "1.2.3", fallback.ServiceVersion)

	cfg := &config.Config{}
	cfg.Observability.Enabled = true
	cfg.Observability.SampleRate = 0.5
	got := GetObservabilityConfig(cfg, "dev")
	assert.Equal(t, "aligncv", got.ServiceName)
	assert.Equal(t, "dev", got.ServiceVersion)
	assert.True(t, got.Enabled)
	assert.Equal(t, 0.5, got.SampleRate)
}
