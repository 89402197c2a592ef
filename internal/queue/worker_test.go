package queue

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"aligncv/internal/errors"
	"aligncv/internal/match"
	"aligncv/internal/optimize"
	"aligncv/internal/privacy"
	"aligncv/internal/similarity"
	"aligncv/internal/storage"

	"github.com/streadway/amqp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type unitEmbedder struct{}

func (unitEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range out {
		out[i] = []float32{1, 0}
	}
	return out, nil
}

type echoRewriter struct{}

func (echoRewriter) Rewrite(context.Context, string) (string, error) {
	return "Optimized for __EMAIL_ADDRESS_0__", nil
}

type recordingPublisher struct {
	mu       sync.Mutex
	statuses []Status
}

func (p *recordingPublisher) Publish(_ context.Context, s Status) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.statuses = append(p.statuses, s)
	return nil
}

func (p *recordingPublisher) names() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.statuses))
	for i, s := range p.statuses {
		out[i] = s.Status
	}
	return out
}

type fakeAcknowledger struct {
	acked, nacked int
	requeued      bool
}

func (a *fakeAcknowledger) Ack(uint64, bool) error { a.acked++; return nil }
func (a *fakeAcknowledger) Nack(_ uint64, _ bool, requeue bool) error {
	a.nacked++
	a.requeued = requeue
	return nil
}
func (a *fakeAcknowledger) Reject(_ uint64, requeue bool) error {
	a.nacked++
	a.requeued = requeue
	return nil
}

func setup(t *testing.T, withOptimizer bool) (*Processor, storage.Store) {
	t.Helper()
	store, err := storage.NewFileStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, store.Save(ctx, "uploads/resume.txt", []byte("Go developer, jane@example.com, 6 years of experience"), ""))
	require.NoError(t, store.Save(ctx, "uploads/jd.txt", []byte("Go developer with 5 years of experience"), ""))

	analyzer := match.NewAnalyzer(similarity.NewSemantic(unitEmbedder{}, nil))
	var optimizer *optimize.Service
	if withOptimizer {
		detector, err := privacy.NewRegexDetector(nil, nil)
		require.NoError(t, err)
		optimizer = optimize.NewService(analyzer, privacy.NewMasker(detector), echoRewriter{})
	}
	return NewProcessor(store, analyzer, optimizer, 0.4, 0.4, nil), store
}

func loadResult(t *testing.T, store storage.Store, key string) Result {
	t.Helper()
	data, err := store.Load(context.Background(), key)
	require.NoError(t, err)
	var result Result
	require.NoError(t, json.Unmarshal(data, &result))
	return result
}

func TestProcessorAnalyzeAndOptimize(t *testing.T) {
	processor, store := setup(t, true)

	key, err := processor.Process(context.Background(), Job{
		ID: "job-1", ResumeKey: "uploads/resume.txt", JDKey: "uploads/jd.txt", Optimize: true,
	})
	require.NoError(t, err)
	assert.Equal(t, "results/job-1.json", key)

	result := loadResult(t, store, key)
	assert.Equal(t, "job-1", result.JobID)
	require.NotNil(t, result.Analysis)
	assert.InDelta(t, 100.0, result.Analysis.MatchPercentage, 1e-9)
	require.NotNil(t, result.Optimization)
	assert.Equal(t, "Optimized for jane@example.com", result.Optimization.OptimizedResumeText)
	assert.Empty(t, result.OptimizationError)
	assert.False(t, result.CompletedAt.IsZero())
}

func TestProcessorOptimizationUnavailable(t *testing.T) {
	processor, store := setup(t, false)

	key, err := processor.Process(context.Background(), Job{
		ID: "job-2", ResumeKey: "uploads/resume.txt", JDKey: "uploads/jd.txt", Optimize: true,
	})
	require.NoError(t, err)

	result := loadResult(t, store, key)
	assert.Nil(t, result.Optimization)
	assert.Equal(t, "AI optimization service is not configured (API Key missing).", result.OptimizationError)
}

func TestProcessorFailures(t *testing.T) {
	processor, store := setup(t, false)
	require.NoError(t, store.Save(context.Background(), "uploads/jd.exe", []byte("MZ"), ""))

	tests := []struct {
		name    string
		job     Job
		errType errors.ErrorType
	}{
		{"missing id", Job{ResumeKey: "uploads/resume.txt", JDKey: "uploads/jd.txt"}, errors.ErrorTypeValidation},
		{"missing object", Job{ID: "x", ResumeKey: "uploads/nope.txt", JDKey: "uploads/jd.txt"}, errors.ErrorTypeNotFound},
		{"unsupported type", Job{ID: "x", ResumeKey: "uploads/resume.txt", JDKey: "uploads/jd.exe"}, errors.ErrorTypeValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := processor.Process(context.Background(), tt.job)
			require.Error(t, err)
			assert.True(t, errors.IsType(err, tt.errType), "got %v", err)
		})
	}
}

func TestHandlerStatuses(t *testing.T) {
	processor, _ := setup(t, false)

	t.Run("completed", func(t *testing.T) {
		pub := &recordingPublisher{}
		h := NewHandler(processor, pub, nil)
		body := []byte(`{"id":"job-3","resume_key":"uploads/resume.txt","jd_key":"uploads/jd.txt","min_match":0.9}`)

		require.NoError(t, h.Handle(context.Background(), body))
		assert.Equal(t, []string{StatusProcessing, StatusCompleted}, pub.names())
		assert.Equal(t, "results/job-3.json", pub.statuses[1].ResultKey)
		assert.Equal(t, "job-3", pub.statuses[1].JobID)
	})

	t.Run("failed", func(t *testing.T) {
		pub := &recordingPublisher{}
		h := NewHandler(processor, pub, nil)

		err := h.Handle(context.Background(), []byte(`{"id":"job-4","resume_key":"uploads/missing.txt","jd_key":"uploads/jd.txt"}`))
		require.Error(t, err)
		assert.Equal(t, []string{StatusProcessing, StatusFailed}, pub.names())
		assert.Contains(t, pub.statuses[1].Message, "analysis failed")
	})

	t.Run("malformed", func(t *testing.T) {
		pub := &recordingPublisher{}
		h := NewHandler(processor, pub, nil)

		err := h.Handle(context.Background(), []byte(`{not json`))
		assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))
		assert.Equal(t, []string{StatusFailed}, pub.names())
	})
}

func TestDeliverAcknowledges(t *testing.T) {
	processor, _ := setup(t, false)
	h := NewHandler(processor, nil, nil)

	for _, body := range []string{
		`{"id":"job-5","resume_key":"uploads/resume.txt","jd_key":"uploads/jd.txt"}`,
		`garbage`,
	} {
		ack := &fakeAcknowledger{}
		h.deliver(context.Background(), amqp.Delivery{Acknowledger: ack, DeliveryTag: 1, Body: []byte(body)})
		assert.Equal(t, 1, ack.acked)
		assert.Zero(t, ack.nacked)
	}
}

func TestDeliverRequeuesOnShutdown(t *testing.T) {
	processor, _ := setup(t, false)
	h := NewHandler(processor, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ack := &fakeAcknowledger{}
	body := `{"id":"job-6","resume_key":"uploads/resume.txt","jd_key":"uploads/jd.txt"}`
	h.deliver(ctx, amqp.Delivery{Acknowledger: ack, DeliveryTag: 1, Body: []byte(body)})
	assert.Zero(t, ack.acked)
	assert.Equal(t, 1, ack.nacked)
	assert.True(t, ack.requeued)
}

func TestRoutingKey(t *testing.T) {
	assert.Equal(t, "job.abc", routingKey("abc"))
}
