package ai

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"aligncv/internal/config"
	"aligncv/internal/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func float32Ptr(f float32) *float32              { return &f }
func int32Ptr(i int32) *int32                    { return &i }
func durationPtr(d time.Duration) *time.Duration { return &d }

type usageRecorderStub struct {
	calls int
	usage *TokenUsage
	err   error
}

func (u *usageRecorderStub) RecordAIUsage(_ context.Context, _ string, _ time.Duration, usage *TokenUsage, err error) {
	u.calls++
	u.usage = usage
	u.err = err
}

func testOptimizeConfig() *config.OperationAIConfig {
	return &config.OperationAIConfig{
		Provider:       "gemini",
		Model:          "gemini-2.5-flash",
		APIKey:         "test-key",
		Timeout:        durationPtr(5 * time.Second),
		Temperature:    float32Ptr(0.7),
		TopP:           float32Ptr(0.9),
		TopK:           float32Ptr(40),
		CandidateCount: int32Ptr(1),
	}
}

// fakeGemini answers generateContent calls with the given status and body.
func fakeGemini(t *testing.T, status int, body string, hits *atomic.Int32, requests chan<- string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if requests != nil {
			data, _ := io.ReadAll(r.Body)
			select {
			case requests <- r.URL.Path + " " + string(data):
			default:
			}
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
}

const okResponse = `{
  "candidates": [{"content": {"role": "model", "parts": [{"text": "  Rewritten resume for __PERSON_0__  "}]}}],
  "usageMetadata": {"promptTokenCount": 12, "candidatesTokenCount": 7, "totalTokenCount": 19}
}`

func TestGeminiRewriterRewrite(t *testing.T) {
	var hits atomic.Int32
	requests := make(chan string, 1)
	server := fakeGemini(t, http.StatusOK, okResponse, &hits, requests)
	defer server.Close()

	rec := &usageRecorderStub{}
	r, err := NewGeminiRewriter(testOptimizeConfig(), nil, WithBaseURL(server.URL), WithUsageRecorder(rec))
	require.NoError(t, err)

	text, err := r.Rewrite(context.Background(), "prompt with __PERSON_0__")
	require.NoError(t, err)
	assert.Equal(t, "  Rewritten resume for __PERSON_0__  ", text, "model text is returned verbatim")
	assert.Equal(t, int32(1), hits.Load())

	req := <-requests
	assert.Contains(t, req, "gemini-2.5-flash:generateContent")
	assert.Contains(t, req, "prompt with __PERSON_0__")
	assert.Contains(t, req, `"candidateCount":1`)
	assert.Contains(t, req, `"topK":40`)

	require.Equal(t, 1, rec.calls)
	assert.NoError(t, rec.err)
	assert.Equal(t, &TokenUsage{InputTokens: 12, OutputTokens: 7, TotalTokens: 19}, rec.usage)
}

func TestGeminiRewriterFailures(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		wantCode string
	}{
		{"server error", http.StatusInternalServerError, `{"error":{"code":500,"message":"internal","status":"INTERNAL"}}`, errors.ErrCodeAIServiceFailed},
		{"quota", http.StatusTooManyRequests, `{"error":{"code":429,"message":"quota","status":"RESOURCE_EXHAUSTED"}}`, errors.ErrCodeRateLimited},
		{"empty candidates", http.StatusOK, `{"candidates":[]}`, errors.ErrCodeAIServiceFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var hits atomic.Int32
			server := fakeGemini(t, tt.status, tt.body, &hits, nil)
			defer server.Close()

			r, err := NewGeminiRewriter(testOptimizeConfig(), nil, WithBaseURL(server.URL))
			require.NoError(t, err)

			_, err = r.Rewrite(context.Background(), "prompt")
			require.Error(t, err)
			appErr, ok := errors.As(err)
			require.True(t, ok)
			assert.Equal(t, errors.ErrorTypeAI, appErr.Type)
			assert.Equal(t, tt.wantCode, appErr.Code)
			assert.True(t, strings.HasPrefix(appErr.Message, "AI optimization failed: "))
			assert.Equal(t, 500, errors.HTTPStatus(err))
		})
	}
}

func TestGeminiRewriterCircuitOpenFailsFast(t *testing.T) {
	var hits atomic.Int32
	server := fakeGemini(t, http.StatusInternalServerError, `{"error":{"code":500,"message":"down","status":"INTERNAL"}}`, &hits, nil)
	defer server.Close()

	cfg := testOptimizeConfig()
	cfg.CircuitBreaker = breakerConfig(1, 0.5).CircuitBreaker

	r, err := NewGeminiRewriter(cfg, nil, WithBaseURL(server.URL))
	require.NoError(t, err)

	_, err = r.Rewrite(context.Background(), "prompt")
	require.Error(t, err)
	before := hits.Load()

	_, err = r.Rewrite(context.Background(), "prompt")
	appErr, ok := errors.As(err)
	require.True(t, ok)
	assert.Equal(t, errors.ErrCodeCircuitOpen, appErr.Code)
	assert.Equal(t, before, hits.Load(), "open circuit must not call the model")

	stats := r.GetCircuitBreakerStats()
	assert.Equal(t, false, stats["overall_healthy"])
}

func TestNewRewriter(t *testing.T) {
	cfg := testOptimizeConfig()
	cfg.APIKey = ""
	_, err := NewRewriter(cfg, nil)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
	assert.Equal(t, 503, errors.HTTPStatus(err))
	assert.Contains(t, err.Error(), "AI optimization service is not configured (API Key missing).")

	cfg = testOptimizeConfig()
	cfg.Provider = "openai"
	_, err = NewRewriter(cfg, nil)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))

	r, err := NewRewriter(testOptimizeConfig(), nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultOptimizeResumePrompt, r.PromptTemplate())
}

func TestBuildOptimizationPrompt(t *testing.T) {
	prompt := BuildOptimizationPrompt("", "Resume of __PERSON_0__", "Go engineer, 100% remote")
	assert.Contains(t, prompt, "YOU MUST PRESERVE THESE PLACEHOLDERS EXACTLY")
	assert.Contains(t, prompt, "---\nResume of __PERSON_0__\n---")
	assert.Contains(t, prompt, "---\nGo engineer, 100% remote\n---")
	assert.True(t, strings.HasSuffix(prompt, "**Optimized Resume:**\n"))

	assert.Equal(t, "R=a J=b", BuildOptimizationPrompt("R=%s J=%s", "a", "b"))
}

func TestResolvePrompt(t *testing.T) {
	assert.Equal(t, "file", resolvePrompt("file", "config", "default"))
	assert.Equal(t, "config", resolvePrompt("", "config", "default"))
	assert.Equal(t, "default", resolvePrompt("", "", "default"))
}
