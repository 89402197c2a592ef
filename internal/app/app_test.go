package app

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"aligncv/internal/config"
	"aligncv/internal/errors"
	"aligncv/internal/optimize"
	"aligncv/internal/privacy"
	"aligncv/internal/similarity"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := &config.Config{}
	cfg.Similarity.Provider = "none"
	cfg.Privacy.Detector = "regex"
	cfg.Storage.Backend = "file"
	cfg.Storage.Directory = t.TempDir()
	cfg.Matching.ExperienceTolerance = 1
	cfg.Matching.RoleMismatchThreshold = 2
	cfg.Matching.RoleKeywords = []string{"data engineer"}
	return cfg
}

func optimizeRequest() optimize.Request {
	return optimize.Request{Resume: "Python engineer", JD: "Python engineer", RequiredMatch: 0.4}
}

func TestBuildWithoutAICredentials(t *testing.T) {
	comps, err := Build(context.Background(), testConfig(t), nil, WithSemantic(similarity.NewSemantic(nil, nil)))
	require.NoError(t, err)

	assert.Nil(t, comps.Rewriter)
	assert.False(t, comps.Optimizer.Available())
	assert.NotNil(t, comps.Store)
	assert.Equal(t, []string{"data engineer"}, comps.Analyzer.Vocabulary().Roles)

	_, err = comps.Optimizer.Optimize(context.Background(), optimizeRequest())
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
}

func TestBuildMasksWithRegexDetector(t *testing.T) {
	comps, err := Build(context.Background(), testConfig(t), nil, WithSemantic(similarity.NewSemantic(nil, nil)))
	require.NoError(t, err)

	result := comps.Masker.Mask(context.Background(), "Reach me at jane@example.com")
	assert.False(t, result.Degraded)
	assert.NotContains(t, result.Text, "jane@example.com")
}

func TestBuildRejectsUnknownDetector(t *testing.T) {
	cfg := testConfig(t)
	cfg.Privacy.Detector = "magic"

	_, err := Build(context.Background(), cfg, nil, WithSemantic(similarity.NewSemantic(nil, nil)))
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
}

func TestBuildWithoutStorage(t *testing.T) {
	cfg := testConfig(t)
	cfg.Storage.Backend = "none"

	comps, err := Build(context.Background(), cfg, nil, WithSemantic(similarity.NewSemantic(nil, nil)))
	require.NoError(t, err)
	assert.Nil(t, comps.Store)
}

// fakeEmbeddings answers Gemini batchEmbedContents with the same vector for
// every input.
func fakeEmbeddings(t *testing.T) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, ":batchEmbedContents") {
			http.NotFound(w, r)
			return
		}
		var body struct {
			Requests []json.RawMessage `json:"requests"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		embeddings := make([]map[string][]float32, len(body.Requests))
		for i := range embeddings {
			embeddings[i] = map[string][]float32{"values": {1, 0}}
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"embeddings": embeddings})
	}))
	t.Cleanup(server.Close)
	return server
}

func TestBuildDefaultConfig(t *testing.T) {
	server := fakeEmbeddings(t)
	t.Setenv("HOME", t.TempDir())
	t.Setenv("GOOGLE_API_KEY", "dummy")
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("ALIGNCV_SIMILARITY_ENDPOINT", server.URL)
	t.Setenv("ALIGNCV_STORAGE_BACKEND", "none")

	cfg, err := config.LoadConfig()
	require.NoError(t, err)

	detector, err := privacy.NewDetector(cfg.Privacy)
	require.NoError(t, err)
	for _, entity := range []string{"PERSON", "LOCATION", "EMAIL_ADDRESS", "PHONE_NUMBER"} {
		assert.True(t, privacy.Covers(detector, entity), "default detector covers %s", entity)
	}

	comps, err := Build(context.Background(), cfg, nil)
	require.NoError(t, err)
	require.True(t, comps.Analyzer.SemanticAvailable())
	assert.NotNil(t, comps.Rewriter)

	text := "Senior Go engineer with 6 years of experience building APIs."
	report := comps.Analyzer.Analyze(context.Background(), text, text, 0.4)
	assert.Equal(t, 100.0, report.MatchPercentage)
	assert.Empty(t, report.Warnings)
}
