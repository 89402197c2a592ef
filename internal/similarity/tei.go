package similarity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// TEIEmbedder calls a HuggingFace text-embeddings-inference server, which
// is how the all-MiniLM-L6-v2 sentence model is served locally.
type TEIEmbedder struct {
	url  string
	http *http.Client
}

var _ Embedder = (*TEIEmbedder)(nil)

// NewTEIEmbedder creates an embedder for the TEI server at endpoint
// (e.g. "http://embeddings:8080").
func NewTEIEmbedder(endpoint string, timeout time.Duration) *TEIEmbedder {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &TEIEmbedder{
		url:  strings.TrimRight(endpoint, "/") + "/embed",
		http: &http.Client{Timeout: timeout},
	}
}

type teiRequest struct {
	Inputs    []string `json:"inputs"`
	Normalize bool     `json:"normalize"`
	Truncate  bool     `json:"truncate"`
}

// Embed implements Embedder.
func (t *TEIEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	body, err := json.Marshal(teiRequest{Inputs: texts, Normalize: true, Truncate: true})
	if err != nil {
		return nil, fmt.Errorf("tei: marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("tei: request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("tei: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("tei: unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var vectors [][]float32
	if err := json.NewDecoder(resp.Body).Decode(&vectors); err != nil {
		return nil, fmt.Errorf("tei: decode: %w", err)
	}
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("tei: expected %d embeddings, got %d", len(texts), len(vectors))
	}
	return vectors, nil
}
