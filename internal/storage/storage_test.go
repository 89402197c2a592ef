package storage

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"aligncv/internal/config"
	"aligncv/internal/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOptimizedResumeName(t *testing.T) {
	a, b := OptimizedResumeName(), OptimizedResumeName()
	assert.NotEqual(t, a, b)
	assert.True(t, strings.HasPrefix(a, "optimized_resume_"))
	assert.True(t, strings.HasSuffix(a, ".txt"))
	assert.Equal(t, "results/job-1.json", ResultName("job-1"))
}

func TestCleanName(t *testing.T) {
	tests := []struct {
		name    string
		want    string
		wantErr bool
	}{
		{name: "resume.txt", want: "resume.txt"},
		{name: "results/abc.json", want: "results/abc.json"},
		{name: "a/./b.txt", want: "a/b.txt"},
		{name: "", wantErr: true},
		{name: "../etc/passwd", wantErr: true},
		{name: "a/../../b", wantErr: true},
		{name: "/abs/path", wantErr: true},
		{name: `..\windows`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := cleanName(tt.name)
			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, 400, errors.HTTPStatus(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFileStore(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(filepath.Join(dir, "outputs"))
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "results/job.json", []byte(`{"ok":true}`), "application/json"))
	data, err := store.Load(ctx, "results/job.json")
	require.NoError(t, err)
	assert.Equal(t, `{"ok":true}`, string(data))

	info, err := os.Stat(filepath.Join(dir, "outputs", "results", "job.json"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	_, err = store.Load(ctx, "missing.txt")
	assert.True(t, errors.IsType(err, errors.ErrorTypeNotFound))
	assert.Equal(t, 404, errors.HTTPStatus(err))

	err = store.Save(ctx, "../escape.txt", []byte("x"), "")
	assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))
	_, err = os.Stat(filepath.Join(dir, "escape.txt"))
	assert.True(t, os.IsNotExist(err))
}

func TestNew(t *testing.T) {
	store, err := New(context.Background(), config.StorageConfig{Backend: "none"})
	require.NoError(t, err)
	assert.Nil(t, store)

	store, err = New(context.Background(), config.StorageConfig{Backend: "file", Directory: t.TempDir()})
	require.NoError(t, err)
	assert.IsType(t, &FileStore{}, store)

	_, err = New(context.Background(), config.StorageConfig{Backend: "gcs"})
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))

	_, err = New(context.Background(), config.StorageConfig{Backend: "s3"})
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
}

// fakeS3 is a path-style bucket that keeps objects in memory.
type fakeS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
	types   map[string]string
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	switch r.Method {
	case http.MethodPut:
		body, _ := io.ReadAll(r.Body)
		f.objects[r.URL.Path] = body
		f.types[r.URL.Path] = r.Header.Get("Content-Type")
		w.WriteHeader(http.StatusOK)
	case http.MethodGet:
		body, ok := f.objects[r.URL.Path]
		if !ok {
			w.Header().Set("Content-Type", "application/xml")
			w.WriteHeader(http.StatusNotFound)
			_, _ = io.WriteString(w, `<?xml version="1.0" encoding="UTF-8"?><Error><Code>NoSuchKey</Code><Message>The specified key does not exist.</Message></Error>`)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(body)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func TestS3Store(t *testing.T) {
	fake := &fakeS3{objects: map[string][]byte{}, types: map[string]string{}}
	server := httptest.NewServer(fake)
	defer server.Close()

	ctx := context.Background()
	store, err := NewS3Store(ctx, config.StorageConfig{
		Bucket:       "aligncv",
		Region:       "us-east-1",
		Endpoint:     server.URL,
		AccessKey:    "test",
		SecretKey:    "test",
		Prefix:       "outputs",
		UsePathStyle: true,
	})
	require.NoError(t, err)

	require.NoError(t, store.Save(ctx, "optimized_resume_1.txt", []byte("Jane Doe\nGo"), "text/plain; charset=utf-8"))

	fake.mu.Lock()
	assert.Equal(t, []byte("Jane Doe\nGo"), fake.objects["/aligncv/outputs/optimized_resume_1.txt"])
	assert.Equal(t, "text/plain; charset=utf-8", fake.types["/aligncv/outputs/optimized_resume_1.txt"])
	fake.mu.Unlock()

	data, err := store.Load(ctx, "optimized_resume_1.txt")
	require.NoError(t, err)
	assert.Equal(t, "Jane Doe\nGo", string(data))

	_, err = store.Load(ctx, "missing.txt")
	assert.True(t, errors.IsType(err, errors.ErrorTypeNotFound))
}
