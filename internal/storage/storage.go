// Package storage persists optimized resumes and worker results.
package storage

import (
	"context"
	"fmt"
	"path"
	"strings"

	"aligncv/internal/config"
	"aligncv/internal/errors"

	"github.com/google/uuid"
)

// Store saves and loads named objects.
type Store interface {
	Save(ctx context.Context, name string, data []byte, contentType string) error
	Load(ctx context.Context, name string) ([]byte, error)
}

// OptimizedResumeName returns a fresh object name for an optimized resume.
func OptimizedResumeName() string {
	return fmt.Sprintf("optimized_resume_%s.txt", uuid.NewString())
}

// ResultName returns the object name of a worker job result.
func ResultName(jobID string) string {
	return fmt.Sprintf("results/%s.json", jobID)
}

// New builds the store selected by cfg.Backend. The "none" backend returns a
// nil Store.
func New(ctx context.Context, cfg config.StorageConfig) (Store, error) {
	switch cfg.Backend {
	case "", "none":
		return nil, nil
	case "file":
		return NewFileStore(cfg.Directory)
	case "s3":
		return NewS3Store(ctx, cfg)
	default:
		return nil, errors.NewConfigError(errors.ErrCodeInvalidConfig,
			fmt.Sprintf("unknown storage backend: %s", cfg.Backend), nil)
	}
}

// cleanName validates an object name: relative, slash separated, no parent
// references.
func cleanName(name string) (string, error) {
	cleaned := path.Clean(strings.TrimSpace(name))
	if name == "" || cleaned == "." || path.IsAbs(cleaned) ||
		cleaned == ".." || strings.HasPrefix(cleaned, "../") ||
		strings.Contains(name, `\`) {
		return "", errors.NewValidationError(errors.ErrCodeInvalidRequest,
			fmt.Sprintf("Invalid object name: %q", name), nil)
	}
	return cleaned, nil
}

func notFound(name string, cause error) error {
	return errors.NewNotFoundError(errors.ErrCodeFileNotFound,
		fmt.Sprintf("File not found: %s", name), cause)
}
