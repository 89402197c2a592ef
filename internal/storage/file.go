package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"aligncv/internal/errors"
)

// FileStore keeps objects as files under a root directory.
type FileStore struct {
	root string
}

var _ Store = (*FileStore)(nil)

func NewFileStore(dir string) (*FileStore, error) {
	if dir == "" {
		return nil, errors.NewConfigError(errors.ErrCodeInvalidConfig,
			"storage directory is required for the file backend", nil)
	}
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, errors.NewIOError(errors.ErrCodeStorageFailed,
			fmt.Sprintf("Cannot create storage directory: %s", dir), err)
	}
	return &FileStore{root: dir}, nil
}

func (s *FileStore) path(name string) (string, error) {
	cleaned, err := cleanName(name)
	if err != nil {
		return "", err
	}
	return filepath.Join(s.root, filepath.FromSlash(cleaned)), nil
}

func (s *FileStore) Save(ctx context.Context, name string, data []byte, _ string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p, err := s.path(name)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0750); err != nil {
		return errors.NewIOError(errors.ErrCodeStorageFailed,
			fmt.Sprintf("Cannot create directory for %s", name), err)
	}
	if err := os.WriteFile(p, data, 0600); err != nil {
		return errors.NewIOError(errors.ErrCodeFileWriteFailed,
			fmt.Sprintf("Cannot write file: %s", name), err)
	}
	return nil
}

func (s *FileStore) Load(ctx context.Context, name string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p, err := s.path(name)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, notFound(name, err)
		}
		return nil, errors.NewIOError(errors.ErrCodeFileNotReadable,
			fmt.Sprintf("Cannot read file: %s", name), err)
	}
	return data, nil
}
