package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// LocalStore keeps evidence photos on the local filesystem. Refs are the
// storage keys relative to the base directory.
type LocalStore struct {
	basePath string
}

func NewLocalStore(basePath string) (*LocalStore, error) {
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("create evidence directory: %w", err)
	}
	return &LocalStore{basePath: basePath}, nil
}

func (s *LocalStore) Put(ctx context.Context, leaseID, itemID, filename string, data io.Reader) (string, error) {
	key := photoKey(leaseID, itemID, filename)
	fullPath := filepath.Join(s.basePath, filepath.FromSlash(key))

	if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
		return "", fmt.Errorf("create item directory: %w", err)
	}
	f, err := os.Create(fullPath)
	if err != nil {
		return "", fmt.Errorf("create photo file: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(f, data); err != nil {
		os.Remove(fullPath)
		return "", fmt.Errorf("write photo: %w", err)
	}
	return key, nil
}

func (s *LocalStore) Get(ctx context.Context, ref string) (io.ReadCloser, error) {
	f, err := os.Open(filepath.Join(s.basePath, filepath.FromSlash(ref)))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("photo not found: %s", ref)
		}
		return nil, fmt.Errorf("open photo: %w", err)
	}
	return f, nil
}

func (s *LocalStore) Delete(ctx context.Context, ref string) error {
	err := os.Remove(filepath.Join(s.basePath, filepath.FromSlash(ref)))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete photo: %w", err)
	}
	return nil
}

// URL returns a file URL the vision request can carry for local runs.
func (s *LocalStore) URL(ref string) string {
	abs, err := filepath.Abs(filepath.Join(s.basePath, filepath.FromSlash(ref)))
	if err != nil {
		abs = filepath.Join(s.basePath, filepath.FromSlash(ref))
	}
	return "file://" + filepath.ToSlash(abs)
}
