package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"strings"

	"github.com/google/uuid"
)

// PhotoStore persists evidence photos. Put returns an opaque reference that
// the ledger records and the model gateway later resolves to a URL.
type PhotoStore interface {
	Put(ctx context.Context, leaseID, itemID, filename string, data io.Reader) (string, error)
	Get(ctx context.Context, ref string) (io.ReadCloser, error)
	Delete(ctx context.Context, ref string) error
	URL(ref string) string
}

type Backend string

const (
	BackendLocal Backend = "local"
	BackendS3    Backend = "s3"
)

type Config struct {
	Backend      Backend
	LocalPath    string
	S3Bucket     string
	S3Region     string
	AWSAccessKey string
	AWSSecretKey string
}

func New(cfg Config) (PhotoStore, error) {
	switch cfg.Backend {
	case BackendLocal:
		return NewLocalStore(cfg.LocalPath)
	case BackendS3:
		return NewS3Store(cfg)
	default:
		return nil, fmt.Errorf("unknown storage backend: %s", cfg.Backend)
	}
}

// NewFromEnv builds a store from STORAGE_BACKEND and its companion
// variables. Local storage is the default so the pipeline runs without
// any cloud setup.
func NewFromEnv() (PhotoStore, error) {
	backend := Backend(os.Getenv("STORAGE_BACKEND"))
	if backend == "" {
		backend = BackendLocal
	}

	cfg := Config{Backend: backend}
	switch backend {
	case BackendLocal:
		cfg.LocalPath = os.Getenv("EVIDENCE_DIR")
		if cfg.LocalPath == "" {
			cfg.LocalPath = "./evidence"
		}
	case BackendS3:
		cfg.S3Bucket = os.Getenv("AWS_S3_BUCKET")
		cfg.S3Region = os.Getenv("AWS_REGION")
		if cfg.S3Region == "" {
			cfg.S3Region = "eu-central-1"
		}
		cfg.AWSAccessKey = os.Getenv("AWS_ACCESS_KEY_ID")
		cfg.AWSSecretKey = os.Getenv("AWS_SECRET_ACCESS_KEY")
		if cfg.S3Bucket == "" {
			return nil, errors.New("AWS_S3_BUCKET is required for the s3 backend")
		}
	}
	return New(cfg)
}

// photoKey builds the storage key: lease and item partition the tree, a
// fresh uuid keeps repeated captures of the same file distinct.
func photoKey(leaseID, itemID, filename string) string {
	return path.Join(sanitize(leaseID), sanitize(itemID), uuid.NewString()+"_"+sanitize(filename))
}

func sanitize(s string) string {
	s = strings.ReplaceAll(s, " ", "_")
	s = strings.ReplaceAll(s, "/", "_")
	s = strings.ReplaceAll(s, "\\", "_")
	return s
}

func contentTypeFor(filename string) string {
	switch strings.ToLower(path.Ext(filename)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".webp":
		return "image/webp"
	case ".heic":
		return "image/heic"
	case ".pdf":
		return "application/pdf"
	default:
		return "application/octet-stream"
	}
}
