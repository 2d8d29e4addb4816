package storage

import (
	"context"
	"fmt"
	"io"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Photo is one file in a batch upload.
type Photo struct {
	Filename string
	Data     io.Reader
}

// BatchUploader uploads a capture session's photos concurrently. The batch
// is all or nothing: if any upload fails, the ones that landed are removed
// and no refs are returned, so the ledger never records a half batch.
type BatchUploader struct {
	store       PhotoStore
	log         *zap.Logger
	concurrency int
}

func NewBatchUploader(store PhotoStore, logger *zap.Logger) *BatchUploader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BatchUploader{store: store, log: logger.Named("uploader"), concurrency: 4}
}

// Upload returns refs in the same order as photos.
func (u *BatchUploader) Upload(ctx context.Context, leaseID, itemID string, photos []Photo) ([]string, error) {
	if len(photos) == 0 {
		return nil, fmt.Errorf("empty photo batch for %s", itemID)
	}

	refs := make([]string, len(photos))
	var mu sync.Mutex
	var uploaded []string

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(u.concurrency)
	for i, p := range photos {
		i, p := i, p
		g.Go(func() error {
			ref, err := u.store.Put(gctx, leaseID, itemID, p.Filename, p.Data)
			if err != nil {
				return fmt.Errorf("upload %s: %w", p.Filename, err)
			}
			refs[i] = ref
			mu.Lock()
			uploaded = append(uploaded, ref)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		u.rollback(ctx, uploaded)
		return nil, err
	}

	u.log.Info("photo batch stored",
		zap.String("leaseId", leaseID),
		zap.String("itemId", itemID),
		zap.Int("count", len(refs)))
	return refs, nil
}

func (u *BatchUploader) rollback(ctx context.Context, refs []string) {
	for _, ref := range refs {
		if err := u.store.Delete(ctx, ref); err != nil {
			u.log.Warn("rollback delete failed", zap.String("ref", ref), zap.Error(err))
		}
	}
}
