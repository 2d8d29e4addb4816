package storage

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
)

func TestLocalStoreRoundTrip(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalStore: %v", err)
	}

	ref, err := store.Put(context.Background(), "lease-1", "wall living", "before shot.jpg", strings.NewReader("jpegdata"))
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if strings.Contains(ref, " ") {
		t.Fatalf("ref %q not sanitized", ref)
	}
	if !strings.HasPrefix(ref, "lease-1/wall_living/") {
		t.Fatalf("ref %q not partitioned by lease and item", ref)
	}

	rc, err := store.Get(context.Background(), ref)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	defer rc.Close()
	data, _ := io.ReadAll(rc)
	if string(data) != "jpegdata" {
		t.Fatalf("data = %q", data)
	}

	if u := store.URL(ref); !strings.HasPrefix(u, "file://") {
		t.Fatalf("URL = %q", u)
	}

	if err := store.Delete(context.Background(), ref); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := store.Get(context.Background(), ref); err == nil {
		t.Fatal("Get succeeded after Delete")
	}
	// Deleting a missing ref is not an error.
	if err := store.Delete(context.Background(), ref); err != nil {
		t.Fatalf("second Delete: %v", err)
	}
}

func TestPhotoKeysAreUniquePerUpload(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalStore: %v", err)
	}
	r1, _ := store.Put(context.Background(), "l", "i", "same.jpg", strings.NewReader("a"))
	r2, _ := store.Put(context.Background(), "l", "i", "same.jpg", strings.NewReader("b"))
	if r1 == r2 {
		t.Fatalf("two uploads of the same filename share ref %q", r1)
	}
}

// flakyStore fails the nth Put and records deletes.
type flakyStore struct {
	mu      sync.Mutex
	puts    int
	failAt  int
	deleted []string
}

func (s *flakyStore) Put(ctx context.Context, leaseID, itemID, filename string, data io.Reader) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.puts++
	if s.puts == s.failAt {
		return "", errors.New("disk full")
	}
	return "ref-" + filename, nil
}

func (s *flakyStore) Get(ctx context.Context, ref string) (io.ReadCloser, error) {
	return nil, errors.New("not implemented")
}

func (s *flakyStore) Delete(ctx context.Context, ref string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleted = append(s.deleted, ref)
	return nil
}

func (s *flakyStore) URL(ref string) string { return ref }

func TestBatchUploadAllOrNothing(t *testing.T) {
	store := &flakyStore{failAt: 2}
	u := NewBatchUploader(store, nil)

	refs, err := u.Upload(context.Background(), "lease-1", "wall", []Photo{
		{Filename: "a.jpg", Data: strings.NewReader("a")},
		{Filename: "b.jpg", Data: strings.NewReader("b")},
		{Filename: "c.jpg", Data: strings.NewReader("c")},
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if refs != nil {
		t.Fatalf("refs = %v, want nil on failure", refs)
	}
	store.mu.Lock()
	deleted := len(store.deleted)
	store.mu.Unlock()
	if deleted == 0 {
		t.Fatal("successful uploads were not rolled back")
	}
}

func TestBatchUploadPreservesOrder(t *testing.T) {
	store := &flakyStore{}
	u := NewBatchUploader(store, nil)

	refs, err := u.Upload(context.Background(), "lease-1", "wall", []Photo{
		{Filename: "a.jpg", Data: strings.NewReader("a")},
		{Filename: "b.jpg", Data: strings.NewReader("b")},
		{Filename: "c.jpg", Data: strings.NewReader("c")},
	})
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	want := []string{"ref-a.jpg", "ref-b.jpg", "ref-c.jpg"}
	for i := range want {
		if refs[i] != want[i] {
			t.Fatalf("refs = %v, want %v", refs, want)
		}
	}
}

func TestBatchUploadRejectsEmptyBatch(t *testing.T) {
	u := NewBatchUploader(&flakyStore{}, nil)
	if _, err := u.Upload(context.Background(), "lease-1", "wall", nil); err == nil {
		t.Fatal("expected error for empty batch")
	}
}

func TestContentTypeFor(t *testing.T) {
	cases := map[string]string{
		"a.jpg":  "image/jpeg",
		"a.JPEG": "image/jpeg",
		"a.png":  "image/png",
		"a.webp": "image/webp",
		"a.pdf":  "application/pdf",
		"a.bin":  "application/octet-stream",
	}
	for in, want := range cases {
		if got := contentTypeFor(in); got != want {
			t.Errorf("contentTypeFor(%q) = %q, want %q", in, got, want)
		}
	}
}
