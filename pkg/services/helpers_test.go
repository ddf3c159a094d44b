package services

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/adampresley/familybook/pkg/storage"
)

const testBaseURL = "https://photos.example.com/family"

var testCreatedAt = time.Date(2025, 12, 24, 18, 30, 0, 0, time.UTC)

// scriptedBlobStore wraps a memory store with per-prefix delays and failures.
type scriptedBlobStore struct {
	storage.MemoryBlobStore

	delays   map[string]time.Duration
	failures map[string]error
	calls    *atomic.Int32
}

func newScriptedBlobStore(store storage.MemoryBlobStore) scriptedBlobStore {
	return scriptedBlobStore{
		MemoryBlobStore: store,
		delays:          map[string]time.Duration{},
		failures:        map[string]error{},
		calls:           &atomic.Int32{},
	}
}

func (s scriptedBlobStore) ListBlobsByPrefix(ctx context.Context, prefix string) ([]storage.Blob, error) {
	s.calls.Add(1)

	if delay, ok := s.delays[prefix]; ok {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if err, ok := s.failures[prefix]; ok {
		return nil, err
	}

	return s.MemoryBlobStore.ListBlobsByPrefix(ctx, prefix)
}

// familyStore seeds the two-album scenario used across the suite.
func familyStore() storage.MemoryBlobStore {
	store := storage.NewMemoryBlobStore()

	store.Put("natale-2025/cover.jpg", 100, testCreatedAt)
	store.Put("natale-2025/natale.png", 2048, testCreatedAt)
	store.Put("natale-2025/natale-jones.png", 4096, testCreatedAt)
	store.Put("estate-2024/cover.jpg", 100, testCreatedAt)
	store.Put("estate-2024/foto1.jpg", 1024, testCreatedAt)

	return store
}

func newTestGalleryService(store storage.BlobStore) GalleryService {
	return NewGalleryService(GalleryServiceConfig{
		AlbumAssembler: NewAlbumAssembler(AlbumAssemblerConfig{BaseURL: testBaseURL}),
		BaseURL:        testBaseURL,
		PhotoRepository: NewPhotoRepository(PhotoRepositoryConfig{
			BaseURL:   testBaseURL,
			BlobStore: store,
		}),
	})
}
