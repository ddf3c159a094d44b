package storage

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
)

/*
MemoryBlobStore keeps blobs in a map. It backs the "memory" provider
and the test suites.
*/
type MemoryBlobStore struct {
	mu    *sync.RWMutex
	blobs map[string]Blob
}

func NewMemoryBlobStore() MemoryBlobStore {
	return MemoryBlobStore{
		mu:    &sync.RWMutex{},
		blobs: map[string]Blob{},
	}
}

// Put inserts or replaces a blob.
func (s MemoryBlobStore) Put(key string, size int64, createdAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.blobs[key] = Blob{
		Key:       key,
		Size:      size,
		CreatedAt: createdAt,
	}
}

func (s MemoryBlobStore) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.blobs, key)
}

func (s MemoryBlobStore) ListPrefixes(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := map[string]struct{}{}
	result := []string{}

	for key := range s.blobs {
		index := strings.Index(key, Separator)
		if index <= 0 {
			continue
		}

		prefix := key[:index+1]

		if _, ok := seen[prefix]; !ok {
			seen[prefix] = struct{}{}
			result = append(result, prefix)
		}
	}

	sort.Strings(result)
	return result, nil
}

func (s MemoryBlobStore) ListBlobsByPrefix(ctx context.Context, prefix string) ([]Blob, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	result := []Blob{}

	for key, blob := range s.blobs {
		if strings.HasPrefix(key, prefix) {
			result = append(result, blob)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Key < result[j].Key
	})

	return result, nil
}
