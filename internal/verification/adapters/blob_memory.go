package adapters

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sync"

	"firmo/pkg/platform/sentinel"
)

// MemoryBlobStore keeps captured media in memory, content-addressed by
// SHA-256. Storing the same bytes twice returns the same key without a second
// copy, which is what keeps step resubmission idempotent.
type MemoryBlobStore struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

func NewMemoryBlobStore() *MemoryBlobStore {
	return &MemoryBlobStore{blobs: make(map[string][]byte)}
}

func (s *MemoryBlobStore) Put(_ context.Context, data []byte, _ string) (string, error) {
	key := contentKey(data)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.blobs[key]; !exists {
		stored := make([]byte, len(data))
		copy(stored, data)
		s.blobs[key] = stored
	}
	return key, nil
}

func (s *MemoryBlobStore) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.blobs[key]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

// Len reports the number of distinct blobs held. Used by tests to assert
// that resubmission did not duplicate storage.
func (s *MemoryBlobStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.blobs)
}

func contentKey(data []byte) string {
	sum := sha256.Sum256(data)
	return "sha256:" + hex.EncodeToString(sum[:])
}
