package relationship

import (
	"context"
	"sync"
)

// MemoryStore is an in-process Store for tests and keyless local runs.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]Record
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]Record)}
}

// Read returns the stored record, or the zero record for unknown IDs.
func (s *MemoryStore) Read(_ context.Context, conversationID string) (Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.records[conversationID], nil
}

// Write replaces the whole tuple.
func (s *MemoryStore) Write(_ context.Context, conversationID string, rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[conversationID] = rec
	return nil
}
