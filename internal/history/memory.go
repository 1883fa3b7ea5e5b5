package history

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps history in process, for tests and keyless demo runs.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string][]Entry
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string][]Entry)}
}

func (s *MemoryStore) Append(_ context.Context, conversationID string, entries ...Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, entry := range entries {
		if entry.CreatedAt.IsZero() {
			entry.CreatedAt = time.Now()
		}
		s.entries[conversationID] = append(s.entries[conversationID], entry)
	}
	return nil
}

func (s *MemoryStore) Recent(_ context.Context, conversationID string, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 10
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	all := s.entries[conversationID]
	if len(all) > limit {
		all = all[len(all)-limit:]
	}
	out := make([]Entry, len(all))
	copy(out, all)
	return out, nil
}
