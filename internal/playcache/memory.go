package playcache

import (
	"context"
	"sync"

	"github.com/jonboulle/clockwork"
)

// MemoryStore is the in-process backend, also the test double.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]Entry
	clock   clockwork.Clock
}

func NewMemoryStore(clock clockwork.Clock) *MemoryStore {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &MemoryStore{entries: make(map[string]Entry), clock: clock}
}

func (s *MemoryStore) Get(ctx context.Context, key string) (Entry, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	return e, ok, nil
}

func (s *MemoryStore) Put(ctx context.Context, key string, u Update) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = merge(s.entries[key], u, s.clock.Now())
	return nil
}
