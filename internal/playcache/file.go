package playcache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/jonboulle/clockwork"
)

// FileStore keeps the whole cache in one JSON file, written atomically
// via a temp file and rename. Individual corrupt values decode as
// misses so one bad entry cannot poison the rest.
type FileStore struct {
	mu      sync.Mutex
	path    string
	entries map[string]json.RawMessage
	clock   clockwork.Clock
}

func NewFileStore(path string, clock clockwork.Clock) (*FileStore, error) {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	s := &FileStore{path: path, entries: make(map[string]json.RawMessage), clock: clock}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return s, nil
		}
		return nil, fmt.Errorf("read cache file: %w", err)
	}
	if len(data) == 0 {
		return s, nil
	}
	if err := json.Unmarshal(data, &s.entries); err != nil {
		// A mangled file is a disposable cache lost, not a failure.
		s.entries = make(map[string]json.RawMessage)
	}
	return s, nil
}

func (s *FileStore) Get(ctx context.Context, key string) (Entry, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	raw, ok := s.entries[key]
	if !ok {
		return Entry{}, false, nil
	}
	var e Entry
	if err := json.Unmarshal(raw, &e); err != nil {
		return Entry{}, false, nil
	}
	return e, true, nil
}

func (s *FileStore) Put(ctx context.Context, key string, u Update) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var e Entry
	if raw, ok := s.entries[key]; ok {
		// Corrupt existing value: start over from zero.
		_ = json.Unmarshal(raw, &e)
	}
	e = merge(e, u, s.clock.Now())

	raw, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode cache entry: %w", err)
	}
	s.entries[key] = raw
	return s.save()
}

func (s *FileStore) save() error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o750); err != nil {
		return fmt.Errorf("mkdir: %w", err)
	}
	data, err := json.MarshalIndent(s.entries, "", "  ")
	if err != nil {
		return fmt.Errorf("encode cache: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write tmp cache: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("rename cache: %w", err)
	}
	return nil
}
