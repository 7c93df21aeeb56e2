// Package archive keeps every published report keyed by run so history can
// be listed in chronological order.
package archive

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"
)

// Entry is one archived run.
type Entry struct {
	RunID      string          `json:"runId"`
	CreatedAt  int64           `json:"createdAt"` // unix nanos
	Digest     string          `json:"digest"`
	OrderCount int             `json:"orderCount"`
	Dropped    int             `json:"dropped"`
	Report     json.RawMessage `json:"report"`
}

// Key returns the chronological key run/<unix-nanos>/<run-id>.
func (e Entry) Key() string { return fmt.Sprintf("run/%020d/%s", e.CreatedAt, e.RunID) }

// Store abstracts the archive backend.
type Store interface {
	Put(e Entry) error
	Get(runID string) (Entry, bool)
	// Has reports whether runID is archived; unlike Get it surfaces read errors.
	Has(runID string) (bool, error)
	// Range visits entries oldest first.
	Range(fn func(e Entry) error) error
	Latest() (Entry, bool)
}

// InMemoryStore is a simple thread-safe map store.
type InMemoryStore struct {
	mu   sync.RWMutex
	data map[string]Entry
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{data: make(map[string]Entry)}
}

func (s *InMemoryStore) Put(e Entry) error {
	if e.RunID == "" {
		return fmt.Errorf("put: empty run id")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[e.RunID] = e
	return nil
}

func (s *InMemoryStore) Get(runID string) (Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.data[runID]
	return e, ok
}

func (s *InMemoryStore) Has(runID string) (bool, error) {
	_, ok := s.Get(runID)
	return ok, nil
}

func (s *InMemoryStore) sorted() []Entry {
	s.mu.RLock()
	out := make([]Entry, 0, len(s.data))
	for _, e := range s.data {
		out = append(out, e)
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Key() < out[j].Key() })
	return out
}

func (s *InMemoryStore) Range(fn func(e Entry) error) error {
	for _, e := range s.sorted() {
		if err := fn(e); err != nil {
			return fmt.Errorf("range callback failed: %w", err)
		}
	}
	return nil
}

func (s *InMemoryStore) Latest() (Entry, bool) {
	all := s.sorted()
	if len(all) == 0 {
		return Entry{}, false
	}
	return all[len(all)-1], true
}
