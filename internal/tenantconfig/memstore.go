package tenantconfig

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// MemoryStore is an in-memory Store for tests and single-process tooling.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]*Entry // keyed by tenantID + "\x00" + key
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]*Entry)}
}

func memKey(tenantID, key string) string {
	return tenantID + "\x00" + key
}

// Get returns one entry, or ErrNotFound.
func (s *MemoryStore) Get(_ context.Context, tenantID, key string) (*Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entries[memKey(tenantID, key)]
	if !ok {
		return nil, fmt.Errorf("%w: %s/%s", ErrNotFound, tenantID, key)
	}
	cp := *e
	return &cp, nil
}

// Put creates or replaces an entry.
func (s *MemoryStore) Put(_ context.Context, entry *Entry) error {
	if err := entry.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidEntry, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *entry
	cp.UpdatedAt = time.Now().UTC()
	s.entries[memKey(entry.TenantID, entry.Key)] = &cp
	return nil
}

// Delete removes an entry if present.
func (s *MemoryStore) Delete(_ context.Context, tenantID, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.entries, memKey(tenantID, key))
	return nil
}

// List returns all entries for a tenant, ordered by key.
func (s *MemoryStore) List(_ context.Context, tenantID string) ([]*Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*Entry
	for _, e := range s.entries {
		if e.TenantID == tenantID {
			cp := *e
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}
