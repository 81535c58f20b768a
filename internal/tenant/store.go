package tenant

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Store persists tenant records.
//
// Implementations must treat IDs as immutable and must never delete rows;
// archival is a status change.
type Store interface {
	// Create inserts a new tenant. Returns ErrTenantExists on ID or
	// domain collision.
	Create(ctx context.Context, t *Tenant) error

	// Get returns the tenant by ID, or ErrTenantNotFound.
	Get(ctx context.Context, id string) (*Tenant, error)

	// GetByDomain returns the tenant owning the given domain/subdomain.
	GetByDomain(ctx context.Context, domain string) (*Tenant, error)

	// UpdateStatus transitions the tenant's status. Returns
	// ErrInvalidTransition when the change is not allowed.
	UpdateStatus(ctx context.Context, id string, status Status) error

	// List returns all tenants ordered by ID.
	List(ctx context.Context) ([]*Tenant, error)
}

// MemoryStore is an in-memory Store for tests and single-process tooling.
type MemoryStore struct {
	mu     sync.RWMutex
	byID   map[string]*Tenant
	byHost map[string]string
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byID:   make(map[string]*Tenant),
		byHost: make(map[string]string),
	}
}

// Create inserts a new tenant.
func (s *MemoryStore) Create(_ context.Context, t *Tenant) error {
	if err := t.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[t.ID]; ok {
		return ErrTenantExists
	}
	if t.Domain != "" {
		if _, ok := s.byHost[t.Domain]; ok {
			return ErrTenantExists
		}
	}
	cp := *t
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now().UTC()
	}
	s.byID[cp.ID] = &cp
	if cp.Domain != "" {
		s.byHost[cp.Domain] = cp.ID
	}
	return nil
}

// Get returns the tenant by ID.
func (s *MemoryStore) Get(_ context.Context, id string) (*Tenant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.byID[id]
	if !ok {
		return nil, ErrTenantNotFound
	}
	cp := *t
	return &cp, nil
}

// GetByDomain returns the tenant owning the given domain.
func (s *MemoryStore) GetByDomain(ctx context.Context, domain string) (*Tenant, error) {
	s.mu.RLock()
	id, ok := s.byHost[domain]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrTenantNotFound
	}
	return s.Get(ctx, id)
}

// UpdateStatus transitions the tenant's status.
func (s *MemoryStore) UpdateStatus(_ context.Context, id string, status Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.byID[id]
	if !ok {
		return ErrTenantNotFound
	}
	if !t.Status.CanTransition(status) {
		return ErrInvalidTransition
	}
	t.Status = status
	return nil
}

// List returns all tenants ordered by ID.
func (s *MemoryStore) List(_ context.Context) ([]*Tenant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Tenant, 0, len(s.byID))
	for _, t := range s.byID {
		cp := *t
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

var _ Store = (*MemoryStore)(nil)
