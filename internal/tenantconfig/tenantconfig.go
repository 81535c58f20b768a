// Package tenantconfig stores and serves per-tenant isolation settings:
// which labels are tenant-scoped, the tenant property name, and free-form
// operational keys. Reads go through a TTL cache so the rewrite hot path
// never waits on the backing store for warm entries.
package tenantconfig

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when a config key does not exist for a tenant.
	ErrNotFound = errors.New("tenant config entry not found")

	// ErrInvalidEntry is returned when an entry fails validation.
	ErrInvalidEntry = errors.New("invalid tenant config entry")
)

// Entry is one configuration key for one tenant.
type Entry struct {
	TenantID    string    `json:"tenant_id"`
	Key         string    `json:"key"`
	Value       string    `json:"value"`
	Description string    `json:"description,omitempty"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Validate checks the entry fields that every store requires.
func (e *Entry) Validate() error {
	if e.TenantID == "" {
		return errors.New("tenant config entry: tenant id is required")
	}
	if e.Key == "" {
		return errors.New("tenant config entry: key is required")
	}
	return nil
}

// Store persists tenant configuration entries.
type Store interface {
	// Get returns one entry, or ErrNotFound.
	Get(ctx context.Context, tenantID, key string) (*Entry, error)

	// Put creates or replaces an entry.
	Put(ctx context.Context, entry *Entry) error

	// Delete removes an entry. Deleting a missing entry is not an error.
	Delete(ctx context.Context, tenantID, key string) error

	// List returns all entries for a tenant, ordered by key.
	List(ctx context.Context, tenantID string) ([]*Entry, error)
}
