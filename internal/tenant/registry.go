package tenant

import (
	"context"
	"fmt"
	"time"
)

// Registry wraps a Store with provisioning and lifecycle operations and is
// the component that turns a resolved tenant ID into a usable Context.
type Registry struct {
	store Store
}

// NewRegistry creates a registry over the given store.
func NewRegistry(store Store) *Registry {
	return &Registry{store: store}
}

// Provision creates a new active tenant.
func (r *Registry) Provision(ctx context.Context, id, displayName, domain string) (*Tenant, error) {
	t := &Tenant{
		ID:          id,
		DisplayName: displayName,
		Domain:      domain,
		Status:      StatusActive,
		CreatedAt:   time.Now().UTC(),
	}
	if err := r.store.Create(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

// Suspend transitions a tenant to suspended.
func (r *Registry) Suspend(ctx context.Context, id string) error {
	return r.store.UpdateStatus(ctx, id, StatusSuspended)
}

// Reactivate transitions a suspended tenant back to active.
func (r *Registry) Reactivate(ctx context.Context, id string) error {
	return r.store.UpdateStatus(ctx, id, StatusActive)
}

// Archive transitions a tenant to its terminal archived state.
// The record is kept to preserve audit continuity.
func (r *Registry) Archive(ctx context.Context, id string) error {
	return r.store.UpdateStatus(ctx, id, StatusArchived)
}

// Get returns the tenant by ID.
func (r *Registry) Get(ctx context.Context, id string) (*Tenant, error) {
	return r.store.Get(ctx, id)
}

// List returns all tenants.
func (r *Registry) List(ctx context.Context) ([]*Tenant, error) {
	return r.store.List(ctx)
}

// Resolve turns a resolved tenant ID into a request Context.
// Only active tenants may do work; suspended and archived tenants are
// refused before any query reaches the gate.
func (r *Registry) Resolve(ctx context.Context, id string) (*Context, error) {
	if err := ValidateID(id); err != nil {
		return nil, err
	}
	t, err := r.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if t.Status != StatusActive {
		return nil, fmt.Errorf("%w: tenant %q is %s", ErrTenantNotActive, t.ID, t.Status)
	}
	return &Context{TenantID: t.ID}, nil
}
