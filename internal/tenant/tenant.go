package tenant

import (
	"errors"
	"fmt"
	"time"
)

// Status is the administrative lifecycle state of a tenant.
type Status string

const (
	// StatusActive allows the tenant's requests through the gate.
	StatusActive Status = "active"
	// StatusSuspended refuses new work but keeps data intact.
	StatusSuspended Status = "suspended"
	// StatusArchived is terminal. Tenants are never physically deleted,
	// preserving audit continuity.
	StatusArchived Status = "archived"
)

// Lifecycle errors.
var (
	// ErrTenantNotFound is returned when a tenant does not exist.
	ErrTenantNotFound = errors.New("tenant not found")

	// ErrTenantExists is returned when provisioning an already-known ID or domain.
	ErrTenantExists = errors.New("tenant already exists")

	// ErrTenantNotActive is returned when a non-active tenant requests work.
	ErrTenantNotActive = errors.New("tenant is not active")

	// ErrInvalidTransition is returned for a disallowed status change.
	ErrInvalidTransition = errors.New("invalid status transition")
)

// Tenant is an isolated customer/organization record.
//
// The ID is stable and immutable once created. Status transitions are
// administrative operations; archived is terminal.
type Tenant struct {
	ID          string
	DisplayName string
	Domain      string
	Status      Status
	CreatedAt   time.Time
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusSuspended, StatusArchived:
		return true
	}
	return false
}

// CanTransition reports whether a status change from s to next is allowed.
// Archived is terminal; everything else moves freely between active and
// suspended or down to archived.
func (s Status) CanTransition(next Status) bool {
	if !next.Valid() || s == next {
		return false
	}
	return s != StatusArchived
}

// Validate checks tenant invariants before persistence.
func (t *Tenant) Validate() error {
	if err := ValidateID(t.ID); err != nil {
		return err
	}
	if t.DisplayName == "" {
		return fmt.Errorf("%w: display name required", ErrInvalidTenant)
	}
	if !t.Status.Valid() {
		return fmt.Errorf("%w: unknown status %q", ErrInvalidTenant, t.Status)
	}
	return nil
}
