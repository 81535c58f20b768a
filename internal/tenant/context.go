// Package tenant provides the request-scoped tenant context and the tenant
// registry used by every isolation component.
package tenant

import (
	"context"
	"errors"
	"fmt"
	"regexp"
)

// Tenant isolation error types - fail closed security model.
var (
	// ErrMissingContext is returned when tenant context is absent.
	// An absent context never translates into an unfiltered query.
	ErrMissingContext = errors.New("tenant context missing")

	// ErrInvalidTenant is returned when a tenant identifier is invalid.
	ErrInvalidTenant = errors.New("invalid tenant identifier")
)

// identifierPattern matches valid tenant identifiers: lowercase alphanumeric
// with hyphens and underscores, 1-64 chars, no leading/trailing separator.
var identifierPattern = regexp.MustCompile(`^[a-z0-9](?:[a-z0-9_-]{0,62}[a-z0-9])?$`)

// ValidateID checks that a tenant ID conforms to the expected format.
func ValidateID(id string) error {
	if id == "" {
		return fmt.Errorf("%w: empty", ErrInvalidTenant)
	}
	if !identifierPattern.MatchString(id) {
		return fmt.Errorf("%w: must be lowercase alphanumeric with hyphens/underscores (1-64 chars)", ErrInvalidTenant)
	}
	return nil
}

// contextKey is the context key for Context.
type contextKey struct{}

// Context holds the tenant identity for one unit of work.
//
// A Context is established once at the request-handling boundary, is
// immutable for the lifetime of that unit of work, and is passed explicitly
// through context.Context. It is never a shared mutable global - each
// concurrent request owns its own instance.
type Context struct {
	// TenantID is the isolated customer/organization identifier (required).
	TenantID string

	// Actor is the acting principal, if known (optional).
	Actor string

	// CrossTenant marks an elevated context used only by cross-tenant
	// analytics/aggregation callers. It relaxes validator rules that
	// would otherwise reject administrative operators; it never disables
	// predicate injection.
	CrossTenant bool
}

// Validate checks that required fields are present and well formed.
func (c *Context) Validate() error {
	return ValidateID(c.TenantID)
}

// NewContext constructs a validated tenant context.
func NewContext(tenantID string) (*Context, error) {
	c := &Context{TenantID: tenantID}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// WithContext attaches a tenant context to ctx.
func WithContext(ctx context.Context, tc *Context) context.Context {
	return context.WithValue(ctx, contextKey{}, tc)
}

// FromContext extracts the tenant context from ctx.
// Returns ErrMissingContext if not present - fail closed.
func FromContext(ctx context.Context) (*Context, error) {
	val := ctx.Value(contextKey{})
	if val == nil {
		return nil, ErrMissingContext
	}
	tc, ok := val.(*Context)
	if !ok || tc == nil {
		return nil, ErrMissingContext
	}
	return tc, nil
}

// Has reports whether a tenant context is present in ctx.
func Has(ctx context.Context) bool {
	_, err := FromContext(ctx)
	return err == nil
}
