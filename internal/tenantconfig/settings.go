package tenantconfig

import (
	"context"
	"errors"
	"strings"
)

// Well-known configuration keys consumed by the isolation pipeline.
const (
	// KeyScopedLabels holds a comma-separated list of tenant-scoped node
	// labels, overriding the global tenancy configuration.
	KeyScopedLabels = "scoped_labels"

	// KeyScopedRelationshipTypes holds a comma-separated list of
	// tenant-scoped relationship types.
	KeyScopedRelationshipTypes = "scoped_relationship_types"

	// KeyTenantProperty overrides the tenant property name.
	KeyTenantProperty = "tenant_property"
)

// Settings is the per-tenant tenancy shape fed to the rewriter and advisor.
type Settings struct {
	Labels            []string
	RelationshipTypes []string
	TenantKey         string
}

// LoadSettings resolves the effective settings for one tenant: defaults
// overridden by whichever well-known keys the tenant has set. A store error
// other than not-found fails the load; guessing at isolation settings is
// not an option.
func LoadSettings(ctx context.Context, store Store, tenantID string, defaults Settings) (Settings, error) {
	out := defaults

	entry, err := store.Get(ctx, tenantID, KeyScopedLabels)
	switch {
	case err == nil:
		out.Labels = splitList(entry.Value)
	case !errors.Is(err, ErrNotFound):
		return Settings{}, err
	}

	entry, err = store.Get(ctx, tenantID, KeyScopedRelationshipTypes)
	switch {
	case err == nil:
		out.RelationshipTypes = splitList(entry.Value)
	case !errors.Is(err, ErrNotFound):
		return Settings{}, err
	}

	entry, err = store.Get(ctx, tenantID, KeyTenantProperty)
	switch {
	case err == nil && entry.Value != "":
		out.TenantKey = entry.Value
	case err != nil && !errors.Is(err, ErrNotFound):
		return Settings{}, err
	}

	return out, nil
}

// splitList parses a comma-separated value, trimming whitespace and
// dropping empties.
func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
