package tenantconfig

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var defaultSettings = Settings{
	Labels:            []string{"Business"},
	RelationshipTypes: []string{"OWNS"},
	TenantKey:         "tenant_id",
}

func TestLoadSettings_NoOverrides(t *testing.T) {
	got, err := LoadSettings(context.Background(), NewMemoryStore(), "acme-corp", defaultSettings)
	require.NoError(t, err)
	assert.Equal(t, defaultSettings, got)
}

func TestLoadSettings_Overrides(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	require.NoError(t, store.Put(ctx, &Entry{
		TenantID: "acme-corp", Key: KeyScopedLabels, Value: "Business, Person ,Transaction",
	}))
	require.NoError(t, store.Put(ctx, &Entry{
		TenantID: "acme-corp", Key: KeyTenantProperty, Value: "org_id",
	}))

	got, err := LoadSettings(ctx, store, "acme-corp", defaultSettings)
	require.NoError(t, err)
	assert.Equal(t, []string{"Business", "Person", "Transaction"}, got.Labels)
	assert.Equal(t, "org_id", got.TenantKey)
	// Unset keys keep the defaults.
	assert.Equal(t, []string{"OWNS"}, got.RelationshipTypes)
}

func TestLoadSettings_OtherTenantUnaffected(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	require.NoError(t, store.Put(ctx, &Entry{
		TenantID: "globex", Key: KeyScopedLabels, Value: "Invoice",
	}))

	got, err := LoadSettings(ctx, store, "acme-corp", defaultSettings)
	require.NoError(t, err)
	assert.Equal(t, defaultSettings, got)
}

type erroringStore struct {
	Store
	err error
}

func (s *erroringStore) Get(context.Context, string, string) (*Entry, error) {
	return nil, s.err
}

func TestLoadSettings_StoreErrorFailsLoad(t *testing.T) {
	boom := errors.New("connection refused")
	_, err := LoadSettings(context.Background(), &erroringStore{err: boom}, "acme-corp", defaultSettings)
	assert.ErrorIs(t, err, boom)
}
