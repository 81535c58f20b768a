package tenant

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromContext_Missing(t *testing.T) {
	_, err := FromContext(context.Background())
	require.ErrorIs(t, err, ErrMissingContext)
	assert.False(t, Has(context.Background()))
}

func TestFromContext_RoundTrip(t *testing.T) {
	tc, err := NewContext("acme-corp")
	require.NoError(t, err)

	ctx := WithContext(context.Background(), tc)
	got, err := FromContext(ctx)
	require.NoError(t, err)
	assert.Equal(t, "acme-corp", got.TenantID)
	assert.True(t, Has(ctx))
}

func TestFromContext_NilValue(t *testing.T) {
	ctx := WithContext(context.Background(), nil)
	_, err := FromContext(ctx)
	require.ErrorIs(t, err, ErrMissingContext)
}

func TestValidateID(t *testing.T) {
	tests := []struct {
		name    string
		id      string
		wantErr bool
	}{
		{"simple", "acme", false},
		{"hyphenated", "acme-corp", false},
		{"underscored", "tech_startup", false},
		{"digits", "tenant42", false},
		{"single char", "a", false},
		{"empty", "", true},
		{"uppercase", "Acme", true},
		{"leading hyphen", "-acme", true},
		{"path characters", "../etc", true},
		{"spaces", "acme corp", true},
		{"too long", "a123456789012345678901234567890123456789012345678901234567890123456789", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateID(tt.id)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidTenant)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestContext_Validate(t *testing.T) {
	tc := &Context{TenantID: ""}
	require.ErrorIs(t, tc.Validate(), ErrInvalidTenant)

	tc = &Context{TenantID: "acme-corp", Actor: "alice", CrossTenant: true}
	require.NoError(t, tc.Validate())
}
