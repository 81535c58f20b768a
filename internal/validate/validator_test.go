package validate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/halcyondata/graphgate/internal/tenant"
)

func testContext(t *testing.T) *tenant.Context {
	t.Helper()
	tctx, err := tenant.NewContext("acme-corp")
	require.NoError(t, err)
	tctx.Actor = "svc-api"
	return tctx
}

func testValidator(t *testing.T) *Validator {
	t.Helper()
	v, err := New("tenant_id", DefaultRules("tenant_id"))
	require.NoError(t, err)
	return v
}

func TestCheck_AllowsPlainQuery(t *testing.T) {
	v := testValidator(t)
	verdict, err := v.Check(testContext(t), "MATCH (b:Business) WHERE b.city = $city RETURN b", nil)
	require.NoError(t, err)
	assert.True(t, verdict.Allowed())
	assert.Empty(t, verdict.RuleID)
	assert.Len(t, verdict.Fingerprint, 16)
}

func TestCheck_Rejections(t *testing.T) {
	v := testValidator(t)
	tests := []struct {
		name   string
		query  string
		ruleID string
	}{
		{
			"multi statement",
			"MATCH (b:Business) RETURN b; MATCH (p:Person) RETURN p",
			"multi-statement",
		},
		{
			"union",
			"MATCH (b:Business) RETURN b.name UNION MATCH (p:Person) RETURN p.name",
			"union-clause",
		},
		{
			"lowercase union",
			"MATCH (b:Business) RETURN b.name union MATCH (p:Person) RETURN p.name",
			"union-clause",
		},
		{
			"string concatenation",
			`MATCH (b:Business) WHERE b.name = 'acme' + $suffix RETURN b`,
			"string-concatenation",
		},
		{
			"db procedure",
			"CALL db.labels()",
			"admin-procedure",
		},
		{
			"apoc procedure",
			"CALL apoc.cypher.run($q, {}) YIELD value RETURN value",
			"admin-procedure",
		},
		{
			"load csv",
			"LOAD CSV FROM $url AS row CREATE (b:Business {name: row[0]})",
			"load-csv",
		},
		{
			"set tenant property",
			"MATCH (b:Business) SET b.tenant_id = $other RETURN b",
			"tenant-property-set",
		},
		{
			"remove tenant property",
			"MATCH (b:Business) REMOVE b.tenant_id RETURN b",
			"tenant-property-remove",
		},
		{
			"backquoted tenant key in map",
			"CREATE (b:Business {`tenant_id`: $other}) RETURN b",
			"tenant-property-quoted-key",
		},
		{
			"merge tenant property into map",
			"MATCH (b:Business) SET b += {name: $name, tenant_id: $victim} RETURN b",
			"tenant-property-set-map",
		},
		{
			"replace properties with map",
			"MATCH (b:Business) SET b = {tenant_id: $victim} RETURN b",
			"tenant-property-set-map",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			verdict, err := v.Check(testContext(t), tt.query, nil)
			require.ErrorIs(t, err, ErrSecurityViolation)
			assert.False(t, verdict.Allowed())
			assert.Equal(t, tt.ruleID, verdict.RuleID)
			assert.Equal(t, "high", verdict.Severity)
		})
	}
}

func TestCheck_LiteralsDoNotTripMaskedRules(t *testing.T) {
	v := testValidator(t)
	queries := []string{
		`MATCH (b:Business {motto: 'union; call db.labels()'}) RETURN b`,
		`MATCH (b:Business) WHERE b.note = 'set b.tenant_id = x' RETURN b`,
		`MATCH (b:Business) WHERE b.note = 'SET b += {tenant_id: x}' RETURN b`,
	}
	for _, q := range queries {
		verdict, err := v.Check(testContext(t), q, nil)
		require.NoError(t, err, q)
		assert.True(t, verdict.Allowed(), q)
	}
}

func TestCheck_SetParamCarryingTenantKey(t *testing.T) {
	v := testValidator(t)
	tctx := testContext(t)

	rejected := []map[string]any{
		{"props": map[string]any{"name": "Acme", "tenant_id": "victim-corp"}},
		{"props": map[string]any{"meta": map[string]any{"tenant_id": "victim-corp"}}},
		{"props": map[string]any{"batch": []any{map[string]any{"tenant_id": "victim-corp"}}}},
	}
	for _, params := range rejected {
		verdict, err := v.Check(tctx, "MATCH (b:Business) SET b += $props RETURN b", params)
		require.ErrorIs(t, err, ErrSecurityViolation)
		assert.Equal(t, ParamSetRuleID, verdict.RuleID)
	}

	// Whole-entity replacement is screened the same way.
	verdict, err := v.Check(tctx, "MATCH (b:Business) SET b = $props RETURN b",
		map[string]any{"props": map[string]any{"tenant_id": "victim-corp"}})
	require.ErrorIs(t, err, ErrSecurityViolation)
	assert.Equal(t, ParamSetRuleID, verdict.RuleID)

	// Parameters without the tenant key pass.
	verdict, err = v.Check(tctx, "MATCH (b:Business) SET b += $props RETURN b",
		map[string]any{"props": map[string]any{"name": "Acme"}})
	require.NoError(t, err)
	assert.True(t, verdict.Allowed())

	// Single-property SETs with scalar parameters are unaffected.
	verdict, err = v.Check(tctx, "MATCH (b:Business) SET b.name = $name RETURN b",
		map[string]any{"name": "Acme"})
	require.NoError(t, err)
	assert.True(t, verdict.Allowed())
}

func TestCheck_CrossTenantExemptsProcedures(t *testing.T) {
	v := testValidator(t)
	tctx := testContext(t)
	tctx.CrossTenant = true

	verdict, err := v.Check(tctx, "CALL db.indexes()", nil)
	require.NoError(t, err)
	assert.True(t, verdict.Allowed())

	// The grant does not exempt the other rules.
	verdict, err = v.Check(tctx, "MATCH (b:Business) SET b.tenant_id = $x RETURN b", nil)
	require.ErrorIs(t, err, ErrSecurityViolation)
	assert.Equal(t, "tenant-property-set", verdict.RuleID)
}

func TestCheck_MissingContext(t *testing.T) {
	v := testValidator(t)
	verdict, err := v.Check(nil, "MATCH (b:Business) RETURN b", nil)
	require.ErrorIs(t, err, ErrSecurityViolation)
	assert.False(t, verdict.Allowed())
}

func TestCheck_CustomTenantKey(t *testing.T) {
	v, err := New("org_id", DefaultRules("org_id"))
	require.NoError(t, err)

	verdict, err := v.Check(testContext(t), "MATCH (b:Business) SET b.org_id = $x RETURN b", nil)
	require.ErrorIs(t, err, ErrSecurityViolation)
	assert.Equal(t, "tenant-property-set", verdict.RuleID)

	// tenant_id is not the tenant key here, so writing it is ordinary data.
	verdict, err = v.Check(testContext(t), "MATCH (b:Business) SET b.tenant_id = $x RETURN b", nil)
	require.NoError(t, err)
	assert.True(t, verdict.Allowed())

	// Parameter screening follows the custom key too.
	verdict, err = v.Check(testContext(t), "MATCH (b:Business) SET b += $props RETURN b",
		map[string]any{"props": map[string]any{"org_id": "victim-corp"}})
	require.ErrorIs(t, err, ErrSecurityViolation)
	assert.Equal(t, ParamSetRuleID, verdict.RuleID)
}

func TestNew_RejectsBadRules(t *testing.T) {
	_, err := New("tenant_id", []Rule{{ID: "broken", Pattern: "("}})
	assert.Error(t, err)

	_, err = New("tenant_id", []Rule{{Pattern: "x"}})
	assert.Error(t, err)
}

func TestFingerprint_Stable(t *testing.T) {
	a := Fingerprint("MATCH (b:Business) RETURN b")
	b := Fingerprint("MATCH (b:Business) RETURN b")
	c := Fingerprint("MATCH (p:Person) RETURN p")
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, 16)
}
