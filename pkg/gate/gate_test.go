package gate

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/halcyondata/graphgate/internal/audit"
	"github.com/halcyondata/graphgate/internal/executor"
	"github.com/halcyondata/graphgate/internal/rewrite"
	"github.com/halcyondata/graphgate/internal/tenant"
	"github.com/halcyondata/graphgate/internal/validate"
)

type harness struct {
	gate *Gate
	exec *executor.Fake
	sink *audit.MemorySink
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	exec := executor.NewFake()
	sink := audit.NewMemorySink()
	g, err := New(Config{
		Rewriter: rewrite.New(rewrite.Config{
			Labels:            []string{"Business", "Person"},
			RelationshipTypes: []string{"OWNS"},
		}),
		Validator: validate.MustNew("tenant_id", validate.DefaultRules("tenant_id")),
		Executor:  exec,
		Audit:     sink,
	})
	require.NoError(t, err)
	return &harness{gate: g, exec: exec, sink: sink}
}

func tenantCtx(t *testing.T, id string) context.Context {
	t.Helper()
	tctx, err := tenant.NewContext(id)
	require.NoError(t, err)
	return tenant.WithContext(context.Background(), tctx)
}

func TestRun_RewritesBeforeExecuting(t *testing.T) {
	h := newHarness(t)
	ctx := tenantCtx(t, "acme-corp")

	_, err := h.gate.Run(ctx, "MATCH (b:Business) RETURN b", nil)
	require.NoError(t, err)

	calls := h.exec.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "MATCH (b:Business) WHERE b.tenant_id = $gg_tenant_id RETURN b", calls[0].Query)
	assert.Equal(t, "acme-corp", calls[0].Params["gg_tenant_id"])

	// Both pipeline stages were audited.
	events := h.sink.Events()
	require.Len(t, events, 2)
	assert.Equal(t, "validate", events[0].Stage)
	assert.Equal(t, "allow", events[0].Decision)
	assert.Equal(t, "rewrite", events[1].Stage)
	assert.Equal(t, "allow", events[1].Decision)
}

func TestRun_MissingTenantContext(t *testing.T) {
	h := newHarness(t)

	_, err := h.gate.Run(context.Background(), "MATCH (b:Business) RETURN b", nil)
	require.ErrorIs(t, err, ErrRejected)
	assert.Empty(t, h.exec.Calls())

	// The refusal is audited, with no tenant identity to attribute it to.
	events := h.sink.Events()
	require.Len(t, events, 1)
	assert.Equal(t, "context", events[0].Stage)
	assert.Equal(t, "reject", events[0].Decision)
	assert.Empty(t, events[0].TenantID)
	assert.NotEmpty(t, events[0].Fingerprint)
}

func TestRun_ValidatorRejectsBeforeExecution(t *testing.T) {
	h := newHarness(t)
	ctx := tenantCtx(t, "acme-corp")

	_, err := h.gate.Run(ctx, "CALL db.labels()", nil)
	require.ErrorIs(t, err, ErrRejected)
	assert.Empty(t, h.exec.Calls())

	events := h.sink.Events()
	require.Len(t, events, 1)
	assert.Equal(t, "validate", events[0].Stage)
	assert.Equal(t, "reject", events[0].Decision)
	assert.Equal(t, "admin-procedure", events[0].RuleID)
	assert.NotEmpty(t, events[0].Fingerprint)
}

func TestRun_TenantKeyWritesRejected(t *testing.T) {
	h := newHarness(t)
	ctx := tenantCtx(t, "acme-corp")

	// Map-form assignment onto the tenant key.
	_, err := h.gate.Run(ctx, "MATCH (b:Business) SET b += {tenant_id: $victim} RETURN b",
		map[string]any{"victim": "globex"})
	require.ErrorIs(t, err, ErrRejected)

	// Tenant key smuggled inside a parameter value.
	_, err = h.gate.Run(ctx, "MATCH (b:Business) SET b += $props RETURN b",
		map[string]any{"props": map[string]any{"tenant_id": "globex"}})
	require.ErrorIs(t, err, ErrRejected)

	assert.Empty(t, h.exec.Calls())
	for _, event := range h.sink.Events() {
		assert.Equal(t, "validate", event.Stage)
		assert.Equal(t, "reject", event.Decision)
	}
}

func TestRun_AnonymousScopedRelationshipRejected(t *testing.T) {
	h := newHarness(t)
	ctx := tenantCtx(t, "acme-corp")

	for _, q := range []string{
		"MATCH p = ()-[:OWNS]->() RETURN p",
		"MATCH ()-[:OWNS]->() RETURN count(*)",
	} {
		_, err := h.gate.Run(ctx, q, nil)
		require.ErrorIs(t, err, ErrRejected, q)
	}
	assert.Empty(t, h.exec.Calls())
}

func TestRun_UnrewritableRejectedAndAudited(t *testing.T) {
	h := newHarness(t)
	ctx := tenantCtx(t, "acme-corp")

	_, err := h.gate.Run(ctx, "MATCH (b) RETURN b", nil)
	require.ErrorIs(t, err, ErrRejected)
	assert.Empty(t, h.exec.Calls())

	events := h.sink.Events()
	require.Len(t, events, 2)
	assert.Equal(t, "rewrite", events[1].Stage)
	assert.Equal(t, "reject", events[1].Decision)
}

func TestRun_ExecutorFailure(t *testing.T) {
	h := newHarness(t)
	h.exec.Err = errors.New("bolt connection reset")
	ctx := tenantCtx(t, "acme-corp")

	_, err := h.gate.Run(ctx, "MATCH (b:Business) RETURN b", nil)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrRejected)
}

type failingSink struct{}

func (failingSink) Record(context.Context, *audit.Event) error { return errors.New("sink down") }
func (failingSink) Close() error                               { return nil }

func TestRun_AuditFailureIsNonFatal(t *testing.T) {
	exec := executor.NewFake()
	g, err := New(Config{
		Rewriter:  rewrite.New(rewrite.Config{Labels: []string{"Business"}}),
		Validator: validate.MustNew("tenant_id", validate.DefaultRules("tenant_id")),
		Executor:  exec,
		Audit:     failingSink{},
	})
	require.NoError(t, err)

	_, err = g.Run(tenantCtx(t, "acme-corp"), "MATCH (b:Business) RETURN b", nil)
	require.NoError(t, err)
	assert.Len(t, exec.Calls(), 1)
}

func TestDryRun_DoesNotExecute(t *testing.T) {
	h := newHarness(t)
	ctx := tenantCtx(t, "acme-corp")

	preview, err := h.gate.DryRun(ctx, "CREATE (b:Business {name: $name}) RETURN b", map[string]any{"name": "acme"})
	require.NoError(t, err)
	assert.Contains(t, preview.Query, "tenant_id: $gg_tenant_id")
	assert.Equal(t, "acme-corp", preview.Params["gg_tenant_id"])
	require.Len(t, preview.Filtered, 1)
	assert.Equal(t, "Business", preview.Filtered[0].Label)

	assert.Empty(t, h.exec.Calls())
	// Dry runs still leave an audit trail.
	assert.Len(t, h.sink.Events(), 2)
}

func TestRun_TenantsIsolatedAcrossCalls(t *testing.T) {
	h := newHarness(t)

	_, err := h.gate.Run(tenantCtx(t, "acme-corp"), "MATCH (b:Business) RETURN b", nil)
	require.NoError(t, err)
	_, err = h.gate.Run(tenantCtx(t, "globex"), "MATCH (b:Business) RETURN b", nil)
	require.NoError(t, err)

	calls := h.exec.Calls()
	require.Len(t, calls, 2)
	assert.Equal(t, "acme-corp", calls[0].Params["gg_tenant_id"])
	assert.Equal(t, "globex", calls[1].Params["gg_tenant_id"])
}

func TestNew_RequiresComponents(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)

	_, err = New(Config{Rewriter: rewrite.New(rewrite.Config{Labels: []string{"X"}})})
	assert.Error(t, err)
}
