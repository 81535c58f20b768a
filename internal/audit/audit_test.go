package audit

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewEvent(t *testing.T) {
	e := NewEvent("acme-corp", "validate", "reject")
	assert.NotEmpty(t, e.ID)
	assert.Equal(t, "acme-corp", e.TenantID)
	assert.Equal(t, "validate", e.Stage)
	assert.Equal(t, "reject", e.Decision)
	assert.False(t, e.Timestamp.IsZero())

	e2 := NewEvent("acme-corp", "validate", "reject")
	assert.NotEqual(t, e.ID, e2.ID)
}

func TestLogSink(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	sink := NewLogSink(zap.New(core))

	e := NewEvent("acme-corp", "rewrite", "allow")
	e.Fingerprint = "abc123"
	require.NoError(t, sink.Record(context.Background(), e))
	require.NoError(t, sink.Close())

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, "isolation decision", entries[0].Message)

	fields := entries[0].ContextMap()
	assert.Equal(t, "acme-corp", fields["tenant_id"])
	assert.Equal(t, "allow", fields["decision"])
	assert.Equal(t, "abc123", fields["fingerprint"])
}

func TestMemorySink(t *testing.T) {
	sink := NewMemorySink()
	ctx := context.Background()

	require.NoError(t, sink.Record(ctx, NewEvent("acme-corp", "validate", "allow")))
	require.NoError(t, sink.Record(ctx, NewEvent("acme-corp", "rewrite", "reject")))

	events := sink.Events()
	require.Len(t, events, 2)
	assert.Equal(t, "validate", events[0].Stage)
	assert.Equal(t, "rewrite", events[1].Stage)

	// Returned slice is a copy.
	events[0] = nil
	assert.NotNil(t, sink.Events()[0])
}

type failingSink struct {
	err error
}

func (s *failingSink) Record(context.Context, *Event) error { return s.err }
func (s *failingSink) Close() error                         { return s.err }

func TestMultiSink_DeliversToAllDespiteFailure(t *testing.T) {
	boom := errors.New("sink down")
	mem := NewMemorySink()
	multi := NewMultiSink(&failingSink{err: boom}, mem)

	err := multi.Record(context.Background(), NewEvent("acme-corp", "validate", "allow"))
	require.ErrorIs(t, err, boom)

	// The failure did not stop delivery to the healthy sink.
	assert.Len(t, mem.Events(), 1)
}

func TestMultiSink_NoError(t *testing.T) {
	multi := NewMultiSink(NewMemorySink(), NewMemorySink())
	assert.NoError(t, multi.Record(context.Background(), NewEvent("acme-corp", "execute", "allow")))
	assert.NoError(t, multi.Close())
}
