package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// LogSink writes events to the structured log.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink creates a sink over the given logger.
func NewLogSink(logger *zap.Logger) *LogSink {
	return &LogSink{logger: logger.Named("audit")}
}

// Record logs the event at info level.
func (s *LogSink) Record(_ context.Context, event *Event) error {
	s.logger.Info("isolation decision",
		zap.String("event_id", event.ID),
		zap.String("tenant_id", event.TenantID),
		zap.String("actor", event.Actor),
		zap.String("stage", event.Stage),
		zap.String("decision", event.Decision),
		zap.String("rule_id", event.RuleID),
		zap.String("fingerprint", event.Fingerprint),
		zap.String("reason", event.Reason),
		zap.Bool("cross_tenant", event.CrossTenant),
		zap.Time("timestamp", event.Timestamp),
	)
	return nil
}

// Close is a no-op; the logger is owned by the caller.
func (s *LogSink) Close() error { return nil }

// PGSink writes events to Postgres.
//
// Schema:
//
//	CREATE TABLE audit_events (
//	    id           UUID PRIMARY KEY,
//	    tenant_id    TEXT NOT NULL,
//	    actor        TEXT NOT NULL DEFAULT '',
//	    stage        TEXT NOT NULL,
//	    decision     TEXT NOT NULL,
//	    rule_id      TEXT NOT NULL DEFAULT '',
//	    fingerprint  TEXT NOT NULL,
//	    reason       TEXT NOT NULL DEFAULT '',
//	    cross_tenant BOOLEAN NOT NULL DEFAULT false,
//	    created_at   TIMESTAMPTZ NOT NULL
//	);
type PGSink struct {
	pool *pgxpool.Pool
}

// NewPGSink creates a Postgres-backed sink.
func NewPGSink(pool *pgxpool.Pool) *PGSink {
	return &PGSink{pool: pool}
}

// Record inserts the event.
func (s *PGSink) Record(ctx context.Context, event *Event) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO audit_events (id, tenant_id, actor, stage, decision, rule_id, fingerprint, reason, cross_tenant, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		event.ID, event.TenantID, event.Actor, event.Stage, event.Decision,
		event.RuleID, event.Fingerprint, event.Reason, event.CrossTenant, event.Timestamp)
	if err != nil {
		return fmt.Errorf("record audit event %s: %w", event.ID, err)
	}
	return nil
}

// Close is a no-op; the pool is owned by the caller.
func (s *PGSink) Close() error { return nil }

// NATSSink publishes events as JSON to a subject, one message per event,
// for downstream SIEM consumers.
type NATSSink struct {
	nc      *nats.Conn
	subject string
}

// DefaultSubject is the publish subject used when none is configured.
const DefaultSubject = "graphgate.audit"

// NewNATSSink creates a sink publishing to the given subject.
func NewNATSSink(nc *nats.Conn, subject string) *NATSSink {
	if subject == "" {
		subject = DefaultSubject
	}
	return &NATSSink{nc: nc, subject: subject}
}

// Record publishes the event.
func (s *NATSSink) Record(_ context.Context, event *Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal audit event %s: %w", event.ID, err)
	}
	if err := s.nc.Publish(s.subject, data); err != nil {
		return fmt.Errorf("publish audit event %s: %w", event.ID, err)
	}
	return nil
}

// Close flushes pending publishes. The connection is owned by the caller.
func (s *NATSSink) Close() error {
	return s.nc.Flush()
}

// MultiSink fans out to several sinks. Every sink sees every event even when
// an earlier one fails; failures are joined into one error.
type MultiSink struct {
	sinks []Sink
}

// NewMultiSink combines the given sinks.
func NewMultiSink(sinks ...Sink) *MultiSink {
	return &MultiSink{sinks: sinks}
}

// Record delivers the event to all sinks.
func (s *MultiSink) Record(ctx context.Context, event *Event) error {
	var errs []error
	for _, sink := range s.sinks {
		if err := sink.Record(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close closes all sinks.
func (s *MultiSink) Close() error {
	var errs []error
	for _, sink := range s.sinks {
		if err := sink.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// MemorySink retains events in memory for tests and the dry-run CLI.
type MemorySink struct {
	mu     sync.Mutex
	events []*Event
}

// NewMemorySink returns an empty MemorySink.
func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

// Record appends a copy of the event.
func (s *MemorySink) Record(_ context.Context, event *Event) error {
	cp := *event
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, &cp)
	return nil
}

// Close is a no-op.
func (s *MemorySink) Close() error { return nil }

// Events returns the recorded events in order.
func (s *MemorySink) Events() []*Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Event, len(s.events))
	copy(out, s.events)
	return out
}

var (
	_ Sink = (*LogSink)(nil)
	_ Sink = (*PGSink)(nil)
	_ Sink = (*NATSSink)(nil)
	_ Sink = (*MultiSink)(nil)
	_ Sink = (*MemorySink)(nil)
)
