// Package audit records every isolation decision: validator verdicts,
// rewrite outcomes, and cross-tenant grants. Sinks are best-effort by
// policy; a sink failure is surfaced to the caller for logging but never
// blocks or reverses the decision it records.
package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Event is one recorded isolation decision.
type Event struct {
	// ID is a unique event identifier.
	ID string `json:"id"`

	// TenantID is the tenant the decision applied to.
	TenantID string `json:"tenant_id"`

	// Actor is the acting principal, if known.
	Actor string `json:"actor,omitempty"`

	// Decision is "allow" or "reject".
	Decision string `json:"decision"`

	// Stage is the pipeline stage that produced the decision
	// ("validate", "rewrite", "execute").
	Stage string `json:"stage"`

	// RuleID identifies the validator rule on rejection.
	RuleID string `json:"rule_id,omitempty"`

	// Fingerprint is the truncated query hash. The query text itself is
	// never recorded.
	Fingerprint string `json:"fingerprint"`

	// Reason explains a rejection.
	Reason string `json:"reason,omitempty"`

	// CrossTenant marks decisions made under the elevated grant.
	CrossTenant bool `json:"cross_tenant,omitempty"`

	// Timestamp is when the decision was made, UTC.
	Timestamp time.Time `json:"timestamp"`
}

// NewEvent returns an event with ID and timestamp populated.
func NewEvent(tenantID, stage, decision string) *Event {
	return &Event{
		ID:        uuid.NewString(),
		TenantID:  tenantID,
		Stage:     stage,
		Decision:  decision,
		Timestamp: time.Now().UTC(),
	}
}

// Sink receives audit events.
type Sink interface {
	// Record persists one event. Implementations must not mutate it.
	Record(ctx context.Context, event *Event) error

	// Close flushes and releases the sink.
	Close() error
}
