// Package gate is the single entry point for tenant-isolated graph access.
// Every query passes through the same pipeline: tenant context extraction,
// security validation, predicate injection, then execution. There is no
// second path; callers never hold the executor directly.
package gate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/halcyondata/graphgate/internal/audit"
	"github.com/halcyondata/graphgate/internal/executor"
	"github.com/halcyondata/graphgate/internal/logging"
	"github.com/halcyondata/graphgate/internal/metrics"
	"github.com/halcyondata/graphgate/internal/rewrite"
	"github.com/halcyondata/graphgate/internal/tenant"
	"github.com/halcyondata/graphgate/internal/validate"
)

var tracer = otel.Tracer("graphgate.gate")

// ErrRejected is returned when a query fails validation or rewriting. It
// always wraps the specific cause.
var ErrRejected = errors.New("query rejected")

// Config assembles a Gate.
type Config struct {
	Rewriter  *rewrite.Rewriter
	Validator *validate.Validator
	Executor  executor.Executor
	Audit     audit.Sink
	Logger    *logging.Logger
}

// Gate runs the isolation pipeline.
type Gate struct {
	rewriter  *rewrite.Rewriter
	validator *validate.Validator
	executor  executor.Executor
	sink      audit.Sink
	logger    *logging.Logger
}

// New creates a Gate. Rewriter, Validator, and Executor are required; a nil
// Audit sink defaults to the log sink and a nil Logger to a nop logger.
func New(cfg Config) (*Gate, error) {
	if cfg.Rewriter == nil {
		return nil, fmt.Errorf("gate: rewriter is required")
	}
	if cfg.Validator == nil {
		return nil, fmt.Errorf("gate: validator is required")
	}
	if cfg.Executor == nil {
		return nil, fmt.Errorf("gate: executor is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.FromContext(context.Background())
	}
	sink := cfg.Audit
	if sink == nil {
		sink = audit.NewLogSink(logger.Underlying())
	}
	return &Gate{
		rewriter:  cfg.Rewriter,
		validator: cfg.Validator,
		executor:  cfg.Executor,
		sink:      sink,
		logger:    logger,
	}, nil
}

// Preview is the dry-run outcome: what would be executed, without executing.
type Preview struct {
	Query    string
	Params   map[string]any
	Filtered []rewrite.FilteredAlias
}

// Run executes the query for the tenant bound to ctx. The tenant context is
// the only source of tenant identity; caller parameters never influence the
// injected predicate values.
func (g *Gate) Run(ctx context.Context, query string, params map[string]any) (*executor.Result, error) {
	start := time.Now()

	res, err := g.prepare(ctx, query, params)
	if err != nil {
		return nil, err
	}

	ctx, span := tracer.Start(ctx, "gate.execute")
	defer span.End()

	out, err := g.executor.Run(ctx, res.Query, res.Params)
	metrics.ExecutionDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		span.RecordError(err)
		metrics.ExecutionsTotal.WithLabelValues("error").Inc()
		g.logger.Error(ctx, "query execution failed",
			zap.String("fingerprint", validate.Fingerprint(query)),
			zap.Error(err))
		return nil, fmt.Errorf("execute: %w", err)
	}
	metrics.ExecutionsTotal.WithLabelValues("success").Inc()
	return out, nil
}

// DryRun validates and rewrites without executing. Audit events are still
// recorded; a dry run is a real isolation decision.
func (g *Gate) DryRun(ctx context.Context, query string, params map[string]any) (*Preview, error) {
	res, err := g.prepare(ctx, query, params)
	if err != nil {
		return nil, err
	}
	return &Preview{Query: res.Query, Params: res.Params, Filtered: res.Filtered}, nil
}

// prepare runs validation and rewriting, recording audit events and metrics
// for each stage.
func (g *Gate) prepare(ctx context.Context, query string, params map[string]any) (*rewrite.Result, error) {
	ctx, span := tracer.Start(ctx, "gate.prepare")
	defer span.End()

	fingerprint := validate.Fingerprint(query)
	tctx, err := tenant.FromContext(ctx)
	if err != nil {
		// No tenant, no query. There is deliberately no anonymous path,
		// and the refusal itself goes on the audit trail.
		g.record(ctx, &tenant.Context{}, "context", "reject", "", fingerprint, err.Error())
		return nil, fmt.Errorf("%w: %v", ErrRejected, err)
	}
	span.SetAttributes(
		attribute.String("tenant.id", tctx.TenantID),
		attribute.String("query.fingerprint", fingerprint),
	)

	verdict, verr := g.validator.Check(tctx, query, params)
	metrics.ValidationsTotal.WithLabelValues(verdict.Decision, verdict.RuleID).Inc()
	g.record(ctx, tctx, "validate", verdict.Decision, verdict.RuleID, fingerprint, verdict.Reason)
	if verr != nil {
		span.RecordError(verr)
		g.logger.Warn(ctx, "query rejected by validator",
			zap.String("rule", verdict.RuleID),
			zap.String("fingerprint", fingerprint))
		return nil, fmt.Errorf("%w: %v", ErrRejected, verr)
	}

	rewriteStart := time.Now()
	res, err := g.rewriter.Rewrite(tctx, query, params)
	metrics.RewriteDuration.Observe(time.Since(rewriteStart).Seconds())
	if err != nil {
		outcome := "error"
		switch {
		case errors.Is(err, rewrite.ErrUnrewritable):
			outcome = "unrewritable"
		case errors.Is(err, rewrite.ErrParameterCollision):
			outcome = "collision"
		}
		metrics.RewritesTotal.WithLabelValues(outcome).Inc()
		span.RecordError(err)
		g.record(ctx, tctx, "rewrite", "reject", "", fingerprint, err.Error())
		g.logger.Warn(ctx, "query rejected by rewriter",
			zap.String("outcome", outcome),
			zap.String("fingerprint", fingerprint))
		return nil, fmt.Errorf("%w: %v", ErrRejected, err)
	}
	metrics.RewritesTotal.WithLabelValues("rewritten").Inc()
	g.record(ctx, tctx, "rewrite", "allow", "", fingerprint, "")
	return res, nil
}

// record emits one audit event. A sink failure is logged and counted but
// never reverses or blocks the decision it describes.
func (g *Gate) record(ctx context.Context, tctx *tenant.Context, stage, decision, ruleID, fingerprint, reason string) {
	event := audit.NewEvent(tctx.TenantID, stage, decision)
	event.Actor = tctx.Actor
	event.RuleID = ruleID
	event.Fingerprint = fingerprint
	event.Reason = reason
	event.CrossTenant = tctx.CrossTenant

	if err := g.sink.Record(ctx, event); err != nil {
		metrics.AuditFailures.Inc()
		g.logger.Warn(ctx, "audit sink write failed",
			zap.String("stage", stage),
			zap.Error(err))
	}
}

// Close releases the executor and audit sink.
func (g *Gate) Close(ctx context.Context) error {
	return errors.Join(g.executor.Close(ctx), g.sink.Close())
}
