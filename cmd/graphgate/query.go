package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nats-io/nats.go"
	"github.com/spf13/cobra"

	"github.com/halcyondata/graphgate/internal/audit"
	"github.com/halcyondata/graphgate/internal/config"
	"github.com/halcyondata/graphgate/internal/executor"
	"github.com/halcyondata/graphgate/internal/logging"
	"github.com/halcyondata/graphgate/internal/rewrite"
	"github.com/halcyondata/graphgate/internal/tenant"
	"github.com/halcyondata/graphgate/internal/tenantconfig"
	"github.com/halcyondata/graphgate/internal/validate"
	"github.com/halcyondata/graphgate/pkg/gate"
)

var (
	qTenantID    string
	qParams      string
	qCrossTenant bool
)

func init() {
	queryCmd.Flags().StringVar(&qTenantID, "tenant", "", "tenant identifier (required)")
	queryCmd.Flags().StringVar(&qParams, "params", "{}", "query parameters as JSON")
	queryCmd.Flags().BoolVar(&qCrossTenant, "cross-tenant", false, "run with the cross-tenant analytics grant")
	_ = queryCmd.MarkFlagRequired("tenant")

	rootCmd.AddCommand(queryCmd)
}

var queryCmd = &cobra.Command{
	Use:   "query [query]",
	Short: "Execute a query through the isolation gate",
	Long: `Run a query against the graph database through the full pipeline:
registry lookup, security validation, predicate injection, execution, and
audit. The query is read from the argument, or from stdin when the argument
is "-".

Examples:
  graphgate query --tenant acme-corp 'MATCH (b:Business) RETURN b.name'
  graphgate query --tenant acme-corp --params '{"name":"Acme"}' \
    'CREATE (b:Business {name: $name}) RETURN b'`,
	Args: cobra.MaximumNArgs(1),
	RunE: runQuery,
}

// buildAuditSink assembles the configured sinks into one. The pool is shared
// with the rest of the command and may be nil when postgres is not
// configured.
func buildAuditSink(cfg *config.Config, logger *logging.Logger, pool *pgxpool.Pool) (audit.Sink, func(), error) {
	var sinks []audit.Sink
	cleanup := func() {}

	for _, name := range cfg.Audit.Sinks {
		switch name {
		case "log":
			sinks = append(sinks, audit.NewLogSink(logger.Underlying()))
		case "postgres":
			if pool == nil {
				return nil, nil, fmt.Errorf("postgres audit sink requires postgres.dsn")
			}
			sinks = append(sinks, audit.NewPGSink(pool))
		case "nats":
			nc, err := nats.Connect(cfg.NATS.URL)
			if err != nil {
				return nil, nil, fmt.Errorf("connect to nats: %w", err)
			}
			cleanup = nc.Close
			sinks = append(sinks, audit.NewNATSSink(nc, cfg.NATS.Subject))
		}
	}
	if len(sinks) == 1 {
		return sinks[0], cleanup, nil
	}
	return audit.NewMultiSink(sinks...), cleanup, nil
}

// resolveTenant resolves the tenant through the registry when the
// control-plane database is available, so suspended and archived tenants are
// refused before any query work.
func resolveTenant(ctx context.Context, pool *pgxpool.Pool) (*tenant.Context, error) {
	if pool == nil {
		return tenantContext(qTenantID, qCrossTenant)
	}
	reg := tenant.NewRegistry(tenant.NewPGStore(pool))
	tctx, err := reg.Resolve(ctx, qTenantID)
	if err != nil {
		return nil, err
	}
	tctx.Actor = "graphgate-cli"
	tctx.CrossTenant = qCrossTenant
	return tctx, nil
}

// tenancySettings resolves the effective tenancy shape: global config
// overridden by the tenant's own entries, read through the TTL cache.
func tenancySettings(ctx context.Context, cfg *config.Config, pool *pgxpool.Pool, tenantID string) (tenantconfig.Settings, error) {
	defaults := tenantconfig.Settings{
		Labels:            cfg.Tenancy.Labels,
		RelationshipTypes: cfg.Tenancy.RelationshipTypes,
		TenantKey:         cfg.Tenancy.TenantKey,
	}
	if pool == nil {
		return defaults, nil
	}
	cache := tenantconfig.NewCache(tenantconfig.NewPGStore(pool), cfg.Cache.TTL)
	return tenantconfig.LoadSettings(ctx, cache, tenantID, defaults)
}

func runQuery(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	query, err := readQueryArg(args)
	if err != nil {
		return err
	}
	var params map[string]any
	if err := json.Unmarshal([]byte(qParams), &params); err != nil {
		return fmt.Errorf("parse --params: %w", err)
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx := cmd.Context()

	var pool *pgxpool.Pool
	if cfg.Postgres.DSN != "" {
		if pool, err = openPool(ctx, cfg); err != nil {
			return err
		}
		defer pool.Close()
	}

	tctx, err := resolveTenant(ctx, pool)
	if err != nil {
		return err
	}
	settings, err := tenancySettings(ctx, cfg, pool, tctx.TenantID)
	if err != nil {
		return err
	}

	sink, cleanup, err := buildAuditSink(cfg, logger, pool)
	if err != nil {
		return err
	}
	defer cleanup()

	exec, err := executor.NewNeo4j(ctx, cfg.Graph.URI, cfg.Graph.Username, cfg.Graph.Password, cfg.Graph.Database)
	if err != nil {
		return err
	}

	g, err := gate.New(gate.Config{
		Rewriter: rewrite.New(rewrite.Config{
			Labels:            settings.Labels,
			RelationshipTypes: settings.RelationshipTypes,
			TenantKey:         settings.TenantKey,
		}),
		Validator: validate.MustNew(settings.TenantKey, validate.DefaultRules(settings.TenantKey)),
		Executor:  exec,
		Audit:     sink,
		Logger:    logger,
	})
	if err != nil {
		return err
	}
	defer g.Close(ctx)

	result, err := g.Run(tenant.WithContext(ctx, tctx), query, params)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	for _, record := range result.Records {
		if err := enc.Encode(record); err != nil {
			return err
		}
	}
	if result.NodesCreated > 0 || result.RelationshipsCreated > 0 || result.PropertiesSet > 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "nodes created: %d, relationships created: %d, properties set: %d\n",
			result.NodesCreated, result.RelationshipsCreated, result.PropertiesSet)
	}
	return nil
}
