package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/halcyondata/graphgate/internal/audit"
	"github.com/halcyondata/graphgate/internal/executor"
	"github.com/halcyondata/graphgate/internal/rewrite"
	"github.com/halcyondata/graphgate/internal/tenant"
	"github.com/halcyondata/graphgate/internal/validate"
	"github.com/halcyondata/graphgate/pkg/gate"
)

var (
	rwTenantID string
	rwParams   string
	rwJSON     bool
)

func init() {
	rewriteCmd.Flags().StringVar(&rwTenantID, "tenant", "", "tenant identifier (required)")
	rewriteCmd.Flags().StringVar(&rwParams, "params", "{}", "query parameters as JSON")
	rewriteCmd.Flags().BoolVar(&rwJSON, "json", false, "output as JSON")
	_ = rewriteCmd.MarkFlagRequired("tenant")

	validateCmd.Flags().StringVar(&rwTenantID, "tenant", "", "tenant identifier (required)")
	validateCmd.Flags().StringVar(&rwParams, "params", "{}", "query parameters as JSON")
	validateCmd.Flags().BoolVar(&rwJSON, "json", false, "output as JSON")
	_ = validateCmd.MarkFlagRequired("tenant")
}

var rewriteCmd = &cobra.Command{
	Use:   "rewrite [query]",
	Short: "Dry-run the isolation pipeline on a query",
	Long: `Validate and rewrite a query for a tenant without executing it.
The query is read from the argument, or from stdin when the argument is "-".

Examples:
  # Rewrite a read query
  graphgate rewrite --tenant acme-corp 'MATCH (b:Business) RETURN b'

  # Rewrite a create with parameters
  graphgate rewrite --tenant acme-corp --params '{"name":"Acme"}' \
    'CREATE (b:Business {name: $name}) RETURN b'

  # Read the query from stdin
  cat query.cypher | graphgate rewrite --tenant acme-corp -`,
	Args: cobra.MaximumNArgs(1),
	RunE: runRewrite,
}

func runRewrite(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	query, err := readQueryArg(args)
	if err != nil {
		return err
	}
	var params map[string]any
	if err := json.Unmarshal([]byte(rwParams), &params); err != nil {
		return fmt.Errorf("parse --params: %w", err)
	}
	tctx, err := tenantContext(rwTenantID, false)
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}

	g, err := gate.New(gate.Config{
		Rewriter: rewrite.New(rewrite.Config{
			Labels:            cfg.Tenancy.Labels,
			RelationshipTypes: cfg.Tenancy.RelationshipTypes,
			TenantKey:         cfg.Tenancy.TenantKey,
		}),
		Validator: validate.MustNew(cfg.Tenancy.TenantKey, validate.DefaultRules(cfg.Tenancy.TenantKey)),
		Executor:  executor.NewFake(),
		Audit:     audit.NewLogSink(logger.Underlying()),
		Logger:    logger,
	})
	if err != nil {
		return err
	}

	preview, err := g.DryRun(tenant.WithContext(cmd.Context(), tctx), query, params)
	if err != nil {
		return err
	}

	if rwJSON {
		return json.NewEncoder(cmd.OutOrStdout()).Encode(preview)
	}
	fmt.Fprintln(cmd.OutOrStdout(), preview.Query)
	if len(preview.Params) > 0 {
		data, err := json.MarshalIndent(preview.Params, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "params: %s\n", data)
	}
	for _, f := range preview.Filtered {
		alias := f.Alias
		if alias == "" {
			alias = "(anonymous)"
		}
		fmt.Fprintf(cmd.OutOrStdout(), "filtered: %s:%s\n", alias, f.Label)
	}
	return nil
}

var validateCmd = &cobra.Command{
	Use:   "validate [query]",
	Short: "Screen a query against the bypass rules",
	Long: `Run the security validator on a query without rewriting or executing it.
Exits non-zero when the query is rejected.

Examples:
  graphgate validate --tenant acme-corp 'MATCH (b:Business) RETURN b'
  graphgate validate --tenant acme-corp 'CALL db.labels()'`,
	Args: cobra.MaximumNArgs(1),
	RunE: runValidate,
}

func runValidate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	query, err := readQueryArg(args)
	if err != nil {
		return err
	}
	var params map[string]any
	if err := json.Unmarshal([]byte(rwParams), &params); err != nil {
		return fmt.Errorf("parse --params: %w", err)
	}
	tctx, err := tenantContext(rwTenantID, false)
	if err != nil {
		return err
	}

	v := validate.MustNew(cfg.Tenancy.TenantKey, validate.DefaultRules(cfg.Tenancy.TenantKey))
	verdict, verr := v.Check(tctx, query, params)

	if rwJSON {
		if err := json.NewEncoder(cmd.OutOrStdout()).Encode(verdict); err != nil {
			return err
		}
	} else if verr != nil {
		fmt.Fprintf(cmd.OutOrStdout(), "reject: %s (%s)\n", verdict.Reason, verdict.RuleID)
	} else {
		fmt.Fprintln(cmd.OutOrStdout(), "allow")
	}
	return verr
}
