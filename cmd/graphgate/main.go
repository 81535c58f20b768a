// Package main implements the graphgate CLI for operating the tenant
// isolation layer: dry-run rewrites, security checks, index maintenance,
// and tenant administration.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/halcyondata/graphgate/internal/config"
	"github.com/halcyondata/graphgate/internal/logging"
	"github.com/halcyondata/graphgate/internal/tenant"
)

var (
	// configPath is the YAML config file, empty for the default location.
	configPath string
	// version information
	version = "dev"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "graphgate",
	Short: "Tenant isolation gate for property graph queries",
	Long: `graphgate rewrites graph queries so every pattern carries its tenant
predicate, screens queries for isolation bypasses, and keeps the audit
trail and index coverage that make the isolation enforceable.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: false,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default ~/.config/graphgate/config.yaml)")
	rootCmd.AddCommand(rewriteCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(indexesCmd)
	rootCmd.AddCommand(tenantCmd)
	rootCmd.AddCommand(configCmd)
}

// loadConfig loads the effective configuration for a command run.
func loadConfig() (*config.Config, error) {
	return config.LoadWithFile(configPath)
}

// newLogger builds the logger from config, falling back to defaults when no
// config file exists.
func newLogger(cfg *config.Config) (*logging.Logger, error) {
	return logging.NewLogger(&cfg.Log)
}

// openPool connects to the control-plane database.
func openPool(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	if cfg.Postgres.DSN == "" {
		return nil, fmt.Errorf("postgres.dsn is not configured")
	}
	pool, err := pgxpool.New(ctx, cfg.Postgres.DSN)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	return pool, nil
}

// tenantContext builds a validated tenant context from the --tenant flag.
func tenantContext(id string, crossTenant bool) (*tenant.Context, error) {
	tctx, err := tenant.NewContext(id)
	if err != nil {
		return nil, err
	}
	tctx.Actor = "graphgate-cli"
	tctx.CrossTenant = crossTenant
	return tctx, nil
}

// readQueryArg returns the query from the positional argument, or from stdin
// when the argument is "-" or absent.
func readQueryArg(args []string) (string, error) {
	if len(args) == 1 && args[0] != "-" {
		return args[0], nil
	}
	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		return "", fmt.Errorf("read query from stdin: %w", err)
	}
	query := strings.TrimSpace(string(data))
	if query == "" {
		return "", fmt.Errorf("empty query")
	}
	return query, nil
}
