// Package config provides configuration loading for graphgate.
package config

import (
	"fmt"
	"time"

	"github.com/halcyondata/graphgate/internal/logging"
)

// Config is the root configuration.
type Config struct {
	Tenancy  TenancyConfig  `koanf:"tenancy"`
	Cache    CacheConfig    `koanf:"cache"`
	Graph    GraphConfig    `koanf:"graph"`
	Postgres PostgresConfig `koanf:"postgres"`
	NATS     NATSConfig     `koanf:"nats"`
	Audit    AuditConfig    `koanf:"audit"`
	Log      logging.Config `koanf:"log"`
}

// TenancyConfig declares the tenant-scoped shape of the graph.
type TenancyConfig struct {
	// TenantKey is the property carrying tenant ownership.
	TenantKey string `koanf:"tenant_key"`

	// Labels are the tenant-scoped node labels.
	Labels []string `koanf:"labels"`

	// RelationshipTypes are the tenant-scoped relationship types.
	RelationshipTypes []string `koanf:"relationship_types"`

	// LookupProperties maps a label to properties commonly queried
	// together with the tenant filter; the index advisor plans composite
	// indexes for them.
	LookupProperties map[string][]string `koanf:"lookup_properties"`
}

// CacheConfig controls the tenant config cache.
type CacheConfig struct {
	TTL time.Duration `koanf:"ttl"`
}

// GraphConfig is the graph database connection.
type GraphConfig struct {
	URI      string `koanf:"uri"`
	Username string `koanf:"username"`
	Password string `koanf:"password"`
	Database string `koanf:"database"`
}

// PostgresConfig is the control-plane database connection, used for the
// tenant registry, tenant config, and the audit trail.
type PostgresConfig struct {
	DSN string `koanf:"dsn"`
}

// NATSConfig is the audit event stream connection.
type NATSConfig struct {
	URL     string `koanf:"url"`
	Subject string `koanf:"subject"`
}

// AuditConfig selects the audit sinks.
type AuditConfig struct {
	// Sinks names the enabled sinks: "log", "postgres", "nats".
	Sinks []string `koanf:"sinks"`
}

// applyDefaults sets default values for missing configuration fields.
func applyDefaults(cfg *Config) {
	if cfg.Tenancy.TenantKey == "" {
		cfg.Tenancy.TenantKey = "tenant_id"
	}
	if cfg.Cache.TTL == 0 {
		cfg.Cache.TTL = 30 * time.Second
	}
	if cfg.Graph.URI == "" {
		cfg.Graph.URI = "bolt://localhost:7687"
	}
	if cfg.NATS.Subject == "" {
		cfg.NATS.Subject = "graphgate.audit"
	}
	if len(cfg.Audit.Sinks) == 0 {
		cfg.Audit.Sinks = []string{"log"}
	}
	if cfg.Log.Format == "" {
		cfg.Log = *logging.NewDefaultConfig()
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if len(c.Tenancy.Labels) == 0 && len(c.Tenancy.RelationshipTypes) == 0 {
		return fmt.Errorf("tenancy: at least one scoped label or relationship type is required")
	}
	if c.Cache.TTL < 0 {
		return fmt.Errorf("cache: ttl must be >= 0")
	}
	for _, sink := range c.Audit.Sinks {
		switch sink {
		case "log", "postgres", "nats":
		default:
			return fmt.Errorf("audit: unknown sink %q", sink)
		}
		if sink == "postgres" && c.Postgres.DSN == "" {
			return fmt.Errorf("audit: postgres sink requires postgres.dsn")
		}
		if sink == "nats" && c.NATS.URL == "" {
			return fmt.Errorf("audit: nats sink requires nats.url")
		}
	}
	return c.Log.Validate()
}
