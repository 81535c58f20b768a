package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const minimalYAML = `
tenancy:
  labels: [Business, Person]
`

func TestLoadBytes_Defaults(t *testing.T) {
	cfg, err := LoadBytes([]byte(minimalYAML))
	require.NoError(t, err)

	assert.Equal(t, "tenant_id", cfg.Tenancy.TenantKey)
	assert.Equal(t, []string{"Business", "Person"}, cfg.Tenancy.Labels)
	assert.Equal(t, 30*time.Second, cfg.Cache.TTL)
	assert.Equal(t, "bolt://localhost:7687", cfg.Graph.URI)
	assert.Equal(t, []string{"log"}, cfg.Audit.Sinks)
	assert.Equal(t, "graphgate.audit", cfg.NATS.Subject)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoadBytes_Full(t *testing.T) {
	yaml := `
tenancy:
  tenant_key: org_id
  labels: [Business]
  relationship_types: [OWNS]
  lookup_properties:
    Business: [name, city]
cache:
  ttl: 2m
graph:
  uri: bolt://graph:7687
  username: neo4j
  password: s3cret
  database: tenants
postgres:
  dsn: postgres://gate:pw@db:5432/gate
nats:
  url: nats://mq:4222
  subject: audit.stream
audit:
  sinks: [log, postgres, nats]
log:
  format: console
`
	cfg, err := LoadBytes([]byte(yaml))
	require.NoError(t, err)

	assert.Equal(t, "org_id", cfg.Tenancy.TenantKey)
	assert.Equal(t, []string{"name", "city"}, cfg.Tenancy.LookupProperties["Business"])
	assert.Equal(t, 2*time.Minute, cfg.Cache.TTL)
	assert.Equal(t, "bolt://graph:7687", cfg.Graph.URI)
	assert.Equal(t, "tenants", cfg.Graph.Database)
	assert.Equal(t, []string{"log", "postgres", "nats"}, cfg.Audit.Sinks)
	assert.Equal(t, "audit.stream", cfg.NATS.Subject)
	assert.Equal(t, "console", cfg.Log.Format)
}

func TestLoadBytes_ValidationErrors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"no scoped labels", `{}`},
		{
			"unknown sink",
			"tenancy:\n  labels: [X]\naudit:\n  sinks: [syslog]",
		},
		{
			"postgres sink without dsn",
			"tenancy:\n  labels: [X]\naudit:\n  sinks: [postgres]",
		},
		{
			"nats sink without url",
			"tenancy:\n  labels: [X]\naudit:\n  sinks: [nats]",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadBytes([]byte(tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestLoadBytes_BadYAML(t *testing.T) {
	_, err := LoadBytes([]byte("tenancy: ["))
	assert.Error(t, err)
}

func TestValidateConfigPath(t *testing.T) {
	assert.Error(t, validateConfigPath("/tmp/config.yaml"))
	assert.NoError(t, validateConfigPath("/etc/graphgate/config.yaml"))
}
