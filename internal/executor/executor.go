// Package executor runs rewritten queries against the graph database. The
// gate only ever hands it queries that already carry their tenant
// predicates; the executor adds no isolation of its own.
package executor

import (
	"context"
)

// Record is one result row keyed by return alias.
type Record map[string]any

// Result is the outcome of one query execution.
type Result struct {
	Records []Record

	// Summary counters, when the driver reports them.
	NodesCreated         int
	RelationshipsCreated int
	PropertiesSet        int
}

// Executor runs a single query with parameters.
type Executor interface {
	// Run executes the query. Write queries go through a write
	// transaction; Run inspects nothing about tenancy.
	Run(ctx context.Context, query string, params map[string]any) (*Result, error)

	// Close releases the underlying connections.
	Close(ctx context.Context) error
}
