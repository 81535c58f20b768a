package executor

import (
	"context"
	"fmt"
	"regexp"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/halcyondata/graphgate/internal/indexes"
)

// Neo4jExecutor runs queries over a Bolt connection.
type Neo4jExecutor struct {
	driver   neo4j.DriverWithContext
	database string
}

// NewNeo4j connects to the given Bolt URI. An empty database name selects
// the server default.
func NewNeo4j(ctx context.Context, uri, username, password, database string) (*Neo4jExecutor, error) {
	auth := neo4j.NoAuth()
	if username != "" {
		auth = neo4j.BasicAuth(username, password, "")
	}
	driver, err := neo4j.NewDriverWithContext(uri, auth)
	if err != nil {
		return nil, fmt.Errorf("create neo4j driver: %w", err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		return nil, fmt.Errorf("verify neo4j connectivity: %w", err)
	}
	return &Neo4jExecutor{driver: driver, database: database}, nil
}

// writeClause matches clauses that require a write transaction.
var writeClause = regexp.MustCompile(`(?i)\b(CREATE|MERGE|SET|DELETE|REMOVE|DROP)\b`)

// Run executes the query, routing writes through ExecuteWrite.
func (e *Neo4jExecutor) Run(ctx context.Context, query string, params map[string]any) (*Result, error) {
	session := e.driver.NewSession(ctx, neo4j.SessionConfig{DatabaseName: e.database})
	defer session.Close(ctx)

	work := func(tx neo4j.ManagedTransaction) (any, error) {
		return e.collect(ctx, tx, query, params)
	}

	var out any
	var err error
	if writeClause.MatchString(query) {
		out, err = session.ExecuteWrite(ctx, work)
	} else {
		out, err = session.ExecuteRead(ctx, work)
	}
	if err != nil {
		return nil, fmt.Errorf("execute query: %w", err)
	}
	return out.(*Result), nil
}

func (e *Neo4jExecutor) collect(ctx context.Context, tx neo4j.ManagedTransaction, query string, params map[string]any) (*Result, error) {
	cursor, err := tx.Run(ctx, query, params)
	if err != nil {
		return nil, err
	}

	result := &Result{}
	for cursor.Next(ctx) {
		rec := cursor.Record()
		row := make(Record, len(rec.Keys))
		for i, key := range rec.Keys {
			row[key] = rec.Values[i]
		}
		result.Records = append(result.Records, row)
	}
	if err := cursor.Err(); err != nil {
		return nil, err
	}

	summary, err := cursor.Consume(ctx)
	if err != nil {
		return nil, err
	}
	counters := summary.Counters()
	result.NodesCreated = counters.NodesCreated()
	result.RelationshipsCreated = counters.RelationshipsCreated()
	result.PropertiesSet = counters.PropertiesSet()
	return result, nil
}

// ListIndexes implements the advisor's Introspector over SHOW INDEXES.
func (e *Neo4jExecutor) ListIndexes(ctx context.Context) ([]indexes.ExpectedIndex, error) {
	session := e.driver.NewSession(ctx, neo4j.SessionConfig{DatabaseName: e.database})
	defer session.Close(ctx)

	out, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		cursor, err := tx.Run(ctx,
			"SHOW INDEXES YIELD labelsOrTypes, properties, entityType", nil)
		if err != nil {
			return nil, err
		}

		var found []indexes.ExpectedIndex
		for cursor.Next(ctx) {
			rec := cursor.Record()
			idx, ok := indexFromRecord(rec.Values)
			if ok {
				found = append(found, idx)
			}
		}
		return found, cursor.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("show indexes: %w", err)
	}
	return out.([]indexes.ExpectedIndex), nil
}

// indexFromRecord converts one SHOW INDEXES row. Rows without a label or
// properties (lookup indexes, constraints mid-creation) are skipped.
func indexFromRecord(values []any) (indexes.ExpectedIndex, bool) {
	if len(values) < 3 {
		return indexes.ExpectedIndex{}, false
	}
	labels, ok := toStrings(values[0])
	if !ok || len(labels) != 1 {
		return indexes.ExpectedIndex{}, false
	}
	props, ok := toStrings(values[1])
	if !ok || len(props) == 0 {
		return indexes.ExpectedIndex{}, false
	}
	entity, _ := values[2].(string)
	return indexes.ExpectedIndex{
		Label:        labels[0],
		Properties:   props,
		Relationship: entity == "RELATIONSHIP",
	}, true
}

func toStrings(v any) ([]string, bool) {
	list, ok := v.([]any)
	if !ok {
		return nil, false
	}
	out := make([]string, 0, len(list))
	for _, item := range list {
		s, ok := item.(string)
		if !ok {
			return nil, false
		}
		out = append(out, s)
	}
	return out, true
}

// Close shuts down the driver.
func (e *Neo4jExecutor) Close(ctx context.Context) error {
	return e.driver.Close(ctx)
}

var (
	_ Executor             = (*Neo4jExecutor)(nil)
	_ indexes.Introspector = (*Neo4jExecutor)(nil)
)
