package tenantconfig

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PGStore is the Postgres-backed config store.
//
// Schema:
//
//	CREATE TABLE tenant_config (
//	    tenant_id   TEXT NOT NULL,
//	    key         TEXT NOT NULL,
//	    value       TEXT NOT NULL,
//	    description TEXT NOT NULL DEFAULT '',
//	    updated_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
//	    PRIMARY KEY (tenant_id, key)
//	);
type PGStore struct {
	pool *pgxpool.Pool
}

// NewPGStore creates a config store backed by the given pool.
func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

// Get returns one entry, or ErrNotFound.
func (s *PGStore) Get(ctx context.Context, tenantID, key string) (*Entry, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT tenant_id, key, value, description, updated_at FROM tenant_config WHERE tenant_id = $1 AND key = $2`,
		tenantID, key)

	var e Entry
	if err := row.Scan(&e.TenantID, &e.Key, &e.Value, &e.Description, &e.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s/%s", ErrNotFound, tenantID, key)
		}
		return nil, fmt.Errorf("get tenant config %s/%s: %w", tenantID, key, err)
	}
	return &e, nil
}

// Put upserts an entry.
func (s *PGStore) Put(ctx context.Context, entry *Entry) error {
	if err := entry.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidEntry, err)
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO tenant_config (tenant_id, key, value, description, updated_at)
		 VALUES ($1, $2, $3, $4, now())
		 ON CONFLICT (tenant_id, key) DO UPDATE SET value = $3, description = $4, updated_at = now()`,
		entry.TenantID, entry.Key, entry.Value, entry.Description)
	if err != nil {
		return fmt.Errorf("put tenant config %s/%s: %w", entry.TenantID, entry.Key, err)
	}
	return nil
}

// Delete removes an entry if present.
func (s *PGStore) Delete(ctx context.Context, tenantID, key string) error {
	_, err := s.pool.Exec(ctx,
		`DELETE FROM tenant_config WHERE tenant_id = $1 AND key = $2`, tenantID, key)
	if err != nil {
		return fmt.Errorf("delete tenant config %s/%s: %w", tenantID, key, err)
	}
	return nil
}

// List returns all entries for a tenant, ordered by key.
func (s *PGStore) List(ctx context.Context, tenantID string) ([]*Entry, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT tenant_id, key, value, description, updated_at FROM tenant_config WHERE tenant_id = $1 ORDER BY key`,
		tenantID)
	if err != nil {
		return nil, fmt.Errorf("list tenant config for %s: %w", tenantID, err)
	}
	defer rows.Close()

	var out []*Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.TenantID, &e.Key, &e.Value, &e.Description, &e.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan tenant config: %w", err)
		}
		out = append(out, &e)
	}
	return out, rows.Err()
}

var _ Store = (*PGStore)(nil)
