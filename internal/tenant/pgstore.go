package tenant

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PGStore is the Postgres-backed tenant store.
//
// Schema:
//
//	CREATE TABLE tenants (
//	    id           TEXT PRIMARY KEY,
//	    display_name TEXT NOT NULL,
//	    domain       TEXT UNIQUE,
//	    status       TEXT NOT NULL,
//	    created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
//	);
type PGStore struct {
	pool *pgxpool.Pool
}

// NewPGStore creates a tenant store backed by the given pool.
func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

// Create inserts a new tenant.
func (s *PGStore) Create(ctx context.Context, t *Tenant) error {
	if err := t.Validate(); err != nil {
		return err
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO tenants (id, display_name, domain, status) VALUES ($1, $2, NULLIF($3, ''), $4)`,
		t.ID, t.DisplayName, t.Domain, string(t.Status))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" { // unique_violation
			return ErrTenantExists
		}
		return fmt.Errorf("create tenant %q: %w", t.ID, err)
	}
	return nil
}

// Get returns the tenant by ID.
func (s *PGStore) Get(ctx context.Context, id string) (*Tenant, error) {
	return s.scanOne(s.pool.QueryRow(ctx,
		`SELECT id, display_name, COALESCE(domain, ''), status, created_at FROM tenants WHERE id = $1`, id))
}

// GetByDomain returns the tenant owning the given domain.
func (s *PGStore) GetByDomain(ctx context.Context, domain string) (*Tenant, error) {
	return s.scanOne(s.pool.QueryRow(ctx,
		`SELECT id, display_name, COALESCE(domain, ''), status, created_at FROM tenants WHERE domain = $1`, domain))
}

func (s *PGStore) scanOne(row pgx.Row) (*Tenant, error) {
	var t Tenant
	var status string
	if err := row.Scan(&t.ID, &t.DisplayName, &t.Domain, &status, &t.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTenantNotFound
		}
		return nil, fmt.Errorf("scan tenant: %w", err)
	}
	t.Status = Status(status)
	return &t, nil
}

// UpdateStatus transitions the tenant's status. The transition rules are
// enforced in SQL so concurrent administrative changes cannot race past them.
func (s *PGStore) UpdateStatus(ctx context.Context, id string, status Status) error {
	current, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if !current.Status.CanTransition(status) {
		return ErrInvalidTransition
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE tenants SET status = $2 WHERE id = $1 AND status = $3 AND status <> 'archived'`,
		id, string(status), string(current.Status))
	if err != nil {
		return fmt.Errorf("update tenant %q status: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrInvalidTransition
	}
	return nil
}

// List returns all tenants ordered by ID.
func (s *PGStore) List(ctx context.Context) ([]*Tenant, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, display_name, COALESCE(domain, ''), status, created_at FROM tenants ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list tenants: %w", err)
	}
	defer rows.Close()

	var out []*Tenant
	for rows.Next() {
		var t Tenant
		var status string
		if err := rows.Scan(&t.ID, &t.DisplayName, &t.Domain, &status, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan tenant: %w", err)
		}
		t.Status = Status(status)
		out = append(out, &t)
	}
	return out, rows.Err()
}

var _ Store = (*PGStore)(nil)
