package termstore

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Schema is the SQL DDL for the reference_terms table. Execute it via
// [PostgresStore.Migrate] or apply it manually during deployment. The table
// mirrors the curated names/places database that the term collection tooling
// populates.
const Schema = `
CREATE TABLE IF NOT EXISTS reference_terms (
    normalized TEXT PRIMARY KEY,
    name       TEXT NOT NULL,
    kind       TEXT NOT NULL CHECK (kind IN ('tribe', 'place')),
    source     TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_reference_terms_kind ON reference_terms(kind);
`

// DB is the database interface used by [PostgresStore]. Both *pgxpool.Pool
// and *pgx.Conn satisfy this interface.
type DB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PostgresStore is a [Store] backed by a PostgreSQL database.
type PostgresStore struct {
	db DB
}

var _ Store = (*PostgresStore)(nil)

// NewPostgresStore creates a [PostgresStore] over the given connection or
// pool. The caller is responsible for calling [PostgresStore.Migrate] to
// ensure the schema exists before issuing queries.
func NewPostgresStore(db DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate executes the [Schema] DDL, creating the reference_terms table and
// index if they do not already exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("termstore: migrate: %w", err)
	}
	return nil
}

// Lookup implements [Store].
func (s *PostgresStore) Lookup(ctx context.Context, normalized string) (Term, bool, error) {
	const query = `SELECT name, kind FROM reference_terms WHERE normalized = $1`

	var t Term
	err := s.db.QueryRow(ctx, query, normKey(normalized)).Scan(&t.Name, &t.Kind)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return Term{}, false, nil
	case err != nil:
		return Term{}, false, fmt.Errorf("termstore: lookup %q: %w", normalized, errors.Join(ErrUnavailable, err))
	}
	return t, true, nil
}

// BulkLoad inserts terms, replacing existing rows with the same normalized
// key. Used by the term collection tooling, not by the cleaning core.
func (s *PostgresStore) BulkLoad(ctx context.Context, terms []Term, source string) (int, error) {
	const query = `
		INSERT INTO reference_terms (normalized, name, kind, source)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (normalized) DO UPDATE SET name = EXCLUDED.name, kind = EXCLUDED.kind, source = EXCLUDED.source`

	inserted := 0
	for _, t := range terms {
		if strings.TrimSpace(t.Name) == "" || !t.Kind.IsValid() {
			continue
		}
		if _, err := s.db.Exec(ctx, query, normKey(t.Name), t.Name, t.Kind, source); err != nil {
			return inserted, fmt.Errorf("termstore: bulk load %q: %w", t.Name, err)
		}
		inserted++
	}
	return inserted, nil
}
