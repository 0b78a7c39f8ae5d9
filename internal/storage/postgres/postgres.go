// Package postgres stores documents as rows of a PostgreSQL table.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/robalyx/wordwatch/internal/storage"
)

// Backend keeps every document as one row keyed by name.
type Backend struct {
	pool  *pgxpool.Pool
	table string
}

// New connects to the database and creates the document table when missing.
func New(ctx context.Context, dsn, table string) (*Backend, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to create postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	b := &Backend{pool: pool, table: pgx.Identifier{table}.Sanitize()}
	if err := b.migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return b, nil
}

func (b *Backend) migrate(ctx context.Context) error {
	_, err := b.pool.Exec(ctx, `CREATE TABLE IF NOT EXISTS `+b.table+` (
		name TEXT PRIMARY KEY,
		body BYTEA NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`)
	if err != nil {
		return fmt.Errorf("failed to create document table: %w", err)
	}
	return nil
}

// Read implements storage.Backend.
func (b *Backend) Read(ctx context.Context, name string) ([]byte, error) {
	var body []byte
	err := b.pool.QueryRow(ctx, `SELECT body FROM `+b.table+` WHERE name = $1`, name).Scan(&body)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", name, err)
	}
	return body, nil
}

// Write implements storage.Backend.
func (b *Backend) Write(ctx context.Context, name string, data []byte) error {
	_, err := b.pool.Exec(ctx, `INSERT INTO `+b.table+` (name, body, updated_at) VALUES ($1, $2, now())
		ON CONFLICT (name) DO UPDATE SET body = EXCLUDED.body, updated_at = EXCLUDED.updated_at`, name, data)
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	return nil
}

// Close implements storage.Backend.
func (b *Backend) Close() error {
	b.pool.Close()
	return nil
}
