// Package pgstore keeps the state document in a Postgres jsonb column.
package pgstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const schema = `CREATE TABLE IF NOT EXISTS bot_state (
    id TEXT PRIMARY KEY,
    document JSONB NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL
)`

const getState = `SELECT document::text FROM bot_state WHERE id = $1`

const upsertState = `INSERT INTO bot_state (id, document, updated_at)
VALUES ($1, $2::jsonb, $3)
ON CONFLICT (id) DO UPDATE SET
    document = excluded.document,
    updated_at = excluded.updated_at`

type Backend struct {
	pool *pgxpool.Pool
	id   string
}

func Open(ctx context.Context, dsn string) (*Backend, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	// one worker, one document
	cfg.MaxConns = 2
	cfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	_, err = pool.Exec(ctx, schema)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("create bot_state: %w", err)
	}
	return &Backend{pool: pool, id: "state"}, nil
}

func (b *Backend) Get(ctx context.Context) ([]byte, error) {
	var document string
	err := b.pool.QueryRow(ctx, getState, b.id).Scan(&document)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return []byte(document), nil
}

func (b *Backend) Put(ctx context.Context, document []byte, updatedAt time.Time) error {
	_, err := b.pool.Exec(ctx, upsertState, b.id, string(document), updatedAt)
	return err
}

func (b *Backend) Close() error {
	b.pool.Close()
	return nil
}
