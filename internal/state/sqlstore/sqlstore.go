// Package sqlstore keeps the state document in a sqlite or libSQL table.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"gradewatch/internal/state/sqlstore/db"
	"gradewatch/pkg/migrations"

	_ "github.com/tursodatabase/libsql-client-go/libsql"
)

type Backend struct {
	db  *sql.DB
	qry *db.Queries
	id  string
}

// IsRemote reports whether dsn names a libSQL server rather than a local file.
func IsRemote(dsn string) bool {
	for _, scheme := range []string{"libsql://", "http://", "https://", "ws://", "wss://"} {
		if strings.HasPrefix(dsn, scheme) {
			return true
		}
	}
	return false
}

func openRemote(ctx context.Context, dsn, authToken string) (*sql.DB, error) {
	if authToken != "" {
		u, err := url.Parse(dsn)
		if err != nil {
			return nil, fmt.Errorf("parse libsql url: %w", err)
		}
		q := u.Query()
		q.Set("authToken", authToken)
		u.RawQuery = q.Encode()
		dsn = u.String()
	}
	conn, err := sql.Open("libsql", dsn)
	if err != nil {
		return nil, fmt.Errorf("open libsql: %w", err)
	}
	err = migrations.Migrate(ctx, conn, db.Schema)
	if err != nil {
		conn.Close()
		return nil, err
	}
	return conn, nil
}

// Open connects to a sqlite file (or ":memory:") or, for libsql:// and
// http(s):// urls, a remote libSQL database, and creates the table.
func Open(ctx context.Context, dsn, authToken string) (*Backend, error) {
	var (
		conn *sql.DB
		err  error
	)
	if IsRemote(dsn) {
		conn, err = openRemote(ctx, dsn, authToken)
	} else {
		conn, err = migrations.OpenAndMigrateDB(ctx, db.Schema, dsn)
	}
	if err != nil {
		return nil, err
	}
	return NewBackend(conn), nil
}

// NewBackend uses an already migrated database.
func NewBackend(conn *sql.DB) *Backend {
	return &Backend{db: conn, qry: db.New(conn), id: "state"}
}

func (b *Backend) Get(ctx context.Context) ([]byte, error) {
	row, err := b.qry.GetState(ctx, b.id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return []byte(row.Document), nil
}

func (b *Backend) Put(ctx context.Context, document []byte, updatedAt time.Time) error {
	return b.qry.UpsertState(ctx, db.UpsertStateParams{
		ID:        b.id,
		Document:  string(document),
		UpdatedAt: updatedAt.Format(time.RFC3339),
	})
}

// Reset deletes the document, the next Load starts from an empty state.
func (b *Backend) Reset(ctx context.Context) error {
	return b.qry.DeleteState(ctx, b.id)
}

func (b *Backend) Close() error {
	return b.db.Close()
}
