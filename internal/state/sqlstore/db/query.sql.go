// source: query.sql

package db

import (
	"context"
)

const deleteState = `-- name: DeleteState :exec
DELETE FROM bot_state WHERE id = ?
`

func (q *Queries) DeleteState(ctx context.Context, id string) error {
	_, err := q.db.ExecContext(ctx, deleteState, id)
	return err
}

const getState = `-- name: GetState :one
SELECT id, document, updated_at FROM bot_state
WHERE id = ?
`

func (q *Queries) GetState(ctx context.Context, id string) (BotState, error) {
	row := q.db.QueryRowContext(ctx, getState, id)
	var i BotState
	err := row.Scan(&i.ID, &i.Document, &i.UpdatedAt)
	return i, err
}

const upsertState = `-- name: UpsertState :exec
INSERT INTO bot_state (id, document, updated_at)
VALUES (?, ?, ?)
ON CONFLICT (id) DO UPDATE SET
    document = excluded.document,
    updated_at = excluded.updated_at
`

type UpsertStateParams struct {
	ID        string
	Document  string
	UpdatedAt string
}

func (q *Queries) UpsertState(ctx context.Context, arg UpsertStateParams) error {
	_, err := q.db.ExecContext(ctx, upsertState, arg.ID, arg.Document, arg.UpdatedAt)
	return err
}
