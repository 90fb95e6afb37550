package migrations

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const schema = `
-- comment only statement;
CREATE TABLE IF NOT EXISTS things (
	id TEXT PRIMARY KEY
);
CREATE INDEX IF NOT EXISTS things_id ON things (id);
`

func TestOpenAndMigrateTwice(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "test.db")
	ctx := context.Background()

	db, err := OpenAndMigrateDB(ctx, schema, path)
	require.NoError(t, err)
	_, err = db.Exec("INSERT INTO things (id) VALUES ('a')")
	require.NoError(t, err)
	require.NoError(t, db.Close())

	db, err = OpenAndMigrateDB(ctx, schema, path)
	require.NoError(t, err)
	defer db.Close()
	var count int
	require.NoError(t, db.QueryRow("SELECT count(*) FROM things").Scan(&count))
	require.Equal(t, 1, count)
}
