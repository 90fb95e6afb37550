package sqlstore

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestIsRemote(t *testing.T) {
	require.True(t, IsRemote("libsql://gradewatch-me.turso.io"))
	require.True(t, IsRemote("https://db.example.com"))
	require.False(t, IsRemote("gradewatch.db"))
	require.False(t, IsRemote(":memory:"))
}

func TestGetPutOverwrite(t *testing.T) {
	ctx := context.Background()
	b, err := Open(ctx, ":memory:", "")
	require.NoError(t, err)
	defer b.Close()

	doc, err := b.Get(ctx)
	require.NoError(t, err)
	require.Nil(t, doc)

	now := time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, b.Put(ctx, []byte(`{"pending":[]}`), now))
	require.NoError(t, b.Put(ctx, []byte(`{"pending":[1]}`), now.Add(time.Minute)))

	doc, err = b.Get(ctx)
	require.NoError(t, err)
	require.Equal(t, `{"pending":[1]}`, string(doc))

	var rows int
	require.NoError(t, b.db.QueryRow("SELECT count(*) FROM bot_state").Scan(&rows))
	require.Equal(t, 1, rows)

	require.NoError(t, b.Reset(ctx))
	doc, err = b.Get(ctx)
	require.NoError(t, err)
	require.Nil(t, doc)
}

func TestPersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "gradewatch.db")

	b, err := Open(ctx, path, "")
	require.NoError(t, err)
	require.NoError(t, b.Put(ctx, []byte(`{"notified":[]}`), time.Now()))
	require.NoError(t, b.Close())

	b, err = Open(ctx, path, "")
	require.NoError(t, err)
	defer b.Close()
	doc, err := b.Get(ctx)
	require.NoError(t, err)
	require.Equal(t, `{"notified":[]}`, string(doc))
}
