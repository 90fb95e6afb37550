package pgstore

import (
	"context"
	"fmt"
	"testing"
	"time"

	"gradewatch/lib/testutil"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func TestPostgresBackend(t *testing.T) {
	host, port := testutil.StartContainer(t, testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "gradewatch",
			"POSTGRES_PASSWORD": "gradewatch",
			"POSTGRES_DB":       "gradewatch",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(time.Minute),
	}, "5432/tcp")

	ctx := context.Background()
	dsn := fmt.Sprintf("postgres://gradewatch:gradewatch@%s:%s/gradewatch?sslmode=disable", host, port)
	b, err := Open(ctx, dsn)
	require.NoError(t, err)
	defer b.Close()

	doc, err := b.Get(ctx)
	require.NoError(t, err)
	require.Nil(t, doc)

	require.NoError(t, b.Put(ctx, []byte(`{"pending": [], "notified": []}`), time.Now()))
	require.NoError(t, b.Put(ctx, []byte(`{"pending": [], "notified": [["CSE101", "Intro", "241"]]}`), time.Now()))

	doc, err = b.Get(ctx)
	require.NoError(t, err)
	require.JSONEq(t, `{"pending": [], "notified": [["CSE101", "Intro", "241"]]}`, string(doc))

	// reopening must not clobber the table
	again, err := Open(ctx, dsn)
	require.NoError(t, err)
	defer again.Close()
	doc, err = again.Get(ctx)
	require.NoError(t, err)
	require.NotNil(t, doc)
}
