package redisstore

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

func TestRedisBackend(t *testing.T) {
	host, port := testutil.StartContainer(t, testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections"),
	}, "6379/tcp")

	ctx := context.Background()
	b, err := Open(ctx, fmt.Sprintf("redis://%s:%s/0", host, port), "")
	require.NoError(t, err)
	defer b.Close()

	doc, err := b.Get(ctx)
	require.NoError(t, err)
	require.Nil(t, doc)

	now := time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, b.Put(ctx, []byte(`{"pending":[]}`), now))

	doc, err = b.Get(ctx)
	require.NoError(t, err)
	require.Equal(t, `{"pending":[]}`, string(doc))

	updated, err := b.client.Get(ctx, DefaultKey+":updated_at").Result()
	require.NoError(t, err)
	require.Equal(t, "2025-05-01T12:00:00Z", updated)
}
