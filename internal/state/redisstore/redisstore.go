// Package redisstore keeps the state document under a single redis key.
package redisstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const DefaultKey = "gradewatch:state"

type Backend struct {
	client *redis.Client
	key    string
}

// Open accepts a redis:// or rediss:// url.
func Open(ctx context.Context, dsn, key string) (*Backend, error) {
	opts, err := redis.ParseURL(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	err = client.Ping(ctx).Err()
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return New(client, key), nil
}

func New(client *redis.Client, key string) *Backend {
	if key == "" {
		key = DefaultKey
	}
	return &Backend{client: client, key: key}
}

func (b *Backend) Get(ctx context.Context) ([]byte, error) {
	document, err := b.client.Get(ctx, b.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return document, nil
}

// Put writes the document and the time it was written in one transaction.
func (b *Backend) Put(ctx context.Context, document []byte, updatedAt time.Time) error {
	_, err := b.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, b.key, document, 0)
		pipe.Set(ctx, b.key+":updated_at", updatedAt.Format(time.RFC3339), 0)
		return nil
	})
	return err
}

func (b *Backend) Close() error {
	return b.client.Close()
}
