package state

import (
	"context"
	"fmt"

	"gradewatch/internal/config"
	"gradewatch/internal/state/pgstore"
	"gradewatch/internal/state/redisstore"
	"gradewatch/internal/state/sqlstore"
	"gradewatch/internal/watcherr"
)

// OpenBackend connects the backend named by cfg.Backend.
func OpenBackend(ctx context.Context, cfg config.StateConfig) (Backend, error) {
	var (
		backend Backend
		err     error
	)
	switch cfg.Backend {
	case "sqlite", "libsql":
		backend, err = sqlstore.Open(ctx, cfg.DSN, cfg.AuthToken)
	case "postgres":
		backend, err = pgstore.Open(ctx, cfg.DSN)
	case "redis":
		backend, err = redisstore.Open(ctx, cfg.DSN, cfg.Key)
	case "memory":
		backend = NewMemoryBackend()
	default:
		return nil, watcherr.New(watcherr.ErrConfig, "state.open", "unknown state backend %q", cfg.Backend)
	}
	if err != nil {
		return nil, watcherr.Wrap(watcherr.ErrPersistence, "state.open", fmt.Errorf("%s: %w", cfg.Backend, err))
	}
	return backend, nil
}

// Open returns a Store on the configured backend.
func Open(ctx context.Context, cfg config.StateConfig, opts Options) (*DocumentStore, error) {
	backend, err := OpenBackend(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return New(backend, opts), nil
}
