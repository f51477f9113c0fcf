package store

import (
	"context"

	"github.com/rotisserie/eris"
)

// Options selects and configures a Backend.
type Options struct {
	Driver      string // "file", "sqlite", "postgres", or "memory"
	Dir         string // file backend directory
	DatabaseURL string // sqlite path or postgres connection string
	Pool        *PoolConfig
}

// Open creates the Backend named by opts.Driver and runs its migrations.
func Open(ctx context.Context, opts Options) (Backend, error) {
	switch opts.Driver {
	case "file", "":
		b, err := NewFileBackend(opts.Dir)
		if err != nil {
			return nil, err
		}
		return b, nil
	case "sqlite":
		dsn := opts.DatabaseURL
		if dsn == "" {
			dsn = "venue.db"
		}
		b, err := NewSQLite(dsn)
		if err != nil {
			return nil, err
		}
		if err := b.Migrate(ctx); err != nil {
			b.Close() //nolint:errcheck
			return nil, err
		}
		return b, nil
	case "postgres":
		if opts.DatabaseURL == "" {
			return nil, eris.New("store: postgres driver requires database_url")
		}
		b, err := NewPostgres(ctx, opts.DatabaseURL, opts.Pool)
		if err != nil {
			return nil, err
		}
		if err := b.Migrate(ctx); err != nil {
			b.Close() //nolint:errcheck
			return nil, err
		}
		return b, nil
	case "memory":
		return NewMemoryBackend(), nil
	default:
		return nil, eris.Errorf("store: unknown driver %q (valid: file, sqlite, postgres, memory)", opts.Driver)
	}
}
