// Package storage binds the identity and session stores to a database backend
// and runs units of work against it.
//
// Two backends exist: PostgreSQL through a pgx pool, and SQLite through gorm
// for development and tests. Callers see one Database interface either way.
package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"partsbin/cmd/identity"
	"partsbin/cmd/internal/auth/session"
)

// Stores groups the stores bound to one connection or transaction.
type Stores struct {
	Users    identity.Store
	Sessions session.Store
}

// Database is the persistence boundary used by the auth service.
type Database interface {
	// Stores returns stores bound to the pool (no transaction).
	Stores() Stores

	// InTx runs fn inside one transaction. fn's error (or a panic) rolls the
	// transaction back; a nil return commits it.
	InTx(ctx context.Context, fn func(ctx context.Context, st Stores) error) error

	Ping(ctx context.Context) error
	Close(ctx context.Context) error

	// Backend names the driver ("postgres" or "sqlite").
	Backend() string
}

// ErrUnsupportedURL is returned by Open for an unrecognized database URL.
var ErrUnsupportedURL = errors.New("storage: unsupported database url")

// Config selects and tunes the backend.
type Config struct {
	// URL is postgres://..., postgresql://..., sqlite:<path> or empty for an
	// in-memory SQLite database.
	URL         string
	Schema      string
	MaxConns    int32
	MinConns    int32
	AutoMigrate bool
}

// Open connects the backend selected by cfg.URL and optionally migrates it.
func Open(ctx context.Context, cfg Config, log *slog.Logger) (Database, error) {
	if log == nil {
		log = slog.Default()
	}
	url := strings.TrimSpace(cfg.URL)

	switch {
	case strings.HasPrefix(url, "postgres://"), strings.HasPrefix(url, "postgresql://"):
		pool, err := NewPGXPool(ctx, cfg)
		if err != nil {
			return nil, err
		}
		db, err := NewPostgres(pool, cfg.Schema)
		if err != nil {
			pool.Close()
			return nil, err
		}
		if cfg.AutoMigrate {
			if err := db.Migrate(ctx); err != nil {
				pool.Close()
				return nil, err
			}
		}
		log.Info("db.enabled", "backend", db.Backend(), "schema", db.schema)
		return db, nil

	case url == "", strings.HasPrefix(url, "sqlite:"):
		dsn := strings.TrimPrefix(url, "sqlite:")
		db, err := OpenSQLite(dsn, log)
		if err != nil {
			return nil, err
		}
		// Always migrate SQLite: the in-memory database starts empty.
		if err := db.Migrate(ctx); err != nil {
			_ = db.Close(ctx)
			return nil, err
		}
		log.Info("db.enabled", "backend", db.Backend(), "in_memory", db.inMemory)
		return db, nil

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedURL, redactURL(url))
	}
}

// redactURL keeps the scheme only.
func redactURL(u string) string {
	if i := strings.Index(u, "://"); i > 0 {
		return u[:i] + "://..."
	}
	if i := strings.Index(u, ":"); i > 0 {
		return u[:i] + ":..."
	}
	return "..."
}
