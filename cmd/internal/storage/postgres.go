package storage

import (
	"context"
	_ "embed"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"partsbin/cmd/identity"
	"partsbin/cmd/internal/auth/session"
)

//go:embed schema/postgres.sql
var postgresSchema string

// Postgres implements Database over a pgx pool it owns.
type Postgres struct {
	pool   *pgxpool.Pool
	schema string
	root   Stores
}

// NewPGXPool builds a pgxpool with sane defaults and validates connectivity.
func NewPGXPool(ctx context.Context, cfg Config) (*pgxpool.Pool, error) {
	pcfg, err := poolConfig(cfg)
	if err != nil {
		return nil, err
	}

	pool, err := pgxpool.NewWithConfig(ctx, pcfg)
	if err != nil {
		return nil, err
	}

	if err := pingPool(ctx, pool, 3*time.Second); err != nil {
		pool.Close()
		return nil, err
	}

	return pool, nil
}

// poolConfig parses cfg.URL and applies explicit pool sizes. Zero sizes keep
// whatever the DSN (pool_max_conns, pool_min_conns) or pgxpool defaults say.
func poolConfig(cfg Config) (*pgxpool.Config, error) {
	pcfg, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, err
	}
	if cfg.MaxConns > 0 {
		pcfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		pcfg.MinConns = cfg.MinConns
	}
	return pcfg, nil
}

// NewPostgres wraps pool. The Postgres value takes ownership of the pool.
func NewPostgres(pool *pgxpool.Pool, schema string) (*Postgres, error) {
	if pool == nil {
		return nil, fmt.Errorf("storage: nil pool")
	}
	schema = strings.TrimSpace(schema)
	if schema == "" {
		schema = identity.DefaultSchema
	}

	p := &Postgres{pool: pool, schema: schema}
	root, err := p.storesOn(pool)
	if err != nil {
		return nil, err
	}
	p.root = root
	return p, nil
}

func (p *Postgres) storesOn(db session.DBTX) (Stores, error) {
	users, err := identity.NewPostgresStore(db, identity.WithSchema(p.schema))
	if err != nil {
		return Stores{}, err
	}
	sessions, err := session.NewPostgresStore(db, p.schema)
	if err != nil {
		return Stores{}, err
	}
	return Stores{Users: users, Sessions: sessions}, nil
}

func (p *Postgres) Backend() string { return "postgres" }

func (p *Postgres) Stores() Stores { return p.root }

// Pool exposes the underlying pool for readiness checks and tests.
func (p *Postgres) Pool() *pgxpool.Pool { return p.pool }

func (p *Postgres) InTx(ctx context.Context, fn func(ctx context.Context, st Stores) error) error {
	tx, err := p.pool.BeginTx(ctx, pgx.TxOptions{
		IsoLevel:   pgx.ReadCommitted,
		AccessMode: pgx.ReadWrite,
	})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	st, err := p.storesOn(tx)
	if err != nil {
		return err
	}
	if err := fn(ctx, st); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// Migrate applies the embedded schema inside the configured schema.
func (p *Postgres) Migrate(ctx context.Context) error {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	ident := pgx.Identifier{p.schema}.Sanitize()
	if _, err := tx.Exec(ctx, `CREATE SCHEMA IF NOT EXISTS `+ident); err != nil {
		return fmt.Errorf("storage: create schema: %w", err)
	}
	if _, err := tx.Exec(ctx, `SET LOCAL search_path TO `+ident); err != nil {
		return fmt.Errorf("storage: search_path: %w", err)
	}
	if _, err := tx.Exec(ctx, postgresSchema); err != nil {
		return fmt.Errorf("storage: apply schema: %w", err)
	}
	return tx.Commit(ctx)
}

func (p *Postgres) Ping(ctx context.Context) error {
	return pingPool(ctx, p.pool, 2*time.Second)
}

func (p *Postgres) Close(_ context.Context) error {
	p.pool.Close()
	return nil
}

// pingPool checks if we can acquire a connection within timeout.
func pingPool(parent context.Context, pool *pgxpool.Pool, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	conn, err := pool.Acquire(ctx)
	if err != nil {
		return err
	}
	conn.Release()
	return nil
}
