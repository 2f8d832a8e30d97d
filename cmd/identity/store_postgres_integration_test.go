package identity

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Integration tests are opt-in and require PARTSBIN_DATABASE_URL.
// In non-CI runs, unreachable Postgres skips these tests to keep local runs fast.

func TestPostgresStore_CreateUser_DuplicateEmail(t *testing.T) {
	t.Parallel()

	pool := mustOpenTestPool(t)
	defer pool.Close()

	schema := mustCreateTestSchema(t, pool)
	t.Cleanup(func() { mustDropSchema(t, pool, schema) })
	mustApplyIdentitySchema(t, pool, schema)

	s := mustNewIdentityStore(t, pool, schema)

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if _, err := s.CreateUser(ctx, CreateUserInput{Email: "user@example.com", PasswordHash: "h1"}); err != nil {
		t.Fatalf("create user 1: %v", err)
	}

	_, err := s.CreateUser(ctx, CreateUserInput{Email: " user@example.com ", PasswordHash: "h2"})
	if !IsConflict(err) {
		t.Fatalf("expected conflict error, got: %v", err)
	}
	if f, _ := ConflictField(err); f != "email" {
		t.Fatalf("expected email conflict, got %q", f)
	}

	// Case differs: a distinct identity.
	if _, err := s.CreateUser(ctx, CreateUserInput{Email: "User@example.com", PasswordHash: "h3"}); err != nil {
		t.Fatalf("create user with different case: %v", err)
	}
}

func TestPostgresStore_LookupSignInProfile(t *testing.T) {
	t.Parallel()

	pool := mustOpenTestPool(t)
	defer pool.Close()

	schema := mustCreateTestSchema(t, pool)
	t.Cleanup(func() { mustDropSchema(t, pool, schema) })
	mustApplyIdentitySchema(t, pool, schema)

	s := mustNewIdentityStore(t, pool, schema)

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	now := time.Now().UTC().Truncate(time.Microsecond)
	u, err := s.CreateUser(ctx, CreateUserInput{Email: "admin@example.com", PasswordHash: "h", IsAdmin: true, Verified: true, Now: now})
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}

	got, err := s.UserByEmail(ctx, "admin@example.com")
	if err != nil {
		t.Fatalf("UserByEmail: %v", err)
	}
	if got.ID != u.ID || !got.IsAdmin || got.EmailVerifiedAt == nil {
		t.Fatalf("unexpected user: %+v", got)
	}

	later := now.Add(time.Minute)
	if err := s.RecordSignIn(ctx, u.ID, later); err != nil {
		t.Fatalf("RecordSignIn: %v", err)
	}
	got, err = s.UserByID(ctx, u.ID)
	if err != nil {
		t.Fatalf("UserByID: %v", err)
	}
	if got.LastSignInAt == nil || !got.LastSignInAt.Equal(later) || !got.UpdatedAt.Equal(later) {
		t.Fatalf("sign-in not recorded: %+v", got)
	}

	if err := s.EnsureProfile(ctx, u.ID, now); err != nil {
		t.Fatalf("EnsureProfile: %v", err)
	}
	if err := s.EnsureProfile(ctx, u.ID, now); err != nil {
		t.Fatalf("EnsureProfile again: %v", err)
	}

	if _, err := s.UserByEmail(ctx, "missing@example.com"); !IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
	if err := s.EnsureProfile(ctx, "01HZZZZZZZZZZZZZZZZZZZZZZZ", now); !IsNotFound(err) {
		t.Fatalf("expected not found for missing user, got %v", err)
	}
}

func TestPostgresStore_RunsInsideTx(t *testing.T) {
	t.Parallel()

	pool := mustOpenTestPool(t)
	defer pool.Close()

	schema := mustCreateTestSchema(t, pool)
	t.Cleanup(func() { mustDropSchema(t, pool, schema) })
	mustApplyIdentitySchema(t, pool, schema)

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	tx, err := pool.Begin(ctx)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	txStore := mustNewIdentityStore(t, tx, schema)
	if _, err := txStore.CreateUser(ctx, CreateUserInput{Email: "rolled@example.com", PasswordHash: "h"}); err != nil {
		t.Fatalf("CreateUser in tx: %v", err)
	}
	if err := tx.Rollback(ctx); err != nil {
		t.Fatalf("rollback: %v", err)
	}

	s := mustNewIdentityStore(t, pool, schema)
	if _, err := s.UserByEmail(ctx, "rolled@example.com"); !IsNotFound(err) {
		t.Fatalf("rolled back user must not exist, got %v", err)
	}
}

// ---- helpers ----

func mustNewIdentityStore(t *testing.T, db DBTX, schema string) *PostgresStore {
	t.Helper()

	s, err := NewPostgresStore(db, WithSchema(schema))
	if err != nil {
		t.Fatalf("NewPostgresStore: %v", err)
	}
	return s
}

func mustOpenTestPool(t *testing.T) *pgxpool.Pool {
	t.Helper()

	raw := strings.TrimSpace(os.Getenv("PARTSBIN_DATABASE_URL"))
	if raw == "" || !strings.HasPrefix(raw, "postgres") {
		t.Skip("PARTSBIN_DATABASE_URL is not a postgres URL; skipping Postgres integration test")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	cfg, err := pgxpool.ParseConfig(raw)
	if err != nil {
		t.Fatalf("parse PARTSBIN_DATABASE_URL: %v", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		t.Fatalf("connect postgres: %v", err)
	}

	pingCtx, pingCancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer pingCancel()

	c, err := pool.Acquire(pingCtx)
	if err != nil {
		pool.Close()
		if shouldSkipIntegration(err) {
			t.Skipf("integration test skipped: Postgres unreachable: %v", err)
		}
		t.Fatalf("acquire: %v", err)
	}
	c.Release()

	return pool
}

func mustCreateTestSchema(t *testing.T, pool *pgxpool.Pool) string {
	t.Helper()

	id, err := NewULID(time.Now().UTC())
	if err != nil {
		t.Fatalf("ulid: %v", err)
	}
	schema := "partsbin_it_" + strings.ToLower(id)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if _, err := pool.Exec(ctx, `CREATE SCHEMA `+pgx.Identifier{schema}.Sanitize()); err != nil {
		t.Fatalf("create schema: %v", err)
	}
	return schema
}

func mustDropSchema(t *testing.T, pool *pgxpool.Pool, schema string) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, _ = pool.Exec(ctx, `DROP SCHEMA IF EXISTS `+pgx.Identifier{schema}.Sanitize()+` CASCADE`)
}

func mustApplyIdentitySchema(t *testing.T, pool *pgxpool.Pool, schema string) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	users := PGIdent(schema, "users")
	profiles := PGIdent(schema, "profiles")

	schemaSQL := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
  id TEXT PRIMARY KEY,
  email TEXT NOT NULL,
  password_hash TEXT NOT NULL,
  is_admin BOOLEAN NOT NULL DEFAULT false,
  created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
  updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
  email_verified_at TIMESTAMPTZ NULL,
  last_sign_in_at TIMESTAMPTZ NULL,
  CONSTRAINT uq_users_email UNIQUE (email)
);

CREATE TABLE IF NOT EXISTS %s (
  user_id TEXT PRIMARY KEY REFERENCES %s(id) ON DELETE CASCADE,
  created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
  updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
`, users, profiles, users)

	if _, err := pool.Exec(ctx, schemaSQL); err != nil {
		t.Fatalf("apply schema: %v", err)
	}
}

func shouldSkipIntegration(err error) bool {
	if err == nil {
		return false
	}
	if os.Getenv("CI") != "" {
		return false
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "context deadline exceeded") ||
		strings.Contains(msg, "timeout") ||
		strings.Contains(msg, "dial tcp") ||
		strings.Contains(msg, "no such host")
}
