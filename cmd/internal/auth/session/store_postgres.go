package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"partsbin/cmd/identity"
)

// DBTX is the subset of pgx shared by *pgxpool.Pool and pgx.Tx. Begin on a
// pgx.Tx opens a savepoint.
type DBTX interface {
	identity.DBTX
	Begin(ctx context.Context) (pgx.Tx, error)
}

// PostgresStore implements Store using PostgreSQL.
type PostgresStore struct {
	db     DBTX
	schema string
}

// NewPostgresStore creates a Postgres-backed session store on db.
func NewPostgresStore(db DBTX, schema string) (*PostgresStore, error) {
	if db == nil {
		return nil, fmt.Errorf("session: nil db")
	}
	schema = strings.TrimSpace(schema)
	if schema == "" {
		schema = identity.DefaultSchema
	}
	if !identity.PGIdentIsValid(schema) {
		return nil, fmt.Errorf("session: invalid schema identifier")
	}
	return &PostgresStore{db: db, schema: schema}, nil
}

func (s *PostgresStore) table() string { return identity.PGIdent(s.schema, "sessions") }

// Insert runs inside its own savepoint so a unique violation does not abort
// the caller's transaction.
func (s *PostgresStore) Insert(ctx context.Context, row Row) error {
	sp, err := s.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = sp.Rollback(ctx) }()

	_, err = sp.Exec(ctx, `
		INSERT INTO `+s.table()+` (id, user_id, token_hash, expires_at, is_active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, row.ID, row.UserID, row.TokenHash, row.ExpiresAt.UTC(), row.IsActive, row.CreatedAt.UTC())
	if err != nil {
		if pgIsTokenHashViolation(err) {
			return ErrTokenCollision
		}
		return err
	}

	return sp.Commit(ctx)
}

// FindLiveByHash loads the live session for a token digest.
func (s *PostgresStore) FindLiveByHash(ctx context.Context, hash string, now time.Time) (Row, error) {
	return s.findLive(ctx, "token_hash", hash, now)
}

// FindLiveByID loads the live session with id.
func (s *PostgresStore) FindLiveByID(ctx context.Context, id string, now time.Time) (Row, error) {
	return s.findLive(ctx, "id", id, now)
}

// column is one of the fixed names above, never caller input.
func (s *PostgresStore) findLive(ctx context.Context, column, key string, now time.Time) (Row, error) {
	var row Row

	err := s.db.QueryRow(ctx, `
		SELECT id, user_id, token_hash, expires_at, is_active, created_at
		FROM `+s.table()+`
		WHERE `+column+` = $1 AND is_active AND expires_at > $2
	`, key, now.UTC()).Scan(
		&row.ID,
		&row.UserID,
		&row.TokenHash,
		&row.ExpiresAt,
		&row.IsActive,
		&row.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return Row{}, ErrSessionNotFound
	}
	if err != nil {
		return Row{}, err
	}

	return row, nil
}

// DeactivateByHash flips is_active for the row with hash (idempotent).
func (s *PostgresStore) DeactivateByHash(ctx context.Context, hash string) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE `+s.table()+`
		SET is_active = false
		WHERE token_hash = $1 AND is_active
	`, hash)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// DeactivateByID flips is_active for the row with id (idempotent).
func (s *PostgresStore) DeactivateByID(ctx context.Context, id string) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE `+s.table()+`
		SET is_active = false
		WHERE id = $1 AND is_active
	`, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// DeactivateAllForUser flips every active session of a user.
func (s *PostgresStore) DeactivateAllForUser(ctx context.Context, userID string) (int64, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE `+s.table()+`
		SET is_active = false
		WHERE user_id = $1 AND is_active
	`, userID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// PurgeForUser deletes expired or inactive sessions of a user.
func (s *PostgresStore) PurgeForUser(ctx context.Context, userID string, now time.Time) (int64, error) {
	tag, err := s.db.Exec(ctx, `
		DELETE FROM `+s.table()+`
		WHERE user_id = $1 AND (NOT is_active OR expires_at <= $2)
	`, userID, now.UTC())
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// CountLive counts live sessions of a user.
func (s *PostgresStore) CountLive(ctx context.Context, userID string, now time.Time) (int64, error) {
	var n int64
	err := s.db.QueryRow(ctx, `
		SELECT count(*)
		FROM `+s.table()+`
		WHERE user_id = $1 AND is_active AND expires_at > $2
	`, userID, now.UTC()).Scan(&n)
	return n, err
}

func pgIsTokenHashViolation(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	if pgErr.Code != "23505" { // unique_violation
		return false
	}
	c := strings.ToLower(pgErr.ConstraintName)
	return c == "uq_sessions_token_hash" || strings.Contains(c, "token_hash")
}
