package identity

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX is the subset of pgx shared by *pgxpool.Pool, *pgx.Conn and pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore implements Store over PostgreSQL.
//
// The connection (pool or tx) is owned by the caller; this store never closes
// or commits it. Schema/table identifiers are quoted with pgx.Identifier.
type PostgresStore struct {
	db     DBTX
	schema string
}

// PostgresOption configures the store.
type PostgresOption func(*PostgresStore) error

var pgIdentRe = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// DefaultSchema is the schema used when none is configured.
const DefaultSchema = "public"

// WithSchema sets the Postgres schema used by the store (default "public").
// The schema name is validated to be a legal PostgreSQL identifier.
func WithSchema(schema string) PostgresOption {
	return func(s *PostgresStore) error {
		schema = strings.TrimSpace(schema)
		if schema == "" {
			return fmt.Errorf("identity: empty schema")
		}
		if !PGIdentIsValid(schema) {
			return fmt.Errorf("identity: invalid schema identifier")
		}
		s.schema = schema
		return nil
	}
}

// NewPostgresStore constructs a PostgresStore on db.
func NewPostgresStore(db DBTX, opts ...PostgresOption) (*PostgresStore, error) {
	st := &PostgresStore{
		db:     db,
		schema: DefaultSchema,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(st); err != nil {
			return nil, err
		}
	}
	if st.db == nil {
		return nil, fmt.Errorf("identity: nil db")
	}
	return st, nil
}

const userColumns = `id, email, password_hash, is_admin, created_at, updated_at, email_verified_at, last_sign_in_at`

// CreateUser inserts a new user row.
func (s *PostgresStore) CreateUser(ctx context.Context, in CreateUserInput) (User, error) {
	const op = "identity.CreateUser"

	if err := ctx.Err(); err != nil {
		return User{}, err
	}

	email := NormalizeEmail(in.Email)
	if email == "" {
		return User{}, pgInvalid(op, "email is required")
	}
	if strings.TrimSpace(in.PasswordHash) == "" {
		return User{}, pgInvalid(op, "password hash is required")
	}

	now := in.Now
	if now.IsZero() {
		now = time.Now()
	}
	now = now.UTC()

	userID, err := NewULID(now)
	if err != nil {
		return User{}, err
	}

	var verifiedAt *time.Time
	if in.Verified {
		verifiedAt = &now
	}

	_, err = s.db.Exec(ctx,
		`INSERT INTO `+s.table("users")+` (
		     id, email, password_hash, is_admin, created_at, updated_at, email_verified_at
		   ) VALUES ($1, $2, $3, $4, $5, $5, $6)`,
		userID, email, in.PasswordHash, in.IsAdmin, now, verifiedAt,
	)
	if err != nil {
		if field, ok := pgClassifyUniqueViolation(err); ok {
			return User{}, ConflictError{Op: op, Field: field}
		}
		return User{}, fmt.Errorf("%s: %w", op, err)
	}

	return User{
		ID:              userID,
		Email:           email,
		PasswordHash:    in.PasswordHash,
		IsAdmin:         in.IsAdmin,
		CreatedAt:       now,
		UpdatedAt:       now,
		EmailVerifiedAt: verifiedAt,
	}, nil
}

// UserByID loads a user by id.
func (s *PostgresStore) UserByID(ctx context.Context, id string) (User, error) {
	const op = "identity.UserByID"

	if strings.TrimSpace(id) == "" {
		return User{}, pgInvalid(op, "missing user_id")
	}
	return s.userWhere(ctx, op, "id", id)
}

// UserByEmail loads a user by exact (trimmed) email.
func (s *PostgresStore) UserByEmail(ctx context.Context, email string) (User, error) {
	const op = "identity.UserByEmail"

	email = NormalizeEmail(email)
	if email == "" {
		return User{}, pgInvalid(op, "missing email")
	}
	return s.userWhere(ctx, op, "email", email)
}

func (s *PostgresStore) userWhere(ctx context.Context, op, column, value string) (User, error) {
	var u User
	err := s.db.QueryRow(ctx,
		`SELECT `+userColumns+`
		   FROM `+s.table("users")+`
		  WHERE `+pgx.Identifier{column}.Sanitize()+` = $1`,
		value,
	).Scan(
		&u.ID,
		&u.Email,
		&u.PasswordHash,
		&u.IsAdmin,
		&u.CreatedAt,
		&u.UpdatedAt,
		&u.EmailVerifiedAt,
		&u.LastSignInAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, NotFoundError{Op: op, Resource: "user"}
		}
		return User{}, fmt.Errorf("%s: %w", op, err)
	}
	return u, nil
}

// RecordSignIn stamps last_sign_in_at and updated_at.
func (s *PostgresStore) RecordSignIn(ctx context.Context, userID string, now time.Time) error {
	const op = "identity.RecordSignIn"

	tag, err := s.db.Exec(ctx,
		`UPDATE `+s.table("users")+`
		    SET last_sign_in_at = $2, updated_at = $2
		  WHERE id = $1`,
		userID, now.UTC(),
	)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if tag.RowsAffected() == 0 {
		return NotFoundError{Op: op, Resource: "user"}
	}
	return nil
}

// SetPasswordHash replaces the user's password hash.
func (s *PostgresStore) SetPasswordHash(ctx context.Context, userID, hash string, now time.Time) error {
	const op = "identity.SetPasswordHash"

	if strings.TrimSpace(hash) == "" {
		return pgInvalid(op, "password hash is required")
	}

	tag, err := s.db.Exec(ctx,
		`UPDATE `+s.table("users")+`
		    SET password_hash = $2, updated_at = $3
		  WHERE id = $1`,
		userID, hash, now.UTC(),
	)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if tag.RowsAffected() == 0 {
		return NotFoundError{Op: op, Resource: "user"}
	}
	return nil
}

// EnsureProfile inserts an empty profile row; an existing row is left alone.
func (s *PostgresStore) EnsureProfile(ctx context.Context, userID string, now time.Time) error {
	const op = "identity.EnsureProfile"

	now = now.UTC()
	_, err := s.db.Exec(ctx,
		`INSERT INTO `+s.table("profiles")+` (user_id, created_at, updated_at)
		 VALUES ($1, $2, $2)
		 ON CONFLICT (user_id) DO NOTHING`,
		userID, now,
	)
	if err != nil {
		if pgIsForeignKeyViolation(err) {
			return NotFoundError{Op: op, Resource: "user"}
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (s *PostgresStore) table(name string) string {
	return PGIdent(s.schema, name)
}

// ---- helpers ----

// pgInvalid standardizes invalid input errors.
func pgInvalid(op, msg string) error {
	return OpError{Op: op, Kind: ErrInvalidInput, Msg: msg}
}

// PGIdentIsValid checks if a string is a safe Postgres identifier.
func PGIdentIsValid(s string) bool {
	return pgIdentRe.MatchString(s)
}

// PGIdent safely quotes a schema-qualified identifier: "schema"."name".
func PGIdent(schema, name string) string {
	return pgx.Identifier{schema, name}.Sanitize()
}

func pgIsForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == "23503" // foreign_key_violation
}

func pgClassifyUniqueViolation(err error) (field string, ok bool) {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return "", false
	}
	if pgErr.Code != "23505" { // unique_violation
		return "", false
	}

	// Prefer stable schema constraint names, then fall back to substring matching.
	c := strings.ToLower(strings.TrimSpace(pgErr.ConstraintName))

	switch c {
	case "uq_users_email":
		return "email", true
	case "users_pkey":
		return "id", true
	case "profiles_pkey":
		return "profile", true
	default:
		if strings.Contains(c, "email") {
			return "email", true
		}
		return "unique", true
	}
}
