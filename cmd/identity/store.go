package identity

import (
	"context"
	"time"
)

// User is partsbin's security principal.
type User struct {
	ID           string
	Email        string
	PasswordHash string
	IsAdmin      bool

	CreatedAt       time.Time
	UpdatedAt       time.Time
	EmailVerifiedAt *time.Time
	LastSignInAt    *time.Time
}

// CreateUserInput describes a user to insert. PasswordHash is already hashed.
type CreateUserInput struct {
	Email        string
	PasswordHash string
	IsAdmin      bool
	// Verified marks the email as verified at creation (bootstrap admin).
	Verified bool
	Now      time.Time
}

// Store is the user persistence boundary. Implementations are bound either to
// a pool or to a single transaction; callers choose by how they obtain the Store.
type Store interface {
	// CreateUser inserts a user. A duplicate email yields ConflictError{Field: "email"}.
	CreateUser(ctx context.Context, in CreateUserInput) (User, error)

	// UserByID and UserByEmail return NotFoundError when no row matches.
	UserByID(ctx context.Context, id string) (User, error)
	UserByEmail(ctx context.Context, email string) (User, error)

	// RecordSignIn sets last_sign_in_at and updated_at.
	RecordSignIn(ctx context.Context, userID string, now time.Time) error

	// SetPasswordHash replaces the stored hash (rehash on login).
	SetPasswordHash(ctx context.Context, userID, hash string, now time.Time) error

	// EnsureProfile inserts an empty profile row unless one exists.
	EnsureProfile(ctx context.Context, userID string, now time.Time) error
}
