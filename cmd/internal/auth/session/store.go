package session

import (
	"context"
	"time"
)

// Row mirrors the sessions table. Only the token digest is stored.
type Row struct {
	ID        string
	UserID    string
	TokenHash string
	ExpiresAt time.Time
	IsActive  bool
	CreatedAt time.Time
}

// Live reports whether the row is active and unexpired at now.
func (r Row) Live(now time.Time) bool {
	return r.IsActive && r.ExpiresAt.After(now)
}

// Store abstracts persistence for session rows. A Store is bound to a pool or
// to a transaction by its constructor.
type Store interface {
	// Insert adds a row. A unique violation on the token digest returns
	// ErrTokenCollision and leaves any enclosing transaction usable.
	Insert(ctx context.Context, row Row) error

	// FindLiveByHash returns the active, unexpired row for hash, or ErrSessionNotFound.
	FindLiveByHash(ctx context.Context, hash string, now time.Time) (Row, error)

	// FindLiveByID is FindLiveByHash keyed by session id.
	FindLiveByID(ctx context.Context, id string, now time.Time) (Row, error)

	// DeactivateByHash and DeactivateByID report whether a still-active row was flipped.
	DeactivateByHash(ctx context.Context, hash string) (bool, error)
	DeactivateByID(ctx context.Context, id string) (bool, error)

	// DeactivateAllForUser flips every active row of the user.
	DeactivateAllForUser(ctx context.Context, userID string) (int64, error)

	// PurgeForUser deletes the user's expired or inactive rows.
	PurgeForUser(ctx context.Context, userID string, now time.Time) (int64, error)

	// CountLive counts the user's active, unexpired rows.
	CountLive(ctx context.Context, userID string, now time.Time) (int64, error)
}
