package session

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"partsbin/cmd/identity"
	"partsbin/cmd/security/token"
)

// Session is a live login. Token is the opaque bearer value and is only set
// on the value returned by Create; it is never persisted or logged.
type Session struct {
	ID        string
	UserID    string
	Token     string
	TokenHash string
	ExpiresAt time.Time
	IsActive  bool
	CreatedAt time.Time
}

// TokenGenerator produces a fresh opaque token.
type TokenGenerator func(now time.Time) (string, error)

// Service implements session operations over a caller-supplied Store.
type Service struct {
	cfg         Config
	hasher      token.Hasher
	generate    TokenGenerator
	onCollision func(attempt int)
	log         *slog.Logger
}

// Option customizes a Service.
type Option func(*Service)

// WithTokenGenerator replaces the default token generator.
func WithTokenGenerator(g TokenGenerator) Option {
	return func(s *Service) {
		if g != nil {
			s.generate = g
		}
	}
}

// WithCollisionHook registers fn to be called on every token collision.
func WithCollisionHook(fn func(attempt int)) Option {
	return func(s *Service) { s.onCollision = fn }
}

// WithLogger sets the logger used for collision diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.log = l
		}
	}
}

// NewService constructs a Service. The hasher must stay the same for the
// lifetime of the stored rows.
func NewService(cfg Config, hasher token.Hasher, opts ...Option) *Service {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultConfig().TTL
	}

	s := &Service{
		cfg:      cfg,
		hasher:   hasher,
		generate: token.NewSessionToken,
		log:      slog.Default(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// TTL returns the configured default session lifetime.
func (s *Service) TTL() time.Duration { return s.cfg.TTL }

// Create inserts a new active session for userID that expires at now+ttl.
//
// It must run on the caller's transaction-bound Store. A token collision is
// retried with a fresh token; after MaxTokenAttempts collisions it returns an
// ExhaustedError wrapping ErrTokenGenerationExhausted.
func (s *Service) Create(ctx context.Context, st Store, userID string, ttl time.Duration, now time.Time) (Session, error) {
	if strings.TrimSpace(userID) == "" {
		return Session{}, errors.New("session: missing user id")
	}
	if ttl <= 0 {
		ttl = s.cfg.TTL
	}
	now = now.UTC()

	for attempt := 1; attempt <= MaxTokenAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return Session{}, err
		}

		plain, err := s.generate(now)
		if err != nil {
			return Session{}, err
		}
		id, err := identity.NewULID(now)
		if err != nil {
			return Session{}, err
		}

		row := Row{
			ID:        id,
			UserID:    userID,
			TokenHash: s.hasher.Hex(plain),
			ExpiresAt: now.Add(ttl),
			IsActive:  true,
			CreatedAt: now,
		}

		err = st.Insert(ctx, row)
		if err == nil {
			return fromRow(row, plain), nil
		}
		if !errors.Is(err, ErrTokenCollision) {
			return Session{}, err
		}

		s.log.WarnContext(ctx, "session.token.collision",
			slog.String("user_id", userID),
			slog.Int("attempt", attempt),
		)
		if s.onCollision != nil {
			s.onCollision(attempt)
		}
	}

	return Session{}, ExhaustedError{UserID: userID, Attempts: MaxTokenAttempts}
}

// FindLive returns the active, unexpired session for tok, or ErrSessionNotFound.
func (s *Service) FindLive(ctx context.Context, st Store, tok string, now time.Time) (Session, error) {
	tok = strings.TrimSpace(tok)
	// Bound pathological inputs before hashing.
	if tok == "" || len(tok) > 4096 {
		return Session{}, ErrSessionNotFound
	}

	row, err := st.FindLiveByHash(ctx, s.hasher.Hex(tok), now)
	if err != nil {
		return Session{}, err
	}
	// Stores filter already; re-check so a lax backend cannot leak a dead row.
	if !row.Live(now) {
		return Session{}, ErrSessionNotFound
	}
	return fromRow(row, ""), nil
}

// FindLiveByID returns the live session with id, or ErrSessionNotFound.
func (s *Service) FindLiveByID(ctx context.Context, st Store, id string, now time.Time) (Session, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Session{}, ErrSessionNotFound
	}
	row, err := st.FindLiveByID(ctx, id, now)
	if err != nil {
		return Session{}, err
	}
	if !row.Live(now) {
		return Session{}, ErrSessionNotFound
	}
	return fromRow(row, ""), nil
}

// Deactivate marks the session for tok inactive. Unknown or already inactive
// tokens return (false, nil).
func (s *Service) Deactivate(ctx context.Context, st Store, tok string) (bool, error) {
	tok = strings.TrimSpace(tok)
	if tok == "" || len(tok) > 4096 {
		return false, nil
	}
	return st.DeactivateByHash(ctx, s.hasher.Hex(tok))
}

// DeactivateByID marks the session with id inactive.
func (s *Service) DeactivateByID(ctx context.Context, st Store, id string) (bool, error) {
	if strings.TrimSpace(id) == "" {
		return false, nil
	}
	return st.DeactivateByID(ctx, id)
}

// DeactivateAll marks every session of userID inactive (logout everywhere).
func (s *Service) DeactivateAll(ctx context.Context, st Store, userID string) (int64, error) {
	return st.DeactivateAllForUser(ctx, userID)
}

// PurgeExpired deletes the user's expired or inactive sessions.
func (s *Service) PurgeExpired(ctx context.Context, st Store, userID string, now time.Time) (int64, error) {
	return st.PurgeForUser(ctx, userID, now)
}

// CountLive counts the user's live sessions.
func (s *Service) CountLive(ctx context.Context, st Store, userID string, now time.Time) (int64, error) {
	return st.CountLive(ctx, userID, now)
}

func fromRow(r Row, plain string) Session {
	return Session{
		ID:        r.ID,
		UserID:    r.UserID,
		Token:     plain,
		TokenHash: r.TokenHash,
		ExpiresAt: r.ExpiresAt,
		IsActive:  r.IsActive,
		CreatedAt: r.CreatedAt,
	}
}
