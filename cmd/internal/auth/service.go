package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"partsbin/cmd/identity"
	"partsbin/cmd/internal/auth/session"
	"partsbin/cmd/internal/storage"
	"partsbin/cmd/security/password"
	"partsbin/cmd/security/token"
)

// maxCredentialLen bounds raw bearer values before any parsing or hashing.
const maxCredentialLen = 4096

// RegisterInput is the registration form.
type RegisterInput struct {
	Email           string
	Password        string
	ConfirmPassword string
}

// Result is returned by Register, Login and Refresh. AccessToken is always
// the signed access token; the opaque session token is Session.Token and is
// only set by Register and Login.
type Result struct {
	User             identity.User
	AccessToken      string
	AccessExpiresAt  time.Time
	RefreshToken     string
	RefreshExpiresAt time.Time
	Session          session.Session
}

// Service implements register, login, validate, refresh and logout over a
// storage.Database. It is safe for concurrent use.
type Service struct {
	cfg       Config
	db        storage.Database
	passwords password.Config
	codec     token.Codec
	sessions  *session.Service

	log       *slog.Logger
	metrics   *Metrics
	now       func() time.Time
	verifiers []verifier

	dummyHash string
}

// Option customizes a Service.
type Option func(*Service)

// WithLogger sets the service logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.log = l
		}
	}
}

// WithMetrics enables Prometheus counters.
func WithMetrics(m *Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithClock replaces time.Now (tests).
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// NewService wires the auth service. sessions must be built with the same
// token hasher for the lifetime of the stored rows.
func NewService(cfg Config, db storage.Database, passwords password.Config, codec token.Codec, sessions *session.Service, opts ...Option) (*Service, error) {
	if db == nil {
		return nil, errors.New("auth: nil database")
	}
	if codec == nil {
		return nil, errors.New("auth: nil token codec")
	}
	if sessions == nil {
		return nil, errors.New("auth: nil session service")
	}
	if cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0 {
		return nil, fmt.Errorf("%w: non-positive token ttl", ErrConfig)
	}
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = sessions.TTL()
	}

	s := &Service{
		cfg:       cfg,
		db:        db,
		passwords: passwords,
		codec:     codec,
		sessions:  sessions,
		log:       slog.Default(),
		now:       time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}

	s.verifiers = []verifier{
		tokenVerifier{codec: codec},
		sessionVerifier{db: db, sessions: sessions},
	}

	// Dummy hash for timing-resistant login checks.
	hash, err := passwords.Hash("partsbin-dummy-password-for-timing-only")
	if err != nil {
		return nil, fmt.Errorf("auth: dummy hash: %w", err)
	}
	s.dummyHash = hash

	return s, nil
}

// Config returns the service configuration.
func (s *Service) Config() Config { return s.cfg }

// Register creates a user with a first session and returns its credentials.
// Hashing happens before the transaction; the user, session and profile rows
// are written atomically.
func (s *Service) Register(ctx context.Context, in RegisterInput) (Result, error) {
	email := identity.NormalizeEmail(in.Email)

	if in.Password != in.ConfirmPassword {
		s.metrics.op("register", "password_mismatch")
		return Result{}, ErrPasswordMismatch
	}
	if err := s.passwords.Validate(in.Password); err != nil {
		s.metrics.op("register", "password_too_weak")
		return Result{}, fmt.Errorf("%w: %w", ErrPasswordTooWeak, err)
	}
	if !identity.ValidEmail(email) {
		s.metrics.op("register", "invalid_email")
		return Result{}, ErrInvalidEmail
	}

	// Fast path; the unique constraint still arbitrates concurrent registrations.
	if _, err := s.db.Stores().Users.UserByEmail(ctx, email); err == nil {
		s.metrics.op("register", "email_taken")
		return Result{}, ErrEmailTaken
	} else if !identity.IsNotFound(err) {
		s.metrics.op("register", "error")
		return Result{}, err
	}

	hash, err := s.passwords.Hash(in.Password)
	if err != nil {
		s.metrics.op("register", "password_too_weak")
		return Result{}, fmt.Errorf("%w: %w", ErrPasswordTooWeak, err)
	}

	now := s.now().UTC()
	var res Result
	err = s.db.InTx(ctx, func(ctx context.Context, st storage.Stores) error {
		u, err := st.Users.CreateUser(ctx, identity.CreateUserInput{
			Email:        email,
			PasswordHash: hash,
			Now:          now,
		})
		if err != nil {
			if f, ok := identity.ConflictField(err); ok && f == "email" {
				return ErrEmailTaken
			}
			return err
		}

		sess, err := s.sessions.Create(ctx, st.Sessions, u.ID, s.cfg.SessionTTL, now)
		if err != nil {
			return err
		}

		res, err = s.mint(u, sess, now)
		if err != nil {
			return err
		}

		return st.Users.EnsureProfile(ctx, u.ID, now)
	})
	if err != nil {
		if errors.Is(err, ErrEmailTaken) {
			s.metrics.op("register", "email_taken")
			return Result{}, err
		}
		s.metrics.op("register", "error")
		s.log.ErrorContext(ctx, "auth.register.fail", "err", err)
		return Result{}, err
	}

	s.metrics.op("register", "ok")
	s.log.InfoContext(ctx, "auth.register.ok", "user_id", res.User.ID, "session_id", res.Session.ID)
	return res, nil
}

// Login verifies credentials and opens a new session. Unknown email and wrong
// password are indistinguishable to the caller.
func (s *Service) Login(ctx context.Context, email, pw string) (Result, error) {
	email = identity.NormalizeEmail(email)
	if email == "" || pw == "" {
		s.burnDummy(pw)
		s.metrics.op("login", "invalid_credentials")
		return Result{}, ErrInvalidCredentials
	}

	u, err := s.db.Stores().Users.UserByEmail(ctx, email)
	if err != nil {
		if identity.IsNotFound(err) {
			s.burnDummy(pw)
			s.metrics.op("login", "invalid_credentials")
			s.log.InfoContext(ctx, "auth.login.fail", "reason", "not_found")
			return Result{}, ErrInvalidCredentials
		}
		s.metrics.op("login", "error")
		return Result{}, err
	}

	ok, err := s.passwords.Verify(u.PasswordHash, pw)
	if err != nil {
		s.metrics.op("login", "error")
		s.log.ErrorContext(ctx, "auth.login.stored_hash.invalid", "user_id", u.ID, "err", err)
		return Result{}, fmt.Errorf("auth: verify password: %w", err)
	}
	if !ok {
		s.metrics.op("login", "invalid_credentials")
		s.log.InfoContext(ctx, "auth.login.fail", "reason", "bad_password", "user_id", u.ID)
		return Result{}, ErrInvalidCredentials
	}

	var rehash string
	if s.passwords.NeedsRehash(u.PasswordHash) {
		if h, err := s.passwords.Hash(pw); err == nil {
			rehash = h
		} else {
			s.log.WarnContext(ctx, "auth.login.rehash.fail", "user_id", u.ID, "err", err)
		}
	}

	now := s.now().UTC()
	var res Result
	err = s.db.InTx(ctx, func(ctx context.Context, st storage.Stores) error {
		if _, err := s.sessions.PurgeExpired(ctx, st.Sessions, u.ID, now); err != nil {
			return err
		}

		sess, err := s.sessions.Create(ctx, st.Sessions, u.ID, s.cfg.SessionTTL, now)
		if err != nil {
			return err
		}

		signedIn := u
		signedIn.LastSignInAt = &now
		signedIn.UpdatedAt = now
		res, err = s.mint(signedIn, sess, now)
		if err != nil {
			return err
		}

		if err := st.Users.RecordSignIn(ctx, u.ID, now); err != nil {
			return err
		}
		if rehash != "" {
			if err := st.Users.SetPasswordHash(ctx, u.ID, rehash, now); err != nil {
				return err
			}
			res.User.PasswordHash = rehash
		}
		return nil
	})
	if err != nil {
		s.metrics.op("login", "error")
		s.log.ErrorContext(ctx, "auth.login.fail", "user_id", u.ID, "err", err)
		return Result{}, err
	}

	s.metrics.op("login", "ok")
	s.log.InfoContext(ctx, "auth.login.ok", "user_id", u.ID, "session_id", res.Session.ID, "rehashed", rehash != "")
	return res, nil
}

// Validate resolves raw to a user. It tries the signed-token verifier, then
// the session verifier. No user is a normal Outcome; err is reserved for
// system failures.
func (s *Service) Validate(ctx context.Context, raw string) (Outcome, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || len(raw) > maxCredentialLen {
		s.metrics.validated(ViaNone)
		return Outcome{Reason: ErrNoSession}, nil
	}

	now := s.now().UTC()
	var reason error
	for _, v := range s.verifiers {
		vd, err := v.verify(ctx, raw, now)
		if err != nil {
			return Outcome{}, err
		}
		if vd.ok {
			s.metrics.validated(v.via())
			return Outcome{User: vd.user, Via: v.via(), SessionID: vd.sessionID}, nil
		}
		if reasonRank(vd.reason) > reasonRank(reason) {
			reason = vd.reason
		}
	}

	if reason == nil {
		reason = ErrNoSession
	}
	s.metrics.validated(ViaNone)
	if s.log.Enabled(ctx, slog.LevelDebug) {
		if c, ok := s.codec.DecodeUnsafe(raw); ok {
			s.log.DebugContext(ctx, "auth.validate.rejected", "reason", reason.Error(), "sub", c.Subject, "typ", string(c.Type))
		}
	}
	return Outcome{Reason: reason}, nil
}

// Refresh mints a new access/refresh pair from a refresh token. The pair is
// bound to the same user and session id; a deactivated session cannot be
// refreshed.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (Result, error) {
	refreshToken = strings.TrimSpace(refreshToken)
	if refreshToken == "" || len(refreshToken) > maxCredentialLen {
		s.metrics.op("refresh", "invalid")
		return Result{}, ErrRefreshInvalid
	}

	now := s.now().UTC()
	c, err := s.codec.Verify(refreshToken, now)
	if err != nil || c.Type != token.TypeRefresh || c.Subject == "" {
		s.metrics.op("refresh", "invalid")
		return Result{}, ErrRefreshInvalid
	}

	st := s.db.Stores()
	var sess session.Session
	if c.SessionID != "" {
		sess, err = s.sessions.FindLiveByID(ctx, st.Sessions, c.SessionID, now)
		if errors.Is(err, session.ErrSessionNotFound) || (err == nil && sess.UserID != c.Subject) {
			s.metrics.op("refresh", "invalid")
			return Result{}, ErrRefreshInvalid
		}
		if err != nil {
			s.metrics.op("refresh", "error")
			return Result{}, err
		}
	}

	u, err := st.Users.UserByID(ctx, c.Subject)
	if identity.IsNotFound(err) {
		s.metrics.op("refresh", "invalid")
		return Result{}, ErrRefreshInvalid
	}
	if err != nil {
		s.metrics.op("refresh", "error")
		return Result{}, err
	}

	res, err := s.mint(u, sess, now)
	if err != nil {
		s.metrics.op("refresh", "error")
		s.log.ErrorContext(ctx, "auth.refresh.fail", "user_id", u.ID, "err", err)
		return Result{}, err
	}

	s.metrics.op("refresh", "ok")
	s.log.InfoContext(ctx, "auth.refresh.ok", "user_id", u.ID, "session_id", c.SessionID)
	return res, nil
}

// Logout deactivates the session identified by raw: an opaque session token,
// or a signed token (expired or not) carrying a session id. It reports whether
// a session was deactivated; repeating it is harmless.
func (s *Service) Logout(ctx context.Context, raw string) (bool, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || len(raw) > maxCredentialLen {
		return false, nil
	}
	st := s.db.Stores()

	ok, err := s.sessions.Deactivate(ctx, st.Sessions, raw)
	if err != nil {
		s.metrics.op("logout", "error")
		return false, err
	}
	if !ok {
		c, verr := s.codec.Verify(raw, s.now().UTC())
		if (verr == nil || errors.Is(verr, token.ErrExpired)) && c.SessionID != "" {
			ok, err = s.sessions.DeactivateByID(ctx, st.Sessions, c.SessionID)
			if err != nil {
				s.metrics.op("logout", "error")
				return false, err
			}
		}
	}

	if ok {
		s.metrics.op("logout", "ok")
	} else {
		s.metrics.op("logout", "noop")
	}
	return ok, nil
}

// LogoutAll deactivates every session of userID.
func (s *Service) LogoutAll(ctx context.Context, userID string) (int64, error) {
	if strings.TrimSpace(userID) == "" {
		return 0, nil
	}
	n, err := s.sessions.DeactivateAll(ctx, s.db.Stores().Sessions, userID)
	if err != nil {
		s.metrics.op("logout_all", "error")
		return 0, err
	}
	s.metrics.op("logout_all", "ok")
	s.log.InfoContext(ctx, "auth.logout_all.ok", "user_id", userID, "sessions", n)
	return n, nil
}

// User loads a user by id.
func (s *Service) User(ctx context.Context, id string) (identity.User, error) {
	return s.db.Stores().Users.UserByID(ctx, id)
}

// LiveSessions counts the user's live sessions.
func (s *Service) LiveSessions(ctx context.Context, userID string) (int64, error) {
	return s.sessions.CountLive(ctx, s.db.Stores().Sessions, userID, s.now().UTC())
}

// EnsureDefaultAdmin creates the configured administrator unless a user with
// that email exists. It is safe to call on every start and from several
// instances at once.
func (s *Service) EnsureDefaultAdmin(ctx context.Context) (bool, error) {
	email := identity.NormalizeEmail(s.cfg.AdminEmail)
	if email == "" || s.cfg.AdminPassword == "" {
		s.log.InfoContext(ctx, "auth.admin.bootstrap.skipped")
		return false, nil
	}

	users := s.db.Stores().Users
	if _, err := users.UserByEmail(ctx, email); err == nil {
		return false, nil
	} else if !identity.IsNotFound(err) {
		return false, err
	}

	hash, err := s.passwords.Hash(s.cfg.AdminPassword)
	if err != nil {
		return false, fmt.Errorf("auth: admin password: %w", err)
	}

	now := s.now().UTC()
	var created identity.User
	err = s.db.InTx(ctx, func(ctx context.Context, st storage.Stores) error {
		u, err := st.Users.CreateUser(ctx, identity.CreateUserInput{
			Email:        email,
			PasswordHash: hash,
			IsAdmin:      true,
			Verified:     true,
			Now:          now,
		})
		if err != nil {
			return err
		}
		created = u
		return st.Users.EnsureProfile(ctx, u.ID, now)
	})
	if err != nil {
		// Another instance won the race.
		if f, ok := identity.ConflictField(err); ok && f == "email" {
			return false, nil
		}
		return false, err
	}

	s.log.InfoContext(ctx, "auth.admin.bootstrap.created", "user_id", created.ID)
	return true, nil
}

// mint signs an access/refresh pair for u bound to sess.
func (s *Service) mint(u identity.User, sess session.Session, now time.Time) (Result, error) {
	base := token.Claims{
		Subject:   u.ID,
		Email:     u.Email,
		IsAdmin:   u.IsAdmin,
		SessionID: sess.ID,
	}

	access := base
	access.Type = token.TypeAccess
	accessTok, accessExp, err := s.codec.Sign(access, s.cfg.AccessTTL, now)
	if err != nil {
		return Result{}, fmt.Errorf("auth: sign access token: %w", err)
	}

	refresh := base
	refresh.Type = token.TypeRefresh
	refreshTok, refreshExp, err := s.codec.Sign(refresh, s.cfg.RefreshTTL, now)
	if err != nil {
		return Result{}, fmt.Errorf("auth: sign refresh token: %w", err)
	}

	return Result{
		User:             u,
		AccessToken:      accessTok,
		AccessExpiresAt:  accessExp,
		RefreshToken:     refreshTok,
		RefreshExpiresAt: refreshExp,
		Session:          sess,
	}, nil
}

func (s *Service) burnDummy(pw string) {
	_, _ = s.passwords.Verify(s.dummyHash, pw)
}
