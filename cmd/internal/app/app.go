// Package app wires the partsbin server runtime: config, logging, storage,
// the auth service and HTTP routes.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"partsbin/cmd/internal/auth"
	authapi "partsbin/cmd/internal/auth/api"
	"partsbin/cmd/internal/auth/session"
	"partsbin/cmd/internal/storage"
	"partsbin/cmd/security/password"
)

// App is the partsbin server runtime: it owns the database and HTTP wiring.
type App struct {
	cfg Config
	log Logger

	db      storage.Database
	reg     *prometheus.Registry
	svc     *auth.Service
	auth    *authapi.Handler
	handler http.Handler
}

// New constructs a fully wired App from config, the subsystem environment and
// logger. The caller owns the returned App and must Close it if Run is never called.
func New(ctx context.Context, cfg Config, log Logger) (*App, error) {
	if log == nil {
		log = NewLogger(cfg.LogLevel, cfg.LogFormat)
	}

	authCfg, err := auth.LoadConfigFromEnv()
	if err != nil {
		return nil, err
	}
	hasher, err := ValidateSecurityConfig(cfg, authCfg)
	if err != nil {
		return nil, err
	}
	pwCfg, err := password.FromEnv()
	if err != nil {
		return nil, err
	}
	codec, err := authCfg.NewCodec()
	if err != nil {
		return nil, err
	}

	db, err := storage.Open(ctx, cfg.Storage, log)
	if err != nil {
		return nil, err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := auth.NewMetrics(reg)

	sessions := session.NewService(sessionConfig(authCfg), hasher,
		session.WithLogger(log),
		session.WithCollisionHook(metrics.SessionCollision),
	)
	svc, err := auth.NewService(authCfg, db, pwCfg, codec, sessions,
		auth.WithLogger(log),
		auth.WithMetrics(metrics),
	)
	if err != nil {
		_ = db.Close(ctx)
		return nil, err
	}

	if _, err := svc.EnsureDefaultAdmin(ctx); err != nil {
		_ = db.Close(ctx)
		return nil, fmt.Errorf("bootstrap admin: %w", err)
	}

	authHandler, err := authapi.NewHandler(log, svc, authapi.LoadConfigFromEnv())
	if err != nil {
		_ = db.Close(ctx)
		return nil, err
	}

	mux := http.NewServeMux()
	registerHTTP(mux, log, db, reg, authHandler)

	var h http.Handler = mux
	h = WithCORS(h, cfg, log)
	h = WithSecurityHeaders(h)
	h = WithRequestLogging(h, log)

	return &App{
		cfg:     cfg,
		log:     log,
		db:      db,
		reg:     reg,
		svc:     svc,
		auth:    authHandler,
		handler: h,
	}, nil
}

// Handler returns the fully wrapped HTTP handler.
func (a *App) Handler() http.Handler { return a.handler }

// Close releases the database.
func (a *App) Close(ctx context.Context) error { return a.db.Close(ctx) }

// Run starts the HTTP server and blocks until context cancellation or fatal server error.
func (a *App) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              a.cfg.HTTPAddr,
		Handler:           a.handler,
		ReadHeaderTimeout: nonZeroDuration(a.cfg.ReadHeaderTimeout, 5*time.Second),
		ReadTimeout:       nonZeroDuration(a.cfg.ReadTimeout, 15*time.Second),
		WriteTimeout:      nonZeroDuration(a.cfg.WriteTimeout, 15*time.Second),
		IdleTimeout:       nonZeroDuration(a.cfg.IdleTimeout, 60*time.Second),
		MaxHeaderBytes:    nonZeroInt(a.cfg.MaxHeaderBytes, 1<<20),
	}

	a.log.Info("server.start", "addr", a.cfg.HTTPAddr, "db_backend", a.db.Backend(), "env", a.svc.Config().Env)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		a.log.Info("server.stop", "reason", "context_done")
	case err := <-errCh:
		a.log.Error("server.fail", "err", err)
		_ = a.Close(context.Background())
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.log.Error("server.shutdown.fail", "err", err)
		return err
	}

	if err := a.Close(shutdownCtx); err != nil {
		a.log.Error("store.close.fail", "err", err)
	}

	a.log.Info("server.stopped")
	return nil
}

func nonZeroDuration(v, def time.Duration) time.Duration {
	if v <= 0 {
		return def
	}
	return v
}

func nonZeroInt(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

// sessionConfig derives the session lifetime from the auth settings so
// PARTSBIN_AUTH_SESSION_TTL_SECONDS is parsed in exactly one place.
func sessionConfig(authCfg auth.Config) session.Config {
	return session.Config{TTL: authCfg.SessionTTL}
}
