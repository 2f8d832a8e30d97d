package storage

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"partsbin/cmd/identity"
	"partsbin/cmd/internal/auth/session"
)

// SQLite implements Database with gorm on SQLite.
type SQLite struct {
	db       *gorm.DB
	inMemory bool
	root     Stores
}

// OpenSQLite opens dsn (a file path or file: URI). An empty dsn or ":memory:"
// opens a private in-memory database on a single connection.
func OpenSQLite(dsn string, log *slog.Logger) (*SQLite, error) {
	if log == nil {
		log = slog.Default()
	}

	dsn = strings.TrimSpace(dsn)
	inMemory := dsn == "" || dsn == ":memory:" || strings.Contains(dsn, "mode=memory") || strings.HasPrefix(dsn, "file::memory:")
	if dsn == "" || dsn == ":memory:" {
		dsn = "file::memory:"
	}
	dsn = withForeignKeys(dsn)

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         newGormLogger(log),
		NowFunc:        func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, fmt.Errorf("storage: open sqlite: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("storage: sqlite handle: %w", err)
	}
	// SQLite allows one writer; a single connection also keeps an in-memory
	// database alive and shared.
	sqlDB.SetMaxOpenConns(1)

	s := &SQLite{db: db, inMemory: inMemory}
	root, err := storesOnGorm(db)
	if err != nil {
		_ = sqlDB.Close()
		return nil, err
	}
	s.root = root
	return s, nil
}

func withForeignKeys(dsn string) string {
	if strings.Contains(dsn, "_foreign_keys") || strings.Contains(dsn, "_fk=") {
		return dsn
	}
	if strings.Contains(dsn, "?") {
		return dsn + "&_foreign_keys=on"
	}
	return dsn + "?_foreign_keys=on"
}

func newGormLogger(log *slog.Logger) logger.Interface {
	return logger.New(
		slog.NewLogLogger(log.Handler(), slog.LevelWarn),
		logger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
}

func storesOnGorm(db *gorm.DB) (Stores, error) {
	users, err := identity.NewGormStore(db)
	if err != nil {
		return Stores{}, err
	}
	sessions, err := session.NewGormStore(db)
	if err != nil {
		return Stores{}, err
	}
	return Stores{Users: users, Sessions: sessions}, nil
}

func (s *SQLite) Backend() string { return "sqlite" }

func (s *SQLite) Stores() Stores { return s.root }

// Gorm exposes the underlying handle for tests.
func (s *SQLite) Gorm() *gorm.DB { return s.db }

func (s *SQLite) InTx(ctx context.Context, fn func(ctx context.Context, st Stores) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		st, err := storesOnGorm(tx)
		if err != nil {
			return err
		}
		return fn(ctx, st)
	})
}

// Migrate creates or updates the tables with gorm AutoMigrate.
func (s *SQLite) Migrate(ctx context.Context) error {
	models := append(identity.GormModels(), session.GormModels()...)
	if err := s.db.WithContext(ctx).AutoMigrate(models...); err != nil {
		return fmt.Errorf("storage: automigrate: %w", err)
	}
	return nil
}

func (s *SQLite) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return sqlDB.PingContext(ctx)
}

func (s *SQLite) Close(_ context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
