package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// Record is the gorm mapping of the sessions table.
type Record struct {
	ID        string    `gorm:"primaryKey;size:26"`
	UserID    string    `gorm:"size:26;not null;index:idx_sessions_user_id"`
	TokenHash string    `gorm:"size:64;not null;uniqueIndex:uq_sessions_token_hash"`
	ExpiresAt time.Time `gorm:"not null;index:idx_sessions_expires_at"`
	IsActive  bool      `gorm:"not null"`
	CreatedAt time.Time `gorm:"not null"`
}

func (Record) TableName() string { return "sessions" }

// GormModels lists the models AutoMigrate needs for this package.
func GormModels() []any {
	return []any{&Record{}}
}

// GormStore implements Store on a *gorm.DB (root or transaction handle).
// The DB must be opened with TranslateError enabled.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore creates a gorm-backed session store.
func NewGormStore(db *gorm.DB) (*GormStore, error) {
	if db == nil {
		return nil, fmt.Errorf("session: nil gorm db")
	}
	return &GormStore{db: db}, nil
}

// Insert runs in a nested transaction, which gorm maps to a savepoint when db
// is already inside one.
func (s *GormStore) Insert(ctx context.Context, row Row) error {
	rec := Record{
		ID:        row.ID,
		UserID:    row.UserID,
		TokenHash: row.TokenHash,
		ExpiresAt: row.ExpiresAt.UTC(),
		IsActive:  row.IsActive,
		CreatedAt: row.CreatedAt.UTC(),
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(&rec).Error
	})
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrTokenCollision
	}
	return err
}

func (s *GormStore) FindLiveByHash(ctx context.Context, hash string, now time.Time) (Row, error) {
	return s.findLive(ctx, "token_hash = ?", hash, now)
}

func (s *GormStore) FindLiveByID(ctx context.Context, id string, now time.Time) (Row, error) {
	return s.findLive(ctx, "id = ?", id, now)
}

func (s *GormStore) findLive(ctx context.Context, where string, key string, now time.Time) (Row, error) {
	var rec Record
	err := s.db.WithContext(ctx).
		Where(where, key).
		Where("is_active = ? AND expires_at > ?", true, now.UTC()).
		Take(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Row{}, ErrSessionNotFound
	}
	if err != nil {
		return Row{}, err
	}
	return rec.row(), nil
}

func (s *GormStore) DeactivateByHash(ctx context.Context, hash string) (bool, error) {
	n, err := s.deactivate(ctx, "token_hash = ? AND is_active = ?", hash, true)
	return n > 0, err
}

func (s *GormStore) DeactivateByID(ctx context.Context, id string) (bool, error) {
	n, err := s.deactivate(ctx, "id = ? AND is_active = ?", id, true)
	return n > 0, err
}

func (s *GormStore) DeactivateAllForUser(ctx context.Context, userID string) (int64, error) {
	return s.deactivate(ctx, "user_id = ? AND is_active = ?", userID, true)
}

func (s *GormStore) deactivate(ctx context.Context, where string, args ...any) (int64, error) {
	res := s.db.WithContext(ctx).Model(&Record{}).Where(where, args...).UpdateColumn("is_active", false)
	return res.RowsAffected, res.Error
}

func (s *GormStore) PurgeForUser(ctx context.Context, userID string, now time.Time) (int64, error) {
	res := s.db.WithContext(ctx).
		Where("user_id = ? AND (is_active = ? OR expires_at <= ?)", userID, false, now.UTC()).
		Delete(&Record{})
	return res.RowsAffected, res.Error
}

func (s *GormStore) CountLive(ctx context.Context, userID string, now time.Time) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&Record{}).
		Where("user_id = ? AND is_active = ? AND expires_at > ?", userID, true, now.UTC()).
		Count(&n).Error
	return n, err
}

func (r Record) row() Row {
	return Row{
		ID:        r.ID,
		UserID:    r.UserID,
		TokenHash: r.TokenHash,
		ExpiresAt: r.ExpiresAt,
		IsActive:  r.IsActive,
		CreatedAt: r.CreatedAt,
	}
}
