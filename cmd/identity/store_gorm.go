package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// UserRecord is the gorm mapping of the users table.
type UserRecord struct {
	ID              string `gorm:"primaryKey;size:26"`
	Email           string `gorm:"size:254;not null;uniqueIndex:uq_users_email"`
	PasswordHash    string `gorm:"not null"`
	IsAdmin         bool   `gorm:"not null"`
	CreatedAt       time.Time
	UpdatedAt       time.Time
	EmailVerifiedAt *time.Time
	LastSignInAt    *time.Time
}

func (UserRecord) TableName() string { return "users" }

// ProfileRecord is the gorm mapping of the profiles table.
type ProfileRecord struct {
	UserID    string `gorm:"primaryKey;size:26"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (ProfileRecord) TableName() string { return "profiles" }

// GormModels lists the models AutoMigrate needs for this package.
func GormModels() []any {
	return []any{&UserRecord{}, &ProfileRecord{}}
}

// GormStore implements Store on a *gorm.DB, either the root handle or a
// transaction handle. The DB must be opened with TranslateError enabled so
// unique violations surface as gorm.ErrDuplicatedKey.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore constructs a GormStore on db.
func NewGormStore(db *gorm.DB) (*GormStore, error) {
	if db == nil {
		return nil, fmt.Errorf("identity: nil gorm db")
	}
	return &GormStore{db: db}, nil
}

func (s *GormStore) CreateUser(ctx context.Context, in CreateUserInput) (User, error) {
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

	rec := UserRecord{
		ID:           userID,
		Email:        email,
		PasswordHash: in.PasswordHash,
		IsAdmin:      in.IsAdmin,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if in.Verified {
		rec.EmailVerifiedAt = &now
	}

	if err := s.db.WithContext(ctx).Create(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return User{}, ConflictError{Op: op, Field: "email"}
		}
		return User{}, fmt.Errorf("%s: %w", op, err)
	}
	return rec.user(), nil
}

func (s *GormStore) UserByID(ctx context.Context, id string) (User, error) {
	const op = "identity.UserByID"

	if strings.TrimSpace(id) == "" {
		return User{}, pgInvalid(op, "missing user_id")
	}
	return s.userWhere(ctx, op, "id = ?", id)
}

func (s *GormStore) UserByEmail(ctx context.Context, email string) (User, error) {
	const op = "identity.UserByEmail"

	email = NormalizeEmail(email)
	if email == "" {
		return User{}, pgInvalid(op, "missing email")
	}
	return s.userWhere(ctx, op, "email = ?", email)
}

func (s *GormStore) userWhere(ctx context.Context, op, where string, arg any) (User, error) {
	var rec UserRecord
	err := s.db.WithContext(ctx).Where(where, arg).Take(&rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return User{}, NotFoundError{Op: op, Resource: "user"}
		}
		return User{}, fmt.Errorf("%s: %w", op, err)
	}
	return rec.user(), nil
}

func (s *GormStore) RecordSignIn(ctx context.Context, userID string, now time.Time) error {
	const op = "identity.RecordSignIn"

	now = now.UTC()
	return s.updateUser(ctx, op, userID, map[string]any{
		"last_sign_in_at": now,
		"updated_at":      now,
	})
}

func (s *GormStore) SetPasswordHash(ctx context.Context, userID, hash string, now time.Time) error {
	const op = "identity.SetPasswordHash"

	if strings.TrimSpace(hash) == "" {
		return pgInvalid(op, "password hash is required")
	}
	return s.updateUser(ctx, op, userID, map[string]any{
		"password_hash": hash,
		"updated_at":    now.UTC(),
	})
}

func (s *GormStore) updateUser(ctx context.Context, op, userID string, cols map[string]any) error {
	res := s.db.WithContext(ctx).Model(&UserRecord{}).Where("id = ?", userID).UpdateColumns(cols)
	if res.Error != nil {
		return fmt.Errorf("%s: %w", op, res.Error)
	}
	if res.RowsAffected == 0 {
		return NotFoundError{Op: op, Resource: "user"}
	}
	return nil
}

func (s *GormStore) EnsureProfile(ctx context.Context, userID string, now time.Time) error {
	const op = "identity.EnsureProfile"

	now = now.UTC()
	rec := ProfileRecord{UserID: userID, CreatedAt: now, UpdatedAt: now}
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "user_id"}}, DoNothing: true}).
		Create(&rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrForeignKeyViolated) {
			return NotFoundError{Op: op, Resource: "user"}
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (r UserRecord) user() User {
	return User{
		ID:              r.ID,
		Email:           r.Email,
		PasswordHash:    r.PasswordHash,
		IsAdmin:         r.IsAdmin,
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
		EmailVerifiedAt: r.EmailVerifiedAt,
		LastSignInAt:    r.LastSignInAt,
	}
}
