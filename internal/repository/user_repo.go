package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/coursora/coursora-go-api/internal/models"
)

// UserRepository applies the denormalized presence snapshot onto user rows.
// These are best-effort side writes; the presence store stays authoritative
// for the live online set.
type UserRepository interface {
	SetOnline(ctx context.Context, userID string, at time.Time) error
	SetOffline(ctx context.Context, userID string) error
	TouchActivity(ctx context.Context, userID string, at time.Time) error
}

type userRepository struct {
	db *gorm.DB
}

// NewUserRepository constructs the user snapshot repository.
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) SetOnline(ctx context.Context, userID string, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", userID).
		Updates(map[string]interface{}{"is_online": true, "last_active_at": at}).Error
}

func (r *userRepository) SetOffline(ctx context.Context, userID string) error {
	return r.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", userID).
		Update("is_online", false).Error
}

func (r *userRepository) TouchActivity(ctx context.Context, userID string, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", userID).
		Update("last_active_at", at).Error
}
