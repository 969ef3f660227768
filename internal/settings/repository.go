package settings

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Repository interface {
	Get(ctx context.Context, key string) (*SystemSetting, error)
	GetMany(ctx context.Context, keys ...string) (map[string]string, error)
	PutMany(ctx context.Context, values map[string]string, updatedBy uuid.UUID) error

	GetPreferences(ctx context.Context, userID uuid.UUID) (*NotificationPreferences, error)
	SavePreferences(ctx context.Context, prefs *NotificationPreferences) error
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates a settings repository backed by gorm
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

// Get returns nil when key is not set.
func (r *gormRepository) Get(ctx context.Context, key string) (*SystemSetting, error) {
	var s SystemSetting
	err := r.db.WithContext(ctx).Where("setting_key = ?", key).First(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get setting %s: %w", key, err)
	}
	return &s, nil
}

func (r *gormRepository) GetMany(ctx context.Context, keys ...string) (map[string]string, error) {
	var rows []SystemSetting
	if err := r.db.WithContext(ctx).Where("setting_key IN ?", keys).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to get settings: %w", err)
	}
	out := make(map[string]string, len(rows))
	for _, row := range rows {
		out[row.Key] = row.Value
	}
	return out, nil
}

// PutMany upserts every value in one transaction.
func (r *gormRepository) PutMany(ctx context.Context, values map[string]string, updatedBy uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for key, value := range values {
			row := SystemSetting{Key: key, Value: value, UpdatedBy: &updatedBy}
			err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "setting_key"}},
				DoUpdates: clause.AssignmentColumns([]string{"value", "updated_by", "updated_at"}),
			}).Create(&row).Error
			if err != nil {
				return fmt.Errorf("failed to save setting %s: %w", key, err)
			}
		}
		return nil
	})
}

// GetPreferences returns nil when the user never saved preferences.
func (r *gormRepository) GetPreferences(ctx context.Context, userID uuid.UUID) (*NotificationPreferences, error) {
	var p NotificationPreferences
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get notification preferences: %w", err)
	}
	return &p, nil
}

func (r *gormRepository) SavePreferences(ctx context.Context, prefs *NotificationPreferences) error {
	if err := r.db.WithContext(ctx).Save(prefs).Error; err != nil {
		return fmt.Errorf("failed to save notification preferences: %w", err)
	}
	return nil
}
