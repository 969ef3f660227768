package settings

import (
	"time"

	"github.com/google/uuid"
)

// Setting keys understood by the workflow.
const (
	KeyMaxNormalPerDay       = "capacity.max_normal_per_day"
	KeyMaxUrgentPerDay       = "capacity.max_urgent_per_day"
	KeyOrderableDaysInFuture = "capacity.orderable_days_in_future"
	KeyDefaultDesignerID     = "workflow.default_designer_id"
)

// SystemSetting is one admin-configured key/value pair.
type SystemSetting struct {
	Key       string     `gorm:"column:setting_key;primaryKey;type:varchar(100)" json:"key"`
	Value     string     `gorm:"type:text;not null" json:"value"`
	UpdatedBy *uuid.UUID `gorm:"type:varchar(36)" json:"updated_by,omitempty"`
	UpdatedAt time.Time  `json:"updated_at"`
}

func (SystemSetting) TableName() string { return "system_settings" }

// NotificationPreferences selects the outbound channels a user receives.
// In-app notifications are always stored.
type NotificationPreferences struct {
	UserID    uuid.UUID `gorm:"primaryKey;type:varchar(36)" json:"user_id"`
	Email     bool      `gorm:"not null" json:"email"`
	Push      bool      `gorm:"not null" json:"push"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (NotificationPreferences) TableName() string { return "notification_preferences" }

// DefaultPreferences applies to users who never saved any.
func DefaultPreferences(userID uuid.UUID) NotificationPreferences {
	return NotificationPreferences{UserID: userID, Email: true}
}

// CapacitySettings is the admin view of the capacity keys.
type CapacitySettings struct {
	MaxNormalPerDay       int `json:"max_normal_per_day" binding:"min=0,max=1000"`
	MaxUrgentPerDay       int `json:"max_urgent_per_day" binding:"min=0,max=1000"`
	OrderableDaysInFuture int `json:"orderable_days_in_future" binding:"min=1,max=366"`
}

// DefaultDesigner is the payload of the default designer endpoint.
type DefaultDesigner struct {
	DesignerID uuid.UUID `json:"designer_id"`
}
