package notifications

import (
	"time"

	"github.com/google/uuid"
)

// Delivery channels.
const (
	ChannelInApp     = "in_app"
	ChannelWebSocket = "websocket"
	ChannelEmail     = "email"
	ChannelPush      = "push"
)

// Delivery statuses.
const (
	StatusSent      = "sent"
	StatusDelivered = "delivered"
	StatusSkipped   = "skipped"
	StatusFailed    = "failed"
)

// Notification is the in-app record of a workflow event for one user.
type Notification struct {
	ID        uuid.UUID  `json:"id" gorm:"primaryKey;type:varchar(36)"`
	UserID    uuid.UUID  `json:"user_id" gorm:"type:varchar(36);not null;index:idx_notifications_user_created,priority:1"`
	RequestID uuid.UUID  `json:"request_id" gorm:"type:varchar(36);not null"`
	Category  string     `json:"category" gorm:"type:varchar(40);not null"`
	Message   string     `json:"message" gorm:"type:text;not null"`
	CreatedAt time.Time  `json:"created_at" gorm:"index:idx_notifications_user_created,priority:2"`
	ReadAt    *time.Time `json:"read_at,omitempty"`
}

func (Notification) TableName() string { return "notifications" }

// DeliveryLog records one delivery attempt on an outbound channel.
type DeliveryLog struct {
	ID                uuid.UUID `json:"id" gorm:"primaryKey;type:varchar(36)"`
	NotificationID    uuid.UUID `json:"notification_id" gorm:"type:varchar(36);not null;index"`
	UserID            uuid.UUID `json:"user_id" gorm:"type:varchar(36);not null"`
	Channel           string    `json:"channel" gorm:"type:varchar(20);not null"`
	Status            string    `json:"status" gorm:"type:varchar(20);not null"`
	ProviderMessageID string    `json:"provider_message_id"`
	Error             string    `json:"error,omitempty"`
	Timestamp         time.Time `json:"timestamp"`
}

func (DeliveryLog) TableName() string { return "notification_delivery_logs" }

// ChannelDeliveryStatus is the outcome of one channel for one notification.
type ChannelDeliveryStatus struct {
	Channel    string
	Status     string
	ProviderID string
	Err        error
}

// Delivery is what an outbound channel needs to reach a user.
type Delivery struct {
	NotificationID uuid.UUID
	UserID         uuid.UUID
	RequestID      uuid.UUID
	Category       string
	Subject        string
	Message        string
	Email          string
	PushTarget     string
}
