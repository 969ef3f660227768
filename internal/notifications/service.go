package notifications

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"design-desk/request-portal/request-portal-backend/internal/apierrors"
	"design-desk/request-portal/request-portal-backend/internal/identity"
	"design-desk/request-portal/request-portal-backend/internal/metrics"
	"design-desk/request-portal/request-portal-backend/internal/notifications/websocket"
	"design-desk/request-portal/request-portal-backend/internal/settings"
)

const deliveryTimeout = 15 * time.Second

// ContactSource resolves where a user can be reached.
type ContactSource interface {
	Contact(ctx context.Context, userID uuid.UUID) (*identity.Contact, error)
}

// PreferenceSource returns the outbound channels a user opted into.
type PreferenceSource interface {
	Preferences(ctx context.Context, userID uuid.UUID) (settings.NotificationPreferences, error)
}

// Service stores in-app notifications and fans them out to live sockets and
// outbound channels. Delivery never reports failure to the caller.
type Service struct {
	db       *gorm.DB
	ws       *websocket.Manager
	channels []Channel
	contacts ContactSource
	prefs    PreferenceSource
	metrics  *metrics.Metrics
	logger   *zap.Logger

	wg  sync.WaitGroup
	now func() time.Time
}

// ServiceConfig wires optional collaborators. Nil ones are skipped.
type ServiceConfig struct {
	WebSocket   *websocket.Manager
	Channels    []Channel
	Contacts    ContactSource
	Preferences PreferenceSource
	Metrics     *metrics.Metrics
}

// NewService creates a new notification service
func NewService(db *gorm.DB, cfg ServiceConfig, logger *zap.Logger) *Service {
	return &Service{
		db:       db,
		ws:       cfg.WebSocket,
		channels: cfg.Channels,
		contacts: cfg.Contacts,
		prefs:    cfg.Preferences,
		metrics:  cfg.Metrics,
		logger:   logger,
		now:      time.Now,
	}
}

// Notify records and delivers a notification in the background.
func (s *Service) Notify(ctx context.Context, userID, requestID uuid.UUID, message, category string) {
	n := &Notification{
		ID:        uuid.New(),
		UserID:    userID,
		RequestID: requestID,
		Category:  category,
		Message:   message,
		CreatedAt: s.now().UTC(),
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), deliveryTimeout)
		defer cancel()
		s.deliver(ctx, n)
	}()
}

// Wait blocks until background deliveries finish.
func (s *Service) Wait() {
	s.wg.Wait()
}

func (s *Service) deliver(ctx context.Context, n *Notification) {
	if err := s.db.WithContext(ctx).Create(n).Error; err != nil {
		s.logger.Warn("Failed to store notification",
			zap.String("user_id", n.UserID.String()),
			zap.String("request_id", n.RequestID.String()),
			zap.Error(err))
		s.metrics.NotificationSent(ChannelInApp, err)
		return
	}
	s.metrics.NotificationSent(ChannelInApp, nil)

	if s.ws != nil {
		err := s.ws.SendToUser(n.UserID, websocket.Message{
			Type: websocket.MessageTypeNotification,
			Data: map[string]interface{}{
				"id":         n.ID.String(),
				"request_id": n.RequestID.String(),
				"category":   n.Category,
				"message":    n.Message,
			},
			Timestamp: n.CreatedAt,
		})
		if err != nil && !errors.Is(err, websocket.ErrNotConnected) {
			s.logger.Warn("Failed to push notification", zap.String("user_id", n.UserID.String()), zap.Error(err))
		}
	}

	if len(s.channels) == 0 {
		return
	}
	d, enabled := s.prepare(ctx, n)
	for _, ch := range s.channels {
		status := s.sendViaChannel(ctx, ch, d, enabled[ch.Name()])
		s.logDeliveryAttempt(ctx, n, status)
	}
}

// prepare resolves contact details and channel opt-ins. Lookup failures
// disable the affected channels.
func (s *Service) prepare(ctx context.Context, n *Notification) (Delivery, map[string]bool) {
	d := Delivery{
		NotificationID: n.ID,
		UserID:         n.UserID,
		RequestID:      n.RequestID,
		Category:       n.Category,
		Subject:        "Design request update",
		Message:        n.Message,
	}
	enabled := map[string]bool{}

	prefs := settings.DefaultPreferences(n.UserID)
	if s.prefs != nil {
		p, err := s.prefs.Preferences(ctx, n.UserID)
		if err != nil {
			s.logger.Warn("Failed to load notification preferences", zap.String("user_id", n.UserID.String()), zap.Error(err))
			return d, enabled
		}
		prefs = p
	}
	enabled[ChannelEmail] = prefs.Email
	enabled[ChannelPush] = prefs.Push

	if s.contacts != nil {
		c, err := s.contacts.Contact(ctx, n.UserID)
		if err != nil {
			s.logger.Warn("Failed to load contact", zap.String("user_id", n.UserID.String()), zap.Error(err))
			return d, map[string]bool{}
		}
		if c != nil {
			d.Email = c.Email
			d.PushTarget = c.PushTarget
		}
	}
	return d, enabled
}

func (s *Service) sendViaChannel(ctx context.Context, ch Channel, d Delivery, enabled bool) ChannelDeliveryStatus {
	status := ChannelDeliveryStatus{Channel: ch.Name(), Status: StatusSkipped}
	if !enabled {
		return status
	}
	providerID, err := ch.Send(ctx, d)
	switch {
	case errors.Is(err, ErrNoAddress):
		return status
	case err != nil:
		status.Status = StatusFailed
		status.Err = err
		s.logger.Warn("Notification delivery failed",
			zap.String("channel", ch.Name()),
			zap.String("user_id", d.UserID.String()),
			zap.Error(err))
	default:
		status.Status = StatusSent
		status.ProviderID = providerID
	}
	s.metrics.NotificationSent(ch.Name(), err)
	return status
}

func (s *Service) logDeliveryAttempt(ctx context.Context, n *Notification, status ChannelDeliveryStatus) {
	if status.Status == StatusSkipped {
		return
	}
	entry := &DeliveryLog{
		ID:                uuid.New(),
		NotificationID:    n.ID,
		UserID:            n.UserID,
		Channel:           status.Channel,
		Status:            status.Status,
		ProviderMessageID: status.ProviderID,
		Timestamp:         s.now().UTC(),
	}
	if status.Err != nil {
		entry.Error = status.Err.Error()
	}
	if err := s.db.WithContext(ctx).Create(entry).Error; err != nil {
		s.logger.Warn("Failed to log delivery attempt", zap.Error(err))
	}
}

// PushInboxChanged tells the live sockets of userID to refresh the inbox.
func (s *Service) PushInboxChanged(ctx context.Context, userID uuid.UUID) {
	if s.ws == nil {
		return
	}
	err := s.ws.SendToUser(userID, websocket.Message{Type: websocket.MessageTypeInboxChanged})
	if err != nil && !errors.Is(err, websocket.ErrNotConnected) {
		s.logger.Debug("Failed to push inbox change", zap.String("user_id", userID.String()), zap.Error(err))
	}
}

// GetUserNotifications lists notifications of userID, newest first.
func (s *Service) GetUserNotifications(ctx context.Context, userID uuid.UUID, unreadOnly bool, limit, offset int) ([]Notification, error) {
	query := s.db.WithContext(ctx).Where("user_id = ?", userID)
	if unreadOnly {
		query = query.Where("read_at IS NULL")
	}
	var out []Notification
	if err := query.Order("created_at DESC").Limit(limit).Offset(offset).Find(&out).Error; err != nil {
		return nil, apierrors.Persistence("list notifications", fmt.Errorf("failed to get user notifications: %w", err))
	}
	return out, nil
}

// MarkNotificationAsRead marks a notification of userID as read.
func (s *Service) MarkNotificationAsRead(ctx context.Context, userID, notificationID uuid.UUID) error {
	result := s.db.WithContext(ctx).Model(&Notification{}).
		Where("id = ? AND user_id = ?", notificationID, userID).
		Update("read_at", s.now().UTC())
	if result.Error != nil {
		return apierrors.Persistence("mark notification as read", result.Error)
	}
	if result.RowsAffected == 0 {
		return apierrors.NotFound("notification", notificationID.String())
	}
	return nil
}

// GetNotificationStatus retrieves delivery attempts for a notification.
func (s *Service) GetNotificationStatus(ctx context.Context, notificationID uuid.UUID) ([]DeliveryLog, error) {
	var logs []DeliveryLog
	if err := s.db.WithContext(ctx).Where("notification_id = ?", notificationID).
		Order("timestamp DESC").
		Find(&logs).Error; err != nil {
		return nil, apierrors.Persistence("list delivery logs", err)
	}
	return logs, nil
}

// Close waits for pending deliveries and closes live sockets.
func (s *Service) Close() {
	s.wg.Wait()
	if s.ws != nil {
		s.ws.Close()
	}
}
