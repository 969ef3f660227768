package settings

import (
	"context"
	"strconv"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"design-desk/request-portal/request-portal-backend/internal/apierrors"
	"design-desk/request-portal/request-portal-backend/internal/capacity"
	"design-desk/request-portal/request-portal-backend/internal/identity"
)

// RoleChecker verifies the role of a user being assigned by an admin.
type RoleChecker interface {
	IsInRole(ctx context.Context, userID uuid.UUID, role identity.Role) (bool, error)
}

type Service struct {
	repo     Repository
	roles    RoleChecker
	fallback capacity.Limits
	logger   *zap.Logger
}

// NewService creates a settings service. fallback applies to capacity keys
// that were never set.
func NewService(repo Repository, roles RoleChecker, fallback capacity.Limits, logger *zap.Logger) *Service {
	return &Service{repo: repo, roles: roles, fallback: fallback, logger: logger}
}

// GetSetting returns the raw value of key and whether it is set.
func (s *Service) GetSetting(ctx context.Context, key string) (string, bool, error) {
	setting, err := s.repo.Get(ctx, key)
	if err != nil {
		return "", false, apierrors.Persistence("load setting", err)
	}
	if setting == nil {
		return "", false, nil
	}
	return setting.Value, true, nil
}

// CapacityLimits reads the capacity keys, using the fallback for missing or
// malformed values.
func (s *Service) CapacityLimits(ctx context.Context) (capacity.Limits, error) {
	values, err := s.repo.GetMany(ctx, KeyMaxNormalPerDay, KeyMaxUrgentPerDay, KeyOrderableDaysInFuture)
	if err != nil {
		return capacity.Limits{}, apierrors.Persistence("load capacity settings", err)
	}
	return capacity.Limits{
		MaxNormalPerDay:       s.intValue(values, KeyMaxNormalPerDay, s.fallback.MaxNormalPerDay),
		MaxUrgentPerDay:       s.intValue(values, KeyMaxUrgentPerDay, s.fallback.MaxUrgentPerDay),
		OrderableDaysInFuture: s.intValue(values, KeyOrderableDaysInFuture, s.fallback.OrderableDaysInFuture),
	}, nil
}

func (s *Service) intValue(values map[string]string, key string, fallback int) int {
	raw, ok := values[key]
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		s.logger.Warn("Ignoring malformed setting", zap.String("key", key), zap.String("value", raw))
		return fallback
	}
	return n
}

// UpdateCapacity stores new capacity limits. Admin only.
func (s *Service) UpdateCapacity(ctx context.Context, actor identity.Actor, in CapacitySettings) (capacity.Limits, error) {
	if !actor.IsAdmin() {
		return capacity.Limits{}, apierrors.Forbidden("updating settings requires the Admin role")
	}
	var fieldErrs []apierrors.FieldError
	if in.MaxNormalPerDay < 0 {
		fieldErrs = append(fieldErrs, apierrors.FieldError{Field: "max_normal_per_day", Message: "max_normal_per_day cannot be negative"})
	}
	if in.MaxUrgentPerDay < 0 {
		fieldErrs = append(fieldErrs, apierrors.FieldError{Field: "max_urgent_per_day", Message: "max_urgent_per_day cannot be negative"})
	}
	if in.OrderableDaysInFuture < 1 || in.OrderableDaysInFuture > capacity.MaxAvailabilityDays {
		fieldErrs = append(fieldErrs, apierrors.FieldError{Field: "orderable_days_in_future", Message: "orderable_days_in_future must be between 1 and 366"})
	}
	if len(fieldErrs) > 0 {
		return capacity.Limits{}, apierrors.ValidationFields(fieldErrs)
	}

	err := s.repo.PutMany(ctx, map[string]string{
		KeyMaxNormalPerDay:       strconv.Itoa(in.MaxNormalPerDay),
		KeyMaxUrgentPerDay:       strconv.Itoa(in.MaxUrgentPerDay),
		KeyOrderableDaysInFuture: strconv.Itoa(in.OrderableDaysInFuture),
	}, actor.ID)
	if err != nil {
		return capacity.Limits{}, apierrors.Persistence("save capacity settings", err)
	}
	s.logger.Info("Capacity settings updated",
		zap.String("actor_id", actor.ID.String()),
		zap.Int("max_normal_per_day", in.MaxNormalPerDay),
		zap.Int("max_urgent_per_day", in.MaxUrgentPerDay),
		zap.Int("orderable_days_in_future", in.OrderableDaysInFuture))
	return s.CapacityLimits(ctx)
}

// DefaultDesignerID returns uuid.Nil when none is configured.
func (s *Service) DefaultDesignerID(ctx context.Context) (uuid.UUID, error) {
	raw, ok, err := s.GetSetting(ctx, KeyDefaultDesignerID)
	if err != nil || !ok {
		return uuid.Nil, err
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		s.logger.Warn("Ignoring malformed default designer", zap.String("value", raw))
		return uuid.Nil, nil
	}
	return id, nil
}

// SetDefaultDesigner assigns the designer for new requests. Admin only; the
// user must hold the Designer role.
func (s *Service) SetDefaultDesigner(ctx context.Context, actor identity.Actor, designerID uuid.UUID) error {
	if !actor.IsAdmin() {
		return apierrors.Forbidden("updating settings requires the Admin role")
	}
	if designerID == uuid.Nil {
		return apierrors.Validation("designer_id", "designer_id is required")
	}
	ok, err := s.roles.IsInRole(ctx, designerID, identity.RoleDesigner)
	if err != nil {
		return apierrors.Persistence("check designer role", err)
	}
	if !ok {
		return apierrors.Validation("designer_id", "user does not hold the Designer role")
	}
	if err := s.repo.PutMany(ctx, map[string]string{KeyDefaultDesignerID: designerID.String()}, actor.ID); err != nil {
		return apierrors.Persistence("save default designer", err)
	}
	s.logger.Info("Default designer updated", zap.String("designer_id", designerID.String()), zap.String("actor_id", actor.ID.String()))
	return nil
}

// Preferences returns the notification channels of userID.
func (s *Service) Preferences(ctx context.Context, userID uuid.UUID) (NotificationPreferences, error) {
	prefs, err := s.repo.GetPreferences(ctx, userID)
	if err != nil {
		return NotificationPreferences{}, apierrors.Persistence("load notification preferences", err)
	}
	if prefs == nil {
		return DefaultPreferences(userID), nil
	}
	return *prefs, nil
}

func (s *Service) SavePreferences(ctx context.Context, actor identity.Actor, email, push bool) (NotificationPreferences, error) {
	prefs := NotificationPreferences{UserID: actor.ID, Email: email, Push: push}
	if err := s.repo.SavePreferences(ctx, &prefs); err != nil {
		return NotificationPreferences{}, apierrors.Persistence("save notification preferences", err)
	}
	return prefs, nil
}
