package capacity

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"design-desk/request-portal/request-portal-backend/internal/apierrors"
	"design-desk/request-portal/request-portal-backend/pkg/dates"
)

// MaxAvailabilityDays bounds a single availability query.
const MaxAvailabilityDays = 366

// Counter reports scheduled requests per due day and priority.
type Counter interface {
	CountScheduledBetween(ctx context.Context, start, end dates.Date) (map[dates.Date]map[Priority]int, error)
}

// LimitsProvider resolves the current quotas.
type LimitsProvider interface {
	CapacityLimits(ctx context.Context) (Limits, error)
}

// DayAvailability is one row of the availability calendar.
type DayAvailability struct {
	Date   dates.Date `json:"date"`
	Normal Slot       `json:"normal"`
	Urgent Slot       `json:"urgent"`
}

// Service answers availability queries.
type Service struct {
	counter Counter
	limits  LimitsProvider
	logger  *zap.Logger
}

func NewService(counter Counter, limits LimitsProvider, logger *zap.Logger) *Service {
	return &Service{counter: counter, limits: limits, logger: logger}
}

// Availability returns one entry per day in [start, end].
func (s *Service) Availability(ctx context.Context, start, end dates.Date) ([]DayAvailability, error) {
	if start.IsZero() || end.IsZero() {
		return nil, apierrors.Validation("start", "start and end dates are required")
	}
	if end.Before(start) {
		return nil, apierrors.Validation("end", "end date must not be before start date")
	}
	if start.DaysUntil(end) >= MaxAvailabilityDays {
		return nil, apierrors.Validation("end", fmt.Sprintf("range may span at most %d days", MaxAvailabilityDays))
	}

	limits, err := s.limits.CapacityLimits(ctx)
	if err != nil {
		return nil, fmt.Errorf("load capacity limits: %w", err)
	}
	counts, err := s.counter.CountScheduledBetween(ctx, start, end)
	if err != nil {
		return nil, apierrors.Persistence("count scheduled requests", err)
	}

	days := dates.Range(start, end)
	out := make([]DayAvailability, 0, len(days))
	for _, day := range days {
		used := counts[day]
		out = append(out, DayAvailability{
			Date:   day,
			Normal: Compute(limits.Max(PriorityNormal), used[PriorityNormal]),
			Urgent: Compute(limits.Max(PriorityUrgent), used[PriorityUrgent]),
		})
	}

	s.logger.Debug("Computed availability",
		zap.String("start", start.String()),
		zap.String("end", end.String()),
		zap.Int("days", len(out)))
	return out, nil
}
