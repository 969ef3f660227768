package capacity

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"design-desk/request-portal/request-portal-backend/internal/apierrors"
	"design-desk/request-portal/request-portal-backend/pkg/dates"
)

func TestCheckCapacity(t *testing.T) {
	limits := Limits{MaxNormalPerDay: 5, MaxUrgentPerDay: 2}
	day := dates.MustParse("2025-06-01")

	assert.True(t, CheckCapacity(limits, day, PriorityUrgent, 0).Allowed)
	assert.True(t, CheckCapacity(limits, day, PriorityUrgent, 1).Allowed)
	assert.False(t, CheckCapacity(limits, day, PriorityUrgent, 2).Allowed)
	assert.True(t, CheckCapacity(limits, day, PriorityNormal, 2).Allowed)
	assert.False(t, CheckCapacity(limits, day, PriorityNormal, 5).Allowed)
}

func TestCheckCapacityZeroQuotaDeniesEverything(t *testing.T) {
	d := CheckCapacity(Limits{}, dates.MustParse("2025-06-01"), PriorityNormal, 0)
	assert.False(t, d.Allowed)
}

func TestDecisionErr(t *testing.T) {
	limits := Limits{MaxNormalPerDay: 5, MaxUrgentPerDay: 2}
	d := CheckCapacity(limits, dates.MustParse("2025-06-01"), PriorityUrgent, 2)

	err := d.Err()
	require.Error(t, err)
	assert.True(t, errors.Is(err, apierrors.ErrCapacityExceeded))

	var apiErr *apierrors.Error
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "2025-06-01", apiErr.Details["date"])
	assert.Equal(t, "Urgent", apiErr.Details["priority"])
	assert.Equal(t, 2, apiErr.Details["max"])

	assert.NoError(t, CheckCapacity(limits, dates.MustParse("2025-06-01"), PriorityUrgent, 1).Err())
}

func TestComputeNeverNegative(t *testing.T) {
	assert.Equal(t, Slot{Used: 7, Total: 5, Remaining: 0}, Compute(5, 7))
	assert.Equal(t, Slot{Used: 1, Total: 2, Remaining: 1}, Compute(2, 1))
}

type mockCounter struct {
	mock.Mock
}

func (m *mockCounter) CountScheduledBetween(ctx context.Context, start, end dates.Date) (map[dates.Date]map[Priority]int, error) {
	args := m.Called(ctx, start, end)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[dates.Date]map[Priority]int), args.Error(1)
}

type staticLimits Limits

func (s staticLimits) CapacityLimits(ctx context.Context) (Limits, error) {
	return Limits(s), nil
}

func TestAvailabilityMatchesGate(t *testing.T) {
	counter := new(mockCounter)
	limits := Limits{MaxNormalPerDay: 5, MaxUrgentPerDay: 2}
	svc := NewService(counter, staticLimits(limits), zap.NewNop())

	start := dates.MustParse("2025-06-01")
	end := dates.MustParse("2025-06-03")
	counter.On("CountScheduledBetween", mock.Anything, start, end).Return(map[dates.Date]map[Priority]int{
		start:                         {PriorityUrgent: 2, PriorityNormal: 1},
		dates.MustParse("2025-06-03"): {PriorityNormal: 5},
	}, nil)

	days, err := svc.Availability(context.Background(), start, end)
	require.NoError(t, err)
	require.Len(t, days, 3)

	assert.Equal(t, Slot{Used: 2, Total: 2, Remaining: 0}, days[0].Urgent)
	assert.Equal(t, Slot{Used: 1, Total: 5, Remaining: 4}, days[0].Normal)
	assert.Equal(t, Slot{Used: 0, Total: 2, Remaining: 2}, days[1].Urgent)
	assert.Equal(t, 0, days[2].Normal.Remaining)

	counts := map[Priority]int{PriorityUrgent: 2, PriorityNormal: 1}
	for _, p := range Priorities {
		gate := CheckCapacity(limits, start, p, counts[p])
		var slot Slot
		if p == PriorityUrgent {
			slot = days[0].Urgent
		} else {
			slot = days[0].Normal
		}
		assert.Equal(t, gate.Slot, slot)
		assert.Equal(t, gate.Allowed, slot.Remaining > 0)
	}
	counter.AssertExpectations(t)
}

func TestAvailabilityRejectsBadRanges(t *testing.T) {
	svc := NewService(new(mockCounter), staticLimits(DefaultLimits()), zap.NewNop())
	ctx := context.Background()

	_, err := svc.Availability(ctx, dates.MustParse("2025-06-02"), dates.MustParse("2025-06-01"))
	assert.True(t, errors.Is(err, apierrors.ErrValidation))

	_, err = svc.Availability(ctx, dates.MustParse("2025-01-01"), dates.MustParse("2026-06-01"))
	assert.True(t, errors.Is(err, apierrors.ErrValidation))
}

func TestAvailabilityCounterFailure(t *testing.T) {
	counter := new(mockCounter)
	svc := NewService(counter, staticLimits(DefaultLimits()), zap.NewNop())
	counter.On("CountScheduledBetween", mock.Anything, mock.Anything, mock.Anything).Return(nil, errors.New("db down"))

	_, err := svc.Availability(context.Background(), dates.MustParse("2025-06-01"), dates.MustParse("2025-06-01"))
	assert.Equal(t, apierrors.KindPersistence, apierrors.KindOf(err))
}
