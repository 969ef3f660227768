// Package capacity decides whether a new request may be admitted for a due
// day and priority, and reports per-day availability with the same arithmetic.
package capacity

import (
	"design-desk/request-portal/request-portal-backend/internal/apierrors"
	"design-desk/request-portal/request-portal-backend/pkg/dates"
)

// Priority is the quota tier of a request.
type Priority string

const (
	PriorityNormal Priority = "Normal"
	PriorityUrgent Priority = "Urgent"
)

// Valid reports whether p is one of the known tiers.
func (p Priority) Valid() bool {
	return p == PriorityNormal || p == PriorityUrgent
}

// Priorities lists the tiers in display order.
var Priorities = []Priority{PriorityNormal, PriorityUrgent}

const (
	DefaultMaxNormalPerDay       = 5
	DefaultMaxUrgentPerDay       = 2
	DefaultOrderableDaysInFuture = 30
)

// Limits are the admin-configured daily quotas.
type Limits struct {
	MaxNormalPerDay       int `json:"max_normal_requests_per_day"`
	MaxUrgentPerDay       int `json:"max_urgent_requests_per_day"`
	OrderableDaysInFuture int `json:"orderable_days_in_future"`
}

// DefaultLimits returns the quotas used when nothing is configured.
func DefaultLimits() Limits {
	return Limits{
		MaxNormalPerDay:       DefaultMaxNormalPerDay,
		MaxUrgentPerDay:       DefaultMaxUrgentPerDay,
		OrderableDaysInFuture: DefaultOrderableDaysInFuture,
	}
}

// Max returns the daily quota for priority.
func (l Limits) Max(p Priority) int {
	if p == PriorityUrgent {
		return l.MaxUrgentPerDay
	}
	return l.MaxNormalPerDay
}

// Slot is the used/total/remaining view of one (day, priority) quota.
type Slot struct {
	Used      int `json:"used"`
	Total     int `json:"total"`
	Remaining int `json:"remaining"`
}

// Compute is the single place the quota arithmetic lives. Both the admission
// check and the availability calendar go through it.
func Compute(max, used int) Slot {
	remaining := max - used
	if remaining < 0 {
		remaining = 0
	}
	return Slot{Used: used, Total: max, Remaining: remaining}
}

// Decision is the outcome of CheckCapacity.
type Decision struct {
	Allowed  bool
	Date     dates.Date
	Priority Priority
	Slot     Slot
}

// Err converts a denial into a CapacityExceeded error, nil when allowed.
func (d Decision) Err() error {
	if d.Allowed {
		return nil
	}
	return apierrors.CapacityExceeded(d.Date.String(), string(d.Priority), d.Slot.Total)
}

// CheckCapacity admits iff currentCount is below the quota for priority.
// Callers hold the (day, priority) lock while counting so the decision and the
// insert commit together.
func CheckCapacity(limits Limits, date dates.Date, priority Priority, currentCount int) Decision {
	slot := Compute(limits.Max(priority), currentCount)
	return Decision{
		Allowed:  slot.Remaining > 0,
		Date:     date,
		Priority: priority,
		Slot:     slot,
	}
}
