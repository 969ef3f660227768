package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"design-desk/request-portal/request-portal-backend/internal/requests"
	"design-desk/request-portal/request-portal-backend/pkg/dates"
)

// CategoryDueReminder is the notification category of due date reminders.
const CategoryDueReminder = "dueReminder"

type Notifier interface {
	Notify(ctx context.Context, userID, requestID uuid.UUID, message, category string)
}

// DueReminders notifies whoever currently holds an open request that its due
// date is LeadDays away.
type DueReminders struct {
	lister   RequestLister
	notifier Notifier
	leadDays int
	logger   *zap.Logger
	now      func() time.Time
}

func NewDueReminders(lister RequestLister, notifier Notifier, leadDays int, logger *zap.Logger) *DueReminders {
	return &DueReminders{lister: lister, notifier: notifier, leadDays: leadDays, logger: logger, now: time.Now}
}

func (r *DueReminders) Name() string { return "due_reminders" }

func (r *DueReminders) Run(ctx context.Context) error {
	target := dates.Of(r.now().UTC()).AddDays(r.leadDays)
	open := []requests.Status{
		requests.StatusDesignerReview,
		requests.StatusDesignInProgress,
		requests.StatusPendingCorrection,
		requests.StatusPendingApproval,
		requests.StatusPendingRedesign,
	}

	sent := 0
	for offset := 0; ; offset += pageSize {
		page, err := r.lister.ListRequests(ctx, requests.ListFilter{Statuses: open, Limit: pageSize, Offset: offset})
		if err != nil {
			return fmt.Errorf("list requests: %w", err)
		}
		for i := range page {
			req := &page[i]
			if req.DueDate == nil || *req.DueDate != target {
				continue
			}
			holder, ok := currentHolder(req)
			if !ok {
				continue
			}
			msg := fmt.Sprintf("%q is due on %s and is waiting on you", req.Title, target)
			r.notifier.Notify(ctx, holder, req.ID, msg, CategoryDueReminder)
			sent++
		}
		if len(page) < pageSize {
			break
		}
	}
	r.logger.Info("Due reminders sent", zap.String("due_date", target.String()), zap.Int("count", sent))
	return nil
}

// currentHolder returns the participant expected to act next on req.
func currentHolder(req *requests.Request) (uuid.UUID, bool) {
	var id *uuid.UUID
	switch req.Status {
	case requests.StatusDesignerReview, requests.StatusDesignInProgress, requests.StatusPendingRedesign:
		id = req.DesignerID
	case requests.StatusPendingApproval:
		id = req.ApproverID
	case requests.StatusPendingCorrection:
		id = &req.RequesterID
	}
	if id == nil || *id == uuid.Nil {
		return uuid.Nil, false
	}
	return *id, true
}
