package inbox

import (
	"time"

	"github.com/google/uuid"

	"design-desk/request-portal/request-portal-backend/internal/identity"
	"design-desk/request-portal/request-portal-backend/internal/requests"
)

// Category is a role-specific inbox bucket derived from request status.
type Category string

const (
	CategoryAll                Category = "all"
	CategoryUnderReview        Category = "underReview"
	CategoryInProgress         Category = "inProgress"
	CategoryActionRequired     Category = "actionRequired"
	CategoryAwaitingApproval   Category = "awaitingApproval"
	CategoryNewRequests        Category = "newRequests"
	CategoryWaitingOnRequester Category = "waitingOnRequester"
	CategoryRedesign           Category = "redesign"
	CategoryToApprove          Category = "toApprove"
	CategorySentBack           Category = "sentBack"
	CategoryCompleted          Category = "completed"
)

// ViewMarker records that a user saw a request while it held Status at
// Version. Every transition bumps the version, so every transition re-arms
// unread, including one back to a status seen before.
type ViewMarker struct {
	ID        uint            `json:"id" gorm:"primaryKey"`
	UserID    uuid.UUID       `json:"user_id" gorm:"type:varchar(36);not null;uniqueIndex:idx_view_marker"`
	RequestID uuid.UUID       `json:"request_id" gorm:"type:varchar(36);not null;uniqueIndex:idx_view_marker"`
	Status    requests.Status `json:"status" gorm:"not null;uniqueIndex:idx_view_marker"`
	Version   int             `json:"version" gorm:"not null;default:0;uniqueIndex:idx_view_marker"`
	ViewedAt  time.Time       `json:"viewed_at"`
}

func (ViewMarker) TableName() string { return "view_markers" }

// Item is one request as a viewer sees it in an inbox.
type Item struct {
	Request  requests.Request `json:"request"`
	Category Category         `json:"category"`
	Unread   bool             `json:"unread"`
}

// CategoryCount holds the totals of one bucket.
type CategoryCount struct {
	Total  int `json:"total"`
	Unread int `json:"unread"`
}

// Inbox is the projection of every request visible to a viewer in one role.
type Inbox struct {
	Role     identity.Role              `json:"role"`
	Counts   map[Category]CategoryCount `json:"counts"`
	Items    []Item                     `json:"items"`
	Computed time.Time                  `json:"computed_at"`
}

// Filter returns a copy holding only the items of category. An empty
// category keeps every item.
func (in *Inbox) Filter(category Category) *Inbox {
	if category == "" {
		return in
	}
	out := &Inbox{Role: in.Role, Counts: in.Counts, Computed: in.Computed, Items: []Item{}}
	for _, item := range in.Items {
		if item.Category == category {
			out.Items = append(out.Items, item)
		}
	}
	return out
}
