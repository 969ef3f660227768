package inbox

import (
	"github.com/google/uuid"

	"design-desk/request-portal/request-portal-backend/internal/identity"
	"design-desk/request-portal/request-portal-backend/internal/requests"
)

var requesterCategories = map[requests.Status]Category{
	requests.StatusDesignerReview:    CategoryUnderReview,
	requests.StatusDesignInProgress:  CategoryInProgress,
	requests.StatusPendingCorrection: CategoryActionRequired,
	requests.StatusPendingApproval:   CategoryAwaitingApproval,
	requests.StatusPendingRedesign:   CategoryInProgress,
	requests.StatusCompleted:         CategoryCompleted,
}

var designerCategories = map[requests.Status]Category{
	requests.StatusDesignerReview:    CategoryNewRequests,
	requests.StatusDesignInProgress:  CategoryInProgress,
	requests.StatusPendingCorrection: CategoryWaitingOnRequester,
	requests.StatusPendingApproval:   CategoryAwaitingApproval,
	requests.StatusPendingRedesign:   CategoryRedesign,
	requests.StatusCompleted:         CategoryCompleted,
}

// Approvers only see a request once it has reached them.
var approverCategories = map[requests.Status]Category{
	requests.StatusPendingApproval: CategoryToApprove,
	requests.StatusPendingRedesign: CategorySentBack,
	requests.StatusCompleted:       CategoryCompleted,
}

// Categories lists the buckets of role in display order.
func Categories(role identity.Role) []Category {
	switch role {
	case identity.RoleRequester:
		return []Category{CategoryUnderReview, CategoryInProgress, CategoryActionRequired, CategoryAwaitingApproval, CategoryCompleted}
	case identity.RoleDesigner:
		return []Category{CategoryNewRequests, CategoryInProgress, CategoryWaitingOnRequester, CategoryAwaitingApproval, CategoryRedesign, CategoryCompleted}
	case identity.RoleApprover:
		return []Category{CategoryToApprove, CategorySentBack, CategoryCompleted}
	case identity.RoleAdmin:
		return []Category{CategoryAll}
	}
	return nil
}

// Classify returns the bucket of req for viewerID acting in role. ok is
// false when the request does not belong in that viewer's inbox.
func Classify(req *requests.Request, role identity.Role, viewerID uuid.UUID) (Category, bool) {
	var table map[requests.Status]Category
	switch role {
	case identity.RoleAdmin:
		return CategoryAll, true
	case identity.RoleRequester:
		if req.RequesterID != viewerID {
			return "", false
		}
		table = requesterCategories
	case identity.RoleDesigner:
		if req.DesignerID == nil || *req.DesignerID != viewerID {
			return "", false
		}
		table = designerCategories
	case identity.RoleApprover:
		if req.ApproverID == nil || *req.ApproverID != viewerID {
			return "", false
		}
		table = approverCategories
	default:
		return "", false
	}
	category, ok := table[req.Status]
	return category, ok
}

// Unread reports whether the viewer has no marker for the current epoch.
func Unread(req *requests.Request, viewed map[Epoch]bool) bool {
	return !viewed[EpochOf(req)]
}
