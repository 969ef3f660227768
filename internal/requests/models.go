package requests

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"design-desk/request-portal/request-portal-backend/internal/attachments"
	"design-desk/request-portal/request-portal-backend/internal/capacity"
	"design-desk/request-portal/request-portal-backend/pkg/dates"
)

// Request is a design request. It is never hard-deleted.
type Request struct {
	ID             uuid.UUID         `json:"id" db:"id"`
	Title          string            `json:"title" db:"title"`
	TypeID         string            `json:"type_id" db:"type_id"`
	Priority       capacity.Priority `json:"priority" db:"priority"`
	Status         Status            `json:"status" db:"status"`
	RequesterID    uuid.UUID         `json:"requester_id" db:"requester_id"`
	DesignerID     *uuid.UUID        `json:"designer_id,omitempty" db:"designer_id"`
	ApproverID     *uuid.UUID        `json:"approver_id,omitempty" db:"approver_id"`
	SubmissionDate time.Time         `json:"submission_date" db:"submission_date"`
	DueDate        *dates.Date       `json:"due_date,omitempty" db:"due_date"`
	CompletionDate *time.Time        `json:"completion_date,omitempty" db:"completion_date"`
	DetailKind     DetailKind        `json:"detail_kind,omitempty" db:"detail_kind"`
	Details        datatypes.JSON    `json:"details" db:"details"`
	Version        int               `json:"version" db:"version"`
	UpdatedAt      time.Time         `json:"updated_at" db:"updated_at"`
}

// IsParty reports whether userID is the requester, designer or approver.
func (r *Request) IsParty(userID uuid.UUID) bool {
	if r.RequesterID == userID {
		return true
	}
	if r.DesignerID != nil && *r.DesignerID == userID {
		return true
	}
	return r.ApproverID != nil && *r.ApproverID == userID
}

// HistoryEntry is one immutable line of a request's audit trail.
type HistoryEntry struct {
	ID             uuid.UUID `json:"id" db:"id"`
	RequestID      uuid.UUID `json:"request_id" db:"request_id"`
	Sequence       int       `json:"sequence" db:"sequence"`
	ActionDate     time.Time `json:"action_date" db:"action_date"`
	ActorID        uuid.UUID `json:"actor_id" db:"actor_id"`
	PreviousStatus Status    `json:"previous_status" db:"previous_status"`
	NewStatus      Status    `json:"new_status" db:"new_status"`
	Action         Action    `json:"action" db:"action"`
	Comment        string    `json:"comment" db:"comment"`
}

// Attachment is metadata for a file submitted with a history entry.
type Attachment struct {
	ID             uuid.UUID `json:"id" db:"id"`
	RequestID      uuid.UUID `json:"request_id" db:"request_id"`
	HistoryEntryID uuid.UUID `json:"history_entry_id" db:"history_entry_id"`
	OriginalName   string    `json:"original_name" db:"original_name"`
	StoredRef      string    `json:"stored_ref" db:"stored_ref"`
	ContentType    string    `json:"content_type" db:"content_type"`
	Size           int64     `json:"size" db:"size"`
	UploadedBy     uuid.UUID `json:"uploaded_by" db:"uploaded_by"`
	UploadedAt     time.Time `json:"uploaded_at" db:"uploaded_at"`
}

// ActionInput carries the fields common to every action.
type ActionInput struct {
	Comment string
	Files   []attachments.Upload
}

// CreateInput is the payload of Create.
type CreateInput struct {
	ActionInput
	Title      string
	TypeID     string
	Priority   capacity.Priority
	DueDate    *dates.Date
	DetailKind DetailKind
	Details    json.RawMessage
}

// CompleteDesignInput selects between completion and submission for approval.
type CompleteDesignInput struct {
	ActionInput
	NeedsApproval bool
	ApproverID    *uuid.UUID
}

// ProcessApprovalInput is the approver's decision.
type ProcessApprovalInput struct {
	ActionInput
	Approved bool
}

// ResubmitInput may carry corrections applied in the same transaction.
type ResubmitInput struct {
	ActionInput
	Edits *RequestEdits
}

// RequestEdits lists the fields a requester may correct. Nil means unchanged.
type RequestEdits struct {
	Title        *string            `json:"title,omitempty"`
	TypeID       *string            `json:"type_id,omitempty"`
	Priority     *capacity.Priority `json:"priority,omitempty"`
	DueDate      *dates.Date        `json:"due_date,omitempty"`
	ClearDueDate bool               `json:"clear_due_date,omitempty"`
	DetailKind   *DetailKind        `json:"detail_kind,omitempty"`
	Details      json.RawMessage    `json:"details,omitempty"`
}

// TransitionResult is returned by every successful action.
type TransitionResult struct {
	Request     *Request      `json:"request"`
	Entry       *HistoryEntry `json:"history_entry"`
	Attachments []Attachment  `json:"attachments,omitempty"`
}

// RequestView is a request with its timeline, newest entry first.
type RequestView struct {
	Request     *Request       `json:"request"`
	History     []HistoryEntry `json:"history"`
	Attachments []Attachment   `json:"attachments"`
	Actions     []Action       `json:"allowed_actions"`
}

// ListFilter narrows List.
type ListFilter struct {
	ParticipantID *uuid.UUID
	Statuses      []Status
	Limit         int
	Offset        int
}
