package requests

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"design-desk/request-portal/request-portal-backend/internal/apierrors"
	"design-desk/request-portal/request-portal-backend/internal/attachments"
	"design-desk/request-portal/request-portal-backend/internal/capacity"
	"design-desk/request-portal/request-portal-backend/internal/identity"
	"design-desk/request-portal/request-portal-backend/internal/metrics"
	"design-desk/request-portal/request-portal-backend/pkg/dates"
)

const maxTitleLength = 200

// SettingsProvider supplies the admin-configured workflow settings.
type SettingsProvider interface {
	CapacityLimits(ctx context.Context) (capacity.Limits, error)
	// DefaultDesignerID returns uuid.Nil when no default designer is configured.
	DefaultDesignerID(ctx context.Context) (uuid.UUID, error)
}

// RoleChecker answers role membership for users other than the actor.
type RoleChecker interface {
	IsInRole(ctx context.Context, userID uuid.UUID, role identity.Role) (bool, error)
}

// FileStore holds the bytes of attachments.
type FileStore interface {
	StoreFiles(ctx context.Context, requestID uuid.UUID, files []attachments.Upload) ([]attachments.StoredFile, error)
	RemoveFiles(ctx context.Context, storedRefs []string)
	Open(ctx context.Context, storedRef string) (io.ReadCloser, error)
	URL(ctx context.Context, storedRef string, ttl time.Duration) (string, error)
}

// Notifier delivers fire-and-forget notifications. It never reports failure.
type Notifier interface {
	Notify(ctx context.Context, userID, requestID uuid.UUID, message, category string)
}

// InboxInvalidator drops cached inbox projections of the given users.
type InboxInvalidator interface {
	InvalidateUsers(ctx context.Context, userIDs ...uuid.UUID)
}

// Dependencies wires a Service. Files, Notifier, Inbox and Metrics are optional.
type Dependencies struct {
	Repo     Repository
	Settings SettingsProvider
	Roles    RoleChecker
	Files    FileStore
	Notifier Notifier
	Inbox    InboxInvalidator
	Metrics  *metrics.Metrics
	Logger   *zap.Logger
}

// Service executes workflow actions. Every action takes the actor explicitly.
type Service struct {
	repo     Repository
	ledger   *Ledger
	settings SettingsProvider
	roles    RoleChecker
	files    FileStore
	notifier Notifier
	inbox    InboxInvalidator
	metrics  *metrics.Metrics
	logger   *zap.Logger
	now      func() time.Time
}

func NewService(deps Dependencies) *Service {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		repo:     deps.Repo,
		ledger:   NewLedger(deps.Repo),
		settings: deps.Settings,
		roles:    deps.Roles,
		files:    deps.Files,
		notifier: deps.Notifier,
		inbox:    deps.Inbox,
		metrics:  deps.Metrics,
		logger:   logger,
		now:      time.Now,
	}
}

// mutation applies action-specific field changes inside the transaction,
// after the status and actor checks have passed.
type mutation func(ctx context.Context, tx Tx, req *Request) error

// Create submits a new request, assigns the default designer and, when a due
// date is given, admits it through the capacity gate in the same transaction.
func (s *Service) Create(ctx context.Context, actor identity.Actor, in CreateInput) (*TransitionResult, error) {
	started := time.Now()
	res, err := s.create(ctx, actor, in)
	s.observe(ActionCreate, started, err)
	if err != nil {
		s.logRejected(ActionCreate, uuid.Nil, actor, err)
		return nil, err
	}
	s.afterCommit(ctx, actor, ActionCreate, StatusSubmitted, res)
	return res, nil
}

func (s *Service) create(ctx context.Context, actor identity.Actor, in CreateInput) (*TransitionResult, error) {
	if actor.ID == uuid.Nil {
		return nil, apierrors.Unauthorized("an authenticated actor is required")
	}
	if !actor.HasRole(identity.RoleRequester) {
		return nil, apierrors.Forbidden("creating a request requires the Requester role")
	}

	limits, err := s.settings.CapacityLimits(ctx)
	if err != nil {
		return nil, classify("load capacity settings", err)
	}
	now := s.now().UTC()
	today := dates.Of(now)

	var fieldErrs []apierrors.FieldError
	title := strings.TrimSpace(in.Title)
	fieldErrs = append(fieldErrs, checkTitle(title)...)
	if strings.TrimSpace(in.TypeID) == "" {
		fieldErrs = append(fieldErrs, apierrors.FieldError{Field: "type_id", Message: "type_id is required"})
	}
	if !in.Priority.Valid() {
		fieldErrs = append(fieldErrs, apierrors.FieldError{Field: "priority", Message: "priority must be Normal or Urgent"})
	}
	if in.DueDate != nil {
		fieldErrs = append(fieldErrs, checkDueWindow(*in.DueDate, today, limits)...)
	}
	payload, detailErrs := DecodeDetails(in.DetailKind, in.Details)
	fieldErrs = append(fieldErrs, detailErrs...)
	if len(fieldErrs) > 0 {
		return nil, apierrors.ValidationFields(fieldErrs)
	}

	designerID, err := s.defaultDesigner(ctx)
	if err != nil {
		return nil, err
	}
	details, err := encodeDetails(payload)
	if err != nil {
		return nil, apierrors.Validation("details", "details could not be encoded")
	}

	to, _ := NextStatus(StatusSubmitted, ActionCreate)
	req := &Request{
		ID:             uuid.New(),
		Title:          title,
		TypeID:         strings.TrimSpace(in.TypeID),
		Priority:       in.Priority,
		Status:         to,
		RequesterID:    actor.ID,
		DesignerID:     &designerID,
		SubmissionDate: now,
		DueDate:        in.DueDate,
		DetailKind:     in.DetailKind,
		Details:        details,
		UpdatedAt:      now,
	}

	stored, err := s.storeFiles(ctx, req.ID, in.Files)
	if err != nil {
		return nil, err
	}

	var result *TransitionResult
	err = s.repo.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		if req.DueDate != nil {
			if err := s.admit(ctx, tx, limits, *req.DueDate, req.Priority, nil); err != nil {
				return err
			}
		}
		if err := tx.InsertRequest(ctx, req); err != nil {
			return err
		}
		entry, linked, err := s.record(ctx, tx, actor, req, StatusSubmitted, ActionCreate, in.Comment, stored, now)
		if err != nil {
			return err
		}
		result = &TransitionResult{Request: req, Entry: entry, Attachments: linked}
		return nil
	})
	if err != nil {
		s.discardFiles(ctx, stored)
		return nil, classify("create request", err)
	}
	return result, nil
}

// StartDesign moves a request the actor is assigned to into DesignInProgress.
func (s *Service) StartDesign(ctx context.Context, actor identity.Actor, requestID uuid.UUID, in ActionInput) (*TransitionResult, error) {
	return s.transition(ctx, actor, requestID, ActionStartDesign, in, nil)
}

// ReturnForCorrection hands the request back to its requester.
func (s *Service) ReturnForCorrection(ctx context.Context, actor identity.Actor, requestID uuid.UUID, in ActionInput) (*TransitionResult, error) {
	return s.transition(ctx, actor, requestID, ActionReturnForCorrection, in, nil)
}

// CompleteDesign either completes the request or, when approval is needed,
// assigns the approver and moves it to PendingApproval.
func (s *Service) CompleteDesign(ctx context.Context, actor identity.Actor, requestID uuid.UUID, in CompleteDesignInput) (*TransitionResult, error) {
	if !in.NeedsApproval {
		return s.transition(ctx, actor, requestID, ActionCompleteDesign, in.ActionInput, nil)
	}

	var approverErr error
	var approverID uuid.UUID
	if in.ApproverID == nil || *in.ApproverID == uuid.Nil {
		approverErr = apierrors.Validation("approver_id", "approver_id is required when approval is needed")
	} else {
		approverID = *in.ApproverID
		ok, err := s.roles.IsInRole(ctx, approverID, identity.RoleApprover)
		if err != nil {
			return nil, classify("check approver role", err)
		}
		if !ok {
			approverErr = apierrors.Validation("approver_id", "approver must hold the Approver role")
		}
	}

	return s.transition(ctx, actor, requestID, ActionSubmitForApproval, in.ActionInput,
		func(ctx context.Context, tx Tx, req *Request) error {
			if approverErr != nil {
				return approverErr
			}
			if req.DesignerID != nil && *req.DesignerID == approverID {
				return apierrors.Validation("approver_id", "the assigned designer cannot approve their own design")
			}
			req.ApproverID = &approverID
			return nil
		})
}

// ProcessApproval records the approver's decision.
func (s *Service) ProcessApproval(ctx context.Context, actor identity.Actor, requestID uuid.UUID, in ProcessApprovalInput) (*TransitionResult, error) {
	action := ActionReject
	if in.Approved {
		action = ActionApprove
	}
	return s.transition(ctx, actor, requestID, action, in.ActionInput, nil)
}

// Resubmit sends a corrected request back to designer review. Edits are
// applied in the same transaction; a changed due date or priority is
// admitted through the capacity gate again.
func (s *Service) Resubmit(ctx context.Context, actor identity.Actor, requestID uuid.UUID, in ResubmitInput) (*TransitionResult, error) {
	if in.Edits == nil {
		return s.transition(ctx, actor, requestID, ActionResubmit, in.ActionInput, nil)
	}

	limits, err := s.settings.CapacityLimits(ctx)
	if err != nil {
		return nil, classify("load capacity settings", err)
	}
	today := dates.Of(s.now().UTC())
	edits := *in.Edits

	return s.transition(ctx, actor, requestID, ActionResubmit, in.ActionInput,
		func(ctx context.Context, tx Tx, req *Request) error {
			prevDue, prevPriority := req.DueDate, req.Priority
			if err := applyEdits(req, edits, today, limits); err != nil {
				return err
			}
			if req.DueDate == nil {
				return nil
			}
			dueChanged := prevDue == nil || *prevDue != *req.DueDate
			if dueChanged || prevPriority != req.Priority {
				return s.admit(ctx, tx, limits, *req.DueDate, req.Priority, &req.ID)
			}
			return nil
		})
}

// ResubmitForApproval sends a redesign back to the approver already assigned.
func (s *Service) ResubmitForApproval(ctx context.Context, actor identity.Actor, requestID uuid.UUID, in ActionInput) (*TransitionResult, error) {
	return s.transition(ctx, actor, requestID, ActionResubmitForApproval, in,
		func(ctx context.Context, tx Tx, req *Request) error {
			if req.ApproverID == nil {
				return apierrors.Validation("approver_id", "request has no approver to resubmit to")
			}
			return nil
		})
}

// Get returns a request with its history, newest first.
func (s *Service) Get(ctx context.Context, actor identity.Actor, requestID uuid.UUID) (*RequestView, error) {
	req, err := s.visibleRequest(ctx, actor, requestID)
	if err != nil {
		return nil, err
	}
	history, err := s.ledger.ListForRequest(ctx, requestID, OrderNewestFirst)
	if err != nil {
		return nil, classify("list history", err)
	}
	files, err := s.repo.ListAttachments(ctx, requestID)
	if err != nil {
		return nil, classify("list attachments", err)
	}
	return &RequestView{
		Request:     req,
		History:     history,
		Attachments: files,
		Actions:     allowedActions(actor, req),
	}, nil
}

// History returns the audit trail of a request in the requested order.
func (s *Service) History(ctx context.Context, actor identity.Actor, requestID uuid.UUID, order Order) ([]HistoryEntry, error) {
	if _, err := s.visibleRequest(ctx, actor, requestID); err != nil {
		return nil, err
	}
	entries, err := s.ledger.ListForRequest(ctx, requestID, order)
	if err != nil {
		return nil, classify("list history", err)
	}
	return entries, nil
}

// AllowedActions lists what actor may do to the request right now.
func (s *Service) AllowedActions(ctx context.Context, actor identity.Actor, requestID uuid.UUID) ([]Action, error) {
	req, err := s.visibleRequest(ctx, actor, requestID)
	if err != nil {
		return nil, err
	}
	return allowedActions(actor, req), nil
}

// List returns every request for admins and the actor's own requests otherwise.
func (s *Service) List(ctx context.Context, actor identity.Actor, filter ListFilter) ([]Request, error) {
	if actor.ID == uuid.Nil {
		return nil, apierrors.Unauthorized("an authenticated actor is required")
	}
	if !actor.IsAdmin() {
		id := actor.ID
		filter.ParticipantID = &id
	}
	out, err := s.repo.ListRequests(ctx, filter)
	if err != nil {
		return nil, classify("list requests", err)
	}
	return out, nil
}

// OpenAttachment streams an attachment of a request visible to actor.
func (s *Service) OpenAttachment(ctx context.Context, actor identity.Actor, requestID, attachmentID uuid.UUID) (*Attachment, io.ReadCloser, error) {
	a, err := s.visibleAttachment(ctx, actor, requestID, attachmentID)
	if err != nil {
		return nil, nil, err
	}
	rc, err := s.files.Open(ctx, a.StoredRef)
	if err != nil {
		return nil, nil, classify("open attachment", err)
	}
	return a, rc, nil
}

// AttachmentURL returns a download link for an attachment valid for ttl.
func (s *Service) AttachmentURL(ctx context.Context, actor identity.Actor, requestID, attachmentID uuid.UUID, ttl time.Duration) (string, error) {
	a, err := s.visibleAttachment(ctx, actor, requestID, attachmentID)
	if err != nil {
		return "", err
	}
	url, err := s.files.URL(ctx, a.StoredRef, ttl)
	if err != nil {
		return "", classify("sign attachment url", err)
	}
	return url, nil
}

func (s *Service) visibleAttachment(ctx context.Context, actor identity.Actor, requestID, attachmentID uuid.UUID) (*Attachment, error) {
	if _, err := s.visibleRequest(ctx, actor, requestID); err != nil {
		return nil, err
	}
	a, err := s.repo.GetAttachment(ctx, attachmentID)
	if err != nil {
		return nil, classify("get attachment", err)
	}
	if a.RequestID != requestID || s.files == nil {
		return nil, apierrors.NotFound("attachment", attachmentID.String())
	}
	return a, nil
}

// VerifyHistory replays the ledger of a request against its current status.
func (s *Service) VerifyHistory(ctx context.Context, requestID uuid.UUID) error {
	req, err := s.repo.GetRequest(ctx, requestID)
	if err != nil {
		return classify("get request", err)
	}
	if err := s.ledger.Verify(ctx, req); err != nil {
		if errors.Is(err, ErrHistoryMismatch) {
			return err
		}
		return classify("verify history", err)
	}
	return nil
}

func (s *Service) transition(ctx context.Context, actor identity.Actor, requestID uuid.UUID, action Action, in ActionInput, mutate mutation) (*TransitionResult, error) {
	started := time.Now()
	res, from, err := s.runTransition(ctx, actor, requestID, action, in, mutate)
	s.observe(action, started, err)
	if err != nil {
		s.logRejected(action, requestID, actor, err)
		return nil, err
	}
	s.afterCommit(ctx, actor, action, from, res)
	return res, nil
}

func (s *Service) runTransition(ctx context.Context, actor identity.Actor, requestID uuid.UUID, action Action, in ActionInput, mutate mutation) (*TransitionResult, Status, error) {
	if actor.ID == uuid.Nil {
		return nil, 0, apierrors.Unauthorized("an authenticated actor is required")
	}
	if len(in.Files) > 0 {
		// Nothing is uploaded for an action that cannot apply. The check in
		// the transaction below stays authoritative.
		if from, err := s.precheck(ctx, actor, requestID, action); err != nil {
			return nil, from, err
		}
	}
	stored, err := s.storeFiles(ctx, requestID, in.Files)
	if err != nil {
		return nil, 0, err
	}

	now := s.now().UTC()
	var result *TransitionResult
	var from Status
	err = s.repo.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		req, err := tx.GetRequest(ctx, requestID)
		if err != nil {
			return err
		}
		from = req.Status
		to, ok := NextStatus(from, action)
		if !ok {
			return apierrors.InvalidTransition(string(action), from.String())
		}
		if err := authorize(actor, req, action); err != nil {
			return err
		}
		if mutate != nil {
			if err := mutate(ctx, tx, req); err != nil {
				return err
			}
		}

		req.Status = to
		if to == StatusCompleted {
			completed := now
			req.CompletionDate = &completed
		} else {
			req.CompletionDate = nil
		}
		req.UpdatedAt = now

		if err := tx.UpdateRequest(ctx, req, from); err != nil {
			if errors.Is(err, ErrStaleState) {
				stale := apierrors.InvalidTransition(string(action), from.String())
				stale.Message = fmt.Sprintf("request changed while %s was being applied; reload and retry", action)
				stale.Details["stale"] = true
				return stale
			}
			return err
		}

		entry, linked, err := s.record(ctx, tx, actor, req, from, action, in.Comment, stored, now)
		if err != nil {
			return err
		}
		result = &TransitionResult{Request: req, Entry: entry, Attachments: linked}
		return nil
	})
	if err != nil {
		s.discardFiles(ctx, stored)
		return nil, from, classify(string(action), err)
	}
	return result, from, nil
}

// precheck validates action against the committed row without locking it.
func (s *Service) precheck(ctx context.Context, actor identity.Actor, requestID uuid.UUID, action Action) (Status, error) {
	req, err := s.repo.GetRequest(ctx, requestID)
	if err != nil {
		return 0, classify("get request", err)
	}
	if _, ok := NextStatus(req.Status, action); !ok {
		return req.Status, apierrors.InvalidTransition(string(action), req.Status.String())
	}
	return req.Status, authorize(actor, req, action)
}

// record appends the history entry of a transition and links its files.
func (s *Service) record(ctx context.Context, tx Tx, actor identity.Actor, req *Request, from Status, action Action, comment string, stored []attachments.StoredFile, now time.Time) (*HistoryEntry, []Attachment, error) {
	comment = strings.TrimSpace(comment)
	if comment == "" {
		comment = DefaultComment(req.Status)
	}
	entry := &HistoryEntry{
		ID:             uuid.New(),
		RequestID:      req.ID,
		ActionDate:     now,
		ActorID:        actor.ID,
		PreviousStatus: from,
		NewStatus:      req.Status,
		Action:         action,
		Comment:        comment,
	}
	if err := tx.AppendHistory(ctx, entry); err != nil {
		return nil, nil, err
	}

	if len(stored) == 0 {
		return entry, nil, nil
	}
	linked := make([]Attachment, 0, len(stored))
	for _, f := range stored {
		linked = append(linked, Attachment{
			ID:             f.ID,
			RequestID:      req.ID,
			HistoryEntryID: entry.ID,
			OriginalName:   f.OriginalName,
			StoredRef:      f.StoredRef,
			ContentType:    f.ContentType,
			Size:           f.Size,
			UploadedBy:     actor.ID,
			UploadedAt:     now,
		})
	}
	if err := tx.LinkAttachments(ctx, linked); err != nil {
		return nil, nil, err
	}
	return entry, linked, nil
}

// admit runs the capacity gate under the (day, priority) lock.
func (s *Service) admit(ctx context.Context, tx Tx, limits capacity.Limits, day dates.Date, priority capacity.Priority, exclude *uuid.UUID) error {
	if err := tx.LockCapacitySlot(ctx, day, priority); err != nil {
		return err
	}
	count, err := tx.CountScheduled(ctx, day, priority, exclude)
	if err != nil {
		return err
	}
	decision := capacity.CheckCapacity(limits, day, priority, count)
	if !decision.Allowed {
		s.metrics.CapacityDenied(string(priority))
		s.logger.Info("Capacity denied",
			zap.String("due_date", day.String()),
			zap.String("priority", string(priority)),
			zap.Int("scheduled", count),
			zap.Int("max", decision.Slot.Total))
	}
	return decision.Err()
}

func (s *Service) defaultDesigner(ctx context.Context) (uuid.UUID, error) {
	designerID, err := s.settings.DefaultDesignerID(ctx)
	if err != nil {
		return uuid.Nil, classify("load default designer", err)
	}
	if designerID == uuid.Nil {
		return uuid.Nil, apierrors.Validation("designer_id", "no default designer is configured")
	}
	ok, err := s.roles.IsInRole(ctx, designerID, identity.RoleDesigner)
	if err != nil {
		return uuid.Nil, classify("check designer role", err)
	}
	if !ok {
		return uuid.Nil, apierrors.Validation("designer_id", "the configured default designer does not hold the Designer role")
	}
	return designerID, nil
}

func (s *Service) visibleRequest(ctx context.Context, actor identity.Actor, requestID uuid.UUID) (*Request, error) {
	if actor.ID == uuid.Nil {
		return nil, apierrors.Unauthorized("an authenticated actor is required")
	}
	req, err := s.repo.GetRequest(ctx, requestID)
	if err != nil {
		return nil, classify("get request", err)
	}
	if !actor.IsAdmin() && !req.IsParty(actor.ID) {
		return nil, apierrors.Forbidden("you are not a party to this request")
	}
	return req, nil
}

func (s *Service) storeFiles(ctx context.Context, requestID uuid.UUID, files []attachments.Upload) ([]attachments.StoredFile, error) {
	if len(files) == 0 {
		return nil, nil
	}
	if s.files == nil {
		return nil, apierrors.Validation("files", "attachments are not supported")
	}
	stored, err := s.files.StoreFiles(ctx, requestID, files)
	if err != nil {
		return nil, classify("store attachments", err)
	}
	return stored, nil
}

func (s *Service) discardFiles(ctx context.Context, stored []attachments.StoredFile) {
	if len(stored) == 0 || s.files == nil {
		return
	}
	refs := make([]string, 0, len(stored))
	for _, f := range stored {
		refs = append(refs, f.StoredRef)
	}
	s.files.RemoveFiles(context.WithoutCancel(ctx), refs)
}

// afterCommit runs the side effects of a committed transition. None of them
// can fail the transition.
func (s *Service) afterCommit(ctx context.Context, actor identity.Actor, action Action, from Status, res *TransitionResult) {
	req := res.Request
	s.logger.Info("Committed transition",
		zap.String("request_id", req.ID.String()),
		zap.String("action", string(action)),
		zap.String("from", from.String()),
		zap.String("to", req.Status.String()),
		zap.String("actor_id", actor.ID.String()))

	if s.inbox != nil {
		affected := []uuid.UUID{req.RequesterID}
		if req.DesignerID != nil {
			affected = append(affected, *req.DesignerID)
		}
		if req.ApproverID != nil {
			affected = append(affected, *req.ApproverID)
		}
		s.inbox.InvalidateUsers(ctx, affected...)
	}

	if s.notifier != nil {
		message := fmt.Sprintf(notificationText[action], req.Title)
		for _, userID := range recipients(req, action, actor.ID) {
			s.notifier.Notify(ctx, userID, req.ID, message, string(action))
		}
	}
}

func (s *Service) observe(action Action, started time.Time, err error) {
	outcome := metrics.OutcomeCommitted
	if err != nil {
		outcome = metrics.OutcomeRejected
		if apierrors.KindOf(err) == apierrors.KindPersistence {
			outcome = metrics.OutcomeFailed
		}
	}
	s.metrics.ObserveTransition(string(action), outcome, time.Since(started))
}

func (s *Service) logRejected(action Action, requestID uuid.UUID, actor identity.Actor, err error) {
	fields := []zap.Field{
		zap.String("action", string(action)),
		zap.String("request_id", requestID.String()),
		zap.String("actor_id", actor.ID.String()),
		zap.Error(err),
	}
	switch apierrors.KindOf(err) {
	case apierrors.KindPersistence:
		s.logger.Error("Failed to apply transition", fields...)
	case apierrors.KindForbidden, apierrors.KindUnauthorized:
		s.logger.Warn("Rejected transition", fields...)
	default:
		s.logger.Debug("Rejected transition", fields...)
	}
}

func allowedActions(actor identity.Actor, req *Request) []Action {
	var out []Action
	for _, action := range ActionsFrom(req.Status) {
		if authorize(actor, req, action) == nil {
			out = append(out, action)
		}
	}
	return out
}

// classify keeps typed errors and turns anything else into a persistence fault.
func classify(op string, err error) error {
	var apiErr *apierrors.Error
	if errors.As(err, &apiErr) {
		return err
	}
	return apierrors.Persistence(op, err)
}

func checkTitle(title string) []apierrors.FieldError {
	if title == "" {
		return []apierrors.FieldError{{Field: "title", Message: "title is required"}}
	}
	if len([]rune(title)) > maxTitleLength {
		return []apierrors.FieldError{{Field: "title", Message: fmt.Sprintf("title must be at most %d characters", maxTitleLength)}}
	}
	return nil
}

// checkDueWindow requires today <= due <= today+OrderableDaysInFuture.
func checkDueWindow(due, today dates.Date, limits capacity.Limits) []apierrors.FieldError {
	if due.Before(today) {
		return []apierrors.FieldError{{Field: "due_date", Message: "due_date cannot be in the past"}}
	}
	if limits.OrderableDaysInFuture > 0 && today.DaysUntil(due) > limits.OrderableDaysInFuture {
		return []apierrors.FieldError{{Field: "due_date", Message: fmt.Sprintf("due_date must be within %d days", limits.OrderableDaysInFuture)}}
	}
	return nil
}

// applyEdits validates and applies requester corrections to req.
func applyEdits(req *Request, edits RequestEdits, today dates.Date, limits capacity.Limits) error {
	var fieldErrs []apierrors.FieldError

	if edits.Title != nil {
		title := strings.TrimSpace(*edits.Title)
		if errs := checkTitle(title); len(errs) > 0 {
			fieldErrs = append(fieldErrs, errs...)
		} else {
			req.Title = title
		}
	}
	if edits.TypeID != nil {
		if strings.TrimSpace(*edits.TypeID) == "" {
			fieldErrs = append(fieldErrs, apierrors.FieldError{Field: "type_id", Message: "type_id cannot be empty"})
		} else {
			req.TypeID = strings.TrimSpace(*edits.TypeID)
		}
	}
	if edits.Priority != nil {
		if !edits.Priority.Valid() {
			fieldErrs = append(fieldErrs, apierrors.FieldError{Field: "priority", Message: "priority must be Normal or Urgent"})
		} else {
			req.Priority = *edits.Priority
		}
	}
	switch {
	case edits.ClearDueDate:
		req.DueDate = nil
	case edits.DueDate != nil:
		if errs := checkDueWindow(*edits.DueDate, today, limits); len(errs) > 0 {
			fieldErrs = append(fieldErrs, errs...)
		} else {
			due := *edits.DueDate
			req.DueDate = &due
		}
	}
	if edits.DetailKind != nil || len(edits.Details) > 0 {
		kind := req.DetailKind
		if edits.DetailKind != nil {
			kind = *edits.DetailKind
		}
		payload, errs := DecodeDetails(kind, edits.Details)
		if len(errs) > 0 {
			fieldErrs = append(fieldErrs, errs...)
		} else {
			details, err := encodeDetails(payload)
			if err != nil {
				fieldErrs = append(fieldErrs, apierrors.FieldError{Field: "details", Message: "details could not be encoded"})
			} else {
				req.DetailKind = kind
				req.Details = details
			}
		}
	}

	if len(fieldErrs) > 0 {
		return apierrors.ValidationFields(fieldErrs)
	}
	return nil
}
