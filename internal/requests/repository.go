package requests

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"design-desk/request-portal/request-portal-backend/internal/apierrors"
	"design-desk/request-portal/request-portal-backend/internal/capacity"
	"design-desk/request-portal/request-portal-backend/pkg/dates"
)

// ErrStaleState is returned by UpdateRequest when the row no longer holds the
// expected status and version.
var ErrStaleState = errors.New("request was modified concurrently")

// Order selects the direction of a history listing.
type Order string

const (
	OrderNewestFirst   Order = "desc"
	OrderChronological Order = "asc"
)

type Repository interface {
	// WithinTx runs fn in one transaction, rolling back on any error.
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error

	GetRequest(ctx context.Context, id uuid.UUID) (*Request, error)
	ListRequests(ctx context.Context, filter ListFilter) ([]Request, error)
	ListHistory(ctx context.Context, requestID uuid.UUID, order Order) ([]HistoryEntry, error)
	ListAttachments(ctx context.Context, requestID uuid.UUID) ([]Attachment, error)
	GetAttachment(ctx context.Context, id uuid.UUID) (*Attachment, error)
	CountScheduledBetween(ctx context.Context, start, end dates.Date) (map[dates.Date]map[capacity.Priority]int, error)
}

// Tx is the set of writes a workflow action performs atomically.
type Tx interface {
	GetRequest(ctx context.Context, id uuid.UUID) (*Request, error)
	InsertRequest(ctx context.Context, req *Request) error
	// UpdateRequest writes req only if the row still holds expected and
	// req.Version; it bumps req.Version on success.
	UpdateRequest(ctx context.Context, req *Request, expected Status) error
	// AppendHistory assigns the next sequence number and inserts entry.
	AppendHistory(ctx context.Context, entry *HistoryEntry) error
	LinkAttachments(ctx context.Context, items []Attachment) error
	// LockCapacitySlot serializes admissions for one (day, priority) until commit.
	LockCapacitySlot(ctx context.Context, day dates.Date, priority capacity.Priority) error
	CountScheduled(ctx context.Context, day dates.Date, priority capacity.Priority, exclude *uuid.UUID) (int, error)
}

type postgresRepository struct {
	db *sqlx.DB
}

// NewRepository works against postgres and sqlite; queries use ? placeholders
// rebound for the driver.
func NewRepository(db *sqlx.DB) Repository {
	return &postgresRepository{db: db}
}

const requestColumns = `id, title, type_id, priority, status, requester_id, designer_id, approver_id,
	submission_date, due_date, completion_date, detail_kind, details, version, updated_at`

const historyColumns = `id, request_id, sequence, action_date, actor_id, previous_status, new_status, action, comment`

const attachmentColumns = `id, request_id, history_entry_id, original_name, stored_ref, content_type, size, uploaded_by, uploaded_at`

func (r *postgresRepository) WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return apierrors.Persistence("begin transaction", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(ctx, &txRepository{tx: tx}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return errors.Join(err, apierrors.Persistence("roll back transaction", rbErr))
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return apierrors.Persistence("commit transaction", err)
	}
	return nil
}

func (r *postgresRepository) GetRequest(ctx context.Context, id uuid.UUID) (*Request, error) {
	return getRequest(ctx, r.db, id)
}

func (r *postgresRepository) ListRequests(ctx context.Context, filter ListFilter) ([]Request, error) {
	query := "SELECT " + requestColumns + " FROM requests WHERE 1=1"
	var args []interface{}

	if filter.ParticipantID != nil {
		query += " AND (requester_id = ? OR designer_id = ? OR approver_id = ?)"
		args = append(args, *filter.ParticipantID, *filter.ParticipantID, *filter.ParticipantID)
	}
	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, s := range filter.Statuses {
			placeholders[i] = "?"
			args = append(args, s)
		}
		query += " AND status IN (" + strings.Join(placeholders, ", ") + ")"
	}
	query += " ORDER BY submission_date DESC, id"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d OFFSET %d", filter.Limit, filter.Offset)
	}

	var out []Request
	if err := r.db.SelectContext(ctx, &out, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("list requests: %w", err)
	}
	return out, nil
}

func (r *postgresRepository) ListHistory(ctx context.Context, requestID uuid.UUID, order Order) ([]HistoryEntry, error) {
	direction := "ASC"
	if order == OrderNewestFirst {
		direction = "DESC"
	}
	query := "SELECT " + historyColumns + " FROM request_history WHERE request_id = ? ORDER BY sequence " + direction

	var out []HistoryEntry
	if err := r.db.SelectContext(ctx, &out, r.db.Rebind(query), requestID); err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	return out, nil
}

func (r *postgresRepository) ListAttachments(ctx context.Context, requestID uuid.UUID) ([]Attachment, error) {
	query := "SELECT " + attachmentColumns + " FROM request_attachments WHERE request_id = ? ORDER BY uploaded_at, id"

	var out []Attachment
	if err := r.db.SelectContext(ctx, &out, r.db.Rebind(query), requestID); err != nil {
		return nil, fmt.Errorf("list attachments: %w", err)
	}
	return out, nil
}

func (r *postgresRepository) GetAttachment(ctx context.Context, id uuid.UUID) (*Attachment, error) {
	query := "SELECT " + attachmentColumns + " FROM request_attachments WHERE id = ?"

	var a Attachment
	err := r.db.GetContext(ctx, &a, r.db.Rebind(query), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apierrors.NotFound("attachment", id.String())
	}
	if err != nil {
		return nil, fmt.Errorf("get attachment: %w", err)
	}
	return &a, nil
}

type scheduledCount struct {
	DueDate  dates.Date        `db:"due_date"`
	Priority capacity.Priority `db:"priority"`
	N        int               `db:"n"`
}

func (r *postgresRepository) CountScheduledBetween(ctx context.Context, start, end dates.Date) (map[dates.Date]map[capacity.Priority]int, error) {
	query := `SELECT due_date, priority, COUNT(*) AS n FROM requests
		WHERE due_date >= ? AND due_date <= ?
		GROUP BY due_date, priority`

	var rows []scheduledCount
	if err := r.db.SelectContext(ctx, &rows, r.db.Rebind(query), start, end); err != nil {
		return nil, fmt.Errorf("count scheduled: %w", err)
	}
	out := make(map[dates.Date]map[capacity.Priority]int)
	for _, row := range rows {
		if out[row.DueDate] == nil {
			out[row.DueDate] = make(map[capacity.Priority]int)
		}
		out[row.DueDate][row.Priority] += row.N
	}
	return out, nil
}

type txRepository struct {
	tx *sqlx.Tx
}

func (t *txRepository) GetRequest(ctx context.Context, id uuid.UUID) (*Request, error) {
	return getRequest(ctx, t.tx, id)
}

func (t *txRepository) InsertRequest(ctx context.Context, req *Request) error {
	query := `INSERT INTO requests (` + requestColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := t.tx.ExecContext(ctx, t.tx.Rebind(query),
		req.ID, req.Title, req.TypeID, req.Priority, req.Status, req.RequesterID, req.DesignerID, req.ApproverID,
		req.SubmissionDate, req.DueDate, req.CompletionDate, req.DetailKind, req.Details, req.Version, req.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert request: %w", err)
	}
	return nil
}

func (t *txRepository) UpdateRequest(ctx context.Context, req *Request, expected Status) error {
	query := `UPDATE requests SET
			title = ?, type_id = ?, priority = ?, status = ?, designer_id = ?, approver_id = ?,
			due_date = ?, completion_date = ?, detail_kind = ?, details = ?,
			version = version + 1, updated_at = ?
		WHERE id = ? AND status = ? AND version = ?`
	res, err := t.tx.ExecContext(ctx, t.tx.Rebind(query),
		req.Title, req.TypeID, req.Priority, req.Status, req.DesignerID, req.ApproverID,
		req.DueDate, req.CompletionDate, req.DetailKind, req.Details, req.UpdatedAt,
		req.ID, expected, req.Version)
	if err != nil {
		return fmt.Errorf("update request: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update request: %w", err)
	}
	if n == 0 {
		return ErrStaleState
	}
	req.Version++
	return nil
}

func (t *txRepository) AppendHistory(ctx context.Context, entry *HistoryEntry) error {
	var next int
	err := t.tx.GetContext(ctx, &next,
		t.tx.Rebind("SELECT COALESCE(MAX(sequence), 0) + 1 FROM request_history WHERE request_id = ?"),
		entry.RequestID)
	if err != nil {
		return fmt.Errorf("next history sequence: %w", err)
	}
	entry.Sequence = next

	query := `INSERT INTO request_history (` + historyColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err = t.tx.ExecContext(ctx, t.tx.Rebind(query),
		entry.ID, entry.RequestID, entry.Sequence, entry.ActionDate, entry.ActorID,
		entry.PreviousStatus, entry.NewStatus, entry.Action, entry.Comment)
	if err != nil {
		return fmt.Errorf("append history: %w", err)
	}
	return nil
}

func (t *txRepository) LinkAttachments(ctx context.Context, items []Attachment) error {
	query := t.tx.Rebind(`INSERT INTO request_attachments (` + attachmentColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	for _, a := range items {
		_, err := t.tx.ExecContext(ctx, query,
			a.ID, a.RequestID, a.HistoryEntryID, a.OriginalName, a.StoredRef, a.ContentType, a.Size, a.UploadedBy, a.UploadedAt)
		if err != nil {
			return fmt.Errorf("link attachment %s: %w", a.OriginalName, err)
		}
	}
	return nil
}

func (t *txRepository) LockCapacitySlot(ctx context.Context, day dates.Date, priority capacity.Priority) error {
	query := `INSERT INTO capacity_locks (due_date, priority, version) VALUES (?, ?, 0)
		ON CONFLICT (due_date, priority) DO UPDATE SET version = capacity_locks.version + 1`
	if _, err := t.tx.ExecContext(ctx, t.tx.Rebind(query), day, priority); err != nil {
		return fmt.Errorf("lock capacity slot: %w", err)
	}
	return nil
}

func (t *txRepository) CountScheduled(ctx context.Context, day dates.Date, priority capacity.Priority, exclude *uuid.UUID) (int, error) {
	query := "SELECT COUNT(*) FROM requests WHERE due_date = ? AND priority = ?"
	args := []interface{}{day, priority}
	if exclude != nil {
		query += " AND id <> ?"
		args = append(args, *exclude)
	}
	var n int
	if err := t.tx.GetContext(ctx, &n, t.tx.Rebind(query), args...); err != nil {
		return 0, fmt.Errorf("count scheduled: %w", err)
	}
	return n, nil
}

type queryer interface {
	sqlx.QueryerContext
	Rebind(query string) string
}

func getRequest(ctx context.Context, q queryer, id uuid.UUID) (*Request, error) {
	var req Request
	err := sqlx.GetContext(ctx, q, &req, q.Rebind("SELECT "+requestColumns+" FROM requests WHERE id = ?"), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apierrors.NotFound("request", id.String())
	}
	if err != nil {
		return nil, fmt.Errorf("get request: %w", err)
	}
	return &req, nil
}
