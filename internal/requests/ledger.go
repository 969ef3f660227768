package requests

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// ErrHistoryMismatch marks a history that does not replay to the stored status.
var ErrHistoryMismatch = errors.New("history mismatch")

// Ledger reads the append-only history. Writes go through Tx.AppendHistory so
// they share the transaction of the status change they record.
type Ledger struct {
	repo Repository
}

func NewLedger(repo Repository) *Ledger {
	return &Ledger{repo: repo}
}

// ListForRequest returns the history of requestID, newest first for display
// or chronological for replay.
func (l *Ledger) ListForRequest(ctx context.Context, requestID uuid.UUID, order Order) ([]HistoryEntry, error) {
	return l.repo.ListHistory(ctx, requestID, order)
}

// Verify replays the history of req and checks it ends in req.Status.
func (l *Ledger) Verify(ctx context.Context, req *Request) error {
	entries, err := l.repo.ListHistory(ctx, req.ID, OrderChronological)
	if err != nil {
		return err
	}
	status, err := Replay(entries)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrHistoryMismatch, req.ID, err)
	}
	if status != req.Status {
		return fmt.Errorf("%w: %s replays to %s but request is %s", ErrHistoryMismatch, req.ID, status, req.Status)
	}
	return nil
}

// Replay folds chronological entries starting from Submitted and returns the
// resulting status. Every entry must continue the previous one along a legal
// edge of the transition table.
func Replay(entries []HistoryEntry) (Status, error) {
	if len(entries) == 0 {
		return StatusSubmitted, fmt.Errorf("history is empty")
	}
	current := StatusSubmitted
	for i, e := range entries {
		if e.Sequence != i+1 {
			return current, fmt.Errorf("entry %d has sequence %d", i+1, e.Sequence)
		}
		if e.PreviousStatus != current {
			return current, fmt.Errorf("entry %d starts at %s but status was %s", e.Sequence, e.PreviousStatus, current)
		}
		to, ok := NextStatus(e.PreviousStatus, e.Action)
		if !ok || to != e.NewStatus {
			return current, fmt.Errorf("entry %d records illegal edge %s -[%s]-> %s", e.Sequence, e.PreviousStatus, e.Action, e.NewStatus)
		}
		current = e.NewStatus
	}
	return current, nil
}
