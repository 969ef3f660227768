package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"design-desk/request-portal/request-portal-backend/internal/metrics"
	"design-desk/request-portal/request-portal-backend/internal/requests"
)

const pageSize = 200

// RequestLister pages through stored requests.
type RequestLister interface {
	ListRequests(ctx context.Context, filter requests.ListFilter) ([]requests.Request, error)
}

// HistoryVerifier replays the history of one request.
type HistoryVerifier interface {
	VerifyHistory(ctx context.Context, requestID uuid.UUID) error
}

// LedgerAudit replays every request's history and reports the ones whose
// ledger no longer ends in their stored status.
type LedgerAudit struct {
	lister   RequestLister
	verifier HistoryVerifier
	metrics  *metrics.Metrics
	logger   *zap.Logger

	mu   sync.Mutex
	last AuditReport
}

type AuditReport struct {
	Checked    int
	Mismatched []uuid.UUID
}

func NewLedgerAudit(lister RequestLister, verifier HistoryVerifier, m *metrics.Metrics, logger *zap.Logger) *LedgerAudit {
	return &LedgerAudit{lister: lister, verifier: verifier, metrics: m, logger: logger}
}

func (a *LedgerAudit) Name() string { return "ledger_audit" }

// Last returns the result of the most recent completed run.
func (a *LedgerAudit) Last() AuditReport {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.last
}

func (a *LedgerAudit) Run(ctx context.Context) error {
	var report AuditReport
	for offset := 0; ; offset += pageSize {
		page, err := a.lister.ListRequests(ctx, requests.ListFilter{Limit: pageSize, Offset: offset})
		if err != nil {
			return fmt.Errorf("list requests: %w", err)
		}
		for _, req := range page {
			if err := ctx.Err(); err != nil {
				return err
			}
			report.Checked++
			err := a.verifier.VerifyHistory(ctx, req.ID)
			switch {
			case err == nil:
			case errors.Is(err, requests.ErrHistoryMismatch):
				report.Mismatched = append(report.Mismatched, req.ID)
				a.metrics.LedgerMismatch()
				a.logger.Error("Request history is inconsistent", zap.String("request_id", req.ID.String()), zap.Error(err))
			default:
				return fmt.Errorf("verify %s: %w", req.ID, err)
			}
		}
		if len(page) < pageSize {
			break
		}
	}
	a.mu.Lock()
	a.last = report
	a.mu.Unlock()
	a.logger.Info("Ledger audit complete", zap.Int("checked", report.Checked), zap.Int("mismatched", len(report.Mismatched)))
	return nil
}
