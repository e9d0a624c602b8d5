package service

import (
	"context"
	"fmt"
	"time"

	"github.com/ayo6706/ledger-engine/internal/domain"
	"github.com/ayo6706/ledger-engine/internal/observability"
	"go.uber.org/zap"
)

// DefaultStalePendingAfter is how long a transaction may stay pending before
// reconciliation reports it.
const DefaultStalePendingAfter = 5 * time.Minute

// ReconciliationReport is the result of one reconciliation pass.
type ReconciliationReport struct {
	Violations   []domain.Account
	StalePending int64
	CheckedAt    time.Time
}

// Healthy reports whether the pass found nothing to act on.
func (r *ReconciliationReport) Healthy() bool {
	return len(r.Violations) == 0 && r.StalePending == 0
}

// ReconciliationService verifies ledger integrity invariants.
type ReconciliationService struct {
	reader            domain.Reader
	stalePendingAfter time.Duration
	now               func() time.Time
}

// NewReconciliationService creates a reconciliation service.
func NewReconciliationService(reader domain.Reader) *ReconciliationService {
	return &ReconciliationService{
		reader:            reader,
		stalePendingAfter: DefaultStalePendingAfter,
		now:               func() time.Time { return time.Now().UTC() },
	}
}

// WithStalePendingAfter sets the pending age that counts as stuck.
func (s *ReconciliationService) WithStalePendingAfter(d time.Duration) *ReconciliationService {
	if d > 0 {
		s.stalePendingAfter = d
	}
	return s
}

// Run checks reserved balances against balance and credit, and looks for
// transactions that never left pending.
func (s *ReconciliationService) Run(ctx context.Context) (*ReconciliationReport, error) {
	violations, err := s.reader.FindInvariantViolations(ctx)
	if err != nil {
		return nil, fmt.Errorf("find invariant violations: %w", err)
	}
	now := s.now()
	stale, err := s.reader.CountPendingTransactions(ctx, now.Add(-s.stalePendingAfter))
	if err != nil {
		return nil, fmt.Errorf("count stale pending transactions: %w", err)
	}

	observability.SetInvariantViolations(len(violations))
	observability.SetStalePending(stale)

	for _, acc := range violations {
		zap.L().Error("CRITICAL: account invariant violated",
			zap.String("account_id", acc.ID.String()),
			zap.String("balance", domain.FormatAmount(acc.Balance)),
			zap.String("reserved_balance", domain.FormatAmount(acc.ReservedBalance)),
			zap.String("credit_limit", domain.FormatAmount(acc.CreditLimit)),
		)
	}
	if stale > 0 {
		zap.L().Error("transactions stuck in pending",
			zap.Int64("count", stale),
			zap.Duration("older_than", s.stalePendingAfter),
		)
	}

	report := &ReconciliationReport{Violations: violations, StalePending: stale, CheckedAt: now}
	if report.Healthy() {
		zap.L().Info("Ledger Balanced")
	}
	return report, nil
}
