package orchestration

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/wakala/settlement/internal/aggregate"
	"github.com/wakala/settlement/internal/domain"
	"github.com/wakala/settlement/internal/reconciliation"
	"github.com/wakala/settlement/internal/repository"
)

const reconciliationPartition = "reconciliation"

// ReconciliationSync is the outcome of one reconciliation sync.
type ReconciliationSync struct {
	From      time.Time                     `json:"from"`
	To        time.Time                     `json:"to"`
	Records   []domain.ReconciliationRecord `json:"records"`
	Persisted bool                          `json:"persisted"`
	// Carried counts the saved rows after To whose cumulative variance was
	// rewritten to follow the window.
	Carried int           `json:"carried_rows"`
	Report  domain.Report `json:"report"`
}

// SyncReconciliation recomputes every reconciliation row in [from, to] from
// the stored transactions. Cumulative variance continues from the last row
// of each partition before from, and every saved row after to is refolded
// from the window's closing value.
func (s *Service) SyncReconciliation(ctx context.Context, from, to time.Time, overrides []domain.ManualOverride) (*ReconciliationSync, error) {
	from, to = domain.Day(from), domain.Day(to)
	if to.Before(from) {
		return nil, fmt.Errorf("%w: range ends before it starts", domain.ErrValidation)
	}

	unlock := s.locks.Lock(reconciliationPartition)
	defer unlock()

	start := time.Now()
	out := &ReconciliationSync{From: from, To: to}

	// Step 1: load.
	txns, err := s.repos.Transactions.List(ctx, repository.TransactionFilter{From: &from, To: &to})
	if err != nil {
		return nil, fmt.Errorf("load transactions: %w", err)
	}
	previous, err := s.repos.Reconciliation.Previous(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("load previous rows: %w", err)
	}
	opening, err := s.repos.Reconciliation.OpeningBalances(ctx, from)
	if err != nil {
		return nil, fmt.Errorf("load opening balances: %w", err)
	}

	// Step 2: compute.
	res := reconciliation.NewReconciler(s.calculator()).Reconcile(reconciliation.Input{
		Kira:      aggregate.Group(aggregate.FilterSource(txns, domain.SourceKira), aggregate.ByAccountDateChannel),
		PG:        aggregate.Group(aggregate.FilterSource(txns, domain.SourcePG), aggregate.ByAccountDateChannel),
		Previous:  previous,
		Opening:   opening,
		Overrides: overrides,
	})
	out.Records = res.Records
	out.Report = res.Report

	if res.Report.Aborted() {
		zap.L().Warn("reconciliation sync aborted, nothing written",
			zap.String("from", domain.DateKey(from)),
			zap.String("to", domain.DateKey(to)),
			zap.Error(res.Report.Err()),
		)
		return out, nil
	}

	// Step 3: carry the closing balances through the rows after the window.
	carried, err := s.repos.Reconciliation.After(ctx, to)
	if err != nil {
		return nil, fmt.Errorf("load later rows: %w", err)
	}
	reconciliation.Accumulate(carried, reconciliation.Closing(res.Records, opening))

	// Step 4: persist.
	if err := s.repos.Reconciliation.SaveWindow(ctx, from, to, res.Records, carried); err != nil {
		return nil, fmt.Errorf("save reconciliation: %w", err)
	}
	out.Persisted = true
	out.Carried = len(carried)

	zap.L().Info("reconciliation sync complete",
		zap.String("from", domain.DateKey(from)),
		zap.String("to", domain.DateKey(to)),
		zap.Int("transactions", len(txns)),
		zap.Int("rows", len(res.Records)),
		zap.Int("carried", len(carried)),
		zap.Int("faults", len(res.Report.Faults)),
		elapsed(start),
	)
	return out, nil
}
