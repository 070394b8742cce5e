package orchestration

import (
	"context"
	"fmt"

	"github.com/wakala/settlement/internal/domain"
	"github.com/wakala/settlement/internal/ledger"
	"github.com/wakala/settlement/internal/repository"
)

// Summary builds the yearly ledger summary for a view from persisted rows.
func (s *Service) Summary(ctx context.Context, view ledger.View, year int) (ledger.Summary, error) {
	from, to := domain.Date(year, 1, 1), domain.Date(year, 12, 31)

	var entries []ledger.Entry
	switch view {
	case ledger.ViewMerchants:
		rows, err := s.repos.Deposits.List(ctx, repository.DepositFilter{From: &from, To: &to})
		if err != nil {
			return ledger.Summary{}, fmt.Errorf("load deposits: %w", err)
		}
		for _, r := range rows {
			entries = append(entries, ledger.Entry{Entity: r.MerchantID, Date: r.Date, Value: r.TotalAmount})
		}
	case ledger.ViewAgents:
		rows, err := s.repos.Ledgers.ListAgent(ctx, repository.LedgerFilter{From: &from, To: &to})
		if err != nil {
			return ledger.Summary{}, fmt.Errorf("load agent ledger: %w", err)
		}
		for _, r := range rows {
			entries = append(entries, ledger.Entry{Entity: r.MerchantID, Date: r.Date, Value: r.AvailableTotal})
		}
	case ledger.ViewPayoutPool:
		rows, err := s.repos.Ledgers.ListMerchant(ctx, repository.LedgerFilter{From: &from, To: &to})
		if err != nil {
			return ledger.Summary{}, fmt.Errorf("load merchant ledger: %w", err)
		}
		for _, r := range rows {
			entries = append(entries, ledger.Entry{Entity: r.MerchantID, Date: r.Date, Value: r.PayoutPoolBalance})
		}
	default:
		return ledger.Summary{}, fmt.Errorf("%w: unknown summary view %q", domain.ErrValidation, view)
	}

	return ledger.Summarize(view, year, entries), nil
}
