package orchestration

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/wakala/settlement/internal/deposit"
	"github.com/wakala/settlement/internal/domain"
	"github.com/wakala/settlement/internal/ledger"
	"github.com/wakala/settlement/internal/repository"
)

// SyncMerchantLedger recomputes the merchant ledger of one period from the
// persisted deposit rows, the persisted manual inputs and the previous
// period's carry-forward.
func (s *Service) SyncMerchantLedger(ctx context.Context, req SyncRequest) (*BatchSync[domain.MerchantLedgerRow], error) {
	ids, err := s.entities(ctx, req)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	entities, err := forEachEntity(ctx, ids, func(ctx context.Context, id string) (EntitySync[domain.MerchantLedgerRow], error) {
		unlock := s.locks.Lock(string(domain.LedgerMerchant) + "|" + id + "|" + req.Period.String())
		defer unlock()

		out := EntitySync[domain.MerchantLedgerRow]{EntityID: id}
		from, to := req.Period.First(), req.Period.Last()

		deposits, err := s.repos.Deposits.List(ctx, repository.DepositFilter{MerchantID: id, From: &from, To: &to})
		if err != nil {
			return out, fmt.Errorf("load deposits: %w", err)
		}
		rows, err := s.repos.Ledgers.ListMerchant(ctx, repository.LedgerFilter{EntityID: id, From: &from, To: &to})
		if err != nil {
			return out, fmt.Errorf("load ledger: %w", err)
		}
		previous := make(map[string]domain.MerchantLedgerRow, len(rows))
		for _, r := range rows {
			previous[r.ID] = r
		}
		seed, err := s.repos.Ledgers.Seed(ctx, id, domain.LedgerMerchant, req.Period.Prev())
		if err != nil {
			return out, err
		}

		res := s.engine.Merchant(ledger.MerchantInput{
			MerchantID: id,
			Period:     req.Period,
			Deposits:   deposits,
			Previous:   previous,
			Seed:       seed,
			Overrides:  req.Overrides,
		})
		out.Rows, out.Report = res.Rows, res.Report
		if res.Report.Aborted() {
			return out, nil
		}
		out.Seed = &res.Seed

		if err := s.repos.Ledgers.SaveMerchantPeriod(ctx, res.Rows, res.Seed); err != nil {
			return out, fmt.Errorf("save merchant ledger: %w", err)
		}
		out.Persisted = true
		return out, nil
	})
	if err != nil {
		return nil, err
	}

	b := collect(req.Period, entities)
	logLedgerSync(domain.LedgerMerchant, req.Period, len(ids), b.Report, start)
	return b, nil
}

// SyncAgentLedger recomputes the agent ledger of one period. Commission is
// priced from a fresh deposit computation over the lookback window, so
// funds settling in the period are paid at the rate of their own date.
func (s *Service) SyncAgentLedger(ctx context.Context, req SyncRequest) (*BatchSync[domain.AgentLedgerRow], error) {
	ids, err := s.entities(ctx, req)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	calc := s.calculator()
	entities, err := forEachEntity(ctx, ids, func(ctx context.Context, id string) (EntitySync[domain.AgentLedgerRow], error) {
		unlock := s.locks.Lock(string(domain.LedgerAgent) + "|" + id + "|" + req.Period.String())
		defer unlock()

		out := EntitySync[domain.AgentLedgerRow]{EntityID: id}

		dep, err := s.depositWindow(ctx, calc, id, req.Period, nil)
		if err != nil {
			return out, err
		}
		if dep.Report.Aborted() {
			out.Report = dep.Report
			return out, nil
		}
		var deposits []domain.DepositRecord
		for _, d := range dep.Window {
			if d.TotalAmount != 0 {
				deposits = append(deposits, d)
			}
		}

		from := deposit.Input{Period: req.Period, LookbackDays: s.opts.LookbackDays}.WindowStart()
		to := req.Period.Last()
		rows, err := s.repos.Ledgers.ListAgent(ctx, repository.LedgerFilter{EntityID: id, From: &from, To: &to})
		if err != nil {
			return out, fmt.Errorf("load ledger: %w", err)
		}
		previous := make(map[string]domain.AgentLedgerRow, len(rows))
		for _, r := range rows {
			previous[r.ID] = r
		}
		seed, err := s.repos.Ledgers.Seed(ctx, id, domain.LedgerAgent, req.Period.Prev())
		if err != nil {
			return out, err
		}

		res := s.engine.Agent(ledger.AgentInput{
			AgentID:   id,
			Period:    req.Period,
			Deposits:  deposits,
			Previous:  previous,
			Seed:      seed,
			Overrides: req.Overrides,
		})
		out.Rows, out.Report = res.Rows, res.Report
		if res.Report.Aborted() {
			return out, nil
		}
		out.Seed = &res.Seed

		if err := s.repos.Ledgers.SaveAgentPeriod(ctx, res.Rows, res.Seed); err != nil {
			return out, fmt.Errorf("save agent ledger: %w", err)
		}
		out.Persisted = true
		return out, nil
	})
	if err != nil {
		return nil, err
	}

	b := collect(req.Period, entities)
	logLedgerSync(domain.LedgerAgent, req.Period, len(ids), b.Report, start)
	return b, nil
}

func (s *Service) entities(ctx context.Context, req SyncRequest) ([]string, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	if req.EntityID != "" {
		return []string{req.EntityID}, nil
	}
	return s.merchantsIn(ctx, req.Period)
}

func logLedgerSync(t domain.LedgerType, p domain.Period, entities int, report domain.Report, start time.Time) {
	fields := []zap.Field{
		zap.String("ledger", string(t)),
		zap.String("period", p.String()),
		zap.Int("entities", entities),
		zap.Int("faults", len(report.Faults)),
		elapsed(start),
	}
	if report.Aborted() {
		zap.L().Warn("ledger sync finished with aborted entities", append(fields, zap.Error(report.Err()))...)
		return
	}
	zap.L().Info("ledger sync complete", fields...)
}
