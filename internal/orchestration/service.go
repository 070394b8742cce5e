package orchestration

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/wakala/settlement/internal/aggregate"
	"github.com/wakala/settlement/internal/calendar"
	"github.com/wakala/settlement/internal/deposit"
	"github.com/wakala/settlement/internal/domain"
	"github.com/wakala/settlement/internal/ledger"
	"github.com/wakala/settlement/internal/repository"
)

// maxParallelEntities bounds how many entities a multi-entity sync computes
// at once.
const maxParallelEntities = 4

// Options configure the calculation engine behind a Service.
type Options struct {
	MaxRollDays  int
	LookbackDays int
	Variant      ledger.AgentVariant
}

type Repos struct {
	Transactions   *repository.TransactionRepo
	Reconciliation *repository.ReconciliationRepo
	Deposits       *repository.DepositRepo
	Ledgers        *repository.LedgerRepo
	Holidays       *repository.HolidayRepo
}

// Service runs syncs: it loads inputs, runs the engine for one partition at
// a time and persists the output only when no batch-level fault occurred.
type Service struct {
	repos Repos
	opts  Options
	locks *PartitionLocks

	engine *ledger.Engine

	calMu sync.RWMutex
	calc  *calendar.Calculator
}

func NewService(repos Repos, holidays calendar.HolidaySet, opts Options) *Service {
	if opts.MaxRollDays <= 0 {
		opts.MaxRollDays = calendar.DefaultMaxRollDays
	}
	return &Service{
		repos:  repos,
		opts:   opts,
		locks:  NewPartitionLocks(),
		engine: ledger.NewEngine(opts.Variant),
		calc:   calendar.NewCalculator(holidays, opts.MaxRollDays),
	}
}

// calculator returns the current holiday snapshot's calculator. A sync keeps
// the one it started with.
func (s *Service) calculator() *calendar.Calculator {
	s.calMu.RLock()
	defer s.calMu.RUnlock()
	return s.calc
}

// depositWindow computes one merchant's deposit rows for a period from the
// stored kira transactions and the persisted manual settings.
func (s *Service) depositWindow(ctx context.Context, calc *calendar.Calculator, merchantID string, period domain.Period, overrides []domain.ManualOverride) (deposit.Result, error) {
	in := deposit.Input{
		MerchantID:   merchantID,
		Period:       period,
		LookbackDays: s.opts.LookbackDays,
		Overrides:    overrides,
	}
	from, to := in.WindowStart(), period.Last()

	txns, err := s.repos.Transactions.List(ctx, repository.TransactionFilter{
		Source:     string(domain.SourceKira),
		MerchantID: merchantID,
		From:       &from,
		To:         &to,
	})
	if err != nil {
		return deposit.Result{}, fmt.Errorf("load transactions: %w", err)
	}
	in.Amounts = aggregate.Group(txns, aggregate.ByMerchantDateChannel)

	in.Previous, err = s.repos.Deposits.Previous(ctx, merchantID, from, to)
	if err != nil {
		return deposit.Result{}, fmt.Errorf("load previous deposits: %w", err)
	}

	return deposit.NewAggregator(calc).Compute(in), nil
}

// merchantsIn lists the merchants with kira transactions in or before the
// period's lookback window.
func (s *Service) merchantsIn(ctx context.Context, period domain.Period) ([]string, error) {
	from := deposit.Input{Period: period, LookbackDays: s.opts.LookbackDays}.WindowStart()
	ids, err := s.repos.Transactions.Merchants(ctx, domain.SourceKira, from, period.Last())
	if err != nil {
		return nil, fmt.Errorf("list merchants: %w", err)
	}
	return ids, nil
}

func elapsed(start time.Time) zap.Field {
	return zap.Duration("elapsed", time.Since(start))
}
