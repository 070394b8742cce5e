package orchestration

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/wakala/settlement/internal/domain"
)

// EntitySync is the outcome of one entity's sync within a batch.
type EntitySync[T any] struct {
	EntityID  string               `json:"entity_id"`
	Rows      []T                  `json:"rows"`
	Seed      *domain.CarryForward `json:"carry_forward,omitempty"`
	Persisted bool                 `json:"persisted"`
	Report    domain.Report        `json:"report"`
}

// BatchSync collects the per-entity outcomes of a sync. Report merges every
// entity's faults.
type BatchSync[T any] struct {
	Period   domain.Period   `json:"period"`
	Entities []EntitySync[T] `json:"entities"`
	Report   domain.Report   `json:"report"`
}

// SyncRequest selects what to sync. An empty EntityID syncs every known
// entity; overrides then cannot be given.
type SyncRequest struct {
	Period    domain.Period
	EntityID  string
	Overrides []domain.ManualOverride
}

func (r SyncRequest) validate() error {
	if r.EntityID == "" && len(r.Overrides) > 0 {
		return fmt.Errorf("%w: overrides need an entity", domain.ErrValidation)
	}
	return nil
}

// forEachEntity runs fn for every id, a bounded number at a time, and keeps
// the results in id order.
func forEachEntity[T any](ctx context.Context, ids []string, fn func(ctx context.Context, id string) (EntitySync[T], error)) ([]EntitySync[T], error) {
	out := make([]EntitySync[T], len(ids))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallelEntities)
	for i, id := range ids {
		g.Go(func() error {
			res, err := fn(gctx, id)
			if err != nil {
				return fmt.Errorf("%s: %w", id, err)
			}
			out[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func collect[T any](period domain.Period, entities []EntitySync[T]) *BatchSync[T] {
	b := &BatchSync[T]{Period: period, Entities: entities}
	for _, e := range entities {
		b.Report.Merge(e.Report)
	}
	return b
}

// SyncDeposits recomputes deposit rows for one merchant, or for every
// merchant with kira transactions in the period's window.
func (s *Service) SyncDeposits(ctx context.Context, req SyncRequest) (*BatchSync[domain.DepositRecord], error) {
	ids, err := s.entities(ctx, req)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	calc := s.calculator()
	entities, err := forEachEntity(ctx, ids, func(ctx context.Context, id string) (EntitySync[domain.DepositRecord], error) {
		unlock := s.locks.Lock("deposit|" + id + "|" + req.Period.String())
		defer unlock()

		out := EntitySync[domain.DepositRecord]{EntityID: id}
		res, err := s.depositWindow(ctx, calc, id, req.Period, req.Overrides)
		if err != nil {
			return out, err
		}
		out.Rows, out.Report = res.Records, res.Report
		if res.Report.Aborted() {
			zap.L().Warn("deposit sync aborted, nothing written",
				zap.String("merchant", id),
				zap.String("period", req.Period.String()),
				zap.Error(res.Report.Err()),
			)
			return out, nil
		}
		if err := s.repos.Deposits.Save(ctx, res.Records); err != nil {
			return out, fmt.Errorf("save deposits: %w", err)
		}
		out.Persisted = true
		return out, nil
	})
	if err != nil {
		return nil, err
	}

	b := collect(req.Period, entities)
	zap.L().Info("deposit sync complete",
		zap.String("period", req.Period.String()),
		zap.Int("merchants", len(ids)),
		zap.Int("faults", len(b.Report.Faults)),
		elapsed(start),
	)
	return b, nil
}
