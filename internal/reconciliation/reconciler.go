package reconciliation

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/wakala/settlement/internal/aggregate"
	"github.com/wakala/settlement/internal/calendar"
	"github.com/wakala/settlement/internal/domain"
	"github.com/wakala/settlement/internal/fee"
	"github.com/wakala/settlement/internal/money"
)

// Overridable fields of a reconciliation row.
const (
	FieldSettlementRule = "settlement_rule"
	FieldFeeType        = "fee_type"
	FieldFeeRate        = "fee_rate"
	FieldRemarks        = "remarks"
)

// Input is everything one reconciliation run needs.
type Input struct {
	// Kira is the internal ledger aggregate, PG the processor aggregate.
	Kira map[domain.ReconciliationKey]aggregate.Aggregate
	PG   map[domain.ReconciliationKey]aggregate.Aggregate
	// Previous holds the last persisted rows by row id; their manual settings
	// carry over to this run.
	Previous map[string]domain.ReconciliationRecord
	// Opening is the cumulative variance per partition before the first day
	// of the run.
	Opening   map[string]float64
	Overrides []domain.ManualOverride
}

// Result is the computed rows plus every fault found on the way.
type Result struct {
	Records []domain.ReconciliationRecord `json:"records"`
	Report  domain.Report                 `json:"report"`
}

// Reconciler compares the kira and pg sources day by day.
type Reconciler struct {
	calc *calendar.Calculator
}

func NewReconciler(calc *calendar.Calculator) *Reconciler {
	return &Reconciler{calc: calc}
}

// Reconcile outer-joins both sources, applies settings and overrides, and
// recomputes every partition's cumulative variance from its first row.
func (r *Reconciler) Reconcile(in Input) Result {
	var res Result

	rows := joinSources(in.Kira, in.PG)
	byID := make(map[string]*domain.ReconciliationRecord, len(rows))
	for i := range rows {
		rec := &rows[i]
		if prev, ok := in.Previous[rec.ID]; ok {
			rec.SettlementRule = prev.SettlementRule
			rec.FeeType = prev.FeeType
			rec.FeeRate = prev.FeeRate
			rec.Remarks = prev.Remarks
		}
		byID[rec.ID] = rec
	}

	applyOverrides(byID, in.Overrides, &res.Report)

	for i := range rows {
		if err := r.computeRow(&rows[i], &res.Report); err != nil {
			res.Report.Add(domain.BatchFault(domain.FaultConfiguration, err))
			zap.L().Error("reconciliation aborted", zap.String("row", rows[i].Key().String()), zap.Error(err))
			return res
		}
	}

	// Rows with a per-row fault stay in their partition's series.
	Accumulate(rows, in.Opening)

	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if !a.Date.Equal(b.Date) {
			return a.Date.Before(b.Date)
		}
		if a.AccountID != b.AccountID {
			return a.AccountID < b.AccountID
		}
		return a.Channel < b.Channel
	})
	res.Records = rows

	zap.L().Debug("reconciled",
		zap.Int("rows", len(rows)),
		zap.Int("faults", len(res.Report.Faults)),
	)
	return res
}

// joinSources builds one row per key present in either source. Keys where both
// sides sum to zero are dropped.
func joinSources(kira, pg map[domain.ReconciliationKey]aggregate.Aggregate) []domain.ReconciliationRecord {
	keys := make(map[domain.ReconciliationKey]struct{}, len(kira)+len(pg))
	for k := range kira {
		keys[k] = struct{}{}
	}
	for k := range pg {
		keys[k] = struct{}{}
	}

	rows := make([]domain.ReconciliationRecord, 0, len(keys))
	for _, k := range aggregate.SortedKeys(keys) {
		ka, pa := kira[k], pg[k]
		if ka.Amount == 0 && pa.Amount == 0 {
			continue
		}
		rows = append(rows, domain.ReconciliationRecord{
			ID:                   k.RowID(),
			AccountID:            k.AccountID,
			Date:                 k.Date,
			Channel:              k.Channel,
			KiraAmount:           ka.Amount,
			MDR:                  ka.SourceFee,
			KiraSettlementAmount: ka.SourceSettlement,
			PGAmount:             pa.Amount,
			Volume:               pa.Volume,
		})
	}
	return rows
}

func applyOverrides(byID map[string]*domain.ReconciliationRecord, overrides []domain.ManualOverride, report *domain.Report) {
	for _, o := range overrides {
		rec, ok := byID[strings.TrimSpace(o.RowID)]
		if !ok {
			report.Add(domain.ValidationFault(o.RowID, "", "override references unknown row"))
			continue
		}

		for _, name := range sortedFields(o.Fields) {
			v := o.Fields[name]
			switch name {
			case FieldSettlementRule:
				rec.SettlementRule = strings.ToUpper(v.ApplyText(rec.SettlementRule))
			case FieldFeeType:
				rec.FeeType = strings.ToLower(v.ApplyText(rec.FeeType))
			case FieldFeeRate:
				rate, err := v.ApplyFloat(rec.FeeRate)
				if err != nil {
					report.Add(domain.ValidationFault(o.RowID, name, err.Error()))
					continue
				}
				rec.FeeRate = rate
			case FieldRemarks:
				rec.Remarks = v.ApplyText(rec.Remarks)
			default:
				report.Add(domain.WarningFault(o.RowID, name, "unknown field ignored"))
			}
		}
	}
}

// computeRow fills the derived columns of rec. A per-row fault is reported
// and leaves the columns it feeds unset, so the row reads as incomplete. The
// returned error is reserved for faults that abort the batch.
func (r *Reconciler) computeRow(rec *domain.ReconciliationRecord, report *domain.Report) error {
	key := rec.Key().String()

	rec.DailyVariance = money.Round(rec.KiraAmount - rec.PGAmount)
	rec.Fee, rec.SettlementAmount, rec.SettlementDate = nil, nil, nil

	amount, err := fee.Optional(rec.FeeType, rec.FeeRate, rec.PGAmount, rec.Volume, fee.PercentDivisor)
	if err != nil {
		report.Add(domain.ConfigurationFault(key, FieldFeeType, err))
	} else if amount != nil {
		settled := money.Round(rec.PGAmount - *amount)
		rec.Fee, rec.SettlementAmount = amount, &settled
	}

	if rec.SettlementRule == "" {
		return nil
	}
	d, err := r.calc.ComputeTag(rec.Date, rec.SettlementRule)
	switch {
	case errors.Is(err, domain.ErrCalendarExhausted):
		return fmt.Errorf("settlement date: %w", err)
	case err != nil:
		report.Add(domain.ConfigurationFault(key, FieldSettlementRule, err))
		return nil
	}
	rec.SettlementDate = &d
	return nil
}

// Accumulate sets the cumulative variance of every row. Rows are folded per
// (account, channel) partition in date order, starting from the partition's
// opening balance.
func Accumulate(rows []domain.ReconciliationRecord, opening map[string]float64) {
	idx := make([]int, len(rows))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		ra, rb := rows[idx[a]], rows[idx[b]]
		pa, pb := ra.Key().Partition(), rb.Key().Partition()
		if pa != pb {
			return pa < pb
		}
		return ra.Date.Before(rb.Date)
	})

	accs := make(map[string]*money.Accumulator)
	for _, i := range idx {
		p := rows[i].Key().Partition()
		acc, ok := accs[p]
		if !ok {
			acc = &money.Accumulator{}
			acc.Add(opening[p])
			accs[p] = acc
		}
		acc.Add(rows[i].DailyVariance)
		rows[i].CumulativeVariance = acc.Value()
	}
}

// Closing returns each partition's cumulative variance after rows, falling
// back to opening for partitions rows do not touch. rows must already be
// accumulated.
func Closing(rows []domain.ReconciliationRecord, opening map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(opening))
	for p, v := range opening {
		out[p] = v
	}
	last := make(map[string]time.Time)
	for _, rec := range rows {
		p := rec.Key().Partition()
		if d, ok := last[p]; ok && rec.Date.Before(d) {
			continue
		}
		last[p] = rec.Date
		out[p] = rec.CumulativeVariance
	}
	return out
}

func sortedFields(m map[string]domain.OverrideValue) []string {
	names := make([]string, 0, len(m))
	for n := range m {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
