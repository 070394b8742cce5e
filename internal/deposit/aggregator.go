package deposit

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

const FieldRemarks = "remarks"

// Per-channel overridable fields are prefixed with the lower-case channel
// name, e.g. fpx_fee_rate.
const (
	suffixFeeType        = "_fee_type"
	suffixFeeRate        = "_fee_rate"
	suffixSettlementRule = "_settlement_rule"
)

// Input is one merchant's deposit computation for one period.
type Input struct {
	MerchantID string
	Period     domain.Period
	// LookbackDays is how far before the period rows are read for funds
	// that settle inside it. Zero means the whole preceding month.
	LookbackDays int
	// Amounts holds the merchant's daily per-channel sums over the lookback
	// window and the period.
	Amounts map[aggregate.MerchantDayKey]aggregate.Aggregate
	// Previous holds persisted rows by id; their manual settings carry over.
	Previous  map[string]domain.DepositRecord
	Overrides []domain.ManualOverride
}

// WindowStart is the first day pass one covers.
func (in Input) WindowStart() time.Time {
	if in.LookbackDays > 0 {
		return in.Period.First().AddDate(0, 0, -in.LookbackDays)
	}
	return in.Period.Prev().First()
}

type Result struct {
	// Records holds one row per calendar day of the period.
	Records []domain.DepositRecord `json:"records"`
	// Window holds every pass-one row, lookback days included, in date order.
	Window []domain.DepositRecord `json:"-"`
	Report domain.Report          `json:"report"`
}

// Aggregator computes deposit rows and the funds available per day.
type Aggregator struct {
	calc *calendar.Calculator
}

func NewAggregator(calc *calendar.Calculator) *Aggregator {
	return &Aggregator{calc: calc}
}

// Compute runs both passes. Pass one prices every row of the window and
// derives its settlement dates; pass two sums gross amounts by settlement
// date into the period's available columns.
func (a *Aggregator) Compute(in Input) Result {
	var res Result

	window := buildRows(in)
	byID := make(map[string]*domain.DepositRecord, len(window))
	for i := range window {
		byID[window[i].ID] = &window[i]
	}
	applyOverrides(byID, in.Overrides, &res.Report)

	for i := range window {
		if err := a.priceRow(&window[i], &res.Report); err != nil {
			res.Report.Add(domain.BatchFault(domain.FaultConfiguration, err))
			zap.L().Error("deposit computation aborted",
				zap.String("merchant", in.MerchantID),
				zap.String("period", in.Period.String()),
				zap.Error(err),
			)
			return res
		}
	}

	available := Availability(window)
	for i := range window {
		rec := &window[i]
		if !in.Period.Contains(rec.Date) {
			continue
		}
		day := available[domain.DateKey(rec.Date)]
		rec.AvailableFPX = day[domain.ChannelFPX]
		rec.AvailableEWallet = day[domain.ChannelEWallet]
		rec.AvailableTotal = money.Sum(rec.AvailableFPX, rec.AvailableEWallet)
		res.Records = append(res.Records, *rec)
	}
	res.Window = window
	return res
}

// buildRows creates a zero-filled row per day of the window, carrying the
// previous manual settings.
func buildRows(in Input) []domain.DepositRecord {
	days := domain.DaysBetween(in.WindowStart(), in.Period.Last())
	rows := make([]domain.DepositRecord, 0, len(days))
	for _, d := range days {
		rec := domain.DepositRecord{
			ID:         domain.DepositRowID(in.MerchantID, d),
			MerchantID: in.MerchantID,
			Date:       d,
		}
		if prev, ok := in.Previous[rec.ID]; ok {
			for _, ch := range domain.Channels {
				p, c := prev.Channel(ch), rec.Channel(ch)
				c.FeeType, c.FeeRate, c.SettlementRule = p.FeeType, p.FeeRate, p.SettlementRule
			}
			rec.Remarks = prev.Remarks
		}
		for _, ch := range domain.Channels {
			agg := in.Amounts[aggregate.MerchantDayKey{MerchantID: in.MerchantID, Date: d, Channel: ch}]
			c := rec.Channel(ch)
			c.Amount = agg.Amount
			c.Volume = agg.Volume
		}
		rows = append(rows, rec)
	}
	return rows
}

func applyOverrides(byID map[string]*domain.DepositRecord, overrides []domain.ManualOverride, report *domain.Report) {
	for _, o := range overrides {
		rec, ok := byID[strings.TrimSpace(o.RowID)]
		if !ok {
			report.Add(domain.ValidationFault(o.RowID, "", "override references unknown row"))
			continue
		}

		names := make([]string, 0, len(o.Fields))
		for n := range o.Fields {
			names = append(names, n)
		}
		sort.Strings(names)

		for _, name := range names {
			v := o.Fields[name]
			if name == FieldRemarks {
				rec.Remarks = v.ApplyText(rec.Remarks)
				continue
			}
			ch, suffix, ok := splitField(name)
			if !ok {
				report.Add(domain.WarningFault(o.RowID, name, "unknown field ignored"))
				continue
			}
			c := rec.Channel(ch)
			switch suffix {
			case suffixFeeType:
				c.FeeType = strings.ToLower(v.ApplyText(c.FeeType))
			case suffixFeeRate:
				rate, err := v.ApplyFloat(c.FeeRate)
				if err != nil {
					report.Add(domain.ValidationFault(o.RowID, name, err.Error()))
					continue
				}
				c.FeeRate = rate
			case suffixSettlementRule:
				c.SettlementRule = strings.ToUpper(v.ApplyText(c.SettlementRule))
			}
		}
	}
}

func splitField(name string) (domain.Channel, string, bool) {
	for _, ch := range domain.Channels {
		prefix := strings.ToLower(string(ch))
		for _, s := range []string{suffixFeeType, suffixFeeRate, suffixSettlementRule} {
			if name == prefix+s {
				return ch, s, true
			}
		}
	}
	return "", "", false
}

// priceRow fills fee, gross and settlement date per channel. A channel with a
// bad fee type or rule keeps those fields unset and does not contribute to
// availability; gross stays zero when the fee is unknown. The fault is
// itemized. Only calendar exhaustion is returned.
func (a *Aggregator) priceRow(rec *domain.DepositRecord, report *domain.Report) error {
	key := rec.MerchantID + "|" + domain.DateKey(rec.Date)
	var fees money.Accumulator

	for _, ch := range domain.Channels {
		c := rec.Channel(ch)
		prefix := strings.ToLower(string(ch))

		c.FeeAmount = nil
		c.SettlementDate = nil
		c.Gross = c.Amount

		amount, err := fee.Optional(c.FeeType, c.FeeRate, c.Amount, c.Volume, fee.PercentDivisor)
		if err != nil {
			c.Gross = 0
			report.Add(domain.ConfigurationFault(key, prefix+suffixFeeType, err))
			continue
		}
		if amount != nil {
			c.FeeAmount = amount
			c.Gross = money.Round(c.Amount - *amount)
			fees.Add(*amount)
		}

		if c.SettlementRule == "" {
			continue
		}
		d, err := a.calc.ComputeTag(rec.Date, c.SettlementRule)
		switch {
		case errors.Is(err, domain.ErrCalendarExhausted):
			return fmt.Errorf("settlement date %s: %w", key, err)
		case err != nil:
			report.Add(domain.ConfigurationFault(key, prefix+suffixSettlementRule, err))
			continue
		}
		c.SettlementDate = &d
	}

	rec.TotalAmount = money.Sum(rec.FPX.Amount, rec.EWallet.Amount)
	rec.TotalFees = fees.Value()
	return nil
}

// Availability sums gross amounts by settlement date and channel. Keys are
// YYYY-MM-DD.
func Availability(rows []domain.DepositRecord) map[string]map[domain.Channel]float64 {
	accs := make(map[string]map[domain.Channel]*money.Accumulator)
	for _, rec := range rows {
		for _, ch := range domain.Channels {
			c := rec.Channel(ch)
			if c.SettlementDate == nil || c.Gross == 0 {
				continue
			}
			day := domain.DateKey(*c.SettlementDate)
			if accs[day] == nil {
				accs[day] = make(map[domain.Channel]*money.Accumulator)
			}
			if accs[day][ch] == nil {
				accs[day][ch] = &money.Accumulator{}
			}
			accs[day][ch].Add(c.Gross)
		}
	}

	out := make(map[string]map[domain.Channel]float64, len(accs))
	for day, chans := range accs {
		out[day] = make(map[domain.Channel]float64, len(chans))
		for ch, acc := range chans {
			out[day][ch] = acc.Value()
		}
	}
	return out
}
