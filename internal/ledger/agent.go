package ledger

import (
	"time"

	"go.uber.org/zap"

	"github.com/wakala/settlement/internal/domain"
	"github.com/wakala/settlement/internal/money"
)

// AgentInput is one agent's commission ledger recompute for one period.
type AgentInput struct {
	AgentID string
	Period  domain.Period
	// Deposits are the agent's deposit rows over the lookback window and the
	// period, with settlement dates.
	Deposits []domain.DepositRecord
	// Previous holds persisted agent rows by id, lookback days included, so
	// commission rates at original dates are known.
	Previous  map[string]domain.AgentLedgerRow
	Seed      *domain.CarryForward
	Overrides []domain.ManualOverride
}

type AgentResult struct {
	Rows   []domain.AgentLedgerRow `json:"rows"`
	Seed   domain.CarryForward     `json:"carry_forward"`
	Report domain.Report           `json:"report"`
}

type rates struct {
	fpx, ewallet *float64
}

func (r rates) of(ch domain.Channel) *float64 {
	if ch == domain.ChannelFPX {
		return r.fpx
	}
	return r.ewallet
}

// Agent merges overrides, prices commission at each deposit's own date and
// folds balances left to right from the seed.
func (e *Engine) Agent(in AgentInput) AgentResult {
	var res AgentResult

	hasInputs := len(in.Previous) > 0
	for _, d := range in.Deposits {
		if in.Period.Contains(d.Date) {
			hasInputs = true
			break
		}
	}
	seed, err := openingSeed(in.AgentID, domain.LedgerAgent, in.Period, in.Seed, hasInputs)
	if err != nil {
		res.Report.Add(domain.BatchFault(domain.FaultDataGap, err))
		zap.L().Warn("agent ledger not computed", zap.Error(err))
		return res
	}

	deposits := make(map[string]domain.DepositRecord, len(in.Deposits))
	for _, d := range in.Deposits {
		deposits[domain.DateKey(d.Date)] = d
	}

	days := in.Period.Days()
	rows := make([]domain.AgentLedgerRow, len(days))
	ids := make(map[string]int, len(days))
	for i, d := range days {
		row := domain.AgentLedgerRow{
			ID:         domain.LedgerRowID(domain.LedgerAgent, in.AgentID, d),
			MerchantID: in.AgentID,
			Date:       d,
		}
		if prev, ok := in.Previous[row.ID]; ok {
			row.CommissionRateFPX = prev.CommissionRateFPX
			row.CommissionRateEWallet = prev.CommissionRateEWallet
			row.Volume = prev.Volume
			row.CommissionRate = prev.CommissionRate
			if e.variant.HasDebit {
				row.Debit = prev.Debit
			}
			row.Remarks = prev.Remarks
		}
		if dep, ok := deposits[domain.DateKey(d)]; ok {
			row.FPXAmount = dep.FPX.Amount
			row.EWalletAmount = dep.EWallet.Amount
		}
		rows[i] = row
		ids[row.ID] = i
	}

	mergeOverrides(in.Overrides, ids, func(i int) fieldSet {
		r := &rows[i]
		fs := fieldSet{
			numbers: []numberField{
				{FieldCommissionRateFPX, &r.CommissionRateFPX},
				{FieldCommissionRateEWallet, &r.CommissionRateEWallet},
				{FieldVolume, &r.Volume},
				{FieldCommissionRate, &r.CommissionRate},
			},
			remarks: &r.Remarks,
		}
		if e.variant.HasDebit {
			fs.numbers = append(fs.numbers, numberField{FieldDebit, &r.Debit})
		}
		return fs
	}, &res.Report)

	// Rates by original date: this period's merged rows first, then the
	// persisted rows of the lookback days.
	rateAt := func(d time.Time) rates {
		if in.Period.Contains(d) {
			r := rows[d.Day()-1]
			return rates{r.CommissionRateFPX, r.CommissionRateEWallet}
		}
		if prev, ok := in.Previous[domain.LedgerRowID(domain.LedgerAgent, in.AgentID, d)]; ok {
			return rates{prev.CommissionRateFPX, prev.CommissionRateEWallet}
		}
		return rates{}
	}
	available := e.availableCommission(in.Deposits, in.Period, rateAt)

	for i := range rows {
		r := &rows[i]
		day := available[domain.DateKey(r.Date)]
		r.AvailableFPX = day[domain.ChannelFPX]
		r.AvailableEWallet = day[domain.ChannelEWallet]
	}

	res.Seed = e.FoldAgent(rows, seed)
	res.Seed.Entity = in.AgentID
	res.Seed.Ledger = domain.LedgerAgent
	res.Seed.Period = in.Period
	res.Rows = rows
	return res
}

// availableCommission prices every deposit channel at the rate of its own
// transaction date and sums the commission by settlement date.
func (e *Engine) availableCommission(deposits []domain.DepositRecord, period domain.Period, rateAt func(time.Time) rates) map[string]map[domain.Channel]float64 {
	accs := make(map[string]map[domain.Channel]*money.Accumulator)
	for _, dep := range deposits {
		r := rateAt(dep.Date)
		for _, ch := range domain.Channels {
			c := dep.Channel(ch)
			rate := r.of(ch)
			if c.SettlementDate == nil || c.Amount == 0 || rate == nil || !period.Contains(*c.SettlementDate) {
				continue
			}
			day := domain.DateKey(*c.SettlementDate)
			if accs[day] == nil {
				accs[day] = make(map[domain.Channel]*money.Accumulator)
			}
			if accs[day][ch] == nil {
				accs[day][ch] = &money.Accumulator{}
			}
			accs[day][ch].Add(money.MulDiv(c.Amount, *rate, e.variant.Divisor))
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

// FoldAgent computes the derived columns of rows in order from seed and
// returns the closing state. AvailableFPX and AvailableEWallet must already
// be set.
func (e *Engine) FoldAgent(rows []domain.AgentLedgerRow, seed domain.CarryForward) domain.CarryForward {
	balance, accumulative := seed.Balance, seed.AccumulativeBalance
	for i := range rows {
		r := &rows[i]
		r.FPXCommission = money.MulDiv(r.FPXAmount, money.Deref(r.CommissionRateFPX), e.variant.Divisor)
		r.EWalletCommission = money.MulDiv(r.EWalletAmount, money.Deref(r.CommissionRateEWallet), e.variant.Divisor)
		r.Gross = money.Sum(r.FPXCommission, r.EWalletCommission)
		r.AvailableTotal = money.Sum(r.AvailableFPX, r.AvailableEWallet)
		r.CommissionAmount = money.Mul(money.Deref(r.Volume), money.Deref(r.CommissionRate))

		var b money.Accumulator
		b.Add(balance)
		b.Add(r.AvailableTotal)
		b.Add(r.CommissionAmount)
		if e.variant.HasDebit {
			b.Add(-money.Deref(r.Debit))
		} else {
			r.Debit = nil
		}
		r.Balance = b.Value()
		balance = r.Balance

		r.AccumulativeBalance = nil
		if e.variant.TracksAccumulative {
			accumulative = money.Sum(accumulative, r.Balance)
			v := money.Round(accumulative)
			r.AccumulativeBalance = &v
		}
	}
	return domain.CarryForward{Balance: balance, AccumulativeBalance: accumulative}
}
