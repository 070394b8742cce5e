package ledger

import (
	"go.uber.org/zap"

	"github.com/wakala/settlement/internal/domain"
	"github.com/wakala/settlement/internal/money"
)

// MerchantInput is one merchant's ledger recompute for one period.
type MerchantInput struct {
	MerchantID string
	Period     domain.Period
	// Deposits are the merchant's computed deposit rows of the period.
	Deposits []domain.DepositRecord
	// Previous holds persisted ledger rows by id; manual inputs carry over.
	Previous map[string]domain.MerchantLedgerRow
	// Seed is the closing state of the preceding period, nil when none.
	Seed      *domain.CarryForward
	Overrides []domain.ManualOverride
}

type MerchantResult struct {
	Rows   []domain.MerchantLedgerRow `json:"rows"`
	Seed   domain.CarryForward        `json:"carry_forward"`
	Report domain.Report              `json:"report"`
}

// Merchant merges overrides into the period's rows and folds the balances
// left to right from the carry-forward seed.
func (e *Engine) Merchant(in MerchantInput) MerchantResult {
	var res MerchantResult

	seed, err := openingSeed(in.MerchantID, domain.LedgerMerchant, in.Period, in.Seed, len(in.Deposits) > 0 || len(in.Previous) > 0)
	if err != nil {
		res.Report.Add(domain.BatchFault(domain.FaultDataGap, err))
		zap.L().Warn("merchant ledger not computed", zap.Error(err))
		return res
	}

	deposits := make(map[string]domain.DepositRecord, len(in.Deposits))
	for _, d := range in.Deposits {
		deposits[domain.DateKey(d.Date)] = d
	}

	days := in.Period.Days()
	rows := make([]domain.MerchantLedgerRow, len(days))
	ids := make(map[string]int, len(days))
	for i, d := range days {
		row := domain.MerchantLedgerRow{
			ID:         domain.LedgerRowID(domain.LedgerMerchant, in.MerchantID, d),
			MerchantID: in.MerchantID,
			Date:       d,
		}
		if prev, ok := in.Previous[row.ID]; ok {
			row.SettlementFund = prev.SettlementFund
			row.SettlementCharges = prev.SettlementCharges
			row.WithdrawalAmount = prev.WithdrawalAmount
			row.WithdrawalRate = prev.WithdrawalRate
			row.TopupPayoutPool = prev.TopupPayoutPool
			row.Remarks = prev.Remarks
		}
		if dep, ok := deposits[domain.DateKey(d)]; ok {
			row.AvailableFPX = dep.AvailableFPX
			row.AvailableEWallet = dep.AvailableEWallet
			row.AvailableTotal = dep.AvailableTotal
		}
		rows[i] = row
		ids[row.ID] = i
	}

	mergeOverrides(in.Overrides, ids, func(i int) fieldSet {
		r := &rows[i]
		return fieldSet{
			numbers: []numberField{
				{FieldSettlementFund, &r.SettlementFund},
				{FieldSettlementCharges, &r.SettlementCharges},
				{FieldWithdrawalAmount, &r.WithdrawalAmount},
				{FieldWithdrawalRate, &r.WithdrawalRate},
				{FieldTopupPayoutPool, &r.TopupPayoutPool},
			},
			remarks: &r.Remarks,
		}
	}, &res.Report)

	res.Seed = FoldMerchant(rows, seed)
	res.Seed.Entity = in.MerchantID
	res.Seed.Ledger = domain.LedgerMerchant
	res.Seed.Period = in.Period
	res.Rows = rows
	return res
}

// FoldMerchant computes the derived columns of rows in order, starting from
// seed, and returns the closing state.
func FoldMerchant(rows []domain.MerchantLedgerRow, seed domain.CarryForward) domain.CarryForward {
	available, pool := seed.AvailableBalance, seed.PayoutPoolBalance
	for i := range rows {
		r := &rows[i]
		r.WithdrawalCharges = money.MulDiv(money.Deref(r.WithdrawalAmount), money.Deref(r.WithdrawalRate), 100)

		var a, p money.Accumulator
		a.Add(available)
		a.Add(r.AvailableTotal)
		a.Add(-money.Deref(r.SettlementFund))
		a.Add(-money.Deref(r.SettlementCharges))
		r.AvailableBalance = a.Value()

		p.Add(pool)
		p.Add(-money.Deref(r.WithdrawalAmount))
		p.Add(-r.WithdrawalCharges)
		p.Add(money.Deref(r.TopupPayoutPool))
		r.PayoutPoolBalance = p.Value()

		r.TotalBalance = money.Sum(r.AvailableBalance, r.PayoutPoolBalance)
		available, pool = r.AvailableBalance, r.PayoutPoolBalance
	}
	return domain.CarryForward{AvailableBalance: available, PayoutPoolBalance: pool}
}
