package ledger

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/wakala/settlement/internal/domain"
	"github.com/wakala/settlement/internal/money"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

var june = domain.Period{Year: 2026, Month: 6}

func merchantRowID(d time.Time) string {
	return domain.LedgerRowID(domain.LedgerMerchant, "m-1", d)
}

func agentRowID(d time.Time) string {
	return domain.LedgerRowID(domain.LedgerAgent, "a-1", d)
}

func TestMerchantCarryForward(t *testing.T) {
	first := domain.Date(2026, 6, 1)
	in := MerchantInput{
		MerchantID: "m-1",
		Period:     june,
		Deposits:   []domain.DepositRecord{{Date: first, AvailableTotal: 300}},
		Seed:       &domain.CarryForward{AvailableBalance: 500, PayoutPoolBalance: 200},
		Overrides: []domain.ManualOverride{{
			RowID: merchantRowID(first),
			Fields: map[string]domain.OverrideValue{
				FieldSettlementFund:    domain.Set(50),
				FieldSettlementCharges: domain.Set(5),
			},
		}},
	}

	res := NewEngine(AgentVariant{}).Merchant(in)
	require.False(t, res.Report.Aborted())
	require.Len(t, res.Rows, 30)

	row := res.Rows[0]
	assert.Equal(t, 745.0, row.AvailableBalance)
	assert.Equal(t, 200.0, row.PayoutPoolBalance)
	assert.Equal(t, 945.0, row.TotalBalance)

	// Nothing else moves, so the period closes where day one left off.
	assert.Equal(t, 745.0, res.Seed.AvailableBalance)
	assert.Equal(t, 200.0, res.Seed.PayoutPoolBalance)
	assert.Equal(t, june, res.Seed.Period)
	assert.Equal(t, domain.LedgerMerchant, res.Seed.Ledger)
}

func TestMerchantWithdrawalAndTopup(t *testing.T) {
	d := domain.Date(2026, 6, 3)
	in := MerchantInput{
		MerchantID: "m-1",
		Period:     june,
		Deposits:   []domain.DepositRecord{{Date: d, AvailableTotal: 100}},
		Previous: map[string]domain.MerchantLedgerRow{
			merchantRowID(d): {
				WithdrawalAmount: money.Ptr(400),
				WithdrawalRate:   money.Ptr(1.5),
				TopupPayoutPool:  money.Ptr(1000),
			},
		},
	}

	res := NewEngine(AgentVariant{}).Merchant(in)
	row := res.Rows[2]
	assert.Equal(t, 6.0, row.WithdrawalCharges)
	assert.Equal(t, 594.0, row.PayoutPoolBalance)
	assert.Equal(t, 100.0, row.AvailableBalance)
	assert.Equal(t, 694.0, row.TotalBalance)
	assert.Equal(t, 594.0, res.Rows[29].PayoutPoolBalance)
}

func TestMerchantClearOverride(t *testing.T) {
	d := domain.Date(2026, 6, 10)
	in := MerchantInput{
		MerchantID: "m-1",
		Period:     june,
		Deposits:   []domain.DepositRecord{{Date: d, AvailableTotal: 1000}},
		Previous: map[string]domain.MerchantLedgerRow{
			merchantRowID(d): {SettlementFund: money.Ptr(120)},
		},
	}

	e := NewEngine(AgentVariant{})
	before := e.Merchant(in)
	require.NotNil(t, before.Rows[9].SettlementFund)
	assert.Equal(t, 880.0, before.Rows[9].AvailableBalance)

	var o domain.ManualOverride
	require.NoError(t, json.Unmarshal([]byte(`{"row_id": "`+merchantRowID(d)+`", "fields": {"settlement_fund": null}}`), &o))
	in.Overrides = []domain.ManualOverride{o}

	after := e.Merchant(in)
	assert.Nil(t, after.Rows[9].SettlementFund)
	assert.Equal(t, 1000.0, after.Rows[9].AvailableBalance)
}

func TestMerchantUnchangedFieldKeepsPriorValue(t *testing.T) {
	d := domain.Date(2026, 6, 10)
	in := MerchantInput{
		MerchantID: "m-1",
		Period:     june,
		Previous: map[string]domain.MerchantLedgerRow{
			merchantRowID(d): {SettlementFund: money.Ptr(120), Remarks: "paid"},
		},
		Overrides: []domain.ManualOverride{{
			RowID:  merchantRowID(d),
			Fields: map[string]domain.OverrideValue{FieldSettlementCharges: domain.Set(3)},
		}},
	}

	res := NewEngine(AgentVariant{}).Merchant(in)
	row := res.Rows[9]
	require.NotNil(t, row.SettlementFund)
	assert.Equal(t, 120.0, *row.SettlementFund)
	assert.Equal(t, "paid", row.Remarks)
	assert.Equal(t, -123.0, row.AvailableBalance)
}

func TestMerchantOverrideFaults(t *testing.T) {
	in := MerchantInput{
		MerchantID: "m-1",
		Period:     june,
		Seed:       &domain.CarryForward{},
		Overrides: []domain.ManualOverride{
			{RowID: "not-a-row", Fields: map[string]domain.OverrideValue{FieldSettlementFund: domain.Set(1)}},
			{RowID: merchantRowID(domain.Date(2026, 6, 2)), Fields: map[string]domain.OverrideValue{
				"favourite_colour":  domain.SetText("blue"),
				FieldSettlementFund: domain.SetText("ten"),
			}},
		},
	}

	res := NewEngine(AgentVariant{}).Merchant(in)
	assert.False(t, res.Report.Aborted())
	assert.Equal(t, 2, res.Report.Count(domain.FaultValidation))
	assert.Equal(t, 1, res.Report.Count(domain.FaultWarning))
	assert.Len(t, res.Rows, 30)
}

func TestMerchantDataGap(t *testing.T) {
	res := NewEngine(AgentVariant{}).Merchant(MerchantInput{MerchantID: "m-1", Period: june})
	require.True(t, res.Report.Aborted())
	assert.ErrorIs(t, res.Report.Err(), domain.ErrDataGap)
	assert.Empty(t, res.Rows)
}

func TestMerchantSeedOnlyPeriod(t *testing.T) {
	res := NewEngine(AgentVariant{}).Merchant(MerchantInput{
		MerchantID: "m-1",
		Period:     june,
		Seed:       &domain.CarryForward{AvailableBalance: 42},
	})
	require.False(t, res.Report.Aborted())
	assert.Equal(t, 42.0, res.Rows[29].AvailableBalance)
}

func TestMerchantIsIdempotent(t *testing.T) {
	in := MerchantInput{
		MerchantID: "m-1",
		Period:     june,
		Deposits: []domain.DepositRecord{
			{Date: domain.Date(2026, 6, 1), AvailableTotal: 10.1},
			{Date: domain.Date(2026, 6, 2), AvailableTotal: 20.2},
		},
		Seed: &domain.CarryForward{AvailableBalance: 0.3},
		Overrides: []domain.ManualOverride{{
			RowID:  merchantRowID(domain.Date(2026, 6, 2)),
			Fields: map[string]domain.OverrideValue{FieldTopupPayoutPool: domain.Set(7.77)},
		}},
	}
	e := NewEngine(AgentVariant{})
	assert.Equal(t, e.Merchant(in), e.Merchant(in))
}

func TestFoldMerchantSubsequence(t *testing.T) {
	rows := []domain.MerchantLedgerRow{
		{AvailableTotal: 100},
		{AvailableTotal: 50, SettlementFund: money.Ptr(30)},
		{AvailableTotal: 0, SettlementCharges: money.Ptr(2.5)},
	}
	full := append([]domain.MerchantLedgerRow(nil), rows...)
	closing := FoldMerchant(full, domain.CarryForward{})

	// Folding the tail from the head's closing state gives the same rows.
	head := append([]domain.MerchantLedgerRow(nil), rows[:1]...)
	mid := FoldMerchant(head, domain.CarryForward{})
	tail := append([]domain.MerchantLedgerRow(nil), rows[1:]...)
	tailClosing := FoldMerchant(tail, mid)

	assert.Equal(t, full[1:], tail)
	assert.Equal(t, closing, tailClosing)
	assert.Equal(t, 117.5, closing.AvailableBalance)
}

func dep(d time.Time, fpx, ewallet float64, fpxSettle, ewSettle *time.Time) domain.DepositRecord {
	return domain.DepositRecord{
		Date:    d,
		FPX:     domain.ChannelDeposit{Amount: fpx, SettlementDate: fpxSettle},
		EWallet: domain.ChannelDeposit{Amount: ewallet, SettlementDate: ewSettle},
	}
}

func ptrTime(t time.Time) *time.Time { return &t }

func TestAgentCommissionAtOriginalDateRate(t *testing.T) {
	may29 := domain.Date(2026, 5, 29)
	jun1 := domain.Date(2026, 6, 1)
	jun2 := domain.Date(2026, 6, 2)

	in := AgentInput{
		AgentID: "a-1",
		Period:  june,
		Deposits: []domain.DepositRecord{
			dep(may29, 10000, 0, ptrTime(jun2), nil),
			dep(jun1, 20000, 4000, ptrTime(jun2), ptrTime(jun2)),
		},
		Previous: map[string]domain.AgentLedgerRow{
			agentRowID(may29): {CommissionRateFPX: money.Ptr(2)},
			agentRowID(jun1):  {CommissionRateFPX: money.Ptr(3), CommissionRateEWallet: money.Ptr(5)},
		},
		Seed: &domain.CarryForward{Balance: 100},
	}

	e := NewEngine(AgentVariant{Divisor: 1000})
	res := e.Agent(in)
	require.False(t, res.Report.Aborted())
	require.Len(t, res.Rows, 30)

	day1 := res.Rows[0]
	assert.Equal(t, 60.0, day1.FPXCommission)
	assert.Equal(t, 20.0, day1.EWalletCommission)
	assert.Equal(t, 80.0, day1.Gross)
	assert.Equal(t, 0.0, day1.AvailableTotal)
	assert.Equal(t, 100.0, day1.Balance)

	// 05-29 at its own rate 2, 06-01 at rate 3.
	day2 := res.Rows[1]
	assert.Equal(t, 80.0, day2.AvailableFPX)
	assert.Equal(t, 20.0, day2.AvailableEWallet)
	assert.Equal(t, 100.0, day2.AvailableTotal)
	assert.Equal(t, 200.0, day2.Balance)

	// A later rate change on 06-02 does not touch commission already priced.
	in.Overrides = []domain.ManualOverride{{
		RowID:  agentRowID(jun2),
		Fields: map[string]domain.OverrideValue{FieldCommissionRateFPX: domain.Set(9)},
	}}
	again := e.Agent(in)
	assert.Equal(t, 100.0, again.Rows[1].AvailableTotal)
}

func TestAgentVariantDebitAndAccumulative(t *testing.T) {
	d1, d2 := domain.Date(2026, 6, 1), domain.Date(2026, 6, 2)
	in := AgentInput{
		AgentID: "a-1",
		Period:  june,
		Seed:    &domain.CarryForward{Balance: 10, AccumulativeBalance: 5},
		Previous: map[string]domain.AgentLedgerRow{
			agentRowID(d1): {Volume: money.Ptr(20), CommissionRate: money.Ptr(0.5), Debit: money.Ptr(4)},
			agentRowID(d2): {Debit: money.Ptr(1)},
		},
	}

	with := NewEngine(AgentVariant{HasDebit: true, TracksAccumulative: true}).Agent(in)
	require.False(t, with.Report.Aborted())
	assert.Equal(t, 10.0, with.Rows[0].CommissionAmount)
	assert.Equal(t, 16.0, with.Rows[0].Balance)
	require.NotNil(t, with.Rows[0].AccumulativeBalance)
	assert.Equal(t, 21.0, *with.Rows[0].AccumulativeBalance)
	assert.Equal(t, 15.0, with.Rows[1].Balance)
	assert.Equal(t, 36.0, *with.Rows[1].AccumulativeBalance)

	without := NewEngine(AgentVariant{}).Agent(in)
	assert.Equal(t, 20.0, without.Rows[0].Balance)
	assert.Nil(t, without.Rows[0].Debit)
	assert.Nil(t, without.Rows[0].AccumulativeBalance)

	// Debit is not a field of the plain variant.
	in.Overrides = []domain.ManualOverride{{RowID: agentRowID(d1), Fields: map[string]domain.OverrideValue{FieldDebit: domain.Set(1)}}}
	assert.Equal(t, 1, NewEngine(AgentVariant{}).Agent(in).Report.Count(domain.FaultWarning))
}

func TestAgentDataGap(t *testing.T) {
	in := AgentInput{
		AgentID:  "a-1",
		Period:   june,
		Deposits: []domain.DepositRecord{dep(domain.Date(2026, 5, 30), 10, 0, nil, nil)},
	}
	res := NewEngine(AgentVariant{}).Agent(in)
	assert.ErrorIs(t, res.Report.Err(), domain.ErrDataGap)
}

func TestAgentIsIdempotent(t *testing.T) {
	in := AgentInput{
		AgentID:  "a-1",
		Period:   june,
		Deposits: []domain.DepositRecord{dep(domain.Date(2026, 6, 1), 333.33, 0, ptrTime(domain.Date(2026, 6, 2)), nil)},
		Overrides: []domain.ManualOverride{{
			RowID:  agentRowID(domain.Date(2026, 6, 1)),
			Fields: map[string]domain.OverrideValue{FieldCommissionRateFPX: domain.Set(7)},
		}},
	}
	e := NewEngine(AgentVariant{TracksAccumulative: true})
	assert.Equal(t, e.Agent(in), e.Agent(in))
}

func TestSummarize(t *testing.T) {
	entries := []Entry{
		{Entity: "m-2", Date: domain.Date(2026, 1, 3), Value: 10},
		{Entity: "m-1", Date: domain.Date(2026, 1, 3), Value: 100.25},
		{Entity: "m-1", Date: domain.Date(2026, 1, 4), Value: 50},
		{Entity: "m-1", Date: domain.Date(2026, 3, 1), Value: 5},
		{Entity: "m-1", Date: domain.Date(2025, 12, 31), Value: 999},
	}

	s := Summarize(ViewMerchants, 2026, entries)
	assert.Equal(t, []string{"m-1", "m-2"}, s.Entities)
	assert.Equal(t, 150.25, s.Data["m-1"].Months[0])
	assert.Equal(t, 155.25, s.Data["m-1"].Total)
	assert.Equal(t, 160.25, s.MonthlyTotals[0])
	assert.Equal(t, 165.25, s.GrandTotal)

	pool := Summarize(ViewPayoutPool, 2026, entries)
	assert.Equal(t, 100.25, pool.Data["m-1"].Months[0])
	assert.Equal(t, 0.0, pool.Data["m-1"].Months[1])

	_, err := ParseView("weekly")
	assert.ErrorIs(t, err, domain.ErrValidation)
}
