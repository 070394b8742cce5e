package repository

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wakala/settlement/internal/calendar"
	"github.com/wakala/settlement/internal/domain"
	"github.com/wakala/settlement/internal/money"
)

func newDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := InitDB(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestInsertBatchSkipsDuplicateTransactions(t *testing.T) {
	ctx := context.Background()
	repo := NewTransactionRepo(newDB(t))

	txns := []domain.Transaction{
		{ID: "t1", Source: domain.SourcePG, AccountID: "acc", MerchantID: "m1", Date: domain.Date(2026, 1, 9), Channel: domain.ChannelFPX, Amount: 100, Volume: 1, SourceFee: money.Ptr(1.5)},
		{ID: "t2", Source: domain.SourceKira, AccountID: "acc", MerchantID: "m2", Date: domain.Date(2026, 1, 10), Channel: domain.ChannelEWallet, Amount: 50, Volume: 2},
	}
	n, err := repo.InsertBatch(ctx, Batch{ID: "b1", Source: domain.SourcePG, FileHash: "h1", RecordCount: 2, IngestedAt: time.Now()}, txns)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	exists, err := repo.BatchExistsByHash(ctx, "h1")
	require.NoError(t, err)
	assert.True(t, exists)

	n, err = repo.InsertBatch(ctx, Batch{ID: "b2", Source: domain.SourcePG, FileHash: "h2", RecordCount: 1, IngestedAt: time.Now()}, txns[:1])
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	count, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	from := domain.Date(2026, 1, 1)
	got, err := repo.List(ctx, TransactionFilter{Source: "pg", From: &from})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, domain.Date(2026, 1, 9), got[0].Date)
	require.NotNil(t, got[0].SourceFee)
	assert.Equal(t, 1.5, *got[0].SourceFee)
	assert.Nil(t, got[0].SourceSettlementAmount)

	merchants, err := repo.Merchants(ctx, domain.SourceKira, domain.Date(2026, 1, 1), domain.Date(2026, 1, 31))
	require.NoError(t, err)
	assert.Equal(t, []string{"m2"}, merchants)
}

func TestReconciliationSaveAndOpeningBalances(t *testing.T) {
	ctx := context.Background()
	repo := NewReconciliationRepo(newDB(t))

	settle := domain.Date(2026, 1, 12)
	rec := func(d int, ch domain.Channel, cumulative float64) domain.ReconciliationRecord {
		k := domain.ReconciliationKey{AccountID: "acc", Date: domain.Date(2026, 1, d), Channel: ch}
		return domain.ReconciliationRecord{ID: k.RowID(), AccountID: k.AccountID, Date: k.Date, Channel: ch, CumulativeVariance: cumulative}
	}
	first := rec(5, domain.ChannelFPX, 10)
	first.SettlementDate = &settle
	first.FeeRate = money.Ptr(1.5)
	require.NoError(t, repo.SaveWindow(ctx, domain.Date(2026, 1, 1), domain.Date(2026, 1, 31), []domain.ReconciliationRecord{
		first,
		rec(6, domain.ChannelFPX, 25),
		rec(5, domain.ChannelEWallet, -3),
		rec(20, domain.ChannelFPX, 99),
	}, nil))

	opening, err := repo.OpeningBalances(ctx, domain.Date(2026, 1, 10))
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{"acc|FPX": 25, "acc|EWALLET": -3}, opening)

	prev, err := repo.Previous(ctx, domain.Date(2026, 1, 1), domain.Date(2026, 1, 5))
	require.NoError(t, err)
	require.Len(t, prev, 2)
	got := prev[first.ID]
	require.NotNil(t, got.SettlementDate)
	assert.Equal(t, settle, *got.SettlementDate)
	assert.Equal(t, 1.5, *got.FeeRate)
	assert.Nil(t, got.Fee)

	page, total, err := repo.List(ctx, ReconciliationFilter{Channel: "fpx", Page: 2, Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, page, 1)
	assert.Equal(t, domain.Date(2026, 1, 20), page[0].Date)
}

func TestReconciliationSaveWindowReplacesAndCarries(t *testing.T) {
	ctx := context.Background()
	repo := NewReconciliationRepo(newDB(t))

	rec := func(d int, daily, cumulative float64) domain.ReconciliationRecord {
		k := domain.ReconciliationKey{AccountID: "acc", Date: domain.Date(2026, 1, d), Channel: domain.ChannelFPX}
		return domain.ReconciliationRecord{ID: k.RowID(), AccountID: k.AccountID, Date: k.Date, Channel: k.Channel,
			DailyVariance: daily, CumulativeVariance: cumulative}
	}
	jan := func(d int) time.Time { return domain.Date(2026, 1, d) }

	require.NoError(t, repo.SaveWindow(ctx, jan(1), jan(31), []domain.ReconciliationRecord{
		rec(5, 10, 10), rec(6, 5, 15), rec(7, 0, 15),
	}, nil))

	// Jan 6 vanished from the sources; Jan 7 moves with the new closing value.
	later := rec(7, 0, 40)
	require.NoError(t, repo.SaveWindow(ctx, jan(5), jan(6), []domain.ReconciliationRecord{rec(5, 40, 40)}, []domain.ReconciliationRecord{later}))

	after, err := repo.After(ctx, jan(5))
	require.NoError(t, err)
	require.Len(t, after, 1)
	assert.Equal(t, jan(7), after[0].Date)
	assert.Equal(t, 40.0, after[0].CumulativeVariance)
	assert.Equal(t, 0.0, after[0].DailyVariance)

	all, total, err := repo.List(ctx, ReconciliationFilter{})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Equal(t, 40.0, all[0].CumulativeVariance)
}

func TestDepositSaveRoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := NewDepositRepo(newDB(t))

	settle := domain.Date(2026, 5, 4)
	d := domain.DepositRecord{
		ID:         domain.DepositRowID("m1", domain.Date(2026, 4, 30)),
		MerchantID: "m1",
		Date:       domain.Date(2026, 4, 30),
		FPX: domain.ChannelDeposit{Amount: 1200, Volume: 4, FeeType: "flat", FeeRate: money.Ptr(10),
			FeeAmount: money.Ptr(10), Gross: 1190, SettlementRule: "T+1", SettlementDate: &settle},
		TotalAmount: 1200,
		TotalFees:   10,
	}
	require.NoError(t, repo.Save(ctx, []domain.DepositRecord{d}))

	got, err := repo.List(ctx, DepositFilter{MerchantID: "m1"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, d, got[0])
}

func TestLedgerSeedAndRows(t *testing.T) {
	ctx := context.Background()
	repo := NewLedgerRepo(newDB(t))
	p := domain.Period{Year: 2026, Month: 1}

	seed, err := repo.Seed(ctx, "m1", domain.LedgerMerchant, p)
	require.NoError(t, err)
	assert.Nil(t, seed)

	row := domain.MerchantLedgerRow{
		ID:               domain.LedgerRowID(domain.LedgerMerchant, "m1", p.First()),
		MerchantID:       "m1",
		Date:             p.First(),
		AvailableTotal:   300,
		SettlementFund:   money.Ptr(55),
		AvailableBalance: 745,
		TotalBalance:     945,
	}
	cf := domain.CarryForward{Entity: "m1", Ledger: domain.LedgerMerchant, Period: p, AvailableBalance: 745, PayoutPoolBalance: 200}
	require.NoError(t, repo.SaveMerchantPeriod(ctx, []domain.MerchantLedgerRow{row}, cf))

	seed, err = repo.Seed(ctx, "m1", domain.LedgerMerchant, p)
	require.NoError(t, err)
	require.NotNil(t, seed)
	assert.Equal(t, cf, *seed)

	rows, err := repo.ListMerchant(ctx, LedgerFilter{EntityID: "m1"})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, row, rows[0])

	agent := domain.AgentLedgerRow{
		ID:                domain.LedgerRowID(domain.LedgerAgent, "a1", p.First()),
		MerchantID:        "a1",
		Date:              p.First(),
		CommissionRateFPX: money.Ptr(5),
		Balance:           12,
	}
	require.NoError(t, repo.SaveAgentPeriod(ctx, []domain.AgentLedgerRow{agent},
		domain.CarryForward{Entity: "a1", Ledger: domain.LedgerAgent, Period: p, Balance: 12}))

	agents, err := repo.ListAgent(ctx, LedgerFilter{})
	require.NoError(t, err)
	require.Len(t, agents, 1)
	assert.Equal(t, agent, agents[0])
}

func TestHolidayReplace(t *testing.T) {
	ctx := context.Background()
	repo := NewHolidayRepo(newDB(t))

	require.NoError(t, repo.Replace(ctx, []calendar.AddOnHoliday{
		{Date: domain.Date(2026, 3, 2), Description: "first"},
		{Date: domain.Date(2026, 3, 1), Description: "second"},
	}))
	require.NoError(t, repo.Replace(ctx, []calendar.AddOnHoliday{
		{Date: domain.Date(2026, 7, 7), Description: "only"},
	}))

	got, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []calendar.AddOnHoliday{{Date: domain.Date(2026, 7, 7), Description: "only"}}, got)
}
