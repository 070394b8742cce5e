package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/wakala/settlement/internal/domain"
)

type LedgerRepo struct {
	db *sql.DB
}

func NewLedgerRepo(db *sql.DB) *LedgerRepo {
	return &LedgerRepo{db: db}
}

type LedgerFilter struct {
	EntityID string
	From     *time.Time
	To       *time.Time
}

// Seed returns the carry-forward stored for the period, or nil when none.
func (r *LedgerRepo) Seed(ctx context.Context, entity string, t domain.LedgerType, p domain.Period) (*domain.CarryForward, error) {
	cf := domain.CarryForward{Entity: entity, Ledger: t, Period: p}
	err := r.db.QueryRowContext(ctx,
		`SELECT available_balance, payout_pool_balance, balance, accumulative_balance
		FROM carry_forward WHERE entity = ? AND ledger = ? AND period = ?`,
		entity, string(t), p.String(),
	).Scan(&cf.AvailableBalance, &cf.PayoutPoolBalance, &cf.Balance, &cf.AccumulativeBalance)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query seed: %w", err)
	}
	return &cf, nil
}

// SaveMerchantPeriod upserts a period's merchant rows and its closing
// carry-forward in one transaction.
func (r *LedgerRepo) SaveMerchantPeriod(ctx context.Context, rows []domain.MerchantLedgerRow, seed domain.CarryForward) error {
	return inTx(ctx, r.db, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx,
			`INSERT OR REPLACE INTO merchant_ledger
			(id, merchant_id, transaction_date, available_fpx, available_ewallet, available_total,
			 settlement_fund, settlement_charges, withdrawal_amount, withdrawal_rate, topup_payout_pool,
			 remarks, withdrawal_charges, payout_pool_balance, available_balance, total_balance)
			VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		)
		if err != nil {
			return fmt.Errorf("prepare: %w", err)
		}
		defer stmt.Close()

		for i := range rows {
			m := &rows[i]
			_, err := stmt.ExecContext(ctx,
				m.ID, m.MerchantID, domain.DateKey(m.Date), m.AvailableFPX, m.AvailableEWallet, m.AvailableTotal,
				nullFloat(m.SettlementFund), nullFloat(m.SettlementCharges), nullFloat(m.WithdrawalAmount),
				nullFloat(m.WithdrawalRate), nullFloat(m.TopupPayoutPool), m.Remarks,
				m.WithdrawalCharges, m.PayoutPoolBalance, m.AvailableBalance, m.TotalBalance,
			)
			if err != nil {
				return fmt.Errorf("upsert row %d: %w", i, err)
			}
		}
		return saveSeed(ctx, tx, seed)
	})
}

// SaveAgentPeriod upserts a period's agent rows and its closing
// carry-forward in one transaction.
func (r *LedgerRepo) SaveAgentPeriod(ctx context.Context, rows []domain.AgentLedgerRow, seed domain.CarryForward) error {
	return inTx(ctx, r.db, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx,
			`INSERT OR REPLACE INTO agent_ledger
			(id, merchant_id, transaction_date, fpx_amount, ewallet_amount,
			 commission_rate_fpx, commission_rate_ewallet, volume, commission_rate, debit, remarks,
			 fpx_commission, ewallet_commission, gross_amount, available_fpx, available_ewallet,
			 available_total, commission_amount, balance, accumulative_balance)
			VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		)
		if err != nil {
			return fmt.Errorf("prepare: %w", err)
		}
		defer stmt.Close()

		for i := range rows {
			a := &rows[i]
			_, err := stmt.ExecContext(ctx,
				a.ID, a.MerchantID, domain.DateKey(a.Date), a.FPXAmount, a.EWalletAmount,
				nullFloat(a.CommissionRateFPX), nullFloat(a.CommissionRateEWallet), nullFloat(a.Volume),
				nullFloat(a.CommissionRate), nullFloat(a.Debit), a.Remarks,
				a.FPXCommission, a.EWalletCommission, a.Gross, a.AvailableFPX, a.AvailableEWallet,
				a.AvailableTotal, a.CommissionAmount, a.Balance, nullFloat(a.AccumulativeBalance),
			)
			if err != nil {
				return fmt.Errorf("upsert row %d: %w", i, err)
			}
		}
		return saveSeed(ctx, tx, seed)
	})
}

func saveSeed(ctx context.Context, tx *sql.Tx, seed domain.CarryForward) error {
	_, err := tx.ExecContext(ctx,
		`INSERT OR REPLACE INTO carry_forward
		(entity, ledger, period, available_balance, payout_pool_balance, balance, accumulative_balance)
		VALUES (?,?,?,?,?,?,?)`,
		seed.Entity, string(seed.Ledger), seed.Period.String(),
		seed.AvailableBalance, seed.PayoutPoolBalance, seed.Balance, seed.AccumulativeBalance,
	)
	if err != nil {
		return fmt.Errorf("upsert seed: %w", err)
	}
	return nil
}

func (r *LedgerRepo) ListMerchant(ctx context.Context, f LedgerFilter) ([]domain.MerchantLedgerRow, error) {
	where, args := buildLedgerWhere(f)
	rows, err := r.db.QueryContext(ctx, `SELECT id, merchant_id, transaction_date, available_fpx,
		available_ewallet, available_total, settlement_fund, settlement_charges, withdrawal_amount,
		withdrawal_rate, topup_payout_pool, remarks, withdrawal_charges, payout_pool_balance,
		available_balance, total_balance
		FROM merchant_ledger`+where+` ORDER BY merchant_id, transaction_date`, args...)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	var out []domain.MerchantLedgerRow
	for rows.Next() {
		var m domain.MerchantLedgerRow
		var date string
		var fund, charges, amount, rate, topup sql.NullFloat64
		if err := rows.Scan(&m.ID, &m.MerchantID, &date, &m.AvailableFPX, &m.AvailableEWallet,
			&m.AvailableTotal, &fund, &charges, &amount, &rate, &topup, &m.Remarks,
			&m.WithdrawalCharges, &m.PayoutPoolBalance, &m.AvailableBalance, &m.TotalBalance); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		m.Date = parseDate(date)
		m.SettlementFund = floatPtr(fund)
		m.SettlementCharges = floatPtr(charges)
		m.WithdrawalAmount = floatPtr(amount)
		m.WithdrawalRate = floatPtr(rate)
		m.TopupPayoutPool = floatPtr(topup)
		out = append(out, m)
	}
	return out, rows.Err()
}

func (r *LedgerRepo) ListAgent(ctx context.Context, f LedgerFilter) ([]domain.AgentLedgerRow, error) {
	where, args := buildLedgerWhere(f)
	rows, err := r.db.QueryContext(ctx, `SELECT id, merchant_id, transaction_date, fpx_amount,
		ewallet_amount, commission_rate_fpx, commission_rate_ewallet, volume, commission_rate, debit,
		remarks, fpx_commission, ewallet_commission, gross_amount, available_fpx, available_ewallet,
		available_total, commission_amount, balance, accumulative_balance
		FROM agent_ledger`+where+` ORDER BY merchant_id, transaction_date`, args...)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	var out []domain.AgentLedgerRow
	for rows.Next() {
		var a domain.AgentLedgerRow
		var date string
		var rateFPX, rateEWallet, volume, rate, debit, accumulative sql.NullFloat64
		if err := rows.Scan(&a.ID, &a.MerchantID, &date, &a.FPXAmount, &a.EWalletAmount,
			&rateFPX, &rateEWallet, &volume, &rate, &debit, &a.Remarks,
			&a.FPXCommission, &a.EWalletCommission, &a.Gross, &a.AvailableFPX, &a.AvailableEWallet,
			&a.AvailableTotal, &a.CommissionAmount, &a.Balance, &accumulative); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		a.Date = parseDate(date)
		a.CommissionRateFPX = floatPtr(rateFPX)
		a.CommissionRateEWallet = floatPtr(rateEWallet)
		a.Volume = floatPtr(volume)
		a.CommissionRate = floatPtr(rate)
		a.Debit = floatPtr(debit)
		a.AccumulativeBalance = floatPtr(accumulative)
		out = append(out, a)
	}
	return out, rows.Err()
}

func buildLedgerWhere(f LedgerFilter) (string, []any) {
	var clauses []string
	var args []any

	if f.EntityID != "" {
		clauses = append(clauses, "merchant_id = ?")
		args = append(args, f.EntityID)
	}
	if f.From != nil {
		clauses = append(clauses, "transaction_date >= ?")
		args = append(args, domain.DateKey(*f.From))
	}
	if f.To != nil {
		clauses = append(clauses, "transaction_date <= ?")
		args = append(args, domain.DateKey(*f.To))
	}

	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}
