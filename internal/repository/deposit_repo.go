package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/wakala/settlement/internal/domain"
)

type DepositRepo struct {
	db *sql.DB
}

func NewDepositRepo(db *sql.DB) *DepositRepo {
	return &DepositRepo{db: db}
}

type DepositFilter struct {
	MerchantID string
	From       *time.Time
	To         *time.Time
}

// Save upserts deposit rows in a single transaction.
func (r *DepositRepo) Save(ctx context.Context, records []domain.DepositRecord) error {
	return inTx(ctx, r.db, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx,
			`INSERT OR REPLACE INTO deposit_records
			(id, merchant_id, transaction_date,
			 fpx_amount, fpx_volume, fpx_fee_type, fpx_fee_rate, fpx_fee_amount, fpx_gross,
			 fpx_settlement_rule, fpx_settlement_date,
			 ewallet_amount, ewallet_volume, ewallet_fee_type, ewallet_fee_rate, ewallet_fee_amount,
			 ewallet_gross, ewallet_settlement_rule, ewallet_settlement_date,
			 total_amount, total_fees, available_fpx, available_ewallet, available_total, remarks)
			VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		)
		if err != nil {
			return fmt.Errorf("prepare: %w", err)
		}
		defer stmt.Close()

		for i := range records {
			d := &records[i]
			args := []any{d.ID, d.MerchantID, domain.DateKey(d.Date)}
			args = append(args, channelArgs(d.FPX)...)
			args = append(args, channelArgs(d.EWallet)...)
			args = append(args, d.TotalAmount, d.TotalFees, d.AvailableFPX, d.AvailableEWallet, d.AvailableTotal, d.Remarks)
			if _, err := stmt.ExecContext(ctx, args...); err != nil {
				return fmt.Errorf("upsert row %d: %w", i, err)
			}
		}
		return nil
	})
}

func channelArgs(c domain.ChannelDeposit) []any {
	return []any{c.Amount, c.Volume, c.FeeType, nullFloat(c.FeeRate), nullFloat(c.FeeAmount), c.Gross,
		c.SettlementRule, nullDate(c.SettlementDate)}
}

// Previous returns a merchant's persisted rows in [from, to] by row id.
func (r *DepositRepo) Previous(ctx context.Context, merchantID string, from, to time.Time) (map[string]domain.DepositRecord, error) {
	recs, err := r.List(ctx, DepositFilter{MerchantID: merchantID, From: &from, To: &to})
	if err != nil {
		return nil, err
	}
	out := make(map[string]domain.DepositRecord, len(recs))
	for _, d := range recs {
		out[d.ID] = d
	}
	return out, nil
}

// List returns matching rows ordered by merchant and date.
func (r *DepositRepo) List(ctx context.Context, f DepositFilter) ([]domain.DepositRecord, error) {
	where, args := buildDepositWhere(f)
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+depositColumns+" FROM deposit_records"+where+" ORDER BY merchant_id, transaction_date", args...)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	var recs []domain.DepositRecord
	for rows.Next() {
		d, err := scanDeposit(rows)
		if err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		recs = append(recs, d)
	}
	return recs, rows.Err()
}

const depositColumns = `id, merchant_id, transaction_date,
	fpx_amount, fpx_volume, fpx_fee_type, fpx_fee_rate, fpx_fee_amount, fpx_gross,
	fpx_settlement_rule, fpx_settlement_date,
	ewallet_amount, ewallet_volume, ewallet_fee_type, ewallet_fee_rate, ewallet_fee_amount,
	ewallet_gross, ewallet_settlement_rule, ewallet_settlement_date,
	total_amount, total_fees, available_fpx, available_ewallet, available_total, remarks`

type channelScan struct {
	rate, fee      sql.NullFloat64
	settlementDate sql.NullString
}

func (s *channelScan) dest(c *domain.ChannelDeposit) []any {
	return []any{&c.Amount, &c.Volume, &c.FeeType, &s.rate, &s.fee, &c.Gross, &c.SettlementRule, &s.settlementDate}
}

func (s *channelScan) fill(c *domain.ChannelDeposit) {
	c.FeeRate = floatPtr(s.rate)
	c.FeeAmount = floatPtr(s.fee)
	c.SettlementDate = datePtr(s.settlementDate)
}

func scanDeposit(rows *sql.Rows) (domain.DepositRecord, error) {
	var d domain.DepositRecord
	var date string
	var fpx, ewallet channelScan

	dest := []any{&d.ID, &d.MerchantID, &date}
	dest = append(dest, fpx.dest(&d.FPX)...)
	dest = append(dest, ewallet.dest(&d.EWallet)...)
	dest = append(dest, &d.TotalAmount, &d.TotalFees, &d.AvailableFPX, &d.AvailableEWallet, &d.AvailableTotal, &d.Remarks)
	if err := rows.Scan(dest...); err != nil {
		return d, err
	}
	d.Date = parseDate(date)
	fpx.fill(&d.FPX)
	ewallet.fill(&d.EWallet)
	return d, nil
}

func buildDepositWhere(f DepositFilter) (string, []any) {
	var clauses []string
	var args []any

	if f.MerchantID != "" {
		clauses = append(clauses, "merchant_id = ?")
		args = append(args, f.MerchantID)
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
