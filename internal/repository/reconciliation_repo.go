package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/wakala/settlement/internal/domain"
)

type ReconciliationRepo struct {
	db *sql.DB
}

func NewReconciliationRepo(db *sql.DB) *ReconciliationRepo {
	return &ReconciliationRepo{db: db}
}

type ReconciliationFilter struct {
	AccountID string
	Channel   string
	From      *time.Time
	To        *time.Time
	Page      int
	Limit     int
}

// SaveWindow replaces every row dated in [from, to] with records and rewrites
// the cumulative variance of carried, the rows after the window whose series
// moved, all in one transaction.
func (r *ReconciliationRepo) SaveWindow(ctx context.Context, from, to time.Time, records, carried []domain.ReconciliationRecord) error {
	return inTx(ctx, r.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM reconciliation_records WHERE transaction_date >= ? AND transaction_date <= ?`,
			domain.DateKey(from), domain.DateKey(to),
		); err != nil {
			return fmt.Errorf("clear window: %w", err)
		}

		stmt, err := tx.PrepareContext(ctx,
			`INSERT OR REPLACE INTO reconciliation_records
			(id, account_id, transaction_date, channel, kira_amount, mdr, kira_settlement_amount,
			 pg_amount, volume, settlement_rule, settlement_date, fee_type, fee_rate, fee,
			 settlement_amount, daily_variance, cumulative_variance, remarks)
			VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		)
		if err != nil {
			return fmt.Errorf("prepare: %w", err)
		}
		defer stmt.Close()

		for i := range records {
			rec := &records[i]
			_, err := stmt.ExecContext(ctx,
				rec.ID, rec.AccountID, domain.DateKey(rec.Date), string(rec.Channel),
				rec.KiraAmount, rec.MDR, rec.KiraSettlementAmount, rec.PGAmount, rec.Volume,
				rec.SettlementRule, nullDate(rec.SettlementDate), rec.FeeType, nullFloat(rec.FeeRate),
				nullFloat(rec.Fee), nullFloat(rec.SettlementAmount), rec.DailyVariance,
				rec.CumulativeVariance, rec.Remarks,
			)
			if err != nil {
				return fmt.Errorf("upsert row %d: %w", i, err)
			}
		}

		if len(carried) == 0 {
			return nil
		}
		upd, err := tx.PrepareContext(ctx,
			`UPDATE reconciliation_records SET cumulative_variance = ? WHERE id = ?`)
		if err != nil {
			return fmt.Errorf("prepare carry: %w", err)
		}
		defer upd.Close()

		for _, rec := range carried {
			if _, err := upd.ExecContext(ctx, rec.CumulativeVariance, rec.ID); err != nil {
				return fmt.Errorf("carry row %s: %w", rec.ID, err)
			}
		}
		return nil
	})
}

// After returns every persisted row dated after day.
func (r *ReconciliationRepo) After(ctx context.Context, day time.Time) ([]domain.ReconciliationRecord, error) {
	from := domain.Day(day).AddDate(0, 0, 1)
	recs, _, err := r.List(ctx, ReconciliationFilter{From: &from})
	return recs, err
}

// Previous returns the persisted rows in [from, to] by row id.
func (r *ReconciliationRepo) Previous(ctx context.Context, from, to time.Time) (map[string]domain.ReconciliationRecord, error) {
	recs, _, err := r.List(ctx, ReconciliationFilter{From: &from, To: &to})
	if err != nil {
		return nil, err
	}
	out := make(map[string]domain.ReconciliationRecord, len(recs))
	for _, rec := range recs {
		out[rec.ID] = rec
	}
	return out, nil
}

// OpeningBalances returns, per (account, channel) partition, the cumulative
// variance of the last row dated before the given day.
func (r *ReconciliationRepo) OpeningBalances(ctx context.Context, before time.Time) (map[string]float64, error) {
	day := domain.DateKey(before)
	rows, err := r.db.QueryContext(ctx, `
		SELECT rr.account_id, rr.channel, rr.cumulative_variance
		FROM reconciliation_records rr
		WHERE rr.transaction_date = (
			SELECT MAX(transaction_date) FROM reconciliation_records
			WHERE account_id = rr.account_id AND channel = rr.channel AND transaction_date < ?
		)
	`, day)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	out := make(map[string]float64)
	for rows.Next() {
		var account, channel string
		var cumulative float64
		if err := rows.Scan(&account, &channel, &cumulative); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		key := domain.ReconciliationKey{AccountID: account, Channel: domain.Channel(channel)}
		out[key.Partition()] = cumulative
	}
	return out, rows.Err()
}

// List returns matching rows by date, account and channel. A zero Limit
// returns every row.
func (r *ReconciliationRepo) List(ctx context.Context, f ReconciliationFilter) ([]domain.ReconciliationRecord, int, error) {
	where, args := buildReconciliationWhere(f)

	var total int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM reconciliation_records"+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count: %w", err)
	}

	query := "SELECT " + reconciliationColumns + " FROM reconciliation_records" + where +
		" ORDER BY transaction_date, account_id, channel"
	if f.Limit > 0 {
		if f.Page <= 0 {
			f.Page = 1
		}
		query += " LIMIT ? OFFSET ?"
		args = append(args, f.Limit, (f.Page-1)*f.Limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	var recs []domain.ReconciliationRecord
	for rows.Next() {
		rec, err := scanReconciliation(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan: %w", err)
		}
		recs = append(recs, rec)
	}
	return recs, total, rows.Err()
}

const reconciliationColumns = `id, account_id, transaction_date, channel, kira_amount, mdr,
	kira_settlement_amount, pg_amount, volume, settlement_rule, settlement_date, fee_type,
	fee_rate, fee, settlement_amount, daily_variance, cumulative_variance, remarks`

func scanReconciliation(rows *sql.Rows) (domain.ReconciliationRecord, error) {
	var rec domain.ReconciliationRecord
	var date, channel string
	var settlementDate sql.NullString
	var feeRate, fee, settlementAmount sql.NullFloat64

	err := rows.Scan(&rec.ID, &rec.AccountID, &date, &channel, &rec.KiraAmount, &rec.MDR,
		&rec.KiraSettlementAmount, &rec.PGAmount, &rec.Volume, &rec.SettlementRule, &settlementDate,
		&rec.FeeType, &feeRate, &fee, &settlementAmount, &rec.DailyVariance, &rec.CumulativeVariance,
		&rec.Remarks)
	if err != nil {
		return rec, err
	}
	rec.Date = parseDate(date)
	rec.Channel = domain.Channel(channel)
	rec.SettlementDate = datePtr(settlementDate)
	rec.FeeRate = floatPtr(feeRate)
	rec.Fee = floatPtr(fee)
	rec.SettlementAmount = floatPtr(settlementAmount)
	return rec, nil
}

func buildReconciliationWhere(f ReconciliationFilter) (string, []any) {
	var clauses []string
	var args []any

	if f.AccountID != "" {
		clauses = append(clauses, "account_id = ?")
		args = append(args, f.AccountID)
	}
	if f.Channel != "" {
		clauses = append(clauses, "channel = ?")
		args = append(args, strings.ToUpper(f.Channel))
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
