package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/wakala/settlement/internal/domain"
)

// Batch is one ingested transaction batch.
type Batch struct {
	ID          string        `json:"id"`
	Source      domain.Source `json:"source"`
	FileHash    string        `json:"file_hash"`
	RecordCount int           `json:"record_count"`
	IngestedAt  time.Time     `json:"ingested_at"`
}

type TransactionRepo struct {
	db *sql.DB
}

func NewTransactionRepo(db *sql.DB) *TransactionRepo {
	return &TransactionRepo{db: db}
}

func (r *TransactionRepo) BatchExistsByHash(ctx context.Context, hash string) (bool, error) {
	var count int
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM ingestion_batches WHERE file_hash = ?", hash).Scan(&count)
	return count > 0, err
}

// InsertBatch records the batch and its transactions in one transaction.
// Transactions whose id already exists are skipped. It returns the number of
// rows inserted.
func (r *TransactionRepo) InsertBatch(ctx context.Context, b Batch, txns []domain.Transaction) (int, error) {
	inserted := 0
	err := inTx(ctx, r.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO ingestion_batches (id, source, file_hash, record_count, ingested_at)
			VALUES (?,?,?,?,?)`,
			b.ID, string(b.Source), b.FileHash, b.RecordCount, b.IngestedAt.Format(time.RFC3339),
		); err != nil {
			return fmt.Errorf("insert batch: %w", err)
		}

		stmt, err := tx.PrepareContext(ctx,
			`INSERT OR IGNORE INTO transactions
			(id, batch_id, source, account_id, merchant_id, transaction_date, channel,
			 amount, volume, source_fee, source_settlement_amount)
			VALUES (?,?,?,?,?,?,?,?,?,?,?)`,
		)
		if err != nil {
			return fmt.Errorf("prepare: %w", err)
		}
		defer stmt.Close()

		for i := range txns {
			t := &txns[i]
			res, err := stmt.ExecContext(ctx,
				t.ID, b.ID, string(t.Source), t.AccountID, t.MerchantID, domain.DateKey(t.Date),
				string(t.Channel), t.Amount, t.Volume, nullFloat(t.SourceFee), nullFloat(t.SourceSettlementAmount),
			)
			if err != nil {
				return fmt.Errorf("insert row %d: %w", i, err)
			}
			ra, _ := res.RowsAffected()
			inserted += int(ra)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return inserted, nil
}

func (r *TransactionRepo) Count(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM transactions").Scan(&count)
	return count, err
}

type TransactionFilter struct {
	Source     string
	MerchantID string
	AccountID  string
	From       *time.Time
	To         *time.Time
}

// List returns every transaction matching f, oldest first.
func (r *TransactionRepo) List(ctx context.Context, f TransactionFilter) ([]domain.Transaction, error) {
	where, args := buildTransactionWhere(f)
	rows, err := r.db.QueryContext(ctx, "SELECT "+transactionColumns+" FROM transactions"+where+" ORDER BY transaction_date, id", args...)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	var txns []domain.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		txns = append(txns, t)
	}
	return txns, rows.Err()
}

// Merchants lists the distinct merchants with transactions of the source in
// [from, to].
func (r *TransactionRepo) Merchants(ctx context.Context, source domain.Source, from, to time.Time) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT DISTINCT merchant_id FROM transactions
		WHERE source = ? AND merchant_id != '' AND transaction_date >= ? AND transaction_date <= ?
		ORDER BY merchant_id`,
		string(source), domain.DateKey(from), domain.DateKey(to),
	)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

const transactionColumns = `id, source, account_id, merchant_id, transaction_date, channel,
	amount, volume, source_fee, source_settlement_amount`

func scanTransaction(rows *sql.Rows) (domain.Transaction, error) {
	var t domain.Transaction
	var source, date, channel string
	var fee, settlement sql.NullFloat64

	err := rows.Scan(&t.ID, &source, &t.AccountID, &t.MerchantID, &date, &channel,
		&t.Amount, &t.Volume, &fee, &settlement)
	if err != nil {
		return t, err
	}
	t.Source = domain.Source(source)
	t.Date = parseDate(date)
	t.Channel = domain.Channel(channel)
	t.SourceFee = floatPtr(fee)
	t.SourceSettlementAmount = floatPtr(settlement)
	return t, nil
}

func buildTransactionWhere(f TransactionFilter) (string, []any) {
	var clauses []string
	var args []any

	if f.Source != "" {
		clauses = append(clauses, "source = ?")
		args = append(args, f.Source)
	}
	if f.MerchantID != "" {
		clauses = append(clauses, "merchant_id = ?")
		args = append(args, f.MerchantID)
	}
	if f.AccountID != "" {
		clauses = append(clauses, "account_id = ?")
		args = append(args, f.AccountID)
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
