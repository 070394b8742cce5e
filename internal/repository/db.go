package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/wakala/settlement/internal/domain"

	_ "modernc.org/sqlite"
)

// InitDB opens (or creates) a SQLite database at the given path and ensures
// all required tables exist. Pass ":memory:" for an in-memory database.
func InitDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	// Every connection to :memory: is its own database.
	if dsn == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set wal mode: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	if err := createTables(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}

	return db, nil
}

func createTables(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS ingestion_batches (
			id TEXT PRIMARY KEY,
			source TEXT NOT NULL,
			file_hash TEXT UNIQUE NOT NULL,
			record_count INTEGER NOT NULL,
			ingested_at DATETIME NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS transactions (
			id TEXT PRIMARY KEY,
			batch_id TEXT NOT NULL,
			source TEXT NOT NULL,
			account_id TEXT NOT NULL,
			merchant_id TEXT NOT NULL,
			transaction_date TEXT NOT NULL,
			channel TEXT NOT NULL,
			amount REAL NOT NULL,
			volume INTEGER NOT NULL,
			source_fee REAL,
			source_settlement_amount REAL,
			FOREIGN KEY (batch_id) REFERENCES ingestion_batches(id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_transactions_date ON transactions(transaction_date)`,
		`CREATE INDEX IF NOT EXISTS idx_transactions_merchant ON transactions(merchant_id, transaction_date)`,

		`CREATE TABLE IF NOT EXISTS reconciliation_records (
			id TEXT PRIMARY KEY,
			account_id TEXT NOT NULL,
			transaction_date TEXT NOT NULL,
			channel TEXT NOT NULL,
			kira_amount REAL NOT NULL,
			mdr REAL NOT NULL,
			kira_settlement_amount REAL NOT NULL,
			pg_amount REAL NOT NULL,
			volume INTEGER NOT NULL,
			settlement_rule TEXT NOT NULL DEFAULT '',
			settlement_date TEXT,
			fee_type TEXT NOT NULL DEFAULT '',
			fee_rate REAL,
			fee REAL,
			settlement_amount REAL,
			daily_variance REAL NOT NULL,
			cumulative_variance REAL NOT NULL,
			remarks TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE INDEX IF NOT EXISTS idx_reconciliation_date ON reconciliation_records(transaction_date)`,

		`CREATE TABLE IF NOT EXISTS deposit_records (
			id TEXT PRIMARY KEY,
			merchant_id TEXT NOT NULL,
			transaction_date TEXT NOT NULL,
			fpx_amount REAL NOT NULL,
			fpx_volume INTEGER NOT NULL,
			fpx_fee_type TEXT NOT NULL DEFAULT '',
			fpx_fee_rate REAL,
			fpx_fee_amount REAL,
			fpx_gross REAL NOT NULL,
			fpx_settlement_rule TEXT NOT NULL DEFAULT '',
			fpx_settlement_date TEXT,
			ewallet_amount REAL NOT NULL,
			ewallet_volume INTEGER NOT NULL,
			ewallet_fee_type TEXT NOT NULL DEFAULT '',
			ewallet_fee_rate REAL,
			ewallet_fee_amount REAL,
			ewallet_gross REAL NOT NULL,
			ewallet_settlement_rule TEXT NOT NULL DEFAULT '',
			ewallet_settlement_date TEXT,
			total_amount REAL NOT NULL,
			total_fees REAL NOT NULL,
			available_fpx REAL NOT NULL,
			available_ewallet REAL NOT NULL,
			available_total REAL NOT NULL,
			remarks TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE INDEX IF NOT EXISTS idx_deposit_merchant_date ON deposit_records(merchant_id, transaction_date)`,

		`CREATE TABLE IF NOT EXISTS merchant_ledger (
			id TEXT PRIMARY KEY,
			merchant_id TEXT NOT NULL,
			transaction_date TEXT NOT NULL,
			available_fpx REAL NOT NULL,
			available_ewallet REAL NOT NULL,
			available_total REAL NOT NULL,
			settlement_fund REAL,
			settlement_charges REAL,
			withdrawal_amount REAL,
			withdrawal_rate REAL,
			topup_payout_pool REAL,
			remarks TEXT NOT NULL DEFAULT '',
			withdrawal_charges REAL NOT NULL,
			payout_pool_balance REAL NOT NULL,
			available_balance REAL NOT NULL,
			total_balance REAL NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_merchant_ledger_date ON merchant_ledger(merchant_id, transaction_date)`,

		`CREATE TABLE IF NOT EXISTS agent_ledger (
			id TEXT PRIMARY KEY,
			merchant_id TEXT NOT NULL,
			transaction_date TEXT NOT NULL,
			fpx_amount REAL NOT NULL,
			ewallet_amount REAL NOT NULL,
			commission_rate_fpx REAL,
			commission_rate_ewallet REAL,
			volume REAL,
			commission_rate REAL,
			debit REAL,
			remarks TEXT NOT NULL DEFAULT '',
			fpx_commission REAL NOT NULL,
			ewallet_commission REAL NOT NULL,
			gross_amount REAL NOT NULL,
			available_fpx REAL NOT NULL,
			available_ewallet REAL NOT NULL,
			available_total REAL NOT NULL,
			commission_amount REAL NOT NULL,
			balance REAL NOT NULL,
			accumulative_balance REAL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_agent_ledger_date ON agent_ledger(merchant_id, transaction_date)`,

		`CREATE TABLE IF NOT EXISTS carry_forward (
			entity TEXT NOT NULL,
			ledger TEXT NOT NULL,
			period TEXT NOT NULL,
			available_balance REAL NOT NULL,
			payout_pool_balance REAL NOT NULL,
			balance REAL NOT NULL,
			accumulative_balance REAL NOT NULL,
			PRIMARY KEY (entity, ledger, period)
		)`,

		`CREATE TABLE IF NOT EXISTS add_on_holidays (
			holiday_date TEXT PRIMARY KEY,
			description TEXT NOT NULL DEFAULT ''
		)`,
	}

	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("exec %q: %w", stmt[:40], err)
		}
	}

	return nil
}

// inTx runs fn in one transaction, committing only when fn succeeds.
func inTx(ctx context.Context, db *sql.DB, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// --- helpers ---

func nullFloat(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}

func floatPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

func nullDate(t *time.Time) any {
	if t == nil {
		return nil
	}
	return domain.DateKey(*t)
}

func datePtr(v sql.NullString) *time.Time {
	if !v.Valid || v.String == "" {
		return nil
	}
	t, err := time.Parse(domain.DateLayout, v.String)
	if err != nil {
		return nil
	}
	return &t
}

func parseDate(s string) time.Time {
	t, _ := time.Parse(domain.DateLayout, s)
	return t
}
