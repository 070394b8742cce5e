package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/wakala/settlement/internal/calendar"
	"github.com/wakala/settlement/internal/domain"
)

type HolidayRepo struct {
	db *sql.DB
}

func NewHolidayRepo(db *sql.DB) *HolidayRepo {
	return &HolidayRepo{db: db}
}

// List returns the stored add-on holidays by date.
func (r *HolidayRepo) List(ctx context.Context) ([]calendar.AddOnHoliday, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT holiday_date, description FROM add_on_holidays ORDER BY holiday_date")
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	var out []calendar.AddOnHoliday
	for rows.Next() {
		var date string
		var h calendar.AddOnHoliday
		if err := rows.Scan(&date, &h.Description); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		h.Date = parseDate(date)
		out = append(out, h)
	}
	return out, rows.Err()
}

// Replace swaps the whole add-on set in one transaction.
func (r *HolidayRepo) Replace(ctx context.Context, holidays []calendar.AddOnHoliday) error {
	return inTx(ctx, r.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM add_on_holidays"); err != nil {
			return fmt.Errorf("clear: %w", err)
		}
		stmt, err := tx.PrepareContext(ctx, "INSERT OR REPLACE INTO add_on_holidays (holiday_date, description) VALUES (?,?)")
		if err != nil {
			return fmt.Errorf("prepare: %w", err)
		}
		defer stmt.Close()

		for i, h := range holidays {
			if _, err := stmt.ExecContext(ctx, domain.DateKey(h.Date), h.Description); err != nil {
				return fmt.Errorf("insert row %d: %w", i, err)
			}
		}
		return nil
	})
}
