package orchestration

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/wakala/settlement/internal/calendar"
)

const holidayPartition = "holidays"

// AddOnHolidays lists the add-on holidays of the current snapshot.
func (s *Service) AddOnHolidays() []calendar.AddOnHoliday {
	return s.calculator().Holidays().AddOnHolidays()
}

// ReplaceAddOnHolidays validates entries, persists the accepted set and
// swaps in the new snapshot. Syncs already running keep the old one.
func (s *Service) ReplaceAddOnHolidays(ctx context.Context, entries []calendar.HolidayEntry) (calendar.ReplaceResult, error) {
	unlock := s.locks.Lock(holidayPartition)
	defer unlock()

	next, res := s.calculator().Holidays().ReplaceAddOnHolidays(entries)
	if err := s.repos.Holidays.Replace(ctx, res.Accepted); err != nil {
		return res, fmt.Errorf("save holidays: %w", err)
	}

	s.calMu.Lock()
	s.calc = calendar.NewCalculator(next, s.opts.MaxRollDays)
	s.calMu.Unlock()

	zap.L().Info("add-on holidays replaced",
		zap.Int("accepted", len(res.Accepted)),
		zap.Int("rejected", len(res.Report.Faults)),
	)
	return res, nil
}
