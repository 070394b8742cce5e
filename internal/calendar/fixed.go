package calendar

import (
	"fmt"
	"strings"
	"time"

	"github.com/wakala/settlement/internal/domain"
)

// malaysiaHolidays holds the federal public holidays observed for settlement.
// Lunar dates follow the gazetted calendar for each year.
var malaysiaHolidays = map[int][]string{
	2025: {
		"2025-01-01", "2025-01-29", "2025-01-30", "2025-02-11", "2025-03-31",
		"2025-04-01", "2025-05-01", "2025-05-12", "2025-06-02", "2025-06-07",
		"2025-06-27", "2025-08-31", "2025-09-01", "2025-09-05", "2025-09-16",
		"2025-10-20", "2025-12-25",
	},
	2026: {
		"2026-01-01", "2026-02-01", "2026-02-17", "2026-02-18", "2026-03-21",
		"2026-03-22", "2026-03-23", "2026-05-01", "2026-05-27", "2026-05-31",
		"2026-06-01", "2026-06-17", "2026-08-25", "2026-08-31", "2026-09-16",
		"2026-11-08", "2026-11-09", "2026-12-25",
	},
	2027: {
		"2027-01-01", "2027-01-22", "2027-02-06", "2027-02-07", "2027-02-08",
		"2027-03-10", "2027-03-11", "2027-05-01", "2027-05-17", "2027-05-20",
		"2027-06-06", "2027-06-07", "2027-08-15", "2027-08-16", "2027-08-31",
		"2027-09-16", "2027-10-28", "2027-12-25",
	},
}

// FixedHolidays returns the built-in public holidays for the given years, or
// for every year in the table when none are given.
func FixedHolidays(years ...int) []time.Time {
	if len(years) == 0 {
		for y := range malaysiaHolidays {
			years = append(years, y)
		}
	}

	var out []time.Time
	for _, y := range years {
		for _, s := range malaysiaHolidays[y] {
			d, err := time.Parse(domain.DateLayout, s)
			if err != nil {
				panic(fmt.Sprintf("calendar: bad fixed holiday %q", s))
			}
			out = append(out, d)
		}
	}
	return out
}

// ParseFixedHolidays parses a comma separated list of YYYY-MM-DD dates.
func ParseFixedHolidays(list string) ([]time.Time, error) {
	var out []time.Time
	for _, part := range strings.Split(list, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		d, err := time.Parse(domain.DateLayout, part)
		if err != nil {
			return nil, fmt.Errorf("%w: fixed holiday %q", domain.ErrConfiguration, part)
		}
		out = append(out, d)
	}
	return out, nil
}
