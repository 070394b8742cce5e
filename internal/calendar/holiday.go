package calendar

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/wakala/settlement/internal/domain"
)

// AddOnHoliday is an operator-declared non-business day on top of the fixed
// public holidays.
type AddOnHoliday struct {
	Date        time.Time `json:"date"`
	Description string    `json:"description"`
}

// HolidayEntry is one unvalidated add-on holiday as supplied by the caller.
type HolidayEntry struct {
	Date        string `json:"date"`
	Description string `json:"description"`
}

// HolidaySet is an immutable snapshot of the fixed and add-on holidays.
// Updates return a new snapshot; a value may be shared between goroutines.
type HolidaySet struct {
	fixed map[string]struct{}
	addOn map[string]AddOnHoliday
}

// NewHolidaySet builds a snapshot from fixed holiday dates and add-on entries.
// Duplicate add-on dates collapse to the last one.
func NewHolidaySet(fixed []time.Time, addOn []AddOnHoliday) HolidaySet {
	h := HolidaySet{
		fixed: make(map[string]struct{}, len(fixed)),
		addOn: make(map[string]AddOnHoliday, len(addOn)),
	}
	for _, d := range fixed {
		h.fixed[domain.DateKey(d)] = struct{}{}
	}
	for _, a := range addOn {
		a.Date = domain.Day(a.Date)
		h.addOn[domain.DateKey(a.Date)] = a
	}
	return h
}

// IsHoliday reports whether d is a fixed or add-on holiday.
func (h HolidaySet) IsHoliday(d time.Time) bool {
	key := domain.DateKey(d)
	if _, ok := h.fixed[key]; ok {
		return true
	}
	_, ok := h.addOn[key]
	return ok
}

// IsBusinessDay is false on weekends and holidays.
func (h HolidaySet) IsBusinessDay(d time.Time) bool {
	switch d.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}
	return !h.IsHoliday(d)
}

// AddOnHolidays lists the add-on set in date order.
func (h HolidaySet) AddOnHolidays() []AddOnHoliday {
	out := make([]AddOnHoliday, 0, len(h.addOn))
	for _, a := range h.addOn {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}

// FixedCount returns the number of fixed holidays in the snapshot.
func (h HolidaySet) FixedCount() int {
	return len(h.fixed)
}

// ReplaceResult itemizes a ReplaceAddOnHolidays call.
type ReplaceResult struct {
	Accepted []AddOnHoliday `json:"accepted"`
	Report   domain.Report  `json:"report"`
}

// ReplaceAddOnHolidays returns a new snapshot whose add-on set is exactly the
// valid entries. Invalid entries are rejected one by one and listed in the
// result; they do not prevent the valid ones from replacing the set.
func (h HolidaySet) ReplaceAddOnHolidays(entries []HolidayEntry) (HolidaySet, ReplaceResult) {
	var res ReplaceResult
	next := HolidaySet{
		fixed: h.fixed,
		addOn: make(map[string]AddOnHoliday, len(entries)),
	}

	for i, e := range entries {
		raw := strings.TrimSpace(e.Date)
		d, err := time.Parse(domain.DateLayout, raw)
		if err != nil {
			res.Report.Add(domain.ValidationFault(
				fmt.Sprintf("entry %d", i), "date",
				fmt.Sprintf("invalid date %q", e.Date),
			))
			continue
		}
		next.addOn[domain.DateKey(d)] = AddOnHoliday{Date: d, Description: strings.TrimSpace(e.Description)}
	}

	res.Accepted = next.AddOnHolidays()
	return next, res
}
