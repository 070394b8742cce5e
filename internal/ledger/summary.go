package ledger

import (
	"fmt"
	"sort"
	"time"

	"github.com/wakala/settlement/internal/domain"
	"github.com/wakala/settlement/internal/money"
)

type View string

const (
	// ViewMerchants sums each merchant's deposit amounts per month.
	ViewMerchants View = "merchants"
	// ViewAgents sums each agent's available commission per month.
	ViewAgents View = "agents"
	// ViewPayoutPool takes each merchant's highest payout pool balance per month.
	ViewPayoutPool View = "payout_pool"
)

func ParseView(s string) (View, error) {
	switch v := View(s); v {
	case ViewMerchants, ViewAgents, ViewPayoutPool:
		return v, nil
	}
	return "", fmt.Errorf("%w: unknown summary view %q", domain.ErrValidation, s)
}

// Entry is one dated value feeding a summary.
type Entry struct {
	Entity string
	Date   time.Time
	Value  float64
}

type EntityTotals struct {
	Months [12]float64 `json:"months"`
	Total  float64     `json:"total"`
}

// Summary is a year of monthly totals per entity.
type Summary struct {
	Year          int                      `json:"year"`
	View          View                     `json:"view"`
	Entities      []string                 `json:"entities"`
	Data          map[string]*EntityTotals `json:"data"`
	MonthlyTotals [12]float64              `json:"monthly_totals"`
	GrandTotal    float64                  `json:"grand_total"`
}

// Summarize folds entries of the given year into monthly totals. Entries
// outside the year are ignored.
func Summarize(view View, year int, entries []Entry) Summary {
	type cell struct {
		acc money.Accumulator
		max float64
		set bool
	}
	cells := make(map[string]*[12]cell)

	sorted := append([]Entry(nil), entries...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Entity != sorted[j].Entity {
			return sorted[i].Entity < sorted[j].Entity
		}
		return sorted[i].Date.Before(sorted[j].Date)
	})

	for _, e := range sorted {
		if e.Date.Year() != year {
			continue
		}
		months, ok := cells[e.Entity]
		if !ok {
			months = &[12]cell{}
			cells[e.Entity] = months
		}
		c := &months[e.Date.Month()-1]
		c.acc.Add(e.Value)
		if !c.set || e.Value > c.max {
			c.max, c.set = e.Value, true
		}
	}

	s := Summary{Year: year, View: view, Data: make(map[string]*EntityTotals, len(cells))}
	var monthly [12]money.Accumulator
	var grand money.Accumulator
	for entity, months := range cells {
		s.Entities = append(s.Entities, entity)
		t := &EntityTotals{}
		var total money.Accumulator
		for m := range months {
			v := months[m].acc.Value()
			if view == ViewPayoutPool {
				v = money.Round(months[m].max)
			}
			t.Months[m] = v
			total.Add(v)
			monthly[m].Add(v)
			grand.Add(v)
		}
		t.Total = total.Value()
		s.Data[entity] = t
	}
	sort.Strings(s.Entities)
	for m := range monthly {
		s.MonthlyTotals[m] = monthly[m].Value()
	}
	s.GrandTotal = grand.Value()
	return s
}
