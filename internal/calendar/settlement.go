package calendar

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/wakala/settlement/internal/domain"
)

// DefaultMaxRollDays bounds the walk to the next business day.
const DefaultMaxRollDays = 30

var ruleRe = regexp.MustCompile(`^T\+(\d+)$`)

// Rule is a parsed settlement rule such as T+1.
type Rule struct {
	Tag    string
	Offset int
}

func (r Rule) String() string {
	return r.Tag
}

// ParseRule parses a "T+n" tag. Case and surrounding spaces are ignored.
func ParseRule(tag string) (Rule, error) {
	norm := strings.ToUpper(strings.TrimSpace(tag))
	m := ruleRe.FindStringSubmatch(norm)
	if m == nil {
		return Rule{}, fmt.Errorf("%w: unknown settlement rule %q", domain.ErrConfiguration, tag)
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return Rule{}, fmt.Errorf("%w: settlement rule %q: %v", domain.ErrConfiguration, tag, err)
	}
	return Rule{Tag: norm, Offset: n}, nil
}

// Calculator derives settlement dates against one holiday snapshot.
type Calculator struct {
	holidays HolidaySet
	maxRoll  int
}

// NewCalculator creates a calculator. A non-positive maxRoll uses
// DefaultMaxRollDays.
func NewCalculator(holidays HolidaySet, maxRoll int) *Calculator {
	if maxRoll <= 0 {
		maxRoll = DefaultMaxRollDays
	}
	return &Calculator{holidays: holidays, maxRoll: maxRoll}
}

// Holidays returns the snapshot the calculator works against.
func (c *Calculator) Holidays() HolidaySet {
	return c.holidays
}

// Compute adds the rule's offset in calendar days, then rolls forward to the
// next business day. It returns ErrCalendarExhausted when no business day is
// found within the roll cap.
func (c *Calculator) Compute(date time.Time, rule Rule) (time.Time, error) {
	d := domain.Day(date).AddDate(0, 0, rule.Offset)
	for i := 0; !c.holidays.IsBusinessDay(d); i++ {
		if i >= c.maxRoll {
			return time.Time{}, fmt.Errorf("%w: %s %s", domain.ErrCalendarExhausted, domain.DateKey(date), rule.Tag)
		}
		d = d.AddDate(0, 0, 1)
	}
	return d, nil
}

// ComputeTag parses tag and computes the settlement date.
func (c *Calculator) ComputeTag(date time.Time, tag string) (time.Time, error) {
	rule, err := ParseRule(tag)
	if err != nil {
		return time.Time{}, err
	}
	return c.Compute(date, rule)
}
