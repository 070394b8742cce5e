package fee

import (
	"fmt"
	"strings"

	"github.com/wakala/settlement/internal/domain"
	"github.com/wakala/settlement/internal/money"
)

type Type string

const (
	Percentage Type = "percentage"
	PerVolume  Type = "per_volume"
	Flat       Type = "flat"
)

// PercentDivisor is the divisor for processor fee rates quoted per hundred.
const PercentDivisor = 100

// Parse normalizes a fee type label.
func Parse(s string) (Type, error) {
	t := Type(strings.ToLower(strings.TrimSpace(s)))
	switch t {
	case Percentage, PerVolume, Flat:
		return t, nil
	}
	return "", fmt.Errorf("%w: unknown fee type %q", domain.ErrConfiguration, s)
}

// Compute returns the fee amount rounded to two decimal places. An unknown
// fee type is a configuration error and yields no amount.
func Compute(feeType string, rate, base float64, volume int, divisor float64) (float64, error) {
	t, err := Parse(feeType)
	if err != nil {
		return 0, err
	}

	switch t {
	case Percentage:
		if divisor == 0 {
			return 0, fmt.Errorf("%w: zero percentage divisor", domain.ErrConfiguration)
		}
		return money.MulDiv(base, rate, divisor), nil
	case PerVolume:
		return money.Mul(float64(volume), rate), nil
	default:
		return money.Round(rate), nil
	}
}

// Optional computes the fee when both a type and a rate are configured. It
// returns nil without error when either is missing.
func Optional(feeType string, rate *float64, base float64, volume int, divisor float64) (*float64, error) {
	if strings.TrimSpace(feeType) == "" || rate == nil {
		return nil, nil
	}
	v, err := Compute(feeType, *rate, base, volume, divisor)
	if err != nil {
		return nil, err
	}
	return &v, nil
}
