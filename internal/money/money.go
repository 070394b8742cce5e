package money

import "github.com/shopspring/decimal"

// Places is the number of decimal places amounts are kept at.
const Places = 2

// Round rounds v half away from zero to two decimal places.
func Round(v float64) float64 {
	f, _ := decimal.NewFromFloat(v).Round(Places).Float64()
	return f
}

// RoundPtr rounds a nullable amount, keeping nil as nil.
func RoundPtr(v *float64) *float64 {
	if v == nil {
		return nil
	}
	r := Round(*v)
	return &r
}

// Sum adds the values left to right in decimal arithmetic so the result does
// not depend on float accumulation error.
func Sum(values ...float64) float64 {
	total := decimal.Zero
	for _, v := range values {
		total = total.Add(decimal.NewFromFloat(v))
	}
	f, _ := total.Float64()
	return f
}

// Accumulator is an order-stable running total.
type Accumulator struct {
	total decimal.Decimal
}

// Add appends v to the running total.
func (a *Accumulator) Add(v float64) {
	a.total = a.total.Add(decimal.NewFromFloat(v))
}

// Value returns the running total rounded to two decimal places.
func (a *Accumulator) Value() float64 {
	f, _ := a.total.Round(Places).Float64()
	return f
}

// MulDiv returns a × b / divisor rounded to two decimal places. A zero
// divisor yields zero.
func MulDiv(a, b, divisor float64) float64 {
	if divisor == 0 {
		return 0
	}
	r := decimal.NewFromFloat(a).Mul(decimal.NewFromFloat(b)).Div(decimal.NewFromFloat(divisor))
	f, _ := r.Round(Places).Float64()
	return f
}

// Mul returns a × b rounded to two decimal places.
func Mul(a, b float64) float64 {
	f, _ := decimal.NewFromFloat(a).Mul(decimal.NewFromFloat(b)).Round(Places).Float64()
	return f
}

// Deref returns *v, or 0 when v is nil.
func Deref(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}

// Ptr returns a pointer to v.
func Ptr(v float64) *float64 {
	return &v
}
