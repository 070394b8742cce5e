package ledger

import (
	"fmt"

	"github.com/wakala/settlement/internal/domain"
)

// Overridable ledger fields.
const (
	FieldSettlementFund        = "settlement_fund"
	FieldSettlementCharges     = "settlement_charges"
	FieldWithdrawalAmount      = "withdrawal_amount"
	FieldWithdrawalRate        = "withdrawal_rate"
	FieldTopupPayoutPool       = "topup_payout_pool"
	FieldCommissionRateFPX     = "commission_rate_fpx"
	FieldCommissionRateEWallet = "commission_rate_ewallet"
	FieldVolume                = "volume"
	FieldCommissionRate        = "commission_rate"
	FieldDebit                 = "debit"
	FieldRemarks               = "remarks"
)

// DefaultCommissionDivisor is the basis agent commission rates are quoted in.
const DefaultCommissionDivisor = 1000

// AgentVariant selects the agent ledger columns in use.
type AgentVariant struct {
	// HasDebit enables the debit column and its term in the balance.
	HasDebit bool
	// TracksAccumulative enables the accumulative balance column.
	TracksAccumulative bool
	// Divisor is applied to commission rates.
	Divisor float64
}

// Engine recomputes merchant and agent ledgers for one period at a time.
// It holds no state between calls.
type Engine struct {
	variant AgentVariant
}

func NewEngine(variant AgentVariant) *Engine {
	if variant.Divisor <= 0 {
		variant.Divisor = DefaultCommissionDivisor
	}
	return &Engine{variant: variant}
}

func (e *Engine) Variant() AgentVariant {
	return e.variant
}

// openingSeed returns the seed to start a fold from. A period with no inputs
// and no seed is a data gap.
func openingSeed(entity string, t domain.LedgerType, period domain.Period, seed *domain.CarryForward, hasInputs bool) (domain.CarryForward, error) {
	if seed != nil {
		return *seed, nil
	}
	if !hasInputs {
		return domain.CarryForward{}, fmt.Errorf("%w: %s ledger %s %s has no inputs and no carry-forward", domain.ErrDataGap, t, entity, period)
	}
	return domain.CarryForward{Entity: entity, Ledger: t, Period: period.Prev()}, nil
}
