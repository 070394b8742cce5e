package domain

import "time"

type LedgerType string

const (
	LedgerMerchant LedgerType = "merchant"
	LedgerAgent    LedgerType = "agent"
)

// LedgerRowID returns the stable id of an entity's ledger day.
func LedgerRowID(t LedgerType, entity string, date time.Time) string {
	return RowID(string(t)+"_ledger", entity, DateKey(date))
}

// MerchantLedgerRow is one day of a merchant's balance & settlement ledger.
type MerchantLedgerRow struct {
	ID         string    `json:"id"`
	MerchantID string    `json:"merchant_id"`
	Date       time.Time `json:"transaction_date"`

	// Computed inputs, taken from the deposit rows.
	AvailableFPX     float64 `json:"available_fpx"`
	AvailableEWallet float64 `json:"available_ewallet"`
	AvailableTotal   float64 `json:"available_total"`

	// Manual inputs.
	SettlementFund    *float64 `json:"settlement_fund"`
	SettlementCharges *float64 `json:"settlement_charges"`
	WithdrawalAmount  *float64 `json:"withdrawal_amount"`
	WithdrawalRate    *float64 `json:"withdrawal_rate"`
	TopupPayoutPool   *float64 `json:"topup_payout_pool"`
	Remarks           string   `json:"remarks,omitempty"`

	// Derived.
	WithdrawalCharges float64 `json:"withdrawal_charges"`
	PayoutPoolBalance float64 `json:"payout_pool_balance"`
	AvailableBalance  float64 `json:"available_balance"`
	TotalBalance      float64 `json:"total_balance"`
}

// AgentLedgerRow is one day of an agent's commission ledger.
type AgentLedgerRow struct {
	ID         string    `json:"id"`
	MerchantID string    `json:"merchant_id"`
	Date       time.Time `json:"transaction_date"`

	// Computed inputs, taken from the deposit rows.
	FPXAmount     float64 `json:"fpx_amount"`
	EWalletAmount float64 `json:"ewallet_amount"`

	// Manual inputs.
	CommissionRateFPX     *float64 `json:"commission_rate_fpx"`
	CommissionRateEWallet *float64 `json:"commission_rate_ewallet"`
	Volume                *float64 `json:"volume"`
	CommissionRate        *float64 `json:"commission_rate"`
	Debit                 *float64 `json:"debit,omitempty"`
	Remarks               string   `json:"remarks,omitempty"`

	// Derived.
	FPXCommission       float64  `json:"fpx_commission"`
	EWalletCommission   float64  `json:"ewallet_commission"`
	Gross               float64  `json:"gross_amount"`
	AvailableFPX        float64  `json:"available_fpx"`
	AvailableEWallet    float64  `json:"available_ewallet"`
	AvailableTotal      float64  `json:"available_total"`
	CommissionAmount    float64  `json:"commission_amount"`
	Balance             float64  `json:"balance"`
	AccumulativeBalance *float64 `json:"accumulative_balance,omitempty"`
}

// CarryForward is the closing state of a ledger period, used as the opening
// state of the next one.
type CarryForward struct {
	Entity              string     `json:"entity"`
	Ledger              LedgerType `json:"ledger"`
	Period              Period     `json:"period"`
	AvailableBalance    float64    `json:"available_balance"`
	PayoutPoolBalance   float64    `json:"payout_pool_balance"`
	Balance             float64    `json:"balance"`
	AccumulativeBalance float64    `json:"accumulative_balance"`
}
