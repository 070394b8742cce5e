package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

var rowNamespace = uuid.MustParse("6f1c2a8e-3b7d-5e41-9a0c-2d5f8b6e4c17")

// RowID derives the stable row identifier for a row key. The same kind and
// parts always produce the same id, so syncs of the same (entity, date)
// reuse it.
func RowID(kind string, parts ...string) string {
	name := kind + "|" + strings.Join(parts, "|")
	return uuid.NewSHA1(rowNamespace, []byte(name)).String()
}

// ReconciliationKey identifies one reconciliation row.
type ReconciliationKey struct {
	AccountID string
	Date      time.Time
	Channel   Channel
}

func (k ReconciliationKey) String() string {
	return k.AccountID + "|" + DateKey(k.Date) + "|" + string(k.Channel)
}

// Partition is the (account, channel) series cumulative variance runs over.
func (k ReconciliationKey) Partition() string {
	return k.AccountID + "|" + string(k.Channel)
}

func (k ReconciliationKey) RowID() string {
	return RowID("reconciliation", k.AccountID, DateKey(k.Date), string(k.Channel))
}

// ReconciliationRecord compares the internal ledger (kira) against the
// payment gateway (pg) for one account, day and channel.
type ReconciliationRecord struct {
	ID                   string     `json:"id"`
	AccountID            string     `json:"account_id"`
	Date                 time.Time  `json:"transaction_date"`
	Channel              Channel    `json:"channel"`
	KiraAmount           float64    `json:"kira_amount"`
	MDR                  float64    `json:"mdr"`
	KiraSettlementAmount float64    `json:"kira_settlement_amount"`
	PGAmount             float64    `json:"pg_amount"`
	Volume               int        `json:"volume"`
	SettlementRule       string     `json:"settlement_rule,omitempty"`
	SettlementDate       *time.Time `json:"settlement_date,omitempty"`
	FeeType              string     `json:"fee_type,omitempty"`
	FeeRate              *float64   `json:"fee_rate,omitempty"`
	Fee                  *float64   `json:"fee,omitempty"`
	SettlementAmount     *float64   `json:"settlement_amount,omitempty"`
	DailyVariance        float64    `json:"daily_variance"`
	CumulativeVariance   float64    `json:"cumulative_variance"`
	Remarks              string     `json:"remarks,omitempty"`
}

func (r ReconciliationRecord) Key() ReconciliationKey {
	return ReconciliationKey{AccountID: r.AccountID, Date: r.Date, Channel: r.Channel}
}

// ChannelDeposit holds the per-channel columns of a deposit row.
type ChannelDeposit struct {
	Amount         float64    `json:"amount"`
	Volume         int        `json:"volume"`
	FeeType        string     `json:"fee_type,omitempty"`
	FeeRate        *float64   `json:"fee_rate,omitempty"`
	FeeAmount      *float64   `json:"fee_amount,omitempty"`
	Gross          float64    `json:"gross"`
	SettlementRule string     `json:"settlement_rule,omitempty"`
	SettlementDate *time.Time `json:"settlement_date,omitempty"`
}

// DepositRecord is one merchant day of deposits plus the funds that become
// available on that day.
type DepositRecord struct {
	ID               string         `json:"id"`
	MerchantID       string         `json:"merchant_id"`
	Date             time.Time      `json:"transaction_date"`
	FPX              ChannelDeposit `json:"fpx"`
	EWallet          ChannelDeposit `json:"ewallet"`
	TotalAmount      float64        `json:"total_amount"`
	TotalFees        float64        `json:"total_fees"`
	AvailableFPX     float64        `json:"available_fpx"`
	AvailableEWallet float64        `json:"available_ewallet"`
	AvailableTotal   float64        `json:"available_total"`
	Remarks          string         `json:"remarks,omitempty"`
}

// DepositRowID returns the stable id of a merchant's deposit day.
func DepositRowID(merchantID string, date time.Time) string {
	return RowID("deposit", merchantID, DateKey(date))
}

// Channel returns the columns of the given channel.
func (d *DepositRecord) Channel(c Channel) *ChannelDeposit {
	if c == ChannelFPX {
		return &d.FPX
	}
	return &d.EWallet
}
