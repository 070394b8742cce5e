package domain

import (
	"strings"
	"time"
)

type Channel string

const (
	ChannelFPX     Channel = "FPX"
	ChannelEWallet Channel = "EWALLET"
)

// Channels lists every channel in the order rows report them.
var Channels = []Channel{ChannelFPX, ChannelEWallet}

// CategorizeChannel maps a raw payment method or channel label onto a
// Channel. Anything mentioning FPX is FPX; everything else, including an
// empty label, is EWALLET.
func CategorizeChannel(raw string) Channel {
	if strings.Contains(strings.ToUpper(strings.TrimSpace(raw)), "FPX") {
		return ChannelFPX
	}
	return ChannelEWallet
}

type Source string

const (
	// SourceKira is the internal ledger source.
	SourceKira Source = "kira"
	// SourcePG is the payment gateway (processor) source.
	SourcePG Source = "pg"
)

// Transaction is a normalized transaction record. It is produced by the
// ingestion collaborator and never modified by the engine.
type Transaction struct {
	ID                     string    `json:"id"`
	Source                 Source    `json:"source"`
	AccountID              string    `json:"account_id"`
	MerchantID             string    `json:"merchant_id"`
	Date                   time.Time `json:"transaction_date"`
	Channel                Channel   `json:"channel"`
	Amount                 float64   `json:"amount"`
	Volume                 int       `json:"volume"`
	SourceFee              *float64  `json:"source_fee,omitempty"`
	SourceSettlementAmount *float64  `json:"source_settlement_amount,omitempty"`
}
