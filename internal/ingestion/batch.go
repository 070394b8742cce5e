package ingestion

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/wakala/settlement/internal/domain"
)

// Currency is the only settlement currency accepted.
const Currency = "MYR"

// batchFile is a batch of already-normalized transactions from one source.
type batchFile struct {
	Source       string       `json:"source"`
	Transactions []batchEntry `json:"transactions"`
}

type batchEntry struct {
	ID                     string   `json:"id"`
	AccountID              string   `json:"account_id"`
	MerchantID             string   `json:"merchant_id"`
	TransactionDate        string   `json:"transaction_date"`
	Channel                string   `json:"channel"`
	Currency               string   `json:"currency"`
	Amount                 float64  `json:"amount"`
	Volume                 int      `json:"volume"`
	SourceFee              *float64 `json:"source_fee"`
	SourceSettlementAmount *float64 `json:"source_settlement_amount"`
}

// decodeBatch decodes a batch and normalizes every entry. Invalid entries
// are skipped and itemized in the report.
func decodeBatch(data []byte, hash string, loc *time.Location) (domain.Source, []domain.Transaction, domain.Report, error) {
	var report domain.Report

	var file batchFile
	if err := json.Unmarshal(data, &file); err != nil {
		return "", nil, report, fmt.Errorf("%w: unmarshal batch: %v", domain.ErrValidation, err)
	}

	source := domain.Source(strings.ToLower(strings.TrimSpace(file.Source)))
	if source != domain.SourceKira && source != domain.SourcePG {
		return "", nil, report, fmt.Errorf("%w: unknown source %q", domain.ErrValidation, file.Source)
	}

	txns := make([]domain.Transaction, 0, len(file.Transactions))
	for i, e := range file.Transactions {
		rowKey := fmt.Sprintf("transaction %d", i)

		if strings.TrimSpace(e.AccountID) == "" && strings.TrimSpace(e.MerchantID) == "" {
			report.Add(domain.ValidationFault(rowKey, "account_id", "account_id or merchant_id is required"))
			continue
		}
		date, err := businessDate(e.TransactionDate, loc)
		if err != nil {
			report.Add(domain.ValidationFault(rowKey, "transaction_date", err.Error()))
			continue
		}
		if c := strings.ToUpper(strings.TrimSpace(e.Currency)); c != "" && c != Currency {
			report.Add(domain.ValidationFault(rowKey, "currency", fmt.Sprintf("unsupported currency %q", e.Currency)))
			continue
		}

		t := domain.Transaction{
			ID:                     strings.TrimSpace(e.ID),
			Source:                 source,
			AccountID:              strings.TrimSpace(e.AccountID),
			MerchantID:             strings.TrimSpace(e.MerchantID),
			Date:                   date,
			Channel:                domain.CategorizeChannel(e.Channel),
			Amount:                 e.Amount,
			Volume:                 e.Volume,
			SourceFee:              e.SourceFee,
			SourceSettlementAmount: e.SourceSettlementAmount,
		}
		if t.ID == "" {
			t.ID = domain.RowID("transaction", hash, strconv.Itoa(i))
		} else {
			t.ID = string(source) + ":" + t.ID
		}
		if t.AccountID == "" {
			t.AccountID = t.MerchantID
		}
		if t.MerchantID == "" {
			t.MerchantID = t.AccountID
		}
		if t.Volume <= 0 {
			t.Volume = 1
		}
		txns = append(txns, t)
	}
	return source, txns, report, nil
}

// businessDate reads a YYYY-MM-DD date, or a timestamp whose calendar day is
// taken in loc.
func businessDate(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if d, err := time.Parse(domain.DateLayout, s); err == nil {
		return d, nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05"} {
		t, err := time.ParseInLocation(layout, s, loc)
		if err == nil {
			return domain.Day(t.In(loc)), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid transaction date %q", s)
}
