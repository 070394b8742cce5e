package main

import (
	"encoding/json"
	"fmt"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// entry mirrors the ingestion batch entry format.
type entry struct {
	ID                     string   `json:"id"`
	AccountID              string   `json:"account_id"`
	MerchantID             string   `json:"merchant_id"`
	TransactionDate        string   `json:"transaction_date"`
	Channel                string   `json:"channel"`
	Currency               string   `json:"currency"`
	Amount                 float64  `json:"amount"`
	Volume                 int      `json:"volume"`
	SourceFee              *float64 `json:"source_fee,omitempty"`
	SourceSettlementAmount *float64 `json:"source_settlement_amount,omitempty"`
}

type batch struct {
	Source       string  `json:"source"`
	Transactions []entry `json:"transactions"`
}

var channels = []string{"FPX", "FPX B2C", "Touch n Go", "Boost", "GrabPay"}

func main() {
	rng := rand.New(rand.NewSource(42))
	baseDir := filepath.Join(findTestdataDir(), "seed")
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		panic(err)
	}

	// Date range: 2026-01-01 to 2026-02-28.
	startDate := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	endDate := time.Date(2026, 2, 28, 0, 0, 0, 0, time.UTC)
	dayRange := int(endDate.Sub(startDate).Hours()/24) + 1

	merchants := make([]string, 10)
	for i := range merchants {
		merchants[i] = fmt.Sprintf("M%03d", i+1)
	}

	kira := batch{Source: "kira"}
	pg := batch{Source: "pg"}

	for i := 1; i <= 400; i++ {
		merchant := merchants[rng.Intn(len(merchants))]
		// Both sources describe the same payment; ids only need to be unique
		// per source.
		ref := uuid.NewString()

		day := startDate.AddDate(0, 0, rng.Intn(dayRange))
		at := day.Add(time.Duration(rng.Intn(24*60)) * time.Minute)

		// Amount between 10 and 2000.
		amount := round2(10 + rng.Float64()*1990)
		volume := 1 + rng.Intn(5)
		channel := channels[rng.Intn(len(channels))]

		fee := round2(amount * 0.015)
		settlement := round2(amount - fee)

		kira.Transactions = append(kira.Transactions, entry{
			ID:                     ref,
			AccountID:              "ACC-" + merchant,
			MerchantID:             merchant,
			TransactionDate:        at.Format(time.RFC3339),
			Channel:                channel,
			Currency:               "MYR",
			Amount:                 amount,
			Volume:                 volume,
			SourceFee:              &fee,
			SourceSettlementAmount: &settlement,
		})

		roll := rng.Float64()

		// 8% missing from the gateway side.
		if roll > 0.92 {
			continue
		}

		// 4% amount mismatch of 3-5%.
		pgAmount := amount
		if roll > 0.88 {
			pgAmount = round2(amount * (1 + 0.03 + rng.Float64()*0.02))
		}

		pg.Transactions = append(pg.Transactions, entry{
			ID:              ref,
			AccountID:       "ACC-" + merchant,
			MerchantID:      merchant,
			TransactionDate: at.Format(time.RFC3339),
			Channel:         channel,
			Currency:        "MYR",
			Amount:          pgAmount,
			Volume:          volume,
		})
	}

	writeJSONFile(filepath.Join(baseDir, "kira.json"), kira)
	fmt.Printf("Generated %d kira transactions -> seed/kira.json\n", len(kira.Transactions))
	writeJSONFile(filepath.Join(baseDir, "pg.json"), pg)
	fmt.Printf("Generated %d pg transactions -> seed/pg.json\n", len(pg.Transactions))

	fmt.Println("Test data generation complete.")
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func writeJSONFile(path string, v any) {
	f, err := os.Create(path)
	if err != nil {
		panic(err)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		panic(err)
	}
}

func findTestdataDir() string {
	for _, c := range []string{"testdata", "../testdata", "../../testdata"} {
		if info, err := os.Stat(c); err == nil && info.IsDir() {
			return c
		}
	}
	return "testdata"
}
