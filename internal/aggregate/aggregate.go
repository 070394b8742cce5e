package aggregate

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/wakala/settlement/internal/domain"
)

// Key is a grouping key. String must be unique per key value and sort in the
// order rows are reported.
type Key interface {
	comparable
	String() string
}

// Aggregate holds the sums of one group.
type Aggregate struct {
	Amount           float64 `json:"amount"`
	Volume           int     `json:"volume"`
	Count            int     `json:"count"`
	SourceFee        float64 `json:"source_fee"`
	SourceSettlement float64 `json:"source_settlement"`
}

type accumulator struct {
	amount, fee, settlement decimal.Decimal
	volume, count           int
}

func (a *accumulator) add(t domain.Transaction) {
	a.amount = a.amount.Add(decimal.NewFromFloat(t.Amount))
	if t.SourceFee != nil {
		a.fee = a.fee.Add(decimal.NewFromFloat(*t.SourceFee))
	}
	if t.SourceSettlementAmount != nil {
		a.settlement = a.settlement.Add(decimal.NewFromFloat(*t.SourceSettlementAmount))
	}
	v := t.Volume
	if v <= 0 {
		v = 1
	}
	a.volume += v
	a.count++
}

func (a *accumulator) result() Aggregate {
	f := func(d decimal.Decimal) float64 {
		v, _ := d.Round(2).Float64()
		return v
	}
	return Aggregate{
		Amount:           f(a.amount),
		Volume:           a.volume,
		Count:            a.count,
		SourceFee:        f(a.fee),
		SourceSettlement: f(a.settlement),
	}
}

// Group sums transactions per key. Transactions are visited in (key, date, id)
// order so the result does not depend on input order.
func Group[K Key](txns []domain.Transaction, keyFn func(domain.Transaction) K) map[K]Aggregate {
	type keyed struct {
		key K
		str string
		txn domain.Transaction
	}

	items := make([]keyed, len(txns))
	for i, t := range txns {
		k := keyFn(t)
		items[i] = keyed{key: k, str: k.String(), txn: t}
	}
	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i], items[j]
		if a.str != b.str {
			return a.str < b.str
		}
		if !a.txn.Date.Equal(b.txn.Date) {
			return a.txn.Date.Before(b.txn.Date)
		}
		if a.txn.ID != b.txn.ID {
			return a.txn.ID < b.txn.ID
		}
		return a.txn.Amount < b.txn.Amount
	})

	accs := make(map[K]*accumulator)
	for _, it := range items {
		acc, ok := accs[it.key]
		if !ok {
			acc = &accumulator{}
			accs[it.key] = acc
		}
		acc.add(it.txn)
	}

	out := make(map[K]Aggregate, len(accs))
	for k, acc := range accs {
		out[k] = acc.result()
	}
	return out
}

// SortedKeys returns the keys of m ordered by their string form.
func SortedKeys[K Key, V any](m map[K]V) []K {
	keys := make([]K, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })
	return keys
}

// FilterSource returns the transactions reported by src.
func FilterSource(txns []domain.Transaction, src domain.Source) []domain.Transaction {
	var out []domain.Transaction
	for _, t := range txns {
		if t.Source == src {
			out = append(out, t)
		}
	}
	return out
}

// ByAccountDateChannel keys transactions for reconciliation.
func ByAccountDateChannel(t domain.Transaction) domain.ReconciliationKey {
	return domain.ReconciliationKey{AccountID: t.AccountID, Date: domain.Day(t.Date), Channel: t.Channel}
}

// MerchantDayKey keys deposits by merchant, day and channel.
type MerchantDayKey struct {
	MerchantID string
	Date       time.Time
	Channel    domain.Channel
}

func (k MerchantDayKey) String() string {
	return k.MerchantID + "|" + domain.DateKey(k.Date) + "|" + string(k.Channel)
}

// ByMerchantDateChannel keys transactions for deposits. Transactions without
// a merchant id fall back to the account id.
func ByMerchantDateChannel(t domain.Transaction) MerchantDayKey {
	m := t.MerchantID
	if m == "" {
		m = t.AccountID
	}
	return MerchantDayKey{MerchantID: m, Date: domain.Day(t.Date), Channel: t.Channel}
}
