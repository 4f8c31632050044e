package core

import (
	"bytes"
	"encoding/json"
	"math"
	"sort"
	"strconv"
)

// BreakdownEntry holds the accumulated amounts for one GST rate.
type BreakdownEntry struct {
	Rate          float64 `json:"-"`
	TaxableAmount float64 `json:"taxable_amount"`
	TaxAmount     float64 `json:"tax_amount"`
}

// CGST is the central half of the tax for intra-state supplies.
func (e BreakdownEntry) CGST() float64 { return e.TaxAmount / 2 }

// SGST is the state half of the tax for intra-state supplies.
func (e BreakdownEntry) SGST() float64 { return e.TaxAmount / 2 }

// Totals are the sums over every rate of a Breakdown.
type Totals struct {
	TaxableAmount float64 `json:"taxable_amount"`
	TaxAmount     float64 `json:"tax_amount"`
}

// GrandTotal is taxable plus tax.
func (t Totals) GrandTotal() float64 { return t.TaxableAmount + t.TaxAmount }

// Breakdown groups taxable and tax amounts by GST rate. Keys are rates
// normalized with RateKey, so numerically equal rates share one entry.
type Breakdown map[float64]BreakdownEntry

// RateKey normalizes a rate for grouping: rounded to 2 decimal places,
// with negative zero folded into zero. Rates too large to scale are kept
// as given.
func RateKey(rate float64) float64 {
	if math.IsInf(rate*100, 0) {
		return rate
	}
	k := math.Round(rate*100) / 100
	if k == 0 {
		return 0
	}
	return k
}

// Aggregate partitions items by GST rate and sums their taxable amounts and
// taxes. Only Total and GSTRate are read; absent values count as 0. Sums are
// not rounded, negative totals are accumulated as given and the order of
// items does not matter. It is safe for concurrent use.
func Aggregate(items []LineItem) Breakdown {
	b := make(Breakdown)
	for _, it := range items {
		b.add(it.RateOrDefault(), it.TotalOrDefault())
	}
	return b
}

func (b Breakdown) add(rate, taxable float64) {
	key := RateKey(rate)
	e := b[key]
	e.Rate = key
	e.TaxableAmount += taxable
	tax := taxable * key / 100
	if math.IsInf(tax, 0) {
		tax = taxable * (key / 100)
	}
	e.TaxAmount += tax
	b[key] = e
}

// Entries returns the entries sorted ascending by rate.
func (b Breakdown) Entries() []BreakdownEntry {
	out := make([]BreakdownEntry, 0, len(b))
	for _, e := range b {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Rate < out[j].Rate })
	return out
}

// Entry looks up the entry for a rate.
func (b Breakdown) Entry(rate float64) (BreakdownEntry, bool) {
	e, ok := b[RateKey(rate)]
	return e, ok
}

// Totals sums every entry. Summation runs in ascending rate order so the
// result is identical across calls.
func (b Breakdown) Totals() Totals {
	var t Totals
	for _, e := range b.Entries() {
		t.TaxableAmount += e.TaxableAmount
		t.TaxAmount += e.TaxAmount
	}
	return t
}

// Merge returns a new Breakdown holding the sums of b and other.
func (b Breakdown) Merge(other Breakdown) Breakdown {
	out := make(Breakdown, len(b)+len(other))
	for _, src := range []Breakdown{b, other} {
		for k, e := range src {
			cur := out[k]
			cur.Rate = k
			cur.TaxableAmount += e.TaxableAmount
			cur.TaxAmount += e.TaxAmount
			out[k] = cur
		}
	}
	return out
}

// FormatRateKey renders a rate without trailing zeros ("18", "5.5").
func FormatRateKey(rate float64) string {
	return strconv.FormatFloat(RateKey(rate), 'f', -1, 64)
}

// MarshalJSON encodes the breakdown as an object keyed by rate, ascending.
func (b Breakdown) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, e := range b.Entries() {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, _ := json.Marshal(FormatRateKey(e.Rate))
		buf.Write(key)
		buf.WriteByte(':')
		val, err := json.Marshal(e)
		if err != nil {
			return nil, err
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes the object form produced by MarshalJSON.
func (b *Breakdown) UnmarshalJSON(data []byte) error {
	var raw map[string]BreakdownEntry
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := make(Breakdown, len(raw))
	for k, e := range raw {
		rate, err := strconv.ParseFloat(k, 64)
		if err != nil {
			return err
		}
		e.Rate = RateKey(rate)
		out[e.Rate] = e
	}
	*b = out
	return nil
}
