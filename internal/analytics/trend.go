// Package analytics derives time series and distributions from stored
// invoices. All bucketing happens in UTC.
package analytics

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"taxlyzer/internal/core"
)

const (
	GroupDay     = "day"
	GroupWeek    = "week"
	GroupMonth   = "month"
	GroupQuarter = "quarter"
)

// DefaultTopHSN is the number of HSN codes returned when no limit is given.
const DefaultTopHSN = 10

// ParseGroupBy normalizes a group_by value. Empty or unknown values mean
// month.
func ParseGroupBy(s string) string {
	switch g := strings.ToLower(strings.TrimSpace(s)); g {
	case GroupDay, GroupWeek, GroupMonth, GroupQuarter:
		return g
	default:
		return GroupMonth
	}
}

// BucketStart truncates t to the start of its bucket. Weeks start on Monday.
func BucketStart(t time.Time, groupBy string) time.Time {
	t = t.UTC()
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	switch groupBy {
	case GroupDay:
		return day
	case GroupWeek:
		offset := (int(day.Weekday()) + 6) % 7
		return day.AddDate(0, 0, -offset)
	case GroupQuarter:
		m := ((int(t.Month())-1)/3)*3 + 1
		return time.Date(t.Year(), time.Month(m), 1, 0, 0, 0, 0, time.UTC)
	default:
		return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	}
}

func nextBucket(start time.Time, groupBy string) time.Time {
	switch groupBy {
	case GroupDay:
		return start.AddDate(0, 0, 1)
	case GroupWeek:
		return start.AddDate(0, 0, 7)
	case GroupQuarter:
		return start.AddDate(0, 3, 0)
	default:
		return start.AddDate(0, 1, 0)
	}
}

// PeriodLabel renders the display label of a bucket.
func PeriodLabel(start time.Time, groupBy string) string {
	switch groupBy {
	case GroupDay:
		return start.Format("Jan 02, 2006")
	case GroupWeek:
		return "Week of " + start.Format("Jan 02, 2006")
	case GroupQuarter:
		return fmt.Sprintf("Q%d %d", (int(start.Month())-1)/3+1, start.Year())
	default:
		return start.Format("Jan 2006")
	}
}

// TimeSeries buckets invoices by creation time. Buckets are contiguous from
// the first to the last occupied one, so quiet periods show up as zeros.
func TimeSeries(invoices []core.InvoiceWithItems, groupBy string) []core.TrendPoint {
	if len(invoices) == 0 {
		return []core.TrendPoint{}
	}

	type acc struct {
		count          int
		taxable, taxed float64
	}
	buckets := make(map[time.Time]*acc)
	first, last := time.Time{}, time.Time{}
	for i, inv := range invoices {
		start := BucketStart(inv.Invoice.CreatedAt, groupBy)
		if i == 0 || start.Before(first) {
			first = start
		}
		if i == 0 || start.After(last) {
			last = start
		}
		a := buckets[start]
		if a == nil {
			a = &acc{}
			buckets[start] = a
		}
		t := core.Aggregate(inv.Items).Totals()
		a.count++
		a.taxable += t.TaxableAmount
		a.taxed += t.TaxAmount
	}

	var out []core.TrendPoint
	for b := first; !b.After(last); b = nextBucket(b, groupBy) {
		p := core.TrendPoint{
			Date:   b.Format("2006-01-02"),
			Period: PeriodLabel(b, groupBy),
			Start:  b,
		}
		if a := buckets[b]; a != nil {
			p.InvoiceCount = a.count
			p.TotalTaxableValue = a.taxable
			p.TotalTax = a.taxed
		}
		out = append(out, p)
	}
	return out
}

// Summarize rolls up a window. Averages are taken over invoices that have
// at least one item.
func Summarize(invoices []core.InvoiceWithItems) core.TrendSummary {
	s := core.TrendSummary{InvoiceCount: len(invoices)}
	withItems := 0
	for _, inv := range invoices {
		if len(inv.Items) == 0 {
			continue
		}
		withItems++
		t := core.Aggregate(inv.Items).Totals()
		s.TotalTax += t.TaxAmount
		s.TotalTaxable += t.TaxableAmount
		s.ItemCount += len(inv.Items)
	}
	if withItems > 0 {
		s.AvgTaxPerInvoice = s.TotalTax / float64(withItems)
		s.AvgItemsPerInvoice = float64(s.ItemCount) / float64(withItems)
	}
	return s
}

// TopHSNCodes groups items by non-empty HSN code and returns the most
// frequent ones, ties broken by code. Description and rate come from the
// first item seen with the code.
func TopHSNCodes(invoices []core.InvoiceWithItems, limit int) []core.HSNSummary {
	if limit <= 0 {
		limit = DefaultTopHSN
	}
	byCode := make(map[string]*core.HSNSummary)
	for _, inv := range invoices {
		for _, it := range inv.Items {
			code := strings.TrimSpace(it.HSNCode)
			if code == "" {
				continue
			}
			h := byCode[code]
			if h == nil {
				desc := strings.TrimSpace(it.Name)
				if desc == "" {
					desc = "Item with HSN " + code
				}
				h = &core.HSNSummary{HSNCode: code, Description: desc, GSTRate: core.RateKey(it.RateOrDefault())}
				byCode[code] = h
			}
			rate := core.RateKey(it.RateOrDefault())
			h.Count++
			h.TotalAmount += it.TotalOrDefault()
			h.TotalTax += it.TotalOrDefault() * rate / 100
		}
	}

	out := make([]core.HSNSummary, 0, len(byCode))
	for _, h := range byCode {
		out = append(out, *h)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].HSNCode < out[j].HSNCode
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

// SlabDistribution counts items per GST rate, ascending by rate. Amounts
// match core.Aggregate over the same items.
func SlabDistribution(invoices []core.InvoiceWithItems) []core.SlabSummary {
	counts := make(map[float64]int)
	total := make(core.Breakdown)
	for _, inv := range invoices {
		for _, it := range inv.Items {
			counts[core.RateKey(it.RateOrDefault())]++
		}
		total = total.Merge(core.Aggregate(inv.Items))
	}

	entries := total.Entries()
	out := make([]core.SlabSummary, 0, len(entries))
	for _, e := range entries {
		out = append(out, core.SlabSummary{
			Slab:        e.Rate,
			Count:       counts[e.Rate],
			TotalAmount: e.TaxableAmount,
			TotalTax:    e.TaxAmount,
		})
	}
	return out
}

// Analyze builds the full trend response for invoices already filtered to
// the requested window.
func Analyze(invoices []core.InvoiceWithItems, groupBy string) core.TrendAnalysis {
	return core.TrendAnalysis{
		TimeSeries:       TimeSeries(invoices, groupBy),
		Summary:          Summarize(invoices),
		TopHSNCodes:      TopHSNCodes(invoices, DefaultTopHSN),
		SlabDistribution: SlabDistribution(invoices),
		GroupBy:          groupBy,
	}
}
