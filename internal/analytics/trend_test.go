package analytics

import (
	"math"
	"testing"
	"time"

	"taxlyzer/internal/core"
)

func inv(id string, created time.Time, items ...core.LineItem) core.InvoiceWithItems {
	return core.InvoiceWithItems{
		Invoice: core.Invoice{ID: id, CreatedAt: created},
		Items:   items,
	}
}

func item(name, hsn string, total, rate float64) core.LineItem {
	return core.LineItem{Name: name, HSNCode: hsn, Total: core.Float(total), GSTRate: core.Float(rate)}
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 10, 30, 0, 0, time.UTC)
}

func approx(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestParseGroupBy(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", GroupMonth},
		{"DAY", GroupDay},
		{" week ", GroupWeek},
		{"quarter", GroupQuarter},
		{"year", GroupMonth},
		{"fortnight", GroupMonth},
	}
	for _, tt := range tests {
		if got := ParseGroupBy(tt.in); got != tt.want {
			t.Errorf("ParseGroupBy(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestBucketStartAndLabel(t *testing.T) {
	// Thursday
	ts := time.Date(2024, time.August, 15, 23, 0, 0, 0, time.UTC)
	tests := []struct {
		group     string
		wantStart string
		wantLabel string
	}{
		{GroupDay, "2024-08-15", "Aug 15, 2024"},
		{GroupWeek, "2024-08-12", "Week of Aug 12, 2024"},
		{GroupMonth, "2024-08-01", "Aug 2024"},
		{GroupQuarter, "2024-07-01", "Q3 2024"},
	}
	for _, tt := range tests {
		start := BucketStart(ts, tt.group)
		if got := start.Format("2006-01-02"); got != tt.wantStart {
			t.Errorf("%s: start = %s, want %s", tt.group, got, tt.wantStart)
		}
		if got := PeriodLabel(start, tt.group); got != tt.wantLabel {
			t.Errorf("%s: label = %q, want %q", tt.group, got, tt.wantLabel)
		}
	}
}

func TestBucketStartSundayBelongsToPreviousWeek(t *testing.T) {
	sunday := time.Date(2024, time.August, 18, 12, 0, 0, 0, time.UTC)
	if got := BucketStart(sunday, GroupWeek).Format("2006-01-02"); got != "2024-08-12" {
		t.Fatalf("week start = %s", got)
	}
}

func TestTimeSeriesFillsGaps(t *testing.T) {
	invoices := []core.InvoiceWithItems{
		inv("a", day(2024, time.January, 5), item("Rice", "1006", 100, 5)),
		inv("b", day(2024, time.March, 9), item("Phone", "8517", 1000, 18)),
		inv("c", day(2024, time.March, 20)),
	}

	series := TimeSeries(invoices, GroupMonth)
	if len(series) != 3 {
		t.Fatalf("len(series) = %d, want 3", len(series))
	}
	if series[0].Period != "Jan 2024" || series[1].Period != "Feb 2024" || series[2].Period != "Mar 2024" {
		t.Errorf("periods = %q %q %q", series[0].Period, series[1].Period, series[2].Period)
	}
	if series[1].InvoiceCount != 0 || series[1].TotalTax != 0 {
		t.Errorf("gap bucket = %+v", series[1])
	}
	if series[2].InvoiceCount != 2 || !approx(series[2].TotalTax, 180) || !approx(series[2].TotalTaxableValue, 1000) {
		t.Errorf("march bucket = %+v", series[2])
	}
	if series[0].Date != "2024-01-01" {
		t.Errorf("date = %s", series[0].Date)
	}
}

func TestTimeSeriesEmpty(t *testing.T) {
	if got := TimeSeries(nil, GroupDay); got == nil || len(got) != 0 {
		t.Fatalf("TimeSeries(nil) = %#v", got)
	}
}

func TestSummarize(t *testing.T) {
	invoices := []core.InvoiceWithItems{
		inv("a", day(2024, time.May, 1), item("Rice", "1006", 100, 5), item("Soap", "3401", 200, 18)),
		inv("b", day(2024, time.May, 2), item("Pen", "9608", 50, 12)),
		inv("c", day(2024, time.May, 3)),
	}
	s := Summarize(invoices)
	if s.InvoiceCount != 3 || s.ItemCount != 3 {
		t.Fatalf("counts = %+v", s)
	}
	wantTax := 5.0 + 36 + 6
	if !approx(s.TotalTax, wantTax) || !approx(s.TotalTaxable, 350) {
		t.Errorf("totals = %+v", s)
	}
	if !approx(s.AvgTaxPerInvoice, wantTax/2) || !approx(s.AvgItemsPerInvoice, 1.5) {
		t.Errorf("averages = %+v", s)
	}
}

func TestTopHSNCodes(t *testing.T) {
	invoices := []core.InvoiceWithItems{
		inv("a", day(2024, time.May, 1),
			item("Basmati Rice", "1006", 100, 5),
			item("Phone", "8517", 1000, 18),
			item("Loose", "", 10, 0)),
		inv("b", day(2024, time.May, 2),
			item("Brown Rice", "1006", 300, 5),
			item("Charger", "8504", 500, 18)),
	}

	top := TopHSNCodes(invoices, 0)
	if len(top) != 3 {
		t.Fatalf("len(top) = %d, want 3", len(top))
	}
	if top[0].HSNCode != "1006" || top[0].Count != 2 || top[0].Description != "Basmati Rice" {
		t.Errorf("top[0] = %+v", top[0])
	}
	if !approx(top[0].TotalAmount, 400) || !approx(top[0].TotalTax, 20) || top[0].GSTRate != 5 {
		t.Errorf("top[0] amounts = %+v", top[0])
	}
	// equal counts sort by code
	if top[1].HSNCode != "8504" || top[2].HSNCode != "8517" {
		t.Errorf("tie order = %s, %s", top[1].HSNCode, top[2].HSNCode)
	}

	if got := TopHSNCodes(invoices, 1); len(got) != 1 {
		t.Errorf("limit 1 returned %d", len(got))
	}
}

func TestSlabDistributionMatchesAggregate(t *testing.T) {
	invoices := []core.InvoiceWithItems{
		inv("a", day(2024, time.May, 1), item("Rice", "", 100, 5), item("TV", "", 1000, 28)),
		inv("b", day(2024, time.May, 2), item("Dal", "", 300, 5.001), core.LineItem{Name: "Unknown"}),
	}
	dist := SlabDistribution(invoices)
	if len(dist) != 3 {
		t.Fatalf("len(dist) = %d: %+v", len(dist), dist)
	}
	if dist[0].Slab != 0 || dist[0].Count != 1 {
		t.Errorf("zero slab = %+v", dist[0])
	}
	if dist[1].Slab != 5 || dist[1].Count != 2 || !approx(dist[1].TotalAmount, 400) || !approx(dist[1].TotalTax, 20) {
		t.Errorf("5%% slab = %+v", dist[1])
	}
	if dist[2].Slab != 28 || !approx(dist[2].TotalTax, 280) {
		t.Errorf("28%% slab = %+v", dist[2])
	}
}

func TestAnalyze(t *testing.T) {
	invoices := []core.InvoiceWithItems{
		inv("a", day(2024, time.February, 10), item("Rice", "1006", 100, 5)),
		inv("b", day(2024, time.May, 2), item("Pen", "9608", 50, 12)),
	}
	a := Analyze(invoices, GroupQuarter)
	if a.GroupBy != GroupQuarter || len(a.TimeSeries) != 2 {
		t.Fatalf("analysis = %+v", a)
	}
	if a.TimeSeries[0].Period != "Q1 2024" || a.TimeSeries[1].Period != "Q2 2024" {
		t.Errorf("periods = %q, %q", a.TimeSeries[0].Period, a.TimeSeries[1].Period)
	}
	if len(a.TopHSNCodes) != 2 || len(a.SlabDistribution) != 2 {
		t.Errorf("top/slabs = %d/%d", len(a.TopHSNCodes), len(a.SlabDistribution))
	}
}
