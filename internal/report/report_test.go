package report

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"taxlyzer/internal/core"
)

func sampleItems() []core.LineItem {
	return []core.LineItem{
		{ID: "i1", Name: "Basmati Rice 5kg", Quantity: core.Float(2), UnitPrice: core.Float(250), Total: core.Float(500), GSTRate: core.Float(5)},
		{ID: "i2", Name: "A very long product name that will not fit the cell", Quantity: core.Float(1), UnitPrice: core.Float(1000), Total: core.Float(1000), GSTRate: core.Float(18)},
		{ID: "i3", Name: "Soap", Total: core.Float(100), GSTRate: core.Float(18)},
	}
}

func sampleReport() InvoiceReport {
	inv := core.Invoice{ID: "inv-1", FileName: "bill.csv", CreatedAt: time.Date(2024, 4, 3, 9, 0, 0, 0, time.UTC)}
	return NewInvoiceReport(inv, sampleItems(), time.Date(2024, 4, 5, 12, 0, 0, 0, time.UTC))
}

func TestPDF(t *testing.T) {
	body, err := PDF(sampleReport())
	if err != nil {
		t.Fatalf("PDF() error = %v", err)
	}
	if !bytes.HasPrefix(body, []byte("%PDF-")) {
		t.Fatalf("output is not a PDF: %q", body[:min(len(body), 16)])
	}
}

func TestBreakdownRows(t *testing.T) {
	rows := BreakdownRows(sampleReport().Breakdown, core.FormatPlain)
	want := [][]string{
		{"5%", "500.00", "12.50", "12.50", "25.00"},
		{"18%", "1100.00", "99.00", "99.00", "198.00"},
		{"Total", "1600.00", "111.50", "111.50", "223.00"},
	}
	if len(rows) != len(want) {
		t.Fatalf("rows = %v, want %v", rows, want)
	}
	for i := range want {
		if strings.Join(rows[i], "|") != strings.Join(want[i], "|") {
			t.Errorf("row %d = %v, want %v", i, rows[i], want[i])
		}
	}

	empty := BreakdownRows(core.Breakdown{}, core.FormatPlain)
	if len(empty) != 1 || empty[0][0] != "Total" || empty[0][4] != "0.00" {
		t.Errorf("empty breakdown rows = %v", empty)
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("short"); got != "short" {
		t.Errorf("truncate(short) = %q", got)
	}
	got := truncate(strings.Repeat("x", 40))
	if len([]rune(got)) != maxNameLen || !strings.HasSuffix(got, "...") {
		t.Errorf("truncate(long) = %q", got)
	}
}

func TestJSON(t *testing.T) {
	body, err := JSON(sampleReport())
	if err != nil {
		t.Fatalf("JSON() error = %v", err)
	}
	var got struct {
		InvoiceID    string              `json:"invoice_id"`
		Items        []map[string]any    `json:"items"`
		Summary      core.InvoiceSummary `json:"summary"`
		GSTBreakdown map[string]struct {
			TaxableAmount float64 `json:"taxable_amount"`
			TaxAmount     float64 `json:"tax_amount"`
		} `json:"gst_breakdown"`
	}
	if err := json.Unmarshal(body, &got); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if got.InvoiceID != "inv-1" || len(got.Items) != 3 {
		t.Errorf("report = %+v", got)
	}
	if got.Summary.Subtotal != 1600 || got.Summary.TotalGST != 223 || got.Summary.GrandTotal != 1823 {
		t.Errorf("summary = %+v", got.Summary)
	}
	if e, ok := got.GSTBreakdown["18"]; !ok || e.TaxableAmount != 1100 || e.TaxAmount != 198 {
		t.Errorf("18%% entry = %+v (present %v)", e, ok)
	}
	if !bytes.Contains(body, []byte("\n    \"invoice_id\"")) {
		t.Errorf("expected four-space indentation")
	}
}

func gstr1Invoices() []core.InvoiceWithItems {
	return []core.InvoiceWithItems{
		{
			Invoice: core.Invoice{ID: "inv-1", CreatedAt: time.Date(2024, 4, 3, 9, 0, 0, 0, time.UTC)},
			Items:   sampleItems(),
		},
		{Invoice: core.Invoice{ID: "empty", CreatedAt: time.Date(2024, 4, 4, 9, 0, 0, 0, time.UTC)}},
	}
}

func TestGSTR1Rows(t *testing.T) {
	rows := GSTR1Rows(gstr1Invoices(), DefaultGSTR1Options())
	if len(rows) != 2 {
		t.Fatalf("len(rows) = %d, want 2", len(rows))
	}
	r := rows[1]
	if r.Rate != 18 || r.TaxableValue != 1100 || r.CentralTax != 99 || r.StateTax != 99 {
		t.Errorf("18%% row = %+v", r)
	}
	if r.InvoiceDate != "03-04-2024" || r.InvoiceValue != 1823 || r.ReverseCharge != "N" {
		t.Errorf("row metadata = %+v", r)
	}
}

func TestGSTR1CSV(t *testing.T) {
	rows := GSTR1Rows(gstr1Invoices(), GSTR1Options{SupplierGSTIN: "29ABCDE1234F1Z5"})
	body, ctype, err := GSTR1(rows, "")
	if err != nil {
		t.Fatalf("GSTR1() error = %v", err)
	}
	if ctype != "text/csv" {
		t.Errorf("content type = %q", ctype)
	}
	records, err := csv.NewReader(bytes.NewReader(body)).ReadAll()
	if err != nil {
		t.Fatalf("invalid CSV: %v", err)
	}
	if len(records) != 3 || records[0][0] != "GSTIN" || records[1][0] != "29ABCDE1234F1Z5" {
		t.Fatalf("records = %v", records)
	}
	if records[1][8] != "5" || records[1][9] != "500.00" || records[1][11] != "12.50" {
		t.Errorf("5%% row = %v", records[1])
	}
}

func TestGSTR1XLSX(t *testing.T) {
	rows := GSTR1Rows(gstr1Invoices(), DefaultGSTR1Options())
	body, _, err := GSTR1(rows, FormatXLSX)
	if err != nil {
		t.Fatalf("GSTR1() error = %v", err)
	}
	f, err := excelize.OpenReader(bytes.NewReader(body))
	if err != nil {
		t.Fatalf("invalid workbook: %v", err)
	}
	defer f.Close()

	got, err := f.GetRows(gstr1Sheet)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 || got[0][12] != "State/UT Tax" || got[2][2] != "inv-1" {
		t.Errorf("sheet rows = %v", got)
	}
}

func TestGSTR1UnknownFormat(t *testing.T) {
	_, _, err := GSTR1(nil, "pdf")
	if !errors.Is(err, core.ErrUnsupportedFormat) {
		t.Fatalf("error = %v, want ErrUnsupportedFormat", err)
	}
}
