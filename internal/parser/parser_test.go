package parser

import (
	"errors"
	"testing"

	"github.com/xuri/excelize/v2"

	"taxlyzer/internal/adapters"
	"taxlyzer/internal/core"
)

func TestDetectType(t *testing.T) {
	cases := []struct {
		name, ct, want string
		ok             bool
	}{
		{"items.csv", "", TypeCSV, true},
		{"ITEMS.XLSX", "", TypeXLSX, true},
		{"items.json", "", TypeJSON, true},
		{"upload", "application/json", TypeJSON, true},
		{"upload", "text/csv", TypeCSV, true},
		{"upload", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", TypeXLSX, true},
		{"invoice.pdf", "application/pdf", "", false},
	}
	for _, tc := range cases {
		got, err := DetectType(tc.name, tc.ct)
		if tc.ok && (err != nil || got != tc.want) {
			t.Errorf("DetectType(%q, %q) = %q, %v; want %q", tc.name, tc.ct, got, err, tc.want)
		}
		if !tc.ok && !errors.Is(err, core.ErrUnsupportedFormat) {
			t.Errorf("DetectType(%q) error = %v, want ErrUnsupportedFormat", tc.name, err)
		}
	}
}

func TestParseCSV(t *testing.T) {
	data := "\uFEFFItem,Qty,Unit Price,Total,GST Rate,HSN Code\n" +
		"Parle-G Biscuits,10,5,50,,1905\n" +
		"\"Soap, bar\",2,25,50,18,3401\n" +
		",,,,,\n" +
		"Total,,,100,,\n"
	doc, err := Parse("bill.csv", "", []byte(data))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if doc.FileType != TypeCSV || doc.RawText != data {
		t.Fatalf("unexpected document metadata: %q", doc.FileType)
	}
	if len(doc.Records) != 2 {
		t.Fatalf("got %d records, want 2 (blank and total rows dropped)", len(doc.Records))
	}
	items := adapters.ItemsFromMaps(doc.Records)
	if items[1].Name != "Soap, bar" || items[1].RateOrDefault() != 18 {
		t.Fatalf("second item = %+v", items[1])
	}
	if items[0].HasRate() {
		t.Fatalf("empty rate cell should be absent")
	}
}

func TestParseCSVSemicolon(t *testing.T) {
	doc, err := ParseCSV([]byte("item;total;gst_rate\nTea;40;5\n"))
	if err != nil {
		t.Fatalf("ParseCSV: %v", err)
	}
	it := adapters.ItemFromMap(doc.Records[0])
	if it.Name != "Tea" || it.TotalOrDefault() != 40 || it.RateOrDefault() != 5 {
		t.Fatalf("item = %+v", it)
	}
}

func TestParseOnlyTotalsIsNoItems(t *testing.T) {
	_, err := Parse("x.csv", "", []byte("item,total\nGrand Total,10\n"))
	if !errors.Is(err, core.ErrNoItems) {
		t.Fatalf("error = %v, want ErrNoItems", err)
	}
}

func TestParseXLSX(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)
	rows := [][]any{
		{"item", "qty", "unit_price", "total", "gst_rate"},
		{"Television 43in", 1, 30000, 30000, 28},
		{"Rice 5kg", 2, 250, 500, 5},
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+3) // leave two empty rows on top
		if err != nil {
			t.Fatalf("cell name: %v", err)
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			t.Fatalf("SetSheetRow: %v", err)
		}
	}
	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatalf("WriteToBuffer: %v", err)
	}

	doc, err := Parse("items.xlsx", "", buf.Bytes())
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if doc.FileType != TypeXLSX || doc.RawText == "" {
		t.Fatalf("unexpected document: type=%q raw=%q", doc.FileType, doc.RawText)
	}
	items := adapters.ItemsFromMaps(doc.Records)
	if len(items) != 2 {
		t.Fatalf("got %d items, want 2", len(items))
	}
	b := core.Aggregate(items)
	if e, _ := b.Entry(28); e.TaxableAmount != 30000 || e.TaxAmount != 8400 {
		t.Fatalf("28%% entry = %+v", e)
	}
}

func TestParseJSONDocument(t *testing.T) {
	doc, err := Parse("items.json", "", []byte(`{"items":[{"name":"Pen","total":"20","gstRate":12}]}`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	it := adapters.ItemFromMap(doc.Records[0])
	if it.Name != "Pen" || it.TotalOrDefault() != 20 || it.RateOrDefault() != 12 {
		t.Fatalf("item = %+v", it)
	}
}

func TestParseXLSXGarbage(t *testing.T) {
	if _, err := Parse("items.xlsx", "", []byte("not a zip")); err == nil {
		t.Fatalf("expected error for invalid workbook")
	}
}
