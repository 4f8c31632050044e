// Package report renders invoice reports (PDF, JSON) and GSTR-1 exports.
package report

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"

	"taxlyzer/internal/adapters"
	"taxlyzer/internal/core"
)

// Kinds, used for file extensions, metrics labels and archive keys.
const (
	KindPDF   = "pdf"
	KindJSON  = "json"
	KindGSTR1 = "gstr1"
)

// InvoiceReport is the input of the per-invoice renderers.
type InvoiceReport struct {
	Invoice     core.Invoice
	Items       []core.LineItem
	Breakdown   core.Breakdown
	GeneratedAt time.Time
}

// NewInvoiceReport aggregates items and stamps the generation time.
func NewInvoiceReport(inv core.Invoice, items []core.LineItem, now time.Time) InvoiceReport {
	return InvoiceReport{
		Invoice:     inv,
		Items:       items,
		Breakdown:   core.Aggregate(items),
		GeneratedAt: now,
	}
}

const maxNameLen = 30

func truncate(s string) string {
	r := []rune(s)
	if len(r) <= maxNameLen {
		return s
	}
	return string(r[:maxNameLen-3]) + "..."
}

// PDF renders an A4 report: header, item table, totals and the GST
// breakdown split into CGST and SGST.
func PDF(r InvoiceReport) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 16)
	pdf.CellFormat(0, 10, "GST Invoice Report", "", 1, "C", false, 0, "")
	pdf.SetFont("Arial", "", 12)
	pdf.CellFormat(0, 8, "Invoice ID: "+r.Invoice.ID, "", 1, "C", false, 0, "")
	if r.Invoice.FileName != "" {
		pdf.CellFormat(0, 8, "Source: "+tr(r.Invoice.FileName), "", 1, "C", false, 0, "")
	}
	pdf.CellFormat(0, 8, "Generated on: "+r.GeneratedAt.Format("2006-01-02 15:04:05"), "", 1, "C", false, 0, "")
	pdf.Ln(8)

	pdf.SetFont("Arial", "B", 11)
	pdf.SetFillColor(40, 40, 40)
	pdf.SetTextColor(255, 255, 255)
	for _, h := range []struct {
		title string
		w     float64
	}{{"Item", 70}, {"Qty", 20}, {"Unit Price", 35}, {"Total", 35}, {"GST Rate", 30}} {
		pdf.CellFormat(h.w, 9, h.title, "1", 0, "C", true, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Arial", "", 10)
	pdf.SetTextColor(50, 50, 50)
	for _, it := range r.Items {
		pdf.CellFormat(70, 8, tr(truncate(it.Name)), "1", 0, "L", false, 0, "")
		pdf.CellFormat(20, 8, core.FormatPlain(it.QuantityOrDefault()), "1", 0, "R", false, 0, "")
		pdf.CellFormat(35, 8, "Rs. "+core.FormatPlain(it.UnitPriceOrDefault()), "1", 0, "R", false, 0, "")
		pdf.CellFormat(35, 8, "Rs. "+core.FormatPlain(it.TotalOrDefault()), "1", 0, "R", false, 0, "")
		pdf.CellFormat(30, 8, core.FormatRate(it.RateOrDefault()), "1", 0, "R", false, 0, "")
		pdf.Ln(-1)
	}

	sum := core.Summarize(r.Breakdown)
	pdf.Ln(6)
	pdf.SetFont("Arial", "B", 12)
	pdf.CellFormat(0, 8, "Subtotal: Rs. "+core.FormatPlain(sum.Subtotal), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 8, "Total GST: Rs. "+core.FormatPlain(sum.TotalGST), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 8, "Grand Total: Rs. "+core.FormatPlain(sum.GrandTotal), "", 1, "L", false, 0, "")

	pdf.Ln(6)
	pdf.SetFont("Arial", "B", 14)
	pdf.CellFormat(0, 10, "GST Breakdown", "", 1, "L", false, 0, "")
	pdf.SetFont("Arial", "B", 11)
	pdf.SetFillColor(40, 40, 40)
	pdf.SetTextColor(255, 255, 255)
	widths := []float64{30, 40, 40, 40, 40}
	for i, h := range BreakdownHeader {
		pdf.CellFormat(widths[i], 9, h, "1", 0, "C", true, 0, "")
	}
	pdf.Ln(-1)
	pdf.SetTextColor(50, 50, 50)
	rows := BreakdownRows(r.Breakdown, func(v float64) string { return "Rs. " + core.FormatPlain(v) })
	for n, row := range rows {
		if n == len(rows)-1 {
			pdf.SetFont("Arial", "B", 10)
		} else {
			pdf.SetFont("Arial", "", 10)
		}
		for i, cell := range row {
			pdf.CellFormat(widths[i], 8, cell, "1", 0, "R", false, 0, "")
		}
		pdf.Ln(-1)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}

// BreakdownHeader names the columns of BreakdownRows.
var BreakdownHeader = []string{"GST Rate", "Taxable Amount", "CGST", "SGST", "Total Tax"}

// BreakdownRows lays a breakdown out as table rows: one per rate in
// ascending order, then a Total row. Amounts are formatted with money.
func BreakdownRows(b core.Breakdown, money func(float64) string) [][]string {
	entries := b.Entries()
	rows := make([][]string, 0, len(entries)+1)
	for _, e := range entries {
		rows = append(rows, []string{
			core.FormatRate(e.Rate),
			money(e.TaxableAmount),
			money(e.CGST()),
			money(e.SGST()),
			money(e.TaxAmount),
		})
	}
	t := b.Totals()
	return append(rows, []string{
		"Total",
		money(t.TaxableAmount),
		money(t.TaxAmount / 2),
		money(t.TaxAmount / 2),
		money(t.TaxAmount),
	})
}

type jsonReport struct {
	InvoiceID    string              `json:"invoice_id"`
	FileName     string              `json:"file_name,omitempty"`
	GeneratedAt  time.Time           `json:"generated_at"`
	Items        []map[string]any    `json:"items"`
	Summary      core.InvoiceSummary `json:"summary"`
	GSTBreakdown core.Breakdown      `json:"gst_breakdown"`
}

// JSON renders the downloadable JSON report, indented.
func JSON(r InvoiceReport) ([]byte, error) {
	out, err := json.MarshalIndent(jsonReport{
		InvoiceID:    r.Invoice.ID,
		FileName:     r.Invoice.FileName,
		GeneratedAt:  r.GeneratedAt,
		Items:        adapters.ItemsToMaps(r.Items),
		Summary:      core.Summarize(r.Breakdown),
		GSTBreakdown: r.Breakdown,
	}, "", "    ")
	if err != nil {
		return nil, fmt.Errorf("render json: %w", err)
	}
	return out, nil
}
