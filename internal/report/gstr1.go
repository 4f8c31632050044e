package report

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/xuri/excelize/v2"

	"taxlyzer/internal/core"
)

// GSTR-1 output formats.
const (
	FormatCSV  = "csv"
	FormatXLSX = "xlsx"
)

// GSTR1Header lists the columns in filing order.
var GSTR1Header = []string{
	"GSTIN", "Receiver GSTIN", "Invoice Number", "Invoice Date", "Invoice Value",
	"Place of Supply", "Reverse Charge", "Invoice Type", "Rate", "Taxable Value",
	"Integrated Tax", "Central Tax", "State/UT Tax", "Cess",
}

// GSTR1Options fills the identity columns that invoices do not carry.
type GSTR1Options struct {
	SupplierGSTIN string
	ReceiverGSTIN string
	PlaceOfSupply string
}

func DefaultGSTR1Options() GSTR1Options {
	return GSTR1Options{
		SupplierGSTIN: "PLACEHOLDER_GSTIN",
		ReceiverGSTIN: "PLACEHOLDER_RECEIVER_GSTIN",
		PlaceOfSupply: "PLACEHOLDER_STATE",
	}
}

// GSTR1Row is one (invoice, rate) line of a B2B GSTR-1 return. Supplies are
// treated as intra-state, so tax splits evenly into central and state tax.
type GSTR1Row struct {
	SupplierGSTIN string
	ReceiverGSTIN string
	InvoiceNumber string
	InvoiceDate   string
	InvoiceValue  float64
	PlaceOfSupply string
	ReverseCharge string
	InvoiceType   string
	Rate          float64
	TaxableValue  float64
	IntegratedTax float64
	CentralTax    float64
	StateTax      float64
	Cess          float64
}

// GSTR1Rows builds one row per rate of every invoice. Invoices without items
// contribute nothing. Invoice Value is the grand total of the whole invoice.
func GSTR1Rows(invoices []core.InvoiceWithItems, opts GSTR1Options) []GSTR1Row {
	var rows []GSTR1Row
	for _, inv := range invoices {
		if len(inv.Items) == 0 {
			continue
		}
		b := core.Aggregate(inv.Items)
		value := b.Totals().GrandTotal()
		for _, e := range b.Entries() {
			rows = append(rows, GSTR1Row{
				SupplierGSTIN: opts.SupplierGSTIN,
				ReceiverGSTIN: opts.ReceiverGSTIN,
				InvoiceNumber: inv.Invoice.ID,
				InvoiceDate:   inv.Invoice.CreatedAt.Format("02-01-2006"),
				InvoiceValue:  value,
				PlaceOfSupply: opts.PlaceOfSupply,
				ReverseCharge: "N",
				InvoiceType:   "Regular",
				Rate:          e.Rate,
				TaxableValue:  e.TaxableAmount,
				CentralTax:    e.CGST(),
				StateTax:      e.SGST(),
			})
		}
	}
	return rows
}

func (r GSTR1Row) strings() []string {
	return []string{
		r.SupplierGSTIN, r.ReceiverGSTIN, r.InvoiceNumber, r.InvoiceDate,
		core.FormatPlain(r.InvoiceValue), r.PlaceOfSupply, r.ReverseCharge, r.InvoiceType,
		core.FormatRateKey(r.Rate), core.FormatPlain(r.TaxableValue),
		core.FormatPlain(r.IntegratedTax), core.FormatPlain(r.CentralTax),
		core.FormatPlain(r.StateTax), core.FormatPlain(r.Cess),
	}
}

func (r GSTR1Row) cells() []any {
	return []any{
		r.SupplierGSTIN, r.ReceiverGSTIN, r.InvoiceNumber, r.InvoiceDate,
		round2(r.InvoiceValue), r.PlaceOfSupply, r.ReverseCharge, r.InvoiceType,
		r.Rate, round2(r.TaxableValue),
		round2(r.IntegratedTax), round2(r.CentralTax), round2(r.StateTax), round2(r.Cess),
	}
}

func round2(v float64) float64 {
	f, _ := strconv.ParseFloat(core.FormatPlain(v), 64)
	return f
}

// WriteGSTR1CSV writes the header and rows as CSV.
func WriteGSTR1CSV(w io.Writer, rows []GSTR1Row) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(GSTR1Header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, r := range rows {
		if err := cw.Write(r.strings()); err != nil {
			return fmt.Errorf("write row %s: %w", r.InvoiceNumber, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

const gstr1Sheet = "B2B"

// GSTR1XLSX renders the rows as a workbook with a single B2B sheet.
func GSTR1XLSX(rows []GSTR1Row) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", gstr1Sheet); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}
	header := make([]any, len(GSTR1Header))
	for i, h := range GSTR1Header {
		header[i] = h
	}
	if err := f.SetSheetRow(gstr1Sheet, "A1", &header); err != nil {
		return nil, fmt.Errorf("write header: %w", err)
	}
	for i, r := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		values := r.cells()
		if err := f.SetSheetRow(gstr1Sheet, cell, &values); err != nil {
			return nil, fmt.Errorf("write row %d: %w", i+2, err)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("render xlsx: %w", err)
	}
	return buf.Bytes(), nil
}

// GSTR1 renders rows in the requested format and returns the body with
// its content type. An empty format means CSV.
func GSTR1(rows []GSTR1Row, format string) ([]byte, string, error) {
	switch format {
	case "", FormatCSV:
		var buf bytes.Buffer
		if err := WriteGSTR1CSV(&buf, rows); err != nil {
			return nil, "", err
		}
		return buf.Bytes(), "text/csv", nil
	case FormatXLSX:
		body, err := GSTR1XLSX(rows)
		if err != nil {
			return nil, "", err
		}
		return body, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", nil
	default:
		return nil, "", fmt.Errorf("%w: report format %q", core.ErrUnsupportedFormat, format)
	}
}
