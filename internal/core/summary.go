package core

import "time"

// GSTStatistics is the store-wide aggregate served by the statistics endpoint.
type GSTStatistics struct {
	TotalTax     float64   `json:"total_tax"`
	TotalTaxable float64   `json:"total_taxable"`
	TaxBySlab    Breakdown `json:"tax_by_slab"`
	InvoiceCount int       `json:"invoice_count"`
	ItemCount    int       `json:"item_count"`
}

// InvoiceSummary is the per-invoice roll-up used by reports and exports.
type InvoiceSummary struct {
	Subtotal   float64 `json:"subtotal"`
	TotalGST   float64 `json:"total_gst"`
	GrandTotal float64 `json:"grand_total"`
}

// Summarize derives subtotal, GST and grand total from a breakdown.
func Summarize(b Breakdown) InvoiceSummary {
	t := b.Totals()
	return InvoiceSummary{Subtotal: t.TaxableAmount, TotalGST: t.TaxAmount, GrandTotal: t.GrandTotal()}
}

// InvoiceWithItems pairs an invoice with its line items.
type InvoiceWithItems struct {
	Invoice Invoice
	Items   []LineItem
}

// GSTSlab is a row of the HSN master table.
type GSTSlab struct {
	ID          int64   `json:"id"`
	HSNCode     string  `json:"hsn_code"`
	Description string  `json:"description"`
	GSTRate     float64 `json:"gst_rate"`
}

// TrendPoint is one bucket of a trend time series.
type TrendPoint struct {
	Date              string    `json:"date"`
	Period            string    `json:"period"`
	InvoiceCount      int       `json:"invoice_count"`
	TotalTaxableValue float64   `json:"total_taxable_value"`
	TotalTax          float64   `json:"total_tax"`
	Start             time.Time `json:"-"`
}

// TrendSummary rolls up a trend window.
type TrendSummary struct {
	TotalTax           float64 `json:"total_tax"`
	TotalTaxable       float64 `json:"total_taxable"`
	InvoiceCount       int     `json:"invoice_count"`
	ItemCount          int     `json:"item_count"`
	AvgTaxPerInvoice   float64 `json:"avg_tax_per_invoice"`
	AvgItemsPerInvoice float64 `json:"avg_items_per_invoice"`
}

// HSNSummary aggregates items sharing an HSN code.
type HSNSummary struct {
	HSNCode     string  `json:"hsn_code"`
	Description string  `json:"description"`
	Count       int     `json:"count"`
	TotalAmount float64 `json:"total_amount"`
	TotalTax    float64 `json:"total_tax"`
	GSTRate     float64 `json:"gst_rate"`
}

// SlabSummary aggregates items sharing a GST rate.
type SlabSummary struct {
	Slab        float64 `json:"slab"`
	Count       int     `json:"count"`
	TotalAmount float64 `json:"total_amount"`
	TotalTax    float64 `json:"total_tax"`
}

// TrendAnalysis is the full response of a trend query.
type TrendAnalysis struct {
	TimeSeries       []TrendPoint  `json:"time_series"`
	Summary          TrendSummary  `json:"summary"`
	TopHSNCodes      []HSNSummary  `json:"top_hsn_codes"`
	SlabDistribution []SlabSummary `json:"slab_distribution"`
	GroupBy          string        `json:"group_by"`
}
