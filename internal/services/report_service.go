package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"taxlyzer/internal/core"
	tlog "taxlyzer/internal/log"
	"taxlyzer/internal/metrics"
	"taxlyzer/internal/ports"
	"taxlyzer/internal/report"
)

// Report is a rendered document ready to be served.
type Report struct {
	Body        []byte
	ContentType string
	FileName    string
	// ArchiveURI is set when a copy was stored.
	ArchiveURI string
}

// ReportService renders invoice reports and GSTR-1 returns, optionally
// archiving each one.
type ReportService struct {
	store       ports.InvoiceReader
	archiver    ports.ReportArchiver
	metrics     *metrics.Metrics
	gstr1       report.GSTR1Options
	concurrency int
	now         func() time.Time
}

func NewReportService(store ports.InvoiceReader, archiver ports.ReportArchiver, m *metrics.Metrics, opts report.GSTR1Options, concurrency int) *ReportService {
	if concurrency < 1 {
		concurrency = 1
	}
	return &ReportService{
		store:       store,
		archiver:    archiver,
		metrics:     m,
		gstr1:       opts,
		concurrency: concurrency,
		now:         time.Now,
	}
}

func (s *ReportService) invoiceReport(ctx context.Context, id string) (report.InvoiceReport, error) {
	inv, err := s.store.GetInvoice(ctx, id)
	if err != nil {
		return report.InvoiceReport{}, err
	}
	items, err := s.store.ListItems(ctx, id)
	if err != nil {
		return report.InvoiceReport{}, fmt.Errorf("list items: %w", err)
	}
	return report.NewInvoiceReport(inv, items, s.now()), nil
}

// InvoicePDF renders the PDF report of one invoice.
func (s *ReportService) InvoicePDF(ctx context.Context, id string) (Report, error) {
	r, err := s.invoiceReport(ctx, id)
	if err != nil {
		return Report{}, err
	}
	body, err := report.PDF(r)
	if err != nil {
		return Report{}, err
	}
	return s.finish(ctx, report.KindPDF, Report{
		Body:        body,
		ContentType: "application/pdf",
		FileName:    fmt.Sprintf("invoice_%s.pdf", id),
	}), nil
}

// InvoiceJSON renders the JSON report of one invoice.
func (s *ReportService) InvoiceJSON(ctx context.Context, id string) (Report, error) {
	r, err := s.invoiceReport(ctx, id)
	if err != nil {
		return Report{}, err
	}
	body, err := report.JSON(r)
	if err != nil {
		return Report{}, err
	}
	return s.finish(ctx, report.KindJSON, Report{
		Body:        body,
		ContentType: "application/json",
		FileName:    fmt.Sprintf("invoice_%s.json", id),
	}), nil
}

// GSTR1 builds a GSTR-1 return for invoices created in [start, end].
// core.ErrNoInvoices is returned when the range holds no invoice with items.
func (s *ReportService) GSTR1(ctx context.Context, start, end time.Time, format string) (Report, error) {
	if end.IsZero() {
		end = openEnd
	}
	if end.Before(start) {
		return Report{}, fmt.Errorf("%w: start after end", core.ErrInvalidDateRange)
	}
	if format == "" {
		format = report.FormatCSV
	}
	if format != report.FormatCSV && format != report.FormatXLSX {
		return Report{}, fmt.Errorf("%w: report format %q", core.ErrUnsupportedFormat, format)
	}

	invoices, err := s.store.ListInvoicesBetween(ctx, start, end)
	if err != nil {
		return Report{}, fmt.Errorf("list invoices: %w", err)
	}
	loaded, err := LoadItems(ctx, s.store, invoices, s.concurrency)
	if err != nil {
		return Report{}, err
	}
	rows := report.GSTR1Rows(loaded, s.gstr1)
	if len(rows) == 0 {
		return Report{}, core.ErrNoInvoices
	}

	body, contentType, err := report.GSTR1(rows, format)
	if err != nil {
		return Report{}, err
	}
	name := fmt.Sprintf("gstr1_%s.%s", s.now().Format("20060102"), format)
	if !start.IsZero() {
		name = fmt.Sprintf("gstr1_%s_%s.%s", start.Format("20060102"), end.Format("20060102"), format)
	}
	return s.finish(ctx, report.KindGSTR1, Report{Body: body, ContentType: contentType, FileName: name}), nil
}

// finish records the report and archives it when an archiver is set.
// Archive failures are logged only.
func (s *ReportService) finish(ctx context.Context, kind string, r Report) Report {
	if s.metrics != nil {
		s.metrics.ObserveReport(kind)
	}
	if s.archiver == nil {
		return r
	}
	uri, err := s.archiver.Put(ctx, kind, r.FileName, r.ContentType, r.Body)
	if err != nil {
		tlog.FromContext(ctx).WarnContext(ctx, "Failed to archive report",
			"kind", kind, tlog.FieldFileName, r.FileName, slog.Any(tlog.FieldError, err))
		return r
	}
	r.ArchiveURI = uri
	return r
}
