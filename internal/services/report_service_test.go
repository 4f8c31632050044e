package services

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"taxlyzer/internal/core"
	"taxlyzer/internal/report"
	"taxlyzer/internal/storage/memory"
)

type fakeArchiver struct {
	keys []string
	err  error
}

func (a *fakeArchiver) Put(_ context.Context, kind, name, _ string, _ []byte) (string, error) {
	if a.err != nil {
		return "", a.err
	}
	a.keys = append(a.keys, kind+"/"+name)
	return "s3://bucket/" + kind + "/" + name, nil
}

func TestInvoiceReports(t *testing.T) {
	store := memory.New(nil)
	inv := seed(t, store, time.Now(), li("Rice", "1006", 100, 5), li("Phone", "8517", 1000, 18))
	archiver := &fakeArchiver{}
	svc := NewReportService(store, archiver, nil, report.DefaultGSTR1Options(), 2)
	ctx := context.Background()

	pdf, err := svc.InvoicePDF(ctx, inv.ID)
	if err != nil {
		t.Fatalf("InvoicePDF() error = %v", err)
	}
	if !bytes.HasPrefix(pdf.Body, []byte("%PDF")) || pdf.ContentType != "application/pdf" {
		t.Errorf("pdf report = %s %q", pdf.ContentType, pdf.FileName)
	}
	if pdf.ArchiveURI == "" || len(archiver.keys) != 1 {
		t.Errorf("pdf not archived: %+v", archiver.keys)
	}

	js, err := svc.InvoiceJSON(ctx, inv.ID)
	if err != nil {
		t.Fatalf("InvoiceJSON() error = %v", err)
	}
	if js.FileName != "invoice_"+inv.ID+".json" || !bytes.Contains(js.Body, []byte(`"grand_total": 1285`)) {
		t.Errorf("json report = %s", js.Body)
	}

	if _, err := svc.InvoicePDF(ctx, "missing"); !errors.Is(err, core.ErrInvoiceNotFound) {
		t.Errorf("missing invoice error = %v", err)
	}
}

func TestReportArchiveFailureIsNotFatal(t *testing.T) {
	store := memory.New(nil)
	inv := seed(t, store, time.Now(), li("Rice", "", 100, 5))
	svc := NewReportService(store, &fakeArchiver{err: errors.New("no bucket")}, nil, report.DefaultGSTR1Options(), 2)

	r, err := svc.InvoiceJSON(context.Background(), inv.ID)
	if err != nil {
		t.Fatalf("InvoiceJSON() error = %v", err)
	}
	if r.ArchiveURI != "" {
		t.Errorf("ArchiveURI = %q", r.ArchiveURI)
	}
}

func TestGSTR1(t *testing.T) {
	store := memory.New(nil)
	seed(t, store, time.Date(2024, 4, 2, 10, 0, 0, 0, time.UTC), li("Rice", "1006", 100, 5), li("Phone", "8517", 1000, 18))
	seed(t, store, time.Date(2024, 5, 2, 10, 0, 0, 0, time.UTC), li("Soap", "3401", 200, 18))
	svc := NewReportService(store, nil, nil, report.DefaultGSTR1Options(), 2)
	ctx := context.Background()

	start := time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 4, 30, 23, 59, 59, 0, time.UTC)
	r, err := svc.GSTR1(ctx, start, end, "")
	if err != nil {
		t.Fatalf("GSTR1() error = %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(r.Body)), "\n")
	if len(lines) != 3 {
		t.Fatalf("csv lines = %d: %s", len(lines), r.Body)
	}
	if r.FileName != "gstr1_20240401_20240430.csv" || r.ContentType != "text/csv" {
		t.Errorf("report = %q %q", r.FileName, r.ContentType)
	}

	x, err := svc.GSTR1(ctx, time.Time{}, time.Time{}, report.FormatXLSX)
	if err != nil {
		t.Fatalf("GSTR1(xlsx) error = %v", err)
	}
	if !bytes.HasPrefix(x.Body, []byte("PK")) {
		t.Errorf("xlsx body is not a zip archive")
	}
}

func TestGSTR1Errors(t *testing.T) {
	store := memory.New(nil)
	svc := NewReportService(store, nil, nil, report.DefaultGSTR1Options(), 2)
	ctx := context.Background()

	if _, err := svc.GSTR1(ctx, time.Time{}, time.Time{}, ""); !errors.Is(err, core.ErrNoInvoices) {
		t.Errorf("empty store error = %v", err)
	}
	if _, err := svc.GSTR1(ctx, time.Time{}, time.Time{}, "ods"); !errors.Is(err, core.ErrUnsupportedFormat) {
		t.Errorf("bad format error = %v", err)
	}
	start := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	if _, err := svc.GSTR1(ctx, start, start.Add(-time.Hour), ""); !errors.Is(err, core.ErrInvalidDateRange) {
		t.Errorf("reversed range error = %v", err)
	}
}
