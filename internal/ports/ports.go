// Package ports declares the outbound interfaces the services depend on.
package ports

import (
	"context"
	"time"

	"taxlyzer/internal/core"
)

type (
	// InvoiceWriter persists an uploaded invoice together with its items.
	// IDs and timestamps are assigned by the store and returned.
	InvoiceWriter interface {
		SaveInvoice(ctx context.Context, inv core.Invoice, items []core.LineItem) (core.Invoice, []core.LineItem, error)
	}

	InvoiceReader interface {
		// ListInvoices returns invoice metadata, newest first.
		ListInvoices(ctx context.Context) ([]core.Invoice, error)
		// ListInvoicesBetween returns invoices created in [start, end], oldest first.
		ListInvoicesBetween(ctx context.Context, start, end time.Time) ([]core.Invoice, error)
		GetInvoice(ctx context.Context, id string) (core.Invoice, error)
		ListItems(ctx context.Context, invoiceID string) ([]core.LineItem, error)
	}

	ItemUpdater interface {
		GetItem(ctx context.Context, id string) (core.LineItem, error)
		UpdateItem(ctx context.Context, it core.LineItem) error
	}

	// SlabReader exposes the HSN master table.
	SlabReader interface {
		ListSlabs(ctx context.Context) ([]core.GSTSlab, error)
	}

	// SyncTracker records the export state of invoices.
	SyncTracker interface {
		PendingSync(ctx context.Context, limit int) ([]core.Invoice, error)
		MarkSynced(ctx context.Context, id string) error
		MarkSyncError(ctx context.Context, id string) error
	}

	// Store is everything a data backend provides.
	Store interface {
		InvoiceWriter
		InvoiceReader
		ItemUpdater
		SlabReader
		SyncTracker
	}

	// BreakdownExporter writes an invoice's GST breakdown to an external sheet.
	BreakdownExporter interface {
		ExportBreakdown(ctx context.Context, inv core.Invoice, b core.Breakdown) (rowRef string, err error)
	}

	// SyncPublisher announces that an invoice needs exporting.
	SyncPublisher interface {
		PublishInvoiceSync(ctx context.Context, invoiceID, reason string) error
	}

	// ReportArchiver keeps a copy of a generated report and returns where.
	ReportArchiver interface {
		Put(ctx context.Context, kind, name, contentType string, body []byte) (string, error)
	}
)
