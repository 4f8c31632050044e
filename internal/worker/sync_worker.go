package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"taxlyzer/internal/amqp"
	"taxlyzer/internal/core"
	tlog "taxlyzer/internal/log"
	"taxlyzer/internal/metrics"
	"taxlyzer/internal/ports"
)

// Store is what the worker needs from a data backend.
type Store interface {
	ports.InvoiceReader
	ports.SyncTracker
}

// SyncWorker exports invoice GST breakdowns to the configured sheet.
type SyncWorker struct {
	store     Store
	exporter  ports.BreakdownExporter
	metrics   *metrics.Metrics
	batchSize int
}

func NewSyncWorker(store Store, exporter ports.BreakdownExporter, m *metrics.Metrics, batchSize int) *SyncWorker {
	if batchSize < 1 {
		batchSize = 10
	}
	return &SyncWorker{
		store:     store,
		exporter:  exporter,
		metrics:   m,
		batchSize: batchSize,
	}
}

// HandleSyncMessage processes a single invoice sync message from AMQP.
// A message for an invoice that no longer exists is acknowledged.
func (w *SyncWorker) HandleSyncMessage(ctx context.Context, msg *amqp.InvoiceSyncMessage) error {
	slog.InfoContext(ctx, "Processing sync message",
		tlog.FieldInvoiceID, msg.InvoiceID,
		"reason", msg.Reason)

	inv, err := w.store.GetInvoice(ctx, msg.InvoiceID)
	if errors.Is(err, core.ErrInvoiceNotFound) {
		slog.WarnContext(ctx, "Invoice for sync message not found, dropping",
			tlog.FieldInvoiceID, msg.InvoiceID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("get invoice from storage: %w", err)
	}

	if err := w.syncInvoice(ctx, inv); err != nil {
		return fmt.Errorf("sync invoice to sheets: %w", err)
	}
	return nil
}

// ProcessPending exports invoices that have not been synced yet. It is a
// backup for lost AMQP messages.
func (w *SyncWorker) ProcessPending(ctx context.Context) error {
	_, _, err := w.processPending(ctx, w.batchSize)
	return err
}

// StartupSyncCheck runs a larger pending pass once, at worker startup.
func (w *SyncWorker) StartupSyncCheck(ctx context.Context) error {
	total, failed, err := w.processPending(ctx, w.batchSize*5)
	if err != nil {
		return fmt.Errorf("startup sync check: %w", err)
	}
	if total == 0 {
		slog.InfoContext(ctx, "No pending invoices found on startup")
		return nil
	}
	slog.InfoContext(ctx, "Startup sync completed",
		"total", total,
		"synced", total-failed,
		"errors", failed)
	return nil
}

func (w *SyncWorker) processPending(ctx context.Context, limit int) (total, failed int, err error) {
	pending, err := w.store.PendingSync(ctx, limit)
	if err != nil {
		return 0, 0, fmt.Errorf("get pending invoices: %w", err)
	}
	if len(pending) == 0 {
		return 0, 0, nil
	}

	slog.InfoContext(ctx, "Processing pending invoices", "count", len(pending))
	for _, inv := range pending {
		if ctx.Err() != nil {
			return total, failed, ctx.Err()
		}
		total++
		if err := w.syncInvoice(ctx, inv); err != nil {
			slog.ErrorContext(ctx, "Failed to sync invoice",
				tlog.FieldInvoiceID, inv.ID, slog.Any(tlog.FieldError, err))
			failed++
		}
	}
	return total, failed, nil
}

// syncInvoice exports one invoice and records the outcome on it.
func (w *SyncWorker) syncInvoice(ctx context.Context, inv core.Invoice) error {
	items, err := w.store.ListItems(ctx, inv.ID)
	if err != nil {
		w.markError(ctx, inv.ID)
		return fmt.Errorf("list items: %w", err)
	}
	b := core.Aggregate(items)

	ref, err := w.exporter.ExportBreakdown(ctx, inv, b)
	if err != nil {
		w.markError(ctx, inv.ID)
		w.observe(false)
		return fmt.Errorf("export breakdown: %w", err)
	}

	if err := w.store.MarkSynced(ctx, inv.ID); err != nil {
		// the export itself went through
		slog.ErrorContext(ctx, "Failed to mark as synced",
			tlog.FieldInvoiceID, inv.ID, slog.Any(tlog.FieldError, err))
	}
	w.observe(true)

	t := b.Totals()
	slog.InfoContext(ctx, "Successfully synced invoice",
		tlog.FieldInvoiceID, inv.ID,
		tlog.FieldSheetsRef, ref,
		tlog.FieldSlabCount, len(b),
		tlog.FieldTaxableAmount, t.TaxableAmount,
		tlog.FieldTaxAmount, t.TaxAmount)
	return nil
}

func (w *SyncWorker) markError(ctx context.Context, id string) {
	if err := w.store.MarkSyncError(ctx, id); err != nil {
		slog.ErrorContext(ctx, "Failed to mark sync error",
			tlog.FieldInvoiceID, id, slog.Any(tlog.FieldError, err))
	}
}

func (w *SyncWorker) observe(ok bool) {
	if w.metrics != nil {
		w.metrics.ObserveSync(ok)
	}
}
