package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"taxlyzer/internal/amqp"
	"taxlyzer/internal/classifier"
	"taxlyzer/internal/core"
	tlog "taxlyzer/internal/log"
	"taxlyzer/internal/metrics"
	"taxlyzer/internal/ports"
)

// Invalidator drops cached read models after a write.
type Invalidator interface {
	InvalidateAll()
}

// InvoiceService orchestrates uploads and item edits across the store, the
// classifier and the sync queue.
type InvoiceService struct {
	store      ports.Store
	classifier *classifier.Classifier
	publisher  ports.SyncPublisher
	caches     Invalidator
	metrics    *metrics.Metrics
	logger     *tlog.StructuredLogger
}

// InvoiceServiceDeps lists collaborators. Only Store and Classifier are
// required.
type InvoiceServiceDeps struct {
	Store      ports.Store
	Classifier *classifier.Classifier
	Publisher  ports.SyncPublisher
	Caches     Invalidator
	Metrics    *metrics.Metrics
	Logger     *tlog.Logger
}

func NewInvoiceService(d InvoiceServiceDeps) *InvoiceService {
	logger := d.Logger
	if logger == nil {
		logger = tlog.New(tlog.Config{Handler: slog.Default().Handler(), Component: tlog.ComponentInvoice})
	}
	return &InvoiceService{
		store:      d.Store,
		classifier: d.Classifier,
		publisher:  d.Publisher,
		caches:     d.Caches,
		metrics:    d.Metrics,
		logger:     tlog.NewStructuredLogger(logger),
	}
}

// UploadResult is what a processed upload returns to the caller.
type UploadResult struct {
	Invoice    core.Invoice
	Items      []core.LineItem
	Breakdown  core.Breakdown
	Classified int
}

// InvoiceDetail is an invoice with its items and derived amounts.
type InvoiceDetail struct {
	Invoice   core.Invoice
	Items     []core.LineItem
	Breakdown core.Breakdown
	Summary   core.InvoiceSummary
}

// ProcessUpload parses an uploaded file, fills in missing GST rates,
// persists the invoice and returns its breakdown.
func (s *InvoiceService) ProcessUpload(ctx context.Context, fileName, contentType string, data []byte) (UploadResult, error) {
	ex, err := ExtractItems(s.classifier, fileName, contentType, data)
	if err != nil {
		return UploadResult{}, err
	}
	doc, items, classified := ex.Document, ex.Items, ex.Classified
	if s.metrics != nil {
		for _, r := range ex.Results {
			if r.Source != classifier.SourceExplicit {
				s.metrics.ObserveClassified(string(r.Source))
			}
		}
	}

	for i, it := range items {
		if err := it.Validate(); err != nil {
			return UploadResult{}, fmt.Errorf("item %d (%q): %w", i+1, it.Name, err)
		}
	}

	inv, saved, err := s.store.SaveInvoice(ctx, core.Invoice{
		FileName: fileName,
		FileType: doc.FileType,
		RawText:  doc.RawText,
	}, items)
	if err != nil {
		return UploadResult{}, fmt.Errorf("save invoice: %w", err)
	}

	b := core.Aggregate(saved)
	totals := b.Totals()

	s.afterWrite(ctx, inv.ID, amqp.ReasonUploaded)
	if s.metrics != nil {
		s.metrics.ObserveUpload(inv.FileType, totals.TaxableAmount, totals.TaxAmount)
	}
	s.logger.LogInvoiceProcessed(ctx, inv.ID, inv.FileName, inv.FileType,
		len(saved), classified, len(b), totals.TaxableAmount, totals.TaxAmount)

	return UploadResult{Invoice: inv, Items: saved, Breakdown: b, Classified: classified}, nil
}

// GetInvoice loads an invoice with its items and breakdown.
func (s *InvoiceService) GetInvoice(ctx context.Context, id string) (InvoiceDetail, error) {
	inv, err := s.store.GetInvoice(ctx, id)
	if err != nil {
		return InvoiceDetail{}, err
	}
	items, err := s.store.ListItems(ctx, id)
	if err != nil {
		return InvoiceDetail{}, fmt.Errorf("list items: %w", err)
	}
	b := core.Aggregate(items)
	return InvoiceDetail{Invoice: inv, Items: items, Breakdown: b, Summary: core.Summarize(b)}, nil
}

// ListInvoices returns invoice metadata, newest first.
func (s *InvoiceService) ListInvoices(ctx context.Context) ([]core.Invoice, error) {
	return s.store.ListInvoices(ctx)
}

// ListSlabs returns the HSN master table.
func (s *InvoiceService) ListSlabs(ctx context.Context) ([]core.GSTSlab, error) {
	return s.store.ListSlabs(ctx)
}

// UpdateItem applies a partial update to a stored item and returns the
// result. The owning invoice goes back to pending sync.
func (s *InvoiceService) UpdateItem(ctx context.Context, patch core.ItemPatch) (core.LineItem, error) {
	if strings.TrimSpace(patch.ID) == "" {
		return core.LineItem{}, core.ErrMissingItemID
	}
	current, err := s.store.GetItem(ctx, patch.ID)
	if err != nil {
		return core.LineItem{}, err
	}
	if patch.Empty() {
		return current, nil
	}

	updated := patch.Apply(current)
	if err := updated.Validate(); err != nil {
		return core.LineItem{}, err
	}
	if err := s.store.UpdateItem(ctx, updated); err != nil {
		return core.LineItem{}, fmt.Errorf("update item: %w", err)
	}

	s.afterWrite(ctx, updated.InvoiceID, amqp.ReasonItemUpdated)
	return updated, nil
}

// afterWrite runs the best-effort side effects of a write. Failures are
// logged and never returned: the data is already stored.
func (s *InvoiceService) afterWrite(ctx context.Context, invoiceID, reason string) {
	if s.caches != nil {
		s.caches.InvalidateAll()
	}
	if s.publisher == nil {
		tlog.FromContext(ctx).DebugContext(ctx, "No sync publisher configured, skipping sync message",
			tlog.FieldInvoiceID, invoiceID)
		return
	}
	if err := s.publisher.PublishInvoiceSync(ctx, invoiceID, reason); err != nil {
		errType := tlog.ErrorTypeNetwork
		if errors.Is(err, context.DeadlineExceeded) {
			errType = tlog.ErrorTypeTimeout
		}
		s.logger.LogError(ctx, "Failed to publish sync message", err, errType,
			tlog.ComponentAMQP, tlog.OpSync, tlog.NewFields().WithInvoice(invoiceID, "", ""))
	}
}
