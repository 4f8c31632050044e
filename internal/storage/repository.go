// Package storage persists invoices, line items and the HSN master table in
// SQLite. The schema is managed by embedded migrations.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"taxlyzer/internal/core"

	_ "modernc.org/sqlite"
)

type SQLiteRepository struct {
	db      *sql.DB
	queries *Queries
	now     func() time.Time
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	// Run migrations
	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{
		db:      db,
		queries: New(db),
		now:     time.Now,
	}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping reports whether the database is reachable.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// SaveInvoice implements ports.InvoiceWriter. The invoice and all of its
// items are written in one transaction.
func (r *SQLiteRepository) SaveInvoice(ctx context.Context, inv core.Invoice, items []core.LineItem) (core.Invoice, []core.LineItem, error) {
	if inv.ID == "" {
		inv.ID = uuid.NewString()
	}
	if inv.CreatedAt.IsZero() {
		inv.CreatedAt = r.now()
	}
	inv.CreatedAt = inv.CreatedAt.UTC()
	inv.SyncStatus = core.SyncPending

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return core.Invoice{}, nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()
	q := r.queries.WithTx(tx)

	if err := q.CreateInvoice(ctx, InvoiceRow{
		ID:         inv.ID,
		FileName:   inv.FileName,
		FileType:   inv.FileType,
		RawText:    inv.RawText,
		CreatedAt:  formatTime(inv.CreatedAt),
		SyncStatus: inv.SyncStatus,
	}); err != nil {
		return core.Invoice{}, nil, fmt.Errorf("create invoice: %w", err)
	}

	saved := make([]core.LineItem, len(items))
	for i, it := range items {
		it.ID = uuid.NewString()
		it.InvoiceID = inv.ID
		it.CreatedAt = inv.CreatedAt
		row := itemToRow(it)
		row.Position = int64(i)
		if err := q.CreateItem(ctx, row); err != nil {
			return core.Invoice{}, nil, fmt.Errorf("create item %d: %w", i, err)
		}
		saved[i] = it
	}

	if err := tx.Commit(); err != nil {
		return core.Invoice{}, nil, fmt.Errorf("commit invoice: %w", err)
	}

	slog.InfoContext(ctx, "Invoice saved to SQLite",
		"id", inv.ID,
		"file_name", inv.FileName,
		"items", len(saved))

	return inv, saved, nil
}

// ListInvoices implements ports.InvoiceReader. Raw text is not loaded.
func (r *SQLiteRepository) ListInvoices(ctx context.Context) ([]core.Invoice, error) {
	rows, err := r.queries.ListInvoices(ctx)
	if err != nil {
		return nil, fmt.Errorf("list invoices: %w", err)
	}
	return invoicesFromRows(rows)
}

// ListInvoicesBetween implements ports.InvoiceReader.
func (r *SQLiteRepository) ListInvoicesBetween(ctx context.Context, start, end time.Time) ([]core.Invoice, error) {
	rows, err := r.queries.ListInvoicesBetween(ctx, formatTime(start), formatTime(end))
	if err != nil {
		return nil, fmt.Errorf("list invoices between: %w", err)
	}
	return invoicesFromRows(rows)
}

// GetInvoice implements ports.InvoiceReader.
func (r *SQLiteRepository) GetInvoice(ctx context.Context, id string) (core.Invoice, error) {
	row, err := r.queries.GetInvoice(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Invoice{}, core.ErrInvoiceNotFound
	}
	if err != nil {
		return core.Invoice{}, fmt.Errorf("get invoice %s: %w", id, err)
	}
	return invoiceFromRow(row)
}

// ListItems implements ports.InvoiceReader. Items come back in upload order.
func (r *SQLiteRepository) ListItems(ctx context.Context, invoiceID string) ([]core.LineItem, error) {
	rows, err := r.queries.ListItems(ctx, invoiceID)
	if err != nil {
		return nil, fmt.Errorf("list items of %s: %w", invoiceID, err)
	}
	items := make([]core.LineItem, 0, len(rows))
	for _, row := range rows {
		it, err := itemFromRow(row)
		if err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, nil
}

// GetItem implements ports.ItemUpdater.
func (r *SQLiteRepository) GetItem(ctx context.Context, id string) (core.LineItem, error) {
	row, err := r.queries.GetItem(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return core.LineItem{}, core.ErrItemNotFound
	}
	if err != nil {
		return core.LineItem{}, fmt.Errorf("get item %s: %w", id, err)
	}
	return itemFromRow(row)
}

// UpdateItem implements ports.ItemUpdater. The owning invoice goes back to
// pending so the exported sheet is refreshed.
func (r *SQLiteRepository) UpdateItem(ctx context.Context, it core.LineItem) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()
	q := r.queries.WithTx(tx)

	n, err := q.UpdateItem(ctx, itemToRow(it))
	if err != nil {
		return fmt.Errorf("update item %s: %w", it.ID, err)
	}
	if n == 0 {
		return core.ErrItemNotFound
	}
	if it.InvoiceID != "" {
		if err := q.MarkInvoicePending(ctx, it.InvoiceID); err != nil {
			return fmt.Errorf("reset sync status: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit item update: %w", err)
	}

	slog.InfoContext(ctx, "Item updated", "id", it.ID, "invoice_id", it.InvoiceID)
	return nil
}

// ListSlabs implements ports.SlabReader.
func (r *SQLiteRepository) ListSlabs(ctx context.Context) ([]core.GSTSlab, error) {
	rows, err := r.queries.ListSlabs(ctx)
	if err != nil {
		return nil, fmt.Errorf("list gst slabs: %w", err)
	}
	slabs := make([]core.GSTSlab, len(rows))
	for i, s := range rows {
		slabs[i] = core.GSTSlab{ID: s.ID, HSNCode: s.HSNCode, Description: s.Description, GSTRate: s.GSTRate}
	}
	return slabs, nil
}

// PendingSync implements ports.SyncTracker. Invoices in error are retried
// along with pending ones.
func (r *SQLiteRepository) PendingSync(ctx context.Context, limit int) ([]core.Invoice, error) {
	rows, err := r.queries.ListPendingSync(ctx, int64(limit))
	if err != nil {
		return nil, fmt.Errorf("get pending sync invoices: %w", err)
	}
	return invoicesFromRows(rows)
}

// MarkSynced marks an invoice as successfully exported
func (r *SQLiteRepository) MarkSynced(ctx context.Context, id string) error {
	syncedAt := sql.NullString{String: formatTime(r.now()), Valid: true}
	if err := r.setSyncStatus(ctx, id, core.SyncSynced, syncedAt); err != nil {
		return fmt.Errorf("mark invoice synced: %w", err)
	}
	slog.InfoContext(ctx, "Invoice marked as synced", "id", id)
	return nil
}

// MarkSyncError marks an invoice as having sync errors
func (r *SQLiteRepository) MarkSyncError(ctx context.Context, id string) error {
	if err := r.setSyncStatus(ctx, id, core.SyncError, sql.NullString{}); err != nil {
		return fmt.Errorf("mark invoice sync error: %w", err)
	}
	slog.WarnContext(ctx, "Invoice marked with sync error", "id", id)
	return nil
}

func (r *SQLiteRepository) setSyncStatus(ctx context.Context, id, status string, at sql.NullString) error {
	n, err := r.queries.SetSyncStatus(ctx, id, status, at)
	if err != nil {
		return err
	}
	if n == 0 {
		return core.ErrInvoiceNotFound
	}
	return nil
}

func invoiceFromRow(row InvoiceRow) (core.Invoice, error) {
	created, err := parseTime(row.CreatedAt)
	if err != nil {
		return core.Invoice{}, fmt.Errorf("invoice %s: bad created_at %q: %w", row.ID, row.CreatedAt, err)
	}
	return core.Invoice{
		ID:         row.ID,
		FileName:   row.FileName,
		FileType:   row.FileType,
		RawText:    row.RawText,
		CreatedAt:  created,
		SyncStatus: row.SyncStatus,
	}, nil
}

func invoicesFromRows(rows []InvoiceRow) ([]core.Invoice, error) {
	out := make([]core.Invoice, 0, len(rows))
	for _, row := range rows {
		inv, err := invoiceFromRow(row)
		if err != nil {
			return nil, err
		}
		out = append(out, inv)
	}
	return out, nil
}

func itemToRow(it core.LineItem) ItemRow {
	return ItemRow{
		ID:        it.ID,
		InvoiceID: it.InvoiceID,
		Item:      it.Name,
		HSNCode:   it.HSNCode,
		Qty:       nullFloat(it.Quantity),
		UnitPrice: nullFloat(it.UnitPrice),
		Total:     nullFloat(it.Total),
		GSTRate:   nullFloat(it.GSTRate),
		CreatedAt: formatTime(it.CreatedAt),
	}
}

func itemFromRow(row ItemRow) (core.LineItem, error) {
	created, err := parseTime(row.CreatedAt)
	if err != nil {
		return core.LineItem{}, fmt.Errorf("item %s: bad created_at %q: %w", row.ID, row.CreatedAt, err)
	}
	return core.LineItem{
		ID:        row.ID,
		InvoiceID: row.InvoiceID,
		Name:      row.Item,
		HSNCode:   row.HSNCode,
		Quantity:  floatPtr(row.Qty),
		UnitPrice: floatPtr(row.UnitPrice),
		Total:     floatPtr(row.Total),
		GSTRate:   floatPtr(row.GSTRate),
		CreatedAt: created,
	}, nil
}

func nullFloat(p *float64) sql.NullFloat64 {
	if p == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *p, Valid: true}
}

func floatPtr(n sql.NullFloat64) *float64 {
	if !n.Valid {
		return nil
	}
	return core.Float(n.Float64)
}
