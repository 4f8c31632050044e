package storage

import (
	"context"
	"database/sql"
	"time"
)

// timeLayout is fixed width so stored timestamps sort and compare as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string { return t.UTC().Format(timeLayout) }

func parseTime(s string) (time.Time, error) { return time.Parse(timeLayout, s) }

type DBTX interface {
	ExecContext(context.Context, string, ...any) (sql.Result, error)
	QueryContext(context.Context, string, ...any) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...any) *sql.Row
}

// Queries holds the SQL used by the repository. It runs against either the
// database handle or an open transaction.
type Queries struct {
	db DBTX
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

type InvoiceRow struct {
	ID         string
	FileName   string
	FileType   string
	RawText    string
	CreatedAt  string
	SyncStatus string
}

type ItemRow struct {
	ID        string
	InvoiceID string
	Position  int64
	Item      string
	HSNCode   string
	Qty       sql.NullFloat64
	UnitPrice sql.NullFloat64
	Total     sql.NullFloat64
	GSTRate   sql.NullFloat64
	CreatedAt string
}

const createInvoice = `INSERT INTO invoices (id, file_name, file_type, raw_text, created_at, sync_status)
VALUES (?, ?, ?, ?, ?, ?)`

func (q *Queries) CreateInvoice(ctx context.Context, r InvoiceRow) error {
	_, err := q.db.ExecContext(ctx, createInvoice, r.ID, r.FileName, r.FileType, r.RawText, r.CreatedAt, r.SyncStatus)
	return err
}

const createItem = `INSERT INTO items (id, invoice_id, position, item, hsn_code, qty, unit_price, total, gst_rate, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

func (q *Queries) CreateItem(ctx context.Context, r ItemRow) error {
	_, err := q.db.ExecContext(ctx, createItem,
		r.ID, r.InvoiceID, r.Position, r.Item, r.HSNCode, r.Qty, r.UnitPrice, r.Total, r.GSTRate, r.CreatedAt)
	return err
}

const invoiceColumns = `id, file_name, file_type, raw_text, created_at, sync_status`

const getInvoice = `SELECT ` + invoiceColumns + ` FROM invoices WHERE id = ?`

func (q *Queries) GetInvoice(ctx context.Context, id string) (InvoiceRow, error) {
	var r InvoiceRow
	err := q.db.QueryRowContext(ctx, getInvoice, id).Scan(
		&r.ID, &r.FileName, &r.FileType, &r.RawText, &r.CreatedAt, &r.SyncStatus)
	return r, err
}

const listInvoices = `SELECT id, file_name, file_type, '', created_at, sync_status
FROM invoices ORDER BY created_at DESC, id DESC`

func (q *Queries) ListInvoices(ctx context.Context) ([]InvoiceRow, error) {
	return q.queryInvoices(ctx, listInvoices)
}

const listInvoicesBetween = `SELECT id, file_name, file_type, '', created_at, sync_status
FROM invoices WHERE created_at >= ? AND created_at <= ? ORDER BY created_at ASC, id ASC`

func (q *Queries) ListInvoicesBetween(ctx context.Context, start, end string) ([]InvoiceRow, error) {
	return q.queryInvoices(ctx, listInvoicesBetween, start, end)
}

const listPendingSync = `SELECT id, file_name, file_type, '', created_at, sync_status
FROM invoices WHERE sync_status != 'synced' ORDER BY created_at ASC LIMIT ?`

func (q *Queries) ListPendingSync(ctx context.Context, limit int64) ([]InvoiceRow, error) {
	return q.queryInvoices(ctx, listPendingSync, limit)
}

func (q *Queries) queryInvoices(ctx context.Context, query string, args ...any) ([]InvoiceRow, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []InvoiceRow
	for rows.Next() {
		var r InvoiceRow
		if err := rows.Scan(&r.ID, &r.FileName, &r.FileType, &r.RawText, &r.CreatedAt, &r.SyncStatus); err != nil {
			return nil, err
		}
		items = append(items, r)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const setSyncStatus = `UPDATE invoices SET sync_status = ?, synced_at = ? WHERE id = ?`

func (q *Queries) SetSyncStatus(ctx context.Context, id, status string, syncedAt sql.NullString) (int64, error) {
	res, err := q.db.ExecContext(ctx, setSyncStatus, status, syncedAt, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const itemColumns = `id, invoice_id, position, item, hsn_code, qty, unit_price, total, gst_rate, created_at`

const listItems = `SELECT ` + itemColumns + ` FROM items WHERE invoice_id = ? ORDER BY position ASC`

func (q *Queries) ListItems(ctx context.Context, invoiceID string) ([]ItemRow, error) {
	rows, err := q.db.QueryContext(ctx, listItems, invoiceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []ItemRow
	for rows.Next() {
		r, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, r)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const getItem = `SELECT ` + itemColumns + ` FROM items WHERE id = ?`

func (q *Queries) GetItem(ctx context.Context, id string) (ItemRow, error) {
	return scanItem(q.db.QueryRowContext(ctx, getItem, id))
}

type scanner interface {
	Scan(dest ...any) error
}

func scanItem(s scanner) (ItemRow, error) {
	var r ItemRow
	err := s.Scan(&r.ID, &r.InvoiceID, &r.Position, &r.Item, &r.HSNCode,
		&r.Qty, &r.UnitPrice, &r.Total, &r.GSTRate, &r.CreatedAt)
	return r, err
}

const updateItem = `UPDATE items SET item = ?, hsn_code = ?, qty = ?, unit_price = ?, total = ?, gst_rate = ?
WHERE id = ?`

func (q *Queries) UpdateItem(ctx context.Context, r ItemRow) (int64, error) {
	res, err := q.db.ExecContext(ctx, updateItem, r.Item, r.HSNCode, r.Qty, r.UnitPrice, r.Total, r.GSTRate, r.ID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const markInvoicePending = `UPDATE invoices SET sync_status = 'pending', synced_at = NULL WHERE id = ?`

func (q *Queries) MarkInvoicePending(ctx context.Context, id string) error {
	_, err := q.db.ExecContext(ctx, markInvoicePending, id)
	return err
}

const listSlabs = `SELECT id, hsn_code, description, gst_rate FROM gst_slabs ORDER BY hsn_code`

type SlabRow struct {
	ID          int64
	HSNCode     string
	Description string
	GSTRate     float64
}

func (q *Queries) ListSlabs(ctx context.Context) ([]SlabRow, error) {
	rows, err := q.db.QueryContext(ctx, listSlabs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []SlabRow
	for rows.Next() {
		var r SlabRow
		if err := rows.Scan(&r.ID, &r.HSNCode, &r.Description, &r.GSTRate); err != nil {
			return nil, err
		}
		items = append(items, r)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
