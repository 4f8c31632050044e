// Package memory is an in-process store used for development and tests.
package memory

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"taxlyzer/internal/core"
)

type Store struct {
	mu       sync.Mutex
	invoices map[string]core.Invoice
	items    map[string][]core.LineItem // by invoice id, upload order
	slabs    []core.GSTSlab
	now      func() time.Time
}

func New(slabs []core.GSTSlab) *Store {
	return &Store{
		invoices: make(map[string]core.Invoice),
		items:    make(map[string][]core.LineItem),
		slabs:    append([]core.GSTSlab(nil), slabs...),
		now:      time.Now,
	}
}

// NewFromFiles seeds the HSN table from base/hsn_codes.csv (columns
// hsn_code, description, gst_rate). The built-in table is used when the
// file is missing or unreadable.
func NewFromFiles(base string) *Store {
	slabs := readSlabs(filepath.Join(base, "hsn_codes.csv"))
	if len(slabs) == 0 {
		slabs = DefaultSlabs()
	}
	return New(slabs)
}

// DefaultSlabs mirrors the seed migration of the SQLite store.
func DefaultSlabs() []core.GSTSlab {
	seed := []struct {
		code, desc string
		rate       float64
	}{
		{"1905", "Bread, pastry, cakes, biscuits", 18},
		{"2106", "Food preparations", 18},
		{"3004", "Medicaments", 12},
		{"3304", "Beauty or make-up preparations", 28},
		{"3401", "Soap, organic surface-active products", 18},
		{"3402", "Washing and cleaning preparations", 18},
		{"3923", "Plastic articles for packaging", 18},
		{"4819", "Cartons, boxes, cases, bags of paper", 18},
		{"8415", "Air conditioning machines", 28},
		{"8508", "Vacuum cleaners", 28},
		{"8516", "Electric heating equipment", 28},
		{"8517", "Telephones, smartphones", 18},
		{"8528", "Monitors and projectors, TV receivers", 28},
	}
	out := make([]core.GSTSlab, len(seed))
	for i, s := range seed {
		out[i] = core.GSTSlab{ID: int64(i + 1), HSNCode: s.code, Description: s.desc, GSTRate: s.rate}
	}
	return out
}

// SaveInvoice stores the invoice and its items, assigning IDs.
func (s *Store) SaveInvoice(_ context.Context, inv core.Invoice, items []core.LineItem) (core.Invoice, []core.LineItem, error) {
	for _, it := range items {
		if err := it.Validate(); err != nil {
			return core.Invoice{}, nil, fmt.Errorf("item %q: %w", it.Name, err)
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if inv.ID == "" {
		inv.ID = uuid.NewString()
	}
	if inv.CreatedAt.IsZero() {
		inv.CreatedAt = s.now()
	}
	inv.CreatedAt = inv.CreatedAt.UTC()
	inv.SyncStatus = core.SyncPending

	saved := make([]core.LineItem, len(items))
	for i, it := range items {
		it.ID = uuid.NewString()
		it.InvoiceID = inv.ID
		it.CreatedAt = inv.CreatedAt
		saved[i] = it
	}
	s.invoices[inv.ID] = inv
	s.items[inv.ID] = saved
	return inv, append([]core.LineItem(nil), saved...), nil
}

// ListInvoices returns invoices newest first, without raw text.
func (s *Store) ListInvoices(_ context.Context) ([]core.Invoice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.sortedLocked()
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

// ListInvoicesBetween returns invoices in [start, end], oldest first.
func (s *Store) ListInvoicesBetween(_ context.Context, start, end time.Time) ([]core.Invoice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Invoice
	for _, inv := range s.sortedLocked() {
		if inv.CreatedAt.Before(start) || inv.CreatedAt.After(end) {
			continue
		}
		out = append(out, inv)
	}
	return out, nil
}

func (s *Store) GetInvoice(_ context.Context, id string) (core.Invoice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	inv, ok := s.invoices[id]
	if !ok {
		return core.Invoice{}, core.ErrInvoiceNotFound
	}
	return inv, nil
}

func (s *Store) ListItems(_ context.Context, invoiceID string) ([]core.LineItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.LineItem(nil), s.items[invoiceID]...), nil
}

func (s *Store) GetItem(_ context.Context, id string) (core.LineItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, i, ok := s.findItemLocked(id); ok {
		return i, nil
	}
	return core.LineItem{}, core.ErrItemNotFound
}

// UpdateItem replaces a stored item and puts its invoice back to pending.
func (s *Store) UpdateItem(_ context.Context, it core.LineItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx, old, ok := s.findItemLocked(it.ID)
	if !ok {
		return core.ErrItemNotFound
	}
	it.InvoiceID = old.InvoiceID
	it.CreatedAt = old.CreatedAt
	s.items[old.InvoiceID][idx] = it
	if inv, ok := s.invoices[old.InvoiceID]; ok {
		inv.SyncStatus = core.SyncPending
		s.invoices[old.InvoiceID] = inv
	}
	return nil
}

func (s *Store) ListSlabs(_ context.Context) ([]core.GSTSlab, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.GSTSlab(nil), s.slabs...), nil
}

// PendingSync returns up to limit unsynced invoices, oldest first.
func (s *Store) PendingSync(_ context.Context, limit int) ([]core.Invoice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Invoice
	for _, inv := range s.sortedLocked() {
		if inv.SyncStatus == core.SyncSynced {
			continue
		}
		if limit > 0 && len(out) == limit {
			break
		}
		out = append(out, inv)
	}
	return out, nil
}

func (s *Store) MarkSynced(_ context.Context, id string) error {
	return s.setStatus(id, core.SyncSynced)
}

func (s *Store) MarkSyncError(_ context.Context, id string) error {
	return s.setStatus(id, core.SyncError)
}

func (s *Store) setStatus(id, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	inv, ok := s.invoices[id]
	if !ok {
		return core.ErrInvoiceNotFound
	}
	inv.SyncStatus = status
	s.invoices[id] = inv
	return nil
}

// sortedLocked returns invoices oldest first with raw text stripped.
func (s *Store) sortedLocked() []core.Invoice {
	out := make([]core.Invoice, 0, len(s.invoices))
	for _, inv := range s.invoices {
		inv.RawText = ""
		out = append(out, inv)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (s *Store) findItemLocked(id string) (int, core.LineItem, bool) {
	for _, items := range s.items {
		for i, it := range items {
			if it.ID == id {
				return i, it, true
			}
		}
	}
	return 0, core.LineItem{}, false
}

func readSlabs(path string) []core.GSTSlab {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()
	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	rows, err := r.ReadAll()
	if err != nil {
		return nil
	}
	var out []core.GSTSlab
	for i, row := range rows {
		if len(row) < 3 {
			continue
		}
		if i == 0 && strings.EqualFold(strings.TrimSpace(row[0]), "hsn_code") {
			continue
		}
		rate, err := strconv.ParseFloat(strings.TrimSpace(row[2]), 64)
		if err != nil {
			continue
		}
		out = append(out, core.GSTSlab{
			ID:          int64(len(out) + 1),
			HSNCode:     strings.TrimSpace(row[0]),
			Description: strings.TrimSpace(row[1]),
			GSTRate:     rate,
		})
	}
	return out
}
