package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"taxlyzer/internal/core"
	"taxlyzer/internal/ports"
)

var _ ports.Store = (*SQLiteRepository)(nil)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "db", "taxlyzer.db"))
	if err != nil {
		t.Fatalf("NewSQLiteRepository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func sampleItems() []core.LineItem {
	return []core.LineItem{
		{Name: "Biscuits", HSNCode: "1905", Quantity: core.Float(10), UnitPrice: core.Float(10), Total: core.Float(100), GSTRate: core.Float(18)},
		{Name: "Rice", Total: core.Float(200), GSTRate: core.Float(5)},
		{Name: "Loose item"},
	}
}

func TestSaveAndLoadInvoice(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	inv, items, err := repo.SaveInvoice(ctx, core.Invoice{FileName: "bill.csv", FileType: "csv", RawText: "raw"}, sampleItems())
	if err != nil {
		t.Fatalf("SaveInvoice: %v", err)
	}
	if inv.ID == "" || inv.SyncStatus != core.SyncPending || inv.CreatedAt.IsZero() {
		t.Fatalf("saved invoice = %+v", inv)
	}
	for _, it := range items {
		if it.ID == "" || it.InvoiceID != inv.ID {
			t.Fatalf("item not stamped: %+v", it)
		}
	}

	got, err := repo.GetInvoice(ctx, inv.ID)
	if err != nil {
		t.Fatalf("GetInvoice: %v", err)
	}
	if got.RawText != "raw" || got.FileName != "bill.csv" || !got.CreatedAt.Equal(inv.CreatedAt) {
		t.Fatalf("GetInvoice = %+v", got)
	}

	loaded, err := repo.ListItems(ctx, inv.ID)
	if err != nil {
		t.Fatalf("ListItems: %v", err)
	}
	if len(loaded) != 3 || loaded[0].Name != "Biscuits" || loaded[2].Name != "Loose item" {
		t.Fatalf("items out of order: %+v", loaded)
	}
	if loaded[2].Total != nil || loaded[2].GSTRate != nil || loaded[2].Quantity != nil {
		t.Fatalf("absent numerics must stay absent: %+v", loaded[2])
	}

	b := core.Aggregate(loaded)
	if e, _ := b.Entry(18); e.TaxAmount != 18 {
		t.Fatalf("18%% entry = %+v", e)
	}
	if e, _ := b.Entry(0); e.TaxableAmount != 0 {
		t.Fatalf("0%% entry = %+v", e)
	}
}

func TestGetMissing(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	if _, err := repo.GetInvoice(ctx, "nope"); !errors.Is(err, core.ErrInvoiceNotFound) {
		t.Fatalf("GetInvoice error = %v", err)
	}
	if _, err := repo.GetItem(ctx, "nope"); !errors.Is(err, core.ErrItemNotFound) {
		t.Fatalf("GetItem error = %v", err)
	}
	if err := repo.UpdateItem(ctx, core.LineItem{ID: "nope", Name: "x"}); !errors.Is(err, core.ErrItemNotFound) {
		t.Fatalf("UpdateItem error = %v", err)
	}
	if err := repo.MarkSynced(ctx, "nope"); !errors.Is(err, core.ErrInvoiceNotFound) {
		t.Fatalf("MarkSynced error = %v", err)
	}
}

func TestListInvoicesOrdering(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	base := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	for i, name := range []string{"a.csv", "b.csv", "c.csv"} {
		inv := core.Invoice{FileName: name, FileType: "csv", CreatedAt: base.AddDate(0, i, 0)}
		if _, _, err := repo.SaveInvoice(ctx, inv, sampleItems()[:1]); err != nil {
			t.Fatalf("SaveInvoice: %v", err)
		}
	}

	all, err := repo.ListInvoices(ctx)
	if err != nil {
		t.Fatalf("ListInvoices: %v", err)
	}
	if len(all) != 3 || all[0].FileName != "c.csv" || all[2].FileName != "a.csv" {
		t.Fatalf("want newest first, got %+v", all)
	}

	between, err := repo.ListInvoicesBetween(ctx, base.AddDate(0, 1, 0), base.AddDate(0, 2, 0))
	if err != nil {
		t.Fatalf("ListInvoicesBetween: %v", err)
	}
	if len(between) != 2 || between[0].FileName != "b.csv" || between[1].FileName != "c.csv" {
		t.Fatalf("inclusive range, oldest first: %+v", between)
	}
}

func TestUpdateItemResetsSync(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	inv, items, err := repo.SaveInvoice(ctx, core.Invoice{FileName: "x.json", FileType: "json"}, sampleItems())
	if err != nil {
		t.Fatalf("SaveInvoice: %v", err)
	}
	if err := repo.MarkSynced(ctx, inv.ID); err != nil {
		t.Fatalf("MarkSynced: %v", err)
	}
	if pending, _ := repo.PendingSync(ctx, 10); len(pending) != 0 {
		t.Fatalf("synced invoice still pending: %+v", pending)
	}

	it := items[1]
	it.GSTRate = core.Float(12)
	if err := repo.UpdateItem(ctx, it); err != nil {
		t.Fatalf("UpdateItem: %v", err)
	}
	got, err := repo.GetItem(ctx, it.ID)
	if err != nil {
		t.Fatalf("GetItem: %v", err)
	}
	if got.RateOrDefault() != 12 || got.Name != "Rice" {
		t.Fatalf("updated item = %+v", got)
	}
	pending, err := repo.PendingSync(ctx, 10)
	if err != nil {
		t.Fatalf("PendingSync: %v", err)
	}
	if len(pending) != 1 || pending[0].ID != inv.ID {
		t.Fatalf("invoice should be pending again: %+v", pending)
	}

	if err := repo.MarkSyncError(ctx, inv.ID); err != nil {
		t.Fatalf("MarkSyncError: %v", err)
	}
	if pending, _ := repo.PendingSync(ctx, 10); len(pending) != 1 || pending[0].SyncStatus != core.SyncError {
		t.Fatalf("errored invoice should be retried: %+v", pending)
	}
}

func TestSeededSlabs(t *testing.T) {
	repo := newTestRepo(t)
	slabs, err := repo.ListSlabs(context.Background())
	if err != nil {
		t.Fatalf("ListSlabs: %v", err)
	}
	if len(slabs) != 13 {
		t.Fatalf("got %d slabs, want 13", len(slabs))
	}
	if slabs[0].HSNCode != "1905" || slabs[0].GSTRate != 18 {
		t.Fatalf("first slab = %+v", slabs[0])
	}
}

func TestMigrationsAreIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "taxlyzer.db")
	for i := 0; i < 2; i++ {
		if err := RunMigrations(path); err != nil {
			t.Fatalf("RunMigrations #%d: %v", i+1, err)
		}
	}
}
