package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"taxlyzer/internal/classifier"
	"taxlyzer/internal/core"
	"taxlyzer/internal/storage/memory"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadItemsAndRender(t *testing.T) {
	path := writeFile(t, "bill.csv", "Item,Total,GST Rate\nRice,500,5\nPhone,10000,18\n,,\n")
	c := classifier.New(classifier.DefaultRules(), memory.DefaultSlabs())

	items, classified, err := loadItems(path, c)
	if err != nil {
		t.Fatalf("loadItems() error = %v", err)
	}
	if len(items) != 2 || classified != 0 {
		t.Fatalf("items = %d, classified = %d", len(items), classified)
	}

	var buf bytes.Buffer
	if err := renderBreakdown(&buf, "bill.csv", items, classified); err != nil {
		t.Fatalf("renderBreakdown() error = %v", err)
	}
	out := buf.String()
	for _, want := range []string{"18%", "5%", "Total", "Grand Total:", "12,325.00"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestBreakdownTableEndsWithTotal(t *testing.T) {
	b := core.Aggregate([]core.LineItem{
		{Name: "Pen", Total: core.Float(100), GSTRate: core.Float(18)},
		{Name: "Rice", Total: core.Float(50), GSTRate: core.Float(5)},
	})
	data := breakdownTable(b)
	if len(data) != 4 {
		t.Fatalf("table has %d rows, want header, 2 rates and total: %v", len(data), data)
	}
	if data[1][0] != "5%" || data[2][0] != "18%" {
		t.Errorf("rate rows = %v, %v; want ascending", data[1], data[2])
	}
	want := []string{"Total", "₹150.00", "₹10.25", "₹10.25", "₹20.50"}
	if got := data[3]; strings.Join(got, "|") != strings.Join(want, "|") {
		t.Errorf("total row = %v, want %v", got, want)
	}
}

func TestLoadItemsEmpty(t *testing.T) {
	path := writeFile(t, "empty.json", `[{"item":""}]`)
	_, _, err := loadItems(path, classifier.New(classifier.DefaultRules(), nil))
	if !errors.Is(err, core.ErrNoItems) {
		t.Fatalf("error = %v, want ErrNoItems", err)
	}
}

func TestRunGSTR1RejectsBadDates(t *testing.T) {
	f := gstr1Flags{db: filepath.Join(t.TempDir(), "missing.db"), from: "01-04-2024"}
	if err := runGSTR1(context.Background(), f); !errors.Is(err, core.ErrInvalidDateRange) {
		t.Fatalf("runGSTR1() error = %v, want ErrInvalidDateRange", err)
	}
}

func TestVersionCommand(t *testing.T) {
	root := newRootCmd()
	var buf bytes.Buffer
	root.SetOut(&buf)
	root.SetArgs([]string{"version"})
	if err := root.Execute(); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if got := buf.String(); got != "taxlyzer-cli dev\n" {
		t.Fatalf("version output = %q", got)
	}
}
