// Package adapters normalizes line items arriving from the outside world.
//
// Uploaded files, JSON request bodies and stored rows have used several
// spellings for the same field over time. Everything is mapped onto
// core.LineItem here, once, so the rest of the code sees one schema.
package adapters

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"taxlyzer/internal/core"
)

// Accepted spellings per field, in lookup order.
var (
	nameKeys      = []string{"name", "item", "description", "item_name", "itemName"}
	quantityKeys  = []string{"quantity", "qty"}
	unitPriceKeys = []string{"unitPrice", "unit_price", "price", "rate_per_unit"}
	totalKeys     = []string{"total", "amount", "taxable_value", "taxableValue"}
	rateKeys      = []string{"gstRate", "gst_rate", "gst", "tax_rate"}
	hsnKeys       = []string{"hsnCode", "hsn_code", "hsn", "hsn_sac"}
	idKeys        = []string{"id"}
	invoiceKeys   = []string{"invoiceId", "invoice_id"}
)

// ItemFromMap builds a LineItem from a loosely keyed record. Keys are
// matched case-insensitively. Numbers may be JSON numbers or numeric
// strings; anything unparsable is treated as absent.
func ItemFromMap(m map[string]any) core.LineItem {
	lower := normalizeKeys(m)
	return core.LineItem{
		ID:        lookupString(lower, idKeys),
		InvoiceID: lookupString(lower, invoiceKeys),
		Name:      lookupString(lower, nameKeys),
		HSNCode:   lookupString(lower, hsnKeys),
		Quantity:  lookupFloat(lower, quantityKeys),
		UnitPrice: lookupFloat(lower, unitPriceKeys),
		Total:     lookupFloat(lower, totalKeys),
		GSTRate:   lookupFloat(lower, rateKeys),
	}
}

// ItemsFromMaps adapts a batch of records.
func ItemsFromMaps(rows []map[string]any) []core.LineItem {
	items := make([]core.LineItem, 0, len(rows))
	for _, r := range rows {
		items = append(items, ItemFromMap(r))
	}
	return items
}

// ItemsFromJSON accepts either an array of item objects or an object with
// an "items" array.
func ItemsFromJSON(data []byte) ([]core.LineItem, error) {
	rows, err := RecordsFromJSON(data)
	if err != nil {
		return nil, err
	}
	return ItemsFromMaps(rows), nil
}

// RecordsFromJSON decodes the raw records without adapting them.
func RecordsFromJSON(data []byte) ([]map[string]any, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, fmt.Errorf("decode items: empty document")
	}
	dec := func(v any) error {
		d := json.NewDecoder(bytes.NewReader(data))
		d.UseNumber()
		return d.Decode(v)
	}
	if data[0] == '[' {
		var rows []map[string]any
		if err := dec(&rows); err != nil {
			return nil, fmt.Errorf("decode items: %w", err)
		}
		return rows, nil
	}
	var wrapper struct {
		Items []map[string]any `json:"items"`
	}
	if err := dec(&wrapper); err != nil {
		return nil, fmt.Errorf("decode items: %w", err)
	}
	return wrapper.Items, nil
}

// ItemToMap is the canonical outbound shape of a line item.
func ItemToMap(it core.LineItem) map[string]any {
	m := map[string]any{
		"id":         it.ID,
		"invoice_id": it.InvoiceID,
		"item":       it.Name,
		"hsn_code":   it.HSNCode,
		"qty":        it.QuantityOrDefault(),
		"unit_price": it.UnitPriceOrDefault(),
		"total":      it.TotalOrDefault(),
		"gst_rate":   it.RateOrDefault(),
	}
	if !it.CreatedAt.IsZero() {
		m["created_at"] = it.CreatedAt.UTC().Format("2006-01-02T15:04:05Z")
	}
	return m
}

// ItemsToMaps converts a batch for a JSON response.
func ItemsToMaps(items []core.LineItem) []map[string]any {
	out := make([]map[string]any, 0, len(items))
	for _, it := range items {
		out = append(out, ItemToMap(it))
	}
	return out
}

// PatchFromMap reads a partial item update. Only keys that are present are
// set on the patch.
func PatchFromMap(m map[string]any) core.ItemPatch {
	lower := normalizeKeys(m)
	p := core.ItemPatch{ID: lookupString(lower, idKeys)}
	if v, ok := lookup(lower, nameKeys); ok {
		s := toString(v)
		p.Name = &s
	}
	if v, ok := lookup(lower, hsnKeys); ok {
		s := toString(v)
		p.HSNCode = &s
	}
	p.Quantity = lookupFloat(lower, quantityKeys)
	p.UnitPrice = lookupFloat(lower, unitPriceKeys)
	p.Total = lookupFloat(lower, totalKeys)
	p.GSTRate = lookupFloat(lower, rateKeys)
	return p
}

var keyReplacer = strings.NewReplacer(" ", "_", "-", "_", ".", "")

// normalizeKey lowercases a header and joins words with underscores, so
// "GST Rate", "gst-rate" and "gst_rate" compare equal.
func normalizeKey(k string) string {
	return keyReplacer.Replace(strings.ToLower(strings.TrimSpace(k)))
}

func normalizeKeys(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[normalizeKey(k)] = v
	}
	return out
}

func lookup(m map[string]any, keys []string) (any, bool) {
	for _, k := range keys {
		if v, ok := m[normalizeKey(k)]; ok && v != nil {
			return v, true
		}
	}
	return nil, false
}

func lookupString(m map[string]any, keys []string) string {
	v, ok := lookup(m, keys)
	if !ok {
		return ""
	}
	return toString(v)
}

func lookupFloat(m map[string]any, keys []string) *float64 {
	v, ok := lookup(m, keys)
	if !ok {
		return nil
	}
	f, ok := toFloat(v)
	if !ok {
		return nil
	}
	return core.Float(f)
}

func toString(v any) string {
	switch x := v.(type) {
	case string:
		return strings.TrimSpace(x)
	case json.Number:
		return x.String()
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	default:
		return strings.TrimSpace(fmt.Sprint(x))
	}
}

func toFloat(v any) (float64, bool) {
	var f float64
	switch x := v.(type) {
	case float64:
		f = x
	case float32:
		f = float64(x)
	case int:
		f = float64(x)
	case int64:
		f = float64(x)
	case json.Number:
		parsed, err := x.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	case string:
		parsed, err := core.ParseAmount(x)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}
