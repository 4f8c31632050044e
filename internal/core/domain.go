package core

import (
	"errors"
	"math"
	"strings"
	"time"
)

type (
	// LineItem is one row of a tax invoice. Optional numerics are pointers so
	// that an absent value can be told apart from an explicit zero.
	LineItem struct {
		ID        string
		InvoiceID string
		Name      string
		HSNCode   string
		Quantity  *float64
		UnitPrice *float64
		Total     *float64 // taxable amount, authoritative
		GSTRate   *float64 // percentage, e.g. 18 means 18%
		CreatedAt time.Time
	}

	// Invoice is the metadata of an uploaded document.
	Invoice struct {
		ID        string    `json:"id"`
		FileName  string    `json:"file_name"`
		FileType  string    `json:"file_type"`
		RawText   string    `json:"raw_text,omitempty"`
		CreatedAt time.Time `json:"created_at"`

		SyncStatus string `json:"sync_status,omitempty"`
	}

	// ItemPatch carries a partial update of a stored line item; nil fields are left unchanged.
	ItemPatch struct {
		ID        string
		Name      *string
		HSNCode   *string
		Quantity  *float64
		UnitPrice *float64
		Total     *float64
		GSTRate   *float64
	}
)

const (
	SyncPending = "pending"
	SyncSynced  = "synced"
	SyncError   = "error"
)

var (
	ErrInvoiceNotFound   = errors.New("invoice not found")
	ErrItemNotFound      = errors.New("item not found")
	ErrNoInvoices        = errors.New("no invoices found")
	ErrNoItems           = errors.New("no line items found")
	ErrEmptyName         = errors.New("empty item name")
	ErrInvalidQuantity   = errors.New("invalid quantity")
	ErrInvalidPrice      = errors.New("invalid unit price")
	ErrInvalidTotal      = errors.New("invalid total")
	ErrInvalidRate       = errors.New("invalid gst rate")
	ErrMissingItemID     = errors.New("missing item id")
	ErrUnsupportedFormat = errors.New("unsupported file format")
	ErrInvalidDateRange  = errors.New("invalid date range")
)

// Float returns a pointer to v. Handy for building items in code and tests.
func Float(v float64) *float64 { return &v }

func valueOr(p *float64, def float64) float64 {
	if p == nil || math.IsNaN(*p) || math.IsInf(*p, 0) {
		return def
	}
	return *p
}

// QuantityOrDefault returns the quantity, 1 when absent.
func (it LineItem) QuantityOrDefault() float64 { return valueOr(it.Quantity, 1) }

// UnitPriceOrDefault returns the unit price, 0 when absent.
func (it LineItem) UnitPriceOrDefault() float64 { return valueOr(it.UnitPrice, 0) }

// TotalOrDefault returns the taxable amount, 0 when absent.
func (it LineItem) TotalOrDefault() float64 { return valueOr(it.Total, 0) }

// RateOrDefault returns the GST rate, 0 when absent.
func (it LineItem) RateOrDefault() float64 { return valueOr(it.GSTRate, 0) }

// HasRate reports whether the item carries a usable GST rate.
func (it LineItem) HasRate() bool {
	return it.GSTRate != nil && !math.IsNaN(*it.GSTRate) && !math.IsInf(*it.GSTRate, 0)
}

// TaxAmount is Total * GSTRate / 100 with defaults applied.
func (it LineItem) TaxAmount() float64 {
	return it.TotalOrDefault() * it.RateOrDefault() / 100
}

// Validate applies the strict checks used before persisting an item.
// The aggregator never calls it: it accepts whatever it is given.
func (it LineItem) Validate() error {
	if strings.TrimSpace(it.Name) == "" {
		return ErrEmptyName
	}
	if it.Quantity != nil {
		if q := *it.Quantity; math.IsNaN(q) || math.IsInf(q, 0) || q <= 0 {
			return ErrInvalidQuantity
		}
	}
	if it.UnitPrice != nil {
		if p := *it.UnitPrice; math.IsNaN(p) || math.IsInf(p, 0) || p < 0 {
			return ErrInvalidPrice
		}
	}
	if it.Total != nil {
		if t := *it.Total; math.IsNaN(t) || math.IsInf(t, 0) {
			return ErrInvalidTotal
		}
	}
	if it.GSTRate != nil {
		if r := *it.GSTRate; math.IsNaN(r) || math.IsInf(r, 0) || r < 0 || r > 100 {
			return ErrInvalidRate
		}
	}
	return nil
}

// Apply returns a copy of it with the non-nil patch fields applied.
func (p ItemPatch) Apply(it LineItem) LineItem {
	if p.Name != nil {
		it.Name = strings.TrimSpace(*p.Name)
	}
	if p.HSNCode != nil {
		it.HSNCode = strings.TrimSpace(*p.HSNCode)
	}
	if p.Quantity != nil {
		it.Quantity = Float(*p.Quantity)
	}
	if p.UnitPrice != nil {
		it.UnitPrice = Float(*p.UnitPrice)
	}
	if p.Total != nil {
		it.Total = Float(*p.Total)
	}
	if p.GSTRate != nil {
		it.GSTRate = Float(*p.GSTRate)
	}
	return it
}

// Empty reports whether the patch changes nothing.
func (p ItemPatch) Empty() bool {
	return p.Name == nil && p.HSNCode == nil && p.Quantity == nil &&
		p.UnitPrice == nil && p.Total == nil && p.GSTRate == nil
}
