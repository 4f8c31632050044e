// Package classifier assigns a GST rate, and where possible an HSN code, to
// line items that arrive without one.
//
// Lookup order for an item name:
//  1. specific items (substring match)
//  2. the HSN master table (description word in the name, then a fuzzy
//     score over token-sorted strings)
//  3. keyword categories, most hits wins
//  4. the default rate
package classifier

import (
	"sort"
	"strings"
	"sync"
	"unicode"

	"github.com/lithammer/fuzzysearch/fuzzy"

	"taxlyzer/internal/core"
)

// Source says which rule produced a classification.
type Source string

const (
	SourceExplicit Source = "explicit"
	SourceSpecific Source = "specific_item"
	SourceHSN      Source = "hsn_table"
	SourceCategory Source = "category"
	SourceDefault  Source = "default"
)

// Result is the outcome for one item name.
type Result struct {
	Rate     float64
	HSNCode  string
	Category string
	Source   Source
}

type Classifier struct {
	rules Rules

	mu    sync.RWMutex
	slabs []core.GSTSlab
}

// New builds a classifier from rules and the HSN master table.
func New(rules Rules, slabs []core.GSTSlab) *Classifier {
	c := &Classifier{rules: rules}
	c.SetSlabs(slabs)
	return c
}

// SetSlabs replaces the HSN master table.
func (c *Classifier) SetSlabs(slabs []core.GSTSlab) {
	cp := append([]core.GSTSlab(nil), slabs...)
	c.mu.Lock()
	c.slabs = cp
	c.mu.Unlock()
}

// Classify resolves a rate for an item name.
func (c *Classifier) Classify(name string) Result {
	lname := strings.ToLower(strings.TrimSpace(name))

	for _, s := range c.rules.SpecificItems {
		if s.Match != "" && strings.Contains(lname, s.Match) {
			return Result{Rate: s.GSTRate, HSNCode: s.HSNCode, Source: SourceSpecific}
		}
	}

	if slab, ok := c.matchHSN(lname); ok {
		return Result{Rate: slab.GSTRate, HSNCode: slab.HSNCode, Source: SourceHSN}
	}

	if cat, ok := c.matchCategory(lname); ok {
		return Result{Rate: cat.GSTRate, Category: cat.Name, Source: SourceCategory}
	}

	return Result{Rate: c.rules.DefaultRate, Source: SourceDefault}
}

// ClassifyItems fills in the rate of every item that has none. An HSN code
// found along the way is set only when the item has no code of its own.
// Items with an explicit rate are returned untouched. The input slice is
// not modified.
func (c *Classifier) ClassifyItems(items []core.LineItem) ([]core.LineItem, []Result) {
	out := make([]core.LineItem, len(items))
	results := make([]Result, len(items))
	for i, it := range items {
		if it.HasRate() {
			out[i] = it
			results[i] = Result{Rate: it.RateOrDefault(), HSNCode: it.HSNCode, Source: SourceExplicit}
			continue
		}
		r := c.Classify(it.Name)
		it.GSTRate = core.Float(r.Rate)
		if it.HSNCode == "" {
			it.HSNCode = r.HSNCode
		}
		out[i] = it
		results[i] = r
	}
	return out, results
}

func (c *Classifier) matchHSN(lname string) (core.GSTSlab, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var (
		best      core.GSTSlab
		bestScore int
	)
	for _, slab := range c.slabs {
		desc := strings.ToLower(slab.Description)
		if !sharesWord(desc, lname) {
			continue
		}
		if score := TokenSortRatio(desc, lname); score > bestScore {
			best, bestScore = slab, score
		}
	}
	if bestScore > c.rules.HSNMatchThreshold {
		return best, true
	}
	return core.GSTSlab{}, false
}

// sharesWord reports whether a description word longer than three
// characters occurs in the item name.
func sharesWord(desc, lname string) bool {
	for _, w := range strings.Fields(desc) {
		if len(w) > 3 && strings.Contains(lname, w) {
			return true
		}
	}
	return false
}

func (c *Classifier) matchCategory(lname string) (Category, bool) {
	var (
		best      Category
		bestCount int
	)
	for _, cat := range c.rules.Categories {
		n := 0
		for _, kw := range cat.Keywords {
			if kw != "" && strings.Contains(lname, kw) {
				n++
			}
		}
		if n > bestCount {
			best, bestCount = cat, n
		}
	}
	return best, bestCount > 0
}

// TokenSortRatio scores two strings 0..100 after lower-casing, stripping
// punctuation and sorting their words, so word order does not matter.
func TokenSortRatio(a, b string) int {
	a, b = sortTokens(a), sortTokens(b)
	longest := max(len([]rune(a)), len([]rune(b)))
	if longest == 0 {
		return 0
	}
	d := fuzzy.LevenshteinDistance(a, b)
	return int(100*(1-float64(d)/float64(longest)) + 0.5)
}

func sortTokens(s string) string {
	words := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	sort.Strings(words)
	return strings.Join(words, " ")
}
