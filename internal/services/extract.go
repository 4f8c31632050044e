package services

import (
	"strings"

	"taxlyzer/internal/adapters"
	"taxlyzer/internal/classifier"
	"taxlyzer/internal/core"
	"taxlyzer/internal/parser"
)

// Extraction is a parsed upload with GST rates filled in.
type Extraction struct {
	Document parser.Document
	Items    []core.LineItem
	Results  []classifier.Result
	// Classified counts items whose rate was inferred.
	Classified int
}

// ExtractItems parses an uploaded file, drops rows without a name and fills
// missing rates with c. core.ErrNoItems is returned when no named row is left.
func ExtractItems(c *classifier.Classifier, fileName, contentType string, data []byte) (Extraction, error) {
	doc, err := parser.Parse(fileName, contentType, data)
	if err != nil {
		return Extraction{}, err
	}

	var items []core.LineItem
	for _, it := range adapters.ItemsFromMaps(doc.Records) {
		if strings.TrimSpace(it.Name) == "" {
			continue
		}
		items = append(items, it)
	}
	if len(items) == 0 {
		return Extraction{}, core.ErrNoItems
	}

	items, results := c.ClassifyItems(items)
	ex := Extraction{Document: doc, Items: items, Results: results}
	for _, r := range results {
		if r.Source != classifier.SourceExplicit {
			ex.Classified++
		}
	}
	return ex, nil
}
