// Package parser turns uploaded line-item files into raw records.
//
// Supported formats are CSV, XLSX and JSON. Records keep the header names
// found in the file; field-name normalization is left to package adapters.
package parser

import (
	"fmt"
	"path/filepath"
	"strings"

	"taxlyzer/internal/core"
)

// File types as stored on the invoice.
const (
	TypeCSV  = "csv"
	TypeXLSX = "xlsx"
	TypeJSON = "json"
)

// Document is the result of parsing one upload.
type Document struct {
	FileType string
	// RawText is a plain-text rendition of the source kept with the invoice.
	RawText string
	Records []map[string]any
}

// DetectType maps a file name (and optionally its content type) to one of
// the supported file types.
func DetectType(fileName, contentType string) (string, error) {
	switch strings.ToLower(filepath.Ext(fileName)) {
	case ".csv", ".txt":
		return TypeCSV, nil
	case ".xlsx", ".xlsm":
		return TypeXLSX, nil
	case ".json":
		return TypeJSON, nil
	}
	ct := strings.ToLower(contentType)
	switch {
	case strings.Contains(ct, "csv"):
		return TypeCSV, nil
	case strings.Contains(ct, "spreadsheetml"):
		return TypeXLSX, nil
	case strings.Contains(ct, "json"):
		return TypeJSON, nil
	}
	return "", fmt.Errorf("%w: %q", core.ErrUnsupportedFormat, fileName)
}

// Parse detects the format of data and decodes it.
func Parse(fileName, contentType string, data []byte) (Document, error) {
	ft, err := DetectType(fileName, contentType)
	if err != nil {
		return Document{}, err
	}
	var doc Document
	switch ft {
	case TypeCSV:
		doc, err = ParseCSV(data)
	case TypeXLSX:
		doc, err = ParseXLSX(data)
	case TypeJSON:
		doc, err = ParseJSON(data)
	}
	if err != nil {
		return Document{}, fmt.Errorf("parse %s: %w", fileName, err)
	}
	doc.Records = dropSummaryRows(doc.Records)
	if len(doc.Records) == 0 {
		return Document{}, core.ErrNoItems
	}
	return doc, nil
}

var summaryNames = map[string]struct{}{
	"total":       {},
	"subtotal":    {},
	"sub total":   {},
	"grand total": {},
	"net total":   {},
}

// dropSummaryRows removes totals lines and rows with no content at all.
func dropSummaryRows(rows []map[string]any) []map[string]any {
	out := rows[:0]
	for _, r := range rows {
		if isBlank(r) {
			continue
		}
		if name := firstString(r, "item", "name", "description"); name != "" {
			if _, ok := summaryNames[strings.ToLower(strings.TrimSpace(name))]; ok {
				continue
			}
		}
		out = append(out, r)
	}
	return out
}

func isBlank(r map[string]any) bool {
	for _, v := range r {
		if v == nil {
			continue
		}
		if s, ok := v.(string); ok && strings.TrimSpace(s) == "" {
			continue
		}
		return false
	}
	return true
}

func firstString(r map[string]any, keys ...string) string {
	for k, v := range r {
		lk := strings.ToLower(strings.TrimSpace(k))
		for _, want := range keys {
			if lk == want {
				if s, ok := v.(string); ok {
					return s
				}
			}
		}
	}
	return ""
}

// normalizeHeader trims a header cell and strips a UTF-8 byte order mark.
func normalizeHeader(h string) string {
	return strings.TrimSpace(strings.TrimPrefix(h, "\uFEFF"))
}

// rowsToRecords zips a header row with data rows.
func rowsToRecords(header []string, rows [][]string) []map[string]any {
	for i := range header {
		header[i] = normalizeHeader(header[i])
	}
	records := make([]map[string]any, 0, len(rows))
	for _, row := range rows {
		rec := make(map[string]any, len(header))
		for i, h := range header {
			if h == "" {
				continue
			}
			if i < len(row) {
				rec[h] = strings.TrimSpace(row[i])
			}
		}
		records = append(records, rec)
	}
	return records
}
