package parser

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	"taxlyzer/internal/adapters"
)

// ParseCSV reads a comma or semicolon separated file with a header row.
func ParseCSV(data []byte) (Document, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true
	if firstLine, _, _ := bytes.Cut(data, []byte("\n")); bytes.Count(firstLine, []byte(";")) > bytes.Count(firstLine, []byte(",")) {
		r.Comma = ';'
	}

	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return Document{}, errors.New("empty csv")
	}
	if err != nil {
		return Document{}, fmt.Errorf("read csv header: %w", err)
	}
	var rows [][]string
	for {
		row, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return Document{}, fmt.Errorf("read csv row: %w", err)
		}
		rows = append(rows, row)
	}
	return Document{
		FileType: TypeCSV,
		RawText:  string(data),
		Records:  rowsToRecords(header, rows),
	}, nil
}

// ParseXLSX reads the first worksheet of a workbook. The first non-empty
// row is the header.
func ParseXLSX(data []byte) (Document, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return Document{}, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return Document{}, errors.New("workbook has no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return Document{}, fmt.Errorf("read sheet %s: %w", sheets[0], err)
	}

	start := 0
	for start < len(rows) && isEmptyRow(rows[start]) {
		start++
	}
	if start == len(rows) {
		return Document{}, fmt.Errorf("sheet %s is empty", sheets[0])
	}

	var raw strings.Builder
	for _, row := range rows[start:] {
		raw.WriteString(strings.Join(row, "\t"))
		raw.WriteByte('\n')
	}
	return Document{
		FileType: TypeXLSX,
		RawText:  raw.String(),
		Records:  rowsToRecords(rows[start], rows[start+1:]),
	}, nil
}

// ParseJSON accepts an array of items or an object with an "items" array.
func ParseJSON(data []byte) (Document, error) {
	records, err := adapters.RecordsFromJSON(data)
	if err != nil {
		return Document{}, err
	}
	return Document{FileType: TypeJSON, RawText: string(data), Records: records}, nil
}

func isEmptyRow(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
