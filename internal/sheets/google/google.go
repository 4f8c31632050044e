// Package google exports invoice GST breakdowns to a Google Sheets
// spreadsheet, one row per rate.
package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"taxlyzer/internal/core"
	"taxlyzer/internal/ports"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

// Header is the first row written to an empty sheet.
var Header = []any{"Invoice ID", "File", "Invoice Date", "GST Rate", "Taxable Value", "CGST", "SGST", "Total Tax", "Exported At"}

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	// sheetBase is prefixed with the invoice year, e.g. "2024 GST".
	sheetBase string
	now       func() time.Time
}

var _ ports.BreakdownExporter = (*Client)(nil)

// Options configures a Client. CredentialsJSON takes precedence over
// CredentialsFile.
type Options struct {
	SpreadsheetID   string
	SheetName       string
	CredentialsJSON string
	CredentialsFile string
	// ClientOptions are passed to the Sheets service after the credentials.
	ClientOptions []goption.ClientOption
}

// New creates a Sheets client authenticated with a service account.
func New(ctx context.Context, opts Options) (*Client, error) {
	spreadsheetID := strings.TrimSpace(opts.SpreadsheetID)
	if spreadsheetID == "" {
		return nil, errors.New("missing spreadsheet id")
	}
	sheetBase := strings.TrimSpace(opts.SheetName)
	if sheetBase == "" {
		sheetBase = "GST"
	}

	clientOpts, err := credentialOptions(ctx, opts)
	if err != nil {
		return nil, err
	}
	clientOpts = append(clientOpts, opts.ClientOptions...)

	svc, err := gsheet.NewService(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	slog.InfoContext(ctx, "Google Sheets service created", "spreadsheet_id", spreadsheetID, "sheet", sheetBase)

	return &Client{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		sheetBase:     sheetBase,
		now:           time.Now,
	}, nil
}

func credentialOptions(ctx context.Context, opts Options) ([]goption.ClientOption, error) {
	credentialsJSON := []byte(strings.TrimSpace(opts.CredentialsJSON))
	switch {
	case len(credentialsJSON) > 0:
		slog.DebugContext(ctx, "Using inline service account credentials")
	case strings.TrimSpace(opts.CredentialsFile) != "":
		data, err := os.ReadFile(opts.CredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		credentialsJSON = data
	case len(opts.ClientOptions) > 0:
		// caller supplies its own auth, e.g. WithoutAuthentication in tests
		return nil, nil
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON or GOOGLE_SERVICE_ACCOUNT_FILE)")
	}
	return []goption.ClientOption{
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope),
	}, nil
}

// ExportBreakdown appends one row per GST rate of the invoice, ascending by
// rate, to the sheet of the invoice's year. It writes the header first when
// the sheet is empty and returns the updated range.
func (c *Client) ExportBreakdown(ctx context.Context, inv core.Invoice, b core.Breakdown) (string, error) {
	if c.svc == nil {
		return "", errors.New("sheets service not initialized")
	}
	rows := BreakdownRows(inv, b, c.now())
	if len(rows) == 0 {
		return "", nil
	}

	sheet := yearPrefixedName(c.sheetBase, inv.CreatedAt.Year())
	rng := fmt.Sprintf("%s!A:I", quoteSheet(sheet))

	existing, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, fmt.Sprintf("%s!A1:A1", quoteSheet(sheet))).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("read %s: %w", sheet, err)
	}
	if len(existing.Values) == 0 {
		rows = append([][]any{Header}, rows...)
	}

	resp, err := c.svc.Spreadsheets.Values.Append(c.spreadsheetID, rng, &gsheet.ValueRange{Values: rows}).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("append to sheet %s: %w", sheet, err)
	}
	if resp.Updates != nil {
		return resp.Updates.UpdatedRange, nil
	}
	return rng, nil
}

// BreakdownRows lays out a breakdown as sheet rows. Amounts use two
// decimals so USER_ENTERED parses them as numbers.
func BreakdownRows(inv core.Invoice, b core.Breakdown, exportedAt time.Time) [][]any {
	entries := b.Entries()
	rows := make([][]any, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, []any{
			inv.ID,
			inv.FileName,
			inv.CreatedAt.Format("2006-01-02"),
			core.FormatRate(e.Rate),
			core.FormatPlain(e.TaxableAmount),
			core.FormatPlain(e.CGST()),
			core.FormatPlain(e.SGST()),
			core.FormatPlain(e.TaxAmount),
			exportedAt.UTC().Format(time.RFC3339),
		})
	}
	return rows
}

// yearPrefixedName returns "<year> <base>" unless base already starts with a 4-digit year.
func yearPrefixedName(base string, year int) string {
	base = strings.TrimSpace(base)
	if base == "" {
		return base
	}
	if len(base) >= 5 {
		if y, err := strconv.Atoi(base[0:4]); err == nil && base[4] == ' ' && y > 1900 && y < 3000 {
			return base
		}
	}
	return fmt.Sprintf("%d %s", year, base)
}

// quoteSheet quotes a sheet name for A1 notation.
func quoteSheet(name string) string {
	return "'" + strings.ReplaceAll(name, "'", "''") + "'"
}
