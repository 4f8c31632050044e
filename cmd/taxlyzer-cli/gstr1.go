package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"taxlyzer/internal/core"
	"taxlyzer/internal/report"
	"taxlyzer/internal/services"
	"taxlyzer/internal/storage"
)

type gstr1Flags struct {
	db     string
	from   string
	to     string
	out    string
	format string
	opts   report.GSTR1Options
}

func newGSTR1Cmd() *cobra.Command {
	f := gstr1Flags{opts: report.DefaultGSTR1Options()}
	cmd := &cobra.Command{
		Use:   "gstr1",
		Short: "Build a GSTR-1 return from the SQLite store",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGSTR1(cmd.Context(), f)
		},
	}
	cmd.Flags().StringVar(&f.db, "db", "./data/taxlyzer.db", "SQLite database path")
	cmd.Flags().StringVar(&f.from, "from", "", "first invoice date, YYYY-MM-DD")
	cmd.Flags().StringVar(&f.to, "to", "", "last invoice date, YYYY-MM-DD")
	cmd.Flags().StringVar(&f.out, "out", "", "output file (default gstr1_<from>_<to>.<format>)")
	cmd.Flags().StringVar(&f.format, "format", report.FormatCSV, "csv or xlsx")
	cmd.Flags().StringVar(&f.opts.SupplierGSTIN, "gstin", f.opts.SupplierGSTIN, "supplier GSTIN")
	cmd.Flags().StringVar(&f.opts.ReceiverGSTIN, "receiver-gstin", f.opts.ReceiverGSTIN, "receiver GSTIN")
	cmd.Flags().StringVar(&f.opts.PlaceOfSupply, "place-of-supply", f.opts.PlaceOfSupply, "place of supply")
	return cmd
}

func runGSTR1(ctx context.Context, f gstr1Flags) error {
	if ctx == nil {
		ctx = context.Background()
	}
	dr, err := core.ParseDateRange(f.from, f.to)
	if err != nil {
		return err
	}
	if _, err := os.Stat(f.db); err != nil {
		return fmt.Errorf("database %s: %w", f.db, err)
	}

	repo, err := storage.NewSQLiteRepository(f.db)
	if err != nil {
		return err
	}
	defer repo.Close()

	spinner, _ := pterm.DefaultSpinner.Start("Building GSTR-1 return...")
	rep, err := services.NewReportService(repo, nil, nil, f.opts, 4).
		GSTR1(ctx, dr.Start, dr.End, strings.ToLower(f.format))
	if err != nil {
		if spinner != nil {
			spinner.Fail(err.Error())
		}
		return err
	}

	out := f.out
	if out == "" {
		out = rep.FileName
	}
	if err := os.WriteFile(out, rep.Body, 0o644); err != nil {
		if spinner != nil {
			spinner.Fail(err.Error())
		}
		return err
	}
	if spinner != nil {
		spinner.Success(fmt.Sprintf("Wrote %s (%d bytes)", out, len(rep.Body)))
	}
	return nil
}
