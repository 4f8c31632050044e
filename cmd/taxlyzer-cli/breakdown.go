package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"taxlyzer/internal/classifier"
	"taxlyzer/internal/core"
	"taxlyzer/internal/report"
	"taxlyzer/internal/services"
	"taxlyzer/internal/storage/memory"
)

var (
	bold  = color.New(color.Bold).SprintFunc()
	green = color.New(color.FgGreen, color.Bold).SprintFunc()
	cyan  = color.New(color.FgCyan).SprintFunc()
)

func newBreakdownCmd() *cobra.Command {
	var rulesFile string
	cmd := &cobra.Command{
		Use:   "breakdown <file>",
		Short: "Print the GST breakdown of a CSV, XLSX or JSON items file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rules := classifier.DefaultRules()
			if rulesFile != "" {
				var err error
				if rules, err = classifier.LoadRules(rulesFile); err != nil {
					return err
				}
			}
			items, classified, err := loadItems(args[0], classifier.New(rules, memory.DefaultSlabs()))
			if err != nil {
				return err
			}
			return renderBreakdown(cmd.OutOrStdout(), filepath.Base(args[0]), items, classified)
		},
	}
	cmd.Flags().StringVar(&rulesFile, "rules", "", "classifier rules file (YAML)")
	return cmd
}

// loadItems parses path and fills missing rates. It returns how many rates
// were inferred.
func loadItems(path string, c *classifier.Classifier) ([]core.LineItem, int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, 0, err
	}
	ex, err := services.ExtractItems(c, filepath.Base(path), "", data)
	if err != nil {
		return nil, 0, fmt.Errorf("%s: %w", path, err)
	}
	return ex.Items, ex.Classified, nil
}

// breakdownTable is the header, one row per rate and the Total row.
func breakdownTable(b core.Breakdown) pterm.TableData {
	data := pterm.TableData{report.BreakdownHeader}
	return append(data, report.BreakdownRows(b, core.FormatRupees)...)
}

func renderBreakdown(w io.Writer, name string, items []core.LineItem, classified int) error {
	b := core.Aggregate(items)

	fmt.Fprintf(w, "%s %s (%d items, %d rates inferred)\n\n", bold("Invoice:"), cyan(name), len(items), classified)

	table, err := pterm.DefaultTable.WithHasHeader().WithBoxed().WithData(breakdownTable(b)).Srender()
	if err != nil {
		return err
	}
	fmt.Fprintln(w, table)

	fmt.Fprintf(w, "\n%s %s\n", bold("Grand Total:"), green(core.FormatRupees(b.Totals().GrandTotal())))
	return nil
}
