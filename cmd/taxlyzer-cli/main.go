// Command taxlyzer-cli computes GST breakdowns and GSTR-1 returns offline.
package main

import (
	"os"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		pterm.Error.Println(err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "taxlyzer-cli",
		Short:         "GST tax breakdowns and GSTR-1 returns from invoice files",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetVersionTemplate("taxlyzer-cli {{.Version}}\n")
	root.AddCommand(newBreakdownCmd(), newGSTR1Cmd(), newVersionCmd())
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Printf("taxlyzer-cli %s\n", version)
		},
	}
}
