package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"DealsScanner/internal/app"
)

var ledgerLimit int

var ledgerCmd = &cobra.Command{
	Use:   "ledger",
	Short: "Inspect or maintain the announcement ledger",
}

var ledgerListCmd = &cobra.Command{
	Use:   "list",
	Short: "List announced identifiers, newest first",
	RunE:  runLedgerList,
}

var ledgerPurgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Drop entries older than the retention window",
	RunE:  runLedgerPurge,
}

func init() {
	ledgerListCmd.Flags().IntVar(&ledgerLimit, "limit", 0, "show at most this many entries (0 = all)")
	ledgerCmd.AddCommand(ledgerListCmd, ledgerPurgeCmd)
	rootCmd.AddCommand(ledgerCmd)
}

func openLedger(cmd *cobra.Command) (*app.Application, error) {
	cfg, logger, closer, err := setup(false)
	if err != nil {
		return nil, err
	}
	defer closer.Close()

	application, err := app.NewLedgerOnly(cmd.Context(), cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("open ledger: %w", err)
	}
	return application, nil
}

func runLedgerList(cmd *cobra.Command, _ []string) error {
	application, err := openLedger(cmd)
	if err != nil {
		return err
	}
	defer application.Close()

	entries := application.Ledger().Entries()
	if ledgerLimit > 0 && len(entries) > ledgerLimit {
		entries = entries[:ledgerLimit]
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tANNOUNCED AT\tAGE")
	for _, e := range entries {
		fmt.Fprintf(w, "%s\t%s\t%s\n", e.ID, e.AnnouncedAt.Format(time.RFC3339), time.Since(e.AnnouncedAt).Round(time.Minute))
	}
	return w.Flush()
}

func runLedgerPurge(cmd *cobra.Command, _ []string) error {
	application, err := openLedger(cmd)
	if err != nil {
		return err
	}
	defer application.Close()

	removed, err := application.Ledger().Purge(cmd.Context())
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "purged %d entries older than %s, %d remain\n",
		removed, application.Ledger().Retention(), application.Ledger().Len())
	return nil
}
