package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"DealsScanner/internal/app"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the pipeline once",
	Long:  `Fetch deal pages, enrich new identifiers, and announce the best deals once, then exit.`,
	RunE:  runOnce,
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Run the pipeline every scheduler interval until interrupted",
	RunE:  runWatch,
}

func init() {
	rootCmd.AddCommand(runCmd, watchCmd)
}

func runOnce(cmd *cobra.Command, _ []string) error {
	cfg, logger, closer, err := setup(true)
	if err != nil {
		return err
	}
	defer closer.Close()

	application, err := app.New(cmd.Context(), cfg, logger)
	if err != nil {
		return fmt.Errorf("startup: %w", err)
	}
	defer application.Close()

	summary, err := application.Run(cmd.Context())
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "sent %d of %d new deals (ledger: %d)\n",
		summary.Sent, summary.Discovered-summary.Filtered, summary.LedgerSize)
	return nil
}

func runWatch(cmd *cobra.Command, _ []string) error {
	cfg, logger, closer, err := setup(true)
	if err != nil {
		return err
	}
	defer closer.Close()

	application, err := app.New(cmd.Context(), cfg, logger)
	if err != nil {
		return fmt.Errorf("startup: %w", err)
	}
	defer application.Close()

	return application.Watch(cmd.Context())
}
