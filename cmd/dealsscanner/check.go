package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"DealsScanner/internal/app"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Validate configuration and test the Telegram connection",
	RunE:  runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, _ []string) error {
	cfg, logger, closer, err := setup(false)
	if err != nil {
		return err
	}
	defer closer.Close()

	application, err := app.New(cmd.Context(), cfg, logger)
	if err != nil {
		return fmt.Errorf("startup: %w", err)
	}
	defer application.Close()

	info, err := application.Check(cmd.Context())
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "configuration ok; telegram bot @%s, ledger %s with %d entries\n",
		info.Username, cfg.Ledger.Backend, application.Ledger().Len())
	return nil
}
