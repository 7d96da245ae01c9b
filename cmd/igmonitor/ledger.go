package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"igmonitor/pkg/config"
	"igmonitor/pkg/ledger"
	"igmonitor/pkg/logger"
	"igmonitor/pkg/ui"
)

var ledgerCmd = &cobra.Command{
	Use:   "ledger",
	Short: "Inspect or clear the record of reported posts",
}

var ledgerShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show how many posts the ledger remembers",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := openLedger()
		if err != nil {
			return err
		}
		l, err := m.Load()
		if err != nil {
			return err
		}
		ui.PrintInfo("Ledger", m.Path())
		ui.PrintInfo("Posts remembered", fmt.Sprintf("%d", len(l.Seen)))
		return nil
	},
}

var ledgerResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Forget every reported post",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := openLedger()
		if err != nil {
			return err
		}
		if err := m.Reset(); err != nil {
			return err
		}
		ui.PrintSuccess("Ledger cleared: " + m.Path())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(ledgerCmd)
	ledgerCmd.AddCommand(ledgerShowCmd)
	ledgerCmd.AddCommand(ledgerResetCmd)
}

func openLedger() (*ledger.Manager, error) {
	cfg, err := config.Load(configFile, nil)
	if err != nil {
		return nil, fmt.Errorf("configuration: %w", err)
	}
	return ledger.NewManager(cfg.Ledger.Path, logger.NewNopLogger())
}
