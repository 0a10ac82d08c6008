package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/screwyprof/bondaudit/cmd/bondaudit/config"
)

// app carries what every command needs
type app struct {
	cfg config.Config
	log *slog.Logger
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "bondaudit",
		Short: "Audit staking for double-bonded accounts",
		Long: `bondaudit walks every Staking.Bonded entry of a relay chain at a fixed block,
looks up the staking ledger of both the stash and the controller, and reports
pairs whose stash and controller differ yet both carry a ledger.

Anomalies are appended to <chain>-<height>.data in the output directory and,
when AUDITOR_DATABASE_URL is set, mirrored to Postgres.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(newScanCmd(a))
	root.AddCommand(newAnomaliesCmd(a))
	root.AddCommand(newVersionCmd())

	return root
}
