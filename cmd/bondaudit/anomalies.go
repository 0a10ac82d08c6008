package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/screwyprof/bondaudit/auditor"
	"github.com/screwyprof/bondaudit/auditor/sink/filesink"
	"github.com/screwyprof/bondaudit/auditor/store/dbrow"
	"github.com/screwyprof/bondaudit/auditor/store/pgxstore"
	"github.com/screwyprof/bondaudit/pkg/logger"
	"github.com/screwyprof/bondaudit/pkg/pgxdb"
)

var ErrNoDatabase = errors.New("no database configured: set AUDITOR_DATABASE_URL or use --file")

type anomaliesOptions struct {
	file     string
	criteria pgxstore.Criteria
	kind     string
	runs     bool
}

func newAnomaliesCmd(a *app) *cobra.Command {
	var opts anomaliesOptions

	cmd := &cobra.Command{
		Use:   "anomalies",
		Short: "List recorded anomalies",
		Long: `List anomalies from an anomaly file (--file) or from the Postgres mirror.

With --runs the recorded audit runs are listed instead, including the resume
cursor of runs that aborted.`,
		Example: `  bondaudit anomalies --file polkadot-19000000.data
  bondaudit anomalies --chain kusama --kind DOUBLE --limit 20
  bondaudit anomalies --runs`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.criteria.Kind = auditor.RecordKind(strings.ToUpper(opts.kind))
			if opts.file != "" {
				return printFile(cmd.OutOrStdout(), opts.file, opts.criteria.Kind)
			}
			if a.cfg.DatabaseURL == "" {
				return ErrNoDatabase
			}

			db, err := pgxdb.NewConnection(cmd.Context(), a.cfg.DatabaseURL)
			if err != nil {
				return err
			}
			store, storeCloser := pgxstore.New(db)
			defer storeCloser()

			if opts.runs {
				runs, err := store.Runs(cmd.Context(), opts.criteria)
				if err != nil {
					return err
				}
				printRuns(cmd.OutOrStdout(), runs)
				return nil
			}

			anomalies, err := store.Anomalies(cmd.Context(), opts.criteria)
			if err != nil {
				return err
			}
			printAnomalies(cmd.OutOrStdout(), anomalies)
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.file, "file", "", "read an anomaly file instead of the database")
	cmd.Flags().StringVar(&opts.criteria.Chain, "chain", "", "filter by chain")
	cmd.Flags().StringVar(&opts.kind, "kind", "", "filter by kind (DOUBLE or NONE)")
	cmd.Flags().StringVar(&opts.criteria.RunID, "run", "", "filter by run ID")
	cmd.Flags().IntVarP(&opts.criteria.Limit, "limit", "n", pgxstore.DefaultLimit, "max results")
	cmd.Flags().BoolVar(&opts.runs, "runs", false, "list audit runs instead of anomalies")

	return cmd
}

func printFile(w io.Writer, path string, kind auditor.RecordKind) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	entries, err := filesink.ParseRecords(f)
	if err != nil {
		return err
	}

	var shown int
	for _, e := range entries {
		if kind != "" && e.Kind != kind {
			continue
		}
		shown++
		fmt.Fprintf(w, "%-6s controller: %s stash: %s\n", e.Kind, e.Controller, e.Stash)
	}
	fmt.Fprintf(w, "%d anomalies\n", shown)

	return nil
}

func printAnomalies(w io.Writer, anomalies []dbrow.Anomaly) {
	for _, a := range anomalies {
		fmt.Fprintf(w, "%s %s@%d #%d %-6s controller: %s stash: %s\n",
			a.RunID, a.Chain, a.Height, a.Position, a.Kind, a.Controller, a.Stash)
	}
	fmt.Fprintf(w, "%d anomalies\n", len(anomalies))
}

func printRuns(w io.Writer, runs []dbrow.Run) {
	for _, r := range runs {
		status := "running"
		switch {
		case r.Error != nil:
			status = "failed: " + *r.Error
		case r.FinishedAt != nil:
			status = "completed"
		}
		fmt.Fprintf(w, "%s %s@%d started %s cursor %d..%d double: %d, none: %d  %s\n",
			r.ID, r.Chain, r.Height, r.StartedAt.Format(logger.BritishTimeFormat),
			r.StartCursor, r.ResumeCursor, r.DoubleBonded, r.Orphaned, status)
	}
}
