package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/screwyprof/bondaudit/auditor"
	"github.com/screwyprof/bondaudit/auditor/progress"
	"github.com/screwyprof/bondaudit/auditor/sink/filesink"
	"github.com/screwyprof/bondaudit/auditor/store/pgxstore"
	"github.com/screwyprof/bondaudit/cmd/bondaudit/config"
	"github.com/screwyprof/bondaudit/pkg/logger"
	"github.com/screwyprof/bondaudit/pkg/pgxdb"
	"github.com/screwyprof/bondaudit/pkg/substrate"
)

const mirrorSinkName = "postgres"

func newScanCmd(a *app) *cobra.Command {
	opts := a.cfg

	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Reconcile every bonded pair against its ledgers",
		Long: `Scan resolves a fixed block (the latest finalized one unless --at is given),
then classifies every bonded pair in storage order. Progress goes to stdout.

An interrupted scan is resumed by rerunning with --skip set to the reported
resume cursor and --at set to the same block.`,
		Example: `  bondaudit scan --chain kusama
  bondaudit scan --chain polkadot --skip 60990 --at 0x...`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScan(cmd.Context(), a.log, cmd.OutOrStdout(), opts)
		},
	}

	cmd.Flags().StringVar(&opts.Chain, "chain", a.cfg.Chain, "chain to audit ("+fmt.Sprint(substrate.KnownChains())+")")
	cmd.Flags().Uint64Var(&opts.Skip, "skip", a.cfg.Skip, "bonded entries to skip before classifying")
	cmd.Flags().StringVar(&opts.Endpoint, "endpoint", a.cfg.Endpoint, "RPC endpoint (default derived from chain)")
	cmd.Flags().StringVar(&opts.BlockHash, "at", a.cfg.BlockHash, "block hash to audit (default latest finalized)")

	return cmd
}

func runScan(ctx context.Context, log *slog.Logger, stdout io.Writer, cfg config.Config) error {
	profile, err := substrate.LookupProfile(cfg.Chain)
	if err != nil {
		return err
	}

	endpoint := profile.Endpoint
	if cfg.Endpoint != "" {
		endpoint = cfg.Endpoint
	}

	schema := profile.LedgerSchema
	if cfg.LedgerSchema != "" {
		if schema, err = substrate.ParseLedgerSchema(cfg.LedgerSchema); err != nil {
			return err
		}
	}

	log.InfoContext(ctx, "Connecting to node",
		slog.String("chain", profile.Name),
		slog.String("endpoint", endpoint),
		slog.String("ledgerSchema", string(schema)),
	)
	client, err := substrate.Dial(ctx, endpoint, substrate.WithCallTimeout(cfg.RPCTimeout))
	if err != nil {
		return err
	}
	defer client.Close()

	chain := substrate.NewStaking(client, schema)

	state, err := auditor.ResolveState(ctx, chain, cfg.BlockHash)
	if err != nil {
		return err
	}

	sink, err := filesink.Open(cfg.OutputDir, filesink.FileName(profile.Name, state.Number), state)
	if err != nil {
		return err
	}
	defer closeAnomalyFile(ctx, log, sink)

	log.InfoContext(ctx, "Resolved state",
		slog.String("hash", state.Hash.Hex()),
		slog.Uint64("height", state.Number),
		slog.String("anomalyFile", sink.Path()),
	)

	opts := []auditor.Option{
		auditor.WithCursor(cfg.Skip),
		auditor.WithPageSize(cfg.PageSize),
		auditor.WithSubscriber(progress.New(stdout).Subscriber()),
		auditor.WithSubscriber(eventLogging(ctx, log)),
	}

	var recorder *pgxstore.Recorder
	if cfg.DatabaseURL != "" {
		db, err := pgxdb.NewConnection(ctx, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		store, storeCloser := pgxstore.New(db)
		defer storeCloser()

		recorder = store.Recorder(profile.Name)
		if err := recorder.StartRun(ctx, state, cfg.Skip, time.Now()); err != nil {
			return err
		}
		log.InfoContext(ctx, "Mirroring anomalies to Postgres", slog.String("runID", recorder.RunID()))

		opts = append(opts, auditor.WithMirror(mirrorSinkName, recorder))
	}

	summary, runErr := auditor.NewService(chain, sink, opts...).Run(ctx, state)

	if recorder != nil {
		if err := recorder.FinishRun(context.WithoutCancel(ctx), summary, time.Now(), runErr); err != nil {
			log.ErrorContext(ctx, "Failed to record run summary", slog.Any("error", err))
		}
	}

	if runErr != nil {
		return fmt.Errorf("scan aborted, resume with --skip %d --at %s: %w",
			summary.ResumeCursor, state.Hash.Hex(), runErr)
	}
	return nil
}

// closeAnomalyFile logs a failed close; records are already synced per append
func closeAnomalyFile(ctx context.Context, log *slog.Logger, sink *filesink.Sink) {
	if err := sink.Close(); err != nil {
		log.ErrorContext(ctx, "Failed to close anomaly file",
			slog.String("path", sink.Path()),
			slog.Any("error", err),
		)
	}
}

// eventLogging configures event handlers using slog directly
func eventLogging(ctx context.Context, log *slog.Logger) *auditor.Subscriber {
	return auditor.NewSubscriber(
		auditor.OnScanStarted(func(event auditor.ScanStarted) {
			log.InfoContext(ctx, "Scan started",
				slog.String("startedAt", event.StartedAt.Format(logger.BritishTimeFormat)),
				slog.Uint64("height", event.State.Number),
				slog.Uint64("cursor", event.Cursor),
			)
		}),
		auditor.OnSinkFailed(func(event auditor.SinkFailed) {
			log.WarnContext(ctx, "Anomaly record not persisted",
				slog.String("sink", event.Sink),
				slog.String("kind", string(event.Record.Kind)),
				slog.Uint64("position", event.Record.Position),
				slog.Any("error", event.Err),
			)
		}),
		auditor.OnScanCompleted(func(event auditor.ScanCompleted) {
			log.InfoContext(ctx, "Scan completed", summaryAttrs(event.Summary)...)
		}),
		auditor.OnScanFailed(func(event auditor.ScanFailed) {
			attrs := append(summaryAttrs(event.Summary), slog.Any("error", event.Err))
			log.ErrorContext(ctx, "Scan failed", attrs...)
		}),
	)
}

func summaryAttrs(s auditor.Summary) []any {
	c := s.Counters
	return []any{
		slog.Uint64("processed", c.Total()),
		slog.Uint64("migrated", c.Migrated),
		slog.Uint64("double", c.DoubleBonded),
		slog.Uint64("controller", c.ControllerOnly),
		slog.Uint64("stash", c.StashOnly),
		slog.Uint64("none", c.Orphaned),
		slog.Uint64("sinkFailures", s.SinkFailures),
		slog.Uint64("resumeCursor", s.ResumeCursor),
		slog.Duration("duration", s.Duration),
	}
}
