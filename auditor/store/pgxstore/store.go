package pgxstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/screwyprof/bondaudit/auditor"
	"github.com/screwyprof/bondaudit/auditor/store/dbrow"
)

// Sentinel errors for store operations
var (
	ErrStartRunFailed  = errors.New("failed to record audit run")
	ErrFinishRunFailed = errors.New("failed to finish audit run")
	ErrInsertFailed    = errors.New("insert operation failed")
	ErrQueryFailed     = errors.New("query failed")
)

// DefaultLimit caps queries without an explicit limit
const DefaultLimit = 100

const (
	startRunSQL = `
		INSERT INTO audit_runs (id, chain, state_hash, height, start_cursor, resume_cursor, started_at)
		VALUES ($1, $2, $3, $4, $5, $5, $6)`

	finishRunSQL = `
		UPDATE audit_runs SET
			resume_cursor = $2,
			migrated = $3,
			double_bonded = $4,
			controller_only = $5,
			stash_only = $6,
			orphaned = $7,
			sink_failures = $8,
			finished_at = $9,
			error = $10
		WHERE id = $1`

	insertAnomalySQL = `
		INSERT INTO anomalies (run_id, position, kind, controller, stash, controller_ledger, stash_ledger)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (run_id, position) DO NOTHING`

	selectAnomaliesSQL = `
		SELECT a.run_id, r.chain, r.height, a.position, a.kind, a.controller, a.stash,
		       a.controller_ledger, a.stash_ledger, a.recorded_at
		FROM anomalies a
		JOIN audit_runs r ON r.id = a.run_id`

	selectRunsSQL = `
		SELECT id, chain, state_hash, height, start_cursor, resume_cursor,
		       migrated, double_bonded, controller_only, stash_only, orphaned, sink_failures,
		       started_at, finished_at, error
		FROM audit_runs`
)

// Store persists audit runs and their anomalies using pgx
type Store struct {
	pool *pgxpool.Pool
}

// New creates a new PostgreSQL store with an existing connection pool
// Returns the store and a closer function
func New(pool *pgxpool.Pool) (*Store, func()) {
	store := &Store{pool: pool}
	closer := func() {
		pool.Close()
	}
	return store, closer
}

// Recorder mirrors the anomalies of a single run. It implements auditor.Sink.
type Recorder struct {
	pool  *pgxpool.Pool
	runID string
	chain string
}

// Recorder returns a recorder for a new run on chain
func (s *Store) Recorder(chain string) *Recorder {
	return &Recorder{
		pool:  s.pool,
		runID: uuid.NewString(),
		chain: strings.ToLower(chain),
	}
}

// RunID identifies the run in audit_runs
func (r *Recorder) RunID() string {
	return r.runID
}

// StartRun registers the run. It must be called before Append.
func (r *Recorder) StartRun(ctx context.Context, state auditor.State, cursor uint64, startedAt time.Time) error {
	_, err := r.pool.Exec(ctx, startRunSQL,
		r.runID, r.chain, state.Hash.Hex(), int64(state.Number), int64(cursor), startedAt)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrStartRunFailed, err)
	}
	return nil
}

// Append stores one anomaly record for the run
func (r *Recorder) Append(ctx context.Context, record auditor.AnomalyRecord) error {
	if _, err := r.pool.Exec(ctx, insertAnomalySQL, dbrow.AnomalyArgs(r.runID, record)...); err != nil {
		return fmt.Errorf("%w: %w", ErrInsertFailed, err)
	}
	return nil
}

// FinishRun stores the final counters of the run and the error that ended it, if any
func (r *Recorder) FinishRun(ctx context.Context, summary auditor.Summary, finishedAt time.Time, runErr error) error {
	var errText *string
	if runErr != nil {
		s := runErr.Error()
		errText = &s
	}

	c := summary.Counters
	_, err := r.pool.Exec(ctx, finishRunSQL,
		r.runID,
		int64(summary.ResumeCursor),
		int64(c.Migrated),
		int64(c.DoubleBonded),
		int64(c.ControllerOnly),
		int64(c.StashOnly),
		int64(c.Orphaned),
		int64(summary.SinkFailures),
		finishedAt,
		errText,
	)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrFinishRunFailed, err)
	}
	return nil
}

// Criteria filters anomaly and run queries. Zero values match everything.
type Criteria struct {
	Chain string
	Kind  auditor.RecordKind
	RunID string
	Limit int
}

// Anomalies returns recorded anomalies, newest runs first and in scan order within a run
func (s *Store) Anomalies(ctx context.Context, c Criteria) ([]dbrow.Anomaly, error) {
	var (
		where []string
		args  []any
	)
	if c.Chain != "" {
		args = append(args, strings.ToLower(c.Chain))
		where = append(where, fmt.Sprintf("r.chain = $%d", len(args)))
	}
	if c.Kind != "" {
		args = append(args, string(c.Kind))
		where = append(where, fmt.Sprintf("a.kind = $%d", len(args)))
	}
	if c.RunID != "" {
		args = append(args, c.RunID)
		where = append(where, fmt.Sprintf("a.run_id = $%d", len(args)))
	}
	args = append(args, limitOf(c))

	query := selectAnomaliesSQL + whereClause(where) +
		fmt.Sprintf(" ORDER BY r.started_at DESC, a.position ASC LIMIT $%d", len(args))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrQueryFailed, err)
	}

	anomalies, err := pgx.CollectRows(rows, pgx.RowToStructByName[dbrow.Anomaly])
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrQueryFailed, err)
	}
	return anomalies, nil
}

// Runs returns audit runs, newest first
func (s *Store) Runs(ctx context.Context, c Criteria) ([]dbrow.Run, error) {
	var (
		where []string
		args  []any
	)
	if c.Chain != "" {
		args = append(args, strings.ToLower(c.Chain))
		where = append(where, fmt.Sprintf("chain = $%d", len(args)))
	}
	if c.RunID != "" {
		args = append(args, c.RunID)
		where = append(where, fmt.Sprintf("id = $%d", len(args)))
	}
	args = append(args, limitOf(c))

	query := selectRunsSQL + whereClause(where) +
		fmt.Sprintf(" ORDER BY started_at DESC LIMIT $%d", len(args))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrQueryFailed, err)
	}

	runs, err := pgx.CollectRows(rows, pgx.RowToStructByName[dbrow.Run])
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrQueryFailed, err)
	}
	return runs, nil
}

func whereClause(conds []string) string {
	if len(conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(conds, " AND ")
}

func limitOf(c Criteria) int {
	if c.Limit <= 0 {
		return DefaultLimit
	}
	return c.Limit
}
