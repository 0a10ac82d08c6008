package dbrow

import (
	"time"

	"github.com/screwyprof/bondaudit/auditor"
)

// Anomaly represents an anomaly record as stored in the database joined with its run
type Anomaly struct {
	RunID            string    `db:"run_id"`
	Chain            string    `db:"chain"`
	Height           int64     `db:"height"`
	Position         int64     `db:"position"`
	Kind             string    `db:"kind"`
	Controller       string    `db:"controller"`
	Stash            string    `db:"stash"`
	ControllerLedger *string   `db:"controller_ledger"`
	StashLedger      *string   `db:"stash_ledger"`
	RecordedAt       time.Time `db:"recorded_at"`
}

// Run represents one audit run
type Run struct {
	ID             string     `db:"id"`
	Chain          string     `db:"chain"`
	StateHash      string     `db:"state_hash"`
	Height         int64      `db:"height"`
	StartCursor    int64      `db:"start_cursor"`
	ResumeCursor   int64      `db:"resume_cursor"`
	Migrated       int64      `db:"migrated"`
	DoubleBonded   int64      `db:"double_bonded"`
	ControllerOnly int64      `db:"controller_only"`
	StashOnly      int64      `db:"stash_only"`
	Orphaned       int64      `db:"orphaned"`
	SinkFailures   int64      `db:"sink_failures"`
	StartedAt      time.Time  `db:"started_at"`
	FinishedAt     *time.Time `db:"finished_at"`
	Error          *string    `db:"error"`
}

// AnomalyArgs converts a record to insert arguments in column order:
// run_id, position, kind, controller, stash, controller_ledger, stash_ledger
func AnomalyArgs(runID string, r auditor.AnomalyRecord) []any {
	return []any{
		runID,
		int64(r.Position),
		string(r.Kind),
		r.Controller.Hex(),
		r.Stash.Hex(),
		ledgerText(r.ControllerLedger),
		ledgerText(r.StashLedger),
	}
}

func ledgerText(l *auditor.Ledger) *string {
	if l == nil {
		return nil
	}
	s := l.String()
	return &s
}
