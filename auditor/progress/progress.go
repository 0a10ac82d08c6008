// Package progress prints a human readable trace of a scan
package progress

import (
	"fmt"
	"io"

	"github.com/screwyprof/bondaudit/auditor"
)

const (
	doubleBanner = "----------- double bonded -----------"
	noneBanner   = "----------- none -----------"
)

// Reporter writes scan progress to w. It is driven by scan events and is not
// safe for use by more than one scan at a time.
type Reporter struct {
	w       io.Writer
	midLine bool // skip markers are printed without a line break
}

func New(w io.Writer) *Reporter {
	return &Reporter{w: w}
}

// Subscriber returns the auditor subscriber feeding this reporter
func (r *Reporter) Subscriber() *auditor.Subscriber {
	return auditor.NewSubscriber(
		auditor.OnSkipProgress(r.skipped),
		auditor.OnPairClassified(r.classified),
		auditor.OnSinkFailed(r.sinkFailed),
		auditor.OnScanCompleted(func(auditor.ScanCompleted) { r.breakLine() }),
		auditor.OnScanFailed(func(auditor.ScanFailed) { r.breakLine() }),
	)
}

func (r *Reporter) skipped(e auditor.SkipProgress) {
	fmt.Fprintf(r.w, "%d..", e.Position)
	r.midLine = true
}

func (r *Reporter) classified(e auditor.PairClassified) {
	r.breakLine()

	c := e.Counters
	fmt.Fprintf(r.w, "> %d   double: %d, stash: %d, controller: %d, migrated: %d, none: %d\n",
		e.Position, c.DoubleBonded, c.StashOnly, c.ControllerOnly, c.Migrated, c.Orphaned)

	switch e.Outcome {
	case auditor.DoubleBonded:
		fmt.Fprintln(r.w, doubleBanner)
	case auditor.Orphaned:
		fmt.Fprintln(r.w, noneBanner)
	}
}

func (r *Reporter) sinkFailed(e auditor.SinkFailed) {
	r.breakLine()
	fmt.Fprintf(r.w, "error writing anomaly record: %v\n", e.Err)
}

func (r *Reporter) breakLine() {
	if r.midLine {
		fmt.Fprintln(r.w)
		r.midLine = false
	}
}
