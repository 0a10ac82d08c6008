package auditor

import "time"

// Outcome classifies a bonded pair by which of its identities hold a ledger
type Outcome int

const (
	Migrated Outcome = iota
	DoubleBonded
	ControllerOnly
	StashOnly
	Orphaned
)

func (o Outcome) String() string {
	switch o {
	case Migrated:
		return "migrated"
	case DoubleBonded:
		return "double"
	case ControllerOnly:
		return "controller"
	case StashOnly:
		return "stash"
	case Orphaned:
		return "none"
	}
	return "unknown"
}

// Classify maps ledger presence on both sides to an outcome.
// Identity equality only matters when both ledgers exist.
func Classify(pair BondedPair, controllerLedger, stashLedger *Ledger) Outcome {
	switch {
	case controllerLedger != nil && stashLedger != nil:
		if pair.Unified() {
			return Migrated
		}
		return DoubleBonded
	case controllerLedger != nil:
		return ControllerOnly
	case stashLedger != nil:
		return StashOnly
	default:
		return Orphaned
	}
}

// Counters accumulates outcomes for one scan
type Counters struct {
	Migrated       uint64
	DoubleBonded   uint64
	ControllerOnly uint64
	StashOnly      uint64
	Orphaned       uint64
}

// Add returns the counters with o counted once more
func (c Counters) Add(o Outcome) Counters {
	switch o {
	case Migrated:
		c.Migrated++
	case DoubleBonded:
		c.DoubleBonded++
	case ControllerOnly:
		c.ControllerOnly++
	case StashOnly:
		c.StashOnly++
	case Orphaned:
		c.Orphaned++
	}
	return c
}

// Total is the number of classified pairs
func (c Counters) Total() uint64 {
	return c.Migrated + c.DoubleBonded + c.ControllerOnly + c.StashOnly + c.Orphaned
}

// Merge sums two sets of counters, e.g. from runs over adjacent cursor ranges
func (c Counters) Merge(o Counters) Counters {
	return Counters{
		Migrated:       c.Migrated + o.Migrated,
		DoubleBonded:   c.DoubleBonded + o.DoubleBonded,
		ControllerOnly: c.ControllerOnly + o.ControllerOnly,
		StashOnly:      c.StashOnly + o.StashOnly,
		Orphaned:       c.Orphaned + o.Orphaned,
	}
}

// RecordKind labels a persisted anomaly
type RecordKind string

const (
	KindDouble RecordKind = "DOUBLE"
	KindNone   RecordKind = "NONE"
)

// AnomalyRecord describes a DoubleBonded or Orphaned pair.
// Ledgers are nil for KindNone.
type AnomalyRecord struct {
	Kind             RecordKind
	Position         uint64
	Controller       Identity
	Stash            Identity
	ControllerLedger *Ledger
	StashLedger      *Ledger
}

// anomalyFor returns the record to persist for outcome, if any
func anomalyFor(position uint64, pair BondedPair, outcome Outcome, controllerLedger, stashLedger *Ledger) (AnomalyRecord, bool) {
	switch outcome {
	case DoubleBonded:
		return AnomalyRecord{
			Kind:             KindDouble,
			Position:         position,
			Controller:       pair.Controller,
			Stash:            pair.Stash,
			ControllerLedger: controllerLedger,
			StashLedger:      stashLedger,
		}, true
	case Orphaned:
		return AnomalyRecord{
			Kind:       KindNone,
			Position:   position,
			Controller: pair.Controller,
			Stash:      pair.Stash,
		}, true
	}
	return AnomalyRecord{}, false
}

// Summary describes a finished or aborted scan
type Summary struct {
	State        State
	Cursor       uint64
	Counters     Counters
	ResumeCursor uint64 // first position not yet classified
	SinkFailures uint64
	Duration     time.Duration
}
