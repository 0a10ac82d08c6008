package auditor

import (
	"context"
	"errors"
	"time"

	"github.com/screwyprof/bondaudit/pkg/substrate"
)

// Sentinel errors for fatal failure cases
var (
	ErrStateResolution = errors.New("chain state resolution failed")
	ErrPairIteration   = errors.New("bonded pair iteration failed")
	ErrDecodeFailed    = errors.New("bonded pair decode failed")
	ErrLedgerLookup    = errors.New("ledger lookup failed")
)

// Default configuration values
const (
	DefaultPageSize      = uint32(1000)
	SkipProgressInterval = 100
)

// Chain reads staking storage at a fixed block
// --------------------------------------------
type Chain interface {
	FinalizedBlock(ctx context.Context) (substrate.Block, error)
	Block(ctx context.Context, hash substrate.Hash) (substrate.Block, error)
	// BondedKeys lists Staking.Bonded keys strictly after startKey, in storage order
	BondedKeys(ctx context.Context, at substrate.Hash, startKey substrate.StorageKey, count uint32) ([]substrate.StorageKey, error)
	// StorageAt returns the values of keys in key order, nil where absent
	StorageAt(ctx context.Context, at substrate.Hash, keys []substrate.StorageKey) ([]substrate.KeyValue, error)
	// Ledger returns nil, nil when account has no ledger
	Ledger(ctx context.Context, at substrate.Hash, account substrate.AccountID) (*substrate.StakingLedger, error)
}

// Sink durably records anomalies. Append failures never abort a scan.
type Sink interface {
	Append(ctx context.Context, record AnomalyRecord) error
}

// Clock abstracts time for production and testing
type Clock interface {
	Now() time.Time
}

// Event represents a scan lifecycle event
// ---------------------------------------
type Event any

type ScanStarted struct {
	State     State
	Cursor    uint64
	StartedAt time.Time
}

// SkipProgress is emitted every SkipProgressInterval discarded pre-cursor elements
type SkipProgress struct {
	Position uint64
}

type PairClassified struct {
	Position uint64
	Pair     BondedPair
	Outcome  Outcome
	Counters Counters
}

type SinkFailed struct {
	Sink   string
	Record AnomalyRecord
	Err    error
}

type ScanCompleted struct {
	Summary Summary
}

type ScanFailed struct {
	Summary Summary
	Err     error
}
