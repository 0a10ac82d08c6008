package auditor

import (
	"encoding/hex"

	"github.com/screwyprof/bondaudit/pkg/substrate"
)

// Identity is a 32 byte account identifier compared by exact bytes
type Identity [32]byte

// Hex returns the lowercase hex encoding without prefix
func (i Identity) Hex() string {
	return hex.EncodeToString(i[:])
}

// BondedPair is one Staking.Bonded entry
type BondedPair struct {
	Stash      Identity
	Controller Identity
}

// Unified reports whether stash and controller are the same account
func (p BondedPair) Unified() bool {
	return p.Stash == p.Controller
}

// Ledger is an opaque staking ledger; only its rendering is ever used
type Ledger struct {
	repr string
}

// NewLedger wraps a rendered ledger
func NewLedger(repr string) *Ledger {
	return &Ledger{repr: repr}
}

func (l *Ledger) String() string {
	if l == nil {
		return "None"
	}
	return l.repr
}

// State is the block every read of a scan is pinned to
type State struct {
	Hash   substrate.Hash
	Number uint64
}

func decodePair(kv substrate.KeyValue) (BondedPair, error) {
	stash, err := substrate.AccountIDFromKey(kv.Key)
	if err != nil {
		return BondedPair{}, err
	}
	controller, err := substrate.AccountIDFromBytes(kv.Value)
	if err != nil {
		return BondedPair{}, err
	}
	return BondedPair{Stash: Identity(stash), Controller: Identity(controller)}, nil
}

func toLedger(l *substrate.StakingLedger) *Ledger {
	if l == nil {
		return nil
	}
	return NewLedger(l.String())
}
