package substrate

import (
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"strings"
)

var ErrUnknownSchema = errors.New("unknown ledger schema")

// LedgerSchema selects the runtime layout used to render Staking.Ledger.
// Both versions share one encoding; v2 renamed claimed_rewards when
// reward claiming moved to paged exposures.
type LedgerSchema string

const (
	LedgerSchemaV1 LedgerSchema = "v1"
	LedgerSchemaV2 LedgerSchema = "v2"
)

// ParseLedgerSchema validates a schema name
func ParseLedgerSchema(s string) (LedgerSchema, error) {
	switch LedgerSchema(s) {
	case LedgerSchemaV1, LedgerSchemaV2:
		return LedgerSchema(s), nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownSchema, s)
}

func (s LedgerSchema) claimedRewardsField() string {
	if s == LedgerSchemaV1 {
		return "claimed_rewards"
	}
	return "legacy_claimed_rewards"
}

// UnlockChunk is a pending unbond
type UnlockChunk struct {
	Value *big.Int
	Era   uint32
}

// StakingLedger is a decoded pallet_staking::StakingLedger
type StakingLedger struct {
	Stash          AccountID
	Total          *big.Int
	Active         *big.Int
	Unlocking      []UnlockChunk
	ClaimedRewards []uint32

	schema LedgerSchema
}

// DecodeStakingLedger decodes raw storage bytes. Every byte must be consumed.
func DecodeStakingLedger(raw []byte, schema LedgerSchema) (*StakingLedger, error) {
	d := &decoder{buf: raw}
	l := &StakingLedger{schema: schema}

	stash, err := d.take(AccountIDLen)
	if err != nil {
		return nil, fmt.Errorf("stash: %w", err)
	}
	copy(l.Stash[:], stash)

	if l.Total, err = d.compact(); err != nil {
		return nil, fmt.Errorf("total: %w", err)
	}
	if l.Active, err = d.compact(); err != nil {
		return nil, fmt.Errorf("active: %w", err)
	}

	n, err := d.compactLen()
	if err != nil {
		return nil, fmt.Errorf("unlocking: %w", err)
	}
	l.Unlocking = make([]UnlockChunk, 0, n)
	for i := range n {
		var c UnlockChunk
		if c.Value, err = d.compact(); err != nil {
			return nil, fmt.Errorf("unlocking[%d].value: %w", i, err)
		}
		if c.Era, err = d.compactU32(); err != nil {
			return nil, fmt.Errorf("unlocking[%d].era: %w", i, err)
		}
		l.Unlocking = append(l.Unlocking, c)
	}

	if n, err = d.compactLen(); err != nil {
		return nil, fmt.Errorf("%s: %w", schema.claimedRewardsField(), err)
	}
	l.ClaimedRewards = make([]uint32, 0, n)
	for i := range n {
		era, err := d.u32()
		if err != nil {
			return nil, fmt.Errorf("%s[%d]: %w", schema.claimedRewardsField(), i, err)
		}
		l.ClaimedRewards = append(l.ClaimedRewards, era)
	}

	if d.remaining() != 0 {
		return nil, fmt.Errorf("%w: %d trailing bytes", ErrDecode, d.remaining())
	}

	return l, nil
}

// String renders the ledger in a debug form, e.g.
//
//	StakingLedger { stash: 0x.., total: 10, active: 10, unlocking: [], legacy_claimed_rewards: [] }
func (l *StakingLedger) String() string {
	var b strings.Builder
	b.WriteString("StakingLedger { stash: 0x")
	b.WriteString(hex.EncodeToString(l.Stash[:]))
	fmt.Fprintf(&b, ", total: %s, active: %s, unlocking: [", l.Total, l.Active)
	for i, c := range l.Unlocking {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "UnlockChunk { value: %s, era: %d }", c.Value, c.Era)
	}
	fmt.Fprintf(&b, "], %s: [", l.schema.claimedRewardsField())
	for i, era := range l.ClaimedRewards {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%d", era)
	}
	b.WriteString("] }")
	return b.String()
}
