package substrate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

var (
	ErrFinalizedHead = errors.New("finalized head unavailable")
	ErrHeader        = errors.New("block header unavailable")
	ErrStorage       = errors.New("storage query failed")
	ErrLedgerDecode  = errors.New("staking ledger decode failed")
)

// Staking reads pallet_staking storage through a Client
type Staking struct {
	client *Client
	schema LedgerSchema
}

// NewStaking creates a staking reader rendering ledgers with schema
func NewStaking(client *Client, schema LedgerSchema) *Staking {
	return &Staking{client: client, schema: schema}
}

// FinalizedBlock resolves the latest finalized block
func (s *Staking) FinalizedBlock(ctx context.Context) (Block, error) {
	var hash Hash
	found, err := s.client.Call(ctx, &hash, "chain_getFinalizedHead")
	if err != nil {
		return Block{}, fmt.Errorf("%w: %w", ErrFinalizedHead, err)
	}
	if !found {
		return Block{}, fmt.Errorf("%w: node returned null", ErrFinalizedHead)
	}
	return s.Block(ctx, hash)
}

// Block resolves the number of the block with the given hash
func (s *Staking) Block(ctx context.Context, hash Hash) (Block, error) {
	var header Header
	found, err := s.client.Call(ctx, &header, "chain_getHeader", hash)
	if err != nil {
		return Block{}, fmt.Errorf("%w: %s: %w", ErrHeader, hash, err)
	}
	if !found {
		return Block{}, fmt.Errorf("%w: %s: unknown block", ErrHeader, hash)
	}
	number, err := header.BlockNumber()
	if err != nil {
		return Block{}, fmt.Errorf("%w: %s: %w", ErrHeader, hash, err)
	}
	return Block{Hash: hash, Number: number}, nil
}

// BondedKeys lists up to count Staking.Bonded keys strictly after startKey.
// A nil startKey starts from the beginning of the map.
func (s *Staking) BondedKeys(ctx context.Context, at Hash, startKey StorageKey, count uint32) ([]StorageKey, error) {
	var start any
	if startKey != nil {
		start = startKey
	}

	var keys []StorageKey
	if _, err := s.client.Call(ctx, &keys, "state_getKeysPaged", BondedPrefix(), count, start, at); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStorage, err)
	}
	return keys, nil
}

type storageChangeSet struct {
	Block   Hash              `json:"block"`
	Changes []json.RawMessage `json:"changes"`
}

// StorageAt reads keys at the given block. Values come back in key order;
// keys without a value yield a nil Value.
func (s *Staking) StorageAt(ctx context.Context, at Hash, keys []StorageKey) ([]KeyValue, error) {
	if len(keys) == 0 {
		return nil, nil
	}

	var sets []storageChangeSet
	if _, err := s.client.Call(ctx, &sets, "state_queryStorageAt", keys, at); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStorage, err)
	}

	values := make(map[string]Bytes, len(keys))
	for _, set := range sets {
		for _, raw := range set.Changes {
			var change [2]Bytes
			if err := json.Unmarshal(raw, &change); err != nil {
				return nil, fmt.Errorf("%w: change entry: %w", ErrStorage, err)
			}
			values[string(change[0])] = change[1]
		}
	}

	out := make([]KeyValue, len(keys))
	for i, key := range keys {
		out[i] = KeyValue{Key: key, Value: values[string(key)]}
	}
	return out, nil
}

// Ledger fetches Staking.Ledger for account at the given block.
// A nil ledger with a nil error means the account has no ledger.
func (s *Staking) Ledger(ctx context.Context, at Hash, account AccountID) (*StakingLedger, error) {
	var raw Bytes
	found, err := s.client.Call(ctx, &raw, "state_getStorage", LedgerKey(account), at)
	if err != nil {
		return nil, fmt.Errorf("%w: ledger %s: %w", ErrStorage, account.Hex(), err)
	}
	if !found {
		return nil, nil
	}

	ledger, err := DecodeStakingLedger(raw, s.schema)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrLedgerDecode, account.Hex(), err)
	}
	return ledger, nil
}
