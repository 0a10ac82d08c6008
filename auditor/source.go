package auditor

import (
	"context"
	"fmt"

	"github.com/screwyprof/bondaudit/pkg/substrate"
)

// pairEntry is one element of the bonded stream. Skipped entries lie before
// the cursor and carry no value.
type pairEntry struct {
	Position uint64
	Raw      substrate.KeyValue
	Skipped  bool
}

// bondedSource lazily pages through Staking.Bonded at a fixed block.
// It is finite and cannot be restarted.
type bondedSource struct {
	chain    Chain
	at       substrate.Hash
	pageSize uint32
	cursor   uint64

	page      []substrate.KeyValue
	next      int
	lastKey   substrate.StorageKey
	position  uint64
	exhausted bool
}

func newBondedSource(chain Chain, at substrate.Hash, pageSize uint32, cursor uint64) *bondedSource {
	return &bondedSource{
		chain:    chain,
		at:       at,
		pageSize: pageSize,
		cursor:   cursor,
	}
}

// Next yields the next entry; ok is false once the map is exhausted
func (s *bondedSource) Next(ctx context.Context) (entry pairEntry, ok bool, err error) {
	if s.next == len(s.page) {
		if s.exhausted {
			return pairEntry{}, false, nil
		}
		if err := s.fetch(ctx); err != nil {
			return pairEntry{}, false, err
		}
		if s.exhausted {
			return pairEntry{}, false, nil
		}
	}

	entry = pairEntry{
		Position: s.position,
		Raw:      s.page[s.next],
		Skipped:  s.position < s.cursor,
	}
	s.next++
	s.position++

	return entry, true, nil
}

func (s *bondedSource) fetch(ctx context.Context) error {
	keys, err := s.chain.BondedKeys(ctx, s.at, s.lastKey, s.pageSize)
	if err != nil {
		return fmt.Errorf("%w: keys after position %d: %w", ErrPairIteration, s.position, err)
	}

	s.page, s.next = nil, 0
	if len(keys) == 0 {
		s.exhausted = true
		return nil
	}
	s.lastKey = keys[len(keys)-1]

	// a page wholly before the cursor is only counted, so its values are never read
	if s.position+uint64(len(keys)) <= s.cursor {
		s.page = make([]substrate.KeyValue, len(keys))
		for i, k := range keys {
			s.page[i] = substrate.KeyValue{Key: k}
		}
		return nil
	}

	values, err := s.chain.StorageAt(ctx, s.at, keys)
	if err != nil {
		return fmt.Errorf("%w: values after position %d: %w", ErrPairIteration, s.position, err)
	}
	if len(values) != len(keys) {
		return fmt.Errorf("%w: got %d values for %d keys", ErrPairIteration, len(values), len(keys))
	}
	s.page = values

	return nil
}
