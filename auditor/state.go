package auditor

import (
	"context"
	"fmt"

	"github.com/screwyprof/bondaudit/pkg/substrate"
)

// ResolveState fixes the block a scan reads from: the pinned hash when
// given, the latest finalized block otherwise.
func ResolveState(ctx context.Context, chain Chain, pinned string) (State, error) {
	var (
		block substrate.Block
		err   error
	)

	if pinned == "" {
		block, err = chain.FinalizedBlock(ctx)
	} else {
		var hash substrate.Hash
		if hash, err = substrate.ParseHash(pinned); err == nil {
			block, err = chain.Block(ctx, hash)
		}
	}
	if err != nil {
		return State{}, fmt.Errorf("%w: %w", ErrStateResolution, err)
	}

	return State{Hash: block.Hash, Number: block.Number}, nil
}
