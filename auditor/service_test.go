package auditor_test

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/screwyprof/bondaudit/auditor"
	"github.com/screwyprof/bondaudit/auditor/sink/filesink"
	"github.com/screwyprof/bondaudit/pkg/clock"
	"github.com/screwyprof/bondaudit/pkg/substrate"
	"github.com/screwyprof/bondaudit/pkg/substrate/substratetest"
)

// TestServiceClassification tests the five-way reconciliation of bonded pairs
func TestServiceClassification(t *testing.T) {
	t.Parallel()

	t.Run("it classifies the reference stream", func(t *testing.T) {
		t.Parallel()

		// Arrange
		chain := chainWith(
			bonded('A', 'A').withLedgers(true, true),
			bonded('B', 'C').withLedgers(true, true),
			bonded('D', 'E').withLedgers(false, false),
			bonded('F', 'G').withLedgers(false, true), // stash F absent, controller G present
		)
		sink := &memorySink{}
		svc := auditor.NewService(chain, sink)

		// Act
		summary, err := svc.Run(t.Context(), testState())

		// Assert
		require.NoError(t, err)
		assert.Equal(t, auditor.Counters{Migrated: 1, DoubleBonded: 1, ControllerOnly: 1, StashOnly: 0, Orphaned: 1}, summary.Counters)
		require.Len(t, sink.records, 2)
		assertDoubleRecord(t, sink.records[0], 'C', 'B')
		assertNoneRecord(t, sink.records[1], 'E', 'D')
	})

	t.Run("it never reports a unified pair as double bonded", func(t *testing.T) {
		t.Parallel()

		// Arrange
		chain := chainWith(bonded('A', 'A').withLedgers(true, true))
		sink := &memorySink{}
		svc := auditor.NewService(chain, sink)

		// Act
		summary, err := svc.Run(t.Context(), testState())

		// Assert
		require.NoError(t, err)
		assert.Equal(t, uint64(1), summary.Counters.Migrated)
		assert.Empty(t, sink.records)
	})

	t.Run("it counts stash only pairs without a record", func(t *testing.T) {
		t.Parallel()

		// Arrange
		chain := chainWith(bonded('A', 'B').withLedgers(true, false))
		sink := &memorySink{}
		svc := auditor.NewService(chain, sink)

		// Act
		summary, err := svc.Run(t.Context(), testState())

		// Assert
		require.NoError(t, err)
		assert.Equal(t, auditor.Counters{StashOnly: 1}, summary.Counters)
		assert.Empty(t, sink.records)
	})

	t.Run("it partitions every pair into exactly one outcome", func(t *testing.T) {
		t.Parallel()

		// Arrange
		chain := chainWith(mixedStream(257)...)
		svc := auditor.NewService(chain, &memorySink{}, auditor.WithPageSize(10))

		// Act
		summary, err := svc.Run(t.Context(), testState())

		// Assert
		require.NoError(t, err)
		assert.Equal(t, uint64(257), summary.Counters.Total())
		assert.Equal(t, uint64(257), summary.ResumeCursor)
	})

	t.Run("it reads every ledger at the resolved state", func(t *testing.T) {
		t.Parallel()

		// Arrange
		chain := chainWith(mixedStream(20)...)
		state := testState()
		svc := auditor.NewService(chain, &memorySink{}, auditor.WithPageSize(7))

		// Act
		_, err := svc.Run(t.Context(), state)

		// Assert
		require.NoError(t, err)
		assert.Equal(t, []substrate.Hash{state.Hash}, chain.distinctStates())
		assert.Equal(t, 40, chain.ledgerCalls)
	})
}

// TestServiceResume tests skip-based resumption
func TestServiceResume(t *testing.T) {
	t.Parallel()

	t.Run("it skips pairs before the cursor without ledger lookups", func(t *testing.T) {
		t.Parallel()

		// Arrange
		chain := chainWith(mixedStream(10)...)
		classified := capturePositions()
		svc := auditor.NewService(chain, &memorySink{},
			auditor.WithCursor(6),
			auditor.WithSubscriber(classified.subscriber()),
		)

		// Act
		summary, err := svc.Run(t.Context(), testState())

		// Assert
		require.NoError(t, err)
		assert.Equal(t, []uint64{6, 7, 8, 9}, classified.positions)
		assert.Equal(t, uint64(4), summary.Counters.Total())
		assert.Equal(t, 8, chain.ledgerCalls)
	})

	t.Run("it emits a skip marker every hundred discarded pairs", func(t *testing.T) {
		t.Parallel()

		// Arrange
		chain := chainWith(mixedStream(260)...)
		var markers []uint64
		sub := auditor.NewSubscriber(auditor.OnSkipProgress(func(e auditor.SkipProgress) {
			markers = append(markers, e.Position)
		}))
		svc := auditor.NewService(chain, &memorySink{}, auditor.WithCursor(250), auditor.WithSubscriber(sub))

		// Act
		summary, err := svc.Run(t.Context(), testState())

		// Assert
		require.NoError(t, err)
		assert.Equal(t, []uint64{100, 200}, markers)
		assert.Equal(t, uint64(10), summary.Counters.Total())
	})

	t.Run("it does not read values of pages wholly before the cursor", func(t *testing.T) {
		t.Parallel()

		// Arrange
		chain := chainWith(mixedStream(30)...)
		svc := auditor.NewService(chain, &memorySink{}, auditor.WithCursor(20), auditor.WithPageSize(10))

		// Act
		_, err := svc.Run(t.Context(), testState())

		// Assert
		require.NoError(t, err)
		assert.Equal(t, 1, chain.storageCalls, "only the third page holds post-cursor pairs")
	})

	t.Run("it treats a cursor past the end as an empty scan", func(t *testing.T) {
		t.Parallel()

		// Arrange
		chain := chainWith(mixedStream(5)...)
		svc := auditor.NewService(chain, &memorySink{}, auditor.WithCursor(50))

		// Act
		summary, err := svc.Run(t.Context(), testState())

		// Assert
		require.NoError(t, err)
		assert.Zero(t, summary.Counters.Total())
		assert.Zero(t, chain.ledgerCalls)
	})

	t.Run("it matches a full scan when resumed after a crash", func(t *testing.T) {
		t.Parallel()

		const total = 40
		for _, crashAt := range []int{0, 1, 17, 39} {
			// Arrange
			full := &memorySink{}
			fullSummary, err := auditor.NewService(chainWith(mixedStream(total)...), full, auditor.WithPageSize(6)).
				Run(t.Context(), testState())
			require.NoError(t, err)

			crashing := chainWith(mixedStream(total)...)
			crashing.failLedgerAt(crashAt)
			split := &memorySink{}

			// Act
			first, err := auditor.NewService(crashing, split, auditor.WithPageSize(6)).Run(t.Context(), testState())
			require.ErrorIs(t, err, auditor.ErrLedgerLookup)

			second, err := auditor.NewService(chainWith(mixedStream(total)...), split,
				auditor.WithPageSize(6),
				auditor.WithCursor(first.ResumeCursor),
			).Run(t.Context(), testState())
			require.NoError(t, err)

			// Assert
			assert.Equal(t, uint64(crashAt), first.ResumeCursor)
			assert.Equal(t, fullSummary.Counters, first.Counters.Merge(second.Counters), "crash at %d", crashAt)
			assert.Equal(t, full.records, split.records, "crash at %d", crashAt)
		}
	})
}

// TestServiceFailures tests the fatal and best-effort error policies
func TestServiceFailures(t *testing.T) {
	t.Parallel()

	t.Run("it aborts on a malformed controller before counting the pair", func(t *testing.T) {
		t.Parallel()

		// Arrange
		bad := bonded('X', 'Y').withLedgers(true, true)
		bad.value = bad.value[:31]
		chain := chainWith(bonded('A', 'A').withLedgers(true, true), bad, bonded('B', 'B').withLedgers(true, true))
		classified := capturePositions()
		svc := auditor.NewService(chain, &memorySink{}, auditor.WithSubscriber(classified.subscriber()))

		// Act
		summary, err := svc.Run(t.Context(), testState())

		// Assert
		require.ErrorIs(t, err, auditor.ErrDecodeFailed)
		assert.ErrorIs(t, err, substrate.ErrInvalidAccountID)
		assert.Equal(t, auditor.Counters{Migrated: 1}, summary.Counters)
		assert.Equal(t, uint64(1), summary.ResumeCursor)
		assert.Equal(t, []uint64{0}, classified.positions)
	})

	t.Run("it aborts on a short storage key", func(t *testing.T) {
		t.Parallel()

		// Arrange
		bad := bonded('X', 'Y').withLedgers(true, true)
		bad.key = bad.key[:20]
		chain := chainWith(bad)
		svc := auditor.NewService(chain, &memorySink{})

		// Act
		summary, err := svc.Run(t.Context(), testState())

		// Assert
		require.ErrorIs(t, err, auditor.ErrDecodeFailed)
		assert.Zero(t, summary.Counters.Total())
		assert.Zero(t, chain.ledgerCalls)
	})

	t.Run("it aborts when a ledger lookup fails", func(t *testing.T) {
		t.Parallel()

		// Arrange
		chain := chainWith(mixedStream(5)...)
		chain.failLedgerAt(3)
		svc := auditor.NewService(chain, &memorySink{})

		// Act
		summary, err := svc.Run(t.Context(), testState())

		// Assert
		require.ErrorIs(t, err, auditor.ErrLedgerLookup)
		assert.ErrorIs(t, err, errNodeDown)
		assert.Equal(t, uint64(3), summary.Counters.Total())
	})

	t.Run("it aborts when iteration fails", func(t *testing.T) {
		t.Parallel()

		// Arrange
		chain := chainWith(mixedStream(5)...)
		chain.keysErr = errNodeDown
		failed := make(chan auditor.ScanFailed, 1)
		sub := auditor.NewSubscriber(auditor.OnScanFailed(func(e auditor.ScanFailed) { failed <- e }))
		svc := auditor.NewService(chain, &memorySink{}, auditor.WithSubscriber(sub))

		// Act
		_, err := svc.Run(t.Context(), testState())

		// Assert
		require.ErrorIs(t, err, auditor.ErrPairIteration)
		event := <-failed
		assert.ErrorIs(t, event.Err, auditor.ErrPairIteration)
	})

	t.Run("it stops when the context is cancelled", func(t *testing.T) {
		t.Parallel()

		// Arrange
		chain := chainWith(mixedStream(5)...)
		ctx, cancel := context.WithCancel(t.Context())
		sub := auditor.NewSubscriber(auditor.OnPairClassified(func(e auditor.PairClassified) {
			if e.Position == 1 {
				cancel()
			}
		}))
		svc := auditor.NewService(chain, &memorySink{}, auditor.WithSubscriber(sub))

		// Act
		summary, err := svc.Run(ctx, testState())

		// Assert
		require.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, uint64(2), summary.ResumeCursor)
	})

	t.Run("it persists a pair classified just before cancellation", func(t *testing.T) {
		t.Parallel()

		// Arrange
		pairs := []entry{
			bonded('A', 'A').withLedgers(true, true),
			bonded('D', 'E').withLedgers(false, false),
			bonded('B', 'C').withLedgers(true, true),
		}
		ctx, cancel := context.WithCancel(t.Context())
		interrupted := chainWith(pairs...)
		interrupted.onLedger = func(call int) {
			if call == 4 { // stash lookup of D/E
				cancel()
			}
		}
		dir := t.TempDir()
		mirror := &memorySink{}
		var anomalies int
		sub := auditor.NewSubscriber(auditor.OnPairClassified(func(e auditor.PairClassified) {
			if e.Outcome == auditor.DoubleBonded || e.Outcome == auditor.Orphaned {
				anomalies++
			}
		}))

		// Act
		first, err := auditor.NewService(interrupted, openFileSink(t, dir),
			auditor.WithMirror("memory", mirror),
			auditor.WithSubscriber(sub),
		).Run(ctx, testState())
		require.ErrorIs(t, err, context.Canceled)

		second, err := auditor.NewService(chainWith(pairs...), openFileSink(t, dir),
			auditor.WithMirror("memory", mirror),
			auditor.WithSubscriber(sub),
			auditor.WithCursor(first.ResumeCursor),
		).Run(t.Context(), testState())
		require.NoError(t, err)

		// Assert
		assert.Equal(t, uint64(2), first.ResumeCursor)
		assert.Equal(t, uint64(1), first.Counters.Orphaned)
		assert.Zero(t, first.SinkFailures)
		assert.Zero(t, second.SinkFailures)
		assert.Equal(t, 2, anomalies)

		entries := readFileRecords(t, filepath.Join(dir, "resume.data"))
		require.Len(t, entries, anomalies)
		assert.Equal(t, auditor.KindNone, entries[0].Kind)
		assert.Equal(t, auditor.KindDouble, entries[1].Kind)
		assert.Len(t, mirror.records, anomalies)
	})

	t.Run("it keeps scanning and counting when the sink fails", func(t *testing.T) {
		t.Parallel()

		// Arrange
		chain := chainWith(
			bonded('B', 'C').withLedgers(true, true),
			bonded('D', 'E').withLedgers(false, false),
		)
		sink := &memorySink{err: errors.New("disk full")}
		var failures []auditor.SinkFailed
		sub := auditor.NewSubscriber(auditor.OnSinkFailed(func(e auditor.SinkFailed) { failures = append(failures, e) }))
		svc := auditor.NewService(chain, sink, auditor.WithSubscriber(sub))

		// Act
		summary, err := svc.Run(t.Context(), testState())

		// Assert
		require.NoError(t, err)
		assert.Equal(t, auditor.Counters{DoubleBonded: 1, Orphaned: 1}, summary.Counters)
		assert.Equal(t, uint64(2), summary.SinkFailures)
		require.Len(t, failures, 2)
		assert.Equal(t, auditor.PrimarySinkName, failures[0].Sink)
		assert.Equal(t, auditor.KindDouble, failures[0].Record.Kind)
		assert.Equal(t, auditor.KindNone, failures[1].Record.Kind)
	})

	t.Run("it writes to mirrors even when the primary sink fails", func(t *testing.T) {
		t.Parallel()

		// Arrange
		chain := chainWith(bonded('D', 'E').withLedgers(false, false))
		primary := &memorySink{err: errors.New("disk full")}
		mirror := &memorySink{}
		svc := auditor.NewService(chain, primary, auditor.WithMirror("postgres", mirror))

		// Act
		summary, err := svc.Run(t.Context(), testState())

		// Assert
		require.NoError(t, err)
		assert.Equal(t, uint64(1), summary.SinkFailures)
		assert.Len(t, mirror.records, 1)
	})
}

// TestServiceEventEmission tests observability and event ordering
func TestServiceEventEmission(t *testing.T) {
	t.Parallel()

	t.Run("it emits lifecycle events in scan order", func(t *testing.T) {
		t.Parallel()

		// Arrange
		chain := chainWith(mixedStream(3)...)
		var events []string
		sub := auditor.NewSubscriber(
			auditor.OnScanStarted(func(auditor.ScanStarted) { events = append(events, "started") }),
			auditor.OnPairClassified(func(e auditor.PairClassified) { events = append(events, e.Outcome.String()) }),
			auditor.OnScanCompleted(func(auditor.ScanCompleted) { events = append(events, "completed") }),
		)
		svc := auditor.NewService(chain, &memorySink{}, auditor.WithSubscriber(sub))

		// Act
		_, err := svc.Run(t.Context(), testState())

		// Assert
		require.NoError(t, err)
		assert.Equal(t, []string{"started", "migrated", "double", "controller", "completed"}, events)
	})

	t.Run("it reports running counters with each pair", func(t *testing.T) {
		t.Parallel()

		// Arrange
		chain := chainWith(mixedStream(5)...)
		var last auditor.PairClassified
		sub := auditor.NewSubscriber(auditor.OnPairClassified(func(e auditor.PairClassified) { last = e }))
		svc := auditor.NewService(chain, &memorySink{}, auditor.WithSubscriber(sub))

		// Act
		summary, err := svc.Run(t.Context(), testState())

		// Assert
		require.NoError(t, err)
		assert.Equal(t, uint64(4), last.Position)
		assert.Equal(t, summary.Counters, last.Counters)
	})

	t.Run("it measures the scan with the injected clock", func(t *testing.T) {
		t.Parallel()

		// Arrange
		fixed := clock.Fixed(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
		var started auditor.ScanStarted
		sub := auditor.NewSubscriber(auditor.OnScanStarted(func(e auditor.ScanStarted) { started = e }))
		svc := auditor.NewService(chainWith(), &memorySink{}, auditor.WithClock(fixed), auditor.WithSubscriber(sub))

		// Act
		summary, err := svc.Run(t.Context(), testState())

		// Assert
		require.NoError(t, err)
		assert.Equal(t, fixed.Now(), started.StartedAt)
		assert.Zero(t, summary.Duration)
	})
}

// TestResolveState tests fixing the scan state
func TestResolveState(t *testing.T) {
	t.Parallel()

	t.Run("it uses the finalized head by default", func(t *testing.T) {
		t.Parallel()

		state, err := auditor.ResolveState(t.Context(), chainWith(), "")

		require.NoError(t, err)
		assert.Equal(t, testState(), state)
	})

	t.Run("it uses a pinned block", func(t *testing.T) {
		t.Parallel()

		chain := chainWith()
		pinned := substrate.Hash{0x01}

		state, err := auditor.ResolveState(t.Context(), chain, pinned.Hex())

		require.NoError(t, err)
		assert.Equal(t, pinned, state.Hash)
		assert.Equal(t, uint64(42), state.Number)
	})

	t.Run("it fails on a malformed pinned hash", func(t *testing.T) {
		t.Parallel()

		_, err := auditor.ResolveState(t.Context(), chainWith(), "0xnothex")

		assert.ErrorIs(t, err, auditor.ErrStateResolution)
	})

	t.Run("it fails when the node cannot resolve a head", func(t *testing.T) {
		t.Parallel()

		chain := chainWith()
		chain.headErr = errNodeDown

		_, err := auditor.ResolveState(t.Context(), chain, "")

		assert.ErrorIs(t, err, auditor.ErrStateResolution)
		assert.ErrorIs(t, err, errNodeDown)
	})
}

// Test data helpers

var errNodeDown = errors.New("node down")

func testState() auditor.State {
	return auditor.State{Hash: substrate.Hash{0xfe, 0xed}, Number: 1234}
}

// entry is one bonded pair of a fake chain with its ledgers
type entry struct {
	stash, controller substrate.AccountID
	key, value        []byte
	stashLedger       bool
	controllerLedger  bool
}

func bonded(stash, controller byte) entry {
	s, c := id(stash), id(controller)
	return entry{
		stash:      s,
		controller: c,
		key:        substrate.BondedKey(s),
		value:      c[:],
	}
}

func (e entry) withLedgers(stash, controller bool) entry {
	e.stashLedger, e.controllerLedger = stash, controller
	return e
}

// mixedStream builds n distinct pairs cycling through migrated, double bonded,
// controller only, stash only and orphaned
func mixedStream(n int) []entry {
	out := make([]entry, n)
	for i := range n {
		stash := idN(2 * i)
		controller := idN(2*i + 1)
		e := entry{stash: stash, controller: controller}
		switch i % 5 {
		case 0:
			e.controller = stash
			e.stashLedger, e.controllerLedger = true, true
		case 1:
			e.stashLedger, e.controllerLedger = true, true
		case 2:
			e.controllerLedger = true
		case 3:
			e.stashLedger = true
		}
		e.key = substrate.BondedKey(e.stash)
		e.value = e.controller[:]
		out[i] = e
	}
	return out
}

func id(b byte) substrate.AccountID {
	var a substrate.AccountID
	for i := range a {
		a[i] = b
	}
	return a
}

func idN(n int) substrate.AccountID {
	var a substrate.AccountID
	a[0], a[1], a[31] = byte(n>>8), byte(n), 0xaa
	return a
}

func chainWith(entries ...entry) *fakeChain {
	c := &fakeChain{
		entries:  entries,
		ledgers:  map[substrate.AccountID]bool{},
		failAt:   map[substrate.AccountID]bool{},
		statesAt: map[substrate.Hash]bool{},
	}
	for _, e := range entries {
		if e.stashLedger {
			c.ledgers[e.stash] = true
		}
		if e.controllerLedger {
			c.ledgers[e.controller] = true
		}
	}
	return c
}

// Mock implementations

// fakeChain serves bonded entries in insertion order
type fakeChain struct {
	entries  []entry
	ledgers  map[substrate.AccountID]bool
	failAt   map[substrate.AccountID]bool
	statesAt map[substrate.Hash]bool
	keysErr  error
	headErr  error
	onLedger func(call int)

	ledgerCalls  int
	storageCalls int
}

func (c *fakeChain) failLedgerAt(position int) {
	c.failAt[c.entries[position].controller] = true
}

func (c *fakeChain) distinctStates() []substrate.Hash {
	var out []substrate.Hash
	for h := range c.statesAt {
		out = append(out, h)
	}
	return out
}

func (c *fakeChain) FinalizedBlock(ctx context.Context) (substrate.Block, error) {
	if c.headErr != nil {
		return substrate.Block{}, c.headErr
	}
	s := testState()
	return substrate.Block{Hash: s.Hash, Number: s.Number}, nil
}

func (c *fakeChain) Block(ctx context.Context, hash substrate.Hash) (substrate.Block, error) {
	return substrate.Block{Hash: hash, Number: 42}, nil
}

func (c *fakeChain) BondedKeys(ctx context.Context, at substrate.Hash, startKey substrate.StorageKey, count uint32) ([]substrate.StorageKey, error) {
	c.statesAt[at] = true
	if c.keysErr != nil {
		return nil, c.keysErr
	}

	start := 0
	if startKey != nil {
		for i, e := range c.entries {
			if bytes.Equal(e.key, startKey) {
				start = i + 1
				break
			}
		}
	}

	var keys []substrate.StorageKey
	for i := start; i < len(c.entries) && len(keys) < int(count); i++ {
		keys = append(keys, c.entries[i].key)
	}
	return keys, nil
}

func (c *fakeChain) StorageAt(ctx context.Context, at substrate.Hash, keys []substrate.StorageKey) ([]substrate.KeyValue, error) {
	c.statesAt[at] = true
	c.storageCalls++

	out := make([]substrate.KeyValue, len(keys))
	for i, k := range keys {
		out[i] = substrate.KeyValue{Key: k}
		for _, e := range c.entries {
			if bytes.Equal(e.key, k) {
				out[i].Value = e.value
			}
		}
	}
	return out, nil
}

func (c *fakeChain) Ledger(ctx context.Context, at substrate.Hash, account substrate.AccountID) (*substrate.StakingLedger, error) {
	c.statesAt[at] = true
	c.ledgerCalls++
	if c.onLedger != nil {
		c.onLedger(c.ledgerCalls)
	}

	if c.failAt[account] {
		return nil, errNodeDown
	}
	if !c.ledgers[account] {
		return nil, nil
	}
	return substrate.DecodeStakingLedger(substratetest.EncodeLedger(account, 100), substrate.LedgerSchemaV2)
}

// memorySink captures appended records. Like a networked mirror it
// refuses writes on a cancelled context.
type memorySink struct {
	records []auditor.AnomalyRecord
	err     error
}

func (m *memorySink) Append(ctx context.Context, record auditor.AnomalyRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if m.err != nil {
		return m.err
	}
	m.records = append(m.records, record)
	return nil
}

func openFileSink(t *testing.T, dir string) *filesink.Sink {
	t.Helper()

	sink, err := filesink.Open(dir, "resume.data", testState())
	require.NoError(t, err)
	t.Cleanup(func() { _ = sink.Close() })
	return sink
}

func readFileRecords(t *testing.T, path string) []filesink.Entry {
	t.Helper()

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	entries, err := filesink.ParseRecords(f)
	require.NoError(t, err)
	return entries
}

// positionCapture records classified positions
type positionCapture struct {
	positions []uint64
}

func capturePositions() *positionCapture {
	return &positionCapture{}
}

func (p *positionCapture) subscriber() *auditor.Subscriber {
	return auditor.NewSubscriber(auditor.OnPairClassified(func(e auditor.PairClassified) {
		p.positions = append(p.positions, e.Position)
	}))
}

// Domain-specific assertions

func assertDoubleRecord(t *testing.T, record auditor.AnomalyRecord, controller, stash byte) {
	t.Helper()
	assert.Equal(t, auditor.KindDouble, record.Kind)
	assert.Equal(t, auditor.Identity(id(controller)), record.Controller)
	assert.Equal(t, auditor.Identity(id(stash)), record.Stash)
	require.NotNil(t, record.ControllerLedger, "double bonded record should carry the controller ledger")
	require.NotNil(t, record.StashLedger, "double bonded record should carry the stash ledger")
	assert.Contains(t, record.StashLedger.String(), "stash: 0x"+auditor.Identity(id(stash)).Hex())
	assert.Contains(t, record.ControllerLedger.String(), "stash: 0x"+auditor.Identity(id(controller)).Hex())
}

func assertNoneRecord(t *testing.T, record auditor.AnomalyRecord, controller, stash byte) {
	t.Helper()
	assert.Equal(t, auditor.KindNone, record.Kind)
	assert.Equal(t, auditor.Identity(id(controller)), record.Controller)
	assert.Equal(t, auditor.Identity(id(stash)), record.Stash)
	assert.Nil(t, record.ControllerLedger)
	assert.Nil(t, record.StashLedger)
}
