package auditor

import (
	"context"
	"fmt"
	"time"

	"github.com/screwyprof/bondaudit/pkg/clock"
	"github.com/screwyprof/bondaudit/pkg/substrate"
)

// PrimarySinkName names the sink passed to NewService in SinkFailed events
const PrimarySinkName = "anomaly log"

// Option configures the Service
// ------------------------------------------------
type Option func(*Service)

// WithClock injects a custom Clock (e.g., for testing)
func WithClock(c Clock) Option {
	return func(s *Service) { s.clock = c }
}

// WithCursor skips the first n bonded pairs without classifying them
func WithCursor(n uint64) Option {
	return func(s *Service) { s.cursor = n }
}

// WithPageSize sets the number of bonded keys fetched per request
func WithPageSize(n uint32) Option {
	return func(s *Service) {
		if n > 0 {
			s.pageSize = n
		}
	}
}

// WithSubscriber adds an event subscriber. Subscribers are notified in the order added.
func WithSubscriber(sub *Subscriber) Option {
	return func(s *Service) { s.subscribers = append(s.subscribers, sub) }
}

// WithMirror adds a secondary sink receiving every anomaly after the primary one
func WithMirror(name string, sink Sink) Option {
	return func(s *Service) { s.sinks = append(s.sinks, namedSink{name: name, sink: sink}) }
}

type namedSink struct {
	name string
	sink Sink
}

// Service reconciles bonded pairs against their ledgers
// -----------------------------------------------------
type Service struct {
	chain       Chain
	sinks       []namedSink
	clock       Clock
	cursor      uint64
	pageSize    uint32
	subscribers []*Subscriber
}

// NewService constructs a Service with required dependencies and options
// ---------------------------------------------------------------------
// By default, it uses a real clock, cursor 0 and 1000 keys per page.
func NewService(chain Chain, sink Sink, opts ...Option) *Service {
	s := &Service{
		chain:    chain,
		sinks:    []namedSink{{name: PrimarySinkName, sink: sink}},
		clock:    clock.SystemClock{},
		pageSize: DefaultPageSize,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run scans every bonded pair at state, strictly in storage order, one pair at a time.
// It returns once the bonded map is exhausted or on the first fatal error; the
// summary is valid in both cases and its ResumeCursor is where a rerun should start.
func (s *Service) Run(ctx context.Context, state State) (Summary, error) {
	start := s.clock.Now()
	summary := Summary{
		State:        state,
		Cursor:       s.cursor,
		ResumeCursor: s.cursor,
	}

	s.notify(ScanStarted{State: state, Cursor: s.cursor, StartedAt: start})

	source := newBondedSource(s.chain, state.Hash, s.pageSize, s.cursor)
	for {
		if err := ctx.Err(); err != nil {
			return s.fail(summary, start, err)
		}

		entry, ok, err := source.Next(ctx)
		if err != nil {
			return s.fail(summary, start, err)
		}
		if !ok {
			break
		}

		if entry.Skipped {
			if skipped := entry.Position + 1; skipped%SkipProgressInterval == 0 {
				s.notify(SkipProgress{Position: skipped})
			}
			continue
		}

		if summary, err = s.reconcile(ctx, state, entry, summary); err != nil {
			return s.fail(summary, start, err)
		}
	}

	summary.Duration = s.clock.Now().Sub(start)
	s.notify(ScanCompleted{Summary: summary})

	return summary, nil
}

// reconcile classifies one pair and returns the updated summary.
// On error the summary is returned unchanged.
func (s *Service) reconcile(ctx context.Context, state State, entry pairEntry, summary Summary) (Summary, error) {
	pair, err := decodePair(entry.Raw)
	if err != nil {
		return summary, fmt.Errorf("%w: position %d: %w", ErrDecodeFailed, entry.Position, err)
	}

	controllerLedger, err := s.ledger(ctx, state.Hash, pair.Controller)
	if err != nil {
		return summary, err
	}
	stashLedger, err := s.ledger(ctx, state.Hash, pair.Stash)
	if err != nil {
		return summary, err
	}

	outcome := Classify(pair, controllerLedger, stashLedger)
	summary.Counters = summary.Counters.Add(outcome)
	summary.ResumeCursor = entry.Position + 1

	s.notify(PairClassified{
		Position: entry.Position,
		Pair:     pair,
		Outcome:  outcome,
		Counters: summary.Counters,
	})

	if record, ok := anomalyFor(entry.Position, pair, outcome, controllerLedger, stashLedger); ok {
		summary.SinkFailures += s.persist(ctx, record)
	}

	return summary, nil
}

func (s *Service) ledger(ctx context.Context, at substrate.Hash, id Identity) (*Ledger, error) {
	l, err := s.chain.Ledger(ctx, at, substrate.AccountID(id))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrLedgerLookup, id.Hex(), err)
	}
	return toLedger(l), nil
}

// persist appends record to every sink and reports how many failed.
// Failures are surfaced as events only; the anomaly stays counted.
// A counted pair is past the resume cursor, so its record is written
// even when ctx is already cancelled.
func (s *Service) persist(ctx context.Context, record AnomalyRecord) uint64 {
	ctx = context.WithoutCancel(ctx)

	var failures uint64
	for _, ns := range s.sinks {
		if err := ns.sink.Append(ctx, record); err != nil {
			failures++
			s.notify(SinkFailed{Sink: ns.name, Record: record, Err: err})
		}
	}
	return failures
}

func (s *Service) fail(summary Summary, start time.Time, err error) (Summary, error) {
	summary.Duration = s.clock.Now().Sub(start)
	s.notify(ScanFailed{Summary: summary, Err: err})
	return summary, err
}

func (s *Service) notify(ev Event) {
	for _, sub := range s.subscribers {
		sub.Notify(ev)
	}
}
