//go:build acceptance

package pgxstore_test

import (
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/screwyprof/bondaudit/auditor"
	"github.com/screwyprof/bondaudit/auditor/store/pgxstore"
	"github.com/screwyprof/bondaudit/migrator/migratortest"
	"github.com/screwyprof/bondaudit/pkg/substrate"
)

const migrationsDir = "../../../migrator/migrations"

// TestRecorderAcceptanceBehavior tests mirroring a run into PostgreSQL
func TestRecorderAcceptanceBehavior(t *testing.T) {
	t.Parallel()

	t.Run("it records a run with its anomalies and final counters", func(t *testing.T) {
		t.Parallel()

		// Arrange
		store := createStore(t)
		recorder := store.Recorder("Polkadot")
		state := auditor.State{Hash: substrate.Hash{0x01}, Number: 100}
		startedAt := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

		// Act
		require.NoError(t, recorder.StartRun(t.Context(), state, 5, startedAt))
		require.NoError(t, recorder.Append(t.Context(), doubleRecord(5)))
		require.NoError(t, recorder.Append(t.Context(), noneRecord(7)))
		summary := auditor.Summary{
			State:        state,
			Cursor:       5,
			ResumeCursor: 9,
			Counters:     auditor.Counters{Migrated: 2, DoubleBonded: 1, Orphaned: 1},
		}
		require.NoError(t, recorder.FinishRun(t.Context(), summary, startedAt.Add(time.Minute), nil))

		// Assert
		runs, err := store.Runs(t.Context(), pgxstore.Criteria{RunID: recorder.RunID()})
		require.NoError(t, err)
		require.Len(t, runs, 1)
		assert.Equal(t, "polkadot", runs[0].Chain)
		assert.Equal(t, state.Hash.Hex(), runs[0].StateHash)
		assert.Equal(t, int64(5), runs[0].StartCursor)
		assert.Equal(t, int64(9), runs[0].ResumeCursor)
		assert.Equal(t, int64(1), runs[0].DoubleBonded)
		assert.Nil(t, runs[0].Error)
		require.NotNil(t, runs[0].FinishedAt)

		anomalies, err := store.Anomalies(t.Context(), pgxstore.Criteria{RunID: recorder.RunID()})
		require.NoError(t, err)
		require.Len(t, anomalies, 2)
		assert.Equal(t, "DOUBLE", anomalies[0].Kind)
		assert.Equal(t, int64(5), anomalies[0].Position)
		require.NotNil(t, anomalies[0].StashLedger)
		assert.Equal(t, "StakingLedger { stash }", *anomalies[0].StashLedger)
		assert.Equal(t, "NONE", anomalies[1].Kind)
		assert.Nil(t, anomalies[1].ControllerLedger)
	})

	t.Run("it stores the error of a failed run", func(t *testing.T) {
		t.Parallel()

		// Arrange
		store := createStore(t)
		recorder := store.Recorder("kusama")
		require.NoError(t, recorder.StartRun(t.Context(), auditor.State{}, 0, time.Now()))

		// Act
		err := recorder.FinishRun(t.Context(), auditor.Summary{ResumeCursor: 3}, time.Now(), errors.New("ledger lookup failed"))

		// Assert
		require.NoError(t, err)
		runs, err := store.Runs(t.Context(), pgxstore.Criteria{Chain: "kusama"})
		require.NoError(t, err)
		require.Len(t, runs, 1)
		require.NotNil(t, runs[0].Error)
		assert.Equal(t, "ledger lookup failed", *runs[0].Error)
	})

	t.Run("it rejects anomalies for an unknown run", func(t *testing.T) {
		t.Parallel()

		// Arrange
		store := createStore(t)
		recorder := store.Recorder("polkadot")

		// Act
		err := recorder.Append(t.Context(), noneRecord(0))

		// Assert
		assert.ErrorIs(t, err, pgxstore.ErrInsertFailed)
	})
}

// TestFinderAcceptanceBehavior tests anomaly queries
func TestFinderAcceptanceBehavior(t *testing.T) {
	t.Parallel()

	t.Run("it filters anomalies by chain and kind", func(t *testing.T) {
		t.Parallel()

		// Arrange
		store := createStore(t)
		polkadot := startedRecorder(t, store, "polkadot")
		kusama := startedRecorder(t, store, "kusama")
		require.NoError(t, polkadot.Append(t.Context(), doubleRecord(1)))
		require.NoError(t, polkadot.Append(t.Context(), noneRecord(2)))
		require.NoError(t, kusama.Append(t.Context(), doubleRecord(1)))

		// Act
		anomalies, err := store.Anomalies(t.Context(), pgxstore.Criteria{Chain: "Polkadot", Kind: auditor.KindDouble})

		// Assert
		require.NoError(t, err)
		require.Len(t, anomalies, 1)
		assert.Equal(t, polkadot.RunID(), anomalies[0].RunID)
	})

	t.Run("it honours the limit", func(t *testing.T) {
		t.Parallel()

		// Arrange
		store := createStore(t)
		recorder := startedRecorder(t, store, "polkadot")
		for i := range 5 {
			require.NoError(t, recorder.Append(t.Context(), noneRecord(uint64(i))))
		}

		// Act
		anomalies, err := store.Anomalies(t.Context(), pgxstore.Criteria{Limit: 3})

		// Assert
		require.NoError(t, err)
		assert.Len(t, anomalies, 3)
		assert.Equal(t, int64(0), anomalies[0].Position)
	})
}

// Test helpers

func createStore(t *testing.T) *pgxstore.Store {
	t.Helper()

	pool := migratortest.CreateTestDatabase(t, migrationsDir)
	return newStore(pool)
}

func newStore(pool *pgxpool.Pool) *pgxstore.Store {
	store, _ := pgxstore.New(pool) // pool lifetime is owned by the test database
	return store
}

func startedRecorder(t *testing.T, store *pgxstore.Store, chain string) *pgxstore.Recorder {
	t.Helper()

	recorder := store.Recorder(chain)
	require.NoError(t, recorder.StartRun(t.Context(), auditor.State{Number: 1}, 0, time.Now()))
	return recorder
}

func identity(b byte) auditor.Identity {
	var id auditor.Identity
	for i := range id {
		id[i] = b
	}
	return id
}

func doubleRecord(position uint64) auditor.AnomalyRecord {
	return auditor.AnomalyRecord{
		Kind:             auditor.KindDouble,
		Position:         position,
		Controller:       identity(0x0c),
		Stash:            identity(0x0b),
		ControllerLedger: auditor.NewLedger("StakingLedger { controller }"),
		StashLedger:      auditor.NewLedger("StakingLedger { stash }"),
	}
}

func noneRecord(position uint64) auditor.AnomalyRecord {
	return auditor.AnomalyRecord{
		Kind:       auditor.KindNone,
		Position:   position,
		Controller: identity(0x0e),
		Stash:      identity(0x0d),
	}
}
