package migratortest

import (
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib" // pgx driver for pgtestdb
	"github.com/peterldowns/pgtestdb"
	"github.com/stretchr/testify/require"

	"github.com/screwyprof/bondaudit/migrator"
)

// CreateTestDatabase creates a test database with the audit schema applied.
// Returns the connection pool ready for use; it is closed when the test ends.
func CreateTestDatabase(t *testing.T, migrationsDir string) *pgxpool.Pool {
	t.Helper()

	config := createTestDatabaseConfig()

	// Create test database and get its config
	dbConfig := pgtestdb.Custom(t, config, migrator.NewSchemaMigrator(migrationsDir))

	// Connect to the test database using test context for proper lifecycle management
	pool, err := pgxpool.New(t.Context(), dbConfig.URL())
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	// Log the database URL for debugging
	t.Logf("testdbconf: %s", dbConfig.URL())

	return pool
}

// createTestDatabaseConfig creates the standard pgtestdb configuration for bondaudit tests
func createTestDatabaseConfig() pgtestdb.Config {
	return pgtestdb.Config{
		DriverName: "pgx",
		User:       "bondaudit",
		Password:   "bondaudit",
		Host:       "localhost",
		Port:       "5432",
		Options:    "sslmode=disable",
	}
}
