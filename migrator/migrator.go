package migrator

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/peterldowns/pgtestdb"
	"github.com/peterldowns/pgtestdb/migrators/sqlmigrator"
	migrate "github.com/rubenv/sql-migrate"
)

// Migration constants
const (
	migrationsTableName = "schema_migrations"
	schemaHashPrefix    = "schema_only_"
)

// Migration-related errors
var (
	ErrMigrationExecution = errors.New("migration execution failed")
	ErrMigrationPlan      = errors.New("failed to plan migrations")
)

// SchemaMigrator applies the audit schema migrations.
// It satisfies pgtestdb.Migrator so tests share template databases.
type SchemaMigrator struct {
	migrationsDir string
}

// NewSchemaMigrator creates a migrator that applies schema migrations only
func NewSchemaMigrator(migrationsDir string) *SchemaMigrator {
	return &SchemaMigrator{
		migrationsDir: migrationsDir,
	}
}

func (m *SchemaMigrator) Hash() (string, error) {
	source := &migrate.FileMigrationSource{Dir: m.migrationsDir}
	migrationSet := &migrate.MigrationSet{TableName: migrationsTableName}
	sqlMigrator := sqlmigrator.New(source, migrationSet)

	baseHash, err := sqlMigrator.Hash()
	if err != nil {
		return "", fmt.Errorf("failed to calculate migration hash for %s: %w", m.migrationsDir, err)
	}

	return schemaHashPrefix + baseHash, nil
}

func (m *SchemaMigrator) Migrate(ctx context.Context, db *sql.DB, conf pgtestdb.Config) error {
	_, err := applyMigrations(db, m.migrationsDir)
	return err
}

// ApplyMigrations applies pending migrations using sql-migrate with the provided pgx pool
// and returns how many were applied
func ApplyMigrations(pool *pgxpool.Pool, migrationsDir string) (int, error) {
	// Create sql.DB from the pgx pool for sql-migrate
	db := stdlib.OpenDBFromPool(pool)
	defer db.Close()

	return applyMigrations(db, migrationsDir)
}

// Pending lists the migrations not yet applied
func Pending(pool *pgxpool.Pool, migrationsDir string) ([]string, error) {
	db := stdlib.OpenDBFromPool(pool)
	defer db.Close()

	source := &migrate.FileMigrationSource{Dir: migrationsDir}
	migrationSet := &migrate.MigrationSet{TableName: migrationsTableName}

	planned, _, err := migrationSet.PlanMigration(db, "postgres", source, migrate.Up, 0)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMigrationPlan, err)
	}

	ids := make([]string, len(planned))
	for i, p := range planned {
		ids[i] = p.Id
	}
	return ids, nil
}

// applyMigrations applies database migrations using sql-migrate
func applyMigrations(db *sql.DB, migrationsDir string) (int, error) {
	source := &migrate.FileMigrationSource{Dir: migrationsDir}
	migrationSet := &migrate.MigrationSet{TableName: migrationsTableName}

	n, err := migrationSet.Exec(db, "postgres", source, migrate.Up)
	if err != nil {
		return n, fmt.Errorf("%w: %w", ErrMigrationExecution, err)
	}
	return n, nil
}
