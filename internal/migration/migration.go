package migration

import (
	"context"

	"github.com/jmoiron/sqlx"

	"goseldon/internal/errors"
)

// Migrator defines the interface for database migration operations
type Migrator interface {
	Run(ctx context.Context, db *sqlx.DB) error
	Version() string
}

// MigrationRunner handles database schema migrations. The statements are
// valid on both SQLite and PostgreSQL.
type MigrationRunner struct {
	version string
}

// NewRunner creates a new migration runner
func NewRunner() *MigrationRunner {
	return &MigrationRunner{
		version: "1.0.0",
	}
}

// Version returns the migration version
func (r *MigrationRunner) Version() string {
	return r.version
}

// Run executes all database migrations in the correct order
func (r *MigrationRunner) Run(ctx context.Context, db *sqlx.DB) error {
	if err := r.createRunsTable(ctx, db); err != nil {
		return errors.DatabaseError(err, "failed to create runs table")
	}

	if err := r.createIndexes(ctx, db); err != nil {
		return errors.DatabaseError(err, "failed to create indexes")
	}

	return nil
}

func (r *MigrationRunner) createRunsTable(ctx context.Context, db *sqlx.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS runs (
			id VARCHAR(36) PRIMARY KEY,
			experiment TEXT NOT NULL DEFAULT '',
			passed BOOLEAN NOT NULL,
			failure VARCHAR(50) NOT NULL DEFAULT '',
			reason TEXT NOT NULL DEFAULT '',
			solution TEXT NOT NULL DEFAULT '[]',
			candidate TEXT NOT NULL DEFAULT '[]',
			constraint_reports TEXT NOT NULL DEFAULT '[]',
			n_candidate INTEGER NOT NULL DEFAULT 0,
			n_safety INTEGER NOT NULL DEFAULT 0,
			seed BIGINT NOT NULL DEFAULT 0,
			duration_ns BIGINT NOT NULL DEFAULT 0,
			created_at_ns BIGINT NOT NULL
		)
	`)
	return err
}

func (r *MigrationRunner) createIndexes(ctx context.Context, db *sqlx.DB) error {
	indexes := []string{
		`CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at_ns)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_experiment ON runs(experiment)`,
	}
	for _, stmt := range indexes {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
