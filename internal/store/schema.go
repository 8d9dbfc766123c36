// Package store keeps a SQLite history of runs and angle searches.
package store

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// SchemaVersion is the current schema version.
const SchemaVersion = 1

// schemaV1 is the initial schema for the history database.
const schemaV1 = `
-- One row per completed run or replica
CREATE TABLE IF NOT EXISTS runs (
    id TEXT PRIMARY KEY,
    created_at TEXT NOT NULL,
    command TEXT NOT NULL,       -- 'run', 'replicate'
    model TEXT NOT NULL,
    inequality TEXT NOT NULL,
    mode TEXT NOT NULL,
    seed INTEGER NOT NULL,
    efficiency REAL NOT NULL,
    angles TEXT NOT NULL,        -- JSON models.Angles
    trials INTEGER NOT NULL,
    skipped INTEGER DEFAULT 0,
    statistic REAL,              -- NULL when undefined
    broken INTEGER NOT NULL DEFAULT 0,
    breakdown TEXT,              -- JSON inequality.Breakdown
    counts TEXT NOT NULL         -- JSON counts.State
);
CREATE INDEX IF NOT EXISTS idx_runs_created ON runs(created_at);
CREATE INDEX IF NOT EXISTS idx_runs_inequality ON runs(inequality, broken);

-- One row per angle search
CREATE TABLE IF NOT EXISTS searches (
    id TEXT PRIMARY KEY,
    created_at TEXT NOT NULL,
    model TEXT NOT NULL,
    inequality TEXT NOT NULL,
    seed INTEGER NOT NULL,
    efficiency REAL NOT NULL,
    batch_trials INTEGER NOT NULL,
    verify_trials INTEGER NOT NULL,
    candidates INTEGER NOT NULL,
    broken INTEGER NOT NULL,
    verified INTEGER NOT NULL,
    found INTEGER NOT NULL DEFAULT 0,
    interrupted INTEGER NOT NULL DEFAULT 0,
    best_angles TEXT,            -- JSON models.Angles, NULL when nothing found
    statistic REAL,
    batch_statistic REAL
);
CREATE INDEX IF NOT EXISTS idx_searches_created ON searches(created_at);

-- Schema version
CREATE TABLE IF NOT EXISTS schema_version (
    version INTEGER PRIMARY KEY,
    applied_at TEXT NOT NULL
);
`

// InitSchema creates the schema on a fresh database and checks integrity
// on an existing one.
func InitSchema(ctx context.Context, db *sqlx.DB) error {
	currentVersion, err := getSchemaVersion(ctx, db)
	if err != nil {
		// schema_version missing: fresh database
		if err := createSchema(ctx, db); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
		return nil
	}

	if err := ValidateIntegrity(ctx, db); err != nil {
		return fmt.Errorf("database integrity check failed: %w", err)
	}

	if currentVersion > SchemaVersion {
		return fmt.Errorf("database schema version %d is newer than supported version %d", currentVersion, SchemaVersion)
	}
	return nil
}

func getSchemaVersion(ctx context.Context, db *sqlx.DB) (int, error) {
	var version int
	if err := db.GetContext(ctx, &version, `SELECT MAX(version) FROM schema_version`); err != nil {
		return 0, err
	}
	return version, nil
}

func createSchema(ctx context.Context, db *sqlx.DB) error {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, schemaV1); err != nil {
		return fmt.Errorf("failed to create tables: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO schema_version (version, applied_at) VALUES (?, datetime('now'))`,
		SchemaVersion); err != nil {
		return fmt.Errorf("failed to record schema version: %w", err)
	}

	return tx.Commit()
}

// ValidateIntegrity runs PRAGMA integrity_check.
func ValidateIntegrity(ctx context.Context, db *sqlx.DB) error {
	var results []string
	if err := db.SelectContext(ctx, &results, `PRAGMA integrity_check`); err != nil {
		return fmt.Errorf("failed to run integrity_check: %w", err)
	}
	for _, result := range results {
		if result != "ok" {
			return fmt.Errorf("integrity_check failed: %s", result)
		}
	}
	return nil
}
