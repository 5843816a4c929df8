package storage

import (
	"database/sql"
	"fmt"
)

// MigrationVersion tracks the current database schema version.
const MigrationVersion = 2

// migrations are applied in order; index i holds migration version i+1.
var migrations = []func(*sql.Tx) error{
	applyMigration1,
	applyMigration2,
}

// InitializeDatabase creates or upgrades the submission history schema.
func InitializeDatabase(db *sql.DB) error {
	migrationsTable := `
	CREATE TABLE IF NOT EXISTS migrations (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		version INTEGER NOT NULL UNIQUE,
		applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);`

	if _, err := db.Exec(migrationsTable); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	currentVersion, err := SchemaVersion(db)
	if err != nil {
		return err
	}

	for i := currentVersion; i < len(migrations); i++ {
		if err := runMigration(db, i+1, migrations[i]); err != nil {
			return fmt.Errorf("failed to apply migration %d: %w", i+1, err)
		}
	}

	return nil
}

// SchemaVersion returns the highest applied migration version.
func SchemaVersion(db *sql.DB) (int, error) {
	var version int
	err := db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM migrations").Scan(&version)
	if err != nil {
		return 0, fmt.Errorf("failed to check migration version: %w", err)
	}
	return version, nil
}

func runMigration(db *sql.DB, version int, apply func(*sql.Tx) error) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := apply(tx); err != nil {
		return err
	}

	if _, err := tx.Exec("INSERT INTO migrations (version) VALUES (?)", version); err != nil {
		return fmt.Errorf("failed to record migration: %w", err)
	}

	return tx.Commit()
}

// applyMigration1 creates the submissions table.
func applyMigration1(tx *sql.Tx) error {
	submissionsTable := `
	CREATE TABLE submissions (
		id TEXT PRIMARY KEY,
		request_id TEXT NOT NULL,
		instance_id TEXT NOT NULL,
		submitted_at TIMESTAMP NOT NULL,
		instruction_count INTEGER NOT NULL,
		payload TEXT NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);`

	if _, err := tx.Exec(submissionsTable); err != nil {
		return fmt.Errorf("failed to create submissions table: %w", err)
	}

	indexes := []string{
		"CREATE INDEX idx_submissions_instance_id ON submissions(instance_id, submitted_at DESC);",
		"CREATE INDEX idx_submissions_submitted_at ON submissions(submitted_at DESC);",
	}
	for _, idx := range indexes {
		if _, err := tx.Exec(idx); err != nil {
			return fmt.Errorf("failed to create submission index: %w", err)
		}
	}

	return nil
}

// applyMigration2 adds the process id and per-operation summary.
func applyMigration2(tx *sql.Tx) error {
	statements := []string{
		"ALTER TABLE submissions ADD COLUMN process_id TEXT NOT NULL DEFAULT '';",
		"ALTER TABLE submissions ADD COLUMN summary TEXT;",
	}
	for _, stmt := range statements {
		if _, err := tx.Exec(stmt); err != nil {
			return fmt.Errorf("failed to alter submissions table: %w", err)
		}
	}
	return nil
}
