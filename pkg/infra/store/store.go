package store

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// DB wraps the shared sqlite handle used by the repository types in
// this package.
type DB struct {
	db *sql.DB
}

// Open opens (or creates) the sqlite database at path and initializes
// the schema.
func Open(path string) (*DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping sqlite database: %w", err)
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	d := &DB{db: db}
	if err := d.initSchema(); err != nil {
		return nil, fmt.Errorf("init schema: %w", err)
	}

	return d, nil
}

func (d *DB) initSchema() error {
	query := `
	CREATE TABLE IF NOT EXISTS workflow_definitions (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		doc TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_definitions_name ON workflow_definitions(name);

	CREATE TABLE IF NOT EXISTS schedules (
		id TEXT PRIMARY KEY,
		workflow_id TEXT NOT NULL,
		enabled INTEGER NOT NULL,
		next_execution INTEGER,
		doc TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_schedules_workflow ON schedules(workflow_id);
	CREATE INDEX IF NOT EXISTS idx_schedules_due ON schedules(enabled, next_execution);

	CREATE TABLE IF NOT EXISTS triggers (
		id TEXT PRIMARY KEY,
		workflow_id TEXT NOT NULL,
		enabled INTEGER NOT NULL,
		priority INTEGER NOT NULL,
		doc TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_triggers_workflow ON triggers(workflow_id);
	CREATE INDEX IF NOT EXISTS idx_triggers_enabled ON triggers(enabled, priority);
	`
	_, err := d.db.Exec(query)
	return err
}

// Close closes the database connection.
func (d *DB) Close() error {
	return d.db.Close()
}

// SQL returns the underlying database connection.
func (d *DB) SQL() *sql.DB {
	return d.db
}
