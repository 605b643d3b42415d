package database

import (
	"database/sql"
	"fmt"
)

// Journal schema: a single append-only table. CREATE IF NOT EXISTS keeps
// bootstrap idempotent; there is no migration history to version.
const journalSchema = `
	CREATE TABLE IF NOT EXISTS session_events (
		id            TEXT PRIMARY KEY,
		session_token TEXT NOT NULL,
		event_type    TEXT NOT NULL,
		status        TEXT,
		image_path    TEXT,
		detail        TEXT,
		timestamp     DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_session_events_token
		ON session_events(session_token, timestamp);
`

// EnsureSchema creates the journal tables if they do not exist.
func EnsureSchema(db *sql.DB) error {
	if _, err := db.Exec(journalSchema); err != nil {
		return fmt.Errorf("failed to create journal schema: %w", err)
	}
	return nil
}

// SchemaValidator verifies the journal schema is present, used by health
// checks and deployment verification.
type SchemaValidator struct {
	db *sql.DB
}

// NewSchemaValidator creates a new schema validator
func NewSchemaValidator(db *sql.DB) *SchemaValidator {
	return &SchemaValidator{db: db}
}

// ValidateTablesExist verifies that all required tables exist.
func (v *SchemaValidator) ValidateTablesExist() error {
	requiredTables := map[string]string{
		"session_events": "Session event journal",
	}

	for table, description := range requiredTables {
		exists, err := v.tableExists(table)
		if err != nil {
			return fmt.Errorf("error checking table %s (%s): %w", table, description, err)
		}
		if !exists {
			return fmt.Errorf("required table %s (%s) does not exist", table, description)
		}
	}

	return nil
}

func (v *SchemaValidator) tableExists(name string) (bool, error) {
	var count int
	err := v.db.QueryRow(
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?", name,
	).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
