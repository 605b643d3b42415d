package database

import (
	"path/filepath"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	if err := config.Validate(); err != nil {
		t.Fatalf("Default config should validate: %v", err)
	}
	if config.DatabasePath == "" {
		t.Error("Default config should set a database path")
	}
	if config.MaxConnections <= 0 {
		t.Error("Default config should allow connections")
	}
}

func TestConfig_Validate(t *testing.T) {
	config := DefaultConfig()
	config.DatabasePath = ""
	if err := config.Validate(); err == nil {
		t.Error("Empty database path should fail validation")
	}

	config = DefaultConfig()
	config.MaxConnections = 0
	if err := config.Validate(); err == nil {
		t.Error("Zero max connections should fail validation")
	}
}

func TestOpenAndEnsureSchema(t *testing.T) {
	config := DefaultConfig()
	config.DatabasePath = filepath.Join(t.TempDir(), "test.db")

	db, err := Open(config)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer db.Close()

	if err := EnsureSchema(db); err != nil {
		t.Fatalf("EnsureSchema failed: %v", err)
	}

	// Idempotent: applying the schema twice is fine.
	if err := EnsureSchema(db); err != nil {
		t.Fatalf("EnsureSchema should be idempotent: %v", err)
	}

	if err := NewSchemaValidator(db).ValidateTablesExist(); err != nil {
		t.Errorf("Schema validation failed after bootstrap: %v", err)
	}
}

func TestSchemaValidator_MissingTables(t *testing.T) {
	config := DefaultConfig()
	config.DatabasePath = filepath.Join(t.TempDir(), "empty.db")

	db, err := Open(config)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer db.Close()

	if err := NewSchemaValidator(db).ValidateTablesExist(); err == nil {
		t.Error("Validation should fail before the schema is applied")
	}
}
