package shared

import (
	"testing"
)

func TestRunMigrations(t *testing.T) {
	db, err := NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()

	if err := RunMigrations(db); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	for _, table := range []string{"uploads", "oauth_states"} {
		var name string
		err := db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
		if err != nil {
			t.Errorf("expected table %s to exist: %v", table, err)
		}
	}

	// Running again is a no-op
	if err := RunMigrations(db); err != nil {
		t.Fatalf("expected idempotent rerun, got %v", err)
	}

	version, err := getCurrentVersion(db)
	if err != nil {
		t.Fatalf("failed to get version: %v", err)
	}
	if version != 0 {
		t.Errorf("expected version 0, got %d", version)
	}
}

func TestRollbackMigration(t *testing.T) {
	db, err := NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()

	t.Run("Nothing Applied", func(t *testing.T) {
		if err := createMigrationsTable(db); err != nil {
			t.Fatalf("failed to create migrations table: %v", err)
		}
		if err := RollbackMigration(db); err == nil {
			t.Error("expected error when no migrations applied")
		}
	})

	t.Run("Rolls Back Latest", func(t *testing.T) {
		if err := RunMigrations(db); err != nil {
			t.Fatalf("failed to run migrations: %v", err)
		}
		if err := RollbackMigration(db); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		var name string
		err := db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name='uploads'").Scan(&name)
		if err == nil {
			t.Error("expected uploads table to be dropped")
		}
	})
}

func TestRemoveComments(t *testing.T) {
	input := "-- leading comment\nCREATE TABLE t (id TEXT);\n  -- indented comment\n"
	got := removeComments(input)
	if got != "CREATE TABLE t (id TEXT);\n" {
		t.Errorf("unexpected result: %q", got)
	}
}
