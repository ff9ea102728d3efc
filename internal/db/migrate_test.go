package db

import (
	"database/sql"
	"testing"

	_ "modernc.org/sqlite"
)

func openBareDB(t *testing.T) *sql.DB {
	t.Helper()
	conn, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	conn.SetMaxOpenConns(1)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestMigratorUpCreatesSchema(t *testing.T) {
	conn := openBareDB(t)
	m := NewMigrator(conn)

	if err := m.Initialize(); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	if err := m.Up(); err != nil {
		t.Fatalf("Up failed: %v", err)
	}

	version, err := m.CurrentVersion()
	if err != nil {
		t.Fatalf("CurrentVersion failed: %v", err)
	}
	if version != 1 {
		t.Errorf("Expected schema version 1, got %d", version)
	}

	for _, table := range []string{"save_states", "favorites", "play_sessions", "settings"} {
		var name string
		err := conn.QueryRow(
			"SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?", table,
		).Scan(&name)
		if err != nil {
			t.Errorf("Table %s missing after migration: %v", table, err)
		}
	}
}

func TestMigratorUpIsIdempotent(t *testing.T) {
	conn := openBareDB(t)
	m := NewMigrator(conn)

	if err := m.Initialize(); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	if err := m.Up(); err != nil {
		t.Fatalf("First Up failed: %v", err)
	}
	if err := m.Up(); err != nil {
		t.Fatalf("Second Up must be a no-op: %v", err)
	}

	applied, err := m.GetAppliedMigrations()
	if err != nil {
		t.Fatalf("GetAppliedMigrations failed: %v", err)
	}
	if len(applied) != 1 {
		t.Errorf("Expected one applied migration, got %d", len(applied))
	}
}

func TestMigratorDownRollsBack(t *testing.T) {
	conn := openBareDB(t)
	m := NewMigrator(conn)

	if err := m.Initialize(); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	if err := m.Up(); err != nil {
		t.Fatalf("Up failed: %v", err)
	}
	if err := m.Down(); err != nil {
		t.Fatalf("Down failed: %v", err)
	}

	version, err := m.CurrentVersion()
	if err != nil {
		t.Fatalf("CurrentVersion failed: %v", err)
	}
	if version != 0 {
		t.Errorf("Expected version 0 after rollback, got %d", version)
	}

	var name string
	err = conn.QueryRow(
		"SELECT name FROM sqlite_master WHERE type = 'table' AND name = 'save_states'",
	).Scan(&name)
	if err != sql.ErrNoRows {
		t.Errorf("Expected save_states dropped, scan returned %v", err)
	}
}

func TestSlotCheckConstraint(t *testing.T) {
	repo := setupTestRepo(t)

	_, err := repo.db.Exec(
		"INSERT INTO save_states (game_id, slot, data, created_at, updated_at) VALUES ('x', 11, x'00', 0, 0)",
	)
	if err == nil {
		t.Error("Expected CHECK constraint to reject slot 11")
	}
}
