package shared

import (
	"path/filepath"
	"testing"
)

func TestMigrationRunner(t *testing.T) {
	t.Run("parseMigrationName", func(t *testing.T) {
		tests := []struct {
			name      string
			version   int
			direction string
			ok        bool
		}{
			{name: "0000_unit_cache_up.sql", version: 0, direction: "up", ok: true},
			{name: "0012_add_index_down.sql", version: 12, direction: "down", ok: true},
			{name: "README.md", ok: false},
			{name: "abc_up.sql", ok: false},
			{name: "0001_sideways.sql", ok: false},
		}

		for _, tt := range tests {
			v, d, ok := parseMigrationName(tt.name)
			if ok != tt.ok || v != tt.version || d != tt.direction {
				t.Errorf("parseMigrationName(%q) = (%d, %q, %v), want (%d, %q, %v)", tt.name, v, d, ok, tt.version, tt.direction, tt.ok)
			}
		}
	})

	t.Run("loadMigrations", func(t *testing.T) {
		migrations, err := loadMigrations()
		if err != nil {
			t.Fatalf("failed to load migrations: %v", err)
		}

		if len(migrations) == 0 {
			t.Fatal("expected at least one migration")
		}

		for i := 1; i < len(migrations); i++ {
			if migrations[i].Version <= migrations[i-1].Version {
				t.Errorf("migrations not sorted: version %d comes after %d", migrations[i].Version, migrations[i-1].Version)
			}
		}
	})

	t.Run("RunMigrations And Rollback", func(t *testing.T) {
		db, err := NewDatabase(filepath.Join(t.TempDir(), "cache.db"))
		if err != nil {
			t.Fatalf("failed to create database: %v", err)
		}
		defer db.Close()

		if err := RunMigrations(db); err != nil {
			t.Fatalf("failed to run migrations: %v", err)
		}

		if _, err := db.Exec("SELECT 1 FROM unit_cache LIMIT 1"); err != nil {
			t.Errorf("unit_cache table should exist after migrations: %v", err)
		}

		if err := RollbackMigration(db); err != nil {
			t.Fatalf("failed to rollback migration: %v", err)
		}

		if _, err := db.Exec("SELECT 1 FROM unit_cache LIMIT 1"); err == nil {
			t.Error("unit_cache table should be gone after rollback")
		}

		if err := RollbackMigration(db); err == nil {
			t.Error("expected error when nothing is left to roll back")
		}
	})

	t.Run("Idempotent Migrations", func(t *testing.T) {
		db, err := OpenDatabase(filepath.Join(t.TempDir(), "nested", "cache.db"))
		if err != nil {
			t.Fatalf("failed to open database: %v", err)
		}
		defer db.Close()

		if err := RunMigrations(db); err != nil {
			t.Fatalf("failed to run migrations second time: %v", err)
		}

		var count int
		if err := db.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&count); err != nil {
			t.Fatalf("failed to query schema_migrations: %v", err)
		}

		migrations, _ := loadMigrations()
		if count != len(migrations) {
			t.Errorf("expected %d migrations to be applied, got %d", len(migrations), count)
		}
	})
}
