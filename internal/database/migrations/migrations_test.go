package migrations

import (
	"database/sql"
	"errors"
	"testing"

	_ "github.com/mattn/go-sqlite3"
)

func TestMigrateUp_FreshDatabase(t *testing.T) {
	db := openTestDB(t)

	if err := MigrateUp(db); err != nil {
		t.Fatalf("MigrateUp() failed: %v", err)
	}

	for _, table := range []string{"recent_projects", "backup_operations", "schema_migrations"} {
		var name string
		err := db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
		if err != nil {
			t.Errorf("table %s was not created: %v", table, err)
		}
	}
}

func TestCheckDBMigrationStatus_FreshDatabase(t *testing.T) {
	db := openTestDB(t)

	err := CheckDBMigrationStatus(db)
	if !errors.Is(err, ErrNeedsMigration) {
		t.Errorf("CheckDBMigrationStatus() error = %v, want ErrNeedsMigration", err)
	}
}

func TestCheckDBMigrationStatus_AfterMigration(t *testing.T) {
	db := openTestDB(t)
	if err := MigrateUp(db); err != nil {
		t.Fatalf("MigrateUp() failed: %v", err)
	}

	if err := CheckDBMigrationStatus(db); err != nil {
		t.Errorf("CheckDBMigrationStatus() after migration returned error: %v", err)
	}

	latest, err := LatestVersion()
	if err != nil {
		t.Fatal(err)
	}
	version, dirty, err := Version(db)
	if err != nil || dirty || version != latest {
		t.Errorf("Version() = %d, %v, %v; want %d, false, nil", version, dirty, err, latest)
	}
}

func TestCheckDBMigrationStatus_Behind(t *testing.T) {
	db := openTestDB(t)
	if err := MigrateUp(db); err != nil {
		t.Fatalf("MigrateUp() failed: %v", err)
	}
	if _, err := db.Exec("UPDATE schema_migrations SET version = 1"); err != nil {
		t.Fatal(err)
	}

	if err := CheckDBMigrationStatus(db); err == nil {
		t.Error("CheckDBMigrationStatus() = nil for a database behind the binary")
	}
}

func TestMigrateUp_Idempotent(t *testing.T) {
	db := openTestDB(t)

	if err := MigrateUp(db); err != nil {
		t.Fatalf("first MigrateUp() failed: %v", err)
	}
	if err := MigrateUp(db); err != nil {
		t.Errorf("second MigrateUp() failed: %v", err)
	}
	if err := CheckDBMigrationStatus(db); err != nil {
		t.Errorf("CheckDBMigrationStatus() after double migration returned error: %v", err)
	}
}

func TestSchema_RecentProjectPathUnique(t *testing.T) {
	db := openTestDB(t)
	if err := MigrateUp(db); err != nil {
		t.Fatalf("MigrateUp() failed: %v", err)
	}

	if _, err := db.Exec("INSERT INTO recent_projects (path, name, saved_at) VALUES ('/p.sdp', 'one', 1)"); err != nil {
		t.Fatalf("insert failed: %v", err)
	}
	if _, err := db.Exec("INSERT INTO recent_projects (path, name, saved_at) VALUES ('/p.sdp', 'two', 2)"); err == nil {
		t.Error("expected unique constraint violation for duplicate path")
	}
}

func TestSchema_BackupOperationStatusChecked(t *testing.T) {
	db := openTestDB(t)
	if err := MigrateUp(db); err != nil {
		t.Fatalf("MigrateUp() failed: %v", err)
	}

	_, err := db.Exec("INSERT INTO backup_operations (started_at, operation, status) VALUES (1, 'push', 'bogus')")
	if err == nil {
		t.Error("expected check constraint violation for unknown status")
	}

	var snapshot string
	if _, err := db.Exec("INSERT INTO backup_operations (started_at, operation) VALUES (1, 'push')"); err != nil {
		t.Fatal(err)
	}
	if err := db.QueryRow("SELECT snapshot_id FROM backup_operations").Scan(&snapshot); err != nil || snapshot != "" {
		t.Errorf("snapshot_id = %q, %v; want empty default", snapshot, err)
	}
}

// openTestDB opens an in-memory SQLite database on a single connection.
func openTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	return db
}
