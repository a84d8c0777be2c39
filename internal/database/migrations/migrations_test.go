package migrations

import (
	"database/sql"
	"testing"

	_ "github.com/mattn/go-sqlite3"
)

func TestMigrateUp_FreshDatabase(t *testing.T) {
	db := openTestDB(t)

	if err := MigrateUp(db); err != nil {
		t.Fatalf("MigrateUp() failed: %v", err)
	}

	tables := []string{"users", "sessions", "breaks", "notes", "reminder_settings", "sent_reminders", "schema_migrations"}
	for _, table := range tables {
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
	if err == nil {
		t.Fatal("CheckDBMigrationStatus() expected error for fresh database, got nil")
	}
	if err.Error() != "database has no schema version (needs migration)" {
		t.Errorf("CheckDBMigrationStatus() error = %q, want error about needing migration", err.Error())
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
}

func TestMigrateUp_Idempotent(t *testing.T) {
	db := openTestDB(t)

	if err := MigrateUp(db); err != nil {
		t.Fatalf("first MigrateUp() failed: %v", err)
	}
	if err := MigrateUp(db); err != nil {
		t.Errorf("second MigrateUp() failed: %v (should be idempotent)", err)
	}
}

func TestGetStatus(t *testing.T) {
	db := openTestDB(t)

	latest, err := LatestVersion()
	if err != nil {
		t.Fatalf("LatestVersion() error = %v", err)
	}
	if latest != 2 {
		t.Errorf("LatestVersion() = %d, want 2", latest)
	}

	st, err := GetStatus(db)
	if err != nil {
		t.Fatalf("GetStatus() error = %v", err)
	}
	if st.Current != 0 || st.Pending() != latest {
		t.Errorf("GetStatus() before migration = %+v, want current 0 and %d pending", st, latest)
	}

	if err := MigrateUp(db); err != nil {
		t.Fatalf("MigrateUp() failed: %v", err)
	}
	st, err = GetStatus(db)
	if err != nil {
		t.Fatalf("GetStatus() error = %v", err)
	}
	if st.Current != latest || st.Pending() != 0 || st.Dirty {
		t.Errorf("GetStatus() after migration = %+v, want current %d", st, latest)
	}
}

func TestForeignKeyConstraints(t *testing.T) {
	db := openTestDB(t)

	if err := MigrateUp(db); err != nil {
		t.Fatalf("MigrateUp() failed: %v", err)
	}

	_, err := db.Exec(`
		INSERT INTO sessions (id, user_id, category, start_time, status)
		VALUES ('s-1', 999, 'Dev', datetime('now'), 'active')
	`)
	if err == nil {
		t.Error("expected foreign key constraint violation for unknown user, but insert succeeded")
	}
}

func TestSchema_OneOpenSessionPerUser(t *testing.T) {
	db := openTestDB(t)

	if err := MigrateUp(db); err != nil {
		t.Fatalf("MigrateUp() failed: %v", err)
	}
	if _, err := db.Exec("INSERT INTO users (user_id, registered_at) VALUES (1, datetime('now'))"); err != nil {
		t.Fatalf("inserting user: %v", err)
	}

	insert := "INSERT INTO sessions (id, user_id, category, start_time, status) VALUES (?, 1, 'Dev', datetime('now'), ?)"
	if _, err := db.Exec(insert, "s-1", "active"); err != nil {
		t.Fatalf("inserting first session: %v", err)
	}
	if _, err := db.Exec(insert, "s-2", "paused"); err == nil {
		t.Error("expected unique violation for a second open session, but insert succeeded")
	}
	if _, err := db.Exec(insert, "s-3", "completed"); err != nil {
		t.Errorf("completed sessions must not be limited: %v", err)
	}
}

func TestSchema_CategoryIsFreeText(t *testing.T) {
	db := openTestDB(t)

	if err := MigrateUp(db); err != nil {
		t.Fatalf("MigrateUp() failed: %v", err)
	}
	if _, err := db.Exec("INSERT INTO users (user_id, registered_at) VALUES (1, datetime('now'))"); err != nil {
		t.Fatalf("inserting user: %v", err)
	}
	_, err := db.Exec(`
		INSERT INTO sessions (id, user_id, category, start_time, status)
		VALUES ('s-1', 1, 'Label From An Old Config', datetime('now'), 'completed')
	`)
	if err != nil {
		t.Errorf("inserting arbitrary category: %v", err)
	}
}

// openTestDB opens an in-memory SQLite database for testing. The pool is
// limited to one connection because every connection to :memory: gets its
// own database.
func openTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", "file::memory:?_foreign_keys=on")
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	db.SetMaxOpenConns(1)

	t.Cleanup(func() {
		db.Close()
	})
	return db
}
