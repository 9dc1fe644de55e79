package migrations

import (
	"database/sql"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	_ "modernc.org/sqlite"
)

func TestMigrateUp_FreshDatabase(t *testing.T) {
	for _, tc := range []struct {
		driver  string
		dialect Dialect
	}{
		{driver: "sqlite3", dialect: SQLite3},
		{driver: "sqlite", dialect: SQLite},
	} {
		t.Run(string(tc.dialect), func(t *testing.T) {
			db := openTestDB(t, tc.driver)
			defer db.Close()

			if err := MigrateUp(db, tc.dialect); err != nil {
				t.Fatalf("MigrateUp() failed: %v", err)
			}

			tables := []string{"oswl_stats", "schema_migrations"}
			for _, table := range tables {
				var name string
				err := db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
				if err != nil {
					t.Errorf("Table %s was not created: %v", table, err)
				}
			}
		})
	}
}

func TestCheckDBMigrationStatus_FreshDatabase(t *testing.T) {
	db := openTestDB(t, "sqlite3")
	defer db.Close()

	err := CheckDBMigrationStatus(db, SQLite3)
	if err == nil {
		t.Fatal("CheckDBMigrationStatus() expected error for fresh database, got nil")
	}

	if err.Error() != "database has no schema version (needs migration)" {
		t.Errorf("CheckDBMigrationStatus() error = %q, want error about needing migration", err.Error())
	}
}

func TestCheckDBMigrationStatus_AfterMigration(t *testing.T) {
	db := openTestDB(t, "sqlite3")
	defer db.Close()

	if err := MigrateUp(db, SQLite3); err != nil {
		t.Fatalf("MigrateUp() failed: %v", err)
	}

	if err := CheckDBMigrationStatus(db, SQLite3); err != nil {
		t.Errorf("CheckDBMigrationStatus() after migration returned error: %v", err)
	}
}

func TestMigrateUp_Idempotent(t *testing.T) {
	db := openTestDB(t, "sqlite3")
	defer db.Close()

	if err := MigrateUp(db, SQLite3); err != nil {
		t.Fatalf("First MigrateUp() failed: %v", err)
	}

	if err := MigrateUp(db, SQLite3); err != nil {
		t.Errorf("Second MigrateUp() failed: %v (should be idempotent)", err)
	}

	if err := CheckDBMigrationStatus(db, SQLite3); err != nil {
		t.Errorf("CheckDBMigrationStatus() after double migration returned error: %v", err)
	}
}

func TestMigrateUp_UnknownDialect(t *testing.T) {
	db := openTestDB(t, "sqlite3")
	defer db.Close()

	if err := MigrateUp(db, Dialect("oracle")); err == nil {
		t.Error("MigrateUp() expected error for unknown dialect, got nil")
	}
}

func TestSchema_PairDateUnique(t *testing.T) {
	db := openTestDB(t, "sqlite3")
	defer db.Close()

	if err := MigrateUp(db, SQLite3); err != nil {
		t.Fatalf("MigrateUp() failed: %v", err)
	}

	insert := `INSERT INTO oswl_stats
		(id, group_key, resource_kind, created_date, updated_time, resource_checksum, resource_data, is_sent)
		VALUES (?, 'cluster-1', 'vm', '2024-01-15', '10:30:00', 'abc', '{}', 0)`

	if _, err := db.Exec(insert, "rec-1"); err != nil {
		t.Fatalf("Failed to insert first record: %v", err)
	}

	if _, err := db.Exec(insert, "rec-2"); err == nil {
		t.Error("Expected unique constraint violation for duplicate pair/date, but insert succeeded")
	}
}

func TestSchema_IsSentDefaultsToFalse(t *testing.T) {
	db := openTestDB(t, "sqlite3")
	defer db.Close()

	if err := MigrateUp(db, SQLite3); err != nil {
		t.Fatalf("MigrateUp() failed: %v", err)
	}

	_, err := db.Exec(`INSERT INTO oswl_stats
		(id, group_key, resource_kind, created_date, updated_time, resource_checksum, resource_data)
		VALUES ('rec-1', 'cluster-1', 'vm', '2024-01-15', '10:30:00', 'abc', '{}')`)
	if err != nil {
		t.Fatalf("Failed to insert record: %v", err)
	}

	var sent bool
	var version int64
	if err := db.QueryRow("SELECT is_sent, version FROM oswl_stats WHERE id = 'rec-1'").Scan(&sent, &version); err != nil {
		t.Fatalf("Failed to read is_sent: %v", err)
	}
	if sent {
		t.Error("is_sent = true, want false by default")
	}
	if version != 1 {
		t.Errorf("version = %d, want 1 by default", version)
	}
}

// openTestDB opens an in-memory SQLite database for testing.
func openTestDB(t *testing.T, driver string) *sql.DB {
	t.Helper()

	db, err := sql.Open(driver, ":memory:")
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	db.SetMaxOpenConns(1)

	return db
}
