package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"testing"
)

// openTestDB creates a named shared in-memory SQLite database without running
// migrations. Writer and reader connections share the same in-memory database
// via cache=shared. A unique name derived from t.Name() isolates parallel tests.
func openTestDB(t *testing.T) *DB {
	t.Helper()

	// Percent-encode the test name so it's a safe SQLite URI filename component
	// and cannot be misinterpreted as query parameters in the "file:%s?..." DSN.
	safeName := url.PathEscape(t.Name())
	// WAL mode is not applicable to in-memory databases; omit journal_mode pragma.
	dsn := fmt.Sprintf(
		"file:%s?mode=memory&cache=shared&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)&_pragma=foreign_keys(ON)",
		safeName,
	)

	writer, err := sql.Open("sqlite", dsn)
	if err != nil {
		t.Fatalf("create test db writer: %v", err)
	}
	writer.SetMaxOpenConns(1)
	if err := writer.PingContext(context.Background()); err != nil {
		_ = writer.Close()
		t.Fatalf("ping test db writer: %v", err)
	}

	reader, err := sql.Open("sqlite", dsn)
	if err != nil {
		_ = writer.Close()
		t.Fatalf("create test db reader: %v", err)
	}
	reader.SetMaxOpenConns(4)
	if err := reader.PingContext(context.Background()); err != nil {
		_ = reader.Close()
		_ = writer.Close()
		t.Fatalf("ping test db reader: %v", err)
	}

	db := &DB{Writer: writer, Reader: reader, path: dsn}
	t.Cleanup(func() { _ = db.Close() })

	return db
}

// setupTestDB returns an in-memory database with all migrations applied.
func setupTestDB(t *testing.T) *DB {
	t.Helper()

	db := openTestDB(t)
	if _, err := RunMigrations(db.Writer); err != nil {
		t.Fatalf("run migrations: %v", err)
	}
	return db
}

// legacySchema is the endpoints table as created by installations that kept
// passwords in the OS keychain with a base64 fallback column.
const legacySchema = `CREATE TABLE endpoints (
    id                   INTEGER PRIMARY KEY AUTOINCREMENT,
    name                 TEXT     NOT NULL,
    url                  TEXT     NOT NULL,
    insecure             INTEGER  NOT NULL DEFAULT 0,
    username             TEXT,
    password_keychain_id TEXT,
    password_fallback    TEXT,
    created_at           DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at           DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
)`

// setupLegacyTestDB creates the legacy table first, then runs migrations the
// way a startup against an old database file does.
func setupLegacyTestDB(t *testing.T) *DB {
	t.Helper()

	db := openTestDB(t)
	if _, err := db.Writer.Exec(legacySchema); err != nil {
		t.Fatalf("create legacy schema: %v", err)
	}
	if _, err := RunMigrations(db.Writer); err != nil {
		t.Fatalf("run migrations: %v", err)
	}
	return db
}
