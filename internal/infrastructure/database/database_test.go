package database

import (
	"context"
	"path/filepath"
	"testing"
)

func testConfig() Config {
	return Config{
		WALMode:     true,
		BusyTimeout: 5,
	}
}

func TestOpenCreatesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "run.db")

	db, err := Open(path, testConfig())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer db.Close()

	if db.Path() != path {
		t.Errorf("Path() = %q, want %q", db.Path(), path)
	}
	if db.ReadOnly() {
		t.Error("ReadOnly() = true for writable handle")
	}

	if err := db.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}
}

func TestOpenReadOnly(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.db")

	db, err := Open(path, testConfig())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if _, err := db.Exec("CREATE TABLE messages (id INTEGER PRIMARY KEY)"); err != nil {
		t.Fatalf("creating table: %v", err)
	}
	if err := db.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	ro, err := OpenReadOnly(path)
	if err != nil {
		t.Fatalf("OpenReadOnly() error = %v", err)
	}
	defer ro.Close()

	if !ro.ReadOnly() {
		t.Error("ReadOnly() = false for read-only handle")
	}

	// Writes must be rejected on a read-only handle.
	if _, err := ro.Exec("INSERT INTO messages (id) VALUES (1)"); err == nil {
		t.Error("Exec() insert on read-only handle succeeded, want error")
	}
}

func TestOpenReadOnlyMissingFile(t *testing.T) {
	_, err := OpenReadOnly(filepath.Join(t.TempDir(), "missing.db"))
	if err == nil {
		t.Fatal("OpenReadOnly() expected error for missing file")
	}
}

func TestCloseNil(t *testing.T) {
	db := &DB{}
	if err := db.Close(); err != nil {
		t.Errorf("Close() on zero-value DB error = %v, want nil", err)
	}
}
