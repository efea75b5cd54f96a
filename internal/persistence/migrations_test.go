package persistence

import (
	"io/fs"
	"strings"
	"testing"
)

func TestEmbeddedMigrations(t *testing.T) {
	entries, err := fs.ReadDir(migrationFS, "migrations")
	if err != nil {
		t.Fatalf("read embedded migrations: %v", err)
	}
	if len(entries) < 2 {
		t.Fatalf("expected the orders and tickets migrations embedded, got %d files", len(entries))
	}

	// tickets references orders, so the orders migration must sort first.
	if entries[0].Name() != "001_create_orders.sql" {
		t.Fatalf("expected orders migration to apply first, got %s", entries[0].Name())
	}

	for _, entry := range entries {
		if !strings.HasSuffix(entry.Name(), ".sql") {
			t.Fatalf("unexpected non-SQL file embedded: %s", entry.Name())
		}
		content, err := fs.ReadFile(migrationFS, "migrations/"+entry.Name())
		if err != nil {
			t.Fatalf("read %s: %v", entry.Name(), err)
		}
		if !strings.Contains(string(content), "IF NOT EXISTS") {
			t.Fatalf("migration %s must be idempotent", entry.Name())
		}
	}
}
