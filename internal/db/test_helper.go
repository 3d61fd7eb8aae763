package db

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
)

// SetupTestDB opens a fresh SQLite ledger in a temp dir, seeded with balance.
// The store is closed when the test ends.
func SetupTestDB(t testing.TB, balance string) *Store {
	t.Helper()

	path := filepath.Join(t.TempDir(), "ledger.db")
	s, err := Open(context.Background(), Config{
		Driver:       "sqlite3",
		Path:         path,
		StartingCash: decimal.RequireFromString(balance),
	}, quietLogger())
	if err != nil {
		t.Fatalf("Failed to open test ledger: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// SetupPostgresTestDB opens the Postgres ledger named by PAPER_TEST_PG_DSN,
// skipping the test when it is unset. Tables are emptied first.
func SetupPostgresTestDB(t testing.TB, driver, balance string) *Store {
	t.Helper()

	dsn := os.Getenv("PAPER_TEST_PG_DSN")
	if dsn == "" {
		t.Skip("PAPER_TEST_PG_DSN not set")
	}

	ctx := context.Background()
	cfg := Config{Driver: driver, DSN: dsn, StartingCash: decimal.RequireFromString(balance)}
	s, err := Open(ctx, cfg, quietLogger())
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}
	CleanupTestDB(t, s)
	s.Close()

	// Reopen so the account row is seeded with balance again
	s, err = Open(ctx, cfg, quietLogger())
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// CleanupTestDB deletes all ledger data
func CleanupTestDB(t testing.TB, s *Store) {
	t.Helper()
	tables := []string{"trades", "equity_history", "positions", "account"}
	for _, table := range tables {
		if _, err := s.db.Exec(fmt.Sprintf("DELETE FROM %s", table)); err != nil {
			t.Logf("Warning: Failed to cleanup table %s: %v", table, err)
		}
	}
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
