package db

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"
)

// Config selects the ledger backend.
type Config struct {
	Driver       string // "sqlite3", "postgres" or "pgx"
	Path         string // sqlite3 file
	DSN          string // postgres / pgx connection string
	StartingCash decimal.Decimal
}

type dialect struct {
	name      string
	schema    []string
	lockCash  string
	readTx    *sql.TxOptions // options for ReadTx; nil means a plain transaction
	rebind    func(string) string
	maxConns  int
	idleConns int
}

// Store is the durable ledger: the account row, the position set, the
// equity history and the trade log. Its embedded Ledger runs every call in
// its own implicit transaction; use WithTx for a read-modify-write.
type Store struct {
	*Ledger
	db     *sql.DB
	logger *slog.Logger
}

// Open connects to the configured database, creates the schema if needed
// and seeds the account row with the starting cash on first run. An
// existing account row is never reset.
func Open(ctx context.Context, cfg Config, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var (
		db  *sql.DB
		d   dialect
		err error
	)
	switch cfg.Driver {
	case "", "sqlite3", "sqlite":
		d = sqliteDialect
		db, err = openSQLite(cfg.Path)
	case "postgres":
		d = postgresDialect
		db, err = openPostgres(cfg.DSN)
	case "pgx":
		d = postgresDialect
		db, err = openPgx(cfg.DSN)
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, err
	}
	configurePool(db, d)

	// Test connection
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("error connecting to database: %w", err)
	}

	s := &Store{
		Ledger: &Ledger{q: db, d: d, now: time.Now},
		db:     db,
		logger: logger,
	}
	if err := s.migrate(ctx, cfg.StartingCash); err != nil {
		db.Close()
		return nil, err
	}

	logger.Info("ledger opened", slog.String("driver", d.name))
	return s, nil
}

func (s *Store) migrate(ctx context.Context, startingCash decimal.Decimal) error {
	for _, stmt := range s.d.schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return storageErr("migrate", err)
		}
	}

	res, err := s.db.ExecContext(ctx, s.d.rebind(`
		INSERT INTO account (id, cash, starting_balance, updated_at)
		VALUES (1, ?, ?, ?)
		ON CONFLICT (id) DO NOTHING`),
		startingCash, startingCash, s.now().UTC())
	if err != nil {
		return storageErr("init account", err)
	}
	if n, _ := res.RowsAffected(); n == 1 {
		s.logger.Info("account initialized", slog.String("cash", startingCash.StringFixed(2)))
	}
	return nil
}

// WithTx runs fn inside one database transaction. The transaction commits
// only when fn returns nil; any error rolls back every write made through
// the Ledger passed to fn.
func (s *Store) WithTx(ctx context.Context, fn func(*Ledger) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return storageErr("begin", err)
	}
	defer tx.Rollback() // Rollback if we don't commit

	if err := fn(&Ledger{q: tx, d: s.d, now: s.now, inTx: true}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return storageErr("commit", err)
	}
	return nil
}

// ReadTx runs fn in a read-only transaction that sees one consistent
// snapshot of the ledger. Reads through it take no row locks, so it never
// holds up a trade on Postgres. fn must not write.
func (s *Store) ReadTx(ctx context.Context, fn func(*Ledger) error) error {
	tx, err := s.db.BeginTx(ctx, s.d.readTx)
	if err != nil {
		return storageErr("begin", err)
	}
	defer tx.Rollback()

	if err := fn(&Ledger{q: tx, d: s.d, now: s.now}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return storageErr("commit", err)
	}
	return nil
}

// SetClock replaces the time source used for row timestamps.
func (s *Store) SetClock(now func() time.Time) {
	s.now = now
}

// Ping checks the database connection
func (s *Store) Ping(ctx context.Context) error {
	return storageErr("ping", s.db.PingContext(ctx))
}

// Close closes database connection
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.logger.Info("database connection closed")
	return err
}
