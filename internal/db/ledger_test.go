package db

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/atharvakonge/paper-brokerage/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestGetCash_InitializedToStartingBalance(t *testing.T) {
	s := SetupTestDB(t, "10000.00")

	cash, err := s.GetCash(context.Background())
	require.NoError(t, err)
	assert.True(t, cash.Equal(d("10000")), "got %s", cash)

	acct, err := s.GetAccount(context.Background())
	require.NoError(t, err)
	assert.True(t, acct.StartingBalance.Equal(d("10000")))
}

func TestSetCash_Persists(t *testing.T) {
	s := SetupTestDB(t, "10000")
	ctx := context.Background()

	require.NoError(t, s.SetCash(ctx, d("9500.25")))

	cash, err := s.GetCash(ctx)
	require.NoError(t, err)
	assert.Equal(t, "9500.25", cash.String())
}

func TestOpen_NeverResetsExistingAccount(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "ledger.db")
	cfg := Config{Driver: "sqlite3", Path: path, StartingCash: d("10000")}

	s, err := Open(ctx, cfg, quietLogger())
	require.NoError(t, err)
	require.NoError(t, s.SetCash(ctx, d("123.45")))
	require.NoError(t, s.UpsertPosition(ctx, "AAPL", d("3"), d("150"), d("450")))
	require.NoError(t, s.Close())

	cfg.StartingCash = d("50000")
	s, err = Open(ctx, cfg, quietLogger())
	require.NoError(t, err)
	defer s.Close()

	acct, err := s.GetAccount(ctx)
	require.NoError(t, err)
	assert.Equal(t, "123.45", acct.Cash.String())
	assert.True(t, acct.StartingBalance.Equal(d("10000")))

	pos, ok, err := s.GetPosition(ctx, "AAPL")
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, pos.Shares.Equal(d("3")))
}

func TestPositions_UpsertGetDeleteList(t *testing.T) {
	s := SetupTestDB(t, "10000")
	ctx := context.Background()

	_, ok, err := s.GetPosition(ctx, "MSFT")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.UpsertPosition(ctx, "MSFT", d("10"), d("380"), d("3800")))
	require.NoError(t, s.UpsertPosition(ctx, "AAPL", d("5"), d("150"), d("750")))
	require.NoError(t, s.UpsertPosition(ctx, "MSFT", d("12"), d("381.5"), d("4578")))

	pos, ok, err := s.GetPosition(ctx, "MSFT")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "12", pos.Shares.String())
	assert.Equal(t, "381.5", pos.AverageCost.String())
	assert.Equal(t, "4578", pos.CostBasis().String())

	list, err := s.ListPositions(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "AAPL", list[0].Symbol)
	assert.Equal(t, "MSFT", list[1].Symbol)

	require.NoError(t, s.DeletePosition(ctx, "MSFT"))
	list, err = s.ListPositions(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "AAPL", list[0].Symbol)
}

func TestAppendSnapshot_OnePerBucket(t *testing.T) {
	s := SetupTestDB(t, "10000")
	ctx := context.Background()

	inserted, err := s.AppendSnapshot(ctx, "2026-10-16T14:00:00Z", d("10400"))
	require.NoError(t, err)
	assert.True(t, inserted)

	inserted, err = s.AppendSnapshot(ctx, "2026-10-16T14:00:00Z", d("99999"))
	require.NoError(t, err)
	assert.False(t, inserted)

	_, err = s.AppendSnapshot(ctx, "2026-10-16T13:00:00Z", d("10100"))
	require.NoError(t, err)

	snaps, err := s.ListSnapshots(ctx)
	require.NoError(t, err)
	require.Len(t, snaps, 2)
	assert.Equal(t, "2026-10-16T13:00:00Z", snaps[0].Bucket)
	assert.Equal(t, "2026-10-16T14:00:00Z", snaps[1].Bucket)
	assert.True(t, snaps[1].TotalEquity.Equal(d("10400")), "first write wins")
}

func TestTrades_AppendListRealized(t *testing.T) {
	s := SetupTestDB(t, "10000")
	ctx := context.Background()
	now := time.Date(2026, 10, 16, 14, 0, 0, 0, time.UTC)

	trades := []models.Trade{
		{ID: "01J0000000000000000000000A", Symbol: "TEST", Side: models.SideBuy, Quantity: d("10"), Price: d("50"), Total: d("500"), RealizedPL: decimal.Zero, CreatedAt: now},
		{ID: "01J0000000000000000000000B", Symbol: "TEST", Side: models.SideSell, Quantity: d("5"), Price: d("80"), Total: d("400"), RealizedPL: d("150"), CreatedAt: now},
		{ID: "01J0000000000000000000000C", Symbol: "TEST", Side: models.SideSell, Quantity: d("5"), Price: d("40"), Total: d("200"), RealizedPL: d("-50"), CreatedAt: now},
	}
	for _, tr := range trades {
		require.NoError(t, s.AppendTrade(ctx, tr))
	}

	got, err := s.ListTrades(ctx, 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "01J0000000000000000000000C", got[0].ID)
	assert.Equal(t, models.SideSell, got[0].Side)
	assert.True(t, got[0].RealizedPL.Equal(d("-50")))

	all, err := s.ListTrades(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	realized, err := s.RealizedPL(ctx)
	require.NoError(t, err)
	assert.True(t, realized.Equal(d("100")), "got %s", realized)

	assert.Error(t, s.AppendTrade(ctx, models.Trade{Symbol: "NOID"}))
}

func TestWithTx_RollsBackOnError(t *testing.T) {
	s := SetupTestDB(t, "10000")
	ctx := context.Background()
	boom := errors.New("boom")

	err := s.WithTx(ctx, func(l *Ledger) error {
		if err := l.SetCash(ctx, d("1")); err != nil {
			return err
		}
		if err := l.UpsertPosition(ctx, "TEST", d("1"), d("9999"), d("9999")); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	cash, err := s.GetCash(ctx)
	require.NoError(t, err)
	assert.True(t, cash.Equal(d("10000")))

	_, ok, err := s.GetPosition(ctx, "TEST")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestWithTx_SerializesReadModifyWrite(t *testing.T) {
	s := SetupTestDB(t, "10000")
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.WithTx(ctx, func(l *Ledger) error {
				cash, err := l.GetCash(ctx)
				if err != nil {
					return err
				}
				return l.SetCash(ctx, cash.Sub(d("1")))
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	cash, err := s.GetCash(ctx)
	require.NoError(t, err)
	assert.True(t, cash.Equal(d("9980")), "lost update: %s", cash)
}

func TestSQLiteDSN(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/tmp/ledger.db", "file:/tmp/ledger.db?_busy_timeout=5000&_journal_mode=WAL&_txlock=immediate"},
		{"file:/tmp/ledger.db", "file:/tmp/ledger.db?_busy_timeout=5000&_journal_mode=WAL&_txlock=immediate"},
		{"file:/tmp/ledger.db?cache=shared", "file:/tmp/ledger.db?_busy_timeout=5000&_journal_mode=WAL&_txlock=immediate&cache=shared"},
		{"file:/tmp/ledger.db?_timeout=100&_journal=DELETE", "file:/tmp/ledger.db?_journal=DELETE&_timeout=100&_txlock=immediate"},
		{"file:/tmp/ledger.db?_txlock=exclusive", "file:/tmp/ledger.db?_busy_timeout=5000&_journal_mode=WAL&_txlock=exclusive"},
	}
	for _, tt := range tests {
		got, err := sqliteDSN(tt.path)
		require.NoError(t, err, tt.path)
		assert.Equal(t, tt.want, got, tt.path)
	}

	_, err := sqliteDSN("file:/tmp/ledger.db?%zz")
	assert.Error(t, err)
}

func TestWithTx_SerializesWithFileURIPath(t *testing.T) {
	ctx := context.Background()
	path := "file:" + filepath.Join(t.TempDir(), "ledger.db") + "?cache=private"
	s, err := Open(ctx, Config{Driver: "sqlite3", Path: path, StartingCash: d("10000")}, quietLogger())
	require.NoError(t, err)
	defer s.Close()

	symbols := []string{"AAPL", "MSFT", "GOOGL", "TSLA", "AMZN"}
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(sym string) {
			defer wg.Done()
			err := s.WithTx(ctx, func(l *Ledger) error {
				cash, err := l.GetCash(ctx)
				if err != nil {
					return err
				}
				if err := l.SetCash(ctx, cash.Sub(d("10"))); err != nil {
					return err
				}
				pos, _, err := l.GetPosition(ctx, sym)
				if err != nil {
					return err
				}
				shares := pos.Shares.Add(d("1"))
				return l.UpsertPosition(ctx, sym, shares, d("10"), shares.Mul(d("10")))
			})
			assert.NoError(t, err, "concurrent trade must wait, not fail")
		}(symbols[i%len(symbols)])
	}
	wg.Wait()

	cash, err := s.GetCash(ctx)
	require.NoError(t, err)
	assert.True(t, cash.Equal(d("9500")), "cash %s", cash)

	positions, err := s.ListPositions(ctx)
	require.NoError(t, err)
	require.Len(t, positions, 5)
	for _, p := range positions {
		assert.True(t, p.Shares.Equal(d("10")), "%s shares %s", p.Symbol, p.Shares)
	}
}

func TestStorageFault_NotMaskedAsDefault(t *testing.T) {
	s := SetupTestDB(t, "10000")
	require.NoError(t, s.Close())

	cash, err := s.GetCash(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrStorageFault))
	assert.True(t, cash.IsZero())

	var se *StorageError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, "get cash", se.Op)
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), Config{Driver: "oracle"}, quietLogger())
	assert.ErrorContains(t, err, "unknown database driver")
}

func TestRebindDollar(t *testing.T) {
	assert.Equal(t, "SELECT $1, $2 FROM x WHERE y = $3", rebindDollar("SELECT ?, ? FROM x WHERE y = ?"))
	assert.Equal(t, "SELECT 1", rebindDollar("SELECT 1"))
}

func TestPostgresLedger(t *testing.T) {
	for _, driver := range []string{"postgres", "pgx"} {
		t.Run(driver, func(t *testing.T) {
			s := SetupPostgresTestDB(t, driver, "10000")
			ctx := context.Background()

			require.NoError(t, s.UpsertPosition(ctx, "AAPL", d("10"), d("103.3333333333333333"), d("1033.3333333333333333")))
			pos, ok, err := s.GetPosition(ctx, "AAPL")
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, "103.3333333333333333", pos.AverageCost.String())

			inserted, err := s.AppendSnapshot(ctx, "2026-10-16T14:00:00Z", d("1"))
			require.NoError(t, err)
			assert.True(t, inserted)
			inserted, err = s.AppendSnapshot(ctx, "2026-10-16T14:00:00Z", d("2"))
			require.NoError(t, err)
			assert.False(t, inserted)
		})
	}
}

func TestReadTx_ReadsAccountAndPositions(t *testing.T) {
	s := SetupTestDB(t, "10000")
	ctx := context.Background()
	require.NoError(t, s.SetCash(ctx, d("9000")))
	require.NoError(t, s.UpsertPosition(ctx, "AAPL", d("10"), d("100"), d("1000")))

	var (
		acct      models.Account
		positions []models.Position
	)
	err := s.ReadTx(ctx, func(l *Ledger) error {
		var err error
		if acct, err = l.GetAccount(ctx); err != nil {
			return err
		}
		positions, err = l.ListPositions(ctx)
		return err
	})
	require.NoError(t, err)
	assert.True(t, acct.Cash.Equal(d("9000")))
	assert.True(t, acct.StartingBalance.Equal(d("10000")))
	require.Len(t, positions, 1)

	boom := errors.New("boom")
	assert.ErrorIs(t, s.ReadTx(ctx, func(*Ledger) error { return boom }), boom)
}

func TestPostgresReadTx_DoesNotWaitOnCashLock(t *testing.T) {
	for _, driver := range []string{"postgres", "pgx"} {
		t.Run(driver, func(t *testing.T) {
			s := SetupPostgresTestDB(t, driver, "10000")
			ctx := context.Background()

			locked := make(chan struct{})
			release := make(chan struct{})
			done := make(chan error, 1)
			go func() {
				done <- s.WithTx(ctx, func(l *Ledger) error {
					if _, err := l.GetCash(ctx); err != nil {
						return err
					}
					close(locked)
					<-release
					return nil
				})
			}()
			select {
			case <-locked:
			case err := <-done:
				t.Fatalf("lock holder exited early: %v", err)
			}

			readCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
			defer cancel()
			err := s.ReadTx(readCtx, func(l *Ledger) error {
				_, err := l.GetAccount(readCtx)
				return err
			})
			close(release)
			assert.NoError(t, err, "a read must not queue behind a trade's cash lock")
			require.NoError(t, <-done)
		})
	}
}
