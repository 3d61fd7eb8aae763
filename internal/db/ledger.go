package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/atharvakonge/paper-brokerage/internal/models"
	"github.com/shopspring/decimal"
)

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Ledger holds the ledger reads and writes, bound either to the database
// (each call commits on its own) or to one transaction (see Store.WithTx).
type Ledger struct {
	q    querier
	d    dialect
	now  func() time.Time
	inTx bool
}

// GetCash returns the current cash balance. Inside a transaction on
// Postgres the account row stays locked until commit.
func (l *Ledger) GetCash(ctx context.Context) (decimal.Decimal, error) {
	acct, err := l.account(ctx, l.inTx)
	if err != nil {
		return decimal.Zero, err
	}
	return acct.Cash, nil
}

// GetAccount returns the cash balance together with the starting balance
func (l *Ledger) GetAccount(ctx context.Context) (models.Account, error) {
	return l.account(ctx, false)
}

func (l *Ledger) account(ctx context.Context, lock bool) (models.Account, error) {
	query := "SELECT cash, starting_balance FROM account WHERE id = 1"
	if lock {
		query += l.d.lockCash
	}

	var acct models.Account
	err := l.q.QueryRowContext(ctx, query).Scan(&acct.Cash, &acct.StartingBalance)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Account{}, storageErr("get cash", errors.New("account row missing"))
	}
	if err != nil {
		return models.Account{}, storageErr("get cash", err)
	}
	return acct, nil
}

// SetCash overwrites the balance. Callers validate non-negativity.
func (l *Ledger) SetCash(ctx context.Context, amount decimal.Decimal) error {
	res, err := l.q.ExecContext(ctx, l.d.rebind(
		"UPDATE account SET cash = ?, updated_at = ? WHERE id = 1"),
		amount, l.now().UTC())
	if err != nil {
		return storageErr("set cash", err)
	}
	if n, err := res.RowsAffected(); err == nil && n != 1 {
		return storageErr("set cash", errors.New("account row missing"))
	}
	return nil
}

// GetPosition returns the position for symbol; ok is false when none is held.
func (l *Ledger) GetPosition(ctx context.Context, symbol string) (pos models.Position, ok bool, err error) {
	err = l.q.QueryRowContext(ctx, l.d.rebind(
		"SELECT symbol, shares, average_cost, cost_basis, updated_at FROM positions WHERE symbol = ?"),
		symbol,
	).Scan(&pos.Symbol, &pos.Shares, &pos.AverageCost, &pos.Cost, &pos.UpdatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return models.Position{}, false, nil
	}
	if err != nil {
		return models.Position{}, false, storageErr("get position", err)
	}
	return pos, true, nil
}

// UpsertPosition inserts the position or overwrites shares, average cost
// and total cost basis.
func (l *Ledger) UpsertPosition(ctx context.Context, symbol string, shares, averageCost, costBasis decimal.Decimal) error {
	_, err := l.q.ExecContext(ctx, l.d.rebind(`
		INSERT INTO positions (symbol, shares, average_cost, cost_basis, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (symbol)
		DO UPDATE SET
			shares = excluded.shares,
			average_cost = excluded.average_cost,
			cost_basis = excluded.cost_basis,
			updated_at = excluded.updated_at`),
		symbol, shares, averageCost, costBasis, l.now().UTC())
	return storageErr("upsert position", err)
}

// DeletePosition removes the position row for symbol
func (l *Ledger) DeletePosition(ctx context.Context, symbol string) error {
	_, err := l.q.ExecContext(ctx, l.d.rebind("DELETE FROM positions WHERE symbol = ?"), symbol)
	return storageErr("delete position", err)
}

// ListPositions returns every open position, ordered by symbol
func (l *Ledger) ListPositions(ctx context.Context) ([]models.Position, error) {
	rows, err := l.q.QueryContext(ctx, `
		SELECT symbol, shares, average_cost, cost_basis, updated_at
		FROM positions
		ORDER BY symbol`)
	if err != nil {
		return nil, storageErr("list positions", err)
	}
	defer rows.Close()

	positions := make([]models.Position, 0)
	for rows.Next() {
		var p models.Position
		if err := rows.Scan(&p.Symbol, &p.Shares, &p.AverageCost, &p.Cost, &p.UpdatedAt); err != nil {
			return nil, storageErr("list positions", err)
		}
		positions = append(positions, p)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("list positions", err)
	}
	return positions, nil
}

// AppendSnapshot records the equity for bucket. It is a no-op when the
// bucket already has a row; inserted reports whether a row was written.
func (l *Ledger) AppendSnapshot(ctx context.Context, bucket string, totalEquity decimal.Decimal) (inserted bool, err error) {
	res, err := l.q.ExecContext(ctx, l.d.rebind(`
		INSERT INTO equity_history (bucket, total_equity, created_at)
		VALUES (?, ?, ?)
		ON CONFLICT (bucket) DO NOTHING`),
		bucket, totalEquity, l.now().UTC())
	if err != nil {
		return false, storageErr("append snapshot", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, storageErr("append snapshot", err)
	}
	return n == 1, nil
}

// ListSnapshots returns the equity history, oldest bucket first
func (l *Ledger) ListSnapshots(ctx context.Context) ([]models.EquitySnapshot, error) {
	rows, err := l.q.QueryContext(ctx, `
		SELECT bucket, total_equity, created_at
		FROM equity_history
		ORDER BY bucket ASC`)
	if err != nil {
		return nil, storageErr("list snapshots", err)
	}
	defer rows.Close()

	snaps := make([]models.EquitySnapshot, 0)
	for rows.Next() {
		var s models.EquitySnapshot
		if err := rows.Scan(&s.Bucket, &s.TotalEquity, &s.CreatedAt); err != nil {
			return nil, storageErr("list snapshots", err)
		}
		snaps = append(snaps, s)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("list snapshots", err)
	}
	return snaps, nil
}

// AppendTrade records a committed trade in the trade log
func (l *Ledger) AppendTrade(ctx context.Context, t models.Trade) error {
	if t.ID == "" {
		return storageErr("append trade", fmt.Errorf("trade for %s has no id", t.Symbol))
	}
	_, err := l.q.ExecContext(ctx, l.d.rebind(`
		INSERT INTO trades (id, symbol, side, quantity, price, total, realized_pl, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`),
		t.ID, t.Symbol, string(t.Side), t.Quantity, t.Price, t.Total, t.RealizedPL, t.CreatedAt.UTC())
	return storageErr("append trade", err)
}

// ListTrades returns the most recent trades first. limit <= 0 returns all.
func (l *Ledger) ListTrades(ctx context.Context, limit int) ([]models.Trade, error) {
	query := `
		SELECT id, symbol, side, quantity, price, total, realized_pl, created_at
		FROM trades
		ORDER BY id DESC`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := l.q.QueryContext(ctx, l.d.rebind(query), args...)
	if err != nil {
		return nil, storageErr("list trades", err)
	}
	defer rows.Close()

	trades := make([]models.Trade, 0)
	for rows.Next() {
		var (
			t    models.Trade
			side string
		)
		if err := rows.Scan(&t.ID, &t.Symbol, &side, &t.Quantity, &t.Price, &t.Total, &t.RealizedPL, &t.CreatedAt); err != nil {
			return nil, storageErr("list trades", err)
		}
		t.Side = models.Side(side)
		trades = append(trades, t)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("list trades", err)
	}
	return trades, nil
}

// RealizedPL sums realized profit and loss over every sell in the log.
// The sum is done here rather than in SQL to keep it exact on SQLite.
func (l *Ledger) RealizedPL(ctx context.Context) (decimal.Decimal, error) {
	rows, err := l.q.QueryContext(ctx, "SELECT realized_pl FROM trades WHERE side = 'SELL'")
	if err != nil {
		return decimal.Zero, storageErr("realized pl", err)
	}
	defer rows.Close()

	total := decimal.Zero
	for rows.Next() {
		var pl decimal.Decimal
		if err := rows.Scan(&pl); err != nil {
			return decimal.Zero, storageErr("realized pl", err)
		}
		total = total.Add(pl)
	}
	if err := rows.Err(); err != nil {
		return decimal.Zero, storageErr("realized pl", err)
	}
	return total, nil
}
