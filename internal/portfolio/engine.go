// Package portfolio is the trading and valuation engine. It applies buys
// and sells to the ledger atomically and values the portfolio against a
// price oracle.
package portfolio

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/atharvakonge/paper-brokerage/internal/db"
	"github.com/atharvakonge/paper-brokerage/internal/market"
	"github.com/atharvakonge/paper-brokerage/internal/models"
	"github.com/shopspring/decimal"
)

// Store is the ledger the engine runs against
type Store interface {
	WithTx(ctx context.Context, fn func(*db.Ledger) error) error
	ReadTx(ctx context.Context, fn func(*db.Ledger) error) error
	GetAccount(ctx context.Context) (models.Account, error)
	ListPositions(ctx context.Context) ([]models.Position, error)
	AppendSnapshot(ctx context.Context, bucket string, totalEquity decimal.Decimal) (bool, error)
	ListSnapshots(ctx context.Context) ([]models.EquitySnapshot, error)
	ListTrades(ctx context.Context, limit int) ([]models.Trade, error)
	RealizedPL(ctx context.Context) (decimal.Decimal, error)
}

// Execution is the outcome of a committed trade
type Execution struct {
	Trade    models.Trade     `json:"trade"`
	Cash     decimal.Decimal  `json:"cash"`
	Position *models.Position `json:"position,omitempty"` // nil once fully sold
}

// Engine owns every mutation of the ledger
type Engine struct {
	store   Store
	oracle  market.Oracle
	locks   *models.SymbolLocks
	bucket  time.Duration
	lookups int
	now     func() time.Time
	logger  *slog.Logger
}

// Option configures an Engine
type Option func(*Engine)

// WithClock sets the clock used for trade times and snapshot buckets
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithBucket sets the equity history resolution
func WithBucket(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.bucket = d
		}
	}
}

// WithLookups caps concurrent oracle lookups during a valuation
func WithLookups(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.lookups = n
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// New creates the engine. The oracle may be nil when only ApplyBuy and
// ApplySell with explicit prices are used.
func New(store Store, oracle market.Oracle, opts ...Option) *Engine {
	e := &Engine{
		store:   store,
		oracle:  oracle,
		locks:   models.NewSymbolLocks(),
		bucket:  time.Hour,
		lookups: 8,
		now:     time.Now,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Bucket returns the equity history bucket t falls in
func Bucket(t time.Time, resolution time.Duration) string {
	return t.UTC().Truncate(resolution).Format(time.RFC3339)
}

// Cash returns the current cash balance
func (e *Engine) Cash(ctx context.Context) (decimal.Decimal, error) {
	acct, err := e.store.GetAccount(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	return acct.Cash, nil
}

// Account returns cash and starting balance
func (e *Engine) Account(ctx context.Context) (models.Account, error) {
	return e.store.GetAccount(ctx)
}

// Positions returns every open position ordered by symbol
func (e *Engine) Positions(ctx context.Context) ([]models.Position, error) {
	return e.store.ListPositions(ctx)
}

// Trades returns the trade log, newest first
func (e *Engine) Trades(ctx context.Context, limit int) ([]models.Trade, error) {
	return e.store.ListTrades(ctx, limit)
}

// EquityHistory returns every equity snapshot, oldest bucket first
func (e *Engine) EquityHistory(ctx context.Context) ([]models.EquitySnapshot, error) {
	return e.store.ListSnapshots(ctx)
}

// Oracle returns the price oracle the engine trades against
func (e *Engine) Oracle() market.Oracle {
	return e.oracle
}

func (e *Engine) validate(symbol string, quantity, price decimal.Decimal) (string, error) {
	sym, ok := models.NormalizeSymbol(symbol)
	if !ok {
		return "", reject(KindInvalidSymbol, symbol, "%q is not a ticker", symbol)
	}
	if !quantity.IsPositive() {
		return "", reject(KindInvalidQuantity, sym, "got %s", quantity)
	}
	if !price.IsPositive() {
		return "", reject(KindInvalidPrice, sym, "got %s", price)
	}
	return sym, nil
}

// ApplyBuy buys quantity shares of symbol at price. Cash, the position and
// the trade log change together or not at all.
func (e *Engine) ApplyBuy(ctx context.Context, symbol string, quantity, price decimal.Decimal) (Execution, error) {
	sym, err := e.validate(symbol, quantity, price)
	if err != nil {
		return Execution{}, err
	}

	unlock := e.locks.Lock(sym)
	defer unlock()

	var exec Execution
	err = e.store.WithTx(ctx, func(l *db.Ledger) error {
		cash, err := l.GetCash(ctx)
		if err != nil {
			return err
		}

		cost := quantity.Mul(price)
		if cost.GreaterThan(cash) {
			return reject(KindInsufficientFunds, sym, "need %s, have %s", cost.StringFixed(2), cash.StringFixed(2))
		}

		pos, held, err := l.GetPosition(ctx, sym)
		if err != nil {
			return err
		}
		shares, basis, avg := quantity, cost, price
		if held {
			// The total cost is exact, so the average does not depend on
			// the order of the buys
			shares = pos.Shares.Add(quantity)
			basis = pos.CostBasis().Add(cost)
			avg = basis.Div(shares)
		}

		now := e.now()
		newCash := cash.Sub(cost)
		if err := l.SetCash(ctx, newCash); err != nil {
			return err
		}
		if err := l.UpsertPosition(ctx, sym, shares, avg, basis); err != nil {
			return err
		}

		trade := models.Trade{
			ID:         newTradeID(now),
			Symbol:     sym,
			Side:       models.SideBuy,
			Quantity:   quantity,
			Price:      price,
			Total:      cost,
			RealizedPL: decimal.Zero,
			CreatedAt:  now.UTC(),
		}
		if err := l.AppendTrade(ctx, trade); err != nil {
			return err
		}

		exec = Execution{
			Trade:    trade,
			Cash:     newCash,
			Position: &models.Position{Symbol: sym, Shares: shares, AverageCost: avg, Cost: basis, UpdatedAt: now.UTC()},
		}
		return nil
	})
	if err != nil {
		e.logRejected(models.SideBuy, sym, quantity, price, err)
		return Execution{}, err
	}

	e.logger.Info("buy executed",
		slog.String("trade_id", exec.Trade.ID),
		slog.String("symbol", sym),
		slog.String("quantity", quantity.String()),
		slog.String("price", price.String()),
		slog.String("cash", exec.Cash.String()),
	)
	return exec, nil
}

// ApplySell sells quantity shares of symbol at price. Selling the whole
// holding removes the position.
func (e *Engine) ApplySell(ctx context.Context, symbol string, quantity, price decimal.Decimal) (Execution, error) {
	sym, err := e.validate(symbol, quantity, price)
	if err != nil {
		return Execution{}, err
	}

	unlock := e.locks.Lock(sym)
	defer unlock()

	var exec Execution
	err = e.store.WithTx(ctx, func(l *db.Ledger) error {
		cash, err := l.GetCash(ctx)
		if err != nil {
			return err
		}

		pos, held, err := l.GetPosition(ctx, sym)
		if err != nil {
			return err
		}
		if !held {
			return reject(KindNoPosition, sym, "")
		}
		if quantity.GreaterThan(pos.Shares) {
			return reject(KindInsufficientShares, sym, "want %s, hold %s", quantity, pos.Shares)
		}

		now := e.now()
		proceeds := quantity.Mul(price)
		remaining := pos.Shares.Sub(quantity)

		var after *models.Position
		if remaining.IsPositive() {
			// The remainder keeps its average cost
			basis := remaining.Mul(pos.AverageCost)
			if err := l.UpsertPosition(ctx, sym, remaining, pos.AverageCost, basis); err != nil {
				return err
			}
			after = &models.Position{Symbol: sym, Shares: remaining, AverageCost: pos.AverageCost, Cost: basis, UpdatedAt: now.UTC()}
		} else if err := l.DeletePosition(ctx, sym); err != nil {
			return err
		}

		newCash := cash.Add(proceeds)
		if err := l.SetCash(ctx, newCash); err != nil {
			return err
		}

		trade := models.Trade{
			ID:         newTradeID(now),
			Symbol:     sym,
			Side:       models.SideSell,
			Quantity:   quantity,
			Price:      price,
			Total:      proceeds,
			RealizedPL: price.Sub(pos.AverageCost).Mul(quantity),
			CreatedAt:  now.UTC(),
		}
		if err := l.AppendTrade(ctx, trade); err != nil {
			return err
		}

		exec = Execution{Trade: trade, Cash: newCash, Position: after}
		return nil
	})
	if err != nil {
		e.logRejected(models.SideSell, sym, quantity, price, err)
		return Execution{}, err
	}

	e.logger.Info("sell executed",
		slog.String("trade_id", exec.Trade.ID),
		slog.String("symbol", sym),
		slog.String("quantity", quantity.String()),
		slog.String("price", price.String()),
		slog.String("realized_pl", exec.Trade.RealizedPL.String()),
		slog.String("cash", exec.Cash.String()),
	)
	return exec, nil
}

// Buy buys at the oracle's current price
func (e *Engine) Buy(ctx context.Context, symbol string, quantity decimal.Decimal) (Execution, error) {
	sym, price, err := e.marketPrice(ctx, symbol, quantity)
	if err != nil {
		return Execution{}, err
	}
	return e.ApplyBuy(ctx, sym, quantity, price)
}

// Sell sells at the oracle's current price
func (e *Engine) Sell(ctx context.Context, symbol string, quantity decimal.Decimal) (Execution, error) {
	sym, price, err := e.marketPrice(ctx, symbol, quantity)
	if err != nil {
		return Execution{}, err
	}
	return e.ApplySell(ctx, sym, quantity, price)
}

// Execute routes an intent to ApplyBuy or ApplySell. A zero price means
// the oracle's current price.
func (e *Engine) Execute(ctx context.Context, in models.TradeIntent) (Execution, error) {
	switch in.Side {
	case models.SideBuy:
		if in.Price.IsZero() {
			return e.Buy(ctx, in.Symbol, in.Quantity)
		}
		return e.ApplyBuy(ctx, in.Symbol, in.Quantity, in.Price)
	case models.SideSell:
		if in.Price.IsZero() {
			return e.Sell(ctx, in.Symbol, in.Quantity)
		}
		return e.ApplySell(ctx, in.Symbol, in.Quantity, in.Price)
	default:
		return Execution{}, fmt.Errorf("unknown trade side %q", in.Side)
	}
}

func (e *Engine) marketPrice(ctx context.Context, symbol string, quantity decimal.Decimal) (string, decimal.Decimal, error) {
	sym, ok := models.NormalizeSymbol(symbol)
	if !ok {
		return "", decimal.Zero, reject(KindInvalidSymbol, symbol, "%q is not a ticker", symbol)
	}
	if !quantity.IsPositive() {
		return "", decimal.Zero, reject(KindInvalidQuantity, sym, "got %s", quantity)
	}
	if e.oracle == nil {
		return "", decimal.Zero, reject(KindInvalidPrice, sym, "no price oracle configured")
	}

	q, err := e.oracle.Quote(ctx, sym)
	if errors.Is(err, market.ErrUnavailable) {
		rej := reject(KindInvalidPrice, sym, "quote unavailable")
		rej.cause = err
		return "", decimal.Zero, rej
	}
	if err != nil {
		return "", decimal.Zero, err
	}
	if !q.Price.IsPositive() {
		return "", decimal.Zero, reject(KindInvalidPrice, sym, "oracle returned %s", q.Price)
	}
	return sym, q.Price, nil
}

func (e *Engine) logRejected(side models.Side, symbol string, quantity, price decimal.Decimal, err error) {
	attrs := []any{
		slog.String("side", string(side)),
		slog.String("symbol", symbol),
		slog.String("quantity", quantity.String()),
		slog.String("price", price.String()),
		slog.String("error", err.Error()),
	}
	if rej, ok := AsRejection(err); ok {
		e.logger.Warn("trade rejected", append(attrs, slog.String("kind", string(rej.Kind)))...)
		return
	}
	e.logger.Error("trade failed", attrs...)
}
