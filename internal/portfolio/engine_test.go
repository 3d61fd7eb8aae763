package portfolio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/atharvakonge/paper-brokerage/internal/db"
	"github.com/atharvakonge/paper-brokerage/internal/market"
	"github.com/atharvakonge/paper-brokerage/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	c.t = t
	c.mu.Unlock()
}

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func assertDec(t *testing.T, want string, got decimal.Decimal, msg ...string) {
	t.Helper()
	assert.Truef(t, d(want).Equal(got), "want %s, got %s %v", want, got, msg)
}

func intent(symbol, side, qty, price string) models.TradeIntent {
	return models.TradeIntent{Symbol: symbol, Side: models.Side(side), Quantity: d(qty), Price: d(price)}
}

type fixture struct {
	engine *Engine
	store  *db.Store
	oracle *market.Simulated
	clock  *fakeClock
}

func setup(t *testing.T, balance string, prices map[string]float64) fixture {
	t.Helper()
	store := db.SetupTestDB(t, balance)
	clock := &fakeClock{t: time.Date(2026, 10, 16, 14, 5, 0, 0, time.UTC)}
	store.SetClock(clock.Now)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	oracle := market.NewSimulated(prices, 1, logger)

	e := New(store, oracle, WithClock(clock.Now), WithBucket(time.Hour), WithLogger(logger))
	return fixture{engine: e, store: store, oracle: oracle, clock: clock}
}

func TestApplyBuyDebitsCashAndOpensPosition(t *testing.T) {
	f := setup(t, "10000", nil)
	ctx := context.Background()

	exec, err := f.engine.ApplyBuy(ctx, "aapl", d("10"), d("150"))
	require.NoError(t, err)
	assertDec(t, "8500", exec.Cash)
	assert.Equal(t, "AAPL", exec.Trade.Symbol)
	assert.NotEmpty(t, exec.Trade.ID)
	assertDec(t, "1500", exec.Trade.Total)

	positions, err := f.engine.Positions(ctx)
	require.NoError(t, err)
	require.Len(t, positions, 1)
	assertDec(t, "10", positions[0].Shares)
	assertDec(t, "150", positions[0].AverageCost)
}

func TestWeightedAverageIsOrderIndependent(t *testing.T) {
	for _, order := range [][2]string{{"100", "200"}, {"200", "100"}} {
		f := setup(t, "10000", nil)
		ctx := context.Background()

		_, err := f.engine.ApplyBuy(ctx, "MSFT", d("10"), d(order[0]))
		require.NoError(t, err)
		exec, err := f.engine.ApplyBuy(ctx, "MSFT", d("10"), d(order[1]))
		require.NoError(t, err)

		require.NotNil(t, exec.Position)
		assertDec(t, "20", exec.Position.Shares)
		assertDec(t, "150", exec.Position.AverageCost)
		assertDec(t, "7000", exec.Cash)
	}
}

func TestWeightedAverageRepeatingDecimalSameInAnyOrder(t *testing.T) {
	lots := [][2]string{{"1", "10"}, {"2", "11"}, {"3", "12"}}
	orders := [][]int{{0, 1, 2}, {0, 2, 1}, {1, 0, 2}, {1, 2, 0}, {2, 0, 1}, {2, 1, 0}}

	var first models.Position
	for i, order := range orders {
		f := setup(t, "10000", nil)
		ctx := context.Background()

		var exec Execution
		for _, idx := range order {
			var err error
			exec, err = f.engine.ApplyBuy(ctx, "TEST", d(lots[idx][0]), d(lots[idx][1]))
			require.NoError(t, err)
		}

		positions, err := f.engine.Positions(ctx)
		require.NoError(t, err)
		require.Len(t, positions, 1)
		pos := positions[0]

		assertDec(t, "6", pos.Shares)
		assertDec(t, "68", pos.CostBasis(), "cost basis is the exact sum of the lots")
		assertDec(t, exec.Position.AverageCost.String(), pos.AverageCost)
		if i == 0 {
			first = pos
			continue
		}
		assertDec(t, first.AverageCost.String(), pos.AverageCost, fmt.Sprintf("order %v", order))
	}
	assertDec(t, "68", first.AverageCost.Mul(d("6")).Round(8))
}

func TestSellThenBuyAveragesFromRemainder(t *testing.T) {
	f := setup(t, "10000", nil)
	ctx := context.Background()

	_, err := f.engine.ApplyBuy(ctx, "TEST", d("3"), d("10"))
	require.NoError(t, err)
	_, err = f.engine.ApplyBuy(ctx, "TEST", d("3"), d("11"))
	require.NoError(t, err)
	exec, err := f.engine.ApplySell(ctx, "TEST", d("2"), d("20"))
	require.NoError(t, err)
	assertDec(t, "10.5", exec.Position.AverageCost)
	assertDec(t, "42", exec.Position.CostBasis())

	exec, err = f.engine.ApplyBuy(ctx, "TEST", d("2"), d("12"))
	require.NoError(t, err)
	assertDec(t, "66", exec.Position.CostBasis())
	assertDec(t, "11", exec.Position.AverageCost)
}

func TestBuyRejections(t *testing.T) {
	f := setup(t, "100", nil)
	ctx := context.Background()

	tests := []struct {
		name     string
		symbol   string
		qty      string
		price    string
		sentinel error
		kind     Kind
	}{
		{"insufficient funds", "AAPL", "5", "100", ErrInsufficientFunds, KindInsufficientFunds},
		{"zero quantity", "AAPL", "0", "100", ErrInvalidQuantity, KindInvalidQuantity},
		{"negative quantity", "AAPL", "-1", "100", ErrInvalidQuantity, KindInvalidQuantity},
		{"zero price", "AAPL", "1", "0", ErrInvalidPrice, KindInvalidPrice},
		{"bad symbol", "not a ticker", "1", "10", ErrInvalidSymbol, KindInvalidSymbol},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.engine.ApplyBuy(ctx, tt.symbol, d(tt.qty), d(tt.price))
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.sentinel)

			rej, ok := AsRejection(err)
			require.True(t, ok)
			assert.Equal(t, tt.kind, rej.Kind)
		})
	}

	cash, err := f.engine.Cash(ctx)
	require.NoError(t, err)
	assertDec(t, "100", cash, "rejections leave cash unchanged")

	positions, err := f.engine.Positions(ctx)
	require.NoError(t, err)
	assert.Empty(t, positions)

	trades, err := f.engine.Trades(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, trades)
}

func TestBuyExactlyAllCash(t *testing.T) {
	f := setup(t, "100", nil)

	exec, err := f.engine.ApplyBuy(context.Background(), "AAPL", d("4"), d("25"))
	require.NoError(t, err)
	assert.True(t, exec.Cash.IsZero())
}

func TestSellRejections(t *testing.T) {
	f := setup(t, "10000", nil)
	ctx := context.Background()

	_, err := f.engine.ApplySell(ctx, "TSLA", d("1"), d("100"))
	assert.ErrorIs(t, err, ErrNoPosition)

	_, err = f.engine.ApplyBuy(ctx, "TSLA", d("5"), d("100"))
	require.NoError(t, err)

	_, err = f.engine.ApplySell(ctx, "TSLA", d("6"), d("100"))
	assert.ErrorIs(t, err, ErrInsufficientShares)

	cash, err := f.engine.Cash(ctx)
	require.NoError(t, err)
	assertDec(t, "9500", cash)

	positions, err := f.engine.Positions(ctx)
	require.NoError(t, err)
	require.Len(t, positions, 1)
	assertDec(t, "5", positions[0].Shares, "failed sell leaves the position")
}

func TestSellEverythingRemovesPosition(t *testing.T) {
	f := setup(t, "10000", nil)
	ctx := context.Background()

	_, err := f.engine.ApplyBuy(ctx, "GOOGL", d("3"), d("100"))
	require.NoError(t, err)
	exec, err := f.engine.ApplySell(ctx, "GOOGL", d("3"), d("110"))
	require.NoError(t, err)

	assert.Nil(t, exec.Position)
	assertDec(t, "10030", exec.Cash)
	assertDec(t, "30", exec.Trade.RealizedPL)

	positions, err := f.engine.Positions(ctx)
	require.NoError(t, err)
	assert.Empty(t, positions)
}

func TestSellKeepsAverageCost(t *testing.T) {
	f := setup(t, "10000", nil)
	ctx := context.Background()

	_, err := f.engine.ApplyBuy(ctx, "AMZN", d("10"), d("100"))
	require.NoError(t, err)
	exec, err := f.engine.ApplySell(ctx, "AMZN", d("4"), d("90"))
	require.NoError(t, err)

	require.NotNil(t, exec.Position)
	assertDec(t, "6", exec.Position.Shares)
	assertDec(t, "100", exec.Position.AverageCost)
	assertDec(t, "-40", exec.Trade.RealizedPL)
}

// Buy 10 @ 50, buy 10 @ 70, sell 15 @ 80, value at 80.
func TestTradeAndValuationScenario(t *testing.T) {
	f := setup(t, "10000", map[string]float64{"AAPL": 80})
	ctx := context.Background()

	exec, err := f.engine.ApplyBuy(ctx, "AAPL", d("10"), d("50"))
	require.NoError(t, err)
	assertDec(t, "9500", exec.Cash)

	exec, err = f.engine.ApplyBuy(ctx, "AAPL", d("10"), d("70"))
	require.NoError(t, err)
	assertDec(t, "8800", exec.Cash)
	assertDec(t, "60", exec.Position.AverageCost)

	exec, err = f.engine.ApplySell(ctx, "AAPL", d("15"), d("80"))
	require.NoError(t, err)
	assertDec(t, "10000", exec.Cash)
	assertDec(t, "5", exec.Position.Shares)
	assertDec(t, "60", exec.Position.AverageCost)
	assertDec(t, "300", exec.Trade.RealizedPL)

	report, err := f.engine.Valuation(ctx)
	require.NoError(t, err)
	require.Len(t, report.Rows, 1)
	row := report.Rows[0]
	assert.True(t, row.Priced)
	assertDec(t, "80", row.CurrentPrice)
	assertDec(t, "300", row.CostBasis)
	assertDec(t, "400", row.MarketValue)
	assertDec(t, "100", row.UnrealizedPL)
	assertDec(t, "33.33", row.UnrealizedPLPct.Round(2))

	assertDec(t, "10000", report.Cash)
	assertDec(t, "400", report.TotalMarketValue)
	assertDec(t, "10400", report.TotalEquity)
	assertDec(t, "400", report.UnrealizedPL)
	assertDec(t, "4", report.UnrealizedPLPct)
	assertDec(t, "300", report.RealizedPL)
	assert.True(t, report.Complete())

	trades, err := f.engine.Trades(ctx, 0)
	require.NoError(t, err)
	require.Len(t, trades, 3)
	assert.Equal(t, "SELL", string(trades[0].Side), "newest first")
}

func TestTotalEquityIdentity(t *testing.T) {
	f := setup(t, "10000", map[string]float64{"AAPL": 151.37, "MSFT": 379.01, "TSLA": 0.5})
	ctx := context.Background()

	_, err := f.engine.ApplyBuy(ctx, "AAPL", d("3"), d("149.99"))
	require.NoError(t, err)
	_, err = f.engine.ApplyBuy(ctx, "MSFT", d("2.5"), d("380.10"))
	require.NoError(t, err)
	_, err = f.engine.ApplyBuy(ctx, "TSLA", d("7"), d("1.13"))
	require.NoError(t, err)

	report, err := f.engine.Valuation(ctx)
	require.NoError(t, err)

	sum := decimal.Zero
	for _, r := range report.Rows {
		sum = sum.Add(r.MarketValue)
		assert.True(t, r.UnrealizedPL.Equal(r.MarketValue.Sub(r.CostBasis)))
	}
	assert.True(t, report.TotalMarketValue.Equal(sum))
	assert.True(t, report.TotalEquity.Equal(report.Cash.Add(sum)))
	assert.Equal(t, []string{"AAPL", "MSFT", "TSLA"}, []string{report.Rows[0].Symbol, report.Rows[1].Symbol, report.Rows[2].Symbol})
}

func TestValuationListsUnpricedSymbols(t *testing.T) {
	f := setup(t, "10000", map[string]float64{"AAPL": 100})
	ctx := context.Background()

	_, err := f.engine.ApplyBuy(ctx, "AAPL", d("1"), d("100"))
	require.NoError(t, err)
	_, err = f.engine.ApplyBuy(ctx, "DELISTED", d("2"), d("50"))
	require.NoError(t, err)

	report, err := f.engine.Valuation(ctx)
	require.NoError(t, err)
	require.Len(t, report.Rows, 2)
	assert.Equal(t, []string{"DELISTED"}, report.Unpriced)
	assert.False(t, report.Complete())

	row := report.Rows[1]
	assert.Equal(t, "DELISTED", row.Symbol)
	assert.False(t, row.Priced)
	assert.True(t, row.MarketValue.IsZero())
	assertDec(t, "100", row.CostBasis)

	assertDec(t, "100", report.TotalMarketValue)
	assertDec(t, "9800", report.Cash)
	assertDec(t, "9900", report.TotalEquity)
	assertDec(t, "200", report.TotalCostBasis)
}

func TestValuationEmptyPortfolio(t *testing.T) {
	f := setup(t, "10000", nil)

	report, err := f.engine.Valuation(context.Background())
	require.NoError(t, err)
	assert.Empty(t, report.Rows)
	assertDec(t, "10000", report.TotalEquity)
	assert.True(t, report.UnrealizedPL.IsZero())
}

func TestZeroStartingBalancePercent(t *testing.T) {
	f := setup(t, "0", nil)

	report, err := f.engine.Valuation(context.Background())
	require.NoError(t, err)
	assert.True(t, report.UnrealizedPLPct.IsZero())
}

func TestEquitySnapshotOnePerBucket(t *testing.T) {
	f := setup(t, "10000", map[string]float64{"AAPL": 100})
	ctx := context.Background()

	_, err := f.engine.ApplyBuy(ctx, "AAPL", d("10"), d("100"))
	require.NoError(t, err)

	snap, recorded, err := f.engine.RecordEquitySnapshot(ctx)
	require.NoError(t, err)
	assert.True(t, recorded)
	assert.Equal(t, "2026-10-16T14:00:00Z", snap.Bucket)
	assertDec(t, "10000", snap.TotalEquity)

	// Same hour, different equity: first write wins
	f.clock.Set(time.Date(2026, 10, 16, 14, 59, 59, 0, time.UTC))
	f.oracle.Set("AAPL", d("120"))
	_, recorded, err = f.engine.RecordEquitySnapshot(ctx)
	require.NoError(t, err)
	assert.False(t, recorded)

	f.clock.Set(time.Date(2026, 10, 16, 15, 0, 0, 0, time.UTC))
	_, recorded, err = f.engine.RecordEquitySnapshot(ctx)
	require.NoError(t, err)
	assert.True(t, recorded)

	history, err := f.engine.EquityHistory(ctx)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "2026-10-16T14:00:00Z", history[0].Bucket)
	assertDec(t, "10000", history[0].TotalEquity)
	assert.Equal(t, "2026-10-16T15:00:00Z", history[1].Bucket)
	assertDec(t, "10200", history[1].TotalEquity)
}

func TestIncompleteValuationIsNotRecorded(t *testing.T) {
	f := setup(t, "10000", map[string]float64{"AAPL": 100})
	ctx := context.Background()

	_, err := f.engine.ApplyBuy(ctx, "AAPL", d("1"), d("100"))
	require.NoError(t, err)
	f.oracle.Remove("AAPL")

	report, err := f.engine.ReportAndRecord(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"AAPL"}, report.Unpriced)

	history, err := f.engine.EquityHistory(ctx)
	require.NoError(t, err)
	assert.Empty(t, history)

	// Once priced again the bucket is still free
	f.oracle.Set("AAPL", d("100"))
	_, err = f.engine.ReportAndRecord(ctx)
	require.NoError(t, err)
	history, err = f.engine.EquityHistory(ctx)
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestBucket(t *testing.T) {
	at := time.Date(2026, 10, 16, 14, 37, 12, 0, time.FixedZone("EST", -5*3600))
	assert.Equal(t, "2026-10-16T19:00:00Z", Bucket(at, time.Hour))
	assert.Equal(t, "2026-10-16T19:37:00Z", Bucket(at, time.Minute))
	assert.Equal(t, "2026-10-16T00:00:00Z", Bucket(at, 24*time.Hour))
}

func TestOracleBuyAndSell(t *testing.T) {
	f := setup(t, "10000", map[string]float64{"AAPL": 150})
	ctx := context.Background()

	exec, err := f.engine.Buy(ctx, "AAPL", d("2"))
	require.NoError(t, err)
	assertDec(t, "150", exec.Trade.Price)
	assertDec(t, "9700", exec.Cash)

	f.oracle.Set("AAPL", d("160"))
	exec, err = f.engine.Sell(ctx, "AAPL", d("1"))
	require.NoError(t, err)
	assertDec(t, "160", exec.Trade.Price)
	assertDec(t, "10", exec.Trade.RealizedPL)
}

func TestOracleBuyWithoutQuote(t *testing.T) {
	f := setup(t, "10000", nil)

	_, err := f.engine.Buy(context.Background(), "NOQUOTE", d("1"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidPrice)
	assert.ErrorIs(t, err, market.ErrUnavailable)

	_, err = f.engine.Buy(context.Background(), "NOQUOTE", d("0"))
	assert.ErrorIs(t, err, ErrInvalidQuantity, "quantity is checked before the quote")
}

func TestConcurrentBuysNeverOverdraw(t *testing.T) {
	f := setup(t, "500", nil)
	ctx := context.Background()
	symbols := []string{"AAPL", "MSFT", "TSLA", "AMZN", "GOOGL"}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		ok       int
		rejected int
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(sym string) {
			defer wg.Done()
			_, err := f.engine.ApplyBuy(ctx, sym, d("1"), d("100"))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case errors.Is(err, ErrInsufficientFunds):
				rejected++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(symbols[i%len(symbols)])
	}
	wg.Wait()

	assert.Equal(t, 5, ok)
	assert.Equal(t, 5, rejected)

	cash, err := f.engine.Cash(ctx)
	require.NoError(t, err)
	assert.True(t, cash.IsZero(), "cash %s", cash)

	positions, err := f.engine.Positions(ctx)
	require.NoError(t, err)
	total := decimal.Zero
	for _, p := range positions {
		total = total.Add(p.Shares)
	}
	assertDec(t, "5", total)
}

func TestExecuteRoutesIntent(t *testing.T) {
	f := setup(t, "10000", map[string]float64{"AAPL": 100})
	ctx := context.Background()

	_, err := f.engine.Execute(ctx, intent("AAPL", "BUY", "2", "0"))
	require.NoError(t, err)
	exec, err := f.engine.Execute(ctx, intent("AAPL", "SELL", "1", "90"))
	require.NoError(t, err)
	assertDec(t, "90", exec.Trade.Price)

	_, err = f.engine.Execute(ctx, intent("AAPL", "HOLD", "1", "90"))
	assert.Error(t, err)
}
