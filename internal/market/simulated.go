package market

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/atharvakonge/paper-brokerage/internal/models"
	"github.com/shopspring/decimal"
)

// DefaultPrices seeds the simulated feed
var DefaultPrices = map[string]float64{
	"AAPL":  150.00,
	"GOOGL": 140.00,
	"MSFT":  380.00,
	"TSLA":  250.00,
	"AMZN":  180.00,
}

// Simulated is an in-memory oracle. Symbols that were never set are
// unavailable. Step moves every price by a random -2%..+2%.
type Simulated struct {
	mu     sync.RWMutex
	prices map[string]decimal.Decimal
	rnd    *rand.Rand
	now    func() time.Time
	logger *slog.Logger
}

// NewSimulated creates a feed seeded with prices
func NewSimulated(prices map[string]float64, seed int64, logger *slog.Logger) *Simulated {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Simulated{
		prices: make(map[string]decimal.Decimal, len(prices)),
		rnd:    rand.New(rand.NewSource(seed)),
		now:    time.Now,
		logger: logger,
	}
	for sym, p := range prices {
		s.prices[sym] = decimal.NewFromFloat(p).Round(2)
	}
	return s
}

// Set fixes the price of symbol
func (s *Simulated) Set(symbol string, price decimal.Decimal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prices[symbol] = price
}

// Remove makes symbol unavailable
func (s *Simulated) Remove(symbol string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.prices, symbol)
}

// Symbols lists the symbols with a price
func (s *Simulated) Symbols() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.prices))
	for sym := range s.prices {
		out = append(out, sym)
	}
	sort.Strings(out)
	return out
}

func (s *Simulated) Quote(ctx context.Context, symbol string) (models.Quote, error) {
	s.mu.RLock()
	p, ok := s.prices[symbol]
	s.mu.RUnlock()
	if !ok {
		return models.Quote{}, fmt.Errorf("%s: %w", symbol, ErrUnavailable)
	}
	return models.Quote{Symbol: symbol, Price: p, Time: s.now()}, nil
}

// History walks backwards from the current price one day at a time.
// The series is deterministic for a given symbol and price.
func (s *Simulated) History(ctx context.Context, symbol string, window Window) ([]models.PricePoint, error) {
	q, err := s.Quote(ctx, symbol)
	if err != nil {
		return nil, err
	}

	var seed int64
	for _, c := range symbol {
		seed = seed*31 + int64(c)
	}
	rnd := rand.New(rand.NewSource(seed))

	days := window.Days()
	points := make([]models.PricePoint, days)
	price := q.Price.InexactFloat64()
	today := time.Date(q.Time.Year(), q.Time.Month(), q.Time.Day(), 0, 0, 0, 0, time.UTC)
	for i := days - 1; i >= 0; i-- {
		points[i] = models.PricePoint{
			Date:  today.AddDate(0, 0, i-(days-1)),
			Close: decimal.NewFromFloat(price).Round(2),
		}
		price = price / (1 + (rnd.Float64()-0.5)*4/100)
	}
	return points, nil
}

// Step simulates one price change per symbol (-2% to +2%)
func (s *Simulated) Step() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for sym, old := range s.prices {
		changePercent := (s.rnd.Float64() - 0.5) * 4
		newPrice := old.Mul(decimal.NewFromFloat(1 + changePercent/100)).Round(2)
		if !newPrice.IsPositive() {
			continue
		}
		s.prices[sym] = newPrice
		s.logger.Debug("simulated price update",
			slog.String("symbol", sym),
			slog.String("price", newPrice.String()),
			slog.Float64("change_pct", changePercent))
	}
}

// Run steps the feed every interval until ctx is done
func (s *Simulated) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Step()
		}
	}
}
