// Package cache implements a Redis-backed quote cache in front of a price oracle.
package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/atharvakonge/paper-brokerage/internal/market"
	"github.com/atharvakonge/paper-brokerage/internal/models"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

// ClientConfig holds connection parameters for the Redis client.
type ClientConfig struct {
	Addr     string
	Password string
	DB       int
}

// NewClient creates a Redis client and pings it to verify connectivity.
func NewClient(ctx context.Context, cfg ClientConfig) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis: ping: %w", err)
	}
	return rdb, nil
}

// QuoteCache decorates an oracle: quotes are served from Redis while they
// are younger than the TTL and fetched from the oracle otherwise. A Redis
// failure falls through to the oracle, it never turns into a price.
type QuoteCache struct {
	next   market.Oracle
	rdb    *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// NewQuoteCache wraps next with a cache of the given TTL
func NewQuoteCache(next market.Oracle, rdb *redis.Client, ttl time.Duration, logger *slog.Logger) *QuoteCache {
	if logger == nil {
		logger = slog.Default()
	}
	return &QuoteCache{next: next, rdb: rdb, ttl: ttl, logger: logger}
}

func quoteKey(symbol string) string {
	return "quote:" + symbol
}

func (c *QuoteCache) Quote(ctx context.Context, symbol string) (models.Quote, error) {
	q, err := c.get(ctx, symbol)
	if err == nil {
		return q, nil
	}
	if !errors.Is(err, redis.Nil) {
		c.logger.Warn("quote cache read failed", slog.String("symbol", symbol), slog.String("error", err.Error()))
	}

	q, err = c.next.Quote(ctx, symbol)
	if err != nil {
		return models.Quote{}, err
	}
	if err := c.set(ctx, q); err != nil {
		c.logger.Warn("quote cache write failed", slog.String("symbol", symbol), slog.String("error", err.Error()))
	}
	return q, nil
}

// History is not cached
func (c *QuoteCache) History(ctx context.Context, symbol string, window market.Window) ([]models.PricePoint, error) {
	return c.next.History(ctx, symbol, window)
}

func (c *QuoteCache) get(ctx context.Context, symbol string) (models.Quote, error) {
	vals, err := c.rdb.HGetAll(ctx, quoteKey(symbol)).Result()
	if err != nil {
		return models.Quote{}, err
	}
	if len(vals) == 0 {
		return models.Quote{}, redis.Nil
	}

	price, err := decimal.NewFromString(vals["price"])
	if err != nil {
		return models.Quote{}, fmt.Errorf("redis: parse price %s: %w", symbol, err)
	}
	tsNano, err := strconv.ParseInt(vals["ts"], 10, 64)
	if err != nil {
		return models.Quote{}, fmt.Errorf("redis: parse ts %s: %w", symbol, err)
	}
	return models.Quote{Symbol: symbol, Price: price, Time: time.Unix(0, tsNano).UTC()}, nil
}

func (c *QuoteCache) set(ctx context.Context, q models.Quote) error {
	key := quoteKey(q.Symbol)
	pipe := c.rdb.TxPipeline()
	pipe.HSet(ctx, key, map[string]interface{}{
		"price": q.Price.String(),
		"ts":    strconv.FormatInt(q.Time.UnixNano(), 10),
	})
	pipe.Expire(ctx, key, c.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: set quote %s: %w", q.Symbol, err)
	}
	return nil
}

// Compile-time interface check.
var _ market.Oracle = (*QuoteCache)(nil)
