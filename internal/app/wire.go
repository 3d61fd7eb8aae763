package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/atharvakonge/paper-brokerage/internal/archive"
	"github.com/atharvakonge/paper-brokerage/internal/cache"
	"github.com/atharvakonge/paper-brokerage/internal/config"
	"github.com/atharvakonge/paper-brokerage/internal/db"
	"github.com/atharvakonge/paper-brokerage/internal/market"
	"github.com/atharvakonge/paper-brokerage/internal/portfolio"
	"github.com/atharvakonge/paper-brokerage/internal/sentiment"
)

// Dependencies bundles everything the server and the CLI commands run
// against. Optional parts are nil when not configured.
type Dependencies struct {
	Store     *db.Store
	Oracle    market.Oracle
	Simulated *market.Simulated // set when market.provider is simulated
	Engine    *portfolio.Engine
	Sentiment *sentiment.Analyzer // nil without sentiment.api_key
	Archive   *archive.Uploader   // nil without archive.bucket
}

// Wire opens the ledger and builds the oracles and the engine from cfg.
// The returned cleanup releases resources in reverse order.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	if logger == nil {
		logger = slog.Default()
	}

	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	fail := func(err error) (*Dependencies, func(), error) {
		cleanup()
		return nil, func() {}, err
	}

	deps := &Dependencies{}

	// Ledger
	store, err := db.Open(ctx, db.Config{
		Driver:       cfg.Database.Driver,
		Path:         cfg.Database.Path,
		DSN:          cfg.Database.DSN,
		StartingCash: cfg.Account.StartingCash,
	}, logger.With(slog.String("component", "ledger")))
	if err != nil {
		return fail(fmt.Errorf("wire: open ledger: %w", err))
	}
	deps.Store = store
	closers = append(closers, func() {
		if err := store.Close(); err != nil {
			logger.Warn("close ledger", slog.String("error", err.Error()))
		}
	})

	// Price oracle
	marketLog := logger.With(slog.String("component", "market"))
	var yahoo *market.Yahoo
	switch cfg.Market.Provider {
	case "", "simulated":
		deps.Simulated = market.NewSimulated(market.DefaultPrices, cfg.Market.Seed, marketLog)
		deps.Oracle = deps.Simulated
	case "yahoo":
		yahoo = market.NewYahoo(cfg.Market.BaseURL, cfg.Market.Timeout.Duration, marketLog)
		deps.Oracle = yahoo
	default:
		return fail(fmt.Errorf("wire: unknown market provider %q", cfg.Market.Provider))
	}

	if cfg.Redis.Addr != "" {
		rdb, err := cache.NewClient(ctx, cache.ClientConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			return fail(fmt.Errorf("wire: %w", err))
		}
		closers = append(closers, func() { _ = rdb.Close() })
		deps.Oracle = cache.NewQuoteCache(deps.Oracle, rdb, cfg.Redis.TTL.Duration, logger.With(slog.String("component", "cache")))
	}

	deps.Engine = portfolio.New(store, deps.Oracle,
		portfolio.WithBucket(cfg.History.Bucket.Duration),
		portfolio.WithLogger(logger.With(slog.String("component", "portfolio"))),
	)

	// Sentiment oracle; headlines always come from Yahoo
	if cfg.Sentiment.APIKey != "" {
		news := yahoo
		if news == nil || cfg.Sentiment.NewsBaseURL != "" {
			news = market.NewYahoo(cfg.Sentiment.NewsBaseURL, cfg.Market.Timeout.Duration, marketLog)
		}
		gemini, err := sentiment.NewGemini(ctx, cfg.Sentiment.APIKey, cfg.Sentiment.Model)
		if err != nil {
			return fail(fmt.Errorf("wire: %w", err))
		}
		deps.Sentiment = sentiment.NewAnalyzer(news, gemini, cfg.Sentiment.MaxHeadlines,
			logger.With(slog.String("component", "sentiment")))
	}

	if cfg.Archive.Bucket != "" {
		up, err := archive.NewUploader(ctx, archive.S3Config{
			Bucket:         cfg.Archive.Bucket,
			Region:         cfg.Archive.Region,
			Endpoint:       cfg.Archive.Endpoint,
			Prefix:         cfg.Archive.Prefix,
			AccessKey:      cfg.Archive.AccessKey,
			SecretKey:      cfg.Archive.SecretKey,
			ForcePathStyle: cfg.Archive.ForcePathStyle,
		})
		if err != nil {
			return fail(fmt.Errorf("wire: %w", err))
		}
		deps.Archive = up
	}

	return deps, cleanup, nil
}
