package portfolio

import (
	"context"
	"errors"
	"log/slog"
	"sort"

	"github.com/atharvakonge/paper-brokerage/internal/db"
	"github.com/atharvakonge/paper-brokerage/internal/market"
	"github.com/atharvakonge/paper-brokerage/internal/models"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

var hundred = decimal.NewFromInt(100)

// Valuation prices every open position with the oracle. A symbol the
// oracle cannot price stays in the report with Priced=false, contributes
// nothing to market value and is listed in Unpriced.
func (e *Engine) Valuation(ctx context.Context) (models.ValuationReport, error) {
	var (
		acct      models.Account
		positions []models.Position
		realized  decimal.Decimal
	)
	// One snapshot so cash and positions come from the same ledger state
	err := e.store.ReadTx(ctx, func(l *db.Ledger) error {
		var err error
		if acct, err = l.GetAccount(ctx); err != nil {
			return err
		}
		if positions, err = l.ListPositions(ctx); err != nil {
			return err
		}
		realized, err = l.RealizedPL(ctx)
		return err
	})
	if err != nil {
		return models.ValuationReport{}, err
	}

	prices, err := e.lookup(ctx, positions)
	if err != nil {
		return models.ValuationReport{}, err
	}

	report := models.ValuationReport{
		Rows:             make([]models.ValuationRow, 0, len(positions)),
		Cash:             acct.Cash,
		StartingBalance:  acct.StartingBalance,
		TotalCostBasis:   decimal.Zero,
		TotalMarketValue: decimal.Zero,
		RealizedPL:       realized,
		Unpriced:         []string{},
		AsOf:             e.now().UTC(),
	}

	for _, p := range positions {
		row := models.ValuationRow{
			Symbol:      p.Symbol,
			Shares:      p.Shares,
			AverageCost: p.AverageCost,
			CostBasis:   p.CostBasis(),
		}
		report.TotalCostBasis = report.TotalCostBasis.Add(row.CostBasis)

		price, ok := prices[p.Symbol]
		if !ok {
			report.Unpriced = append(report.Unpriced, p.Symbol)
			report.Rows = append(report.Rows, row)
			continue
		}

		row.Priced = true
		row.CurrentPrice = price
		row.MarketValue = p.Shares.Mul(price)
		row.UnrealizedPL = row.MarketValue.Sub(row.CostBasis)
		row.UnrealizedPLPct = percent(row.UnrealizedPL, row.CostBasis)
		report.TotalMarketValue = report.TotalMarketValue.Add(row.MarketValue)
		report.Rows = append(report.Rows, row)
	}

	report.TotalEquity = report.Cash.Add(report.TotalMarketValue)
	report.UnrealizedPL = report.TotalEquity.Sub(report.StartingBalance)
	report.UnrealizedPLPct = percent(report.UnrealizedPL, report.StartingBalance)

	if len(report.Unpriced) > 0 {
		e.logger.Warn("valuation incomplete", slog.Any("unpriced", report.Unpriced))
	}
	return report, nil
}

// lookup quotes every position concurrently. Symbols the oracle cannot
// price are left out of the result; any other error aborts.
func (e *Engine) lookup(ctx context.Context, positions []models.Position) (map[string]decimal.Decimal, error) {
	prices := make([]decimal.Decimal, len(positions))
	priced := make([]bool, len(positions))
	if e.oracle == nil || len(positions) == 0 {
		return map[string]decimal.Decimal{}, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.lookups)
	for i, p := range positions {
		g.Go(func() error {
			q, err := e.oracle.Quote(gctx, p.Symbol)
			switch {
			case errors.Is(err, market.ErrUnavailable):
				e.logger.Warn("quote unavailable", slog.String("symbol", p.Symbol), slog.String("error", err.Error()))
				return nil
			case err != nil:
				return err
			case !q.Price.IsPositive():
				e.logger.Warn("non-positive quote ignored", slog.String("symbol", p.Symbol), slog.String("price", q.Price.String()))
				return nil
			}
			prices[i], priced[i] = q.Price, true
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make(map[string]decimal.Decimal, len(positions))
	for i, p := range positions {
		if priced[i] {
			out[p.Symbol] = prices[i]
		}
	}
	return out, nil
}

func percent(part, whole decimal.Decimal) decimal.Decimal {
	if whole.IsZero() {
		return decimal.Zero
	}
	return part.Div(whole).Mul(hundred)
}

// RecordEquitySnapshot values the portfolio and writes its total equity
// into the current bucket. The first write in a bucket wins; recorded is
// false when the bucket already had a row or the valuation was incomplete.
func (e *Engine) RecordEquitySnapshot(ctx context.Context) (snap models.EquitySnapshot, recorded bool, err error) {
	report, err := e.Valuation(ctx)
	if err != nil {
		return models.EquitySnapshot{}, false, err
	}
	return e.record(ctx, report)
}

// ReportAndRecord returns the valuation and records it as a snapshot in
// passing. A failed snapshot write is logged; the report is still returned.
func (e *Engine) ReportAndRecord(ctx context.Context) (models.ValuationReport, error) {
	report, err := e.Valuation(ctx)
	if err != nil {
		return models.ValuationReport{}, err
	}
	if _, _, err := e.record(ctx, report); err != nil {
		e.logger.Error("equity snapshot failed", slog.String("error", err.Error()))
	}
	return report, nil
}

func (e *Engine) record(ctx context.Context, report models.ValuationReport) (models.EquitySnapshot, bool, error) {
	now := e.now()
	snap := models.EquitySnapshot{
		Bucket:      Bucket(now, e.bucket),
		TotalEquity: report.TotalEquity,
		CreatedAt:   now.UTC(),
	}
	if !report.Complete() {
		// Stale equity would stick in the bucket forever
		e.logger.Warn("equity snapshot skipped",
			slog.String("bucket", snap.Bucket),
			slog.Any("unpriced", report.Unpriced),
		)
		return snap, false, nil
	}

	inserted, err := e.store.AppendSnapshot(ctx, snap.Bucket, snap.TotalEquity)
	if err != nil {
		return models.EquitySnapshot{}, false, err
	}
	if inserted {
		e.logger.Debug("equity snapshot recorded",
			slog.String("bucket", snap.Bucket),
			slog.String("total_equity", snap.TotalEquity.String()),
		)
	}
	return snap, inserted, nil
}

// Symbols returns the held symbols, sorted
func (e *Engine) Symbols(ctx context.Context) ([]string, error) {
	positions, err := e.store.ListPositions(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(positions))
	for _, p := range positions {
		out = append(out, p.Symbol)
	}
	sort.Strings(out)
	return out, nil
}
