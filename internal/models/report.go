package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// ValuationRow is one position marked to market.
//
// When the price oracle could not price the symbol, Priced is false,
// CurrentPrice and MarketValue are zero and the row's P/L fields are zero.
// Such rows are listed, never dropped.
type ValuationRow struct {
	Symbol          string          `json:"symbol"`
	Shares          decimal.Decimal `json:"shares"`
	AverageCost     decimal.Decimal `json:"average_cost"`
	CostBasis       decimal.Decimal `json:"cost_basis"`
	CurrentPrice    decimal.Decimal `json:"current_price"`
	MarketValue     decimal.Decimal `json:"market_value"`
	UnrealizedPL    decimal.Decimal `json:"unrealized_pl"`
	UnrealizedPLPct decimal.Decimal `json:"unrealized_pl_pct"`
	Priced          bool            `json:"priced"`
}

// ValuationReport - what we send back for the portfolio page
type ValuationReport struct {
	Rows             []ValuationRow  `json:"rows"`
	Cash             decimal.Decimal `json:"cash"`
	StartingBalance  decimal.Decimal `json:"starting_balance"`
	TotalCostBasis   decimal.Decimal `json:"total_cost_basis"`
	TotalMarketValue decimal.Decimal `json:"total_market_value"`
	TotalEquity      decimal.Decimal `json:"total_equity"`
	UnrealizedPL     decimal.Decimal `json:"unrealized_pl"`
	UnrealizedPLPct  decimal.Decimal `json:"unrealized_pl_pct"`
	RealizedPL       decimal.Decimal `json:"realized_pl"`
	Unpriced         []string        `json:"unpriced"`
	AsOf             time.Time       `json:"as_of"`
}

// Complete reports whether every row was priced
func (r ValuationReport) Complete() bool {
	return len(r.Unpriced) == 0
}
