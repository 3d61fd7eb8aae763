package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Side is the direction of a trade
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Account is the singleton cash record
type Account struct {
	Cash            decimal.Decimal `json:"cash"`
	StartingBalance decimal.Decimal `json:"starting_balance"`
}

// Position represents shares held in one symbol.
// A position with zero shares never exists, it is deleted instead.
type Position struct {
	Symbol      string          `json:"symbol"`
	Shares      decimal.Decimal `json:"shares"`
	AverageCost decimal.Decimal `json:"average_cost"`
	Cost        decimal.Decimal `json:"cost_basis"` // exact total paid for the held shares
	UpdatedAt   time.Time       `json:"updated_at"`
}

// CostBasis returns the stored total cost, or shares * average cost when
// no total was recorded
func (p Position) CostBasis() decimal.Decimal {
	if !p.Cost.IsZero() {
		return p.Cost
	}
	return p.Shares.Mul(p.AverageCost)
}

// EquitySnapshot is one row of the equity history, at most one per bucket
type EquitySnapshot struct {
	Bucket      string          `json:"bucket"`
	TotalEquity decimal.Decimal `json:"total_equity"`
	CreatedAt   time.Time       `json:"created_at"`
}

// Trade represents a committed buy/sell in the trade log
type Trade struct {
	ID         string          `json:"id"`
	Symbol     string          `json:"symbol"`
	Side       Side            `json:"side"`
	Quantity   decimal.Decimal `json:"quantity"`
	Price      decimal.Decimal `json:"price"`
	Total      decimal.Decimal `json:"total"`
	RealizedPL decimal.Decimal `json:"realized_pl"` // zero for buys
	CreatedAt  time.Time       `json:"created_at"`
}

// TradeIntent - what the presentation layer asks the engine to do.
// Price is the observed price at execution time.
type TradeIntent struct {
	Symbol   string          `json:"symbol"`
	Quantity decimal.Decimal `json:"quantity"`
	Side     Side            `json:"side"`
	Price    decimal.Decimal `json:"price"`
}

// TradeRequest - what client sends to buy or sell stocks
type TradeRequest struct {
	Symbol   string          `json:"symbol" binding:"required"`
	Quantity decimal.Decimal `json:"quantity"`
}

// Quote is a price returned by a price oracle
type Quote struct {
	Symbol string          `json:"symbol"`
	Price  decimal.Decimal `json:"price"`
	Time   time.Time       `json:"time"`
}

// PricePoint is one close in a price history series
type PricePoint struct {
	Date  time.Time       `json:"date"`
	Close decimal.Decimal `json:"close"`
}
