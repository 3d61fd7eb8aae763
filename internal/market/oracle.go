// Package market provides price oracles: a simulated random-walk feed for
// offline use and tests, and an HTTP client for Yahoo Finance quotes.
package market

import (
	"context"
	"errors"

	"github.com/atharvakonge/paper-brokerage/internal/models"
)

// ErrUnavailable is returned when an oracle has no usable price for a symbol.
var ErrUnavailable = errors.New("price unavailable")

// Oracle returns live prices and close histories.
type Oracle interface {
	Quote(ctx context.Context, symbol string) (models.Quote, error)
	History(ctx context.Context, symbol string, window Window) ([]models.PricePoint, error)
}

// Window is a lookback period for price history
type Window string

const (
	Window5D  Window = "5d"
	Window1M  Window = "1mo"
	Window3M  Window = "3mo"
	Window6M  Window = "6mo"
	Window1Y  Window = "1y"
	defWindow        = Window1M
)

// ParseWindow accepts the range names used by the API; "" means one month.
func ParseWindow(s string) (Window, error) {
	switch w := Window(s); w {
	case "":
		return defWindow, nil
	case Window5D, Window1M, Window3M, Window6M, Window1Y:
		return w, nil
	}
	return "", errors.New("unknown range " + s)
}

// Days is the number of calendar days the window covers
func (w Window) Days() int {
	switch w {
	case Window5D:
		return 5
	case Window3M:
		return 91
	case Window6M:
		return 182
	case Window1Y:
		return 365
	}
	return 30
}
