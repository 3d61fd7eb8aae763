// Package archive exports the equity history and the trade log as CSV,
// to a local file or to an S3-compatible bucket.
package archive

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"time"

	"github.com/atharvakonge/paper-brokerage/internal/models"
)

// Kind selects what to export
type Kind string

const (
	KindEquity Kind = "equity"
	KindTrades Kind = "trades"
)

// ParseKind accepts "equity" or "trades"
func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case KindEquity, KindTrades:
		return Kind(s), nil
	}
	return "", fmt.Errorf("unknown export kind %q (want equity or trades)", s)
}

// Source is where exports read from
type Source interface {
	EquityHistory(ctx context.Context) ([]models.EquitySnapshot, error)
	Trades(ctx context.Context, limit int) ([]models.Trade, error)
}

// Export writes the selected ledger data to w as CSV and returns the row count
func Export(ctx context.Context, src Source, kind Kind, w io.Writer) (int, error) {
	switch kind {
	case KindEquity:
		snaps, err := src.EquityHistory(ctx)
		if err != nil {
			return 0, err
		}
		return len(snaps), WriteEquityCSV(w, snaps)
	case KindTrades:
		trades, err := src.Trades(ctx, 0)
		if err != nil {
			return 0, err
		}
		// Oldest first reads naturally in a spreadsheet
		for i, j := 0, len(trades)-1; i < j; i, j = i+1, j-1 {
			trades[i], trades[j] = trades[j], trades[i]
		}
		return len(trades), WriteTradesCSV(w, trades)
	}
	return 0, fmt.Errorf("unknown export kind %q", kind)
}

func WriteEquityCSV(w io.Writer, snaps []models.EquitySnapshot) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"bucket", "total_equity", "created_at"}); err != nil {
		return err
	}
	for _, s := range snaps {
		err := cw.Write([]string{
			s.Bucket,
			s.TotalEquity.StringFixed(2),
			s.CreatedAt.UTC().Format(time.RFC3339),
		})
		if err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func WriteTradesCSV(w io.Writer, trades []models.Trade) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"trade_id", "symbol", "side", "quantity", "price", "total", "realized_pl", "created_at"}); err != nil {
		return err
	}
	for _, t := range trades {
		err := cw.Write([]string{
			t.ID,
			t.Symbol,
			string(t.Side),
			t.Quantity.String(),
			t.Price.String(),
			t.Total.StringFixed(2),
			t.RealizedPL.StringFixed(2),
			t.CreatedAt.UTC().Format(time.RFC3339),
		})
		if err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
