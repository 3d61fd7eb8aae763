package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/Rhymond/go-money"
	"github.com/atharvakonge/paper-brokerage/internal/models"
	"github.com/atharvakonge/paper-brokerage/internal/portfolio"
	"github.com/atharvakonge/paper-brokerage/internal/sentiment"
	"github.com/charmbracelet/glamour"
	"github.com/shopspring/decimal"
)

// usd formats an amount as dollars, rounded half away from zero to cents
func usd(d decimal.Decimal) string {
	cents := d.Shift(2).Round(0).IntPart()
	return money.New(cents, money.USD).Display()
}

// signedUSD prefixes gains with "+"
func signedUSD(d decimal.Decimal) string {
	if d.IsPositive() {
		return "+" + usd(d)
	}
	return usd(d)
}

func pct(d decimal.Decimal) string {
	s := d.StringFixed(2) + "%"
	if d.IsPositive() {
		return "+" + s
	}
	return s
}

// cell escapes table separators
func cell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}

func positionsMarkdown(positions []models.Position) string {
	var b strings.Builder
	b.WriteString("# Positions\n\n")
	if len(positions) == 0 {
		b.WriteString("No open positions.\n")
		return b.String()
	}
	b.WriteString("| Symbol | Shares | Avg cost | Cost basis |\n|---|---:|---:|---:|\n")
	for _, p := range positions {
		fmt.Fprintf(&b, "| %s | %s | %s | %s |\n", p.Symbol, p.Shares.String(), usd(p.AverageCost), usd(p.CostBasis()))
	}
	return b.String()
}

func reportMarkdown(r models.ValuationReport) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Portfolio as of %s\n\n", r.AsOf.UTC().Format("2006-01-02 15:04 MST"))

	if len(r.Rows) == 0 {
		b.WriteString("No open positions.\n\n")
	} else {
		b.WriteString("| Symbol | Shares | Avg cost | Price | Market value | P/L | P/L % |\n|---|---:|---:|---:|---:|---:|---:|\n")
		for _, row := range r.Rows {
			if !row.Priced {
				fmt.Fprintf(&b, "| %s | %s | %s | n/a | n/a | n/a | n/a |\n",
					row.Symbol, row.Shares.String(), usd(row.AverageCost))
				continue
			}
			fmt.Fprintf(&b, "| %s | %s | %s | %s | %s | %s | %s |\n",
				row.Symbol, row.Shares.String(), usd(row.AverageCost), usd(row.CurrentPrice),
				usd(row.MarketValue), signedUSD(row.UnrealizedPL), pct(row.UnrealizedPLPct))
		}
		b.WriteString("\n")
	}

	b.WriteString("| | |\n|---|---:|\n")
	fmt.Fprintf(&b, "| Cash | %s |\n", usd(r.Cash))
	fmt.Fprintf(&b, "| Market value | %s |\n", usd(r.TotalMarketValue))
	fmt.Fprintf(&b, "| Total equity | %s |\n", usd(r.TotalEquity))
	fmt.Fprintf(&b, "| Starting balance | %s |\n", usd(r.StartingBalance))
	fmt.Fprintf(&b, "| Unrealized P/L | %s (%s) |\n", signedUSD(r.UnrealizedPL), pct(r.UnrealizedPLPct))
	fmt.Fprintf(&b, "| Realized P/L | %s |\n", signedUSD(r.RealizedPL))

	if !r.Complete() {
		fmt.Fprintf(&b, "\n> **Incomplete:** no price for %s. Their market value is counted as zero.\n",
			strings.Join(r.Unpriced, ", "))
	}
	return b.String()
}

func historyMarkdown(snaps []models.EquitySnapshot) string {
	var b strings.Builder
	b.WriteString("# Equity history\n\n")
	if len(snaps) == 0 {
		b.WriteString("No snapshots recorded yet. Run `paper report` to record one.\n")
		return b.String()
	}
	b.WriteString("| Bucket | Total equity |\n|---|---:|\n")
	for _, s := range snaps {
		fmt.Fprintf(&b, "| %s | %s |\n", s.Bucket, usd(s.TotalEquity))
	}
	return b.String()
}

func tradesMarkdown(trades []models.Trade) string {
	var b strings.Builder
	b.WriteString("# Trades\n\n")
	if len(trades) == 0 {
		b.WriteString("No trades yet.\n")
		return b.String()
	}
	b.WriteString("| Time | Side | Symbol | Quantity | Price | Total | Realized P/L |\n|---|---|---|---:|---:|---:|---:|\n")
	for _, t := range trades {
		realized := ""
		if t.Side == models.SideSell {
			realized = signedUSD(t.RealizedPL)
		}
		fmt.Fprintf(&b, "| %s | %s | %s | %s | %s | %s | %s |\n",
			t.CreatedAt.UTC().Format("2006-01-02 15:04:05"), t.Side, t.Symbol,
			t.Quantity.String(), usd(t.Price), usd(t.Total), realized)
	}
	return b.String()
}

func executionMarkdown(e portfolio.Execution) string {
	var b strings.Builder
	t := e.Trade
	fmt.Fprintf(&b, "**%s %s %s @ %s** (total %s)\n\n", t.Side, t.Quantity.String(), t.Symbol, usd(t.Price), usd(t.Total))
	if t.Side == models.SideSell {
		fmt.Fprintf(&b, "- Realized P/L: %s\n", signedUSD(t.RealizedPL))
	}
	fmt.Fprintf(&b, "- Cash: %s\n", usd(e.Cash))
	if e.Position != nil {
		fmt.Fprintf(&b, "- Position: %s shares at %s avg\n", e.Position.Shares.String(), usd(e.Position.AverageCost))
	} else {
		b.WriteString("- Position closed\n")
	}
	fmt.Fprintf(&b, "- Trade id: `%s`\n", t.ID)
	return b.String()
}

func sentimentMarkdown(r sentiment.Result) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s sentiment\n\n", r.Symbol)
	switch r.Status {
	case sentiment.StatusNoNews:
		b.WriteString("No recent news found.\n")
		return b.String()
	case sentiment.StatusParseFailed:
		b.WriteString("> The model answer could not be read; the score below is not a real reading.\n\n")
	}
	fmt.Fprintf(&b, "**%s** (score %+.2f)\n\n%s\n", r.Label, r.Score, cell(r.Reason))
	if len(r.Headlines) > 0 {
		b.WriteString("\n## Headlines\n\n")
		for _, h := range r.Headlines {
			fmt.Fprintf(&b, "- %s\n", h)
		}
	}
	return b.String()
}

// render writes md to w, through glamour unless --plain is set
func render(w io.Writer, md string) error {
	if plain {
		_, err := io.WriteString(w, md)
		return err
	}
	r, err := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(120))
	if err != nil {
		return err
	}
	out, err := r.Render(md)
	if err != nil {
		return err
	}
	_, err = io.WriteString(w, out)
	return err
}
