package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/atharvakonge/paper-brokerage/internal/app"
	"github.com/atharvakonge/paper-brokerage/internal/market"
	"github.com/atharvakonge/paper-brokerage/internal/models"
	"github.com/spf13/cobra"
)

var quoteCmd = &cobra.Command{
	Use:   "quote SYMBOL",
	Short: "Show the current price of a symbol",
	Long: `Show the current price, and the close history with --range.

Examples:
  paper quote AAPL
  paper quote AAPL --range 1mo`,
	Args: cobra.ExactArgs(1),
	RunE: runQuote,
}

var sentimentCmd = &cobra.Command{
	Use:   "sentiment SYMBOL",
	Short: "Score recent news headlines for a symbol",
	Args:  cobra.ExactArgs(1),
	RunE:  runSentiment,
}

var quoteRange string

func init() {
	rootCmd.AddCommand(quoteCmd)
	rootCmd.AddCommand(sentimentCmd)
	quoteCmd.Flags().StringVar(&quoteRange, "range", "", "close history window (5d, 1mo, 3mo, 6mo, 1y)")
	sentimentCmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
}

func runQuote(cmd *cobra.Command, args []string) error {
	sym, ok := models.NormalizeSymbol(args[0])
	if !ok {
		return fmt.Errorf("invalid symbol %q", args[0])
	}
	var window market.Window
	if quoteRange != "" {
		w, err := market.ParseWindow(quoteRange)
		if err != nil {
			return err
		}
		window = w
	}

	return withDeps(cmd, func(ctx context.Context, deps *app.Dependencies) error {
		q, err := deps.Oracle.Quote(ctx, sym)
		if err != nil {
			return err
		}

		var b strings.Builder
		fmt.Fprintf(&b, "**%s** %s\n", q.Symbol, usd(q.Price))
		if window != "" {
			points, err := deps.Oracle.History(ctx, sym, window)
			if err != nil {
				return err
			}
			fmt.Fprintf(&b, "\n| Date | Close |\n|---|---:|\n")
			for _, p := range points {
				fmt.Fprintf(&b, "| %s | %s |\n", p.Date.Format("2006-01-02"), usd(p.Close))
			}
		}
		return render(cmd.OutOrStdout(), b.String())
	})
}

func runSentiment(cmd *cobra.Command, args []string) error {
	return withDeps(cmd, func(ctx context.Context, deps *app.Dependencies) error {
		if deps.Sentiment == nil {
			return fmt.Errorf("sentiment analysis not configured (set GEMINI_API_KEY)")
		}
		res, err := deps.Sentiment.Analyze(ctx, args[0])
		if err != nil {
			return err
		}
		if asJSON {
			return writeJSON(cmd, res)
		}
		return render(cmd.OutOrStdout(), sentimentMarkdown(res))
	})
}
