package cmd

import (
	"context"
	"encoding/json"

	"github.com/atharvakonge/paper-brokerage/internal/app"
	"github.com/spf13/cobra"
)

var positionsCmd = &cobra.Command{
	Use:   "positions",
	Short: "List open positions at cost",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDeps(cmd, func(ctx context.Context, deps *app.Dependencies) error {
			positions, err := deps.Engine.Positions(ctx)
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd, positions)
			}
			return render(cmd.OutOrStdout(), positionsMarkdown(positions))
		})
	},
}

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Value the portfolio at market prices",
	Long: `Mark every position to market and print the valuation report.
The total equity is also recorded in the equity history, once per bucket,
when every position could be priced.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDeps(cmd, func(ctx context.Context, deps *app.Dependencies) error {
			report, err := deps.Engine.ReportAndRecord(ctx)
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd, report)
			}
			return render(cmd.OutOrStdout(), reportMarkdown(report))
		})
	},
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show the recorded equity history",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDeps(cmd, func(ctx context.Context, deps *app.Dependencies) error {
			snaps, err := deps.Engine.EquityHistory(ctx)
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd, snaps)
			}
			return render(cmd.OutOrStdout(), historyMarkdown(snaps))
		})
	},
}

var tradesCmd = &cobra.Command{
	Use:   "trades",
	Short: "Show the trade log, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDeps(cmd, func(ctx context.Context, deps *app.Dependencies) error {
			trades, err := deps.Engine.Trades(ctx, tradesLimit)
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd, trades)
			}
			return render(cmd.OutOrStdout(), tradesMarkdown(trades))
		})
	},
}

var (
	asJSON      bool
	tradesLimit int
)

func init() {
	for _, c := range []*cobra.Command{positionsCmd, reportCmd, historyCmd, tradesCmd} {
		rootCmd.AddCommand(c)
		c.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	}
	tradesCmd.Flags().IntVarP(&tradesLimit, "limit", "n", 50, "number of trades (0 for all)")
}

func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
