package cmd

import (
	"context"
	"fmt"

	"github.com/atharvakonge/paper-brokerage/internal/app"
	"github.com/atharvakonge/paper-brokerage/internal/models"
	"github.com/atharvakonge/paper-brokerage/internal/portfolio"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

var buyCmd = &cobra.Command{
	Use:   "buy SYMBOL QUANTITY",
	Short: "Buy shares at the market price",
	Long: `Buy QUANTITY shares of SYMBOL. The price comes from the configured
market unless --price is given.

Examples:
  paper buy AAPL 10
  paper buy MSFT 2.5 --price 401.20`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTrade(cmd, models.SideBuy, args)
	},
}

var sellCmd = &cobra.Command{
	Use:   "sell SYMBOL QUANTITY",
	Short: "Sell shares at the market price",
	Long: `Sell QUANTITY shares of SYMBOL. Selling the whole position closes it.

Example:
  paper sell AAPL 4`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTrade(cmd, models.SideSell, args)
	},
}

var tradePrice string

func init() {
	rootCmd.AddCommand(buyCmd)
	rootCmd.AddCommand(sellCmd)
	for _, c := range []*cobra.Command{buyCmd, sellCmd} {
		c.Flags().StringVar(&tradePrice, "price", "", "execute at this price instead of the market price")
	}
}

// parseIntent turns command arguments into a trade intent; a zero price
// means the market price
func parseIntent(side models.Side, args []string, price string) (models.TradeIntent, error) {
	qty, err := decimal.NewFromString(args[1])
	if err != nil {
		return models.TradeIntent{}, fmt.Errorf("invalid quantity %q", args[1])
	}
	in := models.TradeIntent{Symbol: args[0], Quantity: qty, Side: side}
	if price != "" {
		p, err := decimal.NewFromString(price)
		if err != nil {
			return models.TradeIntent{}, fmt.Errorf("invalid price %q", price)
		}
		if !p.IsPositive() {
			return models.TradeIntent{}, fmt.Errorf("price must be positive, got %s", price)
		}
		in.Price = p
	}
	return in, nil
}

func runTrade(cmd *cobra.Command, side models.Side, args []string) error {
	in, err := parseIntent(side, args, tradePrice)
	if err != nil {
		return err
	}
	return withDeps(cmd, func(ctx context.Context, deps *app.Dependencies) error {
		exec, err := deps.Engine.Execute(ctx, in)
		if rej, ok := portfolio.AsRejection(err); ok {
			return fmt.Errorf("rejected (%s): %s", rej.Kind, rej)
		}
		if err != nil {
			return err
		}
		return render(cmd.OutOrStdout(), executionMarkdown(exec))
	})
}
