package cmd

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/atharvakonge/paper-brokerage/internal/app"
	"github.com/atharvakonge/paper-brokerage/internal/config"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "paper",
	Short: "A paper brokerage: simulated cash, positions and portfolio valuation",
	Long: `Paper keeps a single simulated brokerage account in a local ledger.

It provides tools for:
  - Buying and selling at the market price (or a price you give)
  - Valuing the portfolio and recording the equity history
  - Quotes, price history and news sentiment per symbol
  - Exporting the equity history and the trade log as CSV
  - Serving the same operations over HTTP and a websocket stream`,
	SilenceUsage: true,
}

var (
	cfgFile  string
	logLevel string
	plain    bool
)

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (yaml, json or toml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override log_level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&plain, "plain", false, "print raw markdown instead of rendering it")
}

// loadConfig loads and validates the configuration and builds the CLI logger
func loadConfig() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, nil, err
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	// Logs go to stderr so command output stays clean
	logger := app.NewLogger(os.Stderr, cfg.LogLevel, false)
	slog.SetDefault(logger)
	return cfg, logger, nil
}

// withDeps runs fn against freshly wired dependencies and releases them after
func withDeps(cmd *cobra.Command, fn func(ctx context.Context, deps *app.Dependencies) error) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	deps, cleanup, err := app.Wire(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	return fn(ctx, deps)
}
