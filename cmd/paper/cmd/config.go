package cmd

import (
	"fmt"

	"github.com/atharvakonge/paper-brokerage/internal/config"
	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Generate or validate configuration files",
	Long: `Manage configuration files.

Subcommands:
  init     - Generate a default configuration file
  validate - Validate a configuration file with the environment applied

Examples:
  paper config init -o paper.yaml
  paper config validate -c paper.yaml`,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Generate a default configuration file",
	Long: `Create a configuration file with default settings. The format follows
the extension: .yaml, .toml or .json.

Example:
  paper config init -o paper.toml`,
	Args: cobra.NoArgs,
	RunE: runConfigInit,
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration",
	Args:  cobra.NoArgs,
	RunE:  runConfigValidate,
}

var configInitOutput string

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configValidateCmd)

	configInitCmd.Flags().StringVarP(&configInitOutput, "output", "o", "paper.yaml", "output config file path")
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	cfg := config.Default()
	if err := cfg.SaveToFile(configInitOutput); err != nil {
		return fmt.Errorf("save config: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "✓ Created default configuration: %s\n", configInitOutput)
	fmt.Fprintln(out, "\nSet GEMINI_API_KEY (or sentiment.api_key), then run:")
	fmt.Fprintf(out, "  paper report -c %s\n", configInitOutput)
	return nil
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	cfg, _, err := loadConfig()
	if err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	out := cmd.OutOrStdout()
	name := cfgFile
	if name == "" {
		name = "(defaults and environment)"
	}
	fmt.Fprintf(out, "✓ Configuration valid: %s\n", name)
	fmt.Fprintf(out, "  Account: starting cash %s\n", usd(cfg.Account.StartingCash))
	fmt.Fprintf(out, "  Ledger: %s\n", cfg.Database.Driver)
	fmt.Fprintf(out, "  Market: %s\n", cfg.Market.Provider)
	fmt.Fprintf(out, "  History bucket: %s\n", cfg.History.Bucket.Duration)
	if cfg.Redis.Addr != "" {
		fmt.Fprintf(out, "  Quote cache: redis %s (ttl %s)\n", cfg.Redis.Addr, cfg.Redis.TTL.Duration)
	}
	if cfg.Archive.Bucket != "" {
		fmt.Fprintf(out, "  Archive: s3://%s/%s\n", cfg.Archive.Bucket, cfg.Archive.Prefix)
	}
	return nil
}
