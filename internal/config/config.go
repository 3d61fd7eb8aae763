// Package config holds the brokerage configuration: defaults, an optional
// YAML, JSON or TOML file, a .env file and PAPER_* environment overrides.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Config is the complete runtime configuration
type Config struct {
	Account   AccountConfig   `json:"account" yaml:"account" toml:"account"`
	History   HistoryConfig   `json:"history" yaml:"history" toml:"history"`
	Database  DatabaseConfig  `json:"database" yaml:"database" toml:"database"`
	Market    MarketConfig    `json:"market" yaml:"market" toml:"market"`
	Redis     RedisConfig     `json:"redis" yaml:"redis" toml:"redis"`
	Sentiment SentimentConfig `json:"sentiment" yaml:"sentiment" toml:"sentiment"`
	Server    ServerConfig    `json:"server" yaml:"server" toml:"server"`
	Archive   ArchiveConfig   `json:"archive" yaml:"archive" toml:"archive"`
	LogLevel  string          `json:"log_level" yaml:"log_level" toml:"log_level"`
}

// AccountConfig seeds the account row on first run. Changing it later
// does not reset an existing ledger.
type AccountConfig struct {
	StartingCash decimal.Decimal `json:"starting_cash" yaml:"starting_cash" toml:"starting_cash"`
}

// HistoryConfig sets the equity snapshot resolution
type HistoryConfig struct {
	Bucket Duration `json:"bucket" yaml:"bucket" toml:"bucket"`
}

type DatabaseConfig struct {
	Driver string `json:"driver" yaml:"driver" toml:"driver"` // sqlite3, postgres or pgx
	Path   string `json:"path" yaml:"path" toml:"path"`
	DSN    string `json:"dsn,omitempty" yaml:"dsn,omitempty" toml:"dsn"`
}

type MarketConfig struct {
	Provider string   `json:"provider" yaml:"provider" toml:"provider"` // simulated or yahoo
	BaseURL  string   `json:"base_url,omitempty" yaml:"base_url,omitempty" toml:"base_url"`
	Timeout  Duration `json:"timeout" yaml:"timeout" toml:"timeout"`
	Tick     Duration `json:"tick" yaml:"tick" toml:"tick"` // simulated price drift interval
	Seed     int64    `json:"seed" yaml:"seed" toml:"seed"`
}

// RedisConfig enables the quote cache when Addr is set
type RedisConfig struct {
	Addr     string   `json:"addr,omitempty" yaml:"addr,omitempty" toml:"addr"`
	Password string   `json:"password,omitempty" yaml:"password,omitempty" toml:"password"`
	DB       int      `json:"db" yaml:"db" toml:"db"`
	TTL      Duration `json:"ttl" yaml:"ttl" toml:"ttl"`
}

type SentimentConfig struct {
	APIKey       string `json:"api_key,omitempty" yaml:"api_key,omitempty" toml:"api_key"`
	Model        string `json:"model" yaml:"model" toml:"model"`
	MaxHeadlines int    `json:"max_headlines" yaml:"max_headlines" toml:"max_headlines"`
	NewsBaseURL  string `json:"news_base_url,omitempty" yaml:"news_base_url,omitempty" toml:"news_base_url"`
}

type ServerConfig struct {
	Port    int    `json:"port" yaml:"port" toml:"port"`
	GinMode string `json:"gin_mode" yaml:"gin_mode" toml:"gin_mode"`
	Workers int    `json:"workers" yaml:"workers" toml:"workers"`
}

// ArchiveConfig enables S3 export uploads when Bucket is set
type ArchiveConfig struct {
	Bucket         string `json:"bucket,omitempty" yaml:"bucket,omitempty" toml:"bucket"`
	Region         string `json:"region,omitempty" yaml:"region,omitempty" toml:"region"`
	Endpoint       string `json:"endpoint,omitempty" yaml:"endpoint,omitempty" toml:"endpoint"`
	Prefix         string `json:"prefix,omitempty" yaml:"prefix,omitempty" toml:"prefix"`
	AccessKey      string `json:"access_key,omitempty" yaml:"access_key,omitempty" toml:"access_key"`
	SecretKey      string `json:"secret_key,omitempty" yaml:"secret_key,omitempty" toml:"secret_key"`
	ForcePathStyle bool   `json:"force_path_style" yaml:"force_path_style" toml:"force_path_style"`
}

// Duration is a time.Duration written as "1h", "30s" in config files
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Default returns a configuration for a local single-file ledger with
// simulated prices
func Default() *Config {
	return &Config{
		Account: AccountConfig{StartingCash: decimal.NewFromInt(10000)},
		History: HistoryConfig{Bucket: Duration{time.Hour}},
		Database: DatabaseConfig{
			Driver: "sqlite3",
			Path:   "./paper.db",
		},
		Market: MarketConfig{
			Provider: "simulated",
			Timeout:  Duration{10 * time.Second},
			Tick:     Duration{2 * time.Second},
			Seed:     1,
		},
		Redis:     RedisConfig{TTL: Duration{15 * time.Second}},
		Sentiment: SentimentConfig{Model: "gemini-2.5-flash", MaxHeadlines: 5},
		Server:    ServerConfig{Port: 8080, GinMode: "release", Workers: 5},
		Archive:   ArchiveConfig{Region: "us-east-1", Prefix: "exports"},
		LogLevel:  "info",
	}
}

var (
	validDrivers   = map[string]bool{"sqlite3": true, "postgres": true, "pgx": true}
	validProviders = map[string]bool{"simulated": true, "yahoo": true}
	validLogLevels = map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
)

// Validate checks the configuration and reports every problem at once
func (c *Config) Validate() error {
	var errs []string

	if !c.Account.StartingCash.IsPositive() {
		errs = append(errs, "account.starting_cash must be positive")
	}
	if c.History.Bucket.Duration < time.Minute {
		errs = append(errs, "history.bucket must be at least 1m")
	}

	switch {
	case !validDrivers[c.Database.Driver]:
		errs = append(errs, fmt.Sprintf("database.driver %q unknown (valid: sqlite3, postgres, pgx)", c.Database.Driver))
	case c.Database.Driver == "sqlite3" && c.Database.Path == "":
		errs = append(errs, "database.path is required for sqlite3")
	case c.Database.Driver != "sqlite3" && c.Database.DSN == "":
		errs = append(errs, "database.dsn is required for "+c.Database.Driver)
	}

	if !validProviders[c.Market.Provider] {
		errs = append(errs, fmt.Sprintf("market.provider %q unknown (valid: simulated, yahoo)", c.Market.Provider))
	}
	if c.Market.Timeout.Duration <= 0 {
		errs = append(errs, "market.timeout must be positive")
	}
	if c.Redis.Addr != "" && c.Redis.TTL.Duration <= 0 {
		errs = append(errs, "redis.ttl must be positive")
	}

	if c.Sentiment.APIKey == "" {
		errs = append(errs, "sentiment.api_key is required (or set GEMINI_API_KEY)")
	}
	if c.Sentiment.MaxHeadlines <= 0 {
		errs = append(errs, "sentiment.max_headlines must be positive")
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server.port %d out of range", c.Server.Port))
	}
	if c.Server.Workers <= 0 {
		errs = append(errs, "server.workers must be positive")
	}
	if c.Archive.Bucket != "" && c.Archive.Region == "" {
		errs = append(errs, "archive.region is required when archive.bucket is set")
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("log_level %q unknown (valid: debug, info, warn, error)", c.LogLevel))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}
