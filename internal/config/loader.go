package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Load builds the configuration: defaults, then the file at path (if path
// is not empty), then .env, then PAPER_* environment variables. The result
// is not validated.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		if err := decodeFile(path, cfg); err != nil {
			return nil, err
		}
	}

	// .env is optional
	_ = godotenv.Load()

	applyEnvOverrides(cfg)
	return cfg, nil
}

// LoadFromFile reads a config file on top of the defaults. The format
// follows the extension: .toml, otherwise YAML with a JSON fallback.
func LoadFromFile(path string) (*Config, error) {
	cfg := Default()
	if err := decodeFile(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func decodeFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	if strings.EqualFold(filepath.Ext(path), ".toml") {
		if _, err := toml.Decode(string(data), cfg); err != nil {
			return fmt.Errorf("parse toml config: %w", err)
		}
		return nil
	}

	// Try YAML first, fall back to JSON
	if err := yaml.Unmarshal(data, cfg); err != nil {
		if jerr := json.Unmarshal(data, cfg); jerr != nil {
			return fmt.Errorf("parse config (tried YAML and JSON): %w", err)
		}
	}
	return nil
}

// SaveToFile writes the configuration in the format matching the extension
func (c *Config) SaveToFile(path string) error {
	var (
		data []byte
		err  error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err = yaml.Marshal(c)
	case ".toml":
		var b strings.Builder
		err = toml.NewEncoder(&b).Encode(c)
		data = []byte(b.String())
	default:
		data, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	setDecimal(&cfg.Account.StartingCash, "PAPER_STARTING_CASH")
	setDuration(&cfg.History.Bucket, "PAPER_HISTORY_BUCKET")

	setStr(&cfg.Database.Driver, "PAPER_DATABASE_DRIVER")
	setStr(&cfg.Database.Path, "PAPER_DATABASE_PATH")
	setStr(&cfg.Database.DSN, "PAPER_DATABASE_DSN")

	setStr(&cfg.Market.Provider, "PAPER_MARKET_PROVIDER")
	setStr(&cfg.Market.BaseURL, "PAPER_MARKET_BASE_URL")
	setDuration(&cfg.Market.Timeout, "PAPER_MARKET_TIMEOUT")
	setDuration(&cfg.Market.Tick, "PAPER_MARKET_TICK")

	setStr(&cfg.Redis.Addr, "PAPER_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "PAPER_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "PAPER_REDIS_DB")
	setDuration(&cfg.Redis.TTL, "PAPER_REDIS_TTL")

	setStr(&cfg.Sentiment.APIKey, "GEMINI_API_KEY")
	setStr(&cfg.Sentiment.APIKey, "PAPER_SENTIMENT_API_KEY")
	setStr(&cfg.Sentiment.Model, "PAPER_SENTIMENT_MODEL")
	setInt(&cfg.Sentiment.MaxHeadlines, "PAPER_SENTIMENT_MAX_HEADLINES")

	setInt(&cfg.Server.Port, "PAPER_SERVER_PORT")
	setStr(&cfg.Server.GinMode, "PAPER_SERVER_GIN_MODE")
	setInt(&cfg.Server.Workers, "PAPER_SERVER_WORKERS")

	setStr(&cfg.Archive.Bucket, "PAPER_ARCHIVE_BUCKET")
	setStr(&cfg.Archive.Region, "PAPER_ARCHIVE_REGION")
	setStr(&cfg.Archive.Endpoint, "PAPER_ARCHIVE_ENDPOINT")
	setStr(&cfg.Archive.Prefix, "PAPER_ARCHIVE_PREFIX")
	setStr(&cfg.Archive.AccessKey, "PAPER_ARCHIVE_ACCESS_KEY")
	setStr(&cfg.Archive.SecretKey, "PAPER_ARCHIVE_SECRET_KEY")
	setBool(&cfg.Archive.ForcePathStyle, "PAPER_ARCHIVE_FORCE_PATH_STYLE")

	setStr(&cfg.LogLevel, "PAPER_LOG_LEVEL")
}

// Each setter only touches dst when the variable is set and parses.

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setDecimal(dst *decimal.Decimal, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := decimal.NewFromString(v); err == nil {
			*dst = d
		}
	}
}
