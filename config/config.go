// Package config loads gridbot's runtime configuration from a YAML file
// (or sane defaults if absent) with secrets overridable via GRIDBOT_*
// environment variables, loaded first from a .env file if one exists.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// ExchangeConfig holds the credentials and mode the Exchange Gateway is
// constructed with.
type ExchangeConfig struct {
	APIKey     string `mapstructure:"api_key"`
	SecretKey  string `mapstructure:"secret_key"`
	UseTestnet bool   `mapstructure:"use_testnet"`
	Paper      bool   `mapstructure:"paper"` // true routes through the Paper Trading Gateway
}

// LedgerConfig selects the Ledger's backing store.
type LedgerConfig struct {
	Driver string `mapstructure:"driver"` // "sqlite" or "postgres"
	DSN    string `mapstructure:"dsn"`
}

// SentimentConfig enables/disables the sentiment modulator and names the
// external keys its signal collectors read from.
type SentimentConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	OpenAIKey      string `mapstructure:"openai_key"`
	CryptoPanicKey string `mapstructure:"cryptopanic_key"`
}

// EngineConfig carries the cycle defaults cmd/gridbot wires into grid.Config.
type EngineConfig struct {
	CycleIntervalSeconds int     `mapstructure:"cycle_interval_seconds"`
	StopLossPct          float64 `mapstructure:"stop_loss_pct"`
	ProfitLockThreshold  float64 `mapstructure:"profit_lock_threshold"`
	TrailingPct          float64 `mapstructure:"trailing_pct"`
	RebalanceThreshold   float64 `mapstructure:"rebalance_threshold"`
	StaleRange           float64 `mapstructure:"stale_range"`
	MaxPositionPercent   float64 `mapstructure:"max_position_percent"`
	MaxRiskPerTrade      float64 `mapstructure:"max_risk_per_trade"`
	MinPositionPercent   float64 `mapstructure:"min_position_percent"`
	KellyFraction        float64 `mapstructure:"kelly_fraction"`
	ReserveUSD           string  `mapstructure:"reserve_usd"`
	TakerFee             float64 `mapstructure:"taker_fee"`

	DipBuyerEnabled    bool    `mapstructure:"dip_buyer_enabled"`
	DipBuyerDropPct    float64 `mapstructure:"dip_buyer_drop_pct"`
	DipBuyerLookback   int     `mapstructure:"dip_buyer_lookback"`
	DipBuyerReserveUSD string  `mapstructure:"dip_buyer_reserve_usd"`

	ProfitTakerEnabled bool    `mapstructure:"profit_taker_enabled"`
	TakeProfitPct      float64 `mapstructure:"take_profit_pct"`
}

// LogConfig controls the logger's verbosity.
type LogConfig struct {
	Level string `mapstructure:"level"`
}

// Config is gridbot's top-level configuration.
type Config struct {
	Exchange  ExchangeConfig   `mapstructure:"exchange"`
	Ledger    LedgerConfig     `mapstructure:"ledger"`
	Sentiment SentimentConfig  `mapstructure:"sentiment"`
	Engine    EngineConfig     `mapstructure:"engine"`
	Log       LogConfig        `mapstructure:"log"`
}

// Defaults mirrors grid.DefaultConfig's documented thresholds, expressed
// as the viper defaults a missing config.yaml falls back to.
func setDefaults(v *viper.Viper) {
	v.SetDefault("exchange.api_key", "")
	v.SetDefault("exchange.secret_key", "")
	v.SetDefault("sentiment.openai_key", "")
	v.SetDefault("sentiment.cryptopanic_key", "")
	v.SetDefault("exchange.use_testnet", true)
	v.SetDefault("exchange.paper", true)
	v.SetDefault("ledger.driver", "sqlite")
	v.SetDefault("ledger.dsn", "gridbot.db")
	v.SetDefault("sentiment.enabled", false)
	v.SetDefault("log.level", "info")

	v.SetDefault("engine.cycle_interval_seconds", 60)
	v.SetDefault("engine.stop_loss_pct", 0.15)
	v.SetDefault("engine.profit_lock_threshold", 0.03)
	v.SetDefault("engine.trailing_pct", 0.05)
	v.SetDefault("engine.rebalance_threshold", 0.10)
	v.SetDefault("engine.stale_range", 0.05)
	v.SetDefault("engine.max_position_percent", 0.10)
	v.SetDefault("engine.max_risk_per_trade", 0.02)
	v.SetDefault("engine.min_position_percent", 0.001)
	v.SetDefault("engine.kelly_fraction", 0.25)
	v.SetDefault("engine.reserve_usd", "0")
	v.SetDefault("engine.taker_fee", 0.001)
	v.SetDefault("engine.dip_buyer_drop_pct", 0.05)
	v.SetDefault("engine.dip_buyer_lookback", 20)
	v.SetDefault("engine.dip_buyer_reserve_usd", "0")
	v.SetDefault("engine.take_profit_pct", 0.08)
}

// Load reads path (if it exists) as YAML, applying documented defaults for
// anything missing, then overlays GRIDBOT_* environment variables —
// loaded from a .env file first if one is present in the working
// directory. A missing config file is not an error: Load returns pure
// defaults plus whatever the environment supplies.
func Load(path string) (*Config, error) {
	_ = godotenv.Load() // best-effort; absence of .env is normal in production

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("GRIDBOT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound && !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("read config %s: %w", path, err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &cfg, nil
}

// Validate checks the fields required to start trading.
func (c *Config) Validate() error {
	if !c.Exchange.Paper {
		if c.Exchange.APIKey == "" || c.Exchange.SecretKey == "" {
			return fmt.Errorf("exchange.api_key and exchange.secret_key are required unless exchange.paper is true")
		}
	}
	if c.Ledger.Driver != "sqlite" && c.Ledger.Driver != "postgres" {
		return fmt.Errorf("ledger.driver must be \"sqlite\" or \"postgres\", got %q", c.Ledger.Driver)
	}
	if c.Ledger.DSN == "" {
		return fmt.Errorf("ledger.dsn is required")
	}
	return nil
}
