package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/parkerwe/hindcast/internal/core"
	"github.com/spf13/viper"
)

type Config struct {
	Backtest BacktestConfig `mapstructure:"backtest"`
	Data     DataConfig     `mapstructure:"data"`
	Archive  ArchiveConfig  `mapstructure:"archive"`
	LLM      LLMConfig      `mapstructure:"llm"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	Log      LogConfig      `mapstructure:"log"`
}

type BacktestConfig struct {
	Symbols            []string         `mapstructure:"symbols"`
	StartDate          string           `mapstructure:"start_date"` // ISO 8601 calendar date
	EndDate            string           `mapstructure:"end_date"`
	InitialCapital     float64          `mapstructure:"initial_capital"`
	Strategy           StrategyConfig   `mapstructure:"strategy"`
	Allocation         AllocationConfig `mapstructure:"allocation"`
	RebalanceCheckDays int              `mapstructure:"rebalance_check_days"`
}

type StrategyConfig struct {
	Name   string             `mapstructure:"name"`
	Params map[string]float64 `mapstructure:"params"`
}

type AllocationConfig struct {
	Enabled           bool               `mapstructure:"enabled"`
	Policy            string             `mapstructure:"policy"`
	MinPositionWeight float64            `mapstructure:"min_position_weight"`
	MaxPositionWeight float64            `mapstructure:"max_position_weight"`
	CashReservePct    float64            `mapstructure:"cash_reserve_pct"`
	CustomWeights     map[string]float64 `mapstructure:"custom_weights"`
	Rebalance         RebalanceConfig    `mapstructure:"rebalance"`
}

type RebalanceConfig struct {
	Enabled      bool    `mapstructure:"enabled"`
	Threshold    float64 `mapstructure:"threshold"`
	IntervalDays int     `mapstructure:"interval_days"`
}

type DataConfig struct {
	Type string `mapstructure:"type"` // "csv"
	Dir  string `mapstructure:"dir"`  // For csv
}

type ArchiveConfig struct {
	Enabled bool     `mapstructure:"enabled"`
	Type    string   `mapstructure:"type"` // "localfs" or "s3"
	Path    string   `mapstructure:"path"` // For localfs
	S3      S3Config `mapstructure:"s3"`   // For S3
}

type S3Config struct {
	Bucket    string `mapstructure:"bucket"`
	Endpoint  string `mapstructure:"endpoint"`
	Region    string `mapstructure:"region"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Prefix    string `mapstructure:"prefix"`
}

type LLMConfig struct {
	Provider string       `mapstructure:"provider"`
	Claude   ClaudeConfig `mapstructure:"claude"`
	OpenAI   OpenAIConfig `mapstructure:"openai"`
	Ollama   OllamaConfig `mapstructure:"ollama"`
}

type ClaudeConfig struct {
	APIKey string `mapstructure:"api_key"`
	Model  string `mapstructure:"model"`
}

type OpenAIConfig struct {
	APIKey string `mapstructure:"api_key"`
	Model  string `mapstructure:"model"`
}

type OllamaConfig struct {
	Endpoint string `mapstructure:"endpoint"`
	Model    string `mapstructure:"model"`
}

// MetricsConfig holds the optional Prometheus listener settings.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Listen  string `mapstructure:"listen"`
	Path    string `mapstructure:"path"`
}

type LogConfig struct {
	Development bool `mapstructure:"development"`
}

// Load reads configuration from file
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	// Support environment variable overrides
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	// Expand environment variables in string values
	for _, key := range v.AllKeys() {
		val := v.GetString(key)
		if strings.HasPrefix(val, "${") && strings.HasSuffix(val, "}") {
			envKey := strings.TrimSuffix(strings.TrimPrefix(val, "${"), "}")
			v.Set(key, os.Getenv(envKey))
		}
	}

	cfg := Defaults()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	return cfg, nil
}

// Defaults returns a config with sensible defaults
func Defaults() *Config {
	return &Config{
		Backtest: BacktestConfig{
			InitialCapital: 10000,
			Strategy: StrategyConfig{
				Name: "ma_crossover",
			},
			Allocation: AllocationConfig{
				Enabled:           true,
				Policy:            "equal_weight",
				MaxPositionWeight: 0.35,
				CashReservePct:    0.05,
				Rebalance: RebalanceConfig{
					Enabled:      true,
					Threshold:    0.05,
					IntervalDays: 30,
				},
			},
			RebalanceCheckDays: 5,
		},
		Data: DataConfig{
			Type: "csv",
			Dir:  "data",
		},
		Archive: ArchiveConfig{
			Type: "localfs",
			Path: "runs",
		},
		Metrics: MetricsConfig{
			Listen: ":9090",
			Path:   "/metrics",
		},
	}
}

// DateRange parses the configured ISO 8601 date strings.
func (b BacktestConfig) DateRange() (time.Time, time.Time, error) {
	start, err := time.Parse("2006-01-02", b.StartDate)
	if err != nil {
		return time.Time{}, time.Time{}, core.Wrapf(core.ErrConfigInvalid, "start_date %q is not a calendar date", b.StartDate)
	}
	end, err := time.Parse("2006-01-02", b.EndDate)
	if err != nil {
		return time.Time{}, time.Time{}, core.Wrapf(core.ErrConfigInvalid, "end_date %q is not a calendar date", b.EndDate)
	}
	if end.Before(start) {
		return time.Time{}, time.Time{}, core.Wrapf(core.ErrConfigInvalid, "end_date %s is before start_date %s", b.EndDate, b.StartDate)
	}
	return start, end, nil
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	b := c.Backtest
	if len(b.Symbols) == 0 {
		return core.Wrapf(core.ErrConfigMissing, "backtest.symbols is required")
	}
	for _, sym := range b.Symbols {
		if sym == "" {
			return core.Wrapf(core.ErrConfigInvalid, "backtest.symbols contains an empty symbol")
		}
	}
	if b.InitialCapital <= 0 {
		return core.Wrapf(core.ErrConfigInvalid, "initial_capital must be positive, got %v", b.InitialCapital)
	}
	if _, _, err := b.DateRange(); err != nil {
		return err
	}
	if b.Strategy.Name == "" {
		return core.Wrapf(core.ErrConfigMissing, "backtest.strategy.name is required")
	}

	a := b.Allocation
	if a.MinPositionWeight < 0 || a.MaxPositionWeight > 1 || a.MinPositionWeight > a.MaxPositionWeight {
		return core.Wrapf(core.ErrConfigInvalid, "allocation weight bounds [%v, %v] invalid", a.MinPositionWeight, a.MaxPositionWeight)
	}
	if a.CashReservePct < 0 || a.CashReservePct >= 1 {
		return core.Wrapf(core.ErrConfigInvalid, "cash_reserve_pct %v must be in [0,1)", a.CashReservePct)
	}
	if a.Rebalance.Enabled {
		if a.Rebalance.Threshold < 0 {
			return core.Wrapf(core.ErrConfigInvalid, "rebalance threshold %v cannot be negative", a.Rebalance.Threshold)
		}
		if a.Rebalance.IntervalDays <= 0 {
			return core.Wrapf(core.ErrConfigInvalid, "rebalance interval %d must be positive", a.Rebalance.IntervalDays)
		}
	}

	switch c.Data.Type {
	case "csv":
		if c.Data.Dir == "" {
			return core.Wrapf(core.ErrConfigMissing, "data.dir required for the csv source")
		}
	default:
		return core.Wrapf(core.ErrConfigInvalid, "unknown data source type %q", c.Data.Type)
	}

	if c.Archive.Enabled {
		switch c.Archive.Type {
		case "localfs":
			if c.Archive.Path == "" {
				return core.Wrapf(core.ErrConfigMissing, "archive.path required for localfs archiving")
			}
		case "s3":
			if c.Archive.S3.Bucket == "" {
				return core.Wrapf(core.ErrConfigMissing, "archive.s3.bucket required for s3 archiving")
			}
		default:
			return core.Wrapf(core.ErrConfigInvalid, "unknown archive type %q", c.Archive.Type)
		}
	}

	// LLM validation - if provider set, check config exists
	if c.LLM.Provider != "" {
		switch c.LLM.Provider {
		case "claude":
			if c.LLM.Claude.APIKey == "" {
				return core.Wrapf(core.ErrConfigMissing, "claude api_key required when provider is claude")
			}
		case "openai":
			if c.LLM.OpenAI.APIKey == "" {
				return core.Wrapf(core.ErrConfigMissing, "openai api_key required when provider is openai")
			}
		case "ollama":
			if c.LLM.Ollama.Endpoint == "" {
				return core.Wrapf(core.ErrConfigMissing, "ollama endpoint required when provider is ollama")
			}
		default:
			return core.Wrapf(core.ErrConfigInvalid, "unknown llm provider %q", c.LLM.Provider)
		}
	}

	return nil
}
