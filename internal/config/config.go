package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"TrendSentinel/internal/analyzer"
	"TrendSentinel/internal/barstore"
	"TrendSentinel/internal/calculator"
	"TrendSentinel/internal/collector"
	"TrendSentinel/internal/logger"
	"TrendSentinel/internal/model"
	"TrendSentinel/internal/notifier"
	"TrendSentinel/internal/strategy"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

// DefaultPath is used when neither -config nor CONFIG_PATH is given.
const DefaultPath = "configs/config.yaml"

// CronParser matches the scheduler's six-field (with seconds) syntax.
var CronParser = cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// Config holds all application configuration.
type Config struct {
	Tickers    []string                `yaml:"tickers"`
	Timeframes []model.Timeframe       `yaml:"timeframes"`
	Indicators calculator.Params       `yaml:"indicators"`
	Rules      strategy.Rules          `yaml:"rules"`
	Analyzer   analyzer.Options        `yaml:"analyzer"`
	DataSource collector.Options       `yaml:"data_source"`
	Cache      barstore.Options        `yaml:"cache"`
	Telegram   notifier.TelegramConfig `yaml:"telegram"`
	Schedule   struct {
		ScanCron   string `yaml:"scan_cron"`
		RunOnStart bool   `yaml:"run_on_start"`
	} `yaml:"schedule"`
	Metrics struct {
		Addr string `yaml:"addr"`
	} `yaml:"metrics"`
	Log   logger.Config `yaml:"log"`
	Proxy string        `yaml:"proxy"`
}

// DefaultTimeframes mirrors the hourly, daily and weekly views.
func DefaultTimeframes() []model.Timeframe {
	return []model.Timeframe{
		{Label: "1 Hour", Interval: model.Interval60m, Lookback: "7d"},
		{Label: "Daily", Interval: model.Interval1d, Lookback: "6mo"},
		{Label: "Weekly", Interval: model.Interval1wk, Lookback: "2y"},
	}
}

// Load reads config from a YAML file, then an optional .env file, then
// applies environment variable overrides and defaults. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	cfg.applyEnv()
	cfg.applyDefaults()
	cfg.Tickers = NormalizeTickers(cfg.Tickers)
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("SENTINEL_TICKERS"); v != "" {
		c.Tickers = strings.Split(v, ",")
	}
	if v := os.Getenv("DATA_PROVIDER"); v != "" {
		c.DataSource.Provider = v
	}
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		c.Telegram.BotToken = v
	}
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		c.Telegram.ChatID = v
	}
	switch c.DataSource.Provider {
	case "binance":
		if v := os.Getenv("BINANCE_API_KEY"); v != "" {
			c.DataSource.APIKey = v
		}
		if v := os.Getenv("BINANCE_SECRET_KEY"); v != "" {
			c.DataSource.APISecret = v
		}
	case "rest":
		if v := os.Getenv("REST_BASE_URL"); v != "" {
			c.DataSource.BaseURL = v
		}
		if v := os.Getenv("REST_API_KEY"); v != "" {
			c.DataSource.APIKey = v
		}
	}
	if v := os.Getenv("HTTPS_PROXY"); v != "" {
		c.Proxy = v
	}
	if v := os.Getenv("CRON_SCAN"); v != "" {
		c.Schedule.ScanCron = v
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		c.Cache.SQLitePath = v
	}
	if v := os.Getenv("METRICS_ADDR"); v != "" {
		c.Metrics.Addr = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
}

func (c *Config) applyDefaults() {
	if len(c.Timeframes) == 0 {
		c.Timeframes = DefaultTimeframes()
	}

	dp := calculator.DefaultParams()
	if c.Indicators.EMAFast == 0 {
		c.Indicators.EMAFast = dp.EMAFast
	}
	if c.Indicators.EMASlow == 0 {
		c.Indicators.EMASlow = dp.EMASlow
	}
	if c.Indicators.RSIPeriod == 0 {
		c.Indicators.RSIPeriod = dp.RSIPeriod
	}
	if c.Indicators.Seed == "" {
		c.Indicators.Seed = dp.Seed
	}

	dr := strategy.DefaultRules()
	if c.Rules.TrendRSI == 0 {
		c.Rules.TrendRSI = dr.TrendRSI
	}
	if c.Rules.PullbackRSI == 0 {
		c.Rules.PullbackRSI = dr.PullbackRSI
	}
	if c.Rules.ExhaustionRSI == 0 {
		c.Rules.ExhaustionRSI = dr.ExhaustionRSI
	}
	if c.Rules.ZoneWindow == 0 {
		c.Rules.ZoneWindow = dr.ZoneWindow
	}
	if c.Rules.ZoneTolerance == 0 {
		c.Rules.ZoneTolerance = dr.ZoneTolerance
	}

	if c.Analyzer.Concurrency == 0 {
		c.Analyzer.Concurrency = 4
	}
	if c.Analyzer.FetchTimeout == 0 {
		c.Analyzer.FetchTimeout = 15 * time.Second
	}
	if c.DataSource.Provider == "" {
		c.DataSource.Provider = "yahoo"
	}
	if c.DataSource.RatePerSec == 0 {
		c.DataSource.RatePerSec = 2
	}
	if c.Cache.Backend == "" {
		c.Cache.Backend = "memory"
	}
	if c.Cache.TTL == 0 {
		c.Cache.TTL = 5 * time.Minute
	}
	if c.Cache.SQLitePath == "" {
		c.Cache.SQLitePath = "data/trend_sentinel.db"
	}
	if c.Schedule.ScanCron == "" {
		c.Schedule.ScanCron = "0 0 22 * * 1-5"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

// Validate checks that all fields are usable.
func (c *Config) Validate() error {
	if len(c.Timeframes) == 0 {
		return fmt.Errorf("at least one timeframe is required")
	}
	seen := make(map[string]bool, len(c.Timeframes))
	for i, tf := range c.Timeframes {
		if tf.Label == "" {
			return fmt.Errorf("timeframes[%d].label is required", i)
		}
		if seen[tf.Label] {
			return fmt.Errorf("duplicate timeframe label %q", tf.Label)
		}
		seen[tf.Label] = true
		if !tf.Interval.Valid() {
			return fmt.Errorf("timeframe %q: unknown interval %q", tf.Label, tf.Interval)
		}
		if _, err := tf.Lookback.Duration(); err != nil {
			return fmt.Errorf("timeframe %q: %w", tf.Label, err)
		}
	}

	if c.Indicators.EMAFast <= 0 || c.Indicators.EMASlow <= 0 || c.Indicators.RSIPeriod <= 0 {
		return fmt.Errorf("indicator periods must be positive")
	}
	if c.Indicators.Seed != calculator.SeedSMA && c.Indicators.Seed != calculator.SeedFirst {
		return fmt.Errorf("indicators.ema_seed must be sma or first, got %q", c.Indicators.Seed)
	}
	for name, v := range map[string]float64{
		"trend_rsi":      c.Rules.TrendRSI,
		"pullback_rsi":   c.Rules.PullbackRSI,
		"exhaustion_rsi": c.Rules.ExhaustionRSI,
	} {
		if v <= 0 || v >= 100 {
			return fmt.Errorf("rules.%s must be within (0, 100), got %v", name, v)
		}
	}
	if c.Rules.ZoneWindow <= 0 {
		return fmt.Errorf("rules.zone_window must be positive")
	}
	if c.Rules.ZoneTolerance <= 0 || c.Rules.ZoneTolerance >= 1 {
		return fmt.Errorf("rules.zone_tolerance must be within (0, 1)")
	}

	if c.Analyzer.Concurrency <= 0 {
		return fmt.Errorf("analyzer.concurrency must be positive")
	}
	if c.Analyzer.FetchTimeout <= 0 {
		return fmt.Errorf("analyzer.fetch_timeout must be positive")
	}

	switch c.DataSource.Provider {
	case "yahoo", "binance", "mock":
	case "rest":
		if c.DataSource.BaseURL == "" {
			return fmt.Errorf("data_source.base_url is required for the rest provider")
		}
	default:
		return fmt.Errorf("unknown data_source.provider %q", c.DataSource.Provider)
	}

	switch c.Cache.Backend {
	case "none", "memory", "sqlite":
	default:
		return fmt.Errorf("unknown cache.backend %q", c.Cache.Backend)
	}

	if (c.Telegram.BotToken == "") != (c.Telegram.ChatID == "") {
		return fmt.Errorf("telegram.bot_token and telegram.chat_id must be set together")
	}
	if _, err := CronParser.Parse(c.Schedule.ScanCron); err != nil {
		return fmt.Errorf("schedule.scan_cron: %w", err)
	}
	if _, err := zapcore.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	return nil
}

// NormalizeTickers trims and uppercases symbols, dropping empties and
// duplicates while keeping first-seen order.
func NormalizeTickers(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]bool, len(in))
	for _, t := range in {
		t = strings.ToUpper(strings.TrimSpace(t))
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}
