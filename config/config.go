package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	"stock-analyzer/internal/indicator"
	"stock-analyzer/internal/marketdata/fmp"
	"stock-analyzer/internal/signal"
)

// Config holds all application configuration. Values come from an optional
// YAML file, then environment overrides, then defaults.
type Config struct {
	// Watchlist refreshed by the scheduler, e.g. AAPL, RELIANCE.NS.
	Symbols []string `yaml:"symbols"`
	// HistoryBars is how many sessions to request per symbol. It is raised to
	// the indicator lookback when smaller.
	HistoryBars int  `yaml:"history_bars"`
	Strict      bool `yaml:"strict"`

	Indicators indicator.Config  `yaml:"indicators"`
	Thresholds signal.Thresholds `yaml:"thresholds"`

	Yahoo struct {
		BaseURL string        `yaml:"base_url"`
		Timeout time.Duration `yaml:"timeout"`
		Retries int           `yaml:"retries"`
	} `yaml:"yahoo"`

	// FMP serves company fundamentals; an empty key disables them.
	FMP struct {
		APIKey  string        `yaml:"api_key"`
		BaseURL string        `yaml:"base_url"`
		Timeout time.Duration `yaml:"timeout"`
	} `yaml:"fmp"`

	Cache struct {
		TTL time.Duration `yaml:"ttl"`
	} `yaml:"cache"`

	Redis struct {
		Addr     string `yaml:"addr"` // empty disables Redis
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`

	SQLite struct {
		Path        string `yaml:"path"` // empty disables persistence
		KeepReports int    `yaml:"keep_reports"`
	} `yaml:"sqlite"`

	// Telegram alerts are sent when both fields are set.
	Telegram struct {
		BotToken string `yaml:"bot_token"`
		ChatID   string `yaml:"chat_id"`
	} `yaml:"telegram"`

	HTTPAddr   string `yaml:"http_addr"`
	Cron       string `yaml:"cron"` // six fields, seconds first
	WebhookURL string `yaml:"webhook_url"`
	LogLevel   string `yaml:"log_level"`
}

// Default returns the built-in configuration.
func Default() *Config {
	c := &Config{
		Symbols:     []string{"AAPL"},
		HistoryBars: 252,
		Indicators:  indicator.DefaultConfig(),
		Thresholds:  signal.DefaultThresholds(),
		HTTPAddr:    ":8080",
		Cron:        "0 30 22 * * 1-5",
		LogLevel:    "info",
	}
	c.Yahoo.BaseURL = "https://query1.finance.yahoo.com"
	c.Yahoo.Timeout = 10 * time.Second
	c.Yahoo.Retries = 2
	c.FMP.BaseURL = fmp.DefaultBaseURL
	c.FMP.Timeout = 10 * time.Second
	c.Cache.TTL = 30 * time.Minute
	c.SQLite.Path = "data/analyzer.db"
	c.SQLite.KeepReports = 30
	return c
}

// Load reads the YAML file at path (a missing file is fine) and applies
// environment overrides on top.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if len(data) > 0 {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config: %w", err)
			}
		}
	}

	if v := getEnv("STOCK_SYMBOLS", ""); v != "" {
		cfg.Symbols = ParseSymbols(v)
	}
	cfg.Redis.Addr = getEnv("REDIS_ADDR", cfg.Redis.Addr)
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", cfg.Redis.Password)
	cfg.SQLite.Path = getEnv("SQLITE_PATH", cfg.SQLite.Path)
	cfg.HTTPAddr = getEnv("HTTP_ADDR", cfg.HTTPAddr)
	cfg.Yahoo.BaseURL = getEnv("YAHOO_BASE_URL", cfg.Yahoo.BaseURL)
	cfg.FMP.APIKey = getEnv("FMP_API_KEY", cfg.FMP.APIKey)
	cfg.FMP.BaseURL = getEnv("FMP_BASE_URL", cfg.FMP.BaseURL)
	cfg.Cron = getEnv("SCHEDULE_CRON", cfg.Cron)
	cfg.WebhookURL = getEnv("WEBHOOK_URL", cfg.WebhookURL)
	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)
	cfg.Telegram.BotToken = getEnv("TELEGRAM_BOT_TOKEN", cfg.Telegram.BotToken)
	cfg.Telegram.ChatID = getEnv("TELEGRAM_CHAT_ID", cfg.Telegram.ChatID)
	if v := getEnv("CACHE_TTL", ""); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			log.Printf("[config] ignoring invalid CACHE_TTL %q: %v", v, err)
		} else {
			cfg.Cache.TTL = d
		}
	}
	if v := getEnv("HISTORY_BARS", ""); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			log.Printf("[config] ignoring invalid HISTORY_BARS %q", v)
		} else {
			cfg.HistoryBars = n
		}
	}

	return cfg, nil
}

// Validate checks ranges and required values.
func (c *Config) Validate() error {
	if len(c.Symbols) == 0 {
		return fmt.Errorf("symbols: at least one symbol is required")
	}
	if err := c.Indicators.Validate(); err != nil {
		return fmt.Errorf("indicators: %w", err)
	}
	if err := c.Indicators.CheckRanges(); err != nil {
		return fmt.Errorf("indicators: %w", err)
	}
	if c.Thresholds.Oversold >= c.Thresholds.Overbought {
		return fmt.Errorf("thresholds: oversold=%g must be < overbought=%g",
			c.Thresholds.Oversold, c.Thresholds.Overbought)
	}
	if c.HistoryBars <= 0 {
		return fmt.Errorf("history_bars must be positive")
	}
	if c.Cache.TTL <= 0 {
		return fmt.Errorf("cache.ttl must be positive")
	}
	if c.SQLite.Path != "" && c.SQLite.KeepReports < 1 {
		return fmt.Errorf("sqlite.keep_reports must be >= 1")
	}
	if _, err := CronParser.Parse(c.Cron); err != nil {
		return fmt.Errorf("cron %q: %w", c.Cron, err)
	}
	return nil
}

// CronParser accepts six-field specs with a leading seconds field.
var CronParser = cron.NewParser(
	cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// ParseSymbols splits a comma-separated list, trimming and upper-casing.
func ParseSymbols(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.ToUpper(strings.TrimSpace(p))
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}

func getEnv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}
