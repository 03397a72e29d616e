package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stock-analyzer/internal/indicator"
)

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)

	assert.Equal(t, 20, cfg.Indicators.SMAShort)
	assert.Equal(t, 50, cfg.Indicators.SMALong)
	assert.Equal(t, 14, cfg.Indicators.RSIPeriod)
	assert.Equal(t, 12, cfg.Indicators.MACDFast)
	assert.Equal(t, 26, cfg.Indicators.MACDSlow)
	assert.Equal(t, 9, cfg.Indicators.MACDSignal)
	assert.Equal(t, 30*time.Minute, cfg.Cache.TTL)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_YAMLThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg.yaml")
	yml := `
symbols: [MSFT, TCS.NS]
indicators:
  sma_short: 10
  sma_long: 100
cache:
  ttl: 5m
sqlite:
  keep_reports: 7
`
	require.NoError(t, os.WriteFile(path, []byte(yml), 0o644))
	t.Setenv("REDIS_ADDR", "redis:6379")
	t.Setenv("CACHE_TTL", "90s")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"MSFT", "TCS.NS"}, cfg.Symbols)
	assert.Equal(t, 10, cfg.Indicators.SMAShort)
	assert.Equal(t, 100, cfg.Indicators.SMALong)
	// keys absent from the file keep their defaults
	assert.Equal(t, 14, cfg.Indicators.RSIPeriod)
	assert.Equal(t, 7, cfg.SQLite.KeepReports)
	assert.Equal(t, "redis:6379", cfg.Redis.Addr)
	assert.Equal(t, 90*time.Second, cfg.Cache.TTL)
}

func TestLoad_BadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("symbols: [unterminated"), 0o644))
	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoad_SymbolsFromEnv(t *testing.T) {
	t.Setenv("STOCK_SYMBOLS", " aapl, ,infy.ns ")
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, []string{"AAPL", "INFY.NS"}, cfg.Symbols)
}

func TestLoad_TelegramFromYAMLAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg.yaml")
	require.NoError(t, os.WriteFile(path, []byte("telegram:\n  bot_token: from-file\n  chat_id: \"-100\"\n"), 0o644))
	t.Setenv("TELEGRAM_BOT_TOKEN", "from-env")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Telegram.BotToken)
	assert.Equal(t, "-100", cfg.Telegram.ChatID)
}

func TestLoad_FMP(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Empty(t, cfg.FMP.APIKey)
	assert.Equal(t, "https://financialmodelingprep.com/api/v3", cfg.FMP.BaseURL)
	assert.Equal(t, 10*time.Second, cfg.FMP.Timeout)

	path := filepath.Join(t.TempDir(), "cfg.yaml")
	require.NoError(t, os.WriteFile(path, []byte("fmp:\n  api_key: from-file\n  timeout: 3s\n"), 0o644))
	t.Setenv("FMP_API_KEY", "from-env")
	t.Setenv("FMP_BASE_URL", "http://localhost:9999")

	cfg, err = Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.FMP.APIKey)
	assert.Equal(t, "http://localhost:9999", cfg.FMP.BaseURL)
	assert.Equal(t, 3*time.Second, cfg.FMP.Timeout)
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
		is     error
	}{
		{"no symbols", func(c *Config) { c.Symbols = nil }, nil},
		{"short above long", func(c *Config) { c.Indicators.SMAShort = 60 }, indicator.ErrInvalidConfig},
		{"rsi out of range", func(c *Config) { c.Indicators.RSIPeriod = 40 }, indicator.ErrOutOfRange},
		{"thresholds inverted", func(c *Config) { c.Thresholds.Oversold = 80 }, nil},
		{"zero ttl", func(c *Config) { c.Cache.TTL = 0 }, nil},
		{"keep zero reports", func(c *Config) { c.SQLite.KeepReports = 0 }, nil},
		{"bad cron", func(c *Config) { c.Cron = "every day" }, nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := Default()
			tc.mutate(c)
			err := c.Validate()
			require.Error(t, err)
			if tc.is != nil {
				assert.True(t, errors.Is(err, tc.is), "got %v", err)
			}
		})
	}
}
