package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func clearEnv(t *testing.T) {
	for _, k := range []string{"TELEGRAM_BOT_TOKEN", "TELEGRAM_CHAT_ID", "DATA_PROVIDER", "INITIAL_CAPITAL", "CRON_CYCLE"} {
		t.Setenv(k, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "yahoo", cfg.DataSource.Provider)
	assert.Equal(t, "features", cfg.Predictions.Forecast.Model)
	assert.Equal(t, 100, cfg.Predictions.Forecast.MinRows)
	assert.Equal(t, 1440*time.Hour, cfg.Predictions.Forecast.Lookback)
	assert.Equal(t, 10000.0, cfg.Portfolio.InitialCapital)
	assert.Equal(t, 5, cfg.Portfolio.Decision.MaxPositions)
	assert.Equal(t, 0.25, cfg.Portfolio.Decision.BudgetFraction)
	assert.Equal(t, 100.0, cfg.Portfolio.Decision.MinTicket)
	assert.Equal(t, 3, cfg.Strategy.Reinforce)
	assert.Equal(t, 3.5, cfg.Risk.WildMultiplier)
	assert.Equal(t, "0 0 * * * *", cfg.Schedule.CycleCron)
	assert.False(t, cfg.TelegramEnabled())
}

func TestLoadYAMLAndEnv(t *testing.T) {
	tickers := writeFile(t, "tickers.txt", "# tech\n[US]\naapl\n\nmsft\nNVDA\n")
	path := writeFile(t, "config.yaml", `
data_source:
  provider: barsapi
  base_url: http://bars.local
  request_delay: 250ms
portfolio:
  initial_capital: 5000
  account_currency: eur
  candidates: [NVDA, TSLA]
  max_positions: 3
  lookback: 9000h
  tickers_file: `+tickers+`
strategy:
  overbought: 75
  oversold: 25
  reinforce: 2
  sell: -2
predictions:
  window: 48
schedule:
  predict_cron: "0 30 8 * * 1-5"
`)
	clearEnv(t)
	t.Setenv("TELEGRAM_BOT_TOKEN", "token")
	t.Setenv("TELEGRAM_CHAT_ID", "42")
	t.Setenv("INITIAL_CAPITAL", "7500")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "barsapi", cfg.DataSource.Provider)
	assert.Equal(t, 250*time.Millisecond, cfg.DataSource.RequestDelay)
	assert.Equal(t, 7500.0, cfg.Portfolio.InitialCapital)
	assert.Equal(t, "EUR", cfg.Portfolio.AccountCurrency)
	assert.Equal(t, []string{"NVDA", "TSLA", "AAPL", "MSFT"}, cfg.Portfolio.Decision.Candidates)
	assert.Equal(t, cfg.Portfolio.Decision.Candidates, cfg.Predictions.Tickers)
	assert.Equal(t, 3, cfg.Portfolio.Decision.MaxPositions)
	assert.Equal(t, 9000*time.Hour, cfg.Portfolio.Decision.Lookback)
	assert.Equal(t, 2, cfg.Strategy.Reinforce)
	assert.Equal(t, 48, cfg.Predictions.Forecast.Window)
	assert.Equal(t, "^GSPC", cfg.Predictions.Forecast.MarketIndex)
	assert.Equal(t, "0 30 8 * * 1-5", cfg.Schedule.PredictCron)
	assert.True(t, cfg.TelegramEnabled())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown provider", func(c *Config) { c.DataSource.Provider = "csv" }},
		{"barsapi without url", func(c *Config) { c.DataSource.Provider = "barsapi" }},
		{"negative capital", func(c *Config) { c.Portfolio.InitialCapital = -1 }},
		{"bad currency", func(c *Config) { c.Portfolio.AccountCurrency = "EURO" }},
		{"budget over 1", func(c *Config) { c.Portfolio.Decision.BudgetFraction = 1.5 }},
		{"inverted thresholds", func(c *Config) { c.Strategy.Sell = 4 }},
		{"inverted natr", func(c *Config) { c.Risk.LowNATR = 5 }},
		{"half telegram", func(c *Config) { c.Telegram.BotToken = "x" }},
		{"unknown forecast model", func(c *Config) { c.Predictions.Forecast.Model = "xgboost" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
			require.NoError(t, err)
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLoadRejectsBadCapital(t *testing.T) {
	t.Setenv("INITIAL_CAPITAL", "lots")
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestLoadPartialSectionsKeepDefaults(t *testing.T) {
	clearEnv(t)
	path := writeFile(t, "config.yaml", "strategy:\n  overbought: 75\n  sell: 0\nrisk:\n  take_profit_pct: 0.3\n")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 75.0, cfg.Strategy.Overbought)
	assert.Equal(t, 30.0, cfg.Strategy.Oversold)
	assert.Equal(t, 3, cfg.Strategy.Reinforce)
	assert.Equal(t, 0, cfg.Strategy.Sell)
	assert.Equal(t, 0.3, cfg.Risk.TakeProfitPct)
	assert.Equal(t, 2.0, cfg.Risk.LowNATR)
	assert.Equal(t, 3.5, cfg.Risk.WildMultiplier)
}
