package config

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"FinDash/internal/decision"
	"FinDash/internal/prediction"
	"FinDash/internal/risk"
	"FinDash/internal/strategy"
)

// Config holds all application configuration.
type Config struct {
	DataSource struct {
		Provider     string        `yaml:"provider"` // yahoo or barsapi
		BaseURL      string        `yaml:"base_url"`
		APIKey       string        `yaml:"api_key"`
		RequestDelay time.Duration `yaml:"request_delay"`
	} `yaml:"data_source"`
	Portfolio struct {
		StateFile       string  `yaml:"state_file"`
		InitialCapital  float64 `yaml:"initial_capital"`
		AccountCurrency string  `yaml:"account_currency"`
		QuoteCurrency   string  `yaml:"quote_currency"`
		// TickersFile lists extra candidates, one per line.
		TickersFile string          `yaml:"tickers_file"`
		Decision    decision.Config `yaml:",inline"`
	} `yaml:"portfolio"`
	Strategy    strategy.Thresholds `yaml:"strategy"`
	Risk        risk.Config         `yaml:"risk"`
	Predictions struct {
		LogFile  string                    `yaml:"log_file"`
		Tickers  []string                  `yaml:"tickers"`
		Forecast prediction.ForecastConfig `yaml:",inline"`
	} `yaml:"predictions"`
	Schedule struct {
		CycleCron   string `yaml:"cycle_cron"`
		PredictCron string `yaml:"predict_cron"`
		RunOnStart  bool   `yaml:"run_on_start"`
	} `yaml:"schedule"`
	Telegram struct {
		BotToken string `yaml:"bot_token"`
		ChatID   string `yaml:"chat_id"`
	} `yaml:"telegram"`
	Database struct {
		SQLitePath string `yaml:"sqlite_path"`
	} `yaml:"database"`
	Log struct {
		Level  string `yaml:"level"`
		Pretty bool   `yaml:"pretty"`
	} `yaml:"log"`
	Proxy string `yaml:"proxy"`
}

// Load reads .env (if present) and the YAML file, then applies environment
// variable overrides and defaults. A missing YAML file yields a default config.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	// Sections whose fields may legitimately be zero start from their defaults
	// so the YAML only overrides the keys it sets.
	cfg := &Config{
		Strategy: strategy.DefaultThresholds(),
		Risk:     risk.DefaultConfig(),
	}
	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.applyDefaults()

	if cfg.Portfolio.TickersFile != "" {
		extra, err := LoadTickers(cfg.Portfolio.TickersFile)
		if err != nil {
			return nil, err
		}
		cfg.Portfolio.Decision.Candidates = mergeTickers(cfg.Portfolio.Decision.Candidates, extra)
	}
	if len(cfg.Predictions.Tickers) == 0 {
		cfg.Predictions.Tickers = cfg.Portfolio.Decision.Candidates
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	strs := []struct {
		env string
		dst *string
	}{
		{"TELEGRAM_BOT_TOKEN", &c.Telegram.BotToken},
		{"TELEGRAM_CHAT_ID", &c.Telegram.ChatID},
		{"DATA_PROVIDER", &c.DataSource.Provider},
		{"BARS_API_BASE_URL", &c.DataSource.BaseURL},
		{"BARS_API_KEY", &c.DataSource.APIKey},
		{"HTTPS_PROXY", &c.Proxy},
		{"LEDGER_FILE", &c.Portfolio.StateFile},
		{"PREDICTIONS_FILE", &c.Predictions.LogFile},
		{"TICKERS_FILE", &c.Portfolio.TickersFile},
		{"SQLITE_PATH", &c.Database.SQLitePath},
		{"CRON_CYCLE", &c.Schedule.CycleCron},
		{"LOG_LEVEL", &c.Log.Level},
	}
	for _, s := range strs {
		if v := os.Getenv(s.env); v != "" {
			*s.dst = v
		}
	}
	if v := os.Getenv("INITIAL_CAPITAL"); v != "" {
		capital, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("INITIAL_CAPITAL: %w", err)
		}
		c.Portfolio.InitialCapital = capital
	}
	if v := os.Getenv("RUN_ON_START"); v != "" {
		c.Schedule.RunOnStart = v == "true" || v == "1"
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.DataSource.Provider == "" {
		c.DataSource.Provider = "yahoo"
	}
	if c.DataSource.RequestDelay == 0 {
		c.DataSource.RequestDelay = 500 * time.Millisecond
	}
	if c.Portfolio.StateFile == "" {
		c.Portfolio.StateFile = "data/portfolio.json"
	}
	if c.Portfolio.InitialCapital == 0 {
		c.Portfolio.InitialCapital = 10000
	}
	if c.Portfolio.AccountCurrency == "" {
		c.Portfolio.AccountCurrency = "EUR"
	}
	if c.Portfolio.QuoteCurrency == "" {
		c.Portfolio.QuoteCurrency = "USD"
	}
	c.Portfolio.AccountCurrency = strings.ToUpper(c.Portfolio.AccountCurrency)
	c.Portfolio.QuoteCurrency = strings.ToUpper(c.Portfolio.QuoteCurrency)

	d := decision.DefaultConfig()
	dc := &c.Portfolio.Decision
	if dc.MaxPositions == 0 {
		dc.MaxPositions = d.MaxPositions
	}
	if dc.BudgetFraction == 0 {
		dc.BudgetFraction = d.BudgetFraction
	}
	if dc.MinTicket == 0 {
		dc.MinTicket = d.MinTicket
	}
	if dc.Lookback == 0 {
		dc.Lookback = d.Lookback
	}

	if c.Predictions.LogFile == "" {
		c.Predictions.LogFile = "data/predictions_log.csv"
	}
	fd := prediction.DefaultForecastConfig()
	fc := &c.Predictions.Forecast
	if fc.Model == "" {
		fc.Model = fd.Model
	}
	if fc.MinRows == 0 {
		fc.MinRows = fd.MinRows
	}
	if fc.Window == 0 {
		fc.Window = fd.Window
	}
	if fc.Lookback == 0 {
		fc.Lookback = fd.Lookback
	}
	if fc.MarketIndex == "" {
		fc.MarketIndex = fd.MarketIndex
	}
	if fc.VolatilityIndex == "" {
		fc.VolatilityIndex = fd.VolatilityIndex
	}

	if c.Schedule.CycleCron == "" {
		c.Schedule.CycleCron = "0 0 * * * *"
	}
	if c.Database.SQLitePath == "" {
		c.Database.SQLitePath = "data/findash.db"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	switch c.DataSource.Provider {
	case "yahoo":
	case "barsapi":
		if c.DataSource.BaseURL == "" {
			return fmt.Errorf("data_source.base_url is required for provider barsapi")
		}
	default:
		return fmt.Errorf("data_source.provider %q is not supported", c.DataSource.Provider)
	}
	if c.Portfolio.InitialCapital <= 0 {
		return fmt.Errorf("portfolio.initial_capital must be positive")
	}
	if len(c.Portfolio.AccountCurrency) != 3 || len(c.Portfolio.QuoteCurrency) != 3 {
		return fmt.Errorf("portfolio currencies must be ISO 4217 codes")
	}
	dc := c.Portfolio.Decision
	if dc.BudgetFraction <= 0 || dc.BudgetFraction > 1 {
		return fmt.Errorf("portfolio.budget_fraction must be in (0, 1]")
	}
	if dc.MaxPositions < 1 {
		return fmt.Errorf("portfolio.max_positions must be at least 1")
	}
	if c.Strategy.Sell >= c.Strategy.Reinforce {
		return fmt.Errorf("strategy.sell must be below strategy.reinforce")
	}
	switch c.Predictions.Forecast.Model {
	case prediction.ModelFeatures, prediction.ModelTrend:
	default:
		return fmt.Errorf("predictions.model %q is not supported", c.Predictions.Forecast.Model)
	}
	if c.Risk.LowNATR >= c.Risk.HighNATR {
		return fmt.Errorf("risk.low_natr must be below risk.high_natr")
	}
	if (c.Telegram.BotToken == "") != (c.Telegram.ChatID == "") {
		return fmt.Errorf("telegram.bot_token and telegram.chat_id must be set together")
	}
	return nil
}

// TelegramEnabled reports whether notifications can be sent.
func (c *Config) TelegramEnabled() bool {
	return c.Telegram.BotToken != "" && c.Telegram.ChatID != ""
}

// LoadTickers reads one ticker per line, upper-cased. Blank lines and lines
// starting with '#' or '[' are skipped.
func LoadTickers(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open tickers file: %w", err)
	}
	defer f.Close()

	var tickers []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "[") {
			continue
		}
		tickers = append(tickers, strings.ToUpper(line))
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read tickers file: %w", err)
	}
	return tickers, nil
}

func mergeTickers(base, extra []string) []string {
	seen := make(map[string]bool, len(base)+len(extra))
	var out []string
	for _, t := range append(append([]string(nil), base...), extra...) {
		if !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	return out
}
