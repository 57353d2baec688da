package main

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"FinDash/internal/collector"
	"FinDash/internal/config"
	"FinDash/internal/decision"
	"FinDash/internal/logger"
	"FinDash/internal/notifier"
	"FinDash/internal/portfolio"
	"FinDash/internal/prediction"
	"FinDash/internal/recorder"
	"FinDash/internal/risk"
	"FinDash/internal/scheduler"
	"FinDash/internal/strategy"
)

var configPath string

func defaultConfigPath() string {
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		return v
	}
	return "configs/config.yaml"
}

// app is the wired component graph shared by every subcommand.
type app struct {
	cfg        *config.Config
	log        zerolog.Logger
	ledger     *portfolio.Manager
	tracker    *prediction.Tracker
	forecaster *prediction.Forecaster
	notifier   notifier.Notifier
	telegram   *notifier.TelegramNotifier
	recorder   recorder.Recorder
	scheduler  *scheduler.Scheduler
}

func newFetcher(cfg *config.Config) (collector.Fetcher, error) {
	switch cfg.DataSource.Provider {
	case "yahoo":
		return collector.NewYahooFetcher(cfg.Proxy), nil
	case "barsapi":
		return collector.NewBarsAPIFetcher(cfg.DataSource.BaseURL, cfg.DataSource.APIKey, cfg.Proxy), nil
	default:
		return nil, fmt.Errorf("unknown data provider %q", cfg.DataSource.Provider)
	}
}

// bootstrap loads the configuration and builds the component graph.
func bootstrap(ctx context.Context) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	log := logger.New(logger.Config{Level: cfg.Log.Level, Pretty: cfg.Log.Pretty})

	fetcher, err := newFetcher(cfg)
	if err != nil {
		return nil, err
	}
	log.Info().Str("source", fetcher.Name()).Msg("data source selected")
	col := collector.NewCollector(fetcher, cfg.DataSource.RequestDelay, log)

	var rec recorder.Recorder = recorder.NewNoopRecorder()
	if cfg.Database.SQLitePath != "" {
		sr, err := recorder.NewSQLiteRecorder(cfg.Database.SQLitePath, log)
		if err != nil {
			log.Warn().Err(err).Msg("init sqlite recorder failed, using noop")
		} else {
			rec = sr
		}
	}

	ledger, err := portfolio.NewManager(cfg.Portfolio.StateFile, portfolio.Options{
		InitialCapital:  cfg.Portfolio.InitialCapital,
		AccountCurrency: cfg.Portfolio.AccountCurrency,
		QuoteCurrency:   cfg.Portfolio.QuoteCurrency,
		Prices:          col,
		Rates:           collector.NewRateProvider(col, log),
		Journal:         rec,
		Logger:          log,
	})
	if err != nil {
		rec.Close()
		return nil, fmt.Errorf("init portfolio: %w", err)
	}

	loop := decision.NewLoop(
		cfg.Portfolio.Decision,
		col,
		ledger,
		strategy.NewScorer(cfg.Strategy),
		risk.NewManager(cfg.Risk),
		rec,
		log,
	)
	tracker := prediction.NewTracker(prediction.NewStore(cfg.Predictions.LogFile), col, rec, log)
	forecaster := prediction.NewForecaster(cfg.Predictions.Forecast, col, log)

	a := &app{
		cfg:        cfg,
		log:        log,
		ledger:     ledger,
		tracker:    tracker,
		forecaster: forecaster,
		notifier:   notifier.Noop{},
		recorder:   rec,
	}
	if cfg.TelegramEnabled() {
		a.telegram = notifier.NewTelegramNotifier(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Proxy, log)
		a.notifier = a.telegram
	}

	a.scheduler = scheduler.NewScheduler(ctx, scheduler.Deps{
		Loop:       loop,
		Ledger:     ledger,
		Tracker:    tracker,
		Forecaster: forecaster,
		Notifier:   a.notifier,
		Tickers:    cfg.Predictions.Tickers,
	}, log)
	return a, nil
}

func (a *app) Close() {
	if err := a.recorder.Close(); err != nil {
		a.log.Warn().Err(err).Msg("close recorder")
	}
}
