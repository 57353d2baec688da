package prediction

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/stat"

	"FinDash/internal/calculator"
	"FinDash/internal/model"
)

// Forecast models.
const (
	ModelFeatures = "features"
	ModelTrend    = "trend"
)

// ForecastConfig tunes the forecaster.
type ForecastConfig struct {
	Model           string        `yaml:"model"`    // features or trend
	MinRows         int           `yaml:"min_rows"` // training rows required per horizon
	Window          int           `yaml:"window"`   // hourly bars in the trend fit
	Lookback        time.Duration `yaml:"lookback"` // hourly history pulled
	MarketIndex     string        `yaml:"market_index"`
	VolatilityIndex string        `yaml:"volatility_index"`
}

// DefaultForecastConfig fits the feature regression on 60 days of hourly bars.
func DefaultForecastConfig() ForecastConfig {
	return ForecastConfig{
		Model:           ModelFeatures,
		MinRows:         100,
		Window:          120,
		Lookback:        60 * 24 * time.Hour,
		MarketIndex:     "^GSPC",
		VolatilityIndex: "^VIX",
	}
}

// minTrendBars is the shortest usable trend window.
const minTrendBars = 24

// HorizonForecast is the projected price at one horizon.
type HorizonForecast struct {
	Horizon   model.Horizon
	Predicted float64
}

// Forecast is the projection of one ticker from its last hourly bar.
// Slope and Intercept are only set by the trend model.
type Forecast struct {
	Ticker    string
	Model     string
	AsOf      time.Time
	Reference float64
	Slope     float64 // price per hour
	Intercept float64
	Horizons  []HorizonForecast
}

// ChangePct returns the projected move of a horizon relative to the reference price.
func (f *Forecast) ChangePct(h HorizonForecast) float64 {
	return (h.Predicted - f.Reference) / f.Reference * 100
}

// Forecaster projects hourly prices and issues predictions.
type Forecaster struct {
	cfg    ForecastConfig
	prices PriceSource
	log    zerolog.Logger

	// Now is the issue clock.
	Now func() time.Time
}

func NewForecaster(cfg ForecastConfig, prices PriceSource, log zerolog.Logger) *Forecaster {
	d := DefaultForecastConfig()
	if cfg.Model == "" {
		cfg.Model = d.Model
	}
	if cfg.MinRows <= 0 {
		cfg.MinRows = d.MinRows
	}
	if cfg.Window <= 0 {
		cfg.Window = d.Window
	}
	if cfg.Lookback <= 0 {
		cfg.Lookback = d.Lookback
	}
	if cfg.MarketIndex == "" {
		cfg.MarketIndex = d.MarketIndex
	}
	if cfg.VolatilityIndex == "" {
		cfg.VolatilityIndex = d.VolatilityIndex
	}
	return &Forecaster{
		cfg:    cfg,
		prices: prices,
		log:    log.With().Str("component", "forecaster").Logger(),
		Now:    time.Now,
	}
}

// Forecast projects every horizon from the last hourly bar of ticker. The
// feature model falls back to the trend when history is too short to train it.
func (f *Forecaster) Forecast(ctx context.Context, ticker string, horizons []model.Horizon) (*Forecast, error) {
	now := f.Now().UTC()
	s, err := f.prices.Series(ctx, ticker, now.Add(-f.cfg.Lookback), now, model.Hourly)
	if err != nil {
		return nil, err
	}
	if f.cfg.Model == ModelTrend {
		return f.forecastTrend(ticker, s.Bars, horizons)
	}
	fc, err := f.forecastFeatures(ticker, s.Bars, horizons)
	if errors.Is(err, model.ErrInsufficientHistory) {
		f.log.Debug().Str("ticker", ticker).Int("bars", len(s.Bars)).Msg("feature model untrainable, using trend")
		return f.forecastTrend(ticker, s.Bars, horizons)
	}
	return fc, err
}

// forecastTrend fits a least-squares line on the last Window closes.
func (f *Forecaster) forecastTrend(ticker string, bars []model.OHLCV, horizons []model.Horizon) (*Forecast, error) {
	if len(bars) < minTrendBars {
		return nil, fmt.Errorf("trend over %d bars: %w", len(bars), model.ErrInsufficientHistory)
	}
	if len(bars) > f.cfg.Window {
		bars = bars[len(bars)-f.cfg.Window:]
	}

	origin := bars[0].Time
	x := make([]float64, len(bars))
	y := make([]float64, len(bars))
	for i, b := range bars {
		x[i] = b.Time.Sub(origin).Hours()
		y[i] = b.Close
	}
	alpha, beta := stat.LinearRegression(x, y, nil, false)

	last := bars[len(bars)-1]
	fc := &Forecast{
		Ticker:    ticker,
		Model:     ModelTrend,
		AsOf:      last.Time,
		Reference: last.Close,
		Slope:     beta,
		Intercept: alpha,
	}
	lastX := x[len(x)-1]
	for _, h := range horizons {
		fc.Horizons = append(fc.Horizons, HorizonForecast{
			Horizon:   h,
			Predicted: alpha + beta*(lastX+h.Duration.Hours()),
		})
	}
	return fc, nil
}

// MarketContext reads the market index RSI(14) and the last volatility index
// close. Unavailable values stay nil.
func (f *Forecaster) MarketContext(ctx context.Context) MarketContext {
	var mc MarketContext
	now := f.Now().UTC()
	start := now.Add(-120 * 24 * time.Hour)

	if s, err := f.prices.Series(ctx, f.cfg.MarketIndex, start, now, model.Daily); err != nil {
		f.log.Warn().Str("ticker", f.cfg.MarketIndex).Err(err).Msg("market RSI unavailable")
	} else if rsi, err := calculator.CalculateRSI(s.Bars, 14); err != nil {
		f.log.Warn().Str("ticker", f.cfg.MarketIndex).Err(err).Msg("market RSI unavailable")
	} else {
		mc.RSI = &rsi
	}

	if s, err := f.prices.Series(ctx, f.cfg.VolatilityIndex, start, now, model.Daily); err != nil {
		f.log.Warn().Str("ticker", f.cfg.VolatilityIndex).Err(err).Msg("volatility index unavailable")
	} else {
		vix := s.Last().Close
		mc.VIX = &vix
	}
	return mc
}

// Issue forecasts each ticker over the standard horizons and logs a PENDING
// record per horizon. Tickers without usable data are skipped.
func (f *Forecaster) Issue(ctx context.Context, t *Tracker, tickers []string) ([]*Forecast, []model.PredictionRecord, error) {
	mc := f.MarketContext(ctx)
	issuedAt := f.Now().UTC()

	var forecasts []*Forecast
	var recs []model.PredictionRecord
	for _, ticker := range tickers {
		fc, err := f.Forecast(ctx, ticker, model.StandardHorizons)
		if err != nil {
			f.log.Warn().Str("ticker", ticker).Err(err).Msg("forecast skipped")
			continue
		}
		forecasts = append(forecasts, fc)
		for _, h := range fc.Horizons {
			rec, err := t.LogPrediction(ticker, h.Horizon, fc.Reference, h.Predicted, issuedAt, mc)
			if err != nil {
				return forecasts, recs, err
			}
			recs = append(recs, rec)
		}
	}
	f.log.Info().Int("tickers", len(forecasts)).Int("predictions", len(recs)).Msg("predictions issued")
	return forecasts, recs, nil
}
