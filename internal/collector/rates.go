package collector

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"FinDash/internal/model"
)

// RateProvider resolves currency conversion rates from FX pair series
// ("EURUSD=X" style symbols). Rate(base, quote) is the price of one unit of
// base expressed in quote. Lookups never fail: 1.0 is returned instead.
type RateProvider struct {
	series *Collector
	log    zerolog.Logger
}

func NewRateProvider(series *Collector, log zerolog.Logger) *RateProvider {
	return &RateProvider{
		series: series,
		log:    log.With().Str("component", "rates").Logger(),
	}
}

func (r *RateProvider) Rate(ctx context.Context, base, quote string) float64 {
	base, quote = strings.ToUpper(base), strings.ToUpper(quote)
	if base == quote || base == "" || quote == "" {
		return 1.0
	}
	symbol := base + quote + "=X"
	s, err := r.series.Recent(ctx, symbol, 7*24*time.Hour, model.Daily)
	if err != nil {
		r.log.Warn().Str("pair", symbol).Err(err).Msg("rate unavailable, using 1.0")
		return 1.0
	}
	rate := s.Last().Close
	if rate <= 0 {
		r.log.Warn().Str("pair", symbol).Float64("rate", rate).Msg("invalid rate, using 1.0")
		return 1.0
	}
	return rate
}
