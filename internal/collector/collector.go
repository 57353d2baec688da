package collector

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"FinDash/internal/model"
)

// MockFetcher returns controllable fixed data for development and testing.
// Series are keyed by symbol; bars outside the requested window are dropped.
type MockFetcher struct {
	Series map[string][]model.OHLCV
	Err    error
	Calls  int
}

func (m *MockFetcher) Name() string { return "mock" }

func (m *MockFetcher) FetchBars(_ context.Context, symbol string, start, end time.Time, _ model.Granularity) ([]model.OHLCV, error) {
	m.Calls++
	if m.Err != nil {
		return nil, m.Err
	}
	var out []model.OHLCV
	for _, b := range m.Series[symbol] {
		if !b.Time.Before(start) && b.Time.Before(end) {
			out = append(out, b)
		}
	}
	return out, nil
}

// normalize sorts bars chronologically, converts times to UTC and drops duplicate timestamps.
func normalize(bars []model.OHLCV) []model.OHLCV {
	for i := range bars {
		bars[i].Time = bars[i].Time.UTC()
	}
	sort.SliceStable(bars, func(i, j int) bool { return bars[i].Time.Before(bars[j].Time) })
	out := bars[:0]
	for i, b := range bars {
		if i > 0 && b.Time.Equal(out[len(out)-1].Time) {
			out[len(out)-1] = b
			continue
		}
		out = append(out, b)
	}
	return out
}

// Collector is the price series provider seen by the rest of the program.
// It spaces consecutive upstream requests by a fixed delay.
type Collector struct {
	Fetcher Fetcher
	Delay   time.Duration

	log  zerolog.Logger
	mu   sync.Mutex
	last time.Time
	now  func() time.Time
}

// NewCollector creates a new Collector.
func NewCollector(fetcher Fetcher, delay time.Duration, log zerolog.Logger) *Collector {
	return &Collector{
		Fetcher: fetcher,
		Delay:   delay,
		log:     log.With().Str("component", "collector").Str("source", fetcher.Name()).Logger(),
		now:     time.Now,
	}
}

func (c *Collector) throttle(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Delay > 0 && !c.last.IsZero() {
		if wait := c.Delay - c.now().Sub(c.last); wait > 0 {
			t := time.NewTimer(wait)
			defer t.Stop()
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-t.C:
			}
		}
	}
	c.last = c.now()
	return nil
}

// Series fetches bars for ticker in [start, end). Any upstream failure or an
// empty result is reported as model.ErrDataUnavailable.
func (c *Collector) Series(ctx context.Context, ticker string, start, end time.Time, g model.Granularity) (*model.PriceSeries, error) {
	if err := c.throttle(ctx); err != nil {
		return nil, err
	}
	bars, err := c.Fetcher.FetchBars(ctx, ticker, start.UTC(), end.UTC(), g)
	if err != nil {
		c.log.Debug().Str("ticker", ticker).Err(err).Msg("fetch failed")
		return nil, fmt.Errorf("fetch %s %s: %w: %v", ticker, g, model.ErrDataUnavailable, err)
	}
	bars = normalize(append([]model.OHLCV(nil), bars...))
	if len(bars) == 0 {
		return nil, fmt.Errorf("fetch %s %s: %w: empty series", ticker, g, model.ErrDataUnavailable)
	}
	c.log.Debug().Str("ticker", ticker).Int("bars", len(bars)).Msg("series fetched")
	return &model.PriceSeries{
		Symbol:      ticker,
		Granularity: g,
		Bars:        bars,
		FetchedAt:   c.now().UTC(),
	}, nil
}

// Recent fetches the series ending now and spanning the given lookback.
func (c *Collector) Recent(ctx context.Context, ticker string, lookback time.Duration, g model.Granularity) (*model.PriceSeries, error) {
	end := c.now().UTC()
	return c.Series(ctx, ticker, end.Add(-lookback), end, g)
}
