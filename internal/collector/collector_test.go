package collector

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"FinDash/internal/model"
)

var t0 = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

func dailyBars(n int, start float64) []model.OHLCV {
	bars := make([]model.OHLCV, n)
	for i := range bars {
		p := start + float64(i)
		bars[i] = model.OHLCV{Time: t0.AddDate(0, 0, i), Open: p, High: p + 1, Low: p - 1, Close: p}
	}
	return bars
}

func TestCollectorSeries(t *testing.T) {
	mock := &MockFetcher{Series: map[string][]model.OHLCV{"AAPL": dailyBars(10, 100)}}
	c := NewCollector(mock, 0, zerolog.Nop())

	s, err := c.Series(context.Background(), "AAPL", t0.AddDate(0, 0, 2), t0.AddDate(0, 0, 5), model.Daily)
	require.NoError(t, err)
	require.Len(t, s.Bars, 3)
	assert.Equal(t, 102.0, s.Bars[0].Close)
	assert.Equal(t, 104.0, s.Last().Close)
	assert.Equal(t, model.Daily, s.Granularity)
}

func TestCollectorDataUnavailable(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		c := NewCollector(&MockFetcher{}, 0, zerolog.Nop())
		_, err := c.Series(context.Background(), "NONE", t0, t0.AddDate(0, 1, 0), model.Daily)
		assert.True(t, errors.Is(err, model.ErrDataUnavailable))
	})
	t.Run("upstream error", func(t *testing.T) {
		c := NewCollector(&MockFetcher{Err: fmt.Errorf("boom")}, 0, zerolog.Nop())
		_, err := c.Series(context.Background(), "AAPL", t0, t0.AddDate(0, 1, 0), model.Daily)
		assert.True(t, errors.Is(err, model.ErrDataUnavailable))
	})
}

func TestNormalize(t *testing.T) {
	loc := time.FixedZone("CET", 3600)
	bars := []model.OHLCV{
		{Time: t0.Add(2 * time.Hour), Close: 3},
		{Time: t0.In(loc), Close: 1},
		{Time: t0.Add(time.Hour), Close: 2},
		{Time: t0.Add(time.Hour), Close: 2.5},
	}
	out := normalize(bars)
	require.Len(t, out, 3)
	assert.Equal(t, time.UTC, out[0].Time.Location())
	assert.Equal(t, []float64{1, 2.5, 3}, model.Closes(out))
}

func TestCollectorThrottle(t *testing.T) {
	mock := &MockFetcher{Series: map[string][]model.OHLCV{"A": dailyBars(3, 10)}}
	c := NewCollector(mock, 30*time.Millisecond, zerolog.Nop())

	begin := time.Now()
	for i := 0; i < 3; i++ {
		_, err := c.Series(context.Background(), "A", t0, t0.AddDate(0, 0, 3), model.Daily)
		require.NoError(t, err)
	}
	assert.GreaterOrEqual(t, time.Since(begin), 60*time.Millisecond)
	assert.Equal(t, 3, mock.Calls)
}

func TestAggregateDailyToWeekly(t *testing.T) {
	// 2024-03-04 is a Monday: two full ISO weeks.
	monday := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)
	var daily []model.OHLCV
	for i := 0; i < 10; i++ {
		p := float64(10 + i)
		daily = append(daily, model.OHLCV{Time: monday.AddDate(0, 0, i), Open: p, High: p + 1, Low: p - 1, Close: p, Volume: 1})
	}
	weekly := aggregateDailyToWeekly(daily)
	require.Len(t, weekly, 2)
	assert.Equal(t, 10.0, weekly[0].Open)
	assert.Equal(t, 16.0, weekly[0].Close)
	assert.Equal(t, 17.0, weekly[0].High)
	assert.Equal(t, 9.0, weekly[0].Low)
	assert.Equal(t, 7.0, weekly[0].Volume)
	assert.Equal(t, 19.0, weekly[1].Close)
}

func TestYahooFetcher(t *testing.T) {
	var gotPath, gotInterval string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotInterval = r.URL.Query().Get("interval")
		fmt.Fprintf(w, `{"chart":{"result":[{"timestamp":[%d,%d,%d],
			"indicators":{"quote":[{"open":[1,2,null],"high":[1.5,2.5,null],"low":[0.5,1.5,null],
			"close":[1.2,2.2,null],"volume":[10,20,null]}]}}],"error":null}}`,
			t0.Unix(), t0.Add(time.Hour).Unix(), t0.Add(2*time.Hour).Unix())
	}))
	defer srv.Close()

	f := NewYahooFetcher("")
	f.BaseURL = srv.URL
	bars, err := f.FetchBars(context.Background(), "SPX", t0, t0.Add(3*time.Hour), model.Hourly)
	require.NoError(t, err)
	assert.Equal(t, "/v8/finance/chart/^GSPC", gotPath)
	assert.Equal(t, "1h", gotInterval)
	require.Len(t, bars, 2, "null bars are dropped")
	assert.Equal(t, t0, bars[0].Time)
	assert.Equal(t, 2.2, bars[1].Close)
}

func TestYahooFetcherDropsPartialBars(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"chart":{"result":[{"timestamp":[%d,%d,%d],
			"indicators":{"quote":[{"open":[1,2,3],"high":[1.5,null,3.5],"low":[0.5,1.5,2.5],
			"close":[1.2,2.2,3.2],"volume":[10,20,null]}]}}],"error":null}}`,
			t0.Unix(), t0.Add(time.Hour).Unix(), t0.Add(2*time.Hour).Unix())
	}))
	defer srv.Close()

	f := NewYahooFetcher("")
	f.BaseURL = srv.URL
	bars, err := f.FetchBars(context.Background(), "AAPL", t0, t0.Add(3*time.Hour), model.Hourly)
	require.NoError(t, err)
	require.Len(t, bars, 2, "a bar without a high is dropped")
	assert.Equal(t, t0, bars[0].Time)
	assert.Equal(t, t0.Add(2*time.Hour), bars[1].Time)
	assert.Equal(t, 2.5, bars[1].Low)
	assert.Equal(t, 0.0, bars[1].Volume)
}

func TestYahooFetcherAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"chart":{"result":null,"error":{"code":"Not Found","description":"No data found"}}}`)
	}))
	defer srv.Close()

	f := NewYahooFetcher("")
	f.BaseURL = srv.URL
	_, err := f.FetchBars(context.Background(), "XXXX", t0, t0.AddDate(0, 0, 1), model.Daily)
	assert.ErrorContains(t, err, "No data found")
}

func TestBarsAPIWeeklyFallback(t *testing.T) {
	monday := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer k", r.Header.Get("Authorization"))
		switch r.URL.Path {
		case "/api/v1/bars/weekly":
			http.Error(w, "not supported", http.StatusNotFound)
		case "/api/v1/bars/daily":
			fmt.Fprintf(w, `[{"timestamp":%d,"open":1,"high":2,"low":0.5,"close":1.5,"volume":5},
				{"timestamp":%d,"open":1.5,"high":3,"low":1,"close":2.5,"volume":5}]`,
				monday.Unix(), monday.AddDate(0, 0, 1).Unix())
		}
	}))
	defer srv.Close()

	f := NewBarsAPIFetcher(srv.URL, "k", "")
	bars, err := f.FetchBars(context.Background(), "AAPL", monday, monday.AddDate(0, 0, 7), model.Weekly)
	require.NoError(t, err)
	require.Len(t, bars, 1)
	assert.Equal(t, 2.5, bars[0].Close)
	assert.Equal(t, 3.0, bars[0].High)
	assert.Equal(t, 10.0, bars[0].Volume)
}

func TestRateProvider(t *testing.T) {
	now := time.Now().UTC()
	mock := &MockFetcher{Series: map[string][]model.OHLCV{
		"EURUSD=X": {{Time: now.Add(-48 * time.Hour), Close: 1.08}, {Time: now.Add(-24 * time.Hour), Close: 1.1}},
	}}
	r := NewRateProvider(NewCollector(mock, 0, zerolog.Nop()), zerolog.Nop())
	ctx := context.Background()

	assert.Equal(t, 1.1, r.Rate(ctx, "eur", "USD"))
	assert.Equal(t, 1.0, r.Rate(ctx, "EUR", "EUR"))
	assert.Equal(t, 1.0, r.Rate(ctx, "GBP", "USD"), "missing pair falls back to 1.0")
}
