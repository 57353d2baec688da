package model

import "time"

// OHLCV represents a single candlestick bar. Time is always UTC.
type OHLCV struct {
	Time   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}

// Granularity is the bar interval requested from a price provider.
type Granularity string

const (
	Hourly Granularity = "1h"
	Daily  Granularity = "1d"
	Weekly Granularity = "1wk"
)

// PriceSeries holds one pull of bars for a ticker.
type PriceSeries struct {
	Symbol      string
	Granularity Granularity
	Bars        []OHLCV
	FetchedAt   time.Time
}

// Last returns the most recent bar. It panics on an empty series.
func (s *PriceSeries) Last() OHLCV {
	return s.Bars[len(s.Bars)-1]
}

// Closes extracts the close prices in bar order.
func Closes(bars []OHLCV) []float64 {
	closes := make([]float64, len(bars))
	for i, b := range bars {
		closes[i] = b.Close
	}
	return closes
}
