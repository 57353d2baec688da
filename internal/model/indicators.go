package model

import "time"

// MarketIndicators holds the latest value of every computed technical indicator.
type MarketIndicators struct {
	AsOf       time.Time
	Close      float64
	SMA50      float64
	SMA200     float64
	RSI        float64
	MACD       float64
	MACDSignal float64
	BBUpper    float64
	BBMiddle   float64
	BBLower    float64
	ATR        float64
	NATR       float64 // ATR / Close * 100
}

// Volatility is the subset of indicators needed to manage an open position.
type Volatility struct {
	AsOf  time.Time
	Close float64
	ATR   float64
	NATR  float64
}
