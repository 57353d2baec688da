package calculator

import (
	"fmt"

	"FinDash/internal/model"
)

const (
	// MinBars is the history required for a full indicator snapshot.
	MinBars = 200
	// MinRiskBars is the history required for RSI(14) and ATR(14).
	MinRiskBars = 15
)

// Compute derives the latest value of every indicator from ascending bars.
// Fewer than MinBars bars yields model.ErrInsufficientHistory.
func Compute(bars []model.OHLCV) (*model.MarketIndicators, error) {
	if len(bars) < MinBars {
		return nil, fmt.Errorf("indicator snapshot needs %d bars, got %d: %w", MinBars, len(bars), model.ErrInsufficientHistory)
	}
	closes := model.Closes(bars)
	last := bars[len(bars)-1]
	ind := &model.MarketIndicators{AsOf: last.Time, Close: last.Close}

	var err error
	if ind.SMA50, err = CalculateSMA(closes, 50); err != nil {
		return nil, fmt.Errorf("sma50: %w", err)
	}
	if ind.SMA200, err = CalculateSMA(closes, 200); err != nil {
		return nil, fmt.Errorf("sma200: %w", err)
	}
	if ind.RSI, err = CalculateRSI(bars, 14); err != nil {
		return nil, fmt.Errorf("rsi: %w", err)
	}
	if ind.MACD, ind.MACDSignal, err = CalculateMACD(closes, 12, 26, 9); err != nil {
		return nil, fmt.Errorf("macd: %w", err)
	}
	bb, err := CalculateBollinger(closes, 20, 2)
	if err != nil {
		return nil, fmt.Errorf("bollinger: %w", err)
	}
	ind.BBUpper, ind.BBMiddle, ind.BBLower = bb.Upper, bb.Middle, bb.Lower

	vol, err := ComputeVolatility(bars)
	if err != nil {
		return nil, err
	}
	ind.ATR, ind.NATR = vol.ATR, vol.NATR
	return ind, nil
}

// ComputeVolatility returns ATR(14) and NATR for the latest bar.
func ComputeVolatility(bars []model.OHLCV) (*model.Volatility, error) {
	atr, err := CalculateATR(bars, 14)
	if err != nil {
		return nil, fmt.Errorf("atr: %w", err)
	}
	last := bars[len(bars)-1]
	if last.Close <= 0 {
		return nil, fmt.Errorf("non-positive close %.4f at %s", last.Close, last.Time.Format("2006-01-02"))
	}
	return &model.Volatility{
		AsOf:  last.Time,
		Close: last.Close,
		ATR:   atr,
		NATR:  atr / last.Close * 100,
	}, nil
}
