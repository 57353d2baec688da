package calculator

import (
	"errors"
	"fmt"

	"FinDash/internal/model"

	"github.com/markcheno/go-talib"
	"gonum.org/v1/gonum/stat"
)

// CalculateATR returns the rolling mean of the true range over the last period bars.
// The first bar only provides the previous close, so period+1 bars are required.
func CalculateATR(bars []model.OHLCV, period int) (float64, error) {
	if period <= 0 {
		return 0, errors.New("period must be positive")
	}
	if len(bars) < period+1 {
		return 0, fmt.Errorf("ATR(%d) over %d bars: %w", period, len(bars), model.ErrInsufficientHistory)
	}
	high := make([]float64, len(bars))
	low := make([]float64, len(bars))
	closes := make([]float64, len(bars))
	for i, b := range bars {
		high[i], low[i], closes[i] = b.High, b.Low, b.Close
	}
	tr := talib.TRange(high, low, closes)
	return stat.Mean(tr[len(tr)-period:], nil), nil
}
