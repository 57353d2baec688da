package calculator

import (
	"fmt"

	"FinDash/internal/model"

	"github.com/markcheno/go-talib"
)

// BollingerBands holds the latest band values.
type BollingerBands struct {
	Upper  float64
	Middle float64
	Lower  float64
}

// CalculateBollinger computes bands around an SMA of the given period at k standard deviations.
func CalculateBollinger(prices []float64, period int, k float64) (BollingerBands, error) {
	if period <= 1 {
		return BollingerBands{}, fmt.Errorf("invalid Bollinger period %d", period)
	}
	if len(prices) < period {
		return BollingerBands{}, fmt.Errorf("Bollinger(%d) over %d prices: %w", period, len(prices), model.ErrInsufficientHistory)
	}
	upper, middle, lower := talib.BBands(prices, period, k, k, talib.SMA)
	n := len(prices) - 1
	return BollingerBands{Upper: upper[n], Middle: middle[n], Lower: lower[n]}, nil
}
