package calculator

import (
	"errors"
	"fmt"

	"FinDash/internal/model"

	"github.com/markcheno/go-talib"
)

// CalculateSMA computes the simple moving average of the given prices over the specified period.
func CalculateSMA(prices []float64, period int) (float64, error) {
	if period <= 0 {
		return 0, errors.New("period must be positive")
	}
	if len(prices) < period {
		return 0, fmt.Errorf("SMA(%d) over %d prices: %w", period, len(prices), model.ErrInsufficientHistory)
	}
	sma := talib.Sma(prices, period)
	return sma[len(sma)-1], nil
}
