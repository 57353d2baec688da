package calculator

import (
	"errors"
	"fmt"

	"FinDash/internal/model"

	"github.com/markcheno/go-talib"
)

// CalculateRSI computes the Wilder-smoothed RSI over the given period.
// Requires at least period+1 bars.
func CalculateRSI(bars []model.OHLCV, period int) (float64, error) {
	if period <= 0 {
		return 0, errors.New("period must be positive")
	}
	if len(bars) < period+1 {
		return 0, fmt.Errorf("RSI(%d) over %d bars: %w", period, len(bars), model.ErrInsufficientHistory)
	}
	rsi := talib.Rsi(model.Closes(bars), period)
	return rsi[len(rsi)-1], nil
}
