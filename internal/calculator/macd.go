package calculator

import (
	"fmt"

	"FinDash/internal/model"

	"github.com/markcheno/go-talib"
)

// CalculateMACD returns the latest MACD line and its signal line.
// The MACD line is EMA(fast) - EMA(slow); the signal is an EMA of the MACD line.
func CalculateMACD(prices []float64, fast, slow, signal int) (macd, sig float64, err error) {
	if fast <= 0 || slow <= fast || signal <= 0 {
		return 0, 0, fmt.Errorf("invalid MACD periods %d/%d/%d", fast, slow, signal)
	}
	if need := slow + signal - 1; len(prices) < need {
		return 0, 0, fmt.Errorf("MACD(%d,%d,%d) over %d prices: %w", fast, slow, signal, len(prices), model.ErrInsufficientHistory)
	}
	line, signalLine, _ := talib.Macd(prices, fast, slow, signal)
	return line[len(line)-1], signalLine[len(signalLine)-1], nil
}
