package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLedgerReadMethodsOnCopies(t *testing.T) {
	l := NewLedger(1000, "EUR", "USD")
	l.Positions["AAPL"] = Position{Ticker: "AAPL", InvestedAmount: 400, EntryPrice: 100, PeakPrice: 100, Quantity: 4, FXRateAtEntry: 1}
	l.History = append(l.History, Transaction{Type: TxBuy, Ticker: "AAPL", Amount: 400})
	l.AvailableCash = 600

	// Clone returns a value; read-only methods must be callable on it directly.
	assert.True(t, l.Clone().Holds("AAPL"))
	assert.False(t, l.Clone().Holds("MSFT"))
	assert.NoError(t, l.Clone().Verify())
	invested, divested := l.Clone().Flows()
	assert.Equal(t, 400.0, invested)
	assert.Equal(t, 0.0, divested)
}

func TestLedgerCloneCopiesExitBars(t *testing.T) {
	l := NewLedger(1000, "EUR", "USD")
	bar := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	l.ExitBars["AAPL"] = bar

	c := l.Clone()
	c.ExitBars["AAPL"] = bar.AddDate(0, 0, 1)
	assert.Equal(t, bar, l.ExitBars["AAPL"])
}
