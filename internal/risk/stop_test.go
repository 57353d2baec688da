package risk

import (
	"testing"

	"FinDash/internal/model"

	"github.com/stretchr/testify/assert"
)

func TestMultiplier(t *testing.T) {
	m := NewManager(Config{})
	tests := []struct {
		natr float64
		want float64
	}{
		{0.5, 2.0},
		{1.99, 2.0},
		{2.0, 2.5},
		{3.99, 2.5},
		{4.0, 3.5},
		{9.0, 3.5},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, m.Multiplier(tt.natr), "natr=%.2f", tt.natr)
	}
}

func TestEvaluate_StopLossScenario(t *testing.T) {
	m := NewManager(Config{})
	pos := model.Position{Ticker: "AAPL", EntryPrice: 100, PeakPrice: 120, Quantity: 1, InvestedAmount: 100, FXRateAtEntry: 1}

	a := m.Evaluate(pos, model.Volatility{Close: 110, ATR: 3, NATR: 1.5})

	assert.Equal(t, 2.0, a.Multiplier)
	assert.InDelta(t, 114.0, a.StopLoss, 1e-9)
	assert.InDelta(t, 120.0, a.TakeProfit, 1e-9)
	assert.True(t, a.Exit)
	assert.Equal(t, ReasonStopLoss, a.Reason)
	assert.Equal(t, 120.0, a.Position.PeakPrice)
}

func TestEvaluate_TakeProfit(t *testing.T) {
	m := NewManager(Config{})
	pos := model.Position{EntryPrice: 100, PeakPrice: 100}

	a := m.Evaluate(pos, model.Volatility{Close: 121, ATR: 1, NATR: 0.8})
	assert.True(t, a.Exit)
	assert.Equal(t, ReasonTakeProfit, a.Reason)

	override := 130.0
	pos.TakeProfit = &override
	a = m.Evaluate(pos, model.Volatility{Close: 121, ATR: 1, NATR: 0.8})
	assert.False(t, a.Exit)
	assert.Equal(t, 130.0, a.TakeProfit)
}

func TestEvaluate_TrailingRatchet(t *testing.T) {
	m := NewManager(Config{})
	pos := model.Position{EntryPrice: 100, PeakPrice: 100}

	closes := []float64{101, 105, 103, 108, 104, 107, 112, 109}
	prevPeak, prevStop := pos.PeakPrice, pos.StopPrice
	for i, c := range closes {
		// Volatility alternates between calm and wild so the raw stop distance jumps around.
		natr := 1.0
		if i%2 == 1 {
			natr = 5.0
		}
		a := m.Evaluate(pos, model.Volatility{Close: c, ATR: 1, NATR: natr})
		assert.GreaterOrEqual(t, a.Position.PeakPrice, prevPeak, "peak went down at step %d", i)
		assert.GreaterOrEqual(t, a.Position.StopPrice, prevStop, "stop went down at step %d", i)
		prevPeak, prevStop = a.Position.PeakPrice, a.Position.StopPrice
		pos = a.Position
	}
	assert.Equal(t, 112.0, pos.PeakPrice)
}

func TestEvaluate_HoldInsideBand(t *testing.T) {
	m := NewManager(Config{})
	a := m.Evaluate(model.Position{EntryPrice: 100, PeakPrice: 100}, model.Volatility{Close: 100, ATR: 2, NATR: 2})
	assert.False(t, a.Exit)
	assert.Empty(t, a.Reason)
	assert.InDelta(t, 95.0, a.StopLoss, 1e-9)
}
