package risk

import (
	"math"

	"FinDash/internal/model"
)

const (
	ReasonStopLoss   = "Stop-Loss atteint"
	ReasonTakeProfit = "Take-Profit atteint"
)

// Config holds the volatility regimes and the take-profit target.
type Config struct {
	LowNATR        float64 `yaml:"low_natr"`  // below: calm regime
	HighNATR       float64 `yaml:"high_natr"` // at or above: volatile regime
	CalmMultiplier float64 `yaml:"calm_multiplier"`
	MidMultiplier  float64 `yaml:"mid_multiplier"`
	WildMultiplier float64 `yaml:"wild_multiplier"`
	TakeProfitPct  float64 `yaml:"take_profit_pct"`
}

// DefaultConfig returns NATR regimes 2%/4% with multipliers 2.0/2.5/3.5 and a 20% target.
func DefaultConfig() Config {
	return Config{
		LowNATR:        2.0,
		HighNATR:       4.0,
		CalmMultiplier: 2.0,
		MidMultiplier:  2.5,
		WildMultiplier: 3.5,
		TakeProfitPct:  0.20,
	}
}

// Manager computes adaptive trailing stops and take-profit levels.
type Manager struct {
	cfg Config
}

// NewManager creates a Manager; a zero Config means defaults.
func NewManager(cfg Config) *Manager {
	if cfg == (Config{}) {
		cfg = DefaultConfig()
	}
	return &Manager{cfg: cfg}
}

// Multiplier selects the stop distance in ATRs for a volatility regime.
func (m *Manager) Multiplier(natr float64) float64 {
	switch {
	case natr < m.cfg.LowNATR:
		return m.cfg.CalmMultiplier
	case natr < m.cfg.HighNATR:
		return m.cfg.MidMultiplier
	default:
		return m.cfg.WildMultiplier
	}
}

// TakeProfit returns the position's override or entry * (1 + target).
func (m *Manager) TakeProfit(pos model.Position) float64 {
	if pos.TakeProfit != nil {
		return *pos.TakeProfit
	}
	return pos.EntryPrice * (1 + m.cfg.TakeProfitPct)
}

// Assessment is the outcome of evaluating one open position.
type Assessment struct {
	Position   model.Position // peak and stop updated
	Multiplier float64
	StopLoss   float64
	TakeProfit float64
	Exit       bool
	Reason     string
}

// Evaluate ratchets the peak and the trailing stop with the latest close and
// decides whether the position must be closed.
func (m *Manager) Evaluate(pos model.Position, vol model.Volatility) Assessment {
	pos.PeakPrice = math.Max(pos.PeakPrice, vol.Close)
	mult := m.Multiplier(vol.NATR)
	pos.StopPrice = math.Max(pos.StopPrice, pos.PeakPrice-mult*vol.ATR)

	a := Assessment{
		Position:   pos,
		Multiplier: mult,
		StopLoss:   pos.StopPrice,
		TakeProfit: m.TakeProfit(pos),
	}
	switch {
	case vol.Close < a.StopLoss:
		a.Exit, a.Reason = true, ReasonStopLoss
	case vol.Close > a.TakeProfit:
		a.Exit, a.Reason = true, ReasonTakeProfit
	}
	return a
}
