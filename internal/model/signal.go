package model

// Recommendation is the discrete output of the signal scorer.
type Recommendation string

const (
	Reinforce Recommendation = "REINFORCE"
	Hold      Recommendation = "HOLD"
	Sell      Recommendation = "SELL"
)

// FactorScore represents a single factor's scoring result.
type FactorScore struct {
	Name       string
	Score      int
	Commentary string
}

// TradeSignal is the final output of the strategy engine.
type TradeSignal struct {
	Factors        []FactorScore
	TotalScore     int
	Recommendation Recommendation
}
