package strategy

import "FinDash/internal/model"

// Thresholds configures the scorer. The defaults are hand-tuned heuristics.
type Thresholds struct {
	Overbought float64 `yaml:"overbought"`
	Oversold   float64 `yaml:"oversold"`
	Reinforce  int     `yaml:"reinforce"`
	Sell       int     `yaml:"sell"`
}

// DefaultThresholds returns RSI 70/30 and aggregate ±3.
func DefaultThresholds() Thresholds {
	return Thresholds{Overbought: 70, Oversold: 30, Reinforce: 3, Sell: -3}
}

// MaxScore bounds the absolute value of any total score.
const MaxScore = 5

// Scorer turns indicator readings into a trade signal.
type Scorer struct {
	Thresholds Thresholds
}

// NewScorer creates a Scorer; zero thresholds mean defaults. A partially set
// Thresholds is used as given, so a sell threshold of 0 is allowed.
func NewScorer(t Thresholds) *Scorer {
	if t == (Thresholds{}) {
		t = DefaultThresholds()
	}
	return &Scorer{Thresholds: t}
}

// recommend maps a total score to a recommendation. Both thresholds are inclusive.
func (s *Scorer) recommend(total int) model.Recommendation {
	switch {
	case total >= s.Thresholds.Reinforce:
		return model.Reinforce
	case total <= s.Thresholds.Sell:
		return model.Sell
	default:
		return model.Hold
	}
}

// Evaluate computes the full trade signal from market indicators.
func (s *Scorer) Evaluate(ind *model.MarketIndicators) *model.TradeSignal {
	factors := []model.FactorScore{
		scoreTrend(ind),
		scoreMomentum(ind, s.Thresholds),
		scoreMACD(ind),
		scoreBollinger(ind),
	}
	total := 0
	for _, f := range factors {
		total += f.Score
	}
	return &model.TradeSignal{
		Factors:        factors,
		TotalScore:     total,
		Recommendation: s.recommend(total),
	}
}

// Evaluate scores with the default thresholds.
func Evaluate(ind *model.MarketIndicators) *model.TradeSignal {
	return NewScorer(Thresholds{}).Evaluate(ind)
}
