package strategy

import (
	"testing"

	"FinDash/internal/model"
)

func neutral() *model.MarketIndicators {
	return &model.MarketIndicators{
		Close:      100,
		SMA50:      100,
		SMA200:     100,
		RSI:        50,
		MACD:       0.5,
		MACDSignal: 0.5,
		BBUpper:    105,
		BBMiddle:   100,
		BBLower:    95,
		ATR:        2,
		NATR:       2,
	}
}

func TestEvaluate_Neutral(t *testing.T) {
	sig := Evaluate(neutral())
	if sig == nil {
		t.Fatal("expected non-nil signal")
	}
	if len(sig.Factors) != 4 {
		t.Fatalf("expected 4 factors, got %d", len(sig.Factors))
	}
	if sig.TotalScore != 0 || sig.Recommendation != model.Hold {
		t.Errorf("expected 0/HOLD, got %d/%s", sig.TotalScore, sig.Recommendation)
	}
}

func TestEvaluate_Boundaries(t *testing.T) {
	tests := []struct {
		name  string
		tweak func(*model.MarketIndicators)
		score int
		rec   model.Recommendation
	}{
		{"uptrend and oversold", func(i *model.MarketIndicators) { i.SMA50 = 110; i.RSI = 25 }, 3, model.Reinforce},
		{"uptrend only", func(i *model.MarketIndicators) { i.SMA50 = 110 }, 2, model.Hold},
		{"downtrend and overbought", func(i *model.MarketIndicators) { i.SMA50 = 90; i.RSI = 75 }, -3, model.Sell},
		{"downtrend only", func(i *model.MarketIndicators) { i.SMA50 = 90 }, -2, model.Hold},
		{"rsi exactly at thresholds", func(i *model.MarketIndicators) { i.SMA50 = 110; i.RSI = 30 }, 2, model.Hold},
		{"everything bullish", func(i *model.MarketIndicators) {
			i.SMA50 = 110
			i.RSI = 20
			i.MACD = 1
			i.Close = 94
		}, 5, model.Reinforce},
		{"everything bearish", func(i *model.MarketIndicators) {
			i.SMA50 = 90
			i.RSI = 80
			i.MACD = 0
			i.Close = 106
		}, -5, model.Sell},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ind := neutral()
			tt.tweak(ind)
			sig := Evaluate(ind)
			if sig.TotalScore != tt.score {
				t.Errorf("expected score %d, got %d", tt.score, sig.TotalScore)
			}
			if sig.Recommendation != tt.rec {
				t.Errorf("expected %s, got %s", tt.rec, sig.Recommendation)
			}
		})
	}
}

func TestRecommend_AllScores(t *testing.T) {
	s := NewScorer(Thresholds{})
	want := map[int]model.Recommendation{
		-5: model.Sell, -4: model.Sell, -3: model.Sell,
		-2: model.Hold, -1: model.Hold, 0: model.Hold, 1: model.Hold, 2: model.Hold,
		3: model.Reinforce, 4: model.Reinforce, 5: model.Reinforce,
	}
	for score := -MaxScore; score <= MaxScore; score++ {
		if got := s.recommend(score); got != want[score] {
			t.Errorf("score %d: expected %s, got %s", score, want[score], got)
		}
	}
}

func TestScorer_CustomThresholds(t *testing.T) {
	s := NewScorer(Thresholds{Reinforce: 2, Sell: -4, Overbought: 80, Oversold: 20})
	ind := neutral()
	ind.SMA50 = 110
	ind.RSI = 25 // not oversold under the custom 20 threshold
	sig := s.Evaluate(ind)
	if sig.TotalScore != 2 || sig.Recommendation != model.Reinforce {
		t.Errorf("expected 2/REINFORCE, got %d/%s", sig.TotalScore, sig.Recommendation)
	}
}

func TestScorer_ZeroSellThreshold(t *testing.T) {
	s := NewScorer(Thresholds{Overbought: 70, Oversold: 30, Reinforce: 3, Sell: 0})
	if s.Thresholds.Sell != 0 {
		t.Fatalf("expected sell threshold 0 to be kept, got %d", s.Thresholds.Sell)
	}
	if got := s.recommend(0); got != model.Sell {
		t.Errorf("score 0 with sell threshold 0: expected %s, got %s", model.Sell, got)
	}
	if got := s.recommend(1); got != model.Hold {
		t.Errorf("score 1: expected %s, got %s", model.Hold, got)
	}
}
