package strategy

import (
	"fmt"

	"FinDash/internal/model"
)

// scoreTrend scores the SMA50/SMA200 alignment: ±2.
func scoreTrend(ind *model.MarketIndicators) model.FactorScore {
	f := model.FactorScore{Name: "Tendance"}
	switch {
	case ind.SMA50 > ind.SMA200:
		f.Score = 2
		f.Commentary = fmt.Sprintf("SMA50 %.2f > SMA200 %.2f", ind.SMA50, ind.SMA200)
	case ind.SMA50 < ind.SMA200:
		f.Score = -2
		f.Commentary = fmt.Sprintf("SMA50 %.2f < SMA200 %.2f", ind.SMA50, ind.SMA200)
	default:
		f.Commentary = "SMA50 = SMA200"
	}
	return f
}

// scoreMomentum scores RSI extremes: overbought -1, oversold +1.
func scoreMomentum(ind *model.MarketIndicators, t Thresholds) model.FactorScore {
	f := model.FactorScore{Name: "Momentum", Commentary: fmt.Sprintf("RSI=%.0f", ind.RSI)}
	switch {
	case ind.RSI > t.Overbought:
		f.Score = -1
		f.Commentary += " surachat"
	case ind.RSI < t.Oversold:
		f.Score = 1
		f.Commentary += " survente"
	}
	return f
}

// scoreMACD scores the MACD line against its signal line: ±1.
func scoreMACD(ind *model.MarketIndicators) model.FactorScore {
	f := model.FactorScore{Name: "MACD"}
	switch {
	case ind.MACD > ind.MACDSignal:
		f.Score = 1
		f.Commentary = "MACD au-dessus du signal"
	case ind.MACD < ind.MACDSignal:
		f.Score = -1
		f.Commentary = "MACD sous le signal"
	default:
		f.Commentary = "MACD = signal"
	}
	return f
}

// scoreBollinger scores band breakouts in the mean-reverting direction: ±1.
func scoreBollinger(ind *model.MarketIndicators) model.FactorScore {
	f := model.FactorScore{Name: "Bollinger"}
	switch {
	case ind.Close > ind.BBUpper:
		f.Score = -1
		f.Commentary = "au-dessus de la bande haute"
	case ind.Close < ind.BBLower:
		f.Score = 1
		f.Commentary = "sous la bande basse"
	default:
		f.Commentary = "dans les bandes"
	}
	return f
}
