package notifier

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"

	"FinDash/internal/model"
	"FinDash/internal/portfolio"
	"FinDash/internal/prediction"
)

// FormatMoney renders an amount in its currency's conventional format. Unknown
// currency codes fall back to "1234.56 XYZ".
func FormatMoney(amount float64, currency string) string {
	cur := money.GetCurrency(currency)
	if cur == nil {
		return fmt.Sprintf("%.2f %s", amount, currency)
	}
	minor := decimal.NewFromFloat(amount).Shift(int32(cur.Fraction)).Round(0).IntPart()
	return money.New(minor, cur.Code).Display()
}

// FormatTurnReport formats the actions of one decision turn.
func FormatTurnReport(at time.Time, actions []string) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("🤖 <b>Tour de décision</b> | %s UTC\n\n", at.UTC().Format("2006-01-02 15:04")))
	if len(actions) == 0 {
		b.WriteString("Aucune action.\n")
		return b.String()
	}
	for _, a := range actions {
		b.WriteString("• " + a + "\n")
	}
	return b.String()
}

// FormatLedgerStatus formats the valuation with the current recommendation per held ticker.
func FormatLedgerStatus(l model.Ledger, v *portfolio.Valuation, signals map[string]*model.TradeSignal) string {
	var b strings.Builder
	cur := l.AccountCurrency

	b.WriteString("📦 <b>Portefeuille</b>\n\n")
	b.WriteString(fmt.Sprintf("Capital initial: %s\n", FormatMoney(l.InitialCapital, cur)))
	b.WriteString(fmt.Sprintf("Liquidités: %s\n", FormatMoney(l.AvailableCash, cur)))
	if v != nil {
		b.WriteString(fmt.Sprintf("Valeur totale: %s (%+.2f%%)\n", FormatMoney(v.Total, cur), v.PnLPct))
	}
	invested, divested := l.Flows()
	b.WriteString(fmt.Sprintf("Investi: %s | Désinvesti: %s\n", FormatMoney(invested, cur), FormatMoney(divested, cur)))

	if len(l.Positions) == 0 {
		b.WriteString("\nAucune position ouverte.\n")
	} else {
		b.WriteString(fmt.Sprintf("\n📈 <b>Positions (%d)</b>\n", len(l.Positions)))
		values := map[string]portfolio.PositionValue{}
		if v != nil {
			for _, pv := range v.Positions {
				values[pv.Ticker] = pv
			}
		}
		tickers := make([]string, 0, len(l.Positions))
		for t := range l.Positions {
			tickers = append(tickers, t)
		}
		sort.Strings(tickers)
		for _, t := range tickers {
			p := l.Positions[t]
			b.WriteString(fmt.Sprintf("  %s: %.4f @ %.2f | pic %.2f | stop %.2f", t, p.Quantity, p.EntryPrice, p.PeakPrice, p.StopPrice))
			if pv, ok := values[t]; ok {
				stale := ""
				if pv.Stale {
					stale = " (cours indisponible)"
				}
				b.WriteString(fmt.Sprintf(" | %s %+.2f%%%s", FormatMoney(pv.MarketValue, cur), pv.PnLPct, stale))
			}
			if sig, ok := signals[t]; ok {
				b.WriteString(fmt.Sprintf(" | %s (%+d)", sig.Recommendation, sig.TotalScore))
			}
			b.WriteString("\n")
		}
	}
	if !l.UpdatedAt.IsZero() {
		b.WriteString(fmt.Sprintf("\nMis à jour: %s UTC\n", l.UpdatedAt.UTC().Format("2006-01-02 15:04")))
	}
	return b.String()
}

// FormatReconcile formats a reconciliation pass and the accuracy summary.
func FormatReconcile(res prediction.ReconcileResult, s prediction.Summary) string {
	var b strings.Builder
	b.WriteString("📊 <b>Suivi des prédictions</b>\n\n")
	b.WriteString(fmt.Sprintf("Évaluées: %d | Erreurs: %d\n", res.Evaluated, res.Errored))
	b.WriteString(fmt.Sprintf("Total: %d | En attente: %d | En erreur: %d\n\n", s.Total, s.Pending, s.Errored))
	if s.Overall.Evaluated == 0 {
		b.WriteString("Aucune prédiction évaluée.\n")
		return b.String()
	}
	writeAccuracy(&b, s.Overall)
	for _, a := range s.ByHorizon {
		writeAccuracy(&b, a)
	}
	return b.String()
}

func writeAccuracy(b *strings.Builder, a prediction.Accuracy) {
	b.WriteString(fmt.Sprintf("  %s (%d): direction %.1f%% | ±5%% %.1f%% | ±10%% %.1f%% | erreur moy. %.2f%%\n",
		a.Label, a.Evaluated, a.DirectionHitRate, a.Within5Rate, a.Within10Rate, a.MeanAbsErrorPct))
}

func modelLabel(m string) string {
	if m == prediction.ModelTrend {
		return "tendance"
	}
	return "régression"
}

// FormatForecasts formats projected moves per ticker and horizon.
func FormatForecasts(forecasts []*prediction.Forecast) string {
	var b strings.Builder
	b.WriteString("🧠 <b>Prédictions</b>\n\n")
	if len(forecasts) == 0 {
		b.WriteString("Aucune prédiction émise.\n")
		return b.String()
	}
	for _, fc := range forecasts {
		b.WriteString(fmt.Sprintf("<b>%s</b> %.2f (%s)\n", fc.Ticker, fc.Reference, modelLabel(fc.Model)))
		for _, h := range fc.Horizons {
			b.WriteString(fmt.Sprintf("  %s: %.2f (%+.2f%%)\n", h.Horizon.Label, h.Predicted, fc.ChangePct(h)))
		}
	}
	return b.String()
}
