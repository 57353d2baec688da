package recorder

import (
	"context"
	"time"

	"FinDash/internal/model"
)

// TurnRecord summarizes one decision turn.
type TurnRecord struct {
	At            time.Time
	Actions       []string
	AvailableCash float64
	OpenPositions int
}

// SignalRecord holds the indicator snapshot and score for one ticker evaluated in a turn.
type SignalRecord struct {
	At         time.Time
	Ticker     string
	Indicators *model.MarketIndicators
	Signal     *model.TradeSignal
}

// Recorder persists historical data for analysis.
type Recorder interface {
	RecordTurn(ctx context.Context, turn *TurnRecord) error
	RecordSignal(ctx context.Context, sig *SignalRecord) error
	RecordTransaction(ctx context.Context, tx model.Transaction) error
	RecordEvaluation(ctx context.Context, rec model.PredictionRecord) error
	Close() error
}
