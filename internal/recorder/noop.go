package recorder

import (
	"context"

	"FinDash/internal/model"
)

// NoopRecorder is a no-op implementation used when SQLite is not configured.
type NoopRecorder struct{}

func NewNoopRecorder() *NoopRecorder { return &NoopRecorder{} }

func (n *NoopRecorder) RecordTurn(context.Context, *TurnRecord) error                  { return nil }
func (n *NoopRecorder) RecordSignal(context.Context, *SignalRecord) error              { return nil }
func (n *NoopRecorder) RecordTransaction(context.Context, model.Transaction) error     { return nil }
func (n *NoopRecorder) RecordEvaluation(context.Context, model.PredictionRecord) error { return nil }
func (n *NoopRecorder) Close() error                                                   { return nil }
