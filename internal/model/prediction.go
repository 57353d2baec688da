package model

import "time"

// PredictionStatus is the lifecycle state of a prediction record.
type PredictionStatus string

const (
	StatusPending   PredictionStatus = "PENDING"
	StatusEvaluated PredictionStatus = "EVALUATED"
	StatusError     PredictionStatus = "ERROR"
)

// Horizon is a forward time distance a prediction targets.
type Horizon struct {
	Label    string
	Duration time.Duration
}

// Intraday reports whether the horizon needs sub-day bars to evaluate.
func (h Horizon) Intraday() bool {
	return h.Duration < 24*time.Hour
}

// StandardHorizons are the horizons issued by the forecaster.
var StandardHorizons = []Horizon{
	{Label: "Court Terme (2h)", Duration: 2 * time.Hour},
	{Label: "Intraday (8h)", Duration: 8 * time.Hour},
	{Label: "1 Jour", Duration: 24 * time.Hour},
	{Label: "2 Jours", Duration: 48 * time.Hour},
	{Label: "1 Semaine", Duration: 168 * time.Hour},
}

// PredictionRecord is one row of the prediction log. Nil pointers are nulls.
type PredictionRecord struct {
	ID               string
	IssuedAt         time.Time
	Ticker           string
	Horizon          Horizon
	ReferencePrice   float64
	PredictedPrice   float64
	TargetAt         time.Time
	Status           PredictionStatus
	RealizedPrice    *float64
	ErrorPct         *float64
	DirectionCorrect *bool
	Within5Pct       *bool
	Within10Pct      *bool
	MarketRSI        *float64
	MarketVIX        *float64
}

// Due reports whether the record is pending and its target has passed.
func (r *PredictionRecord) Due(now time.Time) bool {
	return r.Status == StatusPending && r.TargetAt.Before(now)
}
