package prediction

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"FinDash/internal/model"
	"FinDash/internal/recorder"
)

// PriceSource provides price series; the collector satisfies it.
type PriceSource interface {
	Series(ctx context.Context, ticker string, start, end time.Time, g model.Granularity) (*model.PriceSeries, error)
}

// MarketContext is the market state captured when a prediction is issued.
type MarketContext struct {
	RSI *float64
	VIX *float64
}

// ReconcileResult counts the records a reconciliation pass resolved.
type ReconcileResult struct {
	Evaluated int
	Errored   int
}

// Tracker logs predictions and later scores them against realized prices.
type Tracker struct {
	store  *Store
	prices PriceSource
	rec    recorder.Recorder
	log    zerolog.Logger

	// Now is the reconciliation clock.
	Now func() time.Time
}

// NewTracker creates a Tracker. A nil recorder disables the journal.
func NewTracker(store *Store, prices PriceSource, rec recorder.Recorder, log zerolog.Logger) *Tracker {
	if rec == nil {
		rec = recorder.NewNoopRecorder()
	}
	return &Tracker{
		store:  store,
		prices: prices,
		rec:    rec,
		log:    log.With().Str("component", "prediction").Logger(),
		Now:    time.Now,
	}
}

// LogPrediction appends a PENDING record targeting issuedAt + horizon.
func (t *Tracker) LogPrediction(ticker string, h model.Horizon, reference, predicted float64, issuedAt time.Time, mc MarketContext) (model.PredictionRecord, error) {
	issuedAt = issuedAt.UTC()
	rec := model.PredictionRecord{
		ID:             uuid.NewString(),
		IssuedAt:       issuedAt,
		Ticker:         ticker,
		Horizon:        h,
		ReferencePrice: reference,
		PredictedPrice: predicted,
		TargetAt:       issuedAt.Add(h.Duration),
		Status:         model.StatusPending,
		MarketRSI:      mc.RSI,
		MarketVIX:      mc.VIX,
	}
	if err := t.store.Append(rec); err != nil {
		return model.PredictionRecord{}, err
	}
	return rec, nil
}

// Records returns the whole log.
func (t *Tracker) Records() ([]model.PredictionRecord, error) {
	return t.store.Load()
}

// granularityFor picks the bar size able to resolve a horizon.
func granularityFor(h model.Horizon) model.Granularity {
	if h.Intraday() {
		return model.Hourly
	}
	return model.Daily
}

type fetchKey struct {
	ticker string
	g      model.Granularity
}

// ReconcileDue evaluates every PENDING record whose target has passed. Records
// without market data become ERROR, which is terminal.
func (t *Tracker) ReconcileDue(ctx context.Context) (ReconcileResult, error) {
	var res ReconcileResult
	now := t.Now().UTC()

	recs, err := t.store.Load()
	if err != nil {
		return res, err
	}

	groups := map[fetchKey][]int{}
	var keys []fetchKey
	for i := range recs {
		if !recs[i].Due(now) {
			continue
		}
		k := fetchKey{ticker: recs[i].Ticker, g: granularityFor(recs[i].Horizon)}
		if _, ok := groups[k]; !ok {
			keys = append(keys, k)
		}
		groups[k] = append(groups[k], i)
	}
	if len(keys) == 0 {
		return res, nil
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].ticker != keys[j].ticker {
			return keys[i].ticker < keys[j].ticker
		}
		return keys[i].g < keys[j].g
	})

	for _, k := range keys {
		idx := groups[k]
		start, end := recs[idx[0]].TargetAt, recs[idx[0]].TargetAt
		for _, i := range idx[1:] {
			if recs[i].TargetAt.Before(start) {
				start = recs[i].TargetAt
			}
			if recs[i].TargetAt.After(end) {
				end = recs[i].TargetAt
			}
		}

		s, err := t.prices.Series(ctx, k.ticker, start.Add(-24*time.Hour), end.Add(24*time.Hour), k.g)
		if err != nil {
			if ctx.Err() != nil {
				return res, ctx.Err()
			}
			t.log.Warn().Str("ticker", k.ticker).Err(err).Int("records", len(idx)).Msg("no data, predictions marked ERROR")
			for _, i := range idx {
				recs[i].Status = model.StatusError
				res.Errored++
			}
			continue
		}
		for _, i := range idx {
			if recs[i].ReferencePrice <= 0 {
				recs[i].Status = model.StatusError
				res.Errored++
				continue
			}
			bar := nearest(s.Bars, recs[i].TargetAt)
			evaluate(&recs[i], bar.Close)
			res.Evaluated++
		}
	}

	if err := t.store.Rewrite(recs); err != nil {
		return res, fmt.Errorf("save reconciled predictions: %w", err)
	}
	for _, k := range keys {
		for _, i := range groups[k] {
			if err := t.rec.RecordEvaluation(ctx, recs[i]); err != nil {
				t.log.Warn().Err(err).Str("id", recs[i].ID).Msg("journal evaluation failed")
			}
		}
	}
	t.log.Info().Int("evaluated", res.Evaluated).Int("errored", res.Errored).Msg("predictions reconciled")
	return res, nil
}

// nearest returns the bar closest in time to target; ties go to the earlier bar.
func nearest(bars []model.OHLCV, target time.Time) model.OHLCV {
	best := bars[0]
	bestDist := absDuration(best.Time.Sub(target))
	for _, b := range bars[1:] {
		if d := absDuration(b.Time.Sub(target)); d < bestDist {
			best, bestDist = b, d
		}
	}
	return best
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}

func sign(x float64) int {
	switch {
	case x > 0:
		return 1
	case x < 0:
		return -1
	}
	return 0
}

// evaluate fills the realized fields of a record and marks it EVALUATED.
func evaluate(r *model.PredictionRecord, realized float64) {
	errPct := (realized - r.PredictedPrice) / r.ReferencePrice * 100
	direction := sign(r.PredictedPrice-r.ReferencePrice) == sign(realized-r.ReferencePrice)
	within5 := math.Abs(errPct) <= 5
	within10 := math.Abs(errPct) <= 10

	r.RealizedPrice = &realized
	r.ErrorPct = &errPct
	r.DirectionCorrect = &direction
	r.Within5Pct = &within5
	r.Within10Pct = &within10
	r.Status = model.StatusEvaluated
}
