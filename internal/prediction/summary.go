package prediction

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"FinDash/internal/model"
)

// Accuracy aggregates evaluated predictions. Rates are percentages.
type Accuracy struct {
	Label            string
	Evaluated        int
	DirectionHitRate float64
	Within5Rate      float64
	Within10Rate     float64
	MeanAbsErrorPct  float64
}

// Summary is the accuracy report over the whole log.
type Summary struct {
	Total     int
	Pending   int
	Errored   int
	Overall   Accuracy
	ByHorizon []Accuracy
}

// Summarize computes overall and per-horizon accuracy. Horizons are listed in
// standard order, unknown labels after them alphabetically.
func Summarize(recs []model.PredictionRecord) Summary {
	s := Summary{Total: len(recs)}
	var evaluated []model.PredictionRecord
	byLabel := map[string][]model.PredictionRecord{}
	for _, r := range recs {
		switch r.Status {
		case model.StatusPending:
			s.Pending++
		case model.StatusError:
			s.Errored++
		case model.StatusEvaluated:
			evaluated = append(evaluated, r)
			byLabel[r.Horizon.Label] = append(byLabel[r.Horizon.Label], r)
		}
	}
	s.Overall = accuracy("Total", evaluated)

	order := map[string]int{}
	for i, h := range model.StandardHorizons {
		order[h.Label] = i
	}
	labels := make([]string, 0, len(byLabel))
	for l := range byLabel {
		labels = append(labels, l)
	}
	sort.Slice(labels, func(i, j int) bool {
		oi, iok := order[labels[i]]
		oj, jok := order[labels[j]]
		switch {
		case iok && jok:
			return oi < oj
		case iok != jok:
			return iok
		}
		return labels[i] < labels[j]
	})
	for _, l := range labels {
		s.ByHorizon = append(s.ByHorizon, accuracy(l, byLabel[l]))
	}
	return s
}

func accuracy(label string, recs []model.PredictionRecord) Accuracy {
	a := Accuracy{Label: label, Evaluated: len(recs)}
	if len(recs) == 0 {
		return a
	}
	dir := make([]float64, len(recs))
	w5 := make([]float64, len(recs))
	w10 := make([]float64, len(recs))
	absErr := make([]float64, len(recs))
	for i, r := range recs {
		dir[i] = indicator(r.DirectionCorrect)
		w5[i] = indicator(r.Within5Pct)
		w10[i] = indicator(r.Within10Pct)
		if r.ErrorPct != nil {
			absErr[i] = math.Abs(*r.ErrorPct)
		}
	}
	a.DirectionHitRate = stat.Mean(dir, nil) * 100
	a.Within5Rate = stat.Mean(w5, nil) * 100
	a.Within10Rate = stat.Mean(w10, nil) * 100
	a.MeanAbsErrorPct = stat.Mean(absErr, nil)
	return a
}

func indicator(b *bool) float64 {
	if b != nil && *b {
		return 1
	}
	return 0
}
