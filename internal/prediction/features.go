package prediction

import (
	"errors"
	"fmt"

	"github.com/markcheno/go-talib"
	"gonum.org/v1/gonum/mat"

	"FinDash/internal/model"
)

const (
	featureRSIPeriod = 14
	featureEMAFast   = 20
	featureEMASlow   = 50
)

// featureRows are the regressors of each bar once every indicator is warm:
// hour, day of week (Monday = 0), RSI(14), EMA(20) and EMA(50).
// Row k describes bars[first+k].
type featureRows struct {
	first int
	rows  [][]float64
}

func buildFeatures(bars []model.OHLCV) featureRows {
	if len(bars) < featureEMASlow {
		return featureRows{}
	}
	closes := model.Closes(bars)
	rsi := talib.Rsi(closes, featureRSIPeriod)
	fast := talib.Ema(closes, featureEMAFast)
	slow := talib.Ema(closes, featureEMASlow)

	fr := featureRows{first: featureEMASlow - 1}
	for i := fr.first; i < len(bars); i++ {
		t := bars[i].Time.UTC()
		fr.rows = append(fr.rows, []float64{
			float64(t.Hour()),
			float64((t.Weekday() + 6) % 7),
			rsi[i],
			fast[i],
			slow[i],
		})
	}
	return fr
}

// latest is the feature row of the last bar.
func (fr featureRows) latest() []float64 {
	return fr.rows[len(fr.rows)-1]
}

// trainingSet pairs each row with the close ahead bars later. Rows whose
// target falls past the series are dropped.
func (fr featureRows) trainingSet(bars []model.OHLCV, ahead int) ([][]float64, []float64) {
	var x [][]float64
	var y []float64
	for k, row := range fr.rows {
		j := fr.first + k + ahead
		if j >= len(bars) {
			break
		}
		x = append(x, row)
		y = append(y, bars[j].Close)
	}
	return x, y
}

// linearModel is an ordinary least squares fit with an intercept.
type linearModel struct {
	coef []float64 // coef[0] is the intercept
}

// fitLinear solves the least squares problem through a thin SVD. Collinear
// columns get the minimum-norm solution instead of failing.
func fitLinear(x [][]float64, y []float64) (*linearModel, error) {
	if len(x) == 0 || len(x) != len(y) {
		return nil, errors.New("empty or mismatched training set")
	}
	r, c := len(x), len(x[0])+1
	a := mat.NewDense(r, c, nil)
	for i, row := range x {
		a.Set(i, 0, 1)
		for j, v := range row {
			a.Set(i, j+1, v)
		}
	}

	var svd mat.SVD
	if !svd.Factorize(a, mat.SVDThin) {
		return nil, errors.New("svd factorization failed")
	}
	rank := svd.Rank(1e-10)
	if rank == 0 {
		return nil, errors.New("design matrix has rank zero")
	}
	var beta mat.VecDense
	svd.SolveVecTo(&beta, mat.NewVecDense(r, y), rank)
	return &linearModel{coef: mat.Col(nil, 0, &beta)}, nil
}

func (m *linearModel) predict(row []float64) float64 {
	v := m.coef[0]
	for j, x := range row {
		v += m.coef[j+1] * x
	}
	return v
}

// forecastFeatures fits one regression per horizon on the indicator features
// and predicts from the last bar. Horizons with fewer than minRows training
// rows are left out.
func (f *Forecaster) forecastFeatures(ticker string, bars []model.OHLCV, horizons []model.Horizon) (*Forecast, error) {
	fr := buildFeatures(bars)
	if len(fr.rows) < f.cfg.MinRows {
		return nil, fmt.Errorf("features over %d bars: %w", len(bars), model.ErrInsufficientHistory)
	}

	last := bars[len(bars)-1]
	fc := &Forecast{
		Ticker:    ticker,
		Model:     ModelFeatures,
		AsOf:      last.Time,
		Reference: last.Close,
	}
	for _, h := range horizons {
		x, y := fr.trainingSet(bars, int(h.Duration.Hours()))
		if len(x) < f.cfg.MinRows {
			f.log.Debug().Str("ticker", ticker).Str("horizon", h.Label).Int("rows", len(x)).Msg("horizon skipped, not enough rows")
			continue
		}
		m, err := fitLinear(x, y)
		if err != nil {
			f.log.Warn().Str("ticker", ticker).Str("horizon", h.Label).Err(err).Msg("regression failed")
			continue
		}
		fc.Horizons = append(fc.Horizons, HorizonForecast{Horizon: h, Predicted: m.predict(fr.latest())})
	}
	if len(fc.Horizons) == 0 {
		return nil, fmt.Errorf("no horizon with %d rows: %w", f.cfg.MinRows, model.ErrInsufficientHistory)
	}
	return fc, nil
}
