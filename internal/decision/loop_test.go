package decision

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"FinDash/internal/collector"
	"FinDash/internal/model"
	"FinDash/internal/portfolio"
	"FinDash/internal/risk"
	"FinDash/internal/strategy"
)

var day0 = time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC)

type unitRates struct{}

func (unitRates) Rate(context.Context, string, string) float64 { return 1.0 }

// crashBars rises 0.5 a day from 100 for 260 days then drops to 150: uptrend,
// oversold RSI and a close under the lower band score +3.
func crashBars() []model.OHLCV {
	bars := make([]model.OHLCV, 0, 261)
	for i := 0; i < 260; i++ {
		c := 100 + 0.5*float64(i)
		bars = append(bars, model.OHLCV{Time: day0.AddDate(0, 0, i), Open: c, High: c + 1, Low: c - 1, Close: c})
	}
	return append(bars, model.OHLCV{Time: day0.AddDate(0, 0, 260), Open: 150, High: 151, Low: 149, Close: 150})
}

// flatBars closes at 110 with a 3-point range: ATR 3, NATR ~2.7.
func flatBars(n int) []model.OHLCV {
	bars := make([]model.OHLCV, n)
	for i := range bars {
		bars[i] = model.OHLCV{Time: day0.AddDate(0, 0, 260-n+1+i), Open: 110, High: 111.5, Low: 108.5, Close: 110}
	}
	return bars
}

type fixture struct {
	loop   *Loop
	ledger *portfolio.Manager
	mock   *collector.MockFetcher
}

func newFixture(t *testing.T, capital float64, cfg Config) *fixture {
	t.Helper()
	now := day0.AddDate(0, 0, 260).Add(22 * time.Hour)
	mock := &collector.MockFetcher{Series: map[string][]model.OHLCV{}}
	prices := collector.NewCollector(mock, 0, zerolog.Nop())

	ledger, err := portfolio.NewManager(filepath.Join(t.TempDir(), "ledger.json"), portfolio.Options{
		InitialCapital:  capital,
		AccountCurrency: "EUR",
		QuoteCurrency:   "EUR",
		Prices:          prices,
		Rates:           unitRates{},
		Logger:          zerolog.Nop(),
	})
	require.NoError(t, err)
	ledger.Now = func() time.Time { return now }

	loop := NewLoop(cfg, prices, ledger, strategy.NewScorer(strategy.Thresholds{}), risk.NewManager(risk.Config{}), nil, zerolog.Nop())
	loop.Now = func() time.Time { return now }
	return &fixture{loop: loop, ledger: ledger, mock: mock}
}

func TestRunTurnOpensOneEntryAndIsIdempotent(t *testing.T) {
	f := newFixture(t, 10000, Config{Candidates: []string{"AAPL", "MSFT"}})
	f.mock.Series["AAPL"] = crashBars()
	f.mock.Series["MSFT"] = crashBars()
	ctx := context.Background()

	actions, err := f.loop.RunTurn(ctx)
	require.NoError(t, err)
	require.Len(t, actions, 1)
	assert.True(t, strings.HasPrefix(actions[0], "ACHAT AAPL"), actions[0])
	assert.Equal(t, StateDone, f.loop.State())

	l := f.ledger.Snapshot()
	require.True(t, l.Holds("AAPL"))
	assert.False(t, l.Holds("MSFT"))
	assert.InDelta(t, 2500, l.Positions["AAPL"].InvestedAmount, 1e-9)
	assert.InDelta(t, 7500, l.AvailableCash, 1e-9)
	assert.Equal(t, day0.AddDate(0, 0, 260), l.LastEntryBar)

	again, err := f.loop.RunTurn(ctx)
	require.NoError(t, err)
	assert.Empty(t, again)
	after := f.ledger.Snapshot()
	assert.Equal(t, l.AvailableCash, after.AvailableCash)
	assert.Len(t, after.History, 1)
	assert.Len(t, after.Positions, 1)
	assert.NoError(t, after.Verify())
}

func TestRunTurnStopLossExit(t *testing.T) {
	f := newFixture(t, 10000, Config{})
	ctx := context.Background()
	_, err := f.ledger.OpenPositionAt(ctx, "AAPL", 1000, 100, day0)
	require.NoError(t, err)
	pos := f.ledger.Snapshot().Positions["AAPL"]
	pos.PeakPrice = 120
	require.NoError(t, f.ledger.UpdatePosition(pos))
	f.mock.Series["AAPL"] = flatBars(30)

	actions, err := f.loop.RunTurn(ctx)
	require.NoError(t, err)
	require.Len(t, actions, 1)
	assert.Contains(t, actions[0], risk.ReasonStopLoss)

	l := f.ledger.Snapshot()
	assert.False(t, l.Holds("AAPL"))
	last := l.History[len(l.History)-1]
	assert.Equal(t, model.TxAutoSell, last.Type)
	assert.Equal(t, risk.ReasonStopLoss, last.Reason)
	assert.InDelta(t, 1100, last.Amount, 1e-9) // 10 shares at 110
	assert.NoError(t, l.Verify())
}

func TestRunTurnKeepsPositionWithoutData(t *testing.T) {
	f := newFixture(t, 10000, Config{})
	ctx := context.Background()
	_, err := f.ledger.OpenPositionAt(ctx, "GONE", 1000, 100, day0)
	require.NoError(t, err)

	actions, err := f.loop.RunTurn(ctx)
	require.NoError(t, err)
	assert.Empty(t, actions)
	assert.True(t, f.ledger.Snapshot().Holds("GONE"))
}

func TestRunTurnRatchetsTrailingStop(t *testing.T) {
	f := newFixture(t, 10000, Config{})
	ctx := context.Background()
	_, err := f.ledger.OpenPositionAt(ctx, "AAPL", 1000, 100, day0)
	require.NoError(t, err)
	f.mock.Series["AAPL"] = flatBars(30)

	actions, err := f.loop.RunTurn(ctx)
	require.NoError(t, err)
	assert.Empty(t, actions)
	pos := f.ledger.Snapshot().Positions["AAPL"]
	assert.Equal(t, 110.0, pos.PeakPrice)
	assert.InDelta(t, 102.5, pos.StopPrice, 1e-9)
}

func TestRunTurnEntryGuards(t *testing.T) {
	t.Run("budget below minimum ticket", func(t *testing.T) {
		f := newFixture(t, 300, Config{Candidates: []string{"AAPL"}})
		f.mock.Series["AAPL"] = crashBars()

		actions, err := f.loop.RunTurn(context.Background())
		require.NoError(t, err)
		assert.Empty(t, actions)
		assert.Empty(t, f.ledger.Snapshot().Positions)
	})

	t.Run("position ceiling", func(t *testing.T) {
		f := newFixture(t, 10000, Config{Candidates: []string{"AAPL"}, MaxPositions: 1})
		_, err := f.ledger.OpenPositionAt(context.Background(), "GONE", 1000, 100, day0)
		require.NoError(t, err)
		f.mock.Series["AAPL"] = crashBars()

		actions, err := f.loop.RunTurn(context.Background())
		require.NoError(t, err)
		assert.Empty(t, actions)
		assert.False(t, f.ledger.Snapshot().Holds("AAPL"))
	})

	t.Run("no reinforce signal", func(t *testing.T) {
		f := newFixture(t, 10000, Config{Candidates: []string{"AAPL"}})
		f.mock.Series["AAPL"] = flatBars(261)

		actions, err := f.loop.RunTurn(context.Background())
		require.NoError(t, err)
		assert.Empty(t, actions)
	})
}

func TestSignals(t *testing.T) {
	f := newFixture(t, 10000, Config{})
	f.mock.Series["AAPL"] = crashBars()
	f.mock.Series["SHORT"] = flatBars(30)

	sigs := f.loop.Signals(context.Background(), []string{"AAPL", "SHORT", "NONE"})
	require.Len(t, sigs, 1)
	assert.Equal(t, model.Reinforce, sigs["AAPL"].Recommendation)
	assert.Equal(t, 3, sigs["AAPL"].TotalScore)
}

func TestRunTurnDoesNotRebuyAfterStopLoss(t *testing.T) {
	f := newFixture(t, 10000, Config{Candidates: []string{"AAPL", "MSFT"}})
	ctx := context.Background()
	_, err := f.ledger.OpenPositionAt(ctx, "AAPL", 1000, 200, day0)
	require.NoError(t, err)
	pos := f.ledger.Snapshot().Positions["AAPL"]
	pos.PeakPrice = 229.5
	require.NoError(t, f.ledger.UpdatePosition(pos))
	f.mock.Series["AAPL"] = crashBars()
	f.mock.Series["MSFT"] = crashBars()

	actions, err := f.loop.RunTurn(ctx)
	require.NoError(t, err)
	require.Len(t, actions, 2)
	assert.True(t, strings.HasPrefix(actions[0], "VENTE AUTO AAPL"), actions[0])
	assert.True(t, strings.HasPrefix(actions[1], "ACHAT MSFT"), actions[1])

	l := f.ledger.Snapshot()
	assert.False(t, l.Holds("AAPL"))
	assert.Equal(t, day0.AddDate(0, 0, 260), l.ExitBars["AAPL"])

	again, err := f.loop.RunTurn(ctx)
	require.NoError(t, err)
	assert.Empty(t, again)
	after := f.ledger.Snapshot()
	assert.False(t, after.Holds("AAPL"))
	assert.Len(t, after.History, len(l.History))
	assert.NoError(t, after.Verify())
}

func TestRunTurnReentersOnNewerBarAfterExit(t *testing.T) {
	f := newFixture(t, 10000, Config{Candidates: []string{"AAPL"}})
	ctx := context.Background()
	f.ledger.SetExitBar("AAPL", day0.AddDate(0, 0, 259))
	f.mock.Series["AAPL"] = crashBars()

	actions, err := f.loop.RunTurn(ctx)
	require.NoError(t, err)
	require.Len(t, actions, 1)
	assert.True(t, strings.HasPrefix(actions[0], "ACHAT AAPL"), actions[0])
}

func TestRunTurnStopsScanningAtFirstReinforce(t *testing.T) {
	f := newFixture(t, 10000, Config{Candidates: []string{"AAPL", "MSFT", "NVDA", "TSLA"}})
	for _, ticker := range []string{"AAPL", "MSFT", "NVDA", "TSLA"} {
		f.mock.Series[ticker] = crashBars()
	}

	actions, err := f.loop.RunTurn(context.Background())
	require.NoError(t, err)
	require.Len(t, actions, 1)
	assert.True(t, strings.HasPrefix(actions[0], "ACHAT AAPL"), actions[0])
	assert.Equal(t, 1, f.mock.Calls)
}
