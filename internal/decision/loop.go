package decision

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"FinDash/internal/calculator"
	"FinDash/internal/model"
	"FinDash/internal/recorder"
	"FinDash/internal/risk"
	"FinDash/internal/strategy"
)

// State is the phase a turn is in.
type State string

const (
	StateEvaluateExits   State = "EVALUATE_EXITS"
	StateEvaluateEntries State = "EVALUATE_ENTRIES"
	StatePersist         State = "PERSIST"
	StateDone            State = "DONE"
)

// Config bounds the automated entries.
type Config struct {
	Candidates     []string      `yaml:"candidates"`
	MaxPositions   int           `yaml:"max_positions"`
	BudgetFraction float64       `yaml:"budget_fraction"`
	MinTicket      float64       `yaml:"min_ticket"`
	Lookback       time.Duration `yaml:"lookback"` // daily history pulled per ticker
}

// DefaultConfig returns 5 positions, 25% of cash per entry, 100 minimum and ~14 months of history.
func DefaultConfig() Config {
	return Config{
		MaxPositions:   5,
		BudgetFraction: 0.25,
		MinTicket:      100,
		Lookback:       420 * 24 * time.Hour,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.MaxPositions <= 0 {
		c.MaxPositions = d.MaxPositions
	}
	if c.BudgetFraction <= 0 {
		c.BudgetFraction = d.BudgetFraction
	}
	if c.MinTicket <= 0 {
		c.MinTicket = d.MinTicket
	}
	if c.Lookback <= 0 {
		c.Lookback = d.Lookback
	}
	return c
}

// PriceSource provides price series; the collector satisfies it.
type PriceSource interface {
	Series(ctx context.Context, ticker string, start, end time.Time, g model.Granularity) (*model.PriceSeries, error)
}

// Ledger is the portfolio surface a turn needs; portfolio.Manager satisfies it.
type Ledger interface {
	Snapshot() model.Ledger
	UpdatePosition(pos model.Position) error
	OpenPositionAt(ctx context.Context, ticker string, amount, price float64, at time.Time) (model.Position, error)
	ClosePositionAt(ctx context.Context, ticker string, txType model.TransactionType, reason string, price float64, at time.Time) (model.Transaction, error)
	SetLastEntryBar(t time.Time)
	SetExitBar(ticker string, t time.Time)
	Save() error
}

// Loop runs decision turns: exits first, then at most one entry.
type Loop struct {
	cfg    Config
	prices PriceSource
	ledger Ledger
	scorer *strategy.Scorer
	risk   *risk.Manager
	rec    recorder.Recorder
	log    zerolog.Logger
	state  State

	// Now is the turn clock.
	Now func() time.Time
}

// NewLoop creates a Loop. A nil recorder disables the journal.
func NewLoop(cfg Config, prices PriceSource, ledger Ledger, scorer *strategy.Scorer, rm *risk.Manager, rec recorder.Recorder, log zerolog.Logger) *Loop {
	if rec == nil {
		rec = recorder.NewNoopRecorder()
	}
	return &Loop{
		cfg:    cfg.withDefaults(),
		prices: prices,
		ledger: ledger,
		scorer: scorer,
		risk:   rm,
		rec:    rec,
		log:    log.With().Str("component", "decision").Logger(),
		state:  StateDone,
		Now:    time.Now,
	}
}

// State returns the phase of the current or last turn.
func (l *Loop) State() State { return l.state }

func (l *Loop) enter(s State) {
	l.state = s
	l.log.Debug().Str("state", string(s)).Msg("turn state")
}

// RunTurn evaluates exits then entries and persists the ledger. The returned
// actions are human-readable; an empty slice means nothing happened.
// Only persistence failures are returned as errors.
func (l *Loop) RunTurn(ctx context.Context) ([]string, error) {
	now := l.Now().UTC()
	actions := []string{}

	l.enter(StateEvaluateExits)
	exits, err := l.evaluateExits(ctx, now)
	actions = append(actions, exits...)
	if err != nil {
		return actions, err
	}

	l.enter(StateEvaluateEntries)
	entry, err := l.evaluateEntries(ctx, now)
	if entry != "" {
		actions = append(actions, entry)
	}
	if err != nil {
		return actions, err
	}

	l.enter(StatePersist)
	if err := l.ledger.Save(); err != nil {
		return actions, fmt.Errorf("persist turn: %w", err)
	}
	snap := l.ledger.Snapshot()
	if err := l.rec.RecordTurn(ctx, &recorder.TurnRecord{
		At:            now,
		Actions:       actions,
		AvailableCash: snap.AvailableCash,
		OpenPositions: len(snap.Positions),
	}); err != nil {
		l.log.Warn().Err(err).Msg("journal turn failed")
	}

	l.enter(StateDone)
	l.log.Info().Int("actions", len(actions)).Float64("cash", snap.AvailableCash).Int("positions", len(snap.Positions)).Msg("turn complete")
	return actions, nil
}

func (l *Loop) series(ctx context.Context, ticker string, now time.Time) (*model.PriceSeries, error) {
	return l.prices.Series(ctx, ticker, now.Add(-l.cfg.Lookback), now, model.Daily)
}

func (l *Loop) evaluateExits(ctx context.Context, now time.Time) ([]string, error) {
	snap := l.ledger.Snapshot()
	tickers := make([]string, 0, len(snap.Positions))
	for t := range snap.Positions {
		tickers = append(tickers, t)
	}
	sort.Strings(tickers)

	var actions []string
	for _, ticker := range tickers {
		pos := snap.Positions[ticker]
		s, err := l.series(ctx, ticker, now)
		if err != nil {
			l.log.Warn().Str("ticker", ticker).Err(err).Msg("no data, position kept")
			continue
		}
		vol, err := calculator.ComputeVolatility(s.Bars)
		if err != nil {
			l.log.Warn().Str("ticker", ticker).Err(err).Msg("cannot assess risk, position kept")
			continue
		}

		a := l.risk.Evaluate(pos, *vol)
		if err := l.ledger.UpdatePosition(a.Position); err != nil {
			l.log.Warn().Str("ticker", ticker).Err(err).Msg("update position failed")
		}
		l.log.Debug().Str("ticker", ticker).Float64("close", vol.Close).Float64("stop", a.StopLoss).
			Float64("take_profit", a.TakeProfit).Float64("natr", vol.NATR).Msg("position assessed")
		if !a.Exit {
			continue
		}

		tx, err := l.ledger.ClosePositionAt(ctx, ticker, model.TxAutoSell, a.Reason, vol.Close, now)
		if err != nil {
			if errors.Is(err, model.ErrPersistence) {
				return actions, err
			}
			l.log.Warn().Str("ticker", ticker).Err(err).Msg("close failed, position kept")
			continue
		}
		l.ledger.SetExitBar(ticker, vol.AsOf)
		actions = append(actions, fmt.Sprintf("VENTE AUTO %s : %s (cours %.2f, stop %.2f, take-profit %.2f) -> %.2f %s",
			ticker, a.Reason, vol.Close, a.StopLoss, a.TakeProfit, tx.Amount, snap.AccountCurrency))
	}
	return actions, nil
}

type candidate struct {
	ticker string
	bar    model.OHLCV
	signal *model.TradeSignal
}

// evaluateEntries opens the first REINFORCE candidate and stops scanning. A
// candidate is only bought on a bar newer than the last entry bar and newer
// than its own last exit bar, so a rerun on unchanged data buys nothing.
func (l *Loop) evaluateEntries(ctx context.Context, now time.Time) (string, error) {
	snap := l.ledger.Snapshot()
	if len(snap.Positions) >= l.cfg.MaxPositions {
		l.log.Info().Int("positions", len(snap.Positions)).Msg("position ceiling reached, no entry")
		return "", nil
	}
	budget := snap.AvailableCash * l.cfg.BudgetFraction
	if budget < l.cfg.MinTicket {
		l.log.Info().Float64("budget", budget).Float64("min_ticket", l.cfg.MinTicket).Msg("budget below minimum ticket, no entry")
		return "", nil
	}

	var pick *candidate
	for _, ticker := range l.cfg.Candidates {
		if snap.Holds(ticker) {
			continue
		}
		s, err := l.series(ctx, ticker, now)
		if err != nil {
			l.log.Warn().Str("ticker", ticker).Err(err).Msg("candidate skipped")
			continue
		}
		last := s.Last()
		if exit, ok := snap.ExitBars[ticker]; ok && !last.Time.After(exit) {
			l.log.Debug().Str("ticker", ticker).Time("exit_bar", exit).Msg("no new bar since exit, candidate skipped")
			continue
		}
		ind, err := calculator.Compute(s.Bars)
		if err != nil {
			l.log.Warn().Str("ticker", ticker).Err(err).Msg("candidate skipped")
			continue
		}
		sig := l.scorer.Evaluate(ind)
		if err := l.rec.RecordSignal(ctx, &recorder.SignalRecord{At: now, Ticker: ticker, Indicators: ind, Signal: sig}); err != nil {
			l.log.Warn().Err(err).Msg("journal signal failed")
		}
		l.log.Debug().Str("ticker", ticker).Int("score", sig.TotalScore).Str("recommendation", string(sig.Recommendation)).Msg("candidate scored")
		if sig.Recommendation == model.Reinforce {
			pick = &candidate{ticker: ticker, bar: last, signal: sig}
			break
		}
	}

	if pick == nil {
		return "", nil
	}
	if !pick.bar.Time.After(snap.LastEntryBar) {
		l.log.Info().Str("ticker", pick.ticker).Time("last_entry_bar", snap.LastEntryBar).Msg("no new market data since last entry")
		return "", nil
	}

	pos, err := l.ledger.OpenPositionAt(ctx, pick.ticker, budget, pick.bar.Close, now)
	if err != nil {
		if errors.Is(err, model.ErrPersistence) {
			return "", err
		}
		l.log.Warn().Str("ticker", pick.ticker).Err(err).Msg("entry failed")
		return "", nil
	}
	l.ledger.SetLastEntryBar(pick.bar.Time)
	return fmt.Sprintf("ACHAT %s : %.2f %s investis à %.2f (score %+d, quantité %.4f)",
		pick.ticker, pos.InvestedAmount, snap.AccountCurrency, pos.EntryPrice, pick.signal.TotalScore, pos.Quantity), nil
}

// Signals scores the given tickers on the latest data. Tickers without enough
// history are left out.
func (l *Loop) Signals(ctx context.Context, tickers []string) map[string]*model.TradeSignal {
	now := l.Now().UTC()
	out := make(map[string]*model.TradeSignal, len(tickers))
	for _, ticker := range tickers {
		s, err := l.series(ctx, ticker, now)
		if err != nil {
			l.log.Warn().Str("ticker", ticker).Err(err).Msg("no signal")
			continue
		}
		ind, err := calculator.Compute(s.Bars)
		if err != nil {
			l.log.Warn().Str("ticker", ticker).Err(err).Msg("no signal")
			continue
		}
		out[ticker] = l.scorer.Evaluate(ind)
	}
	return out
}
