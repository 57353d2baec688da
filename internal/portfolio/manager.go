package portfolio

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"FinDash/internal/model"
)

// quoteLookback bounds the window searched for a latest price (covers weekends and holidays).
const quoteLookback = 10 * 24 * time.Hour

// PriceSource provides price series; the collector satisfies it.
type PriceSource interface {
	Series(ctx context.Context, ticker string, start, end time.Time, g model.Granularity) (*model.PriceSeries, error)
}

// RateSource converts currencies; Rate(base, quote) prices one base unit in quote.
type RateSource interface {
	Rate(ctx context.Context, base, quote string) float64
}

// TxJournal receives every persisted transaction.
type TxJournal interface {
	RecordTransaction(ctx context.Context, tx model.Transaction) error
}

// Options configures a Manager.
type Options struct {
	InitialCapital  float64
	AccountCurrency string
	QuoteCurrency   string
	Prices          PriceSource
	Rates           RateSource
	Journal         TxJournal
	Logger          zerolog.Logger
}

// Manager owns the ledger and persists it after every mutation.
type Manager struct {
	mu       sync.Mutex
	ledger   *model.Ledger
	filePath string
	prices   PriceSource
	rates    RateSource
	journal  TxJournal
	log      zerolog.Logger

	// Now is the clock used for price windows and transaction timestamps.
	Now func() time.Time
}

// NewManager creates a Manager, loading or initializing the ledger from disk.
func NewManager(filePath string, opts Options) (*Manager, error) {
	l, err := LoadState(filePath)
	if err != nil {
		return nil, err
	}

	m := &Manager{
		filePath: filePath,
		prices:   opts.Prices,
		rates:    opts.Rates,
		journal:  opts.Journal,
		log:      opts.Logger.With().Str("component", "portfolio").Logger(),
		Now:      time.Now,
	}

	// Initialize if fresh state
	if l == nil {
		l = model.NewLedger(opts.InitialCapital, strings.ToUpper(opts.AccountCurrency), strings.ToUpper(opts.QuoteCurrency))
		m.ledger = l
		if err := m.save(); err != nil {
			return nil, err
		}
		m.log.Info().Float64("capital", l.InitialCapital).Str("file", filePath).Msg("ledger initialized")
		return m, nil
	}
	m.ledger = l
	if err := l.Verify(); err != nil {
		m.log.Warn().Err(err).Msg("loaded ledger does not verify")
	}
	return m, nil
}

// Snapshot returns a deep copy of the ledger.
func (m *Manager) Snapshot() model.Ledger {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ledger.Clone()
}

func (m *Manager) now() time.Time { return m.Now().UTC() }

func (m *Manager) latestBar(ctx context.Context, ticker string) (model.OHLCV, error) {
	end := m.now()
	s, err := m.prices.Series(ctx, ticker, end.Add(-quoteLookback), end, model.Daily)
	if err != nil {
		return model.OHLCV{}, err
	}
	return s.Last(), nil
}

// OpenPosition buys ticker for amount expressed in currency (account currency when empty)
// at the latest available close.
func (m *Manager) OpenPosition(ctx context.Context, ticker string, amount float64, currency string) (model.Position, error) {
	acct := m.Snapshot().AccountCurrency
	if currency != "" && !strings.EqualFold(currency, acct) {
		amount *= m.rates.Rate(ctx, currency, acct)
	}
	if err := m.checkFunds(amount); err != nil {
		return model.Position{}, err
	}
	bar, err := m.latestBar(ctx, ticker)
	if err != nil {
		return model.Position{}, fmt.Errorf("open %s: %w", ticker, err)
	}
	return m.OpenPositionAt(ctx, ticker, amount, bar.Close, m.now())
}

func (m *Manager) checkFunds(amount float64) error {
	if amount <= 0 {
		return fmt.Errorf("invalid amount %.2f", amount)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if amount > m.ledger.AvailableCash {
		return fmt.Errorf("need %.2f, have %.2f: %w", amount, m.ledger.AvailableCash, model.ErrInsufficientFunds)
	}
	return nil
}

// OpenPositionAt books a buy of amount (account currency) at a known quote-currency price.
func (m *Manager) OpenPositionAt(ctx context.Context, ticker string, amount, price float64, at time.Time) (model.Position, error) {
	if price <= 0 {
		return model.Position{}, fmt.Errorf("open %s: invalid price %.4f", ticker, price)
	}
	if err := m.checkFunds(amount); err != nil {
		return model.Position{}, err
	}
	snap := m.Snapshot()
	fx := m.rates.Rate(ctx, snap.AccountCurrency, snap.QuoteCurrency)

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ledger.Holds(ticker) {
		return model.Position{}, fmt.Errorf("open %s: position already open", ticker)
	}
	if amount > m.ledger.AvailableCash {
		return model.Position{}, fmt.Errorf("need %.2f, have %.2f: %w", amount, m.ledger.AvailableCash, model.ErrInsufficientFunds)
	}

	before := m.ledger.Clone()
	at = at.UTC()
	pos := model.Position{
		Ticker:         ticker,
		OpenedAt:       at,
		InvestedAmount: amount,
		EntryPrice:     price,
		PeakPrice:      price,
		Quantity:       amount * fx / price,
		FXRateAtEntry:  fx,
	}
	tx := model.Transaction{
		Type:      model.TxBuy,
		Ticker:    ticker,
		Timestamp: at,
		Amount:    amount,
		Price:     price,
		Quantity:  pos.Quantity,
	}
	m.ledger.AvailableCash -= amount
	m.ledger.Positions[ticker] = pos
	m.ledger.History = append(m.ledger.History, tx)

	if err := m.save(); err != nil {
		*m.ledger = before
		return model.Position{}, err
	}
	m.log.Info().Str("ticker", ticker).Float64("amount", amount).Float64("price", price).Msg("position opened")
	m.record(ctx, tx)
	return pos, nil
}

// ClosePosition sells the whole position at the latest available close. When no
// price can be fetched the position is kept and ErrDataUnavailable returned.
func (m *Manager) ClosePosition(ctx context.Context, ticker string, txType model.TransactionType, reason string) (model.Transaction, error) {
	if !m.Snapshot().Holds(ticker) {
		return model.Transaction{}, fmt.Errorf("close %s: %w", ticker, model.ErrUnknownPosition)
	}
	bar, err := m.latestBar(ctx, ticker)
	if err != nil {
		return model.Transaction{}, fmt.Errorf("close %s: %w", ticker, err)
	}
	return m.ClosePositionAt(ctx, ticker, txType, reason, bar.Close, m.now())
}

// ClosePositionAt books the sale of the whole position at a known quote-currency price.
func (m *Manager) ClosePositionAt(ctx context.Context, ticker string, txType model.TransactionType, reason string, price float64, at time.Time) (model.Transaction, error) {
	snap := m.Snapshot()
	fx := m.rates.Rate(ctx, snap.AccountCurrency, snap.QuoteCurrency)

	m.mu.Lock()
	defer m.mu.Unlock()
	pos, ok := m.ledger.Positions[ticker]
	if !ok {
		return model.Transaction{}, fmt.Errorf("close %s: %w", ticker, model.ErrUnknownPosition)
	}

	before := m.ledger.Clone()
	tx := model.Transaction{
		Type:      txType,
		Ticker:    ticker,
		Timestamp: at.UTC(),
		Amount:    pos.Quantity * price / fx,
		Price:     price,
		Quantity:  pos.Quantity,
		Reason:    reason,
	}
	m.ledger.AvailableCash += tx.Amount
	delete(m.ledger.Positions, ticker)
	m.ledger.History = append(m.ledger.History, tx)

	if err := m.save(); err != nil {
		*m.ledger = before
		return model.Transaction{}, err
	}
	m.log.Info().Str("ticker", ticker).Str("type", string(txType)).Float64("amount", tx.Amount).Str("reason", reason).Msg("position closed")
	m.record(ctx, tx)
	return tx, nil
}

// UpdatePosition replaces an open position's tracking fields in memory. Call Save to persist.
func (m *Manager) UpdatePosition(pos model.Position) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.ledger.Positions[pos.Ticker]
	if !ok {
		return fmt.Errorf("update %s: %w", pos.Ticker, model.ErrUnknownPosition)
	}
	if pos.PeakPrice < cur.PeakPrice || pos.StopPrice < cur.StopPrice {
		return fmt.Errorf("update %s: peak and stop may only move up", pos.Ticker)
	}
	cur.PeakPrice = pos.PeakPrice
	cur.StopPrice = pos.StopPrice
	cur.TakeProfit = pos.TakeProfit
	m.ledger.Positions[pos.Ticker] = cur
	return nil
}

// SetLastEntryBar records the bar timestamp an automated entry was decided on.
func (m *Manager) SetLastEntryBar(t time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ledger.LastEntryBar = t.UTC()
}

// SetExitBar records the bar an automated exit of ticker was decided on.
func (m *Manager) SetExitBar(ticker string, t time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ledger.ExitBars == nil {
		m.ledger.ExitBars = map[string]time.Time{}
	}
	m.ledger.ExitBars[ticker] = t.UTC()
}

// Save persists the full ledger.
func (m *Manager) Save() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.save()
}

func (m *Manager) save() error {
	return SaveState(m.filePath, m.ledger)
}

func (m *Manager) record(ctx context.Context, tx model.Transaction) {
	if m.journal == nil {
		return
	}
	if err := m.journal.RecordTransaction(ctx, tx); err != nil {
		m.log.Warn().Err(err).Str("ticker", tx.Ticker).Msg("journal transaction failed")
	}
}

// PositionValue is the marked-to-market view of one holding.
type PositionValue struct {
	Ticker      string
	Quantity    float64
	EntryPrice  float64
	Price       float64
	MarketValue float64 // account currency
	Invested    float64
	PnL         float64
	PnLPct      float64
	// Stale is set when no current price was available and the entry price was used.
	Stale bool
}

// Valuation is the portfolio marked to market in account currency.
type Valuation struct {
	AsOf      time.Time
	Currency  string
	Cash      float64
	Positions []PositionValue
	Total     float64
	PnL       float64 // vs initial capital
	PnLPct    float64
}

// Valuation marks every open position to the latest close.
func (m *Manager) Valuation(ctx context.Context) (*Valuation, error) {
	l := m.Snapshot()
	fx := m.rates.Rate(ctx, l.AccountCurrency, l.QuoteCurrency)

	v := &Valuation{AsOf: m.now(), Currency: l.AccountCurrency, Cash: l.AvailableCash, Total: l.AvailableCash}
	tickers := make([]string, 0, len(l.Positions))
	for t := range l.Positions {
		tickers = append(tickers, t)
	}
	sort.Strings(tickers)

	for _, t := range tickers {
		p := l.Positions[t]
		pv := PositionValue{Ticker: t, Quantity: p.Quantity, EntryPrice: p.EntryPrice, Price: p.EntryPrice, Invested: p.InvestedAmount}
		bar, err := m.latestBar(ctx, t)
		switch {
		case err == nil:
			pv.Price = bar.Close
		case errors.Is(err, model.ErrDataUnavailable):
			m.log.Warn().Str("ticker", t).Err(err).Msg("no current price, valuing at entry")
			pv.Stale = true
		default:
			return nil, err
		}
		pv.MarketValue = p.Quantity * pv.Price / fx
		pv.PnL = pv.MarketValue - p.InvestedAmount
		if p.InvestedAmount > 0 {
			pv.PnLPct = pv.PnL / p.InvestedAmount * 100
		}
		v.Positions = append(v.Positions, pv)
		v.Total += pv.MarketValue
	}
	v.PnL = v.Total - l.InitialCapital
	if l.InitialCapital > 0 {
		v.PnLPct = v.PnL / l.InitialCapital * 100
	}
	return v, nil
}
