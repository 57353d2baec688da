package model

import (
	"fmt"
	"math"
	"time"
)

// TransactionType tags a ledger transaction.
type TransactionType string

const (
	TxBuy      TransactionType = "BUY"
	TxSell     TransactionType = "SELL"
	TxAutoSell TransactionType = "AUTO_SELL"
)

// Position is an open holding. Quantity = InvestedAmount * FXRateAtEntry / EntryPrice.
type Position struct {
	Ticker         string    `json:"ticker"`
	OpenedAt       time.Time `json:"open_timestamp"`
	InvestedAmount float64   `json:"invested_amount"` // account currency
	EntryPrice     float64   `json:"entry_price"`     // quote currency
	PeakPrice      float64   `json:"peak_price"`
	Quantity       float64   `json:"quantity"`
	FXRateAtEntry  float64   `json:"fx_rate_at_entry"`
	// StopPrice is the trailing stop; it only moves up.
	StopPrice  float64  `json:"stop_price"`
	TakeProfit *float64 `json:"take_profit,omitempty"`
}

// Transaction is an append-only ledger entry.
type Transaction struct {
	Type      TransactionType `json:"type"`
	Ticker    string          `json:"ticker"`
	Timestamp time.Time       `json:"timestamp"`
	Amount    float64         `json:"amount"` // account currency
	Price     float64         `json:"price"`  // quote currency
	Quantity  float64         `json:"quantity"`
	Reason    string          `json:"reason,omitempty"`
}

// Ledger is the full persisted portfolio state.
type Ledger struct {
	InitialCapital  float64             `json:"initial_capital"`
	AccountCurrency string              `json:"account_currency"`
	QuoteCurrency   string              `json:"quote_currency"`
	AvailableCash   float64             `json:"available_cash"`
	Positions       map[string]Position `json:"open_positions"`
	History         []Transaction       `json:"history"`
	// LastEntryBar is the timestamp of the bar the latest automated entry was decided on.
	LastEntryBar time.Time `json:"last_entry_bar"`
	// ExitBars holds, per ticker, the bar an automated exit was decided on.
	ExitBars  map[string]time.Time `json:"exit_bars"`
	UpdatedAt time.Time            `json:"updated_at"`
}

// NewLedger returns an empty ledger funded with the initial capital.
func NewLedger(capital float64, accountCurrency, quoteCurrency string) *Ledger {
	return &Ledger{
		InitialCapital:  capital,
		AccountCurrency: accountCurrency,
		QuoteCurrency:   quoteCurrency,
		AvailableCash:   capital,
		Positions:       map[string]Position{},
		History:         []Transaction{},
		ExitBars:        map[string]time.Time{},
	}
}

// Clone returns a deep copy.
func (l *Ledger) Clone() Ledger {
	c := *l
	c.Positions = make(map[string]Position, len(l.Positions))
	for k, p := range l.Positions {
		if p.TakeProfit != nil {
			tp := *p.TakeProfit
			p.TakeProfit = &tp
		}
		c.Positions[k] = p
	}
	c.History = append([]Transaction(nil), l.History...)
	c.ExitBars = make(map[string]time.Time, len(l.ExitBars))
	for k, t := range l.ExitBars {
		c.ExitBars[k] = t
	}
	return c
}

// Holds reports whether a position is open for the ticker.
func (l Ledger) Holds(ticker string) bool {
	_, ok := l.Positions[ticker]
	return ok
}

// Flows sums all-time invested and divested amounts from the history.
func (l Ledger) Flows() (invested, divested float64) {
	for _, tx := range l.History {
		switch tx.Type {
		case TxBuy:
			invested += tx.Amount
		case TxSell, TxAutoSell:
			divested += tx.Amount
		}
	}
	return invested, divested
}

// Verify checks that the cash balance reconciles with the transaction history
// and that no position or balance invariant is broken.
func (l Ledger) Verify() error {
	if l.AvailableCash < 0 {
		return fmt.Errorf("negative cash balance %.2f", l.AvailableCash)
	}
	invested, divested := l.Flows()
	want := l.InitialCapital - invested + divested
	if math.Abs(want-l.AvailableCash) > 1e-6*math.Max(1, math.Abs(want)) {
		return fmt.Errorf("cash %.6f does not reconcile with history (expected %.6f)", l.AvailableCash, want)
	}
	for ticker, p := range l.Positions {
		if p.EntryPrice <= 0 {
			return fmt.Errorf("position %s: non-positive entry price", ticker)
		}
		q := p.InvestedAmount * p.FXRateAtEntry / p.EntryPrice
		if math.Abs(q-p.Quantity) > 1e-9*math.Max(1, q) {
			return fmt.Errorf("position %s: quantity %.8f, expected %.8f", ticker, p.Quantity, q)
		}
		if p.PeakPrice < p.EntryPrice {
			return fmt.Errorf("position %s: peak below entry", ticker)
		}
	}
	return nil
}
