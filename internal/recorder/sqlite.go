package recorder

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"

	"FinDash/internal/model"
)

// SQLiteRecorder persists the turn journal to a SQLite database.
type SQLiteRecorder struct {
	db  *sql.DB
	mu  sync.Mutex
	log zerolog.Logger
}

// NewSQLiteRecorder opens (or creates) the SQLite database and runs migrations.
func NewSQLiteRecorder(dbPath string, log zerolog.Logger) (*SQLiteRecorder, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create sqlite dir: %w", err)
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// WAL so dashboards can read while a turn writes.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	r := &SQLiteRecorder{db: db, log: log.With().Str("component", "recorder").Logger()}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	r.log.Info().Str("path", dbPath).Msg("sqlite recorder opened")
	return r, nil
}

func (r *SQLiteRecorder) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS turns (
			id             INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp      INTEGER NOT NULL,
			actions        TEXT,
			action_count   INTEGER,
			available_cash REAL,
			open_positions INTEGER
		)`,
		`CREATE INDEX IF NOT EXISTS idx_turns_ts ON turns(timestamp)`,

		`CREATE TABLE IF NOT EXISTS signals (
			id             INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp      INTEGER NOT NULL,
			ticker         TEXT NOT NULL,
			close          REAL,
			sma50          REAL,
			sma200         REAL,
			rsi            REAL,
			macd           REAL,
			macd_signal    REAL,
			bb_upper       REAL,
			bb_lower       REAL,
			atr            REAL,
			natr           REAL,
			trend_score    INTEGER,
			momentum_score INTEGER,
			macd_score     INTEGER,
			bb_score       INTEGER,
			total_score    INTEGER,
			recommendation TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_signals_ticker_ts ON signals(ticker, timestamp)`,

		`CREATE TABLE IF NOT EXISTS transactions (
			id        INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp INTEGER NOT NULL,
			type      TEXT NOT NULL,
			ticker    TEXT NOT NULL,
			amount    REAL,
			price     REAL,
			quantity  REAL,
			reason    TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_transactions_ts ON transactions(timestamp)`,

		`CREATE TABLE IF NOT EXISTS evaluations (
			id                TEXT PRIMARY KEY,
			issued_at         INTEGER NOT NULL,
			target_at         INTEGER NOT NULL,
			ticker            TEXT NOT NULL,
			horizon           TEXT,
			reference_price   REAL,
			predicted_price   REAL,
			status            TEXT,
			realized_price    REAL,
			error_pct         REAL,
			direction_correct INTEGER,
			within_5pct       INTEGER,
			within_10pct      INTEGER
		)`,
	}

	for _, s := range stmts {
		if _, err := r.db.Exec(s); err != nil {
			return fmt.Errorf("exec %q: %w", s[:40], err)
		}
	}
	return nil
}

func (r *SQLiteRecorder) RecordTurn(ctx context.Context, turn *TurnRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := r.db.ExecContext(ctx, `INSERT INTO turns
		(timestamp, actions, action_count, available_cash, open_positions)
		VALUES (?,?,?,?,?)`,
		turn.At.Unix(), strings.Join(turn.Actions, "\n"), len(turn.Actions),
		turn.AvailableCash, turn.OpenPositions,
	)
	return err
}

func (r *SQLiteRecorder) RecordSignal(ctx context.Context, rec *SignalRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	ind, sig := rec.Indicators, rec.Signal
	// Factor order is fixed by the scorer: trend, momentum, MACD, Bollinger.
	scores := make([]int, 4)
	for i := 0; i < len(sig.Factors) && i < 4; i++ {
		scores[i] = sig.Factors[i].Score
	}

	_, err := r.db.ExecContext(ctx, `INSERT INTO signals
		(timestamp, ticker, close, sma50, sma200, rsi, macd, macd_signal, bb_upper, bb_lower,
		 atr, natr, trend_score, momentum_score, macd_score, bb_score, total_score, recommendation)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		rec.At.Unix(), rec.Ticker, ind.Close, ind.SMA50, ind.SMA200, ind.RSI,
		ind.MACD, ind.MACDSignal, ind.BBUpper, ind.BBLower, ind.ATR, ind.NATR,
		scores[0], scores[1], scores[2], scores[3], sig.TotalScore, string(sig.Recommendation),
	)
	return err
}

func (r *SQLiteRecorder) RecordTransaction(ctx context.Context, tx model.Transaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := r.db.ExecContext(ctx, `INSERT INTO transactions
		(timestamp, type, ticker, amount, price, quantity, reason)
		VALUES (?,?,?,?,?,?,?)`,
		tx.Timestamp.Unix(), string(tx.Type), tx.Ticker, tx.Amount, tx.Price, tx.Quantity, tx.Reason,
	)
	return err
}

// RecordEvaluation upserts a reconciled prediction by id.
func (r *SQLiteRecorder) RecordEvaluation(ctx context.Context, rec model.PredictionRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := r.db.ExecContext(ctx, `INSERT OR REPLACE INTO evaluations
		(id, issued_at, target_at, ticker, horizon, reference_price, predicted_price, status,
		 realized_price, error_pct, direction_correct, within_5pct, within_10pct)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		rec.ID, rec.IssuedAt.Unix(), rec.TargetAt.Unix(), rec.Ticker, rec.Horizon.Label,
		rec.ReferencePrice, rec.PredictedPrice, string(rec.Status),
		nullFloat(rec.RealizedPrice), nullFloat(rec.ErrorPct),
		nullBool(rec.DirectionCorrect), nullBool(rec.Within5Pct), nullBool(rec.Within10Pct),
	)
	return err
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func nullBool(v *bool) sql.NullBool {
	if v == nil {
		return sql.NullBool{}
	}
	return sql.NullBool{Bool: *v, Valid: true}
}

func (r *SQLiteRecorder) Close() error {
	r.log.Info().Msg("closing sqlite recorder")
	return r.db.Close()
}
