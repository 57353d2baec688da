package prediction

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"FinDash/internal/model"
)

// Columns is the fixed column order of the prediction log.
var Columns = []string{
	"id",
	"issued_at",
	"ticker",
	"horizon_label",
	"horizon_duration",
	"reference_price",
	"predicted_price",
	"target_timestamp",
	"status",
	"realized_price",
	"error_pct",
	"direction_correct",
	"within_5pct",
	"within_10pct",
	"market_rsi",
	"market_vix",
}

// legacyTimeLayout is accepted on read for logs written without a zone (UTC assumed).
const legacyTimeLayout = "2006-01-02 15:04:05"

// Store is the CSV-backed prediction log. Appends never rewrite existing rows;
// reconciliation rewrites the whole file atomically.
type Store struct {
	path string
	mu   sync.Mutex
}

func NewStore(path string) *Store {
	return &Store{path: path}
}

func (s *Store) Path() string { return s.path }

// Load reads every record. A missing file is an empty log. Columns absent from
// the file are read as null.
func (s *Store) Load() ([]model.PredictionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	recs, _, err := s.load()
	return recs, err
}

// load also reports whether the file header matches Columns exactly.
func (s *Store) load() ([]model.PredictionRecord, bool, error) {
	f, err := os.Open(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, true, nil
		}
		return nil, false, fmt.Errorf("open prediction log: %w: %v", model.ErrPersistence, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return nil, true, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read prediction log header: %w: %v", model.ErrPersistence, err)
	}
	index := make(map[string]int, len(header))
	for i, h := range header {
		index[h] = i
	}
	current := len(header) == len(Columns)
	for i, c := range Columns {
		if current && header[i] != c {
			current = false
		}
	}

	var recs []model.PredictionRecord
	for line := 2; ; line++ {
		row, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, false, fmt.Errorf("read prediction log: %w: %v", model.ErrPersistence, err)
		}
		get := func(col string) string {
			if i, ok := index[col]; ok && i < len(row) {
				return row[i]
			}
			return ""
		}
		rec, err := decodeRecord(get)
		if err != nil {
			return nil, false, fmt.Errorf("prediction log line %d: %w", line, err)
		}
		recs = append(recs, rec)
	}
	return recs, current, nil
}

// Append adds records at the end of the log. A log with an outdated header is
// first rewritten with the current columns.
func (s *Store) Append(recs ...model.PredictionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, current, err := s.load()
	if err != nil {
		return err
	}
	if !current {
		return s.rewrite(append(existing, recs...))
	}

	info, statErr := os.Stat(s.path)
	fresh := os.IsNotExist(statErr) || (statErr == nil && info.Size() == 0)
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create prediction log dir: %w: %v", model.ErrPersistence, err)
	}
	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open prediction log: %w: %v", model.ErrPersistence, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if fresh {
		if err := w.Write(Columns); err != nil {
			return fmt.Errorf("write prediction log: %w: %v", model.ErrPersistence, err)
		}
	}
	for _, rec := range recs {
		if err := w.Write(encodeRecord(rec)); err != nil {
			return fmt.Errorf("write prediction log: %w: %v", model.ErrPersistence, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flush prediction log: %w: %v", model.ErrPersistence, err)
	}
	return nil
}

// Rewrite replaces the log content (temp file + rename).
func (s *Store) Rewrite(recs []model.PredictionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rewrite(recs)
}

func (s *Store) rewrite(recs []model.PredictionRecord) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create prediction log dir: %w: %v", model.ErrPersistence, err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp prediction log: %w: %v", model.ErrPersistence, err)
	}
	defer os.Remove(tmp.Name())

	w := csv.NewWriter(tmp)
	w.Write(Columns)
	for _, rec := range recs {
		w.Write(encodeRecord(rec))
	}
	w.Flush()
	if err := w.Error(); err != nil {
		tmp.Close()
		return fmt.Errorf("write prediction log: %w: %v", model.ErrPersistence, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close prediction log: %w: %v", model.ErrPersistence, err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replace prediction log: %w: %v", model.ErrPersistence, err)
	}
	return nil
}

func encodeRecord(r model.PredictionRecord) []string {
	return []string{
		r.ID,
		r.IssuedAt.UTC().Format(time.RFC3339Nano),
		r.Ticker,
		r.Horizon.Label,
		r.Horizon.Duration.String(),
		formatFloat(r.ReferencePrice),
		formatFloat(r.PredictedPrice),
		r.TargetAt.UTC().Format(time.RFC3339Nano),
		string(r.Status),
		formatFloatPtr(r.RealizedPrice),
		formatFloatPtr(r.ErrorPct),
		formatBoolPtr(r.DirectionCorrect),
		formatBoolPtr(r.Within5Pct),
		formatBoolPtr(r.Within10Pct),
		formatFloatPtr(r.MarketRSI),
		formatFloatPtr(r.MarketVIX),
	}
}

func decodeRecord(get func(string) string) (model.PredictionRecord, error) {
	var (
		r   model.PredictionRecord
		err error
	)
	r.ID = get("id")
	r.Ticker = get("ticker")
	r.Status = model.PredictionStatus(get("status"))
	r.Horizon.Label = get("horizon_label")
	if v := get("horizon_duration"); v != "" {
		if r.Horizon.Duration, err = time.ParseDuration(v); err != nil {
			return r, fmt.Errorf("horizon_duration: %w", err)
		}
	}
	if r.IssuedAt, err = parseTime(get("issued_at")); err != nil {
		return r, fmt.Errorf("issued_at: %w", err)
	}
	if r.TargetAt, err = parseTime(get("target_timestamp")); err != nil {
		return r, fmt.Errorf("target_timestamp: %w", err)
	}
	if r.Horizon.Duration == 0 && !r.IssuedAt.IsZero() {
		r.Horizon.Duration = r.TargetAt.Sub(r.IssuedAt)
	}

	floats := []struct {
		col string
		dst **float64
	}{
		{"realized_price", &r.RealizedPrice},
		{"error_pct", &r.ErrorPct},
		{"market_rsi", &r.MarketRSI},
		{"market_vix", &r.MarketVIX},
	}
	for _, f := range floats {
		if *f.dst, err = parseFloatPtr(get(f.col)); err != nil {
			return r, fmt.Errorf("%s: %w", f.col, err)
		}
	}
	if r.ReferencePrice, err = parseFloat(get("reference_price")); err != nil {
		return r, fmt.Errorf("reference_price: %w", err)
	}
	if r.PredictedPrice, err = parseFloat(get("predicted_price")); err != nil {
		return r, fmt.Errorf("predicted_price: %w", err)
	}

	bools := []struct {
		col string
		dst **bool
	}{
		{"direction_correct", &r.DirectionCorrect},
		{"within_5pct", &r.Within5Pct},
		{"within_10pct", &r.Within10Pct},
	}
	for _, b := range bools {
		if *b.dst, err = parseBoolPtr(get(b.col)); err != nil {
			return r, fmt.Errorf("%s: %w", b.col, err)
		}
	}
	return r, nil
}

func parseTime(v string) (time.Time, error) {
	if v == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		if t, err = time.ParseInLocation(legacyTimeLayout, v, time.UTC); err != nil {
			return time.Time{}, err
		}
	}
	return t.UTC(), nil
}

func formatFloat(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }

func formatFloatPtr(v *float64) string {
	if v == nil {
		return ""
	}
	return formatFloat(*v)
}

func formatBoolPtr(v *bool) string {
	if v == nil {
		return ""
	}
	return strconv.FormatBool(*v)
}

func parseFloat(v string) (float64, error) {
	if v == "" {
		return 0, nil
	}
	return strconv.ParseFloat(v, 64)
}

func parseFloatPtr(v string) (*float64, error) {
	if v == "" {
		return nil, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return nil, err
	}
	return &f, nil
}

func parseBoolPtr(v string) (*bool, error) {
	if v == "" {
		return nil, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return nil, err
	}
	return &b, nil
}
