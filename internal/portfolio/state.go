package portfolio

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"FinDash/internal/model"
)

// LoadState reads the ledger from a JSON file. Returns nil without error if the file doesn't exist.
// All timestamps are converted to UTC.
func LoadState(filePath string) (*model.Ledger, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read ledger: %w: %v", model.ErrPersistence, err)
	}
	var l model.Ledger
	if err := json.Unmarshal(data, &l); err != nil {
		return nil, fmt.Errorf("decode ledger: %w: %v", model.ErrPersistence, err)
	}
	if l.Positions == nil {
		l.Positions = map[string]model.Position{}
	}
	if l.History == nil {
		l.History = []model.Transaction{}
	}
	if l.ExitBars == nil {
		l.ExitBars = map[string]time.Time{}
	}
	for k, t := range l.ExitBars {
		l.ExitBars[k] = t.UTC()
	}
	for k, p := range l.Positions {
		p.OpenedAt = p.OpenedAt.UTC()
		l.Positions[k] = p
	}
	for i := range l.History {
		l.History[i].Timestamp = l.History[i].Timestamp.UTC()
	}
	l.LastEntryBar = l.LastEntryBar.UTC()
	l.UpdatedAt = l.UpdatedAt.UTC()
	return &l, nil
}

// SaveState rewrites the whole ledger atomically (temp file + rename).
func SaveState(filePath string, l *model.Ledger) error {
	l.UpdatedAt = time.Now().UTC()
	data, err := json.MarshalIndent(l, "", "  ")
	if err != nil {
		return fmt.Errorf("encode ledger: %w: %v", model.ErrPersistence, err)
	}

	dir := filepath.Dir(filePath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create ledger dir: %w: %v", model.ErrPersistence, err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(filePath)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp ledger: %w: %v", model.ErrPersistence, err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op after a successful rename

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write ledger: %w: %v", model.ErrPersistence, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync ledger: %w: %v", model.ErrPersistence, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close ledger: %w: %v", model.ErrPersistence, err)
	}
	if err := os.Rename(tmpName, filePath); err != nil {
		return fmt.Errorf("replace ledger: %w: %v", model.ErrPersistence, err)
	}
	return nil
}
