package collector

import (
	"context"
	"time"

	"FinDash/internal/model"
)

// Fetcher defines the interface for fetching market data.
// Implementations return bars in ascending time order, in UTC.
type Fetcher interface {
	FetchBars(ctx context.Context, symbol string, start, end time.Time, g model.Granularity) ([]model.OHLCV, error)
	Name() string
}
