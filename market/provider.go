package market

import (
	"context"
	"time"
)

// DataProvider supplies price history for backtests and the most recent bar
// for paper trading. Implementations own their caching and transport; all
// failures must surface as *ProviderError.
type DataProvider interface {
	// GetBars returns the bar series for symbol within [start, end],
	// sorted by timestamp.
	GetBars(ctx context.Context, symbol string, start, end time.Time) ([]Bar, error)

	// GetLatest returns the most recent closed bar for symbol.
	GetLatest(ctx context.Context, symbol string) (Bar, error)
}
