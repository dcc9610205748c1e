// Package market defines OHLCV bars, bar-stream validation, and the data
// provider boundary used by both the backtest driver and the paper scheduler.
package market

import (
	"fmt"
	"time"
)

// Bar is one OHLCV sample for a symbol at a timestamp. Bars are immutable
// once produced; a series is ordered by timestamp per symbol with no
// duplicate timestamps.
type Bar struct {
	Symbol string
	Time   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}

// Check validates a single bar's fields. It does not know about ordering;
// use ValidateSeries for that.
func (b Bar) Check() error {
	if b.Symbol == "" {
		return &ValidationError{Bar: b, Reason: "empty symbol"}
	}
	if b.Time.IsZero() {
		return &ValidationError{Bar: b, Reason: "zero timestamp"}
	}
	if b.Open <= 0 || b.High <= 0 || b.Low <= 0 || b.Close <= 0 {
		return &ValidationError{Bar: b, Reason: "non-positive OHLC field"}
	}
	if b.High < b.Low {
		return &ValidationError{Bar: b, Reason: fmt.Sprintf("high %.6f below low %.6f", b.High, b.Low)}
	}
	if b.Open > b.High || b.Open < b.Low {
		return &ValidationError{Bar: b, Reason: "open outside high/low range"}
	}
	if b.Close > b.High || b.Close < b.Low {
		return &ValidationError{Bar: b, Reason: "close outside high/low range"}
	}
	if b.Volume < 0 {
		return &ValidationError{Bar: b, Reason: "negative volume"}
	}
	return nil
}

// ValidateSeries checks a single-symbol bar sequence: every bar well-formed,
// timestamps strictly ascending, no duplicates. The first offending bar is
// identified in the returned error.
func ValidateSeries(bars []Bar) error {
	var prev time.Time
	for i, b := range bars {
		if err := b.Check(); err != nil {
			return err
		}
		if i > 0 && !b.Time.After(prev) {
			if b.Time.Equal(prev) {
				return &ValidationError{Bar: b, Reason: "duplicate timestamp"}
			}
			return &ValidationError{Bar: b, Reason: "non-monotonic timestamp"}
		}
		prev = b.Time
	}
	return nil
}

// Merge interleaves per-symbol series into one stream ordered by timestamp.
// Each input series must already be sorted; ties are broken by the order the
// series are passed in, which keeps replay deterministic for a fixed
// universe declaration.
func Merge(series ...[]Bar) []Bar {
	total := 0
	for _, s := range series {
		total += len(s)
	}
	out := make([]Bar, 0, total)
	idx := make([]int, len(series))

	for len(out) < total {
		best := -1
		for i, s := range series {
			if idx[i] >= len(s) {
				continue
			}
			if best == -1 || s[idx[i]].Time.Before(series[best][idx[best]].Time) {
				best = i
			}
		}
		out = append(out, series[best][idx[best]])
		idx[best]++
	}
	return out
}
