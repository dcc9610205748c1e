package market

import "fmt"

// ValidationError reports a malformed bar. A backtest run aborts on the
// first one rather than skipping the record, since a silent skip would
// corrupt the audit trail.
type ValidationError struct {
	Bar    Bar
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid bar %s@%s: %s", e.Bar.Symbol, e.Bar.Time.Format("2006-01-02T15:04:05Z07:00"), e.Reason)
}

// ProviderError is the single error kind a data provider surfaces to the
// core. Backtests treat it as fatal (historical data is expected to be
// complete); the paper scheduler retries with backoff.
type ProviderError struct {
	Symbol string
	Op     string // "bars" or "latest"
	Err    error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider %s %s: %v", e.Op, e.Symbol, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }
