// Package journal is the run audit trail: every fill, closed trade, equity
// snapshot, signal, and risk rejection of a run is recorded through it.
package journal

import "time"

// TradeRecord is one completed round trip for a symbol.
type TradeRecord struct {
	TradeID    string
	RunID      string
	Symbol     string
	Units      float64
	EntryPrice float64
	ExitPrice  float64
	OpenTime   time.Time
	CloseTime  time.Time
	RealizedPL float64
	Fees       float64
	Reason     string
}

// FillRecord is one order execution.
type FillRecord struct {
	OrderID string
	RunID   string
	Symbol  string
	Units   float64
	Price   float64
	Fees    float64
	Time    time.Time
}

// EquitySnapshot is the portfolio state at a bar close.
type EquitySnapshot struct {
	RunID    string
	Time     time.Time
	Cash     float64
	Equity   float64
	Exposure float64
	Drawdown float64
}

// SignalRecord is an emitted SignalEvent.
type SignalRecord struct {
	RunID     string
	Time      time.Time
	Symbol    string
	RuleID    string
	Direction string
	Price     float64
	Strength  float64
}

// RejectionRecord is an order blocked by risk limits. Rejections are
// expected outcomes, recorded rather than raised.
type RejectionRecord struct {
	RunID  string
	Time   time.Time
	Symbol string
	RuleID string
	Reason string
}

// Journal persists the audit trail of a run. Implementations must tolerate
// being called from a single goroutine per run; they are never shared
// across concurrent runs.
type Journal interface {
	RecordTrade(TradeRecord) error
	RecordFill(FillRecord) error
	RecordEquity(EquitySnapshot) error
	RecordSignal(SignalRecord) error
	RecordRejection(RejectionRecord) error
	Close() error
}

// Discard is a Journal that drops everything, for runs that do not persist.
type Discard struct{}

func (Discard) RecordTrade(TradeRecord) error         { return nil }
func (Discard) RecordFill(FillRecord) error           { return nil }
func (Discard) RecordEquity(EquitySnapshot) error     { return nil }
func (Discard) RecordSignal(SignalRecord) error       { return nil }
func (Discard) RecordRejection(RejectionRecord) error { return nil }
func (Discard) Close() error                          { return nil }
