// Package portfolio simulates order execution and position accounting
// for a single run. Orders queue on Submit and fill when the next bar
// arrives, so a decision made on bar T can never execute at bar T's
// prices.
package portfolio

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/quantdesk/quantdesk/journal"
	"github.com/quantdesk/quantdesk/market"
)

type State int

const (
	Running State = iota
	Halted
	Closed
)

func (s State) String() string {
	switch s {
	case Halted:
		return "halted"
	case Closed:
		return "closed"
	}
	return "running"
}

// HaltedStateError is returned by Submit once the drawdown halt has
// tripped. Callers stop submitting entries; the run keeps marking
// equity until it finishes.
type HaltedStateError struct {
	Drawdown float64
}

func (e *HaltedStateError) Error() string {
	return fmt.Sprintf("portfolio halted: drawdown %.2f%% breached the limit", e.Drawdown*100)
}

type Config struct {
	InitialCash       float64
	SlippageBps       float64 // applied to market fills, buys pay up, sells receive less
	CommissionPerUnit float64
	MaxDrawdownPct    float64 // 0 disables the halt
	LiquidateOnHalt   bool
	FillAtClose       bool // fill market orders at the bar close instead of the open
}

// Simulator owns cash, positions, and the pending order queue.
// It is not safe for concurrent use; each run drives its own instance.
type Simulator struct {
	runID string
	cfg   Config
	jrnl  journal.Journal

	state     State
	cash      float64
	peak      float64
	drawdown  float64
	positions map[string]*Position
	lastPrice map[string]float64
	pending   []*Order

	nextOrd int
	nextTrd int

	trades []journal.TradeRecord
	equity []journal.EquitySnapshot
}

func New(runID string, cfg Config, j journal.Journal) *Simulator {
	if j == nil {
		j = journal.Discard{}
	}
	return &Simulator{
		runID:     runID,
		cfg:       cfg,
		jrnl:      j,
		cash:      cfg.InitialCash,
		peak:      cfg.InitialCash,
		positions: make(map[string]*Position),
		lastPrice: make(map[string]float64),
	}
}

func (s *Simulator) State() State { return s.state }

// Submit queues an order for execution on the next bar of its symbol
// and returns the assigned order ID.
func (s *Simulator) Submit(o *Order) (string, error) {
	switch s.state {
	case Halted:
		return "", &HaltedStateError{Drawdown: s.drawdown}
	case Closed:
		return "", fmt.Errorf("submit %s %s: portfolio is closed", o.Side, o.Symbol)
	}
	if o.Symbol == "" {
		return "", fmt.Errorf("submit order: empty symbol")
	}
	if o.Units <= 0 {
		return "", fmt.Errorf("submit %s %s: units must be positive, got %v", o.Side, o.Symbol, o.Units)
	}
	s.nextOrd++
	o.ID = fmt.Sprintf("ord-%06d", s.nextOrd)
	s.pending = append(s.pending, o)
	return o.ID, nil
}

// PendingFor reports how many orders are queued for symbol.
func (s *Simulator) PendingFor(symbol string) int {
	n := 0
	for _, o := range s.pending {
		if o.Symbol == symbol {
			n++
		}
	}
	return n
}

// ApplyBar executes the pending orders for the bar's symbol, then checks
// protective stops against the bar's range. Fills are returned in
// execution order.
func (s *Simulator) ApplyBar(b market.Bar) ([]Fill, error) {
	if s.state == Closed {
		return nil, fmt.Errorf("apply bar %s: portfolio is closed", b.Symbol)
	}
	s.lastPrice[b.Symbol] = b.Close

	var fills []Fill
	keep := s.pending[:0]
	for _, o := range s.pending {
		if o.Symbol != b.Symbol {
			keep = append(keep, o)
			continue
		}
		price, ok := s.fillPrice(o, b)
		if !ok {
			if o.TIF == GTC {
				keep = append(keep, o)
			}
			continue
		}
		fills = append(fills, s.execute(o, price, b.Time, "signal"))
	}
	s.pending = keep

	// Stops fire after fills so a position opened this bar is protected
	// from this bar onward.
	if pos, ok := s.positions[b.Symbol]; ok {
		if price, hit := pos.stopHit(b.Open, b.High, b.Low); hit {
			fills = append(fills, s.closePosition(pos, price, b.Time, "stop"))
		} else {
			pos.ratchet(b.Close)
		}
	}

	for _, f := range fills {
		if err := s.recordFill(f); err != nil {
			return fills, err
		}
	}
	return fills, nil
}

// fillPrice resolves the execution price for an order against a bar,
// or reports that the order does not fill.
func (s *Simulator) fillPrice(o *Order, b market.Bar) (float64, bool) {
	if o.Type == Limit {
		if o.Side == Buy {
			if b.Open <= o.Limit {
				return b.Open, true
			}
			if b.Low <= o.Limit {
				return o.Limit, true
			}
			return 0, false
		}
		if b.Open >= o.Limit {
			return b.Open, true
		}
		if b.High >= o.Limit {
			return o.Limit, true
		}
		return 0, false
	}
	base := b.Open
	if s.cfg.FillAtClose {
		base = b.Close
	}
	return s.slip(base, o.Side), true
}

func (s *Simulator) slip(price float64, side Side) float64 {
	adj := price * s.cfg.SlippageBps / 10_000
	if side == Sell {
		return price - adj
	}
	return price + adj
}

// execute applies a fill to cash and positions, splitting a round trip
// out of the books when the fill flattens or flips the position.
func (s *Simulator) execute(o *Order, price float64, ts time.Time, reason string) Fill {
	fees := s.cfg.CommissionPerUnit * o.Units
	delta := o.signedUnits()
	s.cash -= delta*price + fees

	f := Fill{
		OrderID: o.ID,
		Symbol:  o.Symbol,
		Side:    o.Side,
		Units:   o.Units,
		Price:   price,
		Fees:    fees,
		Time:    ts,
		Reason:  reason,
	}

	pos := s.positions[o.Symbol]
	switch {
	case pos == nil:
		s.positions[o.Symbol] = &Position{
			Symbol:    o.Symbol,
			Units:     delta,
			AvgPrice:  price,
			Stop:      o.Stop,
			Trail:     o.Trail,
			OpenTime:  ts,
			fees:      fees,
			peakUnits: delta,
		}
	case pos.Units*delta > 0:
		pos.add(delta, price, fees)
		if o.Stop != 0 {
			pos.Stop = o.Stop
			pos.Trail = o.Trail
		}
	default:
		closable := math.Min(math.Abs(delta), math.Abs(pos.Units))
		dir := -1.0
		if delta > 0 {
			dir = 1
		}
		pos.reduce(dir*closable, price, fees)
		if pos.Units == 0 {
			s.settle(pos, price, ts, reason)
			delete(s.positions, o.Symbol)
			if left := math.Abs(delta) - closable; left > 0 {
				s.positions[o.Symbol] = &Position{
					Symbol:    o.Symbol,
					Units:     dir * left,
					AvgPrice:  price,
					Stop:      o.Stop,
					Trail:     o.Trail,
					OpenTime:  ts,
					peakUnits: dir * left,
				}
			}
		}
	}
	return f
}

// closePosition flattens a position at price and books the round trip.
func (s *Simulator) closePosition(pos *Position, price float64, ts time.Time, reason string) Fill {
	units := math.Abs(pos.Units)
	side := Sell
	if pos.Units < 0 {
		side = Buy
	}
	fees := s.cfg.CommissionPerUnit * units
	s.cash -= -pos.Units*price + fees

	pos.reduce(-pos.Units, price, fees)
	s.settle(pos, price, ts, reason)
	delete(s.positions, pos.Symbol)

	return Fill{
		Symbol: pos.Symbol,
		Side:   side,
		Units:  units,
		Price:  price,
		Fees:   fees,
		Time:   ts,
		Reason: reason,
	}
}

// settle turns a flattened position into a TradeRecord.
func (s *Simulator) settle(pos *Position, exitPrice float64, ts time.Time, reason string) {
	s.nextTrd++
	rec := journal.TradeRecord{
		TradeID:    fmt.Sprintf("trd-%06d", s.nextTrd),
		RunID:      s.runID,
		Symbol:     pos.Symbol,
		Units:      pos.peakUnits,
		EntryPrice: pos.AvgPrice,
		ExitPrice:  exitPrice,
		OpenTime:   pos.OpenTime,
		CloseTime:  ts,
		RealizedPL: pos.realized,
		Fees:       pos.fees,
		Reason:     reason,
	}
	s.trades = append(s.trades, rec)
	_ = s.jrnl.RecordTrade(rec)
}

func (s *Simulator) recordFill(f Fill) error {
	units := f.Units
	if f.Side == Sell {
		units = -units
	}
	return s.jrnl.RecordFill(journal.FillRecord{
		OrderID: f.OrderID,
		RunID:   s.runID,
		Symbol:  f.Symbol,
		Units:   units,
		Price:   f.Price,
		Fees:    f.Fees,
		Time:    f.Time,
	})
}

// MarkEquity values the portfolio at the last seen prices, records a
// snapshot, and trips the drawdown halt when the limit is breached.
// Liquidation fills, if any, are returned.
func (s *Simulator) MarkEquity(ts time.Time) (journal.EquitySnapshot, []Fill, error) {
	var fills []Fill
	eq, exp := s.value()
	if eq > s.peak {
		s.peak = eq
	}
	if s.peak > 0 {
		s.drawdown = (s.peak - eq) / s.peak
	}

	if s.state == Running && s.cfg.MaxDrawdownPct > 0 && s.drawdown > s.cfg.MaxDrawdownPct {
		s.state = Halted
		s.pending = nil
		if s.cfg.LiquidateOnHalt {
			var err error
			fills, err = s.CloseAll(ts, "halt")
			if err != nil {
				return journal.EquitySnapshot{}, fills, err
			}
			eq, exp = s.value()
		}
	}

	snap := journal.EquitySnapshot{
		RunID:    s.runID,
		Time:     ts,
		Cash:     s.cash,
		Equity:   eq,
		Exposure: exp,
		Drawdown: s.drawdown,
	}
	s.equity = append(s.equity, snap)
	if err := s.jrnl.RecordEquity(snap); err != nil {
		return snap, fills, fmt.Errorf("mark equity: %w", err)
	}
	return snap, fills, nil
}

// value returns mark-to-market equity and gross exposure. Positions are
// marked at the last bar close seen for their symbol.
func (s *Simulator) value() (equity, exposure float64) {
	equity = s.cash
	for sym, pos := range s.positions {
		price, ok := s.lastPrice[sym]
		if !ok {
			price = pos.AvgPrice
		}
		equity += pos.MarketValue(price)
		exposure += math.Abs(pos.MarketValue(price))
	}
	return equity, exposure
}

// CloseAll flattens every open position at the last seen prices.
func (s *Simulator) CloseAll(ts time.Time, reason string) ([]Fill, error) {
	if s.state == Closed {
		return nil, fmt.Errorf("close all: portfolio is closed")
	}
	syms := make([]string, 0, len(s.positions))
	for sym := range s.positions {
		syms = append(syms, sym)
	}
	sort.Strings(syms)

	var fills []Fill
	for _, sym := range syms {
		pos := s.positions[sym]
		price, ok := s.lastPrice[sym]
		if !ok {
			price = pos.AvgPrice
		}
		f := s.closePosition(pos, s.slip(price, exitSide(pos)), ts, reason)
		if err := s.recordFill(f); err != nil {
			return fills, err
		}
		fills = append(fills, f)
	}
	return fills, nil
}

func exitSide(pos *Position) Side {
	if pos.Units < 0 {
		return Buy
	}
	return Sell
}

// Close finishes the run. No further orders or bars are accepted.
func (s *Simulator) Close() error {
	if s.state == Closed {
		return nil
	}
	s.state = Closed
	s.pending = nil
	return nil
}

// View is the read-only snapshot the risk engine sizes against.
type View struct {
	State         State
	Cash          float64
	Equity        float64
	GrossExposure float64
	OpenPositions int
	Units         map[string]float64 // signed open units per symbol
	LastPrice     map[string]float64
}

func (s *Simulator) View() View {
	eq, exp := s.value()
	v := View{
		State:         s.state,
		Cash:          s.cash,
		Equity:        eq,
		GrossExposure: exp,
		OpenPositions: len(s.positions),
		Units:         make(map[string]float64, len(s.positions)),
		LastPrice:     make(map[string]float64, len(s.lastPrice)),
	}
	for sym, pos := range s.positions {
		v.Units[sym] = pos.Units
	}
	for sym, price := range s.lastPrice {
		v.LastPrice[sym] = price
	}
	return v
}

// Position returns a copy of the open position for symbol, if any.
func (s *Simulator) Position(symbol string) (Position, bool) {
	pos, ok := s.positions[symbol]
	if !ok {
		return Position{}, false
	}
	return *pos, true
}

// ClosedTrades returns the round trips booked so far, in close order.
func (s *Simulator) ClosedTrades() []journal.TradeRecord { return s.trades }

// EquityCurve returns every snapshot recorded so far, in time order.
func (s *Simulator) EquityCurve() []journal.EquitySnapshot { return s.equity }
