// Package risk turns signals into sized orders, applying the portfolio
// limits configured for the run. Limit breaches are expected outcomes:
// they come back as rejection decisions, not errors.
package risk

import (
	"fmt"
	"math"

	"github.com/quantdesk/quantdesk/config"
	"github.com/quantdesk/quantdesk/journal"
	"github.com/quantdesk/quantdesk/portfolio"
	"github.com/quantdesk/quantdesk/rules"
)

// Rejection codes reported by Vet.
const (
	CodePositionOpen     = "POSITION_OPEN"
	CodeMaxPositions     = "MAX_POSITIONS"
	CodeExposureLimit    = "EXPOSURE_LIMIT"
	CodeInsufficientCash = "INSUFFICIENT_CASH"
)

// Decision is the outcome of vetting one signal. Exactly one of three
// shapes: an order to submit, a rejection to journal, or neither when
// the signal sizes to nothing.
type Decision struct {
	Order  *portfolio.Order
	Code   string
	Reason string
}

func (d Decision) Rejected() bool { return d.Code != "" }

// Rejection expands a rejected decision into its journal record.
func (d Decision) Rejection(runID string, sig rules.SignalEvent) journal.RejectionRecord {
	return journal.RejectionRecord{
		RunID:  runID,
		Time:   sig.Time,
		Symbol: sig.Symbol,
		RuleID: sig.RuleID,
		Reason: fmt.Sprintf("%s: %s", d.Code, d.Reason),
	}
}

// Engine vets signals against one strategy's sizing rule and limits.
type Engine struct {
	sizer  Sizer
	limits config.RiskLimits
}

func New(sizing config.SizingSpec, limits config.RiskLimits) (*Engine, error) {
	sizer, err := NewSizer(sizing)
	if err != nil {
		return nil, err
	}
	return &Engine{sizer: sizer, limits: limits}, nil
}

// Vet sizes and checks one signal against the current portfolio view.
// ind resolves indicator values as of the signal's bar; volatility-based
// sizing reads its ATR through it.
//
// Exits always pass: flattening reduces risk, so no entry limit applies.
// Entries are taken only from flat. Sizing to zero is silent; a limit
// blocking a nonzero size is a rejection.
func (e *Engine) Vet(sig rules.SignalEvent, view portfolio.View, ind rules.Lookup) Decision {
	held := view.Units[sig.Symbol]

	if sig.Direction == rules.Exit {
		if held == 0 {
			return Decision{}
		}
		return Decision{Order: &portfolio.Order{
			SignalID: sig.RuleID,
			Symbol:   sig.Symbol,
			Side:     flattenSide(held),
			Units:    math.Abs(held),
			Type:     portfolio.Market,
			Created:  sig.Time,
		}}
	}

	if held != 0 {
		return Decision{Code: CodePositionOpen, Reason: fmt.Sprintf("already holding %v units of %s", held, sig.Symbol)}
	}
	if e.limits.MaxPositions > 0 && view.OpenPositions >= e.limits.MaxPositions {
		return Decision{Code: CodeMaxPositions, Reason: fmt.Sprintf("%d positions open, limit %d", view.OpenPositions, e.limits.MaxPositions)}
	}
	if sig.Price <= 0 {
		return Decision{}
	}

	units := e.sizer.Size(view.Equity, sig.Price, ind)
	if units <= 0 {
		return Decision{}
	}

	if e.limits.MaxPositionPct > 0 {
		units = math.Min(units, e.limits.MaxPositionPct*view.Equity/sig.Price)
	}
	if e.limits.MaxGrossExposure > 0 {
		headroom := e.limits.MaxGrossExposure*view.Equity - view.GrossExposure
		if headroom <= 0 {
			return Decision{Code: CodeExposureLimit, Reason: fmt.Sprintf("gross exposure %.2f at limit %.2f of equity",
				view.GrossExposure, e.limits.MaxGrossExposure)}
		}
		units = math.Min(units, headroom/sig.Price)
	}
	if sig.Direction == rules.EnterLong {
		if view.Cash <= 0 {
			return Decision{Code: CodeInsufficientCash, Reason: "no cash available"}
		}
		units = math.Min(units, view.Cash/sig.Price)
	}
	if units <= 0 {
		return Decision{}
	}

	side := portfolio.Buy
	if sig.Direction == rules.EnterShort {
		side = portfolio.Sell
	}
	stop, trail := e.stopFor(sig, ind)
	return Decision{Order: &portfolio.Order{
		SignalID: sig.RuleID,
		Symbol:   sig.Symbol,
		Side:     side,
		Units:    units,
		Type:     portfolio.Market,
		Stop:     stop,
		Trail:    trail,
		Created:  sig.Time,
	}}
}

// stopFor derives the protective stop off the signal price. An ATR
// stop takes precedence when configured and the indicator is ready;
// otherwise the percent stop applies. With trailing enabled the stop
// distance is returned so the position can ratchet it.
func (e *Engine) stopFor(sig rules.SignalEvent, ind rules.Lookup) (stop, trail float64) {
	var dist float64
	if e.limits.StopATRMultiple > 0 && ind != nil {
		if atr, ok := ind(e.limits.StopATRIndicator); ok && atr > 0 {
			dist = e.limits.StopATRMultiple * atr
		}
	}
	if dist == 0 && e.limits.StopLossPct > 0 {
		dist = sig.Price * e.limits.StopLossPct
	}
	if dist == 0 {
		return 0, 0
	}
	if e.limits.TrailingStop {
		trail = dist
	}
	if sig.Direction == rules.EnterShort {
		return sig.Price + dist, trail
	}
	return sig.Price - dist, trail
}

func flattenSide(units float64) portfolio.Side {
	if units < 0 {
		return portfolio.Buy
	}
	return portfolio.Sell
}
