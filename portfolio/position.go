package portfolio

import (
	"math"
	"time"
)

// Position is an open holding in one symbol. Units are signed: positive
// for long, negative for short. AvgPrice is the volume-weighted entry
// price of the units still open.
type Position struct {
	Symbol   string
	Units    float64
	AvgPrice float64
	Stop     float64 // protective stop, 0 for none
	Trail    float64 // trailing distance, 0 keeps the stop fixed
	OpenTime time.Time

	realized  float64 // P&L locked in by partial reductions
	fees      float64 // fees accumulated over the round trip
	peakUnits float64 // signed units at the round trip's largest size
}

// MarketValue is the signed value of the position at price.
func (p *Position) MarketValue(price float64) float64 {
	return p.Units * price
}

// UnrealizedPL is the open profit at price.
func (p *Position) UnrealizedPL(price float64) float64 {
	return p.Units * (price - p.AvgPrice)
}

// stopHit reports whether the bar's range touched the protective stop,
// and the price the exit fills at. A gap through the stop fills at the
// bar open instead of the stop level.
func (p *Position) stopHit(open, high, low float64) (float64, bool) {
	if p.Stop == 0 {
		return 0, false
	}
	if p.Units > 0 {
		if low <= p.Stop {
			return math.Min(p.Stop, open), true
		}
		return 0, false
	}
	if high >= p.Stop {
		return math.Max(p.Stop, open), true
	}
	return 0, false
}

// ratchet moves a trailing stop toward the close, never away from it.
func (p *Position) ratchet(close float64) {
	if p.Trail <= 0 || p.Stop == 0 {
		return
	}
	if p.Units > 0 {
		p.Stop = math.Max(p.Stop, close-p.Trail)
		return
	}
	p.Stop = math.Min(p.Stop, close+p.Trail)
}

// add increases the position in its current direction, reweighting the
// average entry price.
func (p *Position) add(units, price, fees float64) {
	have := math.Abs(p.Units)
	more := math.Abs(units)
	p.AvgPrice = (p.AvgPrice*have + price*more) / (have + more)
	p.Units += units
	p.fees += fees
	if math.Abs(p.Units) > math.Abs(p.peakUnits) {
		p.peakUnits = p.Units
	}
}

// reduce closes part or all of the position at price and returns the
// realized P&L of the closed slice. units is signed and must oppose the
// position; callers never reduce by more than is open.
func (p *Position) reduce(units, price, fees float64) float64 {
	closed := math.Abs(units)
	dir := 1.0
	if p.Units < 0 {
		dir = -1
	}
	pl := closed * dir * (price - p.AvgPrice)
	p.realized += pl
	p.fees += fees
	p.Units += units
	return pl
}
