package indicators

import (
	"fmt"
	"math"

	"github.com/quantdesk/quantdesk/market"
)

// ATR is a streaming Average True Range: exponentially smoothed true range.
// The first bar's true range is high-low since there is no previous close.
type ATR struct {
	window    int
	alpha     float64
	atr       float64
	prevClose float64
	count     int
}

func NewATR(window int) *ATR {
	return &ATR{window: window, alpha: 2.0 / float64(window+1)}
}

func (a *ATR) Name() string { return fmt.Sprintf("ATR(%d)", a.window) }
func (a *ATR) Warmup() int  { return a.window }

func (a *ATR) Reset() {
	a.atr, a.prevClose = 0, 0
	a.count = 0
}

func (a *ATR) Update(b market.Bar) {
	tr := b.High - b.Low
	if a.count > 0 {
		tr = math.Max(tr, math.Max(math.Abs(b.High-a.prevClose), math.Abs(b.Low-a.prevClose)))
	}
	a.prevClose = b.Close

	if a.count == 0 {
		a.atr = tr
	} else {
		a.atr = a.alpha*tr + (1-a.alpha)*a.atr
	}
	a.count++
}

func (a *ATR) Ready() bool { return a.count >= a.window }

func (a *ATR) Value() float64 {
	if !a.Ready() {
		return 0
	}
	return a.atr
}

// ADX is a streaming Average Directional Index on a 0-100 scale.
// Directional movement and true range are smoothed the way ATR smooths,
// and the resulting DX is smoothed once more, so it needs two windows
// of bars before the reading settles.
type ADX struct {
	window  int
	alpha   float64
	plus    float64 // smoothed +DM
	minus   float64 // smoothed -DM
	tr      float64 // smoothed true range
	adx     float64
	prev    market.Bar
	count   int
	dxCount int
}

func NewADX(window int) *ADX {
	return &ADX{window: window, alpha: 2.0 / float64(window+1)}
}

func (a *ADX) Name() string { return fmt.Sprintf("ADX(%d)", a.window) }
func (a *ADX) Warmup() int  { return 2 * a.window }

func (a *ADX) Reset() {
	a.plus, a.minus, a.tr, a.adx = 0, 0, 0, 0
	a.prev = market.Bar{}
	a.count, a.dxCount = 0, 0
}

func (a *ADX) Update(b market.Bar) {
	if a.count == 0 {
		a.tr = b.High - b.Low
		a.prev = b
		a.count++
		return
	}

	tr := math.Max(b.High-b.Low,
		math.Max(math.Abs(b.High-a.prev.Close), math.Abs(b.Low-a.prev.Close)))
	up := b.High - a.prev.High
	down := a.prev.Low - b.Low
	var plus, minus float64
	if up > down && up > 0 {
		plus = up
	}
	if down > up && down > 0 {
		minus = down
	}
	a.tr = a.alpha*tr + (1-a.alpha)*a.tr
	a.plus = a.alpha*plus + (1-a.alpha)*a.plus
	a.minus = a.alpha*minus + (1-a.alpha)*a.minus
	a.prev = b
	a.count++

	// A zero range contributes nothing; the ADX holds its last reading.
	if a.tr == 0 {
		return
	}
	plusDI := 100 * a.plus / a.tr
	minusDI := 100 * a.minus / a.tr
	sum := plusDI + minusDI
	if sum == 0 {
		return
	}
	dx := math.Abs(plusDI-minusDI) / sum * 100
	if a.dxCount == 0 {
		a.adx = dx
	} else {
		a.adx = a.alpha*dx + (1-a.alpha)*a.adx
	}
	a.dxCount++
}

func (a *ADX) Ready() bool { return a.count >= 2*a.window && a.dxCount > 0 }

func (a *ADX) Value() float64 {
	if !a.Ready() {
		return 0
	}
	return a.adx
}

// StdDev is the population standard deviation of closes over a rolling
// window. The window is recomputed from the buffer on read, which is exact
// and immune to incremental drift for the small windows rules use.
type StdDev struct {
	window int
	buf    []float64
	head   int
	count  int
}

func NewStdDev(window int) *StdDev {
	return &StdDev{window: window, buf: make([]float64, window)}
}

func (s *StdDev) Name() string { return fmt.Sprintf("StdDev(%d)", s.window) }
func (s *StdDev) Warmup() int  { return s.window }

func (s *StdDev) Reset() {
	for i := range s.buf {
		s.buf[i] = 0
	}
	s.head, s.count = 0, 0
}

func (s *StdDev) Update(b market.Bar) {
	s.buf[s.head] = b.Close
	s.head = (s.head + 1) % s.window
	if s.count < s.window {
		s.count++
	}
}

func (s *StdDev) Ready() bool { return s.count >= s.window }

func (s *StdDev) Value() float64 {
	if !s.Ready() {
		return 0
	}
	mean := 0.0
	for _, v := range s.buf {
		mean += v
	}
	mean /= float64(s.window)

	variance := 0.0
	for _, v := range s.buf {
		d := v - mean
		variance += d * d
	}
	return math.Sqrt(variance / float64(s.window))
}

// BollingerPct is %B: where the close sits within the Bollinger band,
// 0 at the lower band and 1 at the upper. A degenerate band (zero width)
// reports not-ready rather than a fabricated value.
type BollingerPct struct {
	window  int
	stdMult float64
	sma     *SMA
	std     *StdDev
	last    float64
}

func NewBollingerPct(window int, stdMult float64) *BollingerPct {
	return &BollingerPct{
		window:  window,
		stdMult: stdMult,
		sma:     NewSMA(window),
		std:     NewStdDev(window),
	}
}

func (b *BollingerPct) Name() string {
	return fmt.Sprintf("BollingerPct(%d,%.1f)", b.window, b.stdMult)
}

func (b *BollingerPct) Warmup() int { return b.window }

func (b *BollingerPct) Reset() {
	b.sma.Reset()
	b.std.Reset()
	b.last = 0
}

func (b *BollingerPct) Update(bar market.Bar) {
	b.sma.Update(bar)
	b.std.Update(bar)
	b.last = bar.Close
}

func (b *BollingerPct) Ready() bool {
	return b.sma.Ready() && b.std.Ready() && b.std.Value() > 0
}

func (b *BollingerPct) Value() float64 {
	if !b.Ready() {
		return 0
	}
	mid := b.sma.Value()
	half := b.stdMult * b.std.Value()
	lower, upper := mid-half, mid+half
	return (b.last - lower) / (upper - lower)
}
