package indicators

import (
	"fmt"

	"github.com/quantdesk/quantdesk/market"
)

// SMA is a streaming Simple Moving Average over closes.
//
// It keeps a fixed ring buffer and a windowed running sum, so an
// append-one-bar update is O(1) and the value matches a from-scratch
// recomputation to floating tolerance.
type SMA struct {
	window int
	buf    []float64
	head   int
	count  int
	sum    float64
}

func NewSMA(window int) *SMA {
	return &SMA{window: window, buf: make([]float64, window)}
}

func (s *SMA) Name() string { return fmt.Sprintf("SMA(%d)", s.window) }
func (s *SMA) Warmup() int  { return s.window }

func (s *SMA) Reset() {
	for i := range s.buf {
		s.buf[i] = 0
	}
	s.head, s.count, s.sum = 0, 0, 0
}

func (s *SMA) Update(b market.Bar) {
	if s.count == s.window {
		s.sum -= s.buf[s.head]
	} else {
		s.count++
	}
	s.buf[s.head] = b.Close
	s.sum += b.Close
	s.head = (s.head + 1) % s.window
}

func (s *SMA) Ready() bool { return s.count >= s.window }

func (s *SMA) Value() float64 {
	if !s.Ready() {
		return 0
	}
	return s.sum / float64(s.window)
}

// EMA is a streaming Exponential Moving Average over closes, seeded with the
// SMA of the first window closes.
type EMA struct {
	window     int
	multiplier float64
	ema        float64
	count      int
	warmupSum  float64
}

func NewEMA(window int) *EMA {
	return &EMA{window: window, multiplier: 2.0 / float64(window+1)}
}

func (e *EMA) Name() string { return fmt.Sprintf("EMA(%d)", e.window) }
func (e *EMA) Warmup() int  { return e.window }

func (e *EMA) Reset() {
	e.ema, e.count, e.warmupSum = 0, 0, 0
}

func (e *EMA) Update(b market.Bar) {
	e.update(b.Close)
}

func (e *EMA) update(v float64) {
	if e.count < e.window {
		e.warmupSum += v
		e.count++
		if e.count == e.window {
			e.ema = e.warmupSum / float64(e.window)
		}
		return
	}
	e.ema = (v-e.ema)*e.multiplier + e.ema
}

func (e *EMA) Ready() bool { return e.count >= e.window }

func (e *EMA) Value() float64 {
	if !e.Ready() {
		return 0
	}
	return e.ema
}

// MACD is the difference between a fast and a slow EMA of closes. It is
// ready once the slow leg is.
type MACD struct {
	fast *EMA
	slow *EMA
}

func NewMACD(fast, slow int) *MACD {
	return &MACD{fast: NewEMA(fast), slow: NewEMA(slow)}
}

func (m *MACD) Name() string {
	return fmt.Sprintf("MACD(%d,%d)", m.fast.window, m.slow.window)
}

func (m *MACD) Warmup() int { return m.slow.window }

func (m *MACD) Reset() {
	m.fast.Reset()
	m.slow.Reset()
}

func (m *MACD) Update(b market.Bar) {
	m.fast.Update(b)
	m.slow.Update(b)
}

func (m *MACD) Ready() bool { return m.slow.Ready() }

func (m *MACD) Value() float64 {
	if !m.Ready() {
		return 0
	}
	return m.fast.Value() - m.slow.Value()
}
