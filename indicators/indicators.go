// Package indicators provides streaming technical indicators and the
// pipeline that computes them per symbol.
package indicators

import (
	"fmt"

	"github.com/quantdesk/quantdesk/config"
	"github.com/quantdesk/quantdesk/market"
)

// Indicator computes a single streaming value from bars.
// It is deterministic and shared between backtest and paper runs.
type Indicator interface {
	// Name returns a stable identifier like "SMA(20)".
	Name() string

	// Warmup returns how many updates are needed before Ready() can be true.
	Warmup() int

	// Reset clears all internal state.
	Reset()

	// Update consumes the next *closed* bar and updates internal state.
	Update(b market.Bar)

	// Ready reports whether Value() is meaningful. Before warmup the value
	// is absent, never zero.
	Ready() bool

	// Value returns the current indicator value. Callers must check Ready().
	Value() float64
}

// New builds one indicator from its spec. An unknown kind is a
// ConfigurationError: the pipeline refuses to construct rather than failing
// later at evaluation time.
func New(spec config.IndicatorSpec) (Indicator, error) {
	window := spec.Window
	if window <= 0 {
		window = 14
	}

	switch spec.Kind {
	case "sma":
		return NewSMA(window), nil
	case "ema":
		return NewEMA(window), nil
	case "rsi":
		return NewRSI(window), nil
	case "atr":
		return NewATR(window), nil
	case "adx":
		return NewADX(window), nil
	case "roc":
		if spec.Window <= 0 {
			window = 12
		}
		return NewROC(window), nil
	case "macd":
		fast, slow := spec.Fast, spec.Slow
		if fast <= 0 {
			fast = 12
		}
		if slow <= 0 {
			slow = 26
		}
		if fast >= slow {
			return nil, &config.ConfigurationError{
				Field:  spec.Name,
				Reason: fmt.Sprintf("macd fast period %d must be less than slow %d", fast, slow),
			}
		}
		return NewMACD(fast, slow), nil
	case "stddev":
		return NewStdDev(window), nil
	case "bollinger_pct":
		if spec.Window <= 0 {
			window = 20
		}
		mult := spec.StdMult
		if mult <= 0 {
			mult = 2.0
		}
		return NewBollingerPct(window, mult), nil
	default:
		return nil, &config.ConfigurationError{
			Field:  spec.Name,
			Reason: fmt.Sprintf("unknown indicator kind %q", spec.Kind),
		}
	}
}

// Pipeline owns the configured indicators for one symbol. It supports
// append-one-bar incremental updates; recomputing from scratch over the same
// bars yields the same values (see Series).
type Pipeline struct {
	order  []string
	byName map[string]Indicator
}

// NewPipeline constructs all indicators up front so that a bad spec fails
// here, not mid-run.
func NewPipeline(specs []config.IndicatorSpec) (*Pipeline, error) {
	p := &Pipeline{byName: make(map[string]Indicator, len(specs))}
	for _, spec := range specs {
		ind, err := New(spec)
		if err != nil {
			return nil, err
		}
		if _, dup := p.byName[spec.Name]; dup {
			return nil, &config.ConfigurationError{
				Field:  spec.Name,
				Reason: "duplicate indicator name",
			}
		}
		p.byName[spec.Name] = ind
		p.order = append(p.order, spec.Name)
	}
	return p, nil
}

// Update feeds one closed bar to every indicator.
func (p *Pipeline) Update(b market.Bar) {
	for _, name := range p.order {
		p.byName[name].Update(b)
	}
}

// Value returns the named indicator's current value. ok is false while the
// indicator is still warming up or the name is unknown; absence must never
// be read as zero.
func (p *Pipeline) Value(name string) (float64, bool) {
	ind, ok := p.byName[name]
	if !ok || !ind.Ready() {
		return 0, false
	}
	return ind.Value(), true
}

// Names returns indicator names in declaration order.
func (p *Pipeline) Names() []string { return p.order }

// Reset clears every indicator, e.g. when a paper run restarts warm-up.
func (p *Pipeline) Reset() {
	for _, name := range p.order {
		p.byName[name].Reset()
	}
}

// Series recomputes one indicator from scratch over a full bar history.
// ok[i] is false for warm-up positions. This is the batch path the
// incremental pipeline is tested against.
func Series(spec config.IndicatorSpec, bars []market.Bar) (values []float64, ok []bool, err error) {
	ind, err := New(spec)
	if err != nil {
		return nil, nil, err
	}

	values = make([]float64, len(bars))
	ok = make([]bool, len(bars))
	for i, b := range bars {
		ind.Update(b)
		if ind.Ready() {
			values[i] = ind.Value()
			ok[i] = true
		}
	}
	return values, ok, nil
}
