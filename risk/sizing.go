package risk

import (
	"fmt"

	"github.com/quantdesk/quantdesk/config"
	"github.com/quantdesk/quantdesk/rules"
)

// Sizer turns a signal into a unit count before limits are applied.
type Sizer interface {
	// Size returns the desired units for an entry at price with the
	// given equity. A zero result means no trade; it is not an error.
	Size(equity, price float64, ind rules.Lookup) float64
}

// NewSizer builds the sizer named by spec. Specs are validated up front
// so runs never discover a bad sizing block mid-stream.
func NewSizer(spec config.SizingSpec) (Sizer, error) {
	switch spec.Type {
	case "", "fixed":
		if spec.Units <= 0 {
			return nil, &config.ConfigurationError{Field: "sizing.units", Reason: "must be positive for fixed sizing"}
		}
		return fixedSizer{units: spec.Units}, nil
	case "fraction":
		if spec.Fraction <= 0 || spec.Fraction > 1 {
			return nil, &config.ConfigurationError{Field: "sizing.fraction", Reason: "must be in (0, 1]"}
		}
		return fractionSizer{fraction: spec.Fraction}, nil
	case "vol_target":
		if spec.RiskPerTrade <= 0 {
			return nil, &config.ConfigurationError{Field: "sizing.risk_per_trade", Reason: "must be positive"}
		}
		if spec.ATRIndicator == "" {
			return nil, &config.ConfigurationError{Field: "sizing.atr_indicator", Reason: "required for vol_target sizing"}
		}
		mult := spec.ATRMultiple
		if mult == 0 {
			mult = 1
		}
		return volTargetSizer{risk: spec.RiskPerTrade, atrName: spec.ATRIndicator, multiple: mult}, nil
	default:
		return nil, &config.ConfigurationError{
			Field:  "sizing.type",
			Reason: fmt.Sprintf("unknown sizing type %q", spec.Type),
		}
	}
}

// fixedSizer always asks for the same unit count.
type fixedSizer struct {
	units float64
}

func (s fixedSizer) Size(_, _ float64, _ rules.Lookup) float64 {
	return s.units
}

// fractionSizer spends a fixed fraction of current equity on each entry.
type fractionSizer struct {
	fraction float64
}

func (s fractionSizer) Size(equity, price float64, _ rules.Lookup) float64 {
	if price <= 0 || equity <= 0 {
		return 0
	}
	return s.fraction * equity / price
}

// volTargetSizer risks a fixed fraction of equity per trade, scaled so a
// wider ATR buys fewer units: units = equity * risk / (ATR * multiple).
type volTargetSizer struct {
	risk     float64
	atrName  string
	multiple float64
}

func (s volTargetSizer) Size(equity, price float64, ind rules.Lookup) float64 {
	if ind == nil {
		return 0
	}
	atr, ok := ind(s.atrName)
	if !ok || atr <= 0 || equity <= 0 {
		return 0
	}
	return equity * s.risk / (atr * s.multiple)
}
