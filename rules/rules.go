// Package rules compiles declarative signal rules into a closed set of
// tagged predicate variants and evaluates them per symbol per bar.
package rules

import (
	"fmt"
	"time"

	"github.com/quantdesk/quantdesk/config"
	"github.com/quantdesk/quantdesk/market"
)

// Direction is the action a fired rule asks for.
type Direction int

const (
	Hold Direction = iota
	EnterLong
	EnterShort
	Exit
)

func (d Direction) String() string {
	switch d {
	case EnterLong:
		return "enter_long"
	case EnterShort:
		return "enter_short"
	case Exit:
		return "exit"
	default:
		return "hold"
	}
}

// ParseDirection maps a config string to a Direction.
func ParseDirection(s string) (Direction, error) {
	switch s {
	case "enter_long":
		return EnterLong, nil
	case "enter_short":
		return EnterShort, nil
	case "exit":
		return Exit, nil
	case "", "hold":
		return Hold, nil
	default:
		return Hold, fmt.Errorf("unknown direction %q", s)
	}
}

// Kind selects the predicate variant. The set is closed: rules dispatch over
// this enum, with no runtime expression evaluation.
type Kind int

const (
	// ThresholdCross fires when the subject crosses the configured level.
	ThresholdCross Kind = iota
	// BandBreach fires when the subject leaves the [lower, upper] band.
	BandBreach
	// Crossover fires when the subject crosses the reference series on
	// the trigger's side.
	Crossover
)

// Trigger is the side a ThresholdCross or BandBreach watches.
type Trigger int

const (
	Above Trigger = iota
	Below
)

// SignalEvent is a directional signal produced by one rule at one bar.
// Events are generated, never mutated, and consumed at most once by the
// risk engine for a given timestamp.
type SignalEvent struct {
	Symbol    string
	Time      time.Time
	Direction Direction
	RuleID    string
	Price     float64 // close of the triggering bar
	Strength  float64
}

// Rule is a compiled predicate. Compilation happens once per run; unknown
// kinds or malformed operands fail here, not at evaluation time.
type Rule struct {
	ID        string
	Kind      Kind
	Direction Direction
	Trigger   Trigger
	Subject   string
	Reference string
	Level     float64
	Lower     float64
	Upper     float64
	Cooldown  int
	Strength  float64
}

// Compile turns a RuleSpec into a Rule, rejecting unknown kinds and
// incomplete operands with a ConfigurationError.
func Compile(spec config.RuleSpec) (*Rule, error) {
	dir, err := ParseDirection(spec.Direction)
	if err != nil {
		return nil, &config.ConfigurationError{Field: "rule " + spec.ID, Reason: err.Error()}
	}
	if spec.Subject == "" {
		return nil, &config.ConfigurationError{Field: "rule " + spec.ID, Reason: "subject is required"}
	}

	r := &Rule{
		ID:        spec.ID,
		Direction: dir,
		Subject:   spec.Subject,
		Reference: spec.Reference,
		Level:     spec.Level,
		Lower:     spec.Lower,
		Upper:     spec.Upper,
		Cooldown:  spec.Cooldown,
		Strength:  spec.Strength,
	}

	switch spec.Kind {
	case "threshold_cross", "threshold-cross":
		r.Kind = ThresholdCross
	case "band_breach", "band-breach":
		r.Kind = BandBreach
		if spec.Lower >= spec.Upper {
			return nil, &config.ConfigurationError{
				Field:  "rule " + spec.ID,
				Reason: fmt.Sprintf("band lower %.4f must be below upper %.4f", spec.Lower, spec.Upper),
			}
		}
	case "crossover":
		r.Kind = Crossover
		if spec.Reference == "" {
			return nil, &config.ConfigurationError{Field: "rule " + spec.ID, Reason: "crossover requires a reference operand"}
		}
	default:
		return nil, &config.ConfigurationError{
			Field:  "rule " + spec.ID,
			Reason: fmt.Sprintf("unknown rule kind %q", spec.Kind),
		}
	}

	switch spec.Trigger {
	case "", "above":
		r.Trigger = Above
	case "below":
		r.Trigger = Below
	default:
		return nil, &config.ConfigurationError{
			Field:  "rule " + spec.ID,
			Reason: fmt.Sprintf("unknown trigger %q", spec.Trigger),
		}
	}

	return r, nil
}

// Lookup resolves an operand name at the current bar. Bar fields are
// addressed by their lowercase names; anything else is an indicator name.
// ok reports absence, which is never interpreted as zero.
type Lookup func(name string) (value float64, ok bool)

// BarLookup wraps an indicator lookup so rules can also reference raw bar
// fields: open, high, low, close, volume.
func BarLookup(b market.Bar, indicators Lookup) Lookup {
	return func(name string) (float64, bool) {
		switch name {
		case "open":
			return b.Open, true
		case "high":
			return b.High, true
		case "low":
			return b.Low, true
		case "close":
			return b.Close, true
		case "volume":
			return b.Volume, true
		default:
			if indicators == nil {
				return 0, false
			}
			return indicators(name)
		}
	}
}
