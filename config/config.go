// Package config defines the immutable strategy configuration consumed by a
// single backtest or paper-trading run. A run never mutates its
// configuration; hot reload means handing the scheduler a freshly loaded
// Strategy at the next run boundary.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// ConfigurationError reports a bad indicator/rule/risk spec. It is raised at
// load or pipeline construction, never during bar evaluation.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("config %s: %s", e.Field, e.Reason)
}

// Strategy is the complete configuration for one run: universe, indicators,
// rules, sizing, risk limits, and the mode-specific sections.
type Strategy struct {
	Name       string          `yaml:"name"`
	Universe   Universe        `yaml:"universe"`
	Indicators []IndicatorSpec `yaml:"indicators"`
	Rules      RulesSpec       `yaml:"rules"`
	Sizing     SizingSpec      `yaml:"sizing"`
	Risk       RiskLimits      `yaml:"risk"`
	Backtest   BacktestSpec    `yaml:"backtest"`
	Paper      PaperSpec       `yaml:"paper"`
}

// Universe is the symbol list a run watches.
type Universe struct {
	Symbols []string `yaml:"symbols"`
}

// IndicatorSpec names one derived series, e.g. {name: sma_fast, kind: sma,
// window: 20}. Kind membership is checked by the indicator pipeline at
// construction.
type IndicatorSpec struct {
	Name    string  `yaml:"name"`
	Kind    string  `yaml:"kind"`
	Window  int     `yaml:"window"`
	Fast    int     `yaml:"fast,omitempty"`    // macd
	Slow    int     `yaml:"slow,omitempty"`    // macd
	StdMult float64 `yaml:"std_mult,omitempty"` // bollinger
}

// RulesSpec holds the declared rule list. Rules are evaluated in declaration
// order; the first rule producing a non-hold direction wins for a
// symbol/bar unless AllowMultiple is set.
type RulesSpec struct {
	AllowMultiple bool       `yaml:"allow_multiple"`
	Rules         []RuleSpec `yaml:"rules"`
}

// RuleSpec is one declarative signal rule. Kind selects a tagged predicate
// variant (threshold-cross, band-breach, crossover); the rule evaluator
// rejects unknown kinds at compile time.
type RuleSpec struct {
	ID        string  `yaml:"id"`
	Kind      string  `yaml:"kind"`
	Direction string  `yaml:"direction"`         // enter_long, enter_short, exit
	Trigger   string  `yaml:"trigger,omitempty"` // above (default) or below
	Subject   string  `yaml:"subject"`           // indicator name or bar field
	Reference string  `yaml:"reference,omitempty"` // second operand for crossover
	Level     float64 `yaml:"level,omitempty"`     // threshold level
	Lower     float64 `yaml:"lower,omitempty"`     // band bounds
	Upper     float64 `yaml:"upper,omitempty"`
	Cooldown  int     `yaml:"cooldown"` // bars suppressed after firing
	Strength  float64 `yaml:"strength,omitempty"`
}

// SizingSpec selects the position sizing rule.
type SizingSpec struct {
	Type         string  `yaml:"type"` // fixed, fraction, vol_target
	Units        float64 `yaml:"units,omitempty"`
	Fraction     float64 `yaml:"fraction,omitempty"`
	RiskPerTrade float64 `yaml:"risk_per_trade,omitempty"`
	ATRIndicator string  `yaml:"atr_indicator,omitempty"`
	ATRMultiple  float64 `yaml:"atr_multiple,omitempty"`
}

// RiskLimits are the portfolio-level constraints, read-only for the lifetime
// of a run.
type RiskLimits struct {
	MaxPositionPct   float64 `yaml:"max_position_pct"`   // per-symbol cap as fraction of equity
	MaxGrossExposure float64 `yaml:"max_gross_exposure"` // aggregate |position value| / equity
	MaxPositions     int     `yaml:"max_positions"`
	MaxDrawdownPct   float64 `yaml:"max_drawdown_pct"` // halt threshold, e.g. 0.20
	StopLossPct      float64 `yaml:"stop_loss_pct"`    // per-trade protective stop, 0 disables
	StopATRIndicator string  `yaml:"stop_atr_indicator,omitempty"` // ATR indicator backing volatility stops
	StopATRMultiple  float64 `yaml:"stop_atr_multiple,omitempty"`  // stop distance in ATRs, 0 disables
	TrailingStop     bool    `yaml:"trailing_stop,omitempty"`      // ratchet the stop with favorable closes
}

// BacktestSpec configures the historical replay window and fill model.
type BacktestSpec struct {
	Start             string  `yaml:"start"` // 2006-01-02
	End               string  `yaml:"end"`
	Frequency         string  `yaml:"frequency"` // 1D, 1H, 24H, or 1W, for annualization
	InitialCash       float64 `yaml:"initial_cash"`
	SlippageBps       float64 `yaml:"slippage_bps"`
	CommissionPerUnit float64 `yaml:"commission_per_unit"`
	LiquidateOnHalt   bool    `yaml:"liquidate_on_halt"`
	CloseAtEnd        bool    `yaml:"close_at_end"`
}

// PaperSpec configures the paper-trading scheduler.
type PaperSpec struct {
	Interval    string  `yaml:"interval"` // polling cadence, e.g. "15m"
	MaxRetries  int     `yaml:"max_retries"`
	InitialCash float64 `yaml:"initial_cash"`
	SlippageBps float64 `yaml:"slippage_bps"`
	Channels    []string `yaml:"channels"`
}

func (b BacktestSpec) Window() (start, end time.Time, err error) {
	if b.Start != "" {
		start, err = time.Parse("2006-01-02", b.Start)
		if err != nil {
			return time.Time{}, time.Time{}, &ConfigurationError{Field: "backtest.start", Reason: err.Error()}
		}
	}
	if b.End != "" {
		end, err = time.Parse("2006-01-02", b.End)
		if err != nil {
			return time.Time{}, time.Time{}, &ConfigurationError{Field: "backtest.end", Reason: err.Error()}
		}
	}
	if !start.IsZero() && !end.IsZero() && end.Before(start) {
		return time.Time{}, time.Time{}, &ConfigurationError{Field: "backtest.end", Reason: "end before start"}
	}
	return start, end, nil
}

func (p PaperSpec) PollInterval() (time.Duration, error) {
	if p.Interval == "" {
		return 15 * time.Minute, nil
	}
	d, err := time.ParseDuration(p.Interval)
	if err != nil {
		return 0, &ConfigurationError{Field: "paper.interval", Reason: err.Error()}
	}
	if d <= 0 {
		return 0, &ConfigurationError{Field: "paper.interval", Reason: "must be positive"}
	}
	return d, nil
}

// Load reads and validates a strategy file.
func Load(path string) (*Strategy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read strategy file: %w", err)
	}

	s := &Strategy{}
	if err := yaml.Unmarshal(data, s); err != nil {
		return nil, &ConfigurationError{Field: path, Reason: err.Error()}
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Save writes the strategy as YAML, used by `quantdesk config init`.
func (s *Strategy) Save(path string) error {
	data, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshal strategy: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write strategy file: %w", err)
	}
	return nil
}

// Validate checks structural constraints. Indicator and rule kind membership
// is checked by the packages that compile them, also at construction time.
func (s *Strategy) Validate() error {
	if len(s.Universe.Symbols) == 0 {
		return &ConfigurationError{Field: "universe.symbols", Reason: "at least one symbol required"}
	}

	names := make(map[string]bool, len(s.Indicators))
	for i, ind := range s.Indicators {
		field := fmt.Sprintf("indicators[%d]", i)
		if ind.Name == "" {
			return &ConfigurationError{Field: field + ".name", Reason: "required"}
		}
		if names[ind.Name] {
			return &ConfigurationError{Field: field + ".name", Reason: fmt.Sprintf("duplicate indicator name %q", ind.Name)}
		}
		names[ind.Name] = true
		if ind.Kind == "" {
			return &ConfigurationError{Field: field + ".kind", Reason: "required"}
		}
	}

	ids := make(map[string]bool, len(s.Rules.Rules))
	for i, r := range s.Rules.Rules {
		field := fmt.Sprintf("rules.rules[%d]", i)
		if r.ID == "" {
			return &ConfigurationError{Field: field + ".id", Reason: "required"}
		}
		if ids[r.ID] {
			return &ConfigurationError{Field: field + ".id", Reason: fmt.Sprintf("duplicate rule id %q", r.ID)}
		}
		ids[r.ID] = true
		if r.Cooldown < 0 {
			return &ConfigurationError{Field: field + ".cooldown", Reason: "must be >= 0"}
		}
	}

	switch s.Sizing.Type {
	case "", "fixed":
		if s.Sizing.Units < 0 {
			return &ConfigurationError{Field: "sizing.units", Reason: "must be >= 0"}
		}
	case "fraction":
		if s.Sizing.Fraction <= 0 || s.Sizing.Fraction > 1 {
			return &ConfigurationError{Field: "sizing.fraction", Reason: "must be in (0, 1]"}
		}
	case "vol_target":
		if s.Sizing.RiskPerTrade <= 0 || s.Sizing.RiskPerTrade > 1 {
			return &ConfigurationError{Field: "sizing.risk_per_trade", Reason: "must be in (0, 1]"}
		}
		if s.Sizing.ATRIndicator == "" {
			return &ConfigurationError{Field: "sizing.atr_indicator", Reason: "required for vol_target sizing"}
		}
		if !names[s.Sizing.ATRIndicator] {
			return &ConfigurationError{Field: "sizing.atr_indicator", Reason: fmt.Sprintf("unknown indicator %q", s.Sizing.ATRIndicator)}
		}
	default:
		return &ConfigurationError{Field: "sizing.type", Reason: fmt.Sprintf("unknown sizing type %q", s.Sizing.Type)}
	}

	if s.Risk.MaxGrossExposure < 0 {
		return &ConfigurationError{Field: "risk.max_gross_exposure", Reason: "must be >= 0"}
	}
	if s.Risk.MaxPositionPct < 0 || s.Risk.MaxPositionPct > 1 {
		return &ConfigurationError{Field: "risk.max_position_pct", Reason: "must be in [0, 1]"}
	}
	if s.Risk.MaxDrawdownPct < 0 || s.Risk.MaxDrawdownPct >= 1 {
		return &ConfigurationError{Field: "risk.max_drawdown_pct", Reason: "must be in [0, 1)"}
	}
	if s.Risk.StopLossPct < 0 || s.Risk.StopLossPct >= 1 {
		return &ConfigurationError{Field: "risk.stop_loss_pct", Reason: "must be in [0, 1)"}
	}
	if s.Risk.StopATRMultiple < 0 {
		return &ConfigurationError{Field: "risk.stop_atr_multiple", Reason: "must be >= 0"}
	}
	if s.Risk.StopATRMultiple > 0 && !names[s.Risk.StopATRIndicator] {
		return &ConfigurationError{Field: "risk.stop_atr_indicator", Reason: fmt.Sprintf("unknown indicator %q", s.Risk.StopATRIndicator)}
	}
	if s.Risk.TrailingStop && s.Risk.StopLossPct == 0 && s.Risk.StopATRMultiple == 0 {
		return &ConfigurationError{Field: "risk.trailing_stop", Reason: "requires stop_loss_pct or stop_atr_multiple"}
	}

	if s.Backtest.InitialCash < 0 {
		return &ConfigurationError{Field: "backtest.initial_cash", Reason: "must be >= 0"}
	}
	if _, _, err := s.Backtest.Window(); err != nil {
		return err
	}
	if _, err := s.Paper.PollInterval(); err != nil {
		return err
	}
	if s.Paper.MaxRetries < 0 {
		return &ConfigurationError{Field: "paper.max_retries", Reason: "must be >= 0"}
	}

	return nil
}

// Default returns a runnable example strategy, written out by
// `quantdesk config init`.
func Default() *Strategy {
	return &Strategy{
		Name:     "sma-crossover",
		Universe: Universe{Symbols: []string{"AAPL"}},
		Indicators: []IndicatorSpec{
			{Name: "sma_fast", Kind: "sma", Window: 20},
			{Name: "sma_slow", Kind: "sma", Window: 50},
			{Name: "atr14", Kind: "atr", Window: 14},
		},
		Rules: RulesSpec{
			Rules: []RuleSpec{
				{ID: "golden-cross", Kind: "crossover", Direction: "enter_long",
					Subject: "sma_fast", Reference: "sma_slow", Cooldown: 5},
				{ID: "death-cross", Kind: "crossover", Direction: "exit",
					Subject: "sma_slow", Reference: "sma_fast"},
			},
		},
		Sizing: SizingSpec{
			Type:         "vol_target",
			RiskPerTrade: 0.01,
			ATRIndicator: "atr14",
			ATRMultiple:  2.0,
		},
		Risk: RiskLimits{
			MaxPositionPct:   0.20,
			MaxGrossExposure: 1.0,
			MaxPositions:     10,
			MaxDrawdownPct:   0.25,
			StopLossPct:      0.05,
		},
		Backtest: BacktestSpec{
			Start:       "2024-01-01",
			End:         "2024-12-31",
			Frequency:   "1D",
			InitialCash: 100_000,
			CloseAtEnd:  true,
		},
		Paper: PaperSpec{
			Interval:    "15m",
			MaxRetries:  3,
			InitialCash: 100_000,
			Channels:    []string{"console"},
		},
	}
}
