package rules

import (
	"github.com/quantdesk/quantdesk/config"
	"github.com/quantdesk/quantdesk/market"
)

// ruleState is the per-(symbol, rule) evaluation memory: cooldown remaining
// and the previous operand observation used for edge detection.
type ruleState struct {
	cooldownLeft int
	prev         float64
	hasPrev      bool
}

// Evaluator evaluates the configured rules against one bar at a time.
// Rules run in declaration order and each produces at most one SignalEvent
// per bar. Unless AllowMultiple is set, the first non-hold signal wins for
// the symbol/bar.
//
// Cross-style rules are edge-triggered: on the first bar where the operands
// become available a rule fires if its condition already holds; afterwards
// it fires only when the condition newly becomes true.
type Evaluator struct {
	rules         []*Rule
	allowMultiple bool
	state         map[string]map[string]*ruleState // symbol -> rule id
}

func NewEvaluator(spec config.RulesSpec) (*Evaluator, error) {
	e := &Evaluator{
		allowMultiple: spec.AllowMultiple,
		state:         make(map[string]map[string]*ruleState),
	}
	for _, rs := range spec.Rules {
		r, err := Compile(rs)
		if err != nil {
			return nil, err
		}
		e.rules = append(e.rules, r)
	}
	return e, nil
}

// Rules returns the compiled rules in declaration order.
func (e *Evaluator) Rules() []*Rule { return e.rules }

func (e *Evaluator) stateFor(symbol string, ruleID string) *ruleState {
	bySymbol, ok := e.state[symbol]
	if !ok {
		bySymbol = make(map[string]*ruleState)
		e.state[symbol] = bySymbol
	}
	st, ok := bySymbol[ruleID]
	if !ok {
		st = &ruleState{}
		bySymbol[ruleID] = st
	}
	return st
}

// Evaluate runs every rule against the bar. All rules observe the bar (so
// their edge state stays consistent) before the first-wins filter is
// applied. Cooldown is charged only for rules whose signal is actually
// emitted.
func (e *Evaluator) Evaluate(bar market.Bar, indicators Lookup) []SignalEvent {
	lookup := BarLookup(bar, indicators)

	type firing struct {
		rule *Rule
		st   *ruleState
	}
	var fired []firing

	for _, r := range e.rules {
		st := e.stateFor(bar.Symbol, r.ID)

		// Cooldown suppresses this bar but the rule still observes it so
		// the edge state stays consistent.
		suppressed := st.cooldownLeft > 0
		if suppressed {
			st.cooldownLeft--
		}

		cur, ok := e.observe(r, st, lookup)
		if !ok {
			// An absent operand skips the rule; it is not an error and the
			// edge state is left untouched.
			continue
		}
		if cur && !suppressed && r.Direction != Hold {
			fired = append(fired, firing{rule: r, st: st})
		}
	}

	var events []SignalEvent
	for _, f := range fired {
		events = append(events, SignalEvent{
			Symbol:    bar.Symbol,
			Time:      bar.Time,
			Direction: f.rule.Direction,
			RuleID:    f.rule.ID,
			Price:     bar.Close,
			Strength:  f.rule.Strength,
		})
		f.st.cooldownLeft = f.rule.Cooldown
		if !e.allowMultiple {
			break
		}
	}
	return events
}

// observe updates the rule's edge state with the current operands and
// reports whether the predicate fires at this bar. ok is false when an
// operand is absent.
func (e *Evaluator) observe(r *Rule, st *ruleState, lookup Lookup) (fires bool, ok bool) {
	switch r.Kind {
	case ThresholdCross:
		v, ok := lookup(r.Subject)
		if !ok {
			return false, false
		}
		return edge(st, v, r.Level, r.Trigger), true

	case BandBreach:
		v, ok := lookup(r.Subject)
		if !ok {
			return false, false
		}
		bound := r.Upper
		if r.Trigger == Below {
			bound = r.Lower
		}
		return edge(st, v, bound, r.Trigger), true

	case Crossover:
		a, okA := lookup(r.Subject)
		b, okB := lookup(r.Reference)
		if !okA || !okB {
			return false, false
		}
		// Track the spread: an above cross is the spread crossing over
		// zero, a below cross is it crossing under.
		return edge(st, a-b, 0, r.Trigger), true
	}
	return false, false
}

// edge performs edge-triggered comparison of v against level. With no prior
// observation the current side of the level counts as a cross.
func edge(st *ruleState, v, level float64, trig Trigger) bool {
	defer func() {
		st.prev = v
		st.hasPrev = true
	}()

	switch trig {
	case Above:
		if !st.hasPrev {
			return v > level
		}
		return v > level && st.prev <= level
	case Below:
		if !st.hasPrev {
			return v < level
		}
		return v < level && st.prev >= level
	}
	return false
}
