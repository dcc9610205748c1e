// Package paper runs a strategy against live quotes on a polling
// cadence, with the same evaluation loop a backtest uses. No real
// orders leave the process; the portfolio simulator plays broker.
package paper

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/quantdesk/quantdesk/config"
	"github.com/quantdesk/quantdesk/indicators"
	"github.com/quantdesk/quantdesk/journal"
	"github.com/quantdesk/quantdesk/market"
	"github.com/quantdesk/quantdesk/notify"
	"github.com/quantdesk/quantdesk/pkg/id"
	"github.com/quantdesk/quantdesk/portfolio"
	"github.com/quantdesk/quantdesk/risk"
	"github.com/quantdesk/quantdesk/rules"
)

// Scheduler polls the data provider, feeds new bars through the
// strategy, and dispatches alerts for signals, orders, fills, and
// halts. It is driven by
// a single goroutine; stopping is cooperative and happens between
// cycles, never mid-cycle.
type Scheduler struct {
	strat  config.Strategy
	data   market.DataProvider
	jrnl   journal.Journal
	alerts *notify.Manager

	runID    string
	interval time.Duration
	sim      *portfolio.Simulator
	pipes    map[string]*indicators.Pipeline
	eval     *rules.Evaluator
	riskEng  *risk.Engine

	// seen is the idempotence guard: the last bar timestamp processed
	// per symbol. A provider re-serving the same bar is a no-op.
	seen map[string]time.Time

	haltAlerted bool
	logf        func(format string, v ...any)
	sleep       func(ctx context.Context, d time.Duration) error
}

func New(strat config.Strategy, data market.DataProvider, j journal.Journal, alerts *notify.Manager) (*Scheduler, error) {
	if err := strat.Validate(); err != nil {
		return nil, fmt.Errorf("paper %q: %w", strat.Name, err)
	}
	if j == nil {
		j = journal.Discard{}
	}
	if alerts == nil {
		alerts = notify.NewManager()
	}

	pipes := make(map[string]*indicators.Pipeline, len(strat.Universe.Symbols))
	for _, sym := range strat.Universe.Symbols {
		p, err := indicators.NewPipeline(strat.Indicators)
		if err != nil {
			return nil, fmt.Errorf("paper %q: %w", strat.Name, err)
		}
		pipes[sym] = p
	}
	eval, err := rules.NewEvaluator(strat.Rules)
	if err != nil {
		return nil, fmt.Errorf("paper %q: %w", strat.Name, err)
	}
	riskEng, err := risk.New(strat.Sizing, strat.Risk)
	if err != nil {
		return nil, fmt.Errorf("paper %q: %w", strat.Name, err)
	}
	interval, err := strat.Paper.PollInterval()
	if err != nil {
		return nil, fmt.Errorf("paper %q: %w", strat.Name, err)
	}

	runID := id.New()
	sim := portfolio.New(runID, portfolio.Config{
		InitialCash:    strat.Paper.InitialCash,
		SlippageBps:    strat.Paper.SlippageBps,
		MaxDrawdownPct: strat.Risk.MaxDrawdownPct,
		FillAtClose:    true, // a polled bar's close is the only live price
	}, j)

	return &Scheduler{
		strat:    strat,
		data:     data,
		jrnl:     j,
		alerts:   alerts,
		runID:    runID,
		interval: interval,
		sim:      sim,
		pipes:    pipes,
		eval:     eval,
		riskEng:  riskEng,
		seen:     make(map[string]time.Time),
		logf:     log.Printf,
		sleep:    sleepCtx,
	}, nil
}

func (s *Scheduler) RunID() string { return s.runID }

// Portfolio exposes the simulator for status inspection.
func (s *Scheduler) Portfolio() *portfolio.Simulator { return s.sim }

// Run polls until the context is cancelled. Each wakeup runs one full
// cycle; cancellation is observed only between cycles.
func (s *Scheduler) Run(ctx context.Context) error {
	s.logf("paper %s: run %s polling every %s", s.strat.Name, s.runID, s.interval)

	for {
		if err := s.Cycle(ctx); err != nil {
			return err
		}
		if err := s.sleep(ctx, s.interval); err != nil {
			s.logf("paper %s: stopping: %v", s.strat.Name, err)
			return nil
		}
	}
}

// Cycle fetches the latest bar for every symbol, processes the new
// ones, and marks equity. Fetch failures retry with exponential
// backoff; a symbol whose retries are exhausted is skipped until the
// next cycle.
func (s *Scheduler) Cycle(ctx context.Context) error {
	symbols := append([]string(nil), s.strat.Universe.Symbols...)
	sort.Strings(symbols)

	var markTime time.Time
	processed := 0
	for _, sym := range symbols {
		bar, err := s.fetch(ctx, sym)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			s.logf("paper %s: %s: giving up this cycle: %v", s.strat.Name, sym, err)
			s.alerts.Dispatch(notify.Alert{
				Level: notify.Warn, Title: "data",
				Message: fmt.Sprintf("%s: %v", sym, err), Time: time.Now(),
			})
			continue
		}
		if !bar.Time.After(s.seen[sym]) {
			continue // already processed this bar
		}
		if err := s.process(bar); err != nil {
			return err
		}
		s.seen[sym] = bar.Time
		processed++
		if bar.Time.After(markTime) {
			markTime = bar.Time
		}
	}

	if processed == 0 {
		return nil
	}
	snap, fills, err := s.sim.MarkEquity(markTime)
	if err != nil {
		return fmt.Errorf("paper %q: %w", s.strat.Name, err)
	}
	s.announceFills(fills)
	if s.sim.State() == portfolio.Halted && !s.haltAlerted {
		s.haltAlerted = true
		s.alerts.Dispatch(notify.Alert{
			Level: notify.Error, Title: "halt",
			Message: fmt.Sprintf("drawdown %.2f%% breached the limit, trading stopped", snap.Drawdown*100),
			Time:    markTime,
		})
	}
	return nil
}

// fetch gets the latest bar for sym, retrying transient provider
// failures up to the configured budget.
func (s *Scheduler) fetch(ctx context.Context, sym string) (market.Bar, error) {
	var lastErr error
	for attempt := 0; attempt <= s.strat.Paper.MaxRetries; attempt++ {
		if attempt > 0 {
			if err := s.sleep(ctx, backoff(attempt-1)); err != nil {
				return market.Bar{}, err
			}
		}
		bar, err := s.data.GetLatest(ctx, sym)
		if err == nil {
			return bar, nil
		}
		lastErr = err
		s.logf("paper %s: %s: fetch attempt %d failed: %v", s.strat.Name, sym, attempt+1, err)
	}
	return market.Bar{}, fmt.Errorf("latest %s: retries exhausted: %w", sym, lastErr)
}

// process runs one new bar through fills, indicators, rules, and risk.
func (s *Scheduler) process(bar market.Bar) error {
	fills, err := s.sim.ApplyBar(bar)
	if err != nil {
		return fmt.Errorf("paper %q: %w", s.strat.Name, err)
	}
	s.announceFills(fills)

	pipe := s.pipes[bar.Symbol]
	pipe.Update(bar)
	lookup := rules.BarLookup(bar, pipe.Value)

	for _, sig := range s.eval.Evaluate(bar, lookup) {
		if err := s.jrnl.RecordSignal(journal.SignalRecord{
			RunID:     s.runID,
			Time:      sig.Time,
			Symbol:    sig.Symbol,
			RuleID:    sig.RuleID,
			Direction: sig.Direction.String(),
			Price:     sig.Price,
			Strength:  sig.Strength,
		}); err != nil {
			return err
		}
		s.alerts.Dispatch(notify.Alert{
			Level: notify.Info,
			Title: "signal",
			Message: fmt.Sprintf("%s: %s %s @ %.4f",
				sig.RuleID, sig.Direction, sig.Symbol, sig.Price),
			Time: sig.Time,
		})

		decision := s.riskEng.Vet(sig, s.sim.View(), pipe.Value)
		switch {
		case decision.Rejected():
			if err := s.jrnl.RecordRejection(decision.Rejection(s.runID, sig)); err != nil {
				return err
			}
		case decision.Order != nil:
			oid, err := s.sim.Submit(decision.Order)
			var halted *portfolio.HaltedStateError
			if errors.As(err, &halted) {
				continue
			}
			if err != nil {
				return err
			}
			s.alerts.Dispatch(notify.Alert{
				Level: notify.Info,
				Title: "order",
				Message: fmt.Sprintf("%s: %s %.4g %s",
					oid, decision.Order.Side, decision.Order.Units, decision.Order.Symbol),
				Time: sig.Time,
			})
		}
	}
	return nil
}

func (s *Scheduler) announceFills(fills []portfolio.Fill) {
	for _, f := range fills {
		s.alerts.Dispatch(notify.Alert{
			Level: notify.Info,
			Title: "fill",
			Message: fmt.Sprintf("%s %s %.4g %s @ %.4f",
				f.Reason, f.Side, f.Units, f.Symbol, f.Price),
			Time: f.Time,
		})
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
