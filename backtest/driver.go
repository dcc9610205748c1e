// Package backtest replays historical bars through a strategy and
// produces a deterministic run report. Two runs over the same data and
// configuration make the same trades in the same order.
package backtest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/quantdesk/quantdesk/config"
	"github.com/quantdesk/quantdesk/indicators"
	"github.com/quantdesk/quantdesk/journal"
	"github.com/quantdesk/quantdesk/market"
	"github.com/quantdesk/quantdesk/pkg/id"
	"github.com/quantdesk/quantdesk/portfolio"
	"github.com/quantdesk/quantdesk/risk"
	"github.com/quantdesk/quantdesk/rules"
)

// Driver wires one strategy to a data provider and a journal and runs
// the replay loop.
type Driver struct {
	strat config.Strategy
	data  market.DataProvider
	jrnl  journal.Journal
}

func New(strat config.Strategy, data market.DataProvider, j journal.Journal) *Driver {
	if j == nil {
		j = journal.Discard{}
	}
	return &Driver{strat: strat, data: data, jrnl: j}
}

// Result is everything a finished run leaves behind.
type Result struct {
	RunID  string
	Start  time.Time
	End    time.Time
	Report Report
	Trades []journal.TradeRecord
	Equity []journal.EquitySnapshot
	Halted bool
}

// Run replays the configured window bar by bar. Each bar is processed in
// a fixed order: pending fills execute first, then indicators update,
// then rules fire, then the risk engine sizes any signals into orders
// for the next bar. Equity is marked once per distinct timestamp.
func (d *Driver) Run(ctx context.Context) (*Result, error) {
	if err := d.strat.Validate(); err != nil {
		return nil, fmt.Errorf("backtest %q: %w", d.strat.Name, err)
	}
	start, end, err := d.strat.Backtest.Window()
	if err != nil {
		return nil, fmt.Errorf("backtest %q: %w", d.strat.Name, err)
	}

	series := make([][]market.Bar, 0, len(d.strat.Universe.Symbols))
	for _, sym := range d.strat.Universe.Symbols {
		bars, err := d.data.GetBars(ctx, sym, start, end)
		if err != nil {
			return nil, fmt.Errorf("backtest %q: load %s: %w", d.strat.Name, sym, err)
		}
		if err := market.ValidateSeries(bars); err != nil {
			return nil, fmt.Errorf("backtest %q: %s: %w", d.strat.Name, sym, err)
		}
		series = append(series, bars)
	}
	stream := market.Merge(series...)
	if len(stream) == 0 {
		return nil, fmt.Errorf("backtest %q: no bars in [%s, %s]",
			d.strat.Name, start.Format("2006-01-02"), end.Format("2006-01-02"))
	}

	pipes := make(map[string]*indicators.Pipeline, len(d.strat.Universe.Symbols))
	for _, sym := range d.strat.Universe.Symbols {
		p, err := indicators.NewPipeline(d.strat.Indicators)
		if err != nil {
			return nil, fmt.Errorf("backtest %q: %w", d.strat.Name, err)
		}
		pipes[sym] = p
	}
	eval, err := rules.NewEvaluator(d.strat.Rules)
	if err != nil {
		return nil, fmt.Errorf("backtest %q: %w", d.strat.Name, err)
	}
	riskEng, err := risk.New(d.strat.Sizing, d.strat.Risk)
	if err != nil {
		return nil, fmt.Errorf("backtest %q: %w", d.strat.Name, err)
	}

	runID := id.New()
	sim := portfolio.New(runID, portfolio.Config{
		InitialCash:       d.strat.Backtest.InitialCash,
		SlippageBps:       d.strat.Backtest.SlippageBps,
		CommissionPerUnit: d.strat.Backtest.CommissionPerUnit,
		MaxDrawdownPct:    d.strat.Risk.MaxDrawdownPct,
		LiquidateOnHalt:   d.strat.Backtest.LiquidateOnHalt,
	}, d.jrnl)

	var markTime time.Time
	for _, bar := range stream {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("backtest %q: %w", d.strat.Name, err)
		}
		if !markTime.IsZero() && bar.Time.After(markTime) {
			if _, _, err := sim.MarkEquity(markTime); err != nil {
				return nil, fmt.Errorf("backtest %q: %w", d.strat.Name, err)
			}
		}
		markTime = bar.Time

		if _, err := sim.ApplyBar(bar); err != nil {
			return nil, fmt.Errorf("backtest %q: %w", d.strat.Name, err)
		}

		pipe := pipes[bar.Symbol]
		pipe.Update(bar)
		if err := d.dispatch(bar, eval, riskEng, sim, pipe, runID); err != nil {
			return nil, fmt.Errorf("backtest %q: %w", d.strat.Name, err)
		}
	}
	if _, _, err := sim.MarkEquity(markTime); err != nil {
		return nil, fmt.Errorf("backtest %q: %w", d.strat.Name, err)
	}

	if d.strat.Backtest.CloseAtEnd {
		if _, err := sim.CloseAll(markTime, "close"); err != nil {
			return nil, fmt.Errorf("backtest %q: %w", d.strat.Name, err)
		}
		if _, _, err := sim.MarkEquity(markTime); err != nil {
			return nil, fmt.Errorf("backtest %q: %w", d.strat.Name, err)
		}
	}
	halted := sim.State() == portfolio.Halted
	if err := sim.Close(); err != nil {
		return nil, fmt.Errorf("backtest %q: %w", d.strat.Name, err)
	}

	report := NewReport(sim.EquityCurve(), sim.ClosedTrades(), PeriodsPerYear(d.strat.Backtest.Frequency))
	report.Halted = halted
	return &Result{
		RunID:  runID,
		Start:  stream[0].Time,
		End:    stream[len(stream)-1].Time,
		Report: report,
		Trades: sim.ClosedTrades(),
		Equity: sim.EquityCurve(),
		Halted: halted,
	}, nil
}

// dispatch evaluates the rules on one bar and routes the resulting
// signals through the risk engine to the simulator.
func (d *Driver) dispatch(bar market.Bar, eval *rules.Evaluator, riskEng *risk.Engine,
	sim *portfolio.Simulator, pipe *indicators.Pipeline, runID string) error {

	lookup := rules.BarLookup(bar, pipe.Value)
	for _, sig := range eval.Evaluate(bar, lookup) {
		if err := d.jrnl.RecordSignal(journal.SignalRecord{
			RunID:     runID,
			Time:      sig.Time,
			Symbol:    sig.Symbol,
			RuleID:    sig.RuleID,
			Direction: sig.Direction.String(),
			Price:     sig.Price,
			Strength:  sig.Strength,
		}); err != nil {
			return err
		}

		decision := riskEng.Vet(sig, sim.View(), pipe.Value)
		switch {
		case decision.Rejected():
			if err := d.jrnl.RecordRejection(decision.Rejection(runID, sig)); err != nil {
				return err
			}
		case decision.Order != nil:
			_, err := sim.Submit(decision.Order)
			var halted *portfolio.HaltedStateError
			if errors.As(err, &halted) {
				// the drawdown halt tripped earlier on this bar's mark;
				// the signal is dropped like any other post-halt entry
				continue
			}
			if err != nil {
				return err
			}
		}
	}
	return nil
}
