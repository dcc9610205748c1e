package paper

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantdesk/quantdesk/config"
	"github.com/quantdesk/quantdesk/journal"
	"github.com/quantdesk/quantdesk/market"
	"github.com/quantdesk/quantdesk/notify"
)

var t0 = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

// latestProvider serves whatever bar the test last installed per symbol,
// with optional failure injection.
type latestProvider struct {
	mu     sync.Mutex
	latest map[string]market.Bar
	fails  map[string]int // remaining GetLatest failures per symbol
}

func newLatestProvider() *latestProvider {
	return &latestProvider{latest: make(map[string]market.Bar), fails: make(map[string]int)}
}

func (p *latestProvider) set(b market.Bar) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.latest[b.Symbol] = b
}

func (p *latestProvider) GetBars(context.Context, string, time.Time, time.Time) ([]market.Bar, error) {
	return nil, errors.New("not used")
}

func (p *latestProvider) GetLatest(_ context.Context, symbol string) (market.Bar, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fails[symbol] > 0 {
		p.fails[symbol]--
		return market.Bar{}, &market.ProviderError{Symbol: symbol, Op: "latest", Err: errors.New("timeout")}
	}
	b, ok := p.latest[symbol]
	if !ok {
		return market.Bar{}, &market.ProviderError{Symbol: symbol, Op: "latest", Err: errors.New("no data")}
	}
	return b, nil
}

type recorder struct {
	alerts []notify.Alert
}

func (r *recorder) Name() string { return "recorder" }
func (r *recorder) Send(a notify.Alert) error {
	r.alerts = append(r.alerts, a)
	return nil
}

func (r *recorder) titled(title string) []notify.Alert {
	var out []notify.Alert
	for _, a := range r.alerts {
		if a.Title == title {
			out = append(out, a)
		}
	}
	return out
}

func paperStrategy() config.Strategy {
	return config.Strategy{
		Name:     "paper-momo",
		Universe: config.Universe{Symbols: []string{"AAPL"}},
		Rules: config.RulesSpec{Rules: []config.RuleSpec{
			{ID: "breakout", Kind: "threshold_cross", Direction: "enter_long",
				Trigger: "above", Subject: "close", Level: 100},
		}},
		Sizing: config.SizingSpec{Type: "fixed", Units: 10},
		Risk:   config.RiskLimits{MaxDrawdownPct: 0.50},
		Paper:  config.PaperSpec{Interval: "1m", MaxRetries: 2, InitialCash: 10_000},
	}
}

func quiet(s *Scheduler) {
	s.logf = func(string, ...any) {}
	s.sleep = func(context.Context, time.Duration) error { return nil }
}

func barAt(ts time.Time, close float64) market.Bar {
	return market.Bar{
		Symbol: "AAPL", Time: ts,
		Open: close - 1, High: close + 1, Low: close - 2, Close: close, Volume: 100,
	}
}

func TestCycleProcessesNewBarOnce(t *testing.T) {
	prov := newLatestProvider()
	rec := &recorder{}

	s, err := New(paperStrategy(), prov, journal.NewMemory(), notify.NewManager(rec))
	require.NoError(t, err)
	quiet(s)

	prov.set(barAt(t0, 105)) // above the level, signal fires on first sight
	require.NoError(t, s.Cycle(context.Background()))
	eq1 := len(s.Portfolio().EquityCurve())
	require.Equal(t, 1, eq1)

	// the provider still serves the same bar: the cycle is a no-op
	require.NoError(t, s.Cycle(context.Background()))
	assert.Len(t, s.Portfolio().EquityCurve(), 1, "stale bar is not reprocessed")
	assert.Empty(t, rec.titled("fill"), "the order is still pending")

	// a fresh bar fills the pending order at its close
	prov.set(barAt(t0.Add(time.Minute), 106))
	require.NoError(t, s.Cycle(context.Background()))

	fills := rec.titled("fill")
	require.Len(t, fills, 1)
	assert.Contains(t, fills[0].Message, "AAPL")
	assert.Contains(t, fills[0].Message, "106")
	pos, ok := s.Portfolio().Position("AAPL")
	require.True(t, ok)
	assert.Equal(t, 10.0, pos.Units)
}

func TestSignalAndOrderAlerts(t *testing.T) {
	prov := newLatestProvider()
	rec := &recorder{}

	s, err := New(paperStrategy(), prov, journal.NewMemory(), notify.NewManager(rec))
	require.NoError(t, err)
	quiet(s)

	// the signal fires this cycle; its order is pending, not yet filled
	prov.set(barAt(t0, 105))
	require.NoError(t, s.Cycle(context.Background()))

	signals := rec.titled("signal")
	require.Len(t, signals, 1)
	assert.Contains(t, signals[0].Message, "breakout")
	assert.Contains(t, signals[0].Message, "AAPL")

	orders := rec.titled("order")
	require.Len(t, orders, 1)
	assert.Contains(t, orders[0].Message, "ord-000001")
	assert.Contains(t, orders[0].Message, "buy")
	assert.Empty(t, rec.titled("fill"), "nothing has filled yet")

	t.Run("rejected signal still alerts", func(t *testing.T) {
		prov := newLatestProvider()
		rec := &recorder{}

		s, err := New(paperStrategy(), prov, journal.NewMemory(), notify.NewManager(rec))
		require.NoError(t, err)
		quiet(s)

		prov.set(barAt(t0, 105))
		require.NoError(t, s.Cycle(context.Background()))
		prov.set(barAt(t0.Add(time.Minute), 99)) // reset the threshold edge
		require.NoError(t, s.Cycle(context.Background()))
		prov.set(barAt(t0.Add(2*time.Minute), 107)) // re-fires while the position is open
		require.NoError(t, s.Cycle(context.Background()))

		assert.Len(t, rec.titled("signal"), 2, "every signal alerts, vetted or not")
		assert.Len(t, rec.titled("order"), 1, "the second signal was rejected")
	})
}

func TestRetryBackoffAndSkip(t *testing.T) {
	prov := newLatestProvider()
	prov.fails["AAPL"] = 10 // more failures than the retry budget
	rec := &recorder{}

	s, err := New(paperStrategy(), prov, nil, notify.NewManager(rec))
	require.NoError(t, err)
	s.logf = func(string, ...any) {}

	var delays []time.Duration
	s.sleep = func(_ context.Context, d time.Duration) error {
		delays = append(delays, d)
		return nil
	}

	require.NoError(t, s.Cycle(context.Background()), "an exhausted symbol skips the cycle, not the session")
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, delays)
	require.Len(t, rec.titled("data"), 1)
	assert.Empty(t, s.Portfolio().EquityCurve())
}

func TestRetrySucceedsWithinBudget(t *testing.T) {
	prov := newLatestProvider()
	prov.fails["AAPL"] = 1
	prov.set(barAt(t0, 99))

	s, err := New(paperStrategy(), prov, nil, nil)
	require.NoError(t, err)
	quiet(s)

	require.NoError(t, s.Cycle(context.Background()))
	assert.Len(t, s.Portfolio().EquityCurve(), 1)
}

func TestHaltAlertDispatchedOnce(t *testing.T) {
	prov := newLatestProvider()
	rec := &recorder{}

	strat := paperStrategy()
	strat.Risk.MaxDrawdownPct = 0.05
	s, err := New(strat, prov, nil, notify.NewManager(rec))
	require.NoError(t, err)
	quiet(s)

	// buy at 105, then collapse far past the 5% drawdown limit
	prov.set(barAt(t0, 105))
	require.NoError(t, s.Cycle(context.Background()))
	prov.set(barAt(t0.Add(time.Minute), 104))
	require.NoError(t, s.Cycle(context.Background()))
	prov.set(barAt(t0.Add(2*time.Minute), 40))
	require.NoError(t, s.Cycle(context.Background()))
	prov.set(barAt(t0.Add(3*time.Minute), 39))
	require.NoError(t, s.Cycle(context.Background()))

	assert.Len(t, rec.titled("halt"), 1, "the halt alert fires exactly once")
}

func TestRunStopsOnCancel(t *testing.T) {
	prov := newLatestProvider()
	prov.set(barAt(t0, 99))

	s, err := New(paperStrategy(), prov, nil, nil)
	require.NoError(t, err)
	s.logf = func(string, ...any) {}

	cycles := 0
	s.sleep = func(ctx context.Context, d time.Duration) error {
		cycles++
		if cycles >= 3 {
			return context.Canceled
		}
		return nil
	}

	require.NoError(t, s.Run(context.Background()), "cancellation is a clean stop")
	assert.Equal(t, 3, cycles)
}

func TestBackoffSchedule(t *testing.T) {
	assert.Equal(t, time.Second, backoff(0))
	assert.Equal(t, 2*time.Second, backoff(1))
	assert.Equal(t, 32*time.Second, backoff(5))
	assert.Equal(t, 60*time.Second, backoff(6), "capped")
	assert.Equal(t, 60*time.Second, backoff(31))
	assert.Equal(t, time.Second, backoff(-1))
}
