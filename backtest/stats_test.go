package backtest

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantdesk/quantdesk/journal"
)

func curveOf(start time.Time, equities ...float64) []journal.EquitySnapshot {
	out := make([]journal.EquitySnapshot, len(equities))
	for i, eq := range equities {
		out[i] = journal.EquitySnapshot{
			Time:   start.Add(time.Duration(i) * 24 * time.Hour),
			Equity: eq,
		}
	}
	return out
}

func TestReportBasics(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	curve := curveOf(start, 10_000, 10_100, 9_900, 10_400)
	trades := []journal.TradeRecord{
		{RealizedPL: 300},
		{RealizedPL: -100},
		{RealizedPL: 200},
	}

	r := NewReport(curve, trades, 252)
	assert.Equal(t, 10_000.0, r.InitialEquity)
	assert.Equal(t, 10_400.0, r.FinalEquity)
	assert.InDelta(t, 0.04, r.TotalReturn, 1e-9)
	assert.Equal(t, 3, r.Trades)
	assert.Equal(t, 2, r.Wins)
	assert.Equal(t, 1, r.Losses)
	assert.InDelta(t, 2.0/3.0, r.HitRate, 1e-9)
	assert.InDelta(t, 5.0, r.ProfitFactor, 1e-9) // 500 won / 100 lost
	assert.InDelta(t, 400.0/3.0, r.Expectancy, 1e-9)
	assert.InDelta(t, 250.0, r.AvgWin, 1e-9)
	assert.InDelta(t, 100.0, r.AvgLoss, 1e-9)
	assert.Greater(t, r.Sharpe, 0.0)
	assert.Greater(t, r.Volatility, 0.0)
}

func TestTurnoverAndHolding(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	curve := curveOf(start, 10_000, 10_000, 10_000, 10_000)
	trades := []journal.TradeRecord{
		{Units: 10, EntryPrice: 100, ExitPrice: 110,
			OpenTime: start, CloseTime: start.Add(48 * time.Hour)},
		{Units: -5, EntryPrice: 200, ExitPrice: 190,
			OpenTime: start, CloseTime: start.Add(24 * time.Hour)},
	}
	r := NewReport(curve, trades, 252)
	// (10*210 + 5*390) / 10000
	assert.InDelta(t, 4050.0/10_000, r.Turnover, 1e-9)
	assert.Equal(t, 36*time.Hour, r.AvgHolding)
}

func TestAvgExposure(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	curve := []journal.EquitySnapshot{
		{Time: start, Equity: 10_000, Exposure: 0},
		{Time: start.Add(24 * time.Hour), Equity: 10_000, Exposure: 5_000},
	}
	r := NewReport(curve, nil, 252)
	assert.InDelta(t, 0.25, r.AvgExposure, 1e-9)
}

func TestMaxDrawdown(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	// peak 12000, trough 9000: 25% drawdown despite the recovery
	curve := curveOf(start, 10_000, 12_000, 9_000, 11_000)
	r := NewReport(curve, nil, 252)
	assert.InDelta(t, 0.25, r.MaxDrawdown, 1e-9)
}

func TestCAGRUsesElapsedTime(t *testing.T) {
	start := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	curve := []journal.EquitySnapshot{
		{Time: start, Equity: 10_000},
		{Time: start.AddDate(2, 0, 0), Equity: 14_400},
	}
	r := NewReport(curve, nil, 252)
	// 44% over two years is 20% a year
	assert.InDelta(t, 0.20, r.CAGR, 1e-3)
}

func TestSortinoIgnoresUpside(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	// alternating gains with one loss: downside deviation comes from the
	// single losing period only
	steady := curveOf(start, 10_000, 10_100, 10_200, 10_150, 10_300)
	r := NewReport(steady, nil, 252)
	assert.Greater(t, r.Sortino, r.Sharpe)
}

func TestProfitFactorWithNoLosses(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	r := NewReport(curveOf(start, 10_000, 10_100), []journal.TradeRecord{{RealizedPL: 100}}, 252)
	assert.True(t, math.IsInf(r.ProfitFactor, 1))
}

func TestMonthlyReturns(t *testing.T) {
	jan := time.Date(2024, 1, 30, 0, 0, 0, 0, time.UTC)
	curve := []journal.EquitySnapshot{
		{Time: jan, Equity: 10_000},
		{Time: jan.Add(24 * time.Hour), Equity: 10_200},
		{Time: jan.Add(48 * time.Hour), Equity: 10_100}, // feb 1
		{Time: jan.Add(72 * time.Hour), Equity: 10_504},
	}
	r := NewReport(curve, nil, 252)
	require.Len(t, r.Monthly, 2)
	assert.InDelta(t, 0.02, r.Monthly["2024-01"], 1e-9)
	// feb measured from january's close: 10504/10200 - 1
	assert.InDelta(t, 10_504.0/10_200.0-1, r.Monthly["2024-02"], 1e-9)
}

func TestEmptyCurve(t *testing.T) {
	r := NewReport(nil, nil, 252)
	assert.Zero(t, r.FinalEquity)
	assert.Zero(t, r.Trades)
}

func TestPeriodsPerYear(t *testing.T) {
	assert.Equal(t, 252.0, PeriodsPerYear("1D"))
	assert.Equal(t, 252.0*6.5, PeriodsPerYear("1h"), "hourly assumes the equity session")
	assert.Equal(t, 365.0*24, PeriodsPerYear("24h"), "round-the-clock hourly")
	assert.Equal(t, 52.0, PeriodsPerYear("1W"))
	assert.Equal(t, 252.0, PeriodsPerYear(""))
}
