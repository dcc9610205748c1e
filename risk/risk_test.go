package risk

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantdesk/quantdesk/config"
	"github.com/quantdesk/quantdesk/portfolio"
	"github.com/quantdesk/quantdesk/rules"
)

var sigTime = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

func longSignal(price float64) rules.SignalEvent {
	return rules.SignalEvent{
		Symbol:    "AAPL",
		Time:      sigTime,
		Direction: rules.EnterLong,
		RuleID:    "golden-cross",
		Price:     price,
	}
}

func flatView(equity float64) portfolio.View {
	return portfolio.View{
		Cash:   equity,
		Equity: equity,
		Units:  map[string]float64{},
	}
}

func noIndicators(string) (float64, bool) { return 0, false }

func TestNewSizerValidation(t *testing.T) {
	cases := []config.SizingSpec{
		{Type: "kelly"},
		{Type: "fixed", Units: 0},
		{Type: "fraction", Fraction: 1.5},
		{Type: "vol_target", RiskPerTrade: 0.01},
	}
	for _, spec := range cases {
		_, err := NewSizer(spec)
		require.Error(t, err, "%+v", spec)
		var cfgErr *config.ConfigurationError
		assert.True(t, errors.As(err, &cfgErr))
	}
}

func TestFixedSizing(t *testing.T) {
	eng, err := New(config.SizingSpec{Type: "fixed", Units: 25}, config.RiskLimits{})
	require.NoError(t, err)

	d := eng.Vet(longSignal(100), flatView(100_000), noIndicators)
	require.NotNil(t, d.Order)
	assert.Equal(t, 25.0, d.Order.Units)
	assert.Equal(t, portfolio.Buy, d.Order.Side)
	assert.Equal(t, "golden-cross", d.Order.SignalID)
}

func TestFractionSizing(t *testing.T) {
	eng, err := New(config.SizingSpec{Type: "fraction", Fraction: 0.10}, config.RiskLimits{})
	require.NoError(t, err)

	d := eng.Vet(longSignal(50), flatView(100_000), noIndicators)
	require.NotNil(t, d.Order)
	assert.InDelta(t, 0.10*100_000/50, d.Order.Units, 1e-9)
}

func TestVolTargetSizing(t *testing.T) {
	eng, err := New(config.SizingSpec{
		Type: "vol_target", RiskPerTrade: 0.01, ATRIndicator: "atr14", ATRMultiple: 2,
	}, config.RiskLimits{})
	require.NoError(t, err)

	ind := func(name string) (float64, bool) {
		if name == "atr14" {
			return 2.5, true
		}
		return 0, false
	}
	d := eng.Vet(longSignal(100), flatView(100_000), ind)
	require.NotNil(t, d.Order)
	// equity * risk / (atr * multiple) = 100000 * 0.01 / 5
	assert.InDelta(t, 200.0, d.Order.Units, 1e-9)

	t.Run("missing atr sizes to nothing", func(t *testing.T) {
		d := eng.Vet(longSignal(100), flatView(100_000), noIndicators)
		assert.Nil(t, d.Order)
		assert.False(t, d.Rejected())
	})
}

func TestPositionCapClipsSize(t *testing.T) {
	eng, err := New(config.SizingSpec{Type: "fixed", Units: 1000},
		config.RiskLimits{MaxPositionPct: 0.20})
	require.NoError(t, err)

	d := eng.Vet(longSignal(100), flatView(100_000), noIndicators)
	require.NotNil(t, d.Order)
	assert.InDelta(t, 200.0, d.Order.Units, 1e-9, "clipped to 20% of equity")
}

func TestExposureLimit(t *testing.T) {
	eng, err := New(config.SizingSpec{Type: "fixed", Units: 100},
		config.RiskLimits{MaxGrossExposure: 1.0})
	require.NoError(t, err)

	t.Run("at the ceiling entries are rejected", func(t *testing.T) {
		v := flatView(100_000)
		v.GrossExposure = 100_000
		d := eng.Vet(longSignal(100), v, noIndicators)
		require.True(t, d.Rejected())
		assert.Equal(t, CodeExposureLimit, d.Code)
		rec := d.Rejection("run-1", longSignal(100))
		assert.Equal(t, "golden-cross", rec.RuleID)
		assert.Contains(t, rec.Reason, CodeExposureLimit)
	})

	t.Run("headroom clips the size", func(t *testing.T) {
		v := flatView(100_000)
		v.GrossExposure = 95_000
		d := eng.Vet(longSignal(100), v, noIndicators)
		require.NotNil(t, d.Order)
		assert.InDelta(t, 50.0, d.Order.Units, 1e-9)
	})
}

func TestEntryOnlyWhenFlat(t *testing.T) {
	eng, err := New(config.SizingSpec{Type: "fixed", Units: 10}, config.RiskLimits{})
	require.NoError(t, err)

	v := flatView(100_000)
	v.Units["AAPL"] = 50
	v.OpenPositions = 1

	d := eng.Vet(longSignal(100), v, noIndicators)
	require.True(t, d.Rejected())
	assert.Equal(t, CodePositionOpen, d.Code)
}

func TestMaxPositions(t *testing.T) {
	eng, err := New(config.SizingSpec{Type: "fixed", Units: 10},
		config.RiskLimits{MaxPositions: 2})
	require.NoError(t, err)

	v := flatView(100_000)
	v.OpenPositions = 2
	d := eng.Vet(longSignal(100), v, noIndicators)
	require.True(t, d.Rejected())
	assert.Equal(t, CodeMaxPositions, d.Code)
}

func TestExitsBypassLimits(t *testing.T) {
	eng, err := New(config.SizingSpec{Type: "fixed", Units: 10},
		config.RiskLimits{MaxPositions: 1, MaxGrossExposure: 0.5})
	require.NoError(t, err)

	v := flatView(100_000)
	v.Units["AAPL"] = -80
	v.OpenPositions = 3
	v.GrossExposure = 200_000

	sig := longSignal(100)
	sig.Direction = rules.Exit
	d := eng.Vet(sig, v, noIndicators)
	require.NotNil(t, d.Order, "exits are never rejected")
	assert.Equal(t, portfolio.Buy, d.Order.Side, "covering a short buys")
	assert.Equal(t, 80.0, d.Order.Units)
}

func TestExitWhenFlatIsSilent(t *testing.T) {
	eng, err := New(config.SizingSpec{Type: "fixed", Units: 10}, config.RiskLimits{})
	require.NoError(t, err)

	sig := longSignal(100)
	sig.Direction = rules.Exit
	d := eng.Vet(sig, flatView(100_000), noIndicators)
	assert.Nil(t, d.Order)
	assert.False(t, d.Rejected())
}

func TestProtectiveStopPlacement(t *testing.T) {
	eng, err := New(config.SizingSpec{Type: "fixed", Units: 10},
		config.RiskLimits{StopLossPct: 0.05})
	require.NoError(t, err)

	d := eng.Vet(longSignal(100), flatView(100_000), noIndicators)
	require.NotNil(t, d.Order)
	assert.InDelta(t, 95.0, d.Order.Stop, 1e-9)

	short := longSignal(100)
	short.Direction = rules.EnterShort
	d = eng.Vet(short, flatView(100_000), noIndicators)
	require.NotNil(t, d.Order)
	assert.InDelta(t, 105.0, d.Order.Stop, 1e-9)
	assert.Equal(t, portfolio.Sell, d.Order.Side)
}

func TestATRStopPlacement(t *testing.T) {
	eng, err := New(config.SizingSpec{Type: "fixed", Units: 10},
		config.RiskLimits{StopLossPct: 0.05, StopATRIndicator: "atr14", StopATRMultiple: 3})
	require.NoError(t, err)

	ind := func(name string) (float64, bool) {
		if name == "atr14" {
			return 2.0, true
		}
		return 0, false
	}
	d := eng.Vet(longSignal(100), flatView(100_000), ind)
	require.NotNil(t, d.Order)
	assert.InDelta(t, 94.0, d.Order.Stop, 1e-9, "3 ATRs of 2.0 below entry")
	assert.Zero(t, d.Order.Trail)

	t.Run("falls back to percent stop before warmup", func(t *testing.T) {
		d := eng.Vet(longSignal(100), flatView(100_000), noIndicators)
		require.NotNil(t, d.Order)
		assert.InDelta(t, 95.0, d.Order.Stop, 1e-9)
	})
}

func TestTrailingStopDistance(t *testing.T) {
	eng, err := New(config.SizingSpec{Type: "fixed", Units: 10},
		config.RiskLimits{StopLossPct: 0.05, TrailingStop: true})
	require.NoError(t, err)

	d := eng.Vet(longSignal(100), flatView(100_000), noIndicators)
	require.NotNil(t, d.Order)
	assert.InDelta(t, 95.0, d.Order.Stop, 1e-9)
	assert.InDelta(t, 5.0, d.Order.Trail, 1e-9)
}

func TestCashClipOnLongs(t *testing.T) {
	eng, err := New(config.SizingSpec{Type: "fixed", Units: 1000}, config.RiskLimits{})
	require.NoError(t, err)

	v := portfolio.View{Cash: 5_000, Equity: 100_000, Units: map[string]float64{}}
	d := eng.Vet(longSignal(100), v, noIndicators)
	require.NotNil(t, d.Order)
	assert.InDelta(t, 50.0, d.Order.Units, 1e-9, "longs cannot spend more than cash")
}
