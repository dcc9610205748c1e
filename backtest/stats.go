package backtest

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/quantdesk/quantdesk/journal"
)

// PeriodsPerYear maps a bar frequency to the annualization factor used
// for volatility, Sharpe, and Sortino. Daily bars use the 252
// trading-day convention; hourly bars assume a 6.5-hour equity session.
// Round-the-clock markets need "24H" since the factor scales the ratios
// by its square root.
func PeriodsPerYear(frequency string) float64 {
	switch strings.ToUpper(frequency) {
	case "1H":
		return 252 * 6.5
	case "24H":
		return 365 * 24
	case "1W":
		return 52
	default: // 1D
		return 252
	}
}

// Report summarizes one finished run.
type Report struct {
	InitialEquity float64
	FinalEquity   float64
	TotalReturn   float64
	CAGR          float64
	Volatility    float64 // annualized std dev of periodic returns
	Sharpe        float64
	Sortino       float64
	MaxDrawdown   float64 // fraction of peak, positive number
	Calmar        float64
	Trades        int
	Wins          int
	Losses        int
	HitRate       float64
	ProfitFactor  float64
	Expectancy    float64 // mean realized P&L per trade
	AvgWin        float64
	AvgLoss       float64 // positive number
	AvgHolding    time.Duration
	Turnover      float64 // traded notional over average equity
	AvgExposure   float64 // mean gross exposure as a fraction of equity
	Monthly       map[string]float64
	Halted        bool
}

// NewReport computes run statistics from the equity curve and the closed
// trades. The curve must be in time order; an empty curve yields a zero
// report.
func NewReport(curve []journal.EquitySnapshot, trades []journal.TradeRecord, periodsPerYear float64) Report {
	var r Report
	if len(curve) == 0 {
		return r
	}
	r.InitialEquity = curve[0].Equity
	r.FinalEquity = curve[len(curve)-1].Equity
	if r.InitialEquity > 0 {
		r.TotalReturn = r.FinalEquity/r.InitialEquity - 1
	}
	r.CAGR = cagr(curve)
	r.MaxDrawdown = maxDrawdown(curve)
	if r.MaxDrawdown > 0 {
		r.Calmar = r.CAGR / r.MaxDrawdown
	}

	rets := periodicReturns(curve)
	r.Volatility = stdDev(rets) * math.Sqrt(periodsPerYear)
	r.Sharpe = annualized(rets, periodsPerYear, false)
	r.Sortino = annualized(rets, periodsPerYear, true)
	r.Monthly = monthlyReturns(curve)

	var avgEquity, expSum float64
	for _, p := range curve {
		avgEquity += p.Equity
		if p.Equity > 0 {
			expSum += p.Exposure / p.Equity
		}
	}
	avgEquity /= float64(len(curve))
	r.AvgExposure = expSum / float64(len(curve))

	r.Trades = len(trades)
	var grossWin, grossLoss, total, notional float64
	var held time.Duration
	for _, t := range trades {
		total += t.RealizedPL
		notional += math.Abs(t.Units) * (t.EntryPrice + t.ExitPrice)
		held += t.CloseTime.Sub(t.OpenTime)
		switch {
		case t.RealizedPL > 0:
			r.Wins++
			grossWin += t.RealizedPL
		case t.RealizedPL < 0:
			r.Losses++
			grossLoss += -t.RealizedPL
		}
	}
	if r.Trades > 0 {
		r.HitRate = float64(r.Wins) / float64(r.Trades)
		r.Expectancy = total / float64(r.Trades)
		r.AvgHolding = held / time.Duration(r.Trades)
		if avgEquity > 0 {
			r.Turnover = notional / avgEquity
		}
	}
	if r.Wins > 0 {
		r.AvgWin = grossWin / float64(r.Wins)
	}
	if r.Losses > 0 {
		r.AvgLoss = grossLoss / float64(r.Losses)
	}
	if grossLoss > 0 {
		r.ProfitFactor = grossWin / grossLoss
	} else if grossWin > 0 {
		r.ProfitFactor = math.Inf(1)
	}
	return r
}

func periodicReturns(curve []journal.EquitySnapshot) []float64 {
	rets := make([]float64, 0, len(curve)-1)
	for i := 1; i < len(curve); i++ {
		prev := curve[i-1].Equity
		if prev <= 0 {
			continue
		}
		rets = append(rets, curve[i].Equity/prev-1)
	}
	return rets
}

// cagr annualizes the total return over the curve's elapsed wall time.
func cagr(curve []journal.EquitySnapshot) float64 {
	first, last := curve[0], curve[len(curve)-1]
	if first.Equity <= 0 || last.Equity <= 0 {
		return 0
	}
	years := last.Time.Sub(first.Time).Hours() / (24 * 365.25)
	if years <= 0 {
		return 0
	}
	return math.Pow(last.Equity/first.Equity, 1/years) - 1
}

func maxDrawdown(curve []journal.EquitySnapshot) float64 {
	var peak, worst float64
	for _, p := range curve {
		if p.Equity > peak {
			peak = p.Equity
		}
		if peak > 0 {
			if dd := (peak - p.Equity) / peak; dd > worst {
				worst = dd
			}
		}
	}
	return worst
}

func stdDev(rets []float64) float64 {
	if len(rets) < 2 {
		return 0
	}
	var sum float64
	for _, r := range rets {
		sum += r
	}
	mean := sum / float64(len(rets))
	var variance float64
	for _, r := range rets {
		d := r - mean
		variance += d * d
	}
	return math.Sqrt(variance / float64(len(rets)))
}

// annualized computes the Sharpe ratio over rets, or Sortino when
// downside is set, with a zero risk-free rate.
func annualized(rets []float64, periodsPerYear float64, downside bool) float64 {
	if len(rets) < 2 {
		return 0
	}
	var sum float64
	for _, r := range rets {
		sum += r
	}
	mean := sum / float64(len(rets))

	var variance float64
	n := 0
	for _, r := range rets {
		if downside {
			if r >= 0 {
				continue
			}
			variance += r * r
			n++
		} else {
			d := r - mean
			variance += d * d
			n++
		}
	}
	if n == 0 {
		return 0
	}
	std := math.Sqrt(variance / float64(n))
	if std == 0 {
		return 0
	}
	return mean / std * math.Sqrt(periodsPerYear)
}

// monthlyReturns keys calendar months as "2006-01" and reports the
// equity change across each month's snapshots.
func monthlyReturns(curve []journal.EquitySnapshot) map[string]float64 {
	first := make(map[string]float64)
	last := make(map[string]float64)
	var order []string
	for _, p := range curve {
		key := p.Time.Format("2006-01")
		if _, ok := first[key]; !ok {
			first[key] = p.Equity
			order = append(order, key)
		}
		last[key] = p.Equity
	}
	out := make(map[string]float64, len(order))
	prev := 0.0
	for i, key := range order {
		base := first[key]
		if i > 0 {
			base = prev // month-over-month, so gaps between snapshots count
		}
		if base > 0 {
			out[key] = last[key]/base - 1
		}
		prev = last[key]
	}
	return out
}

// String renders the report the way the CLI prints it.
func (r Report) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "equity        %12.2f -> %.2f (%+.2f%%)\n", r.InitialEquity, r.FinalEquity, r.TotalReturn*100)
	fmt.Fprintf(&b, "cagr          %12.2f%%\n", r.CAGR*100)
	fmt.Fprintf(&b, "volatility    %12.2f%%\n", r.Volatility*100)
	fmt.Fprintf(&b, "sharpe        %12.2f\n", r.Sharpe)
	fmt.Fprintf(&b, "sortino       %12.2f\n", r.Sortino)
	fmt.Fprintf(&b, "max drawdown  %12.2f%%\n", r.MaxDrawdown*100)
	fmt.Fprintf(&b, "calmar        %12.2f\n", r.Calmar)
	fmt.Fprintf(&b, "trades        %12d (%d wins, %d losses, hit rate %.1f%%)\n", r.Trades, r.Wins, r.Losses, r.HitRate*100)
	fmt.Fprintf(&b, "profit factor %12.2f\n", r.ProfitFactor)
	fmt.Fprintf(&b, "expectancy    %12.2f (avg win %.2f, avg loss %.2f)\n", r.Expectancy, r.AvgWin, r.AvgLoss)
	if r.Trades > 0 {
		fmt.Fprintf(&b, "avg holding   %12s\n", r.AvgHolding)
	}
	fmt.Fprintf(&b, "turnover      %12.2f\n", r.Turnover)
	fmt.Fprintf(&b, "avg exposure  %12.2f%%\n", r.AvgExposure*100)
	if r.Halted {
		b.WriteString("run halted by the drawdown limit\n")
	}
	if len(r.Monthly) > 0 {
		keys := make([]string, 0, len(r.Monthly))
		for k := range r.Monthly {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		b.WriteString("monthly returns:\n")
		for _, k := range keys {
			fmt.Fprintf(&b, "  %s  %+.2f%%\n", k, r.Monthly[k]*100)
		}
	}
	return b.String()
}
