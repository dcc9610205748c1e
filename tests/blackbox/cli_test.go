//go:build blackbox

package blackbox

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const strategyYAML = `name: sma-cross
universe:
  symbols: [AAPL]
indicators:
  - {name: fast, kind: sma, window: 2}
  - {name: slow, kind: sma, window: 3}
rules:
  rules:
    - {id: golden-cross, kind: crossover, direction: enter_long, trigger: above, subject: fast, reference: slow}
    - {id: death-cross, kind: crossover, direction: exit, trigger: below, subject: fast, reference: slow}
sizing:
  type: fixed
  units: 10
risk:
  max_drawdown_pct: 0.9
backtest:
  start: "2024-01-01"
  end: "2024-01-10"
  frequency: 1D
  initial_cash: 10000
  close_at_end: true
`

// writeDataset writes five daily bars where the fast average crosses up
// on day three and back down on day five.
func writeDataset(t *testing.T, dir string) {
	t.Helper()
	opens := []float64{100, 100.5, 101.5, 102.5, 101}
	closes := []float64{100, 101, 103, 102, 99}

	var b strings.Builder
	b.WriteString("time,open,high,low,close,volume\n")
	for i := range opens {
		fmt.Fprintf(&b, "2024-01-%02d,%g,%g,%g,%g,1000\n",
			i+1, opens[i], closes[i]+2, opens[i]-2, closes[i])
	}
	if err := os.WriteFile(filepath.Join(dir, "AAPL.csv"), []byte(b.String()), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestBacktestEndToEnd(t *testing.T) {
	dir := t.TempDir()
	cfg := filepath.Join(dir, "strategy.yaml")
	if err := os.WriteFile(cfg, []byte(strategyYAML), 0o644); err != nil {
		t.Fatal(err)
	}
	writeDataset(t, dir)
	db := filepath.Join(dir, "run.db")

	out := run(t, "backtest", "--config", cfg, "--data", dir, "--journal", db)
	if !strings.Contains(out, "1 trades") {
		t.Fatalf("expected one trade in the report, got:\n%s", out)
	}
	if !strings.Contains(out, "sma-cross") {
		t.Fatalf("expected the strategy name, got:\n%s", out)
	}

	runs := strings.Fields(run(t, "journal", "runs", "--db", db))
	if len(runs) != 1 {
		t.Fatalf("expected one recorded run, got %v", runs)
	}

	trades := run(t, "journal", "trades", runs[0], "--db", db)
	if !strings.Contains(trades, "trd-000001") || !strings.Contains(trades, "AAPL") {
		t.Fatalf("unexpected trades listing:\n%s", trades)
	}

	report := run(t, "journal", "report", runs[0], "--db", db)
	if !strings.Contains(report, "max drawdown") {
		t.Fatalf("unexpected report:\n%s", report)
	}
}

func TestConfigInitValidate(t *testing.T) {
	dir := t.TempDir()
	cfg := filepath.Join(dir, "strategy.yaml")

	run(t, "config", "init", "--output", cfg)
	out := run(t, "config", "validate", "--file", cfg)
	if !strings.Contains(out, "ok") {
		t.Fatalf("expected validation to pass, got:\n%s", out)
	}
}

func TestDataCheck(t *testing.T) {
	dir := t.TempDir()
	writeDataset(t, dir)

	out := run(t, "data", "check", "AAPL", "--data", dir)
	if !strings.Contains(out, "5 bars") {
		t.Fatalf("expected a 5 bar series, got:\n%s", out)
	}

	out = runExpectingError(t, "data", "check", "MSFT", "--data", dir)
	if !strings.Contains(out, "MSFT") {
		t.Fatalf("expected the missing symbol in the error, got:\n%s", out)
	}
}

func TestVersion(t *testing.T) {
	out := run(t, "version")
	if !strings.Contains(out, "quantdesk version") {
		t.Fatalf("unexpected version output:\n%s", out)
	}
}
