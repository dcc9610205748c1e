package journal

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleTrade() TradeRecord {
	return TradeRecord{
		TradeID:    "trd-000001",
		RunID:      "run-1",
		Symbol:     "AAPL",
		Units:      10,
		EntryPrice: 100,
		ExitPrice:  110,
		OpenTime:   time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC),
		CloseTime:  time.Date(2025, 1, 9, 0, 0, 0, 0, time.UTC),
		RealizedPL: 100,
		Fees:       2,
		Reason:     "death-cross",
	}
}

func TestSQLiteRoundTrip(t *testing.T) {
	j, err := NewSQLite(filepath.Join(t.TempDir(), "run.sqlite"))
	require.NoError(t, err)
	defer j.Close()

	require.NoError(t, j.RecordTrade(sampleTrade()))
	require.NoError(t, j.RecordFill(FillRecord{
		OrderID: "ord-000001", RunID: "run-1", Symbol: "AAPL",
		Units: 10, Price: 100, Time: time.Now().UTC(),
	}))
	require.NoError(t, j.RecordEquity(EquitySnapshot{
		RunID: "run-1", Time: time.Now().UTC(), Cash: 99_000, Equity: 100_100,
	}))
	require.NoError(t, j.RecordSignal(SignalRecord{
		RunID: "run-1", Time: time.Now().UTC(), Symbol: "AAPL",
		RuleID: "golden-cross", Direction: "enter_long", Price: 100,
	}))
	require.NoError(t, j.RecordRejection(RejectionRecord{
		RunID: "run-1", Time: time.Now().UTC(), Symbol: "AAPL",
		RuleID: "golden-cross", Reason: "exposure at limit",
	}))

	trades, err := j.ListTrades("run-1")
	require.NoError(t, err)
	require.Len(t, trades, 1)
	assert.Equal(t, "AAPL", trades[0].Symbol)
	assert.Equal(t, 100.0, trades[0].RealizedPL)
	assert.Equal(t, "death-cross", trades[0].Reason)

	eq, err := j.ListEquity("run-1")
	require.NoError(t, err)
	require.Len(t, eq, 1)
	assert.Equal(t, 100_100.0, eq[0].Equity)

	// Unknown run is empty, not an error.
	none, err := j.ListTrades("run-2")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestCSVJournalWritesRows(t *testing.T) {
	dir := t.TempDir()
	tradesPath := filepath.Join(dir, "trades.csv")
	equityPath := filepath.Join(dir, "equity.csv")

	j, err := NewCSV(tradesPath, equityPath)
	require.NoError(t, err)

	require.NoError(t, j.RecordTrade(sampleTrade()))
	require.NoError(t, j.RecordEquity(EquitySnapshot{
		RunID: "run-1", Time: time.Date(2025, 1, 9, 0, 0, 0, 0, time.UTC),
		Cash: 99_000, Equity: 100_100, Drawdown: 0.01,
	}))
	require.NoError(t, j.Close())

	trades, err := os.ReadFile(tradesPath)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(trades)), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[1], "AAPL")
	assert.Contains(t, lines[1], "death-cross")

	equity, err := os.ReadFile(equityPath)
	require.NoError(t, err)
	assert.Contains(t, string(equity), "100100")
}

func TestMemoryJournal(t *testing.T) {
	m := NewMemory()
	require.NoError(t, m.RecordTrade(sampleTrade()))
	require.NoError(t, m.RecordRejection(RejectionRecord{Reason: "halted"}))

	assert.Len(t, m.Trades, 1)
	assert.Len(t, m.Rejections, 1)
	assert.NoError(t, m.Close())
}
