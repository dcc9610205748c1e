package journal

import (
	"encoding/csv"
	"os"
	"strconv"
	"time"
)

// CSVJournal writes trades and the equity curve as flat CSV files, handy for
// spreadsheet review. Fills, signals, and rejections are kept only by the
// richer backends.
type CSVJournal struct {
	trades *csv.Writer
	equity *csv.Writer
	tf, ef *os.File
}

func NewCSV(tradesPath, equityPath string) (*CSVJournal, error) {
	tf, err := os.Create(tradesPath)
	if err != nil {
		return nil, err
	}
	ef, err := os.Create(equityPath)
	if err != nil {
		tf.Close()
		return nil, err
	}

	tw := csv.NewWriter(tf)
	ew := csv.NewWriter(ef)

	if err := tw.Write([]string{"trade_id", "run_id", "symbol", "units", "entry_price", "exit_price", "open_time", "close_time", "realized_pl", "fees", "reason"}); err != nil {
		return nil, err
	}
	if err := ew.Write([]string{"run_id", "time", "cash", "equity", "exposure", "drawdown"}); err != nil {
		return nil, err
	}

	tw.Flush()
	if err := tw.Error(); err != nil {
		return nil, err
	}
	ew.Flush()
	if err := ew.Error(); err != nil {
		return nil, err
	}

	return &CSVJournal{trades: tw, equity: ew, tf: tf, ef: ef}, nil
}

func (j *CSVJournal) RecordTrade(t TradeRecord) error {
	if err := j.trades.Write([]string{
		t.TradeID,
		t.RunID,
		t.Symbol,
		f(t.Units),
		f(t.EntryPrice),
		f(t.ExitPrice),
		t.OpenTime.Format(time.RFC3339),
		t.CloseTime.Format(time.RFC3339),
		f(t.RealizedPL),
		f(t.Fees),
		t.Reason,
	}); err != nil {
		return err
	}
	j.trades.Flush()
	return j.trades.Error()
}

func (j *CSVJournal) RecordEquity(e EquitySnapshot) error {
	if err := j.equity.Write([]string{
		e.RunID,
		e.Time.Format(time.RFC3339),
		f(e.Cash),
		f(e.Equity),
		f(e.Exposure),
		f(e.Drawdown),
	}); err != nil {
		return err
	}
	j.equity.Flush()
	return j.equity.Error()
}

func (j *CSVJournal) RecordFill(FillRecord) error           { return nil }
func (j *CSVJournal) RecordSignal(SignalRecord) error       { return nil }
func (j *CSVJournal) RecordRejection(RejectionRecord) error { return nil }

func (j *CSVJournal) Close() error {
	j.trades.Flush()
	if err := j.trades.Error(); err != nil {
		return err
	}
	j.equity.Flush()
	if err := j.equity.Error(); err != nil {
		return err
	}
	if err := j.tf.Close(); err != nil {
		return err
	}
	return j.ef.Close()
}

func f(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
