package journal

import (
	"database/sql"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// SQLite persists the audit trail to a SQLite database, the default journal
// for backtest runs.
type SQLite struct {
	db *sql.DB
}

func NewSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, err
	}
	return &SQLite{db: db}, nil
}

func (j *SQLite) RecordTrade(t TradeRecord) error {
	_, err := j.db.Exec(`
		INSERT INTO trades
		(trade_id, run_id, symbol, units, entry_price, exit_price, open_time, close_time, realized_pl, fees, reason)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.TradeID, t.RunID, t.Symbol, t.Units, t.EntryPrice, t.ExitPrice,
		t.OpenTime, t.CloseTime, t.RealizedPL, t.Fees, t.Reason,
	)
	return err
}

func (j *SQLite) RecordFill(f FillRecord) error {
	_, err := j.db.Exec(`
		INSERT INTO fills (order_id, run_id, symbol, units, price, fees, time)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		f.OrderID, f.RunID, f.Symbol, f.Units, f.Price, f.Fees, f.Time,
	)
	return err
}

func (j *SQLite) RecordEquity(e EquitySnapshot) error {
	_, err := j.db.Exec(`
		INSERT INTO equity (run_id, time, cash, equity, exposure, drawdown)
		VALUES (?, ?, ?, ?, ?, ?)`,
		e.RunID, e.Time, e.Cash, e.Equity, e.Exposure, e.Drawdown,
	)
	return err
}

func (j *SQLite) RecordSignal(s SignalRecord) error {
	_, err := j.db.Exec(`
		INSERT INTO signals (run_id, time, symbol, rule_id, direction, price, strength)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		s.RunID, s.Time, s.Symbol, s.RuleID, s.Direction, s.Price, s.Strength,
	)
	return err
}

func (j *SQLite) RecordRejection(r RejectionRecord) error {
	_, err := j.db.Exec(`
		INSERT INTO rejections (run_id, time, symbol, rule_id, reason)
		VALUES (?, ?, ?, ?, ?)`,
		r.RunID, r.Time, r.Symbol, r.RuleID, r.Reason,
	)
	return err
}

// ListTrades returns the trades of a run ordered by close time.
func (j *SQLite) ListTrades(runID string) ([]TradeRecord, error) {
	rows, err := j.db.Query(`
		SELECT trade_id, run_id, symbol, units, entry_price, exit_price,
		       open_time, close_time, realized_pl, fees, reason
		FROM trades WHERE run_id = ? ORDER BY close_time`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []TradeRecord
	for rows.Next() {
		var t TradeRecord
		if err := rows.Scan(&t.TradeID, &t.RunID, &t.Symbol, &t.Units,
			&t.EntryPrice, &t.ExitPrice, &t.OpenTime, &t.CloseTime,
			&t.RealizedPL, &t.Fees, &t.Reason); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// ListEquity returns a run's equity curve in time order.
func (j *SQLite) ListEquity(runID string) ([]EquitySnapshot, error) {
	rows, err := j.db.Query(`
		SELECT run_id, time, cash, equity, exposure, drawdown
		FROM equity WHERE run_id = ? ORDER BY time`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []EquitySnapshot
	for rows.Next() {
		var e EquitySnapshot
		var ts time.Time
		if err := rows.Scan(&e.RunID, &ts, &e.Cash, &e.Equity, &e.Exposure, &e.Drawdown); err != nil {
			return nil, err
		}
		e.Time = ts
		out = append(out, e)
	}
	return out, rows.Err()
}

// ListRuns returns every run ID seen in the journal, oldest first.
func (j *SQLite) ListRuns() ([]string, error) {
	rows, err := j.db.Query(`SELECT run_id FROM equity GROUP BY run_id ORDER BY MIN(time)`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func (j *SQLite) Close() error { return j.db.Close() }
