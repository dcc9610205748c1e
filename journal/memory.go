package journal

// Memory keeps the audit trail in slices. It backs tests and short paper
// sessions that do not need persistence.
type Memory struct {
	Trades     []TradeRecord
	Fills      []FillRecord
	Equity     []EquitySnapshot
	Signals    []SignalRecord
	Rejections []RejectionRecord
}

func NewMemory() *Memory { return &Memory{} }

func (m *Memory) RecordTrade(t TradeRecord) error {
	m.Trades = append(m.Trades, t)
	return nil
}

func (m *Memory) RecordFill(f FillRecord) error {
	m.Fills = append(m.Fills, f)
	return nil
}

func (m *Memory) RecordEquity(e EquitySnapshot) error {
	m.Equity = append(m.Equity, e)
	return nil
}

func (m *Memory) RecordSignal(s SignalRecord) error {
	m.Signals = append(m.Signals, s)
	return nil
}

func (m *Memory) RecordRejection(r RejectionRecord) error {
	m.Rejections = append(m.Rejections, r)
	return nil
}

func (m *Memory) Close() error { return nil }
