package journal

// Tee duplicates every record across multiple backends, e.g. SQLite for
// queries plus CSV for spreadsheets. The first backend error wins.
type Tee struct {
	backends []Journal
}

func NewTee(backends ...Journal) *Tee {
	return &Tee{backends: backends}
}

func (t *Tee) RecordTrade(r TradeRecord) error {
	return t.each(func(j Journal) error { return j.RecordTrade(r) })
}

func (t *Tee) RecordFill(r FillRecord) error {
	return t.each(func(j Journal) error { return j.RecordFill(r) })
}

func (t *Tee) RecordEquity(r EquitySnapshot) error {
	return t.each(func(j Journal) error { return j.RecordEquity(r) })
}

func (t *Tee) RecordSignal(r SignalRecord) error {
	return t.each(func(j Journal) error { return j.RecordSignal(r) })
}

func (t *Tee) RecordRejection(r RejectionRecord) error {
	return t.each(func(j Journal) error { return j.RecordRejection(r) })
}

// Close closes every backend and returns the first failure.
func (t *Tee) Close() error {
	var first error
	for _, j := range t.backends {
		if err := j.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (t *Tee) each(fn func(Journal) error) error {
	for _, j := range t.backends {
		if err := fn(j); err != nil {
			return err
		}
	}
	return nil
}
