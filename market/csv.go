package market

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/ulikunitz/xz"
)

// CSVProvider loads OHLCV data from files in Root named <symbol>.csv with
// rows:
//
//	time,open,high,low,close,volume
//
// where time is RFC3339 or a bare 2006-01-02 date. A header row is allowed.
// Files compressed as <symbol>.csv.xz are read transparently, which keeps
// multi-year daily datasets small on disk.
type CSVProvider struct {
	Root string
}

func NewCSVProvider(root string) *CSVProvider {
	return &CSVProvider{Root: root}
}

func (p *CSVProvider) GetBars(ctx context.Context, symbol string, start, end time.Time) ([]Bar, error) {
	bars, err := p.readSymbol(symbol)
	if err != nil {
		return nil, &ProviderError{Symbol: symbol, Op: "bars", Err: err}
	}

	out := bars[:0:0]
	for _, b := range bars {
		if !start.IsZero() && b.Time.Before(start) {
			continue
		}
		if !end.IsZero() && b.Time.After(end) {
			continue
		}
		out = append(out, b)
	}
	return out, nil
}

func (p *CSVProvider) GetLatest(ctx context.Context, symbol string) (Bar, error) {
	bars, err := p.readSymbol(symbol)
	if err != nil {
		return Bar{}, &ProviderError{Symbol: symbol, Op: "latest", Err: err}
	}
	if len(bars) == 0 {
		return Bar{}, &ProviderError{Symbol: symbol, Op: "latest", Err: fmt.Errorf("no bars")}
	}
	return bars[len(bars)-1], nil
}

// open returns a reader for <symbol>.csv, falling back to <symbol>.csv.xz.
func (p *CSVProvider) open(symbol string) (io.ReadCloser, error) {
	plain := filepath.Join(p.Root, symbol+".csv")
	if f, err := os.Open(plain); err == nil {
		return f, nil
	}

	f, err := os.Open(plain + ".xz")
	if err != nil {
		return nil, fmt.Errorf("no dataset for %q in %s", symbol, p.Root)
	}
	r, err := xz.NewReader(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("open %s.csv.xz: %w", symbol, err)
	}
	return &xzReadCloser{r: r, f: f}, nil
}

type xzReadCloser struct {
	r io.Reader
	f *os.File
}

func (x *xzReadCloser) Read(b []byte) (int, error) { return x.r.Read(b) }
func (x *xzReadCloser) Close() error               { return x.f.Close() }

func (p *CSVProvider) readSymbol(symbol string) ([]Bar, error) {
	rc, err := p.open(symbol)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	r := csv.NewReader(rc)
	r.FieldsPerRecord = -1

	var bars []Bar
	sawFirst := false
	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if len(row) == 0 {
			continue
		}

		// Allow a single header row.
		if !sawFirst {
			sawFirst = true
			if strings.EqualFold(strings.TrimSpace(row[0]), "time") ||
				strings.EqualFold(strings.TrimSpace(row[0]), "date") {
				continue
			}
		}

		b, ok, err := parseBarRow(symbol, row)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		bars = append(bars, b)
	}

	if err := ValidateSeries(bars); err != nil {
		return nil, err
	}
	return bars, nil
}

func parseBarRow(symbol string, row []string) (Bar, bool, error) {
	// Need at least: time,open,high,low,close,volume
	if len(row) < 6 {
		return Bar{}, false, nil
	}

	ts := strings.TrimSpace(row[0])
	if ts == "" {
		return Bar{}, false, nil
	}
	t, err := time.Parse(time.RFC3339, ts)
	if err != nil {
		t2, err2 := time.Parse("2006-01-02", ts)
		if err2 != nil {
			return Bar{}, false, fmt.Errorf("bad time %q: %w", ts, err)
		}
		t = t2.UTC()
	}

	vals := make([]float64, 5)
	for i := 0; i < 5; i++ {
		v, err := strconv.ParseFloat(strings.TrimSpace(row[i+1]), 64)
		if err != nil {
			return Bar{}, false, fmt.Errorf("bad field %q: %w", row[i+1], err)
		}
		vals[i] = v
	}

	return Bar{
		Symbol: symbol,
		Time:   t,
		Open:   vals[0],
		High:   vals[1],
		Low:    vals[2],
		Close:  vals[3],
		Volume: vals[4],
	}, true, nil
}
