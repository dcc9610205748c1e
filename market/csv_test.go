package market

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ulikunitz/xz"
)

const sampleCSV = `time,open,high,low,close,volume
2025-01-02,100,102,99,101,10000
2025-01-03,101,104,100,103,12000
2025-01-06,103,103.5,101,102,9000
`

func writeDataset(t *testing.T, dir, name, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0644))
}

func TestCSVProviderGetBars(t *testing.T) {
	dir := t.TempDir()
	writeDataset(t, dir, "AAPL.csv", sampleCSV)

	p := NewCSVProvider(dir)
	bars, err := p.GetBars(context.Background(), "AAPL", time.Time{}, time.Time{})
	require.NoError(t, err)
	require.Len(t, bars, 3)

	assert.Equal(t, "AAPL", bars[0].Symbol)
	assert.Equal(t, 101.0, bars[0].Close)
	assert.Equal(t, 12000.0, bars[1].Volume)
}

func TestCSVProviderWindow(t *testing.T) {
	dir := t.TempDir()
	writeDataset(t, dir, "AAPL.csv", sampleCSV)

	p := NewCSVProvider(dir)
	start := time.Date(2025, 1, 3, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, 1, 3, 0, 0, 0, 0, time.UTC)

	bars, err := p.GetBars(context.Background(), "AAPL", start, end)
	require.NoError(t, err)
	require.Len(t, bars, 1)
	assert.Equal(t, 103.0, bars[0].Close)
}

func TestCSVProviderGetLatest(t *testing.T) {
	dir := t.TempDir()
	writeDataset(t, dir, "AAPL.csv", sampleCSV)

	p := NewCSVProvider(dir)
	b, err := p.GetLatest(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.Equal(t, 102.0, b.Close)
}

func TestCSVProviderMissingSymbol(t *testing.T) {
	p := NewCSVProvider(t.TempDir())

	_, err := p.GetBars(context.Background(), "NOPE", time.Time{}, time.Time{})
	require.Error(t, err)

	var perr *ProviderError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "NOPE", perr.Symbol)
	assert.Equal(t, "bars", perr.Op)
}

func TestCSVProviderRejectsBadSeries(t *testing.T) {
	dir := t.TempDir()
	// Second row repeats the first timestamp.
	writeDataset(t, dir, "DUP.csv", "2025-01-02,100,102,99,101,1\n2025-01-02,101,104,100,103,1\n")

	p := NewCSVProvider(dir)
	_, err := p.GetBars(context.Background(), "DUP", time.Time{}, time.Time{})
	require.Error(t, err)

	var verr *ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestCSVProviderReadsXZ(t *testing.T) {
	dir := t.TempDir()

	f, err := os.Create(filepath.Join(dir, "MSFT.csv.xz"))
	require.NoError(t, err)
	w, err := xz.NewWriter(f)
	require.NoError(t, err)
	_, err = w.Write([]byte(sampleCSV))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	require.NoError(t, f.Close())

	p := NewCSVProvider(dir)
	bars, err := p.GetBars(context.Background(), "MSFT", time.Time{}, time.Time{})
	require.NoError(t, err)
	require.Len(t, bars, 3)
	assert.Equal(t, 103.0, bars[1].Close)
}
