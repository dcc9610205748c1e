package indicators

import (
	"fmt"

	"github.com/quantdesk/quantdesk/market"
)

// RSI is a streaming Relative Strength Index: exponentially smoothed average
// gain over average loss. The first bar contributes a zero change.
type RSI struct {
	window    int
	alpha     float64
	avgGain   float64
	avgLoss   float64
	prevClose float64
	count     int
}

func NewRSI(window int) *RSI {
	return &RSI{window: window, alpha: 2.0 / float64(window+1)}
}

func (r *RSI) Name() string { return fmt.Sprintf("RSI(%d)", r.window) }
func (r *RSI) Warmup() int  { return r.window }

func (r *RSI) Reset() {
	r.avgGain, r.avgLoss, r.prevClose = 0, 0, 0
	r.count = 0
}

func (r *RSI) Update(b market.Bar) {
	gain, loss := 0.0, 0.0
	if r.count > 0 {
		change := b.Close - r.prevClose
		if change > 0 {
			gain = change
		} else {
			loss = -change
		}
	}
	r.prevClose = b.Close

	if r.count == 0 {
		r.avgGain, r.avgLoss = gain, loss
	} else {
		r.avgGain = r.alpha*gain + (1-r.alpha)*r.avgGain
		r.avgLoss = r.alpha*loss + (1-r.alpha)*r.avgLoss
	}
	r.count++
}

func (r *RSI) Ready() bool { return r.count >= r.window }

func (r *RSI) Value() float64 {
	if !r.Ready() {
		return 0
	}
	if r.avgLoss == 0 {
		return 100
	}
	rs := r.avgGain / r.avgLoss
	return 100 - (100 / (1 + rs))
}

// ROC is the streaming Rate of Change: percent change of close versus the
// close `window` bars earlier.
type ROC struct {
	window int
	buf    []float64 // last window+1 closes
	head   int
	count  int
}

func NewROC(window int) *ROC {
	return &ROC{window: window, buf: make([]float64, window+1)}
}

func (r *ROC) Name() string { return fmt.Sprintf("ROC(%d)", r.window) }
func (r *ROC) Warmup() int  { return r.window + 1 }

func (r *ROC) Reset() {
	for i := range r.buf {
		r.buf[i] = 0
	}
	r.head, r.count = 0, 0
}

func (r *ROC) Update(b market.Bar) {
	r.buf[r.head] = b.Close
	r.head = (r.head + 1) % len(r.buf)
	if r.count < len(r.buf) {
		r.count++
	}
}

func (r *ROC) Ready() bool {
	if r.count < len(r.buf) {
		return false
	}
	return r.oldest() != 0
}

// oldest returns the close window bars back; with a full buffer that is the
// slot head points at.
func (r *ROC) oldest() float64 { return r.buf[r.head] }

func (r *ROC) latest() float64 {
	return r.buf[(r.head+len(r.buf)-1)%len(r.buf)]
}

func (r *ROC) Value() float64 {
	if !r.Ready() {
		return 0
	}
	prev := r.oldest()
	return (r.latest() - prev) / prev * 100
}
