package portfolio

import "time"

type Side int

const (
	Buy Side = iota
	Sell
)

func (s Side) String() string {
	if s == Sell {
		return "sell"
	}
	return "buy"
}

// sign is +1 for buys and -1 for sells.
func (s Side) sign() float64 {
	if s == Sell {
		return -1
	}
	return 1
}

type OrderType int

const (
	Market OrderType = iota
	Limit
)

func (t OrderType) String() string {
	if t == Limit {
		return "limit"
	}
	return "market"
}

type TimeInForce int

const (
	// Day orders are cancelled if they do not fill on the next bar.
	Day TimeInForce = iota
	// GTC orders stay pending until filled or the run ends.
	GTC
)

// Order is a request to change a position. Orders are queued on Submit
// and fill on the next bar, never on the bar whose data produced them.
type Order struct {
	ID       string
	SignalID string // rule ID that produced the order, empty for forced exits
	Symbol   string
	Side     Side
	Units    float64 // always positive
	Type     OrderType
	Limit    float64 // limit price, Limit orders only
	Stop     float64 // protective stop attached to the resulting position, 0 for none
	Trail    float64 // trailing distance for the stop, 0 keeps it fixed
	TIF      TimeInForce
	Created  time.Time
}

// signedUnits is the position delta this order requests.
func (o *Order) signedUnits() float64 {
	return o.Side.sign() * o.Units
}

// Fill records an order executing against a bar.
type Fill struct {
	OrderID string
	Symbol  string
	Side    Side
	Units   float64 // positive
	Price   float64
	Fees    float64
	Time    time.Time
	Reason  string // "signal", "stop", "halt", "close"
}
