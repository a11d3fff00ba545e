package schema

import "time"

// OrderSide describes order direction.
type OrderSide uint16

const (
	OrderSideUnknown OrderSide = iota
	OrderSideBuy
	OrderSideSell
)

// String returns the wire name of the side.
func (s OrderSide) String() string {
	switch s {
	case OrderSideBuy:
		return "BUY"
	case OrderSideSell:
		return "SELL"
	default:
		return "UNKNOWN"
	}
}

// Bar is one observation of market data for one symbol at one instant.
// Timestamps are strictly non-decreasing per symbol across a run.
type Bar struct {
	Symbol string
	Time   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}

// Signal is a strategy's trading intent. It requests execution but does
// not guarantee it. Strength is in [0, 1]. Quantity, when > 0, asks for an
// exact share count and bypasses sizing; otherwise the engine sizes the
// order. Meta carries free-form numeric annotations (indicator values).
type Signal struct {
	Symbol   string
	Side     OrderSide
	Strength float64
	Quantity int64
	Reason   string
	Meta     map[string]float64
}

// Order is a sizing-approved trading instruction. Quantity is a multiple
// of the configured lot size and Value the estimated notional at the
// reference price.
type Order struct {
	Symbol   string
	Side     OrderSide
	Quantity int64
	Price    float64
	Value    float64
	Time     time.Time
}

// Fill is a simulated execution, inclusive of modeled transaction costs.
type Fill struct {
	Symbol     string
	Side       OrderSide
	Quantity   int64
	Price      float64
	Commission float64
	Time       time.Time
}

// Position is a per-symbol holding. AvgCost is recomputed on every BUY
// fill and unchanged on SELL.
type Position struct {
	Symbol   string
	Quantity int64
	AvgCost  float64
}

// Value returns the position notional at the given price.
func (p Position) Value(price float64) float64 {
	return float64(p.Quantity) * price
}

// EquityPoint is one equity time-series sample, appended exactly once per
// simulated period and immutable thereafter.
type EquityPoint struct {
	Date     time.Time
	Equity   float64
	Cash     float64
	Holdings float64
}

// AlertLevel grades a risk rule violation.
type AlertLevel uint16

const (
	AlertLevelUnknown AlertLevel = iota
	AlertLevelWarning
	AlertLevelLimit
	AlertLevelCircuitBreaker
)

// String returns the wire name of the level.
func (l AlertLevel) String() string {
	switch l {
	case AlertLevelWarning:
		return "warning"
	case AlertLevelLimit:
		return "limit"
	case AlertLevelCircuitBreaker:
		return "circuit_breaker"
	default:
		return "unknown"
	}
}

// RiskAlert records a rule violation observation. Only circuit_breaker
// level alerts may flip the trading halt flag.
type RiskAlert struct {
	Time    time.Time
	Level   AlertLevel
	Rule    string
	Message string
	Data    map[string]float64
}
