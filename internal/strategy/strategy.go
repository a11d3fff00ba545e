package strategy

import "main/internal/schema"

// Strategy is one trading decision unit. OnBar consumes a single market
// observation and may emit zero or more signals through emit; signals are
// only valid from inside OnBar. OnFill keeps the strategy's local view of
// its own position current so entry/exit gating never reads the portfolio.
type Strategy interface {
	Name() string
	OnBar(bar schema.Bar, emit func(schema.Signal))
	OnFill(fill schema.Fill)
}

// PortfolioView is the read-only portfolio surface a strategy may observe.
type PortfolioView interface {
	TotalValue() float64
	AvailableCash() float64
}

// PortfolioAware is implemented by strategies that want a portfolio view
// bound at registration time.
type PortfolioAware interface {
	BindPortfolio(view PortfolioView)
}

// PositionBook tracks a strategy's own per-symbol quantity from fills.
type PositionBook struct {
	qty map[string]int64
}

// NewPositionBook creates an empty book.
func NewPositionBook() *PositionBook {
	return &PositionBook{qty: make(map[string]int64)}
}

// ApplyFill updates the book from a fill.
func (b *PositionBook) ApplyFill(fill schema.Fill) {
	switch fill.Side {
	case schema.OrderSideBuy:
		b.qty[fill.Symbol] += fill.Quantity
	case schema.OrderSideSell:
		next := b.qty[fill.Symbol] - fill.Quantity
		if next <= 0 {
			delete(b.qty, fill.Symbol)
			return
		}
		b.qty[fill.Symbol] = next
	}
}

// Quantity returns the held quantity for a symbol.
func (b *PositionBook) Quantity(symbol string) int64 {
	return b.qty[symbol]
}

// Long reports whether the book holds a positive quantity of the symbol.
func (b *PositionBook) Long(symbol string) bool {
	return b.qty[symbol] > 0
}

// Count returns the number of open positions.
func (b *PositionBook) Count() int {
	return len(b.qty)
}

// Holdings returns a copy of the symbol to quantity map.
func (b *PositionBook) Holdings() map[string]int64 {
	out := make(map[string]int64, len(b.qty))
	for symbol, qty := range b.qty {
		out[symbol] = qty
	}
	return out
}
