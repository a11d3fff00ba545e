package backtest

import (
	"sort"

	"github.com/yanun0323/errors"

	"main/internal/schema"
	"main/pkg/exception"
)

// Portfolio is the run's cash and holdings ledger. The engine is its
// sole writer; everything else reads it through the accessor methods.
type Portfolio struct {
	initialCapital float64
	cash           float64
	cashBufferPct  float64
	positions      map[string]*schema.Position
	lastPrices     map[string]float64
}

// NewPortfolio creates a ledger with the given starting cash.
func NewPortfolio(initialCapital, cashBufferPct float64) (*Portfolio, error) {
	if initialCapital <= 0 {
		return nil, errors.Wrapf(exception.ErrInvalidCapital, "initial capital %.2f", initialCapital)
	}
	if cashBufferPct < 0 || cashBufferPct >= 1 {
		cashBufferPct = 0
	}
	return &Portfolio{
		initialCapital: initialCapital,
		cash:           initialCapital,
		cashBufferPct:  cashBufferPct,
		positions:      make(map[string]*schema.Position),
		lastPrices:     make(map[string]float64),
	}, nil
}

// InitialCapital returns the starting cash.
func (p *Portfolio) InitialCapital() float64 { return p.initialCapital }

// Cash returns the current settled cash.
func (p *Portfolio) Cash() float64 { return p.cash }

// AvailableCash is the cash spendable on new buys after the buffer.
func (p *Portfolio) AvailableCash() float64 {
	available := p.cash * (1.0 - p.cashBufferPct)
	if available < 0 {
		return 0
	}
	return available
}

// MarkPrice records the latest close for a symbol.
func (p *Portfolio) MarkPrice(symbol string, price float64) {
	if price > 0 {
		p.lastPrices[symbol] = price
	}
}

// LastPrice returns the most recent marked price, 0 when never seen.
func (p *Portfolio) LastPrice(symbol string) float64 { return p.lastPrices[symbol] }

// Quantity returns the held quantity, 0 when flat.
func (p *Portfolio) Quantity(symbol string) int64 {
	if pos, ok := p.positions[symbol]; ok {
		return pos.Quantity
	}
	return 0
}

// Position returns a copy of the holding for symbol.
func (p *Portfolio) Position(symbol string) (schema.Position, bool) {
	pos, ok := p.positions[symbol]
	if !ok {
		return schema.Position{}, false
	}
	return *pos, true
}

// Positions returns copies of all open holdings, sorted by symbol.
func (p *Portfolio) Positions() []schema.Position {
	out := make([]schema.Position, 0, len(p.positions))
	for _, pos := range p.positions {
		out = append(out, *pos)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}

// HoldingsValue values every open position at its last marked price.
func (p *Portfolio) HoldingsValue() float64 {
	total := 0.0
	for symbol, pos := range p.positions {
		total += pos.Value(p.lastPrices[symbol])
	}
	return total
}

// PositionValues maps symbol to market value for open positions.
func (p *Portfolio) PositionValues() map[string]float64 {
	out := make(map[string]float64, len(p.positions))
	for symbol, pos := range p.positions {
		out[symbol] = pos.Value(p.lastPrices[symbol])
	}
	return out
}

// TotalValue is cash plus holdings at last marked prices.
func (p *Portfolio) TotalValue() float64 {
	return p.cash + p.HoldingsValue()
}

// ApplyFill settles one fill against the ledger. Buys recompute the
// average cost; sells leave it unchanged and close the position at zero.
func (p *Portfolio) ApplyFill(fill schema.Fill) error {
	gross := fill.Price * float64(fill.Quantity)
	switch fill.Side {
	case schema.OrderSideBuy:
		cost := gross + fill.Commission
		if cost > p.cash {
			return errors.Wrapf(exception.ErrInsufficientCash,
				"buy %s needs %.2f, cash %.2f", fill.Symbol, cost, p.cash)
		}
		pos, ok := p.positions[fill.Symbol]
		if !ok {
			pos = &schema.Position{Symbol: fill.Symbol}
			p.positions[fill.Symbol] = pos
		}
		newQty := pos.Quantity + fill.Quantity
		pos.AvgCost = (pos.AvgCost*float64(pos.Quantity) + cost) / float64(newQty)
		pos.Quantity = newQty
		p.cash -= cost

	case schema.OrderSideSell:
		pos, ok := p.positions[fill.Symbol]
		if !ok || pos.Quantity < fill.Quantity {
			return errors.Wrapf(exception.ErrInsufficientHolding,
				"sell %s qty %d, held %d", fill.Symbol, fill.Quantity, p.Quantity(fill.Symbol))
		}
		pos.Quantity -= fill.Quantity
		if pos.Quantity == 0 {
			delete(p.positions, fill.Symbol)
		}
		p.cash += gross - fill.Commission

	default:
		return errors.Errorf("unknown order side %d", fill.Side)
	}
	return nil
}
