package backtest

import (
	"github.com/yanun0323/errors"

	"main/internal/risk"
	"main/internal/schema"
	"main/pkg/exception"
)

// OrderChecksConfig bounds what a single order and the resulting book
// may look like. Values are fractions of total equity unless noted.
type OrderChecksConfig struct {
	MaxPositionPct   float64
	MaxTotalExposure float64
	MaxOrderValue    float64
	MinOrderValue    float64
}

func (c OrderChecksConfig) withDefaults() OrderChecksConfig {
	if c.MaxPositionPct == 0 {
		c.MaxPositionPct = 0.1
	}
	if c.MaxTotalExposure == 0 {
		c.MaxTotalExposure = 0.95
	}
	if c.MaxOrderValue == 0 {
		c.MaxOrderValue = 1000000
	}
	if c.MinOrderValue == 0 {
		c.MinOrderValue = 1000
	}
	return c
}

// buyCostBuffer pads the cash check so fees never push a passing buy
// into negative cash.
const buyCostBuffer = 1.01

// OrderChecks gates orders against position, exposure, cash, and halt
// constraints before the engine simulates a fill.
type OrderChecks struct {
	cfg OrderChecksConfig
}

// NewOrderChecks creates the gate.
func NewOrderChecks(cfg OrderChecksConfig) *OrderChecks {
	return &OrderChecks{cfg: cfg.withDefaults()}
}

// Check returns nil when the order may proceed. A halted monitor blocks
// risk-increasing buys but still lets sells through.
func (c *OrderChecks) Check(order schema.Order, portfolio *Portfolio, state risk.State) error {
	if state == risk.StateHalted && order.Side == schema.OrderSideBuy {
		return errors.Wrapf(exception.ErrTradingHalted, "buy %s suppressed", order.Symbol)
	}

	value := float64(order.Quantity) * order.Price
	if value < c.cfg.MinOrderValue {
		return errors.Wrapf(exception.ErrOrderTooSmall,
			"%s value %.2f below minimum %.2f", order.Symbol, value, c.cfg.MinOrderValue)
	}
	if value > c.cfg.MaxOrderValue {
		return errors.Wrapf(exception.ErrOrderTooLarge,
			"%s value %.2f above maximum %.2f", order.Symbol, value, c.cfg.MaxOrderValue)
	}

	if order.Side == schema.OrderSideSell {
		held := portfolio.Quantity(order.Symbol)
		if order.Quantity > held {
			return errors.Wrapf(exception.ErrInsufficientHolding,
				"sell %s qty %d, held %d", order.Symbol, order.Quantity, held)
		}
		return nil
	}

	totalValue := portfolio.TotalValue()
	if totalValue > 0 {
		newQty := portfolio.Quantity(order.Symbol) + order.Quantity
		positionValue := float64(newQty) * order.Price
		if positionValue > totalValue*c.cfg.MaxPositionPct {
			return errors.Wrapf(exception.ErrPositionLimit,
				"%s position value %.2f exceeds %.1f%% of equity",
				order.Symbol, positionValue, c.cfg.MaxPositionPct*100)
		}
		newExposure := (portfolio.HoldingsValue() + value) / totalValue
		if newExposure > c.cfg.MaxTotalExposure {
			return errors.Wrapf(exception.ErrExposureLimit,
				"exposure %.1f%% exceeds ceiling %.1f%%",
				newExposure*100, c.cfg.MaxTotalExposure*100)
		}
	}

	if value*buyCostBuffer > portfolio.Cash() {
		return errors.Wrapf(exception.ErrInsufficientCash,
			"buy %s needs %.2f, cash %.2f", order.Symbol, value*buyCostBuffer, portfolio.Cash())
	}
	return nil
}
