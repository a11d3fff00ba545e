package backtest

import (
	"github.com/shopspring/decimal"

	"main/internal/schema"
)

// CostConfig is the A-share fee schedule. Rates are fractions of gross
// trade value.
type CostConfig struct {
	CommissionRate  float64
	MinCommission   float64
	StampTaxRate    float64
	TransferFeeRate float64
	SlippageRate    float64
}

func (c CostConfig) withDefaults() CostConfig {
	if c.CommissionRate == 0 {
		c.CommissionRate = 0.0003
	}
	if c.MinCommission == 0 {
		c.MinCommission = 5.0
	}
	if c.StampTaxRate == 0 {
		c.StampTaxRate = 0.001
	}
	if c.TransferFeeRate == 0 {
		c.TransferFeeRate = 0.00002
	}
	if c.SlippageRate == 0 {
		c.SlippageRate = 0.0005
	}
	return c
}

// CostBreakdown itemizes the fees of one fill, each rounded to cents.
type CostBreakdown struct {
	Commission  float64
	StampTax    float64
	TransferFee float64
	Total       float64
}

// CostModel prices fills. All money arithmetic runs in decimal and is
// quantized to 0.01 so repeated runs never drift.
type CostModel struct {
	commissionRate decimal.Decimal
	minCommission  decimal.Decimal
	stampTaxRate   decimal.Decimal
	transferRate   decimal.Decimal
	slippageRate   decimal.Decimal
}

// NewCostModel creates the model.
func NewCostModel(cfg CostConfig) *CostModel {
	cfg = cfg.withDefaults()
	return &CostModel{
		commissionRate: decimal.NewFromFloat(cfg.CommissionRate),
		minCommission:  decimal.NewFromFloat(cfg.MinCommission),
		stampTaxRate:   decimal.NewFromFloat(cfg.StampTaxRate),
		transferRate:   decimal.NewFromFloat(cfg.TransferFeeRate),
		slippageRate:   decimal.NewFromFloat(cfg.SlippageRate),
	}
}

// FillPrice applies slippage against the trade: buys fill above the bar
// price, sells below.
func (m *CostModel) FillPrice(price float64, side schema.OrderSide) float64 {
	p := decimal.NewFromFloat(price)
	slip := p.Mul(m.slippageRate)
	if side == schema.OrderSideBuy {
		p = p.Add(slip)
	} else {
		p = p.Sub(slip)
	}
	f, _ := p.Round(2).Float64()
	return f
}

// Costs itemizes the fees for a fill at the given price.
func (m *CostModel) Costs(quantity int64, price float64, side schema.OrderSide) CostBreakdown {
	gross := decimal.NewFromInt(quantity).Mul(decimal.NewFromFloat(price))

	commission := gross.Mul(m.commissionRate)
	if commission.LessThan(m.minCommission) {
		commission = m.minCommission
	}
	commission = commission.Round(2)

	stampTax := decimal.Zero
	if side == schema.OrderSideSell {
		stampTax = gross.Mul(m.stampTaxRate).Round(2)
	}

	transferFee := gross.Mul(m.transferRate).Round(2)

	total := commission.Add(stampTax).Add(transferFee)

	out := CostBreakdown{}
	out.Commission, _ = commission.Float64()
	out.StampTax, _ = stampTax.Float64()
	out.TransferFee, _ = transferFee.Float64()
	out.Total, _ = total.Float64()
	return out
}

// NetAmount is the cash delta of a fill: buys pay gross plus costs,
// sells receive gross minus costs. Rounded to cents.
func (m *CostModel) NetAmount(quantity int64, price float64, side schema.OrderSide) float64 {
	gross := decimal.NewFromInt(quantity).Mul(decimal.NewFromFloat(price))
	costs := m.Costs(quantity, price, side)
	total := decimal.NewFromFloat(costs.Total)

	var net decimal.Decimal
	if side == schema.OrderSideBuy {
		net = gross.Add(total)
	} else {
		net = gross.Sub(total)
	}
	f, _ := net.Round(2).Float64()
	return f
}
