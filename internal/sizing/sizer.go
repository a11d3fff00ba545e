package sizing

import (
	"math"

	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"

	"main/pkg/exception"
)

// Method selects a position sizing algorithm.
type Method string

const (
	MethodFixedRatio         Method = "fixed_ratio"
	MethodKelly              Method = "kelly"
	MethodVolatilityAdjusted Method = "volatility_adjusted"
	MethodEqualWeight        Method = "equal_weight"
)

// Valid reports whether m names a known algorithm.
func (m Method) Valid() bool {
	switch m {
	case MethodFixedRatio, MethodKelly, MethodVolatilityAdjusted, MethodEqualWeight:
		return true
	}
	return false
}

// Config bounds every sizing decision regardless of method.
type Config struct {
	DefaultRatio    float64
	KellyFraction   float64
	MaxPositionSize float64
	MinPositionSize float64
	LotSize         int64
}

func (c Config) withDefaults() Config {
	if c.DefaultRatio <= 0 {
		c.DefaultRatio = 0.10
	}
	if c.KellyFraction <= 0 {
		c.KellyFraction = 0.5
	}
	if c.MaxPositionSize <= 0 {
		c.MaxPositionSize = 0.20
	}
	if c.MinPositionSize <= 0 {
		c.MinPositionSize = 0.02
	}
	if c.LotSize == 0 {
		c.LotSize = 100
	}
	return c
}

// Params carries the per-call inputs some methods need.
type Params struct {
	// kelly
	WinRate float64
	AvgWin  float64
	AvgLoss float64

	// volatility_adjusted
	ATR          float64
	Volatility   float64
	RiskPerTrade float64

	// equal_weight
	NumPositions int
}

// Sizer converts capital and price into lot-aligned share quantities.
type Sizer struct {
	cfg Config
}

// NewSizer validates the configuration up front.
func NewSizer(cfg Config) (*Sizer, error) {
	cfg = cfg.withDefaults()
	if cfg.LotSize < 0 {
		return nil, errors.Wrapf(exception.ErrInvalidLotSize, "lot size %d", cfg.LotSize)
	}
	if cfg.MinPositionSize > cfg.MaxPositionSize {
		return nil, errors.Errorf("min position size %.4f exceeds max %.4f",
			cfg.MinPositionSize, cfg.MaxPositionSize)
	}
	return &Sizer{cfg: cfg}, nil
}

// Calculate returns the share quantity for one position. Unknown methods
// and degenerate method inputs fall back to fixed_ratio rather than fail
// the run. Valid kelly inputs with a non-positive edge size at
// MinPositionSize.
func (s *Sizer) Calculate(capital, price float64, method Method, params Params) (int64, error) {
	if capital <= 0 {
		return 0, errors.Wrapf(exception.ErrInvalidCapital, "capital %.2f", capital)
	}
	if price <= 0 {
		return 0, errors.Errorf("price %.4f must be positive", price)
	}

	var fraction float64
	switch method {
	case MethodFixedRatio:
		fraction = s.cfg.DefaultRatio
	case MethodKelly:
		if !validKellyInputs(params.WinRate, params.AvgWin, params.AvgLoss) {
			logs.Warnf("kelly inputs degenerate (win_rate=%.3f avg_win=%.2f avg_loss=%.2f), using fixed_ratio",
				params.WinRate, params.AvgWin, params.AvgLoss)
			fraction = s.cfg.DefaultRatio
			break
		}
		fraction = s.KellyValue(params.WinRate, params.AvgWin, params.AvgLoss)
		if fraction <= 0 {
			// Negative edge: keep the position at the floor instead of
			// betting the default ratio against the odds.
			fraction = s.cfg.MinPositionSize
		}
	case MethodVolatilityAdjusted:
		fraction = s.volatilityFraction(price, params)
	case MethodEqualWeight:
		n := params.NumPositions
		if n <= 0 {
			n = 1
		}
		fraction = 1.0 / float64(n)
	default:
		logs.Warnf("unknown sizing method %q, using fixed_ratio", method)
		fraction = s.cfg.DefaultRatio
	}

	return s.toShares(capital, price, fraction), nil
}

func validKellyInputs(winRate, avgWin, avgLoss float64) bool {
	return winRate > 0 && winRate < 1 && avgWin > 0 && avgLoss > 0
}

// KellyValue returns the half (KellyFraction) Kelly fraction, or 0 when
// the inputs are degenerate or the edge is not positive.
func (s *Sizer) KellyValue(winRate, avgWin, avgLoss float64) float64 {
	if !validKellyInputs(winRate, avgWin, avgLoss) {
		return 0
	}
	b := avgWin / avgLoss
	kelly := (winRate*b - (1 - winRate)) / b
	if kelly <= 0 {
		return 0
	}
	return kelly * s.cfg.KellyFraction
}

func (s *Sizer) volatilityFraction(price float64, params Params) float64 {
	risk := params.RiskPerTrade
	if risk <= 0 {
		risk = 0.02
	}
	var unitRisk float64
	switch {
	case params.ATR > 0:
		unitRisk = params.ATR
	case params.Volatility > 0:
		unitRisk = price * params.Volatility
	default:
		unitRisk = price * 0.02
	}
	if unitRisk <= 0 {
		return s.cfg.DefaultRatio
	}
	// fraction of capital such that a one-unit-risk move loses risk pct
	return risk * price / unitRisk
}

func (s *Sizer) toShares(capital, price, fraction float64) int64 {
	if fraction > s.cfg.MaxPositionSize {
		fraction = s.cfg.MaxPositionSize
	}
	if fraction < s.cfg.MinPositionSize {
		fraction = s.cfg.MinPositionSize
	}
	value := capital * fraction
	shares := int64(math.Floor(value / price))
	if s.cfg.LotSize > 1 {
		shares = shares / s.cfg.LotSize * s.cfg.LotSize
	}
	if shares < 0 {
		return 0
	}
	return shares
}

// Request pairs a symbol with its sizing inputs for CalculateBatch.
type Request struct {
	Symbol string
	Price  float64
	Method Method
	Params Params
}

// CalculateBatch sizes several candidates against the same capital pool.
// A failed entry zeroes that symbol and the rest proceed.
func (s *Sizer) CalculateBatch(capital float64, requests []Request) map[string]int64 {
	out := make(map[string]int64, len(requests))
	for _, req := range requests {
		shares, err := s.Calculate(capital, req.Price, req.Method, req.Params)
		if err != nil {
			logs.Errorf("sizing %s failed: %+v", req.Symbol, err)
			out[req.Symbol] = 0
			continue
		}
		out[req.Symbol] = shares
	}
	return out
}

// TradeOutcome is one closed trade's realized P&L.
type TradeOutcome struct {
	PnL float64
}

// KellyParams derives kelly inputs from a realized trade history.
func KellyParams(trades []TradeOutcome) Params {
	var wins, losses int
	var winSum, lossSum float64
	for _, t := range trades {
		if t.PnL > 0 {
			wins++
			winSum += t.PnL
		} else if t.PnL < 0 {
			losses++
			lossSum += -t.PnL
		}
	}
	total := wins + losses
	if total == 0 {
		return Params{}
	}
	p := Params{WinRate: float64(wins) / float64(total)}
	if wins > 0 {
		p.AvgWin = winSum / float64(wins)
	}
	if losses > 0 {
		p.AvgLoss = lossSum / float64(losses)
	}
	return p
}
