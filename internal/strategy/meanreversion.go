package strategy

import (
	talib "github.com/markcheno/go-talib"
	"github.com/yanun0323/logs"

	"main/internal/schema"
)

// MeanReversionConfig parametrizes the Bollinger/RSI reversion strategy.
type MeanReversionConfig struct {
	BBPeriod      int
	BBStdDev      float64
	RSIPeriod     int
	RSIOversold   float64
	RSIOverbought float64
	Strength      float64
}

func (c MeanReversionConfig) withDefaults() MeanReversionConfig {
	if c.BBPeriod <= 0 {
		c.BBPeriod = 20
	}
	if c.BBStdDev <= 0 {
		c.BBStdDev = 2.0
	}
	if c.RSIPeriod <= 0 {
		c.RSIPeriod = 14
	}
	if c.RSIOversold <= 0 {
		c.RSIOversold = 30
	}
	if c.RSIOverbought <= 0 {
		c.RSIOverbought = 70
	}
	if c.Strength <= 0 {
		c.Strength = 0.7
	}
	return c
}

// MeanReversion buys at the lower Bollinger band when RSI is oversold and
// fully exits at the upper band or an overbought RSI.
type MeanReversion struct {
	cfg     MeanReversionConfig
	book    *PositionBook
	history *HistoryArena
}

// NewMeanReversion creates the strategy.
func NewMeanReversion(cfg MeanReversionConfig) *MeanReversion {
	cfg = cfg.withDefaults()
	capacity := cfg.BBPeriod
	if cfg.RSIPeriod+1 > capacity {
		capacity = cfg.RSIPeriod + 1
	}
	return &MeanReversion{
		cfg:     cfg,
		book:    NewPositionBook(),
		history: NewHistoryArena(capacity),
	}
}

// Name identifies the strategy.
func (s *MeanReversion) Name() string { return "mean_reversion" }

// OnFill updates the local position book.
func (s *MeanReversion) OnFill(fill schema.Fill) { s.book.ApplyFill(fill) }

// OnBar updates history and emits band/RSI signals.
func (s *MeanReversion) OnBar(bar schema.Bar, emit func(schema.Signal)) {
	if bar.Close <= 0 {
		return
	}
	ring := s.history.Push(bar.Symbol, bar.Close)
	if ring.Len() < s.cfg.BBPeriod || ring.Len() < s.cfg.RSIPeriod+1 {
		return
	}

	upper, _, lower, rsi := s.indicators(ring)
	price := bar.Close

	if price <= lower && rsi < s.cfg.RSIOversold {
		logs.Info("mean reversion buy: " + bar.Symbol)
		emit(schema.Signal{
			Symbol:   bar.Symbol,
			Side:     schema.OrderSideBuy,
			Strength: s.cfg.Strength,
			Reason:   "oversold",
			Meta: map[string]float64{
				"price":    price,
				"bb_lower": lower,
				"rsi":      rsi,
			},
		})
	}

	if !s.book.Long(bar.Symbol) {
		return
	}
	if price >= upper || rsi > s.cfg.RSIOverbought {
		reason := "resistance"
		if rsi > s.cfg.RSIOverbought {
			reason = "overbought"
		}
		logs.Info("mean reversion sell: " + bar.Symbol)
		emit(schema.Signal{
			Symbol:   bar.Symbol,
			Side:     schema.OrderSideSell,
			Strength: 1.0,
			Reason:   reason,
			Meta: map[string]float64{
				"price":    price,
				"bb_upper": upper,
				"rsi":      rsi,
			},
		})
	}
}

func (s *MeanReversion) indicators(ring *Ring) (upper, middle, lower, rsi float64) {
	prices := ring.Values()
	idx := len(prices) - 1
	up, mid, low := talib.BBands(prices, s.cfg.BBPeriod, s.cfg.BBStdDev, s.cfg.BBStdDev, talib.SMA)
	rsiSeries := talib.Rsi(prices, s.cfg.RSIPeriod)
	return up[idx], mid[idx], low[idx], rsiSeries[idx]
}

// Bands returns the current Bollinger channel for a symbol.
func (s *MeanReversion) Bands(symbol string) (upper, middle, lower float64, ok bool) {
	ring := s.history.Ring(symbol)
	if ring == nil || ring.Len() < s.cfg.BBPeriod {
		return 0, 0, 0, false
	}
	prices := ring.Values()
	idx := len(prices) - 1
	up, mid, low := talib.BBands(prices, s.cfg.BBPeriod, s.cfg.BBStdDev, s.cfg.BBStdDev, talib.SMA)
	return up[idx], mid[idx], low[idx], true
}
