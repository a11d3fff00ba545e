package strategy

import (
	talib "github.com/markcheno/go-talib"
	"github.com/yanun0323/logs"

	"main/internal/schema"
)

const (
	crossNone = iota
	crossUp
	crossDown
)

// CrossoverConfig parametrizes the double moving average strategy.
type CrossoverConfig struct {
	FastPeriod int
	SlowPeriod int
	Strength   float64
}

func (c CrossoverConfig) withDefaults() CrossoverConfig {
	if c.FastPeriod <= 0 {
		c.FastPeriod = 5
	}
	if c.SlowPeriod <= 0 {
		c.SlowPeriod = 20
	}
	if c.Strength <= 0 {
		c.Strength = 0.8
	}
	return c
}

// Crossover trades the double moving average crossover: BUY on the golden
// cross, SELL on the death cross while long. Repeated signals in the same
// direction are suppressed until the direction changes.
type Crossover struct {
	cfg       CrossoverConfig
	book      *PositionBook
	history   *HistoryArena
	lastCross map[string]int
}

// NewCrossover creates the strategy.
func NewCrossover(cfg CrossoverConfig) *Crossover {
	cfg = cfg.withDefaults()
	return &Crossover{
		cfg: cfg,
		// one extra sample keeps the previous step's averages observable
		history:   NewHistoryArena(cfg.SlowPeriod + 1),
		book:      NewPositionBook(),
		lastCross: make(map[string]int),
	}
}

// Name identifies the strategy.
func (s *Crossover) Name() string { return "ma_crossover" }

// OnFill updates the local position book.
func (s *Crossover) OnFill(fill schema.Fill) { s.book.ApplyFill(fill) }

// OnBar updates history and emits crossover signals.
func (s *Crossover) OnBar(bar schema.Bar, emit func(schema.Signal)) {
	if bar.Close <= 0 {
		return
	}
	ring := s.history.Push(bar.Symbol, bar.Close)
	if ring.Len() < s.cfg.SlowPeriod+1 {
		return
	}

	prices := ring.Values()
	fast := talib.Sma(prices, s.cfg.FastPeriod)
	slow := talib.Sma(prices, s.cfg.SlowPeriod)
	idx := len(prices) - 1

	fastNow, slowNow := fast[idx], slow[idx]
	fastPrev, slowPrev := fast[idx-1], slow[idx-1]

	switch {
	case fastPrev <= slowPrev && fastNow > slowNow:
		if s.lastCross[bar.Symbol] == crossUp {
			return
		}
		s.lastCross[bar.Symbol] = crossUp
		logs.Info("golden cross: " + bar.Symbol)
		emit(schema.Signal{
			Symbol:   bar.Symbol,
			Side:     schema.OrderSideBuy,
			Strength: s.cfg.Strength,
			Reason:   "golden_cross",
			Meta: map[string]float64{
				"fast_ma": fastNow,
				"slow_ma": slowNow,
				"price":   bar.Close,
			},
		})

	case fastPrev >= slowPrev && fastNow < slowNow:
		if s.lastCross[bar.Symbol] == crossDown {
			return
		}
		s.lastCross[bar.Symbol] = crossDown
		if !s.book.Long(bar.Symbol) {
			return
		}
		logs.Info("death cross: " + bar.Symbol)
		emit(schema.Signal{
			Symbol:   bar.Symbol,
			Side:     schema.OrderSideSell,
			Strength: 1.0,
			Reason:   "death_cross",
			Meta: map[string]float64{
				"fast_ma": fastNow,
				"slow_ma": slowNow,
				"price":   bar.Close,
			},
		})
	}
}

// Indicators exposes the current averages for a symbol.
func (s *Crossover) Indicators(symbol string) map[string]float64 {
	ring := s.history.Ring(symbol)
	if ring == nil || ring.Len() < s.cfg.SlowPeriod {
		return nil
	}
	prices := ring.Values()
	idx := len(prices) - 1
	return map[string]float64{
		"fast_ma": talib.Sma(prices, s.cfg.FastPeriod)[idx],
		"slow_ma": talib.Sma(prices, s.cfg.SlowPeriod)[idx],
		"price":   prices[idx],
	}
}
