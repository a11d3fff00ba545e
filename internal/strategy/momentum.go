package strategy

import (
	"sort"

	"github.com/yanun0323/logs"

	"main/internal/schema"
)

// MomentumConfig parametrizes the rate-of-change strategy. The
// thresholds are pointers so an explicit zero stays distinguishable
// from an unset field.
type MomentumConfig struct {
	LookbackPeriod int
	EntryThreshold *float64
	ExitThreshold  *float64
	Strength       float64
	MaxPositions   int
}

func (c MomentumConfig) withDefaults() MomentumConfig {
	if c.LookbackPeriod <= 0 {
		c.LookbackPeriod = 20
	}
	if c.Strength <= 0 {
		c.Strength = 0.75
	}
	if c.MaxPositions <= 0 {
		c.MaxPositions = 5
	}
	return c
}

func (c MomentumConfig) entryThreshold() float64 {
	if c.EntryThreshold == nil {
		return 5.0
	}
	return *c.EntryThreshold
}

func (c MomentumConfig) exitThreshold() float64 {
	if c.ExitThreshold == nil {
		return -2.0
	}
	return *c.ExitThreshold
}

// Momentum buys strong positive rate of change and fully exits when the
// move fades below the exit threshold.
type Momentum struct {
	cfg     MomentumConfig
	book    *PositionBook
	history *HistoryArena
	scores  map[string]float64
}

// NewMomentum creates the strategy.
func NewMomentum(cfg MomentumConfig) *Momentum {
	cfg = cfg.withDefaults()
	return &Momentum{
		cfg:     cfg,
		book:    NewPositionBook(),
		history: NewHistoryArena(cfg.LookbackPeriod + 1),
		scores:  make(map[string]float64),
	}
}

// Name identifies the strategy.
func (s *Momentum) Name() string { return "momentum" }

// OnFill updates the local position book.
func (s *Momentum) OnFill(fill schema.Fill) { s.book.ApplyFill(fill) }

// OnBar updates history and emits momentum signals.
func (s *Momentum) OnBar(bar schema.Bar, emit func(schema.Signal)) {
	if bar.Close <= 0 {
		return
	}
	ring := s.history.Push(bar.Symbol, bar.Close)
	if ring.Len() < s.cfg.LookbackPeriod {
		return
	}

	momentum := s.momentum(ring)
	s.scores[bar.Symbol] = momentum

	s.checkEntry(bar, momentum, emit)
	s.checkExit(bar, momentum, emit)
}

func (s *Momentum) checkEntry(bar schema.Bar, momentum float64, emit func(schema.Signal)) {
	if s.book.Count() >= s.cfg.MaxPositions {
		return
	}
	if s.book.Long(bar.Symbol) {
		return
	}
	entry := s.cfg.entryThreshold()
	if momentum < entry {
		return
	}
	strength := s.cfg.Strength
	if entry > 0 {
		strength = s.cfg.Strength * (momentum / entry)
	}
	if strength > 1.0 {
		strength = 1.0
	}
	logs.Info("momentum buy: " + bar.Symbol)
	emit(schema.Signal{
		Symbol:   bar.Symbol,
		Side:     schema.OrderSideBuy,
		Strength: strength,
		Reason:   "strong_momentum",
		Meta: map[string]float64{
			"price":    bar.Close,
			"momentum": momentum,
		},
	})
}

func (s *Momentum) checkExit(bar schema.Bar, momentum float64, emit func(schema.Signal)) {
	if !s.book.Long(bar.Symbol) {
		return
	}
	if momentum > s.cfg.exitThreshold() {
		return
	}
	logs.Info("momentum sell: " + bar.Symbol)
	emit(schema.Signal{
		Symbol:   bar.Symbol,
		Side:     schema.OrderSideSell,
		Strength: 1.0,
		Reason:   "momentum_weakening",
		Meta: map[string]float64{
			"price":    bar.Close,
			"momentum": momentum,
		},
	})
}

func (s *Momentum) momentum(ring *Ring) float64 {
	prices := ring.Values()
	start := prices[len(prices)-s.cfg.LookbackPeriod]
	if start == 0 {
		return 0
	}
	return (prices[len(prices)-1] - start) / start * 100
}

// RankedScore is one entry of the momentum leaderboard.
type RankedScore struct {
	Symbol string
	Score  float64
}

// TopMomentum returns the n highest momentum symbols, descending.
func (s *Momentum) TopMomentum(n int) []RankedScore {
	ranked := make([]RankedScore, 0, len(s.scores))
	for symbol, score := range s.scores {
		ranked = append(ranked, RankedScore{Symbol: symbol, Score: score})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Score == ranked[j].Score {
			return ranked[i].Symbol < ranked[j].Symbol
		}
		return ranked[i].Score > ranked[j].Score
	})
	if n < len(ranked) {
		ranked = ranked[:n]
	}
	return ranked
}
