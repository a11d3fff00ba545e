package chaos

import (
	"fmt"
	"math/rand"

	"main/internal/schema"
)

// Config controls fault injection over a bar stream. Rates are
// per-bar probabilities; Seed fixes the random source so a degraded
// series is reproducible.
type Config struct {
	Seed          int64
	DropRate      float64
	DuplicateRate float64
	SpikeRate     float64
	SpikeFactor   float64
}

// Engine degrades a bar stream to test how strategies and the risk
// monitor cope with missing data and bad ticks.
type Engine struct {
	cfg Config
	rng *rand.Rand
}

// NewEngine creates a fault injector with validation.
func NewEngine(cfg Config) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.SpikeFactor == 0 {
		cfg.SpikeFactor = 0.1
	}
	if cfg.Seed == 0 {
		cfg.Seed = 1
	}
	return &Engine{
		cfg: cfg,
		rng: rand.New(rand.NewSource(cfg.Seed)),
	}, nil
}

// Validate ensures the config is within supported ranges.
func (c Config) Validate() error {
	if c.DropRate < 0 || c.DropRate > 1 {
		return fmt.Errorf("dropRate must be between 0 and 1")
	}
	if c.DuplicateRate < 0 || c.DuplicateRate > 1 {
		return fmt.Errorf("duplicateRate must be between 0 and 1")
	}
	if c.SpikeRate < 0 || c.SpikeRate > 1 {
		return fmt.Errorf("spikeRate must be between 0 and 1")
	}
	if c.SpikeFactor < 0 || c.SpikeFactor > 1 {
		return fmt.Errorf("spikeFactor must be between 0 and 1")
	}
	return nil
}

// Process applies faults to a single bar and returns the surviving
// output bars: empty on a drop, two on a duplicate.
func (e *Engine) Process(bar schema.Bar) []schema.Bar {
	if e == nil {
		return []schema.Bar{bar}
	}
	if e.cfg.DropRate > 0 && e.rng.Float64() < e.cfg.DropRate {
		return nil
	}
	bar = e.applySpike(bar)
	out := []schema.Bar{bar}
	if e.cfg.DuplicateRate > 0 && e.rng.Float64() < e.cfg.DuplicateRate {
		out = append(out, bar)
	}
	return out
}

// Degrade runs a whole series through the injector, preserving order.
func (e *Engine) Degrade(bars []schema.Bar) []schema.Bar {
	out := make([]schema.Bar, 0, len(bars))
	for _, bar := range bars {
		out = append(out, e.Process(bar)...)
	}
	return out
}

// applySpike distorts the close by up to ±SpikeFactor, clamping the
// high/low so the bar stays internally consistent.
func (e *Engine) applySpike(bar schema.Bar) schema.Bar {
	if e.cfg.SpikeRate <= 0 || e.rng.Float64() >= e.cfg.SpikeRate {
		return bar
	}
	shock := 1 + (e.rng.Float64()*2-1)*e.cfg.SpikeFactor
	bar.Close *= shock
	if bar.Close > bar.High {
		bar.High = bar.Close
	}
	if bar.Close < bar.Low {
		bar.Low = bar.Close
	}
	return bar
}
