package strategy

import (
	"testing"
	"time"

	"main/internal/schema"
)

func barAt(symbol string, day int, close float64) schema.Bar {
	return schema.Bar{
		Symbol: symbol,
		Time:   time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, day),
		Open:   close,
		High:   close,
		Low:    close,
		Close:  close,
		Volume: 1000,
	}
}

func TestCrossoverGoldenCrossEmitsSingleBuy(t *testing.T) {
	s := NewCrossover(CrossoverConfig{FastPeriod: 2, SlowPeriod: 3})

	var signals []schema.Signal
	for i, price := range []float64{40, 39, 38, 40, 45} {
		s.OnBar(barAt("600000", i, price), func(sig schema.Signal) {
			signals = append(signals, sig)
		})
	}

	if len(signals) != 1 {
		t.Fatalf("expected exactly 1 signal, got %d: %+v", len(signals), signals)
	}
	sig := signals[0]
	if sig.Side != schema.OrderSideBuy {
		t.Fatalf("expected BUY, got %s", sig.Side)
	}
	if sig.Reason != "golden_cross" {
		t.Fatalf("unexpected reason %q", sig.Reason)
	}
	if sig.Strength <= 0 || sig.Strength > 1 {
		t.Fatalf("strength %.2f out of range", sig.Strength)
	}
}

func TestCrossoverRepeatSuppression(t *testing.T) {
	s := NewCrossover(CrossoverConfig{FastPeriod: 2, SlowPeriod: 3})

	buys := 0
	// keep oscillating upward so the fast average stays above the slow
	for i, price := range []float64{40, 39, 38, 40, 45, 46, 47, 48} {
		s.OnBar(barAt("600000", i, price), func(sig schema.Signal) {
			if sig.Side == schema.OrderSideBuy {
				buys++
			}
		})
	}
	if buys != 1 {
		t.Fatalf("expected 1 buy after suppression, got %d", buys)
	}
}

func TestCrossoverDeathCrossRequiresLong(t *testing.T) {
	s := NewCrossover(CrossoverConfig{FastPeriod: 2, SlowPeriod: 3})

	var sells int
	prices := []float64{40, 41, 42, 40, 36, 33}
	for i, price := range prices {
		s.OnBar(barAt("600000", i, price), func(sig schema.Signal) {
			if sig.Side == schema.OrderSideSell {
				sells++
			}
		})
	}
	if sells != 0 {
		t.Fatalf("expected no sells while flat, got %d", sells)
	}

	// now long: the next death cross must produce a sell
	s2 := NewCrossover(CrossoverConfig{FastPeriod: 2, SlowPeriod: 3})
	s2.OnFill(schema.Fill{Symbol: "600000", Side: schema.OrderSideBuy, Quantity: 100, Price: 40})
	sells = 0
	for i, price := range prices {
		s2.OnBar(barAt("600000", i, price), func(sig schema.Signal) {
			if sig.Side == schema.OrderSideSell {
				sells++
			}
		})
	}
	if sells != 1 {
		t.Fatalf("expected 1 sell while long, got %d", sells)
	}
}

func TestCrossoverIndicators(t *testing.T) {
	s := NewCrossover(CrossoverConfig{FastPeriod: 2, SlowPeriod: 3})
	for i, price := range []float64{40, 41, 42, 43} {
		s.OnBar(barAt("600000", i, price), func(schema.Signal) {})
	}
	ind := s.Indicators("600000")
	if ind == nil {
		t.Fatal("expected indicators after warmup")
	}
	if got := ind["fast_ma"]; got != 42.5 {
		t.Fatalf("fast_ma = %v, want 42.5", got)
	}
	if got := ind["slow_ma"]; got != 42 {
		t.Fatalf("slow_ma = %v, want 42", got)
	}
}
