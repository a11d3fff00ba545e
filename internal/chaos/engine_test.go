package chaos

import (
	"testing"
	"time"

	"main/internal/schema"
)

func flatBars(n int) []schema.Bar {
	bars := make([]schema.Bar, n)
	for i := range bars {
		bars[i] = schema.Bar{
			Symbol: "600000",
			Time:   time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, i),
			Open:   10,
			High:   10.5,
			Low:    9.5,
			Close:  10,
			Volume: 1000,
		}
	}
	return bars
}

func TestValidateRejectsBadRates(t *testing.T) {
	cases := []Config{
		{DropRate: -0.1},
		{DropRate: 1.1},
		{DuplicateRate: 2},
		{SpikeRate: -1},
		{SpikeFactor: 1.5},
	}
	for _, cfg := range cases {
		if _, err := NewEngine(cfg); err == nil {
			t.Fatalf("config %+v should fail validation", cfg)
		}
	}
}

func TestDropAll(t *testing.T) {
	e, err := NewEngine(Config{DropRate: 1})
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	if out := e.Degrade(flatBars(10)); len(out) != 0 {
		t.Fatalf("got %d bars, want 0", len(out))
	}
}

func TestDuplicateAll(t *testing.T) {
	e, err := NewEngine(Config{DuplicateRate: 1})
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	out := e.Degrade(flatBars(5))
	if len(out) != 10 {
		t.Fatalf("got %d bars, want 10", len(out))
	}
	for i := 0; i < len(out); i += 2 {
		if out[i] != out[i+1] {
			t.Fatalf("bars %d and %d should be duplicates", i, i+1)
		}
	}
}

func TestSpikeKeepsBarConsistent(t *testing.T) {
	e, err := NewEngine(Config{SpikeRate: 1, SpikeFactor: 0.5, Seed: 7})
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	spiked := 0
	for _, bar := range e.Degrade(flatBars(50)) {
		if bar.Close != 10 {
			spiked++
		}
		if bar.Close > bar.High || bar.Close < bar.Low {
			t.Fatalf("bar breaks its own range: %+v", bar)
		}
		if bar.Close < 10*0.5 || bar.Close > 10*1.5 {
			t.Fatalf("spike outside factor bound: %v", bar.Close)
		}
	}
	if spiked == 0 {
		t.Fatal("spike rate 1 should distort every close")
	}
}

func TestSeededRunsRepeat(t *testing.T) {
	cfg := Config{DropRate: 0.3, DuplicateRate: 0.2, SpikeRate: 0.2, Seed: 42}
	a, err := NewEngine(cfg)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	b, err := NewEngine(cfg)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	outA, outB := a.Degrade(flatBars(100)), b.Degrade(flatBars(100))
	if len(outA) != len(outB) {
		t.Fatalf("lengths differ: %d vs %d", len(outA), len(outB))
	}
	for i := range outA {
		if outA[i] != outB[i] {
			t.Fatalf("outputs diverge at %d", i)
		}
	}
}
