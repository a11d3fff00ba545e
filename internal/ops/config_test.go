package ops

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"main/internal/sizing"
	"main/pkg/exception"
)

func validConfig() FileConfig {
	return FileConfig{
		InitialCapital: 1000000,
		SizingMethod:   "fixed_ratio",
		Strategies: []StrategyConfig{
			{Type: "crossover"},
			{Type: "mean_reversion"},
			{Type: "momentum"},
		},
	}
}

func TestResolveValid(t *testing.T) {
	loaded, err := Resolve(validConfig())
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if loaded.Engine.InitialCapital != 1000000 {
		t.Fatalf("capital = %v", loaded.Engine.InitialCapital)
	}
	if loaded.Engine.SizingMethod != sizing.MethodFixedRatio {
		t.Fatalf("method = %v", loaded.Engine.SizingMethod)
	}
	if len(loaded.Strategies) != 3 {
		t.Fatalf("strategies = %d, want 3", len(loaded.Strategies))
	}
}

func TestResolveDefaultsSizingMethod(t *testing.T) {
	cfg := validConfig()
	cfg.SizingMethod = ""
	loaded, err := Resolve(cfg)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if loaded.Engine.SizingMethod != sizing.MethodFixedRatio {
		t.Fatalf("method = %v, want fixed_ratio", loaded.Engine.SizingMethod)
	}
}

func TestResolveRejectsBadValues(t *testing.T) {
	cfg := validConfig()
	cfg.InitialCapital = 0
	if _, err := Resolve(cfg); !errors.Is(err, exception.ErrInvalidCapital) {
		t.Fatalf("err = %v, want ErrInvalidCapital", err)
	}

	cfg = validConfig()
	cfg.SizingMethod = "martingale"
	if _, err := Resolve(cfg); !errors.Is(err, exception.ErrUnknownSizingMethod) {
		t.Fatalf("err = %v, want ErrUnknownSizingMethod", err)
	}

	cfg = validConfig()
	cfg.Strategies = nil
	if _, err := Resolve(cfg); !errors.Is(err, exception.ErrNoStrategies) {
		t.Fatalf("err = %v, want ErrNoStrategies", err)
	}

	cfg = validConfig()
	cfg.Strategies = []StrategyConfig{{Type: "arbitrage"}}
	if _, err := Resolve(cfg); err == nil {
		t.Fatal("expected error for unknown strategy type")
	}

	cfg = validConfig()
	cfg.Strategies = []StrategyConfig{{Type: "rotation"}}
	if _, err := Resolve(cfg); err == nil {
		t.Fatal("rotation without a rotation section should fail")
	}
}

func TestLoadFile(t *testing.T) {
	content := `{
		"initialCapital": 500000,
		"sizingMethod": "kelly",
		"sizing": {"kellyFraction": 0.5},
		"limits": {"maxDrawdownPct": 0.2},
		"strategies": [
			{"type": "crossover", "crossover": {"fastPeriod": 3, "slowPeriod": 10}},
			{"type": "rotation", "rotation": {
				"indexSymbol": "000300",
				"etfUniverse": ["510300", "510500"],
				"defensiveAsset": "511010"
			}}
		],
		"data": {"synthetic": {"symbols": ["000300", "510300"], "steps": 100}}
	}`
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.Engine.InitialCapital != 500000 {
		t.Fatalf("capital = %v", loaded.Engine.InitialCapital)
	}
	if loaded.Engine.SizingMethod != sizing.MethodKelly {
		t.Fatalf("method = %v, want kelly", loaded.Engine.SizingMethod)
	}
	if len(loaded.Strategies) != 2 {
		t.Fatalf("strategies = %d, want 2", len(loaded.Strategies))
	}
	if loaded.Data.Synthetic == nil || loaded.Data.Synthetic.Steps != 100 {
		t.Fatalf("synthetic data config not carried: %+v", loaded.Data)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.json")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestSyntheticStartTime(t *testing.T) {
	var c SyntheticConfig
	at, err := c.StartTime()
	if err != nil {
		t.Fatalf("default start: %v", err)
	}
	if at.IsZero() {
		t.Fatal("default start should not be zero")
	}

	c.Start = "2024-06-03"
	at, err = c.StartTime()
	if err != nil {
		t.Fatalf("parse start: %v", err)
	}
	if at.Year() != 2024 || int(at.Month()) != 6 || at.Day() != 3 {
		t.Fatalf("start = %v", at)
	}
}

func TestLoadRejectsMalformedJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected parse error")
	}
}
