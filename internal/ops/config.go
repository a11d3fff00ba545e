package ops

import (
	"encoding/json"
	"os"
	"time"

	"github.com/yanun0323/errors"

	"main/internal/backtest"
	"main/internal/risk"
	"main/internal/sizing"
	"main/internal/strategy"
	"main/pkg/exception"
)

// FileConfig mirrors the JSON config layout.
type FileConfig struct {
	InitialCapital float64 `json:"initialCapital"`
	CashBufferPct  float64 `json:"cashBufferPct"`
	SizingMethod   string  `json:"sizingMethod"`
	QueueSize      int     `json:"queueSize"`

	Sizing sizing.Config              `json:"sizing"`
	Costs  backtest.CostConfig        `json:"costs"`
	Checks backtest.OrderChecksConfig `json:"checks"`
	Limits risk.Limits                `json:"limits"`

	Strategies []StrategyConfig `json:"strategies"`
	Data       DataConfig       `json:"data"`
}

// StrategyConfig selects one strategy variant and its parameters. Only
// the section matching Type is read.
type StrategyConfig struct {
	Type          string                        `json:"type"`
	Crossover     *strategy.CrossoverConfig     `json:"crossover,omitempty"`
	MeanReversion *strategy.MeanReversionConfig `json:"meanReversion,omitempty"`
	Momentum      *strategy.MomentumConfig      `json:"momentum,omitempty"`
	Rotation      *strategy.RotationConfig      `json:"rotation,omitempty"`
}

// DataConfig selects the market data source: per-symbol CSV files or a
// deterministic synthetic generator.
type DataConfig struct {
	CSVDir    string           `json:"csvDir"`
	Symbols   []string         `json:"symbols"`
	Synthetic *SyntheticConfig `json:"synthetic,omitempty"`
}

// SyntheticConfig parametrizes the generated walk.
type SyntheticConfig struct {
	Symbols   []string `json:"symbols"`
	Start     string   `json:"start"`
	BasePrice float64  `json:"basePrice"`
	Amplitude float64  `json:"amplitude"`
	Drift     float64  `json:"drift"`
	Steps     int      `json:"steps"`
}

// StartTime parses the configured start date.
func (c SyntheticConfig) StartTime() (time.Time, error) {
	if c.Start == "" {
		return time.Date(2022, 1, 3, 0, 0, 0, 0, time.UTC), nil
	}
	return time.Parse("2006-01-02", c.Start)
}

// Loaded is the resolved configuration ready for use.
type Loaded struct {
	Engine     backtest.EngineConfig
	Strategies []strategy.Strategy
	Data       DataConfig
}

// Load reads a JSON config file and resolves it, failing fast on any
// invalid value so a run never starts half-configured.
func Load(path string) (Loaded, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Loaded{}, errors.Wrapf(err, "read config %s", path)
	}
	var cfg FileConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Loaded{}, errors.Wrapf(err, "parse config %s", path)
	}
	return Resolve(cfg)
}

// Resolve validates a parsed FileConfig and builds the strategies.
func Resolve(cfg FileConfig) (Loaded, error) {
	if cfg.InitialCapital <= 0 {
		return Loaded{}, errors.Wrapf(exception.ErrInvalidCapital,
			"initial capital %.2f", cfg.InitialCapital)
	}
	method := sizing.Method(cfg.SizingMethod)
	if cfg.SizingMethod == "" {
		method = sizing.MethodFixedRatio
	}
	if !method.Valid() {
		return Loaded{}, errors.Wrapf(exception.ErrUnknownSizingMethod, "%q", cfg.SizingMethod)
	}
	if len(cfg.Strategies) == 0 {
		return Loaded{}, exception.ErrNoStrategies
	}

	strategies := make([]strategy.Strategy, 0, len(cfg.Strategies))
	for _, sc := range cfg.Strategies {
		s, err := buildStrategy(sc)
		if err != nil {
			return Loaded{}, err
		}
		strategies = append(strategies, s)
	}

	return Loaded{
		Engine: backtest.EngineConfig{
			InitialCapital: cfg.InitialCapital,
			CashBufferPct:  cfg.CashBufferPct,
			SizingMethod:   method,
			QueueSize:      cfg.QueueSize,
			Sizing:         cfg.Sizing,
			Costs:          cfg.Costs,
			Checks:         cfg.Checks,
			Limits:         cfg.Limits,
		},
		Strategies: strategies,
		Data:       cfg.Data,
	}, nil
}

func buildStrategy(cfg StrategyConfig) (strategy.Strategy, error) {
	switch cfg.Type {
	case "crossover":
		var c strategy.CrossoverConfig
		if cfg.Crossover != nil {
			c = *cfg.Crossover
		}
		return strategy.NewCrossover(c), nil
	case "mean_reversion":
		var c strategy.MeanReversionConfig
		if cfg.MeanReversion != nil {
			c = *cfg.MeanReversion
		}
		return strategy.NewMeanReversion(c), nil
	case "momentum":
		var c strategy.MomentumConfig
		if cfg.Momentum != nil {
			c = *cfg.Momentum
		}
		return strategy.NewMomentum(c), nil
	case "rotation":
		if cfg.Rotation == nil {
			return nil, errors.Errorf("rotation strategy requires a rotation section")
		}
		return strategy.NewRotation(*cfg.Rotation), nil
	default:
		return nil, errors.Errorf("unknown strategy type %q", cfg.Type)
	}
}
