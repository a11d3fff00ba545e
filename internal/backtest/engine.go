package backtest

import (
	"context"

	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"

	"main/internal/bus"
	"main/internal/feed"
	"main/internal/obs"
	"main/internal/risk"
	"main/internal/schema"
	"main/internal/sizing"
	"main/internal/strategy"
	"main/pkg/exception"
)

// EngineConfig assembles the run-level knobs.
type EngineConfig struct {
	InitialCapital float64
	CashBufferPct  float64
	SizingMethod   sizing.Method
	QueueSize      int

	Sizing sizing.Config
	Costs  CostConfig
	Checks OrderChecksConfig
	Limits risk.Limits
}

// Engine replays market data through registered strategies, gates and
// fills the resulting signals, and keeps the only writable reference to
// the portfolio ledger.
type Engine struct {
	cfg        EngineConfig
	portfolio  *Portfolio
	strategies []strategy.Strategy
	sizer      *sizing.Sizer
	monitor    *risk.Monitor
	checks     *OrderChecks
	costs      *CostModel
	queue      *bus.Queue
	metrics    *obs.Metrics

	curve    []schema.EquityPoint
	trades   []schema.Fill
	outcomes []sizing.TradeOutcome
}

// NewEngine validates the configuration and wires the components. All
// configuration errors surface here, before any simulation step runs.
func NewEngine(cfg EngineConfig, strategies ...strategy.Strategy) (*Engine, error) {
	if len(strategies) == 0 {
		return nil, exception.ErrNoStrategies
	}
	if cfg.SizingMethod == "" {
		cfg.SizingMethod = sizing.MethodFixedRatio
	}
	if !cfg.SizingMethod.Valid() {
		return nil, errors.Wrapf(exception.ErrUnknownSizingMethod, "%q", cfg.SizingMethod)
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 1024
	}

	portfolio, err := NewPortfolio(cfg.InitialCapital, cfg.CashBufferPct)
	if err != nil {
		return nil, err
	}
	sizer, err := sizing.NewSizer(cfg.Sizing)
	if err != nil {
		return nil, err
	}
	monitor, err := risk.NewMonitor(cfg.Limits)
	if err != nil {
		return nil, err
	}

	e := &Engine{
		cfg:        cfg,
		portfolio:  portfolio,
		strategies: strategies,
		sizer:      sizer,
		monitor:    monitor,
		checks:     NewOrderChecks(cfg.Checks),
		costs:      NewCostModel(cfg.Costs),
		queue:      bus.NewQueue(cfg.QueueSize),
		metrics:    obs.NewMetrics(),
	}
	monitor.SetAlertSink(func(alert schema.RiskAlert) {
		e.metrics.CountAlert(alert.Level)
	})
	for _, s := range strategies {
		if aware, ok := s.(strategy.PortfolioAware); ok {
			aware.BindPortfolio(portfolio)
		}
	}
	return e, nil
}

// Portfolio exposes the ledger read-only.
func (e *Engine) Portfolio() *Portfolio { return e.portfolio }

// Monitor exposes the risk monitor, e.g. for Resume after a halt.
func (e *Engine) Monitor() *risk.Monitor { return e.monitor }

// Metrics returns the run counters.
func (e *Engine) Metrics() obs.Snapshot { return e.metrics.Snapshot() }

// Run replays the feed to completion and returns the performance
// report. Cancelling ctx stops feeding further observations; the report
// covers whatever was processed.
func (e *Engine) Run(ctx context.Context, replay *feed.Replay) (schema.Report, error) {
	for {
		if err := ctx.Err(); err != nil {
			logs.Infof("run cancelled after %d steps", len(e.curve))
			break
		}
		bars, ok := replay.Next()
		if !ok {
			break
		}
		e.step(bars)
	}

	analyzer := NewAnalyzer(e.cfg.InitialCapital)
	report := analyzer.Analyze(e.curve, e.trades, e.portfolio.Positions())
	logs.Infof("run complete: steps=%d trades=%d final=%.2f",
		len(e.curve), len(e.trades), report.FinalValue)
	return report, nil
}

// step processes one simulated period: every bar goes to every strategy
// in registration order, each observation's signals are settled before
// the next observation, and exactly one equity point is appended.
func (e *Engine) step(bars []schema.Bar) {
	if len(bars) == 0 {
		return
	}
	for _, bar := range bars {
		e.metrics.CountBar()
		e.portfolio.MarkPrice(bar.Symbol, bar.Close)
		for _, s := range e.strategies {
			s.OnBar(bar, e.emit)
		}
		e.settleSignals(bar)
	}

	stepTime := bars[0].Time
	e.monitor.Update(stepTime, e.portfolio.TotalValue(), e.portfolio.PositionValues())
	e.curve = append(e.curve, schema.EquityPoint{
		Date:     stepTime,
		Equity:   e.portfolio.TotalValue(),
		Cash:     e.portfolio.Cash(),
		Holdings: e.portfolio.HoldingsValue(),
	})
}

func (e *Engine) emit(signal schema.Signal) {
	e.metrics.CountSignal()
	if err := e.queue.TryPublish(signal); err != nil {
		e.metrics.CountQueueDrop()
		logs.Errorf("signal dropped: %+v", err)
	}
}

func (e *Engine) settleSignals(bar schema.Bar) {
	for _, signal := range e.queue.Drain() {
		e.process(signal, bar)
	}
}

func (e *Engine) process(signal schema.Signal, bar schema.Bar) {
	price := e.portfolio.LastPrice(signal.Symbol)
	if price <= 0 {
		e.metrics.CountRejection()
		return
	}

	quantity := signal.Quantity
	if quantity <= 0 {
		var err error
		quantity, err = e.sizeSignal(signal, price)
		if err != nil {
			e.metrics.CountRejection()
			logs.Errorf("sizing %s failed: %+v", signal.Symbol, err)
			return
		}
	}
	if quantity <= 0 {
		e.metrics.CountRejection()
		return
	}

	order := schema.Order{
		Symbol:   signal.Symbol,
		Side:     signal.Side,
		Quantity: quantity,
		Price:    price,
		Value:    float64(quantity) * price,
		Time:     bar.Time,
	}
	e.metrics.CountOrder()

	if err := e.checks.Check(order, e.portfolio, e.monitor.State()); err != nil {
		e.metrics.CountRejection()
		logs.Warnf("order rejected: %+v", err)
		return
	}
	e.fill(order)
}

// sizeSignal converts an unsized signal into a share quantity. Sell
// signals without a quantity exit the whole position.
func (e *Engine) sizeSignal(signal schema.Signal, price float64) (int64, error) {
	if signal.Side == schema.OrderSideSell {
		return e.portfolio.Quantity(signal.Symbol), nil
	}

	capital := e.portfolio.AvailableCash()
	if signal.Strength > 0 && signal.Strength < 1 {
		capital *= signal.Strength
	}
	if capital <= 0 {
		return 0, nil
	}

	params := sizing.Params{}
	if e.cfg.SizingMethod == sizing.MethodKelly {
		params = sizing.KellyParams(e.outcomes)
	}
	return e.sizer.Calculate(capital, price, e.cfg.SizingMethod, params)
}

func (e *Engine) fill(order schema.Order) {
	fillPrice := e.costs.FillPrice(order.Price, order.Side)
	costs := e.costs.Costs(order.Quantity, fillPrice, order.Side)

	if order.Side == schema.OrderSideSell {
		if pos, ok := e.portfolio.Position(order.Symbol); ok && pos.AvgCost > 0 {
			e.outcomes = append(e.outcomes, sizing.TradeOutcome{
				PnL: (fillPrice - pos.AvgCost) * float64(order.Quantity),
			})
		}
	}

	f := schema.Fill{
		Symbol:     order.Symbol,
		Side:       order.Side,
		Quantity:   order.Quantity,
		Price:      fillPrice,
		Commission: costs.Total,
		Time:       order.Time,
	}
	if err := e.portfolio.ApplyFill(f); err != nil {
		e.metrics.CountRejection()
		logs.Errorf("fill rejected: %+v", err)
		return
	}

	e.metrics.CountFill()
	e.trades = append(e.trades, f)
	for _, s := range e.strategies {
		s.OnFill(f)
	}
}
