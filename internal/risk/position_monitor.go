package risk

import (
	"sort"
	"time"

	"github.com/yanun0323/logs"
)

// PositionMonitorConfig tunes drift detection and loss alerts.
type PositionMonitorConfig struct {
	RebalanceThreshold float64
	RebalanceInterval  time.Duration
	AlertOnLargeLoss   *bool
	LargeLossThreshold float64
	MinAdjustmentValue float64
}

func (c PositionMonitorConfig) withDefaults() PositionMonitorConfig {
	if c.RebalanceThreshold <= 0 {
		c.RebalanceThreshold = 0.05
	}
	if c.RebalanceInterval <= 0 {
		c.RebalanceInterval = time.Hour
	}
	if c.LargeLossThreshold <= 0 {
		c.LargeLossThreshold = 0.05
	}
	if c.MinAdjustmentValue <= 0 {
		c.MinAdjustmentValue = 100
	}
	return c
}

func (c PositionMonitorConfig) alertOnLargeLoss() bool {
	if c.AlertOnLargeLoss == nil {
		return true
	}
	return *c.AlertOnLargeLoss
}

// TrackedPosition is the monitor's view of one holding.
type TrackedPosition struct {
	Quantity      int64
	AvgCost       float64
	MarketValue   float64
	TotalCost     float64
	UnrealizedPnL float64
	RealizedPnL   float64
	UpdatedAt     time.Time
}

// Drift compares one symbol's current weight against its target.
type Drift struct {
	Target   float64
	Current  float64
	Drift    float64
	DriftPct float64
}

// Recommendation is one suggested rebalancing trade, sized by value.
type Recommendation struct {
	Symbol       string
	Action       string
	TargetValue  float64
	CurrentValue float64
	Adjustment   float64
}

// RebalanceCheck is the outcome of a drift evaluation.
type RebalanceCheck struct {
	Needed          bool
	Reason          string
	MaxDrift        float64
	Drifts          map[string]Drift
	TotalValue      float64
	Recommendations []Recommendation
}

// PnLSummary aggregates P&L across tracked positions.
type PnLSummary struct {
	Unrealized float64
	Realized   float64
	Total      float64
	TotalCost  float64
	ReturnPct  float64
}

// PerformanceMetrics summarizes the tracked book.
type PerformanceMetrics struct {
	TotalValue       float64
	TotalPositions   int
	WinningPositions int
	LosingPositions  int
	WinRate          float64
	PnL              PnLSummary
}

// PositionMonitor tracks per-position P&L and flags target-weight drift.
// All timestamps come from the caller so replayed runs stay deterministic.
type PositionMonitor struct {
	cfg PositionMonitorConfig

	positions     map[string]*TrackedPosition
	targetWeights map[string]float64
	lastCheck     time.Time
}

// NewPositionMonitor creates the monitor.
func NewPositionMonitor(cfg PositionMonitorConfig) *PositionMonitor {
	return &PositionMonitor{
		cfg:           cfg.withDefaults(),
		positions:     make(map[string]*TrackedPosition),
		targetWeights: make(map[string]float64),
	}
}

// SetTargetWeights replaces the target allocation. Weights are expected
// to sum to roughly one.
func (m *PositionMonitor) SetTargetWeights(weights map[string]float64) {
	total := 0.0
	for _, w := range weights {
		total += w
	}
	if total < 0.99 || total > 1.01 {
		logs.Warnf("target weights sum to %.2f%%, not 100%%", total*100)
	}
	m.targetWeights = make(map[string]float64, len(weights))
	for symbol, w := range weights {
		m.targetWeights[symbol] = w
	}
}

// Update records the latest state of one position. lastPrice, when
// positive, values the sold portion for realized P&L on a reduction.
func (m *PositionMonitor) Update(now time.Time, symbol string, quantity int64, avgCost, currentPrice, lastPrice float64) {
	pos, ok := m.positions[symbol]
	if !ok {
		pos = &TrackedPosition{}
		m.positions[symbol] = pos
	}
	oldQuantity := pos.Quantity

	pos.Quantity = quantity
	pos.AvgCost = avgCost
	pos.MarketValue = float64(quantity) * currentPrice
	pos.TotalCost = float64(quantity) * avgCost
	pos.UnrealizedPnL = pos.MarketValue - pos.TotalCost
	pos.UpdatedAt = now

	if quantity < oldQuantity && lastPrice > 0 {
		sold := oldQuantity - quantity
		pos.RealizedPnL += (lastPrice - avgCost) * float64(sold)
	}

	if m.cfg.alertOnLargeLoss() && pos.TotalCost > 0 {
		lossPct := pos.UnrealizedPnL / pos.TotalCost
		if lossPct < -m.cfg.LargeLossThreshold {
			logs.Warnf("large loss alert: %s down %.2f%% (%.2f)",
				symbol, lossPct*100, pos.UnrealizedPnL)
		}
	}
}

// Remove drops a closed position.
func (m *PositionMonitor) Remove(symbol string) {
	if _, ok := m.positions[symbol]; ok {
		delete(m.positions, symbol)
		logs.Infof("position removed: %s", symbol)
	}
}

// Position returns a copy of one tracked position.
func (m *PositionMonitor) Position(symbol string) (TrackedPosition, bool) {
	pos, ok := m.positions[symbol]
	if !ok {
		return TrackedPosition{}, false
	}
	return *pos, true
}

// TotalValue sums market values across positions.
func (m *PositionMonitor) TotalValue() float64 {
	total := 0.0
	for _, pos := range m.positions {
		total += pos.MarketValue
	}
	return total
}

// TotalPnL aggregates realized and unrealized P&L.
func (m *PositionMonitor) TotalPnL() PnLSummary {
	var s PnLSummary
	for _, pos := range m.positions {
		s.Unrealized += pos.UnrealizedPnL
		s.Realized += pos.RealizedPnL
		s.TotalCost += pos.TotalCost
	}
	s.Total = s.Unrealized + s.Realized
	if s.TotalCost > 0 {
		s.ReturnPct = s.Total / s.TotalCost
	}
	return s
}

// CheckRebalance evaluates drift against targets, at most once per
// configured interval.
func (m *PositionMonitor) CheckRebalance(now time.Time) RebalanceCheck {
	if !m.lastCheck.IsZero() && now.Sub(m.lastCheck) < m.cfg.RebalanceInterval {
		return RebalanceCheck{Needed: false, Reason: "checked recently"}
	}
	m.lastCheck = now

	if len(m.targetWeights) == 0 {
		return RebalanceCheck{Needed: false, Reason: "no target weights set"}
	}
	totalValue := m.TotalValue()
	if totalValue == 0 {
		return RebalanceCheck{Needed: false, Reason: "no positions"}
	}

	drifts := make(map[string]Drift, len(m.targetWeights))
	maxDrift := 0.0
	for symbol, target := range m.targetWeights {
		current := 0.0
		if pos, ok := m.positions[symbol]; ok {
			current = pos.MarketValue / totalValue
		}
		drift := current - target
		if drift < 0 {
			drift = -drift
		}
		d := Drift{Target: target, Current: current, Drift: drift}
		if target > 0 {
			d.DriftPct = drift / target
		}
		drifts[symbol] = d
		if drift > maxDrift {
			maxDrift = drift
		}
	}

	check := RebalanceCheck{
		MaxDrift:   maxDrift,
		Drifts:     drifts,
		TotalValue: totalValue,
	}
	if maxDrift > m.cfg.RebalanceThreshold {
		check.Needed = true
		check.Reason = "max drift exceeds threshold"
		check.Recommendations = m.recommendations(drifts, totalValue)
	} else {
		check.Reason = "max drift within threshold"
	}
	return check
}

func (m *PositionMonitor) recommendations(drifts map[string]Drift, totalValue float64) []Recommendation {
	symbols := make([]string, 0, len(drifts))
	for symbol := range drifts {
		symbols = append(symbols, symbol)
	}
	sort.Strings(symbols)

	var out []Recommendation
	for _, symbol := range symbols {
		d := drifts[symbol]
		if d.Drift < m.cfg.RebalanceThreshold {
			continue
		}
		targetValue := totalValue * d.Target
		pos, ok := m.positions[symbol]
		if !ok {
			out = append(out, Recommendation{
				Symbol:      symbol,
				Action:      "BUY",
				TargetValue: targetValue,
				Adjustment:  targetValue,
			})
			continue
		}
		adjustment := targetValue - pos.MarketValue
		abs := adjustment
		if abs < 0 {
			abs = -abs
		}
		if abs <= m.cfg.MinAdjustmentValue {
			continue
		}
		action := "BUY"
		if adjustment < 0 {
			action = "SELL"
		}
		out = append(out, Recommendation{
			Symbol:       symbol,
			Action:       action,
			TargetValue:  targetValue,
			CurrentValue: pos.MarketValue,
			Adjustment:   abs,
		})
	}
	return out
}

// Metrics summarizes the tracked book.
func (m *PositionMonitor) Metrics() PerformanceMetrics {
	pm := PerformanceMetrics{
		TotalValue:     m.TotalValue(),
		TotalPositions: len(m.positions),
		PnL:            m.TotalPnL(),
	}
	for _, pos := range m.positions {
		if pos.UnrealizedPnL > 0 {
			pm.WinningPositions++
		} else if pos.UnrealizedPnL < 0 {
			pm.LosingPositions++
		}
	}
	if pm.TotalPositions > 0 {
		pm.WinRate = float64(pm.WinningPositions) / float64(pm.TotalPositions)
	}
	return pm
}
