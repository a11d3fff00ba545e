package risk

import (
	"math"
	"sort"
	"sync"
	"time"

	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"

	"main/internal/schema"
	"main/pkg/exception"
)

// State is the monitor's trading gate.
type State uint8

const (
	StateRunning State = iota
	StateHalted
)

// String implements fmt.Stringer.
func (s State) String() string {
	switch s {
	case StateRunning:
		return "RUNNING"
	case StateHalted:
		return "HALTED"
	default:
		return "UNKNOWN"
	}
}

// Limits configures the monitoring rules. Zero disables a rule.
type Limits struct {
	MaxDailyLossPct      float64
	MaxDrawdownPct       float64
	MaxConcentrationPct  float64
	VolatilityMultiplier float64
}

func (l Limits) withDefaults() Limits {
	if l.MaxDailyLossPct == 0 {
		l.MaxDailyLossPct = 0.03
	}
	if l.MaxDrawdownPct == 0 {
		l.MaxDrawdownPct = 0.15
	}
	if l.MaxConcentrationPct == 0 {
		l.MaxConcentrationPct = 0.30
	}
	if l.VolatilityMultiplier == 0 {
		l.VolatilityMultiplier = 3.0
	}
	return l
}

const (
	warningFraction  = 0.7
	returnHistoryCap = 30
	alertRingCap     = 256
	minVolSamples    = 5
)

// Monitor watches equity and positions, raises alerts, and halts trading
// when a hard limit trips. It never re-runs on its own: Resume is the
// only way out of StateHalted.
type Monitor struct {
	mu sync.Mutex

	limits Limits

	state        State
	haltReason   string
	peakEquity   float64
	dayStart     float64
	currentDay   time.Time
	dailyReturns []float64
	alerts       []schema.RiskAlert

	checks    int64
	haltCount int64

	sink func(schema.RiskAlert)
}

// NewMonitor validates the limits and starts in StateRunning.
func NewMonitor(limits Limits) (*Monitor, error) {
	limits = limits.withDefaults()
	if limits.MaxDailyLossPct < 0 || limits.MaxDrawdownPct < 0 ||
		limits.MaxConcentrationPct < 0 || limits.VolatilityMultiplier < 0 {
		return nil, errors.Wrapf(exception.ErrInvalidThreshold,
			"limits %+v", limits)
	}
	return &Monitor{limits: limits, state: StateRunning}, nil
}

// SetAlertSink registers a callback invoked for every raised alert.
// The sink must not call back into the monitor.
func (m *Monitor) SetAlertSink(sink func(schema.RiskAlert)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sink = sink
}

// State returns the current trading gate.
func (m *Monitor) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// HaltReason names the rule that halted trading, empty while running.
func (m *Monitor) HaltReason() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.haltReason
}

// Resume clears a halt. Warm-up state (peak, daily baseline, history)
// survives so re-halting on the same breach is immediate.
func (m *Monitor) Resume() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == StateHalted {
		logs.Infof("risk monitor resumed, previous halt: %s", m.haltReason)
	}
	m.state = StateRunning
	m.haltReason = ""
}

// Update evaluates every rule against the equity snapshot taken at the
// simulated time now. positions maps symbol to market value.
func (m *Monitor) Update(now time.Time, equity float64, positions map[string]float64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.checks++
	m.rollDay(now, equity)

	if equity > m.peakEquity {
		m.peakEquity = equity
	}

	m.checkDailyLoss(now, equity)
	m.checkDrawdown(now, equity)
	m.checkConcentration(now, equity, positions)
	m.checkVolatility(now, equity)
}

// rollDay resets the daily baseline at a date boundary, snapshotting the
// finished day's return into the bounded history first.
func (m *Monitor) rollDay(now time.Time, equity float64) {
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	if day.Equal(m.currentDay) {
		return
	}
	if !m.currentDay.IsZero() && m.dayStart > 0 {
		ret := equity/m.dayStart - 1.0
		m.dailyReturns = append(m.dailyReturns, ret)
		if len(m.dailyReturns) > returnHistoryCap {
			m.dailyReturns = m.dailyReturns[len(m.dailyReturns)-returnHistoryCap:]
		}
	}
	m.currentDay = day
	m.dayStart = equity
}

func (m *Monitor) checkDailyLoss(now time.Time, equity float64) {
	if m.limits.MaxDailyLossPct <= 0 || m.dayStart <= 0 {
		return
	}
	loss := 1.0 - equity/m.dayStart
	if loss <= 0 {
		return
	}
	data := map[string]float64{"daily_loss": loss, "limit": m.limits.MaxDailyLossPct}
	switch {
	case loss >= m.limits.MaxDailyLossPct:
		m.halt(now, "daily_loss", data)
	case loss >= m.limits.MaxDailyLossPct*warningFraction:
		m.raise(now, "daily_loss", schema.AlertLevelWarning,
			"daily loss approaching limit", data)
	}
}

func (m *Monitor) checkDrawdown(now time.Time, equity float64) {
	if m.limits.MaxDrawdownPct <= 0 || m.peakEquity <= 0 {
		return
	}
	drawdown := 1.0 - equity/m.peakEquity
	if drawdown <= 0 {
		return
	}
	data := map[string]float64{"drawdown": drawdown, "limit": m.limits.MaxDrawdownPct}
	switch {
	case drawdown >= m.limits.MaxDrawdownPct:
		m.halt(now, "max_drawdown", data)
	case drawdown >= m.limits.MaxDrawdownPct*warningFraction:
		m.raise(now, "max_drawdown", schema.AlertLevelWarning,
			"drawdown approaching limit", data)
	}
}

func (m *Monitor) checkConcentration(now time.Time, equity float64, positions map[string]float64) {
	if m.limits.MaxConcentrationPct <= 0 || equity <= 0 {
		return
	}
	symbols := make([]string, 0, len(positions))
	for symbol := range positions {
		symbols = append(symbols, symbol)
	}
	sort.Strings(symbols)
	for _, symbol := range symbols {
		weight := positions[symbol] / equity
		if weight > m.limits.MaxConcentrationPct {
			m.raise(now, "position_concentration", schema.AlertLevelLimit,
				"position "+symbol+" exceeds concentration limit",
				map[string]float64{"weight": weight, "limit": m.limits.MaxConcentrationPct})
		}
	}
}

// checkVolatility flags a daily move larger than multiplier times the
// historical daily stddev. Warning only, never halts.
func (m *Monitor) checkVolatility(now time.Time, equity float64) {
	if m.limits.VolatilityMultiplier <= 0 || len(m.dailyReturns) < minVolSamples || m.dayStart <= 0 {
		return
	}
	mean := 0.0
	for _, r := range m.dailyReturns {
		mean += r
	}
	mean /= float64(len(m.dailyReturns))
	variance := 0.0
	for _, r := range m.dailyReturns {
		variance += (r - mean) * (r - mean)
	}
	variance /= float64(len(m.dailyReturns))
	stddev := math.Sqrt(variance)
	if stddev <= 0 {
		return
	}
	move := math.Abs(equity/m.dayStart - 1.0)
	limit := stddev * m.limits.VolatilityMultiplier
	if move > limit {
		m.raise(now, "abnormal_volatility", schema.AlertLevelWarning,
			"daily move abnormally large versus history",
			map[string]float64{"move": move, "stddev": stddev, "limit": limit})
	}
}

func (m *Monitor) halt(now time.Time, rule string, data map[string]float64) {
	m.raise(now, rule, schema.AlertLevelCircuitBreaker, "limit breached, trading halted", data)
	if m.state == StateHalted {
		return
	}
	m.state = StateHalted
	m.haltReason = rule
	m.haltCount++
	logs.Errorf("trading halted by %s rule", rule)
}

func (m *Monitor) raise(now time.Time, rule string, level schema.AlertLevel, message string, data map[string]float64) {
	alert := schema.RiskAlert{
		Time:    now,
		Level:   level,
		Rule:    rule,
		Message: message,
		Data:    data,
	}
	m.alerts = append(m.alerts, alert)
	if m.sink != nil {
		m.sink(alert)
	}
	if len(m.alerts) > alertRingCap {
		m.alerts = m.alerts[len(m.alerts)-alertRingCap:]
	}
}

// Alerts returns up to lastN most recent alerts, newest last, filtered
// by level unless level is AlertLevelUnknown.
func (m *Monitor) Alerts(level schema.AlertLevel, lastN int) []schema.RiskAlert {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []schema.RiskAlert
	for _, a := range m.alerts {
		if level != schema.AlertLevelUnknown && a.Level != level {
			continue
		}
		out = append(out, a)
	}
	if lastN > 0 && len(out) > lastN {
		out = out[len(out)-lastN:]
	}
	return out
}

// Metrics is a point-in-time summary of the monitor.
type Metrics struct {
	State        State
	HaltReason   string
	PeakEquity   float64
	DayStart     float64
	Checks       int64
	Halts        int64
	AlertCount   int
	ReturnsKnown int
}

// Snapshot returns the current metrics.
func (m *Monitor) Snapshot() Metrics {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Metrics{
		State:        m.state,
		HaltReason:   m.haltReason,
		PeakEquity:   m.peakEquity,
		DayStart:     m.dayStart,
		Checks:       m.checks,
		Halts:        m.haltCount,
		AlertCount:   len(m.alerts),
		ReturnsKnown: len(m.dailyReturns),
	}
}
