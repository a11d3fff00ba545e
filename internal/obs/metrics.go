package obs

import (
	"sync/atomic"

	"main/internal/schema"
)

const maxAlertLevel = int(schema.AlertLevelCircuitBreaker)

// Metrics collects lightweight counters over a single run.
type Metrics struct {
	bars        uint64
	signals     uint64
	orders      uint64
	fills       uint64
	rejections  uint64
	queueDrops  uint64
	alertCounts [maxAlertLevel + 1]uint64
}

// NewMetrics returns zeroed counters.
func NewMetrics() *Metrics { return &Metrics{} }

// Snapshot is a point-in-time view of run counters.
type Snapshot struct {
	Bars       uint64
	Signals    uint64
	Orders     uint64
	Fills      uint64
	Rejections uint64
	QueueDrops uint64
	Warnings   uint64
	Limits     uint64
	Breakers   uint64
}

// CountBar records one processed market observation.
func (m *Metrics) CountBar() { atomic.AddUint64(&m.bars, 1) }

// CountSignal records one emitted signal.
func (m *Metrics) CountSignal() { atomic.AddUint64(&m.signals, 1) }

// CountOrder records one sizing-approved order.
func (m *Metrics) CountOrder() { atomic.AddUint64(&m.orders, 1) }

// CountFill records one simulated fill.
func (m *Metrics) CountFill() { atomic.AddUint64(&m.fills, 1) }

// CountRejection records one signal rejected by risk or sizing.
func (m *Metrics) CountRejection() { atomic.AddUint64(&m.rejections, 1) }

// CountQueueDrop records one signal dropped by a full queue.
func (m *Metrics) CountQueueDrop() { atomic.AddUint64(&m.queueDrops, 1) }

// CountAlert records one risk alert by level.
func (m *Metrics) CountAlert(level schema.AlertLevel) {
	idx := int(level)
	if idx < 0 || idx > maxAlertLevel {
		return
	}
	atomic.AddUint64(&m.alertCounts[idx], 1)
}

// Snapshot returns the current counter values.
func (m *Metrics) Snapshot() Snapshot {
	return Snapshot{
		Bars:       atomic.LoadUint64(&m.bars),
		Signals:    atomic.LoadUint64(&m.signals),
		Orders:     atomic.LoadUint64(&m.orders),
		Fills:      atomic.LoadUint64(&m.fills),
		Rejections: atomic.LoadUint64(&m.rejections),
		QueueDrops: atomic.LoadUint64(&m.queueDrops),
		Warnings:   atomic.LoadUint64(&m.alertCounts[schema.AlertLevelWarning]),
		Limits:     atomic.LoadUint64(&m.alertCounts[schema.AlertLevelLimit]),
		Breakers:   atomic.LoadUint64(&m.alertCounts[schema.AlertLevelCircuitBreaker]),
	}
}
