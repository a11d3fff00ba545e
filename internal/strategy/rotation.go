package strategy

import (
	"math"
	"sort"
	"time"

	"github.com/yanun0323/logs"

	"main/internal/schema"
)

// RotationConfig parametrizes the regime-aware weekly rotation strategy.
type RotationConfig struct {
	IndexSymbol    string
	StockUniverse  []string
	ETFUniverse    []string
	DefensiveAsset string

	StockAllocation          float64
	DefensiveStockAllocation float64
	TopStocks                int
	TopETFs                  int

	MomentumLookback   int
	VolatilityLookback int
	TrendMAShort       int
	TrendMALong        int

	MinStockMomentum    float64
	MinETFMomentum      float64
	MaxStockVolatility  float64
	VolAdjustedMomentum *bool

	// MaxDrawdownPct <= 0 disables drawdown mode entirely.
	MaxDrawdownPct     float64
	CooldownWeeks      int
	MinDefensiveWeeks  int
	DrawdownRecoverPct float64

	MissingDataToleranceDays int
	MaxTotalWeight           float64
	MaxPositionWeight        float64
	CashBufferPct            float64
	MinOrderValue            float64
	MaxOrderValue            float64
	LotSize                  int64
	InitialCapital           float64
}

func (c RotationConfig) withDefaults() RotationConfig {
	if c.StockAllocation == 0 {
		c.StockAllocation = 0.4
	}
	if c.TopStocks <= 0 {
		c.TopStocks = 10
	}
	if c.TopETFs <= 0 {
		c.TopETFs = 3
	}
	if c.MomentumLookback <= 0 {
		c.MomentumLookback = 60
	}
	if c.VolatilityLookback <= 0 {
		c.VolatilityLookback = 20
	}
	if c.TrendMAShort <= 0 {
		c.TrendMAShort = 60
	}
	if c.TrendMALong <= 0 {
		c.TrendMALong = 120
	}
	if c.MaxStockVolatility <= 0 {
		c.MaxStockVolatility = 0.05
	}
	if c.CooldownWeeks <= 0 {
		c.CooldownWeeks = 4
	}
	if c.MinDefensiveWeeks <= 0 {
		c.MinDefensiveWeeks = 4
	}
	if c.DrawdownRecoverPct <= 0 {
		if c.MaxDrawdownPct > 0 {
			c.DrawdownRecoverPct = c.MaxDrawdownPct * 0.6
		} else {
			c.DrawdownRecoverPct = 0.1
		}
	}
	if c.MissingDataToleranceDays <= 0 {
		c.MissingDataToleranceDays = 5
	}
	if c.MaxTotalWeight <= 0 {
		c.MaxTotalWeight = 0.95
	}
	if c.MaxPositionWeight == 0 {
		c.MaxPositionWeight = 0.08
	}
	if c.CashBufferPct <= 0 {
		c.CashBufferPct = 0.05
	}
	if c.MinOrderValue <= 0 {
		c.MinOrderValue = 1000
	}
	if c.MaxOrderValue <= 0 {
		c.MaxOrderValue = 3000000
	}
	if c.LotSize <= 0 {
		c.LotSize = 100
	}
	if c.InitialCapital <= 0 {
		c.InitialCapital = 1000000
	}
	return c
}

func (c RotationConfig) volAdjusted() bool {
	if c.VolAdjustedMomentum == nil {
		return true
	}
	return *c.VolAdjustedMomentum
}

// rebalancePhase is the two-phase rebalance sequencer state. Sells are
// emitted first; buys wait for the next eligible event so fills of the
// sell leg are settled before cash is committed again.
type rebalancePhase uint8

const (
	phaseSelect rebalancePhase = iota
	phasePendingBuy
)

// Rotation rotates a stock and ETF universe weekly, gated by a market
// regime filter, with a defensive drawdown mode.
type Rotation struct {
	cfg  RotationConfig
	book *PositionBook

	history    *HistoryArena
	lastPrices map[string]float64
	lastSeen   map[string]time.Time
	seenDay    time.Time
	seenToday  map[string]struct{}
	allSymbols map[string]struct{}

	phase             rebalancePhase
	pendingBuyWeights map[string]float64
	lastRebalanceWeek int
	lastRebalanceDay  time.Time

	cash       float64
	equityPeak float64

	riskOffUntil      time.Time
	drawdownModeUntil time.Time

	portfolio PortfolioView
}

// NewRotation creates the strategy.
func NewRotation(cfg RotationConfig) *Rotation {
	cfg = cfg.withDefaults()
	maxLookback := cfg.MomentumLookback
	if cfg.VolatilityLookback > maxLookback {
		maxLookback = cfg.VolatilityLookback
	}
	if cfg.TrendMALong > maxLookback {
		maxLookback = cfg.TrendMALong
	}

	all := make(map[string]struct{})
	for _, s := range cfg.StockUniverse {
		all[s] = struct{}{}
	}
	for _, s := range cfg.ETFUniverse {
		all[s] = struct{}{}
	}
	if cfg.IndexSymbol != "" {
		all[cfg.IndexSymbol] = struct{}{}
	}
	if cfg.DefensiveAsset != "" {
		all[cfg.DefensiveAsset] = struct{}{}
	}

	return &Rotation{
		cfg:        cfg,
		book:       NewPositionBook(),
		history:    NewHistoryArena(maxLookback + 1),
		lastPrices: make(map[string]float64),
		lastSeen:   make(map[string]time.Time),
		seenToday:  make(map[string]struct{}),
		allSymbols: all,
		cash:       cfg.InitialCapital,
		equityPeak: cfg.InitialCapital,
	}
}

// Name identifies the strategy.
func (s *Rotation) Name() string { return "rotation" }

// BindPortfolio gives the strategy a read-only ledger view.
func (s *Rotation) BindPortfolio(view PortfolioView) { s.portfolio = view }

// OnFill updates the local book and, without a bound portfolio, the
// tracked cash.
func (s *Rotation) OnFill(fill schema.Fill) {
	s.book.ApplyFill(fill)
	if s.portfolio != nil {
		return
	}
	gross := fill.Price * float64(fill.Quantity)
	switch fill.Side {
	case schema.OrderSideBuy:
		s.cash -= gross + fill.Commission
	case schema.OrderSideSell:
		s.cash += gross - fill.Commission
	}
}

// OnBar records the observation and rebalances when the weekly gate opens.
func (s *Rotation) OnBar(bar schema.Bar, emit func(schema.Signal)) {
	if bar.Close <= 0 {
		return
	}
	symbol := bar.Symbol
	s.lastPrices[symbol] = bar.Close
	s.history.Push(symbol, bar.Close)

	day := dayOf(bar.Time)
	if !day.Equal(s.seenDay) {
		s.seenDay = day
		s.seenToday = make(map[string]struct{})
	}
	s.seenToday[symbol] = struct{}{}
	s.lastSeen[symbol] = day

	if !s.readyForRebalance(day) {
		return
	}
	s.rebalance(day, emit)
}

func (s *Rotation) readyForRebalance(day time.Time) bool {
	if !s.allSymbolsSeen(day) {
		return false
	}
	if !s.hasMinHistory(s.cfg.IndexSymbol, s.cfg.TrendMALong) {
		return false
	}
	if s.phase == phasePendingBuy {
		// buys settle on a later event, never the sell day itself
		return !day.Equal(s.lastRebalanceDay)
	}
	return s.lastRebalanceWeek != weekKey(day)
}

func (s *Rotation) rebalance(day time.Time, emit func(schema.Signal)) {
	s.lastRebalanceDay = day
	s.lastRebalanceWeek = weekKey(day)

	equity := s.currentEquity()
	drawdown := s.updateDrawdown(equity)

	riskOn := s.marketRiskOn()
	if !s.riskOffUntil.IsZero() && day.Before(s.riskOffUntil) {
		riskOn = false
	}

	drawdownActive := s.updateDrawdownMode(day, drawdown, riskOn)
	if drawdownActive {
		riskOn = false

		targets := map[string]float64{}
		if s.cfg.DefensiveAsset != "" {
			targets[s.cfg.DefensiveAsset] = s.cfg.MaxTotalWeight
		}
		s.emitRebalanceOrders(targets, false, emit)
		logs.Warnf("rotation defensive mode, drawdown %.2f%%", drawdown*100)
		return
	}

	if s.phase == phasePendingBuy {
		targets := s.pendingBuyWeights
		s.pendingBuyWeights = nil
		s.phase = phaseSelect
		s.emitRebalanceOrders(targets, true, emit)
		return
	}

	etfRanked := s.rankAssets(s.cfg.ETFUniverse, s.cfg.MinETFMomentum, false, 0)
	stockRanked := s.rankAssets(s.cfg.StockUniverse, s.cfg.MinStockMomentum, true, s.cfg.MaxStockVolatility)

	topETFs := topSymbols(etfRanked, s.cfg.TopETFs)
	topStocks := topSymbols(stockRanked, s.cfg.TopStocks)

	stockTotal := s.cfg.StockAllocation
	if !riskOn {
		stockTotal = s.cfg.DefensiveStockAllocation
	}
	etfTotal := 1.0 - stockTotal
	if etfTotal < 0 {
		etfTotal = 0
	}
	if len(topStocks) == 0 || stockTotal <= 0 {
		etfTotal += stockTotal
		stockTotal = 0
	}

	targets := make(map[string]float64)
	if len(topStocks) > 0 && stockTotal > 0 {
		per := stockTotal / float64(len(topStocks))
		for _, symbol := range topStocks {
			targets[symbol] = per
		}
	}
	if len(topETFs) > 0 && etfTotal > 0 {
		per := etfTotal / float64(len(topETFs))
		for _, symbol := range topETFs {
			targets[symbol] += per
		}
	} else if etfTotal > 0 && s.cfg.DefensiveAsset != "" {
		targets[s.cfg.DefensiveAsset] = etfTotal
	}

	s.emitRebalanceOrders(targets, false, emit)
	logs.Infof("rotation rebalance, risk_on=%v, targets=%d, drawdown=%.2f%%",
		riskOn, len(targets), drawdown*100)
}

func (s *Rotation) emitRebalanceOrders(targets map[string]float64, buyOnly bool, emit func(schema.Signal)) {
	equity := s.currentEquity()
	if equity <= 0 {
		return
	}

	targets = s.capWeights(targets)

	targetQty := make(map[string]int64, len(targets))
	for symbol, weight := range targets {
		price := s.lastPrices[symbol]
		if price <= 0 {
			continue
		}
		qty := lotFloor(equity*weight/price, s.cfg.LotSize)
		if qty > 0 {
			targetQty[symbol] = qty
		}
	}

	type sellOrder struct {
		symbol string
		qty    int64
		reason string
	}
	var sells []sellOrder
	if !buyOnly {
		for _, symbol := range sortedKeysInt64(s.book.Holdings()) {
			held := s.book.Quantity(symbol)
			want, ok := targetQty[symbol]
			if !ok {
				if s.orderValue(symbol, held) >= s.cfg.MinOrderValue {
					sells = append(sells, sellOrder{symbol, held, "rebalance_exit"})
				}
				continue
			}
			delta := want - held
			if delta < -s.cfg.LotSize {
				qty := -delta
				if s.orderValue(symbol, qty) >= s.cfg.MinOrderValue {
					sells = append(sells, sellOrder{symbol, qty, "rebalance_trim"})
				}
			}
		}
	}

	emitSells := func() {
		for _, so := range sells {
			for _, chunk := range s.splitQuantity(so.symbol, so.qty) {
				emit(schema.Signal{
					Symbol:   so.symbol,
					Side:     schema.OrderSideSell,
					Strength: 1.0,
					Quantity: chunk,
					Reason:   so.reason,
				})
			}
		}
	}

	if len(sells) > 0 && !buyOnly {
		emitSells()
		// defer buys until sell fills settle
		s.pendingBuyWeights = targets
		s.phase = phasePendingBuy
		return
	}

	available := s.availableCash()
	for _, symbol := range sortedWeightKeys(targetQty) {
		price := s.lastPrices[symbol]
		if price <= 0 {
			continue
		}
		delta := targetQty[symbol] - s.book.Quantity(symbol)
		if delta < s.cfg.LotSize {
			continue
		}

		remaining := delta
		for _, chunk := range s.splitQuantity(symbol, remaining) {
			value := float64(chunk) * price
			if value < s.cfg.MinOrderValue {
				continue
			}
			if value > available {
				maxQty := lotFloor(available/price, s.cfg.LotSize)
				if maxQty < s.cfg.LotSize {
					break
				}
				if maxQty < chunk {
					chunk = maxQty
					value = float64(chunk) * price
				}
				if value < s.cfg.MinOrderValue {
					continue
				}
			}
			emit(schema.Signal{
				Symbol:   symbol,
				Side:     schema.OrderSideBuy,
				Strength: 1.0,
				Quantity: chunk,
				Reason:   "rebalance_buy",
				Meta:     map[string]float64{"target_weight": targets[symbol]},
			})
			remaining -= chunk
			available -= value
			if available < 0 {
				available = 0
			}
			if remaining < s.cfg.LotSize {
				break
			}
		}
	}
}

func (s *Rotation) capWeights(targets map[string]float64) map[string]float64 {
	capped := make(map[string]float64, len(targets))
	for symbol, weight := range targets {
		if s.cfg.MaxPositionWeight > 0 && weight > s.cfg.MaxPositionWeight {
			weight = s.cfg.MaxPositionWeight
		}
		capped[symbol] = weight
	}
	total := 0.0
	for _, weight := range capped {
		total += weight
	}
	if total > s.cfg.MaxTotalWeight && s.cfg.MaxTotalWeight > 0 {
		scale := s.cfg.MaxTotalWeight / total
		for symbol := range capped {
			capped[symbol] *= scale
		}
	}
	return capped
}

func (s *Rotation) availableCash() float64 {
	if s.portfolio != nil {
		if cash := s.portfolio.AvailableCash(); cash > 0 {
			return cash
		}
		return 0
	}
	cash := s.cash * (1.0 - s.cfg.CashBufferPct)
	if cash < 0 {
		return 0
	}
	return cash
}

func (s *Rotation) orderValue(symbol string, qty int64) float64 {
	return s.lastPrices[symbol] * float64(qty)
}

func (s *Rotation) splitQuantity(symbol string, qty int64) []int64 {
	price := s.lastPrices[symbol]
	if price <= 0 {
		return nil
	}
	maxQty := lotFloor(s.cfg.MaxOrderValue/price, s.cfg.LotSize)
	if maxQty <= 0 {
		return []int64{qty}
	}
	var chunks []int64
	remaining := qty
	for remaining >= s.cfg.LotSize {
		chunk := remaining
		if chunk > maxQty {
			chunk = maxQty
		}
		if chunk < s.cfg.LotSize {
			break
		}
		if s.orderValue(symbol, chunk) < s.cfg.MinOrderValue {
			break
		}
		chunks = append(chunks, chunk)
		remaining -= chunk
	}
	return chunks
}

type rankedAsset struct {
	symbol string
	score  float64
}

func (s *Rotation) rankAssets(universe []string, minMomentum float64, requireTrend bool, volatilityCap float64) []rankedAsset {
	var ranked []rankedAsset
	for _, symbol := range universe {
		if !s.hasMinHistory(symbol, s.cfg.MomentumLookback) {
			continue
		}
		if s.lastPrices[symbol] <= 0 {
			continue
		}
		if requireTrend && !s.trendFilter(symbol) {
			continue
		}
		momentum, ok := s.momentum(symbol)
		if !ok || momentum < minMomentum {
			continue
		}
		volatility, hasVol := s.volatility(symbol)
		if volatilityCap > 0 && hasVol && volatility > volatilityCap {
			continue
		}
		score := momentum
		if s.cfg.volAdjusted() && hasVol && volatility > 0 {
			score = momentum / volatility
		}
		ranked = append(ranked, rankedAsset{symbol: symbol, score: score})
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].score > ranked[j].score })
	return ranked
}

func (s *Rotation) momentum(symbol string) (float64, bool) {
	ring := s.history.Ring(symbol)
	if ring == nil || ring.Len() <= s.cfg.MomentumLookback {
		return 0, false
	}
	prices := ring.Values()
	start := prices[len(prices)-s.cfg.MomentumLookback]
	if start <= 0 {
		return 0, false
	}
	return prices[len(prices)-1]/start - 1.0, true
}

func (s *Rotation) volatility(symbol string) (float64, bool) {
	ring := s.history.Ring(symbol)
	if ring == nil || ring.Len() <= s.cfg.VolatilityLookback {
		return 0, false
	}
	prices := ring.Values()
	prices = prices[len(prices)-s.cfg.VolatilityLookback:]
	var returns []float64
	for i := 1; i < len(prices); i++ {
		if prices[i-1] <= 0 {
			continue
		}
		returns = append(returns, prices[i]/prices[i-1]-1.0)
	}
	if len(returns) < 2 {
		return 0, false
	}
	mean := 0.0
	for _, r := range returns {
		mean += r
	}
	mean /= float64(len(returns))
	variance := 0.0
	for _, r := range returns {
		variance += (r - mean) * (r - mean)
	}
	variance /= float64(len(returns))
	return math.Sqrt(variance), true
}

func (s *Rotation) trendFilter(symbol string) bool {
	ring := s.history.Ring(symbol)
	if ring == nil || ring.Len() < s.cfg.TrendMALong {
		return false
	}
	prices := ring.Values()
	return prices[len(prices)-1] > mean(prices[len(prices)-s.cfg.TrendMALong:])
}

func (s *Rotation) marketRiskOn() bool {
	ring := s.history.Ring(s.cfg.IndexSymbol)
	if ring == nil || ring.Len() < s.cfg.TrendMALong {
		return false
	}
	prices := ring.Values()
	maShort := mean(prices[len(prices)-s.cfg.TrendMAShort:])
	maLong := mean(prices[len(prices)-s.cfg.TrendMALong:])
	return prices[len(prices)-1] > maLong && maShort >= maLong
}

func (s *Rotation) currentEquity() float64 {
	if s.portfolio != nil {
		return s.portfolio.TotalValue()
	}
	total := s.cash
	for symbol, qty := range s.book.Holdings() {
		total += s.lastPrices[symbol] * float64(qty)
	}
	return total
}

func (s *Rotation) updateDrawdown(equity float64) float64 {
	if equity > s.equityPeak {
		s.equityPeak = equity
	}
	if s.equityPeak <= 0 {
		return 0
	}
	return (s.equityPeak - equity) / s.equityPeak
}

func (s *Rotation) updateDrawdownMode(day time.Time, drawdown float64, riskOn bool) bool {
	if s.cfg.MaxDrawdownPct <= 0 {
		return false
	}
	if drawdown >= s.cfg.MaxDrawdownPct {
		s.drawdownModeUntil = day.AddDate(0, 0, 7*s.cfg.MinDefensiveWeeks)
		s.riskOffUntil = day.AddDate(0, 0, 7*s.cfg.CooldownWeeks)
		return true
	}
	if s.drawdownModeUntil.IsZero() {
		return false
	}
	if day.Before(s.drawdownModeUntil) {
		return true
	}
	if drawdown <= s.cfg.DrawdownRecoverPct && riskOn {
		s.drawdownModeUntil = time.Time{}
		return false
	}
	return true
}

func (s *Rotation) hasMinHistory(symbol string, minLen int) bool {
	ring := s.history.Ring(symbol)
	return ring != nil && ring.Len() >= minLen
}

func (s *Rotation) allSymbolsSeen(day time.Time) bool {
	tolerance := time.Duration(s.cfg.MissingDataToleranceDays) * 24 * time.Hour
	active := 0
	for symbol := range s.allSymbols {
		seen, ok := s.lastSeen[symbol]
		if !ok || day.Sub(seen) > tolerance {
			continue
		}
		active++
		if _, ok := s.seenToday[symbol]; !ok {
			return false
		}
	}
	return active > 0
}

func weekKey(day time.Time) int {
	year, week := day.ISOWeek()
	return year*100 + week
}

func dayOf(at time.Time) time.Time {
	y, m, d := at.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, at.Location())
}

func topSymbols(ranked []rankedAsset, n int) []string {
	if n > len(ranked) {
		n = len(ranked)
	}
	out := make([]string, 0, n)
	for _, r := range ranked[:n] {
		out = append(out, r.symbol)
	}
	return out
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func lotFloor(qty float64, lot int64) int64 {
	if lot <= 0 || qty <= 0 {
		return 0
	}
	return int64(qty) / lot * lot
}

func sortedKeysInt64(m map[string]int64) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func sortedWeightKeys(m map[string]int64) []string {
	return sortedKeysInt64(m)
}
