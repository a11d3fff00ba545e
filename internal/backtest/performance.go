package backtest

import (
	"math"
	"sort"

	"main/internal/schema"
)

const (
	tradingDaysPerYear = 252.0
	riskFreeRate       = 0.03
)

// Analyzer turns an equity curve and trade log into a performance
// report. It is a pure computation over its inputs.
type Analyzer struct {
	initialCapital float64
}

// NewAnalyzer creates an analyzer for a run that started with the given
// capital.
func NewAnalyzer(initialCapital float64) *Analyzer {
	return &Analyzer{initialCapital: initialCapital}
}

// Analyze computes the full report. An empty curve yields a zero-valued
// report, never an error.
func (a *Analyzer) Analyze(curve []schema.EquityPoint, trades []schema.Fill, openPositions []schema.Position) schema.Report {
	report := schema.Report{
		InitialCapital: a.initialCapital,
		FinalValue:     a.initialCapital,
		EquityCurve:    curve,
		TradeLog:       trades,
		OpenPositions:  openPositions,
	}
	if len(curve) == 0 {
		return report
	}

	equity := make([]float64, len(curve))
	for i, pt := range curve {
		equity[i] = pt.Equity
	}

	report.FinalValue = equity[len(equity)-1]
	report.TotalReturn = (report.FinalValue - a.initialCapital) / a.initialCapital

	years := float64(len(equity)) / tradingDaysPerYear
	if years > 0 && 1+report.TotalReturn > 0 {
		report.AnnualizedReturn = math.Pow(1+report.TotalReturn, 1/years) - 1
	}

	returns := periodReturns(equity)
	report.Volatility = sampleStddev(returns) * math.Sqrt(tradingDaysPerYear)
	if report.Volatility > 0 {
		report.Sharpe = (report.AnnualizedReturn - riskFreeRate) / report.Volatility
	}
	report.Sortino = sortino(returns)

	report.MaxDrawdown, report.MaxDrawdownDuration = drawdowns(equity)
	if report.MaxDrawdown != 0 {
		report.Calmar = report.AnnualizedReturn / report.MaxDrawdown
	}

	report.Trades = a.analyzeTrades(trades)
	report.MonthlyReturns = a.monthlyReturns(curve)
	return report
}

func periodReturns(equity []float64) []float64 {
	if len(equity) < 2 {
		return nil
	}
	out := make([]float64, 0, len(equity)-1)
	for i := 1; i < len(equity); i++ {
		if equity[i-1] == 0 {
			continue
		}
		out = append(out, equity[i]/equity[i-1]-1)
	}
	return out
}

func sampleStddev(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	m := mean(values)
	sum := 0.0
	for _, v := range values {
		sum += (v - m) * (v - m)
	}
	return math.Sqrt(sum / float64(len(values)-1))
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

// sortino penalizes only downside deviation of excess returns.
func sortino(returns []float64) float64 {
	if len(returns) == 0 {
		return 0
	}
	dailyRF := riskFreeRate / tradingDaysPerYear
	var downside []float64
	for _, r := range returns {
		if excess := r - dailyRF; excess < 0 {
			downside = append(downside, excess)
		}
	}
	if len(downside) == 0 {
		return 0
	}
	downsideStd := sampleStddev(downside) * math.Sqrt(tradingDaysPerYear)
	if downsideStd == 0 {
		return 0
	}
	return (mean(returns)*tradingDaysPerYear - riskFreeRate) / downsideStd
}

// drawdowns returns the maximum peak-to-trough decline and the longest
// run of consecutive underwater periods.
func drawdowns(equity []float64) (maxDD float64, maxDuration int) {
	peak := math.Inf(-1)
	duration := 0
	for _, e := range equity {
		if e > peak {
			peak = e
		}
		dd := 0.0
		if peak > 0 {
			dd = (e - peak) / peak
		}
		if -dd > maxDD {
			maxDD = -dd
		}
		if dd < 0 {
			duration++
			if duration > maxDuration {
				maxDuration = duration
			}
		} else {
			duration = 0
		}
	}
	return maxDD, maxDuration
}

// analyzeTrades matches sells against the running average cost of prior
// buys, per symbol, and scores each realized exit as one trade outcome.
func (a *Analyzer) analyzeTrades(trades []schema.Fill) schema.TradeStats {
	stats := schema.TradeStats{TotalTrades: len(trades)}
	if len(trades) == 0 {
		return stats
	}

	type book struct {
		qty     int64
		avgCost float64
	}
	positions := make(map[string]*book)
	var pnls []float64

	for _, trade := range trades {
		switch trade.Side {
		case schema.OrderSideBuy:
			b, ok := positions[trade.Symbol]
			if !ok {
				b = &book{}
				positions[trade.Symbol] = b
			}
			totalCost := float64(b.qty)*b.avgCost + float64(trade.Quantity)*trade.Price
			b.qty += trade.Quantity
			b.avgCost = totalCost / float64(b.qty)

		case schema.OrderSideSell:
			b, ok := positions[trade.Symbol]
			if !ok || b.qty <= 0 || b.avgCost <= 0 {
				continue
			}
			pnls = append(pnls, (trade.Price-b.avgCost)/b.avgCost)
			b.qty -= trade.Quantity
		}
	}
	if len(pnls) == 0 {
		return stats
	}

	var wins, losses []float64
	largestWin, largestLoss := pnls[0], pnls[0]
	for _, p := range pnls {
		if p > 0 {
			wins = append(wins, p)
		} else if p < 0 {
			losses = append(losses, p)
		}
		if p > largestWin {
			largestWin = p
		}
		if p < largestLoss {
			largestLoss = p
		}
	}

	stats.WinRate = float64(len(wins)) / float64(len(pnls))
	stats.AvgWin = mean(wins)
	stats.AvgLoss = math.Abs(mean(losses))
	stats.LargestWin = largestWin
	stats.LargestLoss = largestLoss
	stats.AvgTradeReturn = mean(pnls)

	lossSum := 0.0
	for _, l := range losses {
		lossSum += l
	}
	if lossSum != 0 {
		winSum := 0.0
		for _, w := range wins {
			winSum += w
		}
		stats.ProfitFactor = math.Abs(winSum / lossSum)
	}
	return stats
}

// monthlyReturns takes the last equity point of each month and chains
// month-over-month returns starting from the initial capital.
func (a *Analyzer) monthlyReturns(curve []schema.EquityPoint) []schema.MonthlyReturn {
	if len(curve) == 0 {
		return nil
	}
	lastByMonth := make(map[string]float64)
	var months []string
	for _, pt := range curve {
		month := pt.Date.Format("2006-01")
		if _, ok := lastByMonth[month]; !ok {
			months = append(months, month)
		}
		lastByMonth[month] = pt.Equity
	}
	sort.Strings(months)

	out := make([]schema.MonthlyReturn, 0, len(months))
	prev := a.initialCapital
	for _, month := range months {
		value := lastByMonth[month]
		ret := 0.0
		if prev != 0 {
			ret = (value - prev) / prev
		}
		out = append(out, schema.MonthlyReturn{Month: month, Return: ret, Equity: value})
		prev = value
	}
	return out
}
