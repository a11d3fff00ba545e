package backtest

import (
	"math"
	"testing"
	"time"

	"main/internal/schema"
)

func curveFrom(values ...float64) []schema.EquityPoint {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make([]schema.EquityPoint, len(values))
	for i, v := range values {
		out[i] = schema.EquityPoint{Date: start.AddDate(0, 0, i), Equity: v, Cash: v}
	}
	return out
}

func TestEmptyCurveYieldsZeroReport(t *testing.T) {
	a := NewAnalyzer(1000000)

	report := a.Analyze(nil, nil, nil)
	if report.InitialCapital != 1000000 || report.FinalValue != 1000000 {
		t.Fatalf("capital fields: %+v", report)
	}
	if report.TotalReturn != 0 || report.Sharpe != 0 || report.MaxDrawdown != 0 {
		t.Fatalf("expected all-zero metrics: %+v", report)
	}
	if report.Trades.TotalTrades != 0 || report.Trades.WinRate != 0 {
		t.Fatalf("expected zero trade stats: %+v", report.Trades)
	}
}

func TestIncreasingCurveZeroTrades(t *testing.T) {
	a := NewAnalyzer(1000000)

	report := a.Analyze(curveFrom(1000000, 1010000, 1020000, 1030000), nil, nil)
	if report.Trades.TotalTrades != 0 {
		t.Fatalf("total trades = %d, want 0", report.Trades.TotalTrades)
	}
	if report.Trades.WinRate != 0 {
		t.Fatalf("win rate = %v, want 0", report.Trades.WinRate)
	}
	if report.TotalReturn <= 0 {
		t.Fatalf("total return = %v, want positive", report.TotalReturn)
	}
	if report.MaxDrawdown != 0 {
		t.Fatalf("max drawdown = %v, want 0 on a rising curve", report.MaxDrawdown)
	}
}

func TestDrawdownAndDuration(t *testing.T) {
	a := NewAnalyzer(100)

	// peak 120, trough 90: drawdown 25%, underwater 3 periods
	report := a.Analyze(curveFrom(100, 120, 100, 90, 110, 130), nil, nil)
	if math.Abs(report.MaxDrawdown-0.25) > 1e-9 {
		t.Fatalf("max drawdown = %v, want 0.25", report.MaxDrawdown)
	}
	if report.MaxDrawdownDuration != 3 {
		t.Fatalf("duration = %d, want 3", report.MaxDrawdownDuration)
	}
}

func TestTradeMatchingByAverageCost(t *testing.T) {
	a := NewAnalyzer(1000000)
	at := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)

	trades := []schema.Fill{
		{Symbol: "600000", Side: schema.OrderSideBuy, Quantity: 100, Price: 10, Time: at},
		{Symbol: "600000", Side: schema.OrderSideBuy, Quantity: 100, Price: 20, Time: at},
		// avg cost 15: selling at 18 is a +20% win
		{Symbol: "600000", Side: schema.OrderSideSell, Quantity: 100, Price: 18, Time: at},
		{Symbol: "600519", Side: schema.OrderSideBuy, Quantity: 100, Price: 100, Time: at},
		// -10% loss
		{Symbol: "600519", Side: schema.OrderSideSell, Quantity: 100, Price: 90, Time: at},
	}

	report := a.Analyze(curveFrom(1000000, 1000500), trades, nil)
	stats := report.Trades
	if stats.TotalTrades != 5 {
		t.Fatalf("total trades = %d, want 5", stats.TotalTrades)
	}
	if stats.WinRate != 0.5 {
		t.Fatalf("win rate = %v, want 0.5", stats.WinRate)
	}
	if math.Abs(stats.AvgWin-0.2) > 1e-9 {
		t.Fatalf("avg win = %v, want 0.2", stats.AvgWin)
	}
	if math.Abs(stats.AvgLoss-0.1) > 1e-9 {
		t.Fatalf("avg loss = %v, want 0.1", stats.AvgLoss)
	}
	if math.Abs(stats.ProfitFactor-2.0) > 1e-9 {
		t.Fatalf("profit factor = %v, want 2.0", stats.ProfitFactor)
	}
	if math.Abs(stats.LargestWin-0.2) > 1e-9 || math.Abs(stats.LargestLoss+0.1) > 1e-9 {
		t.Fatalf("largest win/loss = %v/%v", stats.LargestWin, stats.LargestLoss)
	}
}

func TestMonthlyReturns(t *testing.T) {
	a := NewAnalyzer(100)
	curve := []schema.EquityPoint{
		{Date: time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC), Equity: 105},
		{Date: time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC), Equity: 110},
		{Date: time.Date(2024, 2, 15, 0, 0, 0, 0, time.UTC), Equity: 99},
	}

	report := a.Analyze(curve, nil, nil)
	if len(report.MonthlyReturns) != 2 {
		t.Fatalf("months = %d, want 2", len(report.MonthlyReturns))
	}
	jan := report.MonthlyReturns[0]
	if jan.Month != "2024-01" || math.Abs(jan.Return-0.10) > 1e-9 {
		t.Fatalf("january = %+v, want +10%%", jan)
	}
	feb := report.MonthlyReturns[1]
	if feb.Month != "2024-02" || math.Abs(feb.Return-(-0.10)) > 1e-9 {
		t.Fatalf("february = %+v, want -10%%", feb)
	}
}

func TestSortinoZeroWithoutDownside(t *testing.T) {
	a := NewAnalyzer(100)
	report := a.Analyze(curveFrom(100, 101, 102, 103, 104), nil, nil)
	if report.Sortino != 0 {
		t.Fatalf("sortino = %v, want 0 with no downside periods", report.Sortino)
	}
}
