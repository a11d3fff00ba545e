package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"path/filepath"
	"strings"

	"github.com/grafana/pyroscope-go"

	"main/internal/backtest"
	"main/internal/feed"
	"main/internal/ops"
	"main/internal/recorder"
	"main/internal/schema"
)

type emptyLogger struct{}

func (emptyLogger) Infof(string, ...interface{})  {}
func (emptyLogger) Debugf(string, ...interface{}) {}
func (emptyLogger) Errorf(string, ...interface{}) {}

func main() {
	configPath := flag.String("config", "", "Path to JSON config")
	csvDir := flag.String("csv-dir", "", "Override: directory of <symbol>.csv files")
	symbols := flag.String("symbols", "", "Override: comma-separated symbol list for -csv-dir")
	detailed := flag.Bool("detailed", true, "Print monthly returns in the report")
	recordDir := flag.String("record", "", "Journal the run's fills and equity curve into this directory")
	profileAddr := flag.String("pyroscope", "", "Pyroscope server address (empty=disabled)")
	flag.Parse()

	if *profileAddr != "" {
		profiler, err := pyroscope.Start(pyroscope.Config{
			ApplicationName: "backtest",
			ServerAddress:   *profileAddr,
			Logger:          emptyLogger{},
			ProfileTypes: []pyroscope.ProfileType{
				pyroscope.ProfileCPU,
				pyroscope.ProfileAllocObjects,
				pyroscope.ProfileAllocSpace,
			},
		})
		if err != nil {
			log.Fatalf("pyroscope start failed: %v", err)
		}
		defer profiler.Stop()
	}

	loaded, err := ops.Load(*configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}
	if *csvDir != "" {
		loaded.Data.CSVDir = *csvDir
		if *symbols != "" {
			loaded.Data.Symbols = strings.Split(*symbols, ",")
		}
	}

	replay, err := buildReplay(loaded.Data)
	if err != nil {
		log.Fatalf("market data load failed: %v", err)
	}

	engine, err := backtest.NewEngine(loaded.Engine, loaded.Strategies...)
	if err != nil {
		log.Fatalf("engine construction failed: %v", err)
	}

	report, err := engine.Run(context.Background(), replay)
	if err != nil {
		log.Fatalf("run failed: %v", err)
	}

	if *recordDir != "" {
		if err := journalRun(report, *recordDir); err != nil {
			log.Fatalf("journal write failed: %v", err)
		}
	}

	printReport(report, *detailed)

	m := engine.Metrics()
	fmt.Printf("bars=%d signals=%d orders=%d fills=%d rejections=%d alerts=%d/%d/%d\n",
		m.Bars, m.Signals, m.Orders, m.Fills, m.Rejections,
		m.Warnings, m.Limits, m.Breakers)
}

func journalRun(report schema.Report, dir string) error {
	cfg := recorder.DefaultConfig(dir)
	// the whole report is enqueued up front, so size the queue to fit
	cfg.QueueSize = len(report.TradeLog) + len(report.EquityCurve) + 1
	writer, err := recorder.NewWriter(cfg)
	if err != nil {
		return err
	}
	if err := writer.Start(context.Background()); err != nil {
		return err
	}
	for _, fill := range report.TradeLog {
		if err := writer.RecordFill(fill); err != nil {
			return err
		}
	}
	for _, point := range report.EquityCurve {
		if err := writer.RecordEquity(point); err != nil {
			return err
		}
	}
	return writer.Close()
}

func buildReplay(data ops.DataConfig) (*feed.Replay, error) {
	var series []*feed.Series
	switch {
	case data.CSVDir != "":
		for _, symbol := range data.Symbols {
			s, err := feed.LoadCSV(symbol, filepath.Join(data.CSVDir, symbol+".csv"))
			if err != nil {
				return nil, err
			}
			series = append(series, s)
		}
	case data.Synthetic != nil:
		start, err := data.Synthetic.StartTime()
		if err != nil {
			return nil, err
		}
		gen := feed.NewGenerator(data.Synthetic.Symbols, start,
			data.Synthetic.BasePrice, data.Synthetic.Amplitude, data.Synthetic.Drift)
		steps := data.Synthetic.Steps
		if steps <= 0 {
			steps = 252
		}
		series, err = gen.Series(steps)
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("config has neither csvDir nor synthetic data")
	}
	return feed.NewReplay(series...)
}

func printReport(r schema.Report, detailed bool) {
	line := strings.Repeat("=", 70)
	fmt.Println(line)
	fmt.Println("PERFORMANCE REPORT")
	fmt.Println(line)

	fmt.Println("\nCapital:")
	fmt.Printf("  Initial:         %14.2f\n", r.InitialCapital)
	fmt.Printf("  Final:           %14.2f\n", r.FinalValue)
	fmt.Printf("  Profit/Loss:     %14.2f\n", r.FinalValue-r.InitialCapital)

	fmt.Println("\nReturns:")
	fmt.Printf("  Total Return:    %7.2f%%\n", r.TotalReturn*100)
	fmt.Printf("  Annualized:      %7.2f%%\n", r.AnnualizedReturn*100)

	fmt.Println("\nRisk Metrics:")
	fmt.Printf("  Volatility:      %7.2f%%\n", r.Volatility*100)
	fmt.Printf("  Max Drawdown:    %7.2f%%\n", r.MaxDrawdown*100)
	fmt.Printf("  DD Duration:     %4d periods\n", r.MaxDrawdownDuration)

	fmt.Println("\nRisk-Adjusted Returns:")
	fmt.Printf("  Sharpe Ratio:    %7.3f\n", r.Sharpe)
	fmt.Printf("  Sortino Ratio:   %7.3f\n", r.Sortino)
	fmt.Printf("  Calmar Ratio:    %7.3f\n", r.Calmar)

	fmt.Println("\nTrading Stats:")
	fmt.Printf("  Total Trades:    %4d\n", r.Trades.TotalTrades)
	fmt.Printf("  Win Rate:        %7.2f%%\n", r.Trades.WinRate*100)
	fmt.Printf("  Profit Factor:   %7.2f\n", r.Trades.ProfitFactor)
	fmt.Printf("  Avg Win:         %7.2f%%\n", r.Trades.AvgWin*100)
	fmt.Printf("  Avg Loss:        %7.2f%%\n", r.Trades.AvgLoss*100)
	fmt.Printf("  Largest Win:     %7.2f%%\n", r.Trades.LargestWin*100)
	fmt.Printf("  Largest Loss:    %7.2f%%\n", r.Trades.LargestLoss*100)

	if len(r.OpenPositions) > 0 {
		fmt.Println("\nOpen Positions:")
		for _, pos := range r.OpenPositions {
			fmt.Printf("  %-10s qty=%-8d avg_cost=%.2f\n", pos.Symbol, pos.Quantity, pos.AvgCost)
		}
	}

	if detailed && len(r.MonthlyReturns) > 0 {
		fmt.Println("\nMonthly Returns:")
		fmt.Printf("  %-10s %10s %15s\n", "Month", "Return", "Equity")
		fmt.Println("  " + strings.Repeat("-", 40))
		months := r.MonthlyReturns
		if len(months) > 12 {
			months = months[len(months)-12:]
		}
		for _, m := range months {
			fmt.Printf("  %-10s %9.2f%% %15.2f\n", m.Month, m.Return*100, m.Equity)
		}
	}
	fmt.Println(line)
}
