package schema

// MonthlyReturn is one month-end return bucket.
type MonthlyReturn struct {
	Month  string
	Return float64
	Equity float64
}

// TradeStats summarizes trade quality, computed by matching BUY fills to
// subsequent SELL fills with running average cost per symbol.
type TradeStats struct {
	TotalTrades    int
	WinRate        float64
	ProfitFactor   float64
	AvgWin         float64
	AvgLoss        float64
	LargestWin     float64
	LargestLoss    float64
	AvgTradeReturn float64
}

// Report is the full run output handed to a presentation collaborator.
// An empty equity curve yields a fully populated zero-valued report.
type Report struct {
	InitialCapital float64
	FinalValue     float64

	TotalReturn      float64
	AnnualizedReturn float64
	Volatility       float64
	Sharpe           float64
	Sortino          float64
	Calmar           float64

	MaxDrawdown         float64
	MaxDrawdownDuration int

	Trades TradeStats

	MonthlyReturns []MonthlyReturn
	EquityCurve    []EquityPoint
	TradeLog       []Fill
	OpenPositions  []Position
}
