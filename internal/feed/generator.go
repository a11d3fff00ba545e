package feed

import (
	"math"
	"time"

	"main/internal/schema"
)

// Generator creates deterministic synthetic daily bars. The walk is a
// fixed sine-plus-drift path so two runs over the same parameters always
// produce identical series. Used by demos and tests; real runs load data
// from a collaborator.
type Generator struct {
	symbols   []string
	start     time.Time
	basePrice float64
	amplitude float64
	drift     float64
	index     int
}

// NewGenerator creates a generator over the given symbols.
func NewGenerator(symbols []string, start time.Time, basePrice, amplitude, drift float64) *Generator {
	if basePrice <= 0 {
		basePrice = 100
	}
	if amplitude < 0 {
		amplitude = 0
	}
	return &Generator{
		symbols:   append([]string(nil), symbols...),
		start:     start,
		basePrice: basePrice,
		amplitude: amplitude,
		drift:     drift,
	}
}

// Series generates n daily bars for every symbol. Each symbol gets a
// phase offset so the paths diverge.
func (g *Generator) Series(n int) ([]*Series, error) {
	out := make([]*Series, 0, len(g.symbols))
	for i, symbol := range g.symbols {
		series := NewSeries(symbol)
		phase := float64(i) * 0.7
		for day := 0; day < n; day++ {
			if err := series.Append(g.bar(symbol, phase, day)); err != nil {
				return nil, err
			}
		}
		out = append(out, series)
	}
	return out, nil
}

func (g *Generator) bar(symbol string, phase float64, day int) schema.Bar {
	at := g.start.AddDate(0, 0, day)
	mid := g.basePrice + g.drift*float64(day) + g.amplitude*math.Sin(phase+float64(day)/5)
	spread := g.amplitude / 10
	if spread <= 0 {
		spread = 0.1
	}
	open := mid - spread/2
	closePx := mid + spread/2
	return schema.Bar{
		Symbol: symbol,
		Time:   at,
		Open:   open,
		High:   closePx + spread,
		Low:    open - spread,
		Close:  closePx,
		Volume: 1e6 + 1e4*float64(day%7),
	}
}
