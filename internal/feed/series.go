package feed

import (
	"sort"

	"github.com/yanun0323/errors"

	"main/internal/schema"
	"main/pkg/exception"
)

// Series holds the ordered bars of one symbol. Timestamps must be
// non-decreasing; Append rejects regressions instead of reordering.
type Series struct {
	symbol string
	bars   []schema.Bar
}

// NewSeries creates an empty series for a symbol.
func NewSeries(symbol string) *Series {
	return &Series{symbol: symbol}
}

// Symbol returns the series symbol.
func (s *Series) Symbol() string {
	return s.symbol
}

// Append adds a bar, enforcing timestamp order.
func (s *Series) Append(bar schema.Bar) error {
	if bar.Symbol == "" {
		bar.Symbol = s.symbol
	}
	if bar.Symbol != s.symbol {
		return errors.Wrapf(exception.ErrUnknownSymbol, "series %s, bar %s", s.symbol, bar.Symbol)
	}
	if n := len(s.bars); n > 0 && bar.Time.Before(s.bars[n-1].Time) {
		return errors.Wrapf(exception.ErrBarOutOfOrder, "symbol %s at %s", s.symbol, bar.Time)
	}
	s.bars = append(s.bars, bar)
	return nil
}

// Len returns the number of bars.
func (s *Series) Len() int {
	return len(s.bars)
}

// Bars returns the underlying bars in time order.
func (s *Series) Bars() []schema.Bar {
	return s.bars
}

// Replay merges multiple series into one time-ordered stream. Bars that
// share a timestamp form one step, sorted by symbol so replays are
// deterministic. A symbol missing at a given step is simply absent.
type Replay struct {
	steps []step
	pos   int
}

type step struct {
	at   int64
	bars []schema.Bar
}

// NewReplay builds a replay over the given series.
func NewReplay(series ...*Series) (*Replay, error) {
	if len(series) == 0 {
		return nil, exception.ErrEmptySeries
	}
	grouped := make(map[int64][]schema.Bar)
	for _, s := range series {
		if s == nil || s.Len() == 0 {
			return nil, exception.ErrEmptySeries
		}
		for _, bar := range s.bars {
			key := bar.Time.UnixNano()
			grouped[key] = append(grouped[key], bar)
		}
	}
	steps := make([]step, 0, len(grouped))
	for at, bars := range grouped {
		sort.Slice(bars, func(i, j int) bool { return bars[i].Symbol < bars[j].Symbol })
		steps = append(steps, step{at: at, bars: bars})
	}
	sort.Slice(steps, func(i, j int) bool { return steps[i].at < steps[j].at })
	return &Replay{steps: steps}, nil
}

// Steps returns the number of distinct time steps.
func (r *Replay) Steps() int {
	return len(r.steps)
}

// Next returns the bars of the next time step, or false when exhausted.
func (r *Replay) Next() ([]schema.Bar, bool) {
	if r.pos >= len(r.steps) {
		return nil, false
	}
	bars := r.steps[r.pos].bars
	r.pos++
	return bars, true
}

// Rewind resets the replay to the first step.
func (r *Replay) Rewind() {
	r.pos = 0
}
