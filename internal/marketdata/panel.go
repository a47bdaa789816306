package marketdata

import (
	"math"
	"time"
)

// Panel is a date-indexed adjusted-close matrix with one column per symbol.
// Missing cells are NaN until ForwardFill is applied.
type Panel struct {
	Dates   []time.Time
	columns map[string][]float64
	index   map[string]int // DateKey -> row
}

// NewPanel builds a panel over the given ascending dates and symbols,
// with every cell missing.
func NewPanel(dates []time.Time, symbols []string) *Panel {
	p := &Panel{
		Dates:   dates,
		columns: make(map[string][]float64, len(symbols)),
		index:   make(map[string]int, len(dates)),
	}
	for i, d := range dates {
		p.index[DateKey(d)] = i
	}
	for _, sym := range symbols {
		col := make([]float64, len(dates))
		for i := range col {
			col[i] = math.NaN()
		}
		p.columns[sym] = col
	}
	return p
}

// Set stores an adjusted close for (symbol, date). Unknown dates are ignored.
func (p *Panel) Set(symbol string, date time.Time, adjClose float64) {
	col, ok := p.columns[symbol]
	if !ok {
		return
	}
	if i, ok := p.index[DateKey(date)]; ok {
		col[i] = adjClose
	}
}

// Value returns the adjusted close for (symbol, date) and whether it is present.
func (p *Panel) Value(symbol string, date time.Time) (float64, bool) {
	col, ok := p.columns[symbol]
	if !ok {
		return 0, false
	}
	i, ok := p.index[DateKey(date)]
	if !ok {
		return 0, false
	}
	v := col[i]
	if math.IsNaN(v) {
		return 0, false
	}
	return v, true
}

// ForwardFilled returns a copy with the last observed value carried across
// missing cells, per column. Cells before a symbol's first observation stay
// missing. The receiver is not modified: panels are shared through the
// repository cache and must stay immutable once stored.
func (p *Panel) ForwardFilled() *Panel {
	filled := &Panel{
		Dates:   p.Dates,
		columns: make(map[string][]float64, len(p.columns)),
		index:   p.index,
	}
	for sym, col := range p.columns {
		out := make([]float64, len(col))
		last := math.NaN()
		for i, v := range col {
			if math.IsNaN(v) {
				out[i] = last
				continue
			}
			out[i] = v
			last = v
		}
		filled.columns[sym] = out
	}
	return filled
}

// Symbols lists the panel's columns.
func (p *Panel) Symbols() []string {
	out := make([]string, 0, len(p.columns))
	for sym := range p.columns {
		out = append(out, sym)
	}
	return out
}
