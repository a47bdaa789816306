package marketdata

import (
	"errors"
	"time"
)

// BenchmarkSymbol is the ticker whose bars define the market calendar and
// the buy-and-hold comparison portfolio.
const BenchmarkSymbol = "SPY"

// VIXSymbol is the fixed series read by the vix/vix_change indicators.
const VIXSymbol = "^VIX"

var (
	// ErrSymbolUnknown means the symbol has no stored bars and could not be fetched.
	ErrSymbolUnknown = errors.New("symbol unknown")

	// ErrUnavailable means the price store could not be reached.
	ErrUnavailable = errors.New("price repository unavailable")
)

// Bar is a single daily OHLCV price point. AdjClose is the canonical price
// used by indicators and the simulator; Close is kept for provider fidelity.
type Bar struct {
	Date     time.Time `json:"date"`
	Open     float64   `json:"open"`
	High     float64   `json:"high"`
	Low      float64   `json:"low"`
	Close    float64   `json:"close"`
	AdjClose float64   `json:"adj_close"`
	Volume   int64     `json:"volume"`
}

// Series is a date-ascending run of bars for one symbol.
type Series []Bar

// AdjCloses returns the adjusted-close column.
func (s Series) AdjCloses() []float64 {
	out := make([]float64, len(s))
	for i, b := range s {
		out[i] = b.AdjClose
	}
	return out
}

// Highs returns the high column.
func (s Series) Highs() []float64 {
	out := make([]float64, len(s))
	for i, b := range s {
		out[i] = b.High
	}
	return out
}

// Lows returns the low column.
func (s Series) Lows() []float64 {
	out := make([]float64, len(s))
	for i, b := range s {
		out[i] = b.Low
	}
	return out
}

// Returns computes daily simple returns of the adjusted close:
// r[i] = (p[i+1] - p[i]) / p[i]. Length is len(s)-1.
func (s Series) Returns() []float64 {
	if len(s) < 2 {
		return nil
	}
	out := make([]float64, len(s)-1)
	for i := 1; i < len(s); i++ {
		prev := s[i-1].AdjClose
		if prev != 0 {
			out[i-1] = (s[i].AdjClose - prev) / prev
		}
	}
	return out
}

// Date normalizes a timestamp to a calendar date (UTC midnight).
func Date(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// DateKey formats a date as YYYY-MM-DD.
func DateKey(t time.Time) string {
	return t.Format("2006-01-02")
}
