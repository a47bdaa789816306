package backtest

import (
	"math"

	"github.com/SolarWolf-Code/quantedge/internal/marketdata"
)

// DailyValue is one row of the portfolio series in the response document.
type DailyValue struct {
	Date           string   `json:"date"`
	PortfolioValue *float64 `json:"portfolio_value"`
	Cash           *float64 `json:"cash"`
}

// SPYValue is one row of the benchmark series in the response document.
type SPYValue struct {
	Date     string   `json:"date"`
	SPYValue *float64 `json:"spy_value"`
}

// Result is the backtest response document. All floats are sanitized:
// NaN and ±Inf become JSON null, dates are formatted YYYY-MM-DD.
type Result struct {
	DailyValues []DailyValue        `json:"daily_values"`
	SPYValues   []SPYValue          `json:"spy_values"`
	Stats       map[string]*float64 `json:"stats"`
}

// Assemble builds the response document from a run's outcome.
func Assemble(o *Outcome) *Result {
	result := &Result{
		DailyValues: make([]DailyValue, 0, len(o.Dates)),
		SPYValues:   make([]SPYValue, 0, len(o.Dates)),
		Stats:       make(map[string]*float64),
	}

	for i, date := range o.Dates {
		key := marketdata.DateKey(date)
		result.DailyValues = append(result.DailyValues, DailyValue{
			Date:           key,
			PortfolioValue: sanitize(o.PortfolioValues[i]),
			Cash:           sanitize(o.Cash[i]),
		})
		result.SPYValues = append(result.SPYValues, SPYValue{
			Date:     key,
			SPYValue: sanitize(o.SPYValues[i]),
		})
	}

	for name, value := range o.Stats() {
		if value == nil || math.IsNaN(*value) || math.IsInf(*value, 0) {
			result.Stats[name] = nil
			continue
		}
		result.Stats[name] = value
	}

	return result
}

func sanitize(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}
