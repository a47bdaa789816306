package backtest

import (
	"time"

	"github.com/SolarWolf-Code/quantedge/pkg/formulas"
)

// riskFreeRate is the annual risk-free rate used by the ratio metrics.
const riskFreeRate = 0.02

// Stats computes the performance metrics over the outcome's portfolio and
// benchmark series. Percentage metrics are scaled by 100; a metric whose
// inputs are degenerate is nil and serializes as JSON null.
func (o *Outcome) Stats() map[string]*float64 {
	values := o.PortfolioValues
	dailyRF := formulas.DailyRiskFreeRate(riskFreeRate)

	var first, last = o.firstLastDates()

	return map[string]*float64{
		"Total Return":  scale(formulas.TotalReturn(values), 100),
		"CAGR":          scale(formulas.CAGR(values, first, last), 100),
		"Max Drawdown":  scale(formulas.MaxDrawdown(values), 100),
		"Volatility":    scale(formulas.Volatility(values), 100),
		"Calmar Ratio":  formulas.CalmarRatio(values, first, last),
		"Sharpe Ratio":  formulas.SharpeRatio(values, first, last, dailyRF),
		"Sortino Ratio": formulas.SortinoRatio(values, first, last, dailyRF),
		"Beta":          formulas.Beta(values, o.SPYValues),
	}
}

func (o *Outcome) firstLastDates() (first, last time.Time) {
	if len(o.Dates) == 0 {
		return
	}
	return o.Dates[0], o.Dates[len(o.Dates)-1]
}

func scale(v *float64, factor float64) *float64 {
	if v == nil {
		return nil
	}
	scaled := *v * factor
	return &scaled
}
