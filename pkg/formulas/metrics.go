package formulas

import (
	"math"
	"time"
)

// TradingDaysPerYear is the annualization base for daily series.
const TradingDaysPerYear = 252

// DailyRiskFreeRate converts an annual risk-free rate to its daily
// equivalent: (1 + annual)^(1/252) - 1.
func DailyRiskFreeRate(annual float64) float64 {
	return math.Pow(1+annual, 1.0/TradingDaysPerYear) - 1
}

// TotalReturn calculates V_last / V_first - 1.
// Returns nil if the series has fewer than two observations.
func TotalReturn(values []float64) *float64 {
	if len(values) < 2 || values[0] == 0 {
		return nil
	}
	v := values[len(values)-1]/values[0] - 1
	return finite(v)
}

// CAGR calculates (V_last/V_first)^(252/days) - 1, where days is the
// calendar span between the first and last observation.
func CAGR(values []float64, first, last time.Time) *float64 {
	if len(values) < 2 || values[0] <= 0 {
		return nil
	}
	days := last.Sub(first).Hours() / 24
	if days <= 0 {
		return nil
	}
	v := math.Pow(values[len(values)-1]/values[0], TradingDaysPerYear/days) - 1
	return finite(v)
}

// MaxDrawdown calculates min_t (V_t / cummax(V)_t - 1). The result is
// negative or zero.
func MaxDrawdown(values []float64) *float64 {
	if len(values) < 2 {
		return nil
	}

	peak := values[0]
	worst := 0.0
	for _, v := range values {
		if v > peak {
			peak = v
		}
		if peak > 0 {
			dd := v/peak - 1
			if dd < worst {
				worst = dd
			}
		}
	}
	return finite(worst)
}

// Volatility calculates the annualized standard deviation of daily simple
// returns.
func Volatility(values []float64) *float64 {
	returns := Returns(values)
	if len(returns) < 2 {
		return nil
	}
	return finite(AnnualizedVolatility(returns))
}

// SharpeRatio calculates (CAGR - dailyRiskFree) / Volatility.
func SharpeRatio(values []float64, first, last time.Time, dailyRiskFree float64) *float64 {
	cagr := CAGR(values, first, last)
	vol := Volatility(values)
	if cagr == nil || vol == nil || *vol == 0 {
		return nil
	}
	return finite((*cagr - dailyRiskFree) / *vol)
}

// SortinoRatio calculates (CAGR - dailyRiskFree) / downside deviation,
// where the downside deviation is the annualized standard deviation of
// excess returns clamped below at zero.
func SortinoRatio(values []float64, first, last time.Time, dailyRiskFree float64) *float64 {
	cagr := CAGR(values, first, last)
	if cagr == nil {
		return nil
	}

	returns := Returns(values)
	if len(returns) < 2 {
		return nil
	}

	clipped := make([]float64, len(returns))
	for i, r := range returns {
		excess := r - dailyRiskFree
		if excess < 0 {
			excess = 0
		}
		clipped[i] = excess
	}

	downside := StdDev(clipped) * math.Sqrt(TradingDaysPerYear)
	if downside == 0 {
		return nil
	}
	return finite((*cagr - dailyRiskFree) / downside)
}

// CalmarRatio calculates CAGR / |MaxDrawdown|.
func CalmarRatio(values []float64, first, last time.Time) *float64 {
	cagr := CAGR(values, first, last)
	maxDD := MaxDrawdown(values)
	if cagr == nil || maxDD == nil || *maxDD == 0 {
		return nil
	}
	return finite(*cagr / math.Abs(*maxDD))
}

// Beta calculates the Pearson correlation between the two series' daily
// returns. Correlation rather than covariance/variance is deliberate; it
// mirrors the behavior this engine is a port of.
func Beta(values, benchmark []float64) *float64 {
	a := Returns(values)
	b := Returns(benchmark)
	if len(a) < 2 || len(a) != len(b) {
		return nil
	}
	return finite(Correlation(a, b))
}

func finite(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}
