// Package indicators computes technical-indicator values from historical
// price series. Every function is pure: it sees only the bars it is given,
// so look-ahead safety is the caller's slice boundary (History(symbol, asOf)
// never returns a bar past asOf). A nil result means the series is too short
// for the requested window.
package indicators

import (
	"math"

	"github.com/markcheno/go-talib"
	"gonum.org/v1/gonum/stat"

	"github.com/SolarWolf-Code/quantedge/internal/marketdata"
)

// CurrentPrice returns the adjusted close of the newest bar.
func CurrentPrice(s marketdata.Series) *float64 {
	if len(s) == 0 {
		return nil
	}
	v := s[len(s)-1].AdjClose
	return &v
}

// SMAPrice returns the arithmetic mean of the last period adjusted closes.
func SMAPrice(s marketdata.Series, period int) *float64 {
	if len(s) < period || period <= 0 {
		return nil
	}
	return lastValid(talib.Sma(s.AdjCloses(), period))
}

// EMA returns the exponential moving average with 2/(period+1) smoothing,
// seeded by the simple average of the first period values.
func EMA(s marketdata.Series, period int) *float64 {
	if len(s) < period || period <= 0 {
		return nil
	}
	return lastValid(talib.Ema(s.AdjCloses(), period))
}

// RSI returns the Wilder relative strength index on the adjusted close.
// The first gain/loss needs a prior close, so the lookback is period+1.
func RSI(s marketdata.Series, period int) *float64 {
	if period <= 0 || len(s) < period+1 {
		return nil
	}
	return lastValid(talib.Rsi(s.AdjCloses(), period))
}

// MACD returns the MACD line value at the last bar. The slow EMA plus the
// signal EMA need slow+signal-1 bars before the line has a value.
func MACD(s marketdata.Series, fast, slow, signal int) *float64 {
	if fast <= 0 || slow <= 0 || signal <= 0 {
		return nil
	}
	longest := slow
	if fast > longest {
		longest = fast
	}
	if len(s) < longest+signal-1 {
		return nil
	}
	macd, _, _ := talib.Macd(s.AdjCloses(), fast, slow, signal)
	return lastValid(macd)
}

// ADX returns the average directional index at the last bar. Wilder
// smoothing of the DX series doubles the lookback to 2*period.
func ADX(s marketdata.Series, period int) *float64 {
	if period <= 0 || len(s) < 2*period {
		return nil
	}
	return lastValid(talib.Adx(s.Highs(), s.Lows(), s.AdjCloses(), period))
}

// stochasticSmoothing is the %D smoothing width of the fast stochastic.
const stochasticSmoothing = 3

// Stochastic returns the fast %K of the stochastic oscillator over the last
// period bars. The %D average extends the lookback past the %K window.
func Stochastic(s marketdata.Series, period int) *float64 {
	if period <= 0 || len(s) < period+stochasticSmoothing-1 {
		return nil
	}
	fastK, _ := talib.StochF(s.Highs(), s.Lows(), s.AdjCloses(), period, stochasticSmoothing, talib.SMA)
	return lastValid(fastK)
}

// StdDevPrice returns the sample standard deviation of the last period
// adjusted closes.
func StdDevPrice(s marketdata.Series, period int) *float64 {
	if len(s) < period || period < 2 {
		return nil
	}
	closes := s.AdjCloses()
	v := stat.StdDev(closes[len(closes)-period:], nil)
	return finite(v)
}

// SMAReturn returns the mean of the last period daily simple returns.
func SMAReturn(s marketdata.Series, period int) *float64 {
	returns := s.Returns()
	if len(returns) < period || period <= 0 {
		return nil
	}
	v := stat.Mean(returns[len(returns)-period:], nil)
	return finite(v)
}

// StdDevReturn returns the sample standard deviation of the last period
// daily simple returns.
func StdDevReturn(s marketdata.Series, period int) *float64 {
	returns := s.Returns()
	if len(returns) < period || period < 2 {
		return nil
	}
	v := stat.StdDev(returns[len(returns)-period:], nil)
	return finite(v)
}

// CumulativeReturn returns price_last / price_{last-period+1} - 1, i.e. the
// simple return over the trailing period observations.
func CumulativeReturn(s marketdata.Series, period int) *float64 {
	if len(s) < period || period <= 0 {
		return nil
	}
	start := s[len(s)-period].AdjClose
	end := s[len(s)-1].AdjClose
	if start == 0 {
		return nil
	}
	v := end/start - 1
	return &v
}

// MaxDrawdown returns the deepest decline from a trailing-window running
// maximum: min over t of (price_t / max(window ending at t) - 1).
// A period of zero means the whole series.
func MaxDrawdown(s marketdata.Series, period int) *float64 {
	if period <= 0 {
		period = len(s)
	}
	if len(s) < period || period == 0 {
		return nil
	}

	closes := s.AdjCloses()
	worst := math.Inf(1)
	for t := period - 1; t < len(closes); t++ {
		peak := closes[t-period+1]
		for i := t - period + 2; i <= t; i++ {
			if closes[i] > peak {
				peak = closes[i]
			}
		}
		if peak == 0 {
			continue
		}
		dd := closes[t]/peak - 1
		if dd < worst {
			worst = dd
		}
	}
	return finite(worst)
}

// ATR returns the Wilder average true range at the last bar.
func ATR(s marketdata.Series, period int) *float64 {
	if len(s) < period+1 || period <= 0 {
		return nil
	}
	return lastValid(talib.Atr(s.Highs(), s.Lows(), s.AdjCloses(), period))
}

// ATRPercent returns ATR normalized by the current price, so thresholds
// compare across price levels.
func ATRPercent(s marketdata.Series, period int) *float64 {
	atr := ATR(s, period)
	price := CurrentPrice(s)
	if atr == nil || price == nil || *price == 0 {
		return nil
	}
	v := *atr / *price
	return &v
}

// SMACross returns sma(fast) / sma(slow); above 1 is bullish.
func SMACross(s marketdata.Series, fast, slow int) *float64 {
	need := fast
	if slow > need {
		need = slow
	}
	if len(s) < need {
		return nil
	}
	fastSMA := SMAPrice(s, fast)
	slowSMA := SMAPrice(s, slow)
	if fastSMA == nil || slowSMA == nil || *slowSMA == 0 {
		return nil
	}
	v := *fastSMA / *slowSMA
	return &v
}

// VIX returns the VIX level at the last bar, or its period-day mean when a
// period is given. The caller passes the fixed VIX series.
func VIX(vix marketdata.Series, period int) *float64 {
	if period <= 0 {
		return CurrentPrice(vix)
	}
	return SMAPrice(vix, period)
}

// VIXChange returns the point change in VIX over the trailing period
// observations.
func VIXChange(vix marketdata.Series, period int) *float64 {
	if len(vix) < period || period <= 0 {
		return nil
	}
	v := vix[len(vix)-1].AdjClose - vix[len(vix)-period].AdjClose
	return &v
}

// lastValid returns a pointer to the last non-NaN value of a talib output,
// or nil when the window never filled.
func lastValid(values []float64) *float64 {
	if len(values) == 0 {
		return nil
	}
	return finite(values[len(values)-1])
}

func finite(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}
