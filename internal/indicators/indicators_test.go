package indicators

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SolarWolf-Code/quantedge/internal/marketdata"
)

// priceSeries builds daily bars from closes. High/Low bracket the close so
// the range-based indicators have sane inputs.
func priceSeries(closes ...float64) marketdata.Series {
	s := make(marketdata.Series, len(closes))
	base := time.Date(2021, 1, 4, 0, 0, 0, 0, time.UTC)
	for i, c := range closes {
		s[i] = marketdata.Bar{
			Date:     base.AddDate(0, 0, i),
			Open:     c,
			High:     c * 1.01,
			Low:      c * 0.99,
			Close:    c,
			AdjClose: c,
			Volume:   1000,
		}
	}
	return s
}

func TestCurrentPrice(t *testing.T) {
	s := priceSeries(100, 101, 102)

	v := CurrentPrice(s)
	require.NotNil(t, v)
	assert.Equal(t, 102.0, *v)

	assert.Nil(t, CurrentPrice(nil))
}

func TestSMAPrice(t *testing.T) {
	s := priceSeries(1, 2, 3, 4, 5)

	v := SMAPrice(s, 3)
	require.NotNil(t, v)
	assert.InDelta(t, 4.0, *v, 1e-9)

	assert.Nil(t, SMAPrice(s, 6), "window longer than history")
	assert.Nil(t, SMAPrice(s, 0), "non-positive period")
}

func TestEMAConvergesTowardRecentPrices(t *testing.T) {
	s := priceSeries(10, 10, 10, 10, 20)

	ema := EMA(s, 3)
	sma := SMAPrice(s, 3)
	require.NotNil(t, ema)
	require.NotNil(t, sma)
	assert.Greater(t, *ema, 10.0)
}

func TestRSIExtremes(t *testing.T) {
	up := priceSeries(1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15)

	v := RSI(up, 14)
	require.NotNil(t, v)
	assert.InDelta(t, 100.0, *v, 1e-6, "monotonic gains should pin RSI at 100")

	assert.Nil(t, RSI(up[:5], 14))
}

func monotonic(n int) marketdata.Series {
	closes := make([]float64, n)
	for i := range closes {
		closes[i] = 100 + float64(i)
	}
	return priceSeries(closes...)
}

func TestRSILookbackBoundary(t *testing.T) {
	// A 14-period RSI needs a prior close for the first gain, so 14 bars
	// are one short and 15 are the minimum.
	assert.Nil(t, RSI(monotonic(14), 14))
	assert.NotNil(t, RSI(monotonic(15), 14))
}

func TestADXLookbackBoundary(t *testing.T) {
	// Wilder smoothing of DX doubles the window: 2*period bars minimum.
	assert.Nil(t, ADX(monotonic(27), 14))
	assert.NotNil(t, ADX(monotonic(28), 14))
}

func TestStochasticLookbackBoundary(t *testing.T) {
	// Fast %K over 14 bars plus the 3-bar %D average needs 16 bars.
	assert.Nil(t, Stochastic(monotonic(15), 14))
	assert.NotNil(t, Stochastic(monotonic(16), 14))
}

func TestMACDLookbackBoundary(t *testing.T) {
	// Slow EMA(26) plus signal EMA(9): the line exists from bar 34 on.
	// Short of that the output is padding, which must read as null
	// rather than a zero that comparisons would treat as real.
	assert.Nil(t, MACD(monotonic(26), 12, 26, 9))
	assert.Nil(t, MACD(monotonic(33), 12, 26, 9))

	v := MACD(monotonic(34), 12, 26, 9)
	require.NotNil(t, v)
	assert.NotZero(t, *v, "a rising series has a positive MACD line")
}

func TestCumulativeReturn(t *testing.T) {
	s := priceSeries(100, 105, 110, 120)

	v := CumulativeReturn(s, 4)
	require.NotNil(t, v)
	assert.InDelta(t, 0.20, *v, 1e-12)

	v = CumulativeReturn(s, 2)
	require.NotNil(t, v)
	assert.InDelta(t, 120.0/110.0-1, *v, 1e-12)

	assert.Nil(t, CumulativeReturn(s, 5))
}

func TestMaxDrawdown(t *testing.T) {
	s := priceSeries(100, 120, 90, 95, 130)

	// Whole-series drawdown: trough 90 from peak 120.
	v := MaxDrawdown(s, 0)
	require.NotNil(t, v)
	assert.InDelta(t, 90.0/120.0-1, *v, 1e-12)

	// A monotonic series never draws down.
	flat := MaxDrawdown(priceSeries(1, 2, 3), 0)
	require.NotNil(t, flat)
	assert.Equal(t, 0.0, *flat)
}

func TestMaxDrawdownTrailingWindow(t *testing.T) {
	// The early crash falls outside a 2-observation window.
	s := priceSeries(100, 50, 60, 61, 62)

	v := MaxDrawdown(s, 2)
	require.NotNil(t, v)
	assert.InDelta(t, 50.0/100.0-1, *v, 1e-12)

	tail := MaxDrawdown(s[2:], 2)
	require.NotNil(t, tail)
	assert.Equal(t, 0.0, *tail, "recovering tail has no windowed drawdown")
}

func TestStdDevPrice(t *testing.T) {
	s := priceSeries(2, 4, 4, 4, 5, 5, 7, 9)

	v := StdDevPrice(s, 8)
	require.NotNil(t, v)
	// Sample standard deviation of the classic example set.
	assert.InDelta(t, 2.13809, *v, 1e-4)

	assert.Nil(t, StdDevPrice(s, 1), "sample stddev needs at least two points")
}

func TestSMAReturnAndStdDevReturn(t *testing.T) {
	s := priceSeries(100, 110, 99, 108.9)

	mean := SMAReturn(s, 3)
	require.NotNil(t, mean)
	assert.InDelta(t, (0.10-0.10+0.10)/3, *mean, 1e-9)

	sd := StdDevReturn(s, 3)
	require.NotNil(t, sd)
	assert.Greater(t, *sd, 0.0)

	assert.Nil(t, SMAReturn(s, 4), "only three returns exist")
}

func TestSMACross(t *testing.T) {
	s := priceSeries(1, 1, 1, 1, 10, 10)

	v := SMACross(s, 2, 6)
	require.NotNil(t, v)
	fast := (10.0 + 10.0) / 2
	slow := (1 + 1 + 1 + 1 + 10 + 10) / 6.0
	assert.InDelta(t, fast/slow, *v, 1e-9)

	assert.Nil(t, SMACross(s, 2, 7))
}

func TestATRRequiresExtraBar(t *testing.T) {
	s := priceSeries(100, 101, 102, 103, 104)

	assert.NotNil(t, ATR(s, 4))
	assert.Nil(t, ATR(s, 5), "true range needs a prior close")

	pct := ATRPercent(s, 4)
	require.NotNil(t, pct)
	assert.Greater(t, *pct, 0.0)
	assert.Less(t, *pct, 1.0)
}

func TestVIX(t *testing.T) {
	vix := priceSeries(20, 22, 30)

	spot := VIX(vix, 0)
	require.NotNil(t, spot)
	assert.Equal(t, 30.0, *spot)

	avg := VIX(vix, 3)
	require.NotNil(t, avg)
	assert.InDelta(t, 24.0, *avg, 1e-9)
}

func TestVIXChange(t *testing.T) {
	vix := priceSeries(20, 25, 18)

	v := VIXChange(vix, 3)
	require.NotNil(t, v)
	assert.InDelta(t, -2.0, *v, 1e-12)

	assert.Nil(t, VIXChange(vix, 4))
	assert.Nil(t, VIXChange(vix, 0))
}
