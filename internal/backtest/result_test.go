package backtest

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dates(n int) []time.Time {
	out := make([]time.Time, n)
	base := time.Date(2021, 1, 4, 0, 0, 0, 0, time.UTC)
	for i := range out {
		out[i] = base.AddDate(0, 0, i)
	}
	return out
}

func TestStatsKeys(t *testing.T) {
	o := &Outcome{
		Dates:           dates(4),
		PortfolioValues: []float64{10000, 10100, 9900, 10200},
		Cash:            []float64{5, 5, 5, 5},
		SPYValues:       []float64{10000, 10050, 9950, 10150},
	}

	stats := o.Stats()
	for _, key := range []string{
		"Total Return", "CAGR", "Max Drawdown", "Volatility",
		"Calmar Ratio", "Sharpe Ratio", "Sortino Ratio", "Beta",
	} {
		assert.Contains(t, stats, key)
	}

	require.NotNil(t, stats["Total Return"])
	assert.InDelta(t, 2.0, *stats["Total Return"], 1e-9, "percent scaling")

	require.NotNil(t, stats["Max Drawdown"])
	assert.InDelta(t, (9900.0/10100.0-1)*100, *stats["Max Drawdown"], 1e-9)
}

func TestStatsDegenerateSeriesAreNil(t *testing.T) {
	o := &Outcome{
		Dates:           dates(1),
		PortfolioValues: []float64{10000},
		Cash:            []float64{10000},
		SPYValues:       []float64{10000},
	}

	stats := o.Stats()
	assert.Nil(t, stats["Total Return"])
	assert.Nil(t, stats["CAGR"])
	assert.Nil(t, stats["Volatility"])
	assert.Nil(t, stats["Beta"])
}

func TestAssembleSanitizesNonFiniteValues(t *testing.T) {
	o := &Outcome{
		Dates:           dates(2),
		PortfolioValues: []float64{10000, math.NaN()},
		Cash:            []float64{5, math.Inf(1)},
		SPYValues:       []float64{10000, 10100},
	}

	result := Assemble(o)
	require.Len(t, result.DailyValues, 2)

	assert.Equal(t, "2021-01-04", result.DailyValues[0].Date)
	assert.Nil(t, result.DailyValues[1].PortfolioValue)
	assert.Nil(t, result.DailyValues[1].Cash)
	assert.NotNil(t, result.SPYValues[1].SPYValue)

	// The document must serialize: NaN would make encoding/json fail.
	data, err := json.Marshal(result)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"portfolio_value":null`)
}

func TestLedgerBuySellAccounting(t *testing.T) {
	ledger := NewLedger(1000, zerolog.Nop())
	date := time.Date(2021, 1, 4, 0, 0, 0, 0, time.UTC)

	ledger.Buy(date, "AAA", 10, 20) // 200
	assert.InDelta(t, 800, ledger.Cash, 1e-9)
	assert.InDelta(t, 20, ledger.Holdings["AAA"].Shares, 1e-9)
	assert.InDelta(t, 10, ledger.Holdings["AAA"].AvgPrice, 1e-9)

	// Averaging in at a higher price.
	ledger.Buy(date.AddDate(0, 0, 1), "AAA", 20, 20) // 400
	assert.InDelta(t, 400, ledger.Cash, 1e-9)
	assert.InDelta(t, 15, ledger.Holdings["AAA"].AvgPrice, 1e-9)

	// Selling more than held clamps to the lot.
	ledger.Sell(date.AddDate(0, 0, 2), "AAA", 20, 100)
	assert.InDelta(t, 400+40*20, ledger.Cash, 1e-9)
	_, held := ledger.Holdings["AAA"]
	assert.False(t, held, "emptied lot should be removed")

	assert.Len(t, ledger.Log, 3)
}

func TestSharesHistoryRejectsOutOfOrderDates(t *testing.T) {
	var h SharesHistory
	d := time.Date(2021, 1, 5, 0, 0, 0, 0, time.UTC)
	h.Append(d, map[string]float64{"AAA": 1})

	assert.Panics(t, func() {
		h.Append(d, map[string]float64{"AAA": 2})
	})
}
