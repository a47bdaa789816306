package marketdata

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingRepo counts calls through to a canned dataset.
type countingRepo struct {
	series       map[string]Series
	historyCalls int
	panelCalls   int
	earliest     int
	trading      int
}

func (r *countingRepo) History(symbol string, asOf time.Time) (Series, error) {
	r.historyCalls++
	s, ok := r.series[symbol]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSymbolUnknown, symbol)
	}
	out := Series{}
	for _, b := range s {
		if !b.Date.After(asOf) {
			out = append(out, b)
		}
	}
	return out, nil
}

func (r *countingRepo) Panel(symbols []string, start, end time.Time) (*Panel, error) {
	r.panelCalls++
	var dates []time.Time
	for _, b := range r.series[BenchmarkSymbol] {
		if !b.Date.Before(start) && !b.Date.After(end) {
			dates = append(dates, b.Date)
		}
	}
	p := NewPanel(dates, symbols)
	for _, sym := range symbols {
		for _, b := range r.series[sym] {
			p.Set(sym, b.Date, b.AdjClose)
		}
	}
	return p, nil
}

func (r *countingRepo) EarliestDate(symbol string) (*time.Time, error) {
	r.earliest++
	s, ok := r.series[symbol]
	if !ok || len(s) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrSymbolUnknown, symbol)
	}
	d := s[0].Date
	return &d, nil
}

func (r *countingRepo) TradingDays() ([]time.Time, error) {
	r.trading++
	var days []time.Time
	for _, b := range r.series[BenchmarkSymbol] {
		days = append(days, b.Date)
	}
	return days, nil
}

func testSeries() map[string]Series {
	return map[string]Series{
		BenchmarkSymbol: {
			{Date: day(2021, 1, 4), AdjClose: 370},
			{Date: day(2021, 1, 5), AdjClose: 371},
			{Date: day(2021, 1, 6), AdjClose: 373},
		},
	}
}

func TestCachedRepositoryMemoizesHistory(t *testing.T) {
	inner := &countingRepo{series: testSeries()}
	repo := NewCachedRepository(inner)

	asOf := day(2021, 1, 5)
	first, err := repo.History(BenchmarkSymbol, asOf)
	require.NoError(t, err)
	second, err := repo.History(BenchmarkSymbol, asOf)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, inner.historyCalls, "second read should hit the cache")

	// A different as-of date is a distinct key.
	_, err = repo.History(BenchmarkSymbol, day(2021, 1, 6))
	require.NoError(t, err)
	assert.Equal(t, 2, inner.historyCalls)
}

func TestCachedRepositoryDoesNotCacheErrors(t *testing.T) {
	inner := &countingRepo{series: testSeries()}
	repo := NewCachedRepository(inner)

	_, err := repo.History("NOPE", day(2021, 1, 5))
	assert.ErrorIs(t, err, ErrSymbolUnknown)

	_, err = repo.History("NOPE", day(2021, 1, 5))
	assert.ErrorIs(t, err, ErrSymbolUnknown)
	assert.Equal(t, 2, inner.historyCalls, "failures must not be memoized")
}

func TestCachedRepositoryPanelKeyIgnoresSymbolOrder(t *testing.T) {
	inner := &countingRepo{series: testSeries()}
	repo := NewCachedRepository(inner)

	start, end := day(2021, 1, 4), day(2021, 1, 6)
	_, err := repo.Panel([]string{"SPY", "AAPL"}, start, end)
	require.NoError(t, err)
	_, err = repo.Panel([]string{"AAPL", "SPY"}, start, end)
	require.NoError(t, err)

	assert.Equal(t, 1, inner.panelCalls)
}

func TestCachedRepositoryEarliestDateNotPinnedAcrossIngestion(t *testing.T) {
	inner := &countingRepo{series: testSeries()}
	repo := NewCachedRepository(inner)

	// Unknown before ingestion: the failure must not be memoized.
	_, err := repo.EarliestDate("AAPL")
	assert.ErrorIs(t, err, ErrSymbolUnknown)

	// The store ingests the symbol; the cache must see the new answer.
	inner.series["AAPL"] = Series{{Date: day(2021, 1, 5), AdjClose: 131}}

	d, err := repo.EarliestDate("AAPL")
	require.NoError(t, err)
	require.NotNil(t, d)
	assert.Equal(t, "2021-01-05", DateKey(*d))
	assert.Equal(t, 2, inner.earliest)

	// The successful answer is memoized.
	_, err = repo.EarliestDate("AAPL")
	require.NoError(t, err)
	assert.Equal(t, 2, inner.earliest)
}

func TestCachedRepositoryTradingDaysLoadedOnce(t *testing.T) {
	inner := &countingRepo{series: testSeries()}
	repo := NewCachedRepository(inner)

	first, err := repo.TradingDays()
	require.NoError(t, err)
	second, err := repo.TradingDays()
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, inner.trading)
}

func TestLRUCacheEvictsOldest(t *testing.T) {
	c := newLRUCache(2)

	c.put("a", 1)
	c.put("b", 2)

	// Touch "a" so "b" becomes the eviction candidate.
	_, ok := c.get("a")
	require.True(t, ok)

	c.put("c", 3)

	_, ok = c.get("b")
	assert.False(t, ok, "least recently used entry should be evicted")

	v, ok := c.get("a")
	assert.True(t, ok)
	assert.Equal(t, 1, v)

	v, ok = c.get("c")
	assert.True(t, ok)
	assert.Equal(t, 3, v)
}

func TestLRUCacheUpdateExisting(t *testing.T) {
	c := newLRUCache(2)
	c.put("a", 1)
	c.put("a", 10)

	v, ok := c.get("a")
	require.True(t, ok)
	assert.Equal(t, 10, v)
}
