package marketdata

import (
	"container/list"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// cacheCapacity bounds each query-shape cache, mirroring the upstream
// memoization limit of 128 distinct queries.
const cacheCapacity = 128

// lruCache is a small thread-safe LRU. Reads take the write lock because a
// hit promotes the entry; entries are immutable once stored.
type lruCache struct {
	mu       sync.Mutex
	capacity int
	order    *list.List
	entries  map[string]*list.Element
}

type lruEntry struct {
	key   string
	value interface{}
}

func newLRUCache(capacity int) *lruCache {
	return &lruCache{
		capacity: capacity,
		order:    list.New(),
		entries:  make(map[string]*list.Element),
	}
}

func (c *lruCache) get(key string) (interface{}, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	c.order.MoveToFront(el)
	return el.Value.(*lruEntry).value, true
}

func (c *lruCache) put(key string, value interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.entries[key]; ok {
		c.order.MoveToFront(el)
		el.Value.(*lruEntry).value = value
		return
	}

	c.entries[key] = c.order.PushFront(&lruEntry{key: key, value: value})
	if c.order.Len() > c.capacity {
		oldest := c.order.Back()
		c.order.Remove(oldest)
		delete(c.entries, oldest.Value.(*lruEntry).key)
	}
}

// CachedRepository memoizes repository reads process-wide. Concurrent
// backtests share it; cache fills for the same key are serialized through
// singleflight so a cold symbol is fetched upstream only once.
type CachedRepository struct {
	inner Repository

	histories *lruCache
	panels    *lruCache
	earliest  *lruCache

	tradingMu   sync.Mutex
	tradingDays []time.Time

	group singleflight.Group
}

// NewCachedRepository wraps a repository with per-query-shape LRU caches.
func NewCachedRepository(inner Repository) *CachedRepository {
	return &CachedRepository{
		inner:     inner,
		histories: newLRUCache(cacheCapacity),
		panels:    newLRUCache(cacheCapacity),
		earliest:  newLRUCache(cacheCapacity),
	}
}

// History implements Repository.
func (c *CachedRepository) History(symbol string, asOf time.Time) (Series, error) {
	key := "history|" + symbol + "|" + DateKey(asOf)
	if v, ok := c.histories.get(key); ok {
		return v.(Series), nil
	}

	v, err, _ := c.group.Do(key, func() (interface{}, error) {
		if v, ok := c.histories.get(key); ok {
			return v, nil
		}
		series, err := c.inner.History(symbol, asOf)
		if err != nil {
			return nil, err
		}
		c.histories.put(key, series)
		return series, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(Series), nil
}

// Panel implements Repository.
func (c *CachedRepository) Panel(symbols []string, start, end time.Time) (*Panel, error) {
	sorted := append([]string(nil), symbols...)
	sort.Strings(sorted)
	key := "panel|" + strings.Join(sorted, ",") + "|" + DateKey(start) + "|" + DateKey(end)

	if v, ok := c.panels.get(key); ok {
		return v.(*Panel), nil
	}

	v, err, _ := c.group.Do(key, func() (interface{}, error) {
		if v, ok := c.panels.get(key); ok {
			return v, nil
		}
		panel, err := c.inner.Panel(sorted, start, end)
		if err != nil {
			return nil, err
		}
		c.panels.put(key, panel)
		return panel, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Panel), nil
}

// EarliestDate implements Repository.
func (c *CachedRepository) EarliestDate(symbol string) (*time.Time, error) {
	key := "earliest|" + symbol
	if v, ok := c.earliest.get(key); ok {
		return v.(*time.Time), nil
	}

	v, err, _ := c.group.Do(key, func() (interface{}, error) {
		if v, ok := c.earliest.get(key); ok {
			return v, nil
		}
		d, err := c.inner.EarliestDate(symbol)
		if err != nil {
			return nil, err
		}
		c.earliest.put(key, d)
		return d, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*time.Time), nil
}

// TradingDays implements Repository. The calendar is loaded once and held
// for the process lifetime.
func (c *CachedRepository) TradingDays() ([]time.Time, error) {
	c.tradingMu.Lock()
	defer c.tradingMu.Unlock()

	if c.tradingDays != nil {
		return c.tradingDays, nil
	}
	days, err := c.inner.TradingDays()
	if err != nil {
		return nil, err
	}
	c.tradingDays = days
	return days, nil
}
