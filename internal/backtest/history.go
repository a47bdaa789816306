package backtest

import "time"

// FloatHistory is an append-only series of per-date values, written in
// ascending date order (one entry per trading day).
type FloatHistory struct {
	dates  []time.Time
	values []float64
}

// Append records a value for a date. Dates must arrive in ascending order.
func (h *FloatHistory) Append(date time.Time, value float64) {
	if n := len(h.dates); n > 0 && !h.dates[n-1].Before(date) {
		panic("history dates must be strictly ascending")
	}
	h.dates = append(h.dates, date)
	h.values = append(h.values, value)
}

// Len returns the number of entries.
func (h *FloatHistory) Len() int { return len(h.dates) }

// At returns the i-th (date, value) pair.
func (h *FloatHistory) At(i int) (time.Time, float64) {
	return h.dates[i], h.values[i]
}

// Dates returns the date index.
func (h *FloatHistory) Dates() []time.Time { return h.dates }

// Values returns the value column.
func (h *FloatHistory) Values() []float64 { return h.values }

// SharesHistory is an append-only series of per-date holdings snapshots.
type SharesHistory struct {
	dates     []time.Time
	snapshots []map[string]float64
}

// Append records a copy of the holdings for a date.
func (h *SharesHistory) Append(date time.Time, shares map[string]float64) {
	if n := len(h.dates); n > 0 && !h.dates[n-1].Before(date) {
		panic("history dates must be strictly ascending")
	}
	snapshot := make(map[string]float64, len(shares))
	for sym, qty := range shares {
		snapshot[sym] = qty
	}
	h.dates = append(h.dates, date)
	h.snapshots = append(h.snapshots, snapshot)
}

// Len returns the number of entries.
func (h *SharesHistory) Len() int { return len(h.dates) }

// At returns the i-th (date, snapshot) pair. The snapshot must not be
// mutated.
func (h *SharesHistory) At(i int) (time.Time, map[string]float64) {
	return h.dates[i], h.snapshots[i]
}

// Symbols returns every symbol that appears in any snapshot.
func (h *SharesHistory) Symbols() []string {
	seen := make(map[string]struct{})
	for _, snapshot := range h.snapshots {
		for sym := range snapshot {
			seen[sym] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for sym := range seen {
		out = append(out, sym)
	}
	return out
}
