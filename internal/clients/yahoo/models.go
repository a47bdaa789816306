package yahoo

import (
	"fmt"
	"time"

	"github.com/SolarWolf-Code/quantedge/internal/marketdata"
)

// chartResponse represents the Yahoo Finance v8 chart API payload.
type chartResponse struct {
	Chart struct {
		Result []chartResult `json:"result"`
		Error  interface{}   `json:"error"`
	} `json:"chart"`
}

type chartResult struct {
	Timestamp  []int64 `json:"timestamp"`
	Indicators struct {
		Quote []struct {
			Open   []*float64 `json:"open"`
			High   []*float64 `json:"high"`
			Low    []*float64 `json:"low"`
			Close  []*float64 `json:"close"`
			Volume []*int64   `json:"volume"`
		} `json:"quote"`
		AdjClose []struct {
			AdjClose []*float64 `json:"adjclose"`
		} `json:"adjclose"`
	} `json:"indicators"`
}

// toSeries converts a chart result into a bar series, skipping rows with
// missing fields (Yahoo pads holidays with nulls).
func (r chartResult) toSeries() (marketdata.Series, error) {
	if len(r.Indicators.Quote) == 0 {
		return nil, fmt.Errorf("chart result has no quote data")
	}
	quote := r.Indicators.Quote[0]

	var adjCloses []*float64
	if len(r.Indicators.AdjClose) > 0 {
		adjCloses = r.Indicators.AdjClose[0].AdjClose
	}

	series := make(marketdata.Series, 0, len(r.Timestamp))
	for i, ts := range r.Timestamp {
		if i >= len(quote.Open) || i >= len(quote.High) || i >= len(quote.Low) ||
			i >= len(quote.Close) || i >= len(quote.Volume) {
			break
		}
		if quote.Open[i] == nil || quote.High[i] == nil || quote.Low[i] == nil ||
			quote.Close[i] == nil || quote.Volume[i] == nil {
			continue
		}

		bar := marketdata.Bar{
			Date:   marketdata.Date(time.Unix(ts, 0).UTC()),
			Open:   *quote.Open[i],
			High:   *quote.High[i],
			Low:    *quote.Low[i],
			Close:  *quote.Close[i],
			Volume: *quote.Volume[i],
		}

		// Indices like ^VIX carry no adjusted close; fall back to close.
		bar.AdjClose = bar.Close
		if i < len(adjCloses) && adjCloses[i] != nil {
			bar.AdjClose = *adjCloses[i]
		}

		series = append(series, bar)
	}

	return series, nil
}
