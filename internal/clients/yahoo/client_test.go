package yahoo

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Three trading days; the middle row is a null-padded holiday.
const chartFixture = `{
	"chart": {
		"result": [{
			"timestamp": [1609718400, 1609804800, 1609891200],
			"indicators": {
				"quote": [{
					"open":   [133.52, null, 127.72],
					"high":   [133.61, null, 131.05],
					"low":    [126.76, null, 126.38],
					"close":  [129.41, null, 130.92],
					"volume": [143301900, null, 97664900]
				}],
				"adjclose": [{
					"adjclose": [126.83, null, 128.31]
				}]
			}
		}],
		"error": null
	}
}`

const chartNoAdjClose = `{
	"chart": {
		"result": [{
			"timestamp": [1609718400],
			"indicators": {
				"quote": [{
					"open": [20.0], "high": [21.0], "low": [19.5], "close": [20.5], "volume": [0]
				}]
			}
		}],
		"error": null
	}
}`

func TestDownloadHistoryParsesChart(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		assert.Equal(t, "1d", r.URL.Query().Get("interval"))
		assert.Equal(t, "max", r.URL.Query().Get("range"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(chartFixture))
	}))
	defer srv.Close()

	client := NewClientWithBaseURL(srv.URL, zerolog.Nop())
	series, err := client.DownloadHistory("AAPL")
	require.NoError(t, err)
	assert.Equal(t, "/AAPL", gotPath)

	// The null holiday row is dropped.
	require.Len(t, series, 2)
	assert.Equal(t, "2021-01-04", series[0].Date.Format("2006-01-02"))
	assert.Equal(t, 129.41, series[0].Close)
	assert.Equal(t, 126.83, series[0].AdjClose)
	assert.Equal(t, int64(143301900), series[0].Volume)
	assert.Equal(t, "2021-01-06", series[1].Date.Format("2006-01-02"))
}

func TestDownloadHistoryAdjCloseFallsBackToClose(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(chartNoAdjClose))
	}))
	defer srv.Close()

	client := NewClientWithBaseURL(srv.URL, zerolog.Nop())
	series, err := client.DownloadHistory("^VIX")
	require.NoError(t, err)
	require.Len(t, series, 1)
	assert.Equal(t, 20.5, series[0].AdjClose)
}

func TestDownloadHistoryRetriesThenFails(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	client := NewClientWithBaseURL(srv.URL, zerolog.Nop())
	_, err := client.DownloadHistory("AAPL")
	require.Error(t, err)
	assert.Equal(t, 3, calls)
	assert.Contains(t, err.Error(), "429")
}

func TestDownloadHistoryRecoversAfterTransientFailure(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			http.Error(w, "bad gateway", http.StatusBadGateway)
			return
		}
		w.Write([]byte(chartFixture))
	}))
	defer srv.Close()

	client := NewClientWithBaseURL(srv.URL, zerolog.Nop())
	series, err := client.DownloadHistory("AAPL")
	require.NoError(t, err)
	assert.Len(t, series, 2)
	assert.Equal(t, 2, calls)
}

func TestDownloadHistoryAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"chart": {"result": [], "error": {"code": "Not Found"}}}`))
	}))
	defer srv.Close()

	client := NewClientWithBaseURL(srv.URL, zerolog.Nop())
	_, err := client.DownloadHistory("NOPE")
	assert.Error(t, err)
}
