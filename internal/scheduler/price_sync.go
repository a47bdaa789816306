package scheduler

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/SolarWolf-Code/quantedge/internal/marketdata"
)

// PriceSyncJob refreshes daily price history for every tracked symbol.
// Symbols that fail to download are skipped so one bad ticker does not
// stall the rest of the refresh.
type PriceSyncJob struct {
	store   *marketdata.Store
	fetcher marketdata.Fetcher
	log     zerolog.Logger
}

// NewPriceSyncJob creates a price sync job
func NewPriceSyncJob(store *marketdata.Store, fetcher marketdata.Fetcher, log zerolog.Logger) *PriceSyncJob {
	return &PriceSyncJob{
		store:   store,
		fetcher: fetcher,
		log:     log.With().Str("component", "price_sync").Logger(),
	}
}

// Name returns the job name
func (j *PriceSyncJob) Name() string {
	return "price_sync"
}

// Run downloads fresh history for every known symbol and upserts it
func (j *PriceSyncJob) Run() error {
	symbols, err := j.store.AllSymbols()
	if err != nil {
		return fmt.Errorf("listing symbols: %w", err)
	}
	if len(symbols) == 0 {
		j.log.Info().Msg("No symbols to refresh")
		return nil
	}

	var failed int
	for _, symbol := range symbols {
		bars, err := j.fetcher.DownloadHistory(symbol)
		if err != nil {
			failed++
			j.log.Warn().Err(err).Str("symbol", symbol).Msg("Download failed, skipping")
			continue
		}
		if err := j.store.SaveBars(symbol, bars); err != nil {
			failed++
			j.log.Warn().Err(err).Str("symbol", symbol).Msg("Save failed, skipping")
			continue
		}
		j.log.Debug().Str("symbol", symbol).Int("bars", len(bars)).Msg("Symbol refreshed")
	}

	j.log.Info().
		Int("symbols", len(symbols)).
		Int("failed", failed).
		Msg("Price sync complete")

	if failed == len(symbols) {
		return fmt.Errorf("all %d symbols failed to refresh", failed)
	}
	return nil
}
