package marketdata

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/rs/zerolog"

	"github.com/SolarWolf-Code/quantedge/internal/database"
)

// Repository is the read interface the backtester core consumes.
type Repository interface {
	// History returns all bars for symbol with date <= asOf, ascending.
	History(symbol string, asOf time.Time) (Series, error)

	// Panel returns the adjusted-close matrix for the symbols between
	// start and end inclusive.
	Panel(symbols []string, start, end time.Time) (*Panel, error)

	// EarliestDate returns the first date with a bar for symbol, or nil
	// if the symbol has no data.
	EarliestDate(symbol string) (*time.Time, error)

	// TradingDays returns the market calendar: every date with an SPY bar,
	// ascending.
	TradingDays() ([]time.Time, error)
}

// Fetcher downloads the full daily history for a symbol from the upstream
// market-data provider.
type Fetcher interface {
	DownloadHistory(symbol string) (Series, error)
}

// Store reads bars from Postgres, fetching a symbol's history from the
// provider on first touch. Transient query failures are retried once.
type Store struct {
	db      *database.DB
	fetcher Fetcher
	log     zerolog.Logger
}

// NewStore creates a price store backed by the prices table.
func NewStore(db *database.DB, fetcher Fetcher, log zerolog.Logger) *Store {
	return &Store{
		db:      db,
		fetcher: fetcher,
		log:     log.With().Str("component", "marketdata").Logger(),
	}
}

// History implements Repository.
func (s *Store) History(symbol string, asOf time.Time) (Series, error) {
	series, err := s.queryHistory(symbol, asOf)
	if err != nil {
		return nil, err
	}
	if len(series) > 0 {
		return series, nil
	}

	// No rows at all for the symbol means it was never ingested; the
	// EarliestDate probe ingests it. A known symbol whose first bar is
	// after asOf legitimately has an empty history.
	earliest, err := s.EarliestDate(symbol)
	if err != nil {
		return nil, err
	}
	if earliest == nil {
		return nil, fmt.Errorf("%w: %s", ErrSymbolUnknown, symbol)
	}
	if earliest.After(asOf) {
		return Series{}, nil
	}
	return s.queryHistory(symbol, asOf)
}

// Panel implements Repository.
func (s *Store) Panel(symbols []string, start, end time.Time) (*Panel, error) {
	dates, err := s.TradingDays()
	if err != nil {
		return nil, err
	}
	window := make([]time.Time, 0, len(dates))
	for _, d := range dates {
		if d.Before(start) || d.After(end) {
			continue
		}
		window = append(window, d)
	}

	panel := NewPanel(window, symbols)

	rows, err := s.queryRetry(`
		SELECT symbol, date, adj_close
		FROM prices
		WHERE symbol = ANY($1) AND date >= $2 AND date <= $3
	`, pq.Array(symbols), start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var sym string
		var date time.Time
		var adjClose float64
		if err := rows.Scan(&sym, &date, &adjClose); err != nil {
			return nil, fmt.Errorf("failed to scan panel row: %w", err)
		}
		panel.Set(sym, Date(date), adjClose)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	return panel, nil
}

// EarliestDate implements Repository. A symbol with no stored bars is
// fetched from the provider first: availability checks are how strategy
// assets enter the store, so a miss here must not short-circuit ingestion.
func (s *Store) EarliestDate(symbol string) (*time.Time, error) {
	earliest, err := s.queryEarliest(symbol)
	if err != nil || earliest != nil {
		return earliest, err
	}

	if err := s.fetchAndSave(symbol); err != nil {
		return nil, err
	}
	return s.queryEarliest(symbol)
}

func (s *Store) queryEarliest(symbol string) (*time.Time, error) {
	var earliest sql.NullTime
	err := s.db.QueryRow(`SELECT MIN(date) FROM prices WHERE symbol = $1`, symbol).Scan(&earliest)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if !earliest.Valid {
		return nil, nil
	}
	d := Date(earliest.Time)
	return &d, nil
}

// TradingDays implements Repository.
func (s *Store) TradingDays() ([]time.Time, error) {
	rows, err := s.queryRetry(`
		SELECT date FROM prices WHERE symbol = $1 ORDER BY date
	`, BenchmarkSymbol)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var days []time.Time
	for rows.Next() {
		var d time.Time
		if err := rows.Scan(&d); err != nil {
			return nil, fmt.Errorf("failed to scan trading day: %w", err)
		}
		days = append(days, Date(d))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return days, nil
}

// SaveBars upserts a symbol's bars and registers the symbol.
func (s *Store) SaveBars(symbol string, bars Series) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`
		INSERT INTO symbols (symbol) VALUES ($1)
		ON CONFLICT (symbol) DO NOTHING
	`, symbol); err != nil {
		return fmt.Errorf("failed to register symbol %s: %w", symbol, err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO prices (symbol, date, open, high, low, close, adj_close, volume)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (symbol, date) DO UPDATE
		SET open = EXCLUDED.open, high = EXCLUDED.high, low = EXCLUDED.low,
		    close = EXCLUDED.close, adj_close = EXCLUDED.adj_close, volume = EXCLUDED.volume
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare price upsert: %w", err)
	}
	defer stmt.Close()

	for _, b := range bars {
		if _, err := stmt.Exec(symbol, b.Date, b.Open, b.High, b.Low, b.Close, b.AdjClose, b.Volume); err != nil {
			return fmt.Errorf("failed to upsert price %s %s: %w", symbol, DateKey(b.Date), err)
		}
	}

	return tx.Commit()
}

// AllSymbols lists every registered symbol.
func (s *Store) AllSymbols() ([]string, error) {
	rows, err := s.queryRetry(`SELECT symbol FROM symbols ORDER BY symbol`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var symbols []string
	for rows.Next() {
		var sym string
		if err := rows.Scan(&sym); err != nil {
			return nil, fmt.Errorf("failed to scan symbol: %w", err)
		}
		symbols = append(symbols, sym)
	}
	return symbols, rows.Err()
}

func (s *Store) queryHistory(symbol string, asOf time.Time) (Series, error) {
	rows, err := s.queryRetry(`
		SELECT date, open, high, low, close, adj_close, volume
		FROM prices
		WHERE symbol = $1 AND date <= $2
		ORDER BY date
	`, symbol, asOf)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var series Series
	for rows.Next() {
		var b Bar
		if err := rows.Scan(&b.Date, &b.Open, &b.High, &b.Low, &b.Close, &b.AdjClose, &b.Volume); err != nil {
			return nil, fmt.Errorf("failed to scan bar: %w", err)
		}
		b.Date = Date(b.Date)
		series = append(series, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return series, nil
}

func (s *Store) fetchAndSave(symbol string) error {
	s.log.Info().Str("symbol", symbol).Msg("No stored bars, fetching from provider")

	bars, err := s.fetcher.DownloadHistory(symbol)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrSymbolUnknown, symbol, err)
	}
	if len(bars) == 0 {
		return fmt.Errorf("%w: %s", ErrSymbolUnknown, symbol)
	}
	return s.SaveBars(symbol, bars)
}

// queryRetry runs a query, retrying once on failure. Transient store
// hiccups should not abort a whole backtest.
func (s *Store) queryRetry(query string, args ...interface{}) (*sql.Rows, error) {
	rows, err := s.db.Query(query, args...)
	if err == nil {
		return rows, nil
	}

	s.log.Warn().Err(err).Msg("Query failed, retrying once")
	rows, err = s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return rows, nil
}
