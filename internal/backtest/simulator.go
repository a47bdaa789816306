package backtest

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/SolarWolf-Code/quantedge/internal/marketdata"
	"github.com/SolarWolf-Code/quantedge/internal/strategy"
)

// Params configures one backtest run.
type Params struct {
	StartDate         time.Time
	EndDate           time.Time
	StartingCapital   float64
	MonthlyInvestment float64
}

// Outcome carries the raw per-day series a run produced. The result
// assembler turns it into the response document.
type Outcome struct {
	Dates           []time.Time
	PortfolioValues []float64
	Cash            []float64
	SPYValues       []float64

	Ledger *Ledger
}

// Simulator steps a calendar-day cursor across the backtest window,
// rebalancing on the last trading day of each month and advancing a SPY
// buy-and-hold benchmark in parallel. A run is strictly sequential: each
// day's state depends on the previous day's.
type Simulator struct {
	repo      marketdata.Repository
	evaluator *strategy.Evaluator
	log       zerolog.Logger

	// now is injectable for tests; the future-month guard compares
	// against it.
	now func() time.Time
}

// NewSimulator creates a simulator over a price repository and evaluator.
func NewSimulator(repo marketdata.Repository, evaluator *strategy.Evaluator, log zerolog.Logger) *Simulator {
	return &Simulator{
		repo:      repo,
		evaluator: evaluator,
		log:       log.With().Str("component", "simulator").Logger(),
		now:       time.Now,
	}
}

// Run executes a backtest. The context is checked once per simulated day;
// cancellation exits cleanly with the context's error.
func (s *Simulator) Run(ctx context.Context, rules strategy.NodeList, p Params) (*Outcome, error) {
	tradingDays, err := s.repo.TradingDays()
	if err != nil {
		return nil, err
	}
	if len(tradingDays) == 0 {
		return nil, fmt.Errorf("no trading days available")
	}

	tradingSet := make(map[string]bool, len(tradingDays))
	lastOfMonth := make(map[string]time.Time)
	for _, d := range tradingDays {
		tradingSet[marketdata.DateKey(d)] = true
		ym := d.Format("2006-01")
		if cur, ok := lastOfMonth[ym]; !ok || d.After(cur) {
			lastOfMonth[ym] = d
		}
	}

	ledger := NewLedger(p.StartingCapital, s.log)
	spyCash := p.StartingCapital
	spyShares := 0.0
	var spyCashHist, spySharesHist FloatHistory

	now := s.now()
	cursor := marketdata.Date(p.StartDate)
	end := marketdata.Date(p.EndDate)

	for !cursor.After(end) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		// Stop once the next month would reach past the present.
		if cursor.AddDate(0, 1, 0).After(now) {
			break
		}

		if !tradingSet[marketdata.DateKey(cursor)] {
			cursor = cursor.AddDate(0, 0, 1)
			continue
		}

		if lastOfMonth[cursor.Format("2006-01")].Equal(cursor) {
			// Benchmark branch: contribute and buy SPY with everything
			// above the cash floor.
			spyCash += p.MonthlyInvestment
			spyPrice, ok, err := s.priceAt(marketdata.BenchmarkSymbol, cursor)
			if err != nil {
				return nil, err
			}
			if ok && spyPrice > 0 {
				qty := (spyCash - MinCash) / spyPrice
				if qty > 0 {
					spyShares += qty
					spyCash -= qty * spyPrice
				}
			}

			// Portfolio branch: contribute, evaluate, sells before buys.
			ledger.Cash += p.MonthlyInvestment
			directive, err := s.evaluator.Evaluate(rules, cursor)
			if err != nil {
				return nil, err
			}
			if err := s.applySells(ledger, directive, cursor); err != nil {
				return nil, err
			}
			if err := s.applyBuys(ledger, directive, cursor); err != nil {
				return nil, err
			}

			s.log.Debug().
				Str("date", marketdata.DateKey(cursor)).
				Float64("cash", ledger.Cash).
				Int("positions", len(ledger.Holdings)).
				Msg("Rebalanced")
		}

		// Snapshot every trading day; between rebalances the state is
		// unchanged, which carries the previous entries forward.
		ledger.Snapshot(cursor)
		spySharesHist.Append(cursor, spyShares)
		spyCashHist.Append(cursor, spyCash)

		cursor = cursor.AddDate(0, 0, 1)
	}

	return s.valuate(ledger, &spySharesHist, &spyCashHist, p)
}

// applySells executes the directive's sells. Sells run before buys so buy
// sizing sees the cash they release.
func (s *Simulator) applySells(ledger *Ledger, d *strategy.Directive, date time.Time) error {
	for _, sym := range sortedKeys(d.Sell) {
		lot, held := ledger.Holdings[sym]
		if !held {
			continue
		}
		price, ok, err := s.priceAt(sym, date)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		ledger.Sell(date, sym, price, lot.Shares*d.Sell[sym])
	}
	return nil
}

// applyBuys executes the directive's buys, sizing each from the cash on
// hand when it runs: (cash - MinCash) × weight / price.
func (s *Simulator) applyBuys(ledger *Ledger, d *strategy.Directive, date time.Time) error {
	for _, sym := range sortedKeys(d.Buy) {
		price, ok, err := s.priceAt(sym, date)
		if err != nil {
			return err
		}
		if !ok || price <= 0 {
			continue
		}
		qty := (ledger.Cash - MinCash) * d.Buy[sym] / price
		ledger.Buy(date, sym, price, qty)
	}
	return nil
}

// priceAt returns the adjusted close of the newest bar at or before the
// date. ok is false when the symbol has no usable bar; only genuine store
// failures surface as errors.
func (s *Simulator) priceAt(symbol string, date time.Time) (float64, bool, error) {
	series, err := s.repo.History(symbol, date)
	if err != nil {
		if marketdataUnknown(err) {
			return 0, false, nil
		}
		return 0, false, err
	}
	if len(series) == 0 {
		return 0, false, nil
	}
	return series[len(series)-1].AdjClose, true, nil
}

// valuate loads the adjusted-close panel over every symbol ever held plus
// SPY and converts the share/cash histories into daily value series.
// Missing panel cells are carried forward from the last observation.
func (s *Simulator) valuate(ledger *Ledger, spySharesHist, spyCashHist *FloatHistory, p Params) (*Outcome, error) {
	symbols := ledger.SharesHist.Symbols()
	symbols = append(symbols, marketdata.BenchmarkSymbol)
	sort.Strings(symbols)
	symbols = dedupe(symbols)

	shared, err := s.repo.Panel(symbols, marketdata.Date(p.StartDate), marketdata.Date(p.EndDate))
	if err != nil {
		return nil, err
	}
	// The repository may hand the same panel to concurrent runs; fill a
	// private copy instead of writing through the shared one.
	panel := shared.ForwardFilled()

	n := ledger.SharesHist.Len()
	outcome := &Outcome{
		Dates:           make([]time.Time, 0, n),
		PortfolioValues: make([]float64, 0, n),
		Cash:            make([]float64, 0, n),
		SPYValues:       make([]float64, 0, n),
		Ledger:          ledger,
	}

	for i := 0; i < n; i++ {
		date, shares := ledger.SharesHist.At(i)
		_, cash := ledger.CashHist.At(i)

		total := cash
		for sym, qty := range shares {
			if price, ok := panel.Value(sym, date); ok {
				total += qty * price
			}
		}

		_, spyShares := spySharesHist.At(i)
		_, spyCash := spyCashHist.At(i)
		spyValue := spyCash
		if price, ok := panel.Value(marketdata.BenchmarkSymbol, date); ok {
			spyValue += spyShares * price
		}

		outcome.Dates = append(outcome.Dates, date)
		outcome.PortfolioValues = append(outcome.PortfolioValues, total)
		outcome.Cash = append(outcome.Cash, cash)
		outcome.SPYValues = append(outcome.SPYValues, spyValue)
	}

	return outcome, nil
}

func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func dedupe(sorted []string) []string {
	out := sorted[:0]
	for i, s := range sorted {
		if i == 0 || s != sorted[i-1] {
			out = append(out, s)
		}
	}
	return out
}

func marketdataUnknown(err error) bool {
	return errors.Is(err, marketdata.ErrSymbolUnknown)
}
