package indicators

import (
	"errors"
	"fmt"
	"time"

	"github.com/SolarWolf-Code/quantedge/internal/marketdata"
)

// ErrUnknownIndicator is returned for a name outside the registry. It is
// fatal: a strategy referencing a missing indicator aborts the backtest.
var ErrUnknownIndicator = errors.New("unknown indicator")

// Engine resolves indicator names against the price repository. It holds no
// state of its own; memoization lives in the repository.
type Engine struct {
	repo marketdata.Repository
}

// NewEngine creates an indicator engine over a price repository.
func NewEngine(repo marketdata.Repository) *Engine {
	return &Engine{repo: repo}
}

// Evaluate computes one indicator for a symbol as of a date. Only bars with
// date <= asOf can influence the result. A nil value with a nil error means
// the history is too short for the indicator's window.
func (e *Engine) Evaluate(name, symbol string, params []int, asOf time.Time) (*float64, error) {
	// The VIX indicators ignore the symbol and read the fixed VIX series.
	switch name {
	case "vix":
		vix, err := e.repo.History(marketdata.VIXSymbol, asOf)
		if err != nil {
			return nil, err
		}
		return VIX(vix, optionalPeriod(params)), nil
	case "vix_change":
		if len(params) != 1 {
			return nil, fmt.Errorf("vix_change requires 1 param, got %d", len(params))
		}
		vix, err := e.repo.History(marketdata.VIXSymbol, asOf)
		if err != nil {
			return nil, err
		}
		return VIXChange(vix, params[0]), nil
	}

	series, err := e.repo.History(symbol, asOf)
	if err != nil {
		return nil, err
	}

	switch name {
	case "current_price":
		return CurrentPrice(series), nil
	case "sma_price":
		return withPeriod(name, params, func(p int) *float64 { return SMAPrice(series, p) })
	case "ema":
		return withPeriod(name, params, func(p int) *float64 { return EMA(series, p) })
	case "rsi":
		return withPeriod(name, params, func(p int) *float64 { return RSI(series, p) })
	case "adx":
		return withPeriod(name, params, func(p int) *float64 { return ADX(series, p) })
	case "stochastic_oscillator":
		return withPeriod(name, params, func(p int) *float64 { return Stochastic(series, p) })
	case "standard_deviation_price":
		return withPeriod(name, params, func(p int) *float64 { return StdDevPrice(series, p) })
	case "sma_return":
		return withPeriod(name, params, func(p int) *float64 { return SMAReturn(series, p) })
	case "standard_deviation_return":
		return withPeriod(name, params, func(p int) *float64 { return StdDevReturn(series, p) })
	case "cumulative_return":
		return withPeriod(name, params, func(p int) *float64 { return CumulativeReturn(series, p) })
	case "atr":
		return withPeriod(name, params, func(p int) *float64 { return ATR(series, p) })
	case "atr_percent":
		return withPeriod(name, params, func(p int) *float64 { return ATRPercent(series, p) })
	case "max_drawdown":
		// Period is optional; zero means the whole history.
		return MaxDrawdown(series, optionalPeriod(params)), nil
	case "macd":
		if len(params) != 3 {
			return nil, fmt.Errorf("macd requires 3 params (fast, slow, signal), got %d", len(params))
		}
		return MACD(series, params[0], params[1], params[2]), nil
	case "sma_cross":
		if len(params) != 2 {
			return nil, fmt.Errorf("sma_cross requires 2 params (fast, slow), got %d", len(params))
		}
		return SMACross(series, params[0], params[1]), nil
	}

	return nil, fmt.Errorf("%w: %s", ErrUnknownIndicator, name)
}

func withPeriod(name string, params []int, fn func(int) *float64) (*float64, error) {
	if len(params) != 1 {
		return nil, fmt.Errorf("%s requires 1 param (period), got %d", name, len(params))
	}
	return fn(params[0]), nil
}

func optionalPeriod(params []int) int {
	if len(params) > 0 {
		return params[0]
	}
	return 0
}
