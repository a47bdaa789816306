package backtest

import (
	"time"

	"github.com/rs/zerolog"
)

// MinCash is the floor reserved against every buy so float error cannot
// drive the balance negative.
const MinCash = 5.0

// Lot is a fractional position in one symbol with its average cost basis.
type Lot struct {
	Shares   float64
	AvgPrice float64
}

// Transaction is one executed buy or sell.
type Transaction struct {
	Date   time.Time
	Symbol string
	Side   string // "buy" or "sell"
	Shares float64
	Price  float64
}

// Ledger tracks cash, holdings and per-day snapshots for one backtest.
// The simulator owns it exclusively.
type Ledger struct {
	Cash     float64
	Holdings map[string]Lot

	SharesHist SharesHistory
	CashHist   FloatHistory
	Log        []Transaction

	log zerolog.Logger
}

// NewLedger creates a ledger seeded with the starting capital.
func NewLedger(startingCapital float64, log zerolog.Logger) *Ledger {
	return &Ledger{
		Cash:     startingCapital,
		Holdings: make(map[string]Lot),
		log:      log.With().Str("component", "ledger").Logger(),
	}
}

// Buy adds quantity shares at price, updating the lot's average cost.
func (l *Ledger) Buy(date time.Time, symbol string, price, quantity float64) {
	if quantity <= 0 {
		return
	}

	l.Cash -= price * quantity

	lot := l.Holdings[symbol]
	if lot.Shares == 0 {
		lot = Lot{Shares: quantity, AvgPrice: price}
	} else {
		lot.AvgPrice = (lot.AvgPrice*lot.Shares + price*quantity) / (lot.Shares + quantity)
		lot.Shares += quantity
	}
	l.Holdings[symbol] = lot

	l.Log = append(l.Log, Transaction{Date: date, Symbol: symbol, Side: "buy", Shares: quantity, Price: price})
	l.log.Debug().
		Str("symbol", symbol).
		Float64("shares", quantity).
		Float64("price", price).
		Msg("Bought")
}

// Sell removes quantity shares at price. A lot emptied to zero is removed.
func (l *Ledger) Sell(date time.Time, symbol string, price, quantity float64) {
	lot, ok := l.Holdings[symbol]
	if !ok || quantity <= 0 {
		return
	}
	if quantity > lot.Shares {
		quantity = lot.Shares
	}

	l.Cash += price * quantity

	lot.Shares -= quantity
	if lot.Shares <= 0 {
		delete(l.Holdings, symbol)
	} else {
		l.Holdings[symbol] = lot
	}

	l.Log = append(l.Log, Transaction{Date: date, Symbol: symbol, Side: "sell", Shares: quantity, Price: price})
	l.log.Debug().
		Str("symbol", symbol).
		Float64("shares", quantity).
		Float64("price", price).
		Msg("Sold")
}

// Shares returns the current share counts per symbol.
func (l *Ledger) Shares() map[string]float64 {
	out := make(map[string]float64, len(l.Holdings))
	for sym, lot := range l.Holdings {
		out[sym] = lot.Shares
	}
	return out
}

// Snapshot records the current shares and cash for a trading day.
func (l *Ledger) Snapshot(date time.Time) {
	l.SharesHist.Append(date, l.Shares())
	l.CashHist.Append(date, l.Cash)
}
