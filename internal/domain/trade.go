package domain

import "github.com/shopspring/decimal"

// TradeSide is the aggressor side of a public trade print.
type TradeSide string

const (
	TradeBuy  TradeSide = "buy"
	TradeSell TradeSide = "sell"
)

// Trade is one aggressive (taker) print. Immutable once recorded, per
// spec.md §3.
type Trade struct {
	Price       decimal.Decimal
	Quantity    decimal.Decimal
	Side        TradeSide
	TimestampMs int64
	ArrivalMs   int64
}

// SignedQuantity returns Quantity with a sign: positive for a buy,
// negative for a sell, used by CVD-style sums.
func (t Trade) SignedQuantity() decimal.Decimal {
	if t.Side == TradeSell {
		return t.Quantity.Neg()
	}
	return t.Quantity
}

// Notional returns Price*Quantity, used by VWAP accumulation.
func (t Trade) Notional() decimal.Decimal {
	return t.Price.Mul(t.Quantity)
}

// TimestampMillis implements domain.Timestamped so a Trade can live in a
// RollingWindow keyed by event time.
func (t Trade) TimestampMillis() int64 { return t.TimestampMs }
