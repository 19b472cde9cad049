package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type Side string
type OrderKind string

const (
	Buy  Side = "BUY"
	Sell Side = "SELL"

	Limit      OrderKind = "LIMIT"
	Market     OrderKind = "MARKET"
	FillOrKill OrderKind = "FOK"
)

// Opposite returns the counterparty side.
func (s Side) Opposite() Side {
	if s == Buy {
		return Sell
	}
	return Buy
}

// Order is a single trading intent. Price is fixed at insertion (already
// quantized); Volume is the remaining quantity and is decremented only by the
// matching loop. Market orders never rest on the book, so a resting order
// always carries a meaningful price.
type Order struct {
	ID          string
	Side        Side
	Kind        OrderKind
	Price       decimal.Decimal
	Volume      int64
	Owner       Trader
	SubmittedAt time.Time
	Sequence    uint64
}

// Notional is the funds required to hold the remaining volume at the order's
// limit price.
func (o *Order) Notional() decimal.Decimal {
	return o.Price.Mul(decimal.NewFromInt(o.Volume))
}
