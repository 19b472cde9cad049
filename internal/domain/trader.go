package domain

import "github.com/shopspring/decimal"

// Trader is the capability contract for anything that can own an account and
// receive post-trade callbacks. Callbacks are invoked synchronously while the
// engine settles, so implementations must return quickly and must not call
// back into the book.
type Trader interface {
	ID() string
	// Label identifies the trader's strategy family on transaction records.
	Label() string
	Account() *Account

	// OnFilled fires after each fill that touched one of this trader's
	// resting orders.
	OnFilled(side Side, volume int64, price decimal.Decimal)
	// OnMarketOrderSettled fires once per market-order execution this trader
	// aggressed with, carrying the total filled volume and the volume-weighted
	// average price.
	OnMarketOrderSettled(side Side, volume int64, avgPrice decimal.Decimal)
}
