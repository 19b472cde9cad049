package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// PriceLevel aggregates resting volume at one price.
type PriceLevel struct {
	Price  decimal.Decimal `json:"price"`
	Volume int64           `json:"volume"`
	Orders int             `json:"orders"`
}

// BookSnapshot is a read-only top-of-book view, bids best-first and asks
// best-first, truncated to the requested depth.
type BookSnapshot struct {
	Symbol    string          `json:"symbol"`
	Bids      []PriceLevel    `json:"bids"`
	Asks      []PriceLevel    `json:"asks"`
	LastPrice decimal.Decimal `json:"last_price"`
	Timestamp time.Time       `json:"timestamp"`
}

// BestBid returns the highest bid level, or false when the side is empty.
func (s *BookSnapshot) BestBid() (PriceLevel, bool) {
	if len(s.Bids) == 0 {
		return PriceLevel{}, false
	}
	return s.Bids[0], true
}

// BestAsk returns the lowest ask level, or false when the side is empty.
func (s *BookSnapshot) BestAsk() (PriceLevel, bool) {
	if len(s.Asks) == 0 {
		return PriceLevel{}, false
	}
	return s.Asks[0], true
}
