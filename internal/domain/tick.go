package domain

import "github.com/shopspring/decimal"

// Exchange tick grid: 0.1 below 100, 0.5 at and above. Every price entering or
// leaving the book passes through QuantizePrice.
var (
	tickSwitch = decimal.NewFromInt(100)
	fineScale  = decimal.NewFromInt(10)
	coarseInv  = decimal.NewFromInt(2)
)

// QuantizePrice rounds p to the instrument tick grid. Idempotent: a price
// already on the grid is returned unchanged. Rounding on the fine grid can
// carry a 99.9x price across the switch; the result is then exactly 100,
// which sits on both grids.
func QuantizePrice(p decimal.Decimal) decimal.Decimal {
	if p.LessThan(tickSwitch) {
		return p.Mul(fineScale).Round(0).Div(fineScale)
	}
	return p.Mul(coarseInv).Round(0).Div(coarseInv)
}
