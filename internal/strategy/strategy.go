// Package strategy holds the closed set of trading heuristics. Each variant
// is a pure function from a market snapshot to an order intent; nothing here
// touches the engine or any shared state, so strategies stay trivially
// testable and the pricing math stays out of the matching core.
package strategy

import (
	"fmt"
	"math/rand"

	"github.com/shopspring/decimal"

	"github.com/nvoronina/market-sim/internal/domain"
)

// Snapshot is the market view a strategy decides on.
type Snapshot struct {
	LastPrice decimal.Decimal
	BestBid   decimal.Decimal // zero when the side is empty
	BestAsk   decimal.Decimal // zero when the side is empty
	BidVolume int64
	AskVolume int64
	// History holds recent trade prices, oldest first.
	History []decimal.Decimal

	// The deciding trader's own position.
	Funds  decimal.Decimal
	Shares int64
}

// Mid returns the mid-price when both sides quote, else the last trade price.
func (s Snapshot) Mid() decimal.Decimal {
	if s.BestBid.IsPositive() && s.BestAsk.IsPositive() {
		return s.BestBid.Add(s.BestAsk).Div(decimal.NewFromInt(2))
	}
	return s.LastPrice
}

type IntentKind int

const (
	IntentNone IntentKind = iota
	IntentLimit
	IntentMarket
	IntentFOK
)

// Intent is a strategy's decision for one tick. Price is ignored for market
// intents.
type Intent struct {
	Kind   IntentKind
	Side   domain.Side
	Price  decimal.Decimal
	Volume int64
}

// Strategy decides one intent per tick. The rng is owned by the calling agent
// so decisions are reproducible under a seeded source.
type Strategy interface {
	Name() string
	Decide(s Snapshot, rng *rand.Rand) Intent
}

// New builds a strategy by name.
func New(name string) (Strategy, error) {
	switch name {
	case "momentum":
		return NewMomentum(), nil
	case "contrarian":
		return NewContrarian(), nil
	case "value":
		return NewValue(decimal.Decimal{}), nil
	case "scalper":
		return NewScalper(), nil
	case "random":
		return NewRandom(), nil
	}
	return nil, fmt.Errorf("unknown strategy %q", name)
}

func average(prices []decimal.Decimal) decimal.Decimal {
	if len(prices) == 0 {
		return decimal.Zero
	}
	sum := decimal.Zero
	for _, p := range prices {
		sum = sum.Add(p)
	}
	return sum.Div(decimal.NewFromInt(int64(len(prices))))
}

// affordableVolume caps volume so a buy intent cannot exceed the trader's
// funds at the given price.
func affordableVolume(funds, price decimal.Decimal, want int64) int64 {
	if !price.IsPositive() {
		return 0
	}
	max := funds.Div(price).IntPart()
	if want < max {
		return want
	}
	return max
}
