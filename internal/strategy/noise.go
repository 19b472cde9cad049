package strategy

import (
	"math/rand"

	"github.com/shopspring/decimal"

	"github.com/nvoronina/market-sim/internal/domain"
)

// Random is noise: it flips a coin for the side, prices a limit a few ticks
// around the last trade and occasionally crosses with a market order. It
// exists to keep the book populated.
type Random struct {
	MaxVolume  int64
	MaxTicks   int
	MarketOdds int // one in MarketOdds decisions goes to market
}

func NewRandom() *Random {
	return &Random{MaxVolume: 8, MaxTicks: 5, MarketOdds: 10}
}

func (r *Random) Name() string { return "random" }

func (r *Random) Decide(s Snapshot, rng *rand.Rand) Intent {
	anchor := s.Mid()
	if anchor.IsZero() {
		return Intent{Kind: IntentNone}
	}
	side := domain.Buy
	if rng.Intn(2) == 0 {
		side = domain.Sell
	}
	volume := rng.Int63n(r.MaxVolume) + 1

	if rng.Intn(r.MarketOdds) == 0 {
		if side == domain.Sell {
			if s.Shares <= 0 {
				return Intent{Kind: IntentNone}
			}
			return Intent{Kind: IntentMarket, Side: domain.Sell, Volume: min64(volume, s.Shares)}
		}
		volume = affordableVolume(s.Funds, anchor, volume)
		if volume <= 0 {
			return Intent{Kind: IntentNone}
		}
		return Intent{Kind: IntentMarket, Side: domain.Buy, Volume: volume}
	}

	ticks := decimal.NewFromInt(int64(rng.Intn(r.MaxTicks) + 1))
	offset := tickAt(anchor).Mul(ticks)
	var price decimal.Decimal
	if side == domain.Buy {
		price = anchor.Sub(offset)
	} else {
		price = anchor.Add(offset)
	}
	if !price.IsPositive() {
		return Intent{Kind: IntentNone}
	}
	price = domain.QuantizePrice(price)

	if side == domain.Buy {
		volume = affordableVolume(s.Funds, price, volume)
		if volume <= 0 {
			return Intent{Kind: IntentNone}
		}
	} else {
		if s.Shares <= 0 {
			return Intent{Kind: IntentNone}
		}
		volume = min64(volume, s.Shares)
	}
	return Intent{Kind: IntentLimit, Side: side, Price: price, Volume: volume}
}

var _ Strategy = (*Random)(nil)
