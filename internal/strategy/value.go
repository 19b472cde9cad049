package strategy

import (
	"math/rand"

	"github.com/shopspring/decimal"

	"github.com/nvoronina/market-sim/internal/domain"
)

// Value anchors on a fair price and quotes limits toward it: buy when the
// market trades at a discount beyond the margin, sell at a premium. With no
// configured anchor it uses the long average of recent trades.
type Value struct {
	FairPrice decimal.Decimal
	Margin    decimal.Decimal // fraction of fair price, default 2%
	MaxVolume int64
}

func NewValue(fair decimal.Decimal) *Value {
	return &Value{FairPrice: fair, Margin: decimal.NewFromFloat(0.02), MaxVolume: 15}
}

func (v *Value) Name() string { return "value" }

func (v *Value) Decide(s Snapshot, rng *rand.Rand) Intent {
	fair := v.FairPrice
	if fair.IsZero() {
		fair = average(s.History)
	}
	if fair.IsZero() || s.LastPrice.IsZero() {
		return Intent{Kind: IntentNone}
	}

	band := fair.Mul(v.Margin)
	volume := rng.Int63n(v.MaxVolume) + 1
	switch {
	case s.LastPrice.LessThan(fair.Sub(band)):
		price := domain.QuantizePrice(s.LastPrice)
		volume = affordableVolume(s.Funds, price, volume)
		if volume <= 0 {
			return Intent{Kind: IntentNone}
		}
		return Intent{Kind: IntentLimit, Side: domain.Buy, Price: price, Volume: volume}
	case s.LastPrice.GreaterThan(fair.Add(band)) && s.Shares > 0:
		return Intent{Kind: IntentLimit, Side: domain.Sell, Price: domain.QuantizePrice(s.LastPrice), Volume: min64(volume, s.Shares)}
	}
	return Intent{Kind: IntentNone}
}

var _ Strategy = (*Value)(nil)

// Scalper works the touch. On a wide spread it improves the best bid by one
// tick hoping to capture the spread; on a tight spread it lifts the ask with
// a small fill-or-kill so it never ends up partially exposed.
type Scalper struct {
	WideSpread decimal.Decimal // spread considered wide, in price units
	Volume     int64
}

func NewScalper() *Scalper {
	return &Scalper{WideSpread: decimal.NewFromFloat(0.5), Volume: 2}
}

func (sc *Scalper) Name() string { return "scalper" }

func (sc *Scalper) Decide(s Snapshot, rng *rand.Rand) Intent {
	if !s.BestBid.IsPositive() || !s.BestAsk.IsPositive() {
		return Intent{Kind: IntentNone}
	}
	spread := s.BestAsk.Sub(s.BestBid)
	if spread.GreaterThanOrEqual(sc.WideSpread) {
		price := domain.QuantizePrice(s.BestBid.Add(tickAt(s.BestBid)))
		if price.GreaterThanOrEqual(s.BestAsk) {
			return Intent{Kind: IntentNone}
		}
		volume := affordableVolume(s.Funds, price, sc.Volume)
		if volume <= 0 {
			return Intent{Kind: IntentNone}
		}
		return Intent{Kind: IntentLimit, Side: domain.Buy, Price: price, Volume: volume}
	}
	if s.Shares >= sc.Volume && rng.Intn(2) == 0 {
		return Intent{Kind: IntentFOK, Side: domain.Sell, Price: s.BestBid, Volume: min64(sc.Volume, s.BidVolume)}
	}
	volume := affordableVolume(s.Funds, s.BestAsk, min64(sc.Volume, s.AskVolume))
	if volume <= 0 {
		return Intent{Kind: IntentNone}
	}
	return Intent{Kind: IntentFOK, Side: domain.Buy, Price: s.BestAsk, Volume: volume}
}

func tickAt(p decimal.Decimal) decimal.Decimal {
	if p.LessThan(decimal.NewFromInt(100)) {
		return decimal.NewFromFloat(0.1)
	}
	return decimal.NewFromFloat(0.5)
}

var _ Strategy = (*Scalper)(nil)
