package strategy

import (
	"math/rand"

	"github.com/nvoronina/market-sim/internal/domain"
)

// Momentum chases the trend: when the short moving average of recent trades
// pulls away from the long one it takes liquidity in the same direction with
// a market order.
type Momentum struct {
	ShortWindow int
	LongWindow  int
	MaxVolume   int64
}

func NewMomentum() *Momentum {
	return &Momentum{ShortWindow: 5, LongWindow: 20, MaxVolume: 10}
}

func (m *Momentum) Name() string { return "momentum" }

func (m *Momentum) Decide(s Snapshot, rng *rand.Rand) Intent {
	if len(s.History) < m.LongWindow {
		return Intent{Kind: IntentNone}
	}
	short := average(s.History[len(s.History)-m.ShortWindow:])
	long := average(s.History[len(s.History)-m.LongWindow:])

	volume := rng.Int63n(m.MaxVolume) + 1
	switch {
	case short.GreaterThan(long):
		volume = affordableVolume(s.Funds, s.Mid(), volume)
		if volume <= 0 {
			return Intent{Kind: IntentNone}
		}
		return Intent{Kind: IntentMarket, Side: domain.Buy, Volume: volume}
	case short.LessThan(long):
		if s.Shares <= 0 {
			return Intent{Kind: IntentNone}
		}
		return Intent{Kind: IntentMarket, Side: domain.Sell, Volume: min64(volume, s.Shares)}
	}
	return Intent{Kind: IntentNone}
}

func min64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}

var _ Strategy = (*Momentum)(nil)

// Contrarian fades the trend: it quotes limit orders against short-term moves,
// buying weakness below the long average and selling strength above it.
type Contrarian struct {
	Window    int
	MaxVolume int64
}

func NewContrarian() *Contrarian {
	return &Contrarian{Window: 20, MaxVolume: 10}
}

func (c *Contrarian) Name() string { return "contrarian" }

func (c *Contrarian) Decide(s Snapshot, rng *rand.Rand) Intent {
	if len(s.History) < c.Window {
		return Intent{Kind: IntentNone}
	}
	long := average(s.History[len(s.History)-c.Window:])
	last := s.LastPrice
	if last.IsZero() || long.IsZero() {
		return Intent{Kind: IntentNone}
	}

	volume := rng.Int63n(c.MaxVolume) + 1
	switch {
	case last.LessThan(long):
		// Price dipped under its average: bid at the dip.
		price := domain.QuantizePrice(last)
		volume = affordableVolume(s.Funds, price, volume)
		if volume <= 0 {
			return Intent{Kind: IntentNone}
		}
		return Intent{Kind: IntentLimit, Side: domain.Buy, Price: price, Volume: volume}
	case last.GreaterThan(long) && s.Shares > 0:
		return Intent{Kind: IntentLimit, Side: domain.Sell, Price: domain.QuantizePrice(last), Volume: min64(volume, s.Shares)}
	}
	return Intent{Kind: IntentNone}
}

var _ Strategy = (*Contrarian)(nil)
