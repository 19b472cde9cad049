package core

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/nvoronina/market-sim/internal/domain"
)

// Match runs one matching invocation over the resting book: price-time
// priority, passive-price settlement, bounded rounds. Returns the
// transactions produced. Invoked by the periodic sweep.
func (b *OrderBook) Match() []*domain.Transaction {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.matchLocked()
}

func (b *OrderBook) matchLocked() []*domain.Transaction {
	var txs []*domain.Transaction
	for round := 0; round < b.cfg.MaxMatchRounds; round++ {
		bi, ai, ok := b.bestCrossLocked()
		if !ok {
			break
		}
		tx := b.executeCrossLocked(bi, ai)
		txs = append(txs, tx)
		b.publish(tx)
		b.notify()
	}
	return txs
}

// bestCrossLocked finds the highest-priority crossable (bid, ask) pair whose
// owners differ. Self-trade pairs are stepped over: first by trying deeper
// asks for the same bid, then deeper bids.
func (b *OrderBook) bestCrossLocked() (int, int, bool) {
	for i := range b.bids {
		for j := range b.asks {
			if !crossable(b.bids[i], b.asks[j]) {
				break
			}
			if b.bids[i].Owner.ID() == b.asks[j].Owner.ID() {
				continue
			}
			return i, j, true
		}
		// A bid that cannot cross the very best ask ends the search: every
		// deeper bid is worse.
		if len(b.asks) == 0 || !crossable(b.bids[i], b.asks[0]) {
			return 0, 0, false
		}
	}
	return 0, 0, false
}

// crossable implements the eligibility rule: the bid must reach the ask.
// Market orders never rest, so both sides always carry a limit price.
func crossable(bid, ask *domain.Order) bool {
	return bid.Price.GreaterThanOrEqual(ask.Price)
}

// executeCrossLocked settles one match between bids[bi] and asks[ai].
func (b *OrderBook) executeCrossLocked(bi, ai int) *domain.Transaction {
	bid, ask := b.bids[bi], b.asks[ai]

	price := crossPrice(bid, ask)

	volume := min64(bid.Volume, ask.Volume)
	if b.cfg.MaxSliceVolume > 0 {
		volume = min64(volume, b.cfg.MaxSliceVolume)
	}

	buyer, seller := bid.Owner, ask.Owner
	cost := price.Mul(decimal.NewFromInt(volume))

	// The buyer froze funds at its limit price; when the trade settles lower
	// the delta goes straight back to available.
	buyer.Account().ConsumeFrozenFunds(cost)
	if bid.Price.GreaterThan(price) {
		refund := bid.Price.Sub(price).Mul(decimal.NewFromInt(volume))
		buyer.Account().ReleaseFrozenFunds(refund)
	}
	buyer.Account().IncrementShares(volume)
	seller.Account().ConsumeFrozenShares(volume)
	seller.Account().IncrementFunds(cost)

	bid.Volume -= volume
	ask.Volume -= volume
	if ask.Volume == 0 {
		b.removeLocked(domain.Sell, ai)
	}
	if bid.Volume == 0 {
		b.removeLocked(domain.Buy, bi)
	}

	b.recordPriceLocked(price)

	buyer.OnFilled(domain.Buy, volume, price)
	seller.OnFilled(domain.Sell, volume, price)

	b.log.Debug("match",
		zap.String("buyer", buyer.Label()), zap.String("seller", seller.Label()),
		zap.String("price", price.String()), zap.Int64("volume", volume))

	return domain.NewTrade(uuid.NewString(), buyer.Label(), seller.Label(), price, volume, time.Now())
}

// crossPrice honors the passive side: the earlier-resting order's price
// settles the trade.
func crossPrice(bid, ask *domain.Order) decimal.Decimal {
	if ask.Sequence < bid.Sequence {
		return ask.Price
	}
	return bid.Price
}

func min64(a, c int64) int64 {
	if a < c {
		return a
	}
	return c
}
