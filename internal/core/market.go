package core

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/nvoronina/market-sim/internal/domain"
)

// SubmitMarket executes a market order by walking the opposing side from the
// best price outward. Nothing is pre-frozen: the true cost is unknown until
// the walk, so each leg freezes and immediately settles its own cost from the
// aggressor's available resource. The walk stops when the request is filled,
// the opposing side runs out, a candidate price leaves the slippage band, or
// the aggressor's own resource is exhausted. Any remainder is dropped, never
// rested, and recorded on the returned transaction.
func (b *OrderBook) SubmitMarket(t domain.Trader, side domain.Side, volume int64) (*domain.Transaction, error) {
	if t == nil || volume <= 0 {
		return nil, fmt.Errorf("%w: side=%s volume=%d", domain.ErrInvalidOrder, side, volume)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	ref := b.referencePriceLocked()
	floor, ceil := b.slippageBoundsLocked(ref)

	var (
		legs      []domain.FillLeg
		remaining = volume
		notional  = decimal.Zero
		failure   string
		depth     = 0
	)

	opp := b.sideOf(side.Opposite())
	i := 0
	for remaining > 0 && i < len(*opp) {
		resting := (*opp)[i]
		if resting.Owner.ID() == t.ID() {
			i++
			depth++
			continue
		}

		price := resting.Price
		if side == domain.Buy && price.GreaterThan(ceil) ||
			side == domain.Sell && price.LessThan(floor) {
			failure = domain.FailureSlippageBand
			break
		}

		fill := min64(remaining, resting.Volume)
		if side == domain.Buy {
			affordable := t.Account().AvailableFunds().Div(price).IntPart()
			if affordable <= 0 {
				failure = domain.FailureInsufficientFunds
				break
			}
			fill = min64(fill, affordable)
		} else {
			deliverable := t.Account().AvailableShares()
			if deliverable <= 0 {
				failure = domain.FailureInsufficientShares
				break
			}
			fill = min64(fill, deliverable)
		}

		// Stage the spend through a freeze so settlement only ever takes the
		// aggressor's available resource; frozen backing for its own resting
		// orders stays untouched.
		cost := price.Mul(decimal.NewFromInt(fill))
		if side == domain.Buy {
			if !t.Account().FreezeFunds(cost) {
				failure = domain.FailureInsufficientFunds
				break
			}
			t.Account().ConsumeFrozenFunds(cost)
			t.Account().IncrementShares(fill)
			resting.Owner.Account().ConsumeFrozenShares(fill)
			resting.Owner.Account().IncrementFunds(cost)
		} else {
			if !t.Account().FreezeShares(fill) {
				failure = domain.FailureInsufficientShares
				break
			}
			t.Account().ConsumeFrozenShares(fill)
			t.Account().IncrementFunds(cost)
			resting.Owner.Account().ConsumeFrozenFunds(cost)
			resting.Owner.Account().IncrementShares(fill)
		}

		legs = append(legs, domain.FillLeg{
			Price:             price,
			Volume:            fill,
			CounterpartyLabel: resting.Owner.Label(),
			DepthIndex:        depth,
		})
		remaining -= fill
		notional = notional.Add(cost)
		b.recordPriceLocked(price)

		resting.Owner.OnFilled(side.Opposite(), fill, price)

		resting.Volume -= fill
		if resting.Volume == 0 {
			b.removeLocked(side.Opposite(), i)
		} else {
			i++
		}
		depth++
	}

	actual := volume - remaining
	if remaining > 0 && failure == "" {
		failure = domain.FailureInsufficientLiquidity
	}

	tx := &domain.Transaction{
		ID:              uuid.NewString(),
		Kind:            domain.Market,
		Timestamp:       time.Now(),
		Volume:          actual,
		RequestedVolume: volume,
		ActualVolume:    actual,
		ReferencePrice:  ref,
		Legs:            legs,
		FailureReason:   failure,
	}
	if side == domain.Buy {
		tx.BuyerLabel = t.Label()
	} else {
		tx.SellerLabel = t.Label()
	}
	if actual > 0 {
		avg := notional.Div(decimal.NewFromInt(actual))
		tx.AveragePrice = avg
		tx.Price = avg
		if ref.IsPositive() {
			tx.SlippagePct = avg.Sub(ref).Div(ref)
		}
		t.OnMarketOrderSettled(side, actual, avg)
		b.notify()
	}
	b.publish(tx)

	b.log.Debug("market executed",
		zap.String("trader", t.ID()), zap.String("side", string(side)),
		zap.Int64("requested", volume), zap.Int64("actual", actual),
		zap.String("failure", failure))
	return tx, nil
}

// referencePriceLocked is the book mid-price when a valid, uncrossed top of
// book exists, otherwise the last trade price.
func (b *OrderBook) referencePriceLocked() decimal.Decimal {
	bid, ask, ok := b.topPricesLocked()
	if ok && bid.LessThanOrEqual(ask) {
		return bid.Add(ask).Div(decimal.NewFromInt(2))
	}
	return b.lastPrice
}

// topPricesLocked returns the best bid and ask prices, with ok=false unless
// both sides quote.
func (b *OrderBook) topPricesLocked() (bid, ask decimal.Decimal, ok bool) {
	if len(b.bids) == 0 || len(b.asks) == 0 {
		return decimal.Decimal{}, decimal.Decimal{}, false
	}
	return b.bids[0].Price, b.asks[0].Price, true
}

func (b *OrderBook) slippageBoundsLocked(ref decimal.Decimal) (floor, ceil decimal.Decimal) {
	one := decimal.NewFromInt(1)
	floor = ref.Mul(one.Sub(b.cfg.SlippageBand))
	ceil = ref.Mul(one.Add(b.cfg.SlippageBand))
	return floor, ceil
}
