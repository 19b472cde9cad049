package core

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/nvoronina/market-sim/internal/domain"
)

// SubmitFOK submits a fill-or-kill order: it executes in full immediately or
// not at all. The pre-check is an aggregate volume sum over opposing orders
// priced at-or-better, not a simulated walk; it is sound only because the
// whole check-freeze-insert-match sequence runs under the engine lock, so no
// concurrent submission can claim the same liquidity in between. Returns
// false with zero side effects when the book cannot satisfy the order.
func (b *OrderBook) SubmitFOK(t domain.Trader, side domain.Side, price decimal.Decimal, volume int64) (*domain.Transaction, error) {
	if t == nil || volume <= 0 || !price.IsPositive() {
		return nil, fmt.Errorf("%w: side=%s price=%s volume=%d", domain.ErrInvalidOrder, side, price, volume)
	}
	price = domain.QuantizePrice(price)

	b.mu.Lock()
	defer b.mu.Unlock()

	// Own resting volume is excluded: matching skips self-trades, so counting
	// it would let the check pass and the execution underfill.
	available := b.availableOppositeVolumeLocked(side, price, t.ID())
	if available < volume {
		b.log.Debug("fok rejected",
			zap.String("trader", t.ID()), zap.String("side", string(side)),
			zap.Int64("requested", volume), zap.Int64("available", available))
		return nil, fmt.Errorf("%w: need %d, book offers %d at %s or better",
			domain.ErrFOKUnsatisfiable, volume, available, price)
	}

	if err := b.freezeFor(t, side, price, volume); err != nil {
		return nil, err
	}

	// Front-inserted so every cross of the pass matches it ahead of resting
	// orders at equal price. The lock is held until the order is fully
	// filled, so the transient out-of-order position is never observable.
	b.seq++
	o := &domain.Order{
		ID:          uuid.NewString(),
		Side:        side,
		Kind:        domain.FillOrKill,
		Price:       price,
		Volume:      volume,
		Owner:       t,
		SubmittedAt: time.Now(),
		Sequence:    b.seq,
	}
	s := b.sideOf(side)
	*s = append([]*domain.Order{o}, *s...)

	// Cross until the order is gone. The pre-checked liquidity cannot leave
	// the book while the lock is held, so the loop always terminates with a
	// full fill. A cross may also pair two resting orders that were already
	// crossed before this submission; those settle as ordinary trades and do
	// not touch the pre-checked volume.
	var (
		legs     []domain.FillLeg
		notional = decimal.Zero
	)
	for o.Volume > 0 {
		bi, ai, ok := b.bestCrossLocked()
		if !ok {
			panic(fmt.Sprintf("book: fill-or-kill %s lost its counted liquidity", o.ID))
		}
		opp, oppIdx, mine := b.asks[ai], ai, b.bids[bi] == o
		if side == domain.Sell {
			opp, oppIdx, mine = b.bids[bi], bi, b.asks[ai] == o
		}
		counterparty := opp.Owner.Label()

		crossTx := b.executeCrossLocked(bi, ai)
		if !mine {
			b.publish(crossTx)
			continue
		}
		legs = append(legs, domain.FillLeg{
			Price:             crossTx.Price,
			Volume:            crossTx.Volume,
			CounterpartyLabel: counterparty,
			DepthIndex:        oppIdx,
		})
		notional = notional.Add(crossTx.Price.Mul(decimal.NewFromInt(crossTx.Volume)))
	}

	avg := notional.Div(decimal.NewFromInt(volume))
	tx := &domain.Transaction{
		ID:              uuid.NewString(),
		Kind:            domain.FillOrKill,
		Timestamp:       time.Now(),
		Price:           avg,
		Volume:          volume,
		RequestedVolume: volume,
		ActualVolume:    volume,
		AveragePrice:    avg,
		Legs:            legs,
	}
	if side == domain.Buy {
		tx.BuyerLabel = t.Label()
	} else {
		tx.SellerLabel = t.Label()
	}
	b.publish(tx)
	b.notify()

	b.log.Debug("fok filled",
		zap.String("order", o.ID), zap.String("side", string(side)),
		zap.Int64("volume", volume), zap.String("avg_price", avg.String()))
	return tx, nil
}

// AvailableOppositeVolume sums resting opposing volume priced at-or-better
// than price, excluding orders owned by excludeTrader (empty excludes none).
// Used by the fill-or-kill pre-check and by agents sizing limit prices.
func (b *OrderBook) AvailableOppositeVolume(side domain.Side, price decimal.Decimal, excludeTrader string) int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.availableOppositeVolumeLocked(side, domain.QuantizePrice(price), excludeTrader)
}

func (b *OrderBook) availableOppositeVolumeLocked(side domain.Side, price decimal.Decimal, excludeTrader string) int64 {
	var total int64
	for _, o := range *b.sideOf(side.Opposite()) {
		atOrBetter := side == domain.Buy && o.Price.LessThanOrEqual(price) ||
			side == domain.Sell && o.Price.GreaterThanOrEqual(price)
		if !atOrBetter {
			break
		}
		if excludeTrader != "" && o.Owner.ID() == excludeTrader {
			continue
		}
		total += o.Volume
	}
	return total
}
