package core

import (
	"time"

	"github.com/nvoronina/market-sim/internal/domain"
)

// TopOfBook aggregates resting orders into price levels, best-first, down to
// the requested depth per side. depth <= 0 returns the whole book.
func (b *OrderBook) TopOfBook(depth int) *domain.BookSnapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	return &domain.BookSnapshot{
		Symbol:    b.cfg.Symbol,
		Bids:      levels(b.bids, depth),
		Asks:      levels(b.asks, depth),
		LastPrice: b.lastPrice,
		Timestamp: time.Now(),
	}
}

func levels(side []*domain.Order, depth int) []domain.PriceLevel {
	var out []domain.PriceLevel
	for _, o := range side {
		if n := len(out); n > 0 && out[n-1].Price.Equal(o.Price) {
			out[n-1].Volume += o.Volume
			out[n-1].Orders++
			continue
		}
		if depth > 0 && len(out) == depth {
			break
		}
		out = append(out, domain.PriceLevel{Price: o.Price, Volume: o.Volume, Orders: 1})
	}
	return out
}

// Depth returns the number of resting orders per side.
func (b *OrderBook) Depth() (bids, asks int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.bids), len(b.asks)
}
