package cache

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/nvoronina/market-sim/internal/core"
	"github.com/nvoronina/market-sim/internal/port"
)

var _ port.BookListener = (*Refresher)(nil)

// Refresher keeps a BookCache in sync with the live book. It runs on the
// engine's asynchronous notification pump, so a slow cache delays other
// listeners but never the matching loop.
type Refresher struct {
	book  *core.OrderBook
	cache port.BookCache
	depth int
	log   *zap.Logger
}

func NewRefresher(book *core.OrderBook, cache port.BookCache, depth int, log *zap.Logger) *Refresher {
	if depth <= 0 {
		depth = 10
	}
	return &Refresher{book: book, cache: cache, depth: depth, log: log.Named("cache")}
}

func (r *Refresher) OnBookChanged() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	snap := r.book.TopOfBook(r.depth)
	if err := r.cache.SetBook(ctx, snap.Symbol, snap); err != nil {
		r.log.Warn("cache refresh failed", zap.Error(err))
	}
}
