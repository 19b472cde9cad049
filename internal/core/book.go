package core

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/nvoronina/market-sim/internal/domain"
	"github.com/nvoronina/market-sim/internal/port"
)

// Config tunes the matching engine.
type Config struct {
	Symbol string
	// SlippageBand is the market-order price band as a fraction of the
	// reference price (0.10 = ±10%).
	SlippageBand decimal.Decimal
	// MaxMatchRounds bounds the work of one matching invocation; crossable
	// volume beyond it is deferred to the next invocation.
	MaxMatchRounds int
	// MaxSliceVolume caps the volume of a single match so one giant order
	// cannot consume unbounded depth in one step. Zero disables the cap.
	MaxSliceVolume int64
	// InitialPrice seeds the last-trade price before the first match.
	InitialPrice decimal.Decimal
	// PriceHistory is how many recent trade prices the book retains for
	// inspection. Zero keeps the default.
	PriceHistory int
}

const (
	defaultMaxMatchRounds = 10
	defaultPriceHistory   = 64
)

func (c *Config) withDefaults() {
	if c.Symbol == "" {
		c.Symbol = "SIM"
	}
	if c.SlippageBand.IsZero() {
		c.SlippageBand = decimal.NewFromFloat(0.10)
	}
	if c.MaxMatchRounds <= 0 {
		c.MaxMatchRounds = defaultMaxMatchRounds
	}
	if c.InitialPrice.IsZero() {
		c.InitialPrice = decimal.NewFromInt(100)
	}
	if c.PriceHistory <= 0 {
		c.PriceHistory = defaultPriceHistory
	}
}

// OrderBook is a single-instrument continuous double-auction book. Bids are
// kept best-first (price descending, then arrival), asks best-first (price
// ascending, then arrival). Market orders execute immediately and never rest,
// so every resting entry carries a limit price. One engine-wide mutex
// serializes every submission, cancellation and matching pass, so at any
// instant exactly one logical operation is in flight against the book and the
// accounts it touches.
type OrderBook struct {
	cfg Config
	log *zap.Logger

	mu        sync.Mutex
	bids      []*domain.Order
	asks      []*domain.Order
	seq       uint64
	lastPrice decimal.Decimal
	history   []decimal.Decimal

	listeners []port.BookListener
	sinks     []port.TradeSink

	notifyCh chan struct{}
	tradeCh  chan *domain.Transaction
	quit     chan struct{}
	wg       sync.WaitGroup
	started  bool
}

func NewOrderBook(cfg Config, log *zap.Logger) *OrderBook {
	cfg.withDefaults()
	if log == nil {
		log = zap.NewNop()
	}
	return &OrderBook{
		cfg:       cfg,
		log:       log.Named("book"),
		lastPrice: domain.QuantizePrice(cfg.InitialPrice),
		notifyCh:  make(chan struct{}, 1),
		tradeCh:   make(chan *domain.Transaction, 256),
		quit:      make(chan struct{}),
	}
}

// AttachListener registers a book-change observer. Must be called before
// Start.
func (b *OrderBook) AttachListener(l port.BookListener) {
	if b.started {
		panic("book: AttachListener after Start")
	}
	b.listeners = append(b.listeners, l)
}

// AttachSink registers a transaction sink. Must be called before Start.
func (b *OrderBook) AttachSink(s port.TradeSink) {
	if b.started {
		panic("book: AttachSink after Start")
	}
	b.sinks = append(b.sinks, s)
}

// Start launches the background pump that fans out notifications and
// transaction records to listeners and sinks.
func (b *OrderBook) Start() {
	if b.started {
		return
	}
	b.started = true
	b.wg.Add(1)
	go b.pump()
}

// Close stops the pump. In-flight notifications are dropped.
func (b *OrderBook) Close() {
	if !b.started {
		return
	}
	close(b.quit)
	b.wg.Wait()
}

func (b *OrderBook) pump() {
	defer b.wg.Done()
	ctx := context.Background()
	for {
		select {
		case <-b.quit:
			return
		case <-b.notifyCh:
			for _, l := range b.listeners {
				l.OnBookChanged()
			}
		case tx := <-b.tradeCh:
			for _, s := range b.sinks {
				if err := s.RecordTransaction(ctx, tx); err != nil {
					b.log.Warn("trade sink failed", zap.String("tx", tx.ID), zap.Error(err))
				}
			}
		}
	}
}

// notify schedules a book-change notification. Non-blocking; back-to-back
// changes may coalesce into one notification.
func (b *OrderBook) notify() {
	select {
	case b.notifyCh <- struct{}{}:
	default:
	}
}

// publish hands a transaction to the sink stream. Non-blocking; a full stream
// drops the record rather than stalling the engine.
func (b *OrderBook) publish(tx *domain.Transaction) {
	select {
	case b.tradeCh <- tx:
	default:
		b.log.Warn("trade stream full, dropping record", zap.String("tx", tx.ID))
	}
}

// SubmitLimit quantizes the price, freezes the required resource on the
// trader's account and rests the order on the book. Matching happens in the
// periodic sweep, not here. Rejections leave the book and the account
// untouched.
func (b *OrderBook) SubmitLimit(t domain.Trader, side domain.Side, price decimal.Decimal, volume int64) (*domain.Order, error) {
	if t == nil || volume <= 0 || !price.IsPositive() {
		return nil, fmt.Errorf("%w: side=%s price=%s volume=%d", domain.ErrInvalidOrder, side, price, volume)
	}
	price = domain.QuantizePrice(price)

	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.freezeFor(t, side, price, volume); err != nil {
		b.log.Debug("limit rejected",
			zap.String("trader", t.ID()), zap.String("side", string(side)), zap.Error(err))
		return nil, err
	}

	o := b.insertOrMergeLocked(t, side, price, volume)
	b.log.Debug("limit resting",
		zap.String("order", o.ID), zap.String("side", string(side)),
		zap.String("price", price.String()), zap.Int64("volume", volume))
	b.notify()
	return o, nil
}

// freezeFor reserves price*volume funds for a buy or volume shares for a
// sell, translating a failed freeze into the matching sentinel error.
func (b *OrderBook) freezeFor(t domain.Trader, side domain.Side, price decimal.Decimal, volume int64) error {
	if side == domain.Buy {
		need := price.Mul(decimal.NewFromInt(volume))
		if !t.Account().FreezeFunds(need) {
			return fmt.Errorf("%w: need %s, have %s",
				domain.ErrInsufficientFunds, need, t.Account().AvailableFunds())
		}
		return nil
	}
	if !t.Account().FreezeShares(volume) {
		return fmt.Errorf("%w: need %d, have %d",
			domain.ErrInsufficientShares, volume, t.Account().AvailableShares())
	}
	return nil
}

// insertOrMergeLocked rests a new entry on the given side, or merges it into
// an existing same-trader entry at the identical price to keep the book
// compact. Merging only ever sums volumes; priority stays with the earlier
// entry.
func (b *OrderBook) insertOrMergeLocked(t domain.Trader, side domain.Side, price decimal.Decimal, volume int64) *domain.Order {
	for _, o := range *b.sideOf(side) {
		if o.Owner.ID() == t.ID() && o.Price.Equal(price) {
			o.Volume += volume
			return o
		}
	}

	b.seq++
	o := &domain.Order{
		ID:          uuid.NewString(),
		Side:        side,
		Kind:        domain.Limit,
		Price:       price,
		Volume:      volume,
		Owner:       t,
		SubmittedAt: time.Now(),
		Sequence:    b.seq,
	}
	b.insertLocked(o)
	return o
}

func (b *OrderBook) sideOf(side domain.Side) *[]*domain.Order {
	if side == domain.Buy {
		return &b.bids
	}
	return &b.asks
}

// insertLocked places o at its sorted position: price advantage, then arrival.
func (b *OrderBook) insertLocked(o *domain.Order) {
	side := b.sideOf(o.Side)
	pos := len(*side)
	for i, rest := range *side {
		if ordersBefore(o, rest) {
			pos = i
			break
		}
	}
	*side = append(*side, nil)
	copy((*side)[pos+1:], (*side)[pos:])
	(*side)[pos] = o
}

// ordersBefore reports whether a takes priority over c on their shared side.
func ordersBefore(a, c *domain.Order) bool {
	if !a.Price.Equal(c.Price) {
		if a.Side == domain.Buy {
			return a.Price.GreaterThan(c.Price)
		}
		return a.Price.LessThan(c.Price)
	}
	return a.Sequence < c.Sequence
}

// removeLocked drops the order at index i from side.
func (b *OrderBook) removeLocked(side domain.Side, i int) {
	s := b.sideOf(side)
	*s = append((*s)[:i], (*s)[i+1:]...)
}

// Cancel removes a resting order and releases its frozen resource. Returns
// false when the id is unknown or the order already left the book.
func (b *OrderBook) Cancel(orderID string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, side := range []domain.Side{domain.Buy, domain.Sell} {
		s := b.sideOf(side)
		for i, o := range *s {
			if o.ID != orderID {
				continue
			}
			b.removeLocked(side, i)
			if side == domain.Buy {
				o.Owner.Account().ReleaseFrozenFunds(o.Notional())
			} else {
				o.Owner.Account().ReleaseFrozenShares(o.Volume)
			}
			b.log.Debug("order cancelled",
				zap.String("order", o.ID), zap.String("side", string(side)),
				zap.Int64("volume", o.Volume))
			b.notify()
			return true
		}
	}
	return false
}

// LastPrice is the most recent trade price, seeded with the configured
// initial price.
func (b *OrderBook) LastPrice() decimal.Decimal {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lastPrice
}

// recordPriceLocked updates the last trade price and the bounded history.
func (b *OrderBook) recordPriceLocked(p decimal.Decimal) {
	b.lastPrice = p
	b.history = append(b.history, p)
	if over := len(b.history) - b.cfg.PriceHistory; over > 0 {
		b.history = b.history[over:]
	}
}

// RecentPrices returns up to limit recent trade prices, oldest first.
func (b *OrderBook) RecentPrices(limit int) []decimal.Decimal {
	b.mu.Lock()
	defer b.mu.Unlock()
	if limit <= 0 || limit > len(b.history) {
		limit = len(b.history)
	}
	out := make([]decimal.Decimal, limit)
	copy(out, b.history[len(b.history)-limit:])
	return out
}
