// Package agent runs autonomous traders against the order book. Each agent
// owns an account, decides through a strategy on a jittered interval and
// converts the resulting intents into engine calls.
package agent

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/nvoronina/market-sim/internal/core"
	"github.com/nvoronina/market-sim/internal/domain"
	"github.com/nvoronina/market-sim/internal/strategy"
)

// Options configures one agent.
type Options struct {
	ID       string
	Funds    decimal.Decimal
	Shares   int64
	Interval time.Duration
	// StaleAfter is how long a resting order may sit before the agent cancels
	// it. Zero disables stale-order cleanup.
	StaleAfter time.Duration
	Seed       int64
}

type openOrder struct {
	id       string
	placedAt time.Time
}

// Agent is one autonomous trader. It implements domain.Trader.
type Agent struct {
	id      string
	account *domain.Account
	strat   strategy.Strategy
	book    *core.OrderBook
	rng     *rand.Rand
	log     *zap.Logger

	interval   time.Duration
	staleAfter time.Duration

	mu     sync.Mutex
	open   []openOrder
	fills  int64
	traded int64
}

func New(opts Options, strat strategy.Strategy, book *core.OrderBook, log *zap.Logger) *Agent {
	seed := opts.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	interval := opts.Interval
	if interval <= 0 {
		interval = 200 * time.Millisecond
	}
	return &Agent{
		id:         opts.ID,
		account:    domain.NewAccount(opts.Funds, opts.Shares),
		strat:      strat,
		book:       book,
		rng:        rand.New(rand.NewSource(seed)),
		log:        log.Named("agent").With(zap.String("id", opts.ID), zap.String("strategy", strat.Name())),
		interval:   interval,
		staleAfter: opts.StaleAfter,
	}
}

func (a *Agent) ID() string                  { return a.id }
func (a *Agent) Label() string               { return a.strat.Name() }
func (a *Agent) Account() *domain.Account    { return a.account }
func (a *Agent) Strategy() strategy.Strategy { return a.strat }

// OnFilled tracks fill statistics. Called by the engine under its lock, so it
// must not call back into the book.
func (a *Agent) OnFilled(side domain.Side, volume int64, price decimal.Decimal) {
	a.mu.Lock()
	a.fills++
	a.traded += volume
	a.mu.Unlock()
}

func (a *Agent) OnMarketOrderSettled(side domain.Side, volume int64, avgPrice decimal.Decimal) {
	a.mu.Lock()
	a.fills++
	a.traded += volume
	a.mu.Unlock()
	a.log.Debug("market order settled",
		zap.String("side", string(side)), zap.Int64("volume", volume),
		zap.String("avg_price", avgPrice.String()))
}

// Fills returns how many fills touched this agent and the total volume.
func (a *Agent) Fills() (count, volume int64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.fills, a.traded
}

// Run loops until the context is cancelled. Each tick it cancels stale
// orders, snapshots the market and acts on the strategy's intent.
func (a *Agent) Run(ctx context.Context) {
	// Jitter the start so a population of agents does not tick in lockstep.
	select {
	case <-ctx.Done():
		return
	case <-time.After(time.Duration(a.rng.Int63n(int64(a.interval)))):
	}

	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.cancelStale()
			a.act()
		}
	}
}

func (a *Agent) act() {
	intent := a.strat.Decide(a.snapshot(), a.rng)
	if intent.Kind == strategy.IntentNone || intent.Volume <= 0 {
		return
	}
	switch intent.Kind {
	case strategy.IntentLimit:
		o, err := a.book.SubmitLimit(a, intent.Side, intent.Price, intent.Volume)
		if err != nil {
			a.logRejection("limit", err)
			return
		}
		a.mu.Lock()
		a.open = append(a.open, openOrder{id: o.ID, placedAt: time.Now()})
		a.mu.Unlock()
	case strategy.IntentMarket:
		if _, err := a.book.SubmitMarket(a, intent.Side, intent.Volume); err != nil {
			a.logRejection("market", err)
		}
	case strategy.IntentFOK:
		if _, err := a.book.SubmitFOK(a, intent.Side, intent.Price, intent.Volume); err != nil {
			a.logRejection("fok", err)
		}
	}
}

// logRejection keeps expected rejections at debug level; anything else is
// unexpected and logged louder.
func (a *Agent) logRejection(kind string, err error) {
	switch {
	case errors.Is(err, domain.ErrInsufficientFunds),
		errors.Is(err, domain.ErrInsufficientShares),
		errors.Is(err, domain.ErrFOKUnsatisfiable):
		a.log.Debug("order rejected", zap.String("kind", kind), zap.Error(err))
	default:
		a.log.Warn("order failed", zap.String("kind", kind), zap.Error(err))
	}
}

func (a *Agent) snapshot() strategy.Snapshot {
	top := a.book.TopOfBook(1)
	balances := a.account.Balances()
	snap := strategy.Snapshot{
		LastPrice: top.LastPrice,
		History:   a.book.RecentPrices(0),
		Funds:     balances.AvailableFunds,
		Shares:    balances.AvailableShares,
	}
	if bid, ok := top.BestBid(); ok {
		snap.BestBid, snap.BidVolume = bid.Price, bid.Volume
	}
	if ask, ok := top.BestAsk(); ok {
		snap.BestAsk, snap.AskVolume = ask.Price, ask.Volume
	}
	return snap
}

// cancelStale cancels tracked orders older than StaleAfter. Orders already
// gone from the book (filled or merged away) are simply forgotten.
func (a *Agent) cancelStale() {
	if a.staleAfter <= 0 {
		return
	}
	now := time.Now()

	a.mu.Lock()
	var stale []string
	kept := a.open[:0]
	for _, o := range a.open {
		if now.Sub(o.placedAt) >= a.staleAfter {
			stale = append(stale, o.id)
		} else {
			kept = append(kept, o)
		}
	}
	a.open = kept
	a.mu.Unlock()

	for _, id := range stale {
		if a.book.Cancel(id) {
			a.log.Debug("cancelled stale order", zap.String("order", id))
		}
	}
}
