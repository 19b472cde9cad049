package core

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nvoronina/market-sim/internal/domain"
	"github.com/nvoronina/market-sim/internal/port"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

type fill struct {
	side   domain.Side
	volume int64
	price  decimal.Decimal
}

// testTrader is a minimal domain.Trader for driving the book directly.
type testTrader struct {
	id      string
	label   string
	account *domain.Account

	mu      sync.Mutex
	fills   []fill
	settled []fill
}

func newTrader(id string, funds string, shares int64) *testTrader {
	return &testTrader{
		id:      id,
		label:   "test-" + id,
		account: domain.NewAccount(d(funds), shares),
	}
}

func (t *testTrader) ID() string               { return t.id }
func (t *testTrader) Label() string            { return t.label }
func (t *testTrader) Account() *domain.Account { return t.account }

func (t *testTrader) OnFilled(side domain.Side, volume int64, price decimal.Decimal) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.fills = append(t.fills, fill{side, volume, price})
}

func (t *testTrader) OnMarketOrderSettled(side domain.Side, volume int64, avgPrice decimal.Decimal) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.settled = append(t.settled, fill{side, volume, avgPrice})
}

func (t *testTrader) fillCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.fills)
}

func newTestBook(t *testing.T) *OrderBook {
	t.Helper()
	return NewOrderBook(Config{Symbol: "TST", InitialPrice: d("100")}, nil)
}

func TestSubmitLimitFreezes(t *testing.T) {
	b := newTestBook(t)
	buyer := newTrader("b1", "1000", 0)

	o, err := b.SubmitLimit(buyer, domain.Buy, d("50"), 10)
	require.NoError(t, err)
	require.NotNil(t, o)

	bal := buyer.Account().Balances()
	assert.True(t, bal.AvailableFunds.Equal(d("500")))
	assert.True(t, bal.FrozenFunds.Equal(d("500")))
}

func TestSubmitLimitRejectsWhenShort(t *testing.T) {
	b := newTestBook(t)
	buyer := newTrader("b1", "100", 0)
	seller := newTrader("s1", "0", 5)

	_, err := b.SubmitLimit(buyer, domain.Buy, d("50"), 10)
	assert.ErrorIs(t, err, domain.ErrInsufficientFunds)

	_, err = b.SubmitLimit(seller, domain.Sell, d("50"), 10)
	assert.ErrorIs(t, err, domain.ErrInsufficientShares)

	// Nothing rested and nothing froze.
	bids, asks := b.Depth()
	assert.Zero(t, bids)
	assert.Zero(t, asks)
	assert.True(t, buyer.Account().Balances().FrozenFunds.IsZero())
	assert.Zero(t, seller.Account().Balances().FrozenShares)
}

func TestSubmitLimitInvalid(t *testing.T) {
	b := newTestBook(t)
	tr := newTrader("t1", "1000", 10)

	_, err := b.SubmitLimit(tr, domain.Buy, d("50"), 0)
	assert.ErrorIs(t, err, domain.ErrInvalidOrder)
	_, err = b.SubmitLimit(tr, domain.Buy, d("-1"), 5)
	assert.ErrorIs(t, err, domain.ErrInvalidOrder)
	_, err = b.SubmitLimit(nil, domain.Buy, d("50"), 5)
	assert.ErrorIs(t, err, domain.ErrInvalidOrder)
}

func TestSubmitLimitQuantizesPrice(t *testing.T) {
	b := newTestBook(t)
	buyer := newTrader("b1", "10000", 0)

	o, err := b.SubmitLimit(buyer, domain.Buy, d("99.97"), 10)
	require.NoError(t, err)
	assert.True(t, o.Price.Equal(d("100")), "got %s", o.Price)
	// Frozen at the quantized price.
	assert.True(t, buyer.Account().Balances().FrozenFunds.Equal(d("1000")))
}

func TestSameTraderSamePriceMerges(t *testing.T) {
	b := newTestBook(t)
	buyer := newTrader("b1", "10000", 0)

	first, err := b.SubmitLimit(buyer, domain.Buy, d("50"), 10)
	require.NoError(t, err)
	second, err := b.SubmitLimit(buyer, domain.Buy, d("50"), 5)
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, int64(15), first.Volume)

	top := b.TopOfBook(1)
	require.Len(t, top.Bids, 1)
	assert.Equal(t, int64(15), top.Bids[0].Volume)
	assert.Equal(t, 1, top.Bids[0].Orders)
	// Both freezes stand.
	assert.True(t, buyer.Account().Balances().FrozenFunds.Equal(d("750")))
}

func TestCancelReleasesExactly(t *testing.T) {
	b := newTestBook(t)
	buyer := newTrader("b1", "1000", 0)
	seller := newTrader("s1", "0", 20)

	o, err := b.SubmitLimit(buyer, domain.Buy, d("50"), 10)
	require.NoError(t, err)
	require.True(t, b.Cancel(o.ID))
	after := buyer.Account().Balances()
	assert.True(t, after.AvailableFunds.Equal(d("1000")))
	assert.True(t, after.FrozenFunds.IsZero())

	so, err := b.SubmitLimit(seller, domain.Sell, d("60"), 20)
	require.NoError(t, err)
	require.True(t, b.Cancel(so.ID))
	assert.Equal(t, int64(20), seller.Account().Balances().AvailableShares)

	// Unknown and repeated ids are no-ops.
	assert.False(t, b.Cancel(o.ID))
	assert.False(t, b.Cancel("nope"))
}

func TestMatchSettlesAtRestingPrice(t *testing.T) {
	b := newTestBook(t)
	seller := newTrader("s1", "0", 10)
	buyer := newTrader("b1", "1000", 0)

	// Sell rests first at 48, then a crossing buy at 50 arrives.
	_, err := b.SubmitLimit(seller, domain.Sell, d("48"), 10)
	require.NoError(t, err)
	_, err = b.SubmitLimit(buyer, domain.Buy, d("50"), 10)
	require.NoError(t, err)

	txs := b.Match()
	require.Len(t, txs, 1)
	assert.True(t, txs[0].Price.Equal(d("48")))
	assert.Equal(t, int64(10), txs[0].Volume)

	// Buyer froze 500, paid 480, got 20 back.
	bb := buyer.Account().Balances()
	assert.True(t, bb.AvailableFunds.Equal(d("520")), "got %s", bb.AvailableFunds)
	assert.True(t, bb.FrozenFunds.IsZero())
	assert.Equal(t, int64(10), bb.AvailableShares)

	sb := seller.Account().Balances()
	assert.True(t, sb.AvailableFunds.Equal(d("480")))
	assert.Zero(t, sb.FrozenShares)
	assert.Zero(t, sb.AvailableShares)

	// Both sides were told.
	assert.Equal(t, 1, buyer.fillCount())
	assert.Equal(t, 1, seller.fillCount())

	bids, asks := b.Depth()
	assert.Zero(t, bids)
	assert.Zero(t, asks)
}

func TestMatchPriceTimePriority(t *testing.T) {
	b := newTestBook(t)
	s1 := newTrader("s1", "0", 10)
	s2 := newTrader("s2", "0", 10)
	buyer := newTrader("b1", "10000", 0)

	// Same price: the earlier sell must fill first.
	_, err := b.SubmitLimit(s1, domain.Sell, d("50"), 10)
	require.NoError(t, err)
	_, err = b.SubmitLimit(s2, domain.Sell, d("50"), 10)
	require.NoError(t, err)
	_, err = b.SubmitLimit(buyer, domain.Buy, d("50"), 10)
	require.NoError(t, err)

	txs := b.Match()
	require.Len(t, txs, 1)
	assert.Equal(t, s1.label, txs[0].SellerLabel)
	assert.Equal(t, 1, s1.fillCount())
	assert.Equal(t, 0, s2.fillCount())
}

func TestMatchSkipsSelfTrade(t *testing.T) {
	b := newTestBook(t)
	tr := newTrader("t1", "10000", 10)
	other := newTrader("t2", "0", 10)

	// tr quotes both sides of a crossed market with itself.
	_, err := b.SubmitLimit(tr, domain.Buy, d("50"), 10)
	require.NoError(t, err)
	_, err = b.SubmitLimit(tr, domain.Sell, d("49"), 10)
	require.NoError(t, err)

	assert.Empty(t, b.Match())

	// A second seller at the same price trades against tr's bid instead.
	_, err = b.SubmitLimit(other, domain.Sell, d("49"), 10)
	require.NoError(t, err)
	txs := b.Match()
	require.Len(t, txs, 1)
	assert.Equal(t, other.label, txs[0].SellerLabel)
}

func TestMatchLeavesNoCross(t *testing.T) {
	b := newTestBook(t)
	buyers := make([]*testTrader, 5)
	sellers := make([]*testTrader, 5)
	for i := range buyers {
		buyers[i] = newTrader(fmt.Sprintf("b%d", i), "100000", 0)
		sellers[i] = newTrader(fmt.Sprintf("s%d", i), "0", 1000)
	}
	prices := []string{"49.5", "50", "50.5", "51", "51.5"}
	for i, p := range prices {
		_, err := b.SubmitLimit(buyers[i], domain.Buy, d(p), int64(10+i))
		require.NoError(t, err)
		_, err = b.SubmitLimit(sellers[i], domain.Sell, d(prices[len(prices)-1-i]), int64(5+i))
		require.NoError(t, err)
	}

	// Run sweeps until quiescent.
	for i := 0; i < 20; i++ {
		if len(b.Match()) == 0 {
			break
		}
	}

	top := b.TopOfBook(1)
	bid, haveBid := top.BestBid()
	ask, haveAsk := top.BestAsk()
	if haveBid && haveAsk {
		assert.True(t, bid.Price.LessThan(ask.Price),
			"book still crossed: bid %s >= ask %s", bid.Price, ask.Price)
	}
}

func TestMatchSliceCapDefersVolume(t *testing.T) {
	b := NewOrderBook(Config{InitialPrice: d("100"), MaxSliceVolume: 10, MaxMatchRounds: 2}, nil)
	seller := newTrader("s1", "0", 100)
	buyer := newTrader("b1", "10000", 0)

	_, err := b.SubmitLimit(seller, domain.Sell, d("50"), 100)
	require.NoError(t, err)
	_, err = b.SubmitLimit(buyer, domain.Buy, d("50"), 100)
	require.NoError(t, err)

	// Two rounds of ten shares each; the rest waits for the next invocation.
	txs := b.Match()
	require.Len(t, txs, 2)
	for _, tx := range txs {
		assert.Equal(t, int64(10), tx.Volume)
	}
	txs = b.Match()
	require.Len(t, txs, 2)

	bids, asks := b.Depth()
	assert.Equal(t, 1, bids)
	assert.Equal(t, 1, asks)
}

func TestListenersAndSinksRunOffEngine(t *testing.T) {
	b := newTestBook(t)
	seller := newTrader("s1", "0", 10)
	buyer := newTrader("b1", "1000", 0)

	notified := make(chan struct{}, 16)
	b.AttachListener(port.BookListenerFunc(func() {
		notified <- struct{}{}
	}))
	recorded := make(chan *domain.Transaction, 16)
	b.AttachSink(sinkFunc(func(tx *domain.Transaction) error {
		recorded <- tx
		return nil
	}))
	b.Start()
	defer b.Close()

	_, err := b.SubmitLimit(seller, domain.Sell, d("48"), 10)
	require.NoError(t, err)
	_, err = b.SubmitLimit(buyer, domain.Buy, d("50"), 10)
	require.NoError(t, err)
	require.Len(t, b.Match(), 1)

	select {
	case <-notified:
	case <-time.After(time.Second):
		t.Fatal("no book-change notification delivered")
	}
	select {
	case tx := <-recorded:
		assert.True(t, tx.Price.Equal(d("48")))
	case <-time.After(time.Second):
		t.Fatal("no transaction delivered to sink")
	}

	assert.Panics(t, func() { b.AttachListener(port.BookListenerFunc(func() {})) })
}

type sinkFunc func(*domain.Transaction) error

func (f sinkFunc) RecordTransaction(_ context.Context, tx *domain.Transaction) error {
	return f(tx)
}

func TestLedgerConservationUnderConcurrency(t *testing.T) {
	b := newTestBook(t)
	const n = 8
	traders := make([]*testTrader, n)
	for i := range traders {
		traders[i] = newTrader(fmt.Sprintf("t%d", i), "10000", 100)
	}
	totalFunds := d("10000").Mul(decimal.NewFromInt(n))
	totalShares := int64(100 * n)

	var wg sync.WaitGroup
	for i, tr := range traders {
		wg.Add(1)
		go func(i int, tr *testTrader) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				price := d("50").Add(decimal.NewFromInt(int64((i + j) % 7)))
				if (i+j)%2 == 0 {
					_, _ = b.SubmitLimit(tr, domain.Buy, price, 3)
				} else {
					_, _ = b.SubmitLimit(tr, domain.Sell, price, 3)
				}
				if j%10 == 0 {
					b.Match()
				}
			}
		}(i, tr)
	}
	wg.Wait()
	for i := 0; i < 50; i++ {
		if len(b.Match()) == 0 {
			break
		}
	}

	gotFunds := decimal.Zero
	gotShares := int64(0)
	for _, tr := range traders {
		bal := tr.Account().Balances()
		gotFunds = gotFunds.Add(bal.TotalFunds())
		gotShares += bal.TotalShares()
	}
	assert.True(t, gotFunds.Equal(totalFunds), "funds leaked: %s != %s", gotFunds, totalFunds)
	assert.Equal(t, totalShares, gotShares)
}
