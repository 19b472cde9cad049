package core

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nvoronina/market-sim/internal/domain"
)

func TestFOKRejectsThinBook(t *testing.T) {
	b := newTestBook(t)
	seller := newTrader("s1", "0", 40)
	buyer := newTrader("b1", "100000", 0)

	_, err := b.SubmitLimit(seller, domain.Sell, d("50"), 40)
	require.NoError(t, err)

	buyerBefore := buyer.Account().Balances()
	sellerBefore := seller.Account().Balances()

	tx, err := b.SubmitFOK(buyer, domain.Buy, d("50"), 100)
	assert.Nil(t, tx)
	assert.ErrorIs(t, err, domain.ErrFOKUnsatisfiable)

	// Rejection leaves every account and the book exactly as they were.
	assert.Equal(t, buyerBefore, buyer.Account().Balances())
	assert.Equal(t, sellerBefore, seller.Account().Balances())
	bids, asks := b.Depth()
	assert.Zero(t, bids)
	assert.Equal(t, 1, asks)
	assert.Zero(t, buyer.fillCount())
}

func TestFOKFillsAcrossLevels(t *testing.T) {
	b := newTestBook(t)
	s1 := newTrader("s1", "0", 60)
	s2 := newTrader("s2", "0", 50)
	buyer := newTrader("b1", "10000", 0)

	_, err := b.SubmitLimit(s1, domain.Sell, d("50"), 60)
	require.NoError(t, err)
	_, err = b.SubmitLimit(s2, domain.Sell, d("51"), 50)
	require.NoError(t, err)

	tx, err := b.SubmitFOK(buyer, domain.Buy, d("51"), 100)
	require.NoError(t, err)
	require.NotNil(t, tx)

	// 60 settle at the resting 50, 40 at 51; nothing of it rests afterwards.
	bb := buyer.Account().Balances()
	assert.Equal(t, int64(100), bb.AvailableShares)
	assert.True(t, bb.AvailableFunds.Equal(d("4960")), "got %s", bb.AvailableFunds)
	assert.True(t, bb.FrozenFunds.IsZero())

	assert.True(t, s1.Account().Balances().AvailableFunds.Equal(d("3000")))
	assert.True(t, s2.Account().Balances().AvailableFunds.Equal(d("2040")))
	assert.Equal(t, int64(10), s2.Account().Balances().FrozenShares)

	bids, asks := b.Depth()
	assert.Zero(t, bids)
	assert.Equal(t, 1, asks)
}

func TestFOKRecordsAggregateExecution(t *testing.T) {
	b := newTestBook(t)
	s1 := newTrader("s1", "0", 60)
	s2 := newTrader("s2", "0", 50)
	buyer := newTrader("b1", "10000", 0)

	recorded := make(chan *domain.Transaction, 16)
	b.AttachSink(sinkFunc(func(tx *domain.Transaction) error {
		recorded <- tx
		return nil
	}))
	b.Start()
	defer b.Close()

	_, err := b.SubmitLimit(s1, domain.Sell, d("50"), 60)
	require.NoError(t, err)
	_, err = b.SubmitLimit(s2, domain.Sell, d("51"), 50)
	require.NoError(t, err)

	tx, err := b.SubmitFOK(buyer, domain.Buy, d("51"), 100)
	require.NoError(t, err)

	assert.Equal(t, domain.FillOrKill, tx.Kind)
	assert.Equal(t, buyer.label, tx.BuyerLabel)
	assert.Equal(t, int64(100), tx.RequestedVolume)
	assert.Equal(t, int64(100), tx.ActualVolume)
	assert.False(t, tx.Underfilled())
	// VWAP of 60@50 + 40@51.
	assert.True(t, tx.AveragePrice.Equal(d("50.4")), "got %s", tx.AveragePrice)

	require.Len(t, tx.Legs, 2)
	assert.True(t, tx.Legs[0].Price.Equal(d("50")))
	assert.Equal(t, int64(60), tx.Legs[0].Volume)
	assert.Equal(t, s1.label, tx.Legs[0].CounterpartyLabel)
	assert.True(t, tx.Legs[1].Price.Equal(d("51")))
	assert.Equal(t, int64(40), tx.Legs[1].Volume)
	assert.Equal(t, s2.label, tx.Legs[1].CounterpartyLabel)

	// The sinks see the one aggregate record, not the per-cross trades.
	select {
	case got := <-recorded:
		assert.Equal(t, tx.ID, got.ID)
		assert.Equal(t, domain.FillOrKill, got.Kind)
	case <-time.After(time.Second):
		t.Fatal("no transaction delivered to sink")
	}
	select {
	case got := <-recorded:
		t.Fatalf("unexpected extra record %s (kind %s)", got.ID, got.Kind)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestFOKFillsManyCounterparties(t *testing.T) {
	b := newTestBook(t)
	buyer := newTrader("b1", "10000", 0)
	for i := 0; i < 12; i++ {
		s := newTrader(fmt.Sprintf("s%d", i), "0", 5)
		_, err := b.SubmitLimit(s, domain.Sell, d("50"), 5)
		require.NoError(t, err)
	}

	// Needs twelve crosses, more than one sweep's round allowance.
	tx, err := b.SubmitFOK(buyer, domain.Buy, d("50"), 60)
	require.NoError(t, err)
	assert.Equal(t, int64(60), tx.ActualVolume)
	assert.Len(t, tx.Legs, 12)

	bb := buyer.Account().Balances()
	assert.Equal(t, int64(60), bb.AvailableShares)
	assert.True(t, bb.AvailableFunds.Equal(d("7000")))
	assert.True(t, bb.FrozenFunds.IsZero())
	_, asks := b.Depth()
	assert.Zero(t, asks)
}

func TestFOKFillsPastSliceCap(t *testing.T) {
	b := NewOrderBook(Config{InitialPrice: d("100"), MaxSliceVolume: 10, MaxMatchRounds: 2}, nil)
	seller := newTrader("s1", "0", 60)
	buyer := newTrader("b1", "10000", 0)

	_, err := b.SubmitLimit(seller, domain.Sell, d("50"), 60)
	require.NoError(t, err)

	tx, err := b.SubmitFOK(buyer, domain.Buy, d("50"), 60)
	require.NoError(t, err)
	assert.Equal(t, int64(60), tx.ActualVolume)
	assert.Equal(t, int64(60), buyer.Account().Balances().AvailableShares)
	assert.True(t, buyer.Account().Balances().FrozenFunds.IsZero())
}

func TestFOKExcludesOwnRestingVolume(t *testing.T) {
	b := newTestBook(t)
	tr := newTrader("t1", "100000", 50)
	other := newTrader("t2", "0", 40)

	_, err := b.SubmitLimit(tr, domain.Sell, d("50"), 50)
	require.NoError(t, err)
	_, err = b.SubmitLimit(other, domain.Sell, d("50"), 40)
	require.NoError(t, err)

	// Only the 40 foreign shares count toward the pre-check.
	assert.Equal(t, int64(40), b.AvailableOppositeVolume(domain.Buy, d("50"), tr.ID()))
	assert.Equal(t, int64(90), b.AvailableOppositeVolume(domain.Buy, d("50"), ""))

	tx, err := b.SubmitFOK(tr, domain.Buy, d("50"), 80)
	assert.Nil(t, tx)
	assert.ErrorIs(t, err, domain.ErrFOKUnsatisfiable)

	tx, err = b.SubmitFOK(tr, domain.Buy, d("50"), 40)
	require.NoError(t, err)
	assert.Equal(t, int64(40), tx.ActualVolume)
	assert.Equal(t, int64(40), tr.Account().Balances().AvailableShares)
}

func TestFOKSellSide(t *testing.T) {
	b := newTestBook(t)
	bidder := newTrader("q1", "10000", 0)
	seller := newTrader("s1", "0", 30)

	_, err := b.SubmitLimit(bidder, domain.Buy, d("60"), 30)
	require.NoError(t, err)

	tx, err := b.SubmitFOK(seller, domain.Sell, d("60"), 30)
	require.NoError(t, err)
	assert.Equal(t, seller.label, tx.SellerLabel)

	sb := seller.Account().Balances()
	assert.True(t, sb.AvailableFunds.Equal(d("1800")))
	assert.Zero(t, sb.FrozenShares)
	assert.Zero(t, sb.AvailableShares)
	assert.Equal(t, int64(30), bidder.Account().Balances().AvailableShares)
}

func TestFOKRejectsWithoutResources(t *testing.T) {
	b := newTestBook(t)
	seller := newTrader("s1", "0", 100)
	buyer := newTrader("b1", "10", 0)

	_, err := b.SubmitLimit(seller, domain.Sell, d("50"), 100)
	require.NoError(t, err)

	// Liquidity is there but the buyer cannot fund the freeze.
	tx, err := b.SubmitFOK(buyer, domain.Buy, d("50"), 10)
	assert.Nil(t, tx)
	assert.ErrorIs(t, err, domain.ErrInsufficientFunds)
	assert.Equal(t, int64(100), b.AvailableOppositeVolume(domain.Buy, d("50"), ""))
}

func TestFOKPriceWorseThanBook(t *testing.T) {
	b := newTestBook(t)
	seller := newTrader("s1", "0", 100)
	buyer := newTrader("b1", "100000", 0)

	_, err := b.SubmitLimit(seller, domain.Sell, d("50"), 100)
	require.NoError(t, err)

	// A buy limit below the only ask finds no at-or-better volume.
	tx, err := b.SubmitFOK(buyer, domain.Buy, d("49"), 10)
	assert.Nil(t, tx)
	assert.ErrorIs(t, err, domain.ErrFOKUnsatisfiable)
}
