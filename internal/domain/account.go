package domain

import (
	"fmt"
	"sync"

	"github.com/shopspring/decimal"
)

// Account tracks one trader's funds and shares, each split into an available
// and a frozen portion. Freezing reserves a resource against a resting order;
// settlement consumes from the frozen portion and cancellation releases it.
// Freeze and release never change the available+frozen total; only settlement
// does.
//
// All methods are atomic with respect to each other for the same account.
type Account struct {
	mu              sync.Mutex
	availableFunds  decimal.Decimal
	frozenFunds     decimal.Decimal
	availableShares int64
	frozenShares    int64
}

// Balances is a point-in-time copy of an account's state.
type Balances struct {
	AvailableFunds  decimal.Decimal
	FrozenFunds     decimal.Decimal
	AvailableShares int64
	FrozenShares    int64
}

func NewAccount(funds decimal.Decimal, shares int64) *Account {
	if funds.IsNegative() || shares < 0 {
		panic(fmt.Sprintf("account: negative endowment funds=%s shares=%d", funds, shares))
	}
	return &Account{availableFunds: funds, availableShares: shares}
}

// FreezeFunds moves amount from available to frozen. Returns false with no
// side effect when available funds are short; this is how insufficient funds
// is signalled, never an error.
func (a *Account) FreezeFunds(amount decimal.Decimal) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.availableFunds.LessThan(amount) {
		return false
	}
	a.availableFunds = a.availableFunds.Sub(amount)
	a.frozenFunds = a.frozenFunds.Add(amount)
	return true
}

// FreezeShares is the share-side counterpart of FreezeFunds.
func (a *Account) FreezeShares(qty int64) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.availableShares < qty {
		return false
	}
	a.availableShares -= qty
	a.frozenShares += qty
	return true
}

// ConsumeFrozenFunds removes amount at settlement. When the frozen portion is
// short the remainder is taken from available funds; exceeding the total
// balance means the ledger is corrupt and panics.
func (a *Account) ConsumeFrozenFunds(amount decimal.Decimal) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.frozenFunds.GreaterThanOrEqual(amount) {
		a.frozenFunds = a.frozenFunds.Sub(amount)
		return
	}
	rest := amount.Sub(a.frozenFunds)
	a.frozenFunds = decimal.Zero
	a.availableFunds = a.availableFunds.Sub(rest)
	if a.availableFunds.IsNegative() {
		panic(fmt.Sprintf("account: consumed %s funds beyond total balance", amount))
	}
}

// ConsumeFrozenShares removes qty at settlement, falling back to available
// shares like ConsumeFrozenFunds.
func (a *Account) ConsumeFrozenShares(qty int64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.frozenShares >= qty {
		a.frozenShares -= qty
		return
	}
	rest := qty - a.frozenShares
	a.frozenShares = 0
	a.availableShares -= rest
	if a.availableShares < 0 {
		panic(fmt.Sprintf("account: consumed %d shares beyond total balance", qty))
	}
}

// ReleaseFrozenFunds moves amount back from frozen to available on
// cancellation. Releasing more than is frozen means the ledger is corrupt and
// panics rather than clamping.
func (a *Account) ReleaseFrozenFunds(amount decimal.Decimal) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.frozenFunds.LessThan(amount) {
		panic(fmt.Sprintf("account: releasing %s funds with only %s frozen", amount, a.frozenFunds))
	}
	a.frozenFunds = a.frozenFunds.Sub(amount)
	a.availableFunds = a.availableFunds.Add(amount)
}

// ReleaseFrozenShares is the share-side counterpart of ReleaseFrozenFunds.
func (a *Account) ReleaseFrozenShares(qty int64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.frozenShares < qty {
		panic(fmt.Sprintf("account: releasing %d shares with only %d frozen", qty, a.frozenShares))
	}
	a.frozenShares -= qty
	a.availableShares += qty
}

// IncrementFunds credits proceeds unconditionally.
func (a *Account) IncrementFunds(amount decimal.Decimal) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.availableFunds = a.availableFunds.Add(amount)
}

// IncrementShares credits delivered shares unconditionally.
func (a *Account) IncrementShares(qty int64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.availableShares += qty
}

func (a *Account) AvailableFunds() decimal.Decimal {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.availableFunds
}

func (a *Account) AvailableShares() int64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.availableShares
}

func (a *Account) Balances() Balances {
	a.mu.Lock()
	defer a.mu.Unlock()
	return Balances{
		AvailableFunds:  a.availableFunds,
		FrozenFunds:     a.frozenFunds,
		AvailableShares: a.availableShares,
		FrozenShares:    a.frozenShares,
	}
}

// TotalFunds is available+frozen funds.
func (b Balances) TotalFunds() decimal.Decimal {
	return b.AvailableFunds.Add(b.FrozenFunds)
}

// TotalShares is available+frozen shares.
func (b Balances) TotalShares() int64 {
	return b.AvailableShares + b.FrozenShares
}
