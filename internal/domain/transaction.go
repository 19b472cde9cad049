package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// FillLeg is one partial fill inside a market or FOK execution.
type FillLeg struct {
	Price             decimal.Decimal
	Volume            int64
	CounterpartyLabel string
	// DepthIndex is the resting order's position from the top of the opposing
	// side when the walk reached it.
	DepthIndex int
}

// Transaction is the immutable audit record of one completed match, or of one
// market/FOK execution consisting of several legs. Nothing in the engine reads
// it back; it exists for sinks and statistics.
type Transaction struct {
	ID          string
	Kind        OrderKind
	BuyerLabel  string
	SellerLabel string
	Price       decimal.Decimal
	Volume      int64
	Timestamp   time.Time

	// Market/FOK executions only.
	RequestedVolume int64
	ActualVolume    int64
	AveragePrice    decimal.Decimal
	ReferencePrice  decimal.Decimal
	SlippagePct     decimal.Decimal
	Legs            []FillLeg
	FailureReason   string
}

// Underfilled reports whether a market/FOK execution stopped short of its
// requested volume.
func (t *Transaction) Underfilled() bool {
	return t.RequestedVolume > 0 && t.ActualVolume < t.RequestedVolume
}

// NewTrade builds the record of a single matched pass between two resting
// orders, priced at the passive side.
func NewTrade(id string, buyerLabel, sellerLabel string, price decimal.Decimal, volume int64, at time.Time) *Transaction {
	return &Transaction{
		ID:          id,
		Kind:        Limit,
		BuyerLabel:  buyerLabel,
		SellerLabel: sellerLabel,
		Price:       price,
		Volume:      volume,
		Timestamp:   at,
	}
}
