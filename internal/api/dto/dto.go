package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/nvoronina/market-sim/internal/domain"
)

type PriceLevel struct {
	Price  decimal.Decimal `json:"price"`
	Volume int64           `json:"volume"`
	Orders int             `json:"orders"`
}

type OrderbookResponse struct {
	Symbol    string          `json:"symbol"`
	Bids      []PriceLevel    `json:"bids"`
	Asks      []PriceLevel    `json:"asks"`
	LastPrice decimal.Decimal `json:"last_price"`
	Timestamp time.Time       `json:"timestamp"`
}

type FillLeg struct {
	Price        decimal.Decimal `json:"price"`
	Volume       int64           `json:"volume"`
	Counterparty string          `json:"counterparty"`
	DepthIndex   int             `json:"depth_index"`
}

type Transaction struct {
	ID              string          `json:"id"`
	Kind            string          `json:"kind"`
	BuyerLabel      string          `json:"buyer_label,omitempty"`
	SellerLabel     string          `json:"seller_label,omitempty"`
	Price           decimal.Decimal `json:"price"`
	Volume          int64           `json:"volume"`
	Timestamp       time.Time       `json:"timestamp"`
	RequestedVolume int64           `json:"requested_volume,omitempty"`
	ActualVolume    int64           `json:"actual_volume,omitempty"`
	AveragePrice    decimal.Decimal `json:"average_price,omitempty"`
	SlippagePct     decimal.Decimal `json:"slippage_pct,omitempty"`
	FailureReason   string          `json:"failure_reason,omitempty"`
	Legs            []FillLeg       `json:"legs,omitempty"`
}

type TransactionsResponse struct {
	Transactions []Transaction `json:"transactions"`
}

type Account struct {
	TraderID        string          `json:"trader_id"`
	Strategy        string          `json:"strategy"`
	AvailableFunds  decimal.Decimal `json:"available_funds"`
	FrozenFunds     decimal.Decimal `json:"frozen_funds"`
	AvailableShares int64           `json:"available_shares"`
	FrozenShares    int64           `json:"frozen_shares"`
	Fills           int64           `json:"fills"`
	TradedVolume    int64           `json:"traded_volume"`
}

type AccountsResponse struct {
	Accounts []Account `json:"accounts"`
}

type HealthResponse struct {
	Status string `json:"status"`
	Symbol string `json:"symbol"`
}

func FromSnapshot(s *domain.BookSnapshot) OrderbookResponse {
	resp := OrderbookResponse{
		Symbol:    s.Symbol,
		Bids:      make([]PriceLevel, 0, len(s.Bids)),
		Asks:      make([]PriceLevel, 0, len(s.Asks)),
		LastPrice: s.LastPrice,
		Timestamp: s.Timestamp,
	}
	for _, l := range s.Bids {
		resp.Bids = append(resp.Bids, PriceLevel{Price: l.Price, Volume: l.Volume, Orders: l.Orders})
	}
	for _, l := range s.Asks {
		resp.Asks = append(resp.Asks, PriceLevel{Price: l.Price, Volume: l.Volume, Orders: l.Orders})
	}
	return resp
}

func FromTransaction(t *domain.Transaction) Transaction {
	out := Transaction{
		ID:              t.ID,
		Kind:            string(t.Kind),
		BuyerLabel:      t.BuyerLabel,
		SellerLabel:     t.SellerLabel,
		Price:           t.Price,
		Volume:          t.Volume,
		Timestamp:       t.Timestamp,
		RequestedVolume: t.RequestedVolume,
		ActualVolume:    t.ActualVolume,
		AveragePrice:    t.AveragePrice,
		SlippagePct:     t.SlippagePct,
		FailureReason:   t.FailureReason,
	}
	for _, leg := range t.Legs {
		out.Legs = append(out.Legs, FillLeg{
			Price:        leg.Price,
			Volume:       leg.Volume,
			Counterparty: leg.CounterpartyLabel,
			DepthIndex:   leg.DepthIndex,
		})
	}
	return out
}
