// Package metrics exposes prometheus collectors fed from the engine's trade
// stream and book-change notifications.
package metrics

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nvoronina/market-sim/internal/core"
	"github.com/nvoronina/market-sim/internal/domain"
	"github.com/nvoronina/market-sim/internal/port"
)

var (
	_ port.TradeSink    = (*Collector)(nil)
	_ port.BookListener = (*Collector)(nil)
)

// Collector aggregates engine activity into prometheus metrics.
type Collector struct {
	book *core.OrderBook
	reg  *prometheus.Registry

	trades       *prometheus.CounterVec
	tradedVolume prometheus.Counter
	underfilled  *prometheus.CounterVec
	bookChanges  prometheus.Counter
	lastPrice    prometheus.Gauge
	bestBid      prometheus.Gauge
	bestAsk      prometheus.Gauge
}

func NewCollector(book *core.OrderBook) *Collector {
	c := &Collector{
		book: book,
		reg:  prometheus.NewRegistry(),
		trades: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "marketsim_trades_total",
			Help: "Completed transactions by order kind.",
		}, []string{"kind"}),
		tradedVolume: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "marketsim_traded_volume_total",
			Help: "Total shares traded.",
		}),
		underfilled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "marketsim_underfilled_total",
			Help: "Market/FOK executions that stopped short, by reason.",
		}, []string{"reason"}),
		bookChanges: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "marketsim_book_changes_total",
			Help: "Book-change notifications delivered (may be coalesced).",
		}),
		lastPrice: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "marketsim_last_trade_price",
			Help: "Most recent trade price.",
		}),
		bestBid: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "marketsim_best_bid_price",
			Help: "Best bid price, zero when the side is empty.",
		}),
		bestAsk: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "marketsim_best_ask_price",
			Help: "Best ask price, zero when the side is empty.",
		}),
	}
	c.reg.MustRegister(c.trades, c.tradedVolume, c.underfilled, c.bookChanges,
		c.lastPrice, c.bestBid, c.bestAsk)
	return c
}

func (c *Collector) RecordTransaction(_ context.Context, t *domain.Transaction) error {
	c.trades.WithLabelValues(string(t.Kind)).Inc()
	c.tradedVolume.Add(float64(t.Volume))
	if t.Underfilled() {
		c.underfilled.WithLabelValues(t.FailureReason).Inc()
	}
	if t.Price.IsPositive() {
		c.lastPrice.Set(t.Price.InexactFloat64())
	}
	return nil
}

func (c *Collector) OnBookChanged() {
	c.bookChanges.Inc()
	top := c.book.TopOfBook(1)
	if bid, ok := top.BestBid(); ok {
		c.bestBid.Set(bid.Price.InexactFloat64())
	} else {
		c.bestBid.Set(0)
	}
	if ask, ok := top.BestAsk(); ok {
		c.bestAsk.Set(ask.Price.InexactFloat64())
	} else {
		c.bestAsk.Set(0)
	}
}

// Handler serves the collector's registry.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.reg, promhttp.HandlerOpts{})
}
