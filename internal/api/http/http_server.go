// Package http serves the read-only monitor API: book inspection,
// transaction history, account balances and a websocket top-of-book stream.
// Nothing here mutates the engine.
package http

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/nvoronina/market-sim/internal/adapter/audit"
	"github.com/nvoronina/market-sim/internal/agent"
	"github.com/nvoronina/market-sim/internal/api/dto"
	"github.com/nvoronina/market-sim/internal/core"
	"github.com/nvoronina/market-sim/internal/domain"
	"github.com/nvoronina/market-sim/internal/middleware"
	"github.com/nvoronina/market-sim/internal/port"
)

var _ port.BookListener = (*Server)(nil)

const streamDepth = 10

type Server struct {
	book    *core.OrderBook
	trades  *audit.Memory
	agents  []*agent.Agent
	metrics http.Handler
	log     *zap.Logger
	stream  *hub[*domain.BookSnapshot]
	upgrade websocket.Upgrader
}

// NewServer wires the monitor API. metrics may be nil to omit /metrics.
func NewServer(book *core.OrderBook, trades *audit.Memory, agents []*agent.Agent, metrics http.Handler, log *zap.Logger) *Server {
	return &Server{
		book:    book,
		trades:  trades,
		agents:  agents,
		metrics: metrics,
		log:     log.Named("http"),
		stream:  newHub[*domain.BookSnapshot](),
		upgrade: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

// OnBookChanged pushes a fresh snapshot to every websocket subscriber. Runs
// on the engine's notification pump.
func (s *Server) OnBookChanged() {
	s.stream.Broadcast(s.book.TopOfBook(streamDepth))
}

func (s *Server) Run(addr string) error {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	rl := middleware.NewRateLimiter(50 * time.Millisecond)
	r.Use(rl.Middleware())

	r.GET("/healthz", s.health)
	r.GET("/orderbook", s.orderbook)
	r.GET("/transactions", s.transactions)
	r.GET("/accounts", s.accounts)
	r.GET("/stream", s.streamHandler)
	if s.metrics != nil {
		r.GET("/metrics", gin.WrapH(s.metrics))
	}

	s.log.Info("monitor API listening", zap.String("addr", addr))
	return r.Run(addr)
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, dto.HealthResponse{
		Status: "ok",
		Symbol: s.book.TopOfBook(0).Symbol,
	})
}

func (s *Server) orderbook(c *gin.Context) {
	depth := 10
	if raw := c.Query("depth"); raw != "" {
		d, err := strconv.Atoi(raw)
		if err != nil || d < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid depth"})
			return
		}
		depth = d
	}
	c.JSON(http.StatusOK, dto.FromSnapshot(s.book.TopOfBook(depth)))
}

func (s *Server) transactions(c *gin.Context) {
	limit := 100
	if raw := c.Query("limit"); raw != "" {
		l, err := strconv.Atoi(raw)
		if err != nil || l < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		limit = l
	}
	recent := s.trades.Recent(limit)
	resp := dto.TransactionsResponse{Transactions: make([]dto.Transaction, 0, len(recent))}
	for _, t := range recent {
		resp.Transactions = append(resp.Transactions, dto.FromTransaction(t))
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) accounts(c *gin.Context) {
	resp := dto.AccountsResponse{Accounts: make([]dto.Account, 0, len(s.agents))}
	for _, a := range s.agents {
		b := a.Account().Balances()
		fills, volume := a.Fills()
		resp.Accounts = append(resp.Accounts, dto.Account{
			TraderID:        a.ID(),
			Strategy:        a.Label(),
			AvailableFunds:  b.AvailableFunds,
			FrozenFunds:     b.FrozenFunds,
			AvailableShares: b.AvailableShares,
			FrozenShares:    b.FrozenShares,
			Fills:           fills,
			TradedVolume:    volume,
		})
	}
	c.JSON(http.StatusOK, resp)
}

// streamHandler upgrades to a websocket and forwards book snapshots until the
// client goes away.
func (s *Server) streamHandler(c *gin.Context) {
	conn, err := s.upgrade.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	sub := s.stream.Subscribe(16)
	defer s.stream.Unsubscribe(sub)

	// Drain client frames so close/ping handling works; discard the payloads.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	// Send the current state first so clients do not wait for a change.
	if err := conn.WriteJSON(dto.FromSnapshot(s.book.TopOfBook(streamDepth))); err != nil {
		return
	}
	for snap := range sub.ch {
		if err := conn.WriteJSON(dto.FromSnapshot(snap)); err != nil {
			return
		}
	}
}
