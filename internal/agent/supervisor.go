package agent

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/nvoronina/market-sim/internal/core"
)

// Supervisor runs a population of agents plus the periodic matching sweep
// that crosses resting limit orders.
type Supervisor struct {
	book          *core.OrderBook
	agents        []*Agent
	matchInterval time.Duration
	log           *zap.Logger
}

func NewSupervisor(book *core.OrderBook, agents []*Agent, matchInterval time.Duration, log *zap.Logger) *Supervisor {
	if matchInterval <= 0 {
		matchInterval = 100 * time.Millisecond
	}
	return &Supervisor{
		book:          book,
		agents:        agents,
		matchInterval: matchInterval,
		log:           log.Named("supervisor"),
	}
}

func (s *Supervisor) Agents() []*Agent { return s.agents }

// Run blocks until ctx is cancelled, then waits for every agent to stop.
func (s *Supervisor) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for _, a := range s.agents {
		wg.Add(1)
		go func(a *Agent) {
			defer wg.Done()
			a.Run(ctx)
		}(a)
	}
	s.log.Info("agents started", zap.Int("count", len(s.agents)))

	ticker := time.NewTicker(s.matchInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			wg.Wait()
			s.log.Info("agents stopped")
			return
		case <-ticker.C:
			s.book.Match()
		}
	}
}
