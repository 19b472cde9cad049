package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/nvoronina/market-sim/internal/adapter/audit"
	"github.com/nvoronina/market-sim/internal/adapter/cache"
	"github.com/nvoronina/market-sim/internal/adapter/metrics"
	"github.com/nvoronina/market-sim/internal/agent"
	httpapi "github.com/nvoronina/market-sim/internal/api/http"
	"github.com/nvoronina/market-sim/internal/config"
	"github.com/nvoronina/market-sim/internal/core"
	"github.com/nvoronina/market-sim/internal/strategy"
	"github.com/nvoronina/market-sim/pkg/logger"
)

func main() {
	configPath := flag.String("config", "", "path to simulator.yaml")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	log := logger.New(cfg.LogLevel)
	defer func() { _ = log.Sync() }()

	if err := run(cfg, log); err != nil {
		log.Fatal("simulator failed", zap.Error(err))
	}
}

func run(cfg *config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	book := core.NewOrderBook(core.Config{
		Symbol:         cfg.Engine.Symbol,
		SlippageBand:   decimal.NewFromFloat(cfg.Engine.SlippageBand),
		MaxMatchRounds: cfg.Engine.MaxMatchRounds,
		MaxSliceVolume: cfg.Engine.MaxSliceVolume,
		InitialPrice:   decimal.NewFromFloat(cfg.Engine.InitialPrice),
	}, log)

	trades := audit.NewMemory(cfg.AuditBuffer)
	book.AttachSink(trades)

	collector := metrics.NewCollector(book)
	book.AttachSink(collector)
	book.AttachListener(collector)

	if cfg.Postgres.DSN != "" {
		pg, err := audit.NewPostgres(ctx, cfg.Postgres.DSN)
		if err != nil {
			return err
		}
		defer pg.Close()
		book.AttachSink(pg)
		log.Info("postgres audit sink enabled")
	}

	if cfg.Redis.Addr != "" {
		rc := cache.NewRedisCache(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.TTL)
		defer func() { _ = rc.Close() }()
		book.AttachListener(cache.NewRefresher(book, rc, 10, log))
		log.Info("redis book cache enabled", zap.String("addr", cfg.Redis.Addr))
	}

	agents, err := buildAgents(cfg, book, log)
	if err != nil {
		return err
	}

	server := httpapi.NewServer(book, trades, agents, collector.Handler(), log)
	book.AttachListener(server)

	book.Start()
	defer book.Close()

	go func() {
		if err := server.Run(cfg.HTTPAddr); err != nil {
			log.Error("monitor API stopped", zap.Error(err))
		}
	}()

	sup := agent.NewSupervisor(book, agents, cfg.MatchInterval, log)
	log.Info("simulation running",
		zap.String("symbol", cfg.Engine.Symbol), zap.Int("agents", len(agents)))
	sup.Run(ctx)
	return nil
}

func buildAgents(cfg *config.Config, book *core.OrderBook, log *zap.Logger) ([]*agent.Agent, error) {
	var agents []*agent.Agent
	for _, group := range cfg.Agents {
		for i := 0; i < group.Count; i++ {
			strat, err := strategy.New(group.Strategy)
			if err != nil {
				return nil, err
			}
			agents = append(agents, agent.New(agent.Options{
				ID:         fmt.Sprintf("%s-%d", group.Strategy, i+1),
				Funds:      decimal.NewFromFloat(group.Funds),
				Shares:     group.Shares,
				Interval:   group.Interval,
				StaleAfter: cfg.StaleAfter,
			}, strat, book, log))
		}
	}
	return agents, nil
}
