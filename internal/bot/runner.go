// internal/bot/runner.go
package bot

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Kai-0601/TelegramBot/internal/config"
	"github.com/Kai-0601/TelegramBot/internal/credential"
	"github.com/Kai-0601/TelegramBot/internal/dispatch"
	"github.com/Kai-0601/TelegramBot/internal/fetch"
	"github.com/Kai-0601/TelegramBot/internal/fetch/hyperliquid"
	"github.com/Kai-0601/TelegramBot/internal/fetch/mintledger"
	"github.com/Kai-0601/TelegramBot/internal/fetch/postfeed"
	"github.com/Kai-0601/TelegramBot/internal/health"
	"github.com/Kai-0601/TelegramBot/internal/render"
	"github.com/Kai-0601/TelegramBot/internal/scheduler"
	"github.com/Kai-0601/TelegramBot/internal/snapshot"
	"github.com/Kai-0601/TelegramBot/internal/store"
	"github.com/Kai-0601/TelegramBot/internal/telegram"
	"github.com/Kai-0601/TelegramBot/internal/watch"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Runner owns the assembled monitoring engine: store, registry, fetchers,
// detector pipeline, dispatcher and scheduler.
type Runner struct {
	logger      *zap.Logger
	config      *config.Config
	loc         *time.Location
	kv          store.Store
	registry    *watch.Registry
	snapshots   *snapshot.Store
	renderer    *render.Renderer
	dispatcher  *dispatch.Dispatcher
	subscribers *telegram.Subscribers
	sender      *telegram.Sender
	slotGate    *scheduler.SlotGate
	health      *health.Server

	positions fetch.Fetcher
	mint      fetch.Fetcher
	feed      fetch.Fetcher

	rpcPool  *credential.Pool
	feedPool *credential.Pool

	mintEntity watch.MonitoredEntity
	shutdownCh chan os.Signal
}

func NewRunner(cfg *config.Config, logger *zap.Logger) (*Runner, error) {
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", cfg.Timezone, err)
	}

	kv, err := store.NewFileStore(cfg.DataDir, logger)
	if err != nil {
		return nil, err
	}

	registry, err := watch.NewRegistry(kv, logger)
	if err != nil {
		return nil, err
	}

	subscribers, err := telegram.NewSubscribers(kv, logger)
	if err != nil {
		return nil, err
	}

	sender, err := telegram.NewSender(cfg.TelegramToken, logger)
	if err != nil {
		return nil, err
	}

	r := &Runner{
		logger:      logger.Named("runner"),
		config:      cfg,
		loc:         loc,
		kv:          kv,
		registry:    registry,
		snapshots:   snapshot.NewStore(kv, logger),
		renderer:    render.NewRenderer(loc),
		dispatcher:  dispatch.NewDispatcher(sender, cfg.DispatchPerSecond, logger),
		subscribers: subscribers,
		sender:      sender,
		health:      health.NewServer(cfg.HealthPort, logger),
		positions:   hyperliquid.NewClient(cfg.HyperliquidAPI, logger),
		shutdownCh:  make(chan os.Signal, 1),
	}

	r.slotGate = scheduler.NewSlotGate(scheduler.SlotPolicy{
		Every:    time.Duration(cfg.SlotMinutes) * time.Minute,
		Window:   time.Duration(cfg.SlotWindowMinutes) * time.Minute,
		Location: loc,
	}, logger)

	if cfg.MintEnabled() {
		r.rpcPool, err = credential.NewPool("rpc", cfg.RPCEndpoints, kv, logger)
		if err != nil {
			return nil, err
		}
		r.mint, err = mintledger.NewClient(cfg.MintAddress, r.rpcPool, logger)
		if err != nil {
			return nil, err
		}
		r.mintEntity = watch.MonitoredEntity{
			Domain:      watch.DomainMintLedger,
			ID:          cfg.MintAddress,
			DisplayName: "mint",
		}
	}

	if cfg.FeedEnabled() {
		r.feedPool, err = credential.NewPool("feed", cfg.FeedTokens, kv, logger)
		if err != nil {
			return nil, err
		}
		r.feed = postfeed.NewClient(cfg.FeedAPI, r.feedPool, logger)
	}

	return r, nil
}

// Service returns the command-facing facade over the runner's state.
func (r *Runner) Service() *Service {
	return &Service{runner: r}
}

// Run blocks until the context is cancelled or a shutdown signal arrives.
func (r *Runner) Run(ctx context.Context) error {
	signal.Notify(r.shutdownCh, syscall.SIGINT, syscall.SIGTERM)
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		select {
		case sig := <-r.shutdownCh:
			r.logger.Info("Signal received: " + sig.String())
			cancel()
		case <-runCtx.Done():
		}
	}()

	r.health.Start()
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := r.health.Shutdown(shutdownCtx); err != nil {
			r.logger.Warn("Health server shutdown failed", zap.Error(err))
		}
	}()

	sched := scheduler.New(r.logger)
	if err := sched.Add(scheduler.Cadence{
		Name:     "positions",
		Interval: time.Duration(r.config.PositionsInterval) * time.Second,
		Run:      r.pollPositions,
	}); err != nil {
		return err
	}

	if r.mint != nil {
		if err := sched.Add(scheduler.Cadence{
			Name:     "mint_ledger",
			Interval: time.Duration(r.config.MintInterval) * time.Second,
			Run:      r.pollMintLedger,
		}); err != nil {
			return err
		}
	}

	if r.feed != nil {
		if err := sched.Add(scheduler.Cadence{
			Name:     "post_feed",
			Interval: time.Duration(r.config.FeedInterval) * time.Second,
			Run:      r.pollPostFeed,
		}); err != nil {
			return err
		}
	}

	if err := sched.Add(scheduler.Cadence{
		Name:       "maintenance",
		Interval:   time.Hour,
		FirstDelay: time.Hour,
		Run:        r.maintain,
	}); err != nil {
		return err
	}

	r.logger.Info("Monitoring engine started",
		zap.Int("whales", len(r.registry.List(watch.DomainPositions))),
		zap.Bool("mint_enabled", r.mint != nil),
		zap.Bool("feed_enabled", r.feed != nil))

	commands := telegram.NewCommands(r.sender, r.Service(), r.logger)

	g, gCtx := errgroup.WithContext(runCtx)
	g.Go(func() error { return sched.Run(gCtx) })
	g.Go(func() error {
		if err := commands.Run(gCtx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
	return g.Wait()
}

func (r *Runner) Shutdown() {
	r.logger.Info("Bot shutting down gracefully")
}
