// Package app wires the relaycast pipeline together: the backing store, the
// operator-facing API, the health/metrics server and the worker loop that
// drives queue delivery and feed polling.
package app

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/hparsa/relaycast/internal/api"
	"github.com/hparsa/relaycast/internal/config"
	"github.com/hparsa/relaycast/internal/core/domain"
	"github.com/hparsa/relaycast/internal/delivery"
	"github.com/hparsa/relaycast/internal/feedfetch"
	"github.com/hparsa/relaycast/internal/journal"
	"github.com/hparsa/relaycast/internal/linkfetch"
	"github.com/hparsa/relaycast/internal/platform/observability"
	"github.com/hparsa/relaycast/internal/platform/worker"
	"github.com/hparsa/relaycast/internal/queue"
	"github.com/hparsa/relaycast/internal/registry"
	"github.com/hparsa/relaycast/internal/settings"
	"github.com/hparsa/relaycast/internal/store"
)

// App holds the wired pipeline.
type App struct {
	cfg    *config.Config
	logger *zerolog.Logger

	pinger     observability.Pinger
	closeStore func()

	sett      *settings.Manager
	reg       *registry.Registry
	journal   *journal.Journal
	manager   *queue.Manager
	processor *queue.Processor
	fetcher   *feedfetch.Fetcher
	apiServer *api.Server
}

// New builds the pipeline. With a Postgres DSN the store is migrated and
// state is restored from it; without one everything lives in memory for the
// session.
func New(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) (*App, error) {
	a := &App{cfg: cfg, logger: logger}

	st, err := a.openStore(ctx)
	if err != nil {
		return nil, err
	}

	a.journal = journal.New()

	a.sett = settings.New(st, logger)
	a.sett.Load(ctx)
	a.sett.SeedFallbackCredential(domain.PlatformTelegram, cfg.TelegramToken)
	a.sett.SeedFallbackCredential(domain.PlatformBale, cfg.BaleToken)

	a.reg = registry.New(st, logger)
	a.reg.Load(ctx)

	a.manager = queue.NewManager(st, logger)
	a.manager.Load(ctx)

	client := delivery.New(cfg.DeliveryTimeout, cfg.DeliveryRPS, logger)
	a.processor = queue.NewProcessor(a.manager, a.sett, client, a.reg, a.journal, logger)

	a.fetcher = feedfetch.New(a.reg, a.manager, a.sett, st, a.journal, cfg.FeedFetchTimeout, cfg.UserAgent, logger)

	previewer := linkfetch.New(cfg.LinkFetchTimeout, cfg.UserAgent, logger)
	a.apiServer = api.NewServer(a.reg, a.manager, a.sett, a.journal, previewer, cfg.APIPort, logger)

	return a, nil
}

func (a *App) openStore(ctx context.Context) (store.Store, error) {
	if a.cfg.PostgresDSN == "" {
		a.logger.Warn().Msg("no POSTGRES_DSN configured, state will not survive restarts")

		mem := store.NewMemory()
		a.pinger = mem
		a.closeStore = func() {}

		return mem, nil
	}

	pg, err := store.NewPostgres(ctx, a.cfg.PostgresDSN, a.logger)
	if err != nil {
		return nil, fmt.Errorf("connect store: %w", err)
	}

	if err := pg.Migrate(ctx); err != nil {
		pg.Close()

		return nil, fmt.Errorf("migrate store: %w", err)
	}

	a.pinger = pg
	a.closeStore = pg.Close

	return pg, nil
}

// StartHealthServer serves liveness, readiness and metrics until ctx ends.
func (a *App) StartHealthServer(ctx context.Context) error {
	return observability.NewServer(a.pinger, a.cfg.HealthPort, a.logger).Start(ctx)
}

// StartAPIServer serves the operator console API until ctx ends.
func (a *App) StartAPIServer(ctx context.Context) error {
	return a.apiServer.Start(ctx)
}

// RunPipeline drives the queue processor tick and the feed check until ctx
// ends.
func (a *App) RunPipeline(ctx context.Context) error {
	return worker.TickerLoop(ctx, worker.TickerConfig{
		Name:     "pipeline",
		Interval: a.cfg.ProcessorTickInterval,
		OnTick: func(ctx context.Context) {
			defer worker.RecoverPanic(a.logger, "processor tick")
			a.processor.Tick(ctx)
		},
		SecondaryInterval: a.cfg.FeedCheckInterval,
		OnSecondaryTick: func(ctx context.Context) {
			defer worker.RecoverPanic(a.logger, "feed check")
			a.fetcher.RunIfDue(ctx)
		},
		Logger: a.logger,
	})
}

// Close flushes pending write-backs and releases the store.
func (a *App) Close() {
	a.sett.Flush()
	a.reg.Flush()
	a.manager.Flush()
	a.closeStore()
}
