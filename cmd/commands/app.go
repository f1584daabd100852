package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/dohr-michael/priomatrix/internal/config"
	"github.com/dohr-michael/priomatrix/internal/events"
	"github.com/dohr-michael/priomatrix/internal/storage"
	"github.com/dohr-michael/priomatrix/internal/storage/blobstore"
	"github.com/dohr-michael/priomatrix/internal/tasks"
)

// app is the engine wired to its store, bus and audit subscribers for one
// CLI invocation.
type app struct {
	cfg      *config.Config
	store    blobstore.Store
	bus      *events.Bus
	engine   *tasks.Engine
	audit    *storage.AuditLogger
	activity *storage.ActivityTracker
}

// openApp loads the config and the collection. The returned context tags
// mutations with the given source and the configured actor.
func openApp(ctx context.Context, cmd *cli.Command, source events.EventSource) (context.Context, *app, error) {
	configPath := cmd.String("config")
	cfg, err := config.LoadOrDefault(configPath)
	if err != nil {
		return ctx, nil, fmt.Errorf("load config %s: %w", configPath, err)
	}
	setupLogging(cmd, cfg)

	store, err := blobstore.Open(cfg.Storage.Driver, cfg.Storage.Path)
	if err != nil {
		return ctx, nil, err
	}
	repo := tasks.NewRepository(store, cfg.Storage.Key)
	initial, err := repo.Load(ctx)
	if err != nil {
		store.Close()
		return ctx, nil, fmt.Errorf("load tasks: %w", err)
	}

	bus := events.NewBus(cfg.Events.BufferSize)
	a := &app{
		cfg:      cfg,
		store:    store,
		bus:      bus,
		audit:    storage.NewAuditLogger(cfg.Events.AuditDir, bus),
		activity: storage.NewActivityTracker(bus),
	}
	a.engine = tasks.NewEngine(initial, repo,
		tasks.WithBus(bus),
		tasks.WithActor(cfg.Actor),
	)
	slog.Debug("collection loaded", "driver", cfg.Storage.Driver, "path", cfg.Storage.Path, "tasks", len(initial))

	ctx = events.ContextWithSource(ctx, source)
	ctx = events.ContextWithActor(ctx, cfg.Actor)
	return ctx, a, nil
}

// Close flushes pending audit events and releases the store.
func (a *app) Close() {
	a.bus.Close()
	a.audit.Close()
	a.activity.Close()
	if err := a.store.Close(); err != nil {
		slog.Warn("close store", "error", err)
	}
}

func setupLogging(cmd *cli.Command, cfg *config.Config) {
	level := cfg.Events.SlogLevel()
	if cmd.Bool("debug") {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}
