package commands

import (
	"context"
	"fmt"
	"log/slog"
	"syscall"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/dohr-michael/priomatrix/internal/config"
	"github.com/dohr-michael/priomatrix/internal/events"
	"github.com/dohr-michael/priomatrix/internal/gateway"
	"github.com/dohr-michael/priomatrix/internal/heartbeat"
)

// NewServeCommand returns the serve subcommand.
func NewServeCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Start the HTTP gateway for an external UI",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "host",
				Usage: "Host to listen on",
			},
			&cli.IntFlag{
				Name:  "port",
				Usage: "Port to listen on",
			},
		},
		Action: runServe,
	}
}

func runServe(ctx context.Context, cmd *cli.Command) error {
	_, a, err := openApp(ctx, cmd, events.SourceGateway)
	if err != nil {
		return err
	}
	defer a.Close()

	// CLI flags override config
	if cmd.IsSet("host") {
		a.cfg.Gateway.Host = cmd.String("host")
	}
	if cmd.IsSet("port") {
		a.cfg.Gateway.Port = cmd.Int("port")
	}

	server := gateway.NewServer(a.bus, a.engine, a.cfg.Gateway.Host, a.cfg.Gateway.Port,
		gateway.WithAudit(a.audit),
		gateway.WithActivity(a.activity),
		gateway.WithSettings(settingsFrom(a.cfg)),
		gateway.WithAllowedOrigins(a.cfg.Gateway.AllowedOrigins...),
	)

	// SIGHUP re-reads .env and the config; request defaults follow.
	reloader := config.NewReloader(cmd.String("config"), config.DotenvPath(), a.cfg)
	reloader.OnReload(func(cfg *config.Config) {
		server.UpdateSettings(settingsFrom(cfg))
	})
	reloader.WatchSignals(ctx, syscall.SIGHUP)

	hb := heartbeat.NewWriter(config.HeartbeatPath(), a.cfg.Gateway.Addr(), func() (int64, int) {
		snap := a.engine.Snapshot()
		return snap.Version, len(snap.Tasks)
	})
	hb.Start()
	defer hb.Stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	select {
	case <-ctx.Done():
		slog.Info("shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

func settingsFrom(cfg *config.Config) gateway.Settings {
	return gateway.Settings{
		WeekStart: cfg.Calendar.WeekStartDay(),
		Actor:     cfg.Actor,
	}
}

// NewStatusCommand returns the status subcommand.
func NewStatusCommand() *cli.Command {
	return &cli.Command{
		Name:  "status",
		Usage: "Show whether a gateway is running",
		Action: func(_ context.Context, _ *cli.Command) error {
			status, hb, err := heartbeat.Check(config.HeartbeatPath(), 2*heartbeat.DefaultInterval)
			if err != nil {
				return fmt.Errorf("check heartbeat: %w", err)
			}

			switch status {
			case heartbeat.StatusAlive:
				fmt.Printf("Gateway: ALIVE on %s (PID %d, uptime %s, %d task(s) at version %d)\n",
					hb.Addr, hb.PID, hb.Uptime, hb.Tasks, hb.Version)
			case heartbeat.StatusStale:
				fmt.Printf("Gateway: STALE (PID %d, last heartbeat %s ago)\n",
					hb.PID, time.Since(hb.Timestamp).Truncate(time.Second))
			case heartbeat.StatusDead:
				fmt.Println("Gateway: NOT RUNNING")
			}
			return nil
		},
	}
}
