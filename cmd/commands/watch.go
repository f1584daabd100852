package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/coder/websocket"
	"github.com/urfave/cli/v3"

	wsclient "github.com/dohr-michael/priomatrix/clients/ws"
	"github.com/dohr-michael/priomatrix/internal/config"
	"github.com/dohr-michael/priomatrix/internal/events"
	"github.com/dohr-michael/priomatrix/internal/gateway/ws"
)

// NewWatchCommand returns the watch subcommand.
func NewWatchCommand() *cli.Command {
	return &cli.Command{
		Name:  "watch",
		Usage: "Stream mutation events from a running gateway",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "addr",
				Usage: "Gateway address (default from config)",
			},
		},
		Action: runWatch,
	}
}

func runWatch(ctx context.Context, cmd *cli.Command) error {
	addr := cmd.String("addr")
	if addr == "" {
		cfg, err := config.LoadOrDefault(cmd.String("config"))
		if err != nil {
			return err
		}
		addr = cfg.Gateway.Addr()
	}

	client, err := wsclient.Dial(ctx, wsclient.URL(addr))
	if err != nil {
		return err
	}
	defer client.Close()

	if _, err := client.Send(ws.MethodSnapshot, nil); err != nil {
		return err
	}

	for {
		f, err := client.ReadFrame()
		if err != nil {
			if errors.Is(err, context.Canceled) || websocket.CloseStatus(err) != -1 {
				return nil
			}
			return err
		}
		printFrame(f)
	}
}

func printFrame(f ws.Frame) {
	switch f.Type {
	case ws.FrameTypeResponse:
		var snap struct {
			Version int64             `json:"version"`
			Tasks   []json.RawMessage `json:"tasks"`
		}
		if f.OK != nil && *f.OK && json.Unmarshal(f.Payload, &snap) == nil {
			fmt.Printf("connected: %d task(s) at version %d\n", len(snap.Tasks), snap.Version)
			return
		}
		fmt.Printf("response %s: %s\n", f.ID, f.Error)
	case ws.FrameTypeEvent:
		var e events.Event
		if err := json.Unmarshal(f.Payload, &e); err != nil {
			fmt.Printf("%s %s\n", time.Now().Format("15:04:05"), f.Event)
			return
		}
		line := fmt.Sprintf("%s %-20s", e.Timestamp.Local().Format("15:04:05"), e.Type)
		if e.TaskID != "" {
			line += " " + e.TaskID
		}
		if v, ok := e.Payload["version"]; ok {
			line += fmt.Sprintf(" v%v", v)
		}
		line += fmt.Sprintf(" (%s", e.Source)
		if e.Actor != "" {
			line += ", " + e.Actor
		}
		fmt.Println(line + ")")
	}
}
