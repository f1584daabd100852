// Package config loads the priomatrix JSONC configuration.
package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dohr-michael/priomatrix/internal/calendar"
)

// Config is the root configuration for priomatrix.
type Config struct {
	Actor    string         `json:"actor"` // label recorded on history entries
	Storage  StorageConfig  `json:"storage"`
	Calendar CalendarConfig `json:"calendar"`
	Gateway  GatewayConfig  `json:"gateway"`
	Events   EventsConfig   `json:"events"`
}

// StorageConfig selects the blob store holding the task collection.
type StorageConfig struct {
	Driver string `json:"driver"` // "file" (default) or "sqlite"
	Path   string `json:"path"`   // directory for file, database file for sqlite
	Key    string `json:"key"`    // blob key (default: priomatrix.tasks)
}

// CalendarConfig holds calendar display settings.
type CalendarConfig struct {
	WeekStart string `json:"week_start"` // day name, default monday
}

// WeekStartDay parses WeekStart, falling back to Monday.
func (c CalendarConfig) WeekStartDay() time.Weekday {
	d, err := calendar.ParseWeekday(c.WeekStart)
	if err != nil {
		return time.Monday
	}
	return d
}

// GatewayConfig holds the HTTP server settings.
type GatewayConfig struct {
	Host           string   `json:"host"`
	Port           int      `json:"port"`
	AllowedOrigins []string `json:"allowed_origins"` // extra WebSocket origins, e.g. "localhost:5173"
}

// Addr returns host:port.
func (g GatewayConfig) Addr() string {
	return fmt.Sprintf("%s:%d", g.Host, g.Port)
}

// EventsConfig holds event bus and audit settings.
type EventsConfig struct {
	BufferSize int    `json:"buffer_size"`
	LogLevel   string `json:"log_level"` // debug, info, warn, error
	AuditDir   string `json:"audit_dir"` // empty = $PRIOMATRIX_PATH/audit
}

// SlogLevel maps LogLevel onto slog, defaulting to Info.
func (e EventsConfig) SlogLevel() slog.Level {
	switch strings.ToLower(e.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
