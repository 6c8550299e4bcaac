package logging

import (
	"io"
	"log/slog"
	"strings"
	"time"

	"atmledger/internal/config"

	charmlog "github.com/charmbracelet/log"
)

// New builds the process logger. "json" writes slog JSON records for log
// shippers; "text" uses the charm handler for readable local output.
func New(cfg config.LogConfig, w io.Writer) *slog.Logger {
	level := ParseLevel(cfg.Level)

	if strings.EqualFold(cfg.Format, "text") {
		h := charmlog.NewWithOptions(w, charmlog.Options{
			ReportTimestamp: true,
			TimeFormat:      time.DateTime,
			Level:           charmlog.Level(level),
		})
		return slog.New(h)
	}

	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
}

// ParseLevel maps debug/info/warn/error to a slog level, defaulting to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
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

// Discard returns a logger that drops everything; used by tests and the CLI.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
