// Package logger configures the process-wide slog logger.
package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime/debug"
	"strings"

	"github.com/google/uuid"
)

const fileName = "traineemgr.log"

// Config selects where and how records are written. Level, Format and File
// fall back to LOG_LEVEL, LOG_FORMAT and LOG_FILE when empty.
type Config struct {
	DataDir string
	DevMode bool

	Level  string
	Format string
	File   string
}

func (c Config) withEnv() Config {
	if c.Level == "" {
		c.Level = os.Getenv("LOG_LEVEL")
	}
	if c.Format == "" {
		c.Format = os.Getenv("LOG_FORMAT")
	}
	if c.File == "" {
		c.File = os.Getenv("LOG_FILE")
	}
	if c.File == "" && !c.DevMode && c.DataDir != "" {
		c.File = filepath.Join(c.DataDir, fileName)
	}
	return c
}

// Init installs the default logger. Production runs append to
// <DataDir>/traineemgr.log, dev runs write to stdout. When the log file
// cannot be opened the logger stays on stdout. The returned func closes the
// log file.
func Init(cfg Config) func() error {
	cfg = cfg.withEnv()

	w, closeFn := open(cfg.File)
	opts := &slog.HandlerOptions{Level: parseLevel(cfg.Level)}

	var handler slog.Handler
	if strings.EqualFold(cfg.Format, "json") {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	slog.SetDefault(slog.New(handler))
	return closeFn
}

func open(path string) (io.Writer, func() error) {
	noop := func() error { return nil }
	if path == "" {
		return os.Stdout, noop
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		slog.Error("failed to create log directory, using stdout only", "file", path, "error", err)
		return os.Stdout, noop
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		slog.Error("failed to open log file, using stdout only", "file", path, "error", err)
		return os.Stdout, noop
	}
	return f, f.Close
}

func parseLevel(s string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return level
}

// NewRequestLogger returns a logger tagged with a fresh requestId.
func NewRequestLogger() *slog.Logger {
	return slog.With("requestId", uuid.Must(uuid.NewV7()).String())
}

// LogPanic logs a recovered panic value together with the goroutine stack.
func LogPanic(r any, msg string, args ...any) {
	args = append(args, "panic", fmt.Sprint(r), "stack", string(debug.Stack()))
	slog.Error(msg, args...)
}
