package aio

import (
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

var (
	logMu    sync.RWMutex
	logger   = slog.New(slog.NewTextHandler(io.Discard, nil))
	logLevel = &slog.LevelVar{}
)

// SetLogger replaces the package logger. Streams opened afterwards derive from it.
func SetLogger(l *slog.Logger) {
	if l == nil {
		return
	}

	logMu.Lock()
	defer logMu.Unlock()

	logger = l
}

// Logger returns the package logger.
func Logger() *slog.Logger {
	logMu.RLock()
	defer logMu.RUnlock()

	return logger
}

// LevelVar returns the level shared by handlers created with NewHandler.
func LevelVar() *slog.LevelVar {
	return logLevel
}

// NewHandler returns a text handler writing to w at the shared package level.
func NewHandler(w io.Writer) slog.Handler {
	return slog.NewTextHandler(w, &slog.HandlerOptions{Level: logLevel})
}

// ParseLevel maps a level name to a slog.Level. Unknown names map to Info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
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

// streamLogger returns the card logger with stream attributes.
func streamLogger(base *slog.Logger, name, dir string) *slog.Logger {
	if base == nil {
		base = Logger().With("module", "aio")
	}

	return base.With("stream", name, "dir", dir)
}

// diagLimiter throttles hot-path diagnostics.
// Queue-full and stall messages can fire once per period, far too often to log all of them.
type diagLimiter struct {
	log *slog.Logger
	lim *rate.Limiter
}

func newDiagLimiter(log *slog.Logger) *diagLimiter {
	return &diagLimiter{
		log: log,
		lim: rate.NewLimiter(rate.Every(time.Second), 5),
	}
}

func (d *diagLimiter) Debug(msg string, args ...any) {
	if d.lim.Allow() {
		d.log.Debug(msg, args...)
	}
}
