package logging

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/worktrack/worktrack/internal/config"
	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	mainLogFile  = "worktrack.log"
	errorLogFile = "errors.log"
)

var (
	// Everything that needs closing on Shutdown, in creation order.
	closers   []io.Closer
	closersMu sync.Mutex
)

// Initialize sets up the global logger based on configuration
func Initialize(cfg config.LoggingConfig) error {
	logger, err := NewLogger(cfg)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}

	slog.SetDefault(logger)

	slog.Info("Logging initialized",
		"level", cfg.Level,
		"format", cfg.Format,
		"dir", cfg.Dir,
		"console_enabled", cfg.Console.Enabled,
		"file_enabled", cfg.File.Enabled,
		"async", cfg.File.Enabled && cfg.File.Async.Enabled,
	)
	return nil
}

// NewLogger builds a logger writing to the console and to a main and an
// error log file under cfg.Dir, as enabled.
func NewLogger(cfg config.LoggingConfig) (*slog.Logger, error) {
	var handlers []slog.Handler

	if cfg.Console.Enabled {
		handlers = append(handlers, newHandler(os.Stdout, cfg.Console.Format, parseLevel(cfg.Console.Level)))
	}

	if cfg.File.Enabled {
		if err := os.MkdirAll(cfg.Dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}

		mainFile := openLogFile(cfg, mainLogFile)
		handlers = append(handlers, newHandler(mainFile, cfg.File.Format, parseLevel(cfg.File.Level)))

		// Warnings and errors are duplicated into their own file.
		errorFile := openLogFile(cfg, errorLogFile)
		handlers = append(handlers, NewLevelFilter(newHandler(errorFile, cfg.File.Format, slog.LevelWarn), slog.LevelWarn))
	}

	switch len(handlers) {
	case 0:
		return slog.New(slog.DiscardHandler), nil
	case 1:
		return slog.New(handlers[0]), nil
	default:
		return slog.New(NewMultiHandler(handlers...)), nil
	}
}

// NewDedupLogger returns a logger on top of base that forwards identical
// records at most once per window. A zero window returns base unchanged.
// The dedup handler is flushed by Shutdown.
func NewDedupLogger(base *slog.Logger, window time.Duration) *slog.Logger {
	if window <= 0 {
		return base
	}
	h := NewDedupHandler(base.Handler(), DedupConfig{Window: window})
	register(h)
	return slog.New(h)
}

// Shutdown flushes and closes everything opened by this package, newest
// first so that buffered handlers drain into files that are still open.
func Shutdown() error {
	closersMu.Lock()
	pending := closers
	closers = nil
	closersMu.Unlock()

	var errs []error
	for _, c := range slices.Backward(pending) {
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close log output: %w", err))
		}
	}
	return errors.Join(errs...)
}

func openLogFile(cfg config.LoggingConfig, name string) io.Writer {
	file := &lumberjack.Logger{
		Filename:   filepath.Join(cfg.Dir, name),
		MaxSize:    cfg.Rotation.MaxSize,
		MaxBackups: cfg.Rotation.MaxBackups,
		MaxAge:     cfg.Rotation.MaxAge,
		Compress:   cfg.Rotation.Compress,
	}
	register(file)

	if !cfg.File.Async.Enabled {
		return file
	}
	aw := NewAsyncWriter(file, cfg.File.Async)
	register(aw)
	return aw
}

func register(c io.Closer) {
	closersMu.Lock()
	defer closersMu.Unlock()
	closers = append(closers, c)
}

func parseLevel(level string) slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return slog.LevelInfo
	}
	return l
}

func newHandler(w io.Writer, format string, level slog.Level) slog.Handler {
	if format == "json" {
		return slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
	}
	return NewTextHandler(w, &slog.HandlerOptions{Level: level})
}
