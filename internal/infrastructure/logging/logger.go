package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/nerrad567/powertag-monitor/internal/infrastructure/config"
)

// serviceName is attached to every record so log shippers can route on it.
const serviceName = "powertag"

// logFileMode is used when logging.output names a file.
const logFileMode = 0o644

// Logger is an slog.Logger carrying the service and version attributes.
//
// Thread Safety: All methods are safe for concurrent use.
type Logger struct {
	*slog.Logger
}

// New builds a Logger from the logging config section.
//
// cfg.Output is "stdout" (the default), "stderr", or a file path opened
// for appending. When the file cannot be opened the logger writes to
// stderr and says so in its first record.
//
// Parameters:
//   - cfg: logging section of the configuration
//   - version: Build version attached to every record
//
// Returns:
//   - *Logger: Ready logger
func New(cfg config.LoggingConfig, version string) *Logger {
	w, openErr := openOutput(cfg.Output)
	logger := NewWithWriter(cfg, version, w)
	if openErr != nil {
		logger.Warn("log file unavailable, using stderr", "path", cfg.Output, "error", openErr)
	}
	return logger
}

func openOutput(output string) (io.Writer, error) {
	switch strings.ToLower(strings.TrimSpace(output)) {
	case "", "stdout":
		return os.Stdout, nil
	case "stderr":
		return os.Stderr, nil
	}
	f, err := os.OpenFile(output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, logFileMode)
	if err != nil {
		return os.Stderr, err
	}
	return f, nil
}

// NewWithWriter builds a Logger writing to w. cfg.Output is ignored.
// Debug level also records the calling source line.
func NewWithWriter(cfg config.LoggingConfig, version string, w io.Writer) *Logger {
	level := parseLevel(cfg.Level)
	opts := &slog.HandlerOptions{
		Level:       level,
		AddSource:   level <= slog.LevelDebug,
		ReplaceAttr: utcTime,
	}

	var handler slog.Handler
	if strings.EqualFold(cfg.Format, "text") {
		handler = slog.NewTextHandler(w, opts)
	} else {
		handler = slog.NewJSONHandler(w, opts)
	}

	return &Logger{Logger: slog.New(handler).With(
		slog.String("service", serviceName),
		slog.String("version", version),
	)}
}

// utcTime renders record times in UTC so lines from hosts in different
// zones sort together.
func utcTime(groups []string, a slog.Attr) slog.Attr {
	if len(groups) == 0 && a.Key == slog.TimeKey && a.Value.Kind() == slog.KindTime {
		a.Value = slog.TimeValue(a.Value.Time().UTC().Truncate(time.Millisecond))
	}
	return a
}

// parseLevel maps a config level name to slog. Anything unrecognised
// means info.
func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
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

// With returns a child logger with extra attributes.
//
// Example:
//
//	gwLog := logger.With("component", "modbus", "gateway", gw.Name)
func (l *Logger) With(args ...any) *Logger {
	return &Logger{Logger: l.Logger.With(args...)}
}

// Default is the logger used until the configuration has been loaded:
// JSON at info level on stdout.
func Default() *Logger {
	return NewWithWriter(config.LoggingConfig{Level: "info", Format: "json"}, "dev", os.Stdout)
}

// Discard returns a logger that drops every record, for components built
// without one.
func Discard() *Logger {
	return &Logger{Logger: slog.New(slog.DiscardHandler)}
}
