package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/templegate/capacity-core/internal/infrastructure/config"
)

// serviceName tags every log entry so aggregated logs from the temple
// stack can be filtered down to this service.
const serviceName = "capacity-core"

// Logger wraps slog.Logger so the engine, store, feeds and API share one
// configured handler with the service identity attached. All methods are
// safe for concurrent use.
type Logger struct {
	*slog.Logger
}

// New builds the service logger from the logging section of config.yaml:
// level filtering, JSON or text format, stdout or stderr, with service
// and version fields on every entry.
//
// Parameters:
//   - cfg: Logging configuration from config.yaml
//   - version: Application version for the default field
//
// Returns:
//   - *Logger: Configured logger ready for use
func New(cfg config.LoggingConfig, version string) *Logger {
	return newWithWriter(cfg, version, writerFor(cfg.Output))
}

// newWithWriter is the testable core of New.
func newWithWriter(cfg config.LoggingConfig, version string, output io.Writer) *Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(cfg.Level)}

	var handler slog.Handler
	if strings.EqualFold(cfg.Format, "text") {
		handler = slog.NewTextHandler(output, opts)
	} else {
		handler = slog.NewJSONHandler(output, opts)
	}

	handler = handler.WithAttrs([]slog.Attr{
		slog.String("service", serviceName),
		slog.String("version", version),
	})

	return &Logger{Logger: slog.New(handler)}
}

func writerFor(output string) io.Writer {
	if strings.EqualFold(output, "stderr") {
		return os.Stderr
	}
	return os.Stdout
}

// parseLevel converts a config string to slog.Level. Unrecognised values
// fall back to info.
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

// With returns a new Logger carrying additional default attributes,
// typically a component tag:
//
//	engineLog := logger.With("component", "engine")
//	engineLog.Info("evaluation complete", "duration_ms", 3)
func (l *Logger) With(args ...any) *Logger {
	return &Logger{Logger: l.Logger.With(args...)}
}

// Default creates the early-startup logger used before config.yaml has
// been loaded: JSON to stdout at info level.
func Default() *Logger {
	return New(config.LoggingConfig{
		Level:  "info",
		Format: "json",
		Output: "stdout",
	}, "dev")
}
