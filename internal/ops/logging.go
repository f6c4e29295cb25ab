package ops

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/agrilink/feedsync/internal/config"
)

// Logger is a structured logger wrapper
type Logger struct {
	*slog.Logger
	level  slog.Level
	format string
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewLogger creates a new structured logger based on config
func NewLogger(cfg *config.Logging) *Logger {
	return NewLoggerWithWriter(cfg, os.Stdout)
}

// NewLoggerWithWriter creates a logger with a custom writer
func NewLoggerWithWriter(cfg *config.Logging, w io.Writer) *Logger {
	level := parseLevel(cfg.Level)

	opts := &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				if t, ok := a.Value.Any().(time.Time); ok {
					a.Value = slog.StringValue(t.Format(time.RFC3339))
				}
			}
			return a
		},
	}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	return &Logger{
		Logger: slog.New(handler),
		level:  level,
		format: cfg.Format,
	}
}

// WithComponent adds a component field to all log messages
func (l *Logger) WithComponent(component string) *Logger {
	return &Logger{
		Logger: l.Logger.With("component", component),
		level:  l.level,
		format: l.format,
	}
}

// WithFields adds custom fields to the logger
func (l *Logger) WithFields(fields ...any) *Logger {
	return &Logger{
		Logger: l.Logger.With(fields...),
		level:  l.level,
		format: l.format,
	}
}

// IsDebugEnabled returns true if debug logging is enabled
func (l *Logger) IsDebugEnabled() bool {
	return l.level <= slog.LevelDebug
}

// Component-specific logger helpers

// LogFeedChange logs one applied subscription event
func (l *Logger) LogFeedChange(kind string, postID string, storeSize int) {
	l.Debug("feed change applied",
		"kind", kind,
		"post_id", postID,
		"posts", storeSize)
}

// LogChannelState logs a subscription channel state transition
func (l *Logger) LogChannelState(state string, err error) {
	if err != nil {
		l.Warn("subscription channel state changed",
			"state", state,
			"error", err)
	} else {
		l.Info("subscription channel state changed",
			"state", state)
	}
}

// LogEngagement logs the outcome of an engagement operation
func (l *Logger) LogEngagement(op string, postID string, duration time.Duration, err error) {
	if err != nil {
		l.Error("engagement operation failed",
			"operation", op,
			"post_id", postID,
			"duration_ms", duration.Milliseconds(),
			"error", err)
	} else {
		l.Debug("engagement operation confirmed",
			"operation", op,
			"post_id", postID,
			"duration_ms", duration.Milliseconds())
	}
}

// LogProfileFetch logs a profile cache resolution
func (l *Logger) LogProfileFetch(userID string, hit bool, err error) {
	if err != nil {
		l.Warn("profile fetch failed, using placeholder",
			"user_id", userID,
			"error", err)
		return
	}
	l.Debug("profile resolved",
		"user_id", userID,
		"hit", hit)
}

// LogMediaUpload logs a media upload result
func (l *Logger) LogMediaUpload(path string, url string, err error) {
	if err != nil {
		l.Error("media upload failed",
			"path", path,
			"error", err)
	} else {
		l.Debug("media uploaded",
			"path", path,
			"url", url)
	}
}

// LogNoticeDropped logs a user notice that was dropped because the
// consumer lagged behind
func (l *Logger) LogNoticeDropped(op string) {
	l.Warn("notice dropped, consumer lagging",
		"operation", op)
}

// LogStartup logs application startup information
func (l *Logger) LogStartup(version, commit string, config map[string]interface{}) {
	l.Info("feedsync starting",
		"version", version,
		"commit", commit,
		"config", config)
}

// LogShutdown logs application shutdown
func (l *Logger) LogShutdown(reason string) {
	l.Info("feedsync shutting down",
		"reason", reason)
}

// LogPanic logs a panic with stack trace
func (l *Logger) LogPanic(recovered interface{}, stack string) {
	l.Error("panic recovered",
		"panic", fmt.Sprintf("%v", recovered),
		"stack", stack)
}

// Default logger configuration
var defaultLogger *Logger

func init() {
	// Create a default logger for early startup
	defaultLogger = NewLogger(&config.Logging{
		Level:  "info",
		Format: "text",
	})
}

// Default returns the default logger
func Default() *Logger {
	return defaultLogger
}

// SetDefault sets the default logger
func SetDefault(l *Logger) {
	defaultLogger = l
}

// Helper functions for common logging patterns

// Info logs an info message
func Info(msg string, fields ...any) {
	defaultLogger.Info(msg, fields...)
}

// Debug logs a debug message
func Debug(msg string, fields ...any) {
	defaultLogger.Debug(msg, fields...)
}

// Warn logs a warning message
func Warn(msg string, fields ...any) {
	defaultLogger.Warn(msg, fields...)
}

// Error logs an error message
func Error(msg string, fields ...any) {
	defaultLogger.Error(msg, fields...)
}
