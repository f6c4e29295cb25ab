package ops

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/agrilink/feedsync/internal/config"
)

func TestNewLogger(t *testing.T) {
	tests := []struct {
		name   string
		config *config.Logging
	}{
		{
			name: "text format",
			config: &config.Logging{
				Level:  "info",
				Format: "text",
			},
		},
		{
			name: "json format",
			config: &config.Logging{
				Level:  "debug",
				Format: "json",
			},
		},
		{
			name: "warn level",
			config: &config.Logging{
				Level:  "warn",
				Format: "text",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger := NewLogger(tt.config)
			if logger == nil {
				t.Fatal("expected logger to be created")
			}

			if logger.format != tt.config.Format {
				t.Errorf("expected format %s, got %s", tt.config.Format, logger.format)
			}
		})
	}
}

func TestLoggerWithComponent(t *testing.T) {
	var buf bytes.Buffer
	cfg := &config.Logging{
		Level:  "info",
		Format: "text",
	}

	logger := NewLoggerWithWriter(cfg, &buf)
	componentLogger := logger.WithComponent("test-component")

	componentLogger.Info("test message")

	output := buf.String()
	if !strings.Contains(output, "test message") {
		t.Errorf("expected log output to contain 'test message', got: %s", output)
	}

	if !strings.Contains(output, "component") {
		t.Errorf("expected log output to contain 'component', got: %s", output)
	}
}

func TestIsDebugEnabled(t *testing.T) {
	tests := []struct {
		name     string
		level    string
		expected bool
	}{
		{"debug level", "debug", true},
		{"info level", "info", false},
		{"warn level", "warn", false},
		{"error level", "error", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger := NewLogger(&config.Logging{
				Level:  tt.level,
				Format: "text",
			})

			if logger.IsDebugEnabled() != tt.expected {
				t.Errorf("expected IsDebugEnabled to be %v, got %v", tt.expected, logger.IsDebugEnabled())
			}
		})
	}
}

func TestLoggerHelpers(t *testing.T) {
	var buf bytes.Buffer
	cfg := &config.Logging{
		Level:  "debug",
		Format: "text",
	}

	logger := NewLoggerWithWriter(cfg, &buf)

	// Test all helper methods don't panic
	logger.LogFeedChange("added", "post123", 5)
	logger.LogChannelState("streaming", nil)
	logger.LogChannelState("failed", errors.New("connection reset"))
	logger.LogEngagement("like", "post123", 50*time.Millisecond, nil)
	logger.LogEngagement("comment", "post123", 50*time.Millisecond, errors.New("timeout"))
	logger.LogProfileFetch("user123", true, nil)
	logger.LogProfileFetch("user123", false, errors.New("not found"))
	logger.LogMediaUpload("/tmp/photo.jpg", "https://cdn/photo.jpg", nil)
	logger.LogNoticeDropped("like")
	logger.LogStartup("v1.0.0", "abc123", map[string]interface{}{"key": "value"})
	logger.LogShutdown("test shutdown")

	output := buf.String()
	if output == "" {
		t.Error("expected log output, got empty string")
	}
}

func TestEngagementLogLevels(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter(&config.Logging{Level: "info", Format: "text"}, &buf)

	// Confirmed operations log at debug and stay quiet at info level
	logger.LogEngagement("like", "post123", time.Millisecond, nil)
	if buf.Len() != 0 {
		t.Errorf("confirmed engagement should not log at info level, got: %s", buf.String())
	}

	// Failures are always visible
	logger.LogEngagement("like", "post123", time.Millisecond, errors.New("boom"))
	if !strings.Contains(buf.String(), "boom") {
		t.Errorf("expected failure to be logged, got: %s", buf.String())
	}
}
