package app

import (
	"testing"
)

// TestDetermineLogLevel tests the log level precedence logic.
func TestDetermineLogLevel(t *testing.T) {
	tests := []struct {
		name     string
		config   *Config
		expected string
	}{
		{name: "default level", config: &Config{}, expected: "info"},
		{name: "verbose sets debug", config: &Config{Verbose: true}, expected: "debug"},
		{name: "quiet sets warn", config: &Config{Quiet: true}, expected: "warn"},
		{name: "both prefer quiet", config: &Config{Verbose: true, Quiet: true}, expected: "warn"},
		{name: "explicit level wins", config: &Config{LogLevel: "error", Verbose: true}, expected: "error"},
		{name: "trace supported", config: &Config{LogLevel: "trace", Quiet: true}, expected: "trace"},
		{name: "invalid falls back to info", config: &Config{LogLevel: "loud"}, expected: "info"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := determineLogLevel(tt.config); got != tt.expected {
				t.Errorf("determineLogLevel() = %q, expected %q", got, tt.expected)
			}
		})
	}
}

// TestNewLogger verifies the logger honors the resolved level.
func TestNewLogger(t *testing.T) {
	logger := NewLogger(&Config{Quiet: true, LogFormat: "json", LogOutput: "stderr"})
	if got := logger.GetLevel().String(); got != "warn" {
		t.Errorf("level = %q, want warn", got)
	}
}
