package logging

import (
	"log/slog"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"bogus", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := parseLevel(tt.in); got != tt.want {
			t.Errorf("parseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestNewManager_StdoutOnly(t *testing.T) {
	m, logger := NewManager(Config{Level: "info", Format: "json"})
	if logger == nil {
		t.Fatal("expected a logger")
	}
	if err := m.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
	// Close is idempotent.
	if err := m.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
}

func TestNewManager_FileWriter(t *testing.T) {
	m, logger := NewManager(Config{
		Level:    "debug",
		Format:   "text",
		FilePath: t.TempDir() + "/backbeat.log",
	})
	logger.Info("hello")
	if m.closer == nil {
		t.Error("expected a file closer when a file path is configured")
	}
	if err := m.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
}
