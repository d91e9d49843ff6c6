package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Level != InfoLevel {
		t.Errorf("expected default level to be InfoLevel, got %v", cfg.Level)
	}
	if cfg.MaxSize != 10 {
		t.Errorf("expected default MaxSize to be 10, got %d", cfg.MaxSize)
	}
	if cfg.MaxBackups != 5 {
		t.Errorf("expected default MaxBackups to be 5, got %d", cfg.MaxBackups)
	}
	if cfg.MaxAge != 14 {
		t.Errorf("expected default MaxAge to be 14, got %d", cfg.MaxAge)
	}
	if cfg.JSON {
		t.Error("expected default JSON to be false")
	}
	if !cfg.Compress {
		t.Error("expected default Compress to be true")
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected Level
		wantErr  bool
	}{
		{"debug", DebugLevel, false},
		{"info", InfoLevel, false},
		{"warn", WarnLevel, false},
		{"error", ErrorLevel, false},
		{"invalid", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			level, err := ParseLevel(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Errorf("expected error for input %q", tt.input)
				}
				return
			}
			if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			if level != tt.expected {
				t.Errorf("expected %v, got %v", tt.expected, level)
			}
		})
	}
}

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]interface{} {
	t.Helper()
	var entry map[string]interface{}
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry); err != nil {
		t.Fatalf("failed to parse log entry: %v (content: %s)", err, buf.String())
	}
	return entry
}

func TestLoggerContextFields(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, DebugLevel).
		WithRun("run-1").
		WithCommand("run").
		WithProject("p1", "Work")

	log.Info("fetched")
	entry := decodeLine(t, &buf)

	want := map[string]string{
		"run_id":     "run-1",
		"command":    "run",
		"project_id": "p1",
		"project":    "Work",
		"message":    "fetched",
		"level":      "info",
	}
	for k, v := range want {
		if entry[k] != v {
			t.Errorf("entry[%q] = %v, want %q", k, entry[k], v)
		}
	}
}

func TestLoggerWithErrorAndFields(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, DebugLevel).
		WithError(errors.New("boom")).
		WithFields(map[string]interface{}{"today": 2, "week": 3})

	log.Warn("partial")
	entry := decodeLine(t, &buf)

	if entry["error"] != "boom" {
		t.Errorf("error = %v, want boom", entry["error"])
	}
	if entry["today"] != float64(2) || entry["week"] != float64(3) {
		t.Errorf("fields not set: %v", entry)
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, WarnLevel)

	log.Debug("hidden")
	log.Info("hidden")
	if buf.Len() != 0 {
		t.Errorf("expected no output below warn, got %q", buf.String())
	}

	log.Error("shown")
	if !strings.Contains(buf.String(), "shown") {
		t.Errorf("expected error line, got %q", buf.String())
	}
}

func TestNop(t *testing.T) {
	log := Nop().WithRun("x").WithField("k", "v")
	log.Error("discarded")
	if log.zl.GetLevel() != zerolog.Disabled {
		t.Errorf("level = %v, want disabled", log.zl.GetLevel())
	}
}

func TestFileOutput(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "logs", "digest.log")

	cfg := &Config{
		Level:      DebugLevel,
		JSON:       true,
		FilePath:   logFile,
		MaxSize:    1,
		MaxBackups: 1,
		MaxAge:     1,
	}

	if err := Init(cfg); err != nil {
		t.Fatalf("failed to initialize logger: %v", err)
	}

	WithCommand("serve").WithRun("file-test").Info("test message")

	content, err := os.ReadFile(logFile)
	if err != nil {
		t.Fatalf("failed to read log file: %v", err)
	}

	var entry map[string]interface{}
	if err := json.Unmarshal(bytes.TrimSpace(content), &entry); err != nil {
		t.Fatalf("failed to parse log entry: %v (content: %s)", err, content)
	}

	if entry["message"] != "test message" {
		t.Errorf("expected message 'test message', got %v", entry["message"])
	}
	if entry["run_id"] != "file-test" {
		t.Errorf("expected run_id 'file-test', got %v", entry["run_id"])
	}
	if entry["command"] != "serve" {
		t.Errorf("expected command 'serve', got %v", entry["command"])
	}
	if _, ok := entry["time"]; !ok {
		t.Error("expected timestamp field")
	}
}

func TestInitFromSettings(t *testing.T) {
	err := InitFromSettings(Settings{
		Level:      "debug",
		JSON:       true,
		MaxSize:    20,
		MaxBackups: 10,
		MaxAge:     30,
	})
	if err != nil {
		t.Fatalf("failed to initialize from settings: %v", err)
	}

	if got := Get().zl.GetLevel(); got != DebugLevel {
		t.Errorf("global level = %v, want debug", got)
	}
}

func TestInvalidLevelInSettings(t *testing.T) {
	err := InitFromSettings(Settings{Level: "invalid-level"})
	if err == nil {
		t.Fatal("expected error for invalid log level")
	}
	if !strings.Contains(err.Error(), "invalid") {
		t.Errorf("expected error to mention 'invalid', got: %v", err)
	}
}
