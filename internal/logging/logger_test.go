package logging

import (
	"bufio"
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func readEntries(t *testing.T, data []byte) []map[string]any {
	t.Helper()
	var entries []map[string]any
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		var entry map[string]any
		if err := json.Unmarshal(scanner.Bytes(), &entry); err != nil {
			t.Fatalf("invalid JSON line %q: %v", scanner.Text(), err)
		}
		entries = append(entries, entry)
	}
	return entries
}

func TestNewLogger(t *testing.T) {
	t.Run("creates log file in log directory", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "logs")

		logger, err := NewLogger(dir, LevelDebug)
		if err != nil {
			t.Fatalf("NewLogger failed: %v", err)
		}
		defer logger.Close()

		if _, err := os.Stat(filepath.Join(dir, LogFileName)); err != nil {
			t.Errorf("log file was not created: %v", err)
		}
	})

	t.Run("writes to stderr when logDir is empty", func(t *testing.T) {
		logger, err := NewLogger("", LevelInfo)
		if err != nil {
			t.Fatalf("NewLogger failed: %v", err)
		}
		if logger.file != nil {
			t.Error("expected file to be nil when logDir is empty")
		}
	})

	t.Run("rolls over oversized log file", func(t *testing.T) {
		dir := t.TempDir()
		logPath := filepath.Join(dir, LogFileName)
		if err := os.WriteFile(logPath, bytes.Repeat([]byte("x"), maxLogBytes), 0644); err != nil {
			t.Fatal(err)
		}

		logger, err := NewLogger(dir, LevelInfo)
		if err != nil {
			t.Fatalf("NewLogger failed: %v", err)
		}
		defer logger.Close()

		if _, err := os.Stat(logPath + ".1"); err != nil {
			t.Errorf("expected rolled file: %v", err)
		}
	})
}

func TestLogLevels(t *testing.T) {
	var buf bytes.Buffer
	logger := newLoggerWithWriter(&buf, LevelWarn, nil)

	logger.Debug("debug")
	logger.Info("info")
	logger.Warn("warn")
	logger.Error("error")

	entries := readEntries(t, buf.Bytes())
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0]["msg"] != "warn" || entries[1]["msg"] != "error" {
		t.Errorf("unexpected entries: %v", entries)
	}
}

func TestContextPropagation(t *testing.T) {
	var buf bytes.Buffer
	logger := newLoggerWithWriter(&buf, LevelDebug, nil)

	child := logger.WithRun("2026-02-01-add-caching").WithPhase("execution").WithTask("task-1-a.md").WithRole("task")
	child.Info("runner finished", "success", true)
	logger.Info("parent")

	entries := readEntries(t, buf.Bytes())
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}

	want := map[string]any{
		"run_id":  "2026-02-01-add-caching",
		"phase":   "execution",
		"task":    "task-1-a.md",
		"role":    "task",
		"success": true,
	}
	for k, v := range want {
		if entries[0][k] != v {
			t.Errorf("%s = %v, want %v", k, entries[0][k], v)
		}
	}
	if _, ok := entries[1]["run_id"]; ok {
		t.Error("parent logger should not inherit child attributes")
	}
}

func TestWith(t *testing.T) {
	var buf bytes.Buffer
	logger := newLoggerWithWriter(&buf, LevelInfo, nil)

	if logger.With() != logger {
		t.Error("With() without args should return the same logger")
	}

	logger.With("pid", 42, 7, "ignored").Info("lock acquired")
	entries := readEntries(t, buf.Bytes())
	if entries[0]["pid"] != float64(42) {
		t.Errorf("pid = %v", entries[0]["pid"])
	}
}

func TestNilAndNopLogger(t *testing.T) {
	var nilLogger *Logger
	nilLogger.Info("dropped")
	nilLogger.WithRun("r").WithPhase("p").With("k", "v").Warn("dropped")
	if err := nilLogger.Close(); err != nil {
		t.Errorf("Close on nil logger: %v", err)
	}

	nop := NopLogger()
	nop.Error("dropped")
	if err := nop.Close(); err != nil {
		t.Errorf("Close on nop logger: %v", err)
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"debug", LevelDebug},
		{"WARN", LevelWarn},
		{"error", LevelError},
		{"bogus", LevelInfo},
		{"", LevelInfo},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := ParseLevel(tt.in); got != tt.want {
				t.Errorf("ParseLevel(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
	if len(ValidLevels()) != 4 {
		t.Error("expected 4 valid levels")
	}
}
