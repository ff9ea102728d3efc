package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func newTestLogger(minLevel LogLevel) (*Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	return &Logger{out: &buf, minLevel: minLevel}, &buf
}

func TestLogEmitsStructuredJSON(t *testing.T) {
	logger, buf := newTestLogger(LevelDebug)

	logger.Info("store opened", map[string]interface{}{"path": "/data/retroplay.db"})

	var entry LogEntry
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("Log line is not valid JSON: %v", err)
	}
	if entry.Level != "INFO" {
		t.Errorf("Expected level INFO, got %s", entry.Level)
	}
	if entry.Message != "store opened" {
		t.Errorf("Unexpected message: %s", entry.Message)
	}
	if entry.Context["path"] != "/data/retroplay.db" {
		t.Errorf("Context not carried: %v", entry.Context)
	}
	if entry.Timestamp == "" {
		t.Error("Timestamp missing")
	}
}

func TestLogLevelFiltering(t *testing.T) {
	logger, buf := newTestLogger(LevelWarn)

	logger.Debug("dropped")
	logger.Info("dropped too")
	logger.Warn("kept")
	logger.Error("kept too", errors.New("boom"))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("Expected 2 lines, got %d: %q", len(lines), buf.String())
	}
	if !strings.Contains(lines[0], "kept") || !strings.Contains(lines[1], "boom") {
		t.Errorf("Unexpected output: %q", buf.String())
	}
}

func TestErrorFieldSerialized(t *testing.T) {
	logger, buf := newTestLogger(LevelDebug)

	logger.Error("migration failed", errors.New("checksum mismatch"))

	var entry LogEntry
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("Log line is not valid JSON: %v", err)
	}
	if entry.Error != "checksum mismatch" {
		t.Errorf("Expected error field, got %q", entry.Error)
	}
}

func TestMergeContext(t *testing.T) {
	merged := mergeContext(
		map[string]interface{}{"a": 1, "b": 2},
		map[string]interface{}{"b": 3},
	)
	if merged["a"] != 1 || merged["b"] != 3 {
		t.Errorf("Later context must win: %v", merged)
	}
	if mergeContext() != nil {
		t.Error("No context should merge to nil")
	}
}
