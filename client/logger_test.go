package client

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestParseLogLevel(t *testing.T) {
	tests := map[string]LogLevel{
		"DEBUG":   DEBUG,
		"info":    INFO,
		"WARN":    WARN,
		"warning": WARN,
		"ERROR":   ERROR,
		"":        INFO,
		"verbose": INFO,
	}
	for in, want := range tests {
		if got := ParseLogLevel(in); got != want {
			t.Errorf("ParseLogLevel(%q) = %s, want %s", in, got, want)
		}
	}
}

func TestJSONLoggerOutput(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger("DEBUG", &buf).WithFields(String("driver", "sqlite"))

	logger.Info("connection opened",
		String("dsn", "sqlite::memory:"),
		Int("attempt", 1),
		Duration("elapsed", 2*time.Millisecond),
		Error("error", errors.New("none")))

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("log line should be JSON: %v (%s)", err, buf.String())
	}
	if entry["level"] != "INFO" || entry["message"] != "connection opened" {
		t.Errorf("unexpected entry: %v", entry)
	}
	if entry["driver"] != "sqlite" || entry["dsn"] != "sqlite::memory:" {
		t.Errorf("fields missing: %v", entry)
	}
	if _, ok := entry["timestamp"]; !ok {
		t.Error("expected timestamp")
	}
}

func TestJSONLoggerLevelFilter(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger("WARN", &buf)

	logger.Debug("hidden")
	logger.Info("hidden")
	if buf.Len() != 0 {
		t.Errorf("expected nothing below WARN, got %s", buf.String())
	}

	logger.Warn("shown")
	logger.Error("shown")
	if lines := strings.Count(buf.String(), "\n"); lines != 2 {
		t.Errorf("expected 2 lines, got %d", lines)
	}
}

func TestJSONLoggerRedactsSecrets(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger("DEBUG", &buf)

	logger.Info("connecting", String("password", "hunter2"), String("Token", "abc"))

	if strings.Contains(buf.String(), "hunter2") || strings.Contains(buf.String(), "abc") {
		t.Errorf("secrets leaked: %s", buf.String())
	}
	if !strings.Contains(buf.String(), "[REDACTED]") {
		t.Errorf("expected redaction marker: %s", buf.String())
	}
}

func TestNoopLogger(t *testing.T) {
	logger := NewNoopLogger()
	logger.Error("ignored", String("k", "v"))
	if logger.WithFields(String("k", "v")) == nil {
		t.Error("WithFields should return a logger")
	}
}
