package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestNewJSONFormat(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Options{Level: "debug", Format: FormatJSON, Output: &buf})
	if err != nil {
		t.Fatal(err)
	}

	logger.Debug("hello", slog.String("k", "v"))

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("expected JSON output, got %q: %v", buf.String(), err)
	}
	if line["msg"] != "hello" || line["k"] != "v" {
		t.Fatalf("unexpected record: %v", line)
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := New(Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestNewRejectsUnknownLevel(t *testing.T) {
	if _, err := New(Options{Level: "loud"}); err == nil {
		t.Fatal("expected error for unsupported level")
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Options{Level: "warn", Format: FormatConsole, Output: &buf})
	if err != nil {
		t.Fatal(err)
	}

	logger.Info("quiet")
	logger.Warn("loud")

	out := buf.String()
	if strings.Contains(out, "quiet") {
		t.Fatalf("info line should be filtered: %q", out)
	}
	if !strings.Contains(out, "loud") {
		t.Fatalf("warn line missing: %q", out)
	}
}

func TestNewComponentLogger(t *testing.T) {
	var buf bytes.Buffer
	base, err := New(Options{Format: FormatJSON, Output: &buf})
	if err != nil {
		t.Fatal(err)
	}

	NewComponentLogger(base, "batch").Info("run")

	if !strings.Contains(buf.String(), `"component":"batch"`) {
		t.Fatalf("component attr missing: %q", buf.String())
	}
}

func TestNewComponentLoggerNilBase(t *testing.T) {
	logger := NewComponentLogger(nil, "batch")
	logger.Info("should not panic")
}
