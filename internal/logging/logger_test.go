package logging

import (
	"bytes"
	"strings"
	"testing"
)

func TestComponentLoggerFormatsLine(t *testing.T) {
	var buf bytes.Buffer
	logger := NewComponentLoggerTo(&buf, "CORE", "TaskExecutor", LevelInfo)
	logger.Info("started %s", "build")

	line := buf.String()
	if !strings.Contains(line, "[INFO]") {
		t.Fatalf("expected level tag, got %q", line)
	}
	if !strings.Contains(line, "[CORE]") || !strings.Contains(line, "[TaskExecutor]") {
		t.Fatalf("expected category/component tags, got %q", line)
	}
	if !strings.Contains(line, "started build") {
		t.Fatalf("expected message, got %q", line)
	}
}

func TestComponentLoggerFiltersBelowMinLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := NewComponentLoggerTo(&buf, "CORE", "X", LevelWarn)
	logger.Debug("hidden")
	logger.Info("also hidden")
	if buf.Len() != 0 {
		t.Fatalf("expected no output below min level, got %q", buf.String())
	}
	logger.Warn("visible")
	if !strings.Contains(buf.String(), "visible") {
		t.Fatalf("expected warn line, got %q", buf.String())
	}
}

func TestWithLogIDAppendsTag(t *testing.T) {
	var buf bytes.Buffer
	logger := NewComponentLoggerTo(&buf, "CORE", "X", LevelInfo).With("log-abc123")
	logger.Info("hello")
	if !strings.Contains(buf.String(), "[log_id=log-abc123]") {
		t.Fatalf("expected log_id tag, got %q", buf.String())
	}
}

func TestNopLoggerDiscardsEverything(t *testing.T) {
	logger := Nop()
	logger.Info("x")
	logger.Warn("y")
	logger.Error("z")
	if logger.With("id") == nil {
		t.Fatal("With should return a usable logger")
	}
}

func TestOrNopHandlesNil(t *testing.T) {
	if OrNop(nil) == nil {
		t.Fatal("expected non-nil logger")
	}
	var buf bytes.Buffer
	real := NewComponentLoggerTo(&buf, "CORE", "X", LevelInfo)
	if OrNop(real) != real {
		t.Fatal("expected OrNop to pass through a non-nil logger")
	}
}
