package internal

import (
	"bytes"
	"strings"
	"testing"
)

func TestLoggerRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	l := NewLoggerWithWriter(LogLevelWarn, &buf)

	l.Info("hidden %d", 1)
	l.Warn("underflow in %s", "chi2cdf")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("info message leaked at warn level: %s", out)
	}
	if !strings.Contains(out, "underflow in chi2cdf") || !strings.Contains(out, `"level":"warn"`) {
		t.Errorf("expected warn line, got %s", out)
	}
}

func TestLoggerWithComponent(t *testing.T) {
	var buf bytes.Buffer
	l := NewLoggerWithWriter(LogLevelInfo, &buf).With("sweep")
	l.Info("case done")
	if !strings.Contains(buf.String(), `"component":"sweep"`) {
		t.Errorf("expected component field, got %s", buf.String())
	}
}

func TestNilLoggerFallsBack(t *testing.T) {
	var l *Logger
	if l.GetLevel() != DefaultLogger.GetLevel() {
		t.Error("nil logger should report the default level")
	}
}

func TestParseLogLevel(t *testing.T) {
	cases := map[string]LogLevel{"error": LogLevelError, "WARN": LogLevelWarn, "": LogLevelInfo, "debug": LogLevelDebug, "TRACE": LogLevelTrace, "bogus": LogLevelInfo}
	for in, want := range cases {
		if got := ParseLogLevel(in); got != want {
			t.Errorf("ParseLogLevel(%q) = %d, want %d", in, got, want)
		}
	}
}

func TestConfiguredLogger(t *testing.T) {
	var buf bytes.Buffer
	l := NewConfiguredLogger("error", "json", &buf)
	l.Warn("dropped")
	l.Error("kept %d", 1)
	out := buf.String()
	if strings.Contains(out, "dropped") {
		t.Errorf("warn message leaked at error level: %s", out)
	}
	if !strings.Contains(out, `"message":"kept 1"`) {
		t.Errorf("expected JSON error line, got %s", out)
	}

	buf.Reset()
	NewConfiguredLogger("info", "Console", &buf).Info("case done")
	out = buf.String()
	if strings.HasPrefix(out, "{") || !strings.Contains(out, "case done") {
		t.Errorf("expected console line, got %s", out)
	}
}
