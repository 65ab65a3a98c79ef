package logging

import (
	"bytes"
	"strings"
	"testing"
)

func TestPreInitLoggerUsesConfiguredHandler(t *testing.T) {
	logger := L("wire/ddp")

	var buf bytes.Buffer
	Init("text", "info", &buf)

	logger.Info("device online", "addr", "10.0.0.5")

	out := buf.String()
	if strings.Contains(out, `msg="INFO device online`) {
		t.Fatalf("unexpected nested severity prefix in message: %s", out)
	}
	if !strings.Contains(out, "msg=\"device online\"") {
		t.Fatalf("expected plain message, got: %s", out)
	}
	if !strings.Contains(out, "component=wire/ddp") {
		t.Fatalf("expected component field, got: %s", out)
	}
	if !strings.Contains(out, "addr=10.0.0.5") {
		t.Fatalf("expected addr field, got: %s", out)
	}
}

func TestPreInitLoggerRespectsConfiguredLevel(t *testing.T) {
	logger := L("sendqueue")

	var buf bytes.Buffer
	Init("text", "warn", &buf)

	logger.Info("hidden")
	logger.Warn("shown")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("info log should be filtered at warn level: %s", out)
	}
	if !strings.Contains(out, "shown") {
		t.Fatalf("warn log should be emitted: %s", out)
	}
}
