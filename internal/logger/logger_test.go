package logger

import (
	"bytes"
	"strings"
	"testing"
)

func TestRouting_WarnAndErrorGoToErrorStream(t *testing.T) {
	var out, errOut bytes.Buffer
	l := NewRouted(&out, &errOut, LevelDebug, "[test]")

	l.Info("hello")
	l.Warn("uh oh")
	l.Error("bad")

	if !strings.Contains(out.String(), "INFO hello") {
		t.Fatalf("primary stream missing info line: %q", out.String())
	}
	if strings.Contains(out.String(), "uh oh") || strings.Contains(out.String(), "bad") {
		t.Fatalf("warn/error leaked into primary stream: %q", out.String())
	}
	if !strings.Contains(errOut.String(), "WARN uh oh") || !strings.Contains(errOut.String(), "ERROR bad") {
		t.Fatalf("error stream missing lines: %q", errOut.String())
	}
}

func TestLevelGate_SharedAcrossDerivedLoggers(t *testing.T) {
	var out bytes.Buffer
	l := New(&out, LevelWarn, "[test]")
	derived := l.With("component", "ingest")

	derived.Info("suppressed")
	if out.Len() != 0 {
		t.Fatalf("info below threshold was emitted: %q", out.String())
	}

	// Lowering the level on the parent must open the gate for the
	// derived logger too.
	l.SetLevel(LevelDebug)
	derived.Debug("now visible")
	if !strings.Contains(out.String(), "DEBUG now visible") {
		t.Fatalf("derived logger did not see shared level change: %q", out.String())
	}
}

func TestWith_AppendsFields(t *testing.T) {
	var out bytes.Buffer
	l := New(&out, LevelInfo, "[test]").With("collection", "people").With("attempt", 2)

	l.Info("ingest done")
	line := out.String()
	if !strings.Contains(line, "ingest done collection=people attempt=2") {
		t.Fatalf("bound fields missing from line: %q", line)
	}
}
