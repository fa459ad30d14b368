package log

import (
	"bytes"
	"strings"
	"testing"
)

func newTestLogger(t *testing.T, name string) (*Logger, *bytes.Buffer) {
	t.Helper()
	buf := &bytes.Buffer{}
	SetOutput(buf)
	return ForService(name), buf
}

func TestPrefixAndLevel(t *testing.T) {
	SetGlobalDebug(false)

	l, buf := newTestLogger(t, "controller_prefix_test")
	l.Infof("search fired for %q", "collier vert")

	out := buf.String()
	if !strings.Contains(out, "INFO [controller_prefix_test>]") {
		t.Fatalf("expected level and prefix in output, got: %q", out)
	}
	if !strings.Contains(out, `search fired for "collier vert"`) {
		t.Fatalf("expected message in output, got: %q", out)
	}
}

func TestDebugPerService(t *testing.T) {
	SetGlobalDebug(false)

	const name = "history_debug_test"
	DisableDebugFor(name)
	l, buf := newTestLogger(t, name)

	l.Debugf("should not appear")
	if strings.Contains(buf.String(), "should not appear") {
		t.Fatalf("debug line printed while debug disabled")
	}

	EnableDebugFor(name)
	defer DisableDebugFor(name)
	l.Debugf("visible now")
	if !strings.Contains(buf.String(), "visible now") {
		t.Fatalf("expected debug line after EnableDebugFor, got: %q", buf.String())
	}

	other, _ := newTestLogger(t, "proxy_debug_test")
	other.Debugf("other service hidden")
	if strings.Contains(buf.String(), "other service hidden") {
		t.Fatalf("per-service debug leaked to another service")
	}
}

func TestDebugGlobal(t *testing.T) {
	SetGlobalDebug(false)

	l, buf := newTestLogger(t, "global_debug_test")
	l.Debugf("hidden")
	if strings.Contains(buf.String(), "hidden") {
		t.Fatalf("debug line printed while global debug disabled")
	}

	SetGlobalDebug(true)
	defer SetGlobalDebug(false)

	l.Debugf("global visible")
	if !strings.Contains(buf.String(), "global visible") {
		t.Fatalf("expected debug line after SetGlobalDebug(true), got: %q", buf.String())
	}
}

func TestSetOutputUpdatesExistingLoggers(t *testing.T) {
	l := ForService("existing_logger_test")

	buf := &bytes.Buffer{}
	SetOutput(buf)
	l.Warnf("quota exceeded")

	if !strings.Contains(buf.String(), "WARN [existing_logger_test>] quota exceeded") {
		t.Fatalf("existing logger did not adopt new writer, got: %q", buf.String())
	}
}
