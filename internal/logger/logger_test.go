package logger

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

func TestTrimPathDepth(t *testing.T) {
	if got := trimPathDepth("a/b/c/d.go", 3); got != "b/c/d.go" {
		t.Errorf("got %q", got)
	}
	if got := trimPathDepth("d.go", 3); got != "d.go" {
		t.Errorf("got %q", got)
	}
}

func TestParseLevel(t *testing.T) {
	lvl, ok := parseLevel("warn")
	if !ok || lvl != slog.LevelWarn {
		t.Errorf("got %v %v", lvl, ok)
	}
	if _, ok := parseLevel("loud"); ok {
		t.Error("unknown level should not parse")
	}
	if _, ok := parseLevel(""); ok {
		t.Error("empty level should not parse")
	}
}

func TestCallerHandler_AddsCaller(t *testing.T) {
	var buf bytes.Buffer
	l := slog.New(&callerHandler{Handler: slog.NewTextHandler(&buf, nil)})
	l.Info("hello")
	if !strings.Contains(buf.String(), "caller=") || !strings.Contains(buf.String(), "logger_test.go") {
		t.Errorf("missing caller attribute: %s", buf.String())
	}
}

func TestFromContext_RequestID(t *testing.T) {
	var buf bytes.Buffer
	base := slog.New(slog.NewTextHandler(&buf, nil))

	ctx, id := WithRequestID(context.Background())
	if id == "" || RequestID(ctx) != id {
		t.Fatalf("request id not stored: %q", id)
	}
	FromContext(ctx, base).Info("x")
	if !strings.Contains(buf.String(), "request_id="+id) {
		t.Errorf("missing request id: %s", buf.String())
	}

	if FromContext(context.Background(), base) != base {
		t.Error("logger without request id should be returned unchanged")
	}
}
