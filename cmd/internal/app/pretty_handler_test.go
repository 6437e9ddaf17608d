package app

import (
	"context"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func TestPrettyHandler_PlainOutput(t *testing.T) {
	t.Parallel()

	var sb strings.Builder
	h := newPrettyHandler(&sb, &slog.HandlerOptions{Level: slog.LevelInfo}, false)
	log := slog.New(h)

	log.Info("http.request", "method", "get", "path", "/api/questions", "status", 200, "duration_ms", int64(12))

	out := sb.String()
	for _, want := range []string{"lvl=[INFO]", "msg=http.request", "method=GET", "path=/api/questions", "status=200", "duration_ms=12ms"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q: %s", want, out)
		}
	}
	if strings.Contains(out, "\x1b[") {
		t.Fatalf("color disabled but ANSI codes present: %q", out)
	}
}

func TestPrettyHandler_ColorAndQuoting(t *testing.T) {
	t.Parallel()

	var sb strings.Builder
	h := newPrettyHandler(&sb, nil, true)
	log := slog.New(h)

	log.Error("boom", "err", "something went wrong")

	out := sb.String()
	if !strings.Contains(out, ansiRed+"[ERROR]"+ansiReset) {
		t.Fatalf("error level not colorized: %q", out)
	}
	if !strings.Contains(out, `err="something went wrong"`) {
		t.Fatalf("value with spaces not quoted: %q", out)
	}
}

func TestPrettyHandler_LevelFilter(t *testing.T) {
	t.Parallel()

	var sb strings.Builder
	h := newPrettyHandler(&sb, &slog.HandlerOptions{Level: slog.LevelWarn}, false)

	if h.Enabled(context.Background(), slog.LevelInfo) {
		t.Fatalf("info should be filtered at warn level")
	}
	if !h.Enabled(context.Background(), slog.LevelError) {
		t.Fatalf("error should pass at warn level")
	}
}

func TestPrettyHandler_GroupsAndAttrs(t *testing.T) {
	t.Parallel()

	var sb strings.Builder
	h := newPrettyHandler(&sb, nil, false)

	slog.New(h).With("svc", "agrimitra").Info("start")
	if !strings.Contains(sb.String(), "svc=agrimitra") {
		t.Fatalf("WithAttrs value missing: %q", sb.String())
	}

	sb.Reset()
	slog.New(h).WithGroup("db").Info("query", "table", "accounts", "elapsed", 3*time.Millisecond)
	out := sb.String()
	if !strings.Contains(out, "db.table=accounts") {
		t.Fatalf("group prefix missing: %q", out)
	}
	if !strings.Contains(out, "db.elapsed=3ms") {
		t.Fatalf("duration formatting: %q", out)
	}
}
