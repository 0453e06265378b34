package logging

import (
	"bytes"
	"context"
	"strings"
	"testing"
)

func TestWithSessionLoggerTagsLines(t *testing.T) {
	var buf bytes.Buffer
	base := New(Config{Level: "debug", Format: "json", Output: &buf})

	ctx, log := WithSessionLogger(context.Background(), base)
	id := SessionIDFromContext(ctx)
	if id == "" {
		t.Fatalf("session id not stored on the context")
	}
	log.Debug(ctx, "drawing started", Int("coordinates", 1))
	if out := buf.String(); !strings.Contains(out, `"session_id":"`+id+`"`) || !strings.Contains(out, `"coordinates":1`) {
		t.Fatalf("log line = %s, want session id and fields", out)
	}

	// An existing id is kept.
	again, _ := WithSessionLogger(ctx, base)
	if got := SessionIDFromContext(again); got != id {
		t.Fatalf("session id = %q, want %q", got, id)
	}
}

func TestLevelFiltersLines(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: "warn", Output: &buf})
	log.Info(context.Background(), "hidden")
	log.Warn(context.Background(), "tile load failed", Err(context.Canceled))
	out := buf.String()
	if strings.Contains(out, "hidden") || !strings.Contains(out, "tile load failed") {
		t.Fatalf("output = %q, want only the warning", out)
	}
}

func TestOrNoop(t *testing.T) {
	if OrNoop(nil) == nil {
		t.Fatalf("OrNoop(nil) returned nil")
	}
	OrNoop(nil).With(String("k", "v")).Error(context.Background(), "dropped")
}
