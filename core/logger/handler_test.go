package logger

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func render(t *testing.T, format logFormat, ctx context.Context, component string, level slog.Level, event string, attrs ...slog.Attr) string {
	t.Helper()
	buf := &bytes.Buffer{}
	aw := newAsyncWriter([]io.Writer{buf}, 1024)
	handler := newStructuredHandler(handlerConfig{
		level:  slog.LevelDebug,
		writer: aw,
		format: format,
	})
	LogEvent(ctx, slog.New(handler).With("component", component), level, event, attrs...)
	if err := aw.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	return strings.TrimSpace(buf.String())
}

func TestKVLineOrder(t *testing.T) {
	ctx := WithRID(context.Background(), "rid-123")
	ctx = WithUpdateMeta(ctx, 42, 7, 9)

	line := render(t, formatKV, ctx, CompMenu, slog.LevelInfo, "prompt.saved",
		slog.String("status", "ok"),
		slog.String("cause", "unit"),
	)
	tokens := strings.Split(line, " ")
	expected := []string{"ts=", "level=INFO", "component=menu", "event=prompt.saved", "status=ok", "rid=rid-123", "update_id=42", "user_id=7", "chat_id=9"}
	if len(tokens) < len(expected) {
		t.Fatalf("unexpected token count: %d (%s)", len(tokens), line)
	}
	for i, prefix := range expected {
		if !strings.HasPrefix(tokens[i], prefix) {
			t.Fatalf("token %d = %s, expected prefix %s", i, tokens[i], prefix)
		}
	}
}

func TestJSONLineOrderAndGenID(t *testing.T) {
	ctx := WithGenID(WithRID(context.Background(), "rid-json"), "gen-1")

	line := render(t, formatJSON, ctx, CompSD, slog.LevelError, "txt2img.done",
		slog.String("status", "fail"),
		slog.String("err", "boom"),
	)
	prefixes := []string{`{"ts":`, `"level":"ERROR"`, `"component":"sd"`, `"event":"txt2img.done"`, `"status":"fail"`, `"rid":"rid-json"`, `"gen_id":"gen-1"`}
	pos := -1
	for _, pref := range prefixes {
		idx := strings.Index(line, pref)
		if idx == -1 || idx < pos {
			t.Fatalf("prefix %s not found in order within %s", pref, line)
		}
		pos = idx
	}
}

func TestCompactRID(t *testing.T) {
	raw := "123:456:789"
	ctx := WithRID(context.Background(), raw)

	kv := render(t, formatKV, ctx, CompApp, slog.LevelInfo, "rid.test")
	if !strings.Contains(kv, "rid="+CompactRID(raw)) || strings.Contains(kv, "rid_full=") {
		t.Fatalf("kv line = %s", kv)
	}
	js := render(t, formatJSON, ctx, CompApp, slog.LevelInfo, "rid.test")
	if !strings.Contains(js, `"rid":"3f.co.lx"`) || !strings.Contains(js, `"rid_full":"`+raw+`"`) {
		t.Fatalf("json line = %s", js)
	}
	if CompactRID("not-a-rid") != "not-a-rid" {
		t.Fatal("foreign rid rewritten")
	}
}

func TestDurationsBecomeMillis(t *testing.T) {
	line := render(t, formatKV, context.Background(), CompSD, slog.LevelInfo, "txt2img.done",
		slog.Duration("duration", 1500*time.Millisecond),
		slog.Duration("backoff", 2*time.Second),
	)
	if !strings.Contains(line, "duration_ms=1500") || !strings.Contains(line, "backoff_ms=2000") {
		t.Fatalf("line = %s", line)
	}
}

func TestUnknownOutcomeDropped(t *testing.T) {
	line := render(t, formatKV, context.Background(), CompTG, slog.LevelInfo, "handler.handled",
		slog.String("outcome", "weird"),
		slog.String("status", "BUSY"),
		slog.String("payload", ""),
	)
	if strings.Contains(line, "outcome=") || strings.Contains(line, "payload=") {
		t.Fatalf("line = %s", line)
	}
	if !strings.Contains(line, "status=busy") {
		t.Fatalf("status not normalized: %s", line)
	}
}

func TestSanitizeAndRedact(t *testing.T) {
	if got := SanitizeLimit("a\x00b\u200bc\nd", 10); got != "abc\nd" {
		t.Fatalf("sanitize = %q", got)
	}
	if got := SanitizeLimit("héllo", 2); got != "hé" {
		t.Fatalf("limit = %q", got)
	}
	msg := RedactToken(`Post "https://api.telegram.org/bot123:AA-bb_C/sendPhoto": EOF`)
	if strings.Contains(msg, "123:AA") || !strings.Contains(msg, "bot<redacted>") {
		t.Fatalf("redact = %q", msg)
	}
}

func TestRatioSampler(t *testing.T) {
	s := newRatioSampler(1, 3)
	var got []bool
	for i := 0; i < 6; i++ {
		got = append(got, s.Allow())
	}
	want := []bool{true, false, false, true, false, false}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("allow sequence = %v", got)
		}
	}
	s.Set(0, 0)
	if !s.Allow() {
		t.Fatal("zero ratio must allow")
	}
	if n, d := parseRatioSpec("10"); n != 1 || d != 10 {
		t.Fatalf("spec 10 = %d/%d", n, d)
	}
}

func TestHelpersNoopWithoutInit(t *testing.T) {
	if L != nil {
		t.Skip("global logger initialized")
	}
	Info(context.Background(), CompApp, "noop")
}
