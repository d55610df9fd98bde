package app

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestPrettyHandler_PlainLine(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := slog.New(newPrettyHandler(&buf, &slog.HandlerOptions{ReplaceAttr: redactAttr}, false))

	log.With("component", "auth").Info("http.request",
		"method", "post",
		"path", "/auth/login",
		"status", 200,
		"status_class", "2xx",
		"duration_ms", int64(12),
		"user_agent", "test agent/1.0",
		"password", "hunter2",
	)

	line := strings.TrimSpace(buf.String())
	for _, want := range []string{
		"[INFO] http.request",
		"component=auth",
		"method=POST",
		"path=/auth/login",
		"status=200",
		"class=2xx",
		"duration=12ms",
		`user_agent="test agent/1.0"`,
		"password=" + redacted,
	} {
		if !strings.Contains(line, want) {
			t.Fatalf("line %q missing %q", line, want)
		}
	}
	if strings.Contains(line, "hunter2") {
		t.Fatalf("secret leaked: %q", line)
	}
	if strings.Contains(line, "\x1b[") {
		t.Fatalf("unexpected ANSI codes in plain output: %q", line)
	}
}

func TestPrettyHandler_Groups(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := slog.New(newPrettyHandler(&buf, nil, false))

	log.WithGroup("session").Info("session.rotate", "id", "s1", slog.Group("token", "id", "t2"))

	line := buf.String()
	if !strings.Contains(line, "session.id=s1") {
		t.Fatalf("missing grouped key: %q", line)
	}
	if !strings.Contains(line, "session.token.id=t2") {
		t.Fatalf("missing nested group key: %q", line)
	}
}

func TestPrettyHandler_ColorStatus(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := slog.New(newPrettyHandler(&buf, nil, true))
	log.Error("http.request", "status", 503)

	line := buf.String()
	if !strings.Contains(line, ansiRed+"[ERROR]"+ansiReset) {
		t.Fatalf("level tag not colored: %q", line)
	}
	if !strings.Contains(line, ansiRed+"503"+ansiReset) {
		t.Fatalf("status not colored: %q", line)
	}
}

func TestValueToInt64(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in     slog.Value
		want   int64
		wantOK bool
	}{
		{in: slog.Int64Value(7), want: 7, wantOK: true},
		{in: slog.Uint64Value(8), want: 8, wantOK: true},
		{in: slog.Float64Value(9.9), want: 9, wantOK: true},
		{in: slog.StringValue(" 10 "), want: 10, wantOK: true},
		{in: slog.StringValue("x"), wantOK: false},
		{in: slog.BoolValue(true), wantOK: false},
	}

	for _, tc := range cases {
		got, ok := valueToInt64(tc.in)
		if ok != tc.wantOK || (ok && got != tc.want) {
			t.Fatalf("valueToInt64(%v)=(%d,%v) want (%d,%v)", tc.in, got, ok, tc.want, tc.wantOK)
		}
	}
}

func TestColorizeStatusClass(t *testing.T) {
	t.Parallel()

	if got := colorizeStatusClass("4xx", true); got != ansiYellow+"4xx"+ansiReset {
		t.Fatalf("colorizeStatusClass(4xx)=%q", got)
	}
	if got := colorizeStatusClass("2xx", false); got != "2xx" {
		t.Fatalf("colorizeStatusClass(2xx, no color)=%q", got)
	}
}

func TestColorizeDurationMS(t *testing.T) {
	t.Parallel()

	cases := []struct {
		ms   int64
		want string
	}{
		{ms: 5, want: ansiGreen + "5ms" + ansiReset},
		{ms: 300, want: ansiYellow + "300ms" + ansiReset},
		{ms: 1500, want: ansiRed + "1500ms" + ansiReset},
	}
	for _, tc := range cases {
		if got := colorizeDurationMS(tc.ms, true); got != tc.want {
			t.Fatalf("colorizeDurationMS(%d)=%q want %q", tc.ms, got, tc.want)
		}
	}
}
