package logx

import (
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestParseLevel(t *testing.T) {
	t.Parallel()
	tests := []struct {
		raw  string
		want zerolog.Level
	}{
		{raw: "debug", want: zerolog.DebugLevel},
		{raw: " INFO ", want: zerolog.InfoLevel},
		{raw: "warning", want: zerolog.WarnLevel},
		{raw: "error", want: zerolog.ErrorLevel},
		{raw: "nonsense", want: zerolog.InfoLevel},
		{raw: "", want: zerolog.InfoLevel},
	}
	for _, tt := range tests {
		if got := parseLevel(tt.raw, zerolog.InfoLevel); got != tt.want {
			t.Fatalf("parseLevel(%q) = %v, want %v", tt.raw, got, tt.want)
		}
	}
}

func TestTruncate(t *testing.T) {
	t.Parallel()
	if got := truncate("short", 100); got != "short" {
		t.Fatalf("truncate = %q", got)
	}
	long := strings.Repeat("x", 100)
	got := truncate(long, 50)
	if len(got) != 50 || !strings.HasSuffix(got, "...") {
		t.Fatalf("truncate len=%d suffix=%q", len(got), got[len(got)-3:])
	}
}

func TestFormatChatJSON(t *testing.T) {
	t.Parallel()
	line := `{"level":"warn","time":"2026-08-31T07:00:00Z","message":"send failed","err":"timeout"}`
	got := formatChatJSON([]byte(line))
	if !strings.HasPrefix(got, "[WARN] send failed") {
		t.Fatalf("formatChatJSON = %q", got)
	}
	if !strings.Contains(got, "err=timeout") {
		t.Fatalf("field missing: %q", got)
	}
	if strings.Contains(got, "time=") {
		t.Fatalf("time field must be dropped: %q", got)
	}
}

func TestFormatChatJSONNonJSON(t *testing.T) {
	t.Parallel()
	if got := formatChatJSON([]byte("  raw line\n")); got != "raw line" {
		t.Fatalf("formatChatJSON = %q", got)
	}
}

func TestNopLoggerIsSafe(t *testing.T) {
	t.Parallel()
	var zero Logger
	zero.Info("no-op on the zero value")
	l := Nop().With(String("k", "v"), Int("n", 1), Err(nil))
	l.Debug("still fine")
	l.Error("and errors too")
}
