package app

import (
	"context"
	"log/slog"
	"testing"
)

func TestParseLogLevel(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		want slog.Level
	}{
		{in: "debug", want: slog.LevelDebug},
		{in: "INFO", want: slog.LevelInfo},
		{in: "warn", want: slog.LevelWarn},
		{in: "warning", want: slog.LevelWarn},
		{in: "error", want: slog.LevelError},
		{in: "unknown", want: slog.LevelInfo},
		{in: "", want: slog.LevelInfo},
		// LoadConfig's CARTEIRA_LOG_LEVEL default.
		{in: "info", want: slog.LevelInfo},
	}

	for _, tc := range cases {
		got := parseLogLevel(tc.in)
		if got != tc.want {
			t.Fatalf("parseLogLevel(%q)=%v want=%v", tc.in, got, tc.want)
		}
	}
}

func TestNewLoggerHonorsLevel(t *testing.T) {
	log := NewLogger("warn")
	ctx := context.Background()

	if log.Enabled(ctx, slog.LevelDebug) {
		t.Fatalf("debug enabled at warn level")
	}
	if !log.Enabled(ctx, slog.LevelWarn) {
		t.Fatalf("warn disabled at warn level")
	}
	if !log.Enabled(ctx, slog.LevelError) {
		t.Fatalf("error disabled at warn level")
	}
}
