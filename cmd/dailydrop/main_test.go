package main

import (
	"log/slog"
	"testing"
)

func TestCheckFlags(t *testing.T) {
	tests := []struct {
		name     string
		daemon   bool
		date     string
		puzzleID string
		wantErr  bool
	}{
		{"one-shot defaults", false, "", "", false},
		{"one-shot with date and id", false, "2024-03-01", "12345", false},
		{"daemon alone", true, "", "", false},
		{"daemon with date", true, "2024-03-01", "", true},
		{"daemon with puzzle id", true, "", "12345", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := checkFlags(tt.daemon, tt.date, tt.puzzleID)
			if (err != nil) != tt.wantErr {
				t.Fatalf("checkFlags: err=%v, wantErr=%v", err, tt.wantErr)
			}
		})
	}
}

func TestLogLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"":      slog.LevelInfo,
		"debug": slog.LevelDebug,
		"WARN":  slog.LevelWarn,
		"error": slog.LevelError,
		"loud":  slog.LevelInfo,
	}
	for in, want := range tests {
		if got := logLevel(in); got != want {
			t.Errorf("logLevel(%q) = %v, want %v", in, got, want)
		}
	}
}
