package logx

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestRunLogWritesToItsOwnFile(t *testing.T) {
	t.Parallel()
	dir := filepath.Join(t.TempDir(), "logs")
	start := time.Date(2026, 3, 14, 18, 30, 5, 0, time.Local)

	rl, err := NewRunLog(dir, "alice", start)
	if err != nil {
		t.Fatal(err)
	}
	wantName := "2026-03-14_18-30-05-alice.log"
	if filepath.Base(rl.Path()) != wantName {
		t.Fatalf("path = %s, want basename %s", rl.Path(), wantName)
	}

	rl.Logger().Info("task started", String("profile", "alice"))
	if err := rl.Close(); err != nil {
		t.Fatal(err)
	}
	// double close is fine
	if err := rl.Close(); err != nil {
		t.Fatal(err)
	}

	b, err := os.ReadFile(rl.Path())
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(b), `"task started"`) {
		t.Fatalf("log file content %q missing message", b)
	}
}

func TestParseLevel(t *testing.T) {
	t.Parallel()
	tests := []struct {
		raw  string
		want Level
	}{
		{"debug", LevelDebug},
		{"INFO", LevelInfo},
		{"Warning", LevelWarn},
		{"error", LevelError},
		{"", LevelInfo},
		{"bogus", LevelInfo},
	}
	for _, tt := range tests {
		if got := parseLevel(tt.raw, LevelInfo); got != tt.want {
			t.Errorf("parseLevel(%q) = %v, want %v", tt.raw, got, tt.want)
		}
	}
}
