package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestParseHHMM(t *testing.T) {
	t.Parallel()
	tests := []struct {
		raw     string
		want    int
		wantErr bool
	}{
		{raw: "00:00", want: 0},
		{raw: "09:30", want: 570},
		{raw: "23:59", want: 1439},
		{raw: " 12:00 ", want: 720},
		{raw: "24:00", wantErr: true},
		{raw: "12:60", wantErr: true},
		{raw: "12", wantErr: true},
		{raw: "noon", wantErr: true},
	}
	for _, tt := range tests {
		got, err := ParseHHMM(tt.raw)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseHHMM(%q) error = %v, wantErr %v", tt.raw, err, tt.wantErr)
			continue
		}
		if err == nil && got != tt.want {
			t.Errorf("ParseHHMM(%q) = %d, want %d", tt.raw, got, tt.want)
		}
	}
}

func TestParseDurationField(t *testing.T) {
	t.Parallel()
	tests := []struct {
		raw     string
		want    time.Duration
		wantErr bool
	}{
		{raw: "", want: 0},
		{raw: "  ", want: 0},
		{raw: "90s", want: 90 * time.Second},
		{raw: " 10m ", want: 10 * time.Minute},
		{raw: "-5s", wantErr: true},
		{raw: "soon", wantErr: true},
	}
	for _, tt := range tests {
		got, err := ParseDurationField("scheduler.interval", tt.raw)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseDurationField(%q) error = %v, wantErr %v", tt.raw, err, tt.wantErr)
			continue
		}
		if err == nil && got != tt.want {
			t.Errorf("ParseDurationField(%q) = %v, want %v", tt.raw, got, tt.want)
		}
	}

	d, err := ParseDurationOrDefault("scheduler.interval", "", 15*time.Minute)
	if err != nil || d != 15*time.Minute {
		t.Errorf("default for unset field = %v, %v", d, err)
	}
	d, err = ParseDurationOrDefault("scheduler.interval", "1h", 15*time.Minute)
	if err != nil || d != time.Hour {
		t.Errorf("explicit value = %v, %v", d, err)
	}
}

func TestToJSONPassesNonYAMLThrough(t *testing.T) {
	t.Parallel()
	raw := []byte(`{"database":{"path":"x.db"}}`)
	got, err := toJSON("config.json", raw)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != string(raw) {
		t.Errorf("json input rewritten: %s", got)
	}
}

func TestToJSONStringifiesKeys(t *testing.T) {
	t.Parallel()
	got, err := toJSON("config.yaml", []byte("levels:\n  5: debug\n"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(got), `"5":"debug"`) {
		t.Errorf("integer key not stringified: %s", got)
	}
}

func validProfile() ProfileConfig {
	return ProfileConfig{
		RunWindow: WindowConfig{Start: "09:00", End: "17:00"},
		Username:  "alice@example.com",
		Password:  "secret",
		Solver:    SolverConfig{Runs: 1},
	}
}

func TestDiffProfiles(t *testing.T) {
	t.Parallel()
	oldM := map[string]ProfileConfig{
		"keep":   validProfile(),
		"change": validProfile(),
		"drop":   validProfile(),
	}
	newM := map[string]ProfileConfig{
		"keep":   validProfile(),
		"change": validProfile(),
		"fresh":  validProfile(),
	}
	changed := newM["change"]
	changed.Solver.Runs = 3
	newM["change"] = changed

	added, removed, diff := DiffProfiles(oldM, newM)
	if len(added) != 1 || added[0] != "fresh" {
		t.Errorf("added = %v", added)
	}
	if len(removed) != 1 || removed[0] != "drop" {
		t.Errorf("removed = %v", removed)
	}
	if len(diff) != 1 || diff[0] != "change" {
		t.Errorf("changed = %v", diff)
	}
}

func TestProfileHashStable(t *testing.T) {
	t.Parallel()
	a := validProfile()
	b := validProfile()
	if ProfileHash(a) != ProfileHash(b) {
		t.Error("identical profiles must hash equal")
	}
	b.Password = "other"
	if ProfileHash(a) == ProfileHash(b) {
		t.Error("differing profiles must hash differently")
	}
}

const sampleYAML = `
control:
  socket_path: /tmp/lingbot.sock
notify:
  backend: none
database:
  path: data/lingbot.db
scheduler:
  interval: 10m
profiles:
  alice:
    run_window: {start: "09:00", end: "17:00"}
    username: alice@example.com
    password: secret
    solver:
      runs: 2
      speed:
        typing: [90, 400]
  idle:
    run_window: {start: "09:00", end: "17:00"}
    username: idle@example.com
    password: secret
    solver:
      runs: 0
`

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoaderParseYAML(t *testing.T) {
	t.Parallel()
	l := NewLoader(writeConfig(t, "config.yaml", sampleYAML))
	cfg, err := l.Parse()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Control.SocketPath != "/tmp/lingbot.sock" {
		t.Errorf("socket_path = %q", cfg.Control.SocketPath)
	}
	p, ok := cfg.Profiles["alice"]
	if !ok {
		t.Fatal("profile alice missing")
	}
	if p.Solver.Runs != 2 {
		t.Errorf("runs = %d, want 2", p.Solver.Runs)
	}
	if r := p.Solver.Speed["typing"]; r != [2]int{90, 400} {
		t.Errorf("typing speed = %v", r)
	}
	if _, ok := cfg.Profiles["idle"]; ok {
		t.Error("profile with zero runs should be dropped")
	}
}

func TestLoaderRejectsUnknownFields(t *testing.T) {
	t.Parallel()
	l := NewLoader(writeConfig(t, "config.yaml", sampleYAML+"\nsurprise: true\n"))
	if _, err := l.Parse(); err == nil || !strings.Contains(err.Error(), "surprise") {
		t.Fatalf("err = %v, want unknown field error", err)
	}
}

func TestLoaderRejectsInvalidWindow(t *testing.T) {
	t.Parallel()
	bad := strings.Replace(sampleYAML, `{start: "09:00", end: "17:00"}`, `{start: "18:00", end: "09:00"}`, 1)
	l := NewLoader(writeConfig(t, "config.yaml", bad))
	if _, err := l.Parse(); err == nil {
		t.Fatal("expected window validation error")
	}
}

func TestValidateBackends(t *testing.T) {
	t.Parallel()
	cfg := Config{
		Control:  ControlConfig{SocketPath: "/tmp/x.sock"},
		Database: DatabaseConfig{Path: "x.db"},
		Notify:   NotifyConfig{Backend: "webhook"},
	}
	if err := cfg.Validate(); err == nil {
		t.Error("webhook backend without url must fail")
	}
	cfg.Notify.WebhookURL = "https://example.com/hook"
	if err := cfg.Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	cfg.Notify = NotifyConfig{Backend: "carrier-pigeon"}
	if err := cfg.Validate(); err == nil {
		t.Error("unknown backend must fail")
	}
}
