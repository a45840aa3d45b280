package config

import (
	"fmt"
	"strconv"
	"strings"

	"lingbot/pkg/logx"
)

type Config struct {
	Logging logx.Config `json:"logging,omitempty"`

	// Control configures the local command socket.
	Control ControlConfig `json:"control"`

	Notify   NotifyConfig   `json:"notify"`
	Database DatabaseConfig `json:"database"`

	Scheduler   SchedulerConfig    `json:"scheduler,omitempty"`
	Maintenance *MaintenanceConfig `json:"maintenance,omitempty"`

	Profiles map[string]ProfileConfig `json:"profiles"`
}

type ControlConfig struct {
	// SocketPath is the unix socket the control protocol listens on.
	// The socket is chmod'd to 0600; transport permissions are the only auth.
	SocketPath string `json:"socket_path"`
}

// NotifyConfig selects the outbound status channel.
//
// Backend values: "webhook" (Discord-compatible), "telegram", "none".
type NotifyConfig struct {
	Backend    string `json:"backend"`
	WebhookURL string `json:"webhook_url,omitempty"`

	Telegram *TelegramNotifyConfig `json:"telegram,omitempty"`

	// RatePerSec caps outbound messages. Durations/integers <= 0 use defaults.
	RatePerSec int `json:"rate_per_sec,omitempty"`
	QueueSize  int `json:"queue_size,omitempty"`
}

type TelegramNotifyConfig struct {
	Token  string `json:"token"`
	ChatID int64  `json:"chat_id"`
}

type DatabaseConfig struct {
	Path string `json:"path"`
	// BusyTimeout is a Go duration string (e.g. "5s"); empty means driver default.
	BusyTimeout string `json:"busy_timeout,omitempty"`
}

type SchedulerConfig struct {
	// Interval between scheduling passes. Go duration string; default "15m".
	Interval string `json:"interval,omitempty"`
	// LogDir is where per-run solver logs are written. Default "./logs".
	LogDir string `json:"log_dir,omitempty"`
}

type MaintenanceConfig struct {
	Enabled bool `json:"enabled"`
	// LogRetentionDays prunes per-run logs older than this. Default 30.
	LogRetentionDays int `json:"log_retention_days,omitempty"`
	// SnapshotSpec is a cron spec for the daily word-count snapshot.
	// Default "5 0 * * *" (00:05 local).
	SnapshotSpec string `json:"snapshot_spec,omitempty"`
}

type ProfileConfig struct {
	RunWindow WindowConfig `json:"run_window"`

	Username  string `json:"username"`
	Password  string `json:"password"`
	UserAgent string `json:"user_agent,omitempty"`

	// Session knobs. Durations are Go duration strings; zero values use
	// session defaults.
	Timeout   string `json:"timeout,omitempty"`
	Retries   int    `json:"retries,omitempty"`
	RetryWait string `json:"retry_wait,omitempty"`

	Solver SolverConfig `json:"solver"`
}

// WindowConfig is the inclusive daily time-of-day range ("HH:MM") in which a
// profile's execution must start.
type WindowConfig struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// SolverConfig tunes the humanized answering behavior of one profile.
type SolverConfig struct {
	// Speed maps delay kinds to [min,max] millisecond ranges.
	// Known kinds: marketing_skip, initial, extra_think, typing, give_up,
	// next_question, first_session, next_session, distraction.
	Speed map[string][2]int `json:"speed"`

	Runs int `json:"runs"`

	DistractionChance   float64 `json:"distraction_chance"`
	BaseMemorizeChance  float64 `json:"base_memorize_chance"`
	MemorizeRequirement int     `json:"memorize_requirement"`
	SynonymChance       float64 `json:"synonym_chance"`
	MistakeChance       float64 `json:"mistake_chance"`
}

// ParseHHMM parses a "HH:MM" time-of-day into minutes since midnight.
func ParseHHMM(s string) (int, error) {
	s = strings.TrimSpace(s)
	parts := strings.Split(s, ":")
	if len(parts) != 2 {
		return 0, fmt.Errorf("invalid time %q, expected HH:MM", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, fmt.Errorf("invalid hour in %q", s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, fmt.Errorf("invalid minute in %q", s)
	}
	return h*60 + m, nil
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.Control.SocketPath) == "" {
		return fmt.Errorf("control.socket_path is required")
	}
	switch strings.ToLower(strings.TrimSpace(c.Notify.Backend)) {
	case "", "none":
	case "webhook":
		if strings.TrimSpace(c.Notify.WebhookURL) == "" {
			return fmt.Errorf("notify.webhook_url is required for the webhook backend")
		}
	case "telegram":
		if c.Notify.Telegram == nil || strings.TrimSpace(c.Notify.Telegram.Token) == "" || c.Notify.Telegram.ChatID == 0 {
			return fmt.Errorf("notify.telegram token and chat_id are required for the telegram backend")
		}
	default:
		return fmt.Errorf("notify.backend: unknown backend %q", c.Notify.Backend)
	}
	if strings.TrimSpace(c.Database.Path) == "" {
		return fmt.Errorf("database.path is required")
	}
	if _, err := ParseDurationField("scheduler.interval", c.Scheduler.Interval); err != nil {
		return err
	}
	for name, p := range c.Profiles {
		if err := p.validate(); err != nil {
			return fmt.Errorf("profiles.%s: %w", name, err)
		}
	}
	return nil
}

func (p ProfileConfig) validate() error {
	start, err := ParseHHMM(p.RunWindow.Start)
	if err != nil {
		return fmt.Errorf("run_window.start: %w", err)
	}
	end, err := ParseHHMM(p.RunWindow.End)
	if err != nil {
		return fmt.Errorf("run_window.end: %w", err)
	}
	if end < start {
		return fmt.Errorf("run_window end %s is before start %s", p.RunWindow.End, p.RunWindow.Start)
	}
	if strings.TrimSpace(p.Username) == "" {
		return fmt.Errorf("username is required")
	}
	if p.Password == "" {
		return fmt.Errorf("password is required")
	}
	if _, err := ParseDurationField("timeout", p.Timeout); err != nil {
		return err
	}
	if _, err := ParseDurationField("retry_wait", p.RetryWait); err != nil {
		return err
	}
	for kind, r := range p.Solver.Speed {
		if r[0] < 0 || r[1] < r[0] {
			return fmt.Errorf("solver.speed.%s: invalid range [%d,%d]", kind, r[0], r[1])
		}
	}
	return nil
}
