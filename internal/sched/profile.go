package sched

import (
	"fmt"
	"time"

	"lingbot/internal/config"
)

// Profile is one independently scheduled daily job and its mutable run-state.
// All fields except Name and Window are guarded by the scheduler mutex.
type Profile struct {
	Name   string
	Window Window
	Config config.ProfileConfig

	// LastRun is when the profile last attempted execution (zero = never).
	// It gates same-day rescheduling.
	LastRun time.Time
	// NextRun is the instant chosen for today's execution (zero = not yet
	// scheduled today). Cleared by the task before it does any work.
	NextRun time.Time
	// Handle is present iff a runner is associated, queued or executing.
	Handle *Handle
	// Running is true only once the runner has actually begun the workload.
	Running bool
	// LastLog is the path of the most recent run's log file.
	LastLog string
}

func newProfile(name string, cfg config.ProfileConfig) (*Profile, error) {
	w, err := WindowFromConfig(cfg.RunWindow)
	if err != nil {
		return nil, fmt.Errorf("profile %s: %w", name, err)
	}
	return &Profile{Name: name, Window: w, Config: cfg}, nil
}

func buildProfiles(cfgs map[string]config.ProfileConfig) (map[string]*Profile, error) {
	out := make(map[string]*Profile, len(cfgs))
	for name, pc := range cfgs {
		p, err := newProfile(name, pc)
		if err != nil {
			return nil, err
		}
		out[name] = p
	}
	return out, nil
}
