package sched

import "time"

// ProfileStatus is a point-in-time view of one profile's run-state, as
// reported over the control protocol.
type ProfileStatus struct {
	LastRun     time.Time  `json:"last_run"`
	NextRun     *time.Time `json:"next_run,omitempty"`
	TaskCreated bool       `json:"task_created"`
	Running     bool       `json:"running"`
	LastLog     string     `json:"last_log,omitempty"`
}

// Snapshot returns the status of every profile.
func (s *Scheduler) Snapshot() map[string]ProfileStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]ProfileStatus, len(s.profiles))
	for name, p := range s.profiles {
		st := ProfileStatus{
			LastRun:     p.LastRun,
			TaskCreated: p.Handle != nil,
			Running:     p.Running,
			LastLog:     p.LastLog,
		}
		if !p.NextRun.IsZero() {
			t := p.NextRun
			st.NextRun = &t
		}
		out[name] = st
	}
	return out
}
