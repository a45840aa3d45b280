package sched

import (
	"fmt"
	"sort"
	"time"

	"lingbot/internal/config"
	"lingbot/pkg/logx"
)

// ReloadResult enumerates how a configuration swap affected the profile set.
type ReloadResult struct {
	New      []string `json:"new"`
	Updated  []string `json:"updated"`
	Removed  []string `json:"removed"`
	Deferred []string `json:"deferred"`
}

// ApplyProfiles swaps in a freshly parsed profile set. Run-state of surviving
// profiles carries over so in-flight work is never lost; profiles that were
// removed or changed while running are deferred until their task completes.
// Any parse failure leaves the current set completely untouched.
func (s *Scheduler) ApplyProfiles(newCfgs map[string]config.ProfileConfig) (*ReloadResult, error) {
	built, err := buildProfiles(newCfgs)
	if err != nil {
		return nil, err
	}

	res := &ReloadResult{
		New:      []string{},
		Updated:  []string{},
		Removed:  []string{},
		Deferred: []string{},
	}
	var cancels []*Handle

	s.mu.Lock()
	oldCfgs := make(map[string]config.ProfileConfig, len(s.profiles))
	for name, p := range s.profiles {
		oldCfgs[name] = p.Config
	}
	added, _, changed := config.DiffProfiles(oldCfgs, newCfgs)
	res.New = append(res.New, added...)
	changedSet := make(map[string]bool, len(changed))
	for _, name := range changed {
		changedSet[name] = true
	}

	for name, old := range s.profiles {
		np, kept := built[name]
		switch {
		case !kept:
			if old.Running {
				// deferred eviction: the old definition stays visible
				// until its task finishes, then disappears
				built[name] = old
				res.Deferred = append(res.Deferred, name)
				s.watchEviction(old)
			} else {
				res.Removed = append(res.Removed, name)
				if old.Handle != nil {
					cancels = append(cancels, old.Handle)
				}
			}
		case changedSet[name]:
			// carry run-state onto the replacement object; a still-running
			// task finds it through the shared handle and resolves its
			// fields there once it completes
			np.LastRun = old.LastRun
			np.NextRun = old.NextRun
			np.Handle = old.Handle
			np.Running = old.Running
			np.LastLog = old.LastLog
			if old.Running {
				res.Deferred = append(res.Deferred, name)
			} else {
				res.Updated = append(res.Updated, name)
			}
		default:
			built[name] = old
		}
	}
	s.profiles = built

	// A changed window may no longer contain the chosen instant. Redraw if
	// the new window is still open today, otherwise leave it alone.
	now := time.Now()
	for _, name := range changed {
		p := built[name]
		if p.Running || p.NextRun.IsZero() || p.Window.Contains(p.NextRun) {
			continue
		}
		if now.After(p.Window.EndOn(now)) {
			continue
		}
		if p.Handle != nil {
			cancels = append(cancels, p.Handle)
			p.Handle = nil
		}
		p.NextRun = p.Window.RandomInstant(now, s.rng)
		s.log.Info("next run redrawn for new window",
			logx.String("profile", name), logx.Time("next_run", p.NextRun))
	}
	s.mu.Unlock()

	for _, h := range cancels {
		h.CancelWithReason("superseded by reload")
	}

	sort.Strings(res.Deferred)
	s.log.Info("profiles reloaded",
		logx.Int("new", len(res.New)), logx.Int("updated", len(res.Updated)),
		logx.Int("removed", len(res.Removed)), logx.Int("deferred", len(res.Deferred)))
	s.notifier.Send(fmt.Sprintf(
		"Configuration reloaded: %d new, %d updated, %d removed, %d deferred.",
		len(res.New), len(res.Updated), len(res.Removed), len(res.Deferred)))
	s.Wake()
	return res, nil
}

// watchEviction removes an evicted profile from the set once its in-flight
// task has torn down. Caller holds s.mu.
func (s *Scheduler) watchEviction(old *Profile) {
	h := old.Handle
	if h == nil {
		delete(s.profiles, old.Name)
		return
	}
	go func() {
		<-h.Done()
		s.mu.Lock()
		if cur, ok := s.profiles[old.Name]; ok && cur == old {
			delete(s.profiles, old.Name)
			s.log.Info("deferred profile removed after task completion",
				logx.String("profile", old.Name))
		}
		s.mu.Unlock()
	}()
}
