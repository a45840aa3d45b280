package sched

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"lingbot/internal/config"
	"lingbot/internal/notify"
	"lingbot/pkg/logx"
)

const defaultInterval = 15 * time.Minute

// Recorder persists run outcomes. Failures never abort a run's teardown.
type Recorder interface {
	RecordRun(ctx context.Context, userID int64, start, end time.Time, success bool) error
	CaptureWordCountSnapshot(ctx context.Context) error
}

type Config struct {
	// Interval between scheduling passes. Profiles whose start time falls
	// within one interval of a pass are launched by that pass.
	Interval time.Duration
	// LogDir is where per-run log files are written.
	LogDir string
}

// Scheduler owns the profile set and guarantees each profile runs once per
// day at a random instant inside its window. A single mutex guards every
// read-modify-write of profile run-state, shared with the control handlers.
type Scheduler struct {
	cfg         Config
	log         logx.Logger
	notifier    notify.Notifier
	newWorkload WorkloadFactory
	recorder    Recorder

	mu       sync.Mutex
	profiles map[string]*Profile
	rng      *rand.Rand

	// trigger wakes the run loop ahead of its next tick. Capacity 1: extra
	// wakes while one is pending coalesce.
	trigger chan struct{}
	tasksWG sync.WaitGroup
}

func New(cfg Config, profileCfgs map[string]config.ProfileConfig, factory WorkloadFactory, notifier notify.Notifier, recorder Recorder, log logx.Logger) (*Scheduler, error) {
	if cfg.Interval <= 0 {
		cfg.Interval = defaultInterval
	}
	if cfg.LogDir == "" {
		cfg.LogDir = "logs"
	}
	if notifier == nil {
		notifier = notify.Nop()
	}
	profiles, err := buildProfiles(profileCfgs)
	if err != nil {
		return nil, err
	}
	return &Scheduler{
		cfg:         cfg,
		log:         log,
		notifier:    notifier,
		newWorkload: factory,
		recorder:    recorder,
		profiles:    profiles,
		rng:         rand.New(rand.NewSource(time.Now().UnixNano())),
		trigger:     make(chan struct{}, 1),
	}, nil
}

// Wake makes the run loop re-evaluate immediately instead of waiting for its
// next tick. Safe from any goroutine; never blocks.
func (s *Scheduler) Wake() {
	select {
	case s.trigger <- struct{}{}:
	default:
	}
}

// Run executes scheduling passes until ctx is cancelled, then cancels every
// in-flight task and waits for their teardown.
func (s *Scheduler) Run(ctx context.Context) error {
	s.log.Info("scheduler started",
		logx.Duration("interval", s.cfg.Interval), logx.Int("profiles", s.profileCount()))
	for {
		s.pass(time.Now())

		timer := time.NewTimer(s.cfg.Interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			s.shutdown()
			return ctx.Err()
		case <-s.trigger:
			timer.Stop()
			s.log.Debug("woken early")
		case <-timer.C:
		}
	}
}

// pass is one scheduling cycle over every profile.
func (s *Scheduler) pass(now time.Time) {
	type overrun struct {
		name string
		h    *Handle
	}
	var overruns []overrun

	s.mu.Lock()
	for _, p := range s.profiles {
		// same-day gate
		if sameDay(p.LastRun, now) {
			continue
		}

		// The record says running but no task object exists: state has
		// drifted, correct it and carry on.
		if p.Running && p.Handle == nil {
			p.Running = false
			s.log.Error("profile marked running without a task, state corrected",
				logx.String("profile", p.Name))
			s.notifier.Send(fmt.Sprintf(
				"Scheduler bug detected: profile '%s' was marked running without a task. State corrected.", p.Name))
		}

		// LastRun not today while running means the day rolled over with
		// the task still executing.
		if p.Handle != nil && p.Running {
			overruns = append(overruns, overrun{p.Name, p.Handle})
			continue
		}

		if p.NextRun.IsZero() {
			if now.After(p.Window.EndOn(now)) {
				// missed window: skipped for today, not an error
				p.LastRun = now
				s.log.Warn("run window missed",
					logx.String("profile", p.Name), logx.String("window", p.Window.String()))
				s.notifier.Send(fmt.Sprintf(
					"Profile '%s' missed its run window (%s) today, skipping.", p.Name, p.Window))
				continue
			}
			p.NextRun = p.Window.RandomInstant(now, s.rng)
			s.log.Info("profile scheduled",
				logx.String("profile", p.Name), logx.Time("next_run", p.NextRun))
			s.notifier.Send(fmt.Sprintf(
				"Profile '%s' scheduled for %s.", p.Name, p.NextRun.Format("15:04:05")))
		}
	}

	// launch everything due within one interval
	for _, p := range s.profiles {
		if !p.NextRun.IsZero() && p.Handle == nil && p.NextRun.Sub(now) <= s.cfg.Interval {
			s.launch(p)
		}
	}
	s.mu.Unlock()

	// Cancelling blocks on task teardown, which needs the mutex.
	for _, o := range overruns {
		s.log.Warn("cancelling overrunning task", logx.String("profile", o.name))
		o.h.CancelWithReason("End of day reached")
		s.confirmCleared(o.name, o.h)
	}
}

// confirmCleared verifies that a completed task left its profile consistent,
// forcing the state clean if the teardown somehow missed it.
func (s *Scheduler) confirmCleared(name string, h *Handle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles[name]
	if !ok {
		return
	}
	if p.Handle == h || (p.Handle == nil && p.Running) {
		p.Handle = nil
		p.Running = false
		s.log.Error("task completed without clearing its profile, state corrected",
			logx.String("profile", name))
		s.notifier.Send(fmt.Sprintf(
			"Scheduler bug detected: task for profile '%s' did not clear its state. State corrected.", name))
	}
}

func (s *Scheduler) shutdown() {
	s.mu.Lock()
	handles := make([]*Handle, 0, len(s.profiles))
	for _, p := range s.profiles {
		if p.Handle != nil {
			handles = append(handles, p.Handle)
		}
	}
	s.mu.Unlock()

	for _, h := range handles {
		h.CancelWithReason("scheduler shutting down")
	}
	s.tasksWG.Wait()
	s.log.Info("scheduler stopped")
}

func (s *Scheduler) profileCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.profiles)
}
