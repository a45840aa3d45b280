package sched

import (
	"errors"
	"fmt"
	"time"

	"lingbot/pkg/logx"
)

// Operation errors surface verbatim in control protocol responses.
var (
	ErrRescheduleRunning = errors.New("Cannot reschedule a running profile")
	ErrReschedulePast    = errors.New("Cannot reschedule to a time in the past")
	ErrWindowPassed      = errors.New("Run window has already passed for today")
	ErrAlreadyRunning    = errors.New("Profile already running")
	ErrCancelRunning     = errors.New("Cannot cancel a running profile - use force_cancel")
)

func errNotFound(name string) error {
	return fmt.Errorf("Profile '%s' not found", name)
}

// Reschedule moves a profile's next run. With a nil newTime a fresh random
// instant is drawn from today's window. Running profiles cannot be moved; a
// pending (not yet started) task is cancelled and replaced. If the new time
// is due within one interval the task launches immediately.
func (s *Scheduler) Reschedule(name string, newTime *time.Time) (time.Time, error) {
	now := time.Now()

	s.mu.Lock()
	p, ok := s.profiles[name]
	if !ok {
		s.mu.Unlock()
		return time.Time{}, errNotFound(name)
	}
	if p.Running {
		s.mu.Unlock()
		return time.Time{}, ErrRescheduleRunning
	}
	var t time.Time
	if newTime != nil {
		if newTime.Before(now) {
			s.mu.Unlock()
			return time.Time{}, ErrReschedulePast
		}
		t = *newTime
	} else {
		if now.After(p.Window.EndOn(now)) {
			s.mu.Unlock()
			return time.Time{}, ErrWindowPassed
		}
		t = p.Window.RandomInstant(now, s.rng)
	}
	h := p.Handle
	s.mu.Unlock()

	if h != nil {
		h.CancelWithReason("rescheduled by operator")
	}

	// The world may have changed while the cancel blocked on teardown: a
	// reload can remove or replace the profile, an operator can start it.
	// Only the object currently in the store may be mutated.
	s.mu.Lock()
	p, ok = s.profiles[name]
	if !ok {
		s.mu.Unlock()
		return time.Time{}, errNotFound(name)
	}
	if p.Running {
		s.mu.Unlock()
		return time.Time{}, ErrRescheduleRunning
	}
	p.NextRun = t
	if p.Handle == nil && time.Until(t) <= s.cfg.Interval {
		s.launch(p)
	}
	s.mu.Unlock()

	s.log.Info("profile rescheduled", logx.String("profile", name), logx.Time("next_run", t))
	s.notifier.Send(fmt.Sprintf("Profile '%s' rescheduled to %s.", name, t.Format(time.RFC3339)))
	return t, nil
}

// Cancel skips a profile for the rest of the day. A running profile is only
// cancelled when force is set; a pending task is always cancelled.
func (s *Scheduler) Cancel(name string, force bool) error {
	s.mu.Lock()
	p, ok := s.profiles[name]
	if !ok {
		s.mu.Unlock()
		return errNotFound(name)
	}
	if p.Running && !force {
		s.mu.Unlock()
		return ErrCancelRunning
	}
	p.LastRun = time.Now()
	p.NextRun = time.Time{}
	h := p.Handle
	s.mu.Unlock()

	if h != nil {
		h.CancelWithReason("cancelled by operator")
	}
	s.log.Info("profile cancelled for today", logx.String("profile", name), logx.Bool("force", force))
	s.notifier.Send(fmt.Sprintf("Profile '%s' cancelled for today.", name))
	return nil
}

// RunNow starts a profile immediately, replacing any pending task.
func (s *Scheduler) RunNow(name string) error {
	s.mu.Lock()
	p, ok := s.profiles[name]
	if !ok {
		s.mu.Unlock()
		return errNotFound(name)
	}
	if p.Running {
		s.mu.Unlock()
		return ErrAlreadyRunning
	}
	h := p.Handle
	s.mu.Unlock()

	if h != nil {
		h.CancelWithReason("superseded by run_now")
	}

	// Re-validate against the store after the cancel gap: a reload may have
	// removed the profile, or a scheduling pass may have staged a new task.
	s.mu.Lock()
	p, ok = s.profiles[name]
	if !ok {
		s.mu.Unlock()
		return errNotFound(name)
	}
	if p.Running || p.Handle != nil {
		s.mu.Unlock()
		return ErrAlreadyRunning
	}
	p.NextRun = time.Now()
	s.launch(p)
	s.mu.Unlock()

	s.log.Info("profile started on demand", logx.String("profile", name))
	s.notifier.Send(fmt.Sprintf("Profile '%s' starting now.", name))
	return nil
}
