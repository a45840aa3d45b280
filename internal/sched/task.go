package sched

import (
	"context"
	"errors"
	"fmt"
	"time"

	"lingbot/internal/config"
	"lingbot/pkg/logx"
)

// Workload is the external job a task executes for its profile. Its retry
// and pacing behavior is opaque to the scheduler.
type Workload interface {
	Run(ctx context.Context) error
	// UserID identifies the account the workload ran as, 0 if unknown.
	UserID() int64
}

// WorkloadFactory builds the workload for one run. The logger is the run's
// dedicated log sink.
type WorkloadFactory func(profile string, cfg config.ProfileConfig, log logx.Logger) Workload

// Handle is the scheduler's reference to one in-flight or pending task.
// Owned by exactly one profile at a time.
type Handle struct {
	cancel context.CancelCauseFunc
	done   chan struct{}
}

// Done is closed once the task has fully torn down.
func (h *Handle) Done() <-chan struct{} { return h.done }

// Cancel signals the task to stop and blocks until its teardown has
// completed. After Cancel returns the owning profile's handle and running
// fields are consistent again.
func (h *Handle) Cancel() { h.CancelWithReason("") }

func (h *Handle) CancelWithReason(reason string) {
	if reason == "" {
		h.cancel(nil)
	} else {
		h.cancel(errors.New(reason))
	}
	<-h.done
}

// launch associates a new task with p and starts it. Caller holds s.mu.
// LastRun is set at creation time, not at actual start, so the same day is
// never scheduled twice while the task waits for its jittered start offset.
func (s *Scheduler) launch(p *Profile) {
	ctx, cancel := context.WithCancelCause(context.Background())
	h := &Handle{cancel: cancel, done: make(chan struct{})}
	p.Handle = h
	p.LastRun = time.Now()

	// Sub-second offset so profiles sharing an instant never start in sync.
	jitter := time.Duration(s.rng.Float64() * float64(time.Second))

	s.log.Info("task created",
		logx.String("profile", p.Name), logx.Time("next_run", p.NextRun))
	s.tasksWG.Add(1)
	go s.runTask(ctx, p, h, jitter)
}

// owner resolves the profile that currently owns h. After a reload the map
// may hold a replacement object carrying the same handle; run-state must
// land on whichever object operators can see. Caller holds s.mu.
func (s *Scheduler) owner(captured *Profile, h *Handle) *Profile {
	if p, ok := s.profiles[captured.Name]; ok && p.Handle == h {
		return p
	}
	return captured
}

func (s *Scheduler) clearTask(captured *Profile, h *Handle) {
	s.mu.Lock()
	p := s.owner(captured, h)
	if p.Handle == h {
		p.Handle = nil
	}
	p.Running = false
	s.mu.Unlock()
}

func (s *Scheduler) runTask(ctx context.Context, captured *Profile, h *Handle, jitter time.Duration) {
	defer s.tasksWG.Done()
	defer close(h.done)

	s.mu.Lock()
	p := s.owner(captured, h)
	name := p.Name
	delay := time.Until(p.NextRun) + jitter
	s.mu.Unlock()

	log := s.log.With(logx.String("profile", name))

	if delay > 0 {
		log.Debug("waiting for start time", logx.Duration("delay", delay))
		t := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			t.Stop()
			log.Info("task cancelled before start", logx.String("reason", cancelReason(ctx)))
			s.notifier.Send(fmt.Sprintf("Profile '%s' task cancelled before start%s.", name, reasonSuffix(ctx)))
			s.clearTask(captured, h)
			return
		case <-t.C:
		}
	}

	start := time.Now()
	s.mu.Lock()
	p = s.owner(captured, h)
	// Consume next_run before doing any work so a recovery pass can never
	// double-schedule this instant.
	p.NextRun = time.Time{}
	p.LastRun = start
	p.Running = true
	cfg := p.Config
	s.mu.Unlock()

	var logPath string
	workLogger := log
	runLog, err := logx.NewRunLog(s.cfg.LogDir, name, start)
	if err != nil {
		log.Error("failed to open run log, using main sink", logx.Err(err))
	} else {
		logPath = runLog.Path()
		workLogger = runLog.Logger().With(logx.String("profile", name))
		s.mu.Lock()
		s.owner(captured, h).LastLog = logPath
		s.mu.Unlock()
	}

	log.Info("task started", logx.String("run_log", logPath))
	w := s.newWorkload(name, cfg, workLogger)
	runErr := runGuarded(ctx, w)

	// Teardown from here on is unconditional: it must complete even while
	// the scheduler itself is being cancelled.
	if runLog != nil {
		_ = runLog.Close()
	}
	elapsed := time.Since(start).Round(time.Second)

	var success bool
	var text string
	switch {
	case runErr == nil:
		success = true
		log.Info("task finished", logx.Duration("elapsed", elapsed))
		text = fmt.Sprintf("Profile '%s' finished successfully in %s.", name, elapsed)
	case errors.Is(runErr, context.Canceled) || ctx.Err() != nil:
		log.Warn("task cancelled", logx.Duration("elapsed", elapsed), logx.String("reason", cancelReason(ctx)))
		text = fmt.Sprintf("Profile '%s' cancelled after %s%s.", name, elapsed, reasonSuffix(ctx))
	default:
		log.Error("task failed", logx.Err(runErr), logx.Duration("elapsed", elapsed))
		text = fmt.Sprintf("Profile '%s' failed after %s: %v", name, elapsed, runErr)
	}
	if logPath != "" {
		s.notifier.Send(text, logPath)
	} else {
		s.notifier.Send(text)
	}

	if s.recorder != nil {
		rctx, rcancel := context.WithTimeout(context.Background(), 10*time.Second)
		if w.UserID() != 0 {
			if err := s.recorder.RecordRun(rctx, w.UserID(), start, time.Now(), success); err != nil {
				log.Warn("failed to record run", logx.Err(err))
			}
		}
		if err := s.recorder.CaptureWordCountSnapshot(rctx); err != nil {
			log.Warn("failed to capture word count snapshot", logx.Err(err))
		}
		rcancel()
	}

	s.clearTask(captured, h)
}

// runGuarded contains workload failures, panics included, inside the task.
func runGuarded(ctx context.Context, w Workload) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("workload panicked: %v", r)
		}
	}()
	return w.Run(ctx)
}

func cancelReason(ctx context.Context) string {
	cause := context.Cause(ctx)
	if cause == nil || errors.Is(cause, context.Canceled) {
		return "cancelled"
	}
	return cause.Error()
}

func reasonSuffix(ctx context.Context) string {
	cause := context.Cause(ctx)
	if cause == nil || errors.Is(cause, context.Canceled) {
		return ""
	}
	return " (" + cause.Error() + ")"
}
