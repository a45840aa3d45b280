package solver

import (
	"context"
	"time"

	"lingbot/internal/config"
	"lingbot/internal/store"
	"lingbot/pkg/logx"
)

// Workload is one profile's complete daily job: log in, answer every
// configured session, log out. The scheduler owns its lifecycle and
// cancellation; everything network-related stays in here.
type Workload struct {
	profile string
	cfg     config.ProfileConfig
	db      *store.Store
	baseURL string
	log     logx.Logger

	userID int64
}

func NewWorkload(profile string, cfg config.ProfileConfig, db *store.Store, log logx.Logger) *Workload {
	return &Workload{profile: profile, cfg: cfg, db: db, log: log}
}

// WithBaseURL points the session at a non-production host. Tests only.
func (w *Workload) WithBaseURL(u string) *Workload {
	w.baseURL = u
	return w
}

// UserID returns the site user id resolved at login, or 0 if the workload
// never got that far.
func (w *Workload) UserID() int64 { return w.userID }

func (w *Workload) Run(ctx context.Context) error {
	timeout, err := config.ParseDurationField("timeout", w.cfg.Timeout)
	if err != nil {
		return err
	}
	retryWait, err := config.ParseDurationField("retry_wait", w.cfg.RetryWait)
	if err != nil {
		return err
	}
	session, err := NewSession(SessionConfig{
		BaseURL:   w.baseURL,
		Username:  w.cfg.Username,
		Password:  w.cfg.Password,
		UserAgent: w.cfg.UserAgent,
		Timeout:   timeout,
		Retries:   w.cfg.Retries,
		RetryWait: retryWait,
	}, w.log)
	if err != nil {
		return err
	}

	w.log.Info("logging in", logx.String("username", w.cfg.Username))
	if err := session.Login(ctx); err != nil {
		return err
	}
	w.userID = session.UserID()
	w.log.Info("logged in", logx.Int64("user_id", w.userID))
	defer func() {
		// Logout must happen even when the run was cancelled.
		lctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		session.Logout(lctx)
		w.log.Info("logged out")
	}()

	inProgress, err := session.SessionStatus(ctx)
	if err != nil {
		return err
	}
	if inProgress {
		w.log.Warn("today's session was already started elsewhere, continuing it")
	}

	return NewAutoSolver(session, w.db, w.log, w.cfg.Solver).Run(ctx)
}
