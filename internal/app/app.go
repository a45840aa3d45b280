// Package app wires the daemon together: config, logging, store, notifier,
// scheduler, control socket and maintenance, all running under one
// supervisor.
package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"lingbot/internal/config"
	"lingbot/internal/maintenance"
	"lingbot/internal/notify"
	"lingbot/internal/rcon"
	"lingbot/internal/runtime/supervisor"
	"lingbot/internal/sched"
	"lingbot/internal/solver"
	"lingbot/internal/store"
	"lingbot/pkg/logx"
)

type App struct {
	log    logx.Logger
	logs   *logx.Service
	loader *config.Loader

	db       *store.Store
	notifier *notify.Service
	sched    *sched.Scheduler
	server   *rcon.Server
	maint    *maintenance.Service

	sup *supervisor.Supervisor
}

func New(cfgPath string) (*App, error) {
	loader := config.NewLoader(cfgPath)
	cfg, err := loader.Parse()
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	logs, log := logx.New(cfg.Logging)
	loader.SetLogger(log.With(logx.String("component", "config")))

	busy, err := config.ParseDurationField("database.busy_timeout", cfg.Database.BusyTimeout)
	if err != nil {
		_ = logs.Close()
		return nil, err
	}
	db, err := store.Open(store.Config{Path: cfg.Database.Path, BusyTimeout: busy},
		log.With(logx.String("component", "store")))
	if err != nil {
		_ = logs.Close()
		return nil, fmt.Errorf("store: %w", err)
	}

	notifier, err := notify.NewFromConfig(cfg.Notify, log.With(logx.String("component", "notify")))
	if err != nil {
		_ = db.Close()
		_ = logs.Close()
		return nil, fmt.Errorf("notify: %w", err)
	}

	interval, err := config.ParseDurationOrDefault("scheduler.interval", cfg.Scheduler.Interval, 15*time.Minute)
	if err != nil {
		_ = db.Close()
		_ = logs.Close()
		return nil, err
	}
	logDir := strings.TrimSpace(cfg.Scheduler.LogDir)
	if logDir == "" {
		logDir = "logs"
	}

	factory := func(name string, pc config.ProfileConfig, runLog logx.Logger) sched.Workload {
		return solver.NewWorkload(name, pc, db, runLog)
	}
	scheduler, err := sched.New(
		sched.Config{Interval: interval, LogDir: logDir},
		cfg.Profiles, factory, notifier, db,
		log.With(logx.String("component", "sched")),
	)
	if err != nil {
		_ = db.Close()
		_ = logs.Close()
		return nil, err
	}

	a := &App{
		log:      log,
		logs:     logs,
		loader:   loader,
		db:       db,
		notifier: notifier,
		sched:    scheduler,
	}

	handlers := rcon.NewHandlers(scheduler, notifier, a.Reload, log.With(logx.String("component", "rcon")))
	a.server = rcon.NewServer(cfg.Control.SocketPath, handlers, log.With(logx.String("component", "rcon")))

	if cfg.Maintenance != nil && cfg.Maintenance.Enabled {
		a.maint = maintenance.New(*cfg.Maintenance, logDir, db,
			log.With(logx.String("component", "maintenance")))
	}
	return a, nil
}

// Start launches every long-running component. It returns immediately; the
// supervisor context ends when any component fails fatally or ctx is
// cancelled.
func (a *App) Start(ctx context.Context) error {
	if a.sup != nil {
		return errors.New("already started")
	}
	a.sup = supervisor.New(ctx,
		supervisor.WithLogger(a.log.With(logx.String("component", "supervisor"))),
		supervisor.WithCancelOnError(true),
	)

	a.notifier.Start(a.sup.Context())
	a.sup.Go("scheduler", a.sched.Run)
	a.sup.Go("rcon", a.server.Run)
	if a.maint != nil {
		a.sup.Go("maintenance", a.maint.Run)
	}
	a.sup.GoRestart("config-watch", func(ctx context.Context) error {
		return a.loader.Watch(ctx, a.onConfigChange)
	}, 250*time.Millisecond, 5*time.Second)

	a.log.Info("started", logx.String("config", a.loader.Path()))
	return nil
}

// Done is closed when any component has failed fatally.
func (a *App) Done() <-chan struct{} { return a.sup.Context().Done() }

func (a *App) Stop(ctx context.Context) error {
	err := a.sup.Stop(ctx)
	a.notifier.Stop()
	if cerr := a.db.Close(); cerr != nil {
		a.log.Warn("closing store", logx.Err(cerr))
	}
	a.log.Info("stopped")
	_ = a.logs.Close()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Reload re-parses the config file and applies what can change at runtime:
// logging sinks and the profile set. A parse failure changes nothing.
// Used by both the control protocol reload command and the file watcher.
func (a *App) Reload() (*sched.ReloadResult, error) {
	cfg, err := a.loader.Parse()
	if err != nil {
		return nil, err
	}
	a.logs.Apply(cfg.Logging)
	return a.sched.ApplyProfiles(cfg.Profiles)
}

func (a *App) onConfigChange() {
	res, err := a.Reload()
	if err != nil {
		a.log.Error("config reload failed, keeping previous configuration", logx.Err(err))
		a.notifier.Send("Config reload failed: " + err.Error())
		return
	}
	a.log.Info("config file changed, profiles reloaded",
		logx.Int("new", len(res.New)), logx.Int("updated", len(res.Updated)),
		logx.Int("removed", len(res.Removed)), logx.Int("deferred", len(res.Deferred)))
}
