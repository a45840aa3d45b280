// Package maintenance runs housekeeping on a cron schedule: pruning old
// per-run log files and capturing daily word-count snapshots.
package maintenance

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"lingbot/internal/config"
	"lingbot/internal/store"
	"lingbot/pkg/logx"
)

const (
	defaultRetentionDays = 30
	defaultSnapshotSpec  = "5 0 * * *"
	pruneSpec            = "15 3 * * *"
)

type Service struct {
	cfg    config.MaintenanceConfig
	logDir string
	db     *store.Store
	log    logx.Logger

	cron *cron.Cron
}

func New(cfg config.MaintenanceConfig, logDir string, db *store.Store, log logx.Logger) *Service {
	if cfg.LogRetentionDays <= 0 {
		cfg.LogRetentionDays = defaultRetentionDays
	}
	if strings.TrimSpace(cfg.SnapshotSpec) == "" {
		cfg.SnapshotSpec = defaultSnapshotSpec
	}
	return &Service{cfg: cfg, logDir: logDir, db: db, log: log}
}

// Run installs the jobs and blocks until ctx is cancelled.
func (s *Service) Run(ctx context.Context) error {
	c := cron.New()
	if _, err := c.AddFunc(pruneSpec, func() { s.pruneLogs() }); err != nil {
		return fmt.Errorf("log prune job: %w", err)
	}
	if s.db != nil {
		if _, err := c.AddFunc(s.cfg.SnapshotSpec, func() { s.snapshot(ctx) }); err != nil {
			return fmt.Errorf("snapshot job %q: %w", s.cfg.SnapshotSpec, err)
		}
	}
	s.cron = c
	c.Start()
	s.log.Info("maintenance jobs scheduled",
		logx.Int("log_retention_days", s.cfg.LogRetentionDays),
		logx.String("snapshot_spec", s.cfg.SnapshotSpec))

	<-ctx.Done()
	stopCtx := c.Stop()
	// Let an in-flight job finish, but not forever.
	select {
	case <-stopCtx.Done():
	case <-time.After(30 * time.Second):
		s.log.Warn("maintenance job still running at shutdown, abandoning")
	}
	return ctx.Err()
}

func (s *Service) pruneLogs() {
	cutoff := time.Now().AddDate(0, 0, -s.cfg.LogRetentionDays)
	entries, err := os.ReadDir(s.logDir)
	if err != nil {
		if !os.IsNotExist(err) {
			s.log.Warn("cannot read log dir", logx.String("dir", s.logDir), logx.Err(err))
		}
		return
	}
	removed := 0
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".log") {
			continue
		}
		info, err := e.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(s.logDir, e.Name())); err != nil {
			s.log.Warn("failed to prune log", logx.String("file", e.Name()), logx.Err(err))
			continue
		}
		removed++
	}
	if removed > 0 {
		s.log.Info("pruned old run logs", logx.Int("removed", removed),
			logx.Int("retention_days", s.cfg.LogRetentionDays))
	}
}

func (s *Service) snapshot(ctx context.Context) {
	sctx, cancel := context.WithTimeout(ctx, time.Minute)
	defer cancel()
	if err := s.db.CaptureWordCountSnapshot(sctx); err != nil {
		s.log.Warn("word count snapshot failed", logx.Err(err))
		return
	}
	s.log.Info("word count snapshot captured")
}
