package logx

import (
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
)

// RunLog is a dedicated log sink scoped to one profile execution.
// The file is JSON-lines and its path is reported to operators so it can be
// attached to notifications.
type RunLog struct {
	path string
	file *os.File
	log  Logger
}

// NewRunLog opens a per-run log file under dir, named after the start time
// and the profile. The directory is created if missing.
func NewRunLog(dir, profile string, start time.Time) (*RunLog, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	name := start.Format("2006-01-02_15-04-05") + "-" + profile + ".log"
	path := filepath.Join(dir, name)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	zl := zerolog.New(zerolog.SyncWriter(f)).Level(zerolog.DebugLevel).With().Timestamp().Logger()
	return &RunLog{path: path, file: f, log: Logger{base: zl, hasBase: true}}, nil
}

func (r *RunLog) Path() string   { return r.path }
func (r *RunLog) Logger() Logger { return r.log }

func (r *RunLog) Close() error {
	if r == nil || r.file == nil {
		return nil
	}
	f := r.file
	r.file = nil
	return f.Close()
}
