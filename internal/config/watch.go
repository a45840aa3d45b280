package config

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"lingbot/pkg/logx"
)

// Watch monitors the config file and invokes onChange after writes settle.
// onChange is expected to re-run the full reload path (parse + swap); Watch
// itself never touches scheduler state.
//
// The watcher is recreated with backoff when it breaks (editors on some
// platforms can wedge fsnotify), so a transient failure never kills the loop.
func (l *Loader) Watch(ctx context.Context, onChange func()) error {
	dir := filepath.Dir(l.path)
	file := filepath.Base(l.path)

	const (
		backoffBase = 250 * time.Millisecond
		backoffMax  = 5 * time.Second
	)
	backoff := backoffBase

	// debounce to avoid partial writes
	var (
		timerMu sync.Mutex
		timer   *time.Timer
	)
	debounce := func() {
		timerMu.Lock()
		defer timerMu.Unlock()
		if timer != nil {
			timer.Stop()
		}
		l.log.Debug("config change detected; scheduling reload", logx.String("path", l.path))
		timer = time.AfterFunc(250*time.Millisecond, onChange)
	}

	wait := func(d time.Duration) bool {
		select {
		case <-ctx.Done():
			return false
		case <-time.After(d):
			return true
		}
	}

	for {
		if ctx.Err() != nil {
			return nil
		}

		w, err := fsnotify.NewWatcher()
		if err == nil {
			err = w.Add(dir)
			if err != nil {
				_ = w.Close()
			}
		}
		if err != nil {
			l.log.Warn("config watch init failed", logx.Err(err), logx.String("dir", dir))
			if !wait(backoff) {
				return nil
			}
			if backoff *= 2; backoff > backoffMax {
				backoff = backoffMax
			}
			continue
		}

		backoff = backoffBase
		l.log.Debug("config watcher started", logx.String("dir", dir), logx.String("file", file))

		broken := false
		for !broken {
			select {
			case <-ctx.Done():
				_ = w.Close()
				return nil
			case ev, ok := <-w.Events:
				if !ok {
					broken = true
					break
				}
				// Compare by basename; editors often replace the file via rename.
				if strings.EqualFold(filepath.Base(ev.Name), file) {
					debounce()
				}
			case werr, ok := <-w.Errors:
				if !ok {
					broken = true
					break
				}
				if werr == nil {
					continue
				}
				l.log.Warn("config watch error", logx.Err(werr), logx.String("dir", dir))
				if strings.Contains(strings.ToLower(werr.Error()), "closed") {
					broken = true
				}
			}
		}

		_ = w.Close()
		if ctx.Err() != nil {
			return nil
		}
		l.log.Warn("config watcher stopped; restarting", logx.Duration("backoff", backoff))
		if !wait(backoff) {
			return nil
		}
		if backoff *= 2; backoff > backoffMax {
			backoff = backoffMax
		}
	}
}
