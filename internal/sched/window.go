// Package sched decides when each profile runs. Every eligible profile is
// executed exactly once per calendar day at a random instant inside its
// configured run window, and the in-flight task can be inspected, cancelled
// or replaced through the operations the control server exposes.
package sched

import (
	"fmt"
	"math/rand"
	"time"

	"lingbot/internal/config"
)

// Window is the inclusive daily time-of-day range in which a profile's
// execution must start. Immutable once parsed.
type Window struct {
	start int // minutes since midnight
	end   int
}

func WindowFromConfig(wc config.WindowConfig) (Window, error) {
	start, err := config.ParseHHMM(wc.Start)
	if err != nil {
		return Window{}, err
	}
	end, err := config.ParseHHMM(wc.End)
	if err != nil {
		return Window{}, err
	}
	if end < start {
		return Window{}, fmt.Errorf("window end %s is before start %s", wc.End, wc.Start)
	}
	return Window{start: start, end: end}, nil
}

// StartOn returns the window's opening instant on the given calendar day.
func (w Window) StartOn(day time.Time) time.Time {
	y, m, d := day.Date()
	return time.Date(y, m, d, w.start/60, w.start%60, 0, 0, day.Location())
}

// EndOn returns the window's closing instant on the given calendar day.
func (w Window) EndOn(day time.Time) time.Time {
	y, m, d := day.Date()
	return time.Date(y, m, d, w.end/60, w.end%60, 0, 0, day.Location())
}

// Contains reports whether t falls inside the window on t's own day.
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.StartOn(t)) && !t.After(w.EndOn(t))
}

// RandomInstant picks a uniformly random second in [start, end] on the given
// day. Both bounds are eligible.
func (w Window) RandomInstant(day time.Time, rng *rand.Rand) time.Time {
	start := w.StartOn(day)
	seconds := int64(w.EndOn(day).Sub(start) / time.Second)
	return start.Add(time.Duration(rng.Int63n(seconds+1)) * time.Second)
}

func (w Window) String() string {
	return fmt.Sprintf("%02d:%02d-%02d:%02d", w.start/60, w.start%60, w.end/60, w.end%60)
}

// sameDay reports whether a and b fall on the same calendar day.
// A zero time is never on the same day as anything.
func sameDay(a, b time.Time) bool {
	if a.IsZero() || b.IsZero() {
		return false
	}
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
