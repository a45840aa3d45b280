package sched

import (
	"math/rand"
	"testing"
	"time"

	"lingbot/internal/config"
)

func TestWindowFromConfig(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		start   string
		end     string
		wantErr bool
	}{
		{name: "valid", start: "09:00", end: "17:00"},
		{name: "single instant", start: "12:30", end: "12:30"},
		{name: "end before start", start: "17:00", end: "09:00", wantErr: true},
		{name: "bad format", start: "9am", end: "17:00", wantErr: true},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			_, err := WindowFromConfig(config.WindowConfig{Start: tt.start, End: tt.end})
			if (err != nil) != tt.wantErr {
				t.Fatalf("WindowFromConfig(%s, %s) error = %v, wantErr %v", tt.start, tt.end, err, tt.wantErr)
			}
		})
	}
}

func TestRandomInstantStaysInsideWindow(t *testing.T) {
	t.Parallel()
	w, err := WindowFromConfig(config.WindowConfig{Start: "09:00", End: "17:00"})
	if err != nil {
		t.Fatal(err)
	}
	day := time.Date(2026, 3, 14, 4, 0, 0, 0, time.Local)
	rng := rand.New(rand.NewSource(1))
	lo := w.StartOn(day)
	hi := w.EndOn(day)
	for i := 0; i < 1000; i++ {
		got := w.RandomInstant(day, rng)
		if got.Before(lo) || got.After(hi) {
			t.Fatalf("instant %v outside [%v, %v]", got, lo, hi)
		}
	}
}

func TestWindowContains(t *testing.T) {
	t.Parallel()
	w, err := WindowFromConfig(config.WindowConfig{Start: "10:00", End: "10:05"})
	if err != nil {
		t.Fatal(err)
	}
	day := time.Date(2026, 3, 14, 0, 0, 0, 0, time.Local)
	if !w.Contains(day.Add(10*time.Hour + 3*time.Minute)) {
		t.Error("10:03 should be inside")
	}
	if !w.Contains(day.Add(10 * time.Hour)) {
		t.Error("start bound is inclusive")
	}
	if !w.Contains(day.Add(10*time.Hour + 5*time.Minute)) {
		t.Error("end bound is inclusive")
	}
	if w.Contains(day.Add(10*time.Hour + 6*time.Minute)) {
		t.Error("10:06 should be outside")
	}
}

func TestSameDay(t *testing.T) {
	t.Parallel()
	a := time.Date(2026, 3, 14, 23, 59, 0, 0, time.Local)
	if !sameDay(a, a.Add(-23*time.Hour)) {
		t.Error("same calendar day expected")
	}
	if sameDay(a, a.Add(2*time.Minute)) {
		t.Error("crossed midnight, different day expected")
	}
	if sameDay(time.Time{}, a) {
		t.Error("zero time is never on the same day")
	}
}
