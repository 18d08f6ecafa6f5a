package core

import (
	"fmt"
	"time"
	_ "time/tzdata"

	"gapscan/pkg/exception"
)

// Window is a daily [start, end) hour range in a timezone. A zero Window,
// or one with start == end, is always open.
type Window struct {
	loc   *time.Location
	start int
	end   int
}

// NewWindow creates a window. An end before start wraps past midnight.
func NewWindow(timezone string, startHour, endHour int) (Window, error) {
	if startHour < 0 || startHour > 23 || endHour < 0 || endHour > 24 {
		return Window{}, fmt.Errorf("%w: window hours %d-%d", exception.ErrInvalidArgument, startHour, endHour)
	}
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return Window{}, fmt.Errorf("%w: timezone %q: %w", exception.ErrInvalidArgument, timezone, err)
	}
	return Window{loc: loc, start: startHour, end: endHour % 24}, nil
}

// Enabled reports whether the window restricts anything.
func (w Window) Enabled() bool {
	return w.loc != nil && w.start != w.end
}

// Contains reports whether t falls inside the window.
func (w Window) Contains(t time.Time) bool {
	if !w.Enabled() {
		return true
	}
	hour := t.In(w.loc).Hour()
	if w.start < w.end {
		return hour >= w.start && hour < w.end
	}
	return hour >= w.start || hour < w.end
}

func (w Window) String() string {
	if !w.Enabled() {
		return "always"
	}
	return fmt.Sprintf("%02d:00-%02d:00 %s", w.start, w.end, w.loc)
}
