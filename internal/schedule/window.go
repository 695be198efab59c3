// Package schedule implements the UTC-hour posting window gate. The real
// scheduling lives outside the process (EventBridge or cron); this gate only
// decides whether an invocation that did arrive should run or no-op.
package schedule

import (
	"sort"
	"time"
)

// DefaultHours is the posting window used when none is configured.
var DefaultHours = []int{6, 12}

// Window is an allow-set of UTC hours.
type Window struct {
	hours map[int]bool
}

// NewWindow builds a Window from the given UTC hours. An empty slice falls
// back to DefaultHours.
func NewWindow(hours []int) Window {
	if len(hours) == 0 {
		hours = DefaultHours
	}
	set := make(map[int]bool, len(hours))
	for _, h := range hours {
		set[h] = true
	}
	return Window{hours: set}
}

// Open reports whether t falls inside the window. The comparison is on the
// UTC hour regardless of t's location.
func (w Window) Open(t time.Time) bool {
	return w.hours[t.UTC().Hour()]
}

// Hours returns the allow-set in ascending order, for logging.
func (w Window) Hours() []int {
	out := make([]int, 0, len(w.hours))
	for h := range w.hours {
		out = append(out, h)
	}
	sort.Ints(out)
	return out
}
