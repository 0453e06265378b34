package timectrl

import (
	"sort"
	"sync"
	"time"
)

// Clock is the time source behind throttled and debounced event handlers.
// Engines depend on it rather than on package time so tests can drive
// timers by hand.
type Clock interface {
	// Now returns the current time.
	Now() time.Time
	// AfterFunc calls fn once d has elapsed. fn runs on whatever goroutine
	// the clock fires timers from.
	AfterFunc(d time.Duration, fn func()) Timer
}

// Timer is a pending AfterFunc call.
type Timer interface {
	// Stop prevents the call from firing and reports whether it was
	// still pending.
	Stop() bool
}

type realClock struct{}

// Real returns the wall clock.
func Real() Clock { return realClock{} }

func (realClock) Now() time.Time { return time.Now() }

func (realClock) AfterFunc(d time.Duration, fn func()) Timer {
	return time.AfterFunc(d, fn)
}

// TimeController is a manually advanced Clock. Timers fire synchronously
// from SetTime and Advance, in due order, on the caller's goroutine.
type TimeController struct {
	mu          sync.Mutex
	currentTime time.Time
	seq         uint64
	timers      []*manualTimer

	listeners []func(time.Time)
}

type manualTimer struct {
	tc    *TimeController
	due   time.Time
	seq   uint64
	fn    func()
	fired bool
}

// NewTimeController constructs a controller starting at start.
func NewTimeController(start time.Time) *TimeController {
	return &TimeController{currentTime: start}
}

// Now returns the controller time.
func (tc *TimeController) Now() time.Time {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	return tc.currentTime
}

// AfterFunc registers fn to run once the controller reaches Now()+d.
func (tc *TimeController) AfterFunc(d time.Duration, fn func()) Timer {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	tc.seq++
	t := &manualTimer{tc: tc, due: tc.currentTime.Add(d), seq: tc.seq, fn: fn}
	tc.timers = append(tc.timers, t)
	return t
}

func (t *manualTimer) Stop() bool {
	t.tc.mu.Lock()
	defer t.tc.mu.Unlock()
	if t.fired {
		return false
	}
	for i, other := range t.tc.timers {
		if other == t {
			t.tc.timers = append(t.tc.timers[:i], t.tc.timers[i+1:]...)
			return true
		}
	}
	return false
}

// AddListener registers a callback invoked every time the controller moves.
func (tc *TimeController) AddListener(fn func(time.Time)) {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	tc.listeners = append(tc.listeners, fn)
}

// Pending returns the number of timers that have not fired yet.
func (tc *TimeController) Pending() int {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	return len(tc.timers)
}

// Advance moves time forward by d.
func (tc *TimeController) Advance(d time.Duration) {
	tc.SetTime(tc.Now().Add(d))
}

// SetTime moves the controller to t, firing every timer due at or before
// t. Timers scheduled by a firing timer run too when they fall due within
// the same step. Moving backwards only updates Now.
func (tc *TimeController) SetTime(t time.Time) {
	for {
		tc.mu.Lock()
		next := tc.nextDueLocked(t)
		if next == nil {
			tc.currentTime = t
			listeners := append([]func(time.Time){}, tc.listeners...)
			tc.mu.Unlock()
			for _, fn := range listeners {
				fn(t)
			}
			return
		}
		if next.due.After(tc.currentTime) {
			tc.currentTime = next.due
		}
		next.fired = true
		tc.removeLocked(next)
		tc.mu.Unlock()

		next.fn()
	}
}

func (tc *TimeController) nextDueLocked(t time.Time) *manualTimer {
	due := make([]*manualTimer, 0, len(tc.timers))
	for _, timer := range tc.timers {
		if !timer.due.After(t) {
			due = append(due, timer)
		}
	}
	if len(due) == 0 {
		return nil
	}
	sort.Slice(due, func(i, j int) bool {
		if due[i].due.Equal(due[j].due) {
			return due[i].seq < due[j].seq
		}
		return due[i].due.Before(due[j].due)
	})
	return due[0]
}

func (tc *TimeController) removeLocked(t *manualTimer) {
	for i, other := range tc.timers {
		if other == t {
			tc.timers = append(tc.timers[:i], tc.timers[i+1:]...)
			return
		}
	}
}
