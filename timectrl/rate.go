package timectrl

import (
	"sync"
	"time"
)

// Throttle rate-limits calls to fn to at most one per wait. The first call
// in a quiet period runs immediately; calls arriving inside the window are
// collapsed and the latest argument runs when the window closes. A
// non-positive wait calls fn synchronously every time.
type Throttle[T any] struct {
	clock Clock
	wait  time.Duration
	fn    func(T)

	mu       sync.Mutex
	last     time.Time
	ran      bool
	pending  *T
	timer    Timer
	canceled bool
}

// NewThrottle returns a Throttle bound to clock.
func NewThrottle[T any](clock Clock, wait time.Duration, fn func(T)) *Throttle[T] {
	if clock == nil {
		clock = Real()
	}
	return &Throttle[T]{clock: clock, wait: wait, fn: fn}
}

// Call submits v.
func (t *Throttle[T]) Call(v T) {
	t.mu.Lock()
	if t.canceled {
		t.mu.Unlock()
		return
	}
	if t.wait <= 0 {
		t.mu.Unlock()
		t.fn(v)
		return
	}
	now := t.clock.Now()
	if !t.ran || now.Sub(t.last) >= t.wait {
		if t.timer != nil {
			t.timer.Stop()
			t.timer = nil
		}
		t.pending = nil
		t.ran = true
		t.last = now
		t.mu.Unlock()
		t.fn(v)
		return
	}
	t.pending = &v
	if t.timer == nil {
		t.timer = t.clock.AfterFunc(t.wait-now.Sub(t.last), t.trailing)
	}
	t.mu.Unlock()
}

func (t *Throttle[T]) trailing() {
	t.mu.Lock()
	t.timer = nil
	if t.canceled || t.pending == nil {
		t.mu.Unlock()
		return
	}
	v := *t.pending
	t.pending = nil
	t.last = t.clock.Now()
	t.mu.Unlock()
	t.fn(v)
}

// Cancel drops any pending trailing call and ignores future calls.
func (t *Throttle[T]) Cancel() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.canceled = true
	t.pending = nil
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
}

// Debounce delays fn until wait has passed without another call, then runs
// it once with the latest argument.
type Debounce[T any] struct {
	clock Clock
	wait  time.Duration
	fn    func(T)

	mu       sync.Mutex
	timer    Timer
	gen      uint64
	canceled bool
}

// NewDebounce returns a Debounce bound to clock.
func NewDebounce[T any](clock Clock, wait time.Duration, fn func(T)) *Debounce[T] {
	if clock == nil {
		clock = Real()
	}
	return &Debounce[T]{clock: clock, wait: wait, fn: fn}
}

// Call restarts the quiet period with v.
func (d *Debounce[T]) Call(v T) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.canceled {
		return
	}
	if d.timer != nil {
		d.timer.Stop()
	}
	d.gen++
	gen := d.gen
	d.timer = d.clock.AfterFunc(d.wait, func() {
		d.mu.Lock()
		if d.canceled || gen != d.gen {
			d.mu.Unlock()
			return
		}
		d.timer = nil
		d.mu.Unlock()
		d.fn(v)
	})
}

// Cancel drops the pending call and ignores future calls.
func (d *Debounce[T]) Cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.canceled = true
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}
