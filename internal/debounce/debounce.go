// Package debounce coalesces bursts of input into a single trailing call.
package debounce

import (
	"sync"
	"time"
)

// Controller fires its callback with the last value scheduled once no newer
// value has arrived for the delay. It is safe for concurrent use.
type Controller struct {
	clock Clock
	fire  func(string)

	mu     sync.Mutex
	timer  Timer
	gen    uint64
	closed bool
}

type Option func(*Controller)

func WithClock(c Clock) Option {
	return func(d *Controller) {
		if c != nil {
			d.clock = c
		}
	}
}

// New returns a controller that calls fire with committed values. fire runs
// on the clock's goroutine, or on the caller's for Flush.
func New(fire func(string), opts ...Option) *Controller {
	d := &Controller{clock: RealClock{}, fire: fire}
	for _, o := range opts {
		o(d)
	}
	return d
}

// Schedule replaces any pending value with value and restarts the window.
func (d *Controller) Schedule(value string, delay time.Duration) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	d.stopLocked()
	gen := d.gen
	d.timer = d.clock.AfterFunc(delay, func() { d.onTimer(gen, value) })
}

// Flush drops the pending timer and fires value right away.
func (d *Controller) Flush(value string) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.stopLocked()
	d.mu.Unlock()
	d.fire(value)
}

func (d *Controller) Cancel() {
	d.mu.Lock()
	d.stopLocked()
	d.mu.Unlock()
}

// Close cancels and ignores every later Schedule or Flush.
func (d *Controller) Close() {
	d.mu.Lock()
	d.stopLocked()
	d.closed = true
	d.mu.Unlock()
}

// Pending reports whether a value is waiting for its window to elapse.
func (d *Controller) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.timer != nil
}

// stopLocked bumps the generation so a callback that already started
// racing with Stop sees it was superseded.
func (d *Controller) stopLocked() {
	d.gen++
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}

func (d *Controller) onTimer(gen uint64, value string) {
	d.mu.Lock()
	if d.closed || gen != d.gen {
		d.mu.Unlock()
		return
	}
	d.timer = nil
	d.gen++
	d.mu.Unlock()
	d.fire(value)
}
