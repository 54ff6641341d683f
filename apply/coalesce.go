package apply

import "sync"

// Coalescer folds bursts of redraw requests into one flush per frame.
// A request while one is already pending is dropped; the pending flag
// clears only when the scheduled flush runs.
type Coalescer struct {
	mu       sync.Mutex
	pending  bool
	flush    func()
	schedule func(func())
}

// NewCoalescer builds a coalescer that runs flush via schedule, the
// renderer's frame callback. A nil schedule runs flushes inline,
// which is what tests and headless export want. A nil flush is a
// no-op sink.
func NewCoalescer(flush func(), opts ...CoalescerOption) *Coalescer {
	c := &Coalescer{flush: flush}
	for _, o := range opts {
		o(c)
	}
	if c.flush == nil {
		c.flush = func() {}
	}
	if c.schedule == nil {
		c.schedule = func(fn func()) { fn() }
	}
	return c
}

// CoalescerOption configures a Coalescer.
type CoalescerOption func(*Coalescer)

// WithSchedule sets the deferred execution hook, typically the
// renderer's next-frame callback.
func WithSchedule(s func(func())) CoalescerOption {
	return func(c *Coalescer) { c.schedule = s }
}

// Request asks for a redraw. Any number of requests between frames
// produce exactly one flush.
func (c *Coalescer) Request() {
	c.mu.Lock()
	if c.pending {
		c.mu.Unlock()
		return
	}
	c.pending = true
	c.mu.Unlock()

	c.schedule(func() {
		c.mu.Lock()
		c.pending = false
		c.mu.Unlock()
		c.flush()
	})
}

// Pending reports whether a flush is scheduled but not yet run.
func (c *Coalescer) Pending() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending
}
