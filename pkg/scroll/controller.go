package scroll

import (
	"sync"
	"time"
)

// DefaultDelay leaves time for the view to lay out the new content before
// jumping to the bottom.
const DefaultDelay = 50 * time.Millisecond

// Controller schedules scroll-to-bottom requests. The notify callback is
// expected to hand the request to the owner of the message container, which
// then moves its scroll position to the maximum.
type Controller struct {
	mu       sync.Mutex
	delay    time.Duration
	disabled bool
	notify   func()
	timer    *time.Timer
	closed   bool
}

type Option func(*Controller)

func WithDelay(d time.Duration) Option {
	return func(c *Controller) {
		if d >= 0 {
			c.delay = d
		}
	}
}

// WithDisabled turns every ScrollToBottom into a no-op.
func WithDisabled(disabled bool) Option {
	return func(c *Controller) {
		c.disabled = disabled
	}
}

func NewController(notify func(), opts ...Option) *Controller {
	c := &Controller{
		delay:  DefaultDelay,
		notify: notify,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ScrollToBottom schedules a notification after the configured delay. A
// request arriving while one is pending replaces it.
func (c *Controller) ScrollToBottom() {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.disabled || c.closed || c.notify == nil {
		return
	}
	if c.timer != nil {
		c.timer.Stop()
	}
	notify := c.notify
	c.timer = time.AfterFunc(c.delay, notify)
}

func (c *Controller) Disabled() bool {
	if c == nil {
		return true
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.disabled
}

// Close cancels a pending scroll and ignores later requests.
func (c *Controller) Close() {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}
