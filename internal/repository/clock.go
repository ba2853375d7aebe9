package repository

import (
	"sync"
	"time"
)

// Clock supplies server timestamps.
type Clock interface {
	Now() time.Time
}

// monotonicClock never hands out a timestamp earlier than the previous one.
type monotonicClock struct {
	mu   sync.Mutex
	now  func() time.Time
	last time.Time
}

// NewClock wraps now so successive calls are non-decreasing and in UTC.
// A nil now uses time.Now.
func NewClock(now func() time.Time) Clock {
	if now == nil {
		now = time.Now
	}
	return &monotonicClock{now: now}
}

func (c *monotonicClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	t := c.now().UTC().Round(time.Microsecond)
	if t.Before(c.last) {
		t = c.last
	}
	c.last = t
	return t
}
