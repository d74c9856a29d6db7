// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"sync"
	"time"
)

// Resolution is the timestamp granularity. Timestamps are kept at
// millisecond precision so they survive a round trip through services that
// store ISO-8601 strings with three fractional digits.
const Resolution = time.Millisecond

// Clock hands out UTC timestamps that strictly increase across calls, even
// when the wall clock stalls or steps backwards.
type Clock struct {
	mu   sync.Mutex
	last time.Time
	now  func() time.Time
}

var defaultClock = NewClock()

// NewClock returns a Clock backed by time.Now.
func NewClock() *Clock {
	return &Clock{now: time.Now}
}

// NewClockFunc returns a Clock backed by now. Used by tests to freeze time.
func NewClockFunc(now func() time.Time) *Clock {
	return &Clock{now: now}
}

// Now returns the next timestamp. A nil Clock uses the process-wide clock.
func (c *Clock) Now() time.Time {
	if c == nil {
		return defaultClock.Now()
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	t := c.now().UTC().Truncate(Resolution)
	if !t.After(c.last) {
		t = c.last.Add(Resolution)
	}
	c.last = t
	return t
}

// Observe advances the clock past t so later timestamps sort after data
// loaded from elsewhere.
func (c *Clock) Observe(t time.Time) {
	if c == nil {
		c = defaultClock
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if t.After(c.last) {
		c.last = t.UTC().Truncate(Resolution)
	}
}
