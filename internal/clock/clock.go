// Package clock allocates Snapshot IDs: millisecond-resolution UTC
// timestamps that are strictly increasing within the lifetime of a
// process, even when the wall clock itself doesn't advance between calls.
package clock

import (
	"sync"
	"time"
)

const layout = "20060102T150405.000"

// Clock allocates Snapshot IDs. The zero value is not usable; use New.
//
// Concurrency model mirrors Hermes's locked_store: a single mutex guards
// the one piece of mutable state (lastMillis), and every caller blocks
// briefly rather than racing on the wall clock.
type Clock struct {
	mu         sync.Mutex
	lastMillis int64
	now        func() time.Time
}

// New returns a Clock driven by the real wall clock.
func New() *Clock {
	return &Clock{now: time.Now}
}

// newWithSource is used by tests to inject a deterministic or
// non-advancing clock source.
func newWithSource(now func() time.Time) *Clock {
	return &Clock{now: now}
}

// Next allocates the next Snapshot ID. If the wall clock has not advanced
// past the last allocated millisecond, Next bumps the stored value by one
// millisecond instead of sleeping, guaranteeing strict monotonicity without
// blocking the caller on real time.
func (c *Clock) Next() string {
	c.mu.Lock()
	defer c.mu.Unlock()

	ms := c.now().UnixMilli()
	if ms <= c.lastMillis {
		ms = c.lastMillis + 1
	}
	c.lastMillis = ms
	return FormatMillis(ms)
}

// FormatMillis renders a Unix millisecond timestamp as a Snapshot ID.
func FormatMillis(ms int64) string {
	t := time.UnixMilli(ms).UTC()
	return t.Format(layout)
}

// ParseMillis parses a Snapshot ID back into Unix milliseconds.
func ParseMillis(id string) (int64, error) {
	t, err := time.Parse(layout, id)
	if err != nil {
		return 0, err
	}
	return t.UnixMilli(), nil
}
