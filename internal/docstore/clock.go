package docstore

import (
	"sync"
	"time"
)

// Clock hands out server timestamps.
//
// WHY A CLOCK AND NOT time.Now?
// The feed sorts by createdAt and the merge relies on that order meaning
// "committed later". time.Now can stall (two writes in the same
// millisecond) or step backwards (NTP adjustments), and either breaks the
// order. Clock fixes both:
//
//  1. Next never returns a time at or before the previous one. When the
//     wall clock has not moved past the last stamp, it adds a millisecond.
//  2. Commit holds a lock from stamping until the write has landed, so a
//     writer that stamped earlier can never commit after one that stamped
//     later.
//
// Backends must stamp through Commit. Next alone only orders stamps, not
// commits.
type Clock struct {
	mu   sync.Mutex // guards last
	now  func() time.Time
	last time.Time

	commitMu sync.Mutex // held across stamp and commit
}

// NewClock returns a Clock reading from now. A nil now uses time.Now.
func NewClock(now func() time.Time) *Clock {
	if now == nil {
		now = time.Now
	}
	return &Clock{now: now}
}

// Next returns the next timestamp, at millisecond resolution.
func (c *Clock) Next() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	t := c.now().UTC().Truncate(time.Millisecond)
	if !t.After(c.last) {
		t = c.last.Add(time.Millisecond)
	}
	c.last = t
	return t
}

// Commit stamps a write and runs it. Commits are serialized, so
// timestamps increase in commit order. commit's error is returned as is.
func (c *Clock) Commit(commit func(ts time.Time) error) error {
	c.commitMu.Lock()
	defer c.commitMu.Unlock()
	return commit(c.Next())
}
