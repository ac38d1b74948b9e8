package relation

import "sync/atomic"

// Sequencer hands out strictly increasing sequence numbers.
// Every mutation and every event is stamped with one.
type Sequencer interface {
	Next() int64
}

// Clock is the default Sequencer: a monotonic logical clock.
//
// Sequence numbers order mutations within one Sync; they are never wall-clock
// timestamps, so journals and traces replay identically.
//
// Thread-safety: Clock is safe for concurrent use (atomic operations).
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a new clock starting at 0.
func NewClock() *Clock {
	return &Clock{}
}

// NewClockAt creates a clock that resumes after start.
// Used when appending to an existing journal session.
func NewClockAt(start int64) *Clock {
	c := &Clock{}
	c.seq.Store(start)
	return c
}

// Next returns the next sequence number and increments the clock.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the current sequence number without incrementing.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}
