package history

// Clock is the logical clock that stamps log entries. Like the History
// that owns it, a Clock has a single writer.
//
// Stamps order entries deterministically; wall-clock time is never used,
// so replaying the same calls yields byte-identical logs.
type Clock struct {
	seq int64
}

// NewClock creates a clock whose first stamp is 1.
func NewClock() *Clock {
	return &Clock{}
}

// NewClockAt creates a clock that resumes after start.
// Used when restoring a History whose log already carries stamps.
func NewClockAt(start int64) *Clock {
	return &Clock{seq: start}
}

// Next advances the clock and returns the new stamp.
func (c *Clock) Next() int64 {
	c.seq++
	return c.seq
}

// Current returns the last stamp handed out, or the start value.
func (c *Clock) Current() int64 {
	return c.seq
}
