package protocol

import "sync/atomic"

// Counter is the central's sequence counter. It starts at zero and wraps
// from MaxInt32 to MinInt32 (two's complement).
type Counter struct {
	v atomic.Int32
}

// NewCounter returns a counter whose next value is start.
func NewCounter(start int32) *Counter {
	c := &Counter{}
	c.v.Store(start)
	return c
}

// Next returns the current value and advances the counter by one.
func (c *Counter) Next() int32 {
	return c.v.Add(1) - 1
}

// Peek returns the value Next would return, without advancing.
func (c *Counter) Peek() int32 {
	return c.v.Load()
}
