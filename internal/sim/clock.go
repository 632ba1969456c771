package sim

import "time"

// FixedClock returns the same dt every frame. Headless runs and tests use it.
type FixedClock struct {
	Dt float64
}

func (c FixedClock) Tick() float64 { return c.Dt }

// RealClock measures wall time between ticks. The first tick returns 0.
type RealClock struct {
	now  func() time.Time
	last time.Time
}

func NewRealClock() *RealClock {
	return &RealClock{now: time.Now}
}

func (c *RealClock) Tick() float64 {
	t := c.now()
	if c.last.IsZero() {
		c.last = t
		return 0
	}
	dt := t.Sub(c.last).Seconds()
	c.last = t
	return dt
}
