package pae

// Countdown is a saturating tick counter. It never goes below zero and is
// running exactly while the remaining count is positive.
type Countdown struct {
	ticks uint32
}

func (c *Countdown) Set(ticks uint32) {
	c.ticks = ticks
}

func (c *Countdown) Stop() {
	c.ticks = 0
}

func (c *Countdown) Running() bool {
	return c.ticks > 0
}

func (c *Countdown) Remaining() uint32 {
	return c.ticks
}

// Tick advances the countdown and reports whether it reached zero on this call.
func (c *Countdown) Tick(ticks uint32) bool {
	if c.ticks == 0 {
		return false
	}
	if ticks >= c.ticks {
		c.ticks = 0
		return true
	}
	c.ticks -= ticks
	return false
}
