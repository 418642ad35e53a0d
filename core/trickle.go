package core

import (
	"math/rand/v2"

	"github.com/encodeous/wisun/state"
)

// Trickle is an RFC 6206 trickle timer driven by fast ticks.
type Trickle struct {
	p       state.TrickleParams
	rnd     *rand.Rand
	running bool
	i       uint32 // current interval size
	t       uint32 // transmission point within the interval
	now     uint32 // position within the interval
	c       uint8  // consistent messages heard this interval
	fired   bool
}

func NewTrickle(p state.TrickleParams, rnd *rand.Rand) *Trickle {
	if p.Imin == 0 {
		p.Imin = 1
	}
	if p.Imax < p.Imin {
		p.Imax = p.Imin
	}
	return &Trickle{p: p, rnd: rnd}
}

func (t *Trickle) Running() bool {
	return t.running
}

// Start begins the timer with the minimum interval. It does nothing if already running.
func (t *Trickle) Start() {
	if t.running {
		return
	}
	t.running = true
	t.i = t.p.Imin
	t.begin()
}

func (t *Trickle) Stop() {
	t.running = false
}

// Reset handles an inconsistency: the interval shrinks back to Imin.
func (t *Trickle) Reset() {
	if !t.running {
		t.Start()
		return
	}
	if t.i == t.p.Imin {
		return
	}
	t.i = t.p.Imin
	t.begin()
}

// Consistent records a consistent transmission heard from a neighbour.
func (t *Trickle) Consistent() {
	if t.c < 255 {
		t.c++
	}
}

func (t *Trickle) begin() {
	t.now = 0
	t.c = 0
	t.fired = false
	half := t.i / 2
	t.t = half + t.rnd.Uint32N(max(t.i-half, 1))
}

// Tick advances the timer and reports whether a transmission is due.
func (t *Trickle) Tick(ticks uint32) bool {
	if !t.running {
		return false
	}
	send := false
	for ticks > 0 {
		step := min(ticks, t.i-t.now)
		t.now += step
		ticks -= step
		if !t.fired && t.now >= t.t {
			t.fired = true
			if t.p.K == 0 || t.c < t.p.K {
				send = true
			}
		}
		if t.now >= t.i {
			t.i = min(t.i*2, t.p.Imax)
			t.begin()
		}
	}
	return send
}
