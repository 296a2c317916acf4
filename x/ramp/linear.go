package ramp

import (
	"time"

	"powercode-go/x/mathx"
)

// Step applies the next value of the ramp.
type Step func(v uint32)

// Tick waits for d and reports whether to continue (false => cancelled).
type Tick func(d time.Duration) bool

// Linear walks from 'from' to 'to' in integer increments spread over duration.
// It is synchronous and caller-driven: Tick owns timing and cancellation.
// steps==0 or duration==0 snaps to 'to'. A completed ramp always ends on 'to'.
func Linear(from, to uint32, duration time.Duration, steps uint16, tick Tick, set Step) {
	if steps == 0 || duration <= 0 {
		set(to)
		return
	}
	d := int64(to) - int64(from)
	st := int64(steps)
	acc := int64(0)
	cur := int64(from)
	stepDur := mathx.Max(duration/time.Duration(steps), time.Millisecond)

	set(from)
	for i := uint16(1); i < steps; i++ {
		if !tick(stepDur) {
			return
		}
		acc += d
		inc := acc / st
		if inc != 0 {
			acc -= inc * st
			cur += inc
			set(uint32(cur))
		}
	}
	if !tick(stepDur) {
		return
	}
	set(to)
}
