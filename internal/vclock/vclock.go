// Package vclock implements the correlation engine's virtual clock: a
// monotonically non-decreasing notion of "now", seconds resolution,
// derived from message timestamps and wall-clock ticks (spec.md §4.1).
//
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
package vclock

import "time"

// Clock holds now_s and last_tick. It has no internal lock: callers
// (the correlator engine) serialize access under their own mutex, the
// same way the teacher's pool and session types trust an external lock
// rather than nesting one of their own.
type Clock struct {
	nowS     int64
	lastTick time.Time
}

// New creates a clock seeded at wallNow (typically time.Now() at init,
// or a restored persist time).
func New(wallNow time.Time) *Clock {
	return &Clock{nowS: wallNow.Unix(), lastTick: wallNow}
}

// Now returns the current virtual-time value in seconds.
func (c *Clock) Now() int64 { return c.nowS }

// Seed forces now_s and last_tick to specific values, bypassing the
// clamp rules: there is no "before" value to reconcile against.
func (c *Clock) Seed(nowS int64, lastTick time.Time) {
	c.nowS = nowS
	c.lastTick = lastTick
}

// AdvanceFromMessage implements spec.md §4.1's message-driven rule:
//
//	if ts_event < now_s:        now_s unchanged
//	else if ts_event <= wall_now: now_s = ts_event
//	else:                         now_s = wall_now
//
// wallNow is passed in rather than read from time.Now() so tests can
// supply a fake wall clock deterministically.
//
// Every call also folds wallNow into last_tick (never moving it
// backwards): last_tick is "the wall-clock value at the previous
// advance" regardless of which of the two advance paths produced it, so
// a tick immediately following a burst of messages measures only the
// real time actually elapsed since, instead of re-adding time the
// messages already accounted for.
func (c *Clock) AdvanceFromMessage(tsEvent int64, wallNow time.Time) {
	wallS := wallNow.Unix()
	switch {
	case tsEvent < c.nowS:
		// never move backwards
	case tsEvent <= wallS:
		c.nowS = tsEvent
	default:
		c.nowS = wallS
	}
	if wallNow.After(c.lastTick) {
		c.lastTick = wallNow
	}
}

// AdvanceFromTick implements spec.md §4.1's tick-driven rule: advances
// now_s by whole elapsed real seconds since the last tick, carrying any
// sub-second remainder forward in lastTick. A wall-clock step-back
// (delta < 0) never moves now_s backwards; it only resynchronizes
// lastTick so the next forward tick computes a sane delta.
func (c *Clock) AdvanceFromTick(wallNow time.Time) {
	delta := wallNow.Sub(c.lastTick)
	switch {
	case delta < 0:
		// wall-clock stepped back: now_s holds, resync lastTick only.
		c.lastTick = wallNow
	case delta > time.Second:
		wholeSeconds := int64(delta / time.Second)
		remainder := delta - time.Duration(wholeSeconds)*time.Second
		c.nowS += wholeSeconds
		c.lastTick = wallNow.Add(-remainder)
	default:
		// less than a second has passed since lastTick: leave lastTick
		// alone so successive sub-second ticks accumulate delta instead
		// of resetting it.
	}
}
