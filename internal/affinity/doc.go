// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Package affinity pins the calling goroutine's OS thread to a single
// CPU core. The tick driver uses it, optionally, so its once-a-second
// timer callback never migrates cores mid-run (spec.md §4.6's "runs on
// the engine thread" contract reads more naturally when that thread
// actually stays put).
package affinity
